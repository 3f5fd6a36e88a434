package allocation

import (
	"github.com/jhoicas/Bandejas-api/internal/domain/entity"
	"github.com/jhoicas/Bandejas-api/pkg/textnorm"
)

// IdentityPolicy decide si un departamento exige seguimiento de seriales
// (cantidad == número de entradas de serie).
type IdentityPolicy interface {
	Tracks(departmentID string) bool
}

// ExemptDepartments política por lista de departamentos exentos (ids o nombres, sin distinguir mayúsculas).
// Las líneas sin departamento no se rastrean.
type ExemptDepartments struct {
	exempt map[string]struct{}
}

// NewExemptDepartments construye la política.
func NewExemptDepartments(ids ...string) ExemptDepartments {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if f := textnorm.Fold(id); f != "" {
			m[f] = struct{}{}
		}
	}
	return ExemptDepartments{exempt: m}
}

// Tracks implementa IdentityPolicy.
func (e ExemptDepartments) Tracks(departmentID string) bool {
	f := textnorm.Fold(departmentID)
	if f == "" {
		return false
	}
	_, ok := e.exempt[f]
	return !ok
}

type untracked struct{}

func (untracked) Tracks(string) bool { return false }

// unit una unidad física con su serial, marca y garantía.
type unit struct {
	brand    string
	serial   string
	warranty bool
}

// flatten recorre los grupos en orden (grupo, luego serial) y separa los grupos sin seriales,
// que solo aportan metadatos de marca.
func flatten(groups []entity.IdentityGroup) (units []unit, brandOnly []entity.IdentityGroup) {
	for _, g := range groups {
		if len(g.Serials) == 0 {
			brandOnly = append(brandOnly, g.Clone())
			continue
		}
		for _, s := range g.Serials {
			units = append(units, unit{brand: g.Brand, serial: s, warranty: g.Warranty})
		}
	}
	return units, brandOnly
}

// regroup reconstruye grupos juntando unidades consecutivas con la misma marca y garantía.
func regroup(units []unit) []entity.IdentityGroup {
	var out []entity.IdentityGroup
	for _, u := range units {
		if n := len(out); n > 0 && out[n-1].Brand == u.brand && out[n-1].Warranty == u.warranty {
			out[n-1].Serials = append(out[n-1].Serials, u.serial)
			continue
		}
		out = append(out, entity.IdentityGroup{Brand: u.brand, Serials: []string{u.serial}, Warranty: u.warranty})
	}
	return out
}

// buildIdentity grupos finales: primero los de solo marca, luego los reconstruidos.
func buildIdentity(brandOnly []entity.IdentityGroup, units []unit) []entity.IdentityGroup {
	out := make([]entity.IdentityGroup, 0, len(brandOnly)+len(units))
	for _, g := range brandOnly {
		out = append(out, g.Clone())
	}
	out = append(out, regroup(units)...)
	if len(out) == 0 {
		return nil
	}
	return out
}

// unionIdentity une los grupos de varias líneas sin duplicar (marca, serial).
// Un serial repetido con garantías distintas queda con garantía si alguna la tenía.
// Los marcadores vacíos nunca se deduplican: cada uno es una unidad.
func unionIdentity(lists ...[]entity.IdentityGroup) []entity.IdentityGroup {
	var units []unit
	var brandOnly []entity.IdentityGroup
	seenUnit := make(map[[2]string]int)
	seenBrand := make(map[string]int)
	for _, groups := range lists {
		us, bo := flatten(groups)
		for _, g := range bo {
			key := textnorm.Fold(g.Brand)
			if i, ok := seenBrand[key]; ok {
				brandOnly[i].Warranty = brandOnly[i].Warranty || g.Warranty
				continue
			}
			seenBrand[key] = len(brandOnly)
			brandOnly = append(brandOnly, g)
		}
		for _, u := range us {
			if u.serial == "" {
				units = append(units, u)
				continue
			}
			key := [2]string{textnorm.Fold(u.brand), u.serial}
			if i, ok := seenUnit[key]; ok {
				units[i].warranty = units[i].warranty || u.warranty
				continue
			}
			seenUnit[key] = len(units)
			units = append(units, u)
		}
	}
	return buildIdentity(brandOnly, units)
}
