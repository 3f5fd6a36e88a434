package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LineItemKind tipo de línea dentro de una bandeja.
type LineItemKind string

const (
	KindService        LineItemKind = "service"         // servicio aplicado a un instrumento
	KindPart           LineItemKind = "part"            // repuesto
	KindBareInstrument LineItemKind = "bare-instrument" // instrumento aún sin servicio ni repuesto
)

// Valid indica si el tipo es uno de los conocidos.
func (k LineItemKind) Valid() bool {
	switch k {
	case KindService, KindPart, KindBareInstrument:
		return true
	}
	return false
}

// Signature identifica líneas "iguales" a efectos de consolidación: (tipo, catálogo, instrumento).
type Signature struct {
	Kind         LineItemKind `json:"kind"`
	CatalogID    string       `json:"catalog_id"`
	InstrumentID string       `json:"instrument_id"`
}

func (s Signature) String() string {
	return fmt.Sprintf("%s/%s/%s", s.Kind, s.CatalogID, s.InstrumentID)
}

// IdentityGroup marca + números de serie ordenados + garantía, adjunto a una línea.
// Brand vacío equivale a marca nula. Un serial vacío es un marcador de posición.
type IdentityGroup struct {
	Brand    string   `json:"brand,omitempty"`
	Serials  []string `json:"serials"`
	Warranty bool     `json:"warranty"`
}

// Clone copia profunda del grupo.
func (g IdentityGroup) Clone() IdentityGroup {
	out := g
	out.Serials = append([]string(nil), g.Serials...)
	return out
}

// LineItem una fila de servicio o repuesto aplicada a un instrumento dentro de una bandeja.
type LineItem struct {
	ID                   string
	TrayID               string
	Kind                 LineItemKind
	CatalogID            string // service_id o part_id según Kind; vacío para bare-instrument
	InstrumentID         string
	DepartmentID         string
	TechnicianID         string // vacío = sin técnico
	Quantity             int
	UnrepairableQuantity int
	Price                decimal.Decimal // precio unitario
	DiscountPct          decimal.Decimal
	Urgent               bool
	Identity             []IdentityGroup
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Signature devuelve la firma de consolidación de la línea.
func (li *LineItem) Signature() Signature {
	return Signature{Kind: li.Kind, CatalogID: li.CatalogID, InstrumentID: li.InstrumentID}
}

// SerialCount total de entradas de serie (incluye marcadores vacíos) en todos los grupos.
func (li *LineItem) SerialCount() int {
	n := 0
	for _, g := range li.Identity {
		n += len(g.Serials)
	}
	return n
}

// Clone copia profunda (grupos de identidad incluidos).
func (li LineItem) Clone() LineItem {
	out := li
	if li.Identity != nil {
		out.Identity = make([]IdentityGroup, len(li.Identity))
		for i, g := range li.Identity {
			out.Identity[i] = g.Clone()
		}
	}
	return out
}

// Validate verifica quantity ≥ unrepairable ≥ 0 y un tipo conocido.
func (li *LineItem) Validate() error {
	if !li.Kind.Valid() {
		return fmt.Errorf("tipo de línea desconocido %q", li.Kind)
	}
	if li.UnrepairableQuantity < 0 || li.Quantity < li.UnrepairableQuantity {
		return fmt.Errorf("cantidades inválidas: qty=%d unrepaired=%d", li.Quantity, li.UnrepairableQuantity)
	}
	return nil
}

// Tipos de destino de una división.
const (
	DestinationTechnician = "technician"
	DestinationTray       = "tray"
)

// Destination técnico o bandeja que recibe unidades de una línea.
type Destination struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func (d Destination) String() string { return d.Type + ":" + d.ID }

// HeldBy indica si el destino es el poseedor actual de la línea.
func (d Destination) HeldBy(li *LineItem) bool {
	switch d.Type {
	case DestinationTechnician:
		return d.ID == li.TechnicianID
	case DestinationTray:
		return d.ID == li.TrayID
	}
	return false
}
