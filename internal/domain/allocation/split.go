package allocation

import (
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/Bandejas-api/internal/domain"
	"github.com/jhoicas/Bandejas-api/internal/domain/entity"
)

// SplitRequest una porción de la línea hacia un destino.
type SplitRequest struct {
	Destination entity.Destination
	Quantity    int
}

// SplitResult líneas nuevas, la línea origen reducida (nil si se eliminó) y el id eliminado.
type SplitResult struct {
	SourceID  string
	Created   []entity.LineItem
	Updated   *entity.LineItem
	DeletedID string
}

// Allocated suma de unidades entregadas a los destinos.
func (r *SplitResult) Allocated() int {
	n := 0
	for _, li := range r.Created {
		n += li.Quantity
	}
	return n
}

// Option configura el SplitAllocator o el Consolidator.
type Option func(*options)

type options struct {
	newID func() string
	now   func() time.Time
}

// WithIDGenerator reemplaza el generador de ids (uuid por defecto).
func WithIDGenerator(fn func() string) Option { return func(o *options) { o.newID = fn } }

// WithClock reemplaza el reloj (time.Now por defecto).
func WithClock(fn func() time.Time) Option { return func(o *options) { o.now = fn } }

func buildOptions(opts []Option) options {
	o := options{newID: uuid.NewString, now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// SplitAllocator reparte la cantidad de una línea (y sus unidades de identidad) entre destinos.
type SplitAllocator struct {
	policy IdentityPolicy
	opts   options
}

// NewSplitAllocator construye el asignador. policy nil = ningún departamento rastrea seriales.
func NewSplitAllocator(policy IdentityPolicy, opts ...Option) *SplitAllocator {
	if policy == nil {
		policy = untracked{}
	}
	return &SplitAllocator{policy: policy, opts: buildOptions(opts)}
}

// Split reparte la línea sourceID entre los destinos en el orden dado.
// Las primeras N unidades pedidas toman los primeros N seriales. Si una precondición falla
// no se modifica nada del store.
func (a *SplitAllocator) Split(store *ItemStore, sourceID string, requests []SplitRequest) (*SplitResult, error) {
	src, ok := store.Item(sourceID)
	if !ok {
		return nil, domain.NewNotFound("line_item", sourceID)
	}
	reqs, err := a.validate(&src, requests)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, r := range reqs {
		total += r.Quantity
	}
	remaining := src.Quantity - total

	// No reparables: se quedan en el origen mientras tenga cantidad; el exceso pasa a los destinos en orden.
	keepUnrep := min(src.UnrepairableQuantity, remaining)
	excessUnrep := src.UnrepairableQuantity - keepUnrep

	units, brandOnly := flatten(src.Identity)
	now := a.opts.now()
	res := &SplitResult{SourceID: src.ID}

	for _, r := range reqs {
		take := min(r.Quantity, len(units))
		taken := units[:take]
		units = units[take:]

		li := src.Clone()
		li.ID = a.opts.newID()
		li.Quantity = r.Quantity
		li.UnrepairableQuantity = min(excessUnrep, r.Quantity)
		excessUnrep -= li.UnrepairableQuantity
		li.Identity = buildIdentity(brandOnly, taken)
		li.CreatedAt = now
		li.UpdatedAt = now
		switch r.Destination.Type {
		case entity.DestinationTechnician:
			li.TechnicianID = r.Destination.ID
		case entity.DestinationTray:
			li.TrayID = r.Destination.ID
		}
		res.Created = append(res.Created, li)
	}

	if remaining == 0 {
		store.Remove(src.ID)
		res.DeletedID = src.ID
	} else {
		src.Quantity = remaining
		src.UnrepairableQuantity = keepUnrep
		src.Identity = buildIdentity(brandOnly, units)
		src.UpdatedAt = now
		store.Upsert(src)
		updated := src.Clone()
		res.Updated = &updated
	}
	for _, li := range res.Created {
		store.Upsert(li)
	}
	return res, nil
}

// validate filtra solicitudes en cero y verifica todas las precondiciones antes de mutar.
func (a *SplitAllocator) validate(src *entity.LineItem, requests []SplitRequest) ([]SplitRequest, error) {
	if src.Kind == entity.KindBareInstrument {
		return nil, domain.NewValidationError(domain.KindNotSplittable, src.ID,
			"un instrumento sin servicio no se puede dividir; asigne primero un servicio")
	}
	if err := src.Validate(); err != nil {
		return nil, domain.NewValidationError(domain.KindInvalidQuantity, src.ID, "%v", err)
	}

	reqs := make([]SplitRequest, 0, len(requests))
	total := 0
	for _, r := range requests {
		if r.Quantity < 0 {
			return nil, domain.NewValidationError(domain.KindInvalidQuantity, src.ID,
				"cantidad negativa (%d) para %s", r.Quantity, r.Destination)
		}
		if r.Quantity == 0 {
			continue
		}
		if r.Destination.ID == "" ||
			(r.Destination.Type != entity.DestinationTechnician && r.Destination.Type != entity.DestinationTray) {
			return nil, domain.NewValidationError(domain.KindInvalidAssignments, src.ID,
				"destino inválido %q", r.Destination)
		}
		if r.Destination.HeldBy(src) {
			return nil, domain.NewValidationError(domain.KindTargetEqualsSource, src.ID,
				"el destino %s ya posee la línea", r.Destination)
		}
		// Se compara contra lo que queda antes de sumar: la suma nunca desborda.
		if r.Quantity > src.Quantity-total {
			return nil, domain.NewValidationError(domain.KindOverAllocation, src.ID,
				"las solicitudes superan las %d unidades de la línea", src.Quantity)
		}
		total += r.Quantity
		reqs = append(reqs, r)
	}
	if len(reqs) == 0 {
		return nil, domain.NewValidationError(domain.KindInvalidQuantity, src.ID, "ninguna solicitud con cantidad positiva")
	}
	if a.policy.Tracks(src.DepartmentID) && src.SerialCount() != src.Quantity {
		return nil, domain.NewValidationError(domain.KindIdentityMismatch, src.ID,
			"la línea tiene %d seriales para %d unidades", src.SerialCount(), src.Quantity)
	}
	return reqs, nil
}
