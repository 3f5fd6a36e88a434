package traysplit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/Bandejas-api/internal/application/audit"
	"github.com/jhoicas/Bandejas-api/internal/application/ports"
	"github.com/jhoicas/Bandejas-api/internal/domain"
	"github.com/jhoicas/Bandejas-api/internal/domain/allocation"
	"github.com/jhoicas/Bandejas-api/internal/domain/entity"
	"github.com/jhoicas/Bandejas-api/internal/domain/repository"
	"github.com/jhoicas/Bandejas-api/pkg/logger"
)

const (
	minAssignments = 2
	maxAssignments = 3
)

// Reconciler auditoría posterior a la división.
type Reconciler interface {
	DiffAndLog(ctx context.Context, trayID, actor string) (*audit.DiffResult, error)
	Record(ctx context.Context, event *entity.AuditEvent)
}

// Claim cantidad de una línea reclamada por una asignación.
type Claim struct {
	ItemID   string
	Quantity int
}

// Assignment una bandeja resultante: responsable y líneas reclamadas.
type Assignment struct {
	OwnerID string
	Claims  []Claim
}

// SplitTraysInput entrada de la división de una bandeja en 2 o 3 bandejas reales.
type SplitTraysInput struct {
	TrayID      string
	Actor       string
	Assignments []Assignment
}

// SplitTraysOutput ids de las bandejas resultantes; la primera es la original.
type SplitTraysOutput struct {
	TrayIDs []string
}

// Orchestrator divide una bandeja en bandejas nuevas repartiendo sus líneas.
type Orchestrator struct {
	txRunner   ports.TxRunner
	reconciler Reconciler
	splitter   *allocation.SplitAllocator
	log        *logger.Logger
	newID      func() string
	now        func() time.Time
}

// NewOrchestrator construye el orquestador. opts configuran el asignador (ids de línea, reloj).
func NewOrchestrator(txRunner ports.TxRunner, reconciler Reconciler, policy allocation.IdentityPolicy, log *logger.Logger, opts ...allocation.Option) *Orchestrator {
	if log == nil {
		log = logger.NewNop()
	}
	return &Orchestrator{
		txRunner:   txRunner,
		reconciler: reconciler,
		splitter:   allocation.NewSplitAllocator(policy, opts...),
		log:        log.Component("traysplit"),
		newID:      uuid.NewString,
		now:        time.Now,
	}
}

// SplitToRealTrays valida todas las asignaciones, calcula el reparto completo en memoria y solo
// entonces escribe, todo en una transacción. La primera asignación conserva la bandeja original
// (marcada como origen de división); las demás reciben bandejas nuevas.
// Un fallo de escritura devuelve *domain.PartialSplitError con RolledBack=true.
func (o *Orchestrator) SplitToRealTrays(ctx context.Context, in SplitTraysInput) (*SplitTraysOutput, error) {
	if n := len(in.Assignments); n < minAssignments || n > maxAssignments {
		return nil, domain.NewValidationError(domain.KindInvalidAssignments, in.TrayID,
			"se requieren entre %d y %d asignaciones, llegaron %d", minAssignments, maxAssignments, n)
	}

	var out *SplitTraysOutput
	err := o.txRunner.Run(ctx, func(r repository.TxRepos) error {
		tray, err := r.Trays.GetByID(ctx, in.TrayID)
		if err != nil {
			return domain.NewPersistenceError("leer bandeja", err)
		}
		if tray == nil {
			return domain.NewNotFound("tray", in.TrayID)
		}
		items, err := r.Items.ListByTray(ctx, in.TrayID)
		if err != nil {
			return domain.NewPersistenceError("listar líneas", err)
		}
		if err := validate(in, items); err != nil {
			return err
		}

		p, err := o.buildPlan(tray, items, in.Assignments)
		if err != nil {
			return err
		}
		if err := o.apply(ctx, r, p); err != nil {
			return err
		}
		out = &SplitTraysOutput{TrayIDs: p.trayIDs()}
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.log.Info().Str("tray_id", in.TrayID).Strs("trays", out.TrayIDs).Msg("bandeja dividida")
	o.recordSplit(ctx, in, out)
	if o.reconciler != nil {
		for _, id := range out.TrayIDs {
			if _, err := o.reconciler.DiffAndLog(ctx, id, in.Actor); err != nil {
				o.log.Warn().Err(err).Str("tray_id", id).Msg("conciliación de auditoría fallida")
			}
		}
	}
	return out, nil
}

// validate revisa las asignaciones contra las líneas de la bandeja; no escribe nada.
func validate(in SplitTraysInput, items []entity.LineItem) error {
	byID := make(map[string]entity.LineItem, len(items))
	for _, li := range items {
		byID[li.ID] = li
	}
	claimed := make(map[string]int)
	holders := make(map[string]int)
	var order []string

	for i, a := range in.Assignments {
		positive := 0
		seen := make(map[string]bool, len(a.Claims))
		for _, c := range a.Claims {
			if c.Quantity < 0 {
				return domain.NewValidationError(domain.KindInvalidQuantity, c.ItemID, "cantidad reclamada negativa: %d", c.Quantity)
			}
			if c.Quantity == 0 {
				continue
			}
			li, ok := byID[c.ItemID]
			if !ok {
				return domain.NewValidationError(domain.KindInvalidAssignments, c.ItemID,
					"la línea no pertenece a la bandeja %s", in.TrayID)
			}
			if _, ok := claimed[c.ItemID]; !ok {
				order = append(order, c.ItemID)
			}
			// Se satura al pasar la cantidad de la línea: la suma nunca desborda y el exceso se reporta abajo.
			if c.Quantity > li.Quantity-claimed[c.ItemID] {
				claimed[c.ItemID] = li.Quantity + 1
			} else {
				claimed[c.ItemID] += c.Quantity
			}
			if !seen[c.ItemID] {
				seen[c.ItemID] = true
				holders[c.ItemID]++
			}
			positive++
		}
		if positive == 0 {
			return domain.NewValidationError(domain.KindInvalidAssignments, in.TrayID,
				"la asignación %d no reclama ninguna línea", i+1)
		}
	}

	for _, id := range order {
		li := byID[id]
		switch {
		case claimed[id] > li.Quantity:
			return domain.NewValidationError(domain.KindConservationViolation, id,
				"se reclaman más de las %d unidades de la línea", li.Quantity)
		case claimed[id] < li.Quantity:
			return domain.NewValidationError(domain.KindConservationViolation, id,
				"cantidad reclamada %d, la línea tiene %d", claimed[id], li.Quantity)
		}
		if li.Kind == entity.KindBareInstrument && holders[id] > 1 {
			return domain.NewValidationError(domain.KindNotSplittable, id,
				"un instrumento sin servicio solo se mueve completo")
		}
	}
	return nil
}

// plan escrituras calculadas antes de tocar el almacenamiento.
type plan struct {
	original entity.Tray
	trays    []*trayPlan // bandejas nuevas, en orden de asignación
	sources  []entity.LineItem
	updated  map[string]entity.LineItem // líneas origen que siguen en la bandeja original
	deleted  []string
}

type trayPlan struct {
	tray    entity.Tray
	created []entity.LineItem
	moved   []entity.LineItem // líneas que cambian de bandeja conservando id
}

func (p *plan) trayIDs() []string {
	ids := []string{p.original.ID}
	for _, t := range p.trays {
		ids = append(ids, t.tray.ID)
	}
	return ids
}

func (o *Orchestrator) buildPlan(tray *entity.Tray, items []entity.LineItem, assignments []Assignment) (*plan, error) {
	now := o.now()
	p := &plan{original: *tray, sources: items, updated: make(map[string]entity.LineItem)}
	p.original.SplitOrigin = true
	p.original.Status = entity.TrayStatusSplit
	p.original.OwnerID = assignments[0].OwnerID
	p.original.UpdatedAt = now

	store := allocation.NewItemStore(items...)
	for _, a := range assignments[1:] {
		tp := &trayPlan{tray: entity.Tray{
			ID:             o.newID(),
			Status:         entity.TrayStatusNew,
			ServiceOrderID: tray.ServiceOrderID,
			OwnerID:        a.OwnerID,
			Exempt:         tray.Exempt,
			CreatedAt:      now,
			UpdatedAt:      now,
		}}
		for _, c := range a.Claims {
			if c.Quantity == 0 {
				continue
			}
			cur, _ := store.Item(c.ItemID)
			if cur.TrayID == tray.ID && c.Quantity == cur.Quantity {
				cur.TrayID = tp.tray.ID
				cur.UpdatedAt = now
				store.Upsert(cur)
				continue
			}
			res, err := o.splitter.Split(store, c.ItemID, []allocation.SplitRequest{{
				Destination: entity.Destination{Type: entity.DestinationTray, ID: tp.tray.ID},
				Quantity:    c.Quantity,
			}})
			if err != nil {
				return nil, err
			}
			tp.created = append(tp.created, res.Created...)
		}
		p.trays = append(p.trays, tp)
	}

	// Estado final de cada línea original.
	byTray := make(map[string]*trayPlan, len(p.trays))
	for _, tp := range p.trays {
		byTray[tp.tray.ID] = tp
	}
	for _, src := range items {
		cur, ok := store.Item(src.ID)
		switch {
		case !ok:
			p.deleted = append(p.deleted, src.ID)
		case cur.TrayID != src.TrayID:
			byTray[cur.TrayID].moved = append(byTray[cur.TrayID].moved, cur)
		case cur.Quantity != src.Quantity:
			p.updated[src.ID] = cur
		}
	}
	return p, nil
}

// apply escribe el plan bandeja por bandeja para poder reportar qué destinos quedaron escritos.
// Una bandeja original sin número (sin asignar) recibe el siguiente número libre.
func (o *Orchestrator) apply(ctx context.Context, r repository.TxRepos, p *plan) error {
	ids := p.trayIDs()
	var done []string
	fail := func(failed []string, err error) error {
		return &domain.PartialSplitError{
			TrayID:     p.original.ID,
			Succeeded:  done,
			Failed:     failed,
			RolledBack: true,
			Err:        err,
		}
	}
	expected := make(map[string]int, len(p.sources))
	for _, li := range p.sources {
		expected[li.ID] = li.Quantity
	}

	if p.original.Number == nil {
		n, err := r.Trays.NextNumber(ctx)
		if err != nil {
			return fail(ids, domain.NewPersistenceError("numerar bandeja original", err))
		}
		p.original.Number = &n
	}
	if err := r.Trays.Update(ctx, &p.original); err != nil {
		return fail(ids, domain.NewPersistenceError("marcar bandeja original", err))
	}
	for i, tp := range p.trays {
		failed := ids[i+1:]
		n, err := r.Trays.NextNumber(ctx)
		if err != nil {
			return fail(failed, domain.NewPersistenceError("numerar bandeja", err))
		}
		tp.tray.Number = &n
		if err := r.Trays.Create(ctx, &tp.tray); err != nil {
			return fail(failed, domain.NewPersistenceError("crear bandeja", err))
		}
		for j := range tp.created {
			if err := r.Items.Create(ctx, &tp.created[j]); err != nil {
				return fail(failed, domain.NewPersistenceError("crear línea", err))
			}
		}
		for j := range tp.moved {
			li := &tp.moved[j]
			if err := r.Items.Update(ctx, li, expected[li.ID]); err != nil {
				return fail(failed, err)
			}
		}
		done = append(done, tp.tray.ID)
	}

	// Líneas que quedan (reducidas) o desaparecen de la bandeja original.
	for _, src := range p.sources {
		li, ok := p.updated[src.ID]
		if !ok {
			continue
		}
		if err := r.Items.Update(ctx, &li, expected[li.ID]); err != nil {
			return fail([]string{p.original.ID}, err)
		}
	}
	for _, id := range p.deleted {
		if err := r.Items.Delete(ctx, id); err != nil {
			return fail([]string{p.original.ID}, domain.NewPersistenceError("eliminar línea", err))
		}
	}
	return nil
}

type splitPayload struct {
	Trays  []string `json:"trays"`
	Owners []string `json:"owners"`
}

func (o *Orchestrator) recordSplit(ctx context.Context, in SplitTraysInput, out *SplitTraysOutput) {
	if o.reconciler == nil {
		return
	}
	owners := make([]string, 0, len(in.Assignments))
	for _, a := range in.Assignments {
		owners = append(owners, a.OwnerID)
	}
	raw, err := json.Marshal(splitPayload{Trays: out.TrayIDs, Owners: owners})
	if err != nil {
		o.log.Warn().Err(err).Str("tray_id", in.TrayID).Msg("payload de división inválido")
		return
	}
	o.reconciler.Record(ctx, &entity.AuditEvent{
		ID:        uuid.NewString(),
		Type:      entity.AuditTypeTray,
		SubjectID: in.TrayID,
		TrayID:    in.TrayID,
		Kind:      entity.EventTraySplit,
		Message:   fmt.Sprintf("Bandeja dividida en: %s", strings.Join(out.TrayIDs, ", ")),
		Payload:   raw,
		Actor:     in.Actor,
		CreatedAt: o.now(),
	})
}

// IsPartial indica si err es una división incompleta.
func IsPartial(err error) bool {
	var pe *domain.PartialSplitError
	return errors.As(err, &pe)
}
