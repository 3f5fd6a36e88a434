package audit

import (
	"context"
	"errors"
	"time"

	"github.com/jhoicas/Bandejas-api/internal/domain"
	"github.com/jhoicas/Bandejas-api/internal/domain/entity"
	"github.com/jhoicas/Bandejas-api/internal/domain/reconciliation"
	"github.com/jhoicas/Bandejas-api/internal/domain/repository"
	"github.com/jhoicas/Bandejas-api/pkg/logger"
)

// ReconciliationUseCase compara las líneas actuales de una bandeja con la última base persistida
// y emite el rastro mínimo de auditoría. Los fallos del sumidero se registran en log pero
// nunca hacen fallar la operación principal.
type ReconciliationUseCase struct {
	items     repository.LineItemRepository
	events    repository.AuditEventRepository
	snapshots repository.SnapshotRepository
	log       *logger.Logger
	now       func() time.Time
}

// NewReconciliationUseCase construye el caso de uso.
func NewReconciliationUseCase(
	items repository.LineItemRepository,
	events repository.AuditEventRepository,
	snapshots repository.SnapshotRepository,
	log *logger.Logger,
) *ReconciliationUseCase {
	if log == nil {
		log = logger.NewNop()
	}
	return &ReconciliationUseCase{
		items:     items,
		events:    events,
		snapshots: snapshots,
		log:       log.Component("reconciliation"),
		now:       time.Now,
	}
}

// DiffResult resultado de un ciclo de conciliación.
type DiffResult struct {
	TrayID           string
	Delta            reconciliation.Delta
	Logged           int  // eventos escritos
	Failed           int  // eventos que el sumidero rechazó
	BaselineAdvanced bool // la base quedó actualizada
}

// DiffAndLog carga base y estado actual, escribe un evento por delta y avanza la base.
// La nueva base solo incorpora los deltas cuyo evento se escribió: un delta fallido
// se vuelve a emitir en el siguiente ciclo y uno exitoso nunca se repite.
func (uc *ReconciliationUseCase) DiffAndLog(ctx context.Context, trayID, actor string) (*DiffResult, error) {
	snap, err := uc.snapshots.Get(ctx, trayID)
	if err != nil {
		return nil, domain.NewPersistenceError("leer base de conciliación", err)
	}
	current, err := uc.items.ListByTray(ctx, trayID)
	if err != nil {
		return nil, domain.NewPersistenceError("listar líneas", err)
	}
	var prev []entity.ItemSummary
	if snap != nil {
		prev = snap.Items
	}

	now := uc.now()
	delta := reconciliation.Diff(prev, current)
	res := &DiffResult{TrayID: trayID, Delta: delta}
	if delta.Empty() && snap != nil {
		return res, nil
	}

	events, err := reconciliation.Events(trayID, delta, actor, now)
	if err != nil {
		return nil, err
	}
	logged := make(map[string]bool, len(events))
	for i := range events {
		ev := &events[i]
		if err := uc.events.Append(ctx, ev); err != nil {
			res.Failed++
			uc.log.Warn().Err(err).
				Str("tray_id", trayID).
				Str("subject_id", ev.SubjectID).
				Str("event_kind", ev.Kind).
				Msg("no se pudo registrar evento de auditoría")
			continue
		}
		res.Logged++
		logged[ev.SubjectID] = true
	}

	baseline := nextBaseline(prev, current, delta, logged)
	if err := uc.snapshots.Save(ctx, &entity.Snapshot{TrayID: trayID, Items: baseline, TakenAt: now}); err != nil {
		uc.log.Warn().Err(err).Str("tray_id", trayID).Msg("no se pudo guardar la base de conciliación")
		return res, nil
	}
	res.BaselineAdvanced = true
	return res, nil
}

// nextBaseline aplica sobre la base previa solo los deltas registrados.
func nextBaseline(prev []entity.ItemSummary, current []entity.LineItem, delta reconciliation.Delta, logged map[string]bool) []entity.ItemSummary {
	prevByID := make(map[string]entity.ItemSummary, len(prev))
	for _, p := range prev {
		prevByID[p.ID] = p
	}
	changed := make(map[string]bool, delta.Len())
	for _, c := range delta.Created {
		changed[c.ID] = true
	}
	for _, u := range delta.Updated {
		changed[u.After.ID] = true
	}

	out := make([]entity.ItemSummary, 0, len(current)+len(delta.Deleted))
	for _, li := range current {
		before, existed := prevByID[li.ID]
		switch {
		case !changed[li.ID] || logged[li.ID]:
			out = append(out, entity.SummarizeItem(li))
		case existed:
			out = append(out, before)
		}
	}
	for _, d := range delta.Deleted {
		if !logged[d.ID] {
			out = append(out, d)
		}
	}
	return out
}

// RecordOnce registra un evento de "primera ocurrencia" (p. ej. primera entrada a un departamento).
// Consulta el sumidero antes de insertar para tolerar reintentos; devuelve false si ya existía.
func (uc *ReconciliationUseCase) RecordOnce(ctx context.Context, event *entity.AuditEvent) (bool, error) {
	return RecordOnce(ctx, uc.events, event)
}

// RecordOnce versión sobre un repositorio explícito (p. ej. uno atado a una transacción).
func RecordOnce(ctx context.Context, events repository.AuditEventRepository, event *entity.AuditEvent) (bool, error) {
	exists, err := events.Exists(ctx, event.SubjectID, event.Kind)
	if err != nil {
		return false, domain.NewPersistenceError("consultar evento", err)
	}
	if exists {
		return false, nil
	}
	if err := events.Append(ctx, event); err != nil {
		// Otra sesión lo insertó entre la consulta y la escritura.
		if errors.Is(err, domain.ErrDuplicate) {
			return false, nil
		}
		return false, domain.NewPersistenceError("registrar evento", err)
	}
	return true, nil
}

// Record escribe un evento sin bloquear: los fallos solo se registran en log.
func (uc *ReconciliationUseCase) Record(ctx context.Context, event *entity.AuditEvent) {
	if err := uc.events.Append(ctx, event); err != nil {
		uc.log.Warn().Err(err).
			Str("subject_id", event.SubjectID).
			Str("event_kind", event.Kind).
			Msg("no se pudo registrar evento de auditoría")
	}
}

// ListEvents eventos de una bandeja y de sus líneas en orden cronológico.
func (uc *ReconciliationUseCase) ListEvents(ctx context.Context, trayID string) ([]entity.AuditEvent, error) {
	list, err := uc.events.ListByTray(ctx, trayID)
	if err != nil {
		return nil, domain.NewPersistenceError("listar eventos", err)
	}
	return list, nil
}
