package memory

import (
	"context"
	"slices"

	"github.com/jhoicas/Bandejas-api/internal/domain"
	"github.com/jhoicas/Bandejas-api/internal/domain/entity"
	"github.com/jhoicas/Bandejas-api/internal/domain/repository"
)

var (
	_ repository.TrayRepository         = (*TrayRepo)(nil)
	_ repository.ServiceOrderRepository = (*ServiceOrderRepo)(nil)
	_ repository.LineItemRepository     = (*LineItemRepo)(nil)
	_ repository.DirectoryRepository    = (*DirectoryRepo)(nil)
	_ repository.AuditEventRepository   = (*AuditEventRepo)(nil)
	_ repository.SnapshotRepository     = (*SnapshotRepo)(nil)
)

// ──────────────────────────────────────────────────────────────────────────────
// Bandejas
// ──────────────────────────────────────────────────────────────────────────────

// TrayRepo implementa repository.TrayRepository en memoria.
type TrayRepo struct {
	db *Store
	tx *state
}

func (r *TrayRepo) Create(ctx context.Context, tray *entity.Tray) error {
	if err := r.db.check("trays.create"); err != nil {
		return err
	}
	return r.db.view(r.tx, func(st *state) error {
		if _, ok := st.trays[tray.ID]; ok {
			return domain.ErrDuplicate
		}
		st.trays[tray.ID] = *tray
		return nil
	})
}

func (r *TrayRepo) GetByID(ctx context.Context, id string) (*entity.Tray, error) {
	if err := r.db.check("trays.get"); err != nil {
		return nil, err
	}
	var out *entity.Tray
	err := r.db.view(r.tx, func(st *state) error {
		if t, ok := st.trays[id]; ok {
			out = &t
		}
		return nil
	})
	return out, err
}

func (r *TrayRepo) Update(ctx context.Context, tray *entity.Tray) error {
	if err := r.db.check("trays.update"); err != nil {
		return err
	}
	return r.db.view(r.tx, func(st *state) error {
		if _, ok := st.trays[tray.ID]; !ok {
			return domain.NewNotFound("tray", tray.ID)
		}
		st.trays[tray.ID] = *tray
		return nil
	})
}

func (r *TrayRepo) Delete(ctx context.Context, id string) error {
	if err := r.db.check("trays.delete"); err != nil {
		return err
	}
	return r.db.view(r.tx, func(st *state) error {
		if _, ok := st.trays[id]; !ok {
			return domain.NewNotFound("tray", id)
		}
		delete(st.trays, id)
		return nil
	})
}

func (r *TrayRepo) FindPlaceholder(ctx context.Context, serviceOrderID string) (*entity.Tray, error) {
	var out *entity.Tray
	err := r.db.view(r.tx, func(st *state) error {
		for _, t := range st.trays {
			if t.ServiceOrderID == serviceOrderID && t.IsPlaceholder() {
				out = &t
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *TrayRepo) NextNumber(ctx context.Context) (int, error) {
	next := 1
	err := r.db.view(r.tx, func(st *state) error {
		for _, t := range st.trays {
			if t.Number != nil && *t.Number >= next {
				next = *t.Number + 1
			}
		}
		return nil
	})
	return next, err
}

// ServiceOrderRepo implementa repository.ServiceOrderRepository en memoria.
type ServiceOrderRepo struct {
	db *Store
	tx *state
}

func (r *ServiceOrderRepo) GetByID(ctx context.Context, id string) (*entity.ServiceOrder, error) {
	var out *entity.ServiceOrder
	err := r.db.view(r.tx, func(st *state) error {
		if o, ok := st.orders[id]; ok {
			out = &o
		}
		return nil
	})
	return out, err
}

// ──────────────────────────────────────────────────────────────────────────────
// Líneas
// ──────────────────────────────────────────────────────────────────────────────

// LineItemRepo implementa repository.LineItemRepository en memoria.
type LineItemRepo struct {
	db *Store
	tx *state
}

func (r *LineItemRepo) Create(ctx context.Context, item *entity.LineItem) error {
	if err := r.db.check("items.create"); err != nil {
		return err
	}
	return r.db.view(r.tx, func(st *state) error {
		if _, ok := st.items[item.ID]; ok {
			return domain.ErrDuplicate
		}
		st.putItem(*item)
		return nil
	})
}

func (r *LineItemRepo) GetByID(ctx context.Context, id string) (*entity.LineItem, error) {
	if err := r.db.check("items.get"); err != nil {
		return nil, err
	}
	var out *entity.LineItem
	err := r.db.view(r.tx, func(st *state) error {
		li, ok := st.items[id]
		if !ok {
			return domain.NewNotFound("line_item", id)
		}
		c := li.Clone()
		out = &c
		return nil
	})
	return out, err
}

// GetForUpdate no necesita bloqueo de fila: Run ya serializa las transacciones.
func (r *LineItemRepo) GetForUpdate(ctx context.Context, id string) (*entity.LineItem, error) {
	return r.GetByID(ctx, id)
}

func (r *LineItemRepo) ListByTray(ctx context.Context, trayID string) ([]entity.LineItem, error) {
	if err := r.db.check("items.list"); err != nil {
		return nil, err
	}
	var out []entity.LineItem
	err := r.db.view(r.tx, func(st *state) error {
		for _, id := range st.itemOrder {
			if li := st.items[id]; li.TrayID == trayID {
				out = append(out, li.Clone())
			}
		}
		return nil
	})
	return out, err
}

func (r *LineItemRepo) Update(ctx context.Context, item *entity.LineItem, expectedQty int) error {
	if err := r.db.check("items.update"); err != nil {
		return err
	}
	return r.db.view(r.tx, func(st *state) error {
		cur, ok := st.items[item.ID]
		if !ok {
			return domain.NewNotFound("line_item", item.ID)
		}
		if cur.Quantity != expectedQty {
			return &domain.ConflictError{SubjectID: item.ID, Expected: expectedQty, Actual: cur.Quantity}
		}
		st.putItem(*item)
		return nil
	})
}

func (r *LineItemRepo) Delete(ctx context.Context, id string) error {
	if err := r.db.check("items.delete"); err != nil {
		return err
	}
	return r.db.view(r.tx, func(st *state) error {
		if !st.deleteItem(id) {
			return domain.NewNotFound("line_item", id)
		}
		return nil
	})
}

func (r *LineItemRepo) CountByTray(ctx context.Context, trayID string) (int, error) {
	n := 0
	err := r.db.view(r.tx, func(st *state) error {
		for _, li := range st.items {
			if li.TrayID == trayID {
				n++
			}
		}
		return nil
	})
	return n, err
}

// ──────────────────────────────────────────────────────────────────────────────
// Directorio
// ──────────────────────────────────────────────────────────────────────────────

// DirectoryRepo implementa repository.DirectoryRepository en memoria.
type DirectoryRepo struct {
	db *Store
	tx *state
}

func (r *DirectoryRepo) ListDepartments(ctx context.Context) ([]entity.Department, error) {
	if err := r.db.check("directory.list"); err != nil {
		return nil, err
	}
	var out []entity.Department
	err := r.db.view(r.tx, func(st *state) error {
		out = slices.Clone(st.departments)
		return nil
	})
	return out, err
}

func (r *DirectoryRepo) ListPipelines(ctx context.Context) ([]entity.Pipeline, error) {
	var out []entity.Pipeline
	err := r.db.view(r.tx, func(st *state) error {
		out = slices.Clone(st.pipelines)
		return nil
	})
	return out, err
}

func (r *DirectoryRepo) ListStages(ctx context.Context) ([]entity.Stage, error) {
	var out []entity.Stage
	err := r.db.view(r.tx, func(st *state) error {
		out = slices.Clone(st.stages)
		return nil
	})
	return out, err
}

func (r *DirectoryRepo) InstrumentsByIDs(ctx context.Context, ids []string) ([]entity.Instrument, error) {
	var out []entity.Instrument
	err := r.db.view(r.tx, func(st *state) error {
		for _, id := range ids {
			if in, ok := st.instruments[id]; ok {
				out = append(out, in)
			}
		}
		return nil
	})
	return out, err
}

// ──────────────────────────────────────────────────────────────────────────────
// Auditoría y snapshots
// ──────────────────────────────────────────────────────────────────────────────

// AuditEventRepo implementa repository.AuditEventRepository en memoria.
type AuditEventRepo struct {
	db *Store
	tx *state
}

// Append rechaza con ErrDuplicate un segundo department_entered del mismo sujeto,
// igual que el índice único parcial de PostgreSQL.
func (r *AuditEventRepo) Append(ctx context.Context, event *entity.AuditEvent) error {
	if err := r.db.check("events.append"); err != nil {
		return err
	}
	return r.db.view(r.tx, func(st *state) error {
		if event.Kind == entity.EventDepartmentEntered {
			for _, e := range st.events {
				if e.SubjectID == event.SubjectID && e.Kind == event.Kind {
					return domain.ErrDuplicate
				}
			}
		}
		st.events = append(st.events, *event)
		return nil
	})
}

func (r *AuditEventRepo) Exists(ctx context.Context, subjectID, kind string) (bool, error) {
	if err := r.db.check("events.exists"); err != nil {
		return false, err
	}
	found := false
	err := r.db.view(r.tx, func(st *state) error {
		for _, e := range st.events {
			if e.SubjectID == subjectID && e.Kind == kind {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (r *AuditEventRepo) ListBySubject(ctx context.Context, subjectID string) ([]entity.AuditEvent, error) {
	var out []entity.AuditEvent
	err := r.db.view(r.tx, func(st *state) error {
		for _, e := range st.events {
			if e.SubjectID == subjectID {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}

func (r *AuditEventRepo) ListByTray(ctx context.Context, trayID string) ([]entity.AuditEvent, error) {
	if err := r.db.check("events.list"); err != nil {
		return nil, err
	}
	var out []entity.AuditEvent
	err := r.db.view(r.tx, func(st *state) error {
		for _, e := range st.events {
			if e.TrayID == trayID {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}

// SnapshotRepo implementa repository.SnapshotRepository en memoria.
type SnapshotRepo struct {
	db *Store
	tx *state
}

func (r *SnapshotRepo) Get(ctx context.Context, trayID string) (*entity.Snapshot, error) {
	if err := r.db.check("snapshots.get"); err != nil {
		return nil, err
	}
	var out *entity.Snapshot
	err := r.db.view(r.tx, func(st *state) error {
		if s, ok := st.snapshots[trayID]; ok {
			c := copySnapshot(s)
			out = &c
		}
		return nil
	})
	return out, err
}

func (r *SnapshotRepo) Save(ctx context.Context, snapshot *entity.Snapshot) error {
	if err := r.db.check("snapshots.save"); err != nil {
		return err
	}
	return r.db.view(r.tx, func(st *state) error {
		st.snapshots[snapshot.TrayID] = copySnapshot(*snapshot)
		return nil
	})
}

func copySnapshot(s entity.Snapshot) entity.Snapshot {
	items := make([]entity.ItemSummary, len(s.Items))
	for i, it := range s.Items {
		if it.Identity != nil {
			groups := make([]entity.IdentityGroup, len(it.Identity))
			for j, g := range it.Identity {
				groups[j] = g.Clone()
			}
			it.Identity = groups
		}
		items[i] = it
	}
	s.Items = items
	return s
}
