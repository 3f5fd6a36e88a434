package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/Bandejas-api/internal/domain"
	"github.com/jhoicas/Bandejas-api/internal/domain/entity"
	"github.com/jhoicas/Bandejas-api/internal/domain/repository"
)

var (
	_ repository.AuditEventRepository = (*AuditEventRepo)(nil)
	_ repository.SnapshotRepository   = (*SnapshotRepo)(nil)
)

// AuditEventRepo sumidero append-only sobre audit_events.
type AuditEventRepo struct {
	q Querier
}

// NewAuditEventRepository construye el adaptador. Pasar pool o tx (Querier).
func NewAuditEventRepository(q Querier) *AuditEventRepo {
	return &AuditEventRepo{q: q}
}

// Append inserta el evento. El índice único parcial de department_entered devuelve ErrDuplicate.
func (r *AuditEventRepo) Append(ctx context.Context, event *entity.AuditEvent) error {
	payload := event.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	query := `
		INSERT INTO audit_events (id, type, subject_id, tray_id, event_kind, message, payload, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(ctx, query,
		event.ID, event.Type, event.SubjectID, nullIfEmpty(event.TrayID), event.Kind, event.Message,
		[]byte(payload), nullIfEmpty(event.Actor), event.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Exists consulta previa a los eventos de primera ocurrencia.
func (r *AuditEventRepo) Exists(ctx context.Context, subjectID, kind string) (bool, error) {
	var ok bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM audit_events WHERE subject_id = $1 AND event_kind = $2)`,
		subjectID, kind).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("exists audit event: %w", err)
	}
	return ok, nil
}

func (r *AuditEventRepo) ListBySubject(ctx context.Context, subjectID string) ([]entity.AuditEvent, error) {
	return r.list(ctx, `WHERE subject_id = $1`, subjectID)
}

func (r *AuditEventRepo) ListByTray(ctx context.Context, trayID string) ([]entity.AuditEvent, error) {
	return r.list(ctx, `WHERE tray_id = $1`, trayID)
}

func (r *AuditEventRepo) list(ctx context.Context, where, arg string) ([]entity.AuditEvent, error) {
	query := `
		SELECT id, type, subject_id, COALESCE(tray_id, ''), event_kind, message, payload, COALESCE(actor, ''), created_at
		FROM audit_events ` + where + `
		ORDER BY created_at, seq`
	rows, err := r.q.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()
	var list []entity.AuditEvent
	for rows.Next() {
		var (
			e       entity.AuditEvent
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.Type, &e.SubjectID, &e.TrayID, &e.Kind, &e.Message, &payload, &e.Actor, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Payload = json.RawMessage(payload)
		list = append(list, e)
	}
	return list, rows.Err()
}

// SnapshotRepo base de conciliación por bandeja en item_snapshots.
type SnapshotRepo struct {
	q Querier
}

// NewSnapshotRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSnapshotRepository(q Querier) *SnapshotRepo {
	return &SnapshotRepo{q: q}
}

// Get devuelve la base o (nil, nil) si la bandeja nunca se concilió.
func (r *SnapshotRepo) Get(ctx context.Context, trayID string) (*entity.Snapshot, error) {
	var (
		s       entity.Snapshot
		payload []byte
	)
	err := r.q.QueryRow(ctx, `SELECT tray_id, payload, taken_at FROM item_snapshots WHERE tray_id = $1`, trayID).
		Scan(&s.TrayID, &payload, &s.TakenAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	if err := json.Unmarshal(payload, &s.Items); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", trayID, err)
	}
	return &s, nil
}

// Save reemplaza la base de la bandeja.
func (r *SnapshotRepo) Save(ctx context.Context, snapshot *entity.Snapshot) error {
	items := snapshot.Items
	if items == nil {
		items = []entity.ItemSummary{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	query := `
		INSERT INTO item_snapshots (tray_id, payload, taken_at) VALUES ($1, $2, $3)
		ON CONFLICT (tray_id) DO UPDATE SET payload = EXCLUDED.payload, taken_at = EXCLUDED.taken_at`
	if _, err := r.q.Exec(ctx, query, snapshot.TrayID, payload, snapshot.TakenAt); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
