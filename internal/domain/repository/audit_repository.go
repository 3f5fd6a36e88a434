package repository

import (
	"context"

	"github.com/jhoicas/Bandejas-api/internal/domain/entity"
)

// AuditEventRepository sumidero append-only de eventos de auditoría.
type AuditEventRepository interface {
	Append(ctx context.Context, event *entity.AuditEvent) error
	// Exists se consulta antes de insertar eventos de "primera ocurrencia".
	Exists(ctx context.Context, subjectID, kind string) (bool, error)
	ListBySubject(ctx context.Context, subjectID string) ([]entity.AuditEvent, error)
	// ListByTray eventos de la bandeja y de sus líneas, en orden cronológico.
	ListByTray(ctx context.Context, trayID string) ([]entity.AuditEvent, error)
}

// SnapshotRepository base de conciliación por bandeja. Get devuelve (nil, nil) si no hay base.
type SnapshotRepository interface {
	Get(ctx context.Context, trayID string) (*entity.Snapshot, error)
	Save(ctx context.Context, snapshot *entity.Snapshot) error
}
