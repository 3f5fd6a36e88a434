package allocation

import (
	"context"

	"github.com/jhoicas/Bandejas-api/internal/application/audit"
	"github.com/jhoicas/Bandejas-api/internal/domain/entity"
)

// Reconciler cierra cada ciclo de escritura con el rastro de auditoría de las bandejas tocadas.
type Reconciler interface {
	DiffAndLog(ctx context.Context, trayID, actor string) (*audit.DiffResult, error)
	Record(ctx context.Context, event *entity.AuditEvent)
}
