package notify

import (
	"context"

	"github.com/jhoicas/Bandejas-api/internal/application/ports"
	"github.com/jhoicas/Bandejas-api/pkg/logger"
)

var _ ports.Notifier = (*LogNotifier)(nil)

// LogNotifier deja constancia de cada aviso en el log estructurado.
// La entrega real (correo, chat) la haría otro adaptador con el mismo puerto.
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier construye el notificador.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	if log == nil {
		log = logger.NewNop()
	}
	return &LogNotifier{log: log.Component("notify")}
}

// NotifyTrayRouted registra el envío de la bandeja a su departamento.
func (n *LogNotifier) NotifyTrayRouted(ctx context.Context, notice ports.TrayRoutedNotice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.log.Info().
		Str("tray_id", notice.Tray.ID).
		Str("tray", notice.Tray.Label()).
		Str("owner_id", notice.Tray.OwnerID).
		Str("department_id", notice.DepartmentID).
		Str("department", notice.DepartmentName).
		Str("stage", notice.StageName).
		Str("actor", notice.Actor).
		Msg("bandeja enviada a departamento")
	return nil
}
