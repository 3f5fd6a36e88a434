package ports

import (
	"context"

	"github.com/jhoicas/Bandejas-api/internal/domain/entity"
)

// TrayRoutedNotice aviso de que una bandeja entró a la cola de un departamento.
type TrayRoutedNotice struct {
	Tray           entity.Tray
	DepartmentID   string
	DepartmentName string
	StageName      string
	Actor          string
}

// Notifier envía avisos a colaboradores externos. La entrega es responsabilidad del adaptador;
// los fallos no bloquean la operación principal.
type Notifier interface {
	NotifyTrayRouted(ctx context.Context, notice TrayRoutedNotice) error
}
