package ports

import (
	"context"
	"time"

	"github.com/jhoicas/Bandejas-api/internal/domain/entity"
	"github.com/jhoicas/Bandejas-api/internal/domain/routing"
)

// RouteSheet datos de la hoja de ruta impresa que acompaña a la bandeja física.
// Destination es nil cuando no se pudo resolver; Unresolved explica el motivo.
type RouteSheet struct {
	Tray        entity.Tray
	Destination *routing.Destination
	Unresolved  string
	Items       []entity.LineItem
	GeneratedAt time.Time
}

// RouteSheetRenderer genera el documento (PDF) de una hoja de ruta.
type RouteSheetRenderer interface {
	RenderRouteSheet(ctx context.Context, sheet RouteSheet) ([]byte, error)
}
