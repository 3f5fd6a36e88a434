package repository

import (
	"context"

	"github.com/jhoicas/Bandejas-api/internal/domain/entity"
)

// LineItemRepository define el puerto de persistencia para líneas y sus grupos de identidad.
type LineItemRepository interface {
	Create(ctx context.Context, item *entity.LineItem) error
	GetByID(ctx context.Context, id string) (*entity.LineItem, error)
	// GetForUpdate bloquea la fila cuando el almacenamiento lo soporta (SELECT FOR UPDATE).
	GetForUpdate(ctx context.Context, id string) (*entity.LineItem, error)
	// ListByTray devuelve las líneas en orden de creación.
	ListByTray(ctx context.Context, trayID string) ([]entity.LineItem, error)
	// Update escribe la línea solo si su cantidad persistida sigue siendo expectedQty;
	// si no, devuelve *domain.ConflictError.
	Update(ctx context.Context, item *entity.LineItem, expectedQty int) error
	Delete(ctx context.Context, id string) error
	CountByTray(ctx context.Context, trayID string) (int, error)
}
