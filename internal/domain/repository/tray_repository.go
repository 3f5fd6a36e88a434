package repository

import (
	"context"

	"github.com/jhoicas/Bandejas-api/internal/domain/entity"
)

// TrayRepository define el puerto de persistencia para bandejas.
// GetByID y FindPlaceholder devuelven (nil, nil) si no existe.
type TrayRepository interface {
	Create(ctx context.Context, tray *entity.Tray) error
	GetByID(ctx context.Context, id string) (*entity.Tray, error)
	Update(ctx context.Context, tray *entity.Tray) error
	Delete(ctx context.Context, id string) error
	FindPlaceholder(ctx context.Context, serviceOrderID string) (*entity.Tray, error)
	// NextNumber devuelve el siguiente número físico de bandeja libre.
	NextNumber(ctx context.Context) (int, error)
}

// ServiceOrderRepository lectura de órdenes de servicio (marca de devolución del cliente).
type ServiceOrderRepository interface {
	GetByID(ctx context.Context, id string) (*entity.ServiceOrder, error)
}
