package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/Bandejas-api/internal/domain"
	"github.com/jhoicas/Bandejas-api/internal/domain/entity"
	"github.com/jhoicas/Bandejas-api/internal/domain/repository"
)

var (
	_ repository.TrayRepository         = (*TrayRepo)(nil)
	_ repository.ServiceOrderRepository = (*ServiceOrderRepo)(nil)
)

const trayColumns = `id, number, status, COALESCE(service_order_id, ''), COALESCE(owner_id, ''), exempt, split_origin,
	COALESCE(pipeline_id, ''), COALESCE(stage_id, ''), attachment_count, created_at, updated_at`

// TrayRepo implementación de TrayRepository sobre PostgreSQL (usable con pool o tx).
type TrayRepo struct {
	q Querier
}

// NewTrayRepository construye el adaptador de bandejas. Pasar pool o tx (Querier).
func NewTrayRepository(q Querier) *TrayRepo {
	return &TrayRepo{q: q}
}

func scanTray(row pgx.Row) (*entity.Tray, error) {
	var t entity.Tray
	err := row.Scan(&t.ID, &t.Number, &t.Status, &t.ServiceOrderID, &t.OwnerID, &t.Exempt, &t.SplitOrigin,
		&t.PipelineID, &t.StageID, &t.AttachmentCount, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create persiste una bandeja nueva. Número repetido o segunda bandeja sin asignar ⇒ ErrDuplicate.
func (r *TrayRepo) Create(ctx context.Context, tray *entity.Tray) error {
	query := `
		INSERT INTO trays (id, number, status, service_order_id, owner_id, exempt, split_origin, pipeline_id, stage_id, attachment_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.q.Exec(ctx, query,
		tray.ID, tray.Number, tray.Status, nullIfEmpty(tray.ServiceOrderID), nullIfEmpty(tray.OwnerID),
		tray.Exempt, tray.SplitOrigin, nullIfEmpty(tray.PipelineID), nullIfEmpty(tray.StageID),
		tray.AttachmentCount, tray.CreatedAt, tray.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert tray: %w", err)
	}
	return nil
}

// GetByID obtiene una bandeja. Devuelve (nil, nil) si no existe.
func (r *TrayRepo) GetByID(ctx context.Context, id string) (*entity.Tray, error) {
	t, err := scanTray(r.q.QueryRow(ctx, `SELECT `+trayColumns+` FROM trays WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get tray: %w", err)
	}
	return t, nil
}

// Update reescribe los campos mutables (número, estado, responsable, destino).
func (r *TrayRepo) Update(ctx context.Context, tray *entity.Tray) error {
	query := `
		UPDATE trays SET number = $2, status = $3, owner_id = $4, exempt = $5, split_origin = $6,
			pipeline_id = $7, stage_id = $8, updated_at = $9
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		tray.ID, tray.Number, tray.Status, nullIfEmpty(tray.OwnerID), tray.Exempt, tray.SplitOrigin,
		nullIfEmpty(tray.PipelineID), nullIfEmpty(tray.StageID), tray.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("update tray: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFound("tray", tray.ID)
	}
	return nil
}

// Delete elimina la bandeja.
func (r *TrayRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM trays WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete tray: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFound("tray", id)
	}
	return nil
}

// FindPlaceholder bandeja sin número de la orden; (nil, nil) si no hay.
func (r *TrayRepo) FindPlaceholder(ctx context.Context, serviceOrderID string) (*entity.Tray, error) {
	query := `SELECT ` + trayColumns + ` FROM trays WHERE service_order_id = $1 AND number IS NULL LIMIT 1`
	t, err := scanTray(r.q.QueryRow(ctx, query, serviceOrderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find placeholder tray: %w", err)
	}
	return t, nil
}

// NextNumber siguiente número físico. El índice único sobre number detecta carreras entre sesiones.
func (r *TrayRepo) NextNumber(ctx context.Context) (int, error) {
	var n int
	if err := r.q.QueryRow(ctx, `SELECT COALESCE(MAX(number), 0) + 1 FROM trays`).Scan(&n); err != nil {
		return 0, fmt.Errorf("next tray number: %w", err)
	}
	return n, nil
}

// ServiceOrderRepo lectura de órdenes con la marca de devolución de su cliente.
type ServiceOrderRepo struct {
	q Querier
}

// NewServiceOrderRepository construye el adaptador. Pasar pool o tx (Querier).
func NewServiceOrderRepository(q Querier) *ServiceOrderRepo {
	return &ServiceOrderRepo{q: q}
}

// GetByID obtiene la orden. Devuelve (nil, nil) si no existe.
func (r *ServiceOrderRepo) GetByID(ctx context.Context, id string) (*entity.ServiceOrder, error) {
	query := `
		SELECT so.id, COALESCE(so.customer_id, ''), COALESCE(c.is_return, FALSE), so.created_at
		FROM service_orders so
		LEFT JOIN customers c ON c.id = so.customer_id
		WHERE so.id = $1`
	var o entity.ServiceOrder
	err := r.q.QueryRow(ctx, query, id).Scan(&o.ID, &o.CustomerID, &o.CustomerReturn, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get service order: %w", err)
	}
	return &o, nil
}
