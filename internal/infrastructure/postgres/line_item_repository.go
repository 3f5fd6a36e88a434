package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Bandejas-api/internal/domain"
	"github.com/jhoicas/Bandejas-api/internal/domain/entity"
	"github.com/jhoicas/Bandejas-api/internal/domain/repository"
)

var _ repository.LineItemRepository = (*LineItemRepo)(nil)

const lineItemColumns = `id, tray_id, service_id, part_id, COALESCE(instrument_id, ''), COALESCE(department_id, ''),
	COALESCE(technician_id, ''), qty, unrepaired_qty, price, discount_pct, notes, created_at, updated_at`

// LineItemRepo implementación de LineItemRepository sobre PostgreSQL (usable con pool o tx).
// Los grupos de identidad viven en item_brands / item_serials.
type LineItemRepo struct {
	q Querier
}

// NewLineItemRepository construye el adaptador de líneas. Pasar pool o tx (Querier).
func NewLineItemRepository(q Querier) *LineItemRepo {
	return &LineItemRepo{q: q}
}

// lineRow fila leída más la identidad heredada de notes.
type lineRow struct {
	item   entity.LineItem
	legacy *entity.IdentityGroup
}

func scanLineItem(row pgx.Row) (*lineRow, error) {
	var (
		li        entity.LineItem
		serviceID *string
		partID    *string
		price     *decimal.Decimal
		discount  *decimal.Decimal
		notes     []byte
	)
	err := row.Scan(&li.ID, &li.TrayID, &serviceID, &partID, &li.InstrumentID, &li.DepartmentID,
		&li.TechnicianID, &li.Quantity, &li.UnrepairableQuantity, &price, &discount, &notes, &li.CreatedAt, &li.UpdatedAt)
	if err != nil {
		return nil, err
	}
	li.Kind, li.CatalogID = kindFromColumns(serviceID, partID)
	dn, err := decodeNotes(notes, li.Kind)
	if err != nil {
		return nil, fmt.Errorf("line item %s: %w", li.ID, err)
	}
	dn.notes.applyTo(&li)
	if err := applyMoney(&li, price, discount); err != nil {
		return nil, fmt.Errorf("line item %s: %w", li.ID, err)
	}
	return &lineRow{item: li, legacy: dn.legacy}, nil
}

// Create persiste la línea y sus grupos de identidad.
func (r *LineItemRepo) Create(ctx context.Context, item *entity.LineItem) error {
	notes, err := encodeNotes(item)
	if err != nil {
		return err
	}
	serviceID, partID := catalogColumns(item)
	price, discount := moneyColumns(item)
	query := `
		INSERT INTO line_items (id, tray_id, service_id, part_id, instrument_id, department_id, technician_id, qty, unrepaired_qty,
			price, discount_pct, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err = r.q.Exec(ctx, query,
		item.ID, item.TrayID, serviceID, partID, nullIfEmpty(item.InstrumentID), nullIfEmpty(item.DepartmentID),
		nullIfEmpty(item.TechnicianID), item.Quantity, item.UnrepairableQuantity, price, discount, notes, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert line item: %w", err)
	}
	return r.writeIdentity(ctx, item)
}

// GetByID obtiene la línea con su identidad.
func (r *LineItemRepo) GetByID(ctx context.Context, id string) (*entity.LineItem, error) {
	return r.getOne(ctx, `SELECT `+lineItemColumns+` FROM line_items WHERE id = $1`, id)
}

// GetForUpdate obtiene la línea y bloquea la fila (SELECT FOR UPDATE).
func (r *LineItemRepo) GetForUpdate(ctx context.Context, id string) (*entity.LineItem, error) {
	return r.getOne(ctx, `SELECT `+lineItemColumns+` FROM line_items WHERE id = $1 FOR UPDATE`, id)
}

func (r *LineItemRepo) getOne(ctx context.Context, query, id string) (*entity.LineItem, error) {
	row, err := scanLineItem(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFound("line_item", id)
		}
		return nil, fmt.Errorf("get line item: %w", err)
	}
	items, err := r.withIdentity(ctx, []*lineRow{row})
	if err != nil {
		return nil, err
	}
	return &items[0], nil
}

// ListByTray líneas de la bandeja en orden de creación.
func (r *LineItemRepo) ListByTray(ctx context.Context, trayID string) ([]entity.LineItem, error) {
	query := `SELECT ` + lineItemColumns + ` FROM line_items WHERE tray_id = $1 ORDER BY created_at, seq`
	rows, err := r.q.Query(ctx, query, trayID)
	if err != nil {
		return nil, fmt.Errorf("list line items: %w", err)
	}
	defer rows.Close()
	var list []*lineRow
	for rows.Next() {
		row, err := scanLineItem(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	return r.withIdentity(ctx, list)
}

// Update escribe la línea solo si qty sigue siendo expectedQty (control optimista).
func (r *LineItemRepo) Update(ctx context.Context, item *entity.LineItem, expectedQty int) error {
	notes, err := encodeNotes(item)
	if err != nil {
		return err
	}
	serviceID, partID := catalogColumns(item)
	price, discount := moneyColumns(item)
	query := `
		UPDATE line_items SET tray_id = $2, service_id = $3, part_id = $4, instrument_id = $5, department_id = $6,
			technician_id = $7, qty = $8, unrepaired_qty = $9, price = $10, discount_pct = $11, notes = $12, updated_at = $13
		WHERE id = $1 AND qty = $14`
	tag, err := r.q.Exec(ctx, query,
		item.ID, item.TrayID, serviceID, partID, nullIfEmpty(item.InstrumentID), nullIfEmpty(item.DepartmentID),
		nullIfEmpty(item.TechnicianID), item.Quantity, item.UnrepairableQuantity, price, discount, notes, item.UpdatedAt, expectedQty,
	)
	if err != nil {
		return fmt.Errorf("update line item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var actual int
		err := r.q.QueryRow(ctx, `SELECT qty FROM line_items WHERE id = $1`, item.ID).Scan(&actual)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NewNotFound("line_item", item.ID)
		}
		if err != nil {
			return fmt.Errorf("check line item qty: %w", err)
		}
		return &domain.ConflictError{SubjectID: item.ID, Expected: expectedQty, Actual: actual}
	}
	return r.writeIdentity(ctx, item)
}

// Delete elimina la línea; item_brands / item_serials caen por ON DELETE CASCADE.
func (r *LineItemRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM line_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete line item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFound("line_item", id)
	}
	return nil
}

// CountByTray número de líneas de la bandeja.
func (r *LineItemRepo) CountByTray(ctx context.Context, trayID string) (int, error) {
	var n int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM line_items WHERE tray_id = $1`, trayID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count line items: %w", err)
	}
	return n, nil
}

// writeIdentity reemplaza los grupos de identidad de la línea.
func (r *LineItemRepo) writeIdentity(ctx context.Context, item *entity.LineItem) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM item_brands WHERE item_id = $1`, item.ID); err != nil {
		return fmt.Errorf("clear item brands: %w", err)
	}
	for i, g := range item.Identity {
		brandID := uuid.NewString()
		_, err := r.q.Exec(ctx,
			`INSERT INTO item_brands (id, item_id, brand, garantie, position) VALUES ($1, $2, $3, $4, $5)`,
			brandID, item.ID, nullIfEmpty(g.Brand), g.Warranty, i)
		if err != nil {
			return fmt.Errorf("insert item brand: %w", err)
		}
		for j, serial := range g.Serials {
			_, err := r.q.Exec(ctx,
				`INSERT INTO item_serials (id, brand_id, serial_number, position) VALUES ($1, $2, $3, $4)`,
				uuid.NewString(), brandID, serial, j)
			if err != nil {
				return fmt.Errorf("insert item serial: %w", err)
			}
		}
	}
	return nil
}

// withIdentity carga los grupos de todas las líneas en una sola consulta.
// Sin filas en item_brands se usa la identidad heredada de notes.
func (r *LineItemRepo) withIdentity(ctx context.Context, list []*lineRow) ([]entity.LineItem, error) {
	if len(list) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(list))
	for _, row := range list {
		ids = append(ids, row.item.ID)
	}
	query := `
		SELECT b.id, b.item_id, COALESCE(b.brand, ''), b.garantie, s.serial_number
		FROM item_brands b
		LEFT JOIN item_serials s ON s.brand_id = b.id
		WHERE b.item_id = ANY($1)
		ORDER BY b.item_id, b.position, s.position`
	rows, err := r.q.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("list item identity: %w", err)
	}
	defer rows.Close()

	groups := make(map[string][]entity.IdentityGroup, len(list))
	lastBrand := make(map[string]string, len(list))
	for rows.Next() {
		var (
			brandID, itemID, brand string
			warranty               bool
			serial                 *string
		)
		if err := rows.Scan(&brandID, &itemID, &brand, &warranty, &serial); err != nil {
			return nil, err
		}
		gs := groups[itemID]
		if lastBrand[itemID] != brandID {
			gs = append(gs, entity.IdentityGroup{Brand: brand, Serials: []string{}, Warranty: warranty})
			lastBrand[itemID] = brandID
		}
		if serial != nil {
			gs[len(gs)-1].Serials = append(gs[len(gs)-1].Serials, *serial)
		}
		groups[itemID] = gs
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]entity.LineItem, 0, len(list))
	for _, row := range list {
		li := row.item
		if gs, ok := groups[li.ID]; ok {
			li.Identity = gs
		} else if row.legacy != nil {
			li.Identity = []entity.IdentityGroup{*row.legacy}
		}
		out = append(out, li)
	}
	return out, nil
}
