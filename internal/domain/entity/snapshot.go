package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemSummary resumen persistido de una línea; base de comparación de la conciliación.
type ItemSummary struct {
	ID                   string          `json:"id"`
	Signature            Signature       `json:"signature"`
	Quantity             int             `json:"qty"`
	UnrepairableQuantity int             `json:"unrepaired_qty"`
	Price                decimal.Decimal `json:"price"`
	DiscountPct          decimal.Decimal `json:"discount_pct"`
	Urgent               bool            `json:"urgent"`
	DepartmentID         string          `json:"department_id,omitempty"`
	TechnicianID         string          `json:"technician_id,omitempty"`
	Identity             []IdentityGroup `json:"identity,omitempty"`
}

// Snapshot último estado persistido de las líneas de una bandeja.
type Snapshot struct {
	TrayID  string
	Items   []ItemSummary
	TakenAt time.Time
}

// SummarizeItem construye el resumen de una línea.
func SummarizeItem(li LineItem) ItemSummary {
	c := li.Clone()
	return ItemSummary{
		ID:                   c.ID,
		Signature:            c.Signature(),
		Quantity:             c.Quantity,
		UnrepairableQuantity: c.UnrepairableQuantity,
		Price:                c.Price,
		DiscountPct:          c.DiscountPct,
		Urgent:               c.Urgent,
		DepartmentID:         c.DepartmentID,
		TechnicianID:         c.TechnicianID,
		Identity:             c.Identity,
	}
}

// SummarizeItems resume un conjunto de líneas preservando el orden.
func SummarizeItems(items []LineItem) []ItemSummary {
	out := make([]ItemSummary, 0, len(items))
	for _, li := range items {
		out = append(out, SummarizeItem(li))
	}
	return out
}
