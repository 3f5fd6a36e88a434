package dto

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Bandejas-api/internal/domain/allocation"
	"github.com/jhoicas/Bandejas-api/internal/domain/entity"
)

// SplitPortionRequest una porción de la línea hacia un técnico o una bandeja.
type SplitPortionRequest struct {
	Type     string `json:"type"` // technician | tray
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

// SplitItemRequest cuerpo de POST /api/items/:id/split.
// ExpectedQuantity es la cantidad que mostraba el cliente; se omite la verificación si falta.
type SplitItemRequest struct {
	ExpectedQuantity *int                  `json:"expected_quantity,omitempty"`
	Portions         []SplitPortionRequest `json:"portions"`
}

// IdentityGroupDTO marca, seriales y garantía de una línea.
type IdentityGroupDTO struct {
	Brand    string   `json:"brand,omitempty"`
	Serials  []string `json:"serials"`
	Warranty bool     `json:"warranty"`
}

// LineItemResponse línea tal como queda persistida.
type LineItemResponse struct {
	ID                   string             `json:"id"`
	TrayID               string             `json:"tray_id"`
	Kind                 string             `json:"kind"`
	CatalogID            string             `json:"catalog_id,omitempty"`
	InstrumentID         string             `json:"instrument_id,omitempty"`
	DepartmentID         string             `json:"department_id,omitempty"`
	TechnicianID         string             `json:"technician_id,omitempty"`
	Quantity             int                `json:"quantity"`
	UnrepairableQuantity int                `json:"unrepairable_quantity"`
	Price                decimal.Decimal    `json:"price"`
	DiscountPct          decimal.Decimal    `json:"discount_pct"`
	Urgent               bool               `json:"urgent"`
	Identity             []IdentityGroupDTO `json:"identity,omitempty"`
}

// SplitItemResponse resultado de la división de una línea.
type SplitItemResponse struct {
	SourceID      string             `json:"source_id"`
	Created       []LineItemResponse `json:"created"`
	Updated       *LineItemResponse  `json:"updated,omitempty"`
	DeletedID     string             `json:"deleted_id,omitempty"`
	DeletedTrayID string             `json:"deleted_tray_id,omitempty"`
	Trays         []string           `json:"trays"`
}

// MergeItemsRequest cuerpo de POST /api/trays/:id/merge.
type MergeItemsRequest struct {
	TechnicianID string `json:"technician_id"`
}

// MergeItemsResponse filas absorbidas por la consolidación y líneas con seriales repetidos.
type MergeItemsResponse struct {
	TrayID     string                 `json:"tray_id"`
	Merged     int                    `json:"merged"`
	SerialGaps []allocation.SerialGap `json:"serial_gaps,omitempty"`
}

// LineItemToResponse convierte la entidad a su representación HTTP.
func LineItemToResponse(li entity.LineItem) LineItemResponse {
	out := LineItemResponse{
		ID:                   li.ID,
		TrayID:               li.TrayID,
		Kind:                 string(li.Kind),
		CatalogID:            li.CatalogID,
		InstrumentID:         li.InstrumentID,
		DepartmentID:         li.DepartmentID,
		TechnicianID:         li.TechnicianID,
		Quantity:             li.Quantity,
		UnrepairableQuantity: li.UnrepairableQuantity,
		Price:                li.Price,
		DiscountPct:          li.DiscountPct,
		Urgent:               li.Urgent,
	}
	for _, g := range li.Identity {
		out.Identity = append(out.Identity, IdentityGroupDTO{
			Brand:    g.Brand,
			Serials:  append([]string{}, g.Serials...),
			Warranty: g.Warranty,
		})
	}
	return out
}

// LineItemsToResponse convierte un listado de líneas.
func LineItemsToResponse(items []entity.LineItem) []LineItemResponse {
	out := make([]LineItemResponse, 0, len(items))
	for _, li := range items {
		out = append(out, LineItemToResponse(li))
	}
	return out
}
