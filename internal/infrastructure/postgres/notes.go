package postgres

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Bandejas-api/internal/domain/entity"
)

var hundred = decimal.NewFromInt(100)

// itemNotes columna notes de line_items como variante etiquetada por item_type.
// El dinero vive en las columnas price / discount_pct; notes solo conserva precio y descuento
// heredados de filas antiguas, que se leen pero ya no se escriben.
type itemNotes interface {
	itemType() entity.LineItemKind
	applyTo(li *entity.LineItem)
}

type serviceNotes struct {
	Price       *decimal.Decimal `json:"price,omitempty"`
	DiscountPct *decimal.Decimal `json:"discount_pct,omitempty"`
	Urgent      bool             `json:"urgent"`
}

func (serviceNotes) itemType() entity.LineItemKind { return entity.KindService }

func (n serviceNotes) applyTo(li *entity.LineItem) {
	li.Price, li.DiscountPct, li.Urgent = valueOrZero(n.Price), valueOrZero(n.DiscountPct), n.Urgent
}

type partNotes struct {
	Price  *decimal.Decimal `json:"price,omitempty"`
	Urgent bool             `json:"urgent"`
}

func (partNotes) itemType() entity.LineItemKind { return entity.KindPart }

func (n partNotes) applyTo(li *entity.LineItem) {
	li.Price, li.DiscountPct, li.Urgent = valueOrZero(n.Price), decimal.Zero, n.Urgent
}

type bareNotes struct {
	Urgent bool `json:"urgent"`
}

func (bareNotes) itemType() entity.LineItemKind { return entity.KindBareInstrument }

func (n bareNotes) applyTo(li *entity.LineItem) {
	li.Price, li.DiscountPct, li.Urgent = decimal.Zero, decimal.Zero, n.Urgent
}

func valueOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

// notesFor construye la variante a persistir desde la línea.
func notesFor(li *entity.LineItem) (itemNotes, error) {
	switch li.Kind {
	case entity.KindService:
		return serviceNotes{Urgent: li.Urgent}, nil
	case entity.KindPart:
		return partNotes{Urgent: li.Urgent}, nil
	case entity.KindBareInstrument:
		return bareNotes{Urgent: li.Urgent}, nil
	}
	return nil, fmt.Errorf("tipo de línea desconocido %q", li.Kind)
}

// moneyColumns valores de price / discount_pct para la fila; NULL donde el tipo no los usa.
func moneyColumns(li *entity.LineItem) (price, discount *decimal.Decimal) {
	switch li.Kind {
	case entity.KindService:
		p, d := li.Price, li.DiscountPct
		return &p, &d
	case entity.KindPart:
		p := li.Price
		return &p, nil
	}
	return nil, nil
}

// applyMoney aplica las columnas NUMERIC sobre lo leído de notes. Una columna NULL conserva el valor heredado.
func applyMoney(li *entity.LineItem, price, discount *decimal.Decimal) error {
	if price != nil && li.Kind != entity.KindBareInstrument {
		if price.IsNegative() {
			return fmt.Errorf("price: precio negativo %s", price)
		}
		li.Price = *price
	}
	if discount != nil && li.Kind == entity.KindService {
		if discount.IsNegative() || discount.GreaterThan(hundred) {
			return fmt.Errorf("discount_pct: descuento fuera de rango %s", discount)
		}
		li.DiscountPct = *discount
	}
	return nil
}

// encodeNotes serializa la variante con su etiqueta item_type.
func encodeNotes(li *entity.LineItem) ([]byte, error) {
	n, err := notesFor(li)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("encode notes: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("encode notes: %w", err)
	}
	tag, _ := json.Marshal(string(n.itemType()))
	fields["item_type"] = tag
	return json.Marshal(fields)
}

// rawNotes forma en disco: campos de todas las variantes más los campos heredados de identidad.
type rawNotes struct {
	ItemType     string           `json:"item_type"`
	Price        *decimal.Decimal `json:"price"`
	DiscountPct  *decimal.Decimal `json:"discount_pct"`
	Urgent       bool             `json:"urgent"`
	Brand        string           `json:"brand"`
	SerialNumber string           `json:"serial_number"`
	Garantie     bool             `json:"garantie"`
}

// decodedNotes resultado validado de leer la columna notes.
type decodedNotes struct {
	notes  itemNotes
	legacy *entity.IdentityGroup // identidad heredada guardada en notes (sin filas en item_brands)
}

// decodeNotes valida notes contra el tipo deducido de las columnas service_id/part_id.
// Acepta documentos guardados como cadena JSON (doble codificación de datos antiguos).
func decodeNotes(raw []byte, columnKind entity.LineItemKind) (decodedNotes, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return decodedNotes{}, fmt.Errorf("notes: %w", err)
		}
		raw = bytes.TrimSpace([]byte(inner))
	}

	var rn rawNotes
	if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		if err := json.Unmarshal(raw, &rn); err != nil {
			return decodedNotes{}, fmt.Errorf("notes: %w", err)
		}
	}

	kind := columnKind
	if rn.ItemType != "" && entity.LineItemKind(rn.ItemType) != columnKind {
		return decodedNotes{}, fmt.Errorf("notes: item_type %q no coincide con la fila (%s)", rn.ItemType, columnKind)
	}

	price := decimal.Zero
	if rn.Price != nil {
		price = *rn.Price
	}
	discount := decimal.Zero
	if rn.DiscountPct != nil {
		discount = *rn.DiscountPct
	}
	if price.IsNegative() {
		return decodedNotes{}, fmt.Errorf("notes: precio negativo %s", price)
	}
	if discount.IsNegative() || discount.GreaterThan(hundred) {
		return decodedNotes{}, fmt.Errorf("notes: descuento fuera de rango %s", discount)
	}

	var out decodedNotes
	switch kind {
	case entity.KindService:
		out.notes = serviceNotes{Price: &price, DiscountPct: &discount, Urgent: rn.Urgent}
	case entity.KindPart:
		out.notes = partNotes{Price: &price, Urgent: rn.Urgent}
	default:
		out.notes = bareNotes{Urgent: rn.Urgent}
	}
	if rn.Brand != "" || rn.SerialNumber != "" {
		g := entity.IdentityGroup{Brand: rn.Brand, Serials: []string{}, Warranty: rn.Garantie}
		if rn.SerialNumber != "" {
			g.Serials = append(g.Serials, rn.SerialNumber)
		}
		out.legacy = &g
	}
	return out, nil
}

// kindFromColumns deduce el tipo por las referencias de catálogo de la fila.
func kindFromColumns(serviceID, partID *string) (entity.LineItemKind, string) {
	switch {
	case serviceID != nil && *serviceID != "":
		return entity.KindService, *serviceID
	case partID != nil && *partID != "":
		return entity.KindPart, *partID
	}
	return entity.KindBareInstrument, ""
}

// catalogColumns inversa de kindFromColumns para escribir la fila.
func catalogColumns(li *entity.LineItem) (serviceID, partID *string) {
	switch li.Kind {
	case entity.KindService:
		return nullIfEmpty(li.CatalogID), nil
	case entity.KindPart:
		return nil, nullIfEmpty(li.CatalogID)
	}
	return nil, nil
}
