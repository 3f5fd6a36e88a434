package reconciliation

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/Bandejas-api/internal/domain/entity"
)

// Campos rastreados por la conciliación.
const (
	FieldQuantity     = "quantity"
	FieldUnrepairable = "unrepairable_quantity"
	FieldPrice        = "price"
	FieldDiscount     = "discount_pct"
	FieldUrgent       = "urgent"
	FieldDepartment   = "department_id"
	FieldTechnician   = "technician_id"
	FieldIdentity     = "identity"
)

// Change una línea presente en la base y en el estado actual con campos distintos.
type Change struct {
	Before  entity.ItemSummary
	After   entity.ItemSummary
	Changed []string
}

// Delta resultado mínimo de comparar la base con el estado actual.
type Delta struct {
	Created []entity.ItemSummary
	Updated []Change
	Deleted []entity.ItemSummary
}

// Empty indica que no hay cambios.
func (d Delta) Empty() bool {
	return len(d.Created) == 0 && len(d.Updated) == 0 && len(d.Deleted) == 0
}

// Len número total de deltas (= eventos a emitir).
func (d Delta) Len() int { return len(d.Created) + len(d.Updated) + len(d.Deleted) }

// Diff compara por id estable la base previa con las líneas actuales.
// Orden de salida: creados y actualizados en el orden de current, eliminados en el orden de prev.
func Diff(prev []entity.ItemSummary, current []entity.LineItem) Delta {
	prevByID := make(map[string]entity.ItemSummary, len(prev))
	for _, p := range prev {
		prevByID[p.ID] = p
	}
	seen := make(map[string]struct{}, len(current))

	var d Delta
	for _, li := range current {
		cur := entity.SummarizeItem(li)
		seen[cur.ID] = struct{}{}
		before, ok := prevByID[cur.ID]
		if !ok {
			d.Created = append(d.Created, cur)
			continue
		}
		if changed := changedFields(before, cur); len(changed) > 0 {
			d.Updated = append(d.Updated, Change{Before: before, After: cur, Changed: changed})
		}
	}
	for _, p := range prev {
		if _, ok := seen[p.ID]; !ok {
			d.Deleted = append(d.Deleted, p)
		}
	}
	return d
}

func changedFields(a, b entity.ItemSummary) []string {
	var out []string
	if a.Quantity != b.Quantity {
		out = append(out, FieldQuantity)
	}
	if a.UnrepairableQuantity != b.UnrepairableQuantity {
		out = append(out, FieldUnrepairable)
	}
	if !a.Price.Equal(b.Price) {
		out = append(out, FieldPrice)
	}
	if !a.DiscountPct.Equal(b.DiscountPct) {
		out = append(out, FieldDiscount)
	}
	if a.Urgent != b.Urgent {
		out = append(out, FieldUrgent)
	}
	if a.DepartmentID != b.DepartmentID {
		out = append(out, FieldDepartment)
	}
	if a.TechnicianID != b.TechnicianID {
		out = append(out, FieldTechnician)
	}
	if !sameIdentity(a.Identity, b.Identity) {
		out = append(out, FieldIdentity)
	}
	return out
}

// sameIdentity trata nil y vacío como iguales (la base viene de JSON).
func sameIdentity(a, b []entity.IdentityGroup) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Brand != b[i].Brand || a[i].Warranty != b[i].Warranty || len(a[i].Serials) != len(b[i].Serials) {
			return false
		}
		if len(a[i].Serials) > 0 && !reflect.DeepEqual(a[i].Serials, b[i].Serials) {
			return false
		}
	}
	return true
}

// EventPayload carga estructurada antes/después de un evento de línea.
type EventPayload struct {
	TrayID  string              `json:"tray_id"`
	Before  *entity.ItemSummary `json:"before,omitempty"`
	After   *entity.ItemSummary `json:"after,omitempty"`
	Changed []string            `json:"changed,omitempty"`
}

// Events construye exactamente un evento por delta.
func Events(trayID string, d Delta, actor string, now time.Time) ([]entity.AuditEvent, error) {
	events := make([]entity.AuditEvent, 0, d.Len())
	add := func(subjectID, kind, msg string, p EventPayload) error {
		p.TrayID = trayID
		raw, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("payload de %s: %w", subjectID, err)
		}
		events = append(events, entity.AuditEvent{
			ID:        uuid.NewString(),
			Type:      entity.AuditTypeLineItem,
			SubjectID: subjectID,
			TrayID:    trayID,
			Kind:      kind,
			Message:   msg,
			Payload:   raw,
			Actor:     actor,
			CreatedAt: now,
		})
		return nil
	}

	for i := range d.Created {
		c := d.Created[i]
		msg := fmt.Sprintf("Línea agregada: %s x%d", c.Signature, c.Quantity)
		if err := add(c.ID, entity.EventItemCreated, msg, EventPayload{After: &c}); err != nil {
			return nil, err
		}
	}
	for i := range d.Updated {
		u := d.Updated[i]
		msg := fmt.Sprintf("Línea modificada: %s (%s)", u.After.Signature, describe(u))
		if err := add(u.After.ID, entity.EventItemUpdated, msg, EventPayload{Before: &u.Before, After: &u.After, Changed: u.Changed}); err != nil {
			return nil, err
		}
	}
	for i := range d.Deleted {
		del := d.Deleted[i]
		msg := fmt.Sprintf("Línea eliminada: %s x%d", del.Signature, del.Quantity)
		if err := add(del.ID, entity.EventItemDeleted, msg, EventPayload{Before: &del}); err != nil {
			return nil, err
		}
	}
	return events, nil
}

func describe(c Change) string {
	out := ""
	for i, f := range c.Changed {
		if i > 0 {
			out += ", "
		}
		switch f {
		case FieldQuantity:
			out += fmt.Sprintf("cantidad %d → %d", c.Before.Quantity, c.After.Quantity)
		case FieldTechnician:
			out += fmt.Sprintf("técnico %q → %q", c.Before.TechnicianID, c.After.TechnicianID)
		case FieldPrice:
			out += fmt.Sprintf("precio %s → %s", c.Before.Price, c.After.Price)
		default:
			out += f
		}
	}
	return out
}
