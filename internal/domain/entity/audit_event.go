package entity

import (
	"encoding/json"
	"time"
)

// Tipos de sujeto de eventos de auditoría.
const (
	AuditTypeLineItem = "line_item"
	AuditTypeTray     = "tray"
)

// Clases de evento de auditoría.
const (
	EventItemCreated       = "item_created"
	EventItemUpdated       = "item_updated"
	EventItemDeleted       = "item_deleted"
	EventItemsMerged       = "items_merged"
	EventTraySplit         = "tray_split"
	EventDepartmentEntered = "department_entered" // primera entrada de la bandeja a un departamento (solo una vez)
)

// AuditEvent registro append-only de auditoría. TrayID es la bandeja en la que ocurrió
// (igual a SubjectID para eventos de bandeja).
type AuditEvent struct {
	ID        string
	Type      string
	SubjectID string
	TrayID    string
	Kind      string
	Message   string
	Payload   json.RawMessage
	Actor     string
	CreatedAt time.Time
}
