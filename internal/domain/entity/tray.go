package entity

import (
	"strconv"
	"time"
)

// Estados de una bandeja.
const (
	TrayStatusNew       = "new"       // recién creada (intake o destino de división)
	TrayStatusSplit     = "split"     // bandeja origen de una división
	TrayStatusRouted    = "routed"    // enviada a la cola de un departamento
	TrayStatusFinalized = "finalized" // trabajo terminado
)

// Tray representa una bandeja física con instrumentos en servicio.
// Number nil = bandeja "sin asignar" (placeholder); como máximo una por orden de servicio.
type Tray struct {
	ID              string
	Number          *int
	Status          string
	ServiceOrderID  string
	OwnerID         string // técnico responsable (vacío si no tiene)
	Exempt          bool   // bandeja de ventas/sin asignar: no exige departamento único
	SplitOrigin     bool   // bandeja original de una división
	PipelineID      string // destino resuelto (vacío hasta enrutar)
	StageID         string
	AttachmentCount int // adjuntos (fotos, documentos); se gestionan fuera del motor
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsPlaceholder indica si es la bandeja sin número de la orden.
func (t *Tray) IsPlaceholder() bool { return t.Number == nil }

// IsRoutingExempt indica si la bandeja está exenta de la regla de departamento único.
func (t *Tray) IsRoutingExempt() bool { return t.IsPlaceholder() || t.Exempt }

// Label devuelve el número de bandeja legible ("sin asignar" para placeholder).
func (t *Tray) Label() string {
	if t.Number == nil {
		return "sin asignar"
	}
	return strconv.Itoa(*t.Number)
}

// ServiceOrder orden de servicio dueña de las bandejas.
// CustomerReturn refleja la marca de "devolución" del registro del cliente de origen.
type ServiceOrder struct {
	ID             string
	CustomerID     string
	CustomerReturn bool
	CreatedAt      time.Time
}
