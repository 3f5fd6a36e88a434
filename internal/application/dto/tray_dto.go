package dto

import (
	"time"

	"github.com/jhoicas/Bandejas-api/internal/domain/entity"
	"github.com/jhoicas/Bandejas-api/internal/domain/routing"
)

// TrayResponse bandeja expuesta por la API.
type TrayResponse struct {
	ID             string `json:"id"`
	Number         *int   `json:"number"`
	Label          string `json:"label"`
	Status         string `json:"status"`
	ServiceOrderID string `json:"service_order_id,omitempty"`
	OwnerID        string `json:"owner_id,omitempty"`
	PipelineID     string `json:"pipeline_id,omitempty"`
	StageID        string `json:"stage_id,omitempty"`
	SplitOrigin    bool   `json:"split_origin"`
}

// PlaceholderResponse bandeja sin asignar de una orden de servicio.
type PlaceholderResponse struct {
	Tray    TrayResponse `json:"tray"`
	Created bool         `json:"created"`
}

// TrayToResponse convierte la entidad a su representación HTTP.
func TrayToResponse(t *entity.Tray) TrayResponse {
	return TrayResponse{
		ID:             t.ID,
		Number:         t.Number,
		Label:          t.Label(),
		Status:         t.Status,
		ServiceOrderID: t.ServiceOrderID,
		OwnerID:        t.OwnerID,
		PipelineID:     t.PipelineID,
		StageID:        t.StageID,
		SplitOrigin:    t.SplitOrigin,
	}
}

// SendTraysRequest cuerpo de POST /api/trays/send.
type SendTraysRequest struct {
	TrayIDs []string `json:"tray_ids"`
}

// TrayOutcomeResponse resultado del envío de una bandeja del lote.
type TrayOutcomeResponse struct {
	TrayID      string               `json:"tray_id"`
	Destination *routing.Destination `json:"destination,omitempty"`
	FirstEntry  bool                 `json:"first_entry"`
	Error       *ErrorResponse       `json:"error,omitempty"`
}

// SendTraysResponse reporte del lote; skipped indica que ya había otro envío en curso.
type SendTraysResponse struct {
	Skipped bool                  `json:"skipped"`
	Routed  []TrayOutcomeResponse `json:"routed"`
	Failed  []TrayOutcomeResponse `json:"failed"`
}

// ClaimRequest cantidad de una línea reclamada por una bandeja resultante.
type ClaimRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// AssignmentRequest una bandeja resultante: responsable y líneas reclamadas.
type AssignmentRequest struct {
	OwnerID string         `json:"owner_id"`
	Claims  []ClaimRequest `json:"claims"`
}

// SplitTrayRequest cuerpo de POST /api/trays/:id/split (2 o 3 asignaciones).
type SplitTrayRequest struct {
	Assignments []AssignmentRequest `json:"assignments"`
}

// SplitTrayResponse bandejas resultantes; la primera es la original.
type SplitTrayResponse struct {
	TrayIDs []string `json:"tray_ids"`
}

// ReconcileResponse resultado de un ciclo de conciliación de auditoría.
type ReconcileResponse struct {
	TrayID           string `json:"tray_id"`
	Created          int    `json:"created"`
	Updated          int    `json:"updated"`
	Deleted          int    `json:"deleted"`
	Logged           int    `json:"logged"`
	Failed           int    `json:"failed"`
	BaselineAdvanced bool   `json:"baseline_advanced"`
}

// AuditEventResponse evento del rastro de auditoría.
type AuditEventResponse struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	SubjectID string    `json:"subject_id"`
	TrayID    string    `json:"tray_id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Payload   any       `json:"payload,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditEventToResponse convierte la entidad; el payload se expone como JSON sin reinterpretar.
func AuditEventToResponse(e entity.AuditEvent) AuditEventResponse {
	out := AuditEventResponse{
		ID:        e.ID,
		Type:      e.Type,
		SubjectID: e.SubjectID,
		TrayID:    e.TrayID,
		Kind:      e.Kind,
		Message:   e.Message,
		Actor:     e.Actor,
		CreatedAt: e.CreatedAt,
	}
	if len(e.Payload) > 0 {
		out.Payload = e.Payload
	}
	return out
}
