package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Bandejas-api/internal/application/audit"
	"github.com/jhoicas/Bandejas-api/internal/application/dto"
)

// AuditHandler conciliación y consulta del rastro de auditoría (protegido).
type AuditHandler struct {
	uc *audit.ReconciliationUseCase
}

// NewAuditHandler construye el handler.
func NewAuditHandler(uc *audit.ReconciliationUseCase) *AuditHandler {
	return &AuditHandler{uc: uc}
}

// Reconcile godoc
// @Summary      Conciliar las líneas de una bandeja con la última base auditada
// @Tags         audit
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la bandeja"
// @Success      200  {object}  dto.ReconcileResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /api/trays/{id}/reconcile [post]
func (h *AuditHandler) Reconcile(c *fiber.Ctx) error {
	res, err := h.uc.DiffAndLog(c.UserContext(), c.Params("id"), GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.ReconcileResponse{
		TrayID:           res.TrayID,
		Created:          len(res.Delta.Created),
		Updated:          len(res.Delta.Updated),
		Deleted:          len(res.Delta.Deleted),
		Logged:           res.Logged,
		Failed:           res.Failed,
		BaselineAdvanced: res.BaselineAdvanced,
	})
}

// ListEvents godoc
// @Summary      Rastro de auditoría de una bandeja
// @Tags         audit
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la bandeja"
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /api/trays/{id}/events [get]
func (h *AuditHandler) ListEvents(c *fiber.Ctx) error {
	events, err := h.uc.ListEvents(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	out := make([]dto.AuditEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, dto.AuditEventToResponse(e))
	}
	return c.JSON(fiber.Map{
		"total":  len(out),
		"events": out,
	})
}
