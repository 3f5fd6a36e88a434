package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	appalloc "github.com/jhoicas/Bandejas-api/internal/application/allocation"
	"github.com/jhoicas/Bandejas-api/internal/application/dto"
	approuting "github.com/jhoicas/Bandejas-api/internal/application/routing"
	"github.com/jhoicas/Bandejas-api/internal/application/traysplit"
)

// TrayHandler enrutamiento, división y bandejas sin asignar (protegido).
type TrayHandler struct {
	routing *approuting.UseCase
	split   *traysplit.Orchestrator
	alloc   *appalloc.UseCase
}

// NewTrayHandler construye el handler.
func NewTrayHandler(routing *approuting.UseCase, split *traysplit.Orchestrator, alloc *appalloc.UseCase) *TrayHandler {
	return &TrayHandler{routing: routing, split: split, alloc: alloc}
}

// ResolveDestination godoc
// @Summary      Calcular el departamento destino de una bandeja
// @Tags         trays
// @Security     Bearer
// @Produce      json
// @Param        id           path   string  true   "ID de la bandeja"
// @Param        allow_empty  query  bool    false  "permitir enrutar bandejas vacías al departamento de respaldo"
// @Success      200  {object}  routing.Destination
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      422  {object}  dto.ErrorResponse
// @Router       /api/trays/{id}/destination [get]
func (h *TrayHandler) ResolveDestination(c *fiber.Ctx) error {
	dest, err := h.routing.ResolveDestination(c.UserContext(), c.Params("id"), approuting.ResolveOptions{
		AllowEmpty: c.QueryBool("allow_empty", false),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dest)
}

// RouteSheet godoc
// @Summary      Hoja de ruta imprimible (PDF) de una bandeja
// @Tags         trays
// @Security     Bearer
// @Produce      application/pdf
// @Param        id   path  string  true  "ID de la bandeja"
// @Success      200  {file}    binary
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      501  {object}  dto.ErrorResponse
// @Router       /api/trays/{id}/sheet [get]
func (h *TrayHandler) RouteSheet(c *fiber.Ctx) error {
	doc, err := h.routing.RouteSheet(c.UserContext(), c.Params("id"))
	if errors.Is(err, approuting.ErrNoRouteSheets) {
		return c.Status(fiber.StatusNotImplemented).JSON(dto.ErrorResponse{Code: "NOT_CONFIGURED", Message: err.Error()})
	}
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `inline; filename="bandeja-`+c.Params("id")+`.pdf"`)
	return c.Send(doc)
}

// SendTrays godoc
// @Summary      Enviar bandejas a la cola de su departamento
// @Description  Cada bandeja se enruta por separado; un fallo no detiene el lote.
// @Tags         trays
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.SendTraysRequest  true  "tray_ids"
// @Success      200   {object}  dto.SendTraysResponse
// @Success      202   {object}  dto.SendTraysResponse "otro envío en curso; lote omitido"
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/trays/send [post]
func (h *TrayHandler) SendTrays(c *fiber.Ctx) error {
	var in dto.SendTraysRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if len(in.TrayIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "tray_ids es obligatorio"})
	}
	report := h.routing.SendTrays(c.UserContext(), in.TrayIDs, GetUserID(c))
	resp := dto.SendTraysResponse{
		Skipped: report.Skipped,
		Routed:  outcomes(report.Routed),
		Failed:  outcomes(report.Failed),
	}
	if report.Skipped {
		return c.Status(fiber.StatusAccepted).JSON(resp)
	}
	return c.JSON(resp)
}

func outcomes(in []approuting.TrayOutcome) []dto.TrayOutcomeResponse {
	out := make([]dto.TrayOutcomeResponse, 0, len(in))
	for _, o := range in {
		r := dto.TrayOutcomeResponse{TrayID: o.TrayID, Destination: o.Destination, FirstEntry: o.FirstEntry}
		if o.Err != nil {
			_, body := errorStatus(o.Err)
			r.Error = &body
		}
		out = append(out, r)
	}
	return out
}

// SplitTray godoc
// @Summary      Dividir una bandeja en 2 o 3 bandejas reales
// @Description  La primera asignación conserva la bandeja original. Todo o nada.
// @Tags         trays
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                true  "ID de la bandeja"
// @Param        body  body  dto.SplitTrayRequest  true  "assignments (owner_id, claims)"
// @Success      201   {object}  dto.SplitTrayResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Failure      500   {object}  dto.ErrorResponse "PARTIAL_SPLIT con bandejas ok/fallidas"
// @Router       /api/trays/{id}/split [post]
func (h *TrayHandler) SplitTray(c *fiber.Ctx) error {
	var in dto.SplitTrayRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	assignments := make([]traysplit.Assignment, 0, len(in.Assignments))
	for _, a := range in.Assignments {
		claims := make([]traysplit.Claim, 0, len(a.Claims))
		for _, cl := range a.Claims {
			claims = append(claims, traysplit.Claim{ItemID: cl.ItemID, Quantity: cl.Quantity})
		}
		assignments = append(assignments, traysplit.Assignment{OwnerID: a.OwnerID, Claims: claims})
	}
	out, err := h.split.SplitToRealTrays(c.UserContext(), traysplit.SplitTraysInput{
		TrayID:      c.Params("id"),
		Actor:       GetUserID(c),
		Assignments: assignments,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SplitTrayResponse{TrayIDs: out.TrayIDs})
}

// EnsurePlaceholder godoc
// @Summary      Obtener o crear la bandeja sin asignar de una orden de servicio
// @Tags         service-orders
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la orden de servicio"
// @Success      200  {object}  dto.PlaceholderResponse
// @Success      201  {object}  dto.PlaceholderResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/service-orders/{id}/placeholder [post]
func (h *TrayHandler) EnsurePlaceholder(c *fiber.Ctx) error {
	tray, created, err := h.alloc.EnsurePlaceholder(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(dto.PlaceholderResponse{Tray: dto.TrayToResponse(tray), Created: created})
}
