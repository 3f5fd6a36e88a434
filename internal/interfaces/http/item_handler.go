package http

import (
	"github.com/gofiber/fiber/v2"

	appalloc "github.com/jhoicas/Bandejas-api/internal/application/allocation"
	"github.com/jhoicas/Bandejas-api/internal/application/dto"
	"github.com/jhoicas/Bandejas-api/internal/domain/allocation"
	"github.com/jhoicas/Bandejas-api/internal/domain/entity"
)

// ItemHandler división y consolidación de líneas (protegido).
type ItemHandler struct {
	uc *appalloc.UseCase
}

// NewItemHandler construye el handler.
func NewItemHandler(uc *appalloc.UseCase) *ItemHandler {
	return &ItemHandler{uc: uc}
}

// SplitItem godoc
// @Summary      Dividir una línea entre técnicos o bandejas
// @Tags         items
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                true  "ID de la línea"
// @Param        body  body  dto.SplitItemRequest  true  "porciones (type, id, quantity) y expected_quantity opcional"
// @Success      200   {object}  dto.SplitItemResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/items/{id}/split [post]
func (h *ItemHandler) SplitItem(c *fiber.Ctx) error {
	var in dto.SplitItemRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	reqs := make([]allocation.SplitRequest, 0, len(in.Portions))
	for _, p := range in.Portions {
		reqs = append(reqs, allocation.SplitRequest{
			Destination: entity.Destination{Type: p.Type, ID: p.ID},
			Quantity:    p.Quantity,
		})
	}
	out, err := h.uc.SplitItem(c.UserContext(), appalloc.SplitItemInput{
		ItemID:           c.Params("id"),
		ExpectedQuantity: in.ExpectedQuantity,
		Requests:         reqs,
		Actor:            GetUserID(c),
	})
	if err != nil {
		return writeError(c, err)
	}
	resp := dto.SplitItemResponse{
		SourceID:      out.Result.SourceID,
		Created:       dto.LineItemsToResponse(out.Result.Created),
		DeletedID:     out.Result.DeletedID,
		DeletedTrayID: out.DeletedTrayID,
		Trays:         out.Trays,
	}
	if out.Result.Updated != nil {
		u := dto.LineItemToResponse(*out.Result.Updated)
		resp.Updated = &u
	}
	return c.JSON(resp)
}

// MergeItems godoc
// @Summary      Consolidar líneas iguales de una bandeja
// @Description  Une las líneas con la misma firma (tipo, catálogo, instrumento) del técnico indicado.
// @Tags         trays
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                 true  "ID de la bandeja"
// @Param        body  body  dto.MergeItemsRequest  false "technician_id (vacío = líneas sin técnico)"
// @Success      200   {object}  dto.MergeItemsResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/trays/{id}/merge [post]
func (h *ItemHandler) MergeItems(c *fiber.Ctx) error {
	var in dto.MergeItemsRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return badBody(c)
		}
	}
	trayID := c.Params("id")
	out, err := h.uc.MergeItems(c.UserContext(), trayID, in.TechnicianID, GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.MergeItemsResponse{TrayID: trayID, Merged: out.Merged, SerialGaps: out.SerialGaps})
}
