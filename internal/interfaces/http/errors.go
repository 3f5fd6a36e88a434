package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/Bandejas-api/internal/application/dto"
	"github.com/jhoicas/Bandejas-api/internal/domain"
)

// errorStatus traduce un error de dominio a código HTTP y cuerpo de respuesta.
func errorStatus(err error) (int, dto.ErrorResponse) {
	var (
		partial  *domain.PartialSplitError
		mixed    *domain.MixedDepartmentError
		invalid  *domain.ValidationError
		notFound *domain.NotFoundError
		conflict *domain.ConflictError
	)
	switch {
	case errors.As(err, &partial):
		return fiber.StatusInternalServerError, dto.ErrorResponse{
			Code:      "PARTIAL_SPLIT",
			Message:   err.Error(),
			SubjectID: partial.TrayID,
			Details: dto.PartialSplitDetails{
				Succeeded:  nonNil(partial.Succeeded),
				Failed:     nonNil(partial.Failed),
				RolledBack: partial.RolledBack,
			},
		}
	case errors.As(err, &mixed):
		return fiber.StatusUnprocessableEntity, dto.ErrorResponse{
			Code:      string(domain.KindMixedDepartment),
			Message:   err.Error(),
			SubjectID: mixed.TrayID,
			Details:   mixed.Conflicts,
		}
	case errors.As(err, &invalid):
		status := fiber.StatusUnprocessableEntity
		if invalid.Kind == domain.KindInvalidQuantity || invalid.Kind == domain.KindInvalidAssignments {
			status = fiber.StatusBadRequest
		}
		return status, dto.ErrorResponse{Code: string(invalid.Kind), Message: invalid.Message, SubjectID: invalid.SubjectID}
	case errors.As(err, &notFound):
		return fiber.StatusNotFound, dto.ErrorResponse{Code: "NOT_FOUND", Message: err.Error(), SubjectID: notFound.ID}
	case errors.As(err, &conflict):
		return fiber.StatusConflict, dto.ErrorResponse{
			Code:      "CONFLICT",
			Message:   err.Error(),
			SubjectID: conflict.SubjectID,
			Details:   dto.ConflictDetails{Expected: conflict.Expected, Actual: conflict.Actual},
		}
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, dto.ErrorResponse{Code: "NOT_FOUND", Message: err.Error()}
	case errors.Is(err, domain.ErrConflict):
		return fiber.StatusConflict, dto.ErrorResponse{Code: "CONFLICT", Message: err.Error()}
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden, dto.ErrorResponse{Code: "FORBIDDEN", Message: "acceso denegado al recurso"}
	case errors.Is(err, domain.ErrPersistence):
		return fiber.StatusInternalServerError, dto.ErrorResponse{Code: "PERSISTENCE", Message: err.Error()}
	default:
		return fiber.StatusInternalServerError, dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()}
	}
}

func writeError(c *fiber.Ctx, err error) error {
	status, body := errorStatus(err)
	return c.Status(status).JSON(body)
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
