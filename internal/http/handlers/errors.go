package handlers

import (
	"errors"

	"carmarket/internal/domain"
	applog "carmarket/internal/log"

	"github.com/gofiber/fiber/v2"
)

const friendlyMessage = "Something went wrong. Please try again."

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// classify maps a service error to an HTTP status and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.StatusBadRequest, "validation"
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusForbidden, "unauthorized"
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrDuplicateRequest):
		return fiber.StatusConflict, "duplicate_request"
	case errors.Is(err, domain.ErrOutOfStock):
		return fiber.StatusConflict, "out_of_stock"
	case errors.Is(err, domain.ErrInvalidTransition):
		return fiber.StatusConflict, "invalid_transition"
	}
	return fiber.StatusInternalServerError, "internal"
}

// message is what the client sees. Only the sentinel text (or the field
// message for validation) leaves the process; wrapped ids and causes do not.
func message(err error) string {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	for _, s := range []error{
		domain.ErrUnauthorized, domain.ErrNotFound, domain.ErrDuplicateRequest,
		domain.ErrOutOfStock, domain.ErrInvalidTransition, domain.ErrValidation,
	} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return friendlyMessage
}

// mapError writes the JSON error response for a failed service call.
func mapError(c *fiber.Ctx, action string, err error) error {
	ctx := c.UserContext()
	code, kind := classify(err)
	if code == fiber.StatusInternalServerError {
		applog.Error(ctx, action+".fail", err, nil)
		return c.Status(code).JSON(apiError{Error: friendlyMessage, Code: kind})
	}
	applog.Info(ctx, action+".refused", map[string]any{"status": code, "code": kind, "reason": err.Error()})
	return c.Status(code).JSON(apiError{Error: message(err), Code: kind})
}

func badBody(c *fiber.Ctx, action string, err error) error {
	applog.Security(c.UserContext(), "validation.fail", map[string]any{"action": action, "reason": err.Error()})
	return c.Status(fiber.StatusBadRequest).JSON(apiError{Error: "malformed request body", Code: "validation"})
}

// ErrorHandler is the app-wide fiber error handler. Client errors raised by
// fiber keep their status; anything else is logged and answered with a
// generic message.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
		return c.Status(fe.Code).JSON(apiError{Error: fe.Message, Code: "http"})
	}
	applog.Error(c.UserContext(), "server.error", err, nil)
	return c.Status(fiber.StatusInternalServerError).JSON(apiError{Error: friendlyMessage, Code: "internal"})
}
