package httpapi

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/flowgraph/workflow/internal/adapters/definition"
	"github.com/flowgraph/workflow/internal/adapters/functions"
	"github.com/flowgraph/workflow/internal/app/dto"
	"github.com/flowgraph/workflow/internal/app/usecases"
	"github.com/flowgraph/workflow/internal/core/graph"
	"github.com/flowgraph/workflow/internal/core/history"
	"github.com/flowgraph/workflow/internal/core/pregel"
	"github.com/flowgraph/workflow/pkg/validation"
)

var errBadRequest = errors.New("malformed request")

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		fiberErr   *fiber.Error
		validErrs  validation.ValidationErrors
		compileErr *graph.CompilationError
		nodeErr    *pregel.NodeError
		planErr    *pregel.PlanError
	)
	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.Is(err, graph.ErrGraphNotFound),
		errors.Is(err, history.ErrRecordNotFound),
		errors.Is(err, usecases.ErrRunNotActive):
		return fiber.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, definition.ErrUnknownFormat),
		errors.Is(err, dto.ErrMissingWorkflow),
		errors.Is(err, dto.ErrInvalidMaxSteps),
		errors.Is(err, dto.ErrInvalidTimeout),
		errors.Is(err, dto.ErrInvalidInput),
		errors.Is(err, history.ErrInvalidLimit),
		errors.Is(err, history.ErrInvalidOffset),
		errors.Is(err, history.ErrInvalidStatus),
		errors.Is(err, history.ErrInvalidTimeRange):
		return fiber.StatusBadRequest
	case errors.As(err, &validErrs),
		errors.As(err, &compileErr),
		errors.Is(err, functions.ErrUnknownFunction),
		errors.Is(err, functions.ErrInvalidConfig),
		errors.As(err, &nodeErr),
		errors.As(err, &planErr):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

// errorHandler renders every handler error as {"error": ...}.
func (h *Handler) errorHandler(c fiber.Ctx, err error) error {
	status := statusFor(err)
	body := fiber.Map{"error": err.Error()}

	var validErrs validation.ValidationErrors
	if errors.As(err, &validErrs) {
		body["details"] = []validation.ValidationError(validErrs)
	}
	if status >= fiber.StatusInternalServerError {
		h.logger.Error("Request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(body)
}
