// Package httpapi exposes the workflow service over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/flowgraph/workflow/internal/app/usecases"
	"github.com/flowgraph/workflow/internal/infrastructure/ctxlog"
)

// Handler serves the HTTP surface of a WorkflowService.
type Handler struct {
	service *usecases.WorkflowService
	logger  *slog.Logger
	timeout time.Duration
}

// Options tunes New.
type Options struct {
	Logger *slog.Logger
	// RequestTimeout bounds invocations that do not set their own timeout.
	RequestTimeout time.Duration
	// BodyLimit caps definition and invocation bodies, in bytes.
	BodyLimit int
}

// New builds the fiber app with every route registered.
func New(service *usecases.WorkflowService, opts Options) *fiber.App {
	if opts.Logger == nil {
		opts.Logger = ctxlog.FromContext(context.Background())
	}
	if opts.BodyLimit == 0 {
		opts.BodyLimit = 4 * 1024 * 1024
	}
	h := &Handler{service: service, logger: opts.Logger, timeout: opts.RequestTimeout}

	app := fiber.New(fiber.Config{
		AppName:      "flowgraph",
		BodyLimit:    opts.BodyLimit,
		ErrorHandler: h.errorHandler,
	})
	h.Register(app)
	return app
}

// Register adds the routes to app.
func (h *Handler) Register(app *fiber.App) {
	app.Get("/healthz", h.health)
	app.Get("/metrics", h.metrics)

	// ── Workflows ─────────────────────────────────────────────────────
	app.Get("/workflows", h.listWorkflows)
	app.Post("/workflows", h.registerWorkflow)
	app.Get("/workflows/:name", h.getWorkflow)
	app.Delete("/workflows/:name", h.deleteWorkflow)
	app.Post("/workflows/:name/invoke", h.invoke)

	// ── Runs ──────────────────────────────────────────────────────────
	app.Get("/runs", h.listRuns)
	app.Get("/runs/active", h.activeRuns)
	app.Get("/runs/:id", h.getRun)
	app.Delete("/runs/:id", h.deleteRun)
	app.Post("/runs/:id/cancel", h.cancelRun)
}

// ctx attaches the handler logger to the request context.
func (h *Handler) ctx(c fiber.Ctx) context.Context {
	return ctxlog.WithLogger(c.Context(), h.logger)
}
