package httpapi

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/flowgraph/workflow/internal/adapters/definition"
	graphrepo "github.com/flowgraph/workflow/internal/adapters/repository/graph"
	"github.com/flowgraph/workflow/internal/app/dto"
	"github.com/flowgraph/workflow/internal/core/graph"
	"github.com/flowgraph/workflow/internal/core/history"
)

// workflowView is the JSON form of a registered workflow.
type workflowView struct {
	Name         string         `json:"name"`
	Version      int            `json:"version"`
	RegisteredAt time.Time      `json:"registered_at"`
	Topology     graph.Topology `json:"topology"`
}

func viewOf(e graphrepo.Entry) workflowView {
	return workflowView{
		Name:         e.Graph.Name(),
		Version:      e.Version,
		RegisteredAt: e.RegisteredAt,
		Topology:     e.Graph.Describe(),
	}
}

// invokeBody is the request body of POST /workflows/:name/invoke.
type invokeBody struct {
	Input     map[string]interface{} `json:"input"`
	MaxSteps  *int                   `json:"max_steps,omitempty"`
	TimeoutMs int                    `json:"timeout_ms,omitempty"`
	NoCache   bool                   `json:"no_cache,omitempty"`
}

func (h *Handler) health(c fiber.Ctx) error {
	return c.SendString("ok")
}

func (h *Handler) listWorkflows(c fiber.Ctx) error {
	entries, err := h.service.Workflows(h.ctx(c))
	if err != nil {
		return err
	}
	out := make([]workflowView, len(entries))
	for i, e := range entries {
		out[i] = viewOf(e)
	}
	return c.JSON(out)
}

// registerWorkflow accepts a definition document. The format comes from the
// format query parameter, then the Content-Type header, defaulting to YAML.
func (h *Handler) registerWorkflow(c fiber.Ctx) error {
	name := c.Query("format")
	if name == "" {
		name = c.Get(fiber.HeaderContentType)
	}
	format, err := definition.ParseFormat(name)
	if err != nil {
		return err
	}
	wc, err := definition.Parse(c.Body(), format, "request")
	if err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	entry, err := h.service.RegisterDefinition(h.ctx(c), wc)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(viewOf(entry))
}

func (h *Handler) getWorkflow(c fiber.Ctx) error {
	entry, err := h.service.Workflow(h.ctx(c), c.Params("name"))
	if err != nil {
		return err
	}
	return c.JSON(viewOf(entry))
}

func (h *Handler) deleteWorkflow(c fiber.Ctx) error {
	if err := h.service.Unregister(h.ctx(c), c.Params("name")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// invoke runs a workflow. A failed run still answers with the run record.
func (h *Handler) invoke(c fiber.Ctx) error {
	var body invokeBody
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&body); err != nil {
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
	}
	req := &dto.ExecutionRequest{
		Workflow: c.Params("name"),
		Input:    body.Input,
		Config: dto.ExecutionConfig{
			MaxSteps: body.MaxSteps,
			Timeout:  time.Duration(body.TimeoutMs) * time.Millisecond,
			NoCache:  body.NoCache,
		},
	}
	if req.Config.Timeout == 0 {
		req.Config.Timeout = h.timeout
	}

	resp, err := h.service.Invoke(h.ctx(c), req)
	if err != nil {
		if resp == nil {
			return err
		}
		return c.Status(statusFor(err)).JSON(resp)
	}
	return c.JSON(resp)
}

func (h *Handler) listRuns(c fiber.Ctx) error {
	filter := history.Filter{
		Workflow: c.Query("workflow"),
		Status:   history.Status(c.Query("status")),
	}
	var err error
	if filter.Limit, err = queryInt(c, "limit", 50); err != nil {
		return err
	}
	if filter.Offset, err = queryInt(c, "offset", 0); err != nil {
		return err
	}
	if err := filter.Validate(); err != nil {
		return err
	}

	runs, err := h.service.Runs(h.ctx(c), filter)
	if err != nil {
		return err
	}
	return c.JSON(runs)
}

func (h *Handler) activeRuns(c fiber.Ctx) error {
	return c.JSON(h.service.Active())
}

func (h *Handler) getRun(c fiber.Ctx) error {
	run, err := h.service.Run(h.ctx(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(run)
}

func (h *Handler) deleteRun(c fiber.Ctx) error {
	if err := h.service.DeleteRun(h.ctx(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) cancelRun(c fiber.Ctx) error {
	if err := h.service.Cancel(c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusAccepted)
}

func queryInt(c fiber.Ctx, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", errBadRequest, key, raw)
	}
	return n, nil
}
