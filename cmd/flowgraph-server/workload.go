package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/flowgraph/workflow/internal/app/dto"
	"github.com/flowgraph/workflow/internal/app/usecases"
	"github.com/flowgraph/workflow/internal/infrastructure/ctxlog"
)

// workloadManager invokes registered workflows on a ticker so /metrics has
// something to show. One loop per workflow.
type workloadManager struct {
	service *usecases.WorkflowService
	logger  *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

type workloadBody struct {
	Input map[string]interface{} `json:"input"`
}

func newWorkloadManager(svc *usecases.WorkflowService, logger *slog.Logger) *workloadManager {
	return &workloadManager{service: svc, logger: logger, cancels: make(map[string]context.CancelFunc)}
}

func (m *workloadManager) register(app *fiber.App) {
	app.Get("/workload", m.list)
	app.Post("/workload/:name/start", m.start)
	app.Post("/workload/:name/stop", m.stop)
}

func (m *workloadManager) start(c fiber.Ctx) error {
	name := c.Params("name")
	if _, err := m.service.Workflow(c.Context(), name); err != nil {
		return err
	}

	rate := 200 * time.Millisecond
	if v := c.Query("rate_ms"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid rate_ms %q", v))
		}
		rate = time.Duration(ms) * time.Millisecond
	}
	var body workloadBody
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid body")
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, running := m.cancels[name]; running {
		return fiber.NewError(fiber.StatusConflict, "workload already running for "+name)
	}
	ctx, cancel := context.WithCancel(ctxlog.WithLogger(context.Background(), m.logger))
	m.cancels[name] = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.loop(ctx, name, body.Input, rate)
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"workflow": name, "rate_ms": rate.Milliseconds()})
}

func (m *workloadManager) stop(c fiber.Ctx) error {
	name := c.Params("name")
	m.mu.Lock()
	cancel, running := m.cancels[name]
	delete(m.cancels, name)
	m.mu.Unlock()
	if !running {
		return fiber.NewError(fiber.StatusNotFound, "no workload running for "+name)
	}
	cancel()
	return c.JSON(fiber.Map{"workflow": name, "stopped": true})
}

func (m *workloadManager) list(c fiber.Ctx) error {
	m.mu.Lock()
	names := make([]string, 0, len(m.cancels))
	for n := range m.cancels {
		names = append(names, n)
	}
	m.mu.Unlock()
	sort.Strings(names)
	return c.JSON(names)
}

// shutdown stops every loop and waits for in-flight runs.
func (m *workloadManager) shutdown() {
	m.mu.Lock()
	for n, cancel := range m.cancels {
		cancel()
		delete(m.cancels, n)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *workloadManager) loop(ctx context.Context, name string, input map[string]interface{}, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, err := m.service.Invoke(ctx, &dto.ExecutionRequest{Workflow: name, Input: input})
			if err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Debug("Workload run failed", "workflow", name, "error", err)
			}
		}
	}
}
