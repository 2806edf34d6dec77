package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/workflow/internal/adapters/functions"
	"github.com/flowgraph/workflow/internal/adapters/httpapi"
	graphrepo "github.com/flowgraph/workflow/internal/adapters/repository/graph"
	"github.com/flowgraph/workflow/internal/adapters/repository/memory"
	"github.com/flowgraph/workflow/internal/app/usecases"
	"github.com/flowgraph/workflow/internal/core/history"
	"github.com/flowgraph/workflow/pkg/validation"
)

func newTestServer(t *testing.T) (*fiber.App, *usecases.WorkflowService, *workloadManager) {
	t.Helper()
	store := memory.New(memory.Config{})
	t.Cleanup(func() { _ = store.Close() })
	svc, err := usecases.NewWorkflowService(graphrepo.NewInMemoryGraphRepository(), store, functions.Builtins(), usecases.ServiceConfig{})
	require.NoError(t, err)

	_, err = svc.RegisterDefinition(context.Background(), &validation.WorkflowConfig{
		Name:   "echo",
		Entry:  "Echo",
		Finish: "Echo",
		Nodes:  []validation.NodeConfig{{Name: "Echo", Function: "identity"}},
	})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app := httpapi.New(svc, httpapi.Options{Logger: logger})
	wm := newWorkloadManager(svc, logger)
	wm.register(app)
	t.Cleanup(wm.shutdown)
	return app, svc, wm
}

func call(t *testing.T, app *fiber.App, method, path, body string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestWorkload_StartStop(t *testing.T) {
	app, svc, _ := newTestServer(t)

	status, body := call(t, app, http.MethodPost, "/workload/echo/start?rate_ms=5", `{"input": {"msg": "ping"}}`)
	require.Equal(t, http.StatusAccepted, status, body)

	status, _ = call(t, app, http.MethodPost, "/workload/echo/start", "")
	assert.Equal(t, http.StatusConflict, status)

	status, body = call(t, app, http.MethodGet, "/workload", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `["echo"]`, body)

	require.Eventually(t, func() bool {
		runs, err := svc.Runs(context.Background(), history.Filter{Workflow: "echo"})
		return err == nil && len(runs) >= 2
	}, 2*time.Second, 10*time.Millisecond)

	status, _ = call(t, app, http.MethodPost, "/workload/echo/stop", "")
	assert.Equal(t, http.StatusOK, status)

	status, _ = call(t, app, http.MethodPost, "/workload/echo/stop", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestWorkload_StartErrors(t *testing.T) {
	app, _, _ := newTestServer(t)
	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{name: "unknown workflow", path: "/workload/nope/start", want: http.StatusNotFound},
		{name: "bad rate", path: "/workload/echo/start?rate_ms=fast", want: http.StatusBadRequest},
		{name: "zero rate", path: "/workload/echo/start?rate_ms=0", want: http.StatusBadRequest},
		{name: "bad body", path: "/workload/echo/start", body: `{"input": `, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := call(t, app, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.want, status)
		})
	}
}
