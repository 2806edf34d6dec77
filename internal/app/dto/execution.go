package dto

import (
	"fmt"
	"time"

	"github.com/flowgraph/workflow/internal/core/history"
	"github.com/flowgraph/workflow/internal/core/value"
)

// ExecutionRequest represents a request to invoke a registered workflow
type ExecutionRequest struct {
	Workflow string                 `json:"workflow"`
	Input    map[string]interface{} `json:"input"`
	Config   ExecutionConfig        `json:"config"`
}

// ExecutionConfig contains per-run overrides.
type ExecutionConfig struct {
	// MaxSteps overrides the workflow and service bounds when set. Zero is a
	// legal bound that runs nothing.
	MaxSteps *int          `json:"max_steps,omitempty"`
	Timeout  time.Duration `json:"timeout,omitempty"`
	// NoCache disables the node result cache for this run.
	NoCache bool `json:"no_cache,omitempty"`
}

// ExecutionResponse represents the outcome of one run
type ExecutionResponse struct {
	RunID          string                 `json:"run_id"`
	Workflow       string                 `json:"workflow"`
	Status         history.Status         `json:"status"`
	Output         map[string]interface{} `json:"output"`
	FinalResult    interface{}            `json:"final_result,omitempty"`
	CompletedNodes []string               `json:"completed_nodes"`
	Steps          int                    `json:"steps"`
	BoundExceeded  bool                   `json:"bound_exceeded"`
	StartTime      time.Time              `json:"start_time"`
	EndTime        time.Time              `json:"end_time"`
	Duration       time.Duration          `json:"duration"`
	Error          string                 `json:"error,omitempty"`
}

// Validate validates the execution request
func (req *ExecutionRequest) Validate() error {
	if req.Workflow == "" {
		return ErrMissingWorkflow
	}
	if req.Config.MaxSteps != nil && *req.Config.MaxSteps < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxSteps, *req.Config.MaxSteps)
	}
	if req.Config.Timeout < 0 {
		return ErrInvalidTimeout
	}
	return nil
}

// Values converts the request input into channel seeds.
func (req *ExecutionRequest) Values() (map[string]value.Value, error) {
	in, err := value.FromMap(req.Input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return in, nil
}

// FromRecord builds a response from a stored run.
func FromRecord(r *history.Record) *ExecutionResponse {
	resp := &ExecutionResponse{
		RunID:          r.ID,
		Workflow:       r.Workflow,
		Status:         r.Status,
		Output:         value.ToMap(r.Output),
		CompletedNodes: r.CompletedNodes,
		Steps:          r.Steps,
		BoundExceeded:  r.BoundExceeded,
		StartTime:      r.StartedAt,
		EndTime:        r.FinishedAt,
		Duration:       r.Duration(),
		Error:          r.Error,
	}
	if v, ok := r.Output["final_result"]; ok {
		resp.FinalResult = v.Native()
	}
	if resp.CompletedNodes == nil {
		resp.CompletedNodes = []string{}
	}
	return resp
}
