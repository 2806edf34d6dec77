package dto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/workflow/internal/core/history"
	"github.com/flowgraph/workflow/internal/core/value"
)

func TestExecutionRequest_Validate(t *testing.T) {
	neg, zero := -1, 0
	tests := []struct {
		name    string
		req     ExecutionRequest
		wantErr error
	}{
		{name: "ok", req: ExecutionRequest{Workflow: "wf"}},
		{name: "zero steps allowed", req: ExecutionRequest{Workflow: "wf", Config: ExecutionConfig{MaxSteps: &zero}}},
		{name: "missing workflow", req: ExecutionRequest{}, wantErr: ErrMissingWorkflow},
		{name: "negative steps", req: ExecutionRequest{Workflow: "wf", Config: ExecutionConfig{MaxSteps: &neg}}, wantErr: ErrInvalidMaxSteps},
		{name: "negative timeout", req: ExecutionRequest{Workflow: "wf", Config: ExecutionConfig{Timeout: -time.Second}}, wantErr: ErrInvalidTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestExecutionRequest_Values(t *testing.T) {
	req := ExecutionRequest{Workflow: "wf", Input: map[string]interface{}{"text": "hi", "n": 2}}
	in, err := req.Values()
	require.NoError(t, err)
	assert.Equal(t, value.String("hi"), in["text"])
	assert.Equal(t, value.Number(2), in["n"])

	bad := ExecutionRequest{Workflow: "wf", Input: map[string]interface{}{"ch": make(chan int)}}
	_, err = bad.Values()
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFromRecord(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r := &history.Record{
		ID:       "run-1",
		Workflow: "wf",
		Status:   history.StatusSucceeded,
		Output: map[string]value.Value{
			"final_result": value.String("DONE"),
			"Upper_output": value.String("DONE"),
		},
		Steps:      2,
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
	}

	resp := FromRecord(r)
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, "DONE", resp.FinalResult)
	assert.Equal(t, "DONE", resp.Output["Upper_output"])
	assert.Equal(t, time.Second, resp.Duration)
	assert.Equal(t, []string{}, resp.CompletedNodes)
}
