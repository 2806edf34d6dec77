package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/flowgraph/workflow/internal/core/value"
)

func validRecord() *Record {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &Record{
		ID:         "run-1",
		Workflow:   "router",
		Status:     StatusSucceeded,
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
	}
}

func TestRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *Record)
		wantErr error
	}{
		{name: "valid", mutate: func(*Record) {}},
		{name: "missing id", mutate: func(r *Record) { r.ID = "" }, wantErr: ErrInvalidRecordID},
		{name: "missing workflow", mutate: func(r *Record) { r.Workflow = "" }, wantErr: ErrInvalidWorkflow},
		{name: "unknown status", mutate: func(r *Record) { r.Status = "paused" }, wantErr: ErrInvalidStatus},
		{name: "finished before start", mutate: func(r *Record) { r.FinishedAt = r.StartedAt.Add(-time.Second) }, wantErr: ErrInvalidTimeRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRecord()
			tt.mutate(r)
			err := r.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	var nilRecord *Record
	assert.ErrorIs(t, nilRecord.Validate(), ErrInvalidRecordID)
}

func TestRecord_Payload(t *testing.T) {
	r := validRecord()
	r.Input = map[string]value.Value{"raw": value.String("x")}
	r.CompletedNodes = []string{"a"}

	var restored Record
	restored.SetPayload(r.Payload())
	assert.Equal(t, r.Input, restored.Input)
	assert.Equal(t, r.CompletedNodes, restored.CompletedNodes)
	assert.Equal(t, time.Second, r.Duration())
}

func TestFilter(t *testing.T) {
	r := validRecord()
	early := r.StartedAt.Add(-time.Hour)
	late := r.StartedAt.Add(time.Hour)

	tests := []struct {
		name      string
		filter    Filter
		wantErr   error
		wantMatch bool
	}{
		{name: "empty matches", filter: Filter{}, wantMatch: true},
		{name: "workflow", filter: Filter{Workflow: "router"}, wantMatch: true},
		{name: "other workflow", filter: Filter{Workflow: "linear"}},
		{name: "status", filter: Filter{Status: StatusFailed}},
		{name: "window", filter: Filter{Since: &early, Before: &late}, wantMatch: true},
		{name: "before excludes start", filter: Filter{Before: &r.StartedAt}},
		{name: "negative limit", filter: Filter{Limit: -1}, wantErr: ErrInvalidLimit},
		{name: "negative offset", filter: Filter{Offset: -1}, wantErr: ErrInvalidOffset},
		{name: "bad status", filter: Filter{Status: "x"}, wantErr: ErrInvalidStatus},
		{name: "inverted window", filter: Filter{Since: &late, Before: &early}, wantErr: ErrInvalidTimeRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filter.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantMatch, tt.filter.Matches(r))
		})
	}
}
