package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/workflow/internal/core/history"
	"github.com/flowgraph/workflow/internal/core/value"
)

func TestStore_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("Integration test requires DATABASE_URL")
	}
	ctx := context.Background()

	s, err := Connect(ctx, dsn, nil)
	require.NoError(t, err)
	defer s.Close()
	table := "runs_test_" + uuid.NewString()[:8]
	s.WithTableName(table)
	require.NoError(t, s.CreateTables(ctx))
	t.Cleanup(func() { _, _ = s.pool.Exec(context.Background(), "DROP TABLE "+table) })

	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	r := &history.Record{
		ID:             "run-1",
		Workflow:       "router",
		Input:          map[string]value.Value{"raw": value.String("in")},
		Output:         map[string]value.Value{"final_result": value.Number(3)},
		CompletedNodes: []string{"a"},
		Steps:          1,
		Status:         history.StatusSucceeded,
		StartedAt:      start,
		FinishedAt:     start.Add(time.Millisecond),
	}
	require.NoError(t, s.Save(ctx, r))

	loaded, err := s.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, r, loaded)

	list, err := s.List(ctx, history.Filter{Workflow: "router"})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.Delete(ctx, "run-1"))
	_, err = s.Load(ctx, "run-1")
	assert.ErrorIs(t, err, history.ErrRecordNotFound)
}

func TestStore_BuildListQuery(t *testing.T) {
	since := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewStore(nil, nil)

	tests := []struct {
		name      string
		filter    history.Filter
		wantWhere string
		wantTail  string
		wantArgs  int
	}{
		{name: "empty", filter: history.Filter{}, wantTail: "ORDER BY started_at DESC, id ASC"},
		{
			name:      "all filters",
			filter:    history.Filter{Workflow: "w", Status: history.StatusFailed, Since: &since, Before: &since, Limit: 5, Offset: 2},
			wantWhere: "WHERE workflow = $1 AND status = $2 AND started_at >= $3 AND started_at < $4",
			wantTail:  "LIMIT $5 OFFSET $6",
			wantArgs:  6,
		},
		{name: "offset only", filter: history.Filter{Offset: 3}, wantTail: "OFFSET $1", wantArgs: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := s.buildListQuery(tt.filter)
			assert.Contains(t, query, "FROM runs")
			if tt.wantWhere != "" {
				assert.Contains(t, query, tt.wantWhere)
			} else {
				assert.NotContains(t, query, "WHERE")
			}
			assert.Contains(t, query, tt.wantTail)
			assert.Len(t, args, tt.wantArgs)
		})
	}
}

func TestStore_WithTableName(t *testing.T) {
	s := NewStore(nil, nil)
	assert.Equal(t, "archive_1", s.WithTableName("archive_1").tableName)
	assert.Equal(t, "archive_1", s.WithTableName("bad-name").tableName)
	assert.Equal(t, "archive_1", s.WithTableName("").tableName)
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, nil)

	assert.ErrorIs(t, s.Save(ctx, nil), history.ErrInvalidRecordID)
	assert.ErrorIs(t, s.Save(ctx, &history.Record{ID: "x", Workflow: "w", Status: history.StatusSucceeded}), ErrNilPool)

	_, err := s.Load(ctx, "")
	assert.ErrorIs(t, err, history.ErrInvalidRecordID)
	_, err = s.Load(ctx, "x")
	assert.ErrorIs(t, err, ErrNilPool)

	assert.ErrorIs(t, s.Delete(ctx, ""), history.ErrInvalidRecordID)
	assert.ErrorIs(t, s.Delete(ctx, "x"), ErrNilPool)

	_, err = s.List(ctx, history.Filter{Limit: -1})
	assert.ErrorIs(t, err, history.ErrInvalidLimit)
	_, err = s.List(ctx, history.Filter{})
	assert.ErrorIs(t, err, ErrNilPool)

	assert.ErrorIs(t, s.CreateTables(ctx), ErrNilPool)
	s.Close()
}
