package sqlite

import (
	"context"
	"crypto/rand"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/workflow/internal/core/history"
	"github.com/flowgraph/workflow/internal/core/value"
	"github.com/flowgraph/workflow/pkg/serialization"
)

var epoch = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func record(id, workflow string, offset time.Duration) *history.Record {
	start := epoch.Add(offset)
	return &history.Record{
		ID:             id,
		Workflow:       workflow,
		Input:          map[string]value.Value{"raw": value.String("in-" + id)},
		Output:         map[string]value.Value{"final_result": value.Bool(true), "log": value.Strings("x")},
		CompletedNodes: []string{"a", "b"},
		Steps:          2,
		Status:         history.StatusSucceeded,
		StartedAt:      start,
		FinishedAt:     start.Add(1500 * time.Microsecond),
	}
}

func openStore(t *testing.T, serializer *serialization.Serializer) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:", serializer)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, nil)

	r := record("run-1", "router", 0)
	r.BoundExceeded = true
	require.NoError(t, s.Save(ctx, r))

	loaded, err := s.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, r, loaded)

	r.Status = history.StatusFailed
	r.Error = "node \"b\" failed"
	require.NoError(t, s.Save(ctx, r), "save replaces")
	loaded, err = s.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, history.StatusFailed, loaded.Status)
	assert.Equal(t, r.Error, loaded.Error)

	require.NoError(t, s.Delete(ctx, "run-1"))
	_, err = s.Load(ctx, "run-1")
	assert.ErrorIs(t, err, history.ErrRecordNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "run-1"), history.ErrRecordNotFound)
}

func TestStore_EncryptedPayload(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	ser, err := serialization.NewSerializer(serialization.Config{Compression: serialization.CompressionZstd, EncryptKey: key})
	require.NoError(t, err)

	ctx := context.Background()
	s := openStore(t, ser)
	r := record("secret", "router", 0)
	require.NoError(t, s.Save(ctx, r))

	loaded, err := s.Load(ctx, "secret")
	require.NoError(t, err)
	assert.Equal(t, r.Output, loaded.Output)
}

func TestStore_List(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, nil)

	for i := 0; i < 5; i++ {
		wf := "router"
		if i%2 == 1 {
			wf = "linear"
		}
		require.NoError(t, s.Save(ctx, record(fmt.Sprintf("run-%d", i), wf, time.Duration(i)*time.Second)))
	}
	failed := record("run-f", "router", 10*time.Second)
	failed.Status = history.StatusFailed
	require.NoError(t, s.Save(ctx, failed))

	since := epoch.Add(2 * time.Second)
	before := epoch.Add(4 * time.Second)
	tests := []struct {
		name   string
		filter history.Filter
		want   []string
	}{
		{name: "all newest first", filter: history.Filter{}, want: []string{"run-f", "run-4", "run-3", "run-2", "run-1", "run-0"}},
		{name: "by workflow", filter: history.Filter{Workflow: "linear"}, want: []string{"run-3", "run-1"}},
		{name: "by status", filter: history.Filter{Status: history.StatusFailed}, want: []string{"run-f"}},
		{name: "window", filter: history.Filter{Since: &since, Before: &before}, want: []string{"run-3", "run-2"}},
		{name: "offset without limit", filter: history.Filter{Offset: 4}, want: []string{"run-1", "run-0"}},
		{name: "limit and offset", filter: history.Filter{Limit: 2, Offset: 1}, want: []string{"run-4", "run-3"}},
		{name: "no match", filter: history.Filter{Workflow: "missing"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.List(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]string, 0, len(got))
			for _, r := range got {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	_, err := s.List(ctx, history.Filter{Offset: -1})
	assert.ErrorIs(t, err, history.ErrInvalidOffset)
}

func TestStore_WithTableName(t *testing.T) {
	s := NewStore(nil, nil)
	assert.Equal(t, "runs", s.tableName)
	assert.Equal(t, "runs_v2", s.WithTableName("runs_v2").tableName)
	assert.Equal(t, "runs_v2", s.WithTableName("runs; DROP TABLE x").tableName)
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, nil)

	assert.ErrorIs(t, s.Save(ctx, nil), history.ErrInvalidRecordID)
	assert.ErrorIs(t, s.Save(ctx, record("r", "w", 0)), ErrNilDB)

	_, err := s.Load(ctx, "")
	assert.ErrorIs(t, err, history.ErrInvalidRecordID)
	_, err = s.Load(ctx, "r")
	assert.ErrorIs(t, err, ErrNilDB)

	assert.ErrorIs(t, s.Delete(ctx, ""), history.ErrInvalidRecordID)
	_, err = s.List(ctx, history.Filter{})
	assert.ErrorIs(t, err, ErrNilDB)
	assert.ErrorIs(t, s.CreateTables(ctx), ErrNilDB)
	assert.NoError(t, s.Close())
}
