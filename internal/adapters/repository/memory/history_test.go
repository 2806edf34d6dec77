package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/workflow/internal/core/history"
	"github.com/flowgraph/workflow/internal/core/value"
)

var epoch = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func record(id, workflow string, offset time.Duration) *history.Record {
	start := epoch.Add(offset)
	return &history.Record{
		ID:             id,
		Workflow:       workflow,
		Input:          map[string]value.Value{"raw": value.String("in-" + id)},
		Output:         map[string]value.Value{"final_result": value.String("out-" + id)},
		CompletedNodes: []string{"a", "b"},
		Steps:          2,
		Status:         history.StatusSucceeded,
		StartedAt:      start,
		FinishedAt:     start.Add(time.Millisecond),
	}
}

// newStore returns a store whose clock the test controls.
func newStore(t *testing.T, cfg Config) (*Store, *time.Time) {
	t.Helper()
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Hour
	}
	s := New(cfg)
	t.Cleanup(func() { _ = s.Close() })

	clock := epoch
	s.mu.Lock()
	s.now = func() time.Time { return clock }
	s.mu.Unlock()
	return s, &clock
}

func TestStore_BasicOperations(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t, Config{})
	r := record("run-1", "router", 0)

	require.NoError(t, s.Save(ctx, r))

	loaded, err := s.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, r, loaded)
	assert.NotSame(t, r, loaded)

	require.NoError(t, s.Delete(ctx, "run-1"))
	_, err = s.Load(ctx, "run-1")
	assert.ErrorIs(t, err, history.ErrRecordNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "run-1"), history.ErrRecordNotFound)
	assert.Zero(t, s.Stats().SizeBytes)
}

func TestStore_Validation(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t, Config{})

	assert.ErrorIs(t, s.Save(ctx, &history.Record{}), history.ErrInvalidRecordID)
	_, err := s.Load(ctx, "")
	assert.ErrorIs(t, err, history.ErrInvalidRecordID)
	assert.ErrorIs(t, s.Delete(ctx, ""), history.ErrInvalidRecordID)
	_, err = s.List(ctx, history.Filter{Limit: -1})
	assert.ErrorIs(t, err, history.ErrInvalidLimit)
}

func TestStore_ReplaceKeepsSizeAccurate(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t, Config{})
	r := record("run-1", "router", 0)

	require.NoError(t, s.Save(ctx, r))
	first := s.Stats().SizeBytes
	require.NoError(t, s.Save(ctx, r))

	st := s.Stats()
	assert.Equal(t, 1, st.Count)
	assert.Equal(t, first, st.SizeBytes)
}

func TestStore_TTL(t *testing.T) {
	ctx := context.Background()
	s, clock := newStore(t, Config{DefaultTTL: time.Minute})
	require.NoError(t, s.Save(ctx, record("run-1", "router", 0)))

	_, err := s.Load(ctx, "run-1")
	require.NoError(t, err)

	*clock = clock.Add(2 * time.Minute)
	_, err = s.Load(ctx, "run-1")
	assert.ErrorIs(t, err, history.ErrRecordNotFound)
	assert.Zero(t, s.Stats().Count)
}

func TestStore_Sweep(t *testing.T) {
	ctx := context.Background()
	s, clock := newStore(t, Config{DefaultTTL: time.Minute})
	require.NoError(t, s.Save(ctx, record("run-1", "router", 0)))

	s.mu.Lock()
	*clock = clock.Add(time.Hour)
	s.mu.Unlock()
	s.expire()
	assert.Zero(t, s.Stats().Count)
}

func TestStore_List(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t, Config{})

	for i := 0; i < 5; i++ {
		wf := "router"
		if i%2 == 1 {
			wf = "linear"
		}
		require.NoError(t, s.Save(ctx, record(fmt.Sprintf("run-%d", i), wf, time.Duration(i)*time.Second)))
	}
	failed := record("run-f", "router", 10*time.Second)
	failed.Status = history.StatusFailed
	failed.Error = "boom"
	require.NoError(t, s.Save(ctx, failed))

	since := epoch.Add(2 * time.Second)
	tests := []struct {
		name   string
		filter history.Filter
		want   []string
	}{
		{name: "all newest first", filter: history.Filter{}, want: []string{"run-f", "run-4", "run-3", "run-2", "run-1", "run-0"}},
		{name: "by workflow", filter: history.Filter{Workflow: "linear"}, want: []string{"run-3", "run-1"}},
		{name: "by status", filter: history.Filter{Status: history.StatusFailed}, want: []string{"run-f"}},
		{name: "since", filter: history.Filter{Workflow: "router", Since: &since}, want: []string{"run-f", "run-4", "run-2"}},
		{name: "limit and offset", filter: history.Filter{Limit: 2, Offset: 1}, want: []string{"run-4", "run-3"}},
		{name: "offset past end", filter: history.Filter{Offset: 10}, want: []string{}},
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
}

func TestStore_LRUEviction(t *testing.T) {
	ctx := context.Background()
	s, clock := newStore(t, Config{})

	require.NoError(t, s.Save(ctx, record("old", "router", 0)))
	*clock = clock.Add(time.Second)
	require.NoError(t, s.Save(ctx, record("new", "router", 0)))

	// Leave room for exactly one payload.
	s.mu.Lock()
	s.maxBytes = s.size - 1
	s.mu.Unlock()

	*clock = clock.Add(time.Second)
	require.NoError(t, s.Save(ctx, record("next", "router", 0)))

	_, err := s.Load(ctx, "old")
	assert.ErrorIs(t, err, history.ErrRecordNotFound)
	_, err = s.Load(ctx, "next")
	assert.NoError(t, err)
}

func TestStore_MemoryLimit(t *testing.T) {
	s, _ := newStore(t, Config{})
	s.mu.Lock()
	s.maxBytes = 1
	s.mu.Unlock()

	err := s.Save(context.Background(), record("big", "router", 0))
	assert.ErrorIs(t, err, ErrMemoryLimit)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t, Config{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("run-%d", i)
			assert.NoError(t, s.Save(ctx, record(id, "router", 0)))
			_, err := s.Load(ctx, id)
			assert.NoError(t, err)
			_, err = s.List(ctx, history.Filter{Limit: 5})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 20, s.Stats().Count)
}
