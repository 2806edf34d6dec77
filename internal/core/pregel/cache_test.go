package pregel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/workflow/internal/core/graph"
	"github.com/flowgraph/workflow/internal/core/value"
)

func TestMemoryCache_Expiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	c.Set("forever", value.String("f"), 0)
	c.Set("short", value.String("s"), time.Minute)

	v, ok := c.Get("short")
	require.True(t, ok)
	assert.Equal(t, value.String("s"), v)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("short")
	assert.False(t, ok)
	_, ok = c.Get("forever")
	assert.True(t, ok)
	assert.Equal(t, 1, c.Len())

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCacheKey(t *testing.T) {
	byInput := graph.CachePolicy{Kind: graph.CacheInputHash}
	obj := func(a, b float64) value.Value {
		return value.Object(map[string]value.Value{"a": value.Number(a), "b": value.Number(b)})
	}

	k1, err := CacheKey("wf", "n", byInput, obj(1, 2))
	require.NoError(t, err)
	k2, err := CacheKey("wf", "n", byInput, obj(1, 2))
	require.NoError(t, err)
	k3, err := CacheKey("wf", "n", byInput, obj(2, 1))
	require.NoError(t, err)
	assert.Equal(t, k1, k2, "object key order must not matter")
	assert.NotEqual(t, k1, k3)

	other, err := CacheKey("wf", "m", byInput, obj(1, 2))
	require.NoError(t, err)
	assert.NotEqual(t, k1, other)

	timed := graph.CachePolicy{Kind: graph.CacheTimeBased, Key: "daily"}
	t1, err := CacheKey("wf", "n", timed, value.String("x"))
	require.NoError(t, err)
	t2, err := CacheKey("wf", "n", timed, value.String("y"))
	require.NoError(t, err)
	assert.Equal(t, "wf/n/daily", t1)
	assert.Equal(t, t1, t2)
}

func TestCacheTTL(t *testing.T) {
	assert.Equal(t, 30*time.Second, cacheTTL(graph.CachePolicy{TTLSeconds: 30}, time.Minute))
	assert.Equal(t, time.Minute, cacheTTL(graph.CachePolicy{}, time.Minute))
}
