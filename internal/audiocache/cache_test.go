package audiocache

import (
	"strings"
	"testing"
	"time"

	"github.com/jdros15/Talking-LLM/internal/store"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func at(sec int) time.Time { return base.Add(time.Duration(sec) * time.Second) }

func TestStoreEvictsOldestBeyondBound(t *testing.T) {
	c := New(store.NewAdapter(store.NewMemory(0)), 2)

	c.Store(at(1), "one")
	c.Store(at(2), "two")
	c.Store(at(3), "three")

	require.Equal(t, 2, c.Len())
	_, ok := c.Fetch(at(1))
	require.False(t, ok)
	got, ok := c.Fetch(at(3))
	require.True(t, ok)
	require.Equal(t, "three", got)
	require.Equal(t, []time.Time{at(2), at(3)}, c.Timestamps())
}

func TestStoreEvictsByTimestampNotInsertionOrder(t *testing.T) {
	evicted := 0
	c := New(store.NewAdapter(store.NewMemory(0)), 2, WithEvictionHook(func(n int) { evicted += n }))

	c.Store(at(5), "five")
	c.Store(at(1), "one")
	c.Store(at(3), "three")

	require.Equal(t, []time.Time{at(3), at(5)}, c.Timestamps())
	require.Equal(t, 1, evicted)
}

func TestStoreOverwritesSameTimestamp(t *testing.T) {
	c := New(store.NewAdapter(store.NewMemory(0)), 2)
	c.Store(at(1), "first")
	c.Store(at(1), "second")

	require.Equal(t, 1, c.Len())
	got, _ := c.Fetch(at(1))
	require.Equal(t, "second", got)
}

func TestCountNeverExceedsBound(t *testing.T) {
	c := New(store.NewAdapter(store.NewMemory(0)), 4)
	for i := 0; i < 50; i++ {
		c.Store(at(i), "x")
		require.LessOrEqual(t, c.Len(), 4)
	}
	require.Equal(t, []time.Time{at(46), at(47), at(48), at(49)}, c.Timestamps())
}

func TestStorePersistsSnapshot(t *testing.T) {
	adapter := store.NewAdapter(store.NewMemory(0))
	c := New(adapter, 3)
	c.Store(at(1), "data:audio/mpeg;base64,AAAA")

	restored := New(adapter, 3)
	restored.Load()
	got, ok := restored.Fetch(at(1))
	require.True(t, ok)
	require.Equal(t, "data:audio/mpeg;base64,AAAA", got)
}

func TestLoadDropsInvalidKeysAndTrims(t *testing.T) {
	mem := store.NewMemory(0)
	blob := `{"2025-03-01T12:00:01Z":"a","2025-03-01T12:00:02Z":"b","2025-03-01T12:00:03Z":"c","bogus":"d","2025-03-01T12:00:04Z":""}`
	require.NoError(t, mem.Put(store.KeyAudioCache, []byte(blob)))

	c := New(store.NewAdapter(mem), 2)
	c.Load()

	require.Equal(t, []time.Time{at(2), at(3)}, c.Timestamps())
}

func TestShrinkHalvesBound(t *testing.T) {
	c := New(store.NewAdapter(store.NewMemory(0)), 4)
	for i := 1; i <= 4; i++ {
		c.Store(at(i), "x")
	}

	snapshot := c.Shrink().(map[string]string)
	require.Equal(t, 2, c.Bound())
	require.Len(t, snapshot, 2)
	require.Equal(t, []time.Time{at(3), at(4)}, c.Timestamps())

	c.Shrink()
	c.Shrink()
	require.Equal(t, 1, c.Bound())
	require.Equal(t, []time.Time{at(4)}, c.Timestamps())
}

func TestShrinkKeepsLatestReplayable(t *testing.T) {
	c := New(store.NewAdapter(store.NewMemory(0)), 2)
	for range 4 {
		c.Shrink()
	}
	require.Equal(t, 1, c.Bound())

	c.Store(at(7), "latest")
	payload, ok := c.Fetch(at(7))
	require.True(t, ok)
	require.Equal(t, "latest", payload)
}

func TestQuotaExceededShrinksCacheAndRetries(t *testing.T) {
	payload := strings.Repeat("p", 100)
	adapter := store.NewAdapter(store.NewMemory(350))
	c := New(adapter, 4)
	adapter.SetShrinker(c)

	c.Store(at(1), payload)
	c.Store(at(2), payload)
	c.Store(at(3), payload)
	c.Store(at(4), payload)

	require.False(t, adapter.Degraded())
	require.Equal(t, 2, c.Bound())
	require.Equal(t, []time.Time{at(3), at(4)}, c.Timestamps())

	var persisted map[string]string
	ok, err := adapter.Load(store.KeyAudioCache, &persisted)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, persisted, 2)
}

func TestClear(t *testing.T) {
	c := New(store.NewAdapter(store.NewMemory(0)), 0)
	require.Equal(t, DefaultBound, c.Bound())
	c.Store(at(1), "x")
	c.Clear()
	c.Clear()
	require.Equal(t, 0, c.Len())
}
