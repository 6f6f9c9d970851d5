// Package audiocache keeps synthesized reply audio keyed by message timestamp.
package audiocache

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jdros15/Talking-LLM/internal/conversation"
	"github.com/jdros15/Talking-LLM/internal/store"
)

// DefaultBound is the entry limit used when none is configured.
const DefaultBound = 20

// Store is the persistence subset the cache needs.
type Store interface {
	Save(key string, value any) bool
	Load(key string, dst any) (bool, error)
}

type entry struct {
	ts      time.Time
	payload string
	seq     uint64
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the cache logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// WithEvictionHook is called with the number of entries removed by each eviction pass.
func WithEvictionHook(fn func(int)) Option {
	return func(c *Cache) { c.onEvict = fn }
}

// Cache maps assistant message timestamps to encoded audio. Entry count never
// exceeds the bound after a mutating call returns; the earliest timestamps go first.
type Cache struct {
	store   Store
	logger  *slog.Logger
	onEvict func(int)

	mu      sync.Mutex
	entries map[string]entry
	bound   int
	seq     uint64
}

// New returns an empty cache. bound <= 0 selects DefaultBound.
func New(st Store, bound int, opts ...Option) *Cache {
	if bound <= 0 {
		bound = DefaultBound
	}
	c := &Cache{store: st, entries: map[string]entry{}, bound: bound}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Key is the durable key the cache persists under.
func (c *Cache) Key() string {
	return store.KeyAudioCache
}

// Load restores persisted entries, dropping keys that are not timestamps.
func (c *Cache) Load() {
	persisted := map[string]string{}
	if _, err := c.store.Load(store.KeyAudioCache, &persisted); err != nil {
		c.logger.Warn("audio cache unreadable; starting empty", "error", err.Error())
		persisted = map[string]string{}
	}

	loaded := make([]entry, 0, len(persisted))
	for key, payload := range persisted {
		ts, err := conversation.ParseTimestamp(key)
		if err != nil || payload == "" {
			continue
		}
		loaded = append(loaded, entry{ts: ts, payload: payload})
	}
	sort.Slice(loaded, func(i, j int) bool { return loaded[i].ts.Before(loaded[j].ts) })

	c.mu.Lock()
	c.entries = make(map[string]entry, len(loaded))
	for _, e := range loaded {
		c.seq++
		e.seq = c.seq
		c.entries[conversation.FormatTimestamp(e.ts)] = e
	}
	c.mu.Unlock()

	c.Trim()
}

// Store inserts or overwrites the payload for ts, evicts to the bound, then persists.
func (c *Cache) Store(ts time.Time, payload string) {
	c.mu.Lock()
	c.seq++
	c.entries[conversation.FormatTimestamp(ts)] = entry{ts: ts, payload: payload, seq: c.seq}
	evicted := c.evictLocked()
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.reportEvicted(evicted)
	c.store.Save(store.KeyAudioCache, snapshot)
}

// Fetch returns the payload cached for ts.
func (c *Cache) Fetch(ts time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[conversation.FormatTimestamp(ts)]
	return e.payload, ok
}

// Trim evicts to the current bound and persists.
func (c *Cache) Trim() {
	c.mu.Lock()
	evicted := c.evictLocked()
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.reportEvicted(evicted)
	c.store.Save(store.KeyAudioCache, snapshot)
}

// Shrink halves the bound, never below one entry, evicts, and returns the
// snapshot to persist. It does not persist itself; the store adapter calls it
// mid-write.
func (c *Cache) Shrink() any {
	c.mu.Lock()
	c.bound = max(1, c.bound/2)
	evicted := c.evictLocked()
	snapshot := c.snapshotLocked()
	bound := c.bound
	c.mu.Unlock()

	c.logger.Warn("audio cache bound halved", "bound", bound, "evicted", evicted)
	c.reportEvicted(evicted)
	return snapshot
}

// Clear drops every entry in memory. Durable removal is the caller's job.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]entry{}
}

// Len returns the entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Bound returns the current entry limit.
func (c *Cache) Bound() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bound
}

// Timestamps lists cached keys, oldest first.
func (c *Cache) Timestamps() []time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ordered := c.orderedLocked()
	out := make([]time.Time, 0, len(ordered))
	for _, e := range ordered {
		out = append(out, e.ts)
	}
	return out
}

func (c *Cache) evictLocked() int {
	excess := len(c.entries) - c.bound
	if excess <= 0 {
		return 0
	}
	for _, e := range c.orderedLocked()[:excess] {
		delete(c.entries, conversation.FormatTimestamp(e.ts))
	}
	return excess
}

func (c *Cache) orderedLocked() []entry {
	ordered := make([]entry, 0, len(c.entries))
	for _, e := range c.entries {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].ts.Equal(ordered[j].ts) {
			return ordered[i].seq < ordered[j].seq
		}
		return ordered[i].ts.Before(ordered[j].ts)
	})
	return ordered
}

func (c *Cache) snapshotLocked() map[string]string {
	out := make(map[string]string, len(c.entries))
	for key, e := range c.entries {
		out[key] = e.payload
	}
	return out
}

func (c *Cache) reportEvicted(n int) {
	if n > 0 && c.onEvict != nil {
		c.onEvict(n)
	}
}
