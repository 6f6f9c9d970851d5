package store

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bytedance/sonic"
)

// Shrinker gives up stored bytes when the quota is exhausted. Shrink halves its
// own bound, evicts, and returns the snapshot to persist under Key.
type Shrinker interface {
	Key() string
	Shrink() any
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the adapter logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) { a.logger = logger }
}

// WithFailureHandler is called once, the first time a write cannot be recovered.
func WithFailureHandler(fn func(error)) Option {
	return func(a *Adapter) { a.onFailure = fn }
}

// WithRecoveryHook is called each time a quota error is recovered by shrinking.
func WithRecoveryHook(fn func()) Option {
	return func(a *Adapter) { a.onRecovered = fn }
}

// Adapter encodes values to JSON and writes them to a Backend. Write failures
// never propagate: the adapter degrades to memory-only and reports once.
type Adapter struct {
	backend Backend
	logger  *slog.Logger

	onFailure   func(error)
	onRecovered func()

	mu       sync.Mutex
	shrinker Shrinker

	degraded   atomic.Bool
	reportOnce sync.Once
}

// NewAdapter wraps backend. A nil backend falls back to an unbounded Memory.
func NewAdapter(backend Backend, opts ...Option) *Adapter {
	if backend == nil {
		backend = NewMemory(0)
	}
	a := &Adapter{backend: backend}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.DiscardHandler)
	}
	return a
}

// SetShrinker registers the component that gives up space on quota errors.
func (a *Adapter) SetShrinker(s Shrinker) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shrinker = s
}

// Degraded reports whether persistence has been abandoned for this process.
func (a *Adapter) Degraded() bool {
	return a.degraded.Load()
}

// Save persists value under key and reports whether it reached durable storage.
func (a *Adapter) Save(key string, value any) bool {
	if a.degraded.Load() {
		return false
	}

	data, err := sonic.Marshal(value)
	if err != nil {
		a.logger.Error("encode stored value", "key", key, "error", err.Error())
		return false
	}

	err = a.backend.Put(key, data)
	if err == nil {
		return true
	}
	if !errors.Is(err, ErrQuotaExceeded) {
		a.fail(key, err)
		return false
	}

	a.mu.Lock()
	shrinker := a.shrinker
	a.mu.Unlock()
	if shrinker == nil {
		a.fail(key, err)
		return false
	}

	snapshot := shrinker.Shrink()
	if shrinker.Key() == key {
		data, err = sonic.Marshal(snapshot)
		if err != nil {
			a.fail(key, fmt.Errorf("encode shrunk value: %w", err))
			return false
		}
	} else if encoded, encErr := sonic.Marshal(snapshot); encErr == nil {
		if putErr := a.backend.Put(shrinker.Key(), encoded); putErr != nil {
			a.logger.Warn("persist shrunk snapshot failed", "key", shrinker.Key(), "error", putErr.Error())
		}
	}

	if err := a.backend.Put(key, data); err != nil {
		a.fail(key, err)
		return false
	}

	a.logger.Info("storage quota recovered", "key", key)
	if a.onRecovered != nil {
		a.onRecovered()
	}
	return true
}

// Load decodes the value stored under key into dst. Absent keys report false.
func (a *Adapter) Load(key string, dst any) (bool, error) {
	data, ok, err := a.backend.Get(key)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if !ok || len(data) == 0 {
		return false, nil
	}
	if err := sonic.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Remove erases key best-effort.
func (a *Adapter) Remove(key string) {
	if err := a.backend.Delete(key); err != nil {
		a.logger.Warn("remove stored key failed", "key", key, "error", err.Error())
	}
}

// Close releases the backend.
func (a *Adapter) Close() error {
	return a.backend.Close()
}

func (a *Adapter) fail(key string, err error) {
	a.degraded.Store(true)
	a.logger.Error("storage write failed; continuing in memory", "key", key, "error", err.Error())
	a.reportOnce.Do(func() {
		if a.onFailure != nil {
			a.onFailure(err)
		}
	})
}
