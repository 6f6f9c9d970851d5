// Package playback owns the single active audio stream: fresh replies and
// replays of cached audio.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jdros15/Talking-LLM/internal/audio"
)

// ErrAudioNotAvailable is returned by Replay when nothing is cached for the
// timestamp.
var ErrAudioNotAvailable = errors.New("audio not available")

// StatusAudioNotAvailable is the status shown for a replay miss.
const StatusAudioNotAvailable = "Audio not available"

// Fetcher looks up cached audio by reply timestamp.
type Fetcher interface {
	Fetch(ts time.Time) (string, bool)
}

// Feed is the visualizer contract: started with a stream, stopped when it ends.
type Feed interface {
	Start()
	Stop()
}

// Status receives the outcome of a stream.
type Status interface {
	ShowReady(context.Context)
	ShowError(context.Context, string)
}

type Option func(*Session)

func WithFeed(feed Feed) Option {
	return func(s *Session) {
		if feed != nil {
			s.feed = feed
		}
	}
}

func WithStatus(status Status) Option {
	return func(s *Session) {
		if status != nil {
			s.status = status
		}
	}
}

// WithVolume sets the volume source used by Replay.
func WithVolume(fn func() float64) Option {
	return func(s *Session) {
		if fn != nil {
			s.volume = fn
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Session plays at most one stream at a time. Starting a stream stops the
// previous one first.
type Session struct {
	player Player
	cache  Fetcher
	feed   Feed
	status Status
	volume func() float64
	logger *slog.Logger

	playMu sync.Mutex

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
}

func New(player Player, cache Fetcher, opts ...Option) *Session {
	s := &Session{
		player: player,
		cache:  cache,
		feed:   nopFeed{},
		status: nopStatus{},
		volume: func() float64 { return 1 },
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Play stops any current stream, then starts payload, a data URI, at volume.
// A payload that fails to decode still ends the previous stream. The returned channel receives
// exactly one value when the stream ends: nil on completion or Stop.
func (s *Session) Play(ctx context.Context, payload string, volume float64) (<-chan error, error) {
	s.playMu.Lock()
	defer s.playMu.Unlock()
	s.Stop()

	mediaType, data, err := audio.DecodeDataURI(payload)
	if err != nil {
		return nil, fmt.Errorf("decode audio payload: %w", err)
	}

	playCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	result := make(chan error, 1)

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	s.feed.Start()
	s.logger.Debug("playback started", "generation", gen, "media_type", mediaType, "bytes", len(data))

	go func() {
		defer close(done)
		err := s.player.Play(playCtx, mediaType, data, clampVolume(volume))
		stopped := playCtx.Err() != nil
		cancel()
		s.feed.Stop()

		s.mu.Lock()
		if s.gen == gen {
			s.cancel = nil
			s.done = nil
		}
		s.mu.Unlock()

		switch {
		case stopped:
			err = nil
			s.logger.Debug("playback stopped", "generation", gen)
		case err != nil:
			s.logger.Error("playback failed", "generation", gen, "error", err.Error())
			s.status.ShowError(context.WithoutCancel(ctx), "Error playing audio")
		default:
			s.logger.Debug("playback finished", "generation", gen)
			s.status.ShowReady(context.WithoutCancel(ctx))
		}
		result <- err
	}()

	return result, nil
}

// Replay plays the cached audio for ts. A miss never falls back to synthesis.
func (s *Session) Replay(ctx context.Context, ts time.Time) (<-chan error, error) {
	payload, ok := s.cache.Fetch(ts)
	if !ok {
		s.status.ShowError(ctx, StatusAudioNotAvailable)
		return nil, ErrAudioNotAvailable
	}
	return s.Play(ctx, payload, s.volume())
}

// Stop ends the active stream and waits for it to release the device. It
// reports whether anything was playing.
func (s *Session) Stop() bool {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

// Active reports whether a stream is playing.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func clampVolume(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

type nopFeed struct{}

func (nopFeed) Start() {}
func (nopFeed) Stop()  {}

type nopStatus struct{}

func (nopStatus) ShowReady(context.Context)         {}
func (nopStatus) ShowError(context.Context, string) {}
