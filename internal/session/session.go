// Package session coordinates one voice exchange: recording, transcription,
// reply generation, speech synthesis and playback.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jdros15/Talking-LLM/internal/fsm"
)

type action int

const (
	actionStop action = iota + 1
	actionCancel
)

// Status lines shown by the controller.
const (
	StatusMissingKeys    = "Please set both API keys"
	StatusTranscribing   = "Transcribing..."
	StatusGenerating     = "Generating response..."
	StatusSynthesizing   = "Generating speech..."
	StatusSpeaking       = "Speaking..."
	StatusMicUnavailable = "Unable to access microphone"
	StatusNoAudio        = "No audio recorded"
	StatusCancelled      = "Cancelled"
)

// FallbackReply replaces a failed reply so the exchange still gets spoken.
const FallbackReply = "I'm sorry, I couldn't process your request. Please try again."

const defaultTick = time.Second

// Result is the complete lifecycle output of one exchange.
type Result struct {
	RunID         string
	State         fsm.State
	Transcript    string
	Reply         string
	ReplyAt       time.Time
	Fallback      bool
	Cancelled     bool
	Err           error
	AudioDevice   string
	BytesCaptured int64
	Recorded      time.Duration
	Timings       map[string]time.Duration
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Deps wires the controller's collaborators. Cache, Indicator, Observer and
// Logger fall back to no-ops; the rest are required.
type Deps struct {
	Recorder    Recorder
	Transcriber Transcriber
	Replier     Replier
	Synthesizer Synthesizer
	Speaker     Speaker
	Log         Log
	Cache       Cache
	Settings    Settings
	Indicator   Indicator
	Observer    Observer
	Logger      *slog.Logger
}

// Controller orchestrates session state transitions and side effects.
type Controller struct {
	logger      *slog.Logger
	recorder    Recorder
	transcriber Transcriber
	replier     Replier
	synthesizer Synthesizer
	speaker     Speaker
	log         Log
	cache       Cache
	settings    Settings
	indicator   Indicator
	observer    Observer

	tick time.Duration
	now  func() time.Time

	mu         sync.RWMutex
	state      fsm.State
	status     string
	recStart   time.Time
	stopTicker context.CancelFunc
	tickerDone chan struct{}

	actions chan action
	starts  chan struct{}
}

// NewController validates deps and builds a controller in the idle state.
func NewController(deps Deps) (*Controller, error) {
	switch {
	case deps.Recorder == nil:
		return nil, errors.New("session: recorder is required")
	case deps.Transcriber == nil:
		return nil, errors.New("session: transcriber is required")
	case deps.Replier == nil:
		return nil, errors.New("session: replier is required")
	case deps.Synthesizer == nil:
		return nil, errors.New("session: synthesizer is required")
	case deps.Speaker == nil:
		return nil, errors.New("session: speaker is required")
	case deps.Log == nil:
		return nil, errors.New("session: conversation log is required")
	case deps.Settings == nil:
		return nil, errors.New("session: settings are required")
	}
	if deps.Cache == nil {
		deps.Cache = noopCache{}
	}
	if deps.Indicator == nil {
		deps.Indicator = noopIndicator{}
	}
	if deps.Observer == nil {
		deps.Observer = noopObserver{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}

	return &Controller{
		logger:      deps.Logger,
		recorder:    deps.Recorder,
		transcriber: deps.Transcriber,
		replier:     deps.Replier,
		synthesizer: deps.Synthesizer,
		speaker:     deps.Speaker,
		log:         deps.Log,
		cache:       deps.Cache,
		settings:    deps.Settings,
		indicator:   deps.Indicator,
		observer:    deps.Observer,
		tick:        defaultTick,
		now:         time.Now,
		state:       fsm.StateIdle,
		status:      "Ready",
		actions:     make(chan action, 1),
		starts:      make(chan struct{}, 1),
	}, nil
}

// State returns the current FSM state snapshot.
func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Status returns the last status line.
func (c *Controller) Status() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state == fsm.StateRecording {
		return recordingStatus(c.now().Sub(c.recStart))
	}
	return c.status
}

// StartRequests delivers toggle requests received while idle. The owner of
// the controller answers each one with Run.
func (c *Controller) StartRequests() <-chan struct{} {
	return c.starts
}

// StartRecording opens a recording session. Credentials are checked before
// any resource is acquired.
func (c *Controller) StartRecording(ctx context.Context) error {
	if !c.settings.HasCredentials() {
		c.showError(ctx, StatusMissingKeys)
		return ErrMissingCredentials
	}

	c.mu.Lock()
	switch c.state {
	case fsm.StateIdle:
	case fsm.StateRecording:
		c.mu.Unlock()
		return ErrAlreadyRecording
	default:
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w (%s)", ErrBusy, state)
	}
	next, err := fsm.Transition(c.state, fsm.EventStart)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.state = next
	c.mu.Unlock()

	// A stale stop from the previous session must not end this one.
	select {
	case <-c.actions:
	default:
	}

	if err := c.recorder.Start(ctx); err != nil {
		c.logger.Error("recording start failed", "error", err.Error())
		c.showError(ctx, StatusMicUnavailable)
		c.toErrorAndReset()
		return fmt.Errorf("start recording: %w", err)
	}

	c.startTicker(ctx)
	c.indicator.CueStart(ctx)
	c.logger.Info("recording started")
	return nil
}

// RequestStop asks a running Run to finish its recording. It reports whether
// the request was queued.
func (c *Controller) RequestStop() bool {
	if c.State() != fsm.StateRecording {
		return false
	}
	select {
	case c.actions <- actionStop:
	default:
	}
	return true
}

// Run executes one owner lifecycle from start to stop/cancel/failure completion.
func (c *Controller) Run(ctx context.Context) Result {
	if err := c.StartRecording(ctx); err != nil {
		now := c.now()
		return Result{State: c.State(), Err: err, StartedAt: now, FinishedAt: now}
	}

	select {
	case <-ctx.Done():
		result := c.cancelRecording(StatusCancelled)
		result.Err = ctx.Err()
		return result
	case a := <-c.actions:
		switch a {
		case actionCancel:
			return c.cancelRecording(StatusCancelled)
		case actionStop:
			return c.StopRecording(ctx)
		default:
			result := c.cancelRecording("")
			result.Err = fmt.Errorf("unknown action %d", a)
			return result
		}
	}
}

// StopRecording finalizes the capture and runs the remaining stages in order.
func (c *Controller) StopRecording(ctx context.Context) Result {
	result := Result{StartedAt: c.now(), Timings: map[string]time.Duration{}}

	c.mu.Lock()
	if c.state != fsm.StateRecording {
		result.State = c.state
		c.mu.Unlock()
		result.Err = ErrNotRecording
		result.FinishedAt = c.now()
		return result
	}
	next, err := fsm.Transition(c.state, fsm.EventStop)
	if err != nil {
		c.mu.Unlock()
		result.Err = err
		return c.finish(result, "error")
	}
	c.state = next
	result.StartedAt = c.recStart
	c.mu.Unlock()

	recording, err := c.finalizeCapture(ctx)
	result.AudioDevice = recording.AudioDevice
	result.BytesCaptured = recording.BytesCaptured
	result.Recorded = recording.Duration
	if err != nil {
		c.logger.Error("recording stop failed", "error", err.Error())
		if errors.Is(err, ErrNoAudio) {
			c.showError(ctx, StatusNoAudio)
		} else {
			c.showError(ctx, "Recording failed")
		}
		c.toErrorAndReset()
		result.Err = err
		return c.finish(result, "capture_failed")
	}

	return c.process(ctx, recording, result)
}

// finalizeCapture stops the capture and the elapsed ticker. Both are
// released before any network call, whatever the capture outcome.
func (c *Controller) finalizeCapture(ctx context.Context) (Recording, error) {
	defer c.cancelTicker()
	defer c.indicator.CueStop(ctx)
	return c.recorder.Stop(ctx)
}

// cancelRecording discards the open capture without any network call.
func (c *Controller) cancelRecording(status string) Result {
	c.mu.RLock()
	started := c.recStart
	c.mu.RUnlock()

	c.cancelTicker()
	if err := c.recorder.Cancel(context.Background()); err != nil {
		c.logger.Warn("recording cancel failed", "error", err.Error())
	}
	c.indicator.CueCancel(context.Background())
	if err := c.transition(fsm.EventCancel); err != nil {
		c.toErrorAndReset()
	}
	if status != "" {
		c.showError(context.Background(), status)
	}
	c.logger.Info("recording cancelled")
	return c.finish(Result{StartedAt: started, Cancelled: true}, "cancelled")
}

// finish stamps the terminal state and reports the run outcome.
func (c *Controller) finish(result Result, outcome string) Result {
	result.State = c.State()
	result.FinishedAt = c.now()
	if result.StartedAt.IsZero() {
		result.StartedAt = result.FinishedAt
	}
	c.observer.ObserveRun(outcome, result.FinishedAt.Sub(result.StartedAt))
	return result
}

// transition applies one FSM event to the controller state.
func (c *Controller) transition(event fsm.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fsm.Transition(c.state, event)
	if err != nil {
		return err
	}
	c.state = next
	return nil
}

// toErrorAndReset transitions to error and back to idle best-effort.
func (c *Controller) toErrorAndReset() {
	_ = c.transition(fsm.EventFail)
	_ = c.transition(fsm.EventReset)
}

func (c *Controller) setStatus(text string) {
	c.mu.Lock()
	c.status = text
	c.mu.Unlock()
}

func (c *Controller) showStatus(ctx context.Context, text string) {
	c.setStatus(text)
	c.indicator.ShowStatus(ctx, text)
}

func (c *Controller) showError(ctx context.Context, text string) {
	c.setStatus(text)
	c.indicator.ShowError(ctx, text)
}

func (c *Controller) showReady(ctx context.Context) {
	c.setStatus("Ready")
	c.indicator.ShowReady(ctx)
}

// startTicker refreshes the elapsed-time status once per tick until cancelled.
func (c *Controller) startTicker(ctx context.Context) {
	tickCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	c.mu.Lock()
	c.recStart = c.now()
	c.stopTicker = cancel
	c.tickerDone = done
	started := c.recStart
	c.mu.Unlock()

	c.indicator.ShowRecording(ctx, 0)

	go func() {
		defer close(done)
		ticker := time.NewTicker(c.tick)
		defer ticker.Stop()
		for {
			select {
			case <-tickCtx.Done():
				return
			case <-ticker.C:
				c.indicator.ShowRecording(tickCtx, c.now().Sub(started))
			}
		}
	}()
}

// cancelTicker stops the elapsed ticker and waits for it to exit.
func (c *Controller) cancelTicker() {
	c.mu.Lock()
	cancel, done := c.stopTicker, c.tickerDone
	c.stopTicker, c.tickerDone = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// recordingStatus formats the elapsed recording time as mm:ss.
func recordingStatus(elapsed time.Duration) string {
	return "Recording... " + FormatElapsed(elapsed)
}

// FormatElapsed renders d as mm:ss. Minutes are not wrapped at an hour.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
