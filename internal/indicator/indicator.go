// Package indicator handles status output and audio cue playback.
package indicator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jdros15/Talking-LLM/internal/config"
)

const defaultRevert = 3 * time.Second

// Base status lines. Errors revert to one of the first two.
const (
	textReady     = "Ready"
	textRecording = "Recording..."
	textError     = "Something went wrong"
)

// Notifier shows the pipeline status on the terminal or as a desktop
// notification. Errors are transient and revert to the base status.
type Notifier struct {
	cfg    config.IndicatorConfig
	out    io.Writer
	logger *slog.Logger
	revert time.Duration

	mu                    sync.Mutex
	current               string
	recording             bool
	gen                   uint64
	revertTimer           *time.Timer
	desktopNotificationID uint32
	soundMu               sync.Mutex

	cue func(context.Context, cueKind) error
}

// New creates an indicator from config. out receives terminal status lines.
func New(cfg config.IndicatorConfig, out io.Writer, logger *slog.Logger) *Notifier {
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	revert := time.Duration(cfg.StatusRevertMS) * time.Millisecond
	if revert <= 0 {
		revert = defaultRevert
	}
	return &Notifier{
		cfg:     cfg,
		out:     out,
		logger:  logger,
		revert:  revert,
		current: textReady,
		cue:     emitCue,
	}
}

// Current returns the status line last shown.
func (n *Notifier) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// ShowRecording refreshes the elapsed recording time.
func (n *Notifier) ShowRecording(ctx context.Context, elapsed time.Duration) {
	n.mu.Lock()
	n.recording = true
	n.mu.Unlock()
	n.show(ctx, fmt.Sprintf("%s %s", textRecording, formatElapsed(elapsed)), false)
}

// ShowStatus shows a stage status until the next update.
func (n *Notifier) ShowStatus(ctx context.Context, text string) {
	n.mu.Lock()
	n.recording = false
	n.mu.Unlock()
	n.show(ctx, text, false)
}

// ShowError shows text and reverts to the base status after the configured delay.
func (n *Notifier) ShowError(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		text = textError
	}
	n.show(ctx, text, true)
}

// ShowReady returns to the idle status.
func (n *Notifier) ShowReady(ctx context.Context) {
	n.mu.Lock()
	n.recording = false
	n.mu.Unlock()
	n.show(ctx, textReady, false)
}

func (n *Notifier) CueStart(context.Context)    { n.playCue(cueStart) }
func (n *Notifier) CueStop(context.Context)     { n.playCue(cueStop) }
func (n *Notifier) CueComplete(context.Context) { n.playCue(cueComplete) }
func (n *Notifier) CueCancel(context.Context)   { n.playCue(cueCancel) }

// Close dismisses the desktop notification and cancels a pending revert.
func (n *Notifier) Close(ctx context.Context) {
	n.mu.Lock()
	if n.revertTimer != nil {
		n.revertTimer.Stop()
		n.revertTimer = nil
	}
	n.mu.Unlock()
	if n.cfg.Enable && n.desktop() {
		n.run(ctx, n.dismissDesktop)
	}
}

// show records text as current and renders it. Transient text schedules a
// revert that is skipped when a newer status arrives first.
func (n *Notifier) show(ctx context.Context, text string, transient bool) {
	n.mu.Lock()
	n.gen++
	gen := n.gen
	n.current = text
	if n.revertTimer != nil {
		n.revertTimer.Stop()
		n.revertTimer = nil
	}
	if transient {
		n.revertTimer = time.AfterFunc(n.revert, func() { n.revertTo(gen) })
	}
	n.mu.Unlock()

	n.render(ctx, text, transient)
}

func (n *Notifier) revertTo(gen uint64) {
	n.mu.Lock()
	if n.gen != gen {
		n.mu.Unlock()
		return
	}
	n.gen++
	base := textReady
	if n.recording {
		base = textRecording
	}
	n.current = base
	n.revertTimer = nil
	n.mu.Unlock()

	n.render(context.Background(), base, false)
}

// render dispatches status output through the configured backend.
func (n *Notifier) render(ctx context.Context, text string, transient bool) {
	if !n.cfg.Enable {
		return
	}
	if n.desktop() {
		timeout := 0
		if transient {
			timeout = int(n.revert / time.Millisecond)
		}
		n.run(ctx, func(ctx context.Context) error {
			return n.notifyDesktop(ctx, timeout, text)
		})
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	_, _ = fmt.Fprintf(n.out, "\r\x1b[2K%s", text)
}

func (n *Notifier) desktop() bool {
	return strings.EqualFold(strings.TrimSpace(n.cfg.Backend), "desktop")
}

// notifyDesktop sends a replaceable desktop notification and stores its ID.
func (n *Notifier) notifyDesktop(ctx context.Context, timeoutMS int, text string) error {
	n.mu.Lock()
	replaceID := n.desktopNotificationID
	n.mu.Unlock()

	appName := strings.TrimSpace(n.cfg.DesktopAppName)
	if appName == "" {
		appName = "talkie"
	}

	id, err := desktopNotify(ctx, appName, replaceID, text, timeoutMS)
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.desktopNotificationID = id
	n.mu.Unlock()
	return nil
}

// dismissDesktop closes the current desktop notification ID when present.
func (n *Notifier) dismissDesktop(ctx context.Context) error {
	n.mu.Lock()
	id := n.desktopNotificationID
	n.desktopNotificationID = 0
	n.mu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

// run executes an indicator operation with a bounded timeout.
func (n *Notifier) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 400*time.Millisecond)
	defer cancel()
	if err := fn(runCtx); err != nil {
		n.logger.Debug("indicator dispatch failed", "error", err.Error())
	}
}

// playCue serializes cue playback and emits audio asynchronously.
func (n *Notifier) playCue(kind cueKind) {
	if !n.cfg.SoundEnable {
		return
	}
	go func() {
		n.soundMu.Lock()
		defer n.soundMu.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := n.cue(ctx, kind); err != nil {
			n.logger.Debug("indicator audio cue failed", "error", err.Error())
		}
	}()
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
