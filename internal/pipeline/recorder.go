// Package pipeline owns the microphone side of a voice exchange: device
// selection, capture, and packaging the utterance for transcription.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jdros15/Talking-LLM/internal/audio"
	"github.com/jdros15/Talking-LLM/internal/config"
	"github.com/jdros15/Talking-LLM/internal/session"
)

// capture is the subset of *audio.Capture the recorder drives.
type capture interface {
	Stop() error
	RawPCM() []byte
	BytesCaptured() int64
	Device() audio.Device
	Elapsed() time.Duration
}

// Recorder implements session.Recorder over Pulse capture.
type Recorder struct {
	cfg    config.Config
	logger *slog.Logger

	selectDevice func(ctx context.Context, input, fallback string) (audio.Selection, error)
	startCapture func(ctx context.Context, device audio.Device) (capture, error)

	mu        sync.Mutex
	started   bool
	selection audio.Selection
	capture   capture
}

// NewRecorder constructs a recorder from runtime config.
func NewRecorder(cfg config.Config, logger *slog.Logger) *Recorder {
	return &Recorder{
		cfg:          cfg,
		logger:       logger,
		selectDevice: audio.SelectDevice,
		startCapture: func(ctx context.Context, device audio.Device) (capture, error) {
			return audio.StartCapture(ctx, device)
		},
	}
}

// Start resolves device selection and starts audio capture.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return errors.New("recorder already started")
	}

	selection, err := r.selectDevice(ctx, r.cfg.Audio.Input, r.cfg.Audio.Fallback)
	if err != nil {
		return fmt.Errorf("select microphone: %w", err)
	}
	r.selection = selection
	if selection.Warning != "" {
		r.logWarn(selection.Warning)
	}

	c, err := r.startCapture(ctx, selection.Device)
	if err != nil {
		return fmt.Errorf("start microphone: %w", err)
	}
	r.capture = c
	r.started = true
	return nil
}

// Stop finalizes capture and returns the utterance as a WAV data URI.
func (r *Recorder) Stop(_ context.Context) (session.Recording, error) {
	c, selection, ok := r.release()
	if !ok {
		return session.Recording{}, session.ErrRecorderUnavailable
	}

	_ = c.Stop()
	rawPCM := c.RawPCM()
	r.writeDebugAudio(rawPCM)

	result := session.Recording{
		MIME:          audio.MIMEWAV,
		AudioDevice:   describeDevice(selection.Device),
		BytesCaptured: c.BytesCaptured(),
		Duration:      c.Elapsed(),
	}
	if len(rawPCM) == 0 {
		return result, session.ErrNoAudio
	}

	result.Payload = audio.EncodeDataURI(audio.MIMEWAV, audio.EncodeWAV(rawPCM, audio.CaptureSampleRate, 1))
	return result, nil
}

// Cancel stops capture and discards the audio.
func (r *Recorder) Cancel(_ context.Context) error {
	c, _, ok := r.release()
	if !ok {
		return nil
	}
	_ = c.Stop()
	r.writeDebugAudio(c.RawPCM())
	return nil
}

func (r *Recorder) release() (capture, audio.Selection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started || r.capture == nil {
		return nil, audio.Selection{}, false
	}
	c := r.capture
	r.capture = nil
	r.started = false
	return c, r.selection, true
}

// describeDevice formats device metadata for logs/session results.
func describeDevice(device audio.Device) string {
	description := strings.TrimSpace(device.Description)
	id := strings.TrimSpace(device.ID)
	if description == "" {
		return id
	}
	if id == "" {
		return description
	}
	return fmt.Sprintf("%s (%s)", description, id)
}

func (r *Recorder) logWarn(message string) {
	if r.logger != nil {
		r.logger.Warn(message)
	}
}

// writeDebugAudio keeps a WAV copy of every capture under the state dir's
// debug folder when debug.audio_dump is on.
func (r *Recorder) writeDebugAudio(rawPCM []byte) {
	if !r.cfg.Debug.EnableAudioDump || len(rawPCM) == 0 {
		return
	}
	path, err := dumpPath(time.Now())
	if err != nil {
		r.logWarn(fmt.Sprintf("audio dump skipped: %v", err))
		return
	}
	if err := os.WriteFile(path, audio.EncodeWAV(rawPCM, audio.CaptureSampleRate, 1), 0o600); err != nil {
		r.logWarn(fmt.Sprintf("audio dump failed: %v", err))
		return
	}
	if r.logger != nil {
		r.logger.Debug("audio dump written", "path", path)
	}
}

func dumpPath(at time.Time) (string, error) {
	dir, err := config.StateDir()
	if err != nil {
		return "", err
	}
	dir = filepath.Join(dir, "debug")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create debug dir: %w", err)
	}
	return filepath.Join(dir, "capture-"+at.Format("20060102-150405.000")+".wav"), nil
}
