package session

import (
	"context"
	"errors"
	"time"

	"github.com/jdros15/Talking-LLM/internal/conversation"
	"github.com/jdros15/Talking-LLM/internal/services"
)

var (
	// ErrRecorderUnavailable indicates Stop was called on a recorder with no live capture.
	ErrRecorderUnavailable = errors.New("recorder not started")
	// ErrNoAudio indicates the capture finished without any samples.
	ErrNoAudio = errors.New("no audio captured")
	// ErrMissingCredentials blocks the pipeline until both API keys are set.
	ErrMissingCredentials = errors.New("missing api keys")
	// ErrAlreadyRecording is returned when a recording session is already open.
	ErrAlreadyRecording = errors.New("already recording")
	// ErrNotRecording is returned when a stop arrives with no open recording.
	ErrNotRecording = errors.New("not recording")
	// ErrBusy is returned while an earlier exchange is still being processed.
	ErrBusy = errors.New("busy processing previous message")
	// ErrEmptyTranscript indicates the transcription came back without any words.
	ErrEmptyTranscript = errors.New("no speech recognized; check microphone input or mute state")
)

// Recording is one finished capture packaged for transcription.
type Recording struct {
	Payload       string
	MIME          string
	AudioDevice   string
	BytesCaptured int64
	Duration      time.Duration
}

// Recorder abstracts microphone capture.
type Recorder interface {
	Start(context.Context) error
	Stop(context.Context) (Recording, error)
	Cancel(context.Context) error
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio, apiKey string) (string, error)
}

type Replier interface {
	Reply(ctx context.Context, message string, history []services.Turn, apiKey string) (string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID, apiKey string) (string, error)
}

// Speaker is the playback session. The returned channel yields once when the
// stream ends, with nil on completion or explicit stop.
type Speaker interface {
	Play(ctx context.Context, payload string, volume float64) (<-chan error, error)
	Replay(ctx context.Context, ts time.Time) (<-chan error, error)
	Stop() bool
	Active() bool
}

// Log is the conversation subset the controller drives.
type Log interface {
	Append(role conversation.Role, content string, ts *time.Time) conversation.Message
	UpdateLastUserMessage(content string) bool
	History(limit int) []conversation.Message
	Messages() []conversation.Message
	Clear()
}

// Cache stores synthesized audio under the reply timestamp.
type Cache interface {
	Store(ts time.Time, payload string)
}

// Settings exposes the user preferences a run reads.
type Settings interface {
	HasCredentials() bool
	GeminiKey() string
	ElevenLabsKey() string
	VoiceID() string
	Volume() float64
}

// Indicator is the session-facing subset of indicator behavior.
type Indicator interface {
	ShowRecording(context.Context, time.Duration)
	ShowStatus(context.Context, string)
	ShowError(context.Context, string)
	ShowReady(context.Context)
	CueStart(context.Context)
	CueStop(context.Context)
	CueComplete(context.Context)
	CueCancel(context.Context)
}

// Observer receives stage timings and run outcomes.
type Observer interface {
	ObserveStage(stage string, d time.Duration, err error)
	ObserveRun(outcome string, d time.Duration)
}

// noopIndicator preserves session flow when no indicator is wired.
type noopIndicator struct{}

func (noopIndicator) ShowRecording(context.Context, time.Duration) {}
func (noopIndicator) ShowStatus(context.Context, string)           {}
func (noopIndicator) ShowError(context.Context, string)            {}
func (noopIndicator) ShowReady(context.Context)                    {}
func (noopIndicator) CueStart(context.Context)                     {}
func (noopIndicator) CueStop(context.Context)                      {}
func (noopIndicator) CueComplete(context.Context)                  {}
func (noopIndicator) CueCancel(context.Context)                    {}

type noopObserver struct{}

func (noopObserver) ObserveStage(string, time.Duration, error) {}
func (noopObserver) ObserveRun(string, time.Duration)          {}

type noopCache struct{}

func (noopCache) Store(time.Time, string) {}
