package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jdros15/Talking-LLM/internal/audio"
	"github.com/jdros15/Talking-LLM/internal/audiocache"
	"github.com/jdros15/Talking-LLM/internal/conversation"
	"github.com/jdros15/Talking-LLM/internal/fsm"
	"github.com/jdros15/Talking-LLM/internal/playback"
	"github.com/jdros15/Talking-LLM/internal/services"
	"github.com/jdros15/Talking-LLM/internal/store"
)

type fakeRecorder struct {
	startErr    error
	stopErr     error
	startCalls  atomic.Int32
	stopCalls   atomic.Int32
	cancelCalls atomic.Int32
}

func (f *fakeRecorder) Start(context.Context) error {
	f.startCalls.Add(1)
	return f.startErr
}

func (f *fakeRecorder) Stop(context.Context) (Recording, error) {
	f.stopCalls.Add(1)
	rec := Recording{MIME: audio.MIMEWAV, AudioDevice: "test mic", BytesCaptured: 3200, Duration: 100 * time.Millisecond}
	if f.stopErr != nil {
		return rec, f.stopErr
	}
	rec.Payload = "data:audio/wav;base64,UklGRg=="
	return rec, nil
}

func (f *fakeRecorder) Cancel(context.Context) error {
	f.cancelCalls.Add(1)
	return nil
}

type fakeServices struct {
	mu sync.Mutex

	transcript     string
	transcribeErr  error
	transcribeGate chan struct{}

	reply    string
	replyErr error

	speech     string
	synthErr   error
	audioIn    []string
	history    [][]services.Turn
	synthText  []string
	synthVoice []string
}

func (f *fakeServices) Transcribe(_ context.Context, audio, _ string) (string, error) {
	if f.transcribeGate != nil {
		<-f.transcribeGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audioIn = append(f.audioIn, audio)
	return f.transcript, f.transcribeErr
}

func (f *fakeServices) Reply(_ context.Context, _ string, history []services.Turn, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, history)
	return f.reply, f.replyErr
}

func (f *fakeServices) Synthesize(_ context.Context, text, voiceID, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synthText = append(f.synthText, text)
	f.synthVoice = append(f.synthVoice, voiceID)
	return f.speech, f.synthErr
}

type fakePlayer struct {
	mu     sync.Mutex
	played int
	block  bool
	err    error
}

func (p *fakePlayer) Play(ctx context.Context, _ string, _ []byte, _ float64) error {
	p.mu.Lock()
	p.played++
	block, err := p.block, p.err
	p.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (p *fakePlayer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.played
}

type fakeSettings struct {
	creds bool
}

func (s fakeSettings) HasCredentials() bool { return s.creds }
func (fakeSettings) GeminiKey() string      { return "gem" }
func (fakeSettings) ElevenLabsKey() string  { return "eleven" }
func (fakeSettings) VoiceID() string        { return "voice-1" }
func (fakeSettings) Volume() float64        { return 0.5 }

type fakeIndicator struct {
	mu         sync.Mutex
	statuses   []string
	errors     []string
	recordings atomic.Int32
	startCues  atomic.Int32
	stopCues   atomic.Int32
	doneCues   atomic.Int32
	cancelCues atomic.Int32
}

func (f *fakeIndicator) ShowRecording(context.Context, time.Duration) { f.recordings.Add(1) }
func (f *fakeIndicator) ShowStatus(_ context.Context, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, text)
}
func (f *fakeIndicator) ShowError(_ context.Context, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, text)
}
func (*fakeIndicator) ShowReady(context.Context)     {}
func (f *fakeIndicator) CueStart(context.Context)    { f.startCues.Add(1) }
func (f *fakeIndicator) CueStop(context.Context)     { f.stopCues.Add(1) }
func (f *fakeIndicator) CueComplete(context.Context) { f.doneCues.Add(1) }
func (f *fakeIndicator) CueCancel(context.Context)   { f.cancelCues.Add(1) }

func (f *fakeIndicator) errorTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.errors...)
}

type fakeObserver struct {
	mu       sync.Mutex
	outcomes []string
	stages   map[string]int
}

func (o *fakeObserver) ObserveStage(stage string, _ time.Duration, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stages == nil {
		o.stages = map[string]int{}
	}
	o.stages[stage]++
}

func (o *fakeObserver) ObserveRun(outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

type harness struct {
	ctrl      *Controller
	recorder  *fakeRecorder
	services  *fakeServices
	player    *fakePlayer
	speaker   *playback.Session
	log       *conversation.Log
	cache     *audiocache.Cache
	adapter   *store.Adapter
	indicator *fakeIndicator
	observer  *fakeObserver
}

func speechPayload() string {
	return audio.EncodeDataURI(audio.MIMEWAV, audio.EncodeWAV(audio.SamplesToBytes([]int16{1, 2, 3, 4}), 16000, 1))
}

func newHarness(t *testing.T, creds bool) *harness {
	t.Helper()

	adapter := store.NewAdapter(store.NewMemory(0))
	cache := audiocache.New(adapter, audiocache.DefaultBound)
	adapter.SetShrinker(cache)
	log := conversation.New(adapter, cache, nil, conversation.Config{HasCredentials: func() bool { return creds }})
	log.Initialize()

	player := &fakePlayer{}
	speaker := playback.New(player, cache)
	h := &harness{
		recorder: &fakeRecorder{},
		services: &fakeServices{
			transcript: "  what is   the weather ",
			reply:      "It is **sunny** today.",
			speech:     speechPayload(),
		},
		player:    player,
		speaker:   speaker,
		log:       log,
		cache:     cache,
		adapter:   adapter,
		indicator: &fakeIndicator{},
		observer:  &fakeObserver{},
	}

	ctrl, err := NewController(Deps{
		Recorder:    h.recorder,
		Transcriber: h.services,
		Replier:     h.services,
		Synthesizer: h.services,
		Speaker:     speaker,
		Log:         log,
		Cache:       cache,
		Settings:    fakeSettings{creds: creds},
		Indicator:   h.indicator,
		Observer:    h.observer,
	})
	require.NoError(t, err)
	h.ctrl = ctrl
	t.Cleanup(func() { speaker.Stop() })
	return h
}

// exchange records and stops once, returning the run result.
func (h *harness) exchange(t *testing.T) Result {
	t.Helper()
	require.NoError(t, h.ctrl.StartRecording(context.Background()))
	return h.ctrl.StopRecording(context.Background())
}

func TestNewControllerRequiresCollaborators(t *testing.T) {
	_, err := NewController(Deps{})
	require.Error(t, err)
}

func TestExchangeHappyPath(t *testing.T) {
	h := newHarness(t, true)

	result := h.exchange(t)
	require.NoError(t, result.Err)
	require.Equal(t, fsm.StateIdle, result.State)
	require.Equal(t, "what is the weather", result.Transcript)
	require.Equal(t, "It is **sunny** today.", result.Reply)
	require.False(t, result.Fallback)
	require.NotEmpty(t, result.RunID)
	require.Equal(t, "test mic", result.AudioDevice)
	require.Contains(t, result.Timings, stageTranscribe)
	require.Contains(t, result.Timings, stageSpeak)

	msgs := h.log.Messages()
	require.Len(t, msgs, 3)
	require.Equal(t, conversation.RoleUser, msgs[1].Role)
	require.Equal(t, "what is the weather", msgs[1].Content)
	require.Equal(t, conversation.RoleAssistant, msgs[2].Role)
	require.Equal(t, result.ReplyAt, msgs[2].Timestamp)

	payload, ok := h.cache.Fetch(result.ReplyAt)
	require.True(t, ok)
	require.Equal(t, speechPayload(), payload)
	require.Equal(t, 1, h.player.count())

	require.Equal(t, []string{"It is sunny today."}, h.services.synthText)
	require.Equal(t, []string{"voice-1"}, h.services.synthVoice)
	require.Len(t, h.services.history, 1)
	require.Empty(t, h.services.history[0])
	require.Equal(t, []string{"ok"}, h.observer.outcomes)
	require.Equal(t, int32(1), h.indicator.startCues.Load())
	require.Equal(t, int32(1), h.indicator.stopCues.Load())
	require.Equal(t, int32(1), h.indicator.doneCues.Load())
}

func TestHistoryExcludesCurrentUtterance(t *testing.T) {
	h := newHarness(t, true)

	h.exchange(t)
	h.exchange(t)

	require.Len(t, h.services.history, 2)
	second := h.services.history[1]
	require.Len(t, second, 2)
	require.Equal(t, "user", second[0].Role)
	require.Equal(t, "what is the weather", second[0].Content)
	require.Equal(t, "assistant", second[1].Role)
}

func TestHistorySkipsWelcomeAndFailedPlaceholder(t *testing.T) {
	h := newHarness(t, true)
	h.services.transcribeErr = errors.New("gateway down")
	require.Error(t, h.exchange(t).Err)

	h.services.transcribeErr = nil
	require.NoError(t, h.exchange(t).Err)
	h.services.transcript = "and tomorrow"
	require.NoError(t, h.exchange(t).Err)

	require.Len(t, h.services.history, 2)
	require.Empty(t, h.services.history[0])
	for _, turn := range h.services.history[1] {
		require.NotEqual(t, conversation.VoicePlaceholder, turn.Content)
		require.NotEqual(t, conversation.WelcomeReady, turn.Content)
	}
	require.Len(t, h.services.history[1], 2)
}

func TestStartRecordingRequiresCredentials(t *testing.T) {
	h := newHarness(t, false)

	err := h.ctrl.StartRecording(context.Background())
	require.ErrorIs(t, err, ErrMissingCredentials)
	require.Equal(t, fsm.StateIdle, h.ctrl.State())
	require.Zero(t, h.recorder.startCalls.Load())
	require.Equal(t, []string{StatusMissingKeys}, h.indicator.errorTexts())
}

func TestStartRecordingTwice(t *testing.T) {
	h := newHarness(t, true)

	require.NoError(t, h.ctrl.StartRecording(context.Background()))
	require.ErrorIs(t, h.ctrl.StartRecording(context.Background()), ErrAlreadyRecording)
	require.Equal(t, int32(1), h.recorder.startCalls.Load())

	result := h.ctrl.StopRecording(context.Background())
	require.NoError(t, result.Err)
}

func TestStartRecordingFailureResetsToIdle(t *testing.T) {
	h := newHarness(t, true)
	h.recorder.startErr = errors.New("no pulse")

	err := h.ctrl.StartRecording(context.Background())
	require.ErrorContains(t, err, "no pulse")
	require.Equal(t, fsm.StateIdle, h.ctrl.State())
	require.Equal(t, []string{StatusMicUnavailable}, h.indicator.errorTexts())
	require.Zero(t, h.indicator.startCues.Load())
}

func TestStopRecordingWhenIdle(t *testing.T) {
	h := newHarness(t, true)

	result := h.ctrl.StopRecording(context.Background())
	require.ErrorIs(t, result.Err, ErrNotRecording)
	require.Equal(t, fsm.StateIdle, result.State)
	require.Zero(t, h.recorder.stopCalls.Load())
}

func TestNoAudioSkipsNetwork(t *testing.T) {
	h := newHarness(t, true)
	h.recorder.stopErr = ErrNoAudio

	result := h.exchange(t)
	require.ErrorIs(t, result.Err, ErrNoAudio)
	require.Equal(t, fsm.StateIdle, result.State)
	require.Empty(t, h.services.audioIn)
	require.Equal(t, 1, h.log.Len())
	require.Equal(t, []string{StatusNoAudio}, h.indicator.errorTexts())
}

func TestTranscriptionFailureKeepsPlaceholder(t *testing.T) {
	h := newHarness(t, true)
	h.services.transcribeErr = &services.ServiceError{Endpoint: services.EndpointTranscribe, StatusCode: 500, Message: "Transcription failed"}

	result := h.exchange(t)
	require.Error(t, result.Err)
	require.Equal(t, fsm.StateIdle, result.State)

	last, ok := h.log.Last()
	require.True(t, ok)
	require.Equal(t, conversation.VoicePlaceholder, last.Content)
	require.Empty(t, h.services.history)
	require.Equal(t, []string{"Error: Transcription failed"}, h.indicator.errorTexts())
	require.Equal(t, []string{"transcribe_failed"}, h.observer.outcomes)
}

func TestEmptyTranscription(t *testing.T) {
	h := newHarness(t, true)
	h.services.transcript = "   "

	result := h.exchange(t)
	require.ErrorIs(t, result.Err, ErrEmptyTranscript)
	require.Empty(t, h.services.history)
}

func TestReplyFailureUsesFallback(t *testing.T) {
	h := newHarness(t, true)
	h.services.replyErr = errors.New("gateway down")

	result := h.exchange(t)
	require.NoError(t, result.Err)
	require.True(t, result.Fallback)
	require.Equal(t, FallbackReply, result.Reply)

	msgs := h.log.Messages()
	assistants := 0
	for _, m := range msgs[1:] {
		if m.Role == conversation.RoleAssistant {
			assistants++
			require.Equal(t, FallbackReply, m.Content)
		}
	}
	require.Equal(t, 1, assistants)
	require.Equal(t, []string{FallbackReply}, h.services.synthText)
	require.Equal(t, []string{"fallback"}, h.observer.outcomes)
}

func TestEmptyReplyUsesFallback(t *testing.T) {
	h := newHarness(t, true)
	h.services.reply = "  "

	result := h.exchange(t)
	require.True(t, result.Fallback)
	require.Equal(t, FallbackReply, result.Reply)
}

func TestSynthesisFailureSkipsPlayback(t *testing.T) {
	h := newHarness(t, true)
	h.services.synthErr = errors.New("quota")

	result := h.exchange(t)
	require.ErrorContains(t, result.Err, "quota")
	require.Equal(t, fsm.StateIdle, result.State)
	require.Zero(t, h.player.count())
	require.Zero(t, h.cache.Len())
	require.Equal(t, 3, h.log.Len())
}

func TestPlaybackFailureReturnsToIdle(t *testing.T) {
	h := newHarness(t, true)
	h.player.err = errors.New("sink gone")

	result := h.exchange(t)
	require.ErrorContains(t, result.Err, "sink gone")
	require.Equal(t, fsm.StateIdle, result.State)
	_, ok := h.cache.Fetch(result.ReplyAt)
	require.True(t, ok)
}

func TestFormatElapsed(t *testing.T) {
	require.Equal(t, "00:00", FormatElapsed(0))
	require.Equal(t, "00:00", FormatElapsed(-time.Second))
	require.Equal(t, "00:59", FormatElapsed(59*time.Second+900*time.Millisecond))
	require.Equal(t, "02:05", FormatElapsed(125*time.Second))
	require.Equal(t, "61:01", FormatElapsed(61*time.Minute+time.Second))
}

func TestFormatHistory(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	got := FormatHistory([]conversation.Message{
		{Role: conversation.RoleUser, Content: "hi", Timestamp: ts},
		{Role: conversation.RoleAssistant, Content: "hello", Timestamp: ts},
	})
	require.Equal(t, "2024-01-02T03:04:05Z user: hi\n2024-01-02T03:04:05Z assistant: hello", got)
}
