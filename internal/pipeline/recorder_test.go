package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jdros15/Talking-LLM/internal/audio"
	"github.com/jdros15/Talking-LLM/internal/config"
	"github.com/jdros15/Talking-LLM/internal/session"
	"github.com/stretchr/testify/require"
)

type fakeCapture struct {
	pcm     []byte
	stopped int
	device  audio.Device
}

func (f *fakeCapture) Stop() error            { f.stopped++; return nil }
func (f *fakeCapture) RawPCM() []byte         { return f.pcm }
func (f *fakeCapture) BytesCaptured() int64   { return int64(len(f.pcm)) }
func (f *fakeCapture) Device() audio.Device   { return f.device }
func (f *fakeCapture) Elapsed() time.Duration { return 2 * time.Second }

func newFakeRecorder(cfg config.Config, c *fakeCapture, selectErr error) *Recorder {
	r := NewRecorder(cfg, nil)
	r.selectDevice = func(context.Context, string, string) (audio.Selection, error) {
		if selectErr != nil {
			return audio.Selection{}, selectErr
		}
		return audio.Selection{Device: audio.Device{ID: "mic", Description: "Desk Mic"}, Warning: "fell back"}, nil
	}
	r.startCapture = func(context.Context, audio.Device) (capture, error) {
		return c, nil
	}
	return r
}

func TestDescribeDevice(t *testing.T) {
	require.Equal(t, "Elgato (alsa_input.wave3)", describeDevice(audio.Device{Description: "Elgato", ID: "alsa_input.wave3"}))
	require.Equal(t, "Elgato", describeDevice(audio.Device{Description: "Elgato"}))
	require.Equal(t, "alsa_input.wave3", describeDevice(audio.Device{ID: "alsa_input.wave3"}))
}

func TestDumpPathUnderStateDir(t *testing.T) {
	stateHome := t.TempDir()
	t.Setenv("XDG_STATE_HOME", stateHome)

	at := time.Date(2024, 5, 1, 9, 30, 15, 250_000_000, time.UTC)
	path, err := dumpPath(at)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(stateHome, "talkie", "debug", "capture-20240501-093015.250.wav"), path)
	require.DirExists(t, filepath.Dir(path))
}

func TestDumpWrittenOwnerOnly(t *testing.T) {
	stateHome := t.TempDir()
	t.Setenv("XDG_STATE_HOME", stateHome)

	cfg := config.Default()
	cfg.Debug.EnableAudioDump = true
	r := newFakeRecorder(cfg, &fakeCapture{}, nil)
	r.writeDebugAudio(audio.SamplesToBytes([]int16{1, 2}))

	entries, err := os.ReadDir(filepath.Join(stateHome, "talkie", "debug"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	info, err := entries[0].Info()
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestStartStopProducesWAVDataURI(t *testing.T) {
	c := &fakeCapture{pcm: audio.SamplesToBytes([]int16{1, 2, 3, 4})}
	r := newFakeRecorder(config.Default(), c, nil)

	require.NoError(t, r.Start(context.Background()))
	require.Error(t, r.Start(context.Background()))

	rec, err := r.Stop(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, c.stopped)
	require.Equal(t, audio.MIMEWAV, rec.MIME)
	require.Equal(t, "Desk Mic (mic)", rec.AudioDevice)
	require.Equal(t, int64(8), rec.BytesCaptured)
	require.True(t, strings.HasPrefix(rec.Payload, "data:audio/wav;base64,"))

	mediaType, data, err := audio.DecodeDataURI(rec.Payload)
	require.NoError(t, err)
	require.Equal(t, audio.MIMEWAV, mediaType)
	pcm, err := audio.DecodeWAV(data)
	require.NoError(t, err)
	require.Equal(t, []int16{1, 2, 3, 4}, pcm.Samples)

	_, err = r.Stop(context.Background())
	require.ErrorIs(t, err, session.ErrRecorderUnavailable)
}

func TestStopWithoutAudio(t *testing.T) {
	r := newFakeRecorder(config.Default(), &fakeCapture{}, nil)
	require.NoError(t, r.Start(context.Background()))

	_, err := r.Stop(context.Background())
	require.ErrorIs(t, err, session.ErrNoAudio)
}

func TestStartFailsWhenSelectionFails(t *testing.T) {
	r := newFakeRecorder(config.Default(), &fakeCapture{}, errors.New("no devices"))
	err := r.Start(context.Background())
	require.ErrorContains(t, err, "select microphone")

	_, err = r.Stop(context.Background())
	require.ErrorIs(t, err, session.ErrRecorderUnavailable)
}

func TestCancelReleasesCaptureAndDumpsAudio(t *testing.T) {
	stateHome := t.TempDir()
	t.Setenv("XDG_STATE_HOME", stateHome)

	cfg := config.Default()
	cfg.Debug.EnableAudioDump = true
	c := &fakeCapture{pcm: audio.SamplesToBytes([]int16{9, 9})}
	r := newFakeRecorder(cfg, c, nil)

	require.NoError(t, r.Start(context.Background()))
	require.NoError(t, r.Cancel(context.Background()))
	require.NoError(t, r.Cancel(context.Background()))
	require.Equal(t, 1, c.stopped)

	entries, err := os.ReadDir(filepath.Join(stateHome, "talkie", "debug"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
