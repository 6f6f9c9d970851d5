package playback

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/jdros15/Talking-LLM/internal/audio"
	"github.com/jdros15/Talking-LLM/internal/config"
)

// Player plays one decoded clip and blocks until it ends or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, mediaType string, data []byte, volume float64) error
}

// PulsePlayer decodes the payload and plays it through PulseAudio with
// software volume.
type PulsePlayer struct{}

func (PulsePlayer) Play(ctx context.Context, mediaType string, data []byte, volume float64) error {
	pcm, err := Decode(mediaType, data)
	if err != nil {
		return err
	}
	audio.ScaleVolume(pcm.Samples, volume)
	return audio.PlayPCM(ctx, pcm, "talkie reply")
}

// CommandPlayer hands the payload to an external player as a temp file. The
// path replaces every "{file}" argument, or is appended when there is none.
// Volume is left to the external program.
type CommandPlayer struct {
	Argv []string
}

func (p CommandPlayer) Play(ctx context.Context, mediaType string, data []byte, _ float64) error {
	if len(p.Argv) == 0 {
		return errors.New("playback command is empty")
	}

	f, err := os.CreateTemp("", "talkie-*"+extension(mediaType))
	if err != nil {
		return fmt.Errorf("create playback file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write playback file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close playback file: %w", err)
	}

	args := commandArgs(p.Argv[1:], path)
	out, err := exec.CommandContext(ctx, p.Argv[0], args...).CombinedOutput()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return fmt.Errorf("playback command failed: %w", err)
		}
		return fmt.Errorf("playback command failed: %w (%s)", err, trimmed)
	}
	return nil
}

func commandArgs(argv []string, path string) []string {
	args := make([]string, 0, len(argv)+1)
	substituted := false
	for _, a := range argv {
		if a == config.FilePlaceholder {
			a = path
			substituted = true
		}
		args = append(args, a)
	}
	if !substituted {
		args = append(args, path)
	}
	return args
}

func extension(mediaType string) string {
	switch audio.NormalizeMIME(mediaType) {
	case audio.MIMEWAV:
		return ".wav"
	case audio.MIMEMPEG:
		return ".mp3"
	default:
		return ""
	}
}
