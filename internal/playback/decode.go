package playback

import (
	"bytes"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"

	"github.com/jdros15/Talking-LLM/internal/audio"
)

// Decode turns a WAV or MP3 payload into interleaved 16-bit samples.
func Decode(mediaType string, data []byte) (audio.PCM, error) {
	switch audio.NormalizeMIME(mediaType) {
	case audio.MIMEWAV:
		return audio.DecodeWAV(data)
	case audio.MIMEMPEG:
		return decodeMP3(data)
	default:
		return audio.PCM{}, fmt.Errorf("unsupported audio type %q", mediaType)
	}
}

// decodeMP3 reads the whole stream. go-mp3 always yields 16-bit stereo.
func decodeMP3(data []byte) (audio.PCM, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return audio.PCM{}, fmt.Errorf("decode mp3: %w", err)
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return audio.PCM{}, fmt.Errorf("decode mp3: %w", err)
	}
	return audio.PCM{
		Samples:    audio.BytesToSamples(raw),
		SampleRate: dec.SampleRate(),
		Channels:   2,
	}, nil
}
