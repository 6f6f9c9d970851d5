package audio

import (
	"context"
	"errors"
	"fmt"

	"github.com/jfreymuth/pulse"
)

// PlayPCM plays interleaved 16-bit samples through the default Pulse sink and
// blocks until they drain or ctx is cancelled. Cancellation returns ctx.Err().
func PlayPCM(ctx context.Context, pcm PCM, mediaName string) error {
	if len(pcm.Samples) == 0 {
		return nil
	}
	if pcm.SampleRate <= 0 {
		return errors.New("play pcm: sample rate must be positive")
	}

	client, err := connect("audio-speakers")
	if err != nil {
		return err
	}
	defer client.Close()

	samples := pcm.Samples
	cursor := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if ctx.Err() != nil || cursor >= len(samples) {
			return 0, pulse.EndOfData
		}

		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	layout := pulse.PlaybackMono
	if pcm.Channels == 2 {
		layout = pulse.PlaybackStereo
	}

	stream, err := client.NewPlayback(
		reader,
		layout,
		pulse.PlaybackSampleRate(pcm.SampleRate),
		pulse.PlaybackLatency(0.05),
		pulse.PlaybackMediaName(mediaName),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play pulse stream: %w", err)
	}
	return nil
}

// ScaleVolume multiplies samples in place by volume, clamped to 0..1.
func ScaleVolume(samples []int16, volume float64) {
	switch {
	case volume >= 1:
		return
	case volume <= 0:
		clear(samples)
		return
	}
	for i, s := range samples {
		samples[i] = int16(float64(s) * volume)
	}
}
