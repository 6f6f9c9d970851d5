package indicator

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/jdros15/Talking-LLM/internal/audio"
)

type cueKind int

const (
	cueStart cueKind = iota + 1
	cueStop
	cueComplete
	cueCancel
)

const (
	cueRate   = 16000
	cueLevel  = 0.18
	cueGap    = 22 * time.Millisecond
	cueRampMS = 5
)

// tone is one beep of a cue.
type tone struct {
	hz  float64
	dur time.Duration
}

// Rising pairs mark a start or a finished reply; falling ones mark a stop
// or a cancel.
var cueTones = map[cueKind][]tone{
	cueStart:    {{880, 70 * time.Millisecond}, {1175, 70 * time.Millisecond}},
	cueStop:     {{620, 120 * time.Millisecond}},
	cueComplete: {{740, 65 * time.Millisecond}, {988, 90 * time.Millisecond}},
	cueCancel:   {{480, 75 * time.Millisecond}, {360, 90 * time.Millisecond}},
}

var cuePCM = sync.OnceValue(func() map[cueKind][]int16 {
	rendered := make(map[cueKind][]int16, len(cueTones))
	for kind, tones := range cueTones {
		rendered[kind] = renderCue(tones)
	}
	return rendered
})

// emitCue plays one cue through Pulse and blocks until it drains.
func emitCue(ctx context.Context, kind cueKind) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	samples := cuePCM()[kind]
	if len(samples) == 0 {
		return nil
	}
	return audio.PlayPCM(ctx, audio.PCM{Samples: samples, SampleRate: cueRate, Channels: 1}, "talkie cue")
}

// renderCue concatenates tones with a short silence between them.
func renderCue(tones []tone) []int16 {
	var pcm []int16
	for i, t := range tones {
		if i > 0 {
			pcm = append(pcm, make([]int16, sampleCount(cueGap))...)
		}
		pcm = append(pcm, renderTone(t)...)
	}
	return pcm
}

// renderTone produces a sine wave with linear fade in and out to avoid clicks.
func renderTone(t tone) []int16 {
	n := sampleCount(t.dur)
	if n == 0 || t.hz <= 0 {
		return nil
	}
	ramp := max(min(n/10, cueRate*cueRampMS/1000), 1)

	pcm := make([]int16, n)
	for i := range pcm {
		gain := min(1, float64(i)/float64(ramp), float64(n-1-i)/float64(ramp))
		phase := 2 * math.Pi * t.hz * float64(i) / cueRate
		pcm[i] = int16(math.Round(math.Sin(phase) * cueLevel * gain * math.MaxInt16))
	}
	return pcm
}

func sampleCount(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * cueRate))
}
