package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	// CaptureSampleRate is the rate of recorded PCM: mono, signed 16-bit.
	CaptureSampleRate = 16000
	captureFragment   = CaptureSampleRate * 2 / 50 // 20ms
)

// Capture buffers one utterance from a Pulse source in memory.
type Capture struct {
	device  Device
	started time.Time

	client *pulse.Client
	stream *pulse.RecordStream

	once sync.Once
	done chan struct{}

	mu      sync.Mutex
	pcm     []byte
	stopped bool
}

// StartCapture opens a record stream on device. The stream stops by itself
// when ctx ends.
func StartCapture(ctx context.Context, device Device) (*Capture, error) {
	client, err := connect("audio-input-microphone")
	if err != nil {
		return nil, err
	}
	source, err := client.SourceByID(device.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", device.ID, err)
	}

	c := &Capture{device: device, started: time.Now(), client: client, done: make(chan struct{})}
	stream, err := client.NewRecord(
		pulse.NewWriter(c, pulseproto.FormatInt16LE),
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(CaptureSampleRate),
		pulse.RecordBufferFragmentSize(captureFragment),
		pulse.RecordMediaName("talkie voice message"),
	)
	if err != nil {
		_ = c.Stop()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}
	c.stream = stream
	stream.Start()

	go func() {
		select {
		case <-ctx.Done():
			_ = c.Stop()
		case <-c.done:
		}
	}()
	return c, nil
}

func (c *Capture) Device() Device { return c.device }

func (c *Capture) Elapsed() time.Duration { return time.Since(c.started) }

// BytesCaptured reports how much PCM has arrived so far.
func (c *Capture) BytesCaptured() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.pcm))
}

// RawPCM returns a copy of the captured samples.
func (c *Capture) RawPCM() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.pcm...)
}

// Write receives frames from Pulse. It refuses data once stopped.
func (c *Capture) Write(frame []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return 0, io.EOF
	}
	c.pcm = append(c.pcm, frame...)
	return len(frame), nil
}

// Stop ends the stream and releases the Pulse connection. Later calls are
// no-ops.
func (c *Capture) Stop() error {
	c.once.Do(func() {
		c.mu.Lock()
		c.stopped = true
		c.mu.Unlock()
		close(c.done)

		if c.stream != nil {
			c.stream.Stop()
			c.stream.Close()
		}
		if c.client != nil {
			c.client.Close()
		}
	})
	return nil
}
