package audio

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

// SendFunc receives one encoded capture chunk. Implementations must not
// block; a chunk the receiver cannot take immediately is lost, never queued.
type SendFunc func(chunk []byte)

// Capture owns the microphone input stream. It reads fixed-size chunks at
// the stream's natural cadence, encodes them to wire PCM, and hands them to
// the send function. While muted, chunks are discarded before encoding.
type Capture struct {
	stream *portaudio.Stream
	buf    []float32
	send   SendFunc
	muted  atomic.Bool

	mu      sync.Mutex
	started bool
	closed  bool
	done    chan struct{}
}

// NewCapture opens the default input device at CaptureRate with
// FramesPerChunk samples per read. The device is held until Stop.
func NewCapture(send SendFunc) (*Capture, error) {
	buf := make([]float32, FramesPerChunk)
	stream, err := portaudio.OpenDefaultStream(Channels, 0, float64(CaptureRate), FramesPerChunk, buf)
	if err != nil {
		return nil, fmt.Errorf("open microphone: %w", err)
	}
	return &Capture{stream: stream, buf: buf, send: send, done: make(chan struct{})}, nil
}

// Start begins the capture loop in its own goroutine.
func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("capture already stopped")
	}
	if c.started {
		return nil
	}
	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("start microphone: %w", err)
	}
	c.started = true
	go c.loop()
	return nil
}

func (c *Capture) loop() {
	for {
		select {
		case <-c.done:
			return
		default:
		}
		if err := c.stream.Read(); err != nil {
			// Read fails once the stream is aborted by Stop.
			return
		}
		c.forward()
	}
}

// forward runs the per-chunk step on the current read buffer: drop if
// muted, otherwise encode and hand off. Never blocks.
func (c *Capture) forward() {
	if c.muted.Load() {
		return
	}
	chunk, err := EncodePCM16(c.buf)
	if err != nil {
		return
	}
	c.send(chunk)
}

// Mute discards captured chunks until Unmute. The device keeps running.
func (c *Capture) Mute() { c.muted.Store(true) }

// Unmute resumes forwarding captured chunks.
func (c *Capture) Unmute() { c.muted.Store(false) }

// Muted reports whether the capture gate is closed.
func (c *Capture) Muted() bool { return c.muted.Load() }

// Stop ends the capture loop and releases the input device. Safe to call
// more than once.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	started := c.started
	close(c.done)
	c.mu.Unlock()

	if started {
		_ = c.stream.Abort()
	}
	if err := c.stream.Close(); err != nil {
		return fmt.Errorf("close microphone: %w", err)
	}
	return nil
}
