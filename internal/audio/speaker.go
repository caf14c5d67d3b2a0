package audio

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

// Speaker owns the default output device and plays normalized float samples
// at PlaybackRate. Play blocks until the samples have been handed to the
// device, which is what gives back-to-back fragments gapless playback.
type Speaker struct {
	gen atomic.Uint64

	mu     sync.Mutex
	stream *portaudio.Stream
	buf    []int16
	closed bool
}

// NewSpeaker opens the default output device.
func NewSpeaker() (*Speaker, error) {
	buf := make([]int16, FramesPerChunk)
	stream, err := portaudio.OpenDefaultStream(0, Channels, float64(PlaybackRate), FramesPerChunk, buf)
	if err != nil {
		return nil, fmt.Errorf("open speaker: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("start speaker: %w", err)
	}
	return &Speaker{stream: stream, buf: buf}, nil
}

// Play writes the samples to the device in fixed-size blocks. A Flush issued
// while Play is in progress makes it return early without error.
func (s *Speaker) Play(samples []float32) error {
	gen := s.gen.Load()
	for off := 0; off < len(samples); off += FramesPerChunk {
		if s.gen.Load() != gen {
			return nil
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return fmt.Errorf("speaker closed")
		}
		n := copyToInt16(s.buf, samples[off:])
		for i := n; i < len(s.buf); i++ {
			s.buf[i] = 0
		}
		err := s.stream.Write()
		s.mu.Unlock()
		if err != nil {
			return fmt.Errorf("write speaker: %w", err)
		}
	}
	return nil
}

// Flush drops whatever the device has buffered and unblocks in-flight Play
// calls. Used on interruption.
func (s *Speaker) Flush() {
	s.gen.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	_ = s.stream.Abort()
	_ = s.stream.Start()
}

// Close releases the output device. Safe to call more than once.
func (s *Speaker) Close() error {
	s.gen.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.stream.Abort()
	if err := s.stream.Close(); err != nil {
		return fmt.Errorf("close speaker: %w", err)
	}
	return nil
}

func copyToInt16(dst []int16, src []float32) int {
	n := len(src)
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		s := src[i]
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		dst[i] = int16(math.Round(float64(s) * 32767))
	}
	return n
}
