// Package playback schedules decoded audio fragments for gapless output.
package playback

import (
	"sync"
	"time"

	"github.com/cancelikay/santral/internal/audio"
)

// Sink plays decoded sample buffers on the output device. Play blocks for
// roughly the buffer's duration; Flush drops any in-flight playback.
type Sink interface {
	Play(samples []float32) error
	Flush()
}

// Clock returns the current time. Injectable for tests.
type Clock func() time.Time

// Source is a single scheduled one-shot playback unit. It removes itself
// from the scheduler's active set when playback completes.
type Source struct {
	clip  audio.Clip
	start time.Duration
	timer *time.Timer
}

// Start returns the source's offset on the scheduler timeline.
func (s *Source) Start() time.Duration { return s.start }

// Scheduler plays fragments strictly in arrival order with no overlap and
// no gap: each fragment starts at max(now, end of the previous fragment).
//
// Schedule must only be called from a single goroutine (the session's
// inbound dispatch path); the start-time cursor is a sequential accumulator
// and reordering arrivals would break it.
type Scheduler struct {
	sink  Sink
	clock Clock

	playMu sync.Mutex

	mu     sync.Mutex
	epoch  time.Time
	next   time.Duration
	active map[*Source]struct{}
	closed bool
}

// NewScheduler creates a scheduler over the given sink. A nil clock means
// time.Now.
func NewScheduler(sink Sink, clock Clock) *Scheduler {
	if clock == nil {
		clock = time.Now
	}
	return &Scheduler{sink: sink, clock: clock, active: make(map[*Source]struct{})}
}

// Schedule queues the clip at max(now, nextStart) and advances the cursor by
// the clip's duration. It returns the computed start offset.
func (s *Scheduler) Schedule(clip audio.Clip) time.Duration {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0
	}
	if s.epoch.IsZero() {
		s.epoch = s.clock()
	}
	now := s.clock().Sub(s.epoch)
	start := s.next
	if now > start {
		start = now
	}
	s.next = start + clip.Duration()

	src := &Source{clip: clip, start: start}
	s.active[src] = struct{}{}
	src.timer = time.AfterFunc(start-now, func() { s.play(src) })
	s.mu.Unlock()
	return start
}

func (s *Scheduler) play(src *Source) {
	s.playMu.Lock()
	defer s.playMu.Unlock()

	s.mu.Lock()
	_, live := s.active[src]
	s.mu.Unlock()
	if !live {
		return
	}

	_ = s.sink.Play(src.clip.Samples)

	s.mu.Lock()
	delete(s.active, src)
	s.mu.Unlock()
}

// Interrupt forcibly stops every active source, clears the set, and resets
// the cursor so the next fragment schedules relative to now.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	for src := range s.active {
		src.timer.Stop()
	}
	s.active = make(map[*Source]struct{})
	s.next = 0
	s.epoch = s.clock()
	s.mu.Unlock()

	s.sink.Flush()
}

// Stop interrupts playback and rejects further scheduling. Used on
// disconnect.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.Interrupt()
}

// Active returns the number of currently scheduled sources.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// NextStart returns the current cursor position on the scheduler timeline.
func (s *Scheduler) NextStart() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}
