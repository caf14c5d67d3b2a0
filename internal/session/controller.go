// Package session drives the lifecycle of the live call: device
// acquisition, transport negotiation, inbound event dispatch, and teardown.
package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/cancelikay/santral/internal/audio"
	"github.com/cancelikay/santral/internal/metrics"
	"github.com/cancelikay/santral/internal/playback"
	"github.com/cancelikay/santral/internal/transcript"
)

// Readiness gate for the outbound send path. Checked synchronously by the
// capture callback; a failed check drops the chunk instead of queueing it.
const (
	gateNotReady int32 = iota
	gateReady
	gateClosed
)

type eventKind int

const (
	evOpened eventKind = iota
	evMessage
	evClosed
	evErrored
)

// event is the tagged union carried from the transport callbacks to the
// single dispatch goroutine.
type event struct {
	kind eventKind
	msg  Event
	err  error
}

// Options configures a Controller.
type Options struct {
	Model  string
	Caller CallerContext
	// Instructions is the base behavioral instruction.
	Instructions string
	Debug        bool
	// Clock overrides the scheduler clock. Nil means time.Now.
	Clock playback.Clock
}

// Controller is the session state machine. All session-scoped mutable
// state (handle, devices, scheduler, accumulators, log) lives here and is
// reset by a single teardown routine.
type Controller struct {
	transport Transport
	devices   Devices
	hub       Broadcaster
	metrics   *metrics.Metrics
	opts      Options

	gate atomic.Int32
	agg  *transcript.Aggregator

	mu       sync.Mutex
	state    State
	gen      uint64
	handle   Handle
	capture  CaptureSource
	sink     PlaybackSink
	sched    *playback.Scheduler
	done     chan struct{}
	callLog  []transcript.LogMessage
	wantMute bool
}

// NewController creates a controller in the disconnected state. hub and m
// may be nil.
func NewController(transport Transport, devices Devices, hub Broadcaster, m *metrics.Metrics, opts Options) *Controller {
	c := &Controller{
		transport: transport,
		devices:   devices,
		hub:       hub,
		metrics:   m,
		opts:      opts,
		agg:       transcript.NewAggregator(),
		state:     StateDisconnected,
	}
	c.gate.Store(gateClosed)
	return c
}

// Connect acquires the audio devices, opens the remote transport, and
// starts streaming. Valid only from the disconnected and error states.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateConnected {
		c.mu.Unlock()
		return ErrSessionActive
	}
	c.setStateLocked(StateConnecting)
	c.gate.Store(gateNotReady)
	// Stamp this attempt. teardown bumps the generation, so every
	// suspension point below can detect an intervening disconnect.
	c.gen++
	gen := c.gen
	c.mu.Unlock()
	c.broadcastState(StateConnecting)

	sink, err := c.devices.OpenSink()
	if err != nil {
		if c.aborted(gen) {
			return ErrConnectAborted
		}
		devErr := &DeviceError{Device: "speaker", Err: err}
		c.failConnect(devErr)
		return devErr
	}
	capture, err := c.devices.OpenCapture(c.send)
	if err != nil {
		_ = sink.Close()
		if c.aborted(gen) {
			return ErrConnectAborted
		}
		devErr := &DeviceError{Device: "microphone", Err: err}
		c.failConnect(devErr)
		return devErr
	}

	sched := playback.NewScheduler(sink, c.opts.Clock)
	done := make(chan struct{})
	events := make(chan event, 256)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		_ = capture.Stop()
		_ = sink.Close()
		return ErrConnectAborted
	}
	c.sink = sink
	c.capture = capture
	c.sched = sched
	c.done = done
	if c.wantMute {
		capture.Mute()
	}
	c.mu.Unlock()

	go c.dispatch(events, done)

	cb := Callbacks{
		OnOpen:    func() { push(events, done, event{kind: evOpened}) },
		OnMessage: func(e Event) { push(events, done, event{kind: evMessage, msg: e}) },
		OnClose:   func() { push(events, done, event{kind: evClosed}) },
		OnError:   func(err error) { push(events, done, event{kind: evErrored, err: err}) },
	}
	cfg := Config{
		Voice:               ResolveVoice(c.opts.Caller.Voice),
		Instructions:        ComposeInstructions(c.opts.Instructions, c.opts.Caller),
		InputTranscription:  true,
		OutputTranscription: true,
	}

	handle, err := c.transport.Connect(ctx, c.opts.Model, cfg, cb)
	if err != nil {
		if c.aborted(gen) {
			return ErrConnectAborted
		}
		c.failConnect(fmt.Errorf("open transport: %w", err))
		return fmt.Errorf("open transport: %w", err)
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		_ = handle.Close()
		return ErrConnectAborted
	}
	c.handle = handle
	c.gate.Store(gateReady)
	c.mu.Unlock()

	if err := capture.Start(); err != nil {
		if c.aborted(gen) {
			return ErrConnectAborted
		}
		devErr := &DeviceError{Device: "microphone", Err: err}
		c.failConnect(devErr)
		return devErr
	}
	return nil
}

// aborted reports whether a teardown superseded the given connect attempt.
func (c *Controller) aborted(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen != gen
}

// failConnect tears the half-built session down into the error state and
// records exactly one system log entry.
func (c *Controller) failConnect(err error) {
	c.teardown(StateError, false)
	c.systemLog(fmt.Sprintf("Call failed: %v", err))
}

// Disconnect ends the call and resets all session state, including the
// call log. Idempotent: the single cancellation point.
func (c *Controller) Disconnect() {
	c.teardown(StateDisconnected, true)
}

// teardown invalidates the send gate first, then releases every held
// resource exactly once, and finally settles into the given state. The
// gate close and generation bump happen under c.mu so an in-flight
// Connect cannot re-open the gate afterwards.
func (c *Controller) teardown(final State, clearLog bool) {
	c.mu.Lock()
	c.gate.Store(gateClosed)
	c.gen++
	handle, capture, sink, sched, done := c.handle, c.capture, c.sink, c.sched, c.done
	c.handle, c.capture, c.sink, c.sched, c.done = nil, nil, nil, nil, nil
	c.mu.Unlock()

	if done != nil {
		close(done)
	}
	if capture != nil {
		_ = capture.Stop()
	}
	if handle != nil {
		_ = handle.Close()
	}
	if sched != nil {
		sched.Stop()
	}
	if sink != nil {
		_ = sink.Close()
	}
	c.agg.Reset()

	c.mu.Lock()
	if clearLog {
		c.callLog = nil
	}
	changed := c.state != final
	c.setStateLocked(final)
	c.mu.Unlock()
	if changed {
		c.broadcastState(final)
	}
}

func push(events chan<- event, done <-chan struct{}, ev event) {
	select {
	case events <- ev:
	case <-done:
	}
}

// dispatch serializes all inbound protocol activity: scheduler and
// aggregator state is only ever touched from here.
func (c *Controller) dispatch(events <-chan event, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case ev := <-events:
			switch ev.kind {
			case evOpened:
				c.handleOpened()
			case evMessage:
				c.handleMessage(ev.msg)
			case evClosed:
				c.teardown(StateDisconnected, false)
				c.systemLog("Call ended.")
				return
			case evErrored:
				c.teardown(StateError, false)
				c.systemLog(fmt.Sprintf("Call error: %v", ev.err))
				return
			}
		}
	}
}

func (c *Controller) handleOpened() {
	c.mu.Lock()
	if c.state != StateConnecting {
		c.mu.Unlock()
		return
	}
	c.setStateLocked(StateConnected)
	c.mu.Unlock()
	c.broadcastState(StateConnected)

	c.systemLog("Call connected.")
	c.appendLog(transcript.NewLogMessage(transcript.SenderAgent, Greeting(c.opts.Caller)))
}

func (c *Controller) handleMessage(e Event) {
	c.mu.Lock()
	state := c.state
	sched := c.sched
	c.mu.Unlock()
	if state != StateConnecting && state != StateConnected {
		return
	}

	if e.InputTranscription != "" {
		c.agg.AddInput(e.InputTranscription)
	}
	if e.OutputTranscription != "" {
		c.agg.AddOutput(e.OutputTranscription)
	}

	if e.Interrupted && sched != nil {
		sched.Interrupt()
		if c.metrics != nil {
			c.metrics.Interruptions.Inc()
		}
	}

	if len(e.Audio) > 0 && sched != nil {
		clip, err := audio.DecodeClip(e.Audio, audio.PlaybackRate, audio.Channels)
		if err != nil {
			// Non-fatal: drop the fragment, keep the loop running.
			c.debugf("audio fragment dropped: %v", err)
			if c.metrics != nil {
				c.metrics.DecodeErrors.Inc()
			}
		} else {
			sched.Schedule(clip)
			if c.metrics != nil {
				c.metrics.FragmentsScheduled.Inc()
			}
		}
	}

	if e.TurnComplete {
		for _, msg := range c.agg.FlushTurn() {
			c.appendLog(msg)
		}
		if c.metrics != nil {
			c.metrics.TurnsCompleted.Inc()
		}
	}
}

// send is the capture callback target. It never blocks and never queues:
// a chunk that cannot go out now is dropped.
func (c *Controller) send(chunk []byte) {
	if c.gate.Load() != gateReady {
		c.debugf("chunk dropped: %v", ErrSendNotReady)
		if c.metrics != nil {
			c.metrics.ChunksDropped.Inc()
		}
		return
	}
	c.mu.Lock()
	handle := c.handle
	c.mu.Unlock()
	if handle == nil {
		c.debugf("chunk dropped: %v", ErrSendNotReady)
		if c.metrics != nil {
			c.metrics.ChunksDropped.Inc()
		}
		return
	}
	if err := handle.Send(chunk); err != nil {
		c.debugf("chunk dropped: send failed: %v", err)
		if c.metrics != nil {
			c.metrics.ChunksDropped.Inc()
		}
		return
	}
	if c.metrics != nil {
		c.metrics.ChunksSent.Inc()
	}
}

// SetMuted gates the capture pipeline. The preference survives across
// calls: connecting while muted starts muted.
func (c *Controller) SetMuted(muted bool) {
	c.mu.Lock()
	c.wantMute = muted
	capture := c.capture
	c.mu.Unlock()
	if capture != nil {
		if muted {
			capture.Mute()
		} else {
			capture.Unmute()
		}
	}
	if c.hub != nil {
		c.hub.BroadcastMuteChanged(muted)
	}
}

// Muted reports the mute preference.
func (c *Controller) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wantMute
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Log returns a copy of the call log.
func (c *Controller) Log() []transcript.LogMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]transcript.LogMessage(nil), c.callLog...)
}

func (c *Controller) systemLog(text string) {
	c.appendLog(transcript.NewLogMessage(transcript.SenderSystem, text))
}

func (c *Controller) appendLog(msg transcript.LogMessage) {
	c.mu.Lock()
	c.callLog = append(c.callLog, msg)
	c.mu.Unlock()
	if c.hub != nil {
		c.hub.BroadcastLogMessage(msg)
	}
}

// setStateLocked mutates the state under c.mu. Callers broadcast the
// change after releasing the lock via broadcastState.
func (c *Controller) setStateLocked(state State) {
	if c.state == state {
		return
	}
	c.state = state
	if c.metrics != nil {
		c.metrics.SessionState.Set(float64(state))
	}
}

func (c *Controller) broadcastState(state State) {
	if c.hub != nil {
		c.hub.BroadcastStateChanged(state)
	}
}

func (c *Controller) debugf(format string, args ...any) {
	if c.opts.Debug {
		log.Printf("debug: session: "+format, args...)
	}
}
