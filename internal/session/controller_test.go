package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cancelikay/santral/internal/audio"
	"github.com/cancelikay/santral/internal/transcript"
)

type handleMock struct {
	mu      sync.Mutex
	sends   [][]byte
	closes  int
	sendErr error
}

func (h *handleMock) Send(media []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sendErr != nil {
		return h.sendErr
	}
	h.sends = append(h.sends, media)
	return nil
}

func (h *handleMock) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closes++
	return nil
}

func (h *handleMock) sendCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sends)
}

func (h *handleMock) closeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closes
}

type transportMock struct {
	mu         sync.Mutex
	handle     *handleMock
	cb         Callbacks
	connectErr error
	connects   int
	lastCfg    Config

	// When set, Connect announces on dialStarted and blocks until
	// dialRelease is closed.
	dialStarted chan struct{}
	dialRelease chan struct{}
}

func (t *transportMock) Connect(_ context.Context, _ string, cfg Config, cb Callbacks) (Handle, error) {
	if t.dialStarted != nil {
		close(t.dialStarted)
		<-t.dialRelease
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connects++
	t.lastCfg = cfg
	if t.connectErr != nil {
		return nil, t.connectErr
	}
	t.cb = cb
	t.handle = &handleMock{}
	return t.handle, nil
}

func (t *transportMock) callbacks() Callbacks {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cb
}

type captureMock struct {
	mu       sync.Mutex
	send     audio.SendFunc
	starts   int
	stops    int
	muted    bool
	openErr  error
	startErr error
}

func (c *captureMock) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startErr != nil {
		return c.startErr
	}
	c.starts++
	return nil
}

func (c *captureMock) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops++
	return nil
}

func (c *captureMock) Mute()   { c.mu.Lock(); c.muted = true; c.mu.Unlock() }
func (c *captureMock) Unmute() { c.mu.Lock(); c.muted = false; c.mu.Unlock() }

func (c *captureMock) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

func (c *captureMock) startCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.starts
}

func (c *captureMock) stopCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stops
}

type playbackSinkMock struct {
	mu      sync.Mutex
	played  [][]float32
	flushes int
	closes  int
}

func (s *playbackSinkMock) Play(samples []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.played = append(s.played, samples)
	return nil
}

func (s *playbackSinkMock) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
}

func (s *playbackSinkMock) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *playbackSinkMock) playCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.played)
}

func (s *playbackSinkMock) flushCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

func (s *playbackSinkMock) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

type fixture struct {
	ctrl      *Controller
	transport *transportMock
	capture   *captureMock
	sink      *playbackSinkMock
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	transport := &transportMock{}
	capture := &captureMock{}
	sink := &playbackSinkMock{}
	devices := Devices{
		OpenCapture: func(send audio.SendFunc) (CaptureSource, error) {
			if capture.openErr != nil {
				return nil, capture.openErr
			}
			capture.mu.Lock()
			capture.send = send
			capture.mu.Unlock()
			return capture, nil
		},
		OpenSink: func() (PlaybackSink, error) { return sink, nil },
	}
	if opts.Model == "" {
		opts.Model = "models/test-live"
	}
	ctrl := NewController(transport, devices, nil, nil, opts)
	return &fixture{ctrl: ctrl, transport: transport, capture: capture, sink: sink}
}

func (f *fixture) connect(t *testing.T) {
	t.Helper()
	if err := f.ctrl.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func logBySender(msgs []transcript.LogMessage, sender transcript.Sender) []transcript.LogMessage {
	var out []transcript.LogMessage
	for _, m := range msgs {
		if m.Sender == sender {
			out = append(out, m)
		}
	}
	return out
}

func pcmBytes(seconds float64) []byte {
	n := int(seconds * float64(audio.PlaybackRate))
	return make([]byte, n*2)
}

func TestController_ConnectTransitionsToConnected(t *testing.T) {
	f := newFixture(t, Options{Caller: CallerContext{Name: "Ayşe"}})
	f.connect(t)

	if got := f.ctrl.State(); got != StateConnecting {
		t.Fatalf("expected connecting before open event, got %v", got)
	}

	f.transport.callbacks().OnOpen()
	waitFor(t, "connected state", func() bool { return f.ctrl.State() == StateConnected })

	msgs := f.ctrl.Log()
	if len(logBySender(msgs, transcript.SenderSystem)) != 1 {
		t.Errorf("expected one system log entry, got %d", len(logBySender(msgs, transcript.SenderSystem)))
	}
	greetings := logBySender(msgs, transcript.SenderAgent)
	if len(greetings) != 1 {
		t.Fatalf("expected one agent greeting, got %d", len(greetings))
	}
	if !strings.Contains(greetings[0].Text, "Ayşe") {
		t.Errorf("expected greeting derived from caller name, got %q", greetings[0].Text)
	}
}

func TestController_ConnectWhileActiveFails(t *testing.T) {
	f := newFixture(t, Options{})
	f.connect(t)

	if err := f.ctrl.Connect(context.Background()); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}
}

func TestController_CallerTurnProducesOneLogMessage(t *testing.T) {
	f := newFixture(t, Options{})
	f.connect(t)
	cb := f.transport.callbacks()
	cb.OnOpen()
	waitFor(t, "connected state", func() bool { return f.ctrl.State() == StateConnected })

	cb.OnMessage(Event{InputTranscription: "merhaba"})
	cb.OnMessage(Event{TurnComplete: true})

	waitFor(t, "caller log entry", func() bool {
		return len(logBySender(f.ctrl.Log(), transcript.SenderCaller)) == 1
	})

	callers := logBySender(f.ctrl.Log(), transcript.SenderCaller)
	if callers[0].Text != "merhaba" {
		t.Errorf("expected caller text %q, got %q", "merhaba", callers[0].Text)
	}
	// No agent output streamed this turn, so no agent entry beyond the greeting.
	if got := len(logBySender(f.ctrl.Log(), transcript.SenderAgent)); got != 1 {
		t.Errorf("expected only the greeting from the agent, got %d entries", got)
	}
}

func TestController_EmptyTurnEmitsNothing(t *testing.T) {
	f := newFixture(t, Options{})
	f.connect(t)
	cb := f.transport.callbacks()
	cb.OnOpen()
	waitFor(t, "connected state", func() bool { return f.ctrl.State() == StateConnected })
	before := len(f.ctrl.Log())

	cb.OnMessage(Event{TurnComplete: true})
	cb.OnMessage(Event{InputTranscription: "hello"})
	cb.OnMessage(Event{TurnComplete: true})

	waitFor(t, "caller log entry", func() bool {
		return len(logBySender(f.ctrl.Log(), transcript.SenderCaller)) == 1
	})
	if got := len(f.ctrl.Log()); got != before+1 {
		t.Errorf("expected empty turn to emit nothing, log grew from %d to %d", before, got)
	}
}

func TestController_AudioFragmentReachesSink(t *testing.T) {
	f := newFixture(t, Options{})
	f.connect(t)
	cb := f.transport.callbacks()
	cb.OnOpen()

	cb.OnMessage(Event{Audio: pcmBytes(0.01)})
	waitFor(t, "sink playback", func() bool { return f.sink.playCount() == 1 })
}

func TestController_DecodeErrorDoesNotStopPipeline(t *testing.T) {
	f := newFixture(t, Options{})
	f.connect(t)
	cb := f.transport.callbacks()
	cb.OnOpen()

	cb.OnMessage(Event{Audio: []byte{}})
	cb.OnMessage(Event{Audio: pcmBytes(0.01)})
	waitFor(t, "sink playback after bad fragment", func() bool { return f.sink.playCount() == 1 })
}

func TestController_InterruptionFlushesSink(t *testing.T) {
	f := newFixture(t, Options{})
	f.connect(t)
	cb := f.transport.callbacks()
	cb.OnOpen()

	cb.OnMessage(Event{Audio: pcmBytes(0.5)})
	cb.OnMessage(Event{Interrupted: true})
	waitFor(t, "sink flush", func() bool { return f.sink.flushCount() >= 1 })
}

func TestController_SendDropsWhileNotReady(t *testing.T) {
	f := newFixture(t, Options{})

	// Before any connect the gate is closed; chunks vanish silently.
	for i := 0; i < 5; i++ {
		f.ctrl.send([]byte{1, 2})
	}
	if f.transport.handle != nil {
		t.Fatal("expected no transport activity before connect")
	}

	f.connect(t)
	f.ctrl.send([]byte{1, 2})
	if got := f.transport.handle.sendCount(); got != 1 {
		t.Fatalf("expected one chunk through after connect, got %d", got)
	}
}

func TestController_SendDropsAfterDisconnect(t *testing.T) {
	f := newFixture(t, Options{})
	f.connect(t)
	handle := f.transport.handle
	f.ctrl.Disconnect()

	for i := 0; i < 5; i++ {
		f.ctrl.send([]byte{1, 2})
	}
	if got := handle.sendCount(); got != 0 {
		t.Fatalf("expected no sends after disconnect, got %d", got)
	}
}

func TestController_MutePreferenceAppliedToCapture(t *testing.T) {
	f := newFixture(t, Options{})
	f.ctrl.SetMuted(true)
	f.connect(t)

	if !f.capture.Muted() {
		t.Error("expected capture to start muted when preference set before connect")
	}

	f.ctrl.SetMuted(false)
	if f.capture.Muted() {
		t.Error("expected unmute to reach the capture pipeline")
	}
}

func TestController_DisconnectIsIdempotent(t *testing.T) {
	f := newFixture(t, Options{})
	f.connect(t)
	handle := f.transport.handle

	f.ctrl.Disconnect()
	f.ctrl.Disconnect()
	f.ctrl.Disconnect()

	if got := f.capture.stopCount(); got != 1 {
		t.Errorf("expected capture stopped exactly once, got %d", got)
	}
	if got := handle.closeCount(); got != 1 {
		t.Errorf("expected handle closed exactly once, got %d", got)
	}
	if got := f.sink.closeCount(); got != 1 {
		t.Errorf("expected sink closed exactly once, got %d", got)
	}
	if got := f.ctrl.State(); got != StateDisconnected {
		t.Errorf("expected disconnected, got %v", got)
	}
	if got := len(f.ctrl.Log()); got != 0 {
		t.Errorf("expected empty log after disconnect, got %d entries", got)
	}
}

func TestController_DisconnectDuringDeviceAcquisitionAborts(t *testing.T) {
	transport := &transportMock{}
	capture := &captureMock{}
	sink := &playbackSinkMock{}
	opened := make(chan struct{})
	release := make(chan struct{})
	devices := Devices{
		OpenCapture: func(send audio.SendFunc) (CaptureSource, error) {
			capture.mu.Lock()
			capture.send = send
			capture.mu.Unlock()
			return capture, nil
		},
		OpenSink: func() (PlaybackSink, error) {
			close(opened)
			<-release
			return sink, nil
		},
	}
	ctrl := NewController(transport, devices, nil, nil, Options{Model: "models/test-live"})

	errCh := make(chan error, 1)
	go func() { errCh <- ctrl.Connect(context.Background()) }()

	<-opened
	ctrl.Disconnect()
	close(release)

	if err := <-errCh; !errors.Is(err, ErrConnectAborted) {
		t.Fatalf("expected ErrConnectAborted, got %v", err)
	}
	if got := ctrl.State(); got != StateDisconnected {
		t.Errorf("expected disconnected after aborted connect, got %v", got)
	}
	if got := capture.startCount(); got != 0 {
		t.Errorf("expected microphone never started, got %d starts", got)
	}
	if got := capture.stopCount(); got != 1 {
		t.Errorf("expected acquired microphone released, got %d stops", got)
	}
	if got := sink.closeCount(); got != 1 {
		t.Errorf("expected acquired speaker released, got %d closes", got)
	}
	if transport.connects != 0 {
		t.Errorf("expected no transport dial after disconnect, got %d", transport.connects)
	}

	ctrl.send([]byte{1, 2})
	if transport.handle != nil {
		t.Error("expected send gate to stay closed after aborted connect")
	}
}

func TestController_DisconnectDuringTransportDialAborts(t *testing.T) {
	f := newFixture(t, Options{})
	f.transport.dialStarted = make(chan struct{})
	f.transport.dialRelease = make(chan struct{})

	errCh := make(chan error, 1)
	go func() { errCh <- f.ctrl.Connect(context.Background()) }()

	<-f.transport.dialStarted
	f.ctrl.Disconnect()
	close(f.transport.dialRelease)

	if err := <-errCh; !errors.Is(err, ErrConnectAborted) {
		t.Fatalf("expected ErrConnectAborted, got %v", err)
	}
	if got := f.ctrl.State(); got != StateDisconnected {
		t.Errorf("expected disconnected after aborted connect, got %v", got)
	}
	if got := f.capture.startCount(); got != 0 {
		t.Errorf("expected microphone never started, got %d starts", got)
	}
	if got := f.capture.stopCount(); got != 1 {
		t.Errorf("expected microphone released, got %d stops", got)
	}
	if got := f.sink.closeCount(); got != 1 {
		t.Errorf("expected speaker released, got %d closes", got)
	}
	if got := f.transport.handle.closeCount(); got != 1 {
		t.Errorf("expected late-dialed handle closed, got %d", got)
	}

	f.ctrl.send([]byte{1, 2})
	if got := f.transport.handle.sendCount(); got != 0 {
		t.Errorf("expected no chunks through after aborted connect, got %d", got)
	}
}

func TestController_DeviceFailureEntersErrorState(t *testing.T) {
	f := newFixture(t, Options{})
	f.capture.openErr = errors.New("device busy")

	err := f.ctrl.Connect(context.Background())
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("expected DeviceError, got %v", err)
	}
	if got := f.ctrl.State(); got != StateError {
		t.Errorf("expected error state, got %v", got)
	}
	if got := f.sink.closeCount(); got != 1 {
		t.Errorf("expected speaker released after microphone failure, got %d closes", got)
	}
	if got := len(logBySender(f.ctrl.Log(), transcript.SenderSystem)); got != 1 {
		t.Errorf("expected exactly one system log entry, got %d", got)
	}
}

func TestController_TransportOpenFailure(t *testing.T) {
	f := newFixture(t, Options{})
	f.transport.connectErr = errors.New("dial refused")

	if err := f.ctrl.Connect(context.Background()); err == nil {
		t.Fatal("expected connect error")
	}
	if got := f.ctrl.State(); got != StateError {
		t.Errorf("expected error state, got %v", got)
	}
	if got := len(logBySender(f.ctrl.Log(), transcript.SenderSystem)); got != 1 {
		t.Errorf("expected exactly one system log entry, got %d", got)
	}
}

func TestController_ReconnectAfterError(t *testing.T) {
	f := newFixture(t, Options{})
	f.transport.connectErr = errors.New("dial refused")
	_ = f.ctrl.Connect(context.Background())

	f.transport.connectErr = nil
	if err := f.ctrl.Connect(context.Background()); err != nil {
		t.Fatalf("expected reconnect from error state to succeed, got %v", err)
	}
	if got := f.ctrl.State(); got != StateConnecting {
		t.Errorf("expected connecting after reconnect, got %v", got)
	}
}

func TestController_TransportErrorProducesSystemLog(t *testing.T) {
	f := newFixture(t, Options{})
	f.connect(t)
	cb := f.transport.callbacks()
	cb.OnOpen()
	waitFor(t, "connected state", func() bool { return f.ctrl.State() == StateConnected })

	cb.OnError(errors.New("stream reset"))
	waitFor(t, "error state", func() bool { return f.ctrl.State() == StateError })

	msgs := f.ctrl.Log()
	last := msgs[len(msgs)-1]
	if last.Sender != transcript.SenderSystem || !strings.Contains(last.Text, "stream reset") {
		t.Errorf("expected trailing system entry describing the error, got %+v", last)
	}
}

func TestController_RemoteCloseKeepsLog(t *testing.T) {
	f := newFixture(t, Options{})
	f.connect(t)
	cb := f.transport.callbacks()
	cb.OnOpen()
	waitFor(t, "connected state", func() bool { return f.ctrl.State() == StateConnected })

	cb.OnClose()
	waitFor(t, "disconnected state", func() bool { return f.ctrl.State() == StateDisconnected })

	if got := len(f.ctrl.Log()); got == 0 {
		t.Error("expected call log preserved after remote close")
	}
}

func TestController_TranscriptionConfigEnabled(t *testing.T) {
	f := newFixture(t, Options{Caller: CallerContext{Voice: VoiceCloned}})
	f.connect(t)

	cfg := f.transport.lastCfg
	if !cfg.InputTranscription || !cfg.OutputTranscription {
		t.Error("expected both transcription legs enabled")
	}
	if cfg.Voice == VoiceCloned {
		t.Error("expected cloned voice resolved before reaching the transport")
	}
}
