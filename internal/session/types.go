package session

import (
	"context"

	"github.com/cancelikay/santral/internal/audio"
	"github.com/cancelikay/santral/internal/playback"
	"github.com/cancelikay/santral/internal/transcript"
)

// Config is carried to the transport when opening a session.
type Config struct {
	// Voice is the concrete voice identifier; the special "cloned"
	// selection is resolved before the config reaches the transport.
	Voice string
	// Instructions is the composed system instruction string.
	Instructions string
	// InputTranscription / OutputTranscription enable streamed
	// transcription of the two audio legs.
	InputTranscription  bool
	OutputTranscription bool
}

// Event is one inbound protocol message. All fields are optional and
// independent; any subset may be set on a single event.
type Event struct {
	InputTranscription  string
	OutputTranscription string
	TurnComplete        bool
	Interrupted         bool
	// Audio is little-endian 16-bit PCM at 24kHz mono, already
	// base64-decoded by the transport.
	Audio []byte
}

// Callbacks receive transport lifecycle notifications and inbound events.
// The transport invokes them from its own read loop; implementations must
// not block it.
type Callbacks struct {
	OnOpen    func()
	OnMessage func(Event)
	OnClose   func()
	OnError   func(error)
}

// Transport opens live sessions with the remote model.
type Transport interface {
	Connect(ctx context.Context, model string, cfg Config, cb Callbacks) (Handle, error)
}

// Handle is an open transport session.
type Handle interface {
	// Send transmits one encoded capture chunk.
	Send(media []byte) error
	Close() error
}

// CaptureSource is the microphone pipeline as the controller sees it.
type CaptureSource interface {
	Start() error
	Stop() error
	Mute()
	Unmute()
	Muted() bool
}

// PlaybackSink is the output device as the controller sees it.
type PlaybackSink interface {
	playback.Sink
	Close() error
}

// Devices acquires the audio devices for a session. The factories are
// called once per connect; the controller owns the returned resources
// until teardown.
type Devices struct {
	OpenCapture func(send audio.SendFunc) (CaptureSource, error)
	OpenSink    func() (PlaybackSink, error)
}

// Broadcaster fans session activity out to attached UI clients.
type Broadcaster interface {
	BroadcastLogMessage(msg transcript.LogMessage)
	BroadcastStateChanged(state State)
	BroadcastMuteChanged(muted bool)
}
