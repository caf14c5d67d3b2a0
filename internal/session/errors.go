package session

import (
	"errors"
	"fmt"
)

// ErrSessionActive is returned by Connect while a call is connecting or
// connected.
var ErrSessionActive = errors.New("a call is already active")

// ErrSendNotReady marks the non-fatal per-chunk drop path: the transport
// handle is not resolved yet or already closed.
var ErrSendNotReady = errors.New("transport not ready")

// ErrConnectAborted is returned by Connect when a disconnect lands while
// the connection is still being established. Everything acquired so far
// has been released; the state set by the disconnect stands.
var ErrConnectAborted = errors.New("connect aborted by disconnect")

// DeviceError wraps microphone or speaker acquisition failures. Fatal to
// the connection attempt; never retried.
type DeviceError struct {
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("acquire %s: %v", e.Device, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }
