package live

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cancelikay/santral/internal/session"
)

const (
	defaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	defaultConnectTimeout = 15 * time.Second
	writeTimeout          = 10 * time.Second
)

// Client dials live sessions. It implements session.Transport.
type Client struct {
	endpoint string
	apiKey   string
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the websocket endpoint. Used by tests and
// self-hosted gateways.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// NewClient creates a transport client authenticating with the given key.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{endpoint: defaultEndpoint, apiKey: apiKey}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the endpoint, sends the session setup, and starts the read
// loop. The returned handle is usable immediately; cb.OnOpen fires once the
// server acknowledges the setup.
func (c *Client) Connect(ctx context.Context, model string, cfg session.Config, cb session.Callbacks) (session.Handle, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()

	dialCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, defaultConnectTimeout)
		defer cancel()
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	if err := conn.WriteJSON(buildSetup(model, cfg)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send setup: %w", err)
	}

	h := &handle{conn: conn}
	go h.readLoop(cb)
	return h, nil
}

// handle is one open websocket session.
type handle struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool
}

// Send transmits one encoded capture chunk as a realtime media frame.
func (h *handle) Send(media []byte) error {
	if h.closed.Load() {
		return fmt.Errorf("live session is closed")
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	_ = h.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return h.conn.WriteJSON(buildRealtimeInput(media))
}

// Close shuts the websocket down. Safe to call more than once.
func (h *handle) Close() error {
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		h.writeMu.Lock()
		_ = h.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(2*time.Second))
		h.writeMu.Unlock()
		_ = h.conn.Close()
	})
	return nil
}

func (h *handle) readLoop(cb session.Callbacks) {
	for {
		_, data, err := h.conn.ReadMessage()
		if err != nil {
			if h.closed.Load() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				if cb.OnClose != nil {
					cb.OnClose()
				}
				return
			}
			if cb.OnError != nil {
				cb.OnError(err)
			}
			return
		}

		ev, opened, ok, err := decodeServerFrame(data)
		if err != nil {
			// Malformed frames are dropped; the session keeps running.
			continue
		}
		if opened {
			if cb.OnOpen != nil {
				cb.OnOpen()
			}
			continue
		}
		if ok && cb.OnMessage != nil {
			cb.OnMessage(ev)
		}
	}
}
