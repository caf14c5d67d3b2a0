package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/cancelikay/santral/internal/session"
	"github.com/cancelikay/santral/internal/transcript"
)

type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]struct{})}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) BroadcastLogMessage(msg transcript.LogMessage) {
	h.broadcastEvent(LogMessageEvent{
		Event:  newEvent("log_message", msg.CreatedAt),
		ID:     msg.ID,
		Sender: string(msg.Sender),
		Text:   msg.Text,
	})
}

func (h *Hub) BroadcastStateChanged(state session.State) {
	h.broadcastEvent(StateChangedEvent{
		Event: newEvent("state_changed", time.Now().UTC()),
		State: state.String(),
	})
}

func (h *Hub) BroadcastMuteChanged(muted bool) {
	h.broadcastEvent(MuteChangedEvent{
		Event: newEvent("mute_changed", time.Now().UTC()),
		Muted: muted,
	})
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return
	}
	h.Broadcast(payload)
}
