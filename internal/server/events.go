package server

import "time"

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type LogMessageEvent struct {
	Event
	ID     string `json:"id"`
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

type StateChangedEvent struct {
	Event
	State string `json:"state"`
}

type MuteChangedEvent struct {
	Event
	Muted bool `json:"muted"`
}

type ConnectionEvent struct {
	Event
	Connected bool `json:"connected"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
