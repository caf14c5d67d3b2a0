// Package transcript turns streamed transcription fragments into call log
// entries.
package transcript

import (
	"time"

	"github.com/google/uuid"
)

// Sender identifies who produced a log entry.
type Sender string

const (
	SenderCaller Sender = "caller"
	SenderAgent  Sender = "agent"
	SenderSystem Sender = "system"
)

// LogMessage is one immutable call-log entry.
type LogMessage struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// NewLogMessage creates a log entry with a fresh identity.
func NewLogMessage(sender Sender, text string) LogMessage {
	return LogMessage{
		ID:        uuid.NewString(),
		Sender:    sender,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}
