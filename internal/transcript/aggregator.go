package transcript

import (
	"strings"
	"sync"
)

// Aggregator accumulates streamed transcription fragments for the current
// turn. The caller (inbound) and agent (outbound) sides accumulate
// independently; fragments are concatenated in arrival order with no
// normalization.
type Aggregator struct {
	mu     sync.Mutex
	input  strings.Builder
	output strings.Builder
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// AddInput appends a caller-side transcription fragment.
func (a *Aggregator) AddInput(fragment string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.input.WriteString(fragment)
}

// AddOutput appends an agent-side transcription fragment.
func (a *Aggregator) AddOutput(fragment string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.output.WriteString(fragment)
}

// FlushTurn emits one LogMessage per non-empty accumulator, caller side
// first, and clears both. Empty accumulators emit nothing.
func (a *Aggregator) FlushTurn() []LogMessage {
	a.mu.Lock()
	input := a.input.String()
	output := a.output.String()
	a.input.Reset()
	a.output.Reset()
	a.mu.Unlock()

	var messages []LogMessage
	if input != "" {
		messages = append(messages, NewLogMessage(SenderCaller, input))
	}
	if output != "" {
		messages = append(messages, NewLogMessage(SenderAgent, output))
	}
	return messages
}

// Reset discards both accumulators without emitting anything.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.input.Reset()
	a.output.Reset()
}
