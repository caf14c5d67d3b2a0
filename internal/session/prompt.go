package session

import (
	"fmt"
	"strings"
)

// VoiceCloned is the special voice selection offered by the voice picker.
// The cloning workflow never produces a real voice, so it maps to a
// concrete prebuilt voice before reaching the transport.
const VoiceCloned = "cloned"

const clonedFallbackVoice = "Aoede"

// CallerContext is the static caller metadata composed into the session
// configuration.
type CallerContext struct {
	Name         string
	Reason       string
	TrunkContext string
	Voice        string
}

// ResolveVoice maps the cloned selection to its fallback voice and passes
// every other identifier through unchanged.
func ResolveVoice(voice string) string {
	if strings.TrimSpace(voice) == VoiceCloned {
		return clonedFallbackVoice
	}
	return voice
}

// ComposeInstructions builds the system instruction for a call: the base
// behavioral instruction, an optional caller task preamble, and an optional
// trunk-context suffix.
func ComposeInstructions(base string, caller CallerContext) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(base))

	name := strings.TrimSpace(caller.Name)
	reason := strings.TrimSpace(caller.Reason)
	if name != "" || reason != "" {
		b.WriteString("\n\nYour task for this call:")
		if name != "" {
			fmt.Fprintf(&b, " the caller is %s.", name)
		}
		if reason != "" {
			fmt.Fprintf(&b, " They are calling about: %s.", reason)
		}
	}

	if trunk := strings.TrimSpace(caller.TrunkContext); trunk != "" {
		fmt.Fprintf(&b, "\n\nTrunk context: %s", trunk)
	}

	return b.String()
}

// Greeting derives the agent's opening line from the caller context.
func Greeting(caller CallerContext) string {
	name := strings.TrimSpace(caller.Name)
	if name == "" {
		return "Hello, you are connected. How can I help you today?"
	}
	return fmt.Sprintf("Hello %s, you are connected. How can I help you today?", name)
}
