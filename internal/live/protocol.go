// Package live implements the session transport over the model's
// bidirectional generate-content WebSocket API.
package live

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cancelikay/santral/internal/session"
)

const pcmMIMEType = "audio/pcm;rate=16000"

// Client → server frames.

type setupMessage struct {
	Setup setupPayload `json:"setup"`
}

type setupPayload struct {
	Model                    string               `json:"model"`
	GenerationConfig         generationConfig     `json:"generationConfig"`
	SystemInstruction        *content             `json:"systemInstruction,omitempty"`
	InputAudioTranscription  *transcriptionConfig `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *transcriptionConfig `json:"outputAudioTranscription,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig *voiceConfig `json:"voiceConfig,omitempty"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig *prebuiltVoiceConfig `json:"prebuiltVoiceConfig,omitempty"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type transcriptionConfig struct{}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	MediaChunks []blob `json:"mediaChunks"`
}

// Shared shapes.

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string `json:"text,omitempty"`
	InlineData *blob  `json:"inlineData,omitempty"`
}

type blob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Server → client frames.

type serverMessage struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *serverContent `json:"serverContent,omitempty"`
}

type serverContent struct {
	ModelTurn           *content           `json:"modelTurn,omitempty"`
	TurnComplete        bool               `json:"turnComplete,omitempty"`
	Interrupted         bool               `json:"interrupted,omitempty"`
	InputTranscription  *transcriptionText `json:"inputTranscription,omitempty"`
	OutputTranscription *transcriptionText `json:"outputTranscription,omitempty"`
}

type transcriptionText struct {
	Text string `json:"text"`
}

func buildSetup(model string, cfg session.Config) setupMessage {
	payload := setupPayload{
		Model: model,
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"AUDIO"},
		},
	}
	if voice := strings.TrimSpace(cfg.Voice); voice != "" {
		payload.GenerationConfig.SpeechConfig = &speechConfig{
			VoiceConfig: &voiceConfig{
				PrebuiltVoiceConfig: &prebuiltVoiceConfig{VoiceName: voice},
			},
		}
	}
	if instructions := strings.TrimSpace(cfg.Instructions); instructions != "" {
		payload.SystemInstruction = &content{Parts: []part{{Text: instructions}}}
	}
	if cfg.InputTranscription {
		payload.InputAudioTranscription = &transcriptionConfig{}
	}
	if cfg.OutputTranscription {
		payload.OutputAudioTranscription = &transcriptionConfig{}
	}
	return setupMessage{Setup: payload}
}

func buildRealtimeInput(media []byte) realtimeInputMessage {
	return realtimeInputMessage{
		RealtimeInput: realtimeInput{
			MediaChunks: []blob{{
				MIMEType: pcmMIMEType,
				Data:     base64.StdEncoding.EncodeToString(media),
			}},
		},
	}
}

// decodeServerFrame maps one wire frame to a session event. setupComplete
// frames report opened=true with no event; frames carrying nothing of
// interest report ok=false.
func decodeServerFrame(data []byte) (ev session.Event, opened, ok bool, err error) {
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return session.Event{}, false, false, fmt.Errorf("decode server frame: %w", err)
	}

	if msg.SetupComplete != nil {
		return session.Event{}, true, false, nil
	}
	sc := msg.ServerContent
	if sc == nil {
		return session.Event{}, false, false, nil
	}

	ev = session.Event{
		TurnComplete: sc.TurnComplete,
		Interrupted:  sc.Interrupted,
	}
	if sc.InputTranscription != nil {
		ev.InputTranscription = sc.InputTranscription.Text
	}
	if sc.OutputTranscription != nil {
		ev.OutputTranscription = sc.OutputTranscription.Text
	}
	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.InlineData == nil || !strings.HasPrefix(p.InlineData.MIMEType, "audio/pcm") {
				continue
			}
			audio, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				return session.Event{}, false, false, fmt.Errorf("decode audio fragment: %w", err)
			}
			ev.Audio = append(ev.Audio, audio...)
		}
	}
	return ev, false, true, nil
}
