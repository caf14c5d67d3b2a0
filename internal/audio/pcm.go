package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"time"
)

const (
	// CaptureRate is the sample rate the remote session expects on its input leg.
	CaptureRate = 16000
	// PlaybackRate is the sample rate of audio returned by the remote session.
	PlaybackRate = 24000
	// FramesPerChunk is the fixed capture chunk size in samples (~64ms at 16kHz).
	FramesPerChunk = 1024
	// Channels is the channel count on both legs.
	Channels = 1
)

var (
	// ErrEmptyChunk is returned when an empty capture chunk is offered for encoding.
	ErrEmptyChunk = errors.New("audio: empty capture chunk")
	// ErrEmptyPayload is returned when an empty PCM payload is offered for decoding.
	// Callers drop the fragment and continue; the error is never fatal.
	ErrEmptyPayload = errors.New("audio: empty pcm payload")
)

// EncodePCM16 converts normalized float samples in [-1, 1] to little-endian
// signed 16-bit PCM. Out-of-range samples are clamped. No resampling happens
// here; the chunk must already be at the transport's expected input rate.
func EncodePCM16(samples []float32) ([]byte, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyChunk
	}
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(math.Round(float64(s) * 32767))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out, nil
}

// Clip is a decoded, playable sample buffer.
type Clip struct {
	Samples  []float32
	Rate     int
	Channels int
}

// Duration returns the playback duration of the clip.
func (c Clip) Duration() time.Duration {
	if c.Rate <= 0 || c.Channels <= 0 {
		return 0
	}
	frames := len(c.Samples) / c.Channels
	return time.Duration(float64(frames) / float64(c.Rate) * float64(time.Second))
}

// DecodeClip converts little-endian 16-bit PCM bytes into normalized float
// samples at the given rate and channel count. A trailing partial sample is
// truncated.
func DecodeClip(data []byte, rate, channels int) (Clip, error) {
	if len(data) == 0 {
		return Clip{}, ErrEmptyPayload
	}
	n := len(data) / 2
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		// Same full-scale factor as EncodePCM16, so a round trip stays
		// within one quantization step.
		samples[i] = float32(v) / 32767
	}
	return Clip{Samples: samples, Rate: rate, Channels: channels}, nil
}
