// Package metrics exposes Prometheus instrumentation for the audio pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the call pipeline.
type Metrics struct {
	// Capture / send path
	ChunksSent    prometheus.Counter
	ChunksDropped prometheus.Counter

	// Playback path
	FragmentsScheduled prometheus.Counter
	DecodeErrors       prometheus.Counter
	Interruptions      prometheus.Counter

	// Session lifecycle
	TurnsCompleted prometheus.Counter
	SessionState   prometheus.Gauge
}

// New creates and registers all collectors on the default registry.
func New() *Metrics {
	return &Metrics{
		ChunksSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "santral_chunks_sent_total",
			Help: "Capture chunks handed to the transport",
		}),
		ChunksDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "santral_chunks_dropped_total",
			Help: "Capture chunks dropped because the transport was not ready or the send failed",
		}),
		FragmentsScheduled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "santral_fragments_scheduled_total",
			Help: "Decoded audio fragments handed to the playback scheduler",
		}),
		DecodeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "santral_decode_errors_total",
			Help: "Inbound audio fragments dropped because they could not be decoded",
		}),
		Interruptions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "santral_interruptions_total",
			Help: "Interruption signals received from the remote session",
		}),
		TurnsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "santral_turns_completed_total",
			Help: "Conversation turns closed by the remote session",
		}),
		SessionState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "santral_session_state",
			Help: "Current session state (0=disconnected 1=connecting 2=connected 3=error)",
		}),
	}
}
