// Package metrics provides Prometheus metrics for the daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "voiced"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Capture metrics
	CapturesStarted prometheus.Counter
	CaptureActive   prometheus.Gauge
	AudioBytesRead  prometheus.Counter

	// Recording metrics
	RecordingsCreated prometheus.Counter
	RecordingsDeleted prometheus.Counter
	UploadsRejected   prometheus.Counter

	// Transcription metrics
	TranscriptionsTotal  *prometheus.CounterVec
	TranscriptionLatency *prometheus.HistogramVec

	// Model metrics
	ModelLoadsTotal  *prometheus.CounterVec
	ModelLoadLatency prometheus.Histogram

	// Store metrics
	StorePersistErrors prometheus.Counter

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
}

// New creates and registers all metrics on a fresh registry-backed set.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CapturesStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captures_started_total",
			Help:      "Total number of capture sessions started",
		}),
		CaptureActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capture_active",
			Help:      "Whether a capture session is currently active (0 or 1)",
		}),
		AudioBytesRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_read_total",
			Help:      "Total raw audio bytes read from the input stream",
		}),

		RecordingsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_created_total",
			Help:      "Total number of recordings written to disk",
		}),
		RecordingsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_deleted_total",
			Help:      "Total number of recordings deleted",
		}),
		UploadsRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_rejected_total",
			Help:      "Total number of uploads rejected as undecodable",
		}),

		TranscriptionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcriptions_total",
			Help:      "Total number of transcription requests",
		}, []string{"model", "outcome"}),
		TranscriptionLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcription_latency_seconds",
			Help:      "Transcription latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"model"}),

		ModelLoadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_loads_total",
			Help:      "Total number of model load requests",
		}, []string{"outcome"}),
		ModelLoadLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_load_latency_seconds",
			Help:      "Model load latency in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 180},
		}),

		StorePersistErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_persist_errors_total",
			Help:      "Total number of transcript store persistence failures",
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
	}
}

// Nop returns a metrics set backed by a throwaway registry, for tests
// and callers that do not export metrics.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}

// RecordTranscription records one transcription attempt.
func (m *Metrics) RecordTranscription(model string, err error, latencySeconds float64) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.TranscriptionsTotal.WithLabelValues(model, outcome).Inc()
	if err == nil {
		m.TranscriptionLatency.WithLabelValues(model).Observe(latencySeconds)
	}
}

// RecordModelLoad records one model load attempt.
func (m *Metrics) RecordModelLoad(err error, latencySeconds float64) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ModelLoadsTotal.WithLabelValues(outcome).Inc()
	if err == nil {
		m.ModelLoadLatency.Observe(latencySeconds)
	}
}
