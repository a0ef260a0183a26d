// Package metrics exposes Prometheus instrumentation for the capture and
// transcription pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hyprscribe"

// Metrics contains all pipeline metrics
type Metrics struct {
	// Capture
	ChunksReceived  prometheus.Counter
	DeviceErrors    prometheus.Counter
	SegmentsFlushed prometheus.Counter
	FlushesSkipped  prometheus.Counter
	FlushesDeferred prometheus.Counter
	SegmentBytes    prometheus.Histogram

	// Transcription
	TranscriptionRequests prometheus.Counter
	TranscriptionFailures prometheus.Counter
	TranscriptionDuration prometheus.Histogram
	StagingCleanupErrors  prometheus.Counter

	// Downstream collaborators
	StructuringFallbacks prometheus.Counter
	StageFailures        *prometheus.CounterVec
	ResultsDispatched    prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers all metrics with reg. Each call needs its own registry.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ChunksReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_chunks_received_total",
			Help:      "PCM chunks appended to the capture buffer",
		}),
		DeviceErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_device_errors_total",
			Help:      "Non-fatal errors reported by the input device",
		}),
		SegmentsFlushed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_segments_flushed_total",
			Help:      "Segments handed to the processing pipeline",
		}),
		FlushesSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_flushes_skipped_total",
			Help:      "Flush cycles skipped because the buffer was empty",
		}),
		FlushesDeferred: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_flushes_deferred_total",
			Help:      "Ticks deferred because a previous flush was still in flight",
		}),
		SegmentBytes: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "capture_segment_bytes",
			Help:      "PCM payload size of flushed segments",
			Buckets:   prometheus.ExponentialBuckets(16000, 2, 8),
		}),
		TranscriptionRequests: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcription_requests_total",
			Help:      "Segments uploaded to the speech-recognition service",
		}),
		TranscriptionFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcription_failures_total",
			Help:      "Uploads that failed, timed out or returned a malformed response",
		}),
		TranscriptionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcription_duration_seconds",
			Help:      "Round-trip time of transcription requests",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}),
		StagingCleanupErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcription_staging_cleanup_errors_total",
			Help:      "Staged segment files that could not be removed",
		}),
		StructuringFallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "structuring_fallbacks_total",
			Help:      "Results forwarded unstructured because the structurer failed",
		}),
		StageFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_stage_failures_total",
			Help:      "Downstream stage failures by stage",
		}, []string{"stage"}),
		ResultsDispatched: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_results_total",
			Help:      "Non-empty transcriptions dispatched downstream",
		}),
		gatherer: reg,
	}
}

// NewUnregistered returns metrics backed by a private registry, for tests and
// one-shot commands that never serve them.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
