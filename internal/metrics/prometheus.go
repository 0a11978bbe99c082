// Package metrics exposes Prometheus instrumentation for the transcription pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"whisper-web/internal/domain"
)

// Metrics contains all Prometheus metrics of the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Submission metrics
	Submissions    prometheus.Counter
	BusyRejections prometheus.Counter
	Failures       *prometheus.CounterVec
	Busy           prometheus.Gauge

	// Pipeline timings
	DecodeDuration        prometheus.Histogram
	TranscriptionDuration prometheus.Histogram

	// Worker metrics
	StatusMessages *prometheus.CounterVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates the metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Submissions: factory.NewCounter(prometheus.CounterOpts{
			Name: "whisper_submissions_total",
			Help: "Total number of transcription requests dispatched to the worker",
		}),
		BusyRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "whisper_busy_rejections_total",
			Help: "Total number of submissions rejected because a request was outstanding",
		}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "whisper_failures_total",
			Help: "Total number of failed submissions by error kind",
		}, []string{"kind"}),
		Busy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "whisper_busy",
			Help: "1 while a transcription request is outstanding",
		}),

		DecodeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "whisper_decode_duration_seconds",
			Help:    "Time spent decoding and down-mixing source audio",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		TranscriptionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "whisper_transcription_duration_seconds",
			Help:    "Time from dispatch to terminal worker status",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),

		StatusMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "whisper_status_messages_total",
			Help: "Total number of worker status messages by tag",
		}, []string{"status"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "whisper_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"path", "code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "whisper_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),
	}
}

func (m *Metrics) RecordSubmission() {
	if m == nil {
		return
	}
	m.Submissions.Inc()
}

func (m *Metrics) RecordBusyRejection() {
	if m == nil {
		return
	}
	m.BusyRejections.Inc()
}

func (m *Metrics) RecordFailure(kind domain.ErrorKind) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(kind.String()).Inc()
}

// RecordStatus counts a worker message. Unknown tags share one label value.
func (m *Metrics) RecordStatus(status domain.Status) {
	if m == nil {
		return
	}
	label := string(status)
	if !status.Known() {
		label = "unknown"
	}
	m.StatusMessages.WithLabelValues(label).Inc()
}

func (m *Metrics) SetBusy(busy bool) {
	if m == nil {
		return
	}
	if busy {
		m.Busy.Set(1)
	} else {
		m.Busy.Set(0)
	}
}

func (m *Metrics) ObserveDecode(d time.Duration) {
	if m == nil {
		return
	}
	m.DecodeDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveTranscription(d time.Duration) {
	if m == nil {
		return
	}
	m.TranscriptionDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveHTTP(path string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(path, statusLabel(code)).Inc()
	m.HTTPRequestDuration.WithLabelValues(path).Observe(d.Seconds())
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
