// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ai_speech_coach"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// gRPC stream metrics
	StreamsTotal   prometheus.Counter
	StreamsActive  prometheus.Gauge
	StreamsSuccess prometheus.Counter
	StreamsFailed  prometheus.Counter
	StreamDuration prometheus.Histogram

	// Session metrics
	SessionsStarted  prometheus.Counter
	SessionsActive   prometheus.Gauge
	SessionsStopped  *prometheus.CounterVec
	SessionDuration  prometheus.Histogram
	SessionStartFail prometheus.Counter

	// Analysis metrics
	EventsProcessed *prometheus.CounterVec
	EventsIgnored   *prometheus.CounterVec
	RatesAccepted   prometheus.Counter
	RatesRejected   prometheus.Counter
	RealTimeRate    prometheus.Histogram
	SustainedTrends *prometheus.CounterVec
	FillerWords     prometheus.Counter

	// Audio metrics
	AudioBytesReceived  prometheus.Counter
	AudioFramesReceived prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// STT metrics
	STTErrors *prometheus.CounterVec

	// Backpressure metrics
	SessionLimitExceeded *prometheus.CounterVec

	// Lexicon
	LexiconSize prometheus.Gauge
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates all Prometheus metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		// gRPC stream metrics
		StreamsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_streams_total",
			Help:      "Total number of gRPC streams started",
		}),
		StreamsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "grpc_streams_active",
			Help:      "Number of currently active gRPC streams",
		}),
		StreamsSuccess: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_streams_success_total",
			Help:      "Total number of successfully completed gRPC streams",
		}),
		StreamsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_streams_failed_total",
			Help:      "Total number of failed gRPC streams",
		}),
		StreamDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_stream_duration_seconds",
			Help:      "Duration of gRPC streams in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),

		// Session metrics
		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of practice sessions started",
		}),
		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of practice sessions not yet stopped",
		}),
		SessionsStopped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_stopped_total",
			Help:      "Total number of practice sessions stopped",
		}, []string{"reason"}),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Wall-clock duration of practice sessions in seconds",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200, 1800},
		}),
		SessionStartFail: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_start_failures_total",
			Help:      "Total number of sessions whose recognizer failed to start",
		}),

		// Analysis metrics
		EventsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_processed_total",
			Help:      "Total number of transcription events analysed",
		}, []string{"kind"}),
		EventsIgnored: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_ignored_total",
			Help:      "Total number of transcription events not analysed",
		}, []string{"reason"}),
		RatesAccepted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rates_accepted_total",
			Help:      "Total number of rate readings that updated the real-time rate",
		}),
		RatesRejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rates_rejected_total",
			Help:      "Total number of partial events whose rate reading was discarded",
		}),
		RealTimeRate: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "realtime_rate_spm",
			Help:      "Accepted real-time speaking rates in syllables per minute",
			Buckets:   []float64{100, 150, 200, 250, 300, 350, 400, 450, 500, 600, 700},
		}),
		SustainedTrends: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sustained_trends_total",
			Help:      "Total number of transitions into a sustained fast or slow trend",
		}, []string{"direction"}),
		FillerWords: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filler_words_total",
			Help:      "Total number of filler words counted in committed segments",
		}),

		// Audio metrics
		AudioBytesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes received",
		}),
		AudioFramesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_received_total",
			Help:      "Total audio frames received",
		}),

		// Kafka publish metrics
		KafkaPublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		// STT metrics
		STTErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_errors_total",
			Help:      "Total number of recognizer errors",
		}, []string{"provider"}),

		// Backpressure metrics
		SessionLimitExceeded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_limit_exceeded_total",
			Help:      "Total number of times session limits were exceeded",
		}, []string{"limit_type"}),

		LexiconSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lexicon_filler_words",
			Help:      "Number of filler words in the active lexicon",
		}),
	}
}

// RecordStreamStart records a new gRPC stream starting.
func (m *Metrics) RecordStreamStart() {
	m.StreamsTotal.Inc()
	m.StreamsActive.Inc()
}

// RecordStreamEnd records a gRPC stream ending.
func (m *Metrics) RecordStreamEnd(success bool, durationSeconds float64) {
	m.StreamsActive.Dec()
	m.StreamDuration.Observe(durationSeconds)
	if success {
		m.StreamsSuccess.Inc()
	} else {
		m.StreamsFailed.Inc()
	}
}

// RecordSessionStarted records a practice session entering RECORDING.
func (m *Metrics) RecordSessionStarted() {
	m.SessionsStarted.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionStartFailed records a recognizer start-up failure.
func (m *Metrics) RecordSessionStartFailed() {
	m.SessionStartFail.Inc()
}

// RecordSessionStopped records a started session stopping.
func (m *Metrics) RecordSessionStopped(reason string, durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionsStopped.WithLabelValues(reason).Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordEvent records one analysed event.
func (m *Metrics) RecordEvent(boundary, rateAccepted bool, rate float64) {
	if boundary {
		m.EventsProcessed.WithLabelValues("boundary").Inc()
		return
	}
	m.EventsProcessed.WithLabelValues("partial").Inc()
	if rateAccepted {
		m.RatesAccepted.Inc()
		m.RealTimeRate.Observe(rate)
	} else {
		m.RatesRejected.Inc()
	}
}

// RecordEventIgnored records an event that was not analysed.
func (m *Metrics) RecordEventIgnored(reason string) {
	m.EventsIgnored.WithLabelValues(reason).Inc()
}

// RecordSustainedTrend records entering a sustained trend.
func (m *Metrics) RecordSustainedTrend(direction string) {
	m.SustainedTrends.WithLabelValues(direction).Inc()
}

// RecordFillerWords records filler words counted in a committed segment.
func (m *Metrics) RecordFillerWords(n int) {
	m.FillerWords.Add(float64(n))
}

// RecordAudioReceived records audio bytes and frames received.
func (m *Metrics) RecordAudioReceived(bytes int) {
	m.AudioBytesReceived.Add(float64(bytes))
	m.AudioFramesReceived.Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordSTTError records a recognizer error.
func (m *Metrics) RecordSTTError(provider string) {
	m.STTErrors.WithLabelValues(provider).Inc()
}

// RecordLimitExceeded records when a session limit is exceeded.
func (m *Metrics) RecordLimitExceeded(limitType string) {
	m.SessionLimitExceeded.WithLabelValues(limitType).Inc()
}

// RecordLexiconSize records the active lexicon size.
func (m *Metrics) RecordLexiconSize(n int) {
	m.LexiconSize.Set(float64(n))
}
