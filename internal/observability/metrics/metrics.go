// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "warm_transfer"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Call metrics
	CallsStarted prometheus.Counter
	CallsEnded   prometheus.Counter
	CallsActive  prometheus.Gauge
	CallDuration prometheus.Histogram

	// Transfer metrics
	TransfersInitiated prometheus.Counter
	TransfersCompleted prometheus.Counter
	TransfersExpired   prometheus.Counter
	TransfersRejected  *prometheus.CounterVec
	BriefingDuration   prometheus.Histogram

	// Summary generation metrics
	SummariesGenerated *prometheus.CounterVec
	SummaryFallbacks   prometheus.Counter
	SummaryLatency     prometheus.Histogram

	// Credential metrics
	TokensMinted    prometheus.Counter
	TokenMintErrors prometheus.Counter

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Call metrics
		CallsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_started_total",
			Help:      "Total number of call sessions created",
		}),
		CallsEnded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_ended_total",
			Help:      "Total number of call sessions ended without transfer",
		}),
		CallsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calls_active",
			Help:      "Number of call sessions not yet in a terminal state",
		}),
		CallDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Lifetime of call sessions from creation to terminal state",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1800, 3600},
		}),

		// Transfer metrics
		TransfersInitiated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_initiated_total",
			Help:      "Total number of warm transfers initiated",
		}),
		TransfersCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_completed_total",
			Help:      "Total number of warm transfers completed",
		}),
		TransfersExpired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_expired_total",
			Help:      "Total number of briefings expired by the sweep",
		}),
		TransfersRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_rejected_total",
			Help:      "Total number of transfer operations rejected",
		}, []string{"kind"}),
		BriefingDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "briefing_duration_seconds",
			Help:      "Time transfers spend in the briefing state before completion",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1800},
		}),

		// Summary generation metrics
		SummariesGenerated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_generated_total",
			Help:      "Total number of handoff summaries produced",
		}, []string{"provider"}),
		SummaryFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_fallbacks_total",
			Help:      "Total number of times the deterministic fallback replaced the provider",
		}),
		SummaryLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "summary_latency_seconds",
			Help:      "Summary provider latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),

		// Credential metrics
		TokensMinted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_minted_total",
			Help:      "Total number of access credentials minted",
		}),
		TokenMintErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_mint_errors_total",
			Help:      "Total number of credential minting failures",
		}),

		// HTTP metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by route and status",
		}, []string{"route", "status"}),

		// Kafka publish metrics
		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordCallStarted records a new call session being created.
func (m *Metrics) RecordCallStarted() {
	m.CallsStarted.Inc()
	m.CallsActive.Inc()
}

// RecordCallClosed records a call reaching a terminal state.
func (m *Metrics) RecordCallClosed(ended bool, durationSeconds float64) {
	m.CallsActive.Dec()
	m.CallDuration.Observe(durationSeconds)
	if ended {
		m.CallsEnded.Inc()
	}
}

// RecordTransferInitiated records a warm transfer entering briefing.
func (m *Metrics) RecordTransferInitiated() {
	m.TransfersInitiated.Inc()
}

// RecordTransferCompleted records a transfer completing after briefing.
func (m *Metrics) RecordTransferCompleted(briefingSeconds float64) {
	m.TransfersCompleted.Inc()
	m.BriefingDuration.Observe(briefingSeconds)
}

// RecordTransferExpired records briefings expired by the sweep.
func (m *Metrics) RecordTransferExpired(count int) {
	m.TransfersExpired.Add(float64(count))
}

// RecordTransferRejected records a rejected transfer operation by error kind.
func (m *Metrics) RecordTransferRejected(kind string) {
	m.TransfersRejected.WithLabelValues(kind).Inc()
}

// RecordSummary records a summary produced by the given provider, or the
// fallback replacing it.
func (m *Metrics) RecordSummary(provider string, fallback bool, latencySeconds float64) {
	m.SummariesGenerated.WithLabelValues(provider).Inc()
	m.SummaryLatency.Observe(latencySeconds)
	if fallback {
		m.SummaryFallbacks.Inc()
	}
}

// RecordTokenMint records a credential mint attempt.
func (m *Metrics) RecordTokenMint(err error) {
	if err != nil {
		m.TokenMintErrors.Inc()
		return
	}
	m.TokensMinted.Inc()
}

// RecordHTTPRequest records a served HTTP request.
func (m *Metrics) RecordHTTPRequest(route, status string) {
	m.HTTPRequests.WithLabelValues(route, status).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
