package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Mutation outcomes.
const (
	OutcomeApplied  = "applied"
	OutcomeIgnored  = "ignored"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// CartMetrics records cart session activity. A nil *CartMetrics is valid and
// records nothing.
type CartMetrics struct {
	mutations      *prometheus.CounterVec
	finalizations  *prometheus.CounterVec
	persistLatency *prometheus.HistogramVec
	openSessions   prometheus.Gauge
}

// NewCartMetrics registers the cart metrics on the provided registerer.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_cart_mutations_total",
		Help: "Cart mutations by operation and outcome.",
	}, []string{"op", "outcome"})
	finalizations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_finalizations_total",
		Help: "Finalize attempts by outcome.",
	}, []string{"outcome"})
	persistLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pos_persist_duration_seconds",
		Help:    "Duration of store writes made for a cart mutation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	openSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pos_open_sessions",
		Help: "Cart sessions currently running.",
	})
	reg.MustRegister(mutations, finalizations, persistLatency, openSessions)
	return &CartMetrics{
		mutations:      mutations,
		finalizations:  finalizations,
		persistLatency: persistLatency,
		openSessions:   openSessions,
	}
}

func (m *CartMetrics) IncMutation(op, outcome string) {
	if m == nil || m.mutations == nil {
		return
	}
	m.mutations.WithLabelValues(normalizeLabel(op), normalizeLabel(outcome)).Inc()
}

func (m *CartMetrics) IncFinalization(outcome string) {
	if m == nil || m.finalizations == nil {
		return
	}
	m.finalizations.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *CartMetrics) ObservePersist(op string, duration time.Duration) {
	if m == nil || m.persistLatency == nil {
		return
	}
	m.persistLatency.WithLabelValues(normalizeLabel(op)).Observe(duration.Seconds())
}

func (m *CartMetrics) SessionOpened() {
	if m == nil || m.openSessions == nil {
		return
	}
	m.openSessions.Inc()
}

func (m *CartMetrics) SessionClosed() {
	if m == nil || m.openSessions == nil {
		return
	}
	m.openSessions.Dec()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
