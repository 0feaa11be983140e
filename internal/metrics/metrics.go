// Package metrics exposes Prometheus collectors for provider fan-out, cache
// efficiency and ranking decisions.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "travelsearch"

// Provider request outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeFallback = "fallback"
	OutcomeError    = "error"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ProviderRequests *prometheus.CounterVec
	ProviderAttempts *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec
	CacheLookups     *prometheus.CounterVec
	Decisions        *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ProviderRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Provider searches by final outcome.",
		}, []string{"provider", "vertical", "outcome"}),
		ProviderAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_attempts_total",
			Help:      "Individual provider call attempts, including retries.",
		}, []string{"provider", "outcome"}),
		ProviderDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_duration_seconds",
			Help:      "Wall time of a provider search including retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Whole-search cache lookups by result.",
		}, []string{"result"}),
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Ranking decisions by vertical and whether the price guardrail fired.",
		}, []string{"vertical", "guardrail"}),
	}
}

// ObserveProvider records the final outcome and duration of one provider
// search.
func (m *Metrics) ObserveProvider(provider, vertical, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ProviderRequests.WithLabelValues(provider, vertical, outcome).Inc()
	m.ProviderDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// ObserveAttempt records a single call attempt.
func (m *Metrics) ObserveAttempt(provider string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.ProviderAttempts.WithLabelValues(provider, outcome).Inc()
}

// ObserveCache records a whole-search cache lookup.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// ObserveDecision records one ranking pass.
func (m *Metrics) ObserveDecision(vertical string, guardrail bool) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(vertical, strconv.FormatBool(guardrail)).Inc()
}
