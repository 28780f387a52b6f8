package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "swapquoter"

// Metrics records quote outcomes. A nil *Metrics is a no-op.
type Metrics struct {
	requests *prometheus.CounterVec
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New registers the quote metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_requests_total",
			Help:      "Quote resolutions by strategy and outcome",
		}, []string{"strategy", "outcome"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_failed_attempts_total",
			Help:      "Attempts consumed by failed quote resolutions",
		}, []string{"strategy"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_duration_seconds",
			Help:      "Time to resolve a quote",
			Buckets:   prometheus.DefBuckets,
		}, []string{"strategy"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.attempts, m.duration)
	}
	return m
}

// ObserveQuote records one resolution. outcome is "ok" or an error kind;
// attempts is only counted for failures.
func (m *Metrics) ObserveQuote(strategy, outcome string, attempts int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(strategy, outcome).Inc()
	if attempts > 0 {
		m.attempts.WithLabelValues(strategy).Add(float64(attempts))
	}
	m.duration.WithLabelValues(strategy).Observe(elapsed.Seconds())
}
