// Package metrics instruments AI call resilience with Prometheus collectors.
//
// A nil *Recorder is valid and records nothing, so components can take an
// optional recorder without nil checks at every call site.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Breaker state values exported by the breaker_state gauge.
const (
	StateClosed   = 0
	StateHalfOpen = 1
	StateOpen     = 2
)

// Recorder holds the collectors for one registry.
type Recorder struct {
	// Failures counts classified failures per code and category.
	Failures *prometheus.CounterVec
	// Retries counts scheduled retries per code.
	Retries *prometheus.CounterVec
	// RetryDelay tracks backoff delays.
	RetryDelay prometheus.Histogram
	// BreakerState is 0 closed, 1 half-open, 2 open.
	BreakerState *prometheus.GaugeVec
	// BreakerRejections counts calls rejected by an open breaker.
	BreakerRejections *prometheus.CounterVec
}

// NewRecorder creates collectors and registers them with reg.
// A nil reg leaves the collectors unregistered (useful in tests).
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		Failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medscribe_ai_failures_total",
				Help: "Total number of classified AI call failures",
			},
			[]string{"code", "category"},
		),
		Retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medscribe_ai_retries_total",
				Help: "Total number of AI call retries scheduled",
			},
			[]string{"code"},
		),
		RetryDelay: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "medscribe_ai_retry_delay_seconds",
				Help:    "Backoff delay before AI call retries in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90},
			},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "medscribe_breaker_state",
				Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"breaker"},
		),
		BreakerRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "medscribe_breaker_rejections_total",
				Help: "Total number of calls rejected by an open circuit breaker",
			},
			[]string{"breaker"},
		),
	}

	if reg != nil {
		reg.MustRegister(r.Failures, r.Retries, r.RetryDelay, r.BreakerState, r.BreakerRejections)
	}
	return r
}

// ObserveFailure records a classified failure.
func (r *Recorder) ObserveFailure(code, category string) {
	if r == nil {
		return
	}
	r.Failures.WithLabelValues(code, category).Inc()
}

// ObserveRetry records a scheduled retry and its delay.
func (r *Recorder) ObserveRetry(code string, delay time.Duration) {
	if r == nil {
		return
	}
	r.Retries.WithLabelValues(code).Inc()
	r.RetryDelay.Observe(delay.Seconds())
}

// SetBreakerState publishes the current state of a named breaker.
func (r *Recorder) SetBreakerState(name string, state int) {
	if r == nil {
		return
	}
	r.BreakerState.WithLabelValues(name).Set(float64(state))
}

// ObserveRejection records a call rejected by an open breaker.
func (r *Recorder) ObserveRejection(name string) {
	if r == nil {
		return
	}
	r.BreakerRejections.WithLabelValues(name).Inc()
}
