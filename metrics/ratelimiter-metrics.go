// Package metrics exports admission decisions as Prometheus counters.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"learn.wordgate/config"
)

// Outcome is the result of one admission check.
type Outcome string

const (
	Allowed  Outcome = "allowed"
	Rejected Outcome = "rejected"
	Error    Outcome = "error"
)

type RateLimitMetrics struct {
	requests *prometheus.CounterVec
}

// NewRateLimitMetrics registers the request counter on reg. Registering twice on the
// same registry reuses the existing collector, so several middlewares can share it.
func NewRateLimitMetrics(reg prometheus.Registerer) (*RateLimitMetrics, error) {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wordgate",
		Name:      "ratelimit_requests_total",
		Help:      "Admission decisions by limiter key, algorithm and outcome.",
	}, []string{"key", "algorithm", "outcome"})

	if err := reg.Register(requests); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}
		requests = existing
	}
	return &RateLimitMetrics{requests: requests}, nil
}

func (m *RateLimitMetrics) RecordRequest(key string, algorithm config.AlgorithmType, outcome Outcome) {
	m.requests.WithLabelValues(key, string(algorithm), string(outcome)).Inc()
}

// Counter returns the counter for one label set. Used by tests and diagnostics.
func (m *RateLimitMetrics) Counter(key string, algorithm config.AlgorithmType, outcome Outcome) prometheus.Counter {
	return m.requests.WithLabelValues(key, string(algorithm), string(outcome))
}
