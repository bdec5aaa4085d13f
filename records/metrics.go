/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package records

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts store calls by backend and outcome. A nil *Metrics is a
// no-op.
type Metrics struct {
	operations *prometheus.CounterVec
	cache      *prometheus.CounterVec
}

// NewMetrics creates the store counters and registers them with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Record store loads and saves by collection, serving backend and outcome.",
		}, []string{"op", "collection", "source", "outcome"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "cache_total",
			Help:      "Record store cache lookups by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(m.operations, m.cache)

	return m
}

func (m *Metrics) observe(op, collection string, r Result) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, collection, r.Source.String(), r.outcome()).Inc()
}

func (m *Metrics) cacheLookup(hit bool) {
	if m == nil {
		return
	}

	result := "miss"
	if hit {
		result = "hit"
	}
	m.cache.WithLabelValues(result).Inc()
}
