// Package metrics exposes aggregation counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/smartenergy/aidaily/internal/domain"
)

// Metrics records one observation per rule run. A nil *Metrics is a no-op.
type Metrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	rows     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aggregation_runs_total",
			Help: "Total rule runs by rule and result condition.",
		}, []string{"rule", "condition"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aggregation_duration_seconds",
			Help:    "Histogram of rule run durations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"rule"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aggregation_rows_affected_total",
			Help: "Target rows touched by rule and change kind.",
		}, []string{"rule", "change"}),
	}

	reg.MustRegister(m.runs, m.duration, m.rows)
	return m
}

// Observe records a finished run
func (m *Metrics) Observe(rule domain.Target, res domain.Result, tally domain.Tally, elapsed time.Duration) {
	if m == nil {
		return
	}
	r := string(rule)
	m.runs.WithLabelValues(r, string(res.Condition)).Inc()
	m.duration.WithLabelValues(r).Observe(elapsed.Seconds())
	if tally.Created > 0 {
		m.rows.WithLabelValues(r, string(domain.ChangeCreated)).Add(float64(tally.Created))
	}
	if tally.Updated > 0 {
		m.rows.WithLabelValues(r, string(domain.ChangeUpdated)).Add(float64(tally.Updated))
	}
	if tally.Unchanged > 0 {
		m.rows.WithLabelValues(r, string(domain.ChangeUnchanged)).Add(float64(tally.Unchanged))
	}
}
