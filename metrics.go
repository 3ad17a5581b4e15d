package hxctl

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects activation statistics. A nil *Metrics records nothing.
type Metrics struct {
	controls *prometheus.CounterVec
	runs     prometheus.Counter
	duration prometheus.Histogram
}

// NewMetrics creates the activation collectors and registers them with
// reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		controls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hxctl_activation_controls_total",
			Help: "Controls handled by activation, by outcome.",
		}, []string{"outcome"}),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hxctl_activation_runs_total",
			Help: "Activation runs.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hxctl_activation_duration_seconds",
			Help:    "Time spent activating a document.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.controls, m.runs, m.duration)
	}
	return m
}

func (m *Metrics) observe(r *Report, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.Inc()
	m.duration.Observe(d.Seconds())
	m.controls.WithLabelValues("created").Add(float64(r.Created - r.Fallbacks))
	m.controls.WithLabelValues("fallback").Add(float64(r.Fallbacks))
	m.controls.WithLabelValues("rebound").Add(float64(r.Rebound))
}
