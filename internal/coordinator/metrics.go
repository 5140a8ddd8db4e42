package coordinator

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report coordinator activity.
type Metrics struct {
	skillDuration *prometheus.HistogramVec
	skillFailures *prometheus.CounterVec
	fallbacks     *prometheus.CounterVec
	runsActive    prometheus.Gauge
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// defaultMetrics returns the package-level metrics instance registered with
// the global Prometheus registry. The collectors are created only once to
// avoid duplicate registration panics when multiple coordinators run in one
// process.
func defaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance using the provided
// registerer. Pass a fresh registry when unique metric names are required
// (for example in tests). Registration errors panic, mirroring promauto.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	skillDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "conductor",
			Subsystem: "coordinator",
			Name:      "skill_duration_seconds",
			Help:      "Wall-clock duration of each skill invocation.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"skill", "status"},
	)
	skillFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "conductor",
			Subsystem: "coordinator",
			Name:      "skill_failures_total",
			Help:      "Total skill invocations that failed.",
		},
		[]string{"skill", "reason"},
	)
	fallbacks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "conductor",
			Subsystem: "coordinator",
			Name:      "fallbacks_total",
			Help:      "Times each fallback layer engaged.",
		},
		[]string{"layer"},
	)
	runsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "conductor",
			Subsystem: "coordinator",
			Name:      "runs_active",
			Help:      "Requests currently executing.",
		},
	)

	reg.MustRegister(skillDuration, skillFailures, fallbacks, runsActive)
	return &Metrics{
		skillDuration: skillDuration,
		skillFailures: skillFailures,
		fallbacks:     fallbacks,
		runsActive:    runsActive,
	}
}

func (m *Metrics) observeSkill(skill, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.skillDuration.WithLabelValues(skill, status).Observe(d.Seconds())
}

func (m *Metrics) countFailure(skill, reason string) {
	if m == nil {
		return
	}
	m.skillFailures.WithLabelValues(skill, reason).Inc()
}

func (m *Metrics) countFallback(layer string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(layer).Inc()
}

func (m *Metrics) runStarted() {
	if m == nil {
		return
	}
	m.runsActive.Inc()
}

func (m *Metrics) runFinished() {
	if m == nil {
		return
	}
	m.runsActive.Dec()
}
