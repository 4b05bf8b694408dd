package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// StepsTotal counts every event dispatched by the step engine, by
	// event type (TICK, NETWORK, DISK).
	StepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raftsim_steps_total",
			Help: "Total number of events dispatched by the step engine, by type",
		},
		[]string{"type"},
	)

	// StepDuration measures the wall-clock time spent computing one step —
	// not the virtual time it advances to.
	StepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "raftsim_step_duration_seconds",
			Help:    "Wall-clock time to compute one step, in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// VirtualTimeMS tracks the fixture's virtual clock.
	VirtualTimeMS = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftsim_virtual_time_ms",
			Help: "Current virtual clock value, in milliseconds",
		},
	)

	// InvariantViolationsTotal counts fatal safety-monitor violations by
	// kind (election-safety, leader-append-only).
	InvariantViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raftsim_invariant_violations_total",
			Help: "Total number of fatal invariant violations detected, by kind",
		},
		[]string{"kind"},
	)

	// ServersAlive tracks how many of the fixture's servers currently have
	// their alive flag set.
	ServersAlive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftsim_servers_alive",
			Help: "Number of servers currently alive in the fixture",
		},
	)

	// LeaderTerm is the term of the current stable leader, or 0 when none
	// is recorded.
	LeaderTerm = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raftsim_leader_term",
			Help: "Term of the current stable leader, 0 when no stable leader is recorded",
		},
	)
)

func init() {
	prometheus.MustRegister(StepsTotal)
	prometheus.MustRegister(StepDuration)
	prometheus.MustRegister(VirtualTimeMS)
	prometheus.MustRegister(InvariantViolationsTotal)
	prometheus.MustRegister(ServersAlive)
	prometheus.MustRegister(LeaderTerm)
}

// Handler returns the Prometheus HTTP handler, for an embedding test
// binary that wants to scrape the harness's metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
