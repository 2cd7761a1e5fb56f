package syncer

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Sync outcomes recorded in the syncs counter.
const (
	OutcomeSuccess      = "success"
	OutcomeFailure      = "failure"
	OutcomeRejected     = "rejected"
	OutcomeUnconfigured = "unconfigured"
)

// Metrics holds the sync and background-push collectors.
type Metrics struct {
	Syncs        *prometheus.CounterVec
	Pulled       prometheus.Counter
	Pushed       prometheus.Counter
	PushFailures *prometheus.CounterVec
	LastSuccess  prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wisdom",
			Name:      "syncs_total",
			Help:      "Sync invocations by outcome.",
		}, []string{"outcome"}),
		Pulled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wisdom",
			Name:      "sync_pulled_records_total",
			Help:      "Records fetched from the remote service during sync.",
		}),
		Pushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wisdom",
			Name:      "pushed_records_total",
			Help:      "Records upserted to the remote service by sync and background pushes.",
		}),
		PushFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wisdom",
			Name:      "background_push_failures_total",
			Help:      "Failed best-effort pushes by operation.",
		}, []string{"op"}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wisdom",
			Name:      "last_successful_sync_timestamp_seconds",
			Help:      "Unix time of the last successful sync.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Syncs, m.Pulled, m.Pushed, m.PushFailures, m.LastSuccess)
	}
	return m
}
