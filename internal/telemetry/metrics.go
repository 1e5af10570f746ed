// Package telemetry holds the bridge's self-metrics and the Prometheus
// registry they live in. Upstream fetch failures are silent to the SNMP
// client, so this is where they become observable.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every instrument of the bridge. All methods are safe on
// a nil receiver so components can run without telemetry in tests.
type Metrics struct {
	RefreshCycles *prometheus.CounterVec
	FetchFailures *prometheus.CounterVec
	FetchDuration prometheus.Histogram
	CachedEntries prometheus.Gauge
	SNMPRequests  *prometheus.CounterVec
}

// Refresh cycle outcomes.
const (
	OutcomeOK      = "ok"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
	OutcomeFresh   = "fresh" // skipped, snapshot still inside the TTL
)

// SNMP request outcomes.
const (
	OutcomeFound  = "found"
	OutcomeAbsent = "absent"
)

// NewMetrics creates and registers the bridge instruments.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RefreshCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bridge",
			Name:      "refresh_cycles_total",
			Help:      "Cache refresh cycles by outcome.",
		}, []string{"outcome"}),
		FetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bridge",
			Name:      "fetch_failures_total",
			Help:      "Upstream fetch failures by plugin.",
		}, []string{"plugin"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bridge",
			Name:      "fetch_duration_seconds",
			Help:      "Wall time of a full upstream fetch cycle.",
			Buckets:   prometheus.DefBuckets,
		}),
		CachedEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bridge",
			Name:      "cached_entries",
			Help:      "Entries in the current cache snapshot.",
		}),
		SNMPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bridge",
			Name:      "snmp_requests_total",
			Help:      "SNMP requests served, by operation and outcome.",
		}, []string{"op", "outcome"}),
	}
	reg.MustRegister(
		m.RefreshCycles,
		m.FetchFailures,
		m.FetchDuration,
		m.CachedEntries,
		m.SNMPRequests,
	)
	return m
}

// InitRegistry builds the bridge registry. Go runtime metrics stay out;
// process metrics are optional.
func InitRegistry(enableProcess bool) (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	if enableProcess {
		reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	}
	return reg, NewMetrics(reg)
}

// RegisterSnapshotAge exports the age of the current snapshot via the
// given probe function.
func RegisterSnapshotAge(reg prometheus.Registerer, age func() time.Duration) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "bridge",
		Name:      "snapshot_age_seconds",
		Help:      "Age of the current cache snapshot.",
	}, func() float64 {
		return age().Seconds()
	}))
}

func (m *Metrics) ObserveRefresh(outcome string, d time.Duration, entries int) {
	if m == nil {
		return
	}
	m.RefreshCycles.WithLabelValues(outcome).Inc()
	if outcome != OutcomeFresh {
		m.FetchDuration.Observe(d.Seconds())
		m.CachedEntries.Set(float64(entries))
	}
}

func (m *Metrics) ObserveFetchFailure(plugin string) {
	if m == nil {
		return
	}
	m.FetchFailures.WithLabelValues(plugin).Inc()
}

func (m *Metrics) ObserveRequest(op, outcome string) {
	if m == nil {
		return
	}
	m.SNMPRequests.WithLabelValues(op, outcome).Inc()
}
