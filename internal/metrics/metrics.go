// Package metrics collects Prometheus instrumentation for the control
// plane's own operations. The daemon updates the generation gauge, the
// accept and accept-error counters, and the reload outcome counter. The
// PG/IG occupancy gauges, the PG/IG ref gauges and the reload duration
// histogram are registered and dumped, but nothing in the daemon sets
// them, so they read zero. There is no HTTP exporter: the daemon's
// management surface is the line-oriented UCTL protocol (spec §1's
// non-goals exclude an admin HTTP/gRPC API), so these are dumped as text
// by the UCTL STATS command instead of scraped.
package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the daemon updates.
type Metrics struct {
	Generation      prometheus.Gauge
	PortalGroups    prometheus.Gauge
	InitiatorGroups prometheus.Gauge
	PGRefs          *prometheus.GaugeVec
	IGRefs          *prometheus.GaugeVec
	Accepts         *prometheus.CounterVec
	AcceptErrors    *prometheus.CounterVec
	ReloadDuration  prometheus.Histogram
	ReloadsTotal    *prometheus.CounterVec

	registry *prometheus.Registry
}

// New builds a Metrics collector registered against a private registry
// (never the global default — the daemon may run many instances in
// tests, and there is no HTTP exporter to collide over anyway).
func New() *Metrics {
	m := &Metrics{
		Generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "istgtd_config_generation",
			Help: "Current configuration generation number.",
		}),
		PortalGroups: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "istgtd_portal_groups",
			Help: "Number of live portal groups.",
		}),
		InitiatorGroups: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "istgtd_initiator_groups",
			Help: "Number of live initiator groups.",
		}),
		PGRefs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "istgtd_portal_group_refs",
			Help: "Active session reference count per portal group.",
		}, []string{"tag"}),
		IGRefs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "istgtd_initiator_group_refs",
			Help: "Active reference count per initiator group.",
		}, []string{"tag"}),
		Accepts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "istgtd_accepts_total",
			Help: "Total connections accepted per portal tag.",
		}, []string{"tag"}),
		AcceptErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "istgtd_accept_errors_total",
			Help: "Total accept() errors per portal tag, by classification.",
		}, []string{"tag", "kind"}),
		ReloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "istgtd_reload_duration_seconds",
			Help:    "Time spent applying a reload in the accept loop.",
			Buckets: prometheus.DefBuckets,
		}),
		ReloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "istgtd_reloads_total",
			Help: "Total reloads applied, by outcome.",
		}, []string{"outcome"}),

		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.Generation,
		m.PortalGroups,
		m.InitiatorGroups,
		m.PGRefs,
		m.IGRefs,
		m.Accepts,
		m.AcceptErrors,
		m.ReloadDuration,
		m.ReloadsTotal,
	)
	return m
}

// Dump renders every metric as sorted "name{labels} value" lines, the
// format the UCTL STATS command writes back to the caller.
func (m *Metrics) Dump() (string, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return "", err
	}

	var lines []string
	for _, fam := range families {
		name := fam.GetName()
		for _, metric := range fam.GetMetric() {
			var val float64
			switch {
			case metric.Gauge != nil:
				val = metric.Gauge.GetValue()
			case metric.Counter != nil:
				val = metric.Counter.GetValue()
			case metric.Histogram != nil:
				val = metric.Histogram.GetSampleSum()
			}

			var labels []string
			for _, lp := range metric.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			if len(labels) > 0 {
				lines = append(lines, fmt.Sprintf("%s{%s} %v", name, strings.Join(labels, ","), val))
			} else {
				lines = append(lines, fmt.Sprintf("%s %v", name, val))
			}
		}
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n"), nil
}

// Registry exposes the private registry for tests that want to use
// prometheus/client_golang/prometheus/testutil directly.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
