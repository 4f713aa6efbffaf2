// Package metrics registers the Prometheus meters of the purge pipeline.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "edgepurge"

var MetricRegisterErrorMessage = "failed to register metric"

type Metrics struct {
	purgeRequests   *prometheus.CounterVec
	purgeDuration   *prometheus.HistogramVec
	purgedItems     *prometheus.CounterVec
	queueSize       prometheus.Gauge
	queueDropped    prometheus.Counter
	drainRuns       *prometheus.CounterVec
	immediatePurges *prometheus.CounterVec
	events          *prometheus.CounterVec
}

// New registers every collector on reg; pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		purgeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purge_requests_total",
			Help:      "CDN purge API requests by request kind and outcome.",
		}, []string{"kind", "outcome"}),
		purgeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "purge_request_duration_seconds",
			Help:      "Duration of CDN purge API requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		purgedItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purged_items_total",
			Help:      "Items accepted by the CDN purge API.",
		}, []string{"kind"}),
		queueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_items",
			Help:      "Items waiting in the invalidation queue.",
		}),
		queueDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_dropped_items_total",
			Help:      "Items not queued because the soft cap was reached.",
		}),
		drainRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drain_runs_total",
			Help:      "Batch drain runs by outcome.",
		}, []string{"outcome"}),
		immediatePurges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "immediate_purges_total",
			Help:      "Inline high-priority purges by outcome.",
		}, []string{"outcome"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_events_total",
			Help:      "Content change events by entity type and handling.",
		}, []string{"entity", "handling"}),
	}

	for _, c := range []prometheus.Collector{
		m.purgeRequests, m.purgeDuration, m.purgedItems, m.queueSize,
		m.queueDropped, m.drainRuns, m.immediatePurges, m.events,
	} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Join(errors.New(MetricRegisterErrorMessage), err)
		}
	}
	return m, nil
}

func (m *Metrics) PurgeRequest(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.purgeRequests.WithLabelValues(kind, outcome).Inc()
	m.purgeDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) ItemsPurged(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.purgedItems.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) QueueSize(n int) {
	if m == nil {
		return
	}
	m.queueSize.Set(float64(n))
}

func (m *Metrics) QueueDropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.queueDropped.Add(float64(n))
}

func (m *Metrics) DrainRun(outcome string) {
	if m == nil {
		return
	}
	m.drainRuns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ImmediatePurge(outcome string) {
	if m == nil {
		return
	}
	m.immediatePurges.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Event(entity, handling string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(entity, handling).Inc()
}
