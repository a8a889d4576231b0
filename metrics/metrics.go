// Package metrics exposes the persistence service telemetry as Prometheus collectors on a
// private registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Load outcomes.
const (
	LoadLocal  = "local"
	LoadRemote = "remote"
	LoadFailed = "failed"
)

// Cache tiers a Get can be served from.
const (
	TierLive    = "live"
	TierRequest = "request"
)

// Back-end operations.
const (
	OpRead   = "read"
	OpWrite  = "write"
	OpDelete = "delete"
)

// Collector holds the service metrics.
type Collector struct {
	registry *prometheus.Registry

	loads       *prometheus.CounterVec
	cacheHits   *prometheus.CounterVec
	ops         *prometheus.CounterVec
	opLatency   *prometheus.HistogramVec
	duplicates  prometheus.Counter
	flushes     prometheus.Counter
	liveEntries prometheus.Gauge
}

// NewCollector creates a collector; namespace defaults to "livepers".
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "livepers"
	}
	c := &Collector{registry: prometheus.NewRegistry()}

	c.loads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Entities loaded from the back-end by outcome (local, remote, failed)",
		},
		[]string{"outcome"},
	)
	c.cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Gets served without a back-end read, by cache tier",
		},
		[]string{"tier"},
	)
	c.ops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "operations_total",
			Help:      "Back-end operations by kind and result",
		},
		[]string{"op", "result"},
	)
	c.opLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "operation_duration_seconds",
			Help:      "Back-end operation latency",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
		[]string{"op"},
	)
	c.duplicates = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "duplicate_adds_total",
		Help:      "Adds that replaced an entity already in the live cache",
	})
	c.flushes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "flushes_total",
		Help:      "Dirty lists processed",
	})
	c.liveEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "live_entities",
		Help:      "Entities in the live cache",
	})

	c.registry.MustRegister(
		c.loads,
		c.cacheHits,
		c.ops,
		c.opLatency,
		c.duplicates,
		c.flushes,
		c.liveEntries,
	)
	return c
}

// Registry returns the private registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordLoad(outcome string) {
	c.loads.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordCacheHit(tier string) {
	c.cacheHits.WithLabelValues(tier).Inc()
}

// RecordOperation records one back-end operation and its latency.
func (c *Collector) RecordOperation(op string, d time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	c.ops.WithLabelValues(op, result).Inc()
	c.opLatency.WithLabelValues(op).Observe(d.Seconds())
}

func (c *Collector) RecordDuplicateAdd() {
	c.duplicates.Inc()
}

func (c *Collector) RecordFlush() {
	c.flushes.Inc()
}

// SetLiveEntities sets the live cache size gauge.
func (c *Collector) SetLiveEntities(n int) {
	c.liveEntries.Set(float64(n))
}
