// internal/metrics/collector.go
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "launchpad"

// Collector holds the protocol metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	volume     *prometheus.CounterVec
	fees       *prometheus.CounterVec
	migrations prometheus.Counter
	phases     *prometheus.GaugeVec
}

// NewCollector creates and registers all metrics.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of protocol operations by result",
			},
			[]string{"op", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Protocol operation duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"op"},
		),
		volume: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trading_volume_lamports_total",
				Help:      "Base trading volume in lamports",
			},
			[]string{"side"},
		),
		fees: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fees_lamports_total",
				Help:      "Fees credited to the treasury in lamports",
			},
			[]string{"kind"},
		),
		migrations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "migrations_total",
				Help:      "Assets graduated to an external pool",
			},
		),
		phases: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "assets",
				Help:      "Assets per lifecycle phase",
			},
			[]string{"phase"},
		),
	}

	c.registry.MustRegister(c.operations, c.duration, c.volume, c.fees, c.migrations, c.phases)
	return c
}

// Registry exposes the registry for the HTTP handler.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordOperation records one operation outcome.
func (c *Collector) RecordOperation(ctx context.Context, op string, duration time.Duration, err error) {
	status := "success"
	switch {
	case ctx.Err() != nil:
		status = "cancelled"
	case err != nil:
		status = "failed"
	}
	c.operations.WithLabelValues(op, status).Inc()
	c.duration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordTrade adds base volume for side ("buy" or "sell").
func (c *Collector) RecordTrade(side string, base uint64) {
	c.volume.WithLabelValues(side).Add(float64(base))
}

// RecordFee adds a treasury fee of kind ("listing", "trading", "migration").
func (c *Collector) RecordFee(kind string, amount uint64) {
	if amount == 0 {
		return
	}
	c.fees.WithLabelValues(kind).Add(float64(amount))
}

// RecordMigration counts a graduation.
func (c *Collector) RecordMigration() {
	c.migrations.Inc()
}

// SetPhaseCounts publishes how many assets are in each phase.
func (c *Collector) SetPhaseCounts(counts map[string]int) {
	for phase, n := range counts {
		c.phases.WithLabelValues(phase).Set(float64(n))
	}
}

// Reset clears every metric, for tests.
func (c *Collector) Reset() {
	c.operations.Reset()
	c.duration.Reset()
	c.volume.Reset()
	c.fees.Reset()
	c.phases.Reset()
}
