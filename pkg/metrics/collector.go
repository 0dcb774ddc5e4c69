// Package metrics exposes prometheus instrumentation for the migration
// engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector counts per-asset outcomes and transfer latency.
type Collector struct {
	registry    *prometheus.Registry
	assetsTotal *prometheus.CounterVec
	duration    prometheus.Histogram
	jobRunning  prometheus.Gauge
}

// New creates a collector with its own registry, so tests and multiple
// instances never collide on global registration.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		assetsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asset_migration_assets_total",
				Help: "Total number of assets processed, by outcome",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "asset_migration_transfer_duration_seconds",
				Help:    "Time taken to transfer one asset",
				Buckets: prometheus.DefBuckets,
			},
		),
		jobRunning: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "asset_migration_job_running",
				Help: "1 while a migration job is in progress",
			},
		),
	}

	c.registry.MustRegister(c.assetsTotal, c.duration, c.jobRunning)
	return c
}

// ObserveAsset records one processed asset by outcome
// (copied/failed/skipped); duration applies to transfers only.
func (c *Collector) ObserveAsset(outcome string, duration time.Duration) {
	c.assetsTotal.WithLabelValues(outcome).Inc()
	if duration > 0 {
		c.duration.Observe(duration.Seconds())
	}
}

// SetJobRunning flips the in-progress gauge.
func (c *Collector) SetJobRunning(running bool) {
	if running {
		c.jobRunning.Set(1)
	} else {
		c.jobRunning.Set(0)
	}
}

// Handler serves the collector's registry for scraping.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
