// Package metrics exposes the process's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// CacheHits counts cache hits, labelled by cache ("prices", "balances").
	CacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_cache_hits_total",
		Help: "Number of cache hits by cache type.",
	}, []string{"cache"})

	// CacheMisses counts cache misses, labelled by cache.
	CacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_cache_misses_total",
		Help: "Number of cache misses by cache type.",
	}, []string{"cache"})

	// NetworkScans counts per-network scan outcomes.
	NetworkScans = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_network_scans_total",
		Help: "Number of network scans by network id and outcome (fetched, cached, errored).",
	}, []string{"network", "outcome"})

	// UpstreamErrors counts failed upstream calls by resource type.
	UpstreamErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_upstream_errors_total",
		Help: "Number of failed upstream fetches by resource (native, token, price).",
	}, []string{"resource"})

	// ScanDuration observes full-address scan latency.
	ScanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "portfolio_scan_duration_seconds",
		Help:    "Duration of full address scans.",
		Buckets: prometheus.DefBuckets,
	})
)

// MustRegisterMetrics registers all collectors with the default registry.
// Call once at startup.
func MustRegisterMetrics() {
	prometheus.MustRegister(CacheHits, CacheMisses, NetworkScans, UpstreamErrors, ScanDuration)
}
