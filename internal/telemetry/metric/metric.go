// Package metric provides Prometheus metrics for stashkv.
//
// It exposes command throughput, connection counts, and storage health
// in Prometheus format for scraping.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all application metrics behind a dedicated Prometheus
// registry, so tests can create isolated instances.
type Registry struct {
	reg *prometheus.Registry

	// CommandsTotal counts processed commands by name and status
	// ("ok" or "error").
	CommandsTotal *prometheus.CounterVec

	// ProtocolErrors counts malformed or unknown-command frames.
	ProtocolErrors prometheus.Counter

	// ConnectionsActive tracks currently open client connections.
	ConnectionsActive prometheus.Gauge

	// StoreKeys tracks the number of keys physically present in the
	// store, expired entries included.
	StoreKeys prometheus.Gauge

	// SnapshotDuration samples the latency of durable snapshot writes.
	SnapshotDuration prometheus.Histogram

	// EntriesReaped counts expired entries evicted by the reaper.
	EntriesReaped prometheus.Counter
}

// NewRegistry creates a registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,
		CommandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stashkv_commands_total",
			Help: "Total commands processed, by command name and status.",
		}, []string{"command", "status"}),
		ProtocolErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "stashkv_protocol_errors_total",
			Help: "Total protocol errors (malformed frames, unknown commands).",
		}),
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "stashkv_connections_active",
			Help: "Currently open client connections.",
		}),
		StoreKeys: factory.NewGauge(prometheus.GaugeOpts{
			Name: "stashkv_store_keys",
			Help: "Keys physically present in the store, including expired ones.",
		}),
		SnapshotDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "stashkv_snapshot_write_seconds",
			Help:    "Latency of durable snapshot writes.",
			Buckets: prometheus.DefBuckets,
		}),
		EntriesReaped: factory.NewCounter(prometheus.CounterOpts{
			Name: "stashkv_entries_reaped_total",
			Help: "Expired entries evicted by the background reaper.",
		}),
	}
}

// Handler returns an HTTP handler serving the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
