// Package metrics holds the Prometheus counters and gauges scraped by the
// admin HTTP plane (§6.1 C14), grounded on the same prometheus/client_golang
// primitives the reference Redis exporter builds its metric set from.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles every counter/gauge redisd exposes. A Registry is
// created once at boot and threaded into the dispatcher and server so
// both sides of the process increment the same series.
type Registry struct {
	Reg *prometheus.Registry

	CommandsProcessed *prometheus.CounterVec
	ConnectedClients  prometheus.Gauge
	KeyspaceHits      prometheus.Counter
	KeyspaceMisses    prometheus.Counter
	ExpiredKeys       prometheus.Counter
}

// New builds and registers the metric set under a fresh registry, keeping
// redisd's metrics isolated from the default global registry.
func New() *Registry {
	reg := prometheus.NewRegistry()

	m := &Registry{
		Reg: reg,
		CommandsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "redisd",
			Name:      "commands_processed_total",
			Help:      "Number of commands dispatched, labeled by verb.",
		}, []string{"command"}),
		ConnectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "redisd",
			Name:      "connected_clients",
			Help:      "Number of client connections currently held.",
		}),
		KeyspaceHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "redisd",
			Name:      "keyspace_hits_total",
			Help:      "Number of successful key lookups.",
		}),
		KeyspaceMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "redisd",
			Name:      "keyspace_misses_total",
			Help:      "Number of key lookups that found nothing.",
		}),
		ExpiredKeys: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "redisd",
			Name:      "expired_keys_total",
			Help:      "Number of keys removed by lazy or active expiration.",
		}),
	}

	reg.MustRegister(
		m.CommandsProcessed,
		m.ConnectedClients,
		m.KeyspaceHits,
		m.KeyspaceMisses,
		m.ExpiredKeys,
	)
	return m
}
