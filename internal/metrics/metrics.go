package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks classification coverage for one running service.
type Metrics struct {
	registry *prometheus.Registry

	BlocksClassified prometheus.Counter
	TxsClassified    prometheus.Counter
	TxsSkipped       prometheus.Counter
	NodesByKind      *prometheus.CounterVec
	NodesPruned      prometheus.Counter
	DynDiscovered    prometheus.Counter
}

// New builds a Metrics instance with its own registry, so parallel
// services and tests never collide.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		BlocksClassified: factory.NewCounter(prometheus.CounterOpts{
			Name: "inspector_blocks_classified_total",
			Help: "Blocks whose forest was built and finalized.",
		}),
		TxsClassified: factory.NewCounter(prometheus.CounterOpts{
			Name: "inspector_txs_classified_total",
			Help: "Transactions with a classified call tree.",
		}),
		TxsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "inspector_txs_skipped_total",
			Help: "Transactions skipped for an empty trace list.",
		}),
		NodesByKind: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inspector_nodes_total",
			Help: "Classified nodes by action kind.",
		}, []string{"kind"}),
		NodesPruned: factory.NewCounter(prometheus.CounterOpts{
			Name: "inspector_nodes_pruned_total",
			Help: "Nodes removed by inference collapse and deduplication.",
		}),
		DynDiscovered: factory.NewCounter(prometheus.CounterOpts{
			Name: "inspector_dyn_protocols_total",
			Help: "Dynamically discovered exchange addresses.",
		}),
	}
}

// Handler serves the metrics over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
