// Package metrics exposes operational gauges/counters/histograms for the
// collector, index, and action-queue components (spec.md §6 ambient
// observability; HTTP/WS exposition itself is out of scope).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ContainersTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dockfleet_containers_total",
		Help: "Total number of containers last seen per host.",
	}, []string{"host"})

	CollectorCycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dockfleet_collector_cycle_duration_seconds",
		Help:    "Duration of one collector cycle by loop.",
		Buckets: prometheus.DefBuckets,
	}, []string{"loop"})

	CollectorCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dockfleet_collector_cycles_total",
		Help: "Total number of collector cycles run, by loop.",
	}, []string{"loop"})

	CollectorHostErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dockfleet_collector_host_errors_total",
		Help: "Total number of per-host errors encountered during collection, by host and loop.",
	}, []string{"host", "loop"})

	LogsIndexedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dockfleet_logs_indexed_total",
		Help: "Total number of log documents submitted to the index, by host.",
	}, []string{"host"})

	IndexWriteFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dockfleet_index_write_failures_total",
		Help: "Total number of document write failures reported by the indexing store, by index.",
	}, []string{"index"})

	RetentionSweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dockfleet_retention_sweep_duration_seconds",
		Help:    "Duration of the hourly retention sweep.",
		Buckets: prometheus.DefBuckets,
	})

	ActionQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dockfleet_action_queue_depth",
		Help: "Number of actions currently in a non-terminal state, by state.",
	}, []string{"state"})

	ActionsDispatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dockfleet_actions_dispatched_total",
		Help: "Total number of actions transitioned to in_progress, by agent.",
	}, []string{"agent"})

	AgentsOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dockfleet_agents_online",
		Help: "Number of agent-reported hosts considered online (heartbeat within freshness window).",
	})

	SwarmTopologyRefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dockfleet_swarm_topology_refresh_duration_seconds",
		Help:    "Duration of one Swarm topology discovery pass.",
		Buckets: prometheus.DefBuckets,
	})

	SwarmProxiesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dockfleet_swarm_proxies_active",
		Help: "Number of currently discovered Swarm worker proxy clients.",
	})
)
