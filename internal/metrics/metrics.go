// Package metrics holds the Prometheus collectors exported by the playground
// control plane. Collectors live on a dedicated registry served at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "playground"

// Registry is the registry every playground collector is registered on.
var Registry = prometheus.NewRegistry()

var (
	// EventsDispatched counts envelopes by kind and outcome (ok, error,
	// unroutable, echo).
	EventsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dispatched_total",
			Help:      "Envelopes dispatched to kind handlers.",
		},
		[]string{"kind", "result"},
	)

	// PublishDeliveries counts per-subscriber deliveries (delivered, dropped).
	PublishDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_deliveries_total",
			Help:      "Payload deliveries to subscribers.",
		},
		[]string{"result"},
	)

	// Sessions is the number of subscribed client sessions.
	Sessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Connected client sessions.",
		},
	)

	// ConnectorCalls counts container engine operations by outcome.
	ConnectorCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connector_calls_total",
			Help:      "Container engine operations.",
		},
		[]string{"op", "result"},
	)
)

func init() {
	Registry.MustRegister(
		EventsDispatched,
		PublishDeliveries,
		Sessions,
		ConnectorCalls,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Result maps an error to the result label used by the counters.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler serves the playground registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
