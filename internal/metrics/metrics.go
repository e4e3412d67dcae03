// Package metrics exposes prometheus collectors for the orchestrator.
//
// All methods are safe on a nil *Collector so components can be built
// without metrics in tests and in the one-shot CLI commands.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "devdash"

// Collector holds every metric of the process on its own registry.
type Collector struct {
	registry *prometheus.Registry

	probeResults    *prometheus.CounterVec
	probeDuration   *prometheus.HistogramVec
	controllerCalls *prometheus.CounterVec
	serviceUp       *prometheus.GaugeVec
	operations      *prometheus.CounterVec
	gateOutcomes    *prometheus.CounterVec
	gateDuration    *prometheus.HistogramVec
}

// New creates a collector registered under namespace (default "devdash").
func New(namespace string) *Collector {
	if namespace == "" {
		namespace = defaultNamespace
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.probeResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_results_total",
			Help:      "Reachability probe results by service, strategy and outcome",
		},
		[]string{"service", "kind", "result"},
	)

	c.probeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Duration of reachability probes",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2, 5},
		},
		[]string{"kind"},
	)

	c.controllerCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "controller_calls_total",
			Help:      "Container tool invocations by operation and outcome",
		},
		[]string{"op", "result"},
	)

	c.serviceUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "service_up",
			Help:      "1 if the service read as running on the last watcher pass",
		},
		[]string{"service"},
	)

	c.operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Lifecycle operations by name and outcome",
		},
		[]string{"op", "result"},
	)

	c.gateOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readiness_outcomes_total",
			Help:      "Start-all readiness gate terminal states",
		},
		[]string{"state", "stage"},
	)

	c.gateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "readiness_duration_seconds",
			Help:      "Time from bring-up command to terminal gate state",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 90, 120, 180},
		},
		[]string{"state"},
	)

	c.registry.MustRegister(
		c.probeResults,
		c.probeDuration,
		c.controllerCalls,
		c.serviceUp,
		c.operations,
		c.gateOutcomes,
		c.gateDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveProbe records one reachability probe.
func (c *Collector) ObserveProbe(service, kind string, reachable bool, d time.Duration) {
	if c == nil {
		return
	}
	c.probeResults.WithLabelValues(service, kind, resultLabel(reachable)).Inc()
	c.probeDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveControllerCall records one container tool invocation.
// result is one of "ok", "error", "unavailable".
func (c *Collector) ObserveControllerCall(op, result string) {
	if c == nil {
		return
	}
	c.controllerCalls.WithLabelValues(op, result).Inc()
}

// SetServiceUp sets the service_up gauge.
func (c *Collector) SetServiceUp(service string, up bool) {
	if c == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	c.serviceUp.WithLabelValues(service).Set(v)
}

// ObserveOperation records a lifecycle operation.
func (c *Collector) ObserveOperation(op, result string) {
	if c == nil {
		return
	}
	c.operations.WithLabelValues(op, result).Inc()
}

// ObserveGate records a terminal readiness gate state.
func (c *Collector) ObserveGate(state, stage string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.gateOutcomes.WithLabelValues(state, stage).Inc()
	c.gateDuration.WithLabelValues(state).Observe(elapsed.Seconds())
}

func resultLabel(ok bool) string {
	if ok {
		return "reachable"
	}
	return "unreachable"
}
