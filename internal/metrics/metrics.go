// Package metrics exposes Prometheus counters for the inference pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pricegw"

// Metrics holds the pipeline collectors
type Metrics struct {
	registry  *prometheus.Registry
	outcomes  *prometheus.CounterVec
	fallbacks *prometheus.CounterVec
	modelUp   prometheus.Gauge
}

// New creates a Metrics with its own registry, including Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inference_outcomes_total",
			Help:      "Inference requests by terminal status.",
		}, []string{"status"}),
		// Fallbacks are a policy, not an error, and are counted apart from outcomes.
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encoding_fallbacks_total",
			Help:      "Categorical values outside the vocabulary that were mapped to the baseline code.",
		}, []string{"dimension"}),
		modelUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_available",
			Help:      "1 when a model is loaded, 0 when predictions are disabled.",
		}),
	}

	reg.MustRegister(
		m.outcomes,
		m.fallbacks,
		m.modelUp,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveOutcome counts one request in its terminal status
func (m *Metrics) ObserveOutcome(status string) {
	m.outcomes.WithLabelValues(status).Inc()
}

// ObserveFallback counts one unknown categorical value
func (m *Metrics) ObserveFallback(dimension string) {
	m.fallbacks.WithLabelValues(dimension).Inc()
}

// SetModelAvailable records whether the model loaded
func (m *Metrics) SetModelAvailable(ok bool) {
	if ok {
		m.modelUp.Set(1)
		return
	}
	m.modelUp.Set(0)
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
