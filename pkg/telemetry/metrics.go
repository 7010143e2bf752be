package telemetry

import (
	"net/http"
	"time"

	promreg "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "agentic"

// Metrics groups the collectors fed by the component callback handler.
type Metrics struct {
	registry *promreg.Registry

	componentRuns    *promreg.CounterVec
	componentLatency *promreg.HistogramVec
	tokens           *promreg.CounterVec
}

func NewMetrics() (*Metrics, error) {
	registry := promreg.NewRegistry()

	runs := promreg.NewCounterVec(
		promreg.CounterOpts{
			Namespace: namespace,
			Name:      "component_runs_total",
			Help:      "Total number of component runs by outcome.",
		},
		[]string{"component", "name", "status"},
	)
	latency := promreg.NewHistogramVec(
		promreg.HistogramOpts{
			Namespace: namespace,
			Name:      "component_duration_seconds",
			Help:      "Duration of component runs in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"component", "name"},
	)
	tokens := promreg.NewCounterVec(
		promreg.CounterOpts{
			Namespace: namespace,
			Name:      "model_tokens_total",
			Help:      "Total prompt/completion tokens reported by chat models.",
		},
		[]string{"name", "type"},
	)

	for _, c := range []promreg.Collector{runs, latency, tokens} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Metrics{
		registry:         registry,
		componentRuns:    runs,
		componentLatency: latency,
		tokens:           tokens,
	}, nil
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (m *Metrics) Registry() *promreg.Registry {
	return m.registry
}

func (m *Metrics) observeRun(component, name string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.componentRuns.WithLabelValues(component, name, status).Inc()
	m.componentLatency.WithLabelValues(component, name).Observe(d.Seconds())
}

func (m *Metrics) observeTokens(name string, prompt, completion int) {
	if m == nil {
		return
	}
	m.tokens.WithLabelValues(name, "prompt").Add(float64(prompt))
	m.tokens.WithLabelValues(name, "completion").Add(float64(completion))
}
