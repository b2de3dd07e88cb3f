// Package metrics exposes interceptor activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "scorm_interceptor"

// Metrics holds the interceptor collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	calls        *prometheus.CounterVec
	discovery    *prometheus.CounterVec
	statements   *prometheus.CounterVec
	translations *prometheus.CounterVec
	sendDuration *prometheus.HistogramVec
	breakerState *prometheus.GaugeVec
	tasks        *prometheus.CounterVec
}

// New creates the collectors and registers them. withRuntime adds the Go
// runtime and process collectors.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "calls_intercepted_total",
				Help:      "Tracking calls observed through an installed wrapper.",
			},
			[]string{"function"},
		),
		discovery: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "discovery_total",
				Help:      "Finished discovery sessions by outcome.",
			},
			[]string{"outcome"},
		),
		statements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "statements_total",
				Help:      "Translated statements by delivery outcome.",
			},
			[]string{"outcome"},
		),
		translations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "translations_total",
				Help:      "Translation attempts by result.",
			},
			[]string{"result"},
		),
		sendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "lrs_send_duration_seconds",
				Help:      "Latency of POST /statements requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state: 0 closed, 1 open, 2 half-open.",
			},
			[]string{"name"},
		),
		tasks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_total",
				Help:      "Deferred tasks run by the queue, by result.",
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(
		m.calls,
		m.discovery,
		m.statements,
		m.translations,
		m.sendDuration,
		m.breakerState,
		m.tasks,
	)
	if withRuntime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// CallIntercepted counts one wrapped call of function.
func (m *Metrics) CallIntercepted(function string) {
	m.calls.WithLabelValues(function).Inc()
}

// DiscoveryFinished counts a discovery session ending with outcome.
func (m *Metrics) DiscoveryFinished(outcome string) {
	m.discovery.WithLabelValues(outcome).Inc()
}

// StatementDispatched counts a statement with its delivery outcome
// ("sent", "failed" or "discarded").
func (m *Metrics) StatementDispatched(outcome string) {
	m.statements.WithLabelValues(outcome).Inc()
}

// TranslationFinished counts a translation attempt.
func (m *Metrics) TranslationFinished(err error) {
	m.translations.WithLabelValues(result(err)).Inc()
}

// ObserveSend records the latency of one LRS request.
func (m *Metrics) ObserveSend(latency time.Duration, err error) {
	m.sendDuration.WithLabelValues(result(err)).Observe(latency.Seconds())
}

// SetBreakerState records the state of the named circuit breaker.
func (m *Metrics) SetBreakerState(name string, state int) {
	m.breakerState.WithLabelValues(name).Set(float64(state))
}

// TaskFinished counts one queue task.
func (m *Metrics) TaskFinished(err error) {
	m.tasks.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
