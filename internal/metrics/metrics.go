// Package metrics содержит счётчики Prometheus для вебхука.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "subscription_webhook"

// Metrics — коллекторы сервиса в собственном реестре.
type Metrics struct {
	registry        *prometheus.Registry
	outcomes        *prometheus.CounterVec
	plansCreated    prometheus.Counter
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New создаёт коллекторы и регистрирует их в новом реестре.
// Ошибка регистрации означает ошибку в коде, поэтому вызывает панику.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_outcomes_total",
				Help:      "Subscription events applied to the store, by outcome.",
			},
			[]string{"outcome"},
		),
		plansCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plans_created_total",
				Help:      "Plan records created for previously unseen SKUs.",
			},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Dispatched requests, by method and response code.",
			},
			[]string{"method", "code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Time spent dispatching a request.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
	m.registry.MustRegister(m.outcomes, m.plansCreated, m.requests, m.requestDuration)
	return m
}

func (m *Metrics) ObserveOutcome(outcome string) {
	m.outcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PlanCreated() {
	m.plansCreated.Inc()
}

func (m *Metrics) ObserveRequest(method string, code int, elapsed time.Duration) {
	m.requests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// Handler отдаёт метрики реестра в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
