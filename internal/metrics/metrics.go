// Package metrics exposes prometheus counters for roster activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "edureg"

// Metrics owns a private registry so tests and several apps in one process
// do not collide.
type Metrics struct {
	Registry *prometheus.Registry

	Mutations     *prometheus.CounterVec
	LedgerChanges *prometheus.CounterVec
	Extractions   *prometheus.CounterVec
	StoreWrites   *prometheus.CounterVec
	RateLimited   prometheus.Counter
	Students      prometheus.Gauge
}

// New registers every collector. withRuntime adds the Go and process
// collectors, which the API server wants and tests do not.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "student_mutations_total",
			Help:      "Student record changes by operation and outcome.",
		}, []string{"op", "outcome"}),
		LedgerChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_changes_total",
			Help:      "Attendance cells written, by operation and weekday.",
		}, []string{"op", "day"}),
		Extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Smart-fill extraction calls by outcome.",
		}, []string{"outcome"}),
		StoreWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_writes_total",
			Help:      "Key-value writes by key and outcome.",
		}, []string{"key", "outcome"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
		Students: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "students",
			Help:      "Number of student records.",
		}),
	}
	m.Registry.MustRegister(m.Mutations, m.LedgerChanges, m.Extractions, m.StoreWrites, m.RateLimited, m.Students)
	if withRuntime {
		m.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Outcome labels an error as "ok" or "error".
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveWrite implements store.WriteObserver.
func (m *Metrics) ObserveWrite(_, key string, err error) {
	m.StoreWrites.WithLabelValues(key, Outcome(err)).Inc()
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
