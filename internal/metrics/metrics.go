// Package metrics exposes ledger activity as Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/chainkernel/internal/ledger"
)

const namespace = "chainkernel"

// Metrics is a ledger sink that counts transactions and events.
type Metrics struct {
	Registry *prometheus.Registry

	txTotal     *prometheus.CounterVec
	reverts     *prometheus.CounterVec
	events      *prometheus.CounterVec
	txDuration  prometheus.Histogram
	block       prometheus.Gauge
	rateLimited prometheus.Counter
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		txTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "transactions_total",
				Help:      "Transactions executed, by status.",
			},
			[]string{"status"},
		),
		reverts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "reverts_total",
				Help:      "Reverted transactions, by reason.",
			},
			[]string{"reason"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "events_total",
				Help:      "Events emitted by committed transactions, by name.",
			},
			[]string{"name"},
		),
		txDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "transaction_duration_seconds",
				Help:      "Transaction execution time.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12), // 100µs to ~200ms
			},
		),
		block: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "block",
				Help:      "Latest block number.",
			},
		),
		rateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rpc",
				Name:      "rate_limited_total",
				Help:      "Submissions rejected by the rate limiter.",
			},
		),
	}
	m.Registry.MustRegister(
		m.txTotal, m.reverts, m.events, m.txDuration, m.block, m.rateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Publish records one receipt.
func (m *Metrics) Publish(r *ledger.Receipt) error {
	m.txTotal.WithLabelValues(string(r.Status)).Inc()
	m.txDuration.Observe(r.Duration.Seconds())
	m.block.Set(float64(r.Block))
	if !r.Committed() {
		m.reverts.WithLabelValues(r.Reason).Inc()
		return nil
	}
	for _, e := range r.Events {
		m.events.WithLabelValues(e.Name).Inc()
	}
	return nil
}

// RateLimited counts one rejected submission.
func (m *Metrics) RateLimited() { m.rateLimited.Inc() }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
