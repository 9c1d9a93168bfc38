// Package metrics exposes Prometheus counters for the simulation engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics carries its own registry so multiple instances (tests, embedded
// use) never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	OrdersSubmitted prometheus.Counter
	OrdersRejected  prometheus.Counter
	OrdersFilled    prometheus.Counter
	PositionsClosed prometheus.Counter
	Ticks           prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		OrdersSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "papertrade_orders_submitted_total",
			Help: "Orders accepted by order intake.",
		}),
		OrdersRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "papertrade_orders_rejected_total",
			Help: "Orders rejected by validation or funds checks.",
		}),
		OrdersFilled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "papertrade_orders_filled_total",
			Help: "Orders executed, market and triggered pending alike.",
		}),
		PositionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "papertrade_positions_closed_total",
			Help: "Positions closed, manual and protective exits alike.",
		}),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "papertrade_ticks_total",
			Help: "Price ticks processed.",
		}),
	}
	m.registry.MustRegister(
		m.OrdersSubmitted,
		m.OrdersRejected,
		m.OrdersFilled,
		m.PositionsClosed,
		m.Ticks,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
