package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "cex_dex_arb"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type promGauge struct {
	gauge prometheus.Gauge
}

func (p promGauge) Set(v float64) {
	p.gauge.Set(v)
}

type Prometheus struct {
	Metrics *Metrics

	registry *prometheus.Registry
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()

	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      name,
			Help:      help,
		})
		registry.MustRegister(c)
		return c
	}
	gauge := func(name, help string) prometheus.Gauge {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: promNamespace,
			Name:      name,
			Help:      help,
		})
		registry.MustRegister(g)
		return g
	}

	m := &Metrics{
		OrdersPlaced:       promCounter{counter("orders_placed_total", "Total number of orders placed.")},
		OrdersFailed:       promCounter{counter("orders_failed_total", "Total number of order placement failures.")},
		CyclesOpened:       promCounter{counter("cycles_opened_total", "Total number of completed open cycles.")},
		CyclesClosed:       promCounter{counter("cycles_closed_total", "Total number of completed close cycles.")},
		ChaseAttempts:      promCounter{counter("chase_attempts_total", "Total number of hedge-leg chase reposts.")},
		CancelRaces:        promCounter{counter("cancel_races_total", "Total number of cancels that lost the race to a fill.")},
		StateInconsistency: promCounter{counter("state_inconsistencies_total", "Total number of state-machine inconsistency aborts.")},
		SignalsFired:       promCounter{counter("signals_fired_total", "Total number of edge signals that triggered a cycle.")},
		OpenEdge:           promGauge{gauge("open_edge", "Latest fee-adjusted open edge in quote units.")},
		CloseEdge:          promGauge{gauge("close_edge", "Latest fee-adjusted close edge in quote units.")},
		HeldQty:            promGauge{gauge("held_qty", "Currently hedged quantity in base units.")},
	}

	return &Prometheus{Metrics: m, registry: registry}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
