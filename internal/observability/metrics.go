package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/fuelchain-optimizer/core"
)

// RunCollector bundles Prometheus metrics for a simulation run and
// implements core.DayObserver so the driver can feed it directly.
type RunCollector struct {
	gatherer prometheus.Gatherer

	RoundsPlayed     prometheus.Counter
	MovementsTotal   *prometheus.CounterVec
	SolveOutcomes    *prometheus.CounterVec
	PenaltiesTotal   *prometheus.CounterVec
	DeltaCost        prometheus.Counter
	DeltaCO2         prometheus.Counter
	NodeStock        *prometheus.GaugeVec
	ExchangeDuration prometheus.Histogram
}

// NewRunCollector registers run metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewRunCollector(reg prometheus.Registerer) (*RunCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	rounds, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "run_rounds_played_total",
		Help: "Number of days fully processed and submitted.",
	}), "run_rounds_played_total")
	if err != nil {
		return nil, err
	}

	movements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "run_movements_total",
		Help: "Movements emitted, labeled by originating pass.",
	}, []string{"origin"})
	movements, err = registerCounterVec(reg, movements, "run_movements_total")
	if err != nil {
		return nil, err
	}

	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "run_solve_outcomes_total",
		Help: "Solver outcomes per day, labeled by outcome.",
	}, []string{"outcome"})
	outcomes, err = registerCounterVec(reg, outcomes, "run_solve_outcomes_total")
	if err != nil {
		return nil, err
	}

	penalties := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "run_penalties_total",
		Help: "Penalties reported by the round server, labeled by type.",
	}, []string{"type"})
	penalties, err = registerCounterVec(reg, penalties, "run_penalties_total")
	if err != nil {
		return nil, err
	}

	deltaCost, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "run_kpi_cost_total",
		Help: "Cumulative reported cost KPI.",
	}), "run_kpi_cost_total")
	if err != nil {
		return nil, err
	}
	deltaCO2, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "run_kpi_co2_total",
		Help: "Cumulative reported CO2 KPI.",
	}), "run_kpi_co2_total")
	if err != nil {
		return nil, err
	}

	stock := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "run_node_stock_units",
		Help: "Current stock per node.",
	}, []string{"node"})
	stock, err = registerGaugeVec(reg, stock, "run_node_stock_units")
	if err != nil {
		return nil, err
	}

	exchange, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "run_round_exchange_duration_seconds",
		Help:    "Latency of one round exchange with the remote server.",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}), "run_round_exchange_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &RunCollector{
		gatherer:         gatherer,
		RoundsPlayed:     rounds,
		MovementsTotal:   movements,
		SolveOutcomes:    outcomes,
		PenaltiesTotal:   penalties,
		DeltaCost:        deltaCost,
		DeltaCO2:         deltaCO2,
		NodeStock:        stock,
		ExchangeDuration: exchange,
	}, nil
}

// ObserveDay records one processed day. Implements core.DayObserver.
func (c *RunCollector) ObserveDay(_ context.Context, r core.DayReport) {
	if c == nil {
		return
	}
	c.RoundsPlayed.Inc()
	c.SolveOutcomes.WithLabelValues(r.Outcome.String()).Inc()

	drains := r.DrainMovements
	rest := len(r.Movements) - drains
	if drains > 0 {
		c.MovementsTotal.WithLabelValues("drain").Add(float64(drains))
	}
	if rest > 0 {
		origin := "lp"
		if r.Endgame {
			origin = "endgame"
		}
		c.MovementsTotal.WithLabelValues(origin).Add(float64(rest))
	}

	if r.ExchangeSeconds > 0 {
		c.ExchangeDuration.Observe(r.ExchangeSeconds)
	}
	for node, stock := range r.Stocks {
		c.NodeStock.WithLabelValues(node).Set(stock)
	}
	if r.Result != nil {
		for _, p := range r.Result.Penalties {
			c.PenaltiesTotal.WithLabelValues(p.Type).Inc()
		}
		if r.Result.KPIs != nil {
			if r.Result.KPIs.Cost > 0 {
				c.DeltaCost.Add(r.Result.KPIs.Cost)
			}
			if r.Result.KPIs.CO2 > 0 {
				c.DeltaCO2.Add(r.Result.KPIs.CO2)
			}
		}
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *RunCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}
