package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/fuelchain-optimizer/internal/logging"
	"github.com/signalsfoundry/fuelchain-optimizer/model"
)

// ErrRoundExchange marks an unrecoverable failure of the remote round
// protocol; the driver stops advancing days when it occurs.
var ErrRoundExchange = errors.New("round exchange failed")

// Penalty is an observability annotation reported by the round server.
type Penalty struct {
	Type    string
	Message string
}

// KPIDelta is the day's reported cost/emission change.
type KPIDelta struct {
	Cost float64
	CO2  float64
}

// RoundResult is what the round server reports back for one day.
type RoundResult struct {
	Demands   []*model.Demand
	Penalties []Penalty
	KPIs      *KPIDelta
}

// RoundExchanger is the session-oriented protocol collaborator. Its
// retry budget lives behind this interface; the driver treats any
// returned error as final.
type RoundExchanger interface {
	StartSession(ctx context.Context) error
	PlayRound(ctx context.Context, day int, movements []model.Movement) (*RoundResult, error)
	EndSession(ctx context.Context) error
}

// DayReport summarises one processed day for observers (metrics,
// journal). Observers must not retain Stocks.
type DayReport struct {
	Day             int
	Endgame         bool
	Outcome         SolveOutcome
	DrainMovements  int
	Movements       []model.Movement
	Stocks          map[string]float64
	Result          *RoundResult
	ExchangeSeconds float64
}

// DayObserver receives per-day observations; failures are the
// observer's own concern and never affect the run.
type DayObserver interface {
	ObserveDay(ctx context.Context, r DayReport)
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithObserver registers a day observer.
func WithObserver(obs DayObserver) DriverOption {
	return func(d *Driver) {
		if obs != nil {
			d.observers = append(d.observers, obs)
		}
	}
}

// WithEndgameWindow overrides the remaining-days threshold at which
// the liquidation path replaces the LP path.
func WithEndgameWindow(days int) DriverOption {
	return func(d *Driver) { d.endgameWindow = days }
}

// Driver is the per-day state machine. It exclusively owns the
// network and the in-transit ledger for the lifetime of the run and
// is the only component that mutates node stock.
type Driver struct {
	net      *Network
	ledger   *TransitLedger
	planner  *Planner
	exchange RoundExchanger
	log      logging.Logger
	tracer   trace.Tracer

	lastDay       int
	endgameWindow int
	observers     []DayObserver
}

// NewDriver wires a driver for a run of lastDay+1 days (day 0
// included).
func NewDriver(net *Network, planner *Planner, exchange RoundExchanger, lastDay int, log logging.Logger, opts ...DriverOption) *Driver {
	if log == nil {
		log = logging.Noop()
	}
	d := &Driver{
		net:           net,
		ledger:        NewTransitLedger(),
		planner:       planner,
		exchange:      exchange,
		log:           log,
		tracer:        otel.Tracer("fuelchain/driver"),
		lastDay:       lastDay,
		endgameWindow: DefaultEndgameWindow,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Ledger exposes the in-transit ledger for inspection.
func (d *Driver) Ledger() *TransitLedger { return d.ledger }

// Run plays the full fixed-length run: day 0 through lastDay. On an
// unrecoverable round-exchange failure it stops advancing days and
// attempts a clean session teardown before returning the error.
func (d *Driver) Run(ctx context.Context) error {
	if err := d.exchange.StartSession(ctx); err != nil {
		return fmt.Errorf("%w: start session: %v", ErrRoundExchange, err)
	}
	defer func() {
		teardownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := d.exchange.EndSession(teardownCtx); err != nil {
			d.log.Warn(teardownCtx, "session teardown failed", logging.String("error", err.Error()))
		}
	}()

	for day := 0; day <= d.lastDay; day++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.RunDay(ctx, day); err != nil {
			return err
		}
	}
	return nil
}

// RunDay advances one day through the fixed phase order:
// ApplyArrivals, Produce, CriticalDrain, Allocate, ApplyMovements,
// IngestDemand.
func (d *Driver) RunDay(ctx context.Context, day int) error {
	ctx, span := d.tracer.Start(ctx, "driver.day", trace.WithAttributes(attribute.Int("day", day)))
	defer span.End()

	d.applyArrivals(ctx, day)
	if day > 0 {
		d.produce(ctx, day)
	}

	proj := NewProjectedStocks()
	report := DayReport{Day: day, Outcome: SolveSkipped}

	var movements []model.Movement
	if day > 0 {
		drains := CriticalDrain(ctx, d.net, day, proj, d.log)
		report.DrainMovements = len(drains)
		movements = append(movements, drains...)

		if d.lastDay-day <= d.endgameWindow {
			report.Endgame = true
			movements = append(movements, EndgameLiquidate(ctx, d.net, day, d.lastDay, proj, d.log)...)
		} else {
			planned, outcome := d.planner.PlanDay(ctx, d.net, day, proj)
			report.Outcome = outcome
			movements = append(movements, planned...)
		}
	}

	exchangeStart := time.Now()
	res, err := d.playRound(ctx, day, movements)
	report.ExchangeSeconds = time.Since(exchangeStart).Seconds()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: day %d: %v", ErrRoundExchange, day, err)
	}

	d.applyMovements(ctx, day, movements)
	d.ingestDemands(ctx, day, res)
	d.logDayResult(ctx, day, res)

	report.Movements = movements
	report.Stocks = d.net.Stocks()
	report.Result = res
	for _, obs := range d.observers {
		obs.ObserveDay(ctx, report)
	}
	return nil
}

// applyArrivals pops today's in-transit entry and credits the
// destinations. Deliveries to consumption nodes are credited against
// the most urgent open demand windows; fuel beyond all open demands
// is consumed, never warehoused.
func (d *Driver) applyArrivals(ctx context.Context, day int) {
	for _, arr := range d.ledger.PopDay(day) {
		node := d.net.Node(arr.NodeID)
		if node == nil {
			continue
		}
		if node.Kind == model.NodeConsumption {
			left := arr.Amount
			for _, dem := range d.net.DemandsFor(node.ID, day) {
				left -= dem.Credit(left)
				if left <= 0 {
					break
				}
			}
			d.log.Info(ctx, "delivery arrived",
				logging.String("node", node.ID),
				logging.Any("amount", arr.Amount),
				logging.Int("day", day),
			)
			continue
		}
		node.Stock += arr.Amount
		if cap, ok := node.Capacity(); ok && node.Stock > cap {
			d.log.Warn(ctx, "arrival overflowed storage",
				logging.String("node", node.ID),
				logging.Any("stock", node.Stock),
				logging.Any("capacity", cap),
			)
		}
	}
}

// produce advances production, clamped to remaining headroom so the
// stock invariant holds even when the run's tail cannot drain a node.
func (d *Driver) produce(ctx context.Context, day int) {
	for _, node := range d.net.Nodes() {
		if node.Kind != model.NodeProduction {
			continue
		}
		add := node.Production.DailyRate
		if h := node.Headroom(); add > h {
			add = h
		}
		if add <= 0 {
			continue
		}
		node.Stock += add
		d.log.Debug(ctx, "production",
			logging.String("node", node.ID),
			logging.Int("day", day),
			logging.Any("produced", add),
			logging.Any("stock", node.Stock),
		)
	}
}

func (d *Driver) playRound(ctx context.Context, day int, movements []model.Movement) (*RoundResult, error) {
	ctx, span := d.tracer.Start(ctx, "driver.play_round",
		trace.WithAttributes(attribute.Int("day", day), attribute.Int("movements", len(movements))))
	defer span.End()
	return d.exchange.PlayRound(ctx, day, movements)
}

// applyMovements debits source stock and enqueues each arrival in the
// ledger at postedDay+leadTime.
func (d *Driver) applyMovements(ctx context.Context, day int, movements []model.Movement) {
	for _, m := range movements {
		src := d.net.Node(m.From)
		if src != nil {
			src.Stock -= m.Amount
			if src.Stock < 0 {
				d.log.Warn(ctx, "movement overdrew source stock",
					logging.String("node", src.ID),
					logging.String("link", m.LinkID),
					logging.Any("stock", src.Stock),
				)
				src.Stock = 0
			}
		}
		d.ledger.Schedule(m.ArrivalDay(), m.To, m.Amount)
	}
}

// ingestDemands appends newly reported demand records.
func (d *Driver) ingestDemands(ctx context.Context, day int, res *RoundResult) {
	if res == nil {
		return
	}
	for _, dem := range res.Demands {
		if err := d.net.AddDemand(dem); err != nil {
			d.log.Warn(ctx, "dropping demand record",
				logging.String("demand", dem.ID),
				logging.String("error", err.Error()),
			)
			continue
		}
		d.log.Info(ctx, "new demand",
			logging.String("demand", dem.ID),
			logging.String("customer", dem.CustomerID),
			logging.Any("quantity", dem.Quantity),
			logging.Int("window_start", dem.StartDay),
			logging.Int("window_end", dem.EndDay),
		)
	}
}

// logDayResult surfaces penalties and KPI deltas. They inform nothing
// but the logs, metrics, and journal.
func (d *Driver) logDayResult(ctx context.Context, day int, res *RoundResult) {
	if res == nil {
		return
	}
	for _, p := range res.Penalties {
		d.log.Warn(ctx, "penalty reported",
			logging.Int("day", day),
			logging.String("type", p.Type),
			logging.String("message", p.Message),
		)
	}
	if res.KPIs != nil {
		d.log.Info(ctx, "day KPIs",
			logging.Int("day", day),
			logging.Any("cost", res.KPIs.Cost),
			logging.Any("co2", res.KPIs.CO2),
		)
	}
}
