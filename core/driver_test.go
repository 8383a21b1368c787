package core

import (
	"context"
	"errors"
	"testing"

	"github.com/signalsfoundry/fuelchain-optimizer/model"
)

// stubExchange records the driver's round submissions and plays back
// canned results.
type stubExchange struct {
	started bool
	ended   bool

	days      []int
	movements map[int][]model.Movement
	results   map[int]*RoundResult

	startErr error
	playErr  error
}

func newStubExchange() *stubExchange {
	return &stubExchange{
		movements: make(map[int][]model.Movement),
		results:   make(map[int]*RoundResult),
	}
}

func (s *stubExchange) StartSession(context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	return nil
}

func (s *stubExchange) PlayRound(_ context.Context, day int, movements []model.Movement) (*RoundResult, error) {
	if s.playErr != nil {
		return nil, s.playErr
	}
	s.days = append(s.days, day)
	s.movements[day] = append([]model.Movement(nil), movements...)
	if r, ok := s.results[day]; ok {
		return r, nil
	}
	return &RoundResult{}, nil
}

func (s *stubExchange) EndSession(context.Context) error {
	s.ended = true
	return nil
}

// reportRecorder captures day reports for assertions.
type reportRecorder struct {
	reports []DayReport
}

func (r *reportRecorder) ObserveDay(_ context.Context, rep DayReport) {
	r.reports = append(r.reports, rep)
}

func testDriver(t *testing.T, net *Network, exchange RoundExchanger, lastDay int, opts ...DriverOption) *Driver {
	t.Helper()
	planner := NewPlanner(7, lastDay, DefaultEndgameWindow, nil, nil)
	return NewDriver(net, planner, exchange, lastDay, nil, opts...)
}

func TestRunDayZeroSubmitsNoMovements(t *testing.T) {
	net := NewNetwork()
	mustProduction(t, net, "r1", 1000, 100, 0, 950)
	mustStorage(t, net, "t1", 5000, 0, 0, 0)
	mustLink(t, net, "l1", "r1", "t1", 1, 500)

	ex := newStubExchange()
	d := testDriver(t, net, ex, 42)

	if err := d.RunDay(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ex.movements[0]; len(got) != 0 {
		t.Errorf("day 0 must submit an empty movement list, got %d", len(got))
	}
	// No production on day 0 either.
	if net.Node("r1").Stock != 950 {
		t.Errorf("expected unchanged stock on day 0, got %g", net.Node("r1").Stock)
	}
}

func TestRunDayProducesAndDrains(t *testing.T) {
	net := NewNetwork()
	mustProduction(t, net, "r1", 1000, 100, 0, 850)
	mustStorage(t, net, "t1", 5000, 0, 0, 0)
	mustLink(t, net, "l1", "r1", "t1", 1, 2000)

	ex := newStubExchange()
	rec := &reportRecorder{}
	d := testDriver(t, net, ex, 42, WithObserver(rec))

	if err := d.RunDay(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Production runs first (850 -> 950), then the drain empties the
	// node through the wide link.
	if got := net.Node("r1").Stock; got != 0 {
		t.Errorf("expected stock 0 after production and drain, got %g", got)
	}
	if len(rec.reports) != 1 {
		t.Fatalf("expected one day report, got %d", len(rec.reports))
	}
	rep := rec.reports[0]
	if rep.DrainMovements != 1 {
		t.Errorf("expected 1 drain movement in the report, got %d", rep.DrainMovements)
	}

	// The shipment is in transit, not at the destination yet.
	if got := net.Node("t1").Stock; got != 0 {
		t.Errorf("expected t1 still empty, got %g", got)
	}
	arrivals := d.Ledger().ArrivalsOn(2)
	if len(arrivals) != 1 || arrivals[0].Amount != 950 {
		t.Errorf("expected 950 units in transit for day 2, got %v", arrivals)
	}
}

func TestRunDaySwitchesToEndgame(t *testing.T) {
	net := NewNetwork()
	mustProduction(t, net, "r1", 1000, 100, 0, 200)
	mustStorage(t, net, "t1", 5000, 0, 0, 0)
	mustLink(t, net, "l1", "r1", "t1", 1, 500)

	ex := newStubExchange()
	rec := &reportRecorder{}
	d := testDriver(t, net, ex, 42, WithObserver(rec))

	// 42 - 38 = 4 remaining days, inside the default window of 5.
	if err := d.RunDay(context.Background(), 38); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.reports) != 1 {
		t.Fatalf("expected one day report, got %d", len(rec.reports))
	}
	if !rec.reports[0].Endgame {
		t.Error("expected the endgame path at day 38")
	}
	if rec.reports[0].Outcome != SolveSkipped {
		t.Errorf("no LP runs in endgame, expected skipped outcome, got %v", rec.reports[0].Outcome)
	}

	// Outside the window the LP path runs.
	rec.reports = nil
	if err := d.RunDay(context.Background(), 36); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.reports[0].Endgame {
		t.Error("day 36 is outside the endgame window")
	}
}

func TestArrivalsCreditDemandsInUrgencyOrder(t *testing.T) {
	net := NewNetwork()
	mustConsumption(t, net, "c1", 1000)
	urgent := mustDemand(t, net, "d-urgent", "c1", 100, 0, 1, 6)
	relaxed := mustDemand(t, net, "d-relaxed", "c1", 100, 0, 1, 20)

	ex := newStubExchange()
	d := testDriver(t, net, ex, 42)
	d.Ledger().Schedule(5, "c1", 150)

	if err := d.RunDay(context.Background(), 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if urgent.Remaining != 0 {
		t.Errorf("urgent demand should be exhausted first, remaining %g", urgent.Remaining)
	}
	if relaxed.Remaining != 50 {
		t.Errorf("expected 50 left on the relaxed demand, got %g", relaxed.Remaining)
	}
	// Customers never warehouse fuel.
	if got := net.Node("c1").Stock; got != 0 {
		t.Errorf("consumption node must hold no stock, got %g", got)
	}
}

func TestArrivalsBeyondDemandAreDiscarded(t *testing.T) {
	net := NewNetwork()
	mustConsumption(t, net, "c1", 1000)
	dem := mustDemand(t, net, "d1", "c1", 40, 0, 1, 20)

	ex := newStubExchange()
	d := testDriver(t, net, ex, 42)
	d.Ledger().Schedule(5, "c1", 100)

	if err := d.RunDay(context.Background(), 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dem.Remaining != 0 {
		t.Errorf("expected demand exhausted, got %g", dem.Remaining)
	}
	if got := net.Node("c1").Stock; got != 0 {
		t.Errorf("surplus delivery must be discarded, got stock %g", got)
	}
}

func TestIngestedDemandsEnterTheNetwork(t *testing.T) {
	net := NewNetwork()
	mustConsumption(t, net, "c1", 1000)

	dem, err := model.NewDemand("d-new", "c1", 75, 3, 5, 9)
	if err != nil {
		t.Fatalf("build demand: %v", err)
	}
	ex := newStubExchange()
	ex.results[3] = &RoundResult{Demands: []*model.Demand{dem}}

	d := testDriver(t, net, ex, 42)
	if err := d.RunDay(context.Background(), 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(net.ActiveDemands()) != 1 {
		t.Fatalf("expected the reported demand to be registered, got %d", len(net.ActiveDemands()))
	}
	if net.ActiveDemands()[0].ID != "d-new" {
		t.Errorf("unexpected demand %s", net.ActiveDemands()[0].ID)
	}
}

func TestRunPlaysEveryDayAndTearsDown(t *testing.T) {
	net := NewNetwork()
	mustProduction(t, net, "r1", 1000, 10, 0, 0)

	ex := newStubExchange()
	d := testDriver(t, net, ex, 4)

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ex.started || !ex.ended {
		t.Errorf("expected session start and end, got started=%v ended=%v", ex.started, ex.ended)
	}
	want := []int{0, 1, 2, 3, 4}
	if len(ex.days) != len(want) {
		t.Fatalf("expected %d rounds, got %d", len(want), len(ex.days))
	}
	for i, day := range want {
		if ex.days[i] != day {
			t.Errorf("round %d: expected day %d, got %d", i, day, ex.days[i])
		}
	}
}

func TestRunStopsOnExchangeFailure(t *testing.T) {
	net := NewNetwork()
	mustProduction(t, net, "r1", 1000, 10, 0, 0)

	ex := newStubExchange()
	ex.playErr = errors.New("server gone")
	d := testDriver(t, net, ex, 4)

	err := d.Run(context.Background())
	if !errors.Is(err, ErrRoundExchange) {
		t.Fatalf("expected ErrRoundExchange, got %v", err)
	}
	if !ex.ended {
		t.Error("session teardown must still be attempted")
	}
}

func TestRunStartSessionFailure(t *testing.T) {
	net := NewNetwork()
	mustProduction(t, net, "r1", 1000, 10, 0, 0)

	ex := newStubExchange()
	ex.startErr = errors.New("bad key")
	d := testDriver(t, net, ex, 4)

	if err := d.Run(context.Background()); !errors.Is(err, ErrRoundExchange) {
		t.Fatalf("expected ErrRoundExchange, got %v", err)
	}
	if len(ex.days) != 0 {
		t.Errorf("no rounds may be played without a session, got %d", len(ex.days))
	}
}

func TestApplyMovementsClampsOverdraw(t *testing.T) {
	// A reported movement larger than the source's stock debits to
	// zero, never negative.
	net := NewNetwork()
	mustStorage(t, net, "t1", 1000, 0, 0, 30)
	mustStorage(t, net, "t2", 1000, 0, 0, 0)
	link := mustLink(t, net, "l1", "t1", "t2", 1, 500)

	ex := newStubExchange()
	d := testDriver(t, net, ex, 42)

	mv, err := model.NewMovement(link, 50, 7)
	if err != nil {
		t.Fatalf("build movement: %v", err)
	}
	d.applyMovements(context.Background(), 7, []model.Movement{mv})

	if got := net.Node("t1").Stock; got != 0 {
		t.Errorf("expected stock clamped to 0, got %g", got)
	}
	arrivals := d.Ledger().ArrivalsOn(8)
	if len(arrivals) != 1 || arrivals[0].Amount != 50 {
		t.Errorf("expected the movement scheduled for day 8, got %v", arrivals)
	}
}
