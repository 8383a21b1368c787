package core

import (
	"context"

	"github.com/signalsfoundry/fuelchain-optimizer/internal/logging"
	"github.com/signalsfoundry/fuelchain-optimizer/model"
)

// minMovementAmount filters numerical noise out of solver values.
const minMovementAmount = 1e-6

// Planner owns the LP-based allocation path: it builds the
// time-expanded flow model over the rolling horizon, assembles the
// weighted objective and constraint set, solves, and extracts the
// current day's movements. It never mutates node stock.
type Planner struct {
	Horizon       int
	LastDay       int
	EndgameWindow int

	solver Solver
	log    logging.Logger
}

// NewPlanner builds a planner. A nil solver defaults to the bundled
// simplex solver; a nil logger is replaced with a noop logger.
func NewPlanner(horizon, lastDay, endgameWindow int, solver Solver, log logging.Logger) *Planner {
	if solver == nil {
		solver = SimplexSolver{}
	}
	if log == nil {
		log = logging.Noop()
	}
	return &Planner{
		Horizon:       horizon,
		LastDay:       lastDay,
		EndgameWindow: endgameWindow,
		solver:        solver,
		log:           log,
	}
}

// PlanDay re-optimizes the full horizon from scratch and returns only
// the current day's movements. On a non-optimal solve the day's list
// is empty: no movements are better than an invalid solve.
func (p *Planner) PlanDay(ctx context.Context, net *Network, day int, proj *ProjectedStocks) ([]model.Movement, SolveOutcome) {
	fm := BuildFlowModel(net, day, p.Horizon, p.LastDay, proj)
	weights := WeightsFor(p.LastDay-day, p.EndgameWindow)
	m := AssembleModel(net, fm, proj, weights)

	sol, outcome := p.solver.Solve(ctx, m)
	if outcome != SolveOptimal {
		p.log.Warn(ctx, "non-optimal solve, emitting no movements",
			logging.Int("day", day),
			logging.String("outcome", outcome.String()),
			logging.Int("variables", m.NumVariables()),
			logging.Int("constraints", m.NumConstraints()),
		)
		return nil, outcome
	}

	movements := extractMovements(fm, sol.Values, day)
	p.log.Info(ctx, "planned movements",
		logging.Int("day", day),
		logging.Int("movements", len(movements)),
		logging.Any("objective", sol.Objective),
	)
	return movements, SolveOptimal
}

// extractMovements reads back the solved flow variables for the
// current day. Future days are re-planned tomorrow and discarded.
func extractMovements(fm *FlowModel, values []float64, day int) []model.Movement {
	var movements []model.Movement
	for i, v := range fm.Vars {
		if v.Day != day {
			continue
		}
		amount := values[i]
		if amount < minMovementAmount {
			continue
		}
		mv, err := model.NewMovement(v.Link, amount, day)
		if err != nil {
			continue
		}
		movements = append(movements, mv)
	}
	return movements
}
