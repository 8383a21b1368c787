package core

import (
	"context"
	"errors"

	"github.com/signalsfoundry/fuelchain-optimizer/internal/lp"
)

// SolveOutcome classifies the result of handing a model to the solver.
// Anything other than optimal yields an empty movement day; it is a
// reported condition, never a fatal error.
type SolveOutcome int

const (
	SolveSkipped    SolveOutcome = iota // no LP run this day (day 0 or endgame)
	SolveOptimal                        // optimal solution found
	SolveInfeasible                     // constraint set cannot be satisfied
	SolveFailed                         // unbounded, numerical, or solver error
)

func (o SolveOutcome) String() string {
	switch o {
	case SolveSkipped:
		return "skipped"
	case SolveOptimal:
		return "optimal"
	case SolveInfeasible:
		return "infeasible"
	case SolveFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Solver isolates the allocation path from solver-specific concerns.
type Solver interface {
	Solve(ctx context.Context, m *lp.Model) (*lp.Solution, SolveOutcome)
}

// SimplexSolver solves assembled models with the bundled simplex
// implementation. The zero value is ready to use.
type SimplexSolver struct{}

// Solve runs the model and maps solver errors onto outcomes.
func (SimplexSolver) Solve(_ context.Context, m *lp.Model) (*lp.Solution, SolveOutcome) {
	sol, err := m.Solve()
	switch {
	case err == nil:
		return sol, SolveOptimal
	case errors.Is(err, lp.ErrInfeasible):
		return nil, SolveInfeasible
	default:
		return nil, SolveFailed
	}
}
