// Package lp is a small modeling layer over gonum's simplex solver.
// Callers declare non-negative variables with optional upper bounds,
// accumulate objective coefficients, and add linear inequality
// constraints; Solve assembles the dense general-form system and
// hands it to gonum.
package lp

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

var (
	ErrInfeasible = errors.New("model infeasible")
	ErrUnbounded  = errors.New("model unbounded")
	ErrSolve      = errors.New("solve failed")
)

// Sense is the direction of an inequality constraint.
type Sense int

const (
	LessEq Sense = iota
	GreaterEq
)

type constraint struct {
	coeffs map[int]float64
	sense  Sense
	rhs    float64
}

// Model is a minimization problem over non-negative variables.
type Model struct {
	obj  []float64
	ub   []float64
	cons []constraint
}

// NewModel creates an empty model.
func NewModel() *Model { return &Model{} }

// AddVariable declares a variable x >= 0 with the given objective
// coefficient and upper bound (use math.Inf(1) for unbounded) and
// returns its index.
func (m *Model) AddVariable(objCoeff, upperBound float64) int {
	m.obj = append(m.obj, objCoeff)
	m.ub = append(m.ub, upperBound)
	return len(m.obj) - 1
}

// AddObjective accumulates delta onto the objective coefficient of
// variable i.
func (m *Model) AddObjective(i int, delta float64) {
	m.obj[i] += delta
}

// AddConstraint adds Σ coeffs[i]·x_i  (sense)  rhs. The coefficient
// map is copied.
func (m *Model) AddConstraint(coeffs map[int]float64, sense Sense, rhs float64) {
	c := constraint{coeffs: make(map[int]float64, len(coeffs)), sense: sense, rhs: rhs}
	for i, v := range coeffs {
		if v != 0 {
			c.coeffs[i] = v
		}
	}
	m.cons = append(m.cons, c)
}

// NumVariables returns the number of declared variables.
func (m *Model) NumVariables() int { return len(m.obj) }

// NumConstraints returns the number of explicit constraints (variable
// bounds excluded).
func (m *Model) NumConstraints() int { return len(m.cons) }

// Solution holds an optimal assignment.
type Solution struct {
	Objective float64
	Values    []float64
}

// Solve minimizes the objective subject to the constraints and
// variable bounds. A model with no variables is trivially optimal.
// Infeasible and unbounded models are reported through the sentinel
// errors; anything else is wrapped in ErrSolve.
func (m *Model) Solve() (*Solution, error) {
	n := len(m.obj)
	if n == 0 {
		return &Solution{}, nil
	}

	// General form: minimize cᵀx subject to Gx <= h. Rows cover the
	// explicit constraints (>= rows negated), finite upper bounds, and
	// non-negativity (gonum treats variables as free).
	rows := len(m.cons)
	for _, ub := range m.ub {
		if !math.IsInf(ub, 1) {
			rows++
		}
	}
	rows += n

	g := mat.NewDense(rows, n, nil)
	h := make([]float64, rows)

	r := 0
	for _, c := range m.cons {
		sign := 1.0
		rhs := c.rhs
		if c.sense == GreaterEq {
			sign = -1.0
			rhs = -rhs
		}
		for i, v := range c.coeffs {
			g.Set(r, i, sign*v)
		}
		h[r] = rhs
		r++
	}
	for i, ub := range m.ub {
		if math.IsInf(ub, 1) {
			continue
		}
		g.Set(r, i, 1)
		h[r] = ub
		r++
	}
	for i := 0; i < n; i++ {
		g.Set(r, i, -1)
		h[r] = 0
		r++
	}

	c := make([]float64, n)
	copy(c, m.obj)

	cStd, aStd, bStd := lp.Convert(c, g, h, nil, nil)
	optF, optX, err := lp.Simplex(cStd, aStd, bStd, 1e-10, nil)
	if err != nil {
		switch {
		case errors.Is(err, lp.ErrInfeasible):
			return nil, fmt.Errorf("%w: %v", ErrInfeasible, err)
		case errors.Is(err, lp.ErrUnbounded):
			return nil, fmt.Errorf("%w: %v", ErrUnbounded, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrSolve, err)
		}
	}

	// Convert splits each free variable into a positive pair
	// x = x⁺ − x⁻ laid out as [x⁺..., x⁻..., slacks...].
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		values[i] = optX[i] - optX[n+i]
	}
	return &Solution{Objective: optF, Values: values}, nil
}
