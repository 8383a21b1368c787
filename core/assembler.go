package core

import (
	"math"

	"github.com/signalsfoundry/fuelchain-optimizer/internal/lp"
	"github.com/signalsfoundry/fuelchain-optimizer/model"
)

// PhaseWeights are the objective weights for one behavioral regime.
type PhaseWeights struct {
	Cost           float64
	CO2            float64
	DemandPriority float64
	Overflow       float64
}

var (
	steadyWeights  = PhaseWeights{Cost: 1.0, CO2: 0.5, DemandPriority: 2.0, Overflow: 5.0}
	endgameWeights = PhaseWeights{Cost: 0.1, CO2: 0.1, DemandPriority: 10.0, Overflow: 50.0}
)

// DefaultEndgameWindow is the number of remaining days at which the
// run switches to endgame behavior.
const DefaultEndgameWindow = 5

// overflowThreshold is the stock/capacity ratio above which the
// objective starts penalising projected stock.
const overflowThreshold = 0.8

// WeightsFor selects the phase weights for the given number of
// remaining days. Within the endgame window cost and emissions are
// nearly ignored and clearing inventory dominates.
func WeightsFor(remainingDays, endgameWindow int) PhaseWeights {
	if remainingDays <= endgameWindow {
		return endgameWeights
	}
	return steadyWeights
}

// urgentDeadlineDays is the distance to a demand deadline below which
// the stronger fulfillment minimum applies.
const urgentDeadlineDays = 3

// demandMinFraction returns the fraction of a demand's remaining
// amount the model is forced to schedule inside the horizon.
func demandMinFraction(d *model.Demand, currentDay int) float64 {
	if d.EndDay-currentDay <= urgentDeadlineDays {
		return 0.5
	}
	return 0.3
}

// AssembleModel turns the flow variable grid into a linear program:
// transport cost and emissions in the objective, a delivery reward for
// flows landing inside active demand windows, projected-stock balance
// and throughput constraints per node and day, overflow penalty
// variables, and soft demand minimums. The network is not mutated.
func AssembleModel(net *Network, fm *FlowModel, proj *ProjectedStocks, w PhaseWeights) *lp.Model {
	if proj == nil {
		proj = NewProjectedStocks()
	}
	m := lp.NewModel()
	if fm.Horizon <= 0 {
		return m
	}
	lastHorizonDay := fm.CurrentDay + fm.Horizon - 1

	// Flow variables with transport cost + emissions coefficients.
	for _, v := range fm.Vars {
		coeff := w.Cost*v.Link.CostPerUnit*v.Link.Distance + w.CO2*v.Link.CO2PerUnit*v.Link.Distance
		m.AddVariable(coeff, v.UpperBound)
	}

	// Delivery reward: flows arriving at a consumption node inside an
	// active demand window are discounted by the demand-priority
	// weight. Nothing caps credit against supply already in transit,
	// so the model can over-deliver late in a window; that mirrors the
	// known behavior of the system and is deliberately preserved.
	for i, v := range fm.Vars {
		dst := net.Node(v.Link.Destination)
		if dst == nil || dst.Kind != model.NodeConsumption {
			continue
		}
		arrival := v.Day + v.Link.LeadTimeDays
		for _, d := range net.ActiveDemands() {
			if d.CustomerID == dst.ID && d.InWindow(arrival) {
				m.AddObjective(i, -w.DemandPriority)
				break
			}
		}
	}

	for _, node := range net.Nodes() {
		addNodeConstraints(m, net, fm, proj, node, w)
	}
	for _, d := range net.ActiveDemands() {
		addDemandConstraint(m, net, fm, d, lastHorizonDay)
	}
	return m
}

// addNodeConstraints adds, per horizon day, the projected-stock
// balance window [0, capacity] for storage-bearing nodes, throughput
// caps, the storage headroom tightening, and the overflow penalty
// variable.
func addNodeConstraints(m *lp.Model, net *Network, fm *FlowModel, proj *ProjectedStocks, node *model.Node, w PhaseWeights) {
	cur := fm.CurrentDay
	end := cur + fm.Horizon

	// Cumulative inflow/outflow coefficients, extended day by day.
	cum := make(map[int]float64)

	for day := cur; day < end; day++ {
		in := inflowCoeffs(net, fm, node.ID, day)
		out := outflowCoeffs(net, fm, node.ID, day)

		// Daily throughput caps.
		if cap := node.DailyOutput(); cap > 0 && len(out) > 0 {
			rhs := cap - proj.Outbound(node.ID)
			if rhs < 0 {
				rhs = 0
			}
			m.AddConstraint(out, lp.LessEq, rhs)
		}
		if cap := node.DailyInput(); cap > 0 && len(in) > 0 {
			rhs := cap - proj.InflowOn(node.ID, day)
			if rhs < 0 {
				rhs = 0
			}
			m.AddConstraint(in, lp.LessEq, rhs)
		}
		// Storage tightening: a day's inflow may not exceed current
		// headroom even before the balance projection binds.
		if node.Kind == model.NodeStorage && len(in) > 0 {
			rhs := node.Headroom() - proj.InflowThrough(node.ID, day)
			if rhs < 0 {
				rhs = 0
			}
			m.AddConstraint(in, lp.LessEq, rhs)
		}

		if !node.HasStorage() {
			continue
		}

		for i, v := range in {
			cum[i] += v
		}
		for i, v := range out {
			cum[i] -= v
		}

		capacity, _ := node.Capacity()
		base := node.Stock - proj.Outbound(node.ID) + proj.InflowThrough(node.ID, day)
		if node.Kind == model.NodeProduction {
			// Production always occurs: future days accrue the fixed
			// rate before the capacity check. The current day's output
			// is already in Stock.
			base += node.Production.DailyRate * float64(day-cur)
		}

		// 0 <= base + Σin − Σout <= capacity.
		m.AddConstraint(cum, lp.GreaterEq, -base)
		m.AddConstraint(cum, lp.LessEq, capacity-base)

		// Overflow penalty: o >= projected stock − threshold·capacity.
		o := m.AddVariable(w.Overflow, math.Inf(1))
		oc := make(map[int]float64, len(cum)+1)
		for i, v := range cum {
			oc[i] = -v
		}
		oc[o] = 1
		m.AddConstraint(oc, lp.GreaterEq, base-overflowThreshold*capacity)
	}
}

// addDemandConstraint forces cumulative attributed inflow over the
// overlapping sub-window to reach a fraction of the remaining amount,
// capped by the destination's total intake over that sub-window. The
// constraint is added whenever the windows overlap, even if no flow
// can serve it; an impossible minimum surfaces as an infeasible solve
// and an empty movement day.
func addDemandConstraint(m *lp.Model, net *Network, fm *FlowModel, d *model.Demand, lastHorizonDay int) {
	cur := fm.CurrentDay
	lo := d.StartDay
	if lo < cur {
		lo = cur
	}
	hi := d.EndDay
	if hi > lastHorizonDay {
		hi = lastHorizonDay
	}
	if lo > hi {
		return
	}

	customer := net.Node(d.CustomerID)
	if customer == nil {
		return
	}

	coeffs := make(map[int]float64)
	for day := lo; day <= hi; day++ {
		for i, v := range inflowCoeffs(net, fm, d.CustomerID, day) {
			coeffs[i] += v
		}
	}

	required := demandMinFraction(d, cur) * d.Remaining
	if intake := customer.DailyInput(); intake > 0 {
		if cap := intake * float64(hi-lo+1); cap < required {
			required = cap
		}
	}
	if required <= 0 {
		return
	}
	m.AddConstraint(coeffs, lp.GreaterEq, required)
}

// inflowCoeffs maps variable index -> 1 for every flow arriving at
// nodeID on day. A flow on link L posted on day−ℓ arrives on day;
// posts before the current day are realized history and have no
// variable.
func inflowCoeffs(net *Network, fm *FlowModel, nodeID string, day int) map[int]float64 {
	coeffs := make(map[int]float64)
	for _, link := range net.Incoming(nodeID) {
		if i, ok := fm.VarIndex(link.ID, day-link.LeadTimeDays); ok {
			coeffs[i] = 1
		}
	}
	return coeffs
}

// outflowCoeffs maps variable index -> 1 for every flow leaving
// nodeID on day.
func outflowCoeffs(net *Network, fm *FlowModel, nodeID string, day int) map[int]float64 {
	coeffs := make(map[int]float64)
	for _, link := range net.Outgoing(nodeID) {
		if i, ok := fm.VarIndex(link.ID, day); ok {
			coeffs[i] = 1
		}
	}
	return coeffs
}
