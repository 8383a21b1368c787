package core

import (
	"github.com/signalsfoundry/fuelchain-optimizer/model"
)

// ProjectedStocks threads live allocation decisions between the
// critical-drain pass and later allocation within a single day. It is
// created by the driver each day and discarded afterward; nothing in
// it survives to the next day.
type ProjectedStocks struct {
	inflow   map[string]map[int]float64 // node -> arrival day -> qty
	outbound map[string]float64         // node -> qty committed out today
}

// NewProjectedStocks creates empty day-scoped state.
func NewProjectedStocks() *ProjectedStocks {
	return &ProjectedStocks{
		inflow:   make(map[string]map[int]float64),
		outbound: make(map[string]float64),
	}
}

// AddInflow records a scheduled arrival at a node.
func (p *ProjectedStocks) AddInflow(nodeID string, arrivalDay int, amount float64) {
	if amount <= 0 {
		return
	}
	m, ok := p.inflow[nodeID]
	if !ok {
		m = make(map[int]float64)
		p.inflow[nodeID] = m
	}
	m[arrivalDay] += amount
}

// InflowOn returns the quantity already scheduled to arrive at a node
// on a specific day.
func (p *ProjectedStocks) InflowOn(nodeID string, day int) float64 {
	return p.inflow[nodeID][day]
}

// InflowThrough returns the total quantity scheduled to arrive at a
// node on or before day.
func (p *ProjectedStocks) InflowThrough(nodeID string, day int) float64 {
	total := 0.0
	for d, amt := range p.inflow[nodeID] {
		if d <= day {
			total += amt
		}
	}
	return total
}

// AddOutbound records stock committed to leave a node today.
func (p *ProjectedStocks) AddOutbound(nodeID string, amount float64) {
	if amount <= 0 {
		return
	}
	p.outbound[nodeID] += amount
}

// Outbound returns the stock already committed to leave a node today.
func (p *ProjectedStocks) Outbound(nodeID string) float64 {
	return p.outbound[nodeID]
}

// FlowVar is one decision variable: quantity shipped on a link on a
// given day. A variable whose upper bound is zero still exists so the
// model shape stays uniform across days.
type FlowVar struct {
	Link       *model.Link
	Day        int
	UpperBound float64
}

type flowKey struct {
	linkID string
	day    int
}

// FlowModel is the variable grid for one day's optimization: one
// variable per (link, day) pair over the clamped planning horizon.
type FlowModel struct {
	CurrentDay int
	Horizon    int // effective number of modeled days, >= 0
	Vars       []FlowVar

	index map[flowKey]int
}

// VarIndex returns the position of the (link, day) variable.
func (f *FlowModel) VarIndex(linkID string, day int) (int, bool) {
	i, ok := f.index[flowKey{linkID: linkID, day: day}]
	return i, ok
}

// BuildFlowModel constructs the variable grid for the current day.
// The horizon is clamped so it never extends past lastDay. Upper
// bounds fold in the day's projected inflows and outbound commitments
// so flows scheduled by earlier passes are respected. The network is
// not mutated.
func BuildFlowModel(net *Network, currentDay, horizon, lastDay int, proj *ProjectedStocks) *FlowModel {
	if proj == nil {
		proj = NewProjectedStocks()
	}
	h := horizon
	if currentDay+h-1 > lastDay {
		h = lastDay - currentDay + 1
	}
	if h < 0 {
		h = 0
	}

	fm := &FlowModel{
		CurrentDay: currentDay,
		Horizon:    h,
		index:      make(map[flowKey]int),
	}

	for _, link := range net.Links() {
		src := net.Node(link.Source)
		dst := net.Node(link.Destination)
		for day := currentDay; day < currentDay+h; day++ {
			ub := flowUpperBound(link, src, dst, day, proj)
			fm.index[flowKey{linkID: link.ID, day: day}] = len(fm.Vars)
			fm.Vars = append(fm.Vars, FlowVar{Link: link, Day: day, UpperBound: ub})
		}
	}
	return fm
}

// flowUpperBound computes the per-day cap on a link: link capacity,
// source throughput (and stock, for non-production sources), and
// destination intake or storage headroom. A negative result clamps
// to zero, fixing the variable.
func flowUpperBound(link *model.Link, src, dst *model.Node, day int, proj *ProjectedStocks) float64 {
	ub := link.Capacity

	if src != nil {
		if out := src.DailyOutput(); out > 0 && out < ub {
			ub = out
		}
		if src.Kind != model.NodeProduction {
			avail := src.Stock - proj.Outbound(src.ID)
			if avail < ub {
				ub = avail
			}
		}
	}

	if dst != nil {
		arrival := day + link.LeadTimeDays
		switch dst.Kind {
		case model.NodeConsumption:
			intake := dst.DailyInput() - proj.InflowOn(dst.ID, arrival)
			if intake < ub {
				ub = intake
			}
		case model.NodeStorage:
			headroom := dst.Headroom() - proj.InflowThrough(dst.ID, arrival)
			if headroom < ub {
				ub = headroom
			}
		case model.NodeProduction:
			// Production nodes never receive fuel.
			ub = 0
		}
	}

	if ub < 0 {
		return 0
	}
	return ub
}
