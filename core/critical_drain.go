package core

import (
	"context"
	"math"
	"sort"

	"github.com/signalsfoundry/fuelchain-optimizer/internal/logging"
	"github.com/signalsfoundry/fuelchain-optimizer/model"
)

const (
	// drainStockRatio: a production node above this stock/capacity
	// ratio is drained before formal optimization runs.
	drainStockRatio = 0.70
	// drainProjectedRatio: a production node whose stock plus one
	// day's output would cross this ratio is also drained.
	drainProjectedRatio = 0.90
)

// CriticalDrain greedily schedules emergency shipments out of
// near-overflow production nodes. It runs unconditionally before the
// allocation path every day. Scheduled arrivals and outbound
// commitments are recorded in proj so later allocation decisions see
// them. Node stock is not mutated; the driver applies all deltas.
func CriticalDrain(ctx context.Context, net *Network, day int, proj *ProjectedStocks, log logging.Logger) []model.Movement {
	if log == nil {
		log = logging.Noop()
	}

	var movements []model.Movement
	for _, node := range net.Nodes() {
		if node.Kind != model.NodeProduction {
			continue
		}
		capacity := node.Production.Capacity
		if capacity <= 0 {
			continue
		}
		rate := node.Production.DailyRate
		if !overCapacity(node.Stock, rate, capacity) {
			continue
		}

		outBudget := math.Inf(1)
		if out := node.DailyOutput(); out > 0 {
			outBudget = out - proj.Outbound(node.ID)
		}

		// Prefer links that resolve soonest.
		links := append([]*model.Link(nil), net.Outgoing(node.ID)...)
		sort.Slice(links, func(i, j int) bool {
			if links[i].LeadTimeDays != links[j].LeadTimeDays {
				return links[i].LeadTimeDays < links[j].LeadTimeDays
			}
			return links[i].ID < links[j].ID
		})

		shipped := 0.0
		for _, link := range links {
			remaining := node.Stock - shipped
			if remaining <= 0 || outBudget <= 0 {
				break
			}
			arrival := day + link.LeadTimeDays
			amount := minFloat(remaining, link.Capacity, destIntake(net, proj, link.Destination, arrival), outBudget)
			if amount <= minMovementAmount {
				continue
			}
			mv, err := model.NewMovement(link, amount, day)
			if err != nil {
				continue
			}
			movements = append(movements, mv)
			shipped += amount
			outBudget -= amount
			proj.AddInflow(link.Destination, arrival, amount)
			proj.AddOutbound(node.ID, amount)

			log.Info(ctx, "critical drain shipment",
				logging.String("node", node.ID),
				logging.String("link", link.ID),
				logging.Any("amount", amount),
				logging.Int("arrival_day", arrival),
			)

			if !overCapacity(node.Stock-shipped, rate, capacity) {
				break
			}
		}
	}
	return movements
}

// overCapacity is the drain trigger: already above the stock ratio,
// or one day's production away from the projected ratio.
func overCapacity(stock, rate, capacity float64) bool {
	return stock/capacity > drainStockRatio || stock+rate > drainProjectedRatio*capacity
}

// destIntake computes how much a destination can still take on the
// arrival day, net of inflow already scheduled by earlier decisions.
func destIntake(net *Network, proj *ProjectedStocks, nodeID string, arrivalDay int) float64 {
	dst := net.Node(nodeID)
	if dst == nil {
		return 0
	}
	switch dst.Kind {
	case model.NodeConsumption:
		intake := dst.DailyInput() - proj.InflowOn(dst.ID, arrivalDay)
		if intake < 0 {
			return 0
		}
		return intake
	case model.NodeStorage:
		headroom := dst.Headroom() - proj.InflowThrough(dst.ID, arrivalDay)
		if headroom < 0 {
			return 0
		}
		return headroom
	default:
		return 0
	}
}

func minFloat(vals ...float64) float64 {
	m := math.Inf(1)
	for _, v := range vals {
		if v < m {
			m = v
		}
	}
	return m
}
