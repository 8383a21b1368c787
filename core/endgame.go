package core

import (
	"context"
	"math"
	"sort"

	"github.com/signalsfoundry/fuelchain-optimizer/internal/logging"
	"github.com/signalsfoundry/fuelchain-optimizer/model"
)

// EndgameLiquidate replaces the LP path in the final days of the run.
// Pass (a) drains every production node through its fastest routes;
// pass (b) routes remaining demand amounts from any stocked source.
// Shipments that cannot land on or before lastDay are worthless and
// never scheduled.
//
// The pass works on a scratch copy of stock levels so pass (b) sees
// pass (a)'s depletion without touching the nodes; the driver
// reconciles real stock from the returned movements immediately after.
func EndgameLiquidate(ctx context.Context, net *Network, day, lastDay int, proj *ProjectedStocks, log logging.Logger) []model.Movement {
	if log == nil {
		log = logging.Noop()
	}

	stockView := make(map[string]float64)
	outBudget := make(map[string]float64)
	for _, node := range net.Nodes() {
		stockView[node.ID] = node.Stock - proj.Outbound(node.ID)
		if out := node.DailyOutput(); out > 0 {
			outBudget[node.ID] = out - proj.Outbound(node.ID)
		} else {
			outBudget[node.ID] = math.Inf(1)
		}
	}
	linkUsed := make(map[string]float64)

	var movements []model.Movement
	emit := func(link *model.Link, amount float64) bool {
		mv, err := model.NewMovement(link, amount, day)
		if err != nil {
			return false
		}
		movements = append(movements, mv)
		stockView[link.Source] -= amount
		outBudget[link.Source] -= amount
		linkUsed[link.ID] += amount
		proj.AddInflow(link.Destination, day+link.LeadTimeDays, amount)
		proj.AddOutbound(link.Source, amount)
		return true
	}

	// Pass (a): drain production stock via fastest-arriving routes.
	for _, node := range net.Nodes() {
		if node.Kind != model.NodeProduction {
			continue
		}
		for _, link := range sortedByLeadTime(net.Outgoing(node.ID)) {
			if stockView[node.ID] <= 0 || outBudget[node.ID] <= 0 {
				break
			}
			arrival := day + link.LeadTimeDays
			if arrival > lastDay {
				continue
			}
			amount := minFloat(
				stockView[node.ID],
				link.Capacity-linkUsed[link.ID],
				destIntake(net, proj, link.Destination, arrival),
				outBudget[node.ID],
			)
			if amount <= minMovementAmount {
				continue
			}
			emit(link, amount)
		}
	}

	// Pass (b): satisfy remaining demand from any reachable stocked
	// source, shortest lead time first.
	demands := append([]*model.Demand(nil), net.ActiveDemands()...)
	sort.Slice(demands, func(i, j int) bool {
		if demands[i].EndDay != demands[j].EndDay {
			return demands[i].EndDay < demands[j].EndDay
		}
		return demands[i].ID < demands[j].ID
	})
	for _, d := range demands {
		need := d.Remaining
		for _, link := range sortedByLeadTime(net.Incoming(d.CustomerID)) {
			if need <= minMovementAmount {
				break
			}
			arrival := day + link.LeadTimeDays
			if arrival > lastDay {
				continue
			}
			if stockView[link.Source] <= 0 {
				continue
			}
			amount := minFloat(
				need,
				stockView[link.Source],
				link.Capacity-linkUsed[link.ID],
				destIntake(net, proj, d.CustomerID, arrival),
				outBudget[link.Source],
			)
			if amount <= minMovementAmount {
				continue
			}
			if emit(link, amount) {
				need -= amount
			}
		}
	}

	log.Info(ctx, "endgame liquidation",
		logging.Int("day", day),
		logging.Int("last_day", lastDay),
		logging.Int("movements", len(movements)),
	)
	return movements
}

func sortedByLeadTime(links []*model.Link) []*model.Link {
	out := append([]*model.Link(nil), links...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].LeadTimeDays != out[j].LeadTimeDays {
			return out[i].LeadTimeDays < out[j].LeadTimeDays
		}
		return out[i].ID < out[j].ID
	})
	return out
}
