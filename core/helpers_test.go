package core

import (
	"testing"

	"github.com/signalsfoundry/fuelchain-optimizer/model"
)

// mustProduction and friends keep test network setup terse.
func mustProduction(t *testing.T, net *Network, id string, capacity, rate, output, stock float64) *model.Node {
	t.Helper()
	node, err := model.NewProductionNode(id, id, capacity, rate, output, stock)
	if err != nil {
		t.Fatalf("build production node %s: %v", id, err)
	}
	if err := net.AddNode(node); err != nil {
		t.Fatalf("add production node %s: %v", id, err)
	}
	return node
}

func mustStorage(t *testing.T, net *Network, id string, capacity, in, out, stock float64) *model.Node {
	t.Helper()
	node, err := model.NewStorageNode(id, id, capacity, in, out, stock)
	if err != nil {
		t.Fatalf("build storage node %s: %v", id, err)
	}
	if err := net.AddNode(node); err != nil {
		t.Fatalf("add storage node %s: %v", id, err)
	}
	return node
}

func mustConsumption(t *testing.T, net *Network, id string, dailyInput float64) *model.Node {
	t.Helper()
	node, err := model.NewConsumptionNode(id, id, dailyInput)
	if err != nil {
		t.Fatalf("build consumption node %s: %v", id, err)
	}
	if err := net.AddNode(node); err != nil {
		t.Fatalf("add consumption node %s: %v", id, err)
	}
	return node
}

func mustLink(t *testing.T, net *Network, id, src, dst string, lead int, capacity float64) *model.Link {
	t.Helper()
	link, err := model.NewLink(id, src, dst, 100, lead, model.LinkPipeline, capacity)
	if err != nil {
		t.Fatalf("build link %s: %v", id, err)
	}
	if err := net.AddLink(link); err != nil {
		t.Fatalf("add link %s: %v", id, err)
	}
	return link
}

func mustDemand(t *testing.T, net *Network, id, customer string, quantity float64, post, start, end int) *model.Demand {
	t.Helper()
	d, err := model.NewDemand(id, customer, quantity, post, start, end)
	if err != nil {
		t.Fatalf("build demand %s: %v", id, err)
	}
	if err := net.AddDemand(d); err != nil {
		t.Fatalf("add demand %s: %v", id, err)
	}
	return d
}
