package core

import (
	"errors"
	"fmt"
	"sort"

	"github.com/signalsfoundry/fuelchain-optimizer/model"
)

var (
	ErrNodeExists   = errors.New("node already exists")
	ErrNodeNotFound = errors.New("node not found")
	ErrLinkExists   = errors.New("link already exists")
	ErrLinkNotFound = errors.New("link not found")
	ErrEndpointMiss = errors.New("link references unknown node")
	ErrDemandExists = errors.New("demand already exists")
)

// Network is the in-memory description of the fuel network: nodes,
// directed links, and outstanding demands, plus the derived route
// index (outgoing links by source, incoming links by destination).
//
// The network is exclusively owned by the simulation driver; the run
// is strictly sequential, so no locking is needed. Optimization
// components receive it read-only and never mutate node stock.
type Network struct {
	nodes map[string]*model.Node
	links map[string]*model.Link

	outgoing map[string][]*model.Link
	incoming map[string][]*model.Link

	demands   []*model.Demand
	demandIDs map[string]struct{}

	nodeOrder []string
	linkOrder []string
}

// NewNetwork creates an empty network.
func NewNetwork() *Network {
	return &Network{
		nodes:     make(map[string]*model.Node),
		links:     make(map[string]*model.Link),
		outgoing:  make(map[string][]*model.Link),
		incoming:  make(map[string][]*model.Link),
		demandIDs: make(map[string]struct{}),
	}
}

// AddNode inserts a node. It returns an error if the ID is taken.
func (n *Network) AddNode(node *model.Node) error {
	if node == nil || node.ID == "" {
		return fmt.Errorf("%w: nil or empty node", model.ErrInvalidNode)
	}
	if _, exists := n.nodes[node.ID]; exists {
		return fmt.Errorf("%w: %q", ErrNodeExists, node.ID)
	}
	n.nodes[node.ID] = node
	n.nodeOrder = insertSorted(n.nodeOrder, node.ID)
	return nil
}

// AddLink inserts a link and updates the route index. Both endpoints
// must already exist as nodes.
func (n *Network) AddLink(link *model.Link) error {
	if link == nil || link.ID == "" {
		return fmt.Errorf("%w: nil or empty link", model.ErrInvalidLink)
	}
	if _, exists := n.links[link.ID]; exists {
		return fmt.Errorf("%w: %q", ErrLinkExists, link.ID)
	}
	if _, ok := n.nodes[link.Source]; !ok {
		return fmt.Errorf("%w: %q source %q", ErrEndpointMiss, link.ID, link.Source)
	}
	if _, ok := n.nodes[link.Destination]; !ok {
		return fmt.Errorf("%w: %q destination %q", ErrEndpointMiss, link.ID, link.Destination)
	}
	n.links[link.ID] = link
	n.linkOrder = insertSorted(n.linkOrder, link.ID)
	n.outgoing[link.Source] = append(n.outgoing[link.Source], link)
	n.incoming[link.Destination] = append(n.incoming[link.Destination], link)
	return nil
}

// AddDemand appends a demand record. Demands are never removed, only
// exhausted.
func (n *Network) AddDemand(d *model.Demand) error {
	if d == nil || d.ID == "" {
		return fmt.Errorf("%w: nil or empty demand", model.ErrInvalidDemand)
	}
	if _, ok := n.nodes[d.CustomerID]; !ok {
		return fmt.Errorf("%w: demand %q customer %q", ErrNodeNotFound, d.ID, d.CustomerID)
	}
	if _, exists := n.demandIDs[d.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDemandExists, d.ID)
	}
	n.demandIDs[d.ID] = struct{}{}
	n.demands = append(n.demands, d)
	return nil
}

// Node returns a node by ID, or nil if missing.
func (n *Network) Node(id string) *model.Node { return n.nodes[id] }

// Link returns a link by ID, or nil if missing.
func (n *Network) Link(id string) *model.Link { return n.links[id] }

// Nodes returns all nodes in ascending ID order.
func (n *Network) Nodes() []*model.Node {
	out := make([]*model.Node, 0, len(n.nodeOrder))
	for _, id := range n.nodeOrder {
		out = append(out, n.nodes[id])
	}
	return out
}

// Links returns all links in ascending ID order.
func (n *Network) Links() []*model.Link {
	out := make([]*model.Link, 0, len(n.linkOrder))
	for _, id := range n.linkOrder {
		out = append(out, n.links[id])
	}
	return out
}

// Outgoing returns the links leaving nodeID.
func (n *Network) Outgoing(nodeID string) []*model.Link { return n.outgoing[nodeID] }

// Incoming returns the links arriving at nodeID.
func (n *Network) Incoming(nodeID string) []*model.Link { return n.incoming[nodeID] }

// Demands returns every demand ever ingested, exhausted ones included.
func (n *Network) Demands() []*model.Demand { return n.demands }

// ActiveDemands returns demands with a positive remaining amount.
func (n *Network) ActiveDemands() []*model.Demand {
	var out []*model.Demand
	for _, d := range n.demands {
		if d.Active() {
			out = append(out, d)
		}
	}
	return out
}

// DemandsFor returns active demands targeting the given customer whose
// window contains day, ordered by ascending deadline so the most
// urgent demand is credited first.
func (n *Network) DemandsFor(customerID string, day int) []*model.Demand {
	var out []*model.Demand
	for _, d := range n.demands {
		if d.CustomerID == customerID && d.Active() && d.InWindow(day) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EndDay != out[j].EndDay {
			return out[i].EndDay < out[j].EndDay
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Stocks snapshots current stock levels keyed by node ID.
func (n *Network) Stocks() map[string]float64 {
	out := make(map[string]float64, len(n.nodes))
	for id, node := range n.nodes {
		out[id] = node.Stock
	}
	return out
}

func insertSorted(ids []string, id string) []string {
	i := sort.SearchStrings(ids, id)
	ids = append(ids, "")
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}
