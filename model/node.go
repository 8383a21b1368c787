package model

import (
	"errors"
	"fmt"
)

var ErrInvalidNode = errors.New("invalid node")

// NodeKind tags the three node variants of the fuel network.
type NodeKind int

const (
	NodeUnknown     NodeKind = iota
	NodeProduction           // refinery: produces fuel at a fixed daily rate
	NodeStorage              // tank: buffers fuel between producers and customers
	NodeConsumption          // customer: sinks fuel, never warehouses it
)

func (k NodeKind) String() string {
	switch k {
	case NodeProduction:
		return "production"
	case NodeStorage:
		return "storage"
	case NodeConsumption:
		return "consumption"
	default:
		return "unknown"
	}
}

// ProductionSpec holds the fields specific to production nodes.
// DailyOutput <= 0 means shipping out of the node is not rate-limited.
type ProductionSpec struct {
	Capacity    float64
	DailyRate   float64 // units produced per day
	DailyOutput float64 // max units shipped out per day
}

// StorageSpec holds the fields specific to storage nodes.
// DailyInput/DailyOutput <= 0 mean the corresponding direction is not
// rate-limited.
type StorageSpec struct {
	Capacity    float64
	DailyInput  float64
	DailyOutput float64
}

// ConsumptionSpec holds the fields specific to consumption nodes.
type ConsumptionSpec struct {
	DailyInput float64
}

// Node is a tagged variant: exactly one of the spec pointers is set,
// matching Kind. Stock is the only mutable field and is owned by the
// simulation driver for the lifetime of a run.
type Node struct {
	ID    string
	Name  string
	Kind  NodeKind
	Stock float64

	Production  *ProductionSpec
	Storage     *StorageSpec
	Consumption *ConsumptionSpec
}

// NewProductionNode validates and builds a refinery node.
func NewProductionNode(id, name string, capacity, dailyRate, dailyOutput, stock float64) (*Node, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrInvalidNode)
	}
	if capacity < 0 {
		return nil, fmt.Errorf("%w: %s: negative capacity %g", ErrInvalidNode, id, capacity)
	}
	if dailyRate < 0 {
		return nil, fmt.Errorf("%w: %s: negative daily rate %g", ErrInvalidNode, id, dailyRate)
	}
	if stock < 0 {
		return nil, fmt.Errorf("%w: %s: negative stock %g", ErrInvalidNode, id, stock)
	}
	if stock > capacity {
		return nil, fmt.Errorf("%w: %s: stock %g exceeds capacity %g", ErrInvalidNode, id, stock, capacity)
	}
	return &Node{
		ID:    id,
		Name:  name,
		Kind:  NodeProduction,
		Stock: stock,
		Production: &ProductionSpec{
			Capacity:    capacity,
			DailyRate:   dailyRate,
			DailyOutput: dailyOutput,
		},
	}, nil
}

// NewStorageNode validates and builds a tank node.
func NewStorageNode(id, name string, capacity, dailyInput, dailyOutput, stock float64) (*Node, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrInvalidNode)
	}
	if capacity < 0 {
		return nil, fmt.Errorf("%w: %s: negative capacity %g", ErrInvalidNode, id, capacity)
	}
	if stock < 0 {
		return nil, fmt.Errorf("%w: %s: negative stock %g", ErrInvalidNode, id, stock)
	}
	if stock > capacity {
		return nil, fmt.Errorf("%w: %s: stock %g exceeds capacity %g", ErrInvalidNode, id, stock, capacity)
	}
	return &Node{
		ID:    id,
		Name:  name,
		Kind:  NodeStorage,
		Stock: stock,
		Storage: &StorageSpec{
			Capacity:    capacity,
			DailyInput:  dailyInput,
			DailyOutput: dailyOutput,
		},
	}, nil
}

// NewConsumptionNode validates and builds a customer node. Customers
// hold no stock: deliveries are credited against demand on arrival.
func NewConsumptionNode(id, name string, dailyInput float64) (*Node, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrInvalidNode)
	}
	if dailyInput < 0 {
		return nil, fmt.Errorf("%w: %s: negative daily input %g", ErrInvalidNode, id, dailyInput)
	}
	return &Node{
		ID:          id,
		Name:        name,
		Kind:        NodeConsumption,
		Consumption: &ConsumptionSpec{DailyInput: dailyInput},
	}, nil
}

// HasStorage reports whether the node warehouses stock at all.
func (n *Node) HasStorage() bool {
	return n.Kind == NodeProduction || n.Kind == NodeStorage
}

// Capacity returns the storage capacity and whether the node has one.
func (n *Node) Capacity() (float64, bool) {
	switch n.Kind {
	case NodeProduction:
		return n.Production.Capacity, true
	case NodeStorage:
		return n.Storage.Capacity, true
	default:
		return 0, false
	}
}

// DailyOutput returns the outbound rate cap; <= 0 means uncapped.
func (n *Node) DailyOutput() float64 {
	switch n.Kind {
	case NodeProduction:
		return n.Production.DailyOutput
	case NodeStorage:
		return n.Storage.DailyOutput
	default:
		return 0
	}
}

// DailyInput returns the inbound rate cap; <= 0 means uncapped for
// storage nodes. Production nodes never receive fuel.
func (n *Node) DailyInput() float64 {
	switch n.Kind {
	case NodeStorage:
		return n.Storage.DailyInput
	case NodeConsumption:
		return n.Consumption.DailyInput
	default:
		return 0
	}
}

// Headroom returns remaining storage capacity. Nodes without storage
// have zero headroom.
func (n *Node) Headroom() float64 {
	cap, ok := n.Capacity()
	if !ok {
		return 0
	}
	if h := cap - n.Stock; h > 0 {
		return h
	}
	return 0
}
