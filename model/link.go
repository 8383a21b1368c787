package model

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidLink = errors.New("invalid link")

// LinkType selects the per-unit transport cost and emission factors.
type LinkType string

const (
	LinkPipeline LinkType = "pipeline"
	LinkTruck    LinkType = "truck"
)

// TransportRates are per-unit-per-distance factors for a link type.
type TransportRates struct {
	CostPerUnit float64
	CO2PerUnit  float64
}

var transportRates = map[LinkType]TransportRates{
	LinkPipeline: {CostPerUnit: 0.5, CO2PerUnit: 0.2},
	LinkTruck:    {CostPerUnit: 1.0, CO2PerUnit: 0.5},
}

// defaultRates applies to unrecognised link types.
var defaultRates = TransportRates{CostPerUnit: 1.0, CO2PerUnit: 0.5}

// RatesFor maps a link type to its transport rates, falling back to
// the truck-equivalent default for unknown types.
func RatesFor(t LinkType) TransportRates {
	if r, ok := transportRates[t]; ok {
		return r
	}
	return defaultRates
}

// ParseLinkType normalises a raw connection-type string.
func ParseLinkType(raw string) LinkType {
	return LinkType(strings.ToLower(strings.TrimSpace(raw)))
}

// Link is a directed transport edge. Cost and CO2 factors are
// denormalised from the type table at construction time.
type Link struct {
	ID           string
	Source       string
	Destination  string
	Distance     float64
	LeadTimeDays int
	Type         LinkType
	Capacity     float64 // units per day
	CostPerUnit  float64
	CO2PerUnit   float64
}

// NewLink validates and builds a link, resolving the cost/emission
// factors from the link type.
func NewLink(id, source, destination string, distance float64, leadTimeDays int, typ LinkType, capacity float64) (*Link, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrInvalidLink)
	}
	if source == "" || destination == "" {
		return nil, fmt.Errorf("%w: %s: missing endpoint", ErrInvalidLink, id)
	}
	if distance <= 0 {
		return nil, fmt.Errorf("%w: %s: distance must be positive, got %g", ErrInvalidLink, id, distance)
	}
	if leadTimeDays <= 0 {
		return nil, fmt.Errorf("%w: %s: lead time must be positive, got %d", ErrInvalidLink, id, leadTimeDays)
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %s: capacity must be positive, got %g", ErrInvalidLink, id, capacity)
	}

	rates := RatesFor(typ)
	return &Link{
		ID:           id,
		Source:       source,
		Destination:  destination,
		Distance:     distance,
		LeadTimeDays: leadTimeDays,
		Type:         typ,
		Capacity:     capacity,
		CostPerUnit:  rates.CostPerUnit,
		CO2PerUnit:   rates.CO2PerUnit,
	}, nil
}
