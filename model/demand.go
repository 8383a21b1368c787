package model

import (
	"errors"
	"fmt"
)

var ErrInvalidDemand = errors.New("invalid demand")

// Demand is an outstanding delivery request against a consumption
// node. Remaining is initialised to Quantity and only ever decreases;
// exhausted demands are kept, never deleted.
type Demand struct {
	ID         string
	CustomerID string
	Quantity   float64
	PostDay    int
	StartDay   int // first deliverable day, inclusive
	EndDay     int // last deliverable day, inclusive
	Remaining  float64
}

// NewDemand validates and builds a demand with Remaining = Quantity.
func NewDemand(id, customerID string, quantity float64, postDay, startDay, endDay int) (*Demand, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrInvalidDemand)
	}
	if customerID == "" {
		return nil, fmt.Errorf("%w: %s: empty customer id", ErrInvalidDemand, id)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: %s: quantity must be positive, got %g", ErrInvalidDemand, id, quantity)
	}
	if postDay < 0 {
		return nil, fmt.Errorf("%w: %s: negative post day %d", ErrInvalidDemand, id, postDay)
	}
	if startDay < postDay {
		return nil, fmt.Errorf("%w: %s: delivery window starts day %d before post day %d", ErrInvalidDemand, id, startDay, postDay)
	}
	if endDay < startDay {
		return nil, fmt.Errorf("%w: %s: delivery window [%d,%d] inverted", ErrInvalidDemand, id, startDay, endDay)
	}
	return &Demand{
		ID:         id,
		CustomerID: customerID,
		Quantity:   quantity,
		PostDay:    postDay,
		StartDay:   startDay,
		EndDay:     endDay,
		Remaining:  quantity,
	}, nil
}

// Active reports whether any amount is still outstanding.
func (d *Demand) Active() bool { return d.Remaining > 0 }

// InWindow reports whether day falls inside the delivery window.
func (d *Demand) InWindow(day int) bool {
	return day >= d.StartDay && day <= d.EndDay
}

// Credit applies a delivery against the demand, clamping at zero, and
// returns the amount actually credited. Over-delivery is discarded.
func (d *Demand) Credit(amount float64) float64 {
	if amount <= 0 || d.Remaining <= 0 {
		return 0
	}
	credited := amount
	if credited > d.Remaining {
		credited = d.Remaining
	}
	d.Remaining -= credited
	return credited
}
