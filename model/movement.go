package model

import (
	"errors"
	"fmt"
)

var ErrInvalidMovement = errors.New("invalid movement")

// Movement is an accepted shipment decision for a single link and day.
// Source, destination and lead time are denormalised from the link so
// downstream bookkeeping never needs the link map. Movements are
// immutable once created.
type Movement struct {
	LinkID       string
	Amount       float64
	PostedDay    int
	From         string
	To           string
	LeadTimeDays int
}

// NewMovement validates and builds a movement from a link decision.
func NewMovement(link *Link, amount float64, postedDay int) (Movement, error) {
	if link == nil {
		return Movement{}, fmt.Errorf("%w: nil link", ErrInvalidMovement)
	}
	if amount <= 0 {
		return Movement{}, fmt.Errorf("%w: %s: amount must be positive, got %g", ErrInvalidMovement, link.ID, amount)
	}
	if postedDay < 0 {
		return Movement{}, fmt.Errorf("%w: %s: negative posted day %d", ErrInvalidMovement, link.ID, postedDay)
	}
	return Movement{
		LinkID:       link.ID,
		Amount:       amount,
		PostedDay:    postedDay,
		From:         link.Source,
		To:           link.Destination,
		LeadTimeDays: link.LeadTimeDays,
	}, nil
}

// ArrivalDay is the day the movement lands at its destination.
func (m Movement) ArrivalDay() int { return m.PostedDay + m.LeadTimeDays }
