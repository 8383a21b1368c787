package model

import (
	"errors"
	"testing"
)

func TestNewDemand(t *testing.T) {
	d, err := NewDemand("d1", "c1", 300, 5, 8, 12)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Remaining != d.Quantity {
		t.Errorf("remaining should start at quantity: got %g, want %g", d.Remaining, d.Quantity)
	}
	if !d.Active() {
		t.Error("fresh demand should be active")
	}
	if d.InWindow(7) {
		t.Error("day 7 is before the window")
	}
	if !d.InWindow(8) || !d.InWindow(12) {
		t.Error("window bounds are inclusive")
	}
	if d.InWindow(13) {
		t.Error("day 13 is after the window")
	}
}

func TestNewDemandRejectsBadInput(t *testing.T) {
	cases := []struct {
		name             string
		id, customer     string
		quantity         float64
		post, start, end int
	}{
		{"empty id", "", "c1", 10, 0, 1, 2},
		{"empty customer", "d1", "", 10, 0, 1, 2},
		{"zero quantity", "d1", "c1", 0, 0, 1, 2},
		{"negative post day", "d1", "c1", 10, -1, 1, 2},
		{"window before post", "d1", "c1", 10, 5, 3, 8},
		{"inverted window", "d1", "c1", 10, 0, 5, 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewDemand(tc.id, tc.customer, tc.quantity, tc.post, tc.start, tc.end)
			if !errors.Is(err, ErrInvalidDemand) {
				t.Errorf("expected ErrInvalidDemand, got %v", err)
			}
		})
	}
}

func TestDemandCreditClampsAtZero(t *testing.T) {
	d, err := NewDemand("d1", "c1", 100, 0, 1, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := d.Credit(60); got != 60 {
		t.Errorf("expected 60 credited, got %g", got)
	}
	if d.Remaining != 40 {
		t.Errorf("expected 40 remaining, got %g", d.Remaining)
	}

	// Over-delivery is clamped, never negative.
	if got := d.Credit(70); got != 40 {
		t.Errorf("expected 40 credited, got %g", got)
	}
	if d.Remaining != 0 {
		t.Errorf("expected 0 remaining, got %g", d.Remaining)
	}
	if d.Active() {
		t.Error("exhausted demand should be inactive")
	}

	// Exhausted demands absorb nothing further.
	if got := d.Credit(10); got != 0 {
		t.Errorf("expected 0 credited on exhausted demand, got %g", got)
	}
}

func TestMovementArrivalDay(t *testing.T) {
	link, err := NewLink("l1", "a", "b", 50, 3, LinkPipeline, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mv, err := NewMovement(link, 25, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mv.ArrivalDay() != 10 {
		t.Errorf("expected arrival day 10, got %d", mv.ArrivalDay())
	}
	if mv.From != "a" || mv.To != "b" {
		t.Errorf("endpoints not denormalised: %s -> %s", mv.From, mv.To)
	}

	if _, err := NewMovement(link, 0, 7); !errors.Is(err, ErrInvalidMovement) {
		t.Errorf("expected ErrInvalidMovement for zero amount, got %v", err)
	}
	if _, err := NewMovement(nil, 10, 7); !errors.Is(err, ErrInvalidMovement) {
		t.Errorf("expected ErrInvalidMovement for nil link, got %v", err)
	}
}
