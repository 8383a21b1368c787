package model

import (
	"errors"
	"testing"
)

func TestNewLinkResolvesRates(t *testing.T) {
	pipe, err := NewLink("l1", "a", "b", 120, 2, LinkPipeline, 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pipe.CostPerUnit != 0.5 || pipe.CO2PerUnit != 0.2 {
		t.Errorf("expected pipeline rates 0.5/0.2, got %g/%g", pipe.CostPerUnit, pipe.CO2PerUnit)
	}

	truck, err := NewLink("l2", "a", "b", 80, 1, LinkTruck, 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if truck.CostPerUnit != 1.0 || truck.CO2PerUnit != 0.5 {
		t.Errorf("expected truck rates 1.0/0.5, got %g/%g", truck.CostPerUnit, truck.CO2PerUnit)
	}
}

func TestRatesForUnknownTypeFallsBack(t *testing.T) {
	r := RatesFor(LinkType("barge"))
	if r != defaultRates {
		t.Errorf("expected default rates for unknown type, got %+v", r)
	}
}

func TestParseLinkType(t *testing.T) {
	if got := ParseLinkType("  Pipeline "); got != LinkPipeline {
		t.Errorf("expected pipeline, got %q", got)
	}
	if got := ParseLinkType("TRUCK"); got != LinkTruck {
		t.Errorf("expected truck, got %q", got)
	}
}

func TestNewLinkRejectsBadInput(t *testing.T) {
	cases := []struct {
		name     string
		id       string
		src, dst string
		distance float64
		lead     int
		capacity float64
	}{
		{"empty id", "", "a", "b", 10, 1, 100},
		{"missing source", "l1", "", "b", 10, 1, 100},
		{"missing destination", "l1", "a", "", 10, 1, 100},
		{"zero distance", "l1", "a", "b", 0, 1, 100},
		{"zero lead time", "l1", "a", "b", 10, 0, 100},
		{"zero capacity", "l1", "a", "b", 10, 1, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewLink(tc.id, tc.src, tc.dst, tc.distance, tc.lead, LinkTruck, tc.capacity)
			if !errors.Is(err, ErrInvalidLink) {
				t.Errorf("expected ErrInvalidLink, got %v", err)
			}
		})
	}
}
