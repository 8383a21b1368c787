package core

// Arrival is a quantity of fuel landing at a destination node.
type Arrival struct {
	NodeID string
	Amount float64
}

// TransitLedger tracks movements posted on earlier days that have not
// yet arrived, keyed by arrival day. Each day's entry is consumed
// exactly once, on the day whose arrivals it represents.
type TransitLedger struct {
	byDay map[int][]Arrival
}

// NewTransitLedger creates an empty ledger.
func NewTransitLedger() *TransitLedger {
	return &TransitLedger{byDay: make(map[int][]Arrival)}
}

// Schedule records an arrival for the given day.
func (l *TransitLedger) Schedule(arrivalDay int, nodeID string, amount float64) {
	if nodeID == "" || amount <= 0 {
		return
	}
	l.byDay[arrivalDay] = append(l.byDay[arrivalDay], Arrival{NodeID: nodeID, Amount: amount})
}

// PopDay removes and returns the arrivals due on day. A second call
// for the same day returns nil.
func (l *TransitLedger) PopDay(day int) []Arrival {
	arrivals, ok := l.byDay[day]
	if !ok {
		return nil
	}
	delete(l.byDay, day)
	return arrivals
}

// PendingDays reports how many arrival days still carry entries.
func (l *TransitLedger) PendingDays() int { return len(l.byDay) }

// ArrivalsOn returns the arrivals scheduled for day without consuming
// them. Useful for inspection and tests only.
func (l *TransitLedger) ArrivalsOn(day int) []Arrival {
	out := make([]Arrival, len(l.byDay[day]))
	copy(out, l.byDay[day])
	return out
}
