package availability

import "context"

// Commitment is the part of an active reservation the ledger needs.
type Commitment struct {
	Time           string `db:"slot_time"`
	NumberOfPeople int    `db:"number_of_people"`
}

// Store is the read contract the ledger requires from the reservation
// store. Both methods return only active (non-cancelled) reservations.
type Store interface {
	FindActiveBySlot(ctx context.Context, date, slot string) ([]Commitment, error)
	FindActiveByDate(ctx context.Context, date string) ([]Commitment, error)
}

// Ledger derives committed seats from the store on every call. It keeps
// no state between calls.
type Ledger struct {
	store Store
}

// NewLedger returns a ledger reading from store.
func NewLedger(store Store) *Ledger { return &Ledger{store: store} }

// CommitmentsFor returns the seats held by active reservations at date and
// slot, or 0 when there are none.
func (l *Ledger) CommitmentsFor(ctx context.Context, date, slot string) (int, error) {
	rows, err := l.store.FindActiveBySlot(ctx, date, slot)
	if err != nil {
		return 0, Classify(err)
	}
	total := 0
	for _, r := range rows {
		total += r.NumberOfPeople
	}
	return total, nil
}

// CommitmentsByDate returns committed seats per slot for the whole date.
// Slots without reservations are absent from the map.
func (l *Ledger) CommitmentsByDate(ctx context.Context, date string) (map[string]int, error) {
	rows, err := l.store.FindActiveByDate(ctx, date)
	if err != nil {
		return nil, Classify(err)
	}
	out := make(map[string]int)
	for _, r := range rows {
		out[r.Time] += r.NumberOfPeople
	}
	return out, nil
}
