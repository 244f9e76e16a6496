package availability

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/iliyamo/table-reservations/internal/model"
)

const (
	// DefaultMaxCapacity is the seats per slot when none is configured.
	DefaultMaxCapacity = 50

	// DefaultThreshold is the fraction of capacity at which a slot is
	// reported full. The margin is kept for walk-ins.
	DefaultThreshold = 0.9

	// MaxCapacityLimit bounds any capacity, configured or requested.
	MaxCapacityLimit = 100000

	basisPoints = 10000
)

// Policy holds the capacity rules applied by the evaluator.
type Policy struct {
	MaxCapacityPerSlot int
	// Threshold is a fraction in (0, 1].
	Threshold float64
}

// DefaultPolicy returns capacity 50 and threshold 0.9.
func DefaultPolicy() Policy {
	return Policy{MaxCapacityPerSlot: DefaultMaxCapacity, Threshold: DefaultThreshold}
}

// Validate checks the policy bounds.
func (p Policy) Validate() error {
	if p.MaxCapacityPerSlot < 1 || p.MaxCapacityPerSlot > MaxCapacityLimit {
		return fmt.Errorf("max capacity per slot must be in [1, %d], got %d", MaxCapacityLimit, p.MaxCapacityPerSlot)
	}
	if p.Threshold <= 0 || p.Threshold > 1 {
		return fmt.Errorf("capacity threshold must be in (0, 1], got %v", p.Threshold)
	}
	return nil
}

// thresholdBP is the threshold in basis points so the comparison stays in
// integers: 0.9 becomes 9000.
func (p Policy) thresholdBP() int {
	return int(math.Round(p.Threshold * basisPoints))
}

// IsAvailable reports whether a slot holding current seats out of
// maxCapacity is still bookable: current < maxCapacity * threshold.
func (p Policy) IsAvailable(current, maxCapacity int) bool {
	return current*basisPoints < maxCapacity*p.thresholdBP()
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithClock replaces time.Now, used to decide whether a date is past.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// WithLocation sets the restaurant's time zone. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(e *Evaluator) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// Evaluator produces per-slot capacity reports.
type Evaluator struct {
	catalog *Catalog
	ledger  *Ledger
	policy  Policy
	now     func() time.Time
	loc     *time.Location
}

// NewEvaluator wires catalog, ledger and policy together.
func NewEvaluator(catalog *Catalog, ledger *Ledger, policy Policy, opts ...Option) (*Evaluator, error) {
	if catalog == nil || ledger == nil {
		return nil, fmt.Errorf("evaluator requires a catalog and a ledger")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	e := &Evaluator{
		catalog: catalog,
		ledger:  ledger,
		policy:  policy,
		now:     time.Now,
		loc:     time.UTC,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Catalog returns the slot catalog in use.
func (e *Evaluator) Catalog() *Catalog { return e.catalog }

// Policy returns the capacity policy in use.
func (e *Evaluator) Policy() Policy { return e.policy }

// CheckDate parses date and rejects it when it is malformed or earlier
// than today in the restaurant's time zone. It returns the normalized
// YYYY-MM-DD form.
func (e *Evaluator) CheckDate(date string) (string, error) {
	date = strings.TrimSpace(date)
	d, err := time.ParseInLocation(model.DateLayout, date, e.loc)
	if err != nil {
		return "", fmt.Errorf("%w: %q is not YYYY-MM-DD", ErrInvalidDate, date)
	}
	now := e.now().In(e.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, e.loc)
	if d.Before(today) {
		return "", fmt.Errorf("%w: %s is in the past", ErrInvalidDate, date)
	}
	return d.Format(model.DateLayout), nil
}

// ResolveCapacity maps a requested capacity to the effective one: 0 means
// the configured default. Negatives and values above MaxCapacityLimit are
// rejected.
func (e *Evaluator) ResolveCapacity(maxCapacity int) (int, error) {
	switch {
	case maxCapacity < 0:
		return 0, fmt.Errorf("%w: %d", ErrInvalidCapacity, maxCapacity)
	case maxCapacity > MaxCapacityLimit:
		return 0, fmt.Errorf("%w: %d exceeds %d", ErrInvalidCapacity, maxCapacity, MaxCapacityLimit)
	case maxCapacity == 0:
		return e.policy.MaxCapacityPerSlot, nil
	}
	return maxCapacity, nil
}

// Evaluate returns one AvailabilitySlot per catalog entry, in catalog
// order, for date. Store failures are returned, never reported as free
// capacity.
func (e *Evaluator) Evaluate(ctx context.Context, date string, maxCapacity int) ([]model.AvailabilitySlot, error) {
	day, err := e.CheckDate(date)
	if err != nil {
		return nil, err
	}
	capacity, err := e.ResolveCapacity(maxCapacity)
	if err != nil {
		return nil, err
	}
	committed, err := e.ledger.CommitmentsByDate(ctx, day)
	if err != nil {
		return nil, err
	}
	report := make([]model.AvailabilitySlot, 0, e.catalog.Len())
	for _, slot := range e.catalog.slots {
		current := committed[slot]
		report = append(report, model.AvailabilitySlot{
			Time:                slot,
			Available:           e.policy.IsAvailable(current, capacity),
			MaxCapacity:         capacity,
			CurrentReservations: current,
		})
	}
	return report, nil
}

// EvaluateSlot reports a single slot. It returns ErrInvalidDate for past
// dates and ErrUnknownSlot for times outside the catalog.
func (e *Evaluator) EvaluateSlot(ctx context.Context, date, slot string, maxCapacity int) (model.AvailabilitySlot, error) {
	day, err := e.CheckDate(date)
	if err != nil {
		return model.AvailabilitySlot{}, err
	}
	if !e.catalog.Contains(slot) {
		return model.AvailabilitySlot{}, fmt.Errorf("%w: %q is not bookable", ErrUnknownSlot, slot)
	}
	capacity, err := e.ResolveCapacity(maxCapacity)
	if err != nil {
		return model.AvailabilitySlot{}, err
	}
	current, err := e.ledger.CommitmentsFor(ctx, day, slot)
	if err != nil {
		return model.AvailabilitySlot{}, err
	}
	return model.AvailabilitySlot{
		Time:                slot,
		Available:           e.policy.IsAvailable(current, capacity),
		MaxCapacity:         capacity,
		CurrentReservations: current,
	}, nil
}
