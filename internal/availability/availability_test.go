package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/table-reservations/internal/model"
)

// memStore is an in-memory Store backed by full reservations so tests can
// cancel and re-query.
type memStore struct {
	reservations []model.Reservation
	err          error
	calls        int
}

func (m *memStore) active(date string, match func(model.Reservation) bool) ([]Commitment, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	var out []Commitment
	for _, r := range m.reservations {
		if r.Date == date && r.Active() && match(r) {
			out = append(out, Commitment{Time: r.Time, NumberOfPeople: r.NumberOfPeople})
		}
	}
	return out, nil
}

func (m *memStore) FindActiveBySlot(_ context.Context, date, slot string) ([]Commitment, error) {
	return m.active(date, func(r model.Reservation) bool { return r.Time == slot })
}

func (m *memStore) FindActiveByDate(_ context.Context, date string) ([]Commitment, error) {
	return m.active(date, func(model.Reservation) bool { return true })
}

func (m *memStore) add(date, slot string, people int, status model.Status) {
	m.reservations = append(m.reservations, model.Reservation{
		ID: date + slot, Date: date, Time: slot, NumberOfPeople: people, Status: status,
	})
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

const futureDate = "2025-06-10"

func newTestEvaluator(t *testing.T, store Store) *Evaluator {
	t.Helper()
	e, err := NewEvaluator(DefaultCatalog(), NewLedger(store), DefaultPolicy(),
		WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return e
}

func TestCatalog(t *testing.T) {
	t.Run("default catalog is ordered evening service", func(t *testing.T) {
		c := DefaultCatalog()
		slots := c.Slots()
		require.Len(t, slots, 12)
		assert.Equal(t, "17:00", slots[0])
		assert.Equal(t, "22:30", slots[len(slots)-1])
		assert.True(t, c.Contains("19:00"))
		assert.False(t, c.Contains("19:15"))
	})

	t.Run("slots returns a copy", func(t *testing.T) {
		c := DefaultCatalog()
		s := c.Slots()
		s[0] = "00:00"
		assert.Equal(t, "17:00", c.Slots()[0])
	})

	t.Run("rejects bad input", func(t *testing.T) {
		for name, in := range map[string][]string{
			"empty":     {},
			"malformed": {"7pm"},
			"unordered": {"19:00", "18:00"},
			"duplicate": {"19:00", "19:00"},
		} {
			_, err := NewCatalog(in)
			assert.Error(t, err, name)
		}
	})

	t.Run("generate slots", func(t *testing.T) {
		slots, err := GenerateSlots("17:00", "22:30", 30*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, DefaultSlots, slots)

		_, err = GenerateSlots("22:00", "17:00", 30*time.Minute)
		assert.Error(t, err)
		_, err = GenerateSlots("17:00", "18:00", time.Second)
		assert.Error(t, err)
	})
}

func TestLedger(t *testing.T) {
	store := &memStore{}
	store.add(futureDate, "19:00", 4, model.StatusConfirmed)
	store.add(futureDate, "19:00", 3, model.StatusPending)
	store.add(futureDate, "19:00", 10, model.StatusCancelled)
	store.add(futureDate, "20:00", 2, model.StatusConfirmed)
	store.add("2025-06-11", "19:00", 6, model.StatusConfirmed)
	l := NewLedger(store)
	ctx := context.Background()

	n, err := l.CommitmentsFor(ctx, futureDate, "19:00")
	require.NoError(t, err)
	assert.Equal(t, 7, n, "cancelled reservations must not count")

	n, err = l.CommitmentsFor(ctx, futureDate, "21:00")
	require.NoError(t, err)
	assert.Zero(t, n)

	byDate, err := l.CommitmentsByDate(ctx, futureDate)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"19:00": 7, "20:00": 2}, byDate)
}

func TestLedgerStoreFailure(t *testing.T) {
	t.Run("outage is surfaced as store unavailable", func(t *testing.T) {
		l := NewLedger(&memStore{err: errors.New("dial tcp: connection refused")})
		_, err := l.CommitmentsFor(context.Background(), futureDate, "19:00")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrStoreUnavailable)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("deadline is surfaced as timeout", func(t *testing.T) {
		l := NewLedger(&memStore{err: context.DeadlineExceeded})
		_, err := l.CommitmentsByDate(context.Background(), futureDate)
		assert.ErrorIs(t, err, ErrTimeout)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestEvaluateEmptyDate(t *testing.T) {
	e := newTestEvaluator(t, &memStore{})
	report, err := e.Evaluate(context.Background(), futureDate, 0)
	require.NoError(t, err)
	require.Len(t, report, 12)
	for i, s := range report {
		assert.Equal(t, DefaultSlots[i], s.Time)
		assert.Zero(t, s.CurrentReservations)
		assert.True(t, s.Available)
		assert.Equal(t, DefaultMaxCapacity, s.MaxCapacity)
	}
}

func TestEvaluateScenario(t *testing.T) {
	store := &memStore{}
	store.add(futureDate, "19:00", 45, model.StatusConfirmed)
	e := newTestEvaluator(t, store)
	ctx := context.Background()

	report, err := e.Evaluate(ctx, futureDate, 50)
	require.NoError(t, err)
	for _, s := range report {
		if s.Time == "19:00" {
			assert.False(t, s.Available)
			assert.Equal(t, 45, s.CurrentReservations)
			continue
		}
		assert.True(t, s.Available, s.Time)
		assert.Zero(t, s.CurrentReservations, s.Time)
	}

	store.reservations[0].Status = model.StatusCancelled
	report, err = e.Evaluate(ctx, futureDate, 50)
	require.NoError(t, err)
	for _, s := range report {
		if s.Time == "19:00" {
			assert.True(t, s.Available)
			assert.Zero(t, s.CurrentReservations)
		}
	}
}

func TestEvaluateBoundary(t *testing.T) {
	tests := []struct {
		name      string
		people    int
		capacity  int
		threshold float64
		want      bool
	}{
		{"one below limit", 44, 50, 0.9, true},
		{"exactly at limit", 45, 50, 0.9, false},
		{"above limit", 49, 50, 0.9, false},
		{"fractional limit below", 8, 9, 0.9, true},
		{"fractional limit at ceiling", 9, 9, 0.9, false},
		{"full threshold", 19, 20, 1.0, true},
		{"full threshold at capacity", 20, 20, 1.0, false},
		{"threshold 0.7 exact", 7, 10, 0.7, false},
		{"threshold 0.7 below", 6, 10, 0.7, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memStore{}
			store.add(futureDate, "18:00", tt.people, model.StatusConfirmed)
			e, err := NewEvaluator(DefaultCatalog(), NewLedger(store),
				Policy{MaxCapacityPerSlot: tt.capacity, Threshold: tt.threshold},
				WithClock(func() time.Time { return fixedNow }))
			require.NoError(t, err)

			s, err := e.EvaluateSlot(context.Background(), futureDate, "18:00", 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Available)
			assert.Equal(t, tt.people, s.CurrentReservations)
		})
	}
}

func TestEvaluateIdempotentAndMonotonic(t *testing.T) {
	store := &memStore{}
	store.add(futureDate, "19:00", 20, model.StatusConfirmed)
	store.add(futureDate, "20:00", 46, model.StatusConfirmed)
	e := newTestEvaluator(t, store)
	ctx := context.Background()

	first, err := e.Evaluate(ctx, futureDate, 50)
	require.NoError(t, err)
	second, err := e.Evaluate(ctx, futureDate, 50)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	store.add(futureDate, "19:00", 5, model.StatusPending)
	store.add(futureDate, "20:00", 1, model.StatusConfirmed)
	third, err := e.Evaluate(ctx, futureDate, 50)
	require.NoError(t, err)
	for i := range first {
		assert.GreaterOrEqual(t, third[i].CurrentReservations, first[i].CurrentReservations)
		if !first[i].Available {
			assert.False(t, third[i].Available, first[i].Time)
		}
	}
	assert.Equal(t, 25, third[4].CurrentReservations)
	assert.Equal(t, 47, third[6].CurrentReservations)
}

func TestEvaluateErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("past date is rejected", func(t *testing.T) {
		store := &memStore{}
		e := newTestEvaluator(t, store)
		_, err := e.Evaluate(ctx, "2025-05-31", 0)
		assert.ErrorIs(t, err, ErrInvalidDate)
		assert.Zero(t, store.calls, "past dates must not reach the store")
	})

	t.Run("today is accepted", func(t *testing.T) {
		e := newTestEvaluator(t, &memStore{})
		_, err := e.Evaluate(ctx, "2025-06-01", 0)
		assert.NoError(t, err)
	})

	t.Run("today follows the restaurant time zone", func(t *testing.T) {
		loc := time.FixedZone("UTC-5", -5*3600)
		e, err := NewEvaluator(DefaultCatalog(), NewLedger(&memStore{}), DefaultPolicy(),
			WithClock(func() time.Time { return time.Date(2025, 6, 2, 2, 0, 0, 0, time.UTC) }),
			WithLocation(loc))
		require.NoError(t, err)
		_, err = e.Evaluate(ctx, "2025-06-01", 0)
		assert.NoError(t, err)
	})

	t.Run("malformed date", func(t *testing.T) {
		e := newTestEvaluator(t, &memStore{})
		_, err := e.Evaluate(ctx, "10/06/2025", 0)
		assert.ErrorIs(t, err, ErrInvalidDate)
	})

	t.Run("negative capacity", func(t *testing.T) {
		e := newTestEvaluator(t, &memStore{})
		_, err := e.Evaluate(ctx, futureDate, -1)
		assert.ErrorIs(t, err, ErrInvalidCapacity)
	})

	t.Run("store outage never yields a report", func(t *testing.T) {
		e := newTestEvaluator(t, &memStore{err: errors.New("broken pipe")})
		report, err := e.Evaluate(ctx, futureDate, 0)
		assert.ErrorIs(t, err, ErrStoreUnavailable)
		assert.Nil(t, report)
	})

	t.Run("unknown slot", func(t *testing.T) {
		e := newTestEvaluator(t, &memStore{})
		_, err := e.EvaluateSlot(ctx, futureDate, "03:00", 0)
		assert.ErrorIs(t, err, ErrUnknownSlot)
	})

	t.Run("capacity above the limit", func(t *testing.T) {
		store := &memStore{}
		e := newTestEvaluator(t, store)
		_, err := e.Evaluate(ctx, futureDate, 1_000_000_000_000_000)
		assert.ErrorIs(t, err, ErrInvalidCapacity)
		_, err = e.EvaluateSlot(ctx, futureDate, "19:00", MaxCapacityLimit+1)
		assert.ErrorIs(t, err, ErrInvalidCapacity)
		assert.Zero(t, store.calls)

		_, err = e.Evaluate(ctx, futureDate, MaxCapacityLimit)
		assert.NoError(t, err)
	})
}

func TestPolicyValidate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())
	assert.Error(t, Policy{MaxCapacityPerSlot: 0, Threshold: 0.9}.Validate())
	assert.Error(t, Policy{MaxCapacityPerSlot: 50, Threshold: 0}.Validate())
	assert.Error(t, Policy{MaxCapacityPerSlot: 50, Threshold: 1.5}.Validate())
	assert.Error(t, Policy{MaxCapacityPerSlot: MaxCapacityLimit + 1, Threshold: 0.9}.Validate())

	_, err := NewEvaluator(nil, nil, DefaultPolicy())
	assert.Error(t, err)
}

func TestCatalogNormalizesHours(t *testing.T) {
	c, err := NewCatalog([]string{" 9:30", "10:00"})
	require.NoError(t, err)
	assert.Equal(t, []string{"09:30", "10:00"}, c.Slots())
	assert.True(t, c.Contains("09:30"))
}
