package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/table-reservations/internal/availability"
	"github.com/iliyamo/table-reservations/internal/model"
	"github.com/iliyamo/table-reservations/internal/queue"
	"github.com/iliyamo/table-reservations/internal/repository"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

const futureDate = "2025-06-10"

// fakeStore keeps reservations in memory and applies the same capacity
// guard as the MySQL store.
type fakeStore struct {
	mu    sync.Mutex
	rows  map[string]model.Reservation
	err   error
	reads int

	// onCreate runs inside Create before the row is stored.
	onCreate func()
	// afterRead runs once after FindActiveByDate has collected its rows.
	afterRead func()
}

func newFakeStore() *fakeStore { return &fakeStore{rows: map[string]model.Reservation{}} }

func (f *fakeStore) seats(date, slot, exclude string) int {
	n := 0
	for _, r := range f.rows {
		if r.Date == date && r.Time == slot && r.Active() && r.ID != exclude {
			n += r.NumberOfPeople
		}
	}
	return n
}

func (f *fakeStore) Create(_ context.Context, res *model.Reservation, limit int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if limit > 0 && res.Active() && f.seats(res.Date, res.Time, "")+res.NumberOfPeople > limit {
		return repository.ErrSlotFull
	}
	if f.onCreate != nil {
		f.onCreate()
	}
	f.rows[res.ID] = *res
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (f *fakeStore) List(_ context.Context, flt repository.ListFilter) ([]model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := []model.Reservation{}
	for _, r := range f.rows {
		if flt.Date != "" && r.Date != flt.Date {
			continue
		}
		if flt.Status != "" && r.Status != flt.Status {
			continue
		}
		if flt.Status == "" && !flt.IncludeCancelled && !r.Active() {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

func (f *fakeStore) Update(_ context.Context, res *model.Reservation, limit int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	cur, ok := f.rows[res.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if limit > 0 && res.Active() && f.seats(res.Date, res.Time, res.ID)+res.NumberOfPeople > limit {
		return repository.ErrSlotFull
	}
	res.CreatedAt = cur.CreatedAt
	f.rows[res.ID] = *res
	return nil
}

func (f *fakeStore) SetStatus(_ context.Context, id string, status model.Status, limit int) (*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	cur, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if limit > 0 && !cur.Active() && status.Active() && f.seats(cur.Date, cur.Time, id)+cur.NumberOfPeople > limit {
		return nil, repository.ErrSlotFull
	}
	cur.Status = status
	f.rows[id] = cur
	return &cur, nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeStore) FindActiveBySlot(ctx context.Context, date, slot string) ([]availability.Commitment, error) {
	all, err := f.FindActiveByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	var out []availability.Commitment
	for _, c := range all {
		if c.Time == slot {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) FindActiveByDate(_ context.Context, date string) ([]availability.Commitment, error) {
	f.mu.Lock()
	f.reads++
	if f.err != nil {
		f.mu.Unlock()
		return nil, f.err
	}
	var out []availability.Commitment
	for _, r := range f.rows {
		if r.Date == date && r.Active() {
			out = append(out, availability.Commitment{Time: r.Time, NumberOfPeople: r.NumberOfPeople})
		}
	}
	hook := f.afterRead
	f.afterRead = nil
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return out, nil
}

// fakeCache is an in-memory report cache with per-date generations. It
// records invalidations and honours context cancellation the way a
// network client does.
type fakeCache struct {
	mu          sync.Mutex
	reports     map[string]cachedReport
	gens        map[string]int64
	invalidated []string
	err         error
	// failInvalidate makes the next n Invalidate calls fail.
	failInvalidate int
}

type cachedReport struct {
	gen   int64
	slots []model.AvailabilitySlot
}

func newFakeCache() *fakeCache {
	return &fakeCache{reports: map[string]cachedReport{}, gens: map[string]int64{}}
}

func cacheKey(date string, capacity int) string { return date + "/" + strconv.Itoa(capacity) }

func (c *fakeCache) put(date string, capacity int, slots []model.AvailabilitySlot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports[cacheKey(date, capacity)] = cachedReport{gen: c.gens[date], slots: slots}
}

func (c *fakeCache) has(date string, capacity int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.reports[cacheKey(date, capacity)]
	return ok
}

func (c *fakeCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.reports)
}

func (c *fakeCache) invalidations() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.invalidated...)
}

func (c *fakeCache) Get(ctx context.Context, date string, capacity int) ([]model.AvailabilitySlot, int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, 0, false, c.err
	}
	gen := c.gens[date]
	r, ok := c.reports[cacheKey(date, capacity)]
	if !ok || r.gen != gen {
		return nil, gen, false, nil
	}
	return r.slots, gen, true, nil
}

func (c *fakeCache) Set(ctx context.Context, date string, capacity int, gen int64, report []model.AvailabilitySlot) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	if c.gens[date] != gen {
		return false, nil
	}
	c.reports[cacheKey(date, capacity)] = cachedReport{gen: gen, slots: report}
	return true, nil
}

func (c *fakeCache) Invalidate(ctx context.Context, dates ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failInvalidate > 0 {
		c.failInvalidate--
		return errors.New("redis: connection refused")
	}
	if c.err != nil {
		return c.err
	}
	c.invalidated = append(c.invalidated, dates...)
	for _, d := range dates {
		c.gens[d]++
		for k := range c.reports {
			if strings.HasPrefix(k, d+"/") {
				delete(c.reports, k)
			}
		}
	}
	return nil
}

type fakePublisher struct {
	events []queue.ReservationEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, ev queue.ReservationEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) types() []queue.EventType {
	out := make([]queue.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	store        *fakeStore
	cache        *fakeCache
	pub          *fakePublisher
	evaluator    *availability.Evaluator
	reservations *ReservationService
	availability *AvailabilityService
}

func newFixture(t *testing.T, opts ...ReservationOption) *fixture {
	t.Helper()
	store := newFakeStore()
	eval, err := availability.NewEvaluator(availability.DefaultCatalog(), availability.NewLedger(store),
		availability.DefaultPolicy(), availability.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)

	f := &fixture{store: store, cache: newFakeCache(), pub: &fakePublisher{}, evaluator: eval}
	n := 0
	opts = append([]ReservationOption{
		WithServiceClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { n++; return "res-" + string(rune('0'+n)) }),
		WithInvalidationRetry(time.Second, 10*time.Millisecond),
	}, opts...)
	f.reservations = NewReservationService(store, eval, f.cache, f.pub, zerolog.Nop(), opts...)
	f.availability = NewAvailabilityService(eval, f.cache, zerolog.Nop())
	return f
}

func validInput() ReservationInput {
	return ReservationInput{
		CustomerName:   "  Ana Souza ",
		NumberOfPeople: 4,
		Date:           futureDate,
		Time:           "19:00",
		Email:          "ana@example.com",
	}
}
