package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iliyamo/table-reservations/internal/availability"
	"github.com/iliyamo/table-reservations/internal/model"
	"github.com/iliyamo/table-reservations/internal/queue"
	"github.com/iliyamo/table-reservations/internal/repository"
	"github.com/iliyamo/table-reservations/internal/validation"
)

const (
	publishTimeout    = 3 * time.Second
	invalidateTimeout = 2 * time.Second
	invalidateTries   = 3
)

// ReservationStore is the persistence contract of the write path.
type ReservationStore interface {
	Create(ctx context.Context, res *model.Reservation, seatLimit int) error
	GetByID(ctx context.Context, id string) (*model.Reservation, error)
	List(ctx context.Context, f repository.ListFilter) ([]model.Reservation, error)
	Update(ctx context.Context, res *model.Reservation, seatLimit int) error
	SetStatus(ctx context.Context, id string, status model.Status, seatLimit int) (*model.Reservation, error)
	Delete(ctx context.Context, id string) error
}

// Invalidator drops cached availability for dates.
type Invalidator interface {
	Invalidate(ctx context.Context, dates ...string) error
}

// ReservationInput is the editable part of a reservation as submitted by
// clients. Status is optional: empty means confirmed on create and
// unchanged on update.
type ReservationInput struct {
	CustomerName    string `json:"customerName" validate:"required,min=2,max=100"`
	NumberOfPeople  int    `json:"numberOfPeople" validate:"required,min=1,max=20"`
	Date            string `json:"date" validate:"required,isodate"`
	Time            string `json:"time" validate:"required,slottime"`
	Phone           string `json:"phone" validate:"omitempty,max=32"`
	Email           string `json:"email" validate:"omitempty,email,max=255"`
	SpecialRequests string `json:"specialRequests" validate:"omitempty,max=500"`
	Status          string `json:"status" validate:"omitempty,oneof=confirmed pending cancelled"`
}

func (in *ReservationInput) normalize() {
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.Date = strings.TrimSpace(in.Date)
	in.Time = strings.TrimSpace(in.Time)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.TrimSpace(in.Email)
	in.SpecialRequests = strings.TrimSpace(in.SpecialRequests)
	in.Status = strings.ToLower(strings.TrimSpace(in.Status))
}

// ListQuery filters List. Empty fields do not filter.
type ListQuery struct {
	Date             string
	Status           string
	IncludeCancelled bool
}

// ReservationOption configures a ReservationService.
type ReservationOption func(*ReservationService)

// WithCapacityGuard makes writes fail with repository.ErrSlotFull when a
// slot would exceed its raw capacity.
func WithCapacityGuard(enabled bool) ReservationOption {
	return func(s *ReservationService) { s.enforce = enabled }
}

// WithServiceClock replaces time.Now for timestamps.
func WithServiceClock(now func() time.Time) ReservationOption {
	return func(s *ReservationService) { s.now = now }
}

// WithInvalidationRetry sets how long a failed cache invalidation keeps
// being retried in the background and the pause between attempts. window
// should be at least the cache TTL, after which a missed entry has expired
// on its own.
func WithInvalidationRetry(window, interval time.Duration) ReservationOption {
	return func(s *ReservationService) {
		if window > 0 {
			s.retryWindow = window
		}
		if interval > 0 {
			s.retryInterval = interval
		}
	}
}

// WithIDGenerator replaces UUID generation.
func WithIDGenerator(gen func() string) ReservationOption {
	return func(s *ReservationService) { s.newID = gen }
}

// ReservationService validates and applies reservation writes. After
// each successful write it invalidates cached availability for the
// affected dates and publishes a lifecycle event.
type ReservationService struct {
	store     ReservationStore
	evaluator *availability.Evaluator
	cache     Invalidator
	publisher queue.Publisher
	validate  *validation.Validator
	log       zerolog.Logger

	enforce       bool
	now           func() time.Time
	newID         func() string
	retryWindow   time.Duration
	retryInterval time.Duration
}

// NewReservationService wires the write path. cache and publisher may be
// nil.
func NewReservationService(store ReservationStore, evaluator *availability.Evaluator, cache Invalidator,
	publisher queue.Publisher, log zerolog.Logger, opts ...ReservationOption) *ReservationService {
	if publisher == nil {
		publisher = queue.NopPublisher{}
	}
	s := &ReservationService{
		store:     store,
		evaluator: evaluator,
		cache:     cache,
		publisher: publisher,
		validate:  validation.New(),
		log:       log.With().Str("component", "reservations").Logger(),
		enforce:   true,
		now:       time.Now,
		newID:     uuid.NewString,

		retryWindow:   30 * time.Second,
		retryInterval: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates in and stores a new reservation.
func (s *ReservationService) Create(ctx context.Context, in ReservationInput) (*model.Reservation, error) {
	if err := s.check(ctx, &in); err != nil {
		return nil, err
	}
	if _, err := s.evaluator.CheckDate(in.Date); err != nil {
		return nil, err
	}
	status := model.StatusConfirmed
	if in.Status != "" {
		status = model.Status(in.Status)
	}
	now := s.now().UTC()
	res := &model.Reservation{
		ID:              s.newID(),
		CustomerName:    in.CustomerName,
		NumberOfPeople:  in.NumberOfPeople,
		Date:            in.Date,
		Time:            in.Time,
		Phone:           in.Phone,
		Email:           in.Email,
		SpecialRequests: in.SpecialRequests,
		Status:          status,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.Create(ctx, res, s.seatLimit()); err != nil {
		return nil, s.storeErr(err)
	}
	s.log.Info().Str("reservation_id", res.ID).Str("date", res.Date).Str("time", res.Time).
		Int("people", res.NumberOfPeople).Msg("reservation created")
	s.afterWrite(ctx, queue.EventCreated, *res, res.Date)
	return res, nil
}

// Get returns one reservation.
func (s *ReservationService) Get(ctx context.Context, id string) (*model.Reservation, error) {
	res, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, s.storeErr(err)
	}
	return res, nil
}

// List returns reservations matching q.
func (s *ReservationService) List(ctx context.Context, q ListQuery) ([]model.Reservation, error) {
	f := repository.ListFilter{IncludeCancelled: q.IncludeCancelled}
	if d := strings.TrimSpace(q.Date); d != "" {
		if _, err := time.Parse(model.DateLayout, d); err != nil {
			return nil, invalid("date", validation.ErrInvalidDate)
		}
		f.Date = d
	}
	if strings.TrimSpace(q.Status) != "" {
		st, err := model.ParseStatus(q.Status)
		if err != nil {
			return nil, invalid("status", err.Error())
		}
		f.Status = st
	}
	out, err := s.store.List(ctx, f)
	if err != nil {
		return nil, s.storeErr(err)
	}
	return out, nil
}

// Update replaces every editable field of reservation id. Moving a
// reservation to a past date is rejected; an existing past date may be
// kept.
func (s *ReservationService) Update(ctx context.Context, id string, in ReservationInput) (*model.Reservation, error) {
	if err := s.check(ctx, &in); err != nil {
		return nil, err
	}
	cur, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, s.storeErr(err)
	}
	if in.Date != cur.Date {
		if _, err := s.evaluator.CheckDate(in.Date); err != nil {
			return nil, err
		}
	}
	status := cur.Status
	if in.Status != "" {
		status = model.Status(in.Status)
	}
	res := &model.Reservation{
		ID:              cur.ID,
		CustomerName:    in.CustomerName,
		NumberOfPeople:  in.NumberOfPeople,
		Date:            in.Date,
		Time:            in.Time,
		Phone:           in.Phone,
		Email:           in.Email,
		SpecialRequests: in.SpecialRequests,
		Status:          status,
		CreatedAt:       cur.CreatedAt,
		UpdatedAt:       s.now().UTC(),
	}
	if err := s.store.Update(ctx, res, s.seatLimit()); err != nil {
		return nil, s.storeErr(err)
	}
	s.log.Info().Str("reservation_id", res.ID).Msg("reservation updated")
	s.afterWrite(ctx, queue.EventUpdated, *res, cur.Date, res.Date)
	return res, nil
}

// Cancel marks a reservation cancelled, releasing its seats.
func (s *ReservationService) Cancel(ctx context.Context, id string) (*model.Reservation, error) {
	return s.setStatus(ctx, id, model.StatusCancelled)
}

// SetStatus moves a reservation to any enumerated status.
func (s *ReservationService) SetStatus(ctx context.Context, id, raw string) (*model.Reservation, error) {
	status, err := model.ParseStatus(raw)
	if err != nil {
		return nil, invalid("status", err.Error())
	}
	return s.setStatus(ctx, id, status)
}

func (s *ReservationService) setStatus(ctx context.Context, id string, status model.Status) (*model.Reservation, error) {
	res, err := s.store.SetStatus(ctx, id, status, s.seatLimit())
	if err != nil {
		return nil, s.storeErr(err)
	}
	ev := queue.EventStatusChanged
	if status == model.StatusCancelled {
		ev = queue.EventCancelled
	}
	s.log.Info().Str("reservation_id", id).Str("status", string(status)).Msg("reservation status changed")
	s.afterWrite(ctx, ev, *res, res.Date)
	return res, nil
}

// Delete removes a reservation permanently.
func (s *ReservationService) Delete(ctx context.Context, id string) error {
	cur, err := s.store.GetByID(ctx, id)
	if err != nil {
		return s.storeErr(err)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return s.storeErr(err)
	}
	s.log.Info().Str("reservation_id", id).Msg("reservation deleted")
	s.afterWrite(ctx, queue.EventDeleted, *cur, cur.Date)
	return nil
}

// check normalizes in and runs field validation plus the rules that
// depend on configuration: the slot must be in the catalog and the party
// must fit in one slot.
func (s *ReservationService) check(ctx context.Context, in *ReservationInput) error {
	in.normalize()
	fields, err := s.validate.Struct(ctx, in)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		seen[f.Field] = true
	}
	if !seen["time"] && !s.evaluator.Catalog().Contains(in.Time) {
		fields = append(fields, validation.FieldError{Field: "time", Message: "Time is not a bookable slot"})
	}
	if limit := s.evaluator.Policy().MaxCapacityPerSlot; !seen["numberOfPeople"] && in.NumberOfPeople > limit {
		fields = append(fields, validation.FieldError{
			Field:   "numberOfPeople",
			Message: fmt.Sprintf("%s (%d)", validation.ErrFieldExceedsMaxVal, limit),
		})
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (s *ReservationService) seatLimit() int {
	if !s.enforce {
		return 0
	}
	return s.evaluator.Policy().MaxCapacityPerSlot
}

// storeErr keeps domain sentinels and classifies everything else as a
// store outage or timeout.
func (s *ReservationService) storeErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrSlotFull) {
		return err
	}
	s.log.Error().Err(err).Msg("reservation store failure")
	return availability.Classify(err)
}

// afterWrite drops cached availability for dates and publishes ev.
// Neither fails the request. Both run detached from ctx so a request that
// times out after the store committed still invalidates and publishes.
func (s *ReservationService) afterWrite(ctx context.Context, t queue.EventType, res model.Reservation, dates ...string) {
	s.invalidate(context.WithoutCancel(ctx), dates)

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, queue.NewReservationEvent(t, res, s.now())); err != nil {
		s.log.Warn().Err(err).Str("type", string(t)).Str("reservation_id", res.ID).Msg("event publish failed")
	}
}

// invalidate tries a few times inline. If the cache is still unreachable
// a background loop keeps trying for retryWindow, so a report cached
// before the write cannot outlive the outage.
func (s *ReservationService) invalidate(ctx context.Context, dates []string) {
	if s.cache == nil || len(dates) == 0 {
		return
	}
	var err error
	for try := 0; try < invalidateTries; try++ {
		if try > 0 {
			time.Sleep(time.Duration(try) * 50 * time.Millisecond)
		}
		if err = s.invalidateOnce(ctx, dates); err == nil {
			return
		}
	}
	s.log.Warn().Err(err).Strs("dates", dates).Msg("availability cache invalidation failed, retrying in background")
	go s.retryInvalidate(ctx, dates)
}

func (s *ReservationService) invalidateOnce(ctx context.Context, dates []string) error {
	ctx, cancel := context.WithTimeout(ctx, invalidateTimeout)
	defer cancel()
	return s.cache.Invalidate(ctx, dates...)
}

func (s *ReservationService) retryInvalidate(ctx context.Context, dates []string) {
	deadline := time.Now().Add(s.retryWindow)
	ticker := time.NewTicker(s.retryInterval)
	defer ticker.Stop()
	for range ticker.C {
		err := s.invalidateOnce(ctx, dates)
		if err == nil {
			s.log.Info().Strs("dates", dates).Msg("availability cache invalidated after retry")
			return
		}
		if time.Now().After(deadline) {
			s.log.Error().Err(err).Strs("dates", dates).Msg("availability cache invalidation abandoned")
			return
		}
	}
}
