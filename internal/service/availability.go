package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/iliyamo/table-reservations/internal/availability"
	"github.com/iliyamo/table-reservations/internal/model"
)

// ReportCache stores availability reports by date and capacity. Get
// returns the date's current generation alongside the lookup; Set only
// stores a report when the generation is still the one passed in, so a
// write that invalidated the date in between wins.
type ReportCache interface {
	Get(ctx context.Context, date string, capacity int) (report []model.AvailabilitySlot, gen int64, ok bool, err error)
	Set(ctx context.Context, date string, capacity int, gen int64, report []model.AvailabilitySlot) (bool, error)
}

// Report is the availability answer for one date.
type Report struct {
	Date  string                   `json:"date"`
	Slots []model.AvailabilitySlot `json:"slots"`
}

// SlotReport is the availability answer for one slot of a date.
type SlotReport struct {
	Date string                 `json:"date"`
	Slot model.AvailabilitySlot `json:"slot"`
}

// AvailabilityService answers capacity queries, serving from the report
// cache when it holds a fresh entry.
type AvailabilityService struct {
	evaluator *availability.Evaluator
	cache     ReportCache
	log       zerolog.Logger
}

// NewAvailabilityService returns a service over evaluator. cache may be nil.
func NewAvailabilityService(evaluator *availability.Evaluator, cache ReportCache, log zerolog.Logger) *AvailabilityService {
	return &AvailabilityService{
		evaluator: evaluator,
		cache:     cache,
		log:       log.With().Str("component", "availability").Logger(),
	}
}

// Slots returns the bookable start times.
func (s *AvailabilityService) Slots() []string { return s.evaluator.Catalog().Slots() }

// Check returns the per-slot report for date. maxCapacity 0 selects the
// configured capacity. The date is validated before the cache is read,
// so a past date is rejected even when a report is still cached.
func (s *AvailabilityService) Check(ctx context.Context, date string, maxCapacity int) (Report, error) {
	day, err := s.evaluator.CheckDate(date)
	if err != nil {
		return Report{}, err
	}
	capacity, err := s.evaluator.ResolveCapacity(maxCapacity)
	if err != nil {
		return Report{}, err
	}

	cacheable := false
	var gen int64
	if s.cache != nil {
		report, g, ok, err := s.cache.Get(ctx, day, capacity)
		switch {
		case err != nil:
			// Without a generation the fresh report cannot be stored safely.
			s.log.Warn().Err(err).Str("date", day).Msg("availability cache read failed")
		case ok:
			return Report{Date: day, Slots: report}, nil
		default:
			cacheable, gen = true, g
		}
	}

	report, err := s.evaluator.Evaluate(ctx, day, capacity)
	if err != nil {
		return Report{}, err
	}
	if cacheable {
		stored, err := s.cache.Set(ctx, day, capacity, gen, report)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Str("date", day).Msg("availability cache write failed")
		case !stored:
			s.log.Debug().Str("date", day).Int64("generation", gen).Msg("date changed while evaluating, report not cached")
		}
	}
	return Report{Date: day, Slots: report}, nil
}

// CheckSlot reports a single slot of date, read straight from the store.
func (s *AvailabilityService) CheckSlot(ctx context.Context, date, slot string, maxCapacity int) (SlotReport, error) {
	day, err := s.evaluator.CheckDate(date)
	if err != nil {
		return SlotReport{}, err
	}
	r, err := s.evaluator.EvaluateSlot(ctx, day, strings.TrimSpace(slot), maxCapacity)
	if err != nil {
		return SlotReport{}, err
	}
	return SlotReport{Date: day, Slot: r}, nil
}
