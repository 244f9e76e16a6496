package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/table-reservations/internal/service"
)

// AvailabilityService answers capacity queries.
type AvailabilityService interface {
	Check(ctx context.Context, date string, maxCapacity int) (service.Report, error)
	CheckSlot(ctx context.Context, date, slot string, maxCapacity int) (service.SlotReport, error)
	Slots() []string
}

// AvailabilityHandler serves the slot catalog and the availability report.
type AvailabilityHandler struct {
	svc     AvailabilityService
	timeout time.Duration
	log     zerolog.Logger
}

func NewAvailabilityHandler(svc AvailabilityService, timeout time.Duration, log zerolog.Logger) *AvailabilityHandler {
	if svc == nil {
		panic("nil service passed to NewAvailabilityHandler")
	}
	return &AvailabilityHandler{svc: svc, timeout: timeout, log: log}
}

// Slots handles GET /api/slots.
func (h *AvailabilityHandler) Slots(c echo.Context) error {
	slots := h.svc.Slots()
	return c.JSON(http.StatusOK, echo.Map{"items": slots, "count": len(slots)})
}

// Availability handles GET /api/availability?date=YYYY-MM-DD&maxCapacity=N.
// maxCapacity is optional and defaults to the configured capacity. With
// time=HH:MM only that slot is reported.
func (h *AvailabilityHandler) Availability(c echo.Context) error {
	date := strings.TrimSpace(c.QueryParam("date"))
	if date == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date is required"})
	}
	maxCapacity := 0
	if raw := strings.TrimSpace(c.QueryParam("maxCapacity")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "maxCapacity must be an integer"})
		}
		maxCapacity = n
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()
	if slot := strings.TrimSpace(c.QueryParam("time")); slot != "" {
		r, err := h.svc.CheckSlot(ctx, date, slot, maxCapacity)
		if err != nil {
			return respondError(c, h.log, err)
		}
		return c.JSON(http.StatusOK, r)
	}
	report, err := h.svc.Check(ctx, date, maxCapacity)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, report)
}
