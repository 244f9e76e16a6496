package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/table-reservations/internal/model"
	"github.com/iliyamo/table-reservations/internal/service"
)

// ReservationService is the write and lookup API the handlers call.
type ReservationService interface {
	Create(ctx context.Context, in service.ReservationInput) (*model.Reservation, error)
	Get(ctx context.Context, id string) (*model.Reservation, error)
	List(ctx context.Context, q service.ListQuery) ([]model.Reservation, error)
	Update(ctx context.Context, id string, in service.ReservationInput) (*model.Reservation, error)
	Cancel(ctx context.Context, id string) (*model.Reservation, error)
	SetStatus(ctx context.Context, id, status string) (*model.Reservation, error)
	Delete(ctx context.Context, id string) error
}

// ReservationHandler serves /api/reservations. Every call is bounded by
// the configured request timeout.
type ReservationHandler struct {
	svc     ReservationService
	timeout time.Duration
	log     zerolog.Logger
}

// NewReservationHandler panics if svc is nil.
func NewReservationHandler(svc ReservationService, timeout time.Duration, log zerolog.Logger) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{svc: svc, timeout: timeout, log: log}
}

func (h *ReservationHandler) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), h.timeout)
}

// List handles GET /api/reservations?date=&status=&includeCancelled=.
func (h *ReservationHandler) List(c echo.Context) error {
	q := service.ListQuery{
		Date:   strings.TrimSpace(c.QueryParam("date")),
		Status: strings.TrimSpace(c.QueryParam("status")),
	}
	if raw := c.QueryParam("includeCancelled"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "includeCancelled must be true or false"})
		}
		q.IncludeCancelled = v
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	items, err := h.svc.List(ctx, q)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

// Get handles GET /api/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	res, err := h.svc.Get(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": res})
}

// Create handles POST /api/reservations and returns 201 with the stored
// reservation.
func (h *ReservationHandler) Create(c echo.Context) error {
	var in service.ReservationInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	res, err := h.svc.Create(ctx, in)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": res})
}

// Update handles PUT /api/reservations/:id.
func (h *ReservationHandler) Update(c echo.Context) error {
	var in service.ReservationInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	res, err := h.svc.Update(ctx, c.Param("id"), in)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": res})
}

// Cancel handles PATCH /api/reservations/:id/cancel.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	res, err := h.svc.Cancel(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": res})
}

// SetStatus handles PATCH /api/reservations/:id/status with body
// {"status": "confirmed|pending|cancelled"}.
func (h *ReservationHandler) SetStatus(c echo.Context) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	res, err := h.svc.SetStatus(ctx, c.Param("id"), body.Status)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": res})
}

// Delete handles DELETE /api/reservations/:id.
func (h *ReservationHandler) Delete(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.svc.Delete(ctx, c.Param("id")); err != nil {
		return respondError(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
