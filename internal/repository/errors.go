// Package repository defines error types that are reused by the
// reservation store. These sentinel values allow higher layers such as
// the service and handlers to distinguish between failure scenarios
// without inspecting driver errors.
package repository

import "errors"

// ErrNotFound is returned when no reservation has the requested ID.
// Handlers should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("reservation not found")

// ErrSlotFull is returned when an insert or update would push a slot's
// committed seats past the seat limit. Handlers should translate this
// into an HTTP 409 response.
var ErrSlotFull = errors.New("slot is fully booked")
