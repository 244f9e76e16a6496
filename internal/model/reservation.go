package model

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of a reservation date.
const DateLayout = "2006-01-02"

// TimeLayout is the format of a slot start time.
const TimeLayout = "15:04"

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusPending   Status = "pending"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusConfirmed, StatusPending, StatusCancelled}

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusConfirmed, StatusPending, StatusCancelled:
		return true
	}
	return false
}

// Active reports whether a reservation in this status holds seats.
func (s Status) Active() bool { return s != StatusCancelled }

// ParseStatus normalizes and validates a status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown reservation status %q", raw)
	}
	return s, nil
}

// Reservation is a booking of a table for a party at a date and slot.
// JSON names follow the browser UI's camelCase contract.
//
// Fields:
//
//	ID              – UUID, immutable.
//	CustomerName    – 2..100 characters.
//	NumberOfPeople  – party size, 1..20.
//	Date            – YYYY-MM-DD.
//	Time            – slot start, HH:MM, one of the catalog values.
//	Status          – confirmed, pending or cancelled.
//	CreatedAt       – set once on insert.
//	UpdatedAt       – bumped on every write.
type Reservation struct {
	ID              string    `json:"id" db:"id"`
	CustomerName    string    `json:"customerName" db:"customer_name"`
	NumberOfPeople  int       `json:"numberOfPeople" db:"number_of_people"`
	Date            string    `json:"date" db:"reservation_date"`
	Time            string    `json:"time" db:"slot_time"`
	Phone           string    `json:"phone,omitempty" db:"phone"`
	Email           string    `json:"email,omitempty" db:"email"`
	SpecialRequests string    `json:"specialRequests,omitempty" db:"special_requests"`
	Status          Status    `json:"status" db:"status"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`
}

// Active reports whether the reservation counts toward slot capacity.
func (r Reservation) Active() bool { return r.Status.Active() }

// AvailabilitySlot is the derived capacity report for one slot on one date.
// It is computed per query and never stored.
type AvailabilitySlot struct {
	Time                string `json:"time"`
	Available           bool   `json:"available"`
	MaxCapacity         int    `json:"maxCapacity"`
	CurrentReservations int    `json:"currentReservations"`
}

// Remaining returns the seats left before raw capacity is reached.
func (s AvailabilitySlot) Remaining() int {
	if s.CurrentReservations >= s.MaxCapacity {
		return 0
	}
	return s.MaxCapacity - s.CurrentReservations
}
