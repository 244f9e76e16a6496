// Package queue defines the reservation lifecycle events exchanged over
// RabbitMQ, the publisher used by the reservation service and the audit
// consumer that records them.
package queue

import (
	"time"

	"github.com/iliyamo/table-reservations/internal/model"
)

// EventType names a reservation lifecycle transition.
type EventType string

const (
	EventCreated       EventType = "reservation.created"
	EventUpdated       EventType = "reservation.updated"
	EventCancelled     EventType = "reservation.cancelled"
	EventStatusChanged EventType = "reservation.status_changed"
	EventDeleted       EventType = "reservation.deleted"
)

// ReservationEvent is published after a reservation write commits. It
// carries enough for downstream consumers to log or notify without
// querying the database.
type ReservationEvent struct {
	Type           EventType    `json:"type"`
	ReservationID  string       `json:"reservationId"`
	CustomerName   string       `json:"customerName"`
	Date           string       `json:"date"`
	Time           string       `json:"time"`
	NumberOfPeople int          `json:"numberOfPeople"`
	Status         model.Status `json:"status"`
	OccurredAt     time.Time    `json:"occurredAt"`
}

// NewReservationEvent builds an event of type t describing r at time at.
func NewReservationEvent(t EventType, r model.Reservation, at time.Time) ReservationEvent {
	return ReservationEvent{
		Type:           t,
		ReservationID:  r.ID,
		CustomerName:   r.CustomerName,
		Date:           r.Date,
		Time:           r.Time,
		NumberOfPeople: r.NumberOfPeople,
		Status:         r.Status,
		OccurredAt:     at.UTC(),
	}
}
