package bookings

import (
	"errors"
	"time"
)

// Booking status values. Operator actions drive every transition after
// creation; the conversation engine only ever creates pending bookings and
// edits their details.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// ErrNotFound is returned when a booking id does not resolve.
var ErrNotFound = errors.New("bookings: booking not found")

// ErrInvalidTransition is returned for status changes outside
// pending→{confirmed,cancelled} and confirmed→completed.
var ErrInvalidTransition = errors.New("bookings: invalid status transition")

// Booking is a customer appointment created through the WhatsApp flow.
type Booking struct {
	ID            string    `json:"id"`
	OrgID         string    `json:"org_id"`
	CustomerName  string    `json:"customer_name"`
	CustomerPhone string    `json:"customer_phone"`
	ServiceID     string    `json:"service_id"`
	ServiceName   string    `json:"service_name"`
	DateBooked    string    `json:"date_booked"`
	TimeSlot      string    `json:"time_slot"`
	Price         string    `json:"price"`
	Status        string    `json:"status"`
	Notes         string    `json:"notes"`
	CreatedAt     time.Time `json:"created_at"`
}

// CanTransition reports whether a booking may move from one status to another.
func CanTransition(from, to string) bool {
	switch from {
	case StatusPending:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusCompleted
	default:
		return false
	}
}
