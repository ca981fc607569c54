package domain

import "time"

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingAccepted  BookingStatus = "accepted"
	BookingRejected  BookingStatus = "rejected"
	BookingCancelled BookingStatus = "cancelled"
)

func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch st := BookingStatus(s); st {
	case BookingPending, BookingAccepted, BookingRejected, BookingCancelled:
		return st, true
	}
	return "", false
}

// Active reports whether the booking still holds (or may come to hold) a unit.
func (s BookingStatus) Active() bool {
	return s == BookingPending || s == BookingAccepted
}

func (s BookingStatus) Terminal() bool {
	return s == BookingAccepted || s == BookingRejected || s == BookingCancelled
}

// CanBecome reports whether the booking state machine allows s -> next.
// Only pending bookings move; every other status is terminal.
func (s BookingStatus) CanBecome(next BookingStatus) bool {
	return s == BookingPending && next.Terminal()
}

// Decision is an admin verdict on a pending booking.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

func ParseDecision(s string) (Decision, bool) {
	switch d := Decision(s); d {
	case DecisionAccept, DecisionReject:
		return d, true
	}
	return "", false
}

// Status is the booking status a decision leads to.
func (d Decision) Status() BookingStatus {
	if d == DecisionAccept {
		return BookingAccepted
	}
	return BookingRejected
}

// Booking is a reservation request by a customer against a car's stock.
// Brand and Model are copied from the car when the booking is created.
type Booking struct {
	ID          string        `json:"id"`
	CarID       string        `json:"car_id"`
	UserID      string        `json:"user_id"`
	UserName    string        `json:"user_name"`
	UserEmail   string        `json:"user_email"`
	Brand       string        `json:"brand"`
	Model       string        `json:"model"`
	Status      BookingStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	DecidedAt   *time.Time    `json:"decided_at,omitempty"`
	CancelledAt *time.Time    `json:"cancelled_at,omitempty"`
}

// BookingStats backs the admin dashboard counters.
type BookingStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Accepted  int `json:"accepted"`
	Rejected  int `json:"rejected"`
	Cancelled int `json:"cancelled"`
}

// Add counts n bookings in status s.
func (st *BookingStats) Add(s BookingStatus, n int) {
	st.Total += n
	switch s {
	case BookingPending:
		st.Pending += n
	case BookingAccepted:
		st.Accepted += n
	case BookingRejected:
		st.Rejected += n
	case BookingCancelled:
		st.Cancelled += n
	}
}
