package domain

import "testing"

func TestBookingStatus_StateMachine(t *testing.T) {
	all := []BookingStatus{BookingPending, BookingAccepted, BookingRejected, BookingCancelled}

	for _, next := range all {
		want := next != BookingPending
		if got := BookingPending.CanBecome(next); got != want {
			t.Fatalf("pending -> %s: got %v, want %v", next, got, want)
		}
	}
	for _, from := range all[1:] {
		if !from.Terminal() {
			t.Fatalf("%s must be terminal", from)
		}
		for _, next := range all {
			if from.CanBecome(next) {
				t.Fatalf("%s -> %s must be refused", from, next)
			}
		}
	}
	if BookingPending.Terminal() || BookingStatus("shipped").CanBecome(BookingAccepted) {
		t.Fatal("only pending moves, and only to a known status")
	}
}
