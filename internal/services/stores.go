package services

import (
	"context"
	"time"

	"carmarket/internal/domain"
)

// Store contracts. Both the SQLite repos and the DynamoDB repos satisfy them;
// every "conditional" method must be a single atomic store write.

type CarStore interface {
	CreateCar(ctx context.Context, car domain.Car) error
	GetCar(ctx context.Context, id string) (domain.Car, error)
	ListCars(ctx context.Context) ([]domain.Car, error)
	// UpdateCar replaces the descriptive fields and the image list. Stock is
	// left alone.
	UpdateCar(ctx context.Context, car domain.Car) error
	DeleteCar(ctx context.Context, id string) error
	// AdjustStock adds delta to the stock counter unless the result would be
	// negative, in which case it fails with domain.ErrOutOfStock.
	AdjustStock(ctx context.Context, id string, delta int, at time.Time) (int, error)
	SetStock(ctx context.Context, id string, n int, at time.Time) error
	SetImages(ctx context.Context, id string, images []string, at time.Time) error
	InventoryTotals(ctx context.Context) (domain.InventoryTotals, error)
}

type BookingStore interface {
	// CreateBooking fails with domain.ErrDuplicateRequest when the user already
	// holds an active booking for the car.
	CreateBooking(ctx context.Context, b domain.Booking) error
	GetBooking(ctx context.Context, id string) (domain.Booking, error)
	ListBookingsByUser(ctx context.Context, userID string) ([]domain.Booking, error)
	// ListBookings returns every booking, or only those in status when it is
	// not empty.
	ListBookings(ctx context.Context, status domain.BookingStatus) ([]domain.Booking, error)
	// AcceptBooking decrements the car's stock and marks the pending booking
	// accepted as one unit. Nothing changes when either step is refused.
	AcceptBooking(ctx context.Context, bookingID, carID string, at time.Time) error
	// SetBookingStatus moves a booking from one status to another, failing
	// with domain.ErrInvalidTransition when the stored status is not from.
	SetBookingStatus(ctx context.Context, id string, from, to domain.BookingStatus, at time.Time) error
	BookingStats(ctx context.Context) (domain.BookingStats, error)
}

type EnquiryStore interface {
	CreateEnquiry(ctx context.Context, e domain.Enquiry) error
	GetEnquiry(ctx context.Context, id string) (domain.Enquiry, error)
	ListEnquiriesByUser(ctx context.Context, userID string) ([]domain.Enquiry, error)
	ListEnquiries(ctx context.Context) ([]domain.Enquiry, error)
	ReplyEnquiry(ctx context.Context, id, text string, at time.Time) error
	// ResolveEnquiry sets the thread resolved if its status is still from.
	ResolveEnquiry(ctx context.Context, id string, from domain.EnquiryStatus, at time.Time) error
	// FollowUpEnquiry reopens a resolved thread with the customer's message.
	FollowUpEnquiry(ctx context.Context, id, text string, at time.Time) error
}
