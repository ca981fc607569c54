package services

import (
	"context"
	"fmt"
	"time"

	"carmarket/internal/clock"
	"carmarket/internal/domain"
	applog "carmarket/internal/log"
	"carmarket/internal/validate"

	"github.com/google/uuid"
)

// BookingService is the booking ledger. Every stock or uniqueness rule is
// delegated to a single conditional store call; the service never reads
// stock itself.
type BookingService struct {
	bookings BookingStore
	cars     CarStore
	clock    clock.Clock
}

func NewBookingService(bookings BookingStore, cars CarStore, clk clock.Clock) *BookingService {
	return &BookingService{bookings: bookings, cars: cars, clock: clk}
}

// Dashboard backs the admin overview.
type Dashboard struct {
	Bookings  domain.BookingStats    `json:"bookings"`
	Inventory domain.InventoryTotals `json:"inventory"`
	// Trend holds booking requests per UTC day, oldest first, ending today.
	Trend []DayCount `json:"trend"`
}

type DayCount struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int    `json:"count"`
}

const trendDays = 7

// CreateBooking files a pending booking for the actor against carID.
func (s *BookingService) CreateBooking(ctx context.Context, actor domain.Actor, carID string) (domain.Booking, error) {
	if actor.ID == "" || actor.IsAdmin() {
		applog.Security(ctx, "booking.create.denied", map[string]any{"user_id": actor.ID, "role": actor.Role})
		return domain.Booking{}, fmt.Errorf("create booking: %w", domain.ErrUnauthorized)
	}
	carID, ok := validate.ID(carID)
	if !ok {
		return domain.Booking{}, domain.Invalid("car_id", "required")
	}

	car, err := s.cars.GetCar(ctx, carID)
	if err != nil {
		return domain.Booking{}, err
	}

	b := domain.Booking{
		ID:        uuid.NewString(),
		CarID:     car.ID,
		UserID:    actor.ID,
		UserName:  actor.Name,
		UserEmail: actor.Email,
		Brand:     car.Brand,
		Model:     car.Model,
		Status:    domain.BookingPending,
		CreatedAt: s.clock.Now(),
	}
	if err := s.bookings.CreateBooking(ctx, b); err != nil {
		return domain.Booking{}, err
	}

	applog.Audit(ctx, "booking.create", map[string]any{"booking_id": b.ID, "car_id": b.CarID, "user_id": b.UserID})
	return b, nil
}

// Decide applies an admin decision to a pending booking. Accepting takes one
// unit of the car's stock in the same store transaction.
func (s *BookingService) Decide(ctx context.Context, actor domain.Actor, bookingID string, decision domain.Decision) (domain.Booking, error) {
	if !actor.IsAdmin() {
		applog.Security(ctx, "booking.decide.denied", map[string]any{"user_id": actor.ID, "booking_id": bookingID})
		return domain.Booking{}, fmt.Errorf("decide booking: %w", domain.ErrUnauthorized)
	}
	bookingID, ok := validate.ID(bookingID)
	if !ok {
		return domain.Booking{}, domain.Invalid("booking_id", "required")
	}
	if _, ok := domain.ParseDecision(string(decision)); !ok {
		return domain.Booking{}, domain.Invalid("decision", "must be accept or reject")
	}

	b, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, err
	}
	next := decision.Status()
	if !b.Status.CanBecome(next) {
		return domain.Booking{}, fmt.Errorf("booking %s is %s: %w", b.ID, b.Status, domain.ErrInvalidTransition)
	}

	now := s.clock.Now()
	if decision == domain.DecisionAccept {
		err = s.bookings.AcceptBooking(ctx, b.ID, b.CarID, now)
	} else {
		err = s.bookings.SetBookingStatus(ctx, b.ID, domain.BookingPending, next, now)
	}
	if err != nil {
		applog.Info(ctx, "booking.decide.refused", map[string]any{"booking_id": b.ID, "decision": decision, "reason": err.Error()})
		return domain.Booking{}, err
	}

	b.Status = next
	b.DecidedAt = &now
	applog.Audit(ctx, "booking.decide", map[string]any{"booking_id": b.ID, "car_id": b.CarID, "decision": decision, "admin_id": actor.ID})
	return b, nil
}

// Cancel withdraws the actor's own pending booking. Pending bookings never
// hold stock, so nothing is restored.
func (s *BookingService) Cancel(ctx context.Context, actor domain.Actor, bookingID string) (domain.Booking, error) {
	if actor.ID == "" {
		return domain.Booking{}, fmt.Errorf("cancel booking: %w", domain.ErrUnauthorized)
	}
	bookingID, ok := validate.ID(bookingID)
	if !ok {
		return domain.Booking{}, domain.Invalid("booking_id", "required")
	}

	b, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, err
	}
	if !actor.Owns(b.UserID) {
		applog.Security(ctx, "booking.cancel.denied", map[string]any{"user_id": actor.ID, "booking_id": b.ID})
		return domain.Booking{}, fmt.Errorf("cancel booking: %w", domain.ErrUnauthorized)
	}
	if !b.Status.CanBecome(domain.BookingCancelled) {
		return domain.Booking{}, fmt.Errorf("booking %s is %s: %w", b.ID, b.Status, domain.ErrInvalidTransition)
	}

	now := s.clock.Now()
	if err := s.bookings.SetBookingStatus(ctx, b.ID, domain.BookingPending, domain.BookingCancelled, now); err != nil {
		return domain.Booking{}, err
	}

	b.Status = domain.BookingCancelled
	b.CancelledAt = &now
	applog.Audit(ctx, "booking.cancel", map[string]any{"booking_id": b.ID, "user_id": actor.ID})
	return b, nil
}

func (s *BookingService) Get(ctx context.Context, actor domain.Actor, bookingID string) (domain.Booking, error) {
	b, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, err
	}
	if !actor.IsAdmin() && !actor.Owns(b.UserID) {
		return domain.Booking{}, fmt.Errorf("get booking: %w", domain.ErrUnauthorized)
	}
	return b, nil
}

func (s *BookingService) ListMine(ctx context.Context, actor domain.Actor) ([]domain.Booking, error) {
	if actor.ID == "" {
		return nil, fmt.Errorf("list bookings: %w", domain.ErrUnauthorized)
	}
	return s.bookings.ListBookingsByUser(ctx, actor.ID)
}

// ListAll is the admin view; status "" or "all" means no filter.
func (s *BookingService) ListAll(ctx context.Context, actor domain.Actor, status string) ([]domain.Booking, error) {
	if !actor.IsAdmin() {
		applog.Security(ctx, "booking.list.denied", map[string]any{"user_id": actor.ID})
		return nil, fmt.Errorf("list bookings: %w", domain.ErrUnauthorized)
	}
	var filter domain.BookingStatus
	if status != "" && status != "all" {
		st, ok := domain.ParseBookingStatus(status)
		if !ok {
			return nil, domain.Invalid("status", "unknown booking status")
		}
		filter = st
	}
	return s.bookings.ListBookings(ctx, filter)
}

func (s *BookingService) Dashboard(ctx context.Context, actor domain.Actor) (Dashboard, error) {
	if !actor.IsAdmin() {
		return Dashboard{}, fmt.Errorf("dashboard: %w", domain.ErrUnauthorized)
	}
	st, err := s.bookings.BookingStats(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	inv, err := s.cars.InventoryTotals(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	all, err := s.bookings.ListBookings(ctx, "")
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{Bookings: st, Inventory: inv, Trend: bookingTrend(all, s.clock.Now(), trendDays)}, nil
}

func bookingTrend(list []domain.Booking, now time.Time, days int) []DayCount {
	trend := make([]DayCount, days)
	index := make(map[string]int, days)
	today := now.UTC()
	for i := range trend {
		d := today.AddDate(0, 0, i-days+1).Format(time.DateOnly)
		trend[i].Date = d
		index[d] = i
	}
	for _, b := range list {
		if i, ok := index[b.CreatedAt.UTC().Format(time.DateOnly)]; ok {
			trend[i].Count++
		}
	}
	return trend
}
