package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"carmarket/internal/clock"
	"carmarket/internal/domain"
	"carmarket/internal/repos"
	"carmarket/internal/services"
)

var (
	asha  = domain.Actor{ID: "u-asha", Name: "Asha", Email: "asha@carmarket.test", Role: domain.RoleCustomer}
	ravi  = domain.Actor{ID: "u-ravi", Name: "Ravi", Email: "ravi@carmarket.test", Role: domain.RoleCustomer}
	admin = domain.Actor{ID: "u-admin", Name: "Admin", Role: domain.RoleAdmin}
)

type ledger struct {
	db       *sqlx.DB
	bookings *services.BookingService
	catalog  *services.CatalogService
}

func newLedger(t *testing.T) ledger {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	clk := clock.NewFixed(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	cars := repos.NewCarRepo(db)
	return ledger{
		db:       db,
		bookings: services.NewBookingService(repos.NewBookingRepo(db), cars, clk),
		catalog:  services.NewCatalogService(cars, clk),
	}
}

func (l ledger) car(t *testing.T, stock int) domain.Car {
	t.Helper()
	c, err := l.catalog.CreateCar(context.Background(), admin, services.CarInput{
		Brand: "Hyundai", Model: "Creta", Year: 2022, Price: 1200000, Stock: &stock,
	})
	if err != nil {
		t.Fatalf("create car: %v", err)
	}
	return c
}

func (l ledger) stock(t *testing.T, carID string) int {
	t.Helper()
	c, err := l.catalog.GetCar(context.Background(), carID)
	if err != nil {
		t.Fatalf("get car: %v", err)
	}
	return c.Stock
}

func (l ledger) countActive(t *testing.T, userID, carID string) int {
	t.Helper()
	var n int
	if err := l.db.Get(&n, `SELECT COUNT(*) FROM bookings WHERE user_id=? AND car_id=? AND status IN ('pending','accepted')`, userID, carID); err != nil {
		t.Fatal(err)
	}
	return n
}

// Book the last unit, accept it, then a second customer's booking cannot be accepted.
func TestBooking_LastUnitScenario(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	car := l.car(t, 1)

	a, err := l.bookings.CreateBooking(ctx, asha, car.ID)
	if err != nil {
		t.Fatal(err)
	}
	if a.Status != domain.BookingPending || a.Brand != "Hyundai" || a.UserName != "Asha" {
		t.Fatalf("unexpected booking: %+v", a)
	}

	a, err = l.bookings.Decide(ctx, admin, a.ID, domain.DecisionAccept)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if a.Status != domain.BookingAccepted || l.stock(t, car.ID) != 0 {
		t.Fatalf("want accepted with stock 0, got %s stock %d", a.Status, l.stock(t, car.ID))
	}

	b, err := l.bookings.CreateBooking(ctx, ravi, car.ID)
	if err != nil {
		t.Fatalf("second customer may still request: %v", err)
	}
	if _, err := l.bookings.Decide(ctx, admin, b.ID, domain.DecisionAccept); !errors.Is(err, domain.ErrOutOfStock) {
		t.Fatalf("want ErrOutOfStock, got %v", err)
	}
	got, _ := l.bookings.Get(ctx, ravi, b.ID)
	if got.Status != domain.BookingPending || got.DecidedAt != nil {
		t.Fatalf("refused accept must leave booking pending: %+v", got)
	}
	if l.stock(t, car.ID) != 0 {
		t.Fatal("stock moved on refused accept")
	}
}

func TestBooking_DuplicateRequest(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	car := l.car(t, 3)

	if _, err := l.bookings.CreateBooking(ctx, asha, car.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := l.bookings.CreateBooking(ctx, asha, car.ID); !errors.Is(err, domain.ErrDuplicateRequest) {
		t.Fatalf("want ErrDuplicateRequest, got %v", err)
	}
	if n := l.countActive(t, asha.ID, car.ID); n != 1 {
		t.Fatalf("want one active booking, got %d", n)
	}

	// concurrent duplicates: the unique index admits exactly one
	car2 := l.car(t, 3)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		oks  int
		dups int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.bookings.CreateBooking(ctx, asha, car2.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				oks++
			} else if errors.Is(err, domain.ErrDuplicateRequest) {
				dups++
			}
		}()
	}
	wg.Wait()
	if oks != 1 || dups != 5 {
		t.Fatalf("want 1 created and 5 duplicates, got %d and %d", oks, dups)
	}
	if n := l.countActive(t, asha.ID, car2.ID); n != 1 {
		t.Fatalf("want one active booking, got %d", n)
	}
}

func TestBooking_ConcurrentAcceptsOnLastUnit(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	car := l.car(t, 1)

	const n = 10
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		actor := domain.Actor{ID: "u-bulk-" + string(rune('a'+i)), Role: domain.RoleCustomer}
		b, err := l.bookings.CreateBooking(ctx, actor, car.ID)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, b.ID)
	}

	results := make(chan error, n)
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := l.bookings.Decide(ctx, admin, id, domain.DecisionAccept)
			results <- err
		}(id)
	}
	wg.Wait()
	close(results)

	var ok, oos int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrOutOfStock):
			oos++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || oos != n-1 {
		t.Fatalf("want 1 accepted and %d out of stock, got %d and %d", n-1, ok, oos)
	}
	if s := l.stock(t, car.ID); s != 0 {
		t.Fatalf("want stock 0, got %d", s)
	}
}

func TestBooking_RejectCancelAndPermissions(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	car := l.car(t, 2)

	b, _ := l.bookings.CreateBooking(ctx, asha, car.ID)

	if _, err := l.bookings.Decide(ctx, asha, b.ID, domain.DecisionAccept); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("customer decide: want ErrUnauthorized, got %v", err)
	}
	if _, err := l.bookings.Cancel(ctx, ravi, b.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("non-owner cancel: want ErrUnauthorized, got %v", err)
	}
	if _, err := l.bookings.Decide(ctx, admin, b.ID, domain.Decision("maybe")); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("bad decision: want ErrValidation, got %v", err)
	}
	if _, err := l.bookings.CreateBooking(ctx, admin, car.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("admin booking: want ErrUnauthorized, got %v", err)
	}
	if _, err := l.bookings.CreateBooking(ctx, ravi, "car-missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing car: want ErrNotFound, got %v", err)
	}
	if _, err := l.bookings.CreateBooking(ctx, ravi, ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("blank car: want ErrValidation, got %v", err)
	}

	c, err := l.bookings.Cancel(ctx, asha, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if c.Status != domain.BookingCancelled || c.CancelledAt == nil {
		t.Fatalf("unexpected booking: %+v", c)
	}
	if l.stock(t, car.ID) != 2 {
		t.Fatal("cancelling a pending booking must not touch stock")
	}
	if _, err := l.bookings.Decide(ctx, admin, b.ID, domain.DecisionReject); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("decide cancelled: want ErrInvalidTransition, got %v", err)
	}

	// accepted bookings cannot be cancelled
	b2, _ := l.bookings.CreateBooking(ctx, asha, car.ID)
	_, _ = l.bookings.Decide(ctx, admin, b2.ID, domain.DecisionAccept)
	if _, err := l.bookings.Cancel(ctx, asha, b2.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("cancel accepted: want ErrInvalidTransition, got %v", err)
	}
	if l.stock(t, car.ID) != 1 {
		t.Fatalf("want stock 1, got %d", l.stock(t, car.ID))
	}

	b3, _ := l.bookings.CreateBooking(ctx, ravi, car.ID)
	r, err := l.bookings.Decide(ctx, admin, b3.ID, domain.DecisionReject)
	if err != nil || r.Status != domain.BookingRejected {
		t.Fatalf("reject: %+v err=%v", r, err)
	}
	if l.stock(t, car.ID) != 1 {
		t.Fatal("reject must not touch stock")
	}
	if _, err := l.bookings.Decide(ctx, admin, "missing", domain.DecisionReject); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestBooking_ListingsAndDashboard(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	car := l.car(t, 1)

	a, _ := l.bookings.CreateBooking(ctx, asha, car.ID)
	_, _ = l.bookings.CreateBooking(ctx, ravi, car.ID)
	_, _ = l.bookings.Decide(ctx, admin, a.ID, domain.DecisionAccept)

	mine, err := l.bookings.ListMine(ctx, asha)
	if err != nil || len(mine) != 1 || mine[0].Status != domain.BookingAccepted {
		t.Fatalf("list mine: %+v err=%v", mine, err)
	}
	if _, err := l.bookings.ListAll(ctx, asha, ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
	pending, err := l.bookings.ListAll(ctx, admin, "pending")
	if err != nil || len(pending) != 1 || pending[0].UserID != ravi.ID {
		t.Fatalf("pending filter: %+v err=%v", pending, err)
	}
	if _, err := l.bookings.ListAll(ctx, admin, "bogus"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}

	d, err := l.bookings.Dashboard(ctx, admin)
	if err != nil {
		t.Fatal(err)
	}
	if d.Bookings.Total != 2 || d.Bookings.Accepted != 1 || d.Bookings.Pending != 1 {
		t.Fatalf("unexpected stats: %+v", d.Bookings)
	}
	if d.Inventory.Cars == 0 {
		t.Fatalf("unexpected inventory: %+v", d.Inventory)
	}
	if len(d.Trend) != 7 || d.Trend[0].Date != "2025-02-23" || d.Trend[6].Date != "2025-03-01" {
		t.Fatalf("unexpected trend window: %+v", d.Trend)
	}
	for i, day := range d.Trend {
		want := 0
		if i == 6 {
			want = 2
		}
		if day.Count != want {
			t.Fatalf("trend %s: want %d, got %d", day.Date, want, day.Count)
		}
	}
	if _, err := l.bookings.Dashboard(ctx, ravi); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
}
