package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"carmarket/internal/domain"
)

type fakeCars struct {
	mu   sync.Mutex
	cars map[string]domain.Car
}

func newFakeCars(cars ...domain.Car) *fakeCars {
	f := &fakeCars{cars: map[string]domain.Car{}}
	for _, c := range cars {
		f.cars[c.ID] = c
	}
	return f
}

func (f *fakeCars) CreateCar(_ context.Context, c domain.Car) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.cars[c.ID]; ok {
		return domain.Invalid("id", "already exists")
	}
	f.cars[c.ID] = c
	return nil
}

func (f *fakeCars) GetCar(_ context.Context, id string) (domain.Car, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cars[id]
	if !ok {
		return domain.Car{}, fmt.Errorf("car %s: %w", id, domain.ErrNotFound)
	}
	c.Images = append([]string(nil), c.Images...)
	return c, nil
}

func (f *fakeCars) ListCars(_ context.Context) ([]domain.Car, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Car, 0, len(f.cars))
	for _, c := range f.cars {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeCars) UpdateCar(_ context.Context, c domain.Car) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.cars[c.ID]
	if !ok {
		return domain.ErrNotFound
	}
	c.Stock = cur.Stock
	f.cars[c.ID] = c
	return nil
}

func (f *fakeCars) DeleteCar(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.cars[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.cars, id)
	return nil
}

func (f *fakeCars) AdjustStock(_ context.Context, id string, delta int, at time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cars[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if c.Stock+delta < 0 {
		return 0, domain.ErrOutOfStock
	}
	if c.Stock+delta > domain.MaxStock {
		return 0, domain.Invalid("delta", "out of range")
	}
	c.Stock += delta
	c.UpdatedAt = at
	f.cars[id] = c
	return c.Stock, nil
}

func (f *fakeCars) SetStock(_ context.Context, id string, n int, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cars[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Stock, c.UpdatedAt = n, at
	f.cars[id] = c
	return nil
}

func (f *fakeCars) SetImages(_ context.Context, id string, images []string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cars[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Images, c.UpdatedAt = append([]string(nil), images...), at
	f.cars[id] = c
	return nil
}

func (f *fakeCars) InventoryTotals(_ context.Context) (domain.InventoryTotals, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var t domain.InventoryTotals
	for _, c := range f.cars {
		t.Cars++
		t.Units += c.Stock
	}
	return t, nil
}

type fakeEnquiries struct {
	mu     sync.Mutex
	items  map[string]domain.Enquiry
	writes int
}

func newFakeEnquiries() *fakeEnquiries {
	return &fakeEnquiries{items: map[string]domain.Enquiry{}}
}

func (f *fakeEnquiries) CreateEnquiry(_ context.Context, e domain.Enquiry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[e.ID] = e
	f.writes++
	return nil
}

func (f *fakeEnquiries) GetEnquiry(_ context.Context, id string) (domain.Enquiry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.items[id]
	if !ok {
		return domain.Enquiry{}, fmt.Errorf("enquiry %s: %w", id, domain.ErrNotFound)
	}
	return e, nil
}

func (f *fakeEnquiries) ListEnquiriesByUser(_ context.Context, userID string) ([]domain.Enquiry, error) {
	all, _ := f.ListEnquiries(context.Background())
	out := all[:0]
	for _, e := range all {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEnquiries) ListEnquiries(_ context.Context) ([]domain.Enquiry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Enquiry, 0, len(f.items))
	for _, e := range f.items {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeEnquiries) ReplyEnquiry(_ context.Context, id, text string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.AdminReply, e.RepliedAt = text, &at
	f.items[id] = e
	f.writes++
	return nil
}

func (f *fakeEnquiries) ResolveEnquiry(_ context.Context, id string, from domain.EnquiryStatus, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	if e.Status != from || e.Status == domain.EnquiryResolved {
		return domain.ErrInvalidTransition
	}
	e.Status, e.ResolvedByCustomerAt = domain.EnquiryResolved, &at
	f.items[id] = e
	f.writes++
	return nil
}

func (f *fakeEnquiries) FollowUpEnquiry(_ context.Context, id, text string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	if e.Status != domain.EnquiryResolved {
		return domain.ErrInvalidTransition
	}
	e.Status, e.FollowUpMessage, e.FollowedUpAt = domain.EnquiryOpen, text, &at
	f.items[id] = e
	f.writes++
	return nil
}

var (
	_ CarStore     = (*fakeCars)(nil)
	_ EnquiryStore = (*fakeEnquiries)(nil)
)
