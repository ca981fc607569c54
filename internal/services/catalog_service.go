package services

import (
	"context"
	"fmt"

	"carmarket/internal/clock"
	"carmarket/internal/domain"
	applog "carmarket/internal/log"
	"carmarket/internal/validate"

	"github.com/google/uuid"
)

type CatalogService struct {
	cars  CarStore
	clock clock.Clock
}

func NewCatalogService(cars CarStore, clk clock.Clock) *CatalogService {
	return &CatalogService{cars: cars, clock: clk}
}

// CarInput is what the admin edit form submits. Stock is optional on update;
// nil leaves the counter alone.
type CarInput struct {
	Brand       string   `json:"brand"`
	Model       string   `json:"model"`
	Year        int      `json:"year"`
	Price       float64  `json:"price"`
	Description string   `json:"description"`
	Stock       *int     `json:"stock"`
	Images      []string `json:"images"`
}

func (in CarInput) normalize() (CarInput, error) {
	var ok bool
	if in.Brand, ok = validate.Label(in.Brand); !ok {
		return in, domain.Invalid("brand", "required")
	}
	if in.Model, ok = validate.Label(in.Model); !ok {
		return in, domain.Invalid("model", "required")
	}
	if !validate.Year(in.Year) {
		return in, domain.Invalid("year", "out of range")
	}
	if !validate.Price(in.Price) {
		return in, domain.Invalid("price", "must not be negative")
	}
	if in.Description != "" {
		if in.Description, ok = validate.Text(in.Description); !ok {
			return in, domain.Invalid("description", "too long")
		}
	}
	if in.Stock != nil && !validate.Stock(*in.Stock) {
		return in, domain.Invalid("stock", fmt.Sprintf("must be between 0 and %d", domain.MaxStock))
	}
	images := make([]string, 0, len(in.Images))
	for _, u := range in.Images {
		u, ok := validate.ImageURL(u)
		if !ok {
			return in, domain.Invalid("images", "must be absolute http(s) URLs")
		}
		images = append(images, u)
	}
	in.Images = images
	return in, nil
}

func (s *CatalogService) GetCar(ctx context.Context, id string) (domain.Car, error) {
	id, ok := validate.ID(id)
	if !ok {
		return domain.Car{}, domain.Invalid("car_id", "required")
	}
	return s.cars.GetCar(ctx, id)
}

func (s *CatalogService) ListCars(ctx context.Context) ([]domain.Car, error) {
	return s.cars.ListCars(ctx)
}

func (s *CatalogService) CreateCar(ctx context.Context, actor domain.Actor, in CarInput) (domain.Car, error) {
	if err := s.requireAdmin(ctx, actor, "car.create"); err != nil {
		return domain.Car{}, err
	}
	in, err := in.normalize()
	if err != nil {
		return domain.Car{}, err
	}
	now := s.clock.Now()
	car := domain.Car{
		ID:          uuid.NewString(),
		Brand:       in.Brand,
		Model:       in.Model,
		Year:        in.Year,
		Price:       in.Price,
		Description: in.Description,
		Images:      in.Images,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Stock != nil {
		car.Stock = *in.Stock
	}
	if err := s.cars.CreateCar(ctx, car); err != nil {
		return domain.Car{}, err
	}
	applog.Audit(ctx, "car.create", map[string]any{"car_id": car.ID, "admin_id": actor.ID, "stock": car.Stock})
	return car, nil
}

func (s *CatalogService) UpdateCar(ctx context.Context, actor domain.Actor, id string, in CarInput) (domain.Car, error) {
	if err := s.requireAdmin(ctx, actor, "car.update"); err != nil {
		return domain.Car{}, err
	}
	car, err := s.GetCar(ctx, id)
	if err != nil {
		return domain.Car{}, err
	}
	in, err = in.normalize()
	if err != nil {
		return domain.Car{}, err
	}

	now := s.clock.Now()
	car.Brand, car.Model, car.Year = in.Brand, in.Model, in.Year
	car.Price, car.Description, car.Images = in.Price, in.Description, in.Images
	car.UpdatedAt = now
	if err := s.cars.UpdateCar(ctx, car); err != nil {
		return domain.Car{}, err
	}
	if in.Stock != nil {
		if err := s.cars.SetStock(ctx, car.ID, *in.Stock, now); err != nil {
			return domain.Car{}, err
		}
		car.Stock = *in.Stock
	}
	applog.Audit(ctx, "car.update", map[string]any{"car_id": car.ID, "admin_id": actor.ID})
	return car, nil
}

func (s *CatalogService) DeleteCar(ctx context.Context, actor domain.Actor, id string) error {
	if err := s.requireAdmin(ctx, actor, "car.delete"); err != nil {
		return err
	}
	id, ok := validate.ID(id)
	if !ok {
		return domain.Invalid("car_id", "required")
	}
	if err := s.cars.DeleteCar(ctx, id); err != nil {
		return err
	}
	applog.Audit(ctx, "car.delete", map[string]any{"car_id": id, "admin_id": actor.ID})
	return nil
}

// AdjustStock is the admin +/- control. It refuses to take stock below zero
// with domain.ErrOutOfStock.
func (s *CatalogService) AdjustStock(ctx context.Context, actor domain.Actor, id string, delta int) (int, error) {
	if err := s.requireAdmin(ctx, actor, "car.stock"); err != nil {
		return 0, err
	}
	id, ok := validate.ID(id)
	if !ok {
		return 0, domain.Invalid("car_id", "required")
	}
	if !validate.StockDelta(delta) {
		return 0, domain.Invalid("delta", fmt.Sprintf("must be non-zero and within +/-%d", domain.MaxStock))
	}
	stock, err := s.cars.AdjustStock(ctx, id, delta, s.clock.Now())
	if err != nil {
		return 0, err
	}
	applog.Audit(ctx, "car.stock.adjust", map[string]any{"car_id": id, "delta": delta, "stock": stock, "admin_id": actor.ID})
	return stock, nil
}

func (s *CatalogService) SetStock(ctx context.Context, actor domain.Actor, id string, n int) error {
	if err := s.requireAdmin(ctx, actor, "car.stock"); err != nil {
		return err
	}
	id, ok := validate.ID(id)
	if !ok {
		return domain.Invalid("car_id", "required")
	}
	if !validate.Stock(n) {
		return domain.Invalid("stock", fmt.Sprintf("must be between 0 and %d", domain.MaxStock))
	}
	if err := s.cars.SetStock(ctx, id, n, s.clock.Now()); err != nil {
		return err
	}
	applog.Audit(ctx, "car.stock.set", map[string]any{"car_id": id, "stock": n, "admin_id": actor.ID})
	return nil
}

// ReorderImages replaces the image order. urls must be a permutation of the
// car's current images; the first one becomes the cover.
func (s *CatalogService) ReorderImages(ctx context.Context, actor domain.Actor, id string, urls []string) (domain.Car, error) {
	return s.editImages(ctx, actor, id, "car.images.reorder", func(cur []string) ([]string, error) {
		if !samePermutation(cur, urls) {
			return nil, domain.Invalid("images", "must reorder the existing images")
		}
		return urls, nil
	})
}

func (s *CatalogService) AddImage(ctx context.Context, actor domain.Actor, id, url string) (domain.Car, error) {
	return s.editImages(ctx, actor, id, "car.images.add", func(cur []string) ([]string, error) {
		u, ok := validate.ImageURL(url)
		if !ok {
			return nil, domain.Invalid("url", "must be an absolute http(s) URL")
		}
		for _, have := range cur {
			if have == u {
				return cur, nil
			}
		}
		return append(cur, u), nil
	})
}

func (s *CatalogService) RemoveImage(ctx context.Context, actor domain.Actor, id, url string) (domain.Car, error) {
	return s.editImages(ctx, actor, id, "car.images.remove", func(cur []string) ([]string, error) {
		out := make([]string, 0, len(cur))
		found := false
		for _, have := range cur {
			if have == url {
				found = true
				continue
			}
			out = append(out, have)
		}
		if !found {
			return nil, fmt.Errorf("image %q: %w", url, domain.ErrNotFound)
		}
		return out, nil
	})
}

func (s *CatalogService) editImages(ctx context.Context, actor domain.Actor, id, action string, edit func([]string) ([]string, error)) (domain.Car, error) {
	if err := s.requireAdmin(ctx, actor, action); err != nil {
		return domain.Car{}, err
	}
	car, err := s.GetCar(ctx, id)
	if err != nil {
		return domain.Car{}, err
	}
	images, err := edit(append([]string(nil), car.Images...))
	if err != nil {
		return domain.Car{}, err
	}
	now := s.clock.Now()
	if err := s.cars.SetImages(ctx, car.ID, images, now); err != nil {
		return domain.Car{}, err
	}
	car.Images = images
	car.UpdatedAt = now
	applog.Audit(ctx, action, map[string]any{"car_id": car.ID, "images": len(images), "admin_id": actor.ID})
	return car, nil
}

func (s *CatalogService) requireAdmin(ctx context.Context, actor domain.Actor, action string) error {
	if actor.IsAdmin() {
		return nil
	}
	applog.Security(ctx, action+".denied", map[string]any{"user_id": actor.ID})
	return fmt.Errorf("%s: %w", action, domain.ErrUnauthorized)
}

func samePermutation(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, s := range a {
		seen[s]++
	}
	for _, s := range b {
		if seen[s] == 0 {
			return false
		}
		seen[s]--
	}
	return true
}
