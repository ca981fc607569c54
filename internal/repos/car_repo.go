package repos

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"carmarket/internal/domain"
	"carmarket/internal/validate"

	"github.com/jmoiron/sqlx"
)

type CarRepo struct{ db *sqlx.DB }

func NewCarRepo(db *sqlx.DB) *CarRepo { return &CarRepo{db: db} }

type carRow struct {
	ID          string  `db:"id"`
	Brand       string  `db:"brand"`
	Model       string  `db:"model"`
	Year        int     `db:"year"`
	Price       float64 `db:"price"`
	Description string  `db:"description"`
	Stock       int     `db:"stock"`
	ImagesJSON  string  `db:"images_json"`
	CreatedAt   string  `db:"created_at"`
	UpdatedAt   string  `db:"updated_at"`
}

const carColumns = `id,brand,model,year,price,description,stock,images_json,created_at,updated_at`

func toCarRow(c domain.Car) (carRow, error) {
	images := c.Images
	if images == nil {
		images = []string{}
	}
	b, err := json.Marshal(images)
	if err != nil {
		return carRow{}, err
	}
	return carRow{
		ID:          c.ID,
		Brand:       c.Brand,
		Model:       c.Model,
		Year:        c.Year,
		Price:       c.Price,
		Description: c.Description,
		Stock:       c.Stock,
		ImagesJSON:  string(b),
		CreatedAt:   fmtTime(c.CreatedAt),
		UpdatedAt:   fmtTime(c.UpdatedAt),
	}, nil
}

func (r carRow) car() domain.Car {
	var images []string
	if r.ImagesJSON != "" {
		_ = json.Unmarshal([]byte(r.ImagesJSON), &images)
	}
	if images == nil {
		images = []string{}
	}
	return domain.Car{
		ID:          r.ID,
		Brand:       r.Brand,
		Model:       r.Model,
		Year:        r.Year,
		Price:       r.Price,
		Description: r.Description,
		Stock:       r.Stock,
		Images:      images,
		CreatedAt:   parseTime(r.CreatedAt),
		UpdatedAt:   parseTime(r.UpdatedAt),
	}
}

func (r *CarRepo) CreateCar(ctx context.Context, c domain.Car) error {
	row, err := toCarRow(c)
	if err != nil {
		return err
	}
	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO cars(`+carColumns+`)
		VALUES(:id,:brand,:model,:year,:price,:description,:stock,:images_json,:created_at,:updated_at)`, row)
	if isUniqueViolation(err) {
		return fmt.Errorf("car %s: %w", c.ID, domain.Invalid("id", "already exists"))
	}
	return err
}

func (r *CarRepo) GetCar(ctx context.Context, id string) (domain.Car, error) {
	var row carRow
	err := r.db.GetContext(ctx, &row, `SELECT `+carColumns+` FROM cars WHERE id=?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Car{}, fmt.Errorf("car %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Car{}, err
	}
	return row.car(), nil
}

// ListCars returns the catalog, newest listing first.
func (r *CarRepo) ListCars(ctx context.Context) ([]domain.Car, error) {
	var rows []carRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+carColumns+` FROM cars ORDER BY created_at DESC, id`); err != nil {
		return nil, err
	}
	out := make([]domain.Car, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.car())
	}
	return out, nil
}

func (r *CarRepo) UpdateCar(ctx context.Context, c domain.Car) error {
	row, err := toCarRow(c)
	if err != nil {
		return err
	}
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE cars SET brand=:brand, model=:model, year=:year, price=:price,
		  description=:description, images_json=:images_json, updated_at=:updated_at
		WHERE id=:id`, row)
	if err != nil {
		return err
	}
	return mustAffect(res, "car", c.ID)
}

func (r *CarRepo) DeleteCar(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cars WHERE id=?`, id)
	if err != nil {
		return err
	}
	return mustAffect(res, "car", id)
}

// AdjustStock applies delta in one conditional UPDATE and reads the new value
// back through RETURNING. The WHERE clause keeps stock within [0, MaxStock].
func (r *CarRepo) AdjustStock(ctx context.Context, id string, delta int, at time.Time) (int, error) {
	if !validate.StockDelta(delta) {
		return 0, domain.Invalid("delta", "out of range")
	}
	var stock int
	err := r.db.GetContext(ctx, &stock, `
		UPDATE cars SET stock = stock + ?, updated_at = ?
		WHERE id = ? AND stock + ? BETWEEN 0 AND ?
		RETURNING stock`, delta, fmtTime(at), id, delta, domain.MaxStock)
	if err == nil {
		return stock, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	c, err := r.GetCar(ctx, id)
	if err != nil {
		return 0, err
	}
	if c.Stock+delta < 0 {
		return 0, fmt.Errorf("car %s: %w", id, domain.ErrOutOfStock)
	}
	return 0, domain.Invalid("delta", fmt.Sprintf("stock would exceed %d", domain.MaxStock))
}

func (r *CarRepo) SetStock(ctx context.Context, id string, n int, at time.Time) error {
	if !validate.Stock(n) {
		return domain.Invalid("stock", "out of range")
	}
	res, err := r.db.ExecContext(ctx, `UPDATE cars SET stock=?, updated_at=? WHERE id=?`, n, fmtTime(at), id)
	if err != nil {
		return err
	}
	return mustAffect(res, "car", id)
}

func (r *CarRepo) SetImages(ctx context.Context, id string, images []string, at time.Time) error {
	if images == nil {
		images = []string{}
	}
	b, err := json.Marshal(images)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE cars SET images_json=?, updated_at=? WHERE id=?`, string(b), fmtTime(at), id)
	if err != nil {
		return err
	}
	return mustAffect(res, "car", id)
}

func (r *CarRepo) InventoryTotals(ctx context.Context) (domain.InventoryTotals, error) {
	var t struct {
		Cars  int `db:"cars"`
		Units int `db:"units"`
	}
	if err := r.db.GetContext(ctx, &t, `SELECT COUNT(*) AS cars, COALESCE(SUM(stock),0) AS units FROM cars`); err != nil {
		return domain.InventoryTotals{}, err
	}
	return domain.InventoryTotals{Cars: t.Cars, Units: t.Units}, nil
}

func mustAffect(res sql.Result, kind, id string) error {
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
	}
	return nil
}
