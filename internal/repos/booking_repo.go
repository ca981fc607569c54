package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"carmarket/internal/domain"

	"github.com/jmoiron/sqlx"
)

type BookingRepo struct{ db *sqlx.DB }

func NewBookingRepo(db *sqlx.DB) *BookingRepo { return &BookingRepo{db: db} }

type bookingRow struct {
	ID          string         `db:"id"`
	CarID       string         `db:"car_id"`
	UserID      string         `db:"user_id"`
	UserName    string         `db:"user_name"`
	UserEmail   string         `db:"user_email"`
	Brand       string         `db:"brand"`
	Model       string         `db:"model"`
	Status      string         `db:"status"`
	CreatedAt   string         `db:"created_at"`
	DecidedAt   sql.NullString `db:"decided_at"`
	CancelledAt sql.NullString `db:"cancelled_at"`
}

const bookingColumns = `id,car_id,user_id,user_name,user_email,brand,model,status,created_at,decided_at,cancelled_at`

func toBookingRow(b domain.Booking) bookingRow {
	return bookingRow{
		ID:          b.ID,
		CarID:       b.CarID,
		UserID:      b.UserID,
		UserName:    b.UserName,
		UserEmail:   b.UserEmail,
		Brand:       b.Brand,
		Model:       b.Model,
		Status:      string(b.Status),
		CreatedAt:   fmtTime(b.CreatedAt),
		DecidedAt:   fmtTimePtr(b.DecidedAt),
		CancelledAt: fmtTimePtr(b.CancelledAt),
	}
}

func (r bookingRow) booking() domain.Booking {
	return domain.Booking{
		ID:          r.ID,
		CarID:       r.CarID,
		UserID:      r.UserID,
		UserName:    r.UserName,
		UserEmail:   r.UserEmail,
		Brand:       r.Brand,
		Model:       r.Model,
		Status:      domain.BookingStatus(r.Status),
		CreatedAt:   parseTime(r.CreatedAt),
		DecidedAt:   parseTimePtr(r.DecidedAt),
		CancelledAt: parseTimePtr(r.CancelledAt),
	}
}

// CreateBooking relies on idx_bookings_active to refuse a second active
// booking for the same (user, car); there is no read before the insert.
func (r *BookingRepo) CreateBooking(ctx context.Context, b domain.Booking) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO bookings(`+bookingColumns+`)
		VALUES(:id,:car_id,:user_id,:user_name,:user_email,:brand,:model,:status,:created_at,:decided_at,:cancelled_at)`,
		toBookingRow(b))
	if isUniqueViolation(err) {
		return fmt.Errorf("booking for car %s: %w", b.CarID, domain.ErrDuplicateRequest)
	}
	return err
}

func (r *BookingRepo) GetBooking(ctx context.Context, id string) (domain.Booking, error) {
	var row bookingRow
	err := r.db.GetContext(ctx, &row, `SELECT `+bookingColumns+` FROM bookings WHERE id=?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Booking{}, fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Booking{}, err
	}
	return row.booking(), nil
}

func (r *BookingRepo) ListBookingsByUser(ctx context.Context, userID string) ([]domain.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE user_id=? ORDER BY created_at DESC, id`, userID)
}

func (r *BookingRepo) ListBookings(ctx context.Context, status domain.BookingStatus) ([]domain.Booking, error) {
	if status == "" {
		return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings ORDER BY created_at DESC, id`)
	}
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE status=? ORDER BY created_at DESC, id`, string(status))
}

func (r *BookingRepo) list(ctx context.Context, q string, args ...any) ([]domain.Booking, error) {
	var rows []bookingRow
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	out := make([]domain.Booking, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.booking())
	}
	return out, nil
}

// AcceptBooking takes one unit of stock and accepts the booking in a single
// transaction. The stock UPDATE is conditional on stock > 0, so concurrent
// accepts on the last unit cannot both commit.
func (r *BookingRepo) AcceptBooking(ctx context.Context, bookingID, carID string, at time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	ts := fmtTime(at)

	res, err := tx.ExecContext(ctx, `UPDATE cars SET stock = stock - 1, updated_at = ? WHERE id = ? AND stock > 0`, ts, carID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		if err := tx.GetContext(ctx, &exists, `SELECT COUNT(*) FROM cars WHERE id=?`, carID); err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("car %s: %w", carID, domain.ErrNotFound)
		}
		return fmt.Errorf("car %s: %w", carID, domain.ErrOutOfStock)
	}

	res, err = tx.ExecContext(ctx, `UPDATE bookings SET status = 'accepted', decided_at = ? WHERE id = ? AND status = 'pending'`, ts, bookingID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.transitionFailure(ctx, tx, bookingID)
	}

	return tx.Commit()
}

// SetBookingStatus is the conditional write behind reject and cancel.
func (r *BookingRepo) SetBookingStatus(ctx context.Context, id string, from, to domain.BookingStatus, at time.Time) error {
	col := "decided_at"
	if to == domain.BookingCancelled {
		col = "cancelled_at"
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status = ?, `+col+` = ? WHERE id = ? AND status = ?`,
		string(to), fmtTime(at), id, string(from))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.transitionFailure(ctx, r.db, id)
	}
	return nil
}

func (r *BookingRepo) transitionFailure(ctx context.Context, q sqlx.QueryerContext, id string) error {
	var status string
	err := sqlx.GetContext(ctx, q, &status, `SELECT status FROM bookings WHERE id=?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("booking %s is %s: %w", id, status, domain.ErrInvalidTransition)
}

func (r *BookingRepo) BookingStats(ctx context.Context) (domain.BookingStats, error) {
	var rows []struct {
		Status string `db:"status"`
		N      int    `db:"n"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS n FROM bookings GROUP BY status`); err != nil {
		return domain.BookingStats{}, err
	}
	var st domain.BookingStats
	for _, row := range rows {
		st.Add(domain.BookingStatus(row.Status), row.N)
	}
	return st, nil
}
