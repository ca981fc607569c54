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

type EnquiryRepo struct{ db *sqlx.DB }

func NewEnquiryRepo(db *sqlx.DB) *EnquiryRepo { return &EnquiryRepo{db: db} }

type enquiryRow struct {
	ID                   string         `db:"id"`
	CarID                string         `db:"car_id"`
	UserID               string         `db:"user_id"`
	UserName             string         `db:"user_name"`
	UserEmail            string         `db:"user_email"`
	Brand                string         `db:"brand"`
	Model                string         `db:"model"`
	Message              string         `db:"message"`
	Status               string         `db:"status"`
	AdminReply           string         `db:"admin_reply"`
	FollowUpMessage      string         `db:"follow_up_message"`
	CreatedAt            string         `db:"created_at"`
	RepliedAt            sql.NullString `db:"replied_at"`
	ResolvedByCustomerAt sql.NullString `db:"resolved_by_customer_at"`
	FollowedUpAt         sql.NullString `db:"followed_up_at"`
}

const enquiryColumns = `id,car_id,user_id,user_name,user_email,brand,model,message,status,admin_reply,follow_up_message,created_at,replied_at,resolved_by_customer_at,followed_up_at`

func toEnquiryRow(e domain.Enquiry) enquiryRow {
	return enquiryRow{
		ID:                   e.ID,
		CarID:                e.CarID,
		UserID:               e.UserID,
		UserName:             e.UserName,
		UserEmail:            e.UserEmail,
		Brand:                e.Brand,
		Model:                e.Model,
		Message:              e.Message,
		Status:               string(e.Status),
		AdminReply:           e.AdminReply,
		FollowUpMessage:      e.FollowUpMessage,
		CreatedAt:            fmtTime(e.CreatedAt),
		RepliedAt:            fmtTimePtr(e.RepliedAt),
		ResolvedByCustomerAt: fmtTimePtr(e.ResolvedByCustomerAt),
		FollowedUpAt:         fmtTimePtr(e.FollowedUpAt),
	}
}

func (r enquiryRow) enquiry() domain.Enquiry {
	return domain.Enquiry{
		ID:                   r.ID,
		CarID:                r.CarID,
		UserID:               r.UserID,
		UserName:             r.UserName,
		UserEmail:            r.UserEmail,
		Brand:                r.Brand,
		Model:                r.Model,
		Message:              r.Message,
		Status:               domain.EnquiryStatus(r.Status),
		AdminReply:           r.AdminReply,
		FollowUpMessage:      r.FollowUpMessage,
		CreatedAt:            parseTime(r.CreatedAt),
		RepliedAt:            parseTimePtr(r.RepliedAt),
		ResolvedByCustomerAt: parseTimePtr(r.ResolvedByCustomerAt),
		FollowedUpAt:         parseTimePtr(r.FollowedUpAt),
	}
}

func (r *EnquiryRepo) CreateEnquiry(ctx context.Context, e domain.Enquiry) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO enquiries(`+enquiryColumns+`)
		VALUES(:id,:car_id,:user_id,:user_name,:user_email,:brand,:model,:message,:status,
		  :admin_reply,:follow_up_message,:created_at,:replied_at,:resolved_by_customer_at,:followed_up_at)`,
		toEnquiryRow(e))
	return err
}

func (r *EnquiryRepo) GetEnquiry(ctx context.Context, id string) (domain.Enquiry, error) {
	var row enquiryRow
	err := r.db.GetContext(ctx, &row, `SELECT `+enquiryColumns+` FROM enquiries WHERE id=?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Enquiry{}, fmt.Errorf("enquiry %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Enquiry{}, err
	}
	return row.enquiry(), nil
}

func (r *EnquiryRepo) ListEnquiriesByUser(ctx context.Context, userID string) ([]domain.Enquiry, error) {
	return r.list(ctx, `SELECT `+enquiryColumns+` FROM enquiries WHERE user_id=? ORDER BY created_at DESC, id`, userID)
}

func (r *EnquiryRepo) ListEnquiries(ctx context.Context) ([]domain.Enquiry, error) {
	return r.list(ctx, `SELECT `+enquiryColumns+` FROM enquiries ORDER BY created_at DESC, id`)
}

func (r *EnquiryRepo) list(ctx context.Context, q string, args ...any) ([]domain.Enquiry, error) {
	var rows []enquiryRow
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	out := make([]domain.Enquiry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.enquiry())
	}
	return out, nil
}

// ReplyEnquiry overwrites the admin reply. Status is not touched.
func (r *EnquiryRepo) ReplyEnquiry(ctx context.Context, id, text string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE enquiries SET admin_reply=?, replied_at=? WHERE id=?`, text, fmtTime(at), id)
	if err != nil {
		return err
	}
	return mustAffect(res, "enquiry", id)
}

func (r *EnquiryRepo) ResolveEnquiry(ctx context.Context, id string, from domain.EnquiryStatus, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE enquiries SET status='resolved', resolved_by_customer_at=?
		WHERE id=? AND status=? AND status<>'resolved'`, fmtTime(at), id, string(from))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.transitionFailure(ctx, id)
	}
	return nil
}

func (r *EnquiryRepo) FollowUpEnquiry(ctx context.Context, id, text string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE enquiries SET status='open', follow_up_message=?, followed_up_at=?
		WHERE id=? AND status='resolved'`, text, fmtTime(at), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.transitionFailure(ctx, id)
	}
	return nil
}

func (r *EnquiryRepo) transitionFailure(ctx context.Context, id string) error {
	var status string
	err := r.db.GetContext(ctx, &status, `SELECT status FROM enquiries WHERE id=?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("enquiry %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("enquiry %s is %s: %w", id, status, domain.ErrInvalidTransition)
}
