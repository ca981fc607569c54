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

// EnquiryService runs the customer/admin conversation about a car.
//
//	new ──resolve──▶ resolved ◀──resolve── open
//	                    │                    ▲
//	                    └──────follow-up─────┘
//
// Admin replies may arrive in any state and never move it.
type EnquiryService struct {
	enquiries EnquiryStore
	cars      CarStore
	clock     clock.Clock
}

func NewEnquiryService(enquiries EnquiryStore, cars CarStore, clk clock.Clock) *EnquiryService {
	return &EnquiryService{enquiries: enquiries, cars: cars, clock: clk}
}

func (s *EnquiryService) Create(ctx context.Context, actor domain.Actor, carID, message string) (domain.Enquiry, error) {
	if actor.ID == "" || actor.IsAdmin() {
		applog.Security(ctx, "enquiry.create.denied", map[string]any{"user_id": actor.ID, "role": actor.Role})
		return domain.Enquiry{}, fmt.Errorf("create enquiry: %w", domain.ErrUnauthorized)
	}
	carID, ok := validate.ID(carID)
	if !ok {
		return domain.Enquiry{}, domain.Invalid("car_id", "required")
	}
	message, ok = validate.Text(message)
	if !ok {
		return domain.Enquiry{}, domain.Invalid("message", "required")
	}

	car, err := s.cars.GetCar(ctx, carID)
	if err != nil {
		return domain.Enquiry{}, err
	}

	e := domain.Enquiry{
		ID:        uuid.NewString(),
		CarID:     car.ID,
		UserID:    actor.ID,
		UserName:  actor.Name,
		UserEmail: actor.Email,
		Brand:     car.Brand,
		Model:     car.Model,
		Message:   message,
		Status:    domain.EnquiryNew,
		CreatedAt: s.clock.Now(),
	}
	if err := s.enquiries.CreateEnquiry(ctx, e); err != nil {
		return domain.Enquiry{}, err
	}

	applog.Audit(ctx, "enquiry.create", map[string]any{"enquiry_id": e.ID, "car_id": e.CarID, "user_id": e.UserID})
	return e, nil
}

// Reply sets (or overwrites) the admin answer.
func (s *EnquiryService) Reply(ctx context.Context, actor domain.Actor, enquiryID, text string) (domain.Enquiry, error) {
	if !actor.IsAdmin() {
		applog.Security(ctx, "enquiry.reply.denied", map[string]any{"user_id": actor.ID, "enquiry_id": enquiryID})
		return domain.Enquiry{}, fmt.Errorf("reply: %w", domain.ErrUnauthorized)
	}
	text, ok := validate.Text(text)
	if !ok {
		return domain.Enquiry{}, domain.Invalid("reply", "required")
	}
	e, err := s.get(ctx, enquiryID)
	if err != nil {
		return domain.Enquiry{}, err
	}

	now := s.clock.Now()
	if err := s.enquiries.ReplyEnquiry(ctx, e.ID, text, now); err != nil {
		return domain.Enquiry{}, err
	}

	e.AdminReply = text
	e.RepliedAt = &now
	applog.Audit(ctx, "enquiry.reply", map[string]any{"enquiry_id": e.ID, "admin_id": actor.ID})
	return e, nil
}

// Resolve closes the actor's own thread. A thread that is already resolved
// is reported as an invalid transition.
func (s *EnquiryService) Resolve(ctx context.Context, actor domain.Actor, enquiryID string) (domain.Enquiry, error) {
	e, err := s.owned(ctx, actor, enquiryID, "resolve")
	if err != nil {
		return domain.Enquiry{}, err
	}
	if e.IsResolved() {
		return domain.Enquiry{}, fmt.Errorf("enquiry %s is %s: %w", e.ID, e.Status, domain.ErrInvalidTransition)
	}

	now := s.clock.Now()
	if err := s.enquiries.ResolveEnquiry(ctx, e.ID, e.Status, now); err != nil {
		return domain.Enquiry{}, err
	}

	e.Status = domain.EnquiryResolved
	e.ResolvedByCustomerAt = &now
	applog.Audit(ctx, "enquiry.resolve", map[string]any{"enquiry_id": e.ID, "user_id": actor.ID})
	return e, nil
}

// FollowUp reopens a resolved thread with a new customer message. Threads
// that are new or already open are refused.
func (s *EnquiryService) FollowUp(ctx context.Context, actor domain.Actor, enquiryID, text string) (domain.Enquiry, error) {
	text, ok := validate.Text(text)
	if !ok {
		return domain.Enquiry{}, domain.Invalid("follow_up_message", "required")
	}
	e, err := s.owned(ctx, actor, enquiryID, "follow_up")
	if err != nil {
		return domain.Enquiry{}, err
	}
	if !e.IsResolved() {
		return domain.Enquiry{}, fmt.Errorf("enquiry %s is %s: %w", e.ID, e.Status, domain.ErrInvalidTransition)
	}

	now := s.clock.Now()
	if err := s.enquiries.FollowUpEnquiry(ctx, e.ID, text, now); err != nil {
		return domain.Enquiry{}, err
	}

	e.Status = domain.EnquiryOpen
	e.FollowUpMessage = text
	e.FollowedUpAt = &now
	applog.Audit(ctx, "enquiry.follow_up", map[string]any{"enquiry_id": e.ID, "user_id": actor.ID})
	return e, nil
}

func (s *EnquiryService) Get(ctx context.Context, actor domain.Actor, enquiryID string) (domain.Enquiry, error) {
	e, err := s.get(ctx, enquiryID)
	if err != nil {
		return domain.Enquiry{}, err
	}
	if !actor.IsAdmin() && !actor.Owns(e.UserID) {
		return domain.Enquiry{}, fmt.Errorf("get enquiry: %w", domain.ErrUnauthorized)
	}
	return e, nil
}

func (s *EnquiryService) ListMine(ctx context.Context, actor domain.Actor) ([]domain.Enquiry, error) {
	if actor.ID == "" {
		return nil, fmt.Errorf("list enquiries: %w", domain.ErrUnauthorized)
	}
	return s.enquiries.ListEnquiriesByUser(ctx, actor.ID)
}

func (s *EnquiryService) ListAll(ctx context.Context, actor domain.Actor) ([]domain.Enquiry, error) {
	if !actor.IsAdmin() {
		applog.Security(ctx, "enquiry.list.denied", map[string]any{"user_id": actor.ID})
		return nil, fmt.Errorf("list enquiries: %w", domain.ErrUnauthorized)
	}
	return s.enquiries.ListEnquiries(ctx)
}

func (s *EnquiryService) get(ctx context.Context, enquiryID string) (domain.Enquiry, error) {
	enquiryID, ok := validate.ID(enquiryID)
	if !ok {
		return domain.Enquiry{}, domain.Invalid("enquiry_id", "required")
	}
	return s.enquiries.GetEnquiry(ctx, enquiryID)
}

func (s *EnquiryService) owned(ctx context.Context, actor domain.Actor, enquiryID, op string) (domain.Enquiry, error) {
	if actor.ID == "" {
		return domain.Enquiry{}, fmt.Errorf("%s: %w", op, domain.ErrUnauthorized)
	}
	e, err := s.get(ctx, enquiryID)
	if err != nil {
		return domain.Enquiry{}, err
	}
	if !actor.Owns(e.UserID) {
		applog.Security(ctx, "enquiry."+op+".denied", map[string]any{"user_id": actor.ID, "enquiry_id": e.ID})
		return domain.Enquiry{}, fmt.Errorf("%s: %w", op, domain.ErrUnauthorized)
	}
	return e, nil
}
