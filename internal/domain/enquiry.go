package domain

import "time"

type EnquiryStatus string

const (
	EnquiryNew      EnquiryStatus = "new"
	EnquiryOpen     EnquiryStatus = "open"
	EnquiryResolved EnquiryStatus = "resolved"
)

// Enquiry is a customer question about a car and the admin/customer thread
// that follows it. Message is fixed at creation. An admin reply never changes
// Status; the customer moves the thread between resolved and open.
type Enquiry struct {
	ID                   string        `json:"id"`
	CarID                string        `json:"car_id"`
	UserID               string        `json:"user_id"`
	UserName             string        `json:"user_name"`
	UserEmail            string        `json:"user_email"`
	Brand                string        `json:"brand"`
	Model                string        `json:"model"`
	Message              string        `json:"message"`
	Status               EnquiryStatus `json:"status"`
	AdminReply           string        `json:"admin_reply,omitempty"`
	FollowUpMessage      string        `json:"follow_up_message,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
	RepliedAt            *time.Time    `json:"replied_at,omitempty"`
	ResolvedByCustomerAt *time.Time    `json:"resolved_by_customer_at,omitempty"`
	FollowedUpAt         *time.Time    `json:"followed_up_at,omitempty"`
}

func (e Enquiry) HasReply() bool   { return e.AdminReply != "" }
func (e Enquiry) IsResolved() bool { return e.Status == EnquiryResolved }
