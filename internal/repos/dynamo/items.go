package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"carmarket/internal/domain"
)

const (
	kindBooking = "booking"
	kindGuard   = "guard"
)

type carItem struct {
	ID          string   `dynamodbav:"id"`
	Brand       string   `dynamodbav:"brand"`
	Model       string   `dynamodbav:"model"`
	Year        int      `dynamodbav:"year"`
	Price       float64  `dynamodbav:"price"`
	Description string   `dynamodbav:"description"`
	Stock       int      `dynamodbav:"stock"`
	Images      []string `dynamodbav:"images"`
	CreatedAt   string   `dynamodbav:"created_at"`
	UpdatedAt   string   `dynamodbav:"updated_at"`
}

type bookingItem struct {
	ID          string `dynamodbav:"id"`
	Kind        string `dynamodbav:"kind"`
	CarID       string `dynamodbav:"car_id"`
	UserID      string `dynamodbav:"user_id"`
	UserName    string `dynamodbav:"user_name"`
	UserEmail   string `dynamodbav:"user_email"`
	Brand       string `dynamodbav:"brand"`
	Model       string `dynamodbav:"model"`
	Status      string `dynamodbav:"status"`
	CreatedAt   string `dynamodbav:"created_at"`
	DecidedAt   string `dynamodbav:"decided_at,omitempty"`
	CancelledAt string `dynamodbav:"cancelled_at,omitempty"`
}

// guardItem lives in the bookings table while a (user, car) pair has an
// active booking. Its key makes a second active booking a failed
// attribute_not_exists check.
type guardItem struct {
	ID        string `dynamodbav:"id"`
	Kind      string `dynamodbav:"kind"`
	BookingID string `dynamodbav:"booking_id"`
	UserID    string `dynamodbav:"user_id"`
	CarID     string `dynamodbav:"car_id"`
}

func guardKey(userID, carID string) string { return "active#" + userID + "#" + carID }

type enquiryItem struct {
	ID                   string `dynamodbav:"id"`
	CarID                string `dynamodbav:"car_id"`
	UserID               string `dynamodbav:"user_id"`
	UserName             string `dynamodbav:"user_name"`
	UserEmail            string `dynamodbav:"user_email"`
	Brand                string `dynamodbav:"brand"`
	Model                string `dynamodbav:"model"`
	Message              string `dynamodbav:"message"`
	Status               string `dynamodbav:"status"`
	AdminReply           string `dynamodbav:"admin_reply"`
	FollowUpMessage      string `dynamodbav:"follow_up_message"`
	CreatedAt            string `dynamodbav:"created_at"`
	RepliedAt            string `dynamodbav:"replied_at,omitempty"`
	ResolvedByCustomerAt string `dynamodbav:"resolved_by_customer_at,omitempty"`
	FollowedUpAt         string `dynamodbav:"followed_up_at,omitempty"`
}

func toCarItem(c domain.Car) carItem {
	images := c.Images
	if images == nil {
		images = []string{}
	}
	return carItem{
		ID:          c.ID,
		Brand:       c.Brand,
		Model:       c.Model,
		Year:        c.Year,
		Price:       c.Price,
		Description: c.Description,
		Stock:       c.Stock,
		Images:      images,
		CreatedAt:   fmtTime(c.CreatedAt),
		UpdatedAt:   fmtTime(c.UpdatedAt),
	}
}

func fromCarItem(it carItem) domain.Car {
	images := it.Images
	if images == nil {
		images = []string{}
	}
	return domain.Car{
		ID:          it.ID,
		Brand:       it.Brand,
		Model:       it.Model,
		Year:        it.Year,
		Price:       it.Price,
		Description: it.Description,
		Stock:       it.Stock,
		Images:      images,
		CreatedAt:   parseTime(it.CreatedAt),
		UpdatedAt:   parseTime(it.UpdatedAt),
	}
}

func toBookingItem(b domain.Booking) bookingItem {
	return bookingItem{
		ID:          b.ID,
		Kind:        kindBooking,
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

func fromBookingItem(it bookingItem) domain.Booking {
	return domain.Booking{
		ID:          it.ID,
		CarID:       it.CarID,
		UserID:      it.UserID,
		UserName:    it.UserName,
		UserEmail:   it.UserEmail,
		Brand:       it.Brand,
		Model:       it.Model,
		Status:      domain.BookingStatus(it.Status),
		CreatedAt:   parseTime(it.CreatedAt),
		DecidedAt:   parseTimePtr(it.DecidedAt),
		CancelledAt: parseTimePtr(it.CancelledAt),
	}
}

func toEnquiryItem(e domain.Enquiry) enquiryItem {
	return enquiryItem{
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

func fromEnquiryItem(it enquiryItem) domain.Enquiry {
	return domain.Enquiry{
		ID:                   it.ID,
		CarID:                it.CarID,
		UserID:               it.UserID,
		UserName:             it.UserName,
		UserEmail:            it.UserEmail,
		Brand:                it.Brand,
		Model:                it.Model,
		Message:              it.Message,
		Status:               domain.EnquiryStatus(it.Status),
		AdminReply:           it.AdminReply,
		FollowUpMessage:      it.FollowUpMessage,
		CreatedAt:            parseTime(it.CreatedAt),
		RepliedAt:            parseTimePtr(it.RepliedAt),
		ResolvedByCustomerAt: parseTimePtr(it.ResolvedByCustomerAt),
		FollowedUpAt:         parseTimePtr(it.FollowedUpAt),
	}
}

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t.UTC()
}

func fmtTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return fmtTime(*t)
}

func parseTimePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t := parseTime(s)
	return &t
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}}
}

func str(s string) types.AttributeValue { return &types.AttributeValueMemberS{Value: s} }

func num(n int) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", n)}
}

// getItem reads one item by id, returning found=false when it is absent.
func getItem(ctx context.Context, api API, table, id string, out any) (bool, error) {
	res, err := api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(table),
		Key:            idKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("dynamodb GetItem %s: %w", table, err)
	}
	if len(res.Item) == 0 {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(res.Item, out); err != nil {
		return false, fmt.Errorf("unmarshal item: %w", err)
	}
	return true, nil
}

// scanAll pages through a Scan and unmarshals every item into T.
func scanAll[T any](ctx context.Context, api API, in *dynamodb.ScanInput) ([]T, error) {
	var out []T
	p := dynamodb.NewScanPaginator(api, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("dynamodb Scan %s: %w", aws.ToString(in.TableName), err)
		}
		var items []T
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal items: %w", err)
		}
		out = append(out, items...)
	}
	return out, nil
}

func newestFirst[T any](items []T, created func(T) time.Time, id func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		ci, cj := created(items[i]), created(items[j])
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return id(items[i]) < id(items[j])
	})
}

// conditionFailed reports whether err is a failed ConditionExpression on a
// single-item write, returning the item as it was when ALL_OLD was requested.
func conditionFailed(err error) (map[string]types.AttributeValue, bool) {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ccf.Item, true
	}
	return nil, false
}

// cancelReasons unpacks a cancelled TransactWriteItems call. The slice is
// indexed like the request's TransactItems.
func cancelReasons(err error) ([]types.CancellationReason, bool) {
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		return tce.CancellationReasons, true
	}
	return nil, false
}

func reasonFailed(reasons []types.CancellationReason, i int) bool {
	return i < len(reasons) && aws.ToString(reasons[i].Code) == "ConditionalCheckFailed"
}
