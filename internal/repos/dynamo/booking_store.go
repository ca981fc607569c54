package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"carmarket/internal/domain"
)

// BookingStore keeps bookings and their active-pair guard items in one
// table. Accepting also writes to the cars table, inside the same
// transaction.
type BookingStore struct {
	api       API
	table     string
	carsTable string
}

func NewBookingStore(api API, table, carsTable string) *BookingStore {
	return &BookingStore{api: api, table: table, carsTable: carsTable}
}

// CreateBooking writes the booking together with its guard item. The guard
// put fails when the pair already has an active booking.
func (s *BookingStore) CreateBooking(ctx context.Context, b domain.Booking) error {
	bav, err := attributevalue.MarshalMap(toBookingItem(b))
	if err != nil {
		return fmt.Errorf("marshal booking: %w", err)
	}
	gav, err := attributevalue.MarshalMap(guardItem{
		ID: guardKey(b.UserID, b.CarID), Kind: kindGuard, BookingID: b.ID, UserID: b.UserID, CarID: b.CarID,
	})
	if err != nil {
		return fmt.Errorf("marshal guard: %w", err)
	}

	notExists := aws.String("attribute_not_exists(#id)")
	idName := map[string]string{"#id": "id"}
	_, err = s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: aws.String(s.table), Item: gav, ConditionExpression: notExists, ExpressionAttributeNames: idName}},
			{Put: &types.Put{TableName: aws.String(s.table), Item: bav, ConditionExpression: notExists, ExpressionAttributeNames: idName}},
		},
	})
	if reasons, ok := cancelReasons(err); ok {
		if reasonFailed(reasons, 0) {
			return fmt.Errorf("booking for car %s: %w", b.CarID, domain.ErrDuplicateRequest)
		}
		return fmt.Errorf("create booking cancelled: %w", err)
	}
	if err != nil {
		return fmt.Errorf("dynamodb TransactWriteItems failed: %w", err)
	}
	return nil
}

func (s *BookingStore) GetBooking(ctx context.Context, id string) (domain.Booking, error) {
	var it bookingItem
	found, err := getItem(ctx, s.api, s.table, id, &it)
	if err != nil {
		return domain.Booking{}, err
	}
	if !found || it.Kind != kindBooking {
		return domain.Booking{}, fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
	}
	return fromBookingItem(it), nil
}

func (s *BookingStore) ListBookingsByUser(ctx context.Context, userID string) ([]domain.Booking, error) {
	return s.scan(ctx, "#kind = :kind AND #user_id = :user",
		map[string]string{"#kind": "kind", "#user_id": "user_id"},
		map[string]types.AttributeValue{":kind": str(kindBooking), ":user": str(userID)})
}

func (s *BookingStore) ListBookings(ctx context.Context, status domain.BookingStatus) ([]domain.Booking, error) {
	if status == "" {
		return s.scan(ctx, "#kind = :kind",
			map[string]string{"#kind": "kind"},
			map[string]types.AttributeValue{":kind": str(kindBooking)})
	}
	return s.scan(ctx, "#kind = :kind AND #status = :status",
		map[string]string{"#kind": "kind", "#status": "status"},
		map[string]types.AttributeValue{":kind": str(kindBooking), ":status": str(string(status))})
}

func (s *BookingStore) scan(ctx context.Context, filter string, names map[string]string, values map[string]types.AttributeValue) ([]domain.Booking, error) {
	items, err := scanAll[bookingItem](ctx, s.api, &dynamodb.ScanInput{
		TableName:                 aws.String(s.table),
		FilterExpression:          aws.String(filter),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConsistentRead:            aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Booking, 0, len(items))
	for _, it := range items {
		out = append(out, fromBookingItem(it))
	}
	newestFirst(out, func(b domain.Booking) time.Time { return b.CreatedAt }, func(b domain.Booking) string { return b.ID })
	return out, nil
}

// AcceptBooking decrements the car (condition stock > 0) and accepts the
// booking (condition status = pending) in one TransactWriteItems call.
// DynamoDB rejects the whole transaction if either condition fails, so two
// accepts racing for the last unit cannot both commit.
func (s *BookingStore) AcceptBooking(ctx context.Context, bookingID, carID string, at time.Time) error {
	now := str(fmtTime(at))
	_, err := s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: &types.Update{
				TableName:           aws.String(s.carsTable),
				Key:                 idKey(carID),
				UpdateExpression:    aws.String("SET #stock = #stock - :one, #updated_at = :now"),
				ConditionExpression: aws.String("attribute_exists(#id) AND #stock > :zero"),
				ExpressionAttributeNames: map[string]string{
					"#id": "id", "#stock": "stock", "#updated_at": "updated_at",
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":one": num(1), ":zero": num(0), ":now": now,
				},
				ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
			}},
			{Update: &types.Update{
				TableName:           aws.String(s.table),
				Key:                 idKey(bookingID),
				UpdateExpression:    aws.String("SET #status = :accepted, #decided_at = :now"),
				ConditionExpression: aws.String("#kind = :kind AND #status = :pending"),
				ExpressionAttributeNames: map[string]string{
					"#kind": "kind", "#status": "status", "#decided_at": "decided_at",
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":kind":     str(kindBooking),
					":pending":  str(string(domain.BookingPending)),
					":accepted": str(string(domain.BookingAccepted)),
					":now":      now,
				},
				ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
			}},
		},
	})
	if reasons, ok := cancelReasons(err); ok {
		switch {
		case reasonFailed(reasons, 0):
			if len(reasons[0].Item) == 0 {
				return fmt.Errorf("car %s: %w", carID, domain.ErrNotFound)
			}
			return fmt.Errorf("car %s: %w", carID, domain.ErrOutOfStock)
		case reasonFailed(reasons, 1):
			return bookingTransitionFailure(bookingID, reasons[1].Item)
		}
		return fmt.Errorf("accept booking cancelled: %w", err)
	}
	if err != nil {
		return fmt.Errorf("dynamodb TransactWriteItems failed: %w", err)
	}
	return nil
}

// SetBookingStatus moves a booking out of from. Leaving the active set also
// deletes the guard item in the same transaction so the pair can book again.
func (s *BookingStore) SetBookingStatus(ctx context.Context, id string, from, to domain.BookingStatus, at time.Time) error {
	b, err := s.GetBooking(ctx, id)
	if err != nil {
		return err
	}

	stampAttr := "decided_at"
	if to == domain.BookingCancelled {
		stampAttr = "cancelled_at"
	}
	items := []types.TransactWriteItem{{Update: &types.Update{
		TableName:           aws.String(s.table),
		Key:                 idKey(id),
		UpdateExpression:    aws.String("SET #status = :to, #stamp = :now"),
		ConditionExpression: aws.String("#kind = :kind AND #status = :from"),
		ExpressionAttributeNames: map[string]string{
			"#kind": "kind", "#status": "status", "#stamp": stampAttr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":kind": str(kindBooking),
			":from": str(string(from)),
			":to":   str(string(to)),
			":now":  str(fmtTime(at)),
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	}}}
	if from.Active() && !to.Active() {
		items = append(items, types.TransactWriteItem{Delete: &types.Delete{
			TableName: aws.String(s.table),
			Key:       idKey(guardKey(b.UserID, b.CarID)),
		}})
	}

	_, err = s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if reasons, ok := cancelReasons(err); ok {
		if reasonFailed(reasons, 0) {
			return bookingTransitionFailure(id, reasons[0].Item)
		}
		return fmt.Errorf("set booking status cancelled: %w", err)
	}
	if err != nil {
		return fmt.Errorf("dynamodb TransactWriteItems failed: %w", err)
	}
	return nil
}

func (s *BookingStore) BookingStats(ctx context.Context) (domain.BookingStats, error) {
	items, err := scanAll[bookingItem](ctx, s.api, &dynamodb.ScanInput{
		TableName:                 aws.String(s.table),
		FilterExpression:          aws.String("#kind = :kind"),
		ProjectionExpression:      aws.String("#id, #status"),
		ExpressionAttributeNames:  map[string]string{"#kind": "kind", "#id": "id", "#status": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":kind": str(kindBooking)},
		ConsistentRead:            aws.Bool(true),
	})
	if err != nil {
		return domain.BookingStats{}, err
	}
	var st domain.BookingStats
	for _, it := range items {
		st.Add(domain.BookingStatus(it.Status), 1)
	}
	return st, nil
}

func bookingTransitionFailure(id string, old map[string]types.AttributeValue) error {
	if len(old) == 0 {
		return fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
	}
	var it bookingItem
	if err := attributevalue.UnmarshalMap(old, &it); err != nil || it.Kind != kindBooking {
		return fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
	}
	return fmt.Errorf("booking %s is %s: %w", id, it.Status, domain.ErrInvalidTransition)
}
