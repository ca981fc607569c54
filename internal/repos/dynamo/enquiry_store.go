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

type EnquiryStore struct {
	api   API
	table string
}

func NewEnquiryStore(api API, table string) *EnquiryStore {
	return &EnquiryStore{api: api, table: table}
}

func (s *EnquiryStore) CreateEnquiry(ctx context.Context, e domain.Enquiry) error {
	av, err := attributevalue.MarshalMap(toEnquiryItem(e))
	if err != nil {
		return fmt.Errorf("marshal enquiry: %w", err)
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.table),
		Item:                     av,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": "id"},
	})
	if err != nil {
		return fmt.Errorf("dynamodb PutItem failed: %w", err)
	}
	return nil
}

func (s *EnquiryStore) GetEnquiry(ctx context.Context, id string) (domain.Enquiry, error) {
	var it enquiryItem
	found, err := getItem(ctx, s.api, s.table, id, &it)
	if err != nil {
		return domain.Enquiry{}, err
	}
	if !found {
		return domain.Enquiry{}, fmt.Errorf("enquiry %s: %w", id, domain.ErrNotFound)
	}
	return fromEnquiryItem(it), nil
}

func (s *EnquiryStore) ListEnquiriesByUser(ctx context.Context, userID string) ([]domain.Enquiry, error) {
	return s.scan(ctx, &dynamodb.ScanInput{
		TableName:                 aws.String(s.table),
		FilterExpression:          aws.String("#user_id = :user"),
		ExpressionAttributeNames:  map[string]string{"#user_id": "user_id"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":user": str(userID)},
		ConsistentRead:            aws.Bool(true),
	})
}

func (s *EnquiryStore) ListEnquiries(ctx context.Context) ([]domain.Enquiry, error) {
	return s.scan(ctx, &dynamodb.ScanInput{TableName: aws.String(s.table), ConsistentRead: aws.Bool(true)})
}

func (s *EnquiryStore) scan(ctx context.Context, in *dynamodb.ScanInput) ([]domain.Enquiry, error) {
	items, err := scanAll[enquiryItem](ctx, s.api, in)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Enquiry, 0, len(items))
	for _, it := range items {
		out = append(out, fromEnquiryItem(it))
	}
	newestFirst(out, func(e domain.Enquiry) time.Time { return e.CreatedAt }, func(e domain.Enquiry) string { return e.ID })
	return out, nil
}

func (s *EnquiryStore) ReplyEnquiry(ctx context.Context, id, text string, at time.Time) error {
	return s.update(ctx, id,
		"SET #reply = :reply, #replied_at = :now",
		"attribute_exists(#id)",
		map[string]string{"#id": "id", "#reply": "admin_reply", "#replied_at": "replied_at"},
		map[string]types.AttributeValue{":reply": str(text), ":now": str(fmtTime(at))})
}

func (s *EnquiryStore) ResolveEnquiry(ctx context.Context, id string, from domain.EnquiryStatus, at time.Time) error {
	return s.update(ctx, id,
		"SET #status = :resolved, #resolved_at = :now",
		"#status = :from AND #status <> :resolved",
		map[string]string{"#status": "status", "#resolved_at": "resolved_by_customer_at"},
		map[string]types.AttributeValue{
			":from":     str(string(from)),
			":resolved": str(string(domain.EnquiryResolved)),
			":now":      str(fmtTime(at)),
		})
}

func (s *EnquiryStore) FollowUpEnquiry(ctx context.Context, id, text string, at time.Time) error {
	return s.update(ctx, id,
		"SET #status = :open, #follow_up = :text, #followed_up_at = :now",
		"#status = :resolved",
		map[string]string{"#status": "status", "#follow_up": "follow_up_message", "#followed_up_at": "followed_up_at"},
		map[string]types.AttributeValue{
			":open":     str(string(domain.EnquiryOpen)),
			":resolved": str(string(domain.EnquiryResolved)),
			":text":     str(text),
			":now":      str(fmtTime(at)),
		})
}

// update applies a conditional SET. On a failed condition the old item
// tells a missing enquiry apart from one in the wrong status.
func (s *EnquiryStore) update(ctx context.Context, id, expr, cond string, names map[string]string, values map[string]types.AttributeValue) error {
	_, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(s.table),
		Key:                                 idKey(id),
		UpdateExpression:                    aws.String(expr),
		ConditionExpression:                 aws.String(cond),
		ExpressionAttributeNames:            names,
		ExpressionAttributeValues:           values,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if old, ok := conditionFailed(err); ok {
		if len(old) == 0 {
			return fmt.Errorf("enquiry %s: %w", id, domain.ErrNotFound)
		}
		var it enquiryItem
		_ = attributevalue.UnmarshalMap(old, &it)
		return fmt.Errorf("enquiry %s is %s: %w", id, it.Status, domain.ErrInvalidTransition)
	}
	if err != nil {
		return fmt.Errorf("update enquiry failed: %w", err)
	}
	return nil
}
