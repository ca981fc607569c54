package dynamo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"carmarket/internal/domain"
	"carmarket/internal/validate"
)

// CarStore keeps the catalog in one table keyed by car id.
type CarStore struct {
	api   API
	table string
}

func NewCarStore(api API, table string) *CarStore {
	return &CarStore{api: api, table: table}
}

func (s *CarStore) CreateCar(ctx context.Context, c domain.Car) error {
	av, err := attributevalue.MarshalMap(toCarItem(c))
	if err != nil {
		return fmt.Errorf("marshal car: %w", err)
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.table),
		Item:                     av,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": "id"},
	})
	if _, ok := conditionFailed(err); ok {
		return fmt.Errorf("car %s: %w", c.ID, domain.Invalid("id", "already exists"))
	}
	if err != nil {
		return fmt.Errorf("dynamodb PutItem failed: %w", err)
	}
	return nil
}

func (s *CarStore) GetCar(ctx context.Context, id string) (domain.Car, error) {
	var it carItem
	found, err := getItem(ctx, s.api, s.table, id, &it)
	if err != nil {
		return domain.Car{}, err
	}
	if !found {
		return domain.Car{}, fmt.Errorf("car %s: %w", id, domain.ErrNotFound)
	}
	return fromCarItem(it), nil
}

func (s *CarStore) ListCars(ctx context.Context) ([]domain.Car, error) {
	items, err := scanAll[carItem](ctx, s.api, &dynamodb.ScanInput{
		TableName:      aws.String(s.table),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Car, 0, len(items))
	for _, it := range items {
		out = append(out, fromCarItem(it))
	}
	newestFirst(out, func(c domain.Car) time.Time { return c.CreatedAt }, func(c domain.Car) string { return c.ID })
	return out, nil
}

func (s *CarStore) UpdateCar(ctx context.Context, c domain.Car) error {
	it := toCarItem(c)
	images, err := attributevalue.Marshal(it.Images)
	if err != nil {
		return fmt.Errorf("marshal images: %w", err)
	}
	return s.update(ctx, c.ID,
		"SET #brand = :brand, #model = :model, #year = :year, #price = :price, #desc = :desc, #images = :images, #updated_at = :now",
		map[string]string{
			"#brand": "brand", "#model": "model", "#year": "year", "#price": "price",
			"#desc": "description", "#images": "images", "#updated_at": "updated_at",
		},
		map[string]types.AttributeValue{
			":brand":  str(it.Brand),
			":model":  str(it.Model),
			":year":   num(it.Year),
			":price":  &types.AttributeValueMemberN{Value: strconv.FormatFloat(it.Price, 'f', -1, 64)},
			":desc":   str(it.Description),
			":images": images,
			":now":    str(it.UpdatedAt),
		})
}

func (s *CarStore) DeleteCar(ctx context.Context, id string) error {
	_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(s.table),
		Key:                      idKey(id),
		ConditionExpression:      aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": "id"},
	})
	if _, ok := conditionFailed(err); ok {
		return fmt.Errorf("car %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("dynamodb DeleteItem failed: %w", err)
	}
	return nil
}

// AdjustStock adds delta under the condition :floor <= stock <= :ceil, so the
// counter stays within [0, MaxStock].
func (s *CarStore) AdjustStock(ctx context.Context, id string, delta int, at time.Time) (int, error) {
	if !validate.StockDelta(delta) {
		return 0, domain.Invalid("delta", "out of range")
	}
	out, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.table),
		Key:                 idKey(id),
		UpdateExpression:    aws.String("SET #stock = #stock + :delta, #updated_at = :now"),
		ConditionExpression: aws.String("attribute_exists(#id) AND #stock BETWEEN :floor AND :ceil"),
		ExpressionAttributeNames: map[string]string{
			"#id": "id", "#stock": "stock", "#updated_at": "updated_at",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":delta": num(delta),
			":floor": num(-delta),
			":ceil":  num(domain.MaxStock - delta),
			":now":   str(fmtTime(at)),
		},
		ReturnValues:                        types.ReturnValueUpdatedNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if old, ok := conditionFailed(err); ok {
		if len(old) == 0 {
			return 0, fmt.Errorf("car %s: %w", id, domain.ErrNotFound)
		}
		var cur carItem
		if err := attributevalue.UnmarshalMap(old, &cur); err != nil {
			return 0, fmt.Errorf("unmarshal car: %w", err)
		}
		if cur.Stock+delta < 0 {
			return 0, fmt.Errorf("car %s: %w", id, domain.ErrOutOfStock)
		}
		return 0, domain.Invalid("delta", fmt.Sprintf("stock would exceed %d", domain.MaxStock))
	}
	if err != nil {
		return 0, fmt.Errorf("adjust stock failed: %w", err)
	}
	var res struct {
		Stock int `dynamodbav:"stock"`
	}
	if err := attributevalue.UnmarshalMap(out.Attributes, &res); err != nil {
		return 0, fmt.Errorf("unmarshal stock: %w", err)
	}
	return res.Stock, nil
}

func (s *CarStore) SetStock(ctx context.Context, id string, n int, at time.Time) error {
	if !validate.Stock(n) {
		return domain.Invalid("stock", "out of range")
	}
	return s.update(ctx, id, "SET #stock = :n, #updated_at = :now",
		map[string]string{"#stock": "stock", "#updated_at": "updated_at"},
		map[string]types.AttributeValue{":n": num(n), ":now": str(fmtTime(at))})
}

func (s *CarStore) SetImages(ctx context.Context, id string, images []string, at time.Time) error {
	if images == nil {
		images = []string{}
	}
	av, err := attributevalue.Marshal(images)
	if err != nil {
		return fmt.Errorf("marshal images: %w", err)
	}
	return s.update(ctx, id, "SET #images = :images, #updated_at = :now",
		map[string]string{"#images": "images", "#updated_at": "updated_at"},
		map[string]types.AttributeValue{":images": av, ":now": str(fmtTime(at))})
}

func (s *CarStore) InventoryTotals(ctx context.Context) (domain.InventoryTotals, error) {
	items, err := scanAll[carItem](ctx, s.api, &dynamodb.ScanInput{
		TableName:                aws.String(s.table),
		ProjectionExpression:     aws.String("#id, #stock"),
		ExpressionAttributeNames: map[string]string{"#id": "id", "#stock": "stock"},
		ConsistentRead:           aws.Bool(true),
	})
	if err != nil {
		return domain.InventoryTotals{}, err
	}
	var t domain.InventoryTotals
	for _, it := range items {
		t.Cars++
		t.Units += it.Stock
	}
	return t, nil
}

// update runs a SET on an existing car; a missing car is ErrNotFound.
func (s *CarStore) update(ctx context.Context, id, expr string, names map[string]string, values map[string]types.AttributeValue) error {
	names["#id"] = "id"
	_, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       idKey(id),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if _, ok := conditionFailed(err); ok {
		return fmt.Errorf("car %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update car failed: %w", err)
	}
	return nil
}
