package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/example/storefront-cart/internal/cart"
	"github.com/example/storefront-cart/internal/coupon"
)

const (
	recordItems  = "items"
	recordCoupon = "coupon"
)

// DynamoStore persists carts in DynamoDB, one item per record kind
// under a composite (cart_id, record) key. Used for serverless
// deployments where no relational database is provisioned.
type DynamoStore struct {
	client    *dynamodb.Client
	tableName string
	cartID    string
}

// dynamoRecord is the DynamoDB item structure. Data holds the
// serialized line items or applied coupon as a JSON string.
type dynamoRecord struct {
	CartID    string `dynamodbav:"cart_id"`
	Record    string `dynamodbav:"record"`
	Data      string `dynamodbav:"data"`
	UpdatedAt string `dynamodbav:"updated_at"`
}

func NewDynamoStore(client *dynamodb.Client, tableName, cartID string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName, cartID: cartID}
}

func (s *DynamoStore) Load(ctx context.Context) ([]cart.LineItem, error) {
	data, err := s.get(ctx, recordItems)
	if err != nil {
		log.Printf("[Store] Failed to load cart %s from DynamoDB: %v", s.cartID, err)
		return nil, nil
	}
	if data == "" {
		return nil, nil
	}
	var items []cart.LineItem
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		log.Printf("[Store] Corrupt cart record %s, starting empty: %v", s.cartID, err)
		return nil, nil
	}
	return items, nil
}

func (s *DynamoStore) Save(ctx context.Context, items []cart.LineItem) error {
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return s.put(ctx, recordItems, string(data))
}

func (s *DynamoStore) Upsert(ctx context.Context, item cart.LineItem, increment bool) ([]cart.LineItem, error) {
	current, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	items, err := cart.Upsert(current, item, increment)
	if err != nil {
		return current, err
	}
	if err := s.Save(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *DynamoStore) Remove(ctx context.Context, id string) ([]cart.LineItem, error) {
	current, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	items := cart.Remove(current, id)
	if err := s.Save(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *DynamoStore) Clear(ctx context.Context) error {
	return s.delete(ctx, recordItems)
}

func (s *DynamoStore) AppliedCoupon(ctx context.Context) (*coupon.AppliedCouponDetails, error) {
	data, err := s.get(ctx, recordCoupon)
	if err != nil {
		return nil, err
	}
	if data == "" {
		return nil, nil
	}
	var details coupon.AppliedCouponDetails
	if err := json.Unmarshal([]byte(data), &details); err != nil {
		log.Printf("[Store] Corrupt applied coupon for cart %s, clearing: %v", s.cartID, err)
		return nil, nil
	}
	return &details, nil
}

func (s *DynamoStore) SaveAppliedCoupon(ctx context.Context, details *coupon.AppliedCouponDetails) error {
	if details == nil {
		return s.ClearAppliedCoupon(ctx)
	}
	data, err := json.Marshal(details)
	if err != nil {
		return err
	}
	return s.put(ctx, recordCoupon, string(data))
}

func (s *DynamoStore) ClearAppliedCoupon(ctx context.Context) error {
	return s.delete(ctx, recordCoupon)
}

func (s *DynamoStore) get(ctx context.Context, record string) (string, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       s.key(record),
	})
	if err != nil {
		return "", fmt.Errorf("get %s record: %w", record, err)
	}
	if out.Item == nil {
		return "", nil
	}
	var rec dynamoRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return "", fmt.Errorf("unmarshal %s record: %w", record, err)
	}
	return rec.Data, nil
}

func (s *DynamoStore) put(ctx context.Context, record, data string) error {
	av, err := attributevalue.MarshalMap(dynamoRecord{
		CartID:    s.cartID,
		Record:    record,
		Data:      data,
		UpdatedAt: time.Now().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", record, err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("put %s record: %w", record, err)
	}
	return nil
}

func (s *DynamoStore) delete(ctx context.Context, record string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       s.key(record),
	})
	if err != nil {
		return fmt.Errorf("delete %s record: %w", record, err)
	}
	return nil
}

func (s *DynamoStore) key(record string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"cart_id": &types.AttributeValueMemberS{Value: s.cartID},
		"record":  &types.AttributeValueMemberS{Value: record},
	}
}
