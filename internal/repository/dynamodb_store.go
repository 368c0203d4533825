package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"jertine-site/internal/domain"
)

const (
	skWindow = "WINDOW#"

	// incrAttempts bounds the update/create race between instances.
	incrAttempts = 3
)

// dynamodbAPI is the minimal DynamoDB interface required by DynamoStore.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoStore keeps rate records in a DynamoDB table. The ttl attribute lets
// DynamoDB TTL remove finished windows.
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// NewDynamoStore creates a store over the given table.
func NewDynamoStore(api dynamodbAPI, tableName string) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &DynamoStore{api: api, tableName: tableName, now: time.Now}, nil
}

// ratePK returns the partition key for a client key.
func ratePK(key string) string {
	return "RATE#" + key
}

func (s *DynamoStore) itemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: ratePK(key)},
		"SK": &types.AttributeValueMemberS{Value: skWindow},
	}
}

// Get reads the record with a strongly consistent read. Items past resetAt
// that TTL has not removed yet are reported as absent.
func (s *DynamoStore) Get(ctx context.Context, key string) (domain.RateRecord, bool, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.RateRecord{}, false, fmt.Errorf("repository: Get get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.RateRecord{}, false, nil
	}

	rec, err := decodeRateItem(out.Item)
	if err != nil {
		return domain.RateRecord{}, false, fmt.Errorf("repository: Get: %w", err)
	}
	if rec.Expired(s.now()) {
		return domain.RateRecord{}, false, nil
	}
	return rec, true, nil
}

// Incr bumps count with a conditional UpdateItem while the window is open. If
// there is no open window it starts one with a conditional PutItem; losing
// that race to another instance sends it back to the update.
func (s *DynamoStore) Incr(ctx context.Context, key string, now time.Time, window time.Duration) (domain.RateRecord, error) {
	nowMs := &types.AttributeValueMemberN{Value: strconv.FormatInt(now.UnixMilli(), 10)}

	for i := 0; i < incrAttempts; i++ {
		out, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 aws.String(s.tableName),
			Key:                       s.itemKey(key),
			UpdateExpression:          aws.String("ADD #count :one"),
			ConditionExpression:       aws.String("attribute_exists(PK) AND #resetAt >= :now"),
			ExpressionAttributeNames:  map[string]string{"#count": "count", "#resetAt": "resetAt"},
			ExpressionAttributeValues: map[string]types.AttributeValue{":one": &types.AttributeValueMemberN{Value: "1"}, ":now": nowMs},
			ReturnValues:              types.ReturnValueAllNew,
		})
		if err == nil {
			rec, err := decodeRateItem(out.Attributes)
			if err != nil {
				return domain.RateRecord{}, fmt.Errorf("repository: Incr: %w", err)
			}
			return rec, nil
		}
		if !isConditionFailed(err) {
			return domain.RateRecord{}, fmt.Errorf("repository: Incr update item: %w", err)
		}

		rec := domain.RateRecord{Count: 1, ResetAt: now.Add(window)}
		_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:                 aws.String(s.tableName),
			Item:                      s.rateItem(key, rec),
			ConditionExpression:       aws.String("attribute_not_exists(PK) OR #resetAt < :now"),
			ExpressionAttributeNames:  map[string]string{"#resetAt": "resetAt"},
			ExpressionAttributeValues: map[string]types.AttributeValue{":now": nowMs},
		})
		if err == nil {
			return rec, nil
		}
		if !isConditionFailed(err) {
			return domain.RateRecord{}, fmt.Errorf("repository: Incr put item: %w", err)
		}
	}
	return domain.RateRecord{}, fmt.Errorf("repository: Incr %q: contention after %d attempts", key, incrAttempts)
}

// Set writes or replaces the record.
func (s *DynamoStore) Set(ctx context.Context, key string, rec domain.RateRecord) error {
	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      s.rateItem(key, rec),
	})
	if err != nil {
		return fmt.Errorf("repository: Set: %w", err)
	}
	return nil
}

func (s *DynamoStore) Delete(ctx context.Context, key string) error {
	_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       s.itemKey(key),
	})
	if err != nil {
		return fmt.Errorf("repository: Delete: %w", err)
	}
	return nil
}

func (s *DynamoStore) rateItem(key string, rec domain.RateRecord) map[string]types.AttributeValue {
	item := s.itemKey(key)
	item["count"] = &types.AttributeValueMemberN{Value: strconv.Itoa(rec.Count)}
	item["resetAt"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.ResetAt.UnixMilli(), 10)}
	item["ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.ResetAt.Unix()+1, 10)}
	return item
}

func decodeRateItem(item map[string]types.AttributeValue) (domain.RateRecord, error) {
	count, err := intAttr(item, "count")
	if err != nil {
		return domain.RateRecord{}, fmt.Errorf("decode count: %w", err)
	}
	resetMs, err := intAttr(item, "resetAt")
	if err != nil {
		return domain.RateRecord{}, fmt.Errorf("decode resetAt: %w", err)
	}
	return domain.RateRecord{Count: count, ResetAt: time.UnixMilli(int64(resetMs))}, nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
