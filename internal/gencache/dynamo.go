package gencache

// dynamo.go implements Cache on the same single-table layout the chain store
// uses: PK=IMAGE#{canonicalKey}, SK=META, with a TTL attribute so stale
// generation records expire together with their chains.

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/fpang/design-refine/internal/chain"
)

const (
	pkPrefix = "IMAGE#"
	skMeta   = "META"
)

// DynamoCache implements Cache using AWS DynamoDB.
type DynamoCache struct {
	client    *dynamodb.Client
	tableName string
}

var _ Cache = (*DynamoCache)(nil)

// NewDynamoCache creates a DynamoCache for the given table. The client
// should be initialized from the shared AWS config.
func NewDynamoCache(client *dynamodb.Client, tableName string) *DynamoCache {
	return &DynamoCache{client: client, tableName: tableName}
}

func imagePK(imageURL string) string {
	return pkPrefix + chain.CanonicalKey(imageURL)
}

// Get reads the generation record for imageURL. Returns (nil, nil) if absent.
func (c *DynamoCache) Get(ctx context.Context, imageURL string) (*Record, error) {
	pk := imagePK(imageURL)
	result, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &c.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem PK=%s: %w", pk, err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var rec Record
	if err := attributevalue.UnmarshalMap(result.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal generation record %s: %w", imageURL, err)
	}
	rec.ImageURL = imageURL
	return &rec, nil
}

// Put writes the record with full-item replacement and a refreshed TTL.
func (c *DynamoCache) Put(ctx context.Context, rec *Record) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal generation record %s: %w", rec.ImageURL, err)
	}

	pk := imagePK(rec.ImageURL)
	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: skMeta}
	item["expiresAt"] = &types.AttributeValueMemberN{
		Value: strconv.FormatInt(time.Now().Add(RecordTTL).Unix(), 10),
	}

	_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &c.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s: %w", pk, err)
	}
	return nil
}
