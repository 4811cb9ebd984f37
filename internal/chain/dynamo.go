package chain

// dynamo.go implements Store on DynamoDB using a single-table design: every
// chain record lives at PK=CHAIN#{key}, SK=META, with a TTL attribute so the
// table self-cleans after ChainTTL. History is serialized as a
// zstd-compressed JSON blob to stay well under the DynamoDB item size limit
// even for long chains.

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

const (
	pkPrefix  = "CHAIN#"
	skMeta    = "META"
	attrHist  = "historyZstd"
	attrState = "stateKind"
)

// DynamoStore implements Store using AWS DynamoDB.
type DynamoStore struct {
	client    *dynamodb.Client
	tableName string
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
}

var _ Store = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given table.
// The client should be initialized from the shared AWS config.
func NewDynamoStore(client *dynamodb.Client, tableName string) *DynamoStore {
	// Default-level encoder; chain histories are small JSON and compress
	// well without the memory cost of the highest levels.
	enc, _ := zstd.NewWriter(nil)
	dec, _ := zstd.NewReader(nil)
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		encoder:   enc,
		decoder:   dec,
	}
}

func chainPK(key string) string {
	return pkPrefix + key
}

// expiresAt returns the Unix epoch timestamp for record expiration.
func expiresAt() int64 {
	return time.Now().Add(ChainTTL).Unix()
}

// Get reads the chain for key. Returns (nil, nil) if absent.
func (s *DynamoStore) Get(ctx context.Context, key string) (*Chain, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: chainPK(key)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem PK=%s: %w", chainPK(key), err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var c Chain
	if err := attributevalue.UnmarshalMap(result.Item, &c); err != nil {
		return nil, fmt.Errorf("unmarshal chain %s: %w", key, err)
	}
	c.Key = key

	if blob, ok := result.Item[attrHist].(*types.AttributeValueMemberB); ok {
		history, err := s.decodeHistory(blob.Value)
		if err != nil {
			// A corrupt history blob loses history, never the background
			// state; log and continue with what unmarshalled.
			log.Error().Err(err).Str("key", key).Msg("Failed to decode chain history blob")
		} else {
			c.History = history
		}
	}
	return &c, nil
}

// Put writes the chain with full-item replacement and a refreshed TTL.
func (s *DynamoStore) Put(ctx context.Context, c *Chain) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal chain %s: %w", c.Key, err)
	}

	blob, err := s.encodeHistory(c.History)
	if err != nil {
		return fmt.Errorf("encode history for %s: %w", c.Key, err)
	}

	item["PK"] = &types.AttributeValueMemberS{Value: chainPK(c.Key)}
	item["SK"] = &types.AttributeValueMemberS{Value: skMeta}
	item[attrHist] = &types.AttributeValueMemberB{Value: blob}
	item[attrState] = &types.AttributeValueMemberS{Value: string(c.Background.Kind)}
	item["expiresAt"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt(), 10)}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s: %w", chainPK(c.Key), err)
	}
	return nil
}

// Delete removes the chain record for key.
func (s *DynamoStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: chainPK(key)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
	})
	if err != nil {
		return fmt.Errorf("DeleteItem PK=%s: %w", chainPK(key), err)
	}
	return nil
}

// Keys scans the table and returns every stored canonical chain key.
// Chain tables stay small (one record per active image lineage, TTL-pruned),
// so a paginated scan with a keys-only projection is acceptable here.
func (s *DynamoStore) Keys(ctx context.Context) ([]string, error) {
	input := &dynamodb.ScanInput{
		TableName:            &s.tableName,
		ProjectionExpression: aws.String("PK"),
		FilterExpression:     aws.String("begins_with(PK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":prefix": &types.AttributeValueMemberS{Value: pkPrefix},
		},
	}

	var keys []string
	for {
		result, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("scan chain keys: %w", err)
		}
		for _, item := range result.Items {
			if pk, ok := item["PK"].(*types.AttributeValueMemberS); ok {
				keys = append(keys, strings.TrimPrefix(pk.Value, pkPrefix))
			}
		}
		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	return keys, nil
}

// MostRecentExplicit scans for chains in the explicit state and returns the
// most recently updated one, or (nil, nil) if none qualifies.
func (s *DynamoStore) MostRecentExplicit(ctx context.Context) (*Chain, error) {
	input := &dynamodb.ScanInput{
		TableName:        &s.tableName,
		FilterExpression: aws.String("begins_with(PK, :prefix) AND " + attrState + " = :explicit"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":prefix":   &types.AttributeValueMemberS{Value: pkPrefix},
			":explicit": &types.AttributeValueMemberS{Value: string(StateExplicit)},
		},
	}

	var best *Chain
	for {
		result, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("scan explicit chains: %w", err)
		}
		for _, item := range result.Items {
			var c Chain
			if err := attributevalue.UnmarshalMap(item, &c); err != nil {
				continue
			}
			if pk, ok := item["PK"].(*types.AttributeValueMemberS); ok {
				c.Key = strings.TrimPrefix(pk.Value, pkPrefix)
			}
			if best == nil || c.UpdatedAt.After(best.UpdatedAt) {
				cp := c
				best = &cp
			}
		}
		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	return best, nil
}

// --- History blob codec ---

func (s *DynamoStore) encodeHistory(history []HistoryEntry) ([]byte, error) {
	if len(history) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(history)
	if err != nil {
		return nil, fmt.Errorf("marshal history: %w", err)
	}
	return s.encoder.EncodeAll(raw, nil), nil
}

func (s *DynamoStore) decodeHistory(blob []byte) ([]HistoryEntry, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	raw, err := s.decoder.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	var history []HistoryEntry
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, fmt.Errorf("unmarshal history: %w", err)
	}
	return history, nil
}
