package cache

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/ammiranda/tree_changelist/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const defaultTableName = "TreeChangelistCache"

// DynamoDBAPI defines the interface for DynamoDB operations
type DynamoDBAPI interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// CacheItem is one cached listing as stored in the table
type CacheItem struct {
	Key       string         `dynamodbav:"key"`
	Data      []*models.Node `dynamodbav:"data"`
	Timestamp int64          `dynamodbav:"timestamp"`
	TTL       int64          `dynamodbav:"ttl"`
}

// DynamoDBCache implements CacheProvider using DynamoDB
type DynamoDBCache struct {
	client    DynamoDBAPI
	tableName string
	cacheTTL  time.Duration
}

// NewDynamoDBCache creates a new DynamoDB cache provider. The table name is
// read from DYNAMODB_CACHE_TABLE.
func NewDynamoDBCache(ctx context.Context) (*DynamoDBCache, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return NewDynamoDBCacheWithClient(dynamodb.NewFromConfig(cfg)), nil
}

// NewDynamoDBCacheWithClient creates a new DynamoDB cache provider with a custom client
func NewDynamoDBCacheWithClient(client DynamoDBAPI) *DynamoDBCache {
	tableName := os.Getenv("DYNAMODB_CACHE_TABLE")
	if tableName == "" {
		tableName = defaultTableName
	}
	return &DynamoDBCache{
		client:    client,
		tableName: tableName,
		cacheTTL:  DefaultTTL,
	}
}

func (c *DynamoDBCache) itemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"key": &types.AttributeValueMemberS{Value: key},
	}
}

// Initialize creates the DynamoDB table if it doesn't exist
func (c *DynamoDBCache) Initialize(ctx context.Context) error {
	_, err := c.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(c.tableName),
	})
	if err == nil {
		return nil
	}

	_, err = c.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(c.tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String("key"),
				AttributeType: types.ScalarAttributeTypeS,
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String("key"),
				KeyType:       types.KeyTypeHash,
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	return err
}

// GetNodes retrieves the listing from DynamoDB if available and not expired
func (c *DynamoDBCache) GetNodes(ctx context.Context, key string) ([]*models.Node, bool) {
	result, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key:       c.itemKey(key),
	})
	if err != nil || result.Item == nil {
		return nil, false
	}

	var item CacheItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, false
	}

	// table TTL deletion is lazy, so expiry is checked here as well
	if time.Now().Unix() > item.TTL {
		if err := c.InvalidateCache(ctx, key); err != nil {
			slog.WarnContext(ctx, "failed to delete expired cache item", "key", key, "error", err)
		}
		return nil, false
	}

	return item.Data, true
}

// SetNodes stores the listing in DynamoDB
func (c *DynamoDBCache) SetNodes(ctx context.Context, key string, nodes []*models.Node) {
	now := time.Now()
	item := CacheItem{
		Key:       key,
		Data:      nodes,
		Timestamp: now.Unix(),
		TTL:       now.Add(c.cacheTTL).Unix(),
	}

	av, err := attributevalue.MarshalMap(item)
	if err == nil {
		_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(c.tableName),
			Item:      av,
		})
	}
	if err != nil {
		// a stale listing must not survive a failed write
		slog.WarnContext(ctx, "failed to store cache item", "key", key, "error", err)
		if err := c.InvalidateCache(ctx, key); err != nil {
			slog.WarnContext(ctx, "failed to invalidate cache item", "key", key, "error", err)
		}
	}
}

// InvalidateCache removes the listing from DynamoDB
func (c *DynamoDBCache) InvalidateCache(ctx context.Context, key string) error {
	_, err := c.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.tableName),
		Key:       c.itemKey(key),
	})
	return err
}

// SetCacheTTL sets the cache time-to-live duration
func (c *DynamoDBCache) SetCacheTTL(ttl time.Duration) {
	c.cacheTTL = ttl
}
