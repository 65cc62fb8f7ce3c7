package cache

import (
	"context"
	"errors"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// MockDynamoDBClient implements DynamoDBAPI in memory for tests
type MockDynamoDBClient struct {
	mu     sync.RWMutex
	tables map[string]map[string]map[string]types.AttributeValue
}

// NewMockDynamoDBClient creates a new mock DynamoDB client
func NewMockDynamoDBClient() *MockDynamoDBClient {
	return &MockDynamoDBClient{
		tables: make(map[string]map[string]map[string]types.AttributeValue),
	}
}

var errMockTableNotFound = errors.New("mock dynamodb: table not found")

func hashKey(key map[string]types.AttributeValue) string {
	if s, ok := key["key"].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

// CreateTable mocks the CreateTable operation
func (m *MockDynamoDBClient) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tables[*params.TableName]; !ok {
		m.tables[*params.TableName] = make(map[string]map[string]types.AttributeValue)
	}
	return &dynamodb.CreateTableOutput{}, nil
}

// DescribeTable mocks the DescribeTable operation
func (m *MockDynamoDBClient) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.tables[*params.TableName]; !ok {
		return nil, errMockTableNotFound
	}
	return &dynamodb.DescribeTableOutput{}, nil
}

// GetItem mocks the GetItem operation
func (m *MockDynamoDBClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	table, ok := m.tables[*params.TableName]
	if !ok {
		return nil, errMockTableNotFound
	}
	return &dynamodb.GetItemOutput{Item: table[hashKey(params.Key)]}, nil
}

// PutItem mocks the PutItem operation
func (m *MockDynamoDBClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	table, ok := m.tables[*params.TableName]
	if !ok {
		return nil, errMockTableNotFound
	}
	table[hashKey(params.Item)] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

// DeleteItem mocks the DeleteItem operation
func (m *MockDynamoDBClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if table, ok := m.tables[*params.TableName]; ok {
		delete(table, hashKey(params.Key))
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

// ItemCount returns the number of items stored in table
func (m *MockDynamoDBClient) ItemCount(table string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables[table])
}
