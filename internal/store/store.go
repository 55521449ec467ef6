// Package store is the narrow key-value store contract the data-access layer
// is written against, with a DynamoDB implementation and an in-memory one.
package store

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Item is one stored record in DynamoDB attribute form.
type Item = map[string]types.AttributeValue

// Page is one response of a paged read. LastKey is the continuation token;
// nil means the read is exhausted.
type Page struct {
	Items   []Item
	LastKey Item
}

func (p Page) HasMore() bool { return len(p.LastKey) > 0 }

// QueryInput selects one partition by key equality.
type QueryInput struct {
	Table          string
	PartitionKey   string
	PartitionValue string
	StartKey       Item
	Descending     bool
	Limit          int32
}

type ScanInput struct {
	Table    string
	StartKey Item
	Limit    int32
}

// Client is safe for concurrent use.
type Client interface {
	Query(ctx context.Context, in QueryInput) (Page, error)
	Scan(ctx context.Context, in ScanInput) (Page, error)
	// GetItem returns nil, nil when no item has the key.
	GetItem(ctx context.Context, table string, key Item) (Item, error)
	PutItem(ctx context.Context, table string, item Item) error
	DeleteItem(ctx context.Context, table string, key Item) error
}

// S builds a string attribute.
func S(v string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: v}
}
