package store

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/spacesedan/quiznox/internal/apperr"
)

// DynamoDBAPI is the subset of *dynamodb.Client used here.
type DynamoDBAPI interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

var _ Client = (*DynamoDB)(nil)

type DynamoDB struct {
	client DynamoDBAPI
	logger *slog.Logger
}

func NewDynamoDB(client DynamoDBAPI, logger *slog.Logger) *DynamoDB {
	if logger == nil {
		logger = slog.Default()
	}
	return &DynamoDB{client: client, logger: logger}
}

func (d *DynamoDB) Query(ctx context.Context, in QueryInput) (Page, error) {
	keyCond := expression.Key(in.PartitionKey).Equal(expression.Value(in.PartitionValue))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return Page{}, apperr.Unexpected("DynamoDB.Query", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(in.Table),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(!in.Descending),
	}
	if len(in.StartKey) > 0 {
		input.ExclusiveStartKey = in.StartKey
	}
	if in.Limit > 0 {
		input.Limit = aws.Int32(in.Limit)
	}

	out, err := d.client.Query(ctx, input)
	if err != nil {
		d.logger.Error("[DynamoDB] Query failed",
			slog.String("table", in.Table),
			slog.String("partition", in.PartitionValue),
			slog.String("error", err.Error()))
		return Page{}, apperr.StoreUnavailable("DynamoDB.Query", in.Table+"/"+in.PartitionValue, err)
	}

	return Page{Items: out.Items, LastKey: out.LastEvaluatedKey}, nil
}

func (d *DynamoDB) Scan(ctx context.Context, in ScanInput) (Page, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(in.Table),
	}
	if len(in.StartKey) > 0 {
		input.ExclusiveStartKey = in.StartKey
	}
	if in.Limit > 0 {
		input.Limit = aws.Int32(in.Limit)
	}

	out, err := d.client.Scan(ctx, input)
	if err != nil {
		d.logger.Error("[DynamoDB] Scan failed",
			slog.String("table", in.Table),
			slog.String("error", err.Error()))
		return Page{}, apperr.StoreUnavailable("DynamoDB.Scan", in.Table, err)
	}

	return Page{Items: out.Items, LastKey: out.LastEvaluatedKey}, nil
}

func (d *DynamoDB) GetItem(ctx context.Context, table string, key Item) (Item, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key:       key,
	})
	if err != nil {
		d.logger.Error("[DynamoDB] GetItem failed",
			slog.String("table", table),
			slog.String("error", err.Error()))
		return nil, apperr.StoreUnavailable("DynamoDB.GetItem", table, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	return out.Item, nil
}

func (d *DynamoDB) PutItem(ctx context.Context, table string, item Item) error {
	_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      item,
	})
	if err != nil {
		d.logger.Error("[DynamoDB] PutItem failed",
			slog.String("table", table),
			slog.String("error", err.Error()))
		return apperr.StoreUnavailable("DynamoDB.PutItem", table, err)
	}
	return nil
}

func (d *DynamoDB) DeleteItem(ctx context.Context, table string, key Item) error {
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(table),
		Key:       key,
	})
	if err != nil {
		d.logger.Error("[DynamoDB] DeleteItem failed",
			slog.String("table", table),
			slog.String("error", err.Error()))
		return apperr.StoreUnavailable("DynamoDB.DeleteItem", table, err)
	}
	return nil
}
