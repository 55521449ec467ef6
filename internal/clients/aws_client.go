package clients

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
)

type AWSConfig struct {
	Region string
	// Endpoint overrides the service endpoint, e.g. DynamoDB Local. Empty
	// uses the regional AWS endpoint.
	Endpoint string
}

type AWSClients struct {
	cfg      aws.Config
	endpoint string
}

func NewAWSClients(ctx context.Context, c AWSConfig) (*AWSClients, error) {
	slog.Info("[AWSClient] Initializing AWS Config...",
		slog.String("region", c.Region),
		slog.String("endpoint", c.Endpoint))

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(c.Region),
		config.WithRetryMaxAttempts(MAX_SDK_ATTEMPTS),
		config.WithAppID(APP_ID),
	)
	if err != nil {
		slog.Error("[AWSClient] Failed to load AWS config", slog.String("error", err.Error()))
		return nil, fmt.Errorf("[AWSClient] load config: %w", err)
	}

	slog.Info("[AWSClient] AWS Config Initialized")
	return &AWSClients{cfg: cfg, endpoint: c.Endpoint}, nil
}

func (a *AWSClients) DynamoDB() *dynamodb.Client {
	return dynamodb.NewFromConfig(a.cfg, func(o *dynamodb.Options) {
		if a.endpoint != "" {
			o.BaseEndpoint = aws.String(a.endpoint)
		}
	})
}

func (a *AWSClients) DynamoDBStreams() *dynamodbstreams.Client {
	return dynamodbstreams.NewFromConfig(a.cfg, func(o *dynamodbstreams.Options) {
		if a.endpoint != "" {
			o.BaseEndpoint = aws.String(a.endpoint)
		}
	})
}
