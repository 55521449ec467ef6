package store

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/spacesedan/quiznox/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDynamoDB struct {
	DynamoDBAPI

	queryInput *dynamodb.QueryInput
	queryOut   *dynamodb.QueryOutput
	getOut     *dynamodb.GetItemOutput
	err        error
}

func (f *fakeDynamoDB) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queryInput = in
	if f.err != nil {
		return nil, f.err
	}
	return f.queryOut, nil
}

func (f *fakeDynamoDB) GetItem(_ context.Context, _ *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.getOut, nil
}

func TestDynamoDBQueryBuildsKeyCondition(t *testing.T) {
	fake := &fakeDynamoDB{queryOut: &dynamodb.QueryOutput{
		Items:            []map[string]types.AttributeValue{{"topic_id": S("AWS_DVA")}},
		LastEvaluatedKey: map[string]types.AttributeValue{"topic_id": S("AWS_DVA"), "question_number": S("0001")},
	}}
	d := NewDynamoDB(fake, nil)

	page, err := d.Query(context.Background(), QueryInput{
		Table:          "QuizNox_Questions",
		PartitionKey:   "topic_id",
		PartitionValue: "AWS_DVA",
		StartKey:       Item{"topic_id": S("AWS_DVA"), "question_number": S("0000")},
		Limit:          25,
	})
	require.NoError(t, err)

	in := fake.queryInput
	require.NotNil(t, in)
	assert.Equal(t, "QuizNox_Questions", *in.TableName)
	assert.True(t, *in.ScanIndexForward)
	assert.EqualValues(t, 25, *in.Limit)
	assert.NotEmpty(t, *in.KeyConditionExpression)
	assert.Contains(t, in.ExpressionAttributeNames, "#0")
	assert.Equal(t, "topic_id", in.ExpressionAttributeNames["#0"])
	assert.Equal(t, S("AWS_DVA"), in.ExpressionAttributeValues[":0"])
	assert.NotNil(t, in.ExclusiveStartKey)

	assert.Len(t, page.Items, 1)
	assert.True(t, page.HasMore())
}

func TestDynamoDBQueryWrapsFailure(t *testing.T) {
	boom := errors.New("ProvisionedThroughputExceededException")
	d := NewDynamoDB(&fakeDynamoDB{err: boom}, nil)

	_, err := d.Query(context.Background(), QueryInput{Table: "t", PartitionKey: "topic_id", PartitionValue: "x"})
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
	assert.ErrorIs(t, err, boom)
}

func TestDynamoDBGetItemAbsent(t *testing.T) {
	d := NewDynamoDB(&fakeDynamoDB{getOut: &dynamodb.GetItemOutput{}}, nil)

	item, err := d.GetItem(context.Background(), "t", Item{"review_id": S("r1")})
	require.NoError(t, err)
	assert.Nil(t, item)
}
