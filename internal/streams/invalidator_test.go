package streams

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTarget struct {
	mu     sync.Mutex
	topics []string
	tables []string
	fail   map[string]error
}

func (r *recordingTarget) InvalidateTopic(_ context.Context, topicID, table string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail[topicID]; err != nil {
		return err
	}
	r.topics = append(r.topics, topicID)
	r.tables = append(r.tables, table)
	return nil
}

func (r *recordingTarget) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.topics...)
}

func keyRecord(id, topic, number string) events.DynamoDBEventRecord {
	return events.DynamoDBEventRecord{
		EventID:   id,
		EventName: "MODIFY",
		Change: events.DynamoDBStreamRecord{
			Keys: map[string]events.DynamoDBAttributeValue{
				"topic_id":        events.NewStringAttribute(topic),
				"question_number": events.NewStringAttribute(number),
			},
		},
	}
}

func TestHandleEvent_InvalidatesEachTopicOnce(t *testing.T) {
	target := &recordingTarget{}
	inv := NewInvalidator(target, "QuizNox_Questions", nil)

	err := inv.HandleEvent(context.Background(), events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		keyRecord("1", "aws", "0001"),
		keyRecord("2", "aws", "0002"),
		keyRecord("3", "gcp", "0001"),
		{EventID: "4", EventName: "REMOVE", Change: events.DynamoDBStreamRecord{
			OldImage: map[string]events.DynamoDBAttributeValue{
				"topic_id":        events.NewStringAttribute("azure"),
				"question_number": events.NewStringAttribute("0009"),
				"choices":         events.NewListAttribute([]events.DynamoDBAttributeValue{events.NewStringAttribute("A")}),
			},
		}},
		{EventID: "5", EventName: "INSERT"},
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"aws", "gcp", "azure"}, target.seen())
	assert.Equal(t, []string{"QuizNox_Questions", "QuizNox_Questions", "QuizNox_Questions"}, target.tables)
}

func TestHandleEvent_FailureFailsBatch(t *testing.T) {
	boom := errors.New("cache down")
	target := &recordingTarget{fail: map[string]error{"aws": boom}}
	inv := NewInvalidator(target, "", nil)

	err := inv.HandleEvent(context.Background(), events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		keyRecord("1", "aws", "0001"),
		keyRecord("2", "gcp", "0001"),
	}})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"gcp"}, target.seen())
}

type fakeBatch struct {
	records []types.Record
	err     error
}

func batch(records ...types.Record) fakeBatch { return fakeBatch{records: records} }

// fakeStreams serves one batch per GetRecords call and closes a shard when
// its batches run out. Shards in children are listed once any shard closed.
type fakeStreams struct {
	mu        sync.Mutex
	shards    []types.Shard
	children  []types.Shard
	batches   map[string][]fakeBatch
	iterators map[string][]types.ShardIteratorType
	after     []string
	closed    []string
}

func newFakeStreams(shards ...types.Shard) *fakeStreams {
	return &fakeStreams{
		shards:    shards,
		batches:   make(map[string][]fakeBatch),
		iterators: make(map[string][]types.ShardIteratorType),
	}
}

func openShard(id, parent string) types.Shard {
	s := types.Shard{ShardId: aws.String(id), SequenceNumberRange: &types.SequenceNumberRange{StartingSequenceNumber: aws.String("1")}}
	if parent != "" {
		s.ParentShardId = aws.String(parent)
	}
	return s
}

func (f *fakeStreams) ListStreams(_ context.Context, in *dynamodbstreams.ListStreamsInput, _ ...func(*dynamodbstreams.Options)) (*dynamodbstreams.ListStreamsOutput, error) {
	if aws.ToString(in.TableName) != "QuizNox_Questions" {
		return &dynamodbstreams.ListStreamsOutput{}, nil
	}
	return &dynamodbstreams.ListStreamsOutput{Streams: []types.Stream{{StreamArn: aws.String("arn:stream")}}}, nil
}

func (f *fakeStreams) DescribeStream(context.Context, *dynamodbstreams.DescribeStreamInput, ...func(*dynamodbstreams.Options)) (*dynamodbstreams.DescribeStreamOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	shards := append([]types.Shard(nil), f.shards...)
	if len(f.closed) > 0 {
		shards = append(shards, f.children...)
	}
	return &dynamodbstreams.DescribeStreamOutput{StreamDescription: &types.StreamDescription{Shards: shards}}, nil
}

func (f *fakeStreams) GetShardIterator(_ context.Context, in *dynamodbstreams.GetShardIteratorInput, _ ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetShardIteratorOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := aws.ToString(in.ShardId)
	if _, ok := f.batches[id]; !ok {
		return nil, errors.New("unexpected shard " + id)
	}
	f.iterators[id] = append(f.iterators[id], in.ShardIteratorType)
	if in.SequenceNumber != nil {
		f.after = append(f.after, *in.SequenceNumber)
	}
	return &dynamodbstreams.GetShardIteratorOutput{ShardIterator: aws.String(id)}, nil
}

func (f *fakeStreams) GetRecords(_ context.Context, in *dynamodbstreams.GetRecordsInput, _ ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetRecordsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := aws.ToString(in.ShardIterator)
	batches := f.batches[id]
	if len(batches) == 0 {
		f.closed = append(f.closed, id)
		return &dynamodbstreams.GetRecordsOutput{}, nil
	}
	next := batches[0]
	f.batches[id] = batches[1:]
	if next.err != nil {
		return nil, next.err
	}
	return &dynamodbstreams.GetRecordsOutput{Records: next.records, NextShardIterator: aws.String(id)}, nil
}

func streamRecord(seq, topic string) types.Record {
	return types.Record{
		EventID:   aws.String(seq),
		EventName: types.OperationTypeModify,
		Dynamodb: &types.StreamRecord{
			SequenceNumber: aws.String(seq),
			Keys: map[string]types.AttributeValue{
				"topic_id":        &types.AttributeValueMemberS{Value: topic},
				"question_number": &types.AttributeValueMemberS{Value: "0001"},
			},
		},
	}
}

func TestWatch_InvalidatesUntilShardCloses(t *testing.T) {
	target := &recordingTarget{}
	inv := NewInvalidator(target, "", nil)
	client := newFakeStreams(
		openShard("open", ""),
		types.Shard{ShardId: aws.String("closed"), SequenceNumberRange: &types.SequenceNumberRange{EndingSequenceNumber: aws.String("9")}},
	)
	client.batches["open"] = []fakeBatch{
		batch(streamRecord("1", "aws"), streamRecord("2", "aws")),
		batch(),
		batch(streamRecord("3", "gcp"), types.Record{EventID: aws.String("no-image")}),
	}

	err := inv.watch(context.Background(), client, "QuizNox_Questions", time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []string{"open"}, client.closed)
	assert.Equal(t, []string{"aws", "gcp"}, target.seen())
	assert.Equal(t, []types.ShardIteratorType{types.ShardIteratorTypeLatest}, client.iterators["open"])
}

func TestWatch_FollowsChildShards(t *testing.T) {
	target := &recordingTarget{}
	inv := NewInvalidator(target, "", nil)
	client := newFakeStreams(openShard("shard-0", ""))
	client.children = []types.Shard{openShard("shard-1", "shard-0")}
	client.batches["shard-0"] = []fakeBatch{batch(streamRecord("1", "aws"))}
	client.batches["shard-1"] = []fakeBatch{batch(streamRecord("2", "gcp"))}

	err := inv.watch(context.Background(), client, "QuizNox_Questions", time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []string{"shard-0", "shard-1"}, client.closed)
	assert.Equal(t, []string{"aws", "gcp"}, target.seen())
	assert.Equal(t, []types.ShardIteratorType{types.ShardIteratorTypeTrimHorizon}, client.iterators["shard-1"])
}

func TestWatch_ResumesAfterReadFailure(t *testing.T) {
	target := &recordingTarget{}
	inv := NewInvalidator(target, "", nil)
	client := newFakeStreams(openShard("shard-0", ""))
	client.batches["shard-0"] = []fakeBatch{
		batch(streamRecord("41", "aws")),
		{err: errors.New("iterator expired")},
		batch(streamRecord("42", "gcp")),
	}

	err := inv.watch(context.Background(), client, "QuizNox_Questions", time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []string{"aws", "gcp"}, target.seen())
	assert.Equal(t, []types.ShardIteratorType{
		types.ShardIteratorTypeLatest,
		types.ShardIteratorTypeAfterSequenceNumber,
	}, client.iterators["shard-0"])
	assert.Equal(t, []string{"41"}, client.after)
}

func TestWatch_StopsOnCancel(t *testing.T) {
	inv := NewInvalidator(&recordingTarget{}, "", nil)
	client := newFakeStreams(openShard("open", ""))
	for range 1000 {
		client.batches["open"] = append(client.batches["open"], batch())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := inv.watch(ctx, client, "QuizNox_Questions", 5*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWatch_NoStream(t *testing.T) {
	inv := NewInvalidator(&recordingTarget{}, "", nil)
	err := inv.Watch(context.Background(), newFakeStreams(), "other")
	assert.ErrorIs(t, err, ErrNoStream)
}
