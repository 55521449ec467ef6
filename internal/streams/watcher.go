package streams

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	// consecutive read failures after which a shard poller gives up
	maxShardFailures = 10
	// DescribeStream attempts made to find the children of a closed shard
	maxChildLookups = 3
)

var ErrNoStream = errors.New("table has no stream")

// StreamsAPI is the part of *dynamodbstreams.Client the watcher uses.
type StreamsAPI interface {
	ListStreams(ctx context.Context, in *dynamodbstreams.ListStreamsInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.ListStreamsOutput, error)
	DescribeStream(ctx context.Context, in *dynamodbstreams.DescribeStreamInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.DescribeStreamOutput, error)
	GetShardIterator(ctx context.Context, in *dynamodbstreams.GetShardIteratorInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetShardIteratorOutput, error)
	GetRecords(ctx context.Context, in *dynamodbstreams.GetRecordsInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetRecordsOutput, error)
}

// Watch polls the stream of table from its latest position and invalidates
// every topic it sees change. When a shard closes its children are polled
// from their start. Watch blocks until ctx is done, or returns nil once no
// shard is left to follow.
func (inv *Invalidator) Watch(ctx context.Context, client StreamsAPI, table string) error {
	return inv.watch(ctx, client, table, defaultPollInterval)
}

func (inv *Invalidator) watch(ctx context.Context, client StreamsAPI, table string, interval time.Duration) error {
	streams, err := client.ListStreams(ctx, &dynamodbstreams.ListStreamsInput{TableName: aws.String(table)})
	if err != nil {
		return fmt.Errorf("[StreamWatcher] list streams: %w", err)
	}
	if len(streams.Streams) == 0 {
		return fmt.Errorf("[StreamWatcher] %s: %w", table, ErrNoStream)
	}
	streamArn := streams.Streams[0].StreamArn

	shards, err := describeShards(ctx, client, streamArn)
	if err != nil {
		return err
	}

	var (
		wg     sync.WaitGroup
		done   = make(chan string)
		polled = make(map[string]bool)
		active int
	)
	start := func(shardID string, from types.ShardIteratorType) {
		polled[shardID] = true
		active++
		wg.Add(1)
		go func() {
			defer wg.Done()
			inv.pollShard(ctx, client, streamArn, shardID, from, interval)
			select {
			case done <- shardID:
			case <-ctx.Done():
			}
		}()
	}

	for _, shard := range shards {
		if shard.SequenceNumberRange != nil && shard.SequenceNumberRange.EndingSequenceNumber != nil {
			continue
		}
		start(aws.ToString(shard.ShardId), types.ShardIteratorTypeLatest)
	}
	inv.logger.Info("[StreamWatcher] Watching question stream",
		slog.String("table", table),
		slog.Int("shards", active))

	for active > 0 {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case shardID := <-done:
			active--
			// children are read from their start so no change is skipped
			for _, child := range inv.children(ctx, client, streamArn, shardID, polled, interval) {
				start(child, types.ShardIteratorTypeTrimHorizon)
			}
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	inv.logger.Warn("[StreamWatcher] No open shards left", slog.String("table", table))
	return nil
}

// describeShards lists every shard of the stream, following pagination.
func describeShards(ctx context.Context, client StreamsAPI, streamArn *string) ([]types.Shard, error) {
	var (
		shards  []types.Shard
		startID *string
	)
	for {
		out, err := client.DescribeStream(ctx, &dynamodbstreams.DescribeStreamInput{
			StreamArn:             streamArn,
			ExclusiveStartShardId: startID,
		})
		if err != nil {
			return nil, fmt.Errorf("[StreamWatcher] describe stream: %w", err)
		}
		if out.StreamDescription == nil {
			return nil, fmt.Errorf("[StreamWatcher] %s: %w", aws.ToString(streamArn), ErrNoStream)
		}
		shards = append(shards, out.StreamDescription.Shards...)
		startID = out.StreamDescription.LastEvaluatedShardId
		if startID == nil {
			return shards, nil
		}
	}
}

// children returns the unpolled shards whose parent is parentID. A child
// can be listed a little after its parent closes, so the lookup is retried.
func (inv *Invalidator) children(ctx context.Context, client StreamsAPI, streamArn *string, parentID string, polled map[string]bool, interval time.Duration) []string {
	for attempt := 0; attempt < maxChildLookups; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(interval):
			}
		}

		shards, err := describeShards(ctx, client, streamArn)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			inv.logger.Warn("[StreamWatcher] Failed to look up child shards",
				slog.String("shard_id", parentID),
				slog.String("error", err.Error()))
			continue
		}

		var ids []string
		for _, shard := range shards {
			id := aws.ToString(shard.ShardId)
			if aws.ToString(shard.ParentShardId) == parentID && !polled[id] {
				ids = append(ids, id)
			}
		}
		if len(ids) > 0 {
			return ids
		}
	}
	inv.logger.Warn("[StreamWatcher] No child shard found", slog.String("shard_id", parentID))
	return nil
}

// pollShard reads shardID until it closes or ctx is done. After a failed
// read the iterator is re-acquired after the last record seen.
func (inv *Invalidator) pollShard(ctx context.Context, client StreamsAPI, streamArn *string, shardID string, from types.ShardIteratorType, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var (
		lastSeq  string
		failures int
	)
	iterator, err := shardIterator(ctx, client, streamArn, shardID, from, lastSeq)
	for {
		if err == nil {
			var out *dynamodbstreams.GetRecordsOutput
			out, err = client.GetRecords(ctx, &dynamodbstreams.GetRecordsInput{ShardIterator: iterator})
			if err == nil {
				failures = 0
				if n := len(out.Records); n > 0 {
					// failures are logged; the next change to the topic retries
					_ = inv.invalidate(ctx, inv.recordTopics(out.Records))
					if last := out.Records[n-1].Dynamodb; last != nil && last.SequenceNumber != nil {
						lastSeq = *last.SequenceNumber
					}
				}
				if out.NextShardIterator == nil {
					inv.logger.Info("[StreamWatcher] Shard closed", slog.String("shard_id", shardID))
					return
				}
				iterator = out.NextShardIterator
			}
		}

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			if failures >= maxShardFailures {
				inv.logger.Error("[StreamWatcher] Giving up on shard",
					slog.String("shard_id", shardID),
					slog.Int("failures", failures),
					slog.String("error", err.Error()))
				return
			}
			inv.logger.Warn("[StreamWatcher] Failed to read shard, retrying",
				slog.String("shard_id", shardID),
				slog.Int("attempt", failures),
				slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err != nil {
			iterator, err = shardIterator(ctx, client, streamArn, shardID, from, lastSeq)
		}
	}
}

// shardIterator resumes after afterSeq when set, else starts at from.
func shardIterator(ctx context.Context, client StreamsAPI, streamArn *string, shardID string, from types.ShardIteratorType, afterSeq string) (*string, error) {
	in := &dynamodbstreams.GetShardIteratorInput{
		StreamArn:         streamArn,
		ShardId:           aws.String(shardID),
		ShardIteratorType: from,
	}
	if afterSeq != "" {
		in.ShardIteratorType = types.ShardIteratorTypeAfterSequenceNumber
		in.SequenceNumber = aws.String(afterSeq)
	}
	out, err := client.GetShardIterator(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("[StreamWatcher] get shard iterator: %w", err)
	}
	return out.ShardIterator, nil
}

func (inv *Invalidator) recordTopics(records []types.Record) []string {
	topics := make([]string, 0, len(records))
	for _, record := range records {
		if record.Dynamodb == nil {
			continue
		}
		image := record.Dynamodb.Keys
		if len(image) == 0 {
			image = record.Dynamodb.NewImage
		}

		item, err := streamImage(image)
		if err == nil {
			var key questionKey
			if key, err = decodeKey(item); err == nil {
				topics = append(topics, key.TopicID)
				continue
			}
		}
		inv.logger.Warn("[StreamWatcher] Skipping undecodable record",
			slog.String("event_id", aws.ToString(record.EventID)),
			slog.String("error", err.Error()))
	}
	return topics
}
