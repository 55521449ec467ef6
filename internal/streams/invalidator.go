// Package streams drops cached question lists when the questions table
// changes, either from a Lambda stream trigger or by polling the stream.
package streams

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
)

// TopicInvalidator drops the cached question list of one topic.
type TopicInvalidator interface {
	InvalidateTopic(ctx context.Context, topicID, table string) error
}

type Invalidator struct {
	target TopicInvalidator
	table  string
	logger *slog.Logger
}

// NewInvalidator invalidates topics of table on target. An empty table means
// the target's own table.
func NewInvalidator(target TopicInvalidator, table string, logger *slog.Logger) *Invalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invalidator{target: target, table: table, logger: logger}
}

// HandleEvent invalidates every topic touched by the batch, once per topic.
// Records that cannot be decoded are skipped. A failed invalidation fails
// the batch so the trigger retries it.
func (inv *Invalidator) HandleEvent(ctx context.Context, event events.DynamoDBEvent) error {
	inv.logger.Info("[Invalidator] Received DynamoDB event", slog.Int("records", len(event.Records)))

	var topics []string
	for _, record := range event.Records {
		image := record.Change.Keys
		if len(image) == 0 {
			image = record.Change.NewImage
		}
		if len(image) == 0 {
			image = record.Change.OldImage
		}

		item, err := eventImage(image)
		if err == nil {
			var key questionKey
			if key, err = decodeKey(item); err == nil {
				topics = append(topics, key.TopicID)
				continue
			}
		}
		inv.logger.Warn("[Invalidator] Skipping undecodable record",
			slog.String("event_id", record.EventID),
			slog.String("event_name", record.EventName),
			slog.String("error", err.Error()))
	}

	return inv.invalidate(ctx, topics)
}

func (inv *Invalidator) invalidate(ctx context.Context, topics []string) error {
	seen := make(map[string]struct{}, len(topics))
	var errs []error
	for _, topic := range topics {
		if _, dup := seen[topic]; dup {
			continue
		}
		seen[topic] = struct{}{}

		if err := inv.target.InvalidateTopic(ctx, topic, inv.table); err != nil {
			inv.logger.Error("[Invalidator] Failed to invalidate topic",
				slog.String("topic_id", topic),
				slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("[Invalidator] topic %s: %w", topic, err))
			continue
		}
		inv.logger.Info("[Invalidator] Invalidated topic", slog.String("topic_id", topic))
	}
	return errors.Join(errs...)
}
