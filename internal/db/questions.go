package db

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/spacesedan/quiznox/internal/apperr"
	"github.com/spacesedan/quiznox/internal/cache"
	"github.com/spacesedan/quiznox/internal/models"
)

type QuestionStore struct {
	deps  Deps
	pager *Paginator
	cache *cache.Cache
	ttl   time.Duration
	table string
}

// NewQuestionStore reads questions through c for ttl. A nil cache or a zero
// ttl reads the store every time.
func NewQuestionStore(deps Deps, table string, c *cache.Cache, ttl time.Duration) *QuestionStore {
	deps = deps.withDefaults()
	if table == "" {
		table = QUESTIONS_TABLE_NAME
	}
	return &QuestionStore{deps: deps, pager: NewPaginator(deps), cache: c, ttl: ttl, table: table}
}

func questionsCacheKey(table, topicID string) string {
	return cache.Key("questions", table, topicID)
}

// ListByTopic returns every question of a topic ordered by question number.
// A topic without questions yields an empty slice.
func (s *QuestionStore) ListByTopic(ctx context.Context, topicID string, opts Options) ([]models.Question, error) {
	const op = "QuestionStore.ListByTopic"
	s.deps.Metrics.RecordQuery()

	if strings.TrimSpace(topicID) == "" {
		s.deps.Metrics.RecordError()
		return nil, apperr.MissingField(op, "topic_id")
	}

	table := opts.table(s.table)
	ttl := opts.ttl(s.ttl)
	cached := s.cache != nil && ttl > 0

	questions, err := cache.ReadThrough(ctx, s.cache, questionsCacheKey(table, topicID), ttl,
		func(ctx context.Context) ([]models.Question, error) {
			items, err := s.pager.FetchAllByPartition(ctx, PartitionQuery{
				Table:          table,
				PartitionKey:   attrTopicID,
				PartitionValue: topicID,
				PageSize:       opts.PageSize,
			})
			if err != nil {
				return nil, err
			}

			var page []models.Question
			if err := attributevalue.UnmarshalListOfMaps(items, &page); err != nil {
				return nil, apperr.Unexpected(op, err)
			}
			return page, nil
		})
	if err != nil {
		// the cache already counted a loader failure
		if !cached {
			s.deps.Metrics.RecordError()
		}
		s.deps.Logger.Error("[QuestionStore] Failed to list questions",
			slog.String("topic_id", topicID),
			slog.String("error", err.Error()))
		return nil, err
	}

	if questions == nil {
		questions = []models.Question{}
	}
	s.deps.Logger.Info("[QuestionStore] Retrieved questions",
		slog.String("topic_id", topicID),
		slog.Int("count", len(questions)))
	return questions, nil
}

// InvalidateTopic drops the cached question list of one topic. An empty
// table means the store's own table.
func (s *QuestionStore) InvalidateTopic(ctx context.Context, topicID, table string) error {
	if table == "" {
		table = s.table
	}
	return s.cache.Invalidate(ctx, questionsCacheKey(table, topicID))
}

func (s *QuestionStore) InvalidateAll(ctx context.Context) error {
	return s.cache.InvalidateAll(ctx)
}

func (s *QuestionStore) Table() string { return s.table }
