package db

import (
	"context"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/spacesedan/quiznox/internal/apperr"
	"github.com/spacesedan/quiznox/internal/models"
	"github.com/spacesedan/quiznox/internal/store"
)

// BookmarkStore keeps one bookmark per (user_id, topic_id). It is never
// cached so a saved bookmark is visible on the next read.
type BookmarkStore struct {
	deps  Deps
	table string
}

// bookmarkRecord is the stored shape. TTL is epoch seconds and never leaves
// this file.
type bookmarkRecord struct {
	models.Bookmark
	TTL int64 `dynamodbav:"ttl"`
}

func NewBookmarkStore(deps Deps, table string) *BookmarkStore {
	if table == "" {
		table = BOOKMARKS_TABLE_NAME
	}
	return &BookmarkStore{deps: deps.withDefaults(), table: table}
}

func bookmarkKey(userID, topicID string) store.Item {
	return store.Item{
		attrUserID:  store.S(userID),
		attrTopicID: store.S(topicID),
	}
}

// Upsert saves the bookmark. created_at survives overwrites; updated_at and
// the expiry are refreshed on every call. The read and the write are not
// atomic: concurrent first saves may each pick their own created_at, and the
// last write wins.
func (s *BookmarkStore) Upsert(ctx context.Context, userID, topicID, questionNumber string, opts Options) (models.Bookmark, error) {
	const op = "BookmarkStore.Upsert"
	s.deps.Metrics.RecordQuery()

	if err := requireFields(op,
		field{"user_id", userID},
		field{"topic_id", topicID},
		field{"question_number", questionNumber},
	); err != nil {
		s.deps.Metrics.RecordError()
		return models.Bookmark{}, err
	}

	table := opts.table(s.table)
	existing, found, err := s.get(ctx, table, userID, topicID)
	if err != nil {
		s.deps.Metrics.RecordError()
		return models.Bookmark{}, err
	}

	now := s.deps.now()
	createdAt := now
	if found && !existing.CreatedAt.IsZero() {
		createdAt = existing.CreatedAt
	}

	record := bookmarkRecord{
		Bookmark: models.Bookmark{
			UserID:         userID,
			TopicID:        topicID,
			QuestionNumber: models.NormalizeQuestionNumber(questionNumber),
			CreatedAt:      createdAt,
			UpdatedAt:      now,
		},
		TTL: now.Add(bookmarkRetention).Unix(),
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		s.deps.Metrics.RecordError()
		return models.Bookmark{}, apperr.Unexpected(op, err)
	}

	s.deps.Metrics.RecordStoreRequest()
	if err := s.deps.Client.PutItem(ctx, table, item); err != nil {
		s.deps.Metrics.RecordError()
		s.deps.Logger.Error("[BookmarkStore] Failed to save bookmark",
			slog.String("user_id", userID),
			slog.String("topic_id", topicID),
			slog.String("error", err.Error()))
		return models.Bookmark{}, apperr.StoreUnavailable(op, table, err)
	}

	s.deps.Logger.Info("[BookmarkStore] Bookmark saved",
		slog.String("user_id", userID),
		slog.String("topic_id", topicID),
		slog.String("question_number", record.QuestionNumber))
	return record.Bookmark, nil
}

// Get returns the bookmark for (userID, topicID). found is false, with a nil
// error, when the user never saved one.
func (s *BookmarkStore) Get(ctx context.Context, userID, topicID string, opts Options) (models.Bookmark, bool, error) {
	const op = "BookmarkStore.Get"
	s.deps.Metrics.RecordQuery()

	if err := requireFields(op, field{"user_id", userID}, field{"topic_id", topicID}); err != nil {
		s.deps.Metrics.RecordError()
		return models.Bookmark{}, false, err
	}

	bookmark, found, err := s.get(ctx, opts.table(s.table), userID, topicID)
	if err != nil {
		s.deps.Metrics.RecordError()
		return models.Bookmark{}, false, err
	}
	if !found {
		s.deps.Logger.Info("[BookmarkStore] No bookmark found",
			slog.String("user_id", userID),
			slog.String("topic_id", topicID))
	}
	return bookmark, found, nil
}

func (s *BookmarkStore) get(ctx context.Context, table, userID, topicID string) (models.Bookmark, bool, error) {
	const op = "BookmarkStore.get"

	s.deps.Metrics.RecordStoreRequest()
	item, err := s.deps.Client.GetItem(ctx, table, bookmarkKey(userID, topicID))
	if err != nil {
		return models.Bookmark{}, false, apperr.StoreUnavailable(op, table, err)
	}
	if item == nil {
		return models.Bookmark{}, false, nil
	}

	var record bookmarkRecord
	if err := attributevalue.UnmarshalMap(item, &record); err != nil {
		return models.Bookmark{}, false, apperr.Unexpected(op, err)
	}
	return record.Bookmark, true, nil
}

type field struct {
	name  string
	value string
}

func requireFields(op string, fields ...field) error {
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return apperr.MissingField(op, f.name)
		}
	}
	return nil
}
