package db

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/spacesedan/quiznox/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookmarkStore_UpsertKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	s := NewBookmarkStore(newTestDeps(newTestMemory(0), clock), "")

	first, err := s.Upsert(ctx, "u1", "aws", "7", Options{})
	require.NoError(t, err)
	assert.Equal(t, "0007", first.QuestionNumber)
	assert.Equal(t, clock.Now(), first.CreatedAt)

	clock.Advance(90 * time.Second)
	second, err := s.Upsert(ctx, "u1", "aws", "12", Options{})
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, clock.Now(), second.UpdatedAt)

	got, found, err := s.Get(ctx, "u1", "aws", Options{})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, second, got)
	assert.Equal(t, "0012", got.QuestionNumber)
}

func TestBookmarkStore_ExpiryStoredButNotReturned(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	m := newTestMemory(0)
	s := NewBookmarkStore(newTestDeps(m, clock), "")

	_, err := s.Upsert(ctx, "u1", "aws", "0001", Options{})
	require.NoError(t, err)

	raw, err := m.GetItem(ctx, BOOKMARKS_TABLE_NAME, bookmarkKey("u1", "aws"))
	require.NoError(t, err)
	require.Contains(t, raw, "ttl")

	want := clock.Now().Add(365 * 24 * time.Hour).Unix()
	var rec bookmarkRecord
	require.NoError(t, attributevalue.UnmarshalMap(raw, &rec))
	assert.Equal(t, want, rec.TTL)
}

func TestBookmarkStore_GetMissing(t *testing.T) {
	s := NewBookmarkStore(newTestDeps(newTestMemory(0), newTestClock()), "")

	got, found, err := s.Get(context.Background(), "u1", "aws", Options{})
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, got)
}

func TestBookmarkStore_Validation(t *testing.T) {
	ctx := context.Background()
	deps := newTestDeps(newTestMemory(0), newTestClock())
	s := NewBookmarkStore(deps, "")

	tests := []struct {
		name                      string
		userID, topicID, question string
		field                     string
	}{
		{"missing user", "", "aws", "1", "user_id"},
		{"blank topic", "u1", "   ", "1", "topic_id"},
		{"missing question", "u1", "aws", "", "question_number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Upsert(ctx, tt.userID, tt.topicID, tt.question, Options{})
			require.Error(t, err)
			assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
			assert.Contains(t, err.Error(), tt.field)
		})
	}

	_, _, err := s.Get(ctx, "u1", "", Options{})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	assert.Equal(t, int64(0), deps.Metrics.Snapshot().StoreRequests)
}

func TestBookmarkStore_StoreFailure(t *testing.T) {
	m := newTestMemory(0)
	deps := newTestDeps(m, newTestClock())
	s := NewBookmarkStore(deps, "")

	_, err := s.Upsert(context.Background(), "u1", "aws", "1", Options{TableName: "missing"})
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
	assert.Equal(t, int64(1), deps.Metrics.Snapshot().Errors)
	assert.Zero(t, m.Len(BOOKMARKS_TABLE_NAME))
}
