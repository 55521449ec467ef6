package db

import (
	"context"
	"testing"
	"time"

	"github.com/spacesedan/quiznox/internal/apperr"
	"github.com/spacesedan/quiznox/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQuestionFixture(t *testing.T, pageSize int) (*QuestionStore, Deps, *testClock) {
	t.Helper()
	clock := newTestClock()
	m := newTestMemory(pageSize)
	seedQuestions(t, m, "aws", 5)
	deps := newTestDeps(m, clock)
	c := cache.New(cache.NewMemoryBackendWithClock(clock.Now), deps.Metrics, nil)
	return NewQuestionStore(deps, "", c, time.Minute), deps, clock
}

func TestQuestionStore_ListByTopicCaches(t *testing.T) {
	ctx := context.Background()
	s, deps, _ := newQuestionFixture(t, 2)

	first, err := s.ListByTopic(ctx, "aws", Options{})
	require.NoError(t, err)
	require.Len(t, first, 5)
	assert.Equal(t, "0001", first[0].QuestionNumber)
	assert.Equal(t, "0005", first[4].QuestionNumber)
	requests := deps.Metrics.Snapshot().StoreRequests
	assert.Equal(t, int64(3), requests)

	second, err := s.ListByTopic(ctx, "aws", Options{})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	snap := deps.Metrics.Snapshot()
	assert.Equal(t, requests, snap.StoreRequests)
	assert.Equal(t, int64(2), snap.Queries)
	assert.Equal(t, int64(1), snap.CacheHits)
	assert.Equal(t, int64(1), snap.CacheMisses)
	assert.InDelta(t, 0.5, snap.HitRate, 1e-9)
}

func TestQuestionStore_CacheExpires(t *testing.T) {
	ctx := context.Background()
	s, deps, clock := newQuestionFixture(t, 0)

	_, err := s.ListByTopic(ctx, "aws", Options{})
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = s.ListByTopic(ctx, "aws", Options{})
	require.NoError(t, err)

	snap := deps.Metrics.Snapshot()
	assert.Equal(t, int64(2), snap.CacheMisses)
	assert.Equal(t, int64(2), snap.StoreRequests)
}

func TestQuestionStore_BypassAndInvalidate(t *testing.T) {
	ctx := context.Background()
	s, deps, _ := newQuestionFixture(t, 0)

	_, err := s.ListByTopic(ctx, "aws", Options{})
	require.NoError(t, err)

	_, err = s.ListByTopic(ctx, "aws", Bypass())
	require.NoError(t, err)
	assert.Equal(t, int64(2), deps.Metrics.Snapshot().StoreRequests)
	assert.Equal(t, int64(0), deps.Metrics.Snapshot().CacheHits)

	require.NoError(t, s.InvalidateTopic(ctx, "aws", ""))
	_, err = s.ListByTopic(ctx, "aws", Options{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), deps.Metrics.Snapshot().StoreRequests)

	require.NoError(t, s.InvalidateAll(ctx))
	_, err = s.ListByTopic(ctx, "aws", Options{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), deps.Metrics.Snapshot().StoreRequests)
}

func TestQuestionStore_EmptyTopic(t *testing.T) {
	s, _, _ := newQuestionFixture(t, 0)

	got, err := s.ListByTopic(context.Background(), "unknown", Options{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestQuestionStore_Errors(t *testing.T) {
	ctx := context.Background()
	s, deps, _ := newQuestionFixture(t, 0)

	_, err := s.ListByTopic(ctx, " ", Options{})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "topic_id")

	_, err = s.ListByTopic(ctx, "aws", Options{TableName: "missing"})
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)

	_, err = s.ListByTopic(ctx, "aws", Options{TableName: "missing"})
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
	assert.Equal(t, int64(3), deps.Metrics.Snapshot().Errors)
}

func TestQuestionStore_NilCache(t *testing.T) {
	clock := newTestClock()
	m := newTestMemory(0)
	seedQuestions(t, m, "aws", 2)
	deps := newTestDeps(m, clock)
	s := NewQuestionStore(deps, "", nil, time.Minute)

	for range 2 {
		got, err := s.ListByTopic(context.Background(), "aws", Options{})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	}
	assert.Equal(t, int64(2), deps.Metrics.Snapshot().StoreRequests)
	require.NoError(t, s.InvalidateAll(context.Background()))
}
