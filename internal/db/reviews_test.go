package db

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spacesedan/quiznox/internal/apperr"
	"github.com/spacesedan/quiznox/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReview(id, user, content string, at time.Time) models.Review {
	return models.Review{ReviewID: id, UserID: user, Content: content, CreatedAt: at}
}

func TestReviewStore_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	s := NewReviewStore(newTestDeps(newTestMemory(0), clock), "")

	t1 := clock.Now()
	for i, id := range []string{"r-a", "r-b", "r-c"} {
		_, err := s.Create(ctx, newReview(id, "u1", "review "+id, t1.Add(time.Duration(i)*time.Minute)), Options{})
		require.NoError(t, err)
	}

	got, err := s.List(ctx, 2, Options{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r-c", got[0].ReviewID)
	assert.Equal(t, "r-b", got[1].ReviewID)

	all, err := s.List(ctx, 0, Options{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestReviewStore_ListStopsAtScanWindow(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	deps := newTestDeps(newTestMemory(2), clock)
	s := NewReviewStore(deps, "")

	// scan order follows review_id, so the newest review sits on the last page
	t1 := clock.Now()
	for i, id := range []string{"r-1", "r-2", "r-3"} {
		_, err := s.Create(ctx, newReview(id, "u1", "review "+id, t1.Add(time.Duration(i)*time.Minute)), Options{})
		require.NoError(t, err)
	}

	before := deps.Metrics.Snapshot().StoreRequests
	got, err := s.List(ctx, 1, Options{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "r-2", got[0].ReviewID, "r-3 is outside the 2-item window")
	assert.Equal(t, before+1, deps.Metrics.Snapshot().StoreRequests)

	got, err = s.List(ctx, 2, Options{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r-3", got[0].ReviewID)
	assert.Equal(t, "r-2", got[1].ReviewID)
	assert.Equal(t, before+3, deps.Metrics.Snapshot().StoreRequests)
}

func TestReviewStore_ListSkipsUndatedItems(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	m := newTestMemory(0)
	s := NewReviewStore(newTestDeps(m, clock), "")

	_, err := s.Create(ctx, newReview("r-1", "u1", "fine", clock.Now()), Options{})
	require.NoError(t, err)
	require.NoError(t, m.PutItem(ctx, REVIEWS_TABLE_NAME, reviewKey("r-legacy")))

	got, err := s.List(ctx, 10, Options{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "r-1", got[0].ReviewID)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultReviewListLimit, clampLimit(0))
	assert.Equal(t, DefaultReviewListLimit, clampLimit(-3))
	assert.Equal(t, 7, clampLimit(7))
	assert.Equal(t, MaxReviewListLimit, clampLimit(1000))
}

func TestReviewStore_CreateValidation(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	s := NewReviewStore(newTestDeps(newTestMemory(0), clock), "")

	created, err := s.Create(ctx, newReview("r-1", "u1", "  "+strings.Repeat("é", 500)+"  ", clock.Now()), Options{})
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("é", 500), created.Content)

	tests := []struct {
		name   string
		review models.Review
		field  string
	}{
		{"too long", newReview("r-2", "u1", strings.Repeat("x", 501), clock.Now()), "content"},
		{"blank content", newReview("r-3", "u1", "   ", clock.Now()), "content"},
		{"no user", newReview("r-4", "", "hi", clock.Now()), "user_id"},
		{"no id", newReview("", "u1", "hi", clock.Now()), "review_id"},
		{"no timestamp", newReview("r-5", "u1", "hi", time.Time{}), "created_at"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(ctx, tt.review, Options{})
			require.Error(t, err)
			assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestReviewStore_Update(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	s := NewReviewStore(newTestDeps(newTestMemory(0), clock), "")

	created, err := s.Create(ctx, newReview("r-1", "u1", "first", clock.Now()), Options{})
	require.NoError(t, err)
	assert.Nil(t, created.UpdatedAt)

	clock.Advance(time.Hour)
	updated, err := s.Update(ctx, "r-1", " second ", Options{})
	require.NoError(t, err)
	assert.Equal(t, "second", updated.Content)
	assert.Equal(t, created.UserID, updated.UserID)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	require.NotNil(t, updated.UpdatedAt)
	assert.Equal(t, clock.Now(), *updated.UpdatedAt)

	got, found, err := s.Get(ctx, "r-1", Options{})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, updated, got)

	_, err = s.Update(ctx, "r-1", strings.Repeat("x", 501), Options{})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = s.Update(ctx, "r-missing", "text", Options{})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestReviewStore_Authorize(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	s := NewReviewStore(newTestDeps(newTestMemory(0), clock), "")

	_, err := s.Create(ctx, newReview("r-1", "owner", "mine", clock.Now()), Options{})
	require.NoError(t, err)

	got, err := s.Authorize(ctx, "r-1", "owner", Options{})
	require.NoError(t, err)
	assert.Equal(t, "mine", got.Content)

	_, err = s.Authorize(ctx, "r-1", "intruder", Options{})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = s.Authorize(ctx, "r-missing", "owner", Options{})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestReviewStore_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	m := newTestMemory(0)
	s := NewReviewStore(newTestDeps(m, clock), "")

	_, err := s.Create(ctx, newReview("r-1", "u1", "bye", clock.Now()), Options{})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "r-1", Options{}))
	require.NoError(t, s.Delete(ctx, "r-1", Options{}))
	assert.Zero(t, m.Len(REVIEWS_TABLE_NAME))

	_, found, err := s.Get(ctx, "r-1", Options{})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestReviewStore_StoreFailure(t *testing.T) {
	m := newTestMemory(0)
	m.SetFault(func(string) error { return context.DeadlineExceeded })
	deps := newTestDeps(m, newTestClock())
	s := NewReviewStore(deps, "")

	_, err := s.List(context.Background(), 5, Options{})
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int64(1), deps.Metrics.Snapshot().Errors)
}
