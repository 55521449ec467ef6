package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/go-playground/validator/v10"
	"github.com/spacesedan/quiznox/internal/apperr"
	"github.com/spacesedan/quiznox/internal/models"
	"github.com/spacesedan/quiznox/internal/store"
)

const (
	DefaultReviewListLimit = 50
	MaxReviewListLimit     = 100
)

var contentRule = "required,max=" + strconv.Itoa(models.MaxReviewContentLength)

// ReviewStore persists reviews keyed by review_id. It trusts its caller on
// ownership: Authorize is the check callers run before Update and Delete.
type ReviewStore struct {
	deps     Deps
	pager    *Paginator
	table    string
	validate *validator.Validate
}

func NewReviewStore(deps Deps, table string) *ReviewStore {
	deps = deps.withDefaults()
	if table == "" {
		table = REVIEWS_TABLE_NAME
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	return &ReviewStore{deps: deps, pager: NewPaginator(deps), table: table, validate: v}
}

func reviewKey(reviewID string) store.Item {
	return store.Item{attrReviewID: store.S(reviewID)}
}

// Create writes a new review. Content is trimmed before validation. The
// write is unconditional, so a reused review_id overwrites.
func (s *ReviewStore) Create(ctx context.Context, review models.Review, opts Options) (models.Review, error) {
	const op = "ReviewStore.Create"
	s.deps.Metrics.RecordQuery()

	review.Content = strings.TrimSpace(review.Content)
	if err := s.validateReview(op, review); err != nil {
		s.deps.Metrics.RecordError()
		return models.Review{}, err
	}

	if err := s.put(ctx, op, opts.table(s.table), review); err != nil {
		s.deps.Metrics.RecordError()
		return models.Review{}, err
	}

	s.deps.Logger.Info("[ReviewStore] Review created",
		slog.String("review_id", review.ReviewID),
		slog.String("user_id", review.UserID))
	return review, nil
}

// List returns up to limit reviews, newest first. limit <= 0 means
// DefaultReviewListLimit; it is capped at MaxReviewListLimit.
//
// The table has no time-ordered index, so List scans only until it holds
// 2×limit items and sorts those. Reviews outside that window can be missed;
// this bounds the scan cost.
func (s *ReviewStore) List(ctx context.Context, limit int, opts Options) ([]models.Review, error) {
	const op = "ReviewStore.List"
	s.deps.Metrics.RecordQuery()

	limit = clampLimit(limit)
	table := opts.table(s.table)

	items, err := s.pager.ScanAtLeast(ctx, table, 2*limit, opts.PageSize)
	if err != nil {
		s.deps.Metrics.RecordError()
		s.deps.Logger.Error("[ReviewStore] Failed to list reviews", slog.String("error", err.Error()))
		return nil, err
	}

	reviews := make([]models.Review, 0, len(items))
	for _, item := range items {
		var r models.Review
		if err := attributevalue.UnmarshalMap(item, &r); err != nil {
			s.deps.Logger.Warn("[ReviewStore] Skipping unreadable review", slog.String("error", err.Error()))
			continue
		}
		if r.CreatedAt.IsZero() {
			continue
		}
		reviews = append(reviews, r)
	}

	sort.SliceStable(reviews, func(i, j int) bool {
		return reviews[i].CreatedAt.After(reviews[j].CreatedAt)
	})
	if len(reviews) > limit {
		reviews = reviews[:limit]
	}
	return reviews, nil
}

// Get returns found=false with a nil error when no review has reviewID.
func (s *ReviewStore) Get(ctx context.Context, reviewID string, opts Options) (models.Review, bool, error) {
	const op = "ReviewStore.Get"
	s.deps.Metrics.RecordQuery()

	if err := requireFields(op, field{"review_id", reviewID}); err != nil {
		s.deps.Metrics.RecordError()
		return models.Review{}, false, err
	}

	review, found, err := s.get(ctx, op, opts.table(s.table), reviewID)
	if err != nil {
		s.deps.Metrics.RecordError()
		return models.Review{}, false, err
	}
	return review, found, nil
}

// Authorize loads a review for a mutation by userID. It fails with NotFound
// when the review does not exist and Forbidden when userID does not own it.
func (s *ReviewStore) Authorize(ctx context.Context, reviewID, userID string, opts Options) (models.Review, error) {
	const op = "ReviewStore.Authorize"

	if err := requireFields(op, field{"review_id", reviewID}, field{"user_id", userID}); err != nil {
		return models.Review{}, err
	}

	review, found, err := s.Get(ctx, reviewID, opts)
	if err != nil {
		return models.Review{}, err
	}
	if !found {
		return models.Review{}, apperr.NotFound(op, reviewID)
	}
	if review.UserID != userID {
		s.deps.Logger.Warn("[ReviewStore] Ownership mismatch",
			slog.String("review_id", reviewID),
			slog.String("user_id", userID))
		return models.Review{}, apperr.Forbidden(op, reviewID)
	}
	return review, nil
}

// Update replaces the content of an existing review and stamps updated_at.
// Every other field is carried over.
func (s *ReviewStore) Update(ctx context.Context, reviewID, content string, opts Options) (models.Review, error) {
	const op = "ReviewStore.Update"
	s.deps.Metrics.RecordQuery()

	content = strings.TrimSpace(content)
	if err := requireFields(op, field{"review_id", reviewID}); err != nil {
		s.deps.Metrics.RecordError()
		return models.Review{}, err
	}
	if err := s.validateContent(op, content); err != nil {
		s.deps.Metrics.RecordError()
		return models.Review{}, err
	}

	table := opts.table(s.table)
	review, found, err := s.get(ctx, op, table, reviewID)
	if err != nil {
		s.deps.Metrics.RecordError()
		return models.Review{}, err
	}
	if !found {
		s.deps.Metrics.RecordError()
		return models.Review{}, apperr.NotFound(op, reviewID)
	}

	now := s.deps.now()
	review.Content = content
	review.UpdatedAt = &now

	if err := s.put(ctx, op, table, review); err != nil {
		s.deps.Metrics.RecordError()
		return models.Review{}, err
	}

	s.deps.Logger.Info("[ReviewStore] Review updated", slog.String("review_id", reviewID))
	return review, nil
}

// Delete removes a review. Deleting a missing review is not an error.
func (s *ReviewStore) Delete(ctx context.Context, reviewID string, opts Options) error {
	const op = "ReviewStore.Delete"
	s.deps.Metrics.RecordQuery()

	if err := requireFields(op, field{"review_id", reviewID}); err != nil {
		s.deps.Metrics.RecordError()
		return err
	}

	table := opts.table(s.table)
	s.deps.Metrics.RecordStoreRequest()
	if err := s.deps.Client.DeleteItem(ctx, table, reviewKey(reviewID)); err != nil {
		s.deps.Metrics.RecordError()
		return apperr.StoreUnavailable(op, table, err)
	}

	s.deps.Logger.Info("[ReviewStore] Review deleted", slog.String("review_id", reviewID))
	return nil
}

func (s *ReviewStore) get(ctx context.Context, op, table, reviewID string) (models.Review, bool, error) {
	s.deps.Metrics.RecordStoreRequest()
	item, err := s.deps.Client.GetItem(ctx, table, reviewKey(reviewID))
	if err != nil {
		return models.Review{}, false, apperr.StoreUnavailable(op, table, err)
	}
	if item == nil {
		return models.Review{}, false, nil
	}

	var review models.Review
	if err := attributevalue.UnmarshalMap(item, &review); err != nil {
		return models.Review{}, false, apperr.Unexpected(op, err)
	}
	return review, true, nil
}

func (s *ReviewStore) put(ctx context.Context, op, table string, review models.Review) error {
	item, err := attributevalue.MarshalMap(review)
	if err != nil {
		return apperr.Unexpected(op, err)
	}

	s.deps.Metrics.RecordStoreRequest()
	if err := s.deps.Client.PutItem(ctx, table, item); err != nil {
		s.deps.Logger.Error("[ReviewStore] Failed to write review",
			slog.String("review_id", review.ReviewID),
			slog.String("error", err.Error()))
		return apperr.StoreUnavailable(op, table, err)
	}
	return nil
}

func (s *ReviewStore) validateReview(op string, review models.Review) error {
	return validationError(op, s.validate.Struct(review))
}

func (s *ReviewStore) validateContent(op, content string) error {
	err := s.validate.Var(content, contentRule)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return apperr.InvalidArgument(op, "%s", describe("content", verrs[0]))
	}
	return validationError(op, err)
}

func validationError(op string, err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return apperr.InvalidArgument(op, "%s", describe(verrs[0].Field(), verrs[0]))
	}
	return apperr.Unexpected(op, err)
}

func describe(name string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", name, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", name, fe.Tag())
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultReviewListLimit
	}
	if limit > MaxReviewListLimit {
		return MaxReviewListLimit
	}
	return limit
}
