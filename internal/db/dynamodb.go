package db

import (
	"log/slog"
	"time"

	"github.com/spacesedan/quiznox/internal/metrics"
	"github.com/spacesedan/quiznox/internal/store"
)

const (
	QUESTIONS_TABLE_NAME = "QuizNox_Questions"
	BOOKMARKS_TABLE_NAME = "QuizNox_Bookmarks"
	REVIEWS_TABLE_NAME   = "QuizNox_Reviews"

	DefaultCacheTTL = 5 * time.Minute

	// bookmarks expire a year after their last write
	bookmarkRetention = 365 * 24 * time.Hour
)

// Key attribute names of the three tables.
const (
	attrTopicID        = "topic_id"
	attrQuestionNumber = "question_number"
	attrUserID         = "user_id"
	attrReviewID       = "review_id"
)

// Deps are shared by every store. Client is required; the rest default.
type Deps struct {
	Client  store.Client
	Metrics *metrics.Collector
	Logger  *slog.Logger
	Now     func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// now is the wall clock in UTC at millisecond precision, the resolution the
// stored ISO-8601 timestamps carry.
func (d Deps) now() time.Time {
	return d.Now().UTC().Truncate(time.Millisecond)
}

// Options tune a single call. The zero value means "use the store defaults".
// Bookmark and review calls only honour TableName.
type Options struct {
	// TableName overrides the store's table.
	TableName string
	// UseCache set to false forces a store read. nil leaves caching on when
	// the store has a cache.
	UseCache *bool
	// CacheTTL overrides the store's TTL when positive.
	CacheTTL time.Duration
	// PageSize is a per-page item limit hint for paged reads. 0 lets the
	// store decide.
	PageSize int32
}

func (o Options) table(def string) string {
	if o.TableName != "" {
		return o.TableName
	}
	return def
}

func (o Options) ttl(def time.Duration) time.Duration {
	if o.UseCache != nil && !*o.UseCache {
		return 0
	}
	if o.CacheTTL > 0 {
		return o.CacheTTL
	}
	return def
}

// Bypass returns Options that skip the cache.
func Bypass() Options {
	off := false
	return Options{UseCache: &off}
}

// NewMemoryStore returns an in-process store holding the three tables with
// their production key schemas. Empty names take the defaults.
func NewMemoryStore(pageSize int, questions, bookmarks, reviews string) *store.Memory {
	m := store.NewMemory(pageSize)
	m.CreateTable(Options{TableName: questions}.table(QUESTIONS_TABLE_NAME), attrTopicID, attrQuestionNumber)
	m.CreateTable(Options{TableName: bookmarks}.table(BOOKMARKS_TABLE_NAME), attrUserID, attrTopicID)
	m.CreateTable(Options{TableName: reviews}.table(REVIEWS_TABLE_NAME), attrReviewID, "")
	return m
}
