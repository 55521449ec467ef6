// Package cache is a read-through cache with per-entry TTL in front of store
// reads. Entries expire lazily; expired entries read as absent.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spacesedan/quiznox/internal/metrics"
)

// Backend stores encoded entries. Implementations must be safe for
// concurrent use.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

type Cache struct {
	backend Backend
	metrics *metrics.Collector
	logger  *slog.Logger
}

func New(backend Backend, m *metrics.Collector, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{backend: backend, metrics: m, logger: logger}
}

// Key joins the logical query parameters into a cache key. Each part is
// length-prefixed, so parts containing the separator cannot collide.
func Key(parts ...string) string {
	var b strings.Builder
	for i, part := range parts {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(strconv.Itoa(len(part)))
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

// ReadThrough returns the live entry for key, or calls load and caches its
// result for ttl. A nil cache or ttl <= 0 always calls load. Loader errors
// are returned and never cached.
func ReadThrough[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	if c == nil || ttl <= 0 {
		return load(ctx)
	}

	if raw, ok, err := c.backend.Get(ctx, key); err != nil {
		c.logger.Warn("[Cache] read failed, falling back to store",
			slog.String("key", key),
			slog.String("error", err.Error()))
	} else if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			c.metrics.RecordCacheHit()
			return v, nil
		}
		c.logger.Warn("[Cache] dropping undecodable entry", slog.String("key", key))
	}

	c.metrics.RecordCacheMiss()
	v, err := load(ctx)
	if err != nil {
		c.metrics.RecordError()
		return v, err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("[Cache] could not encode entry", slog.String("key", key), slog.String("error", err.Error()))
		return v, nil
	}
	if err := c.backend.Set(ctx, key, raw, ttl); err != nil {
		c.logger.Warn("[Cache] write failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
	return v, nil
}

func (c *Cache) Invalidate(ctx context.Context, key string) error {
	if c == nil {
		return nil
	}
	if err := c.backend.Delete(ctx, key); err != nil {
		return err
	}
	c.logger.Debug("[Cache] invalidated", slog.String("key", key))
	return nil
}

func (c *Cache) InvalidateAll(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if err := c.backend.Clear(ctx); err != nil {
		return err
	}
	c.logger.Info("[Cache] cleared")
	return nil
}
