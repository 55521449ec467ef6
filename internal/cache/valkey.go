package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/spacesedan/quiznox/internal/clients"
	"github.com/valkey-io/valkey-go"
)

const (
	DefaultValkeyPrefix = "quiznox:cache:"
	scanBatch           = 200
)

var _ Backend = (*ValkeyBackend)(nil)

// ValkeyBackend shares entries between processes. Expiry is enforced by
// valkey itself through PX.
type ValkeyBackend struct {
	vc     *clients.ValkeyClient
	prefix string
}

func NewValkeyBackend(vc *clients.ValkeyClient, prefix string) *ValkeyBackend {
	if prefix == "" {
		prefix = DefaultValkeyPrefix
	}
	return &ValkeyBackend{vc: vc, prefix: prefix}
}

func (b *ValkeyBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	res := b.vc.DoWithRetry(ctx, func(c valkey.Client) valkey.Completed {
		return c.B().Get().Key(b.prefix + key).Build()
	}, clients.VALKEY_MAX_RETRIES)

	raw, err := res.AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("[ValkeyBackend] get %s: %w", key, err)
	}
	return raw, true, nil
}

func (b *ValkeyBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	px := ttl.Milliseconds()
	if px < 1 {
		px = 1
	}
	res := b.vc.DoWithRetry(ctx, func(c valkey.Client) valkey.Completed {
		return c.B().Set().Key(b.prefix + key).Value(valkey.BinaryString(value)).PxMilliseconds(px).Build()
	}, clients.VALKEY_MAX_RETRIES)
	if err := res.Error(); err != nil {
		return fmt.Errorf("[ValkeyBackend] set %s: %w", key, err)
	}
	return nil
}

func (b *ValkeyBackend) Delete(ctx context.Context, key string) error {
	res := b.vc.DoWithRetry(ctx, func(c valkey.Client) valkey.Completed {
		return c.B().Del().Key(b.prefix + key).Build()
	}, clients.VALKEY_MAX_RETRIES)
	if err := res.Error(); err != nil {
		return fmt.Errorf("[ValkeyBackend] del %s: %w", key, err)
	}
	return nil
}

// Clear deletes every key under the backend prefix.
func (b *ValkeyBackend) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		res := b.vc.DoWithRetry(ctx, func(c valkey.Client) valkey.Completed {
			return c.B().Scan().Cursor(cursor).Match(b.prefix + "*").Count(scanBatch).Build()
		}, clients.VALKEY_MAX_RETRIES)
		entry, err := res.AsScanEntry()
		if err != nil {
			return fmt.Errorf("[ValkeyBackend] scan: %w", err)
		}

		if len(entry.Elements) > 0 {
			keys := entry.Elements
			res := b.vc.DoWithRetry(ctx, func(c valkey.Client) valkey.Completed {
				return c.B().Del().Key(keys...).Build()
			}, clients.VALKEY_MAX_RETRIES)
			if err := res.Error(); err != nil {
				return fmt.Errorf("[ValkeyBackend] del: %w", err)
			}
		}

		if entry.Cursor == 0 {
			return nil
		}
		cursor = entry.Cursor
	}
}
