package monitoring

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const HEALTHCHECK_INTERVAL = 15 * time.Second

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) error

// Health tracks the last result of each registered dependency check.
type Health struct {
	mu     sync.RWMutex
	status map[string]error
}

func NewHealth() *Health {
	return &Health{status: make(map[string]error)}
}

func (h *Health) set(name string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status[name] = err
}

// Healthy reports whether every check passed on its last run.
func (h *Health) Healthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, err := range h.status {
		if err != nil {
			return false
		}
	}
	return true
}

// Report maps each dependency to "ok" or its last error.
func (h *Health) Report() map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]string, len(h.status))
	for name, err := range h.status {
		if err != nil {
			out[name] = err.Error()
		} else {
			out[name] = "ok"
		}
	}
	return out
}

// Monitor runs check now and then every interval until ctx is done.
func (h *Health) Monitor(ctx context.Context, name string, interval time.Duration, check Check) {
	if interval <= 0 {
		interval = HEALTHCHECK_INTERVAL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		h.run(ctx, name, interval, check)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *Health) run(ctx context.Context, name string, timeout time.Duration, check Check) {
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := check(checkCtx)
	if err != nil && ctx.Err() == nil {
		slog.Warn("[HealthCheck] Dependency is unhealthy",
			slog.String("dependency", name),
			slog.String("error", err.Error()))
	}
	h.set(name, err)
}
