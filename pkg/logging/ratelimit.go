package logging

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// rateLimiterHandler drops records above the configured per-level rate and
// optionally reports how many lines were dropped.
type rateLimiterHandler struct {
	next    slog.Handler
	limits  map[slog.Level]*rate.Limiter
	dropped map[slog.Level]*atomic.Uint64
}

func newRateLimiterHandler(ctx context.Context, next slog.Handler, cfg RateLimiterConfig) slog.Handler {
	levels := []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError}
	limits := make(map[slog.Level]*rate.Limiter, len(levels))
	dropped := make(map[slog.Level]*atomic.Uint64, len(levels))
	for _, lvl := range levels {
		limits[lvl] = rate.NewLimiter(cfg.Limit, cfg.Burst)
		dropped[lvl] = &atomic.Uint64{}
	}
	if cfg.Inform {
		go reportDropped(ctx, dropped)
	}
	return &rateLimiterHandler{
		next:    next,
		limits:  limits,
		dropped: dropped,
	}
}

func (h *rateLimiterHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if !h.next.Enabled(ctx, level) {
		return false
	}
	if !h.limits[level].Allow() {
		h.dropped[level].Add(1)
		return false
	}
	return true
}

func (h *rateLimiterHandler) Handle(ctx context.Context, record slog.Record) error {
	return h.next.Handle(ctx, record)
}

func (h *rateLimiterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &rateLimiterHandler{next: h.next.WithAttrs(attrs), limits: h.limits, dropped: h.dropped}
}

func (h *rateLimiterHandler) WithGroup(name string) slog.Handler {
	return &rateLimiterHandler{next: h.next.WithGroup(name), limits: h.limits, dropped: h.dropped}
}

func reportDropped(ctx context.Context, dropped map[slog.Level]*atomic.Uint64) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for level, val := range dropped {
				if count := val.Swap(0); count > 0 {
					slog.Warn(fmt.Sprintf("logs rate limit, dropped %d lines for level %s", count, level.String()))
				}
			}
		}
	}
}
