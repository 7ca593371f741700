// Package ratelimit implements the blanket request pacing applied before every
// source fetch.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/nepjol-importer/internal/metrics"
)

// Config holds pacing configuration.
type Config struct {
	// Delay is the fixed gap enforced before every request. Zero disables pacing.
	Delay time.Duration
}

// Limiter spaces requests by a fixed delay regardless of host.
type Limiter struct {
	limiter *rate.Limiter
	delay   time.Duration
}

// New creates a new Limiter. The initial token is consumed so the very first
// request also waits the full delay.
func New(cfg Config) *Limiter {
	if cfg.Delay <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	l := rate.NewLimiter(rate.Every(cfg.Delay), 1)
	l.Allow()
	return &Limiter{limiter: l, delay: cfg.Delay}
}

// Delay reports the configured gap.
func (l *Limiter) Delay() time.Duration {
	return l.delay
}

// Wait blocks until the next request may go out, respecting the context.
func (l *Limiter) Wait(ctx context.Context) error {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(waited)
	}
	return nil
}
