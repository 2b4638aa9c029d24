// Package ratelimit spaces out requests to the source site with a token bucket.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/cme-volume-scraper/internal/metrics"
	"github.com/JakeFAU/cme-volume-scraper/internal/volume"
)

// Config holds rate limiter configuration. A zero MinInterval disables limiting.
type Config struct {
	MinInterval time.Duration
	Burst       int
}

// Limiter gates upstream fetches.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Inf
	if cfg.MinInterval > 0 {
		r = rate.Every(cfg.MinInterval)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(r, burst)}
}

// Wait blocks until a token is available or ctx is done.
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

// Extractor delays each extraction until the limiter allows it.
type Extractor struct {
	next    volume.Extractor
	limiter *Limiter
}

// Wrap returns next guarded by limiter.
func Wrap(next volume.Extractor, limiter *Limiter) *Extractor {
	return &Extractor{next: next, limiter: limiter}
}

// Extract waits for a token and delegates.
func (e *Extractor) Extract(ctx context.Context) (volume.Extraction, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return volume.Extraction{}, err
	}
	return e.next.Extract(ctx)
}
