// Package ratelimit gates outbound catalog requests per credential.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket bounding requests per minute for one credential.
// The bucket capacity equals the per-minute limit and refills continuously at
// one token per 60s/limit. Blocking in Acquire is the backpressure mechanism;
// requests are never dropped.
type Limiter struct {
	rl *rate.Limiter
}

// NewPerMinute builds a limiter allowing perMinute acquisitions per minute.
// The bucket starts with a single token so the first minute of a run stays
// within the configured limit; capacity builds back up only through refill.
// perMinute <= 0 disables limiting.
func NewPerMinute(perMinute int) *Limiter {
	if perMinute <= 0 {
		return &Limiter{rl: rate.NewLimiter(rate.Inf, 1)}
	}
	rl := rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	rl.AllowN(time.Now(), perMinute-1)
	return &Limiter{rl: rl}
}

// Acquire blocks until a token is available or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.rl.Wait(ctx)
}
