// Package backoff provides the retry delay policy shared by the search and
// download stages. Delays are computed from an explicit policy so retry
// behavior is unit-testable without real sleeps.
package backoff

import (
	"context"
	"math/rand/v2"
	"time"
)

// Policy describes an exponential backoff ladder.
type Policy struct {
	// Initial is the delay before the first retry.
	Initial time.Duration
	// Max caps the exponential growth.
	Max time.Duration
	// Multiplier scales the delay between attempts. Values <= 1 mean doubling.
	Multiplier float64
	// JitterFrac applies +/- jitter to delays (0.2 = +/-20%).
	JitterFrac float64
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
}

// Default mirrors the stage defaults: 3 attempts, 1s initial delay doubling
// up to 30s, with +/-20% jitter.
func Default() Policy {
	return Policy{
		Initial:     1 * time.Second,
		Max:         30 * time.Second,
		Multiplier:  2,
		JitterFrac:  0.2,
		MaxAttempts: 3,
	}
}

func (p Policy) withDefaults() Policy {
	if p.Initial <= 0 {
		p.Initial = 1 * time.Second
	}
	if p.Max <= 0 {
		p.Max = 30 * time.Second
	}
	if p.Multiplier <= 1 {
		p.Multiplier = 2
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	return p
}

// Attempts returns the total attempt budget.
func (p Policy) Attempts() int {
	return p.withDefaults().MaxAttempts
}

// Delay returns the sleep before retrying after the given zero-based failed
// attempt, with jitter applied.
func (p Policy) Delay(attempt int) time.Duration {
	p = p.withDefaults()
	d := p.Initial
	for i := 0; i < attempt && d < p.Max; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
		if d > p.Max {
			d = p.Max
			break
		}
	}
	if p.JitterFrac <= 0 {
		return d
	}
	j := 1 + (rand.Float64()*2-1)*p.JitterFrac
	return time.Duration(float64(d) * j)
}

// SleepFunc is an injectable sleep so stages can be tested without delays.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
