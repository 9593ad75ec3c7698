package backoff_test

import (
	"context"
	"testing"
	"time"

	"github.com/ecadtools/datasheetdl/pkg/pipeline/backoff"
)

func TestPolicyDelayGrowsAndCaps(t *testing.T) {
	t.Parallel()

	p := backoff.Policy{
		Initial:     100 * time.Millisecond,
		Max:         400 * time.Millisecond,
		Multiplier:  2,
		JitterFrac:  0,
		MaxAttempts: 5,
	}

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		400 * time.Millisecond, // capped
	}
	for attempt, w := range want {
		if got := p.Delay(attempt); got != w {
			t.Fatalf("attempt %d: got %v, want %v", attempt, got, w)
		}
	}
}

func TestPolicyDelayJitterBounds(t *testing.T) {
	t.Parallel()

	p := backoff.Policy{
		Initial:    1 * time.Second,
		Max:        1 * time.Second,
		JitterFrac: 0.2,
	}
	for i := 0; i < 50; i++ {
		d := p.Delay(0)
		if d < 800*time.Millisecond || d > 1200*time.Millisecond {
			t.Fatalf("jittered delay %v outside +/-20%% of 1s", d)
		}
	}
}

func TestPolicyDefaults(t *testing.T) {
	t.Parallel()

	var p backoff.Policy
	if p.Attempts() != 3 {
		t.Fatalf("zero policy should default to 3 attempts, got %d", p.Attempts())
	}
	if p.Delay(0) <= 0 {
		t.Fatalf("zero policy should produce a positive delay")
	}
}

func TestSleepRespectsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := backoff.Sleep(ctx, time.Hour); err == nil {
		t.Fatalf("expected cancellation error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("sleep did not return promptly on cancellation: %v", elapsed)
	}
}
