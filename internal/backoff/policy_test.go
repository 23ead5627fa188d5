package backoff

import (
	"testing"
	"time"
)

func TestComputeWithRandNoJitter(t *testing.T) {
	p := LLMRetryPolicy()

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, 1000 * time.Millisecond},
		{3, 2000 * time.Millisecond}, // capped at MaxMs
	}
	for _, c := range cases {
		got := ComputeWithRand(p, c.attempt, 0)
		if got != c.want {
			t.Errorf("attempt %d: got %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestComputeWithRandAppliesJitterWithinBounds(t *testing.T) {
	p := DefaultReconnectPolicy()

	low := ComputeWithRand(p, 1, 0)
	high := ComputeWithRand(p, 1, 1)
	if high < low {
		t.Fatalf("expected higher random value to produce a >= delay, got low=%v high=%v", low, high)
	}
	if high > time.Duration(p.MaxMs)*time.Millisecond {
		t.Fatalf("expected delay to be capped at MaxMs, got %v", high)
	}
}

func TestComputeWithRandCapsAtMax(t *testing.T) {
	p := Policy{InitialMs: 1000, MaxMs: 5000, Factor: 2, Jitter: 0}
	got := ComputeWithRand(p, 10, 0)
	want := 5000 * time.Millisecond
	if got != want {
		t.Fatalf("expected delay capped at MaxMs for a large attempt count, got %v want %v", got, want)
	}
}
