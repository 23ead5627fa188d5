// Package backoff provides exponential-backoff-with-jitter utilities shared
// by the LLM client facade's retry loop (C1) and the channel reconnect
// policy (C11).
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Policy defines the parameters for exponential backoff calculation.
type Policy struct {
	// InitialMs is the initial backoff duration in milliseconds.
	InitialMs float64
	// MaxMs caps the backoff duration in milliseconds.
	MaxMs float64
	// Factor is the exponential growth factor applied per attempt.
	Factor float64
	// Jitter is the randomization fraction (0.0-1.0) applied on top of base.
	Jitter float64
	// MaxAttempts bounds the number of attempts; 0 means unbounded.
	MaxAttempts int
}

// Compute returns the backoff duration for a given 1-indexed attempt.
func Compute(p Policy, attempt int) time.Duration {
	return ComputeWithRand(p, attempt, rand.Float64()) //nolint:gosec // jitter, not security sensitive
}

// ComputeWithRand is Compute with an injected random source, for
// deterministic tests.
func ComputeWithRand(p Policy, attempt int, randomValue float64) time.Duration {
	exp := math.Max(float64(attempt-1), 0)
	base := p.InitialMs * math.Pow(p.Factor, exp)
	jitter := base * p.Jitter * randomValue
	total := math.Min(p.MaxMs, base+jitter)
	return time.Duration(math.Round(total)) * time.Millisecond
}

// LLMRetryPolicy matches spec §4.1/§5: 500ms, 1s, 2s (500ms * 2^(attempt-1)).
func LLMRetryPolicy() Policy {
	return Policy{InitialMs: 500, MaxMs: 2000, Factor: 2, Jitter: 0, MaxAttempts: 3}
}

// DefaultReconnectPolicy is a sensible default for channel reconnect backoff.
func DefaultReconnectPolicy() Policy {
	return Policy{InitialMs: 1000, MaxMs: 60000, Factor: 2, Jitter: 0.2, MaxAttempts: 0}
}
