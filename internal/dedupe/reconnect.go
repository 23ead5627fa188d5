package dedupe

import (
	"time"

	"github.com/virattt/dexter-sub002/internal/backoff"
)

// ReconnectPolicy is the bounded exponential backoff with jitter that every
// channel plugin's transport loop consults after a disconnect (C11, spec
// §4.11). It wraps backoff.Policy so the jitter/exponent math is shared with
// the LLM retry loop (C1) rather than reimplemented per concern.
type ReconnectPolicy struct {
	policy backoff.Policy
}

// NewReconnectPolicy builds a ReconnectPolicy from explicit bounds, as
// resolved from gateway.json's `gateway.reconnect` block.
func NewReconnectPolicy(minDelay, maxDelay time.Duration, maxAttempts int, jitter float64) ReconnectPolicy {
	return ReconnectPolicy{policy: backoff.Policy{
		InitialMs:   float64(minDelay.Milliseconds()),
		MaxMs:       float64(maxDelay.Milliseconds()),
		Factor:      2,
		Jitter:      jitter,
		MaxAttempts: maxAttempts,
	}}
}

// DefaultReconnectPolicy returns the spec's implied default: a minimum of
// 1s, a cap of 60s, unbounded attempts, 20% jitter.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{policy: backoff.DefaultReconnectPolicy()}
}

// NextDelay returns the duration to wait before the next reconnect attempt
// (1-indexed), or ok=false if the policy says to give up.
func (p ReconnectPolicy) NextDelay(attempt int) (d time.Duration, ok bool) {
	if p.policy.MaxAttempts > 0 && attempt > p.policy.MaxAttempts {
		return 0, false
	}
	return backoff.Compute(p.policy, attempt), true
}

// GiveUp reports whether the policy has exhausted its attempt budget.
func (p ReconnectPolicy) GiveUp(attempt int) bool {
	return p.policy.MaxAttempts > 0 && attempt > p.policy.MaxAttempts
}
