package ratelimit

import (
	"context"
	"time"
)

// Tier enumerates the subscription tiers with distinct rate limits.
type Tier string

// Known tiers. Unknown values fall back to the free tier.
const (
	TierFree    Tier = "free"
	TierBasic   Tier = "basic"
	TierPremium Tier = "premium"
)

const window = 60 * time.Second

// Limit returns the number of requests the tier may make per window.
func (t Tier) Limit() int {
	switch t {
	case TierPremium:
		return 50
	case TierBasic:
		return 15
	default:
		return 5
	}
}

// Window returns the sliding window duration for the tier.
func (t Tier) Window() time.Duration {
	return window
}

// ParseTier normalises a tier claim, defaulting to free.
func ParseTier(value string) Tier {
	switch Tier(value) {
	case TierBasic:
		return TierBasic
	case TierPremium:
		return TierPremium
	default:
		return TierFree
	}
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long the caller should wait before retrying a denied request.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.Allowed || d.ResetAt.IsZero() {
		return 0
	}
	wait := d.ResetAt.Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// Limiter admits or denies a request for an identity under its tier's sliding window.
// Check is synchronous and never waits for capacity.
type Limiter interface {
	Check(ctx context.Context, identity string, tier Tier) (Decision, error)
}
