// Package ratelimit enforces per-identity daily request quotas with a
// fixed-window counter.
//
// The window is the current UTC calendar day, but the counter's TTL is 24
// hours from its first increment rather than aligned to UTC midnight, so
// bursts straddling a window boundary are possible. That is the documented
// design, not a bug.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/Gurupranav-tech/kalpi-assignment/internal/tier"
)

const counterTTL = 24 * time.Hour

// CounterStore is the backing store for daily counters. The default
// Get/Create/Incr sequence is not atomic: concurrent requests from the same
// identity can both observe a below-quota count and over-admit transiently.
// CheckAndIncr is the atomic alternative, enabled per-limiter.
type CounterStore interface {
	Get(ctx context.Context, key string) (int64, bool, error)
	Create(ctx context.Context, key string, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	CheckAndIncr(ctx context.Context, key string, quota int64, ttl time.Duration) (allowed bool, newValue int64, err error)
}

// Decision is the outcome of one rate-limit evaluation.
type Decision struct {
	Allowed   bool
	Remaining tier.Quota
}

// Limiter evaluates the fixed-window quota for a subject and tier.
type Limiter struct {
	store  CounterStore
	atomic bool

	// now is injectable for window-boundary tests.
	now func() time.Time
}

// New creates a limiter. With atomic set, the store's CheckAndIncr is used
// instead of the separate get/create/incr calls.
func New(store CounterStore, atomic bool) *Limiter {
	return &Limiter{store: store, atomic: atomic, now: time.Now}
}

// WithClock overrides the limiter's clock. Test hook.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// counterKey composes the per-identity, per-UTC-day key. The subject is the
// stable resolved identity, never the raw credential — a reissued token must
// not grant a fresh quota.
func (l *Limiter) counterKey(subject string) string {
	day := l.now().UTC().Format("2006-01-02")
	return "rate_limit:" + subject + ":" + day
}

// Check evaluates the quota for one request. Unlimited tiers never touch
// the store. An exhausted window is not incremented further.
func (l *Limiter) Check(ctx context.Context, subject string, tc tier.Config) (Decision, error) {
	if tc.DailyQuota.Unlimited {
		return Decision{Allowed: true, Remaining: tier.NoLimit()}, nil
	}

	quota := tc.DailyQuota.N
	key := l.counterKey(subject)

	if l.atomic {
		allowed, newValue, err := l.store.CheckAndIncr(ctx, key, quota, counterTTL)
		if err != nil {
			return Decision{}, fmt.Errorf("rate limit check: %w", err)
		}
		if !allowed {
			return Decision{Allowed: false, Remaining: tier.Limit(0)}, nil
		}
		return Decision{Allowed: true, Remaining: tier.Limit(clampRemaining(quota - newValue))}, nil
	}

	value, exists, err := l.store.Get(ctx, key)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit check: %w", err)
	}

	if !exists {
		if err := l.store.Create(ctx, key, counterTTL); err != nil {
			return Decision{}, fmt.Errorf("rate limit create: %w", err)
		}
		return Decision{Allowed: true, Remaining: tier.Limit(quota - 1)}, nil
	}

	if value >= quota {
		return Decision{Allowed: false, Remaining: tier.Limit(0)}, nil
	}

	newValue, err := l.store.Incr(ctx, key)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit incr: %w", err)
	}
	return Decision{Allowed: true, Remaining: tier.Limit(clampRemaining(quota - newValue))}, nil
}

// clampRemaining absorbs the over-admission race in non-atomic mode: a
// concurrent increment can push the counter past quota, but the reported
// remaining count never goes negative.
func clampRemaining(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
