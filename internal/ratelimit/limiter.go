// Package ratelimit throttles message submissions per caller identity using
// a fixed window counter kept in a pluggable store.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"
)

// KeyPrefix namespaces submission counters so they cannot collide with other
// keys sharing the store.
const KeyPrefix = "chat_message:"

// Key returns the counter key for a caller identity.
func Key(identity string) string {
	return KeyPrefix + identity
}

// Counter is the state of one window after a hit was recorded.
type Counter struct {
	Hits    int
	ResetAt time.Time
}

// CounterStore records hits against fixed windows. Increment must count the
// hit and return the resulting state in one atomic step per key: when the
// window stored for key has expired (ResetAt <= now), a new window starting
// at now replaces it.
type CounterStore interface {
	Increment(ctx context.Context, key string, now time.Time, window time.Duration) (Counter, error)
}

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// RetryAfterSeconds returns the wait before the window resets, rounded up to
// whole seconds and never less than one.
func (d Decision) RetryAfterSeconds() int {
	secs := int(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// Limiter allows at most maxAttempts hits per identity per window.
type Limiter struct {
	store       CounterStore
	maxAttempts int
	window      time.Duration
	now         func() time.Time
}

// New creates a Limiter backed by store.
func New(store CounterStore, maxAttempts int, window time.Duration) *Limiter {
	return &Limiter{
		store:       store,
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
	}
}

// Limit returns the per-window ceiling.
func (l *Limiter) Limit() int {
	return l.maxAttempts
}

// Allow records an attempt for identity and reports whether it fits in the
// current window. Denied attempts are counted too; they never move the reset
// time.
func (l *Limiter) Allow(ctx context.Context, identity string) (Decision, error) {
	now := l.now()
	c, err := l.store.Increment(ctx, Key(identity), now, l.window)
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: increment %s: %w", identity, err)
	}

	d := Decision{
		Allowed:    c.Hits <= l.maxAttempts,
		Limit:      l.maxAttempts,
		Remaining:  max(l.maxAttempts-c.Hits, 0),
		ResetAt:    c.ResetAt,
		RetryAfter: max(c.ResetAt.Sub(now), 0),
	}
	return d, nil
}
