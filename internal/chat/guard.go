package chat

import (
	"context"
	"fmt"

	"github.com/zulandar/chatrelay/internal/ratelimit"
	"github.com/zulandar/chatrelay/internal/validate"
)

// Submission is the state guards inspect before a message is validated.
type Submission struct {
	Input    validate.Input
	Identity string

	// Quota is set once the rate limiter has been consulted.
	Quota *ratelimit.Decision
}

// Guard runs before validation. A non-nil error rejects the submission and
// stops the remaining guards.
type Guard func(ctx context.Context, sub *Submission) error

// RateLimitGuard counts the submission against its identity and rejects it
// with a *RateLimitError once the window is exhausted.
func RateLimitGuard(l *ratelimit.Limiter) Guard {
	return func(ctx context.Context, sub *Submission) error {
		d, err := l.Allow(ctx, sub.Identity)
		if err != nil {
			return fmt.Errorf("chat: rate limit: %w", err)
		}
		sub.Quota = &d
		if !d.Allowed {
			return &RateLimitError{RetryAfter: d.RetryAfterSeconds(), Decision: d}
		}
		return nil
	}
}
