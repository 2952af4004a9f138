package chat

import (
	"fmt"

	"github.com/zulandar/chatrelay/internal/ratelimit"
)

// RateLimitError rejects a submission whose identity exhausted its window.
type RateLimitError struct {
	// RetryAfter is the whole number of seconds until the window resets.
	RetryAfter int
	Decision   ratelimit.Decision
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("chat: rate limited, retry after %ds", e.RetryAfter)
}

// PersistenceError reports that the message store could not complete an
// operation. Its detail is for logs only.
type PersistenceError struct {
	Op      string
	Channel string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("chat: %s %s: %v", e.Op, e.Channel, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// PublishError reports that a committed message could not be announced to
// subscribers. It never fails a submission.
type PublishError struct {
	Topic     string
	MessageID uint
	Err       error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("chat: publish message %d to %s: %v", e.MessageID, e.Topic, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }
