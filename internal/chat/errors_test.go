package chat

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func jsonOf(v any) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}

func TestErrorMessages(t *testing.T) {
	cause := errors.New("disk full")

	assert.Equal(t, "chat: rate limited, retry after 42s", (&RateLimitError{RetryAfter: 42}).Error())
	assert.Equal(t, "chat: create general: disk full", (&PersistenceError{Op: "create", Channel: "general", Err: cause}).Error())
	assert.Equal(t, "chat: publish message 7 to chat.general: disk full", (&PublishError{Topic: "chat.general", MessageID: 7, Err: cause}).Error())

	assert.ErrorIs(t, &PersistenceError{Err: cause}, cause)
	assert.ErrorIs(t, &PublishError{Err: cause}, cause)
}
