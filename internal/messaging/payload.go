package messaging

import (
	"time"

	"github.com/samber/lo"
	"github.com/zulandar/chatrelay/internal/models"
)

// EventMessageSent is the event name subscribers receive for new messages.
const EventMessageSent = "message.sent"

// AnonymousName replaces a missing user name in payloads.
const AnonymousName = "Anonymous"

const (
	// TimestampLayout renders created_at as ISO-8601 UTC with microseconds.
	TimestampLayout = "2006-01-02T15:04:05.000000Z"
	// ClockLayout renders created_at as 24-hour HH:MM.
	ClockLayout = "15:04"
)

// Payload is the fixed shape sent to subscribers and returned by retrieval.
// Every producer must build it through NewPayload.
type Payload struct {
	ID            uint           `json:"id"`
	Content       string         `json:"content"`
	UserName      string         `json:"user_name"`
	UserID        *string        `json:"user_id"`
	Channel       string         `json:"channel"`
	Timestamp     string         `json:"timestamp"`
	FormattedTime string         `json:"formatted_time"`
	Metadata      map[string]any `json:"metadata"`
}

// Topic returns the pub/sub topic for a channel.
func Topic(channel string) string {
	return "chat." + channel
}

// NewPayload formats a committed message. formatted_time is rendered in loc;
// a nil loc means UTC.
func NewPayload(m models.Message, loc *time.Location) Payload {
	if loc == nil {
		loc = time.UTC
	}
	userName := AnonymousName
	if m.UserName != nil {
		userName = *m.UserName
	}
	var metadata map[string]any
	if m.Metadata != nil {
		metadata = map[string]any(m.Metadata)
	}
	return Payload{
		ID:            m.ID,
		Content:       m.Content,
		UserName:      userName,
		UserID:        m.UserID,
		Channel:       m.Channel,
		Timestamp:     m.CreatedAt.UTC().Format(TimestampLayout),
		FormattedTime: m.CreatedAt.In(loc).Format(ClockLayout),
		Metadata:      metadata,
	}
}

// NewPayloads formats a batch, preserving order.
func NewPayloads(msgs []models.Message, loc *time.Location) []Payload {
	return lo.Map(msgs, func(m models.Message, _ int) Payload {
		return NewPayload(m, loc)
	})
}
