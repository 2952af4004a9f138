// Package messaging persists chat messages and formats them for broadcast.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/zulandar/chatrelay/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DefaultChannel is used when a message or query names no channel.
const DefaultChannel = "general"

// DefaultLimit caps how many recent messages ListByChannel returns.
const DefaultLimit = 50

// ErrUnavailable marks failures of the durable medium itself.
var ErrUnavailable = errors.New("messaging: store unavailable")

// CreateOpts holds optional parameters for creating a message.
type CreateOpts struct {
	UserName *string
	UserID   *string
	Metadata map[string]any
}

// Store is the durable record of chat messages. Messages are immutable: no
// update or delete operations exist.
type Store interface {
	// Create assigns the id and creation time and commits the message.
	Create(ctx context.Context, content, channel string, opts CreateOpts) (*models.Message, error)

	// ListByChannel returns up to limit of the most recent messages in the
	// channel, oldest first.
	ListByChannel(ctx context.Context, channel string, limit int) ([]models.Message, error)
}

// Now returns the commit timestamp for a new message: UTC, truncated to the
// microsecond precision every backend can store exactly.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// GormStore implements Store over any GORM dialect.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore wraps db. The messages table must already be migrated.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: Now}
}

// Create inserts a new message. The id comes from the database's native
// auto-increment, so concurrent writers always receive increasing ids.
func (s *GormStore) Create(ctx context.Context, content, channel string, opts CreateOpts) (*models.Message, error) {
	if content == "" {
		return nil, fmt.Errorf("messaging: content is required")
	}
	if channel == "" {
		channel = DefaultChannel
	}

	msg := models.Message{
		Content:   content,
		Channel:   channel,
		UserName:  opts.UserName,
		UserID:    opts.UserID,
		CreatedAt: s.now(),
	}
	if opts.Metadata != nil {
		msg.Metadata = datatypes.JSONMap(opts.Metadata)
	}

	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("%w: create in %s: %w", ErrUnavailable, channel, err)
	}
	return &msg, nil
}

// ListByChannel fetches the newest page first, then reverses it so callers
// see the batch in chronological order.
func (s *GormStore) ListByChannel(ctx context.Context, channel string, limit int) ([]models.Message, error) {
	if channel == "" {
		channel = DefaultChannel
	}
	limit = clampLimit(limit)

	var msgs []models.Message
	if err := s.db.WithContext(ctx).
		Where("channel = ?", channel).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", ErrUnavailable, channel, err)
	}
	slices.Reverse(msgs)
	return msgs, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
