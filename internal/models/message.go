package models

import (
	"time"

	"gorm.io/datatypes"
)

// Message is a single chat message posted to a channel. Rows are written once
// and never updated.
type Message struct {
	ID        uint              `gorm:"primaryKey;autoIncrement" json:"id"`
	Content   string            `gorm:"type:text;not null" json:"content"`
	Channel   string            `gorm:"size:50;not null;default:general;index:idx_channel_created,priority:1" json:"channel"`
	UserName  *string           `gorm:"size:50" json:"user_name"`
	UserID    *string           `gorm:"size:255" json:"user_id"`
	Metadata  datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt time.Time         `gorm:"precision:6;index:idx_channel_created,priority:2" json:"created_at"`
}

// RateLimitCounter is a fixed-window hit counter shared by every relay
// instance pointed at the same database.
type RateLimitCounter struct {
	LimitKey string    `gorm:"primaryKey;size:255"`
	Hits     int       `gorm:"not null;default:0"`
	ResetAt  time.Time `gorm:"not null;index"`
}
