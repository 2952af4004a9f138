package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/zulandar/chatrelay/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps counters in the rate_limit_counters table so every relay
// instance pointed at the same database shares one limit per identity.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps db. The counters table must already be migrated.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Increment upserts the counter in a single statement. The CASE expressions
// read the stored reset_at, so an expired window restarts at one hit while a
// live one is incremented in place. Times are stored at second precision in
// UTC so they compare correctly on every dialect.
func (s *GormStore) Increment(ctx context.Context, key string, now time.Time, window time.Duration) (Counter, error) {
	now = now.UTC().Truncate(time.Second)
	resetAt := now.Add(window)

	row := models.RateLimitCounter{LimitKey: key, Hits: 1, ResetAt: resetAt}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "limit_key"}},
			// Assignments sorts by column, so hits is written before reset_at;
			// MySQL evaluates assignments left to right.
			DoUpdates: clause.Assignments(map[string]any{
				"hits":     gorm.Expr("CASE WHEN reset_at > ? THEN hits + 1 ELSE 1 END", now),
				"reset_at": gorm.Expr("CASE WHEN reset_at > ? THEN reset_at ELSE ? END", now, resetAt),
			}),
		}).Create(&row).Error; err != nil {
			return err
		}
		return tx.Where("limit_key = ?", key).Take(&row).Error
	})
	if err != nil {
		return Counter{}, fmt.Errorf("ratelimit: upsert counter: %w", err)
	}
	return Counter{Hits: row.Hits, ResetAt: row.ResetAt.UTC()}, nil
}

// Prune deletes counters whose window ended at or before now.
func (s *GormStore) Prune(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("reset_at <= ?", now.UTC().Truncate(time.Second)).
		Delete(&models.RateLimitCounter{})
	if result.Error != nil {
		return 0, fmt.Errorf("ratelimit: prune counters: %w", result.Error)
	}
	return result.RowsAffected, nil
}
