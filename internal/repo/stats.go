// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-realty-backend/internal/domain"
)

// NotificationsStats returns the number of notifications visible to a
// recipient and the newest created_at among them (nil when there are none).
func NotificationsStats(ctx context.Context, db *gorm.DB, recipientID uint, includeBroadcast bool) (count int64, newest *time.Time, err error) {
	q := recipientScope(db.WithContext(ctx).Model(&domain.Notification{}), recipientID, includeBroadcast)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	q = recipientScope(db.WithContext(ctx).Model(&domain.Notification{}), recipientID, includeBroadcast)
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
