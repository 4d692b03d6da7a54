// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Notification model: batched inserts, the cooldown lookup used by the
// price-drop notifier, and paginated listing.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-realty-backend/internal/domain"
)

// DefaultInsertBatch bounds the number of rows per INSERT statement.
const DefaultInsertBatch = 500

// InsertNotifications writes rows in chunks of batchSize (DefaultInsertBatch
// when <= 0). It returns the number of rows written.
func InsertNotifications(ctx context.Context, db *gorm.DB, rows []domain.Notification, batchSize int) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = DefaultInsertBatch
	}
	res := db.WithContext(ctx).CreateInBatches(rows, batchSize)
	return res.RowsAffected, res.Error
}

// RecentlyNotified returns the subset of recipientIDs that already received
// a notification about (entityType, entityID) whose message starts with one
// of prefixes, created at or after since.
func RecentlyNotified(ctx context.Context, db *gorm.DB, recipientIDs []uint, entityType string, entityID uint, prefixes []string, since time.Time) (map[uint]struct{}, error) {
	out := make(map[uint]struct{})
	if len(recipientIDs) == 0 || len(prefixes) == 0 {
		return out, nil
	}

	for _, chunk := range chunkIDs(recipientIDs, DefaultInsertBatch) {
		q := db.WithContext(ctx).
			Model(&domain.Notification{}).
			Distinct("recipient_id").
			Where("recipient_id IN ?", chunk).
			Where("related_entity_type = ? AND related_entity_id = ?", entityType, entityID).
			Where("created_at >= ?", since)

		like := db.Where("message LIKE ?", prefixes[0]+"%")
		for _, p := range prefixes[1:] {
			like = like.Or("message LIKE ?", p+"%")
		}
		q = q.Where(like)

		var ids []uint
		if err := q.Pluck("recipient_id", &ids).Error; err != nil {
			return nil, err
		}
		for _, id := range ids {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

// CountNotifications returns how many notifications a recipient has. With
// includeBroadcast, admin broadcasts (NULL recipient) are counted too.
func CountNotifications(ctx context.Context, db *gorm.DB, recipientID uint, includeBroadcast bool) (int64, error) {
	var total int64
	err := recipientScope(db.WithContext(ctx).Model(&domain.Notification{}), recipientID, includeBroadcast).
		Count(&total).Error
	return total, err
}

// ListNotificationsPage returns a page of notifications, newest first.
func ListNotificationsPage(ctx context.Context, db *gorm.DB, recipientID uint, includeBroadcast bool, offset, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	err := recipientScope(db.WithContext(ctx), recipientID, includeBroadcast).
		Order("created_at desc, id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MarkNotificationRead flags a notification owned by recipientID as read.
func MarkNotificationRead(ctx context.Context, db *gorm.DB, id, recipientID uint) error {
	res := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func recipientScope(q *gorm.DB, recipientID uint, includeBroadcast bool) *gorm.DB {
	if includeBroadcast {
		return q.Where("recipient_id = ? OR recipient_id IS NULL", recipientID)
	}
	return q.Where("recipient_id = ?", recipientID)
}

// chunkIDs splits ids into slices of at most size elements.
func chunkIDs(ids []uint, size int) [][]uint {
	if size <= 0 {
		size = len(ids)
	}
	var out [][]uint
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
