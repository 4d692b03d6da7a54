// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the device-token store used by push
// delivery.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-realty-backend/internal/domain"
)

// UpsertDeviceToken registers token for userID. A token that moves to a new
// user (shared device, re-login) is reassigned.
func UpsertDeviceToken(ctx context.Context, db *gorm.DB, userID uint, token, platform string) error {
	now := time.Now().UTC()
	dt := &domain.DeviceToken{UserID: userID, Token: token, Platform: platform, CreatedAt: now, UpdatedAt: now}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id", "platform", "updated_at"}),
		}).
		Create(dt).Error
}

// DeleteUserDeviceToken removes a token owned by userID.
func DeleteUserDeviceToken(ctx context.Context, db *gorm.DB, userID uint, token string) error {
	res := db.WithContext(ctx).Where("user_id = ? AND token = ?", userID, token).Delete(&domain.DeviceToken{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TokensForUsers returns the distinct tokens of the given users. A nil
// userIDs slice means every known token.
func TokensForUsers(ctx context.Context, db *gorm.DB, userIDs []uint) ([]string, error) {
	if userIDs == nil {
		var all []string
		err := db.WithContext(ctx).Model(&domain.DeviceToken{}).Order("id asc").Pluck("token", &all).Error
		return all, err
	}

	var out []string
	for _, chunk := range chunkIDs(userIDs, DefaultInsertBatch) {
		var tokens []string
		err := db.WithContext(ctx).
			Model(&domain.DeviceToken{}).
			Where("user_id IN ?", chunk).
			Order("id asc").
			Pluck("token", &tokens).Error
		if err != nil {
			return nil, err
		}
		out = append(out, tokens...)
	}
	return out, nil
}

// DeleteTokens removes the given tokens and returns the number deleted.
func DeleteTokens(ctx context.Context, db *gorm.DB, tokens []string) (int64, error) {
	if len(tokens) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).Where("token IN ?", tokens).Delete(&domain.DeviceToken{})
	return res.RowsAffected, res.Error
}
