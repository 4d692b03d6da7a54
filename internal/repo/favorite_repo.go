// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for favorites.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-realty-backend/internal/domain"
)

// AddFavorite marks propertyID as a favorite of userID. Repeating the call
// is a no-op.
func AddFavorite(ctx context.Context, db *gorm.DB, userID, propertyID uint) error {
	fav := &domain.Favorite{UserID: userID, PropertyID: propertyID, CreatedAt: time.Now().UTC()}
	return db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(fav).Error
}

// RemoveFavorite deletes the favorite, or returns ErrNotFound.
func RemoveFavorite(ctx context.Context, db *gorm.DB, userID, propertyID uint) error {
	res := db.WithContext(ctx).
		Where("user_id = ? AND property_id = ?", userID, propertyID).
		Delete(&domain.Favorite{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FavoritingUserIDs returns the ids of every user who favorited propertyID.
func FavoritingUserIDs(ctx context.Context, db *gorm.DB, propertyID uint) ([]uint, error) {
	var ids []uint
	err := db.WithContext(ctx).
		Model(&domain.Favorite{}).
		Where("property_id = ?", propertyID).
		Order("user_id asc").
		Pluck("user_id", &ids).Error
	return ids, err
}

// ListFavoriteProperties returns the properties a user favorited, most
// recently favorited first.
func ListFavoriteProperties(ctx context.Context, db *gorm.DB, userID uint) ([]domain.Property, error) {
	var out []domain.Property
	err := db.WithContext(ctx).
		Joins("JOIN favorites ON favorites.property_id = properties.id").
		Where("favorites.user_id = ?", userID).
		Order("favorites.created_at desc").
		Find(&out).Error
	return out, err
}
