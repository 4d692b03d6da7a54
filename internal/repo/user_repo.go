// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides read access to users.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-realty-backend/internal/domain"
)

// GetUser fetches a user by ID, or ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, id uint) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// UserIDsByRole returns the ids of every user with role.
func UserIDsByRole(ctx context.Context, db *gorm.DB, role domain.Role) ([]uint, error) {
	var ids []uint
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("role = ?", role).
		Order("id asc").
		Pluck("id", &ids).Error
	return ids, err
}
