// Package services – FavoriteService
//
// This file implements favorites: a user marks a listing of interest and
// can list or remove those marks later. The caller and the property must
// exist (ErrUnauthenticated, ErrPropertyNotFound); adding twice is a no-op and
// removing a missing favorite yields ErrFavoriteNotFound. The favoriting
// users are the audience of price-drop alerts.
package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-realty-backend/internal/domain"
	"github.com/tbourn/go-realty-backend/internal/repo"
)

// FavoriteService manages the users' favorite listings. Favoriting users are
// the audience of price-drop alerts.
type FavoriteService struct {
	DB *gorm.DB
}

// Add marks the property as a favorite of userID. Adding twice is a no-op.
func (s *FavoriteService) Add(ctx context.Context, userID, propertyID uint) error {
	if _, err := loadCaller(ctx, s.DB, userID); err != nil {
		return err
	}
	if _, err := repo.GetProperty(ctx, s.DB, propertyID); err != nil {
		if isNotFound(err) {
			return ErrPropertyNotFound
		}
		return err
	}
	return repo.AddFavorite(ctx, s.DB, userID, propertyID)
}

// Remove drops the favorite. ErrFavoriteNotFound when there was none.
func (s *FavoriteService) Remove(ctx context.Context, userID, propertyID uint) error {
	if err := repo.RemoveFavorite(ctx, s.DB, userID, propertyID); err != nil {
		if isNotFound(err) {
			return ErrFavoriteNotFound
		}
		return err
	}
	return nil
}

// List returns the caller's favorite properties.
func (s *FavoriteService) List(ctx context.Context, userID uint) ([]domain.Property, error) {
	if _, err := loadCaller(ctx, s.DB, userID); err != nil {
		return nil, err
	}
	return repo.ListFavoriteProperties(ctx, s.DB, userID)
}
