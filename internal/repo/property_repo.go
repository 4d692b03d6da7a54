// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Property
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They perform persistence only; status
// rules live in services.PropertyService.
//
// Error semantics:
//   - When a property is not found, functions return ErrNotFound.
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-realty-backend/internal/domain"
)

// CreateProperty inserts p and fills its generated ID.
func CreateProperty(ctx context.Context, db *gorm.DB, p *domain.Property) error {
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	return db.WithContext(ctx).Create(p).Error
}

// GetProperty fetches a property by ID, or ErrNotFound.
func GetProperty(ctx context.Context, db *gorm.DB, id uint) (*domain.Property, error) {
	var p domain.Property
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePropertyFields applies column updates to a property. Nil values in
// fields write SQL NULL. An empty map is a no-op.
func UpdatePropertyFields(ctx context.Context, db *gorm.DB, id uint, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.Property{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetDealFields records a closed deal on the property row.
func SetDealFields(ctx context.Context, db *gorm.DB, id uint, status domain.PropertyStatus, saleValue, rate, commission float64) error {
	return UpdatePropertyFields(ctx, db, id, map[string]any{
		"status":           status,
		"sale_value":       saleValue,
		"commission_rate":  rate,
		"commission_value": commission,
	})
}

// ClearDealFields returns the property to approved and nulls the deal fields.
func ClearDealFields(ctx context.Context, db *gorm.DB, id uint) error {
	return UpdatePropertyFields(ctx, db, id, map[string]any{
		"status":           domain.StatusApproved,
		"sale_value":       nil,
		"commission_rate":  nil,
		"commission_value": nil,
	})
}

// SetPropertyStatus changes only the status column.
func SetPropertyStatus(ctx context.Context, db *gorm.DB, id uint, status domain.PropertyStatus) error {
	return UpdatePropertyFields(ctx, db, id, map[string]any{"status": status})
}
