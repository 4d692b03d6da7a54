// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the Sale upserter: a property has at
// most one current sale row, updated in place on repeated deal-closings.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-realty-backend/internal/domain"
)

// SaleFields are the deal terms written by UpsertSale.
type SaleFields struct {
	BrokerID           uint
	DealType           domain.DealType
	SalePrice          float64
	CommissionRate     float64
	CommissionAmount   float64
	IPTUValue          *float64
	CondominioValue    *float64
	IsRecurring        bool
	CommissionCycles   int
	RecurrenceInterval domain.RecurrenceInterval
}

// LatestSale returns the most recent sale for a property, or ErrNotFound.
func LatestSale(ctx context.Context, db *gorm.DB, propertyID uint) (*domain.Sale, error) {
	var s domain.Sale
	err := db.WithContext(ctx).
		Where("property_id = ?", propertyID).
		Order("sale_date desc, id desc").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpsertSale writes the deal terms for propertyID. The latest existing row is
// updated in place and its sale_date reset to now; otherwise a row is
// inserted. Two concurrent first closings race on the unique property_id
// index, and the loser's insert turns into an update through ON CONFLICT.
//
// Call it inside the same transaction that flips the property status.
func UpsertSale(ctx context.Context, db *gorm.DB, propertyID uint, f SaleFields, now time.Time) (*domain.Sale, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	tx := db.WithContext(ctx)

	existing, err := LatestSale(ctx, tx, propertyID)
	switch {
	case err == nil:
		res := tx.Model(&domain.Sale{}).
			Where("id = ?", existing.ID).
			Updates(saleColumns(f, now))
		if res.Error != nil {
			return nil, res.Error
		}
		return LatestSale(ctx, tx, propertyID)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	s := &domain.Sale{
		PropertyID:         propertyID,
		BrokerID:           f.BrokerID,
		DealType:           f.DealType,
		SalePrice:          f.SalePrice,
		CommissionRate:     f.CommissionRate,
		CommissionAmount:   f.CommissionAmount,
		IPTUValue:          f.IPTUValue,
		CondominioValue:    f.CondominioValue,
		IsRecurring:        f.IsRecurring,
		CommissionCycles:   f.CommissionCycles,
		RecurrenceInterval: f.RecurrenceInterval,
		SaleDate:           now,
	}
	err = tx.Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "property_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"broker_id", "deal_type", "sale_price", "commission_rate",
				"commission_amount", "iptu_value", "condominio_value",
				"is_recurring", "commission_cycles", "recurrence_interval", "sale_date",
			}),
		}).
		Create(s).Error
	if isDuplicate(err) {
		// Lost the race on a driver that surfaced the conflict anyway.
		err = tx.Model(&domain.Sale{}).
			Where("property_id = ?", propertyID).
			Updates(saleColumns(f, now)).Error
	}
	if err != nil {
		return nil, err
	}
	return LatestSale(ctx, tx, propertyID)
}

// DeleteSales removes every sale row of a property and returns how many
// were deleted.
func DeleteSales(ctx context.Context, db *gorm.DB, propertyID uint) (int64, error) {
	res := db.WithContext(ctx).Where("property_id = ?", propertyID).Delete(&domain.Sale{})
	return res.RowsAffected, res.Error
}

// CountSales returns the number of sale rows stored for a property.
func CountSales(ctx context.Context, db *gorm.DB, propertyID uint) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Sale{}).Where("property_id = ?", propertyID).Count(&n).Error
	return n, err
}

func saleColumns(f SaleFields, now time.Time) map[string]any {
	return map[string]any{
		"broker_id":           f.BrokerID,
		"deal_type":           f.DealType,
		"sale_price":          f.SalePrice,
		"commission_rate":     f.CommissionRate,
		"commission_amount":   f.CommissionAmount,
		"iptu_value":          f.IPTUValue,
		"condominio_value":    f.CondominioValue,
		"is_recurring":        f.IsRecurring,
		"commission_cycles":   f.CommissionCycles,
		"recurrence_interval": f.RecurrenceInterval,
		"sale_date":           now,
	}
}
