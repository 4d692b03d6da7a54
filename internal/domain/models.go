// Package domain defines the persistence models for users, properties, sales,
// favorites, device tokens, and notifications. These types are mapped with
// GORM and are shared across the repository and service layers.
package domain

import "time"

// EntityProperty is the related_entity_type used for notifications that
// point at a property.
const EntityProperty = "property"

// Role is the marketplace role of a user.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleBroker Role = "broker"
	RoleClient Role = "client"
)

// User is an account known to the marketplace. Authentication is handled
// upstream; the service layer only reads Role and Approved.
//
// Fields:
//   - Role: admin, broker, or client.
//   - Approved: brokers must be approved by an admin before listing.
type User struct {
	ID        uint      `json:"id"         gorm:"primaryKey"`
	Name      string    `json:"name"       gorm:"type:varchar(255);not null"`
	Email     string    `json:"email"      gorm:"type:varchar(255);not null;uniqueIndex"`
	Role      Role      `json:"role"       gorm:"type:varchar(16);not null;index;check:role IN ('admin','broker','client')"`
	Approved  bool      `json:"approved"   gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Property is a listing. Exactly one of BrokerID or OwnerID is set at
// creation: brokers list directly, clients submit through the client flow.
//
// Price holds the headline price, PriceSale and PriceRent the purpose
// specific prices. SaleValue, CommissionValue and CommissionRate are filled
// when a deal is closed and nulled again when it is cancelled.
type Property struct {
	ID          uint           `json:"id"          gorm:"primaryKey"`
	Title       string         `json:"title"       gorm:"type:varchar(255);not null"`
	Description string         `json:"description" gorm:"type:text"`
	Type        string         `json:"type"        gorm:"type:varchar(64)"`
	Purpose     Purpose        `json:"purpose"     gorm:"type:varchar(32);not null"`
	Status      PropertyStatus `json:"status"      gorm:"type:varchar(32);not null;index;default:'pending_approval'"`

	Price     float64  `json:"price"      gorm:"type:decimal(14,2);not null;default:0"`
	PriceSale *float64 `json:"price_sale" gorm:"type:decimal(14,2)"`
	PriceRent *float64 `json:"price_rent" gorm:"type:decimal(14,2)"`

	CommissionRate  *float64 `json:"commission_rate"  gorm:"type:decimal(6,2)"`
	CommissionValue *float64 `json:"commission_value" gorm:"type:decimal(14,2)"`
	SaleValue       *float64 `json:"sale_value"       gorm:"type:decimal(14,2)"`

	Address    string   `json:"address"    gorm:"type:varchar(255)"`
	City       string   `json:"city"       gorm:"type:varchar(128);index"`
	Bedrooms   int      `json:"bedrooms"`
	Bathrooms  int      `json:"bathrooms"`
	Area       float64  `json:"area"`
	IPTU       *float64 `json:"iptu"       gorm:"column:iptu;type:decimal(14,2)"`
	Condominio *float64 `json:"condominio" gorm:"type:decimal(14,2)"`

	BrokerID *uint `json:"broker_id" gorm:"index"`
	OwnerID  *uint `json:"owner_id"  gorm:"index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Property.
func (Property) TableName() string { return "properties" }

// OwnedBy reports whether userID is the broker or the submitting client.
func (p *Property) OwnedBy(userID uint) bool {
	if userID == 0 {
		return false
	}
	return (p.BrokerID != nil && *p.BrokerID == userID) ||
		(p.OwnerID != nil && *p.OwnerID == userID)
}

// SalePrice returns the publicly visible sale price, if the purpose allows
// sales. PriceSale wins over the headline Price.
func (p *Property) SalePrice() *float64 {
	if !p.Purpose.Allows(DealSale) {
		return nil
	}
	if p.PriceSale != nil {
		return p.PriceSale
	}
	if p.Price > 0 {
		v := p.Price
		return &v
	}
	return nil
}

// RentPrice returns the publicly visible rent price, if the purpose allows
// rentals. For rent-only listings the headline Price is the rent.
func (p *Property) RentPrice() *float64 {
	if !p.Purpose.Allows(DealRent) {
		return nil
	}
	if p.PriceRent != nil {
		return p.PriceRent
	}
	if p.Purpose == PurposeRent && p.Price > 0 {
		v := p.Price
		return &v
	}
	return nil
}

// Sale is the commission record of a closed deal. A property has at most one
// current sale; the unique index on property_id backs that invariant.
//
// Fields:
//   - SalePrice: agreed amount of the deal (sale price or monthly rent).
//   - CommissionRate / CommissionAmount: percent and resulting amount.
//   - IsRecurring / CommissionCycles / RecurrenceInterval: recurring rental
//     commissions; CommissionCycles counts cycles already paid.
type Sale struct {
	ID                 uint               `json:"id"                  gorm:"primaryKey"`
	PropertyID         uint               `json:"property_id"         gorm:"not null;uniqueIndex:ux_sales_property"`
	BrokerID           uint               `json:"broker_id"           gorm:"not null;index"`
	DealType           DealType           `json:"deal_type"           gorm:"type:varchar(8);not null;check:deal_type IN ('sale','rent')"`
	SalePrice          float64            `json:"sale_price"          gorm:"type:decimal(14,2);not null"`
	CommissionRate     float64            `json:"commission_rate"     gorm:"type:decimal(6,2);not null"`
	CommissionAmount   float64            `json:"commission_amount"   gorm:"type:decimal(14,2);not null"`
	IPTUValue          *float64           `json:"iptu_value"          gorm:"column:iptu_value;type:decimal(14,2)"`
	CondominioValue    *float64           `json:"condominio_value"    gorm:"type:decimal(14,2)"`
	IsRecurring        bool               `json:"is_recurring"        gorm:"not null;default:false"`
	CommissionCycles   int                `json:"commission_cycles"   gorm:"not null;default:0"`
	RecurrenceInterval RecurrenceInterval `json:"recurrence_interval" gorm:"type:varchar(16);not null;default:'none'"`
	SaleDate           time.Time          `json:"sale_date"           gorm:"not null;index"`

	Property Property `json:"-" gorm:"foreignKey:PropertyID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Sale.
func (Sale) TableName() string { return "sales" }

// Favorite marks a property of interest for a user. Favoriting users are the
// recipients of price-drop alerts.
type Favorite struct {
	UserID     uint      `json:"user_id"     gorm:"primaryKey"`
	PropertyID uint      `json:"property_id" gorm:"primaryKey;index"`
	CreatedAt  time.Time `json:"created_at"`

	Property Property `json:"-" gorm:"foreignKey:PropertyID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Favorite.
func (Favorite) TableName() string { return "favorites" }

// DeviceToken is a push registration of a user's device.
type DeviceToken struct {
	ID        uint      `json:"id"         gorm:"primaryKey"`
	UserID    uint      `json:"user_id"    gorm:"not null;index"`
	Token     string    `json:"token"      gorm:"type:varchar(512);not null;uniqueIndex"`
	Platform  string    `json:"platform"   gorm:"type:varchar(16)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for DeviceToken.
func (DeviceToken) TableName() string { return "device_tokens" }

// Notification is an in-app notification. A nil RecipientID is a broadcast
// to admins. Rows also back the price-drop cooldown lookup.
type Notification struct {
	ID                uint      `json:"id"                  gorm:"primaryKey"`
	Message           string    `json:"message"             gorm:"type:text;not null"`
	RelatedEntityType string    `json:"related_entity_type" gorm:"type:varchar(32);not null;index:idx_notif_entity,priority:1"`
	RelatedEntityID   uint      `json:"related_entity_id"   gorm:"not null;index:idx_notif_entity,priority:2"`
	RecipientID       *uint     `json:"recipient_id"        gorm:"index:idx_notif_recipient,priority:1"`
	IsRead            bool      `json:"is_read"             gorm:"not null;default:false"`
	CreatedAt         time.Time `json:"created_at"          gorm:"index:idx_notif_recipient,priority:2"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string { return "notifications" }
