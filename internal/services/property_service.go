// Package services – PropertyService
//
// This file implements the property lifecycle:
//
//	pending_approval --(admin)--> approved | rejected
//	approved --(broker closes deal)--> sold | rented
//	sold | rented --(broker cancels deal)--> approved
//
// Closing a deal computes the commission, upserts the single sale row of the
// property, and records the deal fields on the property in one transaction.
// Cancelling nulls those fields and deletes the sale row, also atomically.
// Side effects (price-drop alerts, admin and owner notifications) are
// published as events after commit; a failed publish is logged and never
// undoes the transition.
//
// Field edits are allowed in every status: approval does not freeze a
// listing.
package services

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-realty-backend/internal/deals"
	"github.com/tbourn/go-realty-backend/internal/domain"
	"github.com/tbourn/go-realty-backend/internal/events"
	"github.com/tbourn/go-realty-backend/internal/observability"
	"github.com/tbourn/go-realty-backend/internal/repo"
)

// NullableFloat is an optional, clearable number in a partial update.
// Set is false when the field was absent; Set with a nil Value clears it.
type NullableFloat struct {
	Set   bool
	Value *float64
}

// UnmarshalJSON marks the field as present. null clears it; numbers and
// numeric strings set it.
func (n *NullableFloat) UnmarshalJSON(data []byte) error {
	n.Set = true
	n.Value = nil
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if unq, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unq)
		if raw == "" {
			return nil
		}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("%w: %q is not a number", deals.ErrInvalidPrice, raw)
	}
	n.Value = &v
	return nil
}

// CreateInput holds the fields of a new listing.
type CreateInput struct {
	Title       string
	Description string
	Type        string
	Purpose     string
	Price       float64
	PriceSale   *float64
	PriceRent   *float64
	Address     string
	City        string
	Bedrooms    int
	Bathrooms   int
	Area        float64
	IPTU        *float64
	Condominio  *float64
}

// UpdateInput is a partial update. Nil pointers and unset NullableFloats are
// left untouched. Status is free-form and goes through domain.ParseStatus.
// The Deal field is used only when Status resolves to sold or rented.
type UpdateInput struct {
	Title       *string
	Description *string
	Type        *string
	Purpose     *string
	Price       *float64
	PriceSale   NullableFloat
	PriceRent   NullableFloat
	Address     *string
	City        *string
	Bedrooms    *int
	Bathrooms   *int
	Area        *float64
	IPTU        NullableFloat
	Condominio  NullableFloat

	Status *string
	Deal   DealInput
}

// DealInput carries the raw terms of a deal closing. Blank strings fall back
// to the property's values and the documented defaults.
type DealInput struct {
	Type               string
	Amount             string
	CommissionRate     string
	CommissionCycles   string
	RecurrenceInterval string
	IPTU               *float64
	Condominio         *float64
}

// DealSummary is the result of a closing.
type DealSummary struct {
	Property *domain.Property `json:"property"`
	Sale     *domain.Sale     `json:"sale"`
}

// PropertyService owns listing creation, edits, moderation, and deals.
type PropertyService struct {
	DB     *gorm.DB
	Events events.Publisher

	// DefaultRate is the commission percent used when neither the request
	// nor the property carries one.
	DefaultRate float64

	// Now is the clock stamped on sale rows; time.Now when nil.
	Now func() time.Time
}

// NewPropertyService constructs a PropertyService with the default rate.
// A nil publisher discards events.
func NewPropertyService(db *gorm.DB, pub events.Publisher) *PropertyService {
	if pub == nil {
		pub = events.Discard{}
	}
	return &PropertyService{DB: db, Events: pub, DefaultRate: deals.DefaultCommissionRate}
}

// Get returns a property by id.
func (s *PropertyService) Get(ctx context.Context, id uint) (*domain.Property, error) {
	p, err := repo.GetProperty(ctx, s.DB, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrPropertyNotFound
		}
		return nil, err
	}
	return p, nil
}

// Create lists a new property in pending_approval. Approved brokers list as
// broker; clients submit as owner.
func (s *PropertyService) Create(ctx context.Context, callerID uint, in CreateInput) (*domain.Property, error) {
	ctx, span := s.tracer().Start(ctx, "Create",
		trace.WithAttributes(attribute.Int64("user.id", int64(callerID))),
	)
	defer span.End()

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	purpose, err := domain.ParsePurpose(in.Purpose)
	if err != nil {
		return nil, err
	}
	for _, v := range []*float64{&in.Price, in.PriceSale, in.PriceRent, &in.Area, in.IPTU, in.Condominio} {
		if err := checkAmount(v); err != nil {
			return nil, err
		}
	}
	if in.Bedrooms < 0 || in.Bathrooms < 0 {
		return nil, fmt.Errorf("%w: room counts must be >= 0", ErrInvalidInput)
	}

	u, err := loadCaller(ctx, s.DB, callerID)
	if err != nil {
		return nil, err
	}

	p := &domain.Property{
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Type:        strings.TrimSpace(in.Type),
		Purpose:     purpose,
		Status:      domain.StatusPendingApproval,
		Price:       in.Price,
		PriceSale:   in.PriceSale,
		PriceRent:   in.PriceRent,
		Address:     strings.TrimSpace(in.Address),
		City:        strings.TrimSpace(in.City),
		Bedrooms:    in.Bedrooms,
		Bathrooms:   in.Bathrooms,
		Area:        in.Area,
		IPTU:        in.IPTU,
		Condominio:  in.Condominio,
	}
	switch u.Role {
	case domain.RoleBroker:
		if !u.Approved {
			return nil, ErrBrokerNotApproved
		}
		p.BrokerID = &u.ID
	case domain.RoleClient:
		p.OwnerID = &u.ID
	default:
		return nil, ErrForbidden
	}

	if err := repo.CreateProperty(ctx, s.DB, p); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("property.id", int64(p.ID)))

	e := events.New(events.PropertySubmitted, p.ID, p.Title)
	e.ActorID = u.ID
	s.publish(ctx, e)
	return p, nil
}

// Update applies a partial edit by the property's owner. A status of sold or
// rented closes a deal (broker only); approved on a closed property cancels
// the deal; a rejected listing may be resubmitted as pending_approval. Other
// status changes belong to Review.
func (s *PropertyService) Update(ctx context.Context, propertyID, callerID uint, in UpdateInput) (*domain.Property, error) {
	ctx, span := s.tracer().Start(ctx, "Update",
		trace.WithAttributes(
			attribute.Int64("property.id", int64(propertyID)),
			attribute.Int64("user.id", int64(callerID)),
		),
	)
	defer span.End()

	fields, err := updateColumns(in)
	if err != nil {
		return nil, err
	}
	var target *domain.PropertyStatus
	if in.Status != nil {
		st, err := domain.ParseStatus(*in.Status)
		if err != nil {
			return nil, err
		}
		target = &st
	}
	if len(fields) == 0 && target == nil {
		return nil, ErrNoChanges
	}

	var (
		before, after *domain.Property
		closed        *closing
		cancelled     domain.DealType
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := loadCaller(ctx, tx, callerID)
		if err != nil {
			return err
		}
		p, err := s.lockProperty(ctx, tx, propertyID)
		if err != nil {
			return err
		}
		if !p.OwnedBy(u.ID) {
			return ErrForbidden
		}
		before = p

		if purpose, ok := fields["purpose"].(domain.Purpose); ok && p.Status.Closed() {
			if !purpose.Allows(dealTypeOf(p.Status)) {
				return ErrPurposeMismatch
			}
		}
		if err := repo.UpdatePropertyFields(ctx, tx, p.ID, fields); err != nil {
			return err
		}

		if target != nil {
			switch {
			case target.Closed():
				in.Deal.Type = string(dealTypeOf(*target))
				c, err := s.closeDeal(ctx, tx, u, p.ID, in.Deal)
				if err != nil {
					return err
				}
				closed = c
			case *target == domain.StatusApproved && p.Status.Closed():
				if err := s.cancelDeal(ctx, tx, u, p); err != nil {
					return err
				}
				cancelled = dealTypeOf(p.Status)
			case *target == p.Status:
				// no-op
			case *target == domain.StatusPendingApproval && p.Status == domain.StatusRejected:
				if err := repo.SetPropertyStatus(ctx, tx, p.ID, domain.StatusPendingApproval); err != nil {
					return err
				}
			case *target == domain.StatusApproved || *target == domain.StatusRejected:
				return ErrForbidden
			default:
				return ErrInvalidTransition
			}
		}

		after, err = repo.GetProperty(ctx, tx, p.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if cancelled != "" {
		observability.DealsTotal.WithLabelValues("cancel", string(cancelled)).Inc()
	}
	if closed != nil {
		s.afterClose(ctx, callerID, before, closed)
	}
	s.publishPriceChange(ctx, before, after)
	return after, nil
}

// CloseDeal closes a sale or rental on a property listed by brokerID.
func (s *PropertyService) CloseDeal(ctx context.Context, propertyID, brokerID uint, in DealInput) (*DealSummary, error) {
	ctx, span := s.tracer().Start(ctx, "CloseDeal",
		trace.WithAttributes(
			attribute.Int64("property.id", int64(propertyID)),
			attribute.Int64("user.id", int64(brokerID)),
			attribute.String("deal.type", in.Type),
		),
	)
	defer span.End()

	if _, err := domain.ParseDealType(in.Type); err != nil {
		return nil, err
	}

	var (
		before *domain.Property
		c      *closing
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := loadCaller(ctx, tx, brokerID)
		if err != nil {
			return err
		}
		p, err := s.lockProperty(ctx, tx, propertyID)
		if err != nil {
			return err
		}
		before = p
		c, err = s.closeDeal(ctx, tx, u, p.ID, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterClose(ctx, brokerID, before, c)
	span.SetAttributes(attribute.Float64("deal.commission", c.sale.CommissionAmount))
	return &DealSummary{Property: c.property, Sale: c.sale}, nil
}

// CancelDeal reverts a sold or rented property to approved, clearing the
// deal fields and deleting its sale row.
func (s *PropertyService) CancelDeal(ctx context.Context, propertyID, brokerID uint) (*domain.Property, error) {
	ctx, span := s.tracer().Start(ctx, "CancelDeal",
		trace.WithAttributes(
			attribute.Int64("property.id", int64(propertyID)),
			attribute.Int64("user.id", int64(brokerID)),
		),
	)
	defer span.End()

	var (
		after *domain.Property
		kind  domain.DealType
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := loadCaller(ctx, tx, brokerID)
		if err != nil {
			return err
		}
		p, err := s.lockProperty(ctx, tx, propertyID)
		if err != nil {
			return err
		}
		if err := s.cancelDeal(ctx, tx, u, p); err != nil {
			return err
		}
		kind = dealTypeOf(p.Status)
		after, err = repo.GetProperty(ctx, tx, p.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	observability.DealsTotal.WithLabelValues("cancel", string(kind)).Inc()
	return after, nil
}

// Review is the admin decision on a listing: approved or rejected. Closed
// deals must be cancelled before a listing can be moderated again.
func (s *PropertyService) Review(ctx context.Context, propertyID, adminID uint, rawStatus string) (*domain.Property, error) {
	ctx, span := s.tracer().Start(ctx, "Review",
		trace.WithAttributes(
			attribute.Int64("property.id", int64(propertyID)),
			attribute.Int64("user.id", int64(adminID)),
		),
	)
	defer span.End()

	target, err := domain.ParseStatus(rawStatus)
	if err != nil {
		return nil, err
	}
	if target != domain.StatusApproved && target != domain.StatusRejected {
		return nil, ErrInvalidTransition
	}

	var before, after *domain.Property
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := loadCaller(ctx, tx, adminID)
		if err != nil {
			return err
		}
		if u.Role != domain.RoleAdmin {
			return ErrAdminOnly
		}
		p, err := s.lockProperty(ctx, tx, propertyID)
		if err != nil {
			return err
		}
		if p.Status.Closed() {
			return ErrInvalidTransition
		}
		before = p
		if p.Status != target {
			if err := repo.SetPropertyStatus(ctx, tx, p.ID, target); err != nil {
				return err
			}
		}
		after, err = repo.GetProperty(ctx, tx, p.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if before.Status != after.Status {
		e := events.New(events.PropertyReviewed, after.ID, after.Title)
		e.Status = after.Status
		e.ActorID = adminID
		e.OwnerIDs = ownerIDs(after)
		s.publish(ctx, e)
	}
	return after, nil
}

// closing is what closeDeal hands back to the caller after commit.
type closing struct {
	property *domain.Property
	sale     *domain.Sale
	dealType domain.DealType
}

// closeDeal runs inside tx. u must be the property's broker.
func (s *PropertyService) closeDeal(ctx context.Context, tx *gorm.DB, u *domain.User, propertyID uint, in DealInput) (*closing, error) {
	dealType, err := domain.ParseDealType(in.Type)
	if err != nil {
		return nil, err
	}
	override, err := deals.ParseRate(in.CommissionRate)
	if err != nil {
		return nil, err
	}
	cycles, err := deals.ParseCycles(in.CommissionCycles)
	if err != nil {
		return nil, err
	}
	recurrence, err := deals.ParseRecurrence(in.RecurrenceInterval)
	if err != nil {
		return nil, err
	}
	for _, v := range []*float64{in.IPTU, in.Condominio} {
		if err := checkAmount(v); err != nil {
			return nil, err
		}
	}

	if u.Role != domain.RoleBroker {
		return nil, ErrNotBroker
	}
	// Re-read: the caller may have just edited prices in this transaction.
	p, err := repo.GetProperty(ctx, tx, propertyID)
	if err != nil {
		return nil, err
	}
	if p.BrokerID == nil || *p.BrokerID != u.ID {
		return nil, ErrNotBroker
	}
	if !p.Purpose.Allows(dealType) {
		return nil, ErrPurposeMismatch
	}
	if p.Status == domain.StatusPendingApproval || p.Status == domain.StatusRejected {
		return nil, ErrInvalidTransition
	}

	amount, err := deals.ResolveDealAmount(in.Amount, fallbackAmount(p, dealType))
	if err != nil {
		return nil, err
	}
	rate, err := deals.ResolveRate(override, p.CommissionRate, s.defaultRate())
	if err != nil {
		return nil, err
	}
	commission := deals.CommissionAmount(amount, rate)

	iptu, condominio := in.IPTU, in.Condominio
	if iptu == nil {
		iptu = p.IPTU
	}
	if condominio == nil {
		condominio = p.Condominio
	}

	sale, err := repo.UpsertSale(ctx, tx, p.ID, repo.SaleFields{
		BrokerID:           u.ID,
		DealType:           dealType,
		SalePrice:          amount,
		CommissionRate:     rate,
		CommissionAmount:   commission,
		IPTUValue:          iptu,
		CondominioValue:    condominio,
		IsRecurring:        recurrence != domain.RecurrenceNone,
		CommissionCycles:   cycles,
		RecurrenceInterval: recurrence,
	}, s.now())
	if err != nil {
		return nil, err
	}
	if err := repo.SetDealFields(ctx, tx, p.ID, dealType.ClosedStatus(), amount, rate, commission); err != nil {
		return nil, err
	}
	after, err := repo.GetProperty(ctx, tx, p.ID)
	if err != nil {
		return nil, err
	}
	return &closing{property: after, sale: sale, dealType: dealType}, nil
}

// cancelDeal runs inside tx. u must be the property's broker and p sold or
// rented.
func (s *PropertyService) cancelDeal(ctx context.Context, tx *gorm.DB, u *domain.User, p *domain.Property) error {
	if u.Role != domain.RoleBroker || p.BrokerID == nil || *p.BrokerID != u.ID {
		return ErrNotBroker
	}
	if !p.Status.Closed() {
		return ErrNoDealToCancel
	}
	if err := repo.ClearDealFields(ctx, tx, p.ID); err != nil {
		return err
	}
	_, err := repo.DeleteSales(ctx, tx, p.ID)
	return err
}

// afterClose records metrics and publishes the deal-closed event when the
// status actually changed.
func (s *PropertyService) afterClose(ctx context.Context, actorID uint, before *domain.Property, c *closing) {
	observability.DealsTotal.WithLabelValues("close", string(c.dealType)).Inc()
	if before != nil && before.Status == c.property.Status {
		return
	}
	e := events.New(events.DealClosed, c.property.ID, c.property.Title)
	e.Status = c.property.Status
	e.DealType = c.dealType
	e.ActorID = actorID
	s.publish(ctx, e)
}

// publishPriceChange emits PriceChanged when an approved listing stays
// approved and one of its visible prices changed. Only the touched side is
// carried.
func (s *PropertyService) publishPriceChange(ctx context.Context, before, after *domain.Property) {
	if before == nil || after == nil {
		return
	}
	if before.Status != domain.StatusApproved || after.Status != domain.StatusApproved {
		return
	}
	e := events.New(events.PriceChanged, after.ID, after.Title)
	changed := false
	if oldSale, newSale := before.SalePrice(), after.SalePrice(); !samePrice(oldSale, newSale) {
		e.OldSale, e.NewSale = oldSale, newSale
		changed = true
	}
	if oldRent, newRent := before.RentPrice(), after.RentPrice(); !samePrice(oldRent, newRent) {
		e.OldRent, e.NewRent = oldRent, newRent
		changed = true
	}
	if changed {
		s.publish(ctx, e)
	}
}

func (s *PropertyService) publish(ctx context.Context, e events.Event) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, e); err != nil {
		logger(ctx).Warn().Err(err).
			Str("event_type", string(e.Type)).
			Uint("property_id", e.PropertyID).
			Msg("event publish failed")
	}
}

// lockProperty loads the property for update. Postgres takes a row lock;
// SQLite serializes writers already.
func (s *PropertyService) lockProperty(ctx context.Context, tx *gorm.DB, id uint) (*domain.Property, error) {
	q := tx
	if tx.Dialector != nil && tx.Dialector.Name() == "postgres" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	p, err := repo.GetProperty(ctx, q, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrPropertyNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *PropertyService) defaultRate() float64 {
	if s.DefaultRate > 0 {
		return s.DefaultRate
	}
	return deals.DefaultCommissionRate
}

func (s *PropertyService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *PropertyService) tracer() trace.Tracer {
	return otel.Tracer("services/PropertyService")
}

// updateColumns validates the partial update and maps it to columns.
func updateColumns(in UpdateInput) (map[string]any, error) {
	f := map[string]any{}
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		if t == "" {
			return nil, fmt.Errorf("%w: title must not be empty", ErrInvalidInput)
		}
		f["title"] = t
	}
	if in.Description != nil {
		f["description"] = strings.TrimSpace(*in.Description)
	}
	if in.Type != nil {
		f["type"] = strings.TrimSpace(*in.Type)
	}
	if in.Purpose != nil {
		p, err := domain.ParsePurpose(*in.Purpose)
		if err != nil {
			return nil, err
		}
		f["purpose"] = p
	}
	if in.Address != nil {
		f["address"] = strings.TrimSpace(*in.Address)
	}
	if in.City != nil {
		f["city"] = strings.TrimSpace(*in.City)
	}
	if in.Bedrooms != nil {
		if *in.Bedrooms < 0 {
			return nil, fmt.Errorf("%w: bedrooms must be >= 0", ErrInvalidInput)
		}
		f["bedrooms"] = *in.Bedrooms
	}
	if in.Bathrooms != nil {
		if *in.Bathrooms < 0 {
			return nil, fmt.Errorf("%w: bathrooms must be >= 0", ErrInvalidInput)
		}
		f["bathrooms"] = *in.Bathrooms
	}
	for col, v := range map[string]*float64{"price": in.Price, "area": in.Area} {
		if v == nil {
			continue
		}
		if err := checkAmount(v); err != nil {
			return nil, err
		}
		f[col] = *v
	}
	for col, v := range map[string]NullableFloat{
		"price_sale": in.PriceSale, "price_rent": in.PriceRent,
		"iptu": in.IPTU, "condominio": in.Condominio,
	} {
		if !v.Set {
			continue
		}
		if err := checkAmount(v.Value); err != nil {
			return nil, err
		}
		f[col] = v.Value
	}
	return f, nil
}

func checkAmount(v *float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
		return deals.ErrInvalidPrice
	}
	return nil
}

// fallbackAmount is the deal amount used when none is given: the visible
// price for the deal type, else the headline price.
func fallbackAmount(p *domain.Property, d domain.DealType) float64 {
	var v *float64
	if d == domain.DealRent {
		v = p.RentPrice()
	} else {
		v = p.SalePrice()
	}
	if v != nil {
		return *v
	}
	return p.Price
}

func dealTypeOf(s domain.PropertyStatus) domain.DealType {
	if s == domain.StatusRented {
		return domain.DealRent
	}
	return domain.DealSale
}

func samePrice(a, b *float64) bool {
	switch {
	case a == nil && b == nil:
		return true
	case a == nil || b == nil:
		return false
	}
	return *a == *b
}

func ownerIDs(p *domain.Property) []uint {
	var ids []uint
	if p.BrokerID != nil {
		ids = append(ids, *p.BrokerID)
	}
	if p.OwnerID != nil {
		ids = append(ids, *p.OwnerID)
	}
	return ids
}
