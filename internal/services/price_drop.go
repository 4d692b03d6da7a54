// Package services – PriceDropNotifier
//
// This file detects qualifying price reductions on a listing and alerts the
// users who favorited it. A drop qualifies when (old-new)/old reaches the
// threshold on the sale or the rent price. Users already alerted about this
// property within the cooldown window are skipped, using the notifications
// table itself as the record of past alerts.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
	"gorm.io/gorm"

	"github.com/tbourn/go-realty-backend/internal/domain"
	"github.com/tbourn/go-realty-backend/internal/repo"
)

// Price-drop defaults.
const (
	DefaultDropThreshold = 0.10
	DefaultDropCooldown  = 6 * time.Hour
)

// priceDropPrefix starts every price-drop message. The ASCII spelling is
// matched too so alerts written without diacritics still count.
const (
	priceDropPrefix      = "Preço reduzido"
	priceDropPrefixASCII = "Preco reduzido"
)

// PriceChange carries the visible prices of a listing before and after an
// edit. Nil means the price was not set (or not touched).
type PriceChange struct {
	PropertyID uint
	Title      string
	OldSale    *float64
	NewSale    *float64
	OldRent    *float64
	NewRent    *float64
}

// UserNotifier is the fan-out used by the notifier.
type UserNotifier interface {
	NotifyUsers(ctx context.Context, message string, recipientIDs []uint, entityType string, entityID uint) (DeliveryResult, error)
}

// PriceDropNotifier alerts favoriting users about price reductions.
type PriceDropNotifier struct {
	DB        *gorm.DB
	Notifier  UserNotifier
	Threshold float64
	Cooldown  time.Duration

	// Now is the cooldown clock; time.Now when nil.
	Now func() time.Time
}

// NewPriceDropNotifier uses the default threshold and cooldown.
func NewPriceDropNotifier(db *gorm.DB, n UserNotifier) *PriceDropNotifier {
	return &PriceDropNotifier{DB: db, Notifier: n, Threshold: DefaultDropThreshold, Cooldown: DefaultDropCooldown}
}

// NotifyIfNeeded alerts favoriting users outside the cooldown when c holds a
// qualifying drop. It returns how many users were notified; no qualifying
// drop writes nothing.
func (n *PriceDropNotifier) NotifyIfNeeded(ctx context.Context, c PriceChange) (int, error) {
	ctx, span := otel.Tracer("services/PriceDropNotifier").Start(ctx, "NotifyIfNeeded",
		trace.WithAttributes(attribute.Int64("property.id", int64(c.PropertyID))),
	)
	defer span.End()

	threshold := n.Threshold
	if threshold <= 0 {
		threshold = DefaultDropThreshold
	}
	saleDrop := qualifies(c.OldSale, c.NewSale, threshold)
	rentDrop := qualifies(c.OldRent, c.NewRent, threshold)
	span.SetAttributes(attribute.Bool("drop.sale", saleDrop), attribute.Bool("drop.rent", rentDrop))
	if !saleDrop && !rentDrop {
		return 0, nil
	}

	fans, err := repo.FavoritingUserIDs(ctx, n.DB, c.PropertyID)
	if err != nil {
		return 0, err
	}
	if len(fans) == 0 {
		return 0, nil
	}

	cooldown := n.Cooldown
	if cooldown <= 0 {
		cooldown = DefaultDropCooldown
	}
	recent, err := repo.RecentlyNotified(ctx, n.DB, fans, domain.EntityProperty, c.PropertyID,
		[]string{priceDropPrefix, priceDropPrefixASCII}, n.now().Add(-cooldown))
	if err != nil {
		return 0, err
	}
	recipients := make([]uint, 0, len(fans))
	for _, id := range fans {
		if _, skip := recent[id]; !skip {
			recipients = append(recipients, id)
		}
	}
	if len(recipients) == 0 {
		logger(ctx).Debug().Uint("property_id", c.PropertyID).Msg("price drop suppressed by cooldown")
		return 0, nil
	}

	msg := dropMessage(c, saleDrop, rentDrop)
	if _, err := n.Notifier.NotifyUsers(ctx, msg, recipients, domain.EntityProperty, c.PropertyID); err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int("recipients", len(recipients)))
	return len(recipients), nil
}

func (n *PriceDropNotifier) now() time.Time {
	if n.Now != nil {
		return n.Now().UTC()
	}
	return time.Now().UTC()
}

// qualifies reports whether before -> after is a drop of at least
// threshold. Increases and removed prices never qualify.
func qualifies(before, after *float64, threshold float64) bool {
	if before == nil || after == nil || *after <= 0 || *before <= 0 || *after >= *before {
		return false
	}
	o := decimal.NewFromFloat(*before)
	drop := o.Sub(decimal.NewFromFloat(*after)).Div(o)
	return drop.GreaterThanOrEqual(decimal.NewFromFloat(threshold))
}

func dropMessage(c PriceChange, sale, rent bool) string {
	var parts []string
	if sale {
		parts = append(parts, fmt.Sprintf("venda de %s para %s", formatBRL(*c.OldSale), formatBRL(*c.NewSale)))
	}
	if rent {
		parts = append(parts, fmt.Sprintf("aluguel de %s para %s", formatBRL(*c.OldRent), formatBRL(*c.NewRent)))
	}
	title := strings.TrimSpace(c.Title)
	if title == "" {
		title = fmt.Sprintf("Imóvel #%d", c.PropertyID)
	}
	return fmt.Sprintf("%s: %s (%s)", priceDropPrefix, title, strings.Join(parts, "; "))
}

var brl = message.NewPrinter(language.BrazilianPortuguese)

// formatBRL renders v as pt-BR currency ("R$ 1.234,56"). It never fails:
// any formatting problem yields "R$ <v with 2 decimals>".
func formatBRL(v float64) (out string) {
	fallback := fmt.Sprintf("R$ %.2f", v)
	defer func() {
		if r := recover(); r != nil {
			out = fallback
		}
	}()
	s := brl.Sprint(number.Decimal(v, number.Scale(2)))
	if s == "" || !strings.ContainsAny(s, "0123456789") {
		return fallback
	}
	return "R$ " + s
}
