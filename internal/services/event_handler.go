// Package services – EventHandler
//
// This file is the consumer side of the domain events emitted by
// PropertyService. Price changes go to the PriceDropNotifier; closed deals,
// new submissions and moderation decisions become admin broadcasts or owner
// notices through the NotificationService. Errors are returned so the transport (inline
// call, in-process queue, or AMQP consumer) can count and retry them.
package services

import (
	"context"
	"fmt"

	"github.com/tbourn/go-realty-backend/internal/domain"
	"github.com/tbourn/go-realty-backend/internal/events"
)

// AdminNotifier is the admin broadcast used by EventHandler.
type AdminNotifier interface {
	UserNotifier
	NotifyAdmins(ctx context.Context, message string, entityType string, entityID uint) (DeliveryResult, error)
}

// EventHandler turns property events into notifications. It is the consumer
// side of events.Publisher, run inline, by the in-process queue, or by the
// AMQP consumer.
type EventHandler struct {
	Notifications AdminNotifier
	PriceDrops    *PriceDropNotifier
}

// Handle implements events.Handler. Unknown event types are ignored.
func (h *EventHandler) Handle(ctx context.Context, e events.Event) error {
	switch e.Type {
	case events.PriceChanged:
		if h.PriceDrops == nil {
			return nil
		}
		_, err := h.PriceDrops.NotifyIfNeeded(ctx, PriceChange{
			PropertyID: e.PropertyID,
			Title:      e.Title,
			OldSale:    e.OldSale,
			NewSale:    e.NewSale,
			OldRent:    e.OldRent,
			NewRent:    e.NewRent,
		})
		return err

	case events.DealClosed:
		verb := "vendido"
		if e.DealType == domain.DealRent || e.Status == domain.StatusRented {
			verb = "alugado"
		}
		msg := fmt.Sprintf("Imóvel %q marcado como %s", e.Title, verb)
		_, err := h.Notifications.NotifyAdmins(ctx, msg, domain.EntityProperty, e.PropertyID)
		return err

	case events.PropertySubmitted:
		msg := fmt.Sprintf("Novo imóvel aguardando aprovação: %q", e.Title)
		_, err := h.Notifications.NotifyAdmins(ctx, msg, domain.EntityProperty, e.PropertyID)
		return err

	case events.PropertyReviewed:
		if len(e.OwnerIDs) == 0 {
			return nil
		}
		verb := "aprovado"
		if e.Status == domain.StatusRejected {
			verb = "rejeitado"
		}
		msg := fmt.Sprintf("Seu imóvel %q foi %s", e.Title, verb)
		_, err := h.Notifications.NotifyUsers(ctx, msg, e.OwnerIDs, domain.EntityProperty, e.PropertyID)
		return err
	}

	logger(ctx).Debug().Str("event_type", string(e.Type)).Msg("event ignored")
	return nil
}
