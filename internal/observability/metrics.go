// Package observability wires tracing and domain metrics.
//
// This file registers Prometheus collectors for the deal and notification
// side effects. HTTP traffic metrics live in the middleware package; these
// counters track what happened after the request committed:
//
//   - deals_total(kind, outcome): closings and cancellations
//   - notifications_persisted_total: rows written by the fan-out
//   - push_deliveries_total(outcome): per-token push outcomes
//   - push_tokens_pruned_total: dead tokens removed from the store
//   - events_total(type, outcome): domain events published, handled, dropped
//
// Label values are fixed enums so cardinality stays bounded.
package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// DealsTotal counts deal transitions by kind ("close", "cancel") and
	// deal type ("sale", "rent").
	DealsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realty_deals_total",
			Help: "Deal transitions committed, by kind and deal type.",
		},
		[]string{"kind", "deal_type"},
	)

	// NotificationsPersisted counts notification rows inserted.
	NotificationsPersisted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "realty_notifications_persisted_total",
			Help: "Notification rows written.",
		},
	)

	// PushDeliveries counts per-token push outcomes ("success", "failure").
	PushDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realty_push_deliveries_total",
			Help: "Per-token push delivery outcomes.",
		},
		[]string{"outcome"},
	)

	// PushTokensPruned counts device tokens deleted after a permanent failure.
	PushTokensPruned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "realty_push_tokens_pruned_total",
			Help: "Device tokens removed after invalid or unregistered errors.",
		},
	)

	// EventsTotal counts domain events by type and outcome ("published",
	// "handled", "failed", "dropped").
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realty_events_total",
			Help: "Domain events by type and outcome.",
		},
		[]string{"type", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(DealsTotal, NotificationsPersisted, PushDeliveries, PushTokensPruned, EventsTotal)
}
