// Package services – NotificationService
//
// This file implements the notification fan-out: one row per recipient,
// inserted in bounded batches, followed by push delivery to the recipients'
// device tokens. Tokens rejected as invalid or unregistered are pruned from
// the store. Push failures are reported in DeliveryResult and never returned
// as errors; only persistence failures are.
package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-realty-backend/internal/domain"
	"github.com/tbourn/go-realty-backend/internal/observability"
	"github.com/tbourn/go-realty-backend/internal/push"
	"github.com/tbourn/go-realty-backend/internal/repo"
)

// codeBatchFailed is reported when the provider rejected a whole batch.
const codeBatchFailed = "messaging/batch-failed"

// DeliveryResult summarizes one fan-out.
type DeliveryResult struct {
	Persisted  int64    `json:"persisted"`
	Requested  int      `json:"requested"`
	Success    int      `json:"success"`
	Failure    int      `json:"failure"`
	ErrorCodes []string `json:"error_codes,omitempty"`
	Pruned     int64    `json:"pruned"`
}

// NotificationService persists notifications and pushes them to devices.
type NotificationService struct {
	DB   *gorm.DB
	Push push.Provider

	// InsertBatch bounds rows per INSERT (repo.DefaultInsertBatch when zero).
	InsertBatch int
	// PushBatch bounds tokens per provider call (push.MaxBatch when zero).
	PushBatch int
	// PushTitle is the notification title shown on devices.
	PushTitle string

	// Now is the clock used for created_at; time.Now when nil.
	Now func() time.Time
}

// NewNotificationService constructs a NotificationService with default
// batching. A nil provider falls back to push.LogProvider.
func NewNotificationService(db *gorm.DB, p push.Provider) *NotificationService {
	if p == nil {
		p = push.LogProvider{}
	}
	return &NotificationService{
		DB:          db,
		Push:        p,
		InsertBatch: repo.DefaultInsertBatch,
		PushBatch:   push.MaxBatch,
		PushTitle:   "Imobiliária",
	}
}

// NotifyUsers stores message for every distinct non-zero recipient and pushes
// it to their devices. A nil recipientIDs slice is a broadcast: a single row
// with no recipient, pushed to every known token. An empty message or an
// empty (non-nil) recipient set is a no-op.
func (s *NotificationService) NotifyUsers(ctx context.Context, message string, recipientIDs []uint, entityType string, entityID uint) (DeliveryResult, error) {
	ctx, span := otel.Tracer("services/NotificationService").Start(ctx, "NotifyUsers",
		trace.WithAttributes(
			attribute.String("entity.type", entityType),
			attribute.Int64("entity.id", int64(entityID)),
			attribute.Bool("broadcast", recipientIDs == nil),
		),
	)
	defer span.End()

	message = strings.TrimSpace(message)
	if message == "" {
		return DeliveryResult{}, nil
	}

	var rows []domain.Notification
	var tokenOwners []uint
	now := s.now()
	if recipientIDs == nil {
		rows = []domain.Notification{{Message: message, RelatedEntityType: entityType, RelatedEntityID: entityID, CreatedAt: now}}
	} else {
		tokenOwners = uniqueIDs(recipientIDs)
		if len(tokenOwners) == 0 {
			return DeliveryResult{}, nil
		}
		rows = make([]domain.Notification, 0, len(tokenOwners))
		for _, id := range tokenOwners {
			rows = append(rows, domain.Notification{
				Message: message, RelatedEntityType: entityType, RelatedEntityID: entityID,
				RecipientID: &id, CreatedAt: now,
			})
		}
	}
	span.SetAttributes(attribute.Int("recipients", len(rows)))
	return s.deliver(ctx, message, rows, tokenOwners, recipientIDs == nil, entityType, entityID)
}

// NotifyAdmins stores one broadcast row (no recipient) and pushes it to the
// devices of admin users only.
func (s *NotificationService) NotifyAdmins(ctx context.Context, message string, entityType string, entityID uint) (DeliveryResult, error) {
	ctx, span := otel.Tracer("services/NotificationService").Start(ctx, "NotifyAdmins")
	defer span.End()

	message = strings.TrimSpace(message)
	if message == "" {
		return DeliveryResult{}, nil
	}
	admins, err := repo.UserIDsByRole(ctx, s.DB, domain.RoleAdmin)
	if err != nil {
		return DeliveryResult{}, err
	}
	rows := []domain.Notification{{Message: message, RelatedEntityType: entityType, RelatedEntityID: entityID, CreatedAt: s.now()}}
	if len(admins) == 0 {
		admins = []uint{}
	}
	return s.deliver(ctx, message, rows, admins, false, entityType, entityID)
}

// ListForUser returns a page of the caller's notifications, newest first.
// Admins also see broadcasts.
func (s *NotificationService) ListForUser(ctx context.Context, userID uint, page, pageSize int) ([]domain.Notification, int64, error) {
	ctx, span := otel.Tracer("services/NotificationService").Start(ctx, "ListForUser",
		trace.WithAttributes(
			attribute.Int64("user.id", int64(userID)),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	u, err := s.caller(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	admin := u.Role == domain.RoleAdmin

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	total, err := repo.CountNotifications(ctx, s.DB, userID, admin)
	if err != nil {
		return nil, 0, err
	}
	items, err := repo.ListNotificationsPage(ctx, s.DB, userID, admin, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Stats returns the count and newest created_at of the caller's
// notifications, for conditional GETs.
func (s *NotificationService) Stats(ctx context.Context, userID uint) (int64, *time.Time, error) {
	u, err := s.caller(ctx, userID)
	if err != nil {
		return 0, nil, err
	}
	return repo.NotificationsStats(ctx, s.DB, userID, u.Role == domain.RoleAdmin)
}

// MarkRead flags one of the caller's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uint) error {
	if err := repo.MarkNotificationRead(ctx, s.DB, notificationID, userID); err != nil {
		if isNotFound(err) {
			return ErrNotificationNotFound
		}
		return err
	}
	return nil
}

// RegisterDevice stores a push token for the caller.
func (s *NotificationService) RegisterDevice(ctx context.Context, userID uint, token, platform string) error {
	token = strings.TrimSpace(token)
	if token == "" || len(token) > 512 {
		return ErrInvalidInput
	}
	if _, err := s.caller(ctx, userID); err != nil {
		return err
	}
	return repo.UpsertDeviceToken(ctx, s.DB, userID, token, strings.ToLower(strings.TrimSpace(platform)))
}

// UnregisterDevice removes one of the caller's push tokens.
func (s *NotificationService) UnregisterDevice(ctx context.Context, userID uint, token string) error {
	if err := repo.DeleteUserDeviceToken(ctx, s.DB, userID, strings.TrimSpace(token)); err != nil {
		if isNotFound(err) {
			return ErrDeviceNotFound
		}
		return err
	}
	return nil
}

// deliver persists rows, then pushes. tokenOwners selects the push audience;
// allTokens overrides it with every known token.
func (s *NotificationService) deliver(ctx context.Context, message string, rows []domain.Notification, tokenOwners []uint, allTokens bool, entityType string, entityID uint) (DeliveryResult, error) {
	var res DeliveryResult

	n, err := repo.InsertNotifications(ctx, s.DB, rows, s.InsertBatch)
	if err != nil {
		return res, err
	}
	res.Persisted = n
	observability.NotificationsPersisted.Add(float64(n))

	owners := tokenOwners
	if allTokens {
		owners = nil
	}
	tokens, err := repo.TokensForUsers(ctx, s.DB, owners)
	if err != nil {
		logger(ctx).Warn().Err(err).Msg("push: token lookup failed")
		return res, nil
	}
	s.push(ctx, &res, tokens, push.Message{
		Title: s.PushTitle,
		Body:  message,
		Data: map[string]string{
			"entity_type": entityType,
			"entity_id":   uintString(entityID),
		},
	})
	return res, nil
}

func (s *NotificationService) push(ctx context.Context, res *DeliveryResult, tokens []string, msg push.Message) {
	if len(tokens) == 0 || s.Push == nil {
		return
	}
	codes := make(map[string]struct{})
	var dead []string

	for _, batch := range push.Batches(tokens, s.PushBatch) {
		res.Requested += len(batch)
		results, err := s.Push.Send(ctx, batch, msg)
		if err != nil {
			logger(ctx).Warn().Err(err).Int("tokens", len(batch)).Msg("push: batch failed")
			res.Failure += len(batch)
			codes[codeBatchFailed] = struct{}{}
			continue
		}
		for _, r := range results {
			if r.Success {
				res.Success++
				continue
			}
			res.Failure++
			if r.ErrorCode != "" {
				codes[r.ErrorCode] = struct{}{}
			}
			if push.ShouldPrune(r.ErrorCode) {
				dead = append(dead, r.Token)
			}
		}
	}
	observability.PushDeliveries.WithLabelValues("success").Add(float64(res.Success))
	observability.PushDeliveries.WithLabelValues("failure").Add(float64(res.Failure))

	for c := range codes {
		res.ErrorCodes = append(res.ErrorCodes, c)
	}
	sort.Strings(res.ErrorCodes)

	if len(dead) > 0 {
		pruned, err := repo.DeleteTokens(ctx, s.DB, dead)
		if err != nil {
			logger(ctx).Warn().Err(err).Int("tokens", len(dead)).Msg("push: prune failed")
			return
		}
		res.Pruned = pruned
		observability.PushTokensPruned.Add(float64(pruned))
	}
}

func (s *NotificationService) caller(ctx context.Context, userID uint) (*domain.User, error) {
	return loadCaller(ctx, s.DB, userID)
}

func (s *NotificationService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
