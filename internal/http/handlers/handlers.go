// Package handlers wires HTTP requests to the application services.
//
// Handlers are transport-thin: they resolve the caller, bind and shape the
// input, call one service method, and translate the result or error.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-realty-backend/internal/domain"
	"github.com/tbourn/go-realty-backend/internal/http/middleware"
	"github.com/tbourn/go-realty-backend/internal/services"
	"github.com/tbourn/go-realty-backend/internal/utils"
)

// PropertyService is the listing lifecycle consumed by the handlers.
type PropertyService interface {
	Create(ctx context.Context, callerID uint, in services.CreateInput) (*domain.Property, error)
	Get(ctx context.Context, id uint) (*domain.Property, error)
	Update(ctx context.Context, propertyID, callerID uint, in services.UpdateInput) (*domain.Property, error)
	CloseDeal(ctx context.Context, propertyID, brokerID uint, in services.DealInput) (*services.DealSummary, error)
	CancelDeal(ctx context.Context, propertyID, brokerID uint) (*domain.Property, error)
	Review(ctx context.Context, propertyID, adminID uint, rawStatus string) (*domain.Property, error)
}

// FavoriteService manages a user's favorite listings.
type FavoriteService interface {
	Add(ctx context.Context, userID, propertyID uint) error
	Remove(ctx context.Context, userID, propertyID uint) error
	List(ctx context.Context, userID uint) ([]domain.Property, error)
}

// NotificationService serves the in-app inbox and push registrations.
type NotificationService interface {
	ListForUser(ctx context.Context, userID uint, page, pageSize int) ([]domain.Notification, int64, error)
	Stats(ctx context.Context, userID uint) (int64, *time.Time, error)
	MarkRead(ctx context.Context, userID, notificationID uint) error
	RegisterDevice(ctx context.Context, userID uint, token, platform string) error
	UnregisterDevice(ctx context.Context, userID uint, token string) error
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	props PropertyService
	favs  FavoriteService
	notes NotificationService
}

// New constructs Handlers bound to the given services.
func New(props PropertyService, favs FavoriteService, notes NotificationService) *Handlers {
	return &Handlers{props: props, favs: favs, notes: notes}
}

// caller returns the authenticated user id or answers 401.
func caller(c *gin.Context) (uint, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, services.ErrUnauthenticated.Error())
		return 0, false
	}
	return id, true
}

// pathID parses the named path parameter or answers 400.
func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := utils.ParseID(c.Param(name))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, name+": "+err.Error())
		return 0, false
	}
	return id, true
}

// Pagination carries list metadata.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func pagination(page, pageSize int, total int64) Pagination {
	pages := utils.TotalPages(total, pageSize)
	return Pagination{Page: page, PageSize: pageSize, Total: total, TotalPages: pages, HasNext: page < pages}
}
