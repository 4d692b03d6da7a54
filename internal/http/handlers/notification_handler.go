// Notification HTTP handlers.
//
// This file exposes the in-app inbox and push registrations:
//   - GET    /me/notifications              (list, paginated, ETag support)
//   - POST   /me/notifications/{id}/read    (mark read)
//   - POST   /me/devices                    (register push token)
//   - DELETE /me/devices/{token}            (unregister push token)
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-realty-backend/internal/domain"
	"github.com/tbourn/go-realty-backend/internal/utils"
)

// ListNotificationsResponse wraps a page of notifications.
type ListNotificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	Pagination    Pagination            `json:"pagination"`
}

// RegisterDeviceRequest is the JSON payload for a push registration.
type RegisterDeviceRequest struct {
	Token    string `json:"token"    binding:"required,max=512" example:"fcm-registration-token"`
	Platform string `json:"platform" example:"android"`
}

// ListNotifications godoc
// @ID          listNotifications
// @Summary     List notifications (paginated)
// @Description Newest first. Admins also see broadcasts. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Notifications
// @Produce     json
//
// @Param       X-User-ID      header  int     true   "Caller user ID"              example(9)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"  example(W/\"notifications:9:3:1700000000\")
// @Param       page           query   int     false  "Page number"                 minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"              minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListNotificationsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse "Missing identity"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /me/notifications [get]
func (h *Handlers) ListNotifications(c *gin.Context) {
	uid, okID := caller(c)
	if !okID {
		return
	}
	ctx := c.Request.Context()
	page, pageSize := utils.PageBounds(c.Query("page"), c.Query("page_size"))

	// ETag pre-check (best effort).
	if count, maxTS, err := h.notes.Stats(ctx, uid); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.Unix()
		}
		etag := fmt.Sprintf(`W/"notifications:%d:%d:%d"`, uid, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.notes.ListForUser(ctx, uid, page, pageSize)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if items == nil {
		items = []domain.Notification{}
	}
	ok(c, http.StatusOK, ListNotificationsResponse{
		Notifications: items,
		Pagination:    pagination(page, pageSize, total),
	})
}

// MarkNotificationRead godoc
// @ID          markNotificationRead
// @Summary     Mark a notification as read
// @Tags        Notifications
// @Param       X-User-ID  header  int  true  "Caller user ID"   example(9)
// @Param       id         path    int  true  "Notification ID"  minimum(1)
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Notification not found"
// @Router      /me/notifications/{id}/read [post]
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	uid, okID := caller(c)
	if !okID {
		return
	}
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	if err := h.notes.MarkRead(c.Request.Context(), uid, id); err != nil {
		writeServiceError(c, err)
		return
	}
	noContent(c)
}

// RegisterDevice godoc
// @ID          registerDevice
// @Summary     Register a push token
// @Description Re-registering a token moves it to the caller.
// @Tags        Devices
// @Accept      json
// @Param       X-User-ID  header  int  true  "Caller user ID"  example(9)
// @Param       body       body    handlers.RegisterDeviceRequest  true  "Token"
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Missing identity"
// @Router      /me/devices [post]
func (h *Handlers) RegisterDevice(c *gin.Context) {
	uid, okID := caller(c)
	if !okID {
		return
	}
	var req RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "token required (max 512 chars)")
		return
	}
	if err := h.notes.RegisterDevice(c.Request.Context(), uid, req.Token, req.Platform); err != nil {
		writeServiceError(c, err)
		return
	}
	noContent(c)
}

// UnregisterDevice godoc
// @ID          unregisterDevice
// @Summary     Unregister a push token
// @Tags        Devices
// @Param       X-User-ID  header  int     true  "Caller user ID"  example(9)
// @Param       token      path    string  true  "Push token"
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Token not found"
// @Router      /me/devices/{token} [delete]
func (h *Handlers) UnregisterDevice(c *gin.Context) {
	uid, okID := caller(c)
	if !okID {
		return
	}
	if err := h.notes.UnregisterDevice(c.Request.Context(), uid, c.Param("token")); err != nil {
		writeServiceError(c, err)
		return
	}
	noContent(c)
}
