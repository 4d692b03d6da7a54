// Favorite HTTP handlers.
//
//   - POST   /properties/{id}/favorite
//   - DELETE /properties/{id}/favorite
//   - GET    /me/favorites
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-realty-backend/internal/domain"
)

// ListFavoritesResponse wraps the caller's favorite listings.
type ListFavoritesResponse struct {
	Properties []domain.Property `json:"properties"`
}

// AddFavorite godoc
// @ID          addFavorite
// @Summary     Favorite a listing
// @Description Favoriting users receive price-drop alerts for the listing. Adding twice is a no-op.
// @Tags        Favorites
// @Param       X-User-ID  header  int  true  "Caller user ID"  example(9)
// @Param       id         path    int  true  "Property ID"     minimum(1)
// @Success     204  {string}  string  "No Content"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing identity"
// @Failure     404  {object}  handlers.ErrorResponse  "Property not found"
// @Router      /properties/{id}/favorite [post]
func (h *Handlers) AddFavorite(c *gin.Context) {
	uid, okID := caller(c)
	if !okID {
		return
	}
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	if err := h.favs.Add(c.Request.Context(), uid, id); err != nil {
		writeServiceError(c, err)
		return
	}
	noContent(c)
}

// RemoveFavorite godoc
// @ID          removeFavorite
// @Summary     Unfavorite a listing
// @Tags        Favorites
// @Param       X-User-ID  header  int  true  "Caller user ID"  example(9)
// @Param       id         path    int  true  "Property ID"     minimum(1)
// @Success     204  {string}  string  "No Content"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing identity"
// @Failure     404  {object}  handlers.ErrorResponse  "Favorite not found"
// @Router      /properties/{id}/favorite [delete]
func (h *Handlers) RemoveFavorite(c *gin.Context) {
	uid, okID := caller(c)
	if !okID {
		return
	}
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	if err := h.favs.Remove(c.Request.Context(), uid, id); err != nil {
		writeServiceError(c, err)
		return
	}
	noContent(c)
}

// ListFavorites godoc
// @ID          listFavorites
// @Summary     List favorite listings
// @Tags        Favorites
// @Produce     json
// @Param       X-User-ID  header  int  true  "Caller user ID"  example(9)
// @Success     200  {object}  handlers.ListFavoritesResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Missing identity"
// @Router      /me/favorites [get]
func (h *Handlers) ListFavorites(c *gin.Context) {
	uid, okID := caller(c)
	if !okID {
		return
	}
	items, err := h.favs.List(c.Request.Context(), uid)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if items == nil {
		items = []domain.Property{}
	}
	ok(c, http.StatusOK, ListFavoritesResponse{Properties: items})
}
