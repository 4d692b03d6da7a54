// Property HTTP handlers.
//
// This file exposes REST endpoints for listings and their deals:
//   - POST   /properties                      (create)
//   - GET    /properties/{id}                 (read)
//   - PATCH  /properties/{id}                 (partial edit, may change status)
//   - POST   /properties/{id}/deal            (close as sold or rented)
//   - DELETE /properties/{id}/deal            (cancel the closed deal)
//   - PUT    /admin/properties/{id}/status    (moderation)
package handlers

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-realty-backend/internal/services"
)

//
// DTOs
//

// flexString accepts a JSON string or number and keeps its text, so deal
// terms like "5" and 5 bind the same way. null is empty.
type flexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *flexString) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if bytes.Equal(raw, []byte("null")) {
		*f = ""
		return nil
	}
	if len(raw) > 0 && raw[0] == '"' {
		s, err := strconv.Unquote(string(raw))
		if err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(raw)
	return nil
}

// CreatePropertyRequest is the JSON payload for a new listing.
type CreatePropertyRequest struct {
	Title       string   `json:"title"       binding:"required,max=255" example:"Apartamento 2 quartos"`
	Description string   `json:"description" example:"Perto do metrô"`
	Type        string   `json:"type"        example:"apartamento"`
	Purpose     string   `json:"purpose"     binding:"required" example:"Venda e Aluguel"`
	Price       float64  `json:"price"       example:"300000"`
	PriceSale   *float64 `json:"price_sale"  example:"290000"`
	PriceRent   *float64 `json:"price_rent"  example:"2000"`
	Address     string   `json:"address"`
	City        string   `json:"city"        example:"São Paulo"`
	Bedrooms    int      `json:"bedrooms"`
	Bathrooms   int      `json:"bathrooms"`
	Area        float64  `json:"area"`
	IPTU        *float64 `json:"iptu"`
	Condominio  *float64 `json:"condominio"`
}

// DealRequest carries the terms of a closing. Numeric fields accept numbers
// or strings; blank fields fall back to the listing's values.
type DealRequest struct {
	DealType           string     `json:"deal_type"           example:"sale"`
	Amount             flexString `json:"sale_value"          swaggertype:"string" example:"290000"`
	CommissionRate     flexString `json:"commission_rate"     swaggertype:"string" example:"5"`
	CommissionCycles   flexString `json:"commission_cycles"   swaggertype:"string" example:"0"`
	RecurrenceInterval string     `json:"recurrence_interval" example:"none"`
	IPTU               *float64   `json:"iptu_value"`
	Condominio         *float64   `json:"condominio_value"`
}

func (r DealRequest) input() services.DealInput {
	return services.DealInput{
		Type:               r.DealType,
		Amount:             string(r.Amount),
		CommissionRate:     string(r.CommissionRate),
		CommissionCycles:   string(r.CommissionCycles),
		RecurrenceInterval: r.RecurrenceInterval,
		IPTU:               r.IPTU,
		Condominio:         r.Condominio,
	}
}

// UpdatePropertyRequest is a partial edit. Absent fields are untouched;
// null on the optional prices clears them. Status may be localized
// ("vendido", "Aprovado"); Deal is read when it resolves to sold or rented.
type UpdatePropertyRequest struct {
	Title       *string                `json:"title"`
	Description *string                `json:"description"`
	Type        *string                `json:"type"`
	Purpose     *string                `json:"purpose"`
	Price       *float64               `json:"price"`
	PriceSale   services.NullableFloat `json:"price_sale"  swaggertype:"number"`
	PriceRent   services.NullableFloat `json:"price_rent"  swaggertype:"number"`
	Address     *string                `json:"address"`
	City        *string                `json:"city"`
	Bedrooms    *int                   `json:"bedrooms"`
	Bathrooms   *int                   `json:"bathrooms"`
	Area        *float64               `json:"area"`
	IPTU        services.NullableFloat `json:"iptu"        swaggertype:"number"`
	Condominio  services.NullableFloat `json:"condominio"  swaggertype:"number"`

	Status *string     `json:"status" example:"sold"`
	Deal   DealRequest `json:"deal"`
}

// ReviewRequest is the moderation decision.
type ReviewRequest struct {
	Status string `json:"status" binding:"required" example:"approved"`
}

//
// Handlers
//

// CreateProperty godoc
// @ID          createProperty
// @Summary     Create a listing
// @Description Approved brokers list directly; clients submit for approval. The listing starts as pending_approval.
// @Tags        Properties
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  int  true  "Caller user ID"  example(7)
// @Param       body       body    handlers.CreatePropertyRequest  true  "Listing"
//
// @Success     201  {object}  domain.Property
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing identity"
// @Failure     403  {object}  handlers.ErrorResponse  "Role not allowed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /properties [post]
func (h *Handlers) CreateProperty(c *gin.Context) {
	uid, okID := caller(c)
	if !okID {
		return
	}
	var req CreatePropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title and purpose are required")
		return
	}
	p, err := h.props.Create(c.Request.Context(), uid, services.CreateInput{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Type:        req.Type,
		Purpose:     req.Purpose,
		Price:       req.Price,
		PriceSale:   req.PriceSale,
		PriceRent:   req.PriceRent,
		Address:     req.Address,
		City:        req.City,
		Bedrooms:    req.Bedrooms,
		Bathrooms:   req.Bathrooms,
		Area:        req.Area,
		IPTU:        req.IPTU,
		Condominio:  req.Condominio,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	ok(c, http.StatusCreated, p)
}

// GetProperty godoc
// @ID          getProperty
// @Summary     Get a listing
// @Tags        Properties
// @Produce     json
// @Param       id  path  int  true  "Property ID"  minimum(1)
// @Success     200  {object}  domain.Property
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Property not found"
// @Router      /properties/{id} [get]
func (h *Handlers) GetProperty(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	p, err := h.props.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// UpdateProperty godoc
// @ID          updateProperty
// @Summary     Edit a listing
// @Description Partial edit by the owner. A status of sold or rented closes a deal with the embedded terms; approved on a closed listing cancels it.
// @Tags        Properties
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  int  true  "Caller user ID"  example(7)
// @Param       id         path    int  true  "Property ID"     minimum(1)
// @Param       body       body    handlers.UpdatePropertyRequest  true  "Fields to change"
//
// @Success     200  {object}  domain.Property
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request or invalid transition"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing identity"
// @Failure     403  {object}  handlers.ErrorResponse  "Not the owner"
// @Failure     404  {object}  handlers.ErrorResponse  "Property not found"
// @Failure     503  {object}  handlers.ErrorResponse  "Database unavailable"
// @Router      /properties/{id} [patch]
func (h *Handlers) UpdateProperty(c *gin.Context) {
	uid, okID := caller(c)
	if !okID {
		return
	}
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	var req UpdatePropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	p, err := h.props.Update(c.Request.Context(), id, uid, services.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Type:        req.Type,
		Purpose:     req.Purpose,
		Price:       req.Price,
		PriceSale:   req.PriceSale,
		PriceRent:   req.PriceRent,
		Address:     req.Address,
		City:        req.City,
		Bedrooms:    req.Bedrooms,
		Bathrooms:   req.Bathrooms,
		Area:        req.Area,
		IPTU:        req.IPTU,
		Condominio:  req.Condominio,
		Status:      req.Status,
		Deal:        req.Deal.input(),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// CloseDeal godoc
// @ID          closeDeal
// @Summary     Close a deal
// @Description Marks the listing sold or rented and upserts its single sale record with the computed commission.
// @Tags        Deals
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  int  true  "Broker user ID"  example(7)
// @Param       id         path    int  true  "Property ID"     minimum(1)
// @Param       body       body    handlers.DealRequest  true  "Deal terms"
//
// @Success     200  {object}  services.DealSummary
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request or invalid transition"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing identity"
// @Failure     403  {object}  handlers.ErrorResponse  "Not the listing broker or purpose mismatch"
// @Failure     404  {object}  handlers.ErrorResponse  "Property not found"
// @Failure     503  {object}  handlers.ErrorResponse  "Database unavailable"
// @Router      /properties/{id}/deal [post]
func (h *Handlers) CloseDeal(c *gin.Context) {
	uid, okID := caller(c)
	if !okID {
		return
	}
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	var req DealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	sum, err := h.props.CloseDeal(c.Request.Context(), id, uid, req.input())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, sum)
}

// CancelDeal godoc
// @ID          cancelDeal
// @Summary     Cancel a closed deal
// @Description Returns the listing to approved, clears its deal fields and deletes the sale record.
// @Tags        Deals
// @Produce     json
// @Param       X-User-ID  header  int  true  "Broker user ID"  example(7)
// @Param       id         path    int  true  "Property ID"     minimum(1)
// @Success     200  {object}  domain.Property
// @Failure     400  {object}  handlers.ErrorResponse  "No deal to cancel"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing identity"
// @Failure     403  {object}  handlers.ErrorResponse  "Not the listing broker"
// @Failure     404  {object}  handlers.ErrorResponse  "Property not found"
// @Router      /properties/{id}/deal [delete]
func (h *Handlers) CancelDeal(c *gin.Context) {
	uid, okID := caller(c)
	if !okID {
		return
	}
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	p, err := h.props.CancelDeal(c.Request.Context(), id, uid)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// ReviewProperty godoc
// @ID          reviewProperty
// @Summary     Approve or reject a listing
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  int  true  "Admin user ID"  example(1)
// @Param       id         path    int  true  "Property ID"    minimum(1)
// @Param       body       body    handlers.ReviewRequest  true  "Decision"
// @Success     200  {object}  domain.Property
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request or invalid transition"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing identity"
// @Failure     403  {object}  handlers.ErrorResponse  "Admin only"
// @Failure     404  {object}  handlers.ErrorResponse  "Property not found"
// @Router      /admin/properties/{id}/status [put]
func (h *Handlers) ReviewProperty(c *gin.Context) {
	uid, okID := caller(c)
	if !okID {
		return
	}
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status required")
		return
	}
	p, err := h.props.Review(c.Request.Context(), id, uid, req.Status)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}
