package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-event-api/internal/dto"
	"github.com/noah-isme/sma-event-api/internal/models"
	appErrors "github.com/noah-isme/sma-event-api/pkg/errors"
	"github.com/noah-isme/sma-event-api/pkg/response"
)

type eventService interface {
	Submit(ctx context.Context, req dto.CreateEventRequest, actor *models.JWTClaims) (*models.Event, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Event, error)
	List(ctx context.Context, query dto.EventQuery, actor *models.JWTClaims) ([]models.Event, error)
	Update(ctx context.Context, id string, req dto.UpdateEventRequest, actor *models.JWTClaims) (*models.Event, error)
	Approve(ctx context.Context, id string, req dto.ApproveEventRequest, actor *models.JWTClaims) (*models.Event, error)
	Reject(ctx context.Context, id string, req dto.RejectEventRequest, actor *models.JWTClaims) (*models.Event, error)
	Cancel(ctx context.Context, id string, actor *models.JWTClaims) (*models.Event, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
	Stats(ctx context.Context, actor *models.JWTClaims) (*dto.EventStatsResponse, error)
}

// EventHandler manages event HTTP endpoints.
type EventHandler struct {
	service eventService
}

// NewEventHandler constructs the handler.
func NewEventHandler(service eventService) *EventHandler {
	return &EventHandler{service: service}
}

// Create godoc
// @Summary Submit an event for approval
// @Tags Events
// @Accept json
// @Produce json
// @Param request body dto.CreateEventRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Router /events [post]
func (h *EventHandler) Create(c *gin.Context) {
	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid event payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	event, err := h.service.Submit(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, event, nil)
}

// List godoc
// @Summary List events
// @Tags Events
// @Produce json
// @Param status query string false "Approval status filter"
// @Param classId query string false "Class filter"
// @Param timeframe query string false "UPCOMING, ACTIVE or COMPLETED"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	var query dto.EventQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	events, err := h.service.List(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// Get godoc
// @Summary Get a single event
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	event, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Update godoc
// @Summary Edit a pending event
// @Tags Events
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param request body dto.UpdateEventRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Router /events/{id} [put]
func (h *EventHandler) Update(c *gin.Context) {
	var req dto.UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid event payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	event, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Approve godoc
// @Summary Approve a pending event
// @Tags Events
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param request body dto.ApproveEventRequest false "Optional comments"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/approve [post]
func (h *EventHandler) Approve(c *gin.Context) {
	var req dto.ApproveEventRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid approval payload"))
			return
		}
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	event, err := h.service.Approve(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Reject godoc
// @Summary Reject a pending event
// @Tags Events
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param request body dto.RejectEventRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/reject [post]
func (h *EventHandler) Reject(c *gin.Context) {
	var req dto.RejectEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	event, err := h.service.Reject(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Cancel godoc
// @Summary Cancel a pending event
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/cancel [post]
func (h *EventHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	event, err := h.service.Cancel(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil)
}

// Delete godoc
// @Summary Delete an event and its attachments
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 204
// @Router /events/{id} [delete]
func (h *EventHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Stats godoc
// @Summary Aggregate event counts by status and class
// @Tags Events
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /events/stats [get]
func (h *EventHandler) Stats(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	stats, err := h.service.Stats(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
