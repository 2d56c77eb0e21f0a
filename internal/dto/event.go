package dto

import (
	"time"

	"github.com/noah-isme/sma-event-api/internal/models"
)

// CreateEventRequest is the payload for submitting a new event.
type CreateEventRequest struct {
	Title       string    `json:"title" validate:"required,min=3"`
	Description string    `json:"description" validate:"required,min=3"`
	StartTime   time.Time `json:"startTime" validate:"required"`
	EndTime     time.Time `json:"endTime" validate:"required"`
	ClassID     *string   `json:"classId,omitempty"`
}

// UpdateEventRequest carries partial updates for a pending event.
type UpdateEventRequest struct {
	Title       *string    `json:"title,omitempty" validate:"omitempty,min=3"`
	Description *string    `json:"description,omitempty" validate:"omitempty,min=3"`
	StartTime   *time.Time `json:"startTime,omitempty"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	ClassID     *string    `json:"classId,omitempty"`
}

// ApproveEventRequest carries optional reviewer comments.
type ApproveEventRequest struct {
	Comments string `json:"comments,omitempty"`
}

// RejectEventRequest carries the mandatory rejection reason.
type RejectEventRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// EventQuery captures list filters from query parameters.
type EventQuery struct {
	Status    string `form:"status"`
	ClassID   string `form:"classId"`
	Timeframe string `form:"timeframe"`
	Limit     int    `form:"limit"`
	Offset    int    `form:"offset"`
}

// EventStatsResponse aggregates event counts for dashboards.
type EventStatsResponse struct {
	Total    int                       `json:"total"`
	ByStatus []models.EventStatusCount `json:"byStatus"`
	ByClass  []models.EventClassCount  `json:"byClass"`
}
