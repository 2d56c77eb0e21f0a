package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-event-api/internal/dto"
	"github.com/noah-isme/sma-event-api/internal/middleware"
	"github.com/noah-isme/sma-event-api/internal/models"
	appErrors "github.com/noah-isme/sma-event-api/pkg/errors"
	"github.com/noah-isme/sma-event-api/pkg/response"
)

type dashboardService interface {
	Principal(ctx context.Context, actor *models.JWTClaims) (*dto.PrincipalDashboardResponse, bool, error)
	HOD(ctx context.Context, classID string, actor *models.JWTClaims) (*dto.HODDashboardResponse, bool, error)
	Overview(ctx context.Context, actor *models.JWTClaims) (*dto.OverviewResponse, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Principal godoc
// @Summary School-wide approval dashboard
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/principal [get]
func (h *DashboardHandler) Principal(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	start := time.Now()
	summary, cacheHit, err := h.service.Principal(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, summary, nil, meta)
}

// HOD godoc
// @Summary Department-scoped dashboard
// @Tags Dashboard
// @Produce json
// @Param classId query string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /dashboard/hod [get]
func (h *DashboardHandler) HOD(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	classID := strings.TrimSpace(c.Query("classId"))
	if classID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "classId is required"))
		return
	}
	start := time.Now()
	summary, cacheHit, err := h.service.HOD(c.Request.Context(), classID, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, summary, nil, meta)
}

// Overview godoc
// @Summary Role-scoped landing overview
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/overview [get]
func (h *DashboardHandler) Overview(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	overview, err := h.service.Overview(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, nil)
}
