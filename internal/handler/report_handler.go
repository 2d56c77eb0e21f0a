package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-event-api/internal/dto"
	"github.com/noah-isme/sma-event-api/internal/models"
	"github.com/noah-isme/sma-event-api/internal/service"
	appErrors "github.com/noah-isme/sma-event-api/pkg/errors"
	"github.com/noah-isme/sma-event-api/pkg/response"
)

type reportService interface {
	Create(ctx context.Context, req dto.CreateReportRequest, actor *models.JWTClaims) (*models.EventReport, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.EventReport, error)
	List(ctx context.Context, query dto.ReportQuery, actor *models.JWTClaims) ([]models.EventReport, error)
	Update(ctx context.Context, id string, req dto.UpdateReportRequest, actor *models.JWTClaims) (*models.EventReport, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
	Export(ctx context.Context, id string, format service.ReportFormat, actor *models.JWTClaims) (*service.ReportExport, error)
}

// ReportHandler exposes event report endpoints.
type ReportHandler struct {
	service reportService
}

// NewReportHandler constructs the handler.
func NewReportHandler(service reportService) *ReportHandler {
	return &ReportHandler{service: service}
}

// Create godoc
// @Summary Create an event report
// @Tags Reports
// @Accept json
// @Produce json
// @Param request body dto.CreateReportRequest true "Report payload"
// @Success 201 {object} response.Envelope
// @Router /reports [post]
func (h *ReportHandler) Create(c *gin.Context) {
	var req dto.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid report payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	report, err := h.service.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, report, nil)
}

// List godoc
// @Summary List reports
// @Tags Reports
// @Produce json
// @Param eventId query string false "Event filter"
// @Param reportType query string false "Report type filter"
// @Param status query string false "Status filter"
// @Success 200 {object} response.Envelope
// @Router /reports [get]
func (h *ReportHandler) List(c *gin.Context) {
	var query dto.ReportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	reports, err := h.service.List(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reports, nil)
}

// Get godoc
// @Summary Get a single report
// @Tags Reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Router /reports/{id} [get]
func (h *ReportHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	report, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Update godoc
// @Summary Update a report
// @Tags Reports
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param request body dto.UpdateReportRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Router /reports/{id} [put]
func (h *ReportHandler) Update(c *gin.Context) {
	var req dto.UpdateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid report payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	report, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Delete godoc
// @Summary Delete a report
// @Tags Reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 204
// @Router /reports/{id} [delete]
func (h *ReportHandler) Delete(c *gin.Context) {
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

// Export godoc
// @Summary Export a report as text, HTML, CSV or PDF
// @Tags Reports
// @Produce octet-stream
// @Param id path string true "Report ID"
// @Param format query string false "text, html, csv or pdf (default text)"
// @Success 200 {file} binary
// @Router /reports/{id}/export [get]
func (h *ReportHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	format := strings.ToLower(strings.TrimSpace(c.Query("format")))
	if format == "" {
		format = string(service.ReportFormatText)
	}
	export, err := h.service.Export(c.Request.Context(), c.Param("id"), service.ReportFormat(format), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", export.Filename))
	c.Data(http.StatusOK, export.ContentType, export.Data)
}
