package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-event-api/internal/dto"
	"github.com/noah-isme/sma-event-api/internal/models"
	"github.com/noah-isme/sma-event-api/internal/service"
	appErrors "github.com/noah-isme/sma-event-api/pkg/errors"
	"github.com/noah-isme/sma-event-api/pkg/response"
)

type documentService interface {
	Upload(ctx context.Context, meta dto.CreateDocumentRequest, upload service.DocumentUpload, actor *models.JWTClaims) (*models.EventDocument, error)
	Replace(ctx context.Context, id string, meta dto.UpdateDocumentRequest, upload *service.DocumentUpload, actor *models.JWTClaims) (*models.EventDocument, error)
	Remove(ctx context.Context, id string, actor *models.JWTClaims) error
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.EventDocument, error)
	List(ctx context.Context, query dto.DocumentQuery, actor *models.JWTClaims) ([]models.EventDocument, int, error)
	ListForEvent(ctx context.Context, eventID string, actor *models.JWTClaims) ([]models.EventDocument, error)
	Stats(ctx context.Context, actor *models.JWTClaims) (*models.DocumentStats, error)
	GetDownloadURL(ctx context.Context, id string, actor *models.JWTClaims) (string, error)
	Download(ctx context.Context, id, token string, actor *models.JWTClaims) (*service.DocumentDownload, error)
}

// DocumentHandler manages event attachment HTTP endpoints.
type DocumentHandler struct {
	service documentService
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(service documentService) *DocumentHandler {
	return &DocumentHandler{service: service}
}

// Upload godoc
// @Summary Attach a document to an approved event
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Title"
// @Param description formData string false "Description"
// @Param eventId formData string true "Event reference"
// @Param file formData file true "Document"
// @Success 201 {object} response.Envelope
// @Router /documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	var req dto.CreateDocumentRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid document payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	upload, closeFn, err := uploadFromForm(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeFn()

	doc, err := h.service.Upload(c.Request.Context(), req, *upload, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, doc, nil)
}

// List godoc
// @Summary List documents
// @Tags Documents
// @Produce json
// @Param eventId query string false "Event filter"
// @Param fileType query string false "MIME type filter"
// @Param search query string false "Title search"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	var query dto.DocumentQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	docs, total, err := h.service.List(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	page := query.Page
	if page < 1 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	pagination := response.NewPagination(page, pageSize, total)
	response.JSON(c, http.StatusOK, docs, &pagination)
}

// ListForEvent godoc
// @Summary List documents attached to an event
// @Tags Documents
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/documents [get]
func (h *DocumentHandler) ListForEvent(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	docs, err := h.service.ListForEvent(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}

// Get godoc
// @Summary Get document metadata with a signed download URL
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	doc, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	downloadURL, err := h.service.GetDownloadURL(c.Request.Context(), doc.ID, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.DocumentDownloadResponse{
		EventDocument: *doc,
		DownloadURL:   downloadURL,
	}, nil)
}

// Update godoc
// @Summary Update document metadata, optionally replacing the file
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Document ID"
// @Param title formData string false "Title"
// @Param description formData string false "Description"
// @Param file formData file false "Replacement document"
// @Success 200 {object} response.Envelope
// @Router /documents/{id} [put]
func (h *DocumentHandler) Update(c *gin.Context) {
	var req dto.UpdateDocumentRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid document payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var upload *service.DocumentUpload
	if _, err := c.FormFile("file"); err == nil {
		parsed, closeFn, uploadErr := uploadFromForm(c)
		if uploadErr != nil {
			response.Error(c, uploadErr)
			return
		}
		defer closeFn()
		upload = parsed
	}
	doc, err := h.service.Replace(c.Request.Context(), c.Param("id"), req, upload, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Delete godoc
// @Summary Delete a document and its stored file
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 204
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Remove(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Stats godoc
// @Summary Aggregate stored document counts and bytes
// @Tags Documents
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /documents/stats [get]
func (h *DocumentHandler) Stats(c *gin.Context) {
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

// DownloadURL godoc
// @Summary Issue a signed download URL for a document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/download-url [get]
func (h *DocumentHandler) DownloadURL(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	downloadURL, err := h.service.GetDownloadURL(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"downloadUrl": downloadURL}, nil)
}

// Download godoc
// @Summary Download a document via signed token
// @Tags Documents
// @Produce octet-stream
// @Param id path string true "Document ID"
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Router /documents/{id}/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	token := c.Query("token")
	if strings.TrimSpace(token) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.service.Download(c.Request.Context(), c.Param("id"), token, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.SizeBytes, result.MimeType, result.File, nil)
}

func uploadFromForm(c *gin.Context) (*service.DocumentUpload, func(), error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	src, err := fileHeader.Open()
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	closeFn := func() { _ = src.Close() }

	reader, ok := src.(io.ReadSeeker)
	if !ok {
		buf, readErr := io.ReadAll(src)
		if readErr != nil {
			closeFn()
			return nil, nil, appErrors.Wrap(readErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to buffer file")
		}
		reader = bytes.NewReader(buf)
	}
	return &service.DocumentUpload{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		MimeType: contentTypeOf(fileHeader),
		Content:  reader,
	}, closeFn, nil
}

func contentTypeOf(header *multipart.FileHeader) string {
	return header.Header.Get("Content-Type")
}
