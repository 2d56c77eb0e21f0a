package dto

import "github.com/noah-isme/sma-event-api/internal/models"

// CreateDocumentRequest is the multipart metadata for a document upload.
type CreateDocumentRequest struct {
	Title       string  `form:"title"`
	Description *string `form:"description"`
	EventID     string  `form:"eventId"`
}

// UpdateDocumentRequest carries metadata changes and an optional file swap.
type UpdateDocumentRequest struct {
	Title       *string `form:"title"`
	Description *string `form:"description"`
}

// DocumentQuery captures list filters from query parameters.
type DocumentQuery struct {
	EventID  string `form:"eventId"`
	FileType string `form:"fileType"`
	Search   string `form:"search"`
	Page     int    `form:"page"`
	PageSize int    `form:"pageSize"`
}

// DocumentDownloadResponse pairs document metadata with a signed download URL.
type DocumentDownloadResponse struct {
	models.EventDocument
	DownloadURL string `json:"downloadUrl"`
}
