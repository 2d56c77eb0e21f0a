package models

import "time"

// EventDocument represents one file attached to an approved event.
type EventDocument struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description *string   `db:"description" json:"description,omitempty"`
	FileName    string    `db:"file_name" json:"fileName"`
	FileURL     string    `db:"file_url" json:"fileUrl"`
	FileSize    int64     `db:"file_size" json:"fileSize"`
	FileType    string    `db:"file_type" json:"fileType"`
	EventID     string    `db:"event_id" json:"eventId"`
	UploadedBy  string    `db:"uploaded_by" json:"uploadedBy"`
	UploadedAt  time.Time `db:"uploaded_at" json:"uploadedAt"`
}

// EventDocumentFilter narrows document listing queries.
type EventDocumentFilter struct {
	EventID    string
	UploadedBy string
	FileType   string
	Search     string
	Limit      int
	Offset     int
}

// DocumentTypeCount groups document counts by MIME type.
type DocumentTypeCount struct {
	FileType string `db:"file_type" json:"fileType"`
	Count    int    `db:"count" json:"count"`
}

// DocumentStats aggregates storage figures for dashboards.
type DocumentStats struct {
	TotalCount int                 `json:"totalCount"`
	TotalBytes int64               `json:"totalBytes"`
	ByType     []DocumentTypeCount `json:"byType"`
}
