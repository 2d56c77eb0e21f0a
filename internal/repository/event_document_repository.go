package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-event-api/internal/models"
)

const eventDocumentColumns = `id, title, description, file_name, file_url, file_size, file_type, event_id, uploaded_by, uploaded_at`

// EventDocumentRepository handles document metadata persistence.
type EventDocumentRepository struct {
	db *sqlx.DB
}

// NewEventDocumentRepository constructs the repository.
func NewEventDocumentRepository(db *sqlx.DB) *EventDocumentRepository {
	return &EventDocumentRepository{db: db}
}

// Create stores metadata for an uploaded document.
func (r *EventDocumentRepository) Create(ctx context.Context, doc *models.EventDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO event_documents
	(id, title, description, file_name, file_url, file_size, file_type, event_id, uploaded_by, uploaded_at)
	VALUES (:id, :title, :description, :file_name, :file_url, :file_size, :file_type, :event_id, :uploaded_by, :uploaded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create event document: %w", err)
	}
	return nil
}

// GetByID retrieves one document row.
func (r *EventDocumentRepository) GetByID(ctx context.Context, id string) (*models.EventDocument, error) {
	query := fmt.Sprintf("SELECT %s FROM event_documents WHERE id = $1", eventDocumentColumns)
	var doc models.EventDocument
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// List returns documents matching the filter plus the total count, newest first.
func (r *EventDocumentRepository) List(ctx context.Context, filter models.EventDocumentFilter) ([]models.EventDocument, int, error) {
	conditions := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)

	if filter.EventID != "" {
		args = append(args, filter.EventID)
		conditions = append(conditions, fmt.Sprintf("event_id = $%d", len(args)))
	}
	if filter.UploadedBy != "" {
		args = append(args, filter.UploadedBy)
		conditions = append(conditions, fmt.Sprintf("uploaded_by = $%d", len(args)))
	}
	if filter.FileType != "" {
		args = append(args, filter.FileType)
		conditions = append(conditions, fmt.Sprintf("file_type = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("title ILIKE $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM event_documents" + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count event documents: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	listQuery := fmt.Sprintf("SELECT %s FROM event_documents%s ORDER BY uploaded_at DESC, id DESC LIMIT %d OFFSET %d",
		eventDocumentColumns, where, limit, offset)

	var docs []models.EventDocument
	if err := r.db.SelectContext(ctx, &docs, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list event documents: %w", err)
	}
	return docs, total, nil
}

// ListByEvent returns all documents attached to an event.
func (r *EventDocumentRepository) ListByEvent(ctx context.Context, eventID string) ([]models.EventDocument, error) {
	query := fmt.Sprintf("SELECT %s FROM event_documents WHERE event_id = $1 ORDER BY uploaded_at DESC, id DESC", eventDocumentColumns)
	var docs []models.EventDocument
	if err := r.db.SelectContext(ctx, &docs, query, eventID); err != nil {
		return nil, fmt.Errorf("list documents by event: %w", err)
	}
	return docs, nil
}

// UpdateDocumentParams groups mutable document columns.
type UpdateDocumentParams struct {
	ID          string
	Title       *string
	Description *string
	FileName    *string
	FileURL     *string
	FileSize    *int64
	FileType    *string
}

// Update edits document metadata and, on file replacement, the blob columns.
func (r *EventDocumentRepository) Update(ctx context.Context, params UpdateDocumentParams) error {
	setParts := make([]string, 0, 6)
	if params.Title != nil {
		setParts = append(setParts, "title = :title")
	}
	if params.Description != nil {
		setParts = append(setParts, "description = :description")
	}
	if params.FileName != nil {
		setParts = append(setParts, "file_name = :file_name")
	}
	if params.FileURL != nil {
		setParts = append(setParts, "file_url = :file_url")
	}
	if params.FileSize != nil {
		setParts = append(setParts, "file_size = :file_size")
	}
	if params.FileType != nil {
		setParts = append(setParts, "file_type = :file_type")
	}
	if len(setParts) == 0 {
		return nil
	}
	query := fmt.Sprintf("UPDATE event_documents SET %s WHERE id = :id", strings.Join(setParts, ", "))
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":          params.ID,
		"title":       params.Title,
		"description": params.Description,
		"file_name":   params.FileName,
		"file_url":    params.FileURL,
		"file_size":   params.FileSize,
		"file_type":   params.FileType,
	})
	if err != nil {
		return fmt.Errorf("update event document: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check document update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a document row.
func (r *EventDocumentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM event_documents WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete event document: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check document delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteByEvent removes all document rows for an event and returns the
// deleted rows so callers can clean up the blobs.
func (r *EventDocumentRepository) DeleteByEvent(ctx context.Context, eventID string) ([]models.EventDocument, error) {
	docs, err := r.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	const query = `DELETE FROM event_documents WHERE event_id = $1`
	if _, err := r.db.ExecContext(ctx, query, eventID); err != nil {
		return nil, fmt.Errorf("delete documents by event: %w", err)
	}
	return docs, nil
}

// CountByType groups documents by MIME type.
func (r *EventDocumentRepository) CountByType(ctx context.Context) ([]models.DocumentTypeCount, error) {
	const query = `SELECT file_type, COUNT(*) AS count FROM event_documents GROUP BY file_type ORDER BY count DESC`
	var counts []models.DocumentTypeCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count documents by type: %w", err)
	}
	return counts, nil
}

// TotalStoredBytes sums stored file sizes.
func (r *EventDocumentRepository) TotalStoredBytes(ctx context.Context) (int64, error) {
	const query = `SELECT COALESCE(SUM(file_size), 0) FROM event_documents`
	var total int64
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, fmt.Errorf("sum document sizes: %w", err)
	}
	return total, nil
}

// StatsForClass aggregates document figures for one class's events.
func (r *EventDocumentRepository) StatsForClass(ctx context.Context, classID string) (*models.DocumentStats, error) {
	const query = `SELECT COUNT(d.id), COALESCE(SUM(d.file_size), 0)
	FROM event_documents d JOIN events e ON e.id = d.event_id
	WHERE e.class_id = $1`
	row := r.db.QueryRowxContext(ctx, query, classID)
	stats := &models.DocumentStats{}
	if err := row.Scan(&stats.TotalCount, &stats.TotalBytes); err != nil {
		return nil, fmt.Errorf("class document stats: %w", err)
	}
	return stats, nil
}
