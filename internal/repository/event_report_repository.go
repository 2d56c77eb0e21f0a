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

const eventReportColumns = `id, title, content, report_type, status, total_participants, event_id, created_by, generated_at, created_at, updated_at`

// EventReportRepository persists event reports.
type EventReportRepository struct {
	db *sqlx.DB
}

// NewEventReportRepository constructs the repository.
func NewEventReportRepository(db *sqlx.DB) *EventReportRepository {
	return &EventReportRepository{db: db}
}

// Create inserts a new report row.
func (r *EventReportRepository) Create(ctx context.Context, report *models.EventReport) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.Status == "" {
		report.Status = models.ReportStatusDraft
	}
	now := time.Now().UTC()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now
	}
	if report.UpdatedAt.IsZero() {
		report.UpdatedAt = now
	}
	const query = `INSERT INTO event_reports
	(id, title, content, report_type, status, total_participants, event_id, created_by, generated_at, created_at, updated_at)
	VALUES (:id, :title, :content, :report_type, :status, :total_participants, :event_id, :created_by, :generated_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, report); err != nil {
		return fmt.Errorf("create event report: %w", err)
	}
	return nil
}

// GetByID fetches a report by identifier.
func (r *EventReportRepository) GetByID(ctx context.Context, id string) (*models.EventReport, error) {
	query := fmt.Sprintf("SELECT %s FROM event_reports WHERE id = $1", eventReportColumns)
	var report models.EventReport
	if err := r.db.GetContext(ctx, &report, query, id); err != nil {
		return nil, err
	}
	return &report, nil
}

// List returns reports matching the filter, newest first.
func (r *EventReportRepository) List(ctx context.Context, filter models.EventReportFilter) ([]models.EventReport, error) {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("SELECT %s FROM event_reports", eventReportColumns))
	args := make([]interface{}, 0, 4)
	conditions := make([]string, 0, 4)

	if filter.EventID != "" {
		args = append(args, filter.EventID)
		conditions = append(conditions, fmt.Sprintf("event_id = $%d", len(args)))
	}
	if filter.ReportType != "" {
		args = append(args, filter.ReportType)
		conditions = append(conditions, fmt.Sprintf("report_type = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.CreatedBy != "" {
		args = append(args, filter.CreatedBy)
		conditions = append(conditions, fmt.Sprintf("created_by = $%d", len(args)))
	}

	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC, id DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var reports []models.EventReport
	if err := r.db.SelectContext(ctx, &reports, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list event reports: %w", err)
	}
	return reports, nil
}

// UpdateReportParams groups mutable report columns.
type UpdateReportParams struct {
	ID                string
	Title             *string
	Content           *string
	ReportType        *models.ReportType
	Status            *models.ReportStatus
	TotalParticipants *int
	GeneratedAt       *time.Time
	UpdatedAt         time.Time
}

// Update edits report columns.
func (r *EventReportRepository) Update(ctx context.Context, params UpdateReportParams) error {
	setParts := []string{"updated_at = :updated_at"}
	if params.Title != nil {
		setParts = append(setParts, "title = :title")
	}
	if params.Content != nil {
		setParts = append(setParts, "content = :content")
	}
	if params.ReportType != nil {
		setParts = append(setParts, "report_type = :report_type")
	}
	if params.Status != nil {
		setParts = append(setParts, "status = :status")
	}
	if params.TotalParticipants != nil {
		setParts = append(setParts, "total_participants = :total_participants")
	}
	if params.GeneratedAt != nil {
		setParts = append(setParts, "generated_at = :generated_at")
	}
	query := fmt.Sprintf("UPDATE event_reports SET %s WHERE id = :id", strings.Join(setParts, ", "))
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":                 params.ID,
		"title":              params.Title,
		"content":            params.Content,
		"report_type":        params.ReportType,
		"status":             params.Status,
		"total_participants": params.TotalParticipants,
		"generated_at":       params.GeneratedAt,
		"updated_at":         params.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("update event report: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check report update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a report row.
func (r *EventReportRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM event_reports WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete event report: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check report delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteByEvent removes all reports attached to an event.
func (r *EventReportRepository) DeleteByEvent(ctx context.Context, eventID string) error {
	const query = `DELETE FROM event_reports WHERE event_id = $1`
	if _, err := r.db.ExecContext(ctx, query, eventID); err != nil {
		return fmt.Errorf("delete reports by event: %w", err)
	}
	return nil
}

// CountByStatusForClass counts one class's reports grouped by status.
func (r *EventReportRepository) CountByStatusForClass(ctx context.Context, classID string, status models.ReportStatus) (int, error) {
	const query = `SELECT COUNT(*) FROM event_reports r JOIN events e ON e.id = r.event_id
	WHERE e.class_id = $1 AND r.status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, classID, status); err != nil {
		return 0, fmt.Errorf("count class reports: %w", err)
	}
	return count, nil
}
