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

const eventColumns = `id, title, description, start_time, end_time, class_id, approval_status,
       approved_by, approval_date, approval_comments, rejection_reason, created_by, created_at, updated_at`

// EventRepository persists event workflow data.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new event row.
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.ApprovalStatus == "" {
		event.ApprovalStatus = models.EventStatusPending
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	if event.UpdatedAt.IsZero() {
		event.UpdatedAt = now
	}
	const query = `INSERT INTO events
	(id, title, description, start_time, end_time, class_id, approval_status, approved_by, approval_date, approval_comments, rejection_reason, created_by, created_at, updated_at)
	VALUES (:id, :title, :description, :start_time, :end_time, :class_id, :approval_status, :approved_by, :approval_date, :approval_comments, :rejection_reason, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// GetByID fetches an event by identifier.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	query := fmt.Sprintf("SELECT %s FROM events WHERE id = $1", eventColumns)
	var event models.Event
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, err
	}
	return &event, nil
}

// List returns events matching the filter, newest first.
func (r *EventRepository) List(ctx context.Context, filter models.EventFilter, now time.Time) ([]models.Event, error) {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("SELECT %s FROM events", eventColumns))
	args := make([]interface{}, 0, 4)
	conditions := make([]string, 0, 4)

	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("approval_status = $%d", len(args)))
	}
	if filter.ClassID != "" {
		args = append(args, filter.ClassID)
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)))
	}
	if filter.CreatedBy != "" {
		args = append(args, filter.CreatedBy)
		conditions = append(conditions, fmt.Sprintf("created_by = $%d", len(args)))
	}
	switch filter.Timeframe {
	case models.EventTimeframeUpcoming:
		args = append(args, now)
		conditions = append(conditions, fmt.Sprintf("start_time > $%d", len(args)))
	case models.EventTimeframeActive:
		args = append(args, now)
		conditions = append(conditions, fmt.Sprintf("start_time <= $%d", len(args)))
		args = append(args, now)
		conditions = append(conditions, fmt.Sprintf("end_time >= $%d", len(args)))
	case models.EventTimeframeCompleted:
		args = append(args, now)
		conditions = append(conditions, fmt.Sprintf("end_time < $%d", len(args)))
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

	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// Recent returns the latest events by creation time.
func (r *EventRepository) Recent(ctx context.Context, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = 5
	}
	query := fmt.Sprintf("SELECT %s FROM events ORDER BY created_at DESC, id DESC LIMIT %d", eventColumns, limit)
	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query); err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	return events, nil
}

// UpdateEventParams groups mutable columns for pending events.
type UpdateEventParams struct {
	ID          string
	Title       *string
	Description *string
	StartTime   *time.Time
	EndTime     *time.Time
	ClassID     *string
	UpdatedAt   time.Time
}

// Update edits a pending event. Returns sql.ErrNoRows when the event is
// missing or no longer pending.
func (r *EventRepository) Update(ctx context.Context, params UpdateEventParams) error {
	setParts := []string{"updated_at = :updated_at"}
	if params.Title != nil {
		setParts = append(setParts, "title = :title")
	}
	if params.Description != nil {
		setParts = append(setParts, "description = :description")
	}
	if params.StartTime != nil {
		setParts = append(setParts, "start_time = :start_time")
	}
	if params.EndTime != nil {
		setParts = append(setParts, "end_time = :end_time")
	}
	if params.ClassID != nil {
		setParts = append(setParts, "class_id = :class_id")
	}
	query := fmt.Sprintf("UPDATE events SET %s WHERE id = :id AND approval_status = '%s'",
		strings.Join(setParts, ", "),
		models.EventStatusPending,
	)
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":          params.ID,
		"title":       params.Title,
		"description": params.Description,
		"start_time":  params.StartTime,
		"end_time":    params.EndTime,
		"class_id":    params.ClassID,
		"updated_at":  params.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check event update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateApprovalParams groups review outcome columns.
type UpdateApprovalParams struct {
	ID               string
	Status           models.EventApprovalStatus
	ApprovedBy       string
	ApprovalDate     time.Time
	ApprovalComments *string
	RejectionReason  *string
}

// UpdateApproval persists a review decision. The pending guard makes
// concurrent reviews race-safe: the loser sees sql.ErrNoRows.
func (r *EventRepository) UpdateApproval(ctx context.Context, params UpdateApprovalParams) error {
	query := fmt.Sprintf(`UPDATE events SET
	approval_status = :approval_status,
	approved_by = :approved_by,
	approval_date = :approval_date,
	approval_comments = :approval_comments,
	rejection_reason = :rejection_reason,
	updated_at = :approval_date
	WHERE id = :id AND approval_status = '%s'`, models.EventStatusPending)
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":                params.ID,
		"approval_status":   params.Status,
		"approved_by":       params.ApprovedBy,
		"approval_date":     params.ApprovalDate,
		"approval_comments": params.ApprovalComments,
		"rejection_reason":  params.RejectionReason,
	})
	if err != nil {
		return fmt.Errorf("update event approval: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check event approval rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an event row.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM events WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check event delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByStatus groups events by approval status.
func (r *EventRepository) CountByStatus(ctx context.Context) ([]models.EventStatusCount, error) {
	const query = `SELECT approval_status, COUNT(*) AS count FROM events GROUP BY approval_status`
	var counts []models.EventStatusCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count events by status: %w", err)
	}
	return counts, nil
}

// CountByStatusForClass groups one class's events by approval status.
func (r *EventRepository) CountByStatusForClass(ctx context.Context, classID string) ([]models.EventStatusCount, error) {
	const query = `SELECT approval_status, COUNT(*) AS count FROM events WHERE class_id = $1 GROUP BY approval_status`
	var counts []models.EventStatusCount
	if err := r.db.SelectContext(ctx, &counts, query, classID); err != nil {
		return nil, fmt.Errorf("count class events by status: %w", err)
	}
	return counts, nil
}

// CountByClass groups events by class, including class names.
func (r *EventRepository) CountByClass(ctx context.Context) ([]models.EventClassCount, error) {
	const query = `SELECT e.class_id, c.name AS class_name, COUNT(*) AS count
	FROM events e LEFT JOIN classes c ON c.id = e.class_id
	GROUP BY e.class_id, c.name
	ORDER BY count DESC`
	var counts []models.EventClassCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count events by class: %w", err)
	}
	return counts, nil
}

// CountByTimeframe counts a class's events inside a time bucket.
func (r *EventRepository) CountByTimeframe(ctx context.Context, classID string, timeframe models.EventTimeframe, now time.Time) (int, error) {
	builder := strings.Builder{}
	builder.WriteString("SELECT COUNT(*) FROM events WHERE class_id = $1")
	args := []interface{}{classID}
	switch timeframe {
	case models.EventTimeframeUpcoming:
		args = append(args, now)
		builder.WriteString(fmt.Sprintf(" AND start_time > $%d", len(args)))
	case models.EventTimeframeActive:
		args = append(args, now)
		builder.WriteString(fmt.Sprintf(" AND start_time <= $%d", len(args)))
		args = append(args, now)
		builder.WriteString(fmt.Sprintf(" AND end_time >= $%d", len(args)))
	case models.EventTimeframeCompleted:
		args = append(args, now)
		builder.WriteString(fmt.Sprintf(" AND end_time < $%d", len(args)))
	}
	var count int
	if err := r.db.GetContext(ctx, &count, builder.String(), args...); err != nil {
		return 0, fmt.Errorf("count events by timeframe: %w", err)
	}
	return count, nil
}

// SummaryRows returns events with their document counts, in stable order,
// optionally scoped to a single event.
func (r *EventRepository) SummaryRows(ctx context.Context, eventID string) ([]models.EventSummaryRow, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT e.id, e.title, e.start_time, e.created_at,
       COUNT(d.id) AS document_count
	FROM events e LEFT JOIN event_documents d ON d.event_id = e.id`)
	args := make([]interface{}, 0, 1)
	if eventID != "" {
		args = append(args, eventID)
		builder.WriteString(" WHERE e.id = $1")
	}
	builder.WriteString(" GROUP BY e.id, e.title, e.start_time, e.created_at ORDER BY e.created_at ASC, e.id ASC")

	var rows []models.EventSummaryRow
	if err := r.db.SelectContext(ctx, &rows, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("event summary rows: %w", err)
	}
	return rows, nil
}
