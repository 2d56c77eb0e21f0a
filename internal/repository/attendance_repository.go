package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-event-api/internal/models"
)

// AttendanceRepository reads attendance rows used by report derivation.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// CountByPresence groups attendance rows by the present flag. A missing
// group simply does not appear in the result.
func (r *AttendanceRepository) CountByPresence(ctx context.Context) ([]models.AttendancePresenceCount, error) {
	const query = `SELECT present, COUNT(*) AS count FROM attendances GROUP BY present`
	var counts []models.AttendancePresenceCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count attendance by presence: %w", err)
	}
	return counts, nil
}

// CountByPresenceForClass scopes the presence grouping to one class.
func (r *AttendanceRepository) CountByPresenceForClass(ctx context.Context, classID string) ([]models.AttendancePresenceCount, error) {
	const query = `SELECT present, COUNT(*) AS count FROM attendances WHERE class_id = $1 GROUP BY present`
	var counts []models.AttendancePresenceCount
	if err := r.db.SelectContext(ctx, &counts, query, classID); err != nil {
		return nil, fmt.Errorf("count class attendance by presence: %w", err)
	}
	return counts, nil
}
