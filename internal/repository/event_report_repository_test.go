package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-event-api/internal/models"
)

func newReportRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func reportRows(id string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "title", "content", "report_type", "status", "total_participants", "event_id", "created_by", "generated_at", "created_at", "updated_at",
	}).AddRow(id, "Attendance", "Attendance Report", "ATTENDANCE", "DRAFT", nil, "evt-1", "user-1", now, now, now)
}

func TestEventReportRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()

	repo := NewEventReportRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO event_reports")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	report := &models.EventReport{
		Title:      "Attendance",
		Content:    "Attendance Report",
		ReportType: models.ReportTypeAttendance,
		EventID:    "evt-1",
		CreatedBy:  "user-1",
	}
	require.NoError(t, repo.Create(context.Background(), report))
	require.Equal(t, models.ReportStatusDraft, report.Status)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, content")).
		WithArgs(report.ID).
		WillReturnRows(reportRows(report.ID))

	found, err := repo.GetByID(context.Background(), report.ID)
	require.NoError(t, err)
	require.Equal(t, report.ID, found.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventReportRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()

	repo := NewEventReportRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, content")).
		WithArgs("evt-1", "ATTENDANCE").
		WillReturnRows(reportRows("rep-1"))

	list, err := repo.List(context.Background(), models.EventReportFilter{
		EventID:    "evt-1",
		ReportType: models.ReportTypeAttendance,
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "rep-1", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventReportRepositoryUpdateMissing(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()

	repo := NewEventReportRepository(db)
	title := "Renamed"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE event_reports SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), UpdateReportParams{
		ID:        "rep-404",
		Title:     &title,
		UpdatedAt: time.Now(),
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventReportRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()

	repo := NewEventReportRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM event_reports")).
		WithArgs("rep-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "rep-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
