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

func newDocumentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func documentRows(id string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "title", "description", "file_name", "file_url", "file_size", "file_type", "event_id", "uploaded_by", "uploaded_at",
	}).AddRow(id, "Budget sheet", nil, "1700000000000_budget.pdf", "/uploads/documents/1700000000000_budget.pdf", int64(2048), "application/pdf", "evt-1", "user-1", time.Now())
}

func TestEventDocumentRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	repo := NewEventDocumentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO event_documents")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	doc := &models.EventDocument{
		Title:      "Budget sheet",
		FileName:   "1700000000000_budget.pdf",
		FileURL:    "/uploads/documents/1700000000000_budget.pdf",
		FileSize:   2048,
		FileType:   "application/pdf",
		EventID:    "evt-1",
		UploadedBy: "user-1",
	}
	require.NoError(t, repo.Create(context.Background(), doc))
	require.NotEmpty(t, doc.ID)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, description")).
		WithArgs(doc.ID).
		WillReturnRows(documentRows(doc.ID))

	found, err := repo.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, doc.ID, found.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventDocumentRepositoryListWithCount(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	repo := NewEventDocumentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM event_documents")).
		WithArgs("evt-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, description")).
		WithArgs("evt-1").
		WillReturnRows(documentRows("doc-1"))

	docs, total, err := repo.List(context.Background(), models.EventDocumentFilter{EventID: "evt-1"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, docs, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventDocumentRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	repo := NewEventDocumentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM event_documents")).
		WithArgs("doc-404").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "doc-404")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventDocumentRepositoryAggregates(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	repo := NewEventDocumentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT file_type, COUNT(*)")).
		WillReturnRows(sqlmock.NewRows([]string{"file_type", "count"}).
			AddRow("application/pdf", 4).
			AddRow("image/png", 2))

	byType, err := repo.CountByType(context.Background())
	require.NoError(t, err)
	require.Len(t, byType, 2)
	require.Equal(t, "application/pdf", byType[0].FileType)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(file_size), 0)")).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(int64(6144)))

	total, err := repo.TotalStoredBytes(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(6144), total)
	require.NoError(t, mock.ExpectationsWereMet())
}
