package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-event-api/internal/dto"
	"github.com/noah-isme/sma-event-api/internal/models"
	"github.com/noah-isme/sma-event-api/internal/repository"
	appErrors "github.com/noah-isme/sma-event-api/pkg/errors"
)

type reportRepoStub struct {
	reports map[string]*models.EventReport
	filter  models.EventReportFilter
}

func newReportRepoStub() *reportRepoStub {
	return &reportRepoStub{reports: make(map[string]*models.EventReport)}
}

func (r *reportRepoStub) Create(ctx context.Context, report *models.EventReport) error {
	if report.ID == "" {
		report.ID = fmt.Sprintf("rep-%d", len(r.reports)+1)
	}
	if report.Status == "" {
		report.Status = models.ReportStatusDraft
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now()
	}
	r.reports[report.ID] = report
	return nil
}

func (r *reportRepoStub) GetByID(ctx context.Context, id string) (*models.EventReport, error) {
	if report, ok := r.reports[id]; ok {
		copy := *report
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (r *reportRepoStub) List(ctx context.Context, filter models.EventReportFilter) ([]models.EventReport, error) {
	r.filter = filter
	result := make([]models.EventReport, 0, len(r.reports))
	for _, report := range r.reports {
		result = append(result, *report)
	}
	return result, nil
}

func (r *reportRepoStub) Update(ctx context.Context, params repository.UpdateReportParams) error {
	report, ok := r.reports[params.ID]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Title != nil {
		report.Title = *params.Title
	}
	if params.Content != nil {
		report.Content = *params.Content
	}
	if params.ReportType != nil {
		report.ReportType = *params.ReportType
	}
	if params.Status != nil {
		report.Status = *params.Status
	}
	if params.TotalParticipants != nil {
		report.TotalParticipants = params.TotalParticipants
	}
	if params.GeneratedAt != nil {
		report.GeneratedAt = params.GeneratedAt
	}
	report.UpdatedAt = params.UpdatedAt
	return nil
}

func (r *reportRepoStub) Delete(ctx context.Context, id string) error {
	if _, ok := r.reports[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.reports, id)
	return nil
}

type reportEventStub struct {
	events map[string]*models.Event
	rows   []models.EventSummaryRow
}

func (r reportEventStub) GetByID(ctx context.Context, id string) (*models.Event, error) {
	if event, ok := r.events[id]; ok {
		copy := *event
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (r reportEventStub) SummaryRows(ctx context.Context, eventID string) ([]models.EventSummaryRow, error) {
	return r.rows, nil
}

type attendanceStub struct {
	counts []models.AttendancePresenceCount
}

func (a attendanceStub) CountByPresence(ctx context.Context) ([]models.AttendancePresenceCount, error) {
	return a.counts, nil
}

func reportEventFixture() reportEventStub {
	return reportEventStub{
		events: map[string]*models.Event{
			"evt-1": {ID: "evt-1", Title: "Sports Day", ApprovalStatus: models.EventStatusApproved},
		},
		rows: []models.EventSummaryRow{
			{ID: "evt-1", Title: "Sports Day", StartTime: time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC), DocumentCount: 3},
		},
	}
}

func teacherClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}
}

func TestReportServiceCreateAttendanceDerivesContent(t *testing.T) {
	repo := newReportRepoStub()
	attendance := attendanceStub{counts: []models.AttendancePresenceCount{
		{Present: true, Count: 40},
		{Present: false, Count: 2},
	}}
	audit := &auditStub{}
	svc := NewReportService(repo, reportEventFixture(), attendance, audit, nil)

	report, err := svc.Create(context.Background(), dto.CreateReportRequest{
		Title:      "Attendance",
		Content:    "ignored",
		ReportType: "ATTENDANCE",
		EventID:    "evt-1",
	}, teacherClaims())
	require.NoError(t, err)
	require.Equal(t, "Attendance Report\n\nTotal Present: 40\nTotal Absent: 2\nTotal Students: 42", report.Content)
	require.NotNil(t, report.GeneratedAt)
	require.Equal(t, models.ReportStatusDraft, report.Status)
	require.Len(t, audit.logs, 1)
}

func TestReportServiceCreateAttendanceMissingGroupIsZero(t *testing.T) {
	repo := newReportRepoStub()
	attendance := attendanceStub{counts: []models.AttendancePresenceCount{{Present: true, Count: 12}}}
	svc := NewReportService(repo, reportEventFixture(), attendance, &auditStub{}, nil)

	report, err := svc.Create(context.Background(), dto.CreateReportRequest{
		Title:      "Attendance",
		ReportType: "ATTENDANCE",
		EventID:    "evt-1",
	}, teacherClaims())
	require.NoError(t, err)
	require.Equal(t, "Attendance Report\n\nTotal Present: 12\nTotal Absent: 0\nTotal Students: 12", report.Content)
}

func TestReportServiceCreateSummaryDerivesContent(t *testing.T) {
	repo := newReportRepoStub()
	svc := NewReportService(repo, reportEventFixture(), attendanceStub{}, &auditStub{}, nil)

	report, err := svc.Create(context.Background(), dto.CreateReportRequest{
		Title:      "Summary",
		ReportType: "SUMMARY",
		EventID:    "evt-1",
	}, teacherClaims())
	require.NoError(t, err)
	require.Equal(t,
		"Event Summary Report\n\nTotal Events: 1\n\nEvents Details:\n- Sports Day (Sat Mar 14 2026) - 3 documents\n",
		report.Content)
}

func TestReportServiceCreateDefaultsContent(t *testing.T) {
	repo := newReportRepoStub()
	svc := NewReportService(repo, reportEventFixture(), attendanceStub{}, &auditStub{}, nil)

	report, err := svc.Create(context.Background(), dto.CreateReportRequest{
		Title:      "Budget recap",
		ReportType: "BUDGET",
		EventID:    "evt-1",
	}, teacherClaims())
	require.NoError(t, err)
	require.Equal(t, "Report content", report.Content)
	require.Nil(t, report.GeneratedAt)
}

func TestReportServiceCreateValidation(t *testing.T) {
	svc := NewReportService(newReportRepoStub(), reportEventFixture(), attendanceStub{}, &auditStub{}, nil)

	_, err := svc.Create(context.Background(), dto.CreateReportRequest{ReportType: "BUDGET", EventID: "evt-1"}, teacherClaims())
	require.ErrorContains(t, err, "title is required")

	_, err = svc.Create(context.Background(), dto.CreateReportRequest{Title: "X", ReportType: "WEATHER", EventID: "evt-1"}, teacherClaims())
	require.ErrorContains(t, err, "unsupported report type")

	_, err = svc.Create(context.Background(), dto.CreateReportRequest{Title: "X", ReportType: "BUDGET", EventID: "evt-404"}, teacherClaims())
	require.ErrorContains(t, err, "event not found")

	_, err = svc.Create(context.Background(), dto.CreateReportRequest{Title: "X", ReportType: "BUDGET", EventID: "evt-1"}, &models.JWTClaims{UserID: "s", Role: models.RoleStudent})
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestReportServiceUpdateRegeneratesDerivedContent(t *testing.T) {
	repo := newReportRepoStub()
	repo.reports["rep-1"] = &models.EventReport{
		ID:         "rep-1",
		Title:      "Attendance",
		Content:    "Attendance Report\n\nTotal Present: 40\nTotal Absent: 2\nTotal Students: 42",
		ReportType: models.ReportTypeAttendance,
		Status:     models.ReportStatusDraft,
		EventID:    "evt-1",
		CreatedBy:  "teacher-1",
	}
	attendance := attendanceStub{counts: []models.AttendancePresenceCount{
		{Present: true, Count: 41},
		{Present: false, Count: 1},
	}}
	svc := NewReportService(repo, reportEventFixture(), attendance, &auditStub{}, nil)

	status := "SUBMITTED"
	report, err := svc.Update(context.Background(), "rep-1", dto.UpdateReportRequest{Status: &status}, teacherClaims())
	require.NoError(t, err)
	require.Equal(t, models.ReportStatusSubmitted, report.Status)
	require.Equal(t, "Attendance Report\n\nTotal Present: 41\nTotal Absent: 1\nTotal Students: 42", report.Content)
	require.NotNil(t, report.GeneratedAt)
}

func TestReportServiceUpdateForbiddenForOtherCreator(t *testing.T) {
	repo := newReportRepoStub()
	repo.reports["rep-1"] = &models.EventReport{ID: "rep-1", ReportType: models.ReportTypeBudget, CreatedBy: "teacher-1"}
	svc := NewReportService(repo, reportEventFixture(), attendanceStub{}, &auditStub{}, nil)

	title := "Renamed"
	_, err := svc.Update(context.Background(), "rep-1", dto.UpdateReportRequest{Title: &title}, &models.JWTClaims{UserID: "teacher-2", Role: models.RoleTeacher})
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestReportServiceListFilters(t *testing.T) {
	repo := newReportRepoStub()
	svc := NewReportService(repo, reportEventFixture(), attendanceStub{}, &auditStub{}, nil)

	_, err := svc.List(context.Background(), dto.ReportQuery{ReportType: "attendance", Status: "draft"}, teacherClaims())
	require.NoError(t, err)
	require.Equal(t, models.ReportTypeAttendance, repo.filter.ReportType)
	require.Equal(t, models.ReportStatusDraft, repo.filter.Status)

	_, err = svc.List(context.Background(), dto.ReportQuery{Status: "ARCHIVED"}, teacherClaims())
	require.ErrorContains(t, err, "unsupported report status")
}

func TestReportServiceDelete(t *testing.T) {
	repo := newReportRepoStub()
	repo.reports["rep-1"] = &models.EventReport{ID: "rep-1", CreatedBy: "teacher-1"}
	audit := &auditStub{}
	svc := NewReportService(repo, reportEventFixture(), attendanceStub{}, audit, nil)

	require.NoError(t, svc.Delete(context.Background(), "rep-1", teacherClaims()))
	require.Empty(t, repo.reports)
	require.Len(t, audit.logs, 1)

	err := svc.Delete(context.Background(), "rep-1", teacherClaims())
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestReportServiceExport(t *testing.T) {
	repo := newReportRepoStub()
	participants := 42
	repo.reports["rep-1"] = &models.EventReport{
		ID:                "rep-1",
		Title:             "Sports Day Recap",
		Content:           "All good",
		ReportType:        models.ReportTypeSummary,
		Status:            models.ReportStatusApproved,
		TotalParticipants: &participants,
		EventID:           "evt-1",
		CreatedBy:         "teacher-1",
		CreatedAt:         time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		UpdatedAt:         time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
	svc := NewReportService(repo, reportEventFixture(), attendanceStub{}, &auditStub{}, nil)

	out, err := svc.Export(context.Background(), "rep-1", ReportFormatText, teacherClaims())
	require.NoError(t, err)
	require.Equal(t, "event-report-rep-1-Sports_Day_Recap.txt", out.Filename)
	require.Equal(t, "text/plain; charset=utf-8", out.ContentType)
	require.Contains(t, string(out.Data), "Event: Sports Day")

	pdf, err := svc.Export(context.Background(), "rep-1", ReportFormatPDF, teacherClaims())
	require.NoError(t, err)
	require.Equal(t, "application/pdf", pdf.ContentType)
	require.True(t, len(pdf.Data) > 0)

	_, err = svc.Export(context.Background(), "rep-1", ReportFormat("xml"), teacherClaims())
	require.ErrorContains(t, err, "unsupported export format")
}
