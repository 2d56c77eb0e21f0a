package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-event-api/internal/dto"
	"github.com/noah-isme/sma-event-api/internal/models"
	"github.com/noah-isme/sma-event-api/internal/repository"
	appErrors "github.com/noah-isme/sma-event-api/pkg/errors"
	"github.com/noah-isme/sma-event-api/pkg/export"
)

type reportStore interface {
	Create(ctx context.Context, report *models.EventReport) error
	GetByID(ctx context.Context, id string) (*models.EventReport, error)
	List(ctx context.Context, filter models.EventReportFilter) ([]models.EventReport, error)
	Update(ctx context.Context, params repository.UpdateReportParams) error
	Delete(ctx context.Context, id string) error
}

type reportEventSource interface {
	GetByID(ctx context.Context, id string) (*models.Event, error)
	SummaryRows(ctx context.Context, eventID string) ([]models.EventSummaryRow, error)
}

type attendanceSource interface {
	CountByPresence(ctx context.Context) ([]models.AttendancePresenceCount, error)
}

// ReportFormat names an export rendition.
type ReportFormat string

const (
	ReportFormatText ReportFormat = "text"
	ReportFormatHTML ReportFormat = "html"
	ReportFormatCSV  ReportFormat = "csv"
	ReportFormatPDF  ReportFormat = "pdf"
)

// ReportExport bundles rendered bytes with download metadata.
type ReportExport struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ReportService manages event reports and their derived content.
type ReportService struct {
	repo       reportStore
	events     reportEventSource
	attendance attendanceSource
	audit      auditLogger
	logger     *zap.Logger
	now        func() time.Time
}

// NewReportService constructs the report service.
func NewReportService(repo reportStore, events reportEventSource, attendance attendanceSource, audit auditLogger, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		repo:       repo,
		events:     events,
		attendance: attendance,
		audit:      audit,
		logger:     logger,
		now:        time.Now,
	}
}

// Create stores a new report. ATTENDANCE and SUMMARY reports ignore any
// provided content and derive it from live data.
func (s *ReportService) Create(ctx context.Context, req dto.CreateReportRequest, actor *models.JWTClaims) (*models.EventReport, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	switch actor.Role {
	case models.RoleTeacher, models.RoleHOD, models.RolePrincipal, models.RoleAdmin:
	default:
		return nil, appErrors.ErrForbidden
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title is required")
	}
	reportType := models.ReportType(strings.ToUpper(strings.TrimSpace(req.ReportType)))
	if !isKnownReportType(reportType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported report type")
	}
	status := models.ReportStatusDraft
	if req.Status != "" {
		status = models.ReportStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
		if !isKnownReportStatus(status) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported report status")
		}
	}
	event, err := s.resolveEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}

	report := &models.EventReport{
		Title:             req.Title,
		Content:           req.Content,
		ReportType:        reportType,
		Status:            status,
		TotalParticipants: req.TotalParticipants,
		EventID:           event.ID,
		CreatedBy:         actor.UserID,
	}
	if isDerivableReportType(reportType) {
		content, err := s.deriveContent(ctx, reportType, event.ID)
		if err != nil {
			return nil, err
		}
		now := s.now().UTC()
		report.Content = content
		report.GeneratedAt = &now
	} else if strings.TrimSpace(report.Content) == "" {
		report.Content = "Report content"
	}
	if err := s.repo.Create(ctx, report); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report")
	}
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionReportCreate,
		Resource:   "event_report",
		ResourceID: &report.ID,
		NewValues:  []byte(fmt.Sprintf(`{"title":%q,"reportType":%q}`, report.Title, report.ReportType)),
	})
	return report, nil
}

// Update edits a report. When the effective type is derivable the content is
// regenerated against current data regardless of the payload.
func (s *ReportService) Update(ctx context.Context, id string, req dto.UpdateReportRequest, actor *models.JWTClaims) (*models.EventReport, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	report, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin && report.CreatedBy != actor.UserID {
		return nil, appErrors.ErrForbidden
	}

	params := repository.UpdateReportParams{ID: report.ID, UpdatedAt: s.now().UTC()}
	if req.Title != nil {
		trimmed := strings.TrimSpace(*req.Title)
		if trimmed == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "title cannot be empty")
		}
		params.Title = &trimmed
	}
	effectiveType := report.ReportType
	if req.ReportType != nil {
		reportType := models.ReportType(strings.ToUpper(strings.TrimSpace(*req.ReportType)))
		if !isKnownReportType(reportType) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported report type")
		}
		params.ReportType = &reportType
		effectiveType = reportType
	}
	if req.Status != nil {
		status := models.ReportStatus(strings.ToUpper(strings.TrimSpace(*req.Status)))
		if !isKnownReportStatus(status) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported report status")
		}
		params.Status = &status
	}
	if req.TotalParticipants != nil {
		params.TotalParticipants = req.TotalParticipants
	}
	if isDerivableReportType(effectiveType) {
		content, err := s.deriveContent(ctx, effectiveType, report.EventID)
		if err != nil {
			return nil, err
		}
		now := s.now().UTC()
		params.Content = &content
		params.GeneratedAt = &now
	} else if req.Content != nil {
		params.Content = req.Content
	}

	if err := s.repo.Update(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update report")
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

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionReportUpdate,
		Resource:   "event_report",
		ResourceID: &report.ID,
	})
	return report, nil
}

// Get returns a single report.
func (s *ReportService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.EventReport, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	return s.load(ctx, id)
}

// List returns reports matching the query.
func (s *ReportService) List(ctx context.Context, query dto.ReportQuery, actor *models.JWTClaims) ([]models.EventReport, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	filter := models.EventReportFilter{
		EventID: query.EventID,
		Limit:   query.Limit,
		Offset:  query.Offset,
	}
	if query.ReportType != "" {
		reportType := models.ReportType(strings.ToUpper(query.ReportType))
		if !isKnownReportType(reportType) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported report type")
		}
		filter.ReportType = reportType
	}
	if query.Status != "" {
		status := models.ReportStatus(strings.ToUpper(query.Status))
		if !isKnownReportStatus(status) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported report status")
		}
		filter.Status = status
	}
	reports, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reports")
	}
	return reports, nil
}

// Delete removes a report.
func (s *ReportService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	report, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if actor.Role != models.RoleAdmin && report.CreatedBy != actor.UserID {
		return appErrors.ErrForbidden
	}
	if err := s.repo.Delete(ctx, report.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete report")
	}
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionReportDelete,
		Resource:   "event_report",
		ResourceID: &report.ID,
	})
	return nil
}

// Export renders the report in the requested format.
func (s *ReportService) Export(ctx context.Context, id string, format ReportFormat, actor *models.JWTClaims) (*ReportExport, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	report, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	event, err := s.resolveEvent(ctx, report.EventID)
	if err != nil {
		return nil, err
	}
	doc := export.ReportDocument{
		ReportID:          report.ID,
		Title:             report.Title,
		EventTitle:        event.Title,
		ReportType:        string(report.ReportType),
		Status:            string(report.Status),
		TotalParticipants: report.TotalParticipants,
		CreatedAt:         report.CreatedAt,
		Content:           report.Content,
	}
	if report.GeneratedAt != nil {
		doc.GeneratedAt = *report.GeneratedAt
	} else {
		doc.GeneratedAt = report.UpdatedAt
	}

	var (
		data        []byte
		contentType string
		ext         string
	)
	switch format {
	case ReportFormatText:
		data = export.RenderText(doc)
		contentType = "text/plain; charset=utf-8"
		ext = "txt"
	case ReportFormatHTML:
		data = export.RenderHTML(doc)
		contentType = "text/html; charset=utf-8"
		ext = "html"
	case ReportFormatCSV:
		data, err = export.RenderCSV(doc)
		contentType = "text/csv"
		ext = "csv"
	case ReportFormatPDF:
		data, err = export.RenderPDF(doc)
		contentType = "application/pdf"
		ext = "pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}
	return &ReportExport{
		Filename:    export.Filename(report.ID, report.Title, ext),
		ContentType: contentType,
		Data:        data,
	}, nil
}

func (s *ReportService) deriveContent(ctx context.Context, reportType models.ReportType, eventID string) (string, error) {
	switch reportType {
	case models.ReportTypeAttendance:
		return s.deriveAttendanceContent(ctx)
	case models.ReportTypeSummary:
		return s.deriveSummaryContent(ctx, eventID)
	default:
		return "", appErrors.Clone(appErrors.ErrInternal, "report type is not derivable")
	}
}

func (s *ReportService) deriveAttendanceContent(ctx context.Context) (string, error) {
	if s.attendance == nil {
		return "", appErrors.Clone(appErrors.ErrInternal, "attendance source unavailable")
	}
	counts, err := s.attendance.CountByPresence(ctx)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count attendance")
	}
	present, absent := 0, 0
	for _, count := range counts {
		if count.Present {
			present = count.Count
		} else {
			absent = count.Count
		}
	}
	return fmt.Sprintf("Attendance Report\n\nTotal Present: %d\nTotal Absent: %d\nTotal Students: %d",
		present, absent, present+absent), nil
}

func (s *ReportService) deriveSummaryContent(ctx context.Context, eventID string) (string, error) {
	rows, err := s.events.SummaryRows(ctx, eventID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event summary")
	}
	var b strings.Builder
	b.WriteString("Event Summary Report\n\n")
	fmt.Fprintf(&b, "Total Events: %d\n\n", len(rows))
	b.WriteString("Events Details:\n")
	for _, row := range rows {
		fmt.Fprintf(&b, "- %s (%s) - %d documents\n", row.Title, row.StartTime.Format("Mon Jan 02 2006"), row.DocumentCount)
	}
	return b.String(), nil
}

func (s *ReportService) load(ctx context.Context, id string) (*models.EventReport, error) {
	report, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report")
	}
	return report, nil
}

func (s *ReportService) resolveEvent(ctx context.Context, id string) (*models.Event, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "eventId is required")
	}
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	return event, nil
}

func isKnownReportType(t models.ReportType) bool {
	for _, known := range models.KnownReportTypes {
		if t == known {
			return true
		}
	}
	return false
}

func isKnownReportStatus(s models.ReportStatus) bool {
	switch s {
	case models.ReportStatusDraft, models.ReportStatusSubmitted, models.ReportStatusApproved, models.ReportStatusRejected:
		return true
	default:
		return false
	}
}

func isDerivableReportType(t models.ReportType) bool {
	return t == models.ReportTypeAttendance || t == models.ReportTypeSummary
}

func (s *ReportService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil || log == nil {
		return
	}
	if meta, ok := models.RequestMetaFromContext(ctx); ok {
		log.IPAddress = meta.IPAddress
		log.UserAgent = meta.UserAgent
	} else {
		log.IPAddress = "system"
		log.UserAgent = "report-service"
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
