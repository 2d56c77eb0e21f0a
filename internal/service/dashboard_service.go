package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-event-api/internal/dto"
	"github.com/noah-isme/sma-event-api/internal/models"
	appErrors "github.com/noah-isme/sma-event-api/pkg/errors"
)

type dashboardEventSource interface {
	CountByStatus(ctx context.Context) ([]models.EventStatusCount, error)
	CountByStatusForClass(ctx context.Context, classID string) ([]models.EventStatusCount, error)
	CountByClass(ctx context.Context) ([]models.EventClassCount, error)
	CountByTimeframe(ctx context.Context, classID string, timeframe models.EventTimeframe, now time.Time) (int, error)
	Recent(ctx context.Context, limit int) ([]models.Event, error)
}

type dashboardReportSource interface {
	CountByStatusForClass(ctx context.Context, classID string, status models.ReportStatus) (int, error)
}

type dashboardDocumentSource interface {
	StatsForClass(ctx context.Context, classID string) (*models.DocumentStats, error)
}

type dashboardAttendanceSource interface {
	CountByPresenceForClass(ctx context.Context, classID string) ([]models.AttendancePresenceCount, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL         time.Duration
	RecentEventLimit int
}

// DashboardService composes role-scoped dashboard payloads.
type DashboardService struct {
	events     dashboardEventSource
	reports    dashboardReportSource
	documents  dashboardDocumentSource
	attendance dashboardAttendanceSource
	cache      *CacheService
	logger     *zap.Logger
	now        func() time.Time
	cfg        DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Events     dashboardEventSource
	Reports    dashboardReportSource
	Documents  dashboardDocumentSource
	Attendance dashboardAttendanceSource
	Cache      *CacheService
	Logger     *zap.Logger
	Config     DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.RecentEventLimit <= 0 {
		cfg.RecentEventLimit = 5
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		events:     params.Events,
		reports:    params.Reports,
		documents:  params.Documents,
		attendance: params.Attendance,
		cache:      params.Cache,
		logger:     logger,
		now:        time.Now,
		cfg:        cfg,
	}
}

// Principal returns the approval-centric dashboard and indicates cache utilisation.
func (s *DashboardService) Principal(ctx context.Context, actor *models.JWTClaims) (*dto.PrincipalDashboardResponse, bool, error) {
	if actor == nil {
		return nil, false, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RolePrincipal && actor.Role != models.RoleAdmin {
		return nil, false, appErrors.ErrForbidden
	}
	cacheKey := "dashboard:principal"
	if s.cache != nil {
		var cached dto.PrincipalDashboardResponse
		hit, err := s.cache.Get(ctx, cacheKey, &cached)
		if err != nil {
			return nil, false, err
		}
		if hit {
			return &cached, true, nil
		}
	}

	summary, err := s.composePrincipalSummary(ctx)
	if err != nil {
		return nil, false, err
	}
	s.persistCache(ctx, cacheKey, summary)
	return summary, false, nil
}

// HOD returns department statistics scoped to a single class.
func (s *DashboardService) HOD(ctx context.Context, classID string, actor *models.JWTClaims) (*dto.HODDashboardResponse, bool, error) {
	if actor == nil {
		return nil, false, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleHOD && actor.Role != models.RoleAdmin {
		return nil, false, appErrors.ErrForbidden
	}
	if classID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "classId is required")
	}
	cacheKey := fmt.Sprintf("dashboard:hod:%s", classID)
	if s.cache != nil {
		var cached dto.HODDashboardResponse
		hit, err := s.cache.Get(ctx, cacheKey, &cached)
		if err != nil {
			return nil, false, err
		}
		if hit {
			return &cached, true, nil
		}
	}

	summary, err := s.composeHODSummary(ctx, classID)
	if err != nil {
		return nil, false, err
	}
	s.persistCache(ctx, cacheKey, summary)
	return summary, false, nil
}

// Overview lists the actions available to the actor's role, with event
// counts for roles that review or submit events.
func (s *DashboardService) Overview(ctx context.Context, actor *models.JWTClaims) (*dto.OverviewResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	actions, ok := roleActions[actor.Role]
	if !ok {
		return nil, appErrors.ErrForbidden
	}
	resp := &dto.OverviewResponse{Role: actor.Role, Actions: actions}
	switch actor.Role {
	case models.RoleAdmin, models.RolePrincipal, models.RoleHOD, models.RoleTeacher:
		byStatus, err := s.events.CountByStatus(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count events")
		}
		resp.EventsByStatus = byStatus
	}
	return resp, nil
}

func (s *DashboardService) composePrincipalSummary(ctx context.Context) (*dto.PrincipalDashboardResponse, error) {
	byStatus, err := s.events.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count events")
	}
	summary := &dto.PrincipalDashboardResponse{}
	for _, count := range byStatus {
		summary.TotalEvents += count.Count
		switch count.Status {
		case models.EventStatusPending:
			summary.PendingEvents = count.Count
		case models.EventStatusApproved:
			summary.ApprovedEvents = count.Count
		case models.EventStatusRejected:
			summary.RejectedEvents = count.Count
		case models.EventStatusCancelled:
			summary.CancelledEvents = count.Count
		}
	}
	if reviewed := summary.ApprovedEvents + summary.RejectedEvents; reviewed > 0 {
		summary.ApprovalRate = (float64(summary.ApprovedEvents) / float64(reviewed)) * 100
	}

	recent, err := s.events.Recent(ctx, s.cfg.RecentEventLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recent events")
	}
	summary.RecentEvents = recent

	byClass, err := s.events.CountByClass(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to group events by class")
	}
	summary.EventsByClass = byClass
	return summary, nil
}

func (s *DashboardService) composeHODSummary(ctx context.Context, classID string) (*dto.HODDashboardResponse, error) {
	byStatus, err := s.events.CountByStatusForClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count class events")
	}
	summary := &dto.HODDashboardResponse{ClassID: classID, EventsByStatus: byStatus}

	now := s.now().UTC()
	timeframes := []struct {
		timeframe models.EventTimeframe
		target    *int
	}{
		{models.EventTimeframeUpcoming, &summary.Timeframes.Upcoming},
		{models.EventTimeframeActive, &summary.Timeframes.Active},
		{models.EventTimeframeCompleted, &summary.Timeframes.Completed},
	}
	for _, bucket := range timeframes {
		count, err := s.events.CountByTimeframe(ctx, classID, bucket.timeframe, now)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bucket class events")
		}
		*bucket.target = count
	}

	if s.reports != nil {
		drafts, err := s.reports.CountByStatusForClass(ctx, classID, models.ReportStatusDraft)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count draft reports")
		}
		summary.DraftReports = drafts
	}
	if s.documents != nil {
		stats, err := s.documents.StatsForClass(ctx, classID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document stats")
		}
		if stats != nil {
			summary.Documents = *stats
		}
	}
	if s.attendance != nil {
		counts, err := s.attendance.CountByPresenceForClass(ctx, classID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count class attendance")
		}
		for _, count := range counts {
			if count.Present {
				summary.Attendance.Present = count.Count
			} else {
				summary.Attendance.Absent = count.Count
			}
		}
	}
	return summary, nil
}

func (s *DashboardService) persistCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
	}
}

var roleActions = map[models.UserRole][]dto.OverviewLink{
	models.RoleAdmin: {
		{Label: "Manage events", Path: "/events"},
		{Label: "Review submissions", Path: "/events?status=PENDING"},
		{Label: "Documents", Path: "/documents"},
		{Label: "Reports", Path: "/reports"},
		{Label: "Principal dashboard", Path: "/dashboard/principal"},
	},
	models.RolePrincipal: {
		{Label: "Review submissions", Path: "/events?status=PENDING"},
		{Label: "Reports", Path: "/reports"},
		{Label: "Principal dashboard", Path: "/dashboard/principal"},
	},
	models.RoleHOD: {
		{Label: "Submit event", Path: "/events"},
		{Label: "Documents", Path: "/documents"},
		{Label: "Reports", Path: "/reports"},
		{Label: "Department dashboard", Path: "/dashboard/hod"},
	},
	models.RoleTeacher: {
		{Label: "Submit event", Path: "/events"},
		{Label: "Documents", Path: "/documents"},
		{Label: "Reports", Path: "/reports"},
	},
	models.RoleStudent: {
		{Label: "Browse events", Path: "/events?status=APPROVED"},
	},
	models.RoleParent: {
		{Label: "Browse events", Path: "/events?status=APPROVED"},
	},
}
