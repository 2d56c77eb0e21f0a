package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-event-api/internal/dto"
	"github.com/noah-isme/sma-event-api/internal/models"
	"github.com/noah-isme/sma-event-api/internal/repository"
	appErrors "github.com/noah-isme/sma-event-api/pkg/errors"
)

type eventStore interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id string) (*models.Event, error)
	List(ctx context.Context, filter models.EventFilter, now time.Time) ([]models.Event, error)
	Update(ctx context.Context, params repository.UpdateEventParams) error
	UpdateApproval(ctx context.Context, params repository.UpdateApprovalParams) error
	Delete(ctx context.Context, id string) error
	CountByStatus(ctx context.Context) ([]models.EventStatusCount, error)
	CountByClass(ctx context.Context) ([]models.EventClassCount, error)
}

type eventDocumentCascader interface {
	DeleteByEvent(ctx context.Context, eventID string) ([]models.EventDocument, error)
}

type eventReportCascader interface {
	DeleteByEvent(ctx context.Context, eventID string) error
}

type eventBlobStorage interface {
	Delete(filename string) error
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// EventService orchestrates the event approval workflow.
type EventService struct {
	repo      eventStore
	documents eventDocumentCascader
	reports   eventReportCascader
	storage   eventBlobStorage
	audit     auditLogger
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEventService constructs the service with defaults.
func NewEventService(repo eventStore, documents eventDocumentCascader, reports eventReportCascader, storage eventBlobStorage, audit auditLogger, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &EventService{
		repo:      repo,
		documents: documents,
		reports:   reports,
		storage:   storage,
		audit:     audit,
		cache:     cache,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Submit stores a new event in PENDING state.
func (s *EventService) Submit(ctx context.Context, req dto.CreateEventRequest, actor *models.JWTClaims) (*models.Event, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	switch actor.Role {
	case models.RoleTeacher, models.RoleHOD, models.RoleAdmin:
	default:
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	if !req.StartTime.Before(req.EndTime) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "startTime must be before endTime")
	}

	event := &models.Event{
		Title:          req.Title,
		Description:    req.Description,
		StartTime:      req.StartTime.UTC(),
		EndTime:        req.EndTime.UTC(),
		ClassID:        normalizeRef(req.ClassID),
		ApprovalStatus: models.EventStatusPending,
		CreatedBy:      actor.UserID,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event")
	}
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionEventSubmit,
		Resource:   "event",
		ResourceID: &event.ID,
		NewValues:  []byte(fmt.Sprintf(`{"title":%q,"status":%q}`, event.Title, event.ApprovalStatus)),
	})
	s.invalidateViews(ctx)
	return event, nil
}

// Approve moves a pending event to APPROVED.
func (s *EventService) Approve(ctx context.Context, id string, req dto.ApproveEventRequest, actor *models.JWTClaims) (*models.Event, error) {
	return s.review(ctx, id, models.EventStatusApproved, optionalString(req.Comments), nil, actor)
}

// Reject moves a pending event to REJECTED. The reason is mandatory.
func (s *EventService) Reject(ctx context.Context, id string, req dto.RejectEventRequest, actor *models.JWTClaims) (*models.Event, error) {
	reason := optionalString(req.Reason)
	if reason == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}
	return s.review(ctx, id, models.EventStatusRejected, nil, reason, actor)
}

func (s *EventService) review(ctx context.Context, id string, target models.EventApprovalStatus, comments, reason *string, actor *models.JWTClaims) (*models.Event, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RolePrincipal && actor.Role != models.RoleAdmin {
		return nil, appErrors.ErrForbidden
	}
	event, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(event.ApprovalStatus, target) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot move event from %s to %s", event.ApprovalStatus, target))
	}
	now := s.now().UTC()
	err = s.repo.UpdateApproval(ctx, repository.UpdateApprovalParams{
		ID:               event.ID,
		Status:           target,
		ApprovedBy:       actor.UserID,
		ApprovalDate:     now,
		ApprovalComments: comments,
		RejectionReason:  reason,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "event already reviewed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update event status")
	}
	event.ApprovalStatus = target
	event.ApprovedBy = &actor.UserID
	event.ApprovalDate = &now
	event.ApprovalComments = comments
	event.RejectionReason = reason
	event.UpdatedAt = now

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionEventReview,
		Resource:   "event",
		ResourceID: &event.ID,
		NewValues:  []byte(fmt.Sprintf(`{"status":%q}`, target)),
	})
	s.invalidateViews(ctx)
	return event, nil
}

// Cancel closes a pending event. Only the submitter or an admin may cancel.
func (s *EventService) Cancel(ctx context.Context, id string, actor *models.JWTClaims) (*models.Event, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	event, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin && event.CreatedBy != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	if !models.CanTransition(event.ApprovalStatus, models.EventStatusCancelled) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot cancel event in %s state", event.ApprovalStatus))
	}
	now := s.now().UTC()
	err = s.repo.UpdateApproval(ctx, repository.UpdateApprovalParams{
		ID:           event.ID,
		Status:       models.EventStatusCancelled,
		ApprovedBy:   actor.UserID,
		ApprovalDate: now,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "event already reviewed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel event")
	}
	event.ApprovalStatus = models.EventStatusCancelled
	event.ApprovedBy = &actor.UserID
	event.ApprovalDate = &now
	event.UpdatedAt = now

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionEventCancel,
		Resource:   "event",
		ResourceID: &event.ID,
	})
	s.invalidateViews(ctx)
	return event, nil
}

// Update edits a pending event's details.
func (s *EventService) Update(ctx context.Context, id string, req dto.UpdateEventRequest, actor *models.JWTClaims) (*models.Event, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	event, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin && event.CreatedBy != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	if event.ApprovalStatus != models.EventStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "only pending events can be edited")
	}

	start := event.StartTime
	if req.StartTime != nil {
		start = req.StartTime.UTC()
	}
	end := event.EndTime
	if req.EndTime != nil {
		end = req.EndTime.UTC()
	}
	if !start.Before(end) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "startTime must be before endTime")
	}

	now := s.now().UTC()
	params := repository.UpdateEventParams{
		ID:          event.ID,
		Title:       req.Title,
		Description: req.Description,
		ClassID:     req.ClassID,
		UpdatedAt:   now,
	}
	if req.StartTime != nil {
		params.StartTime = &start
	}
	if req.EndTime != nil {
		params.EndTime = &end
	}
	if err := s.repo.Update(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "event already reviewed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update event")
	}

	if req.Title != nil {
		event.Title = *req.Title
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	event.StartTime = start
	event.EndTime = end
	if req.ClassID != nil {
		event.ClassID = normalizeRef(req.ClassID)
	}
	event.UpdatedAt = now

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionEventUpdate,
		Resource:   "event",
		ResourceID: &event.ID,
	})
	s.invalidateViews(ctx)
	return event, nil
}

// Delete removes an event and cascades to its reports and documents.
// Document rows go first, then blobs; blob failures are logged, not fatal.
func (s *EventService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin {
		return appErrors.ErrForbidden
	}
	event, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if s.reports != nil {
		if err := s.reports.DeleteByEvent(ctx, event.ID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete event reports")
		}
	}
	var orphaned []models.EventDocument
	if s.documents != nil {
		orphaned, err = s.documents.DeleteByEvent(ctx, event.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete event documents")
		}
	}
	if err := s.repo.Delete(ctx, event.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete event")
	}
	if s.storage != nil {
		for _, doc := range orphaned {
			if err := s.storage.Delete(doc.FileName); err != nil {
				s.logger.Warn("failed to remove document blob", zap.String("file", doc.FileName), zap.Error(err))
			}
		}
	}
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionEventDelete,
		Resource:   "event",
		ResourceID: &event.ID,
	})
	s.invalidateViews(ctx)
	return nil
}

// Get returns a single event.
func (s *EventService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Event, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	return s.load(ctx, id)
}

// List returns events matching the query filters.
func (s *EventService) List(ctx context.Context, query dto.EventQuery, actor *models.JWTClaims) ([]models.Event, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	filter := models.EventFilter{
		ClassID: query.ClassID,
		Limit:   query.Limit,
		Offset:  query.Offset,
	}
	if query.Status != "" {
		status := models.EventApprovalStatus(query.Status)
		switch status {
		case models.EventStatusPending, models.EventStatusApproved, models.EventStatusRejected, models.EventStatusCancelled:
			filter.Status = status
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported status filter")
		}
	}
	if query.Timeframe != "" {
		timeframe := models.EventTimeframe(query.Timeframe)
		switch timeframe {
		case models.EventTimeframeUpcoming, models.EventTimeframeActive, models.EventTimeframeCompleted:
			filter.Timeframe = timeframe
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported timeframe filter")
		}
	}
	events, err := s.repo.List(ctx, filter, s.now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	return events, nil
}

// Stats aggregates event counts for dashboards.
func (s *EventService) Stats(ctx context.Context, actor *models.JWTClaims) (*dto.EventStatsResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	switch actor.Role {
	case models.RolePrincipal, models.RoleHOD, models.RoleAdmin:
	default:
		return nil, appErrors.ErrForbidden
	}
	byStatus, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count events")
	}
	byClass, err := s.repo.CountByClass(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to group events by class")
	}
	total := 0
	for _, count := range byStatus {
		total += count.Count
	}
	return &dto.EventStatsResponse{Total: total, ByStatus: byStatus, ByClass: byClass}, nil
}

func (s *EventService) load(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	return event, nil
}

func (s *EventService) invalidateViews(ctx context.Context) {
	if s.cache == nil {
		return
	}
	for _, pattern := range []string{"events:*", "dashboard:*"} {
		if err := s.cache.Invalidate(ctx, pattern); err != nil {
			s.logger.Warn("cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
		}
	}
}

func (s *EventService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil || log == nil {
		return
	}
	if meta, ok := models.RequestMetaFromContext(ctx); ok {
		log.IPAddress = meta.IPAddress
		log.UserAgent = meta.UserAgent
	} else {
		log.IPAddress = "system"
		log.UserAgent = "event-service"
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func optionalString(value string) *string {
	return normalizeRef(&value)
}
