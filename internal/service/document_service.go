package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-event-api/internal/dto"
	"github.com/noah-isme/sma-event-api/internal/models"
	"github.com/noah-isme/sma-event-api/internal/repository"
	appErrors "github.com/noah-isme/sma-event-api/pkg/errors"
)

type documentStore interface {
	Create(ctx context.Context, doc *models.EventDocument) error
	GetByID(ctx context.Context, id string) (*models.EventDocument, error)
	List(ctx context.Context, filter models.EventDocumentFilter) ([]models.EventDocument, int, error)
	ListByEvent(ctx context.Context, eventID string) ([]models.EventDocument, error)
	Update(ctx context.Context, params repository.UpdateDocumentParams) error
	Delete(ctx context.Context, id string) error
	CountByType(ctx context.Context) ([]models.DocumentTypeCount, error)
	TotalStoredBytes(ctx context.Context) (int64, error)
}

type documentEventResolver interface {
	GetByID(ctx context.Context, id string) (*models.Event, error)
}

type documentFileStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type documentSignedURLSigner interface {
	Generate(id, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (id, relPath string, expiresAt time.Time, err error)
}

// DocumentUpload carries upload metadata and stream reader.
type DocumentUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.ReadSeeker
}

// DocumentDownload bundles file reader metadata for streaming.
type DocumentDownload struct {
	File      *os.File
	Filename  string
	MimeType  string
	SizeBytes int64
	ExpiresAt time.Time
}

// DocumentServiceConfig holds validation parameters.
type DocumentServiceConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
	APIPrefix    string
}

// DocumentService manages event attachment metadata and storage IO.
type DocumentService struct {
	repo    documentStore
	events  documentEventResolver
	storage documentFileStorage
	signer  documentSignedURLSigner
	audit   auditLogger
	logger  *zap.Logger
	cfg     DocumentServiceConfig
	mimeSet map[string]struct{}
	now     func() time.Time
}

// NewDocumentService constructs the service with defaults.
func NewDocumentService(repo documentStore, events documentEventResolver, storage documentFileStorage, signer documentSignedURLSigner, audit auditLogger, logger *zap.Logger, cfg DocumentServiceConfig) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 5 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{
			"application/pdf",
			"application/msword",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"application/vnd.ms-excel",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			"image/jpeg",
			"image/png",
			"image/gif",
		}
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(mt)] = struct{}{}
	}
	return &DocumentService{
		repo:    repo,
		events:  events,
		storage: storage,
		signer:  signer,
		audit:   audit,
		logger:  logger,
		cfg:     cfg,
		mimeSet: mimeSet,
		now:     time.Now,
	}
}

// Upload persists the file and its metadata for an approved event. The blob
// is written first; if the metadata insert fails the blob is removed again.
func (s *DocumentService) Upload(ctx context.Context, meta dto.CreateDocumentRequest, upload DocumentUpload, actor *models.JWTClaims) (*models.EventDocument, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	switch actor.Role {
	case models.RoleTeacher, models.RoleHOD, models.RoleAdmin:
	default:
		return nil, appErrors.ErrForbidden
	}
	if upload.Content == nil || upload.Size <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if strings.TrimSpace(meta.Title) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title is required")
	}
	event, err := s.resolveEvent(ctx, meta.EventID)
	if err != nil {
		return nil, err
	}
	if event.ApprovalStatus != models.EventStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrConflict, "documents can only be attached to approved events")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
	}
	mimeType, err := s.detectMime(upload)
	if err != nil {
		return nil, err
	}
	if _, allowed := s.mimeSet[strings.ToLower(mimeType)]; !allowed {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file type not allowed")
	}

	key := s.storageKey(upload.Filename)
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	storedPath, err := s.storage.SaveStream(key, upload.Content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to persist document file")
	}
	doc := &models.EventDocument{
		Title:       meta.Title,
		Description: normalizeRef(meta.Description),
		FileName:    storedPath,
		FileURL:     s.fileURL(storedPath),
		FileSize:    upload.Size,
		FileType:    mimeType,
		EventID:     event.ID,
		UploadedBy:  actor.UserID,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		_ = s.storage.Delete(storedPath)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create document metadata")
	}
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionDocumentUpload,
		Resource:   "event_document",
		ResourceID: &doc.ID,
		NewValues:  []byte(fmt.Sprintf(`{"title":%q,"eventId":%q}`, doc.Title, doc.EventID)),
	})
	return doc, nil
}

// Replace swaps the stored file of an existing document. The new blob lands
// first, then the row flips to it, and only then is the old blob removed so
// a crash never leaves the row pointing at nothing.
func (s *DocumentService) Replace(ctx context.Context, id string, meta dto.UpdateDocumentRequest, upload *DocumentUpload, actor *models.JWTClaims) (*models.EventDocument, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin && doc.UploadedBy != actor.UserID {
		return nil, appErrors.ErrForbidden
	}

	params := repository.UpdateDocumentParams{ID: doc.ID}
	if meta.Title != nil {
		trimmed := strings.TrimSpace(*meta.Title)
		if trimmed == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "title cannot be empty")
		}
		params.Title = &trimmed
	}
	if meta.Description != nil {
		params.Description = normalizeRef(meta.Description)
	}

	oldBlob := ""
	if upload != nil {
		if upload.Content == nil || upload.Size <= 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
		}
		if upload.Size > s.cfg.MaxFileSize {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
		}
		mimeType, err := s.detectMime(*upload)
		if err != nil {
			return nil, err
		}
		if _, allowed := s.mimeSet[strings.ToLower(mimeType)]; !allowed {
			return nil, appErrors.Clone(appErrors.ErrValidation, "file type not allowed")
		}
		key := s.storageKey(upload.Filename)
		if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
		}
		storedPath, err := s.storage.SaveStream(key, upload.Content)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to persist document file")
		}
		fileURL := s.fileURL(storedPath)
		params.FileName = &storedPath
		params.FileURL = &fileURL
		params.FileSize = &upload.Size
		params.FileType = &mimeType
		oldBlob = doc.FileName
	}

	if err := s.repo.Update(ctx, params); err != nil {
		if params.FileName != nil {
			_ = s.storage.Delete(*params.FileName)
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update document")
	}
	if oldBlob != "" {
		if err := s.storage.Delete(oldBlob); err != nil {
			s.logger.Warn("failed to remove replaced blob", zap.String("file", oldBlob), zap.Error(err))
		}
	}

	if params.Title != nil {
		doc.Title = *params.Title
	}
	if meta.Description != nil {
		doc.Description = params.Description
	}
	if params.FileName != nil {
		doc.FileName = *params.FileName
		doc.FileURL = *params.FileURL
		doc.FileSize = *params.FileSize
		doc.FileType = *params.FileType
	}
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionDocumentReplace,
		Resource:   "event_document",
		ResourceID: &doc.ID,
	})
	return doc, nil
}

// Remove deletes the metadata row and then the blob. A blob that cannot be
// removed is logged and left for the cleanup sweep.
func (s *DocumentService) Remove(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	doc, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if actor.Role != models.RoleAdmin && doc.UploadedBy != actor.UserID {
		return appErrors.ErrForbidden
	}
	if err := s.repo.Delete(ctx, doc.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}
	if err := s.storage.Delete(doc.FileName); err != nil {
		s.logger.Warn("failed to remove document blob", zap.String("file", doc.FileName), zap.Error(err))
	}
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionDocumentDelete,
		Resource:   "event_document",
		ResourceID: &doc.ID,
	})
	return nil
}

// Get returns document metadata.
func (s *DocumentService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.EventDocument, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	return s.load(ctx, id)
}

// List returns documents matching the query along with the total count.
func (s *DocumentService) List(ctx context.Context, query dto.DocumentQuery, actor *models.JWTClaims) ([]models.EventDocument, int, error) {
	if actor == nil {
		return nil, 0, appErrors.ErrUnauthorized
	}
	page := query.Page
	if page < 1 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	filter := models.EventDocumentFilter{
		EventID:  query.EventID,
		FileType: query.FileType,
		Search:   strings.TrimSpace(query.Search),
		Limit:    pageSize,
		Offset:   (page - 1) * pageSize,
	}
	docs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	return docs, total, nil
}

// ListForEvent returns every document attached to the event.
func (s *DocumentService) ListForEvent(ctx context.Context, eventID string, actor *models.JWTClaims) ([]models.EventDocument, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if _, err := s.resolveEvent(ctx, eventID); err != nil {
		return nil, err
	}
	docs, err := s.repo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list event documents")
	}
	return docs, nil
}

// Stats aggregates stored document counts and bytes.
func (s *DocumentService) Stats(ctx context.Context, actor *models.JWTClaims) (*models.DocumentStats, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	byType, err := s.repo.CountByType(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count documents")
	}
	totalBytes, err := s.repo.TotalStoredBytes(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum document sizes")
	}
	stats := &models.DocumentStats{TotalBytes: totalBytes, ByType: byType}
	for _, count := range byType {
		stats.TotalCount += count.Count
	}
	return stats, nil
}

// GetDownloadURL generates a signed URL for downloading the file.
func (s *DocumentService) GetDownloadURL(ctx context.Context, id string, actor *models.JWTClaims) (string, error) {
	if s.signer == nil {
		return "", appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	doc, err := s.Get(ctx, id, actor)
	if err != nil {
		return "", err
	}
	token, _, err := s.signer.Generate(doc.ID, doc.FileName)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate download token")
	}
	base := strings.TrimRight(s.cfg.APIPrefix, "/")
	return fmt.Sprintf("%s/documents/%s/download?token=%s", base, doc.ID, token), nil
}

// Download validates the token and opens the stored file.
func (s *DocumentService) Download(ctx context.Context, id, token string, actor *models.JWTClaims) (*DocumentDownload, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	doc, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	docID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
	}
	if docID != doc.ID || relPath != doc.FileName {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open document file")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read document metadata")
	}
	return &DocumentDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		MimeType:  doc.FileType,
		SizeBytes: info.Size(),
		ExpiresAt: expiresAt,
	}, nil
}

func (s *DocumentService) load(ctx context.Context, id string) (*models.EventDocument, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return doc, nil
}

func (s *DocumentService) resolveEvent(ctx context.Context, id string) (*models.Event, error) {
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

func (s *DocumentService) detectMime(upload DocumentUpload) (string, error) {
	if upload.Content == nil {
		return "", appErrors.Clone(appErrors.ErrValidation, "file reader missing")
	}
	if upload.MimeType != "" {
		return upload.MimeType, nil
	}
	header := make([]byte, 512)
	n, err := upload.Content.Read(header)
	if err != nil && err != io.EOF {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect file")
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	if n == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "empty file")
	}
	return http.DetectContentType(header[:n]), nil
}

// storageKey prefixes the sanitized original name with a millisecond stamp
// so concurrent uploads of the same file never collide.
func (s *DocumentService) storageKey(original string) string {
	return fmt.Sprintf("%d_%s", s.now().UnixMilli(), sanitizeFileName(original))
}

func (s *DocumentService) fileURL(storedPath string) string {
	return path.Join("/uploads/documents", filepath.Base(storedPath))
}

// normalizeRef trims an optional string and collapses blanks to nil.
func normalizeRef(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	result := trimmed
	return &result
}

// sanitizeFileName keeps letters, digits, dots and dashes; everything else
// becomes an underscore.
func sanitizeFileName(raw string) string {
	raw = filepath.Base(raw)
	if raw == "" || raw == "." {
		return "file"
	}
	var b strings.Builder
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func (s *DocumentService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil || log == nil {
		return
	}
	if meta, ok := models.RequestMetaFromContext(ctx); ok {
		log.IPAddress = meta.IPAddress
		log.UserAgent = meta.UserAgent
	} else {
		log.IPAddress = "system"
		log.UserAgent = "document-service"
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
