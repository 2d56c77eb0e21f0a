package service

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-event-api/internal/dto"
	"github.com/noah-isme/sma-event-api/internal/models"
	"github.com/noah-isme/sma-event-api/internal/repository"
	appErrors "github.com/noah-isme/sma-event-api/pkg/errors"
	"github.com/noah-isme/sma-event-api/pkg/storage"
)

type documentRepoStub struct {
	docs      map[string]*models.EventDocument
	filter    models.EventDocumentFilter
	createErr error
}

func newDocumentRepoStub() *documentRepoStub {
	return &documentRepoStub{docs: make(map[string]*models.EventDocument)}
}

func (r *documentRepoStub) Create(ctx context.Context, doc *models.EventDocument) error {
	if r.createErr != nil {
		return r.createErr
	}
	if doc.ID == "" {
		doc.ID = fmt.Sprintf("doc-%d", len(r.docs)+1)
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now()
	}
	r.docs[doc.ID] = doc
	return nil
}

func (r *documentRepoStub) GetByID(ctx context.Context, id string) (*models.EventDocument, error) {
	if doc, ok := r.docs[id]; ok {
		copy := *doc
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (r *documentRepoStub) List(ctx context.Context, filter models.EventDocumentFilter) ([]models.EventDocument, int, error) {
	r.filter = filter
	result := make([]models.EventDocument, 0, len(r.docs))
	for _, doc := range r.docs {
		result = append(result, *doc)
	}
	return result, len(result), nil
}

func (r *documentRepoStub) ListByEvent(ctx context.Context, eventID string) ([]models.EventDocument, error) {
	result := make([]models.EventDocument, 0, len(r.docs))
	for _, doc := range r.docs {
		if doc.EventID == eventID {
			result = append(result, *doc)
		}
	}
	return result, nil
}

func (r *documentRepoStub) Update(ctx context.Context, params repository.UpdateDocumentParams) error {
	doc, ok := r.docs[params.ID]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Title != nil {
		doc.Title = *params.Title
	}
	if params.Description != nil {
		doc.Description = params.Description
	}
	if params.FileName != nil {
		doc.FileName = *params.FileName
		doc.FileURL = *params.FileURL
		doc.FileSize = *params.FileSize
		doc.FileType = *params.FileType
	}
	return nil
}

func (r *documentRepoStub) Delete(ctx context.Context, id string) error {
	if _, ok := r.docs[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.docs, id)
	return nil
}

func (r *documentRepoStub) CountByType(ctx context.Context) ([]models.DocumentTypeCount, error) {
	counts := map[string]int{}
	for _, doc := range r.docs {
		counts[doc.FileType]++
	}
	result := make([]models.DocumentTypeCount, 0, len(counts))
	for fileType, count := range counts {
		result = append(result, models.DocumentTypeCount{FileType: fileType, Count: count})
	}
	return result, nil
}

func (r *documentRepoStub) TotalStoredBytes(ctx context.Context) (int64, error) {
	var total int64
	for _, doc := range r.docs {
		total += doc.FileSize
	}
	return total, nil
}

type eventResolverStub struct {
	events map[string]*models.Event
}

func (r eventResolverStub) GetByID(ctx context.Context, id string) (*models.Event, error) {
	if event, ok := r.events[id]; ok {
		copy := *event
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

type blobStorageStub struct {
	saved map[string][]byte
	files map[string]string
}

func newBlobStorageStub() *blobStorageStub {
	return &blobStorageStub{
		saved: make(map[string][]byte),
		files: make(map[string]string),
	}
}

func (s *blobStorageStub) SaveStream(filename string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.saved[filename] = data
	path := filepath.Join(os.TempDir(), "document-test-"+filepath.Base(filename))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	s.files[filename] = path
	return filename, nil
}

func (s *blobStorageStub) Open(filename string) (*os.File, error) {
	path, ok := s.files[filename]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return os.Open(path)
}

func (s *blobStorageStub) Delete(filename string) error {
	if path, ok := s.files[filename]; ok {
		_ = os.Remove(path)
		delete(s.files, filename)
	}
	delete(s.saved, filename)
	return nil
}

func approvedEventFixture(id string) *models.Event {
	return &models.Event{ID: id, Title: "Science Fair", ApprovalStatus: models.EventStatusApproved, CreatedBy: "teacher-1"}
}

func newDocumentServiceForTest(repo *documentRepoStub, events eventResolverStub, store *blobStorageStub, audit *auditStub) *DocumentService {
	return NewDocumentService(repo, events, store, nil, audit, nil, DocumentServiceConfig{
		MaxFileSize:  1024,
		AllowedMIMEs: []string{"application/pdf", "image/png"},
		APIPrefix:    "/api/v1",
	})
}

func pdfUpload(content string) DocumentUpload {
	reader := bytes.NewReader([]byte(content))
	return DocumentUpload{
		Filename: "budget plan.pdf",
		Size:     int64(reader.Len()),
		MimeType: "application/pdf",
		Content:  reader,
	}
}

func TestDocumentServiceUpload(t *testing.T) {
	repo := newDocumentRepoStub()
	events := eventResolverStub{events: map[string]*models.Event{"evt-1": approvedEventFixture("evt-1")}}
	store := newBlobStorageStub()
	audit := &auditStub{}
	svc := newDocumentServiceForTest(repo, events, store, audit)
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }

	meta := dto.CreateDocumentRequest{Title: "Budget sheet", EventID: "evt-1"}
	doc, err := svc.Upload(context.Background(), meta, pdfUpload("%PDF-1.4 budget"), &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Delete(doc.FileName) })

	require.Equal(t, "1700000000000_budget_plan.pdf", doc.FileName)
	require.Equal(t, "/uploads/documents/1700000000000_budget_plan.pdf", doc.FileURL)
	require.Equal(t, "application/pdf", doc.FileType)
	require.Contains(t, store.saved, doc.FileName)
	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionDocumentUpload, audit.logs[0].Action)
}

func TestDocumentServiceUploadRequiresApprovedEvent(t *testing.T) {
	pending := approvedEventFixture("evt-1")
	pending.ApprovalStatus = models.EventStatusPending
	events := eventResolverStub{events: map[string]*models.Event{"evt-1": pending}}
	svc := newDocumentServiceForTest(newDocumentRepoStub(), events, newBlobStorageStub(), &auditStub{})

	meta := dto.CreateDocumentRequest{Title: "Budget sheet", EventID: "evt-1"}
	_, err := svc.Upload(context.Background(), meta, pdfUpload("%PDF-1.4"), &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestDocumentServiceUploadValidationOrder(t *testing.T) {
	events := eventResolverStub{events: map[string]*models.Event{"evt-1": approvedEventFixture("evt-1")}}
	svc := newDocumentServiceForTest(newDocumentRepoStub(), events, newBlobStorageStub(), &auditStub{})
	claims := &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}

	// Missing file wins over missing title.
	_, err := svc.Upload(context.Background(), dto.CreateDocumentRequest{EventID: "evt-1"}, DocumentUpload{}, claims)
	require.Contains(t, err.Error(), "file is required")

	_, err = svc.Upload(context.Background(), dto.CreateDocumentRequest{EventID: "evt-1"}, pdfUpload("%PDF-1.4"), claims)
	require.Contains(t, err.Error(), "title is required")

	// Unknown event checked before size and type.
	oversized := pdfUpload(strings.Repeat("x", 2048))
	_, err = svc.Upload(context.Background(), dto.CreateDocumentRequest{Title: "Budget", EventID: "evt-404"}, oversized, claims)
	require.ErrorContains(t, err, "event not found")

	oversized = pdfUpload(strings.Repeat("x", 2048))
	_, err = svc.Upload(context.Background(), dto.CreateDocumentRequest{Title: "Budget", EventID: "evt-1"}, oversized, claims)
	require.Contains(t, err.Error(), "exceeds")

	exe := pdfUpload("MZ binary")
	exe.MimeType = "application/x-msdownload"
	_, err = svc.Upload(context.Background(), dto.CreateDocumentRequest{Title: "Budget", EventID: "evt-1"}, exe, claims)
	require.Contains(t, err.Error(), "file type not allowed")
}

func TestDocumentServiceUploadSizeBoundary(t *testing.T) {
	events := eventResolverStub{events: map[string]*models.Event{"evt-1": approvedEventFixture("evt-1")}}
	store := newBlobStorageStub()
	svc := newDocumentServiceForTest(newDocumentRepoStub(), events, store, &auditStub{})
	claims := &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}
	meta := dto.CreateDocumentRequest{Title: "Budget", EventID: "evt-1"}

	// Exactly at the limit is accepted.
	atLimit := pdfUpload(strings.Repeat("x", 1024))
	doc, err := svc.Upload(context.Background(), meta, atLimit, claims)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Delete(doc.FileName) })

	overLimit := pdfUpload(strings.Repeat("x", 1025))
	_, err = svc.Upload(context.Background(), meta, overLimit, claims)
	require.ErrorContains(t, err, "exceeds")
}

func TestDocumentServiceUploadRollsBackBlobOnMetadataFailure(t *testing.T) {
	repo := newDocumentRepoStub()
	repo.createErr = fmt.Errorf("insert failed")
	events := eventResolverStub{events: map[string]*models.Event{"evt-1": approvedEventFixture("evt-1")}}
	store := newBlobStorageStub()
	svc := newDocumentServiceForTest(repo, events, store, &auditStub{})

	meta := dto.CreateDocumentRequest{Title: "Budget sheet", EventID: "evt-1"}
	_, err := svc.Upload(context.Background(), meta, pdfUpload("%PDF-1.4"), &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})
	require.Error(t, err)
	require.Empty(t, store.saved)
}

func TestDocumentServiceUploadRejectsStudents(t *testing.T) {
	svc := newDocumentServiceForTest(newDocumentRepoStub(), eventResolverStub{}, newBlobStorageStub(), &auditStub{})
	_, err := svc.Upload(context.Background(), dto.CreateDocumentRequest{}, pdfUpload("x"), &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestDocumentServiceReplaceSwapsBlobLast(t *testing.T) {
	repo := newDocumentRepoStub()
	store := newBlobStorageStub()
	_, err := store.SaveStream("1000_old.pdf", bytes.NewReader([]byte("old")))
	require.NoError(t, err)
	repo.docs["doc-1"] = &models.EventDocument{
		ID:         "doc-1",
		Title:      "Budget sheet",
		FileName:   "1000_old.pdf",
		FileURL:    "/uploads/documents/1000_old.pdf",
		FileSize:   3,
		FileType:   "application/pdf",
		EventID:    "evt-1",
		UploadedBy: "teacher-1",
	}
	events := eventResolverStub{events: map[string]*models.Event{"evt-1": approvedEventFixture("evt-1")}}
	audit := &auditStub{}
	svc := newDocumentServiceForTest(repo, events, store, audit)
	svc.now = func() time.Time { return time.UnixMilli(2000) }

	upload := pdfUpload("%PDF-1.4 new")
	doc, err := svc.Replace(context.Background(), "doc-1", dto.UpdateDocumentRequest{}, &upload, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Delete(doc.FileName) })

	require.Equal(t, "2000_budget_plan.pdf", doc.FileName)
	require.NotContains(t, store.saved, "1000_old.pdf")
	require.Contains(t, store.saved, "2000_budget_plan.pdf")
	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionDocumentReplace, audit.logs[0].Action)
}

func TestDocumentServiceReplaceForbiddenForOtherUploader(t *testing.T) {
	repo := newDocumentRepoStub()
	repo.docs["doc-1"] = &models.EventDocument{ID: "doc-1", UploadedBy: "teacher-1"}
	svc := newDocumentServiceForTest(repo, eventResolverStub{}, newBlobStorageStub(), &auditStub{})

	title := "Renamed"
	_, err := svc.Replace(context.Background(), "doc-1", dto.UpdateDocumentRequest{Title: &title}, nil, &models.JWTClaims{UserID: "teacher-2", Role: models.RoleTeacher})
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestDocumentServiceRemove(t *testing.T) {
	repo := newDocumentRepoStub()
	store := newBlobStorageStub()
	_, err := store.SaveStream("1000_old.pdf", bytes.NewReader([]byte("old")))
	require.NoError(t, err)
	repo.docs["doc-1"] = &models.EventDocument{ID: "doc-1", FileName: "1000_old.pdf", UploadedBy: "teacher-1"}
	audit := &auditStub{}
	svc := newDocumentServiceForTest(repo, eventResolverStub{}, store, audit)

	require.NoError(t, svc.Remove(context.Background(), "doc-1", &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}))
	require.Empty(t, repo.docs)
	require.NotContains(t, store.saved, "1000_old.pdf")
	require.Len(t, audit.logs, 1)
}

func TestDocumentServiceListDefaultsPagination(t *testing.T) {
	repo := newDocumentRepoStub()
	svc := newDocumentServiceForTest(repo, eventResolverStub{}, newBlobStorageStub(), &auditStub{})

	_, _, err := svc.List(context.Background(), dto.DocumentQuery{}, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})
	require.NoError(t, err)
	require.Equal(t, 20, repo.filter.Limit)
	require.Equal(t, 0, repo.filter.Offset)

	_, _, err = svc.List(context.Background(), dto.DocumentQuery{Page: 3, PageSize: 10}, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})
	require.NoError(t, err)
	require.Equal(t, 10, repo.filter.Limit)
	require.Equal(t, 20, repo.filter.Offset)
}

func TestDocumentServiceStats(t *testing.T) {
	repo := newDocumentRepoStub()
	repo.docs["doc-1"] = &models.EventDocument{ID: "doc-1", FileType: "application/pdf", FileSize: 2048}
	repo.docs["doc-2"] = &models.EventDocument{ID: "doc-2", FileType: "image/png", FileSize: 1024}
	svc := newDocumentServiceForTest(repo, eventResolverStub{}, newBlobStorageStub(), &auditStub{})

	stats, err := svc.Stats(context.Background(), &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalCount)
	require.Equal(t, int64(3072), stats.TotalBytes)
}

func TestDocumentServiceDownload(t *testing.T) {
	repo := newDocumentRepoStub()
	store := newBlobStorageStub()
	signer := storage.NewSignedURLSigner("secret", time.Minute)
	doc := &models.EventDocument{
		ID:         "doc-1",
		Title:      "Budget sheet",
		FileName:   "1000_budget.pdf",
		FileType:   "application/pdf",
		EventID:    "evt-1",
		UploadedBy: "teacher-1",
	}
	repo.docs[doc.ID] = doc
	_, err := store.SaveStream(doc.FileName, bytes.NewReader([]byte("hello")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Delete(doc.FileName) })

	svc := NewDocumentService(repo, eventResolverStub{}, store, signer, &auditStub{}, nil, DocumentServiceConfig{APIPrefix: "/api/v1"})

	claims := &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}
	url, err := svc.GetDownloadURL(context.Background(), doc.ID, claims)
	require.NoError(t, err)
	require.Contains(t, url, "/documents/doc-1/download?token=")
	parts := strings.SplitN(url, "token=", 2)
	require.Len(t, parts, 2)

	download, err := svc.Download(context.Background(), doc.ID, parts[1], claims)
	require.NoError(t, err)
	require.Equal(t, "application/pdf", download.MimeType)
	require.Equal(t, int64(5), download.SizeBytes)
	download.File.Close() //nolint:errcheck
}

func TestDocumentServiceDownloadRejectsForeignToken(t *testing.T) {
	repo := newDocumentRepoStub()
	store := newBlobStorageStub()
	signer := storage.NewSignedURLSigner("secret", time.Minute)
	doc := &models.EventDocument{
		ID:         "doc-1",
		Title:      "Budget sheet",
		FileName:   "1000_budget.pdf",
		FileType:   "application/pdf",
		EventID:    "evt-1",
		UploadedBy: "teacher-1",
	}
	repo.docs[doc.ID] = doc
	_, err := store.SaveStream(doc.FileName, bytes.NewReader([]byte("hello")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Delete(doc.FileName) })

	svc := NewDocumentService(repo, eventResolverStub{}, store, signer, &auditStub{}, nil, DocumentServiceConfig{APIPrefix: "/api/v1"})
	claims := &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}

	// Token issued for a different document must not open this one.
	foreign, _, err := signer.Generate("doc-2", "1000_other.pdf")
	require.NoError(t, err)
	_, err = svc.Download(context.Background(), doc.ID, foreign, claims)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	// A tampered token fails signature verification.
	_, err = svc.Download(context.Background(), doc.ID, "bad.token.value.sig", claims)
	require.Error(t, err)
}
