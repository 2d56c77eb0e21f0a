package models

import (
	"context"
	"time"
)

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin           = "LOGIN"
	AuditActionEventSubmit     = "EVENT_SUBMIT"
	AuditActionEventReview     = "EVENT_REVIEW"
	AuditActionEventCancel     = "EVENT_CANCEL"
	AuditActionEventUpdate     = "EVENT_UPDATE"
	AuditActionEventDelete     = "EVENT_DELETE"
	AuditActionDocumentUpload  = "DOCUMENT_UPLOAD"
	AuditActionDocumentReplace = "DOCUMENT_REPLACE"
	AuditActionDocumentDelete  = "DOCUMENT_DELETE"
	AuditActionReportCreate    = "REPORT_CREATE"
	AuditActionReportUpdate    = "REPORT_UPDATE"
	AuditActionReportDelete    = "REPORT_DELETE"
)

// RequestMeta carries client details captured at the HTTP edge so audit
// rows record who actually made the call.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

type requestMetaKey struct{}

// WithRequestMeta stores client details on the context.
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext returns the client details captured for this request,
// if any.
func RequestMetaFromContext(ctx context.Context) (RequestMeta, bool) {
	meta, ok := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta, ok
}

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
