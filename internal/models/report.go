package models

import "time"

// ReportType classifies event reports.
type ReportType string

const (
	ReportTypeAttendance ReportType = "ATTENDANCE"
	ReportTypeBudget     ReportType = "BUDGET"
	ReportTypeFeedback   ReportType = "FEEDBACK"
	ReportTypeIncident   ReportType = "INCIDENT"
	ReportTypeSummary    ReportType = "SUMMARY"
	ReportTypeLogistics  ReportType = "LOGISTICS"
)

// KnownReportTypes lists every accepted report type.
var KnownReportTypes = []ReportType{
	ReportTypeAttendance,
	ReportTypeBudget,
	ReportTypeFeedback,
	ReportTypeIncident,
	ReportTypeSummary,
	ReportTypeLogistics,
}

// ReportStatus tracks the review state of a report.
type ReportStatus string

const (
	ReportStatusDraft     ReportStatus = "DRAFT"
	ReportStatusSubmitted ReportStatus = "SUBMITTED"
	ReportStatusApproved  ReportStatus = "APPROVED"
	ReportStatusRejected  ReportStatus = "REJECTED"
)

// EventReport is a report attached to an event. Content for ATTENDANCE and
// SUMMARY reports is derived from live data at write time; GeneratedAt records
// when the derivation ran.
type EventReport struct {
	ID                string       `db:"id" json:"id"`
	Title             string       `db:"title" json:"title"`
	Content           string       `db:"content" json:"content"`
	ReportType        ReportType   `db:"report_type" json:"reportType"`
	Status            ReportStatus `db:"status" json:"status"`
	TotalParticipants *int         `db:"total_participants" json:"totalParticipants,omitempty"`
	EventID           string       `db:"event_id" json:"eventId"`
	CreatedBy         string       `db:"created_by" json:"createdBy"`
	GeneratedAt       *time.Time   `db:"generated_at" json:"generatedAt,omitempty"`
	CreatedAt         time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time    `db:"updated_at" json:"updatedAt"`
}

// EventReportFilter narrows report listing queries.
type EventReportFilter struct {
	EventID    string
	ReportType ReportType
	Status     ReportStatus
	CreatedBy  string
	Limit      int
	Offset     int
}

// ReportStatusCount pairs a report status with its count.
type ReportStatusCount struct {
	Status ReportStatus `db:"status" json:"status"`
	Count  int          `db:"count" json:"count"`
}
