package dto

// CreateReportRequest is the payload for creating an event report.
// Content is optional; derivable report types ignore it and build
// their content from live data.
type CreateReportRequest struct {
	Title             string `json:"title" validate:"required"`
	Content           string `json:"content,omitempty"`
	ReportType        string `json:"reportType" validate:"required"`
	Status            string `json:"status,omitempty"`
	TotalParticipants *int   `json:"totalParticipants,omitempty"`
	EventID           string `json:"eventId" validate:"required"`
}

// UpdateReportRequest carries partial report updates. Changing a derivable
// report re-runs content derivation against current data.
type UpdateReportRequest struct {
	Title             *string `json:"title,omitempty"`
	Content           *string `json:"content,omitempty"`
	ReportType        *string `json:"reportType,omitempty"`
	Status            *string `json:"status,omitempty"`
	TotalParticipants *int    `json:"totalParticipants,omitempty"`
}

// ReportQuery captures list filters from query parameters.
type ReportQuery struct {
	EventID    string `form:"eventId"`
	ReportType string `form:"reportType"`
	Status     string `form:"status"`
	Limit      int    `form:"limit"`
	Offset     int    `form:"offset"`
}
