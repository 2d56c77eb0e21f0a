package dto

import "github.com/noah-isme/sma-event-api/internal/models"

// PrincipalDashboardResponse captures the aggregated principal dashboard payload.
type PrincipalDashboardResponse struct {
	TotalEvents     int                      `json:"totalEvents"`
	PendingEvents   int                      `json:"pendingEvents"`
	ApprovedEvents  int                      `json:"approvedEvents"`
	RejectedEvents  int                      `json:"rejectedEvents"`
	CancelledEvents int                      `json:"cancelledEvents"`
	ApprovalRate    float64                  `json:"approvalRate"`
	RecentEvents    []models.Event           `json:"recentEvents"`
	EventsByClass   []models.EventClassCount `json:"eventsByClass"`
}

// HODTimeframeCounts buckets department events relative to now.
type HODTimeframeCounts struct {
	Upcoming  int `json:"upcoming"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
}

// HODAttendanceCounts summarises attendance rows for the department's class.
type HODAttendanceCounts struct {
	Present int `json:"present"`
	Absent  int `json:"absent"`
}

// HODDashboardResponse captures department-scoped statistics.
type HODDashboardResponse struct {
	ClassID        string                    `json:"classId"`
	EventsByStatus []models.EventStatusCount `json:"eventsByStatus"`
	Timeframes     HODTimeframeCounts        `json:"timeframes"`
	DraftReports   int                       `json:"draftReports"`
	Documents      models.DocumentStats      `json:"documents"`
	Attendance     HODAttendanceCounts       `json:"attendance"`
}

// OverviewLink is one action available to a role.
type OverviewLink struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

// OverviewResponse projects the actions and statistics visible to a role.
type OverviewResponse struct {
	Role           models.UserRole           `json:"role"`
	Actions        []OverviewLink            `json:"actions"`
	EventsByStatus []models.EventStatusCount `json:"eventsByStatus,omitempty"`
}
