package models

import "time"

// EventApprovalStatus tracks where an event sits in the approval workflow.
type EventApprovalStatus string

const (
	EventStatusPending   EventApprovalStatus = "PENDING"
	EventStatusApproved  EventApprovalStatus = "APPROVED"
	EventStatusRejected  EventApprovalStatus = "REJECTED"
	EventStatusCancelled EventApprovalStatus = "CANCELLED"
)

// eventTransitions is the single source of truth for allowed status changes.
// Terminal states have no exits.
var eventTransitions = map[EventApprovalStatus][]EventApprovalStatus{
	EventStatusPending: {EventStatusApproved, EventStatusRejected, EventStatusCancelled},
}

// CanTransition reports whether moving from one approval status to another is allowed.
func CanTransition(from, to EventApprovalStatus) bool {
	for _, allowed := range eventTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// EventTimeframe classifies events against the current time.
type EventTimeframe string

const (
	EventTimeframeUpcoming  EventTimeframe = "UPCOMING"
	EventTimeframeActive    EventTimeframe = "ACTIVE"
	EventTimeframeCompleted EventTimeframe = "COMPLETED"
)

// Event represents a school event going through the approval workflow.
type Event struct {
	ID               string              `db:"id" json:"id"`
	Title            string              `db:"title" json:"title"`
	Description      string              `db:"description" json:"description"`
	StartTime        time.Time           `db:"start_time" json:"startTime"`
	EndTime          time.Time           `db:"end_time" json:"endTime"`
	ClassID          *string             `db:"class_id" json:"classId,omitempty"`
	ApprovalStatus   EventApprovalStatus `db:"approval_status" json:"approvalStatus"`
	ApprovedBy       *string             `db:"approved_by" json:"approvedBy,omitempty"`
	ApprovalDate     *time.Time          `db:"approval_date" json:"approvalDate,omitempty"`
	ApprovalComments *string             `db:"approval_comments" json:"approvalComments,omitempty"`
	RejectionReason  *string             `db:"rejection_reason" json:"rejectionReason,omitempty"`
	CreatedBy        string              `db:"created_by" json:"createdBy"`
	CreatedAt        time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time           `db:"updated_at" json:"updatedAt"`
}

// Timeframe buckets the event relative to now.
func (e *Event) Timeframe(now time.Time) EventTimeframe {
	switch {
	case e.StartTime.After(now):
		return EventTimeframeUpcoming
	case e.EndTime.Before(now):
		return EventTimeframeCompleted
	default:
		return EventTimeframeActive
	}
}

// EventFilter narrows event listing queries.
type EventFilter struct {
	Status    EventApprovalStatus
	ClassID   string
	CreatedBy string
	Timeframe EventTimeframe
	Limit     int
	Offset    int
}

// EventStatusCount pairs an approval status with its event count.
type EventStatusCount struct {
	Status EventApprovalStatus `db:"approval_status" json:"status"`
	Count  int                 `db:"count" json:"count"`
}

// EventClassCount groups event counts by class.
type EventClassCount struct {
	ClassID   *string `db:"class_id" json:"classId,omitempty"`
	ClassName *string `db:"class_name" json:"className,omitempty"`
	Count     int     `db:"count" json:"count"`
}

// EventSummaryRow is an event joined with its document count, used
// when deriving summary report content.
type EventSummaryRow struct {
	ID            string    `db:"id" json:"id"`
	Title         string    `db:"title" json:"title"`
	StartTime     time.Time `db:"start_time" json:"startTime"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	DocumentCount int       `db:"document_count" json:"documentCount"`
}
