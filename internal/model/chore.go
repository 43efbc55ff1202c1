package model

import (
	"time"

	"github.com/dukerupert/chorewheel/internal/recurrence"
)

type ChoreCategory struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AssignmentMode string

const (
	AssignFixed      AssignmentMode = "fixed"
	AssignRoundRobin AssignmentMode = "round_robin"
	AssignMixed      AssignmentMode = "mixed"
)

// RecurringChore is the definition occurrences are materialized from.
// StartDate is a calendar date held as midnight UTC.
type RecurringChore struct {
	ID             int64           `json:"id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Points         int             `json:"points"`
	CategoryID     *int64          `json:"category_id"`
	Rule           recurrence.Rule `json:"recurrence_rule"`
	StartDate      time.Time       `json:"start_date"`
	AssignmentMode AssignmentMode  `json:"assignment_mode"`
	FixedAssignees []int64         `json:"fixed_assignee_ids"`
	RotationPool   []int64         `json:"round_robin_pool"`
	Active         bool            `json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type OccurrenceStatus string

const (
	StatusPending   OccurrenceStatus = "pending"
	StatusCompleted OccurrenceStatus = "completed"
	StatusSkipped   OccurrenceStatus = "skipped"
)

// Occurrence is one dated instance of a recurring chore. SequenceNumber and
// AssignedTo are fixed when the row is first created.
type Occurrence struct {
	ID               int64            `json:"id"`
	RecurringChoreID int64            `json:"recurring_chore_id"`
	SequenceNumber   int              `json:"sequence_number"`
	DueDate          time.Time        `json:"due_date"`
	Status           OccurrenceStatus `json:"status"`
	AssignedTo       []int64          `json:"assigned_user_ids"`
	CompletedBy      *int64           `json:"completed_by"`
	CompletedAt      *time.Time       `json:"completed_at"`
	SkippedBy        *int64           `json:"skipped_by"`
	SkippedAt        *time.Time       `json:"skipped_at"`
	SkipReason       *string          `json:"skip_reason"`
	CreatedAt        time.Time        `json:"created_at"`
}

// IsAssigned reports whether memberID is one of the occurrence's assignees.
func (o Occurrence) IsAssigned(memberID int64) bool {
	for _, id := range o.AssignedTo {
		if id == memberID {
			return true
		}
	}
	return false
}

type PointAward struct {
	ID           int64     `json:"id"`
	MemberID     int64     `json:"member_id"`
	OccurrenceID int64     `json:"occurrence_id"`
	Points       int       `json:"points"`
	AwardedAt    time.Time `json:"awarded_at"`
}

type PointBalance struct {
	MemberID    int64  `json:"member_id"`
	MemberName  string `json:"member_name"`
	TotalEarned int    `json:"total_earned"`
}
