package chore

import (
	"time"

	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/recurrence"
)

// IsOverdue reports whether occ is still pending after its due date. today
// is supplied by the caller; only its calendar date is used.
func IsOverdue(occ model.Occurrence, today time.Time) bool {
	return occ.Status == model.StatusPending && occ.DueDate.Before(recurrence.Day(today))
}

// WithStatus pairs an occurrence with its overdue flag for display.
type WithStatus struct {
	model.Occurrence
	Overdue bool `json:"overdue"`
}

// Annotate flags every overdue occurrence in occs relative to today.
func Annotate(occs []model.Occurrence, today time.Time) []WithStatus {
	out := make([]WithStatus, len(occs))
	for i, o := range occs {
		out[i] = WithStatus{Occurrence: o, Overdue: IsOverdue(o, today)}
	}
	return out
}
