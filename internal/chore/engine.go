package chore

import (
	"context"
	"time"

	"github.com/dukerupert/chorewheel/internal/model"
)

// Events published through Notifier.
const (
	EventCreated   = "created"
	EventCompleted = "completed"
	EventSkipped   = "skipped"
	EventUnskipped = "unskipped"
)

// ChoreSource supplies recurring chore definitions. GetByID returns
// (nil, nil) for an unknown id.
type ChoreSource interface {
	GetByID(ctx context.Context, id int64) (*model.RecurringChore, error)
	List(ctx context.Context) ([]model.RecurringChore, error)
}

// OccurrenceStore persists occurrences. InsertIfAbsent must be atomic on
// (recurring chore, due date) and returns whichever row won. The Mark
// methods are compare-and-swap on status and report whether a row changed.
type OccurrenceStore interface {
	InsertIfAbsent(ctx context.Context, occ model.Occurrence) (stored *model.Occurrence, created bool, err error)
	ListByChoreRange(ctx context.Context, choreID int64, from, to time.Time) ([]model.Occurrence, error)
	CountSkippedBefore(ctx context.Context, choreID int64, before time.Time) (int, error)
	GetByID(ctx context.Context, id int64) (*model.Occurrence, error)
	MarkCompleted(ctx context.Context, id, by int64, at time.Time) (bool, error)
	MarkSkipped(ctx context.Context, id, by int64, at time.Time, reason *string) (bool, error)
	MarkPending(ctx context.Context, id int64, from model.OccurrenceStatus) (bool, error)
}

// Ledger receives point awards. An award is keyed by occurrence, so a
// repeated call for the same occurrence must not count twice.
type Ledger interface {
	AwardPoints(ctx context.Context, memberID int64, amount int, occurrenceID int64) error
}

// Notifier is told about every occurrence that was created or changed state.
type Notifier interface {
	OccurrenceChanged(event string, occ model.Occurrence)
}

// Recorder counts engine activity.
type Recorder interface {
	OccurrenceCreated()
	Transition(event string)
	PointsAwarded(points int)
}

// Options configures the materializer and the lifecycle manager.
type Options struct {
	// SkipConsumesTurn keeps a skipped occurrence's rotation slot used.
	// When false, a newly created occurrence's slot is its sequence number
	// minus the skipped occurrences before it at creation time.
	SkipConsumesTurn bool
	// Workers bounds how many definitions Generate materializes at once.
	Workers int
	// Now stamps completed and skipped times.
	Now      func() time.Time
	Notifier Notifier
	Recorder Recorder
}

// DefaultOptions returns Options with skips consuming their turn.
func DefaultOptions() Options {
	return Options{SkipConsumesTurn: true, Workers: 4}
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}

func (o Options) notify(event string, occ model.Occurrence) {
	if o.Notifier != nil {
		o.Notifier.OccurrenceChanged(event, occ)
	}
}

func (o Options) recorder() Recorder {
	if o.Recorder != nil {
		return o.Recorder
	}
	return nopRecorder{}
}

type nopRecorder struct{}

func (nopRecorder) OccurrenceCreated() {}
func (nopRecorder) Transition(string)  {}
func (nopRecorder) PointsAwarded(int)  {}
