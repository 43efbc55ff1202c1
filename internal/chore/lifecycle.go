package chore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dukerupert/chorewheel/internal/auth"
	"github.com/dukerupert/chorewheel/internal/model"
)

// Lifecycle applies complete, skip and unskip to single occurrences.
//
// Every transition is a compare-and-swap on the stored status, so of two
// concurrent completions exactly one wins and only the winner awards points.
type Lifecycle struct {
	chores      ChoreSource
	occurrences OccurrenceStore
	ledger      Ledger
	policy      auth.Policy
	opts        Options
	logger      *slog.Logger
}

func NewLifecycle(chores ChoreSource, occurrences OccurrenceStore, ledger Ledger, policy auth.Policy, opts Options, logger *slog.Logger) *Lifecycle {
	if policy == nil {
		policy = auth.AssigneeOrParent
	}
	return &Lifecycle{
		chores:      chores,
		occurrences: occurrences,
		ledger:      ledger,
		policy:      policy,
		opts:        opts,
		logger:      logger,
	}
}

// Complete marks a pending occurrence completed by actor and awards the
// definition's points. If the award fails the occurrence goes back to
// pending and the error is returned.
func (l *Lifecycle) Complete(ctx context.Context, occurrenceID int64, actor auth.Actor) (*model.Occurrence, error) {
	occ, err := l.load(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	if err := l.checkPendingAndAllowed(occ, actor, "complete"); err != nil {
		return nil, err
	}

	def, err := l.chores.GetByID(ctx, occ.RecurringChoreID)
	if err != nil {
		return nil, fmt.Errorf("get recurring chore: %w", err)
	}
	if def == nil {
		return nil, fmt.Errorf("%w: recurring chore %d", ErrNotFound, occ.RecurringChoreID)
	}

	ok, err := l.occurrences.MarkCompleted(ctx, occurrenceID, actor.MemberID, l.opts.now())
	if err != nil {
		return nil, fmt.Errorf("mark completed: %w", err)
	}
	if !ok {
		return nil, l.lostRace(ctx, occurrenceID, "complete")
	}

	recipient := PointsRecipient(actor, occ.AssignedTo)
	if err := l.ledger.AwardPoints(ctx, recipient, def.Points, occurrenceID); err != nil {
		if _, rerr := l.occurrences.MarkPending(ctx, occurrenceID, model.StatusCompleted); rerr != nil {
			l.logger.Error("revert completion", "occurrence_id", occurrenceID, "error", rerr)
			return nil, errors.Join(fmt.Errorf("award points: %w", err), fmt.Errorf("revert completion: %w", rerr))
		}
		return nil, fmt.Errorf("award points: %w", err)
	}
	l.opts.recorder().PointsAwarded(def.Points)

	return l.finish(ctx, occurrenceID, EventCompleted, "member_id", actor.MemberID, "points", def.Points, "recipient", recipient)
}

// Skip marks a pending occurrence skipped. reason may be empty.
func (l *Lifecycle) Skip(ctx context.Context, occurrenceID int64, actor auth.Actor, reason string) (*model.Occurrence, error) {
	occ, err := l.load(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	if err := l.checkPendingAndAllowed(occ, actor, "skip"); err != nil {
		return nil, err
	}

	var r *string
	if reason != "" {
		r = &reason
	}
	ok, err := l.occurrences.MarkSkipped(ctx, occurrenceID, actor.MemberID, l.opts.now(), r)
	if err != nil {
		return nil, fmt.Errorf("mark skipped: %w", err)
	}
	if !ok {
		return nil, l.lostRace(ctx, occurrenceID, "skip")
	}

	return l.finish(ctx, occurrenceID, EventSkipped, "member_id", actor.MemberID)
}

// Unskip returns a skipped occurrence to pending. Its assignees are kept.
func (l *Lifecycle) Unskip(ctx context.Context, occurrenceID int64) (*model.Occurrence, error) {
	occ, err := l.load(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	if occ.Status != model.StatusSkipped {
		return nil, fmt.Errorf("%w: cannot unskip a %s occurrence", ErrInvalidState, occ.Status)
	}

	ok, err := l.occurrences.MarkPending(ctx, occurrenceID, model.StatusSkipped)
	if err != nil {
		return nil, fmt.Errorf("mark pending: %w", err)
	}
	if !ok {
		return nil, l.lostRace(ctx, occurrenceID, "unskip")
	}

	return l.finish(ctx, occurrenceID, EventUnskipped)
}

// PointsRecipient is the actor when they are assigned, otherwise the
// lowest assigned id. A parent completing for a child credits the child.
func PointsRecipient(actor auth.Actor, assigned []int64) int64 {
	if len(assigned) == 0 || slices.Contains(assigned, actor.MemberID) {
		return actor.MemberID
	}
	return slices.Min(assigned)
}

func (l *Lifecycle) load(ctx context.Context, id int64) (*model.Occurrence, error) {
	occ, err := l.occurrences.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get occurrence: %w", err)
	}
	if occ == nil {
		return nil, fmt.Errorf("%w: occurrence %d", ErrNotFound, id)
	}
	return occ, nil
}

func (l *Lifecycle) checkPendingAndAllowed(occ *model.Occurrence, actor auth.Actor, verb string) error {
	if occ.Status != model.StatusPending {
		return fmt.Errorf("%w: cannot %s a %s occurrence", ErrInvalidState, verb, occ.Status)
	}
	if !l.policy.CanAct(actor, occ.AssignedTo) {
		return fmt.Errorf("%w: member %d may not %s occurrence %d", ErrUnauthorized, actor.MemberID, verb, occ.ID)
	}
	return nil
}

// lostRace builds the error for a compare-and-swap that matched no row.
func (l *Lifecycle) lostRace(ctx context.Context, id int64, verb string) error {
	occ, err := l.load(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: cannot %s a %s occurrence", ErrInvalidState, verb, occ.Status)
}

func (l *Lifecycle) finish(ctx context.Context, id int64, event string, attrs ...any) (*model.Occurrence, error) {
	occ, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}
	l.logger.Info("occurrence "+event, append([]any{"occurrence_id", id, "chore_id", occ.RecurringChoreID}, attrs...)...)
	l.opts.recorder().Transition(event)
	l.opts.notify(event, *occ)
	return occ, nil
}
