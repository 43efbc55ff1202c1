package chore

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/chorewheel/internal/assignment"
	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/recurrence"
)

// Materializer turns recurring chore definitions into stored occurrences.
type Materializer struct {
	chores      ChoreSource
	occurrences OccurrenceStore
	opts        Options
	logger      *slog.Logger
}

func NewMaterializer(chores ChoreSource, occurrences OccurrenceStore, opts Options, logger *slog.Logger) *Materializer {
	return &Materializer{
		chores:      chores,
		occurrences: occurrences,
		opts:        opts,
		logger:      logger,
	}
}

// EnsureOccurrences returns every occurrence of def due in [from, to),
// creating the ones that do not exist yet. Existing occurrences are
// returned unchanged. Inactive definitions get nothing new.
//
// Each due date is created independently. When some fail, the ones that
// succeeded are still returned along with the joined errors.
func (m *Materializer) EnsureOccurrences(ctx context.Context, def model.RecurringChore, from, to time.Time) ([]model.Occurrence, error) {
	from, to = recurrence.Day(from), recurrence.Day(to)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: window ends before it starts", ErrValidation)
	}

	existing, err := m.occurrences.ListByChoreRange(ctx, def.ID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}
	if !def.Active {
		return existing, nil
	}

	have := make(map[time.Time]bool, len(existing))
	for _, o := range existing {
		have[recurrence.Day(o.DueDate)] = true
	}

	out := existing
	var errs []error
	for _, due := range recurrence.DueDates(def.Rule, def.StartDate, from, to) {
		if have[due] {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		occ, err := m.create(ctx, def, due)
		if err != nil {
			errs = append(errs, fmt.Errorf("materialize %s: %w", due.Format(time.DateOnly), err))
			continue
		}
		out = append(out, *occ)
	}

	slices.SortFunc(out, func(a, b model.Occurrence) int { return a.DueDate.Compare(b.DueDate) })
	return out, errors.Join(errs...)
}

func (m *Materializer) create(ctx context.Context, def model.RecurringChore, due time.Time) (*model.Occurrence, error) {
	seq := recurrence.CountBefore(def.Rule, def.StartDate, due)

	slot := seq
	if !m.opts.SkipConsumesTurn {
		skipped, err := m.occurrences.CountSkippedBefore(ctx, def.ID, due)
		if err != nil {
			return nil, fmt.Errorf("count skipped: %w", err)
		}
		slot -= skipped
	}

	occ, created, err := m.occurrences.InsertIfAbsent(ctx, model.Occurrence{
		RecurringChoreID: def.ID,
		SequenceNumber:   seq,
		DueDate:          due,
		Status:           model.StatusPending,
		AssignedTo:       assignment.Resolve(def.AssignmentMode, def.FixedAssignees, def.RotationPool, slot),
	})
	if err != nil {
		return nil, err
	}
	if created {
		m.logger.Debug("occurrence created", "chore_id", def.ID, "due", due.Format(time.DateOnly), "seq", seq, "assigned", occ.AssignedTo)
		m.opts.recorder().OccurrenceCreated()
		m.opts.notify(EventCreated, *occ)
	}
	return occ, nil
}

// Generate materializes [from, to) for one definition, or for every
// definition when choreID is nil. Definitions are processed concurrently
// and independently; a failing definition does not stop the others.
func (m *Materializer) Generate(ctx context.Context, choreID *int64, from, to time.Time) ([]model.Occurrence, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: window ends before it starts", ErrValidation)
	}
	if choreID != nil {
		def, err := m.chores.GetByID(ctx, *choreID)
		if err != nil {
			return nil, fmt.Errorf("get recurring chore: %w", err)
		}
		if def == nil {
			return nil, fmt.Errorf("%w: recurring chore %d", ErrNotFound, *choreID)
		}
		return m.EnsureOccurrences(ctx, *def, from, to)
	}

	defs, err := m.chores.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list recurring chores: %w", err)
	}

	results := make([][]model.Occurrence, len(defs))
	errs := make([]error, len(defs))

	var g errgroup.Group
	g.SetLimit(max(m.opts.Workers, 1))
	for i, def := range defs {
		g.Go(func() error {
			occs, err := m.EnsureOccurrences(ctx, def, from, to)
			results[i] = occs
			if err != nil {
				errs[i] = fmt.Errorf("recurring chore %d: %w", def.ID, err)
			}
			return nil
		})
	}
	g.Wait()

	var all []model.Occurrence
	for _, occs := range results {
		all = append(all, occs...)
	}
	slices.SortStableFunc(all, func(a, b model.Occurrence) int {
		if c := a.DueDate.Compare(b.DueDate); c != 0 {
			return c
		}
		return cmp.Compare(a.RecurringChoreID, b.RecurringChoreID)
	})

	err = errors.Join(errs...)
	if err != nil {
		m.logger.Warn("generate partially failed", "from", from.Format(time.DateOnly), "to", to.Format(time.DateOnly), "error", err)
	}
	return all, err
}
