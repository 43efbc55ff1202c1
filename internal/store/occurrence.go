package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/recurrence"
)

// OccurrenceStore persists chore occurrences. Status changes are
// compare-and-swap: each Mark method only touches a row still in the
// expected status and reports whether it did.
type OccurrenceStore struct {
	db *sql.DB
}

func NewOccurrenceStore(db *sql.DB) *OccurrenceStore {
	return &OccurrenceStore{db: db}
}

const occurrenceCols = `id, recurring_chore_id, sequence_number, due_date, status, assigned_to, completed_by, completed_at, skipped_by, skipped_at, skip_reason, created_at`

func scanOccurrence(scanner interface{ Scan(...any) error }) (*model.Occurrence, error) {
	var o model.Occurrence
	var due, assigned string
	var completedBy, skippedBy sql.NullInt64
	var completedAt, skippedAt sql.NullTime
	var reason sql.NullString

	err := scanner.Scan(
		&o.ID, &o.RecurringChoreID, &o.SequenceNumber, &due, &o.Status, &assigned,
		&completedBy, &completedAt, &skippedBy, &skippedAt, &reason, &o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if o.DueDate, err = parseDate(due); err != nil {
		return nil, err
	}
	if o.AssignedTo, err = decodeIDs(assigned); err != nil {
		return nil, err
	}
	if completedBy.Valid {
		o.CompletedBy = &completedBy.Int64
	}
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		o.CompletedAt = &t
	}
	if skippedBy.Valid {
		o.SkippedBy = &skippedBy.Int64
	}
	if skippedAt.Valid {
		t := skippedAt.Time.UTC()
		o.SkippedAt = &t
	}
	if reason.Valid {
		o.SkipReason = &reason.String
	}
	return &o, nil
}

func (s *OccurrenceStore) queryOccurrences(ctx context.Context, query string, args ...any) ([]model.Occurrence, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var occs []model.Occurrence
	for rows.Next() {
		o, err := scanOccurrence(rows)
		if err != nil {
			return nil, fmt.Errorf("scan occurrence: %w", err)
		}
		occs = append(occs, *o)
	}
	return occs, rows.Err()
}

// InsertIfAbsent stores occ unless an occurrence already exists for its
// chore and due date. It returns the row that is stored either way.
func (s *OccurrenceStore) InsertIfAbsent(ctx context.Context, occ model.Occurrence) (*model.Occurrence, bool, error) {
	assigned, err := encodeIDs(occ.AssignedTo)
	if err != nil {
		return nil, false, err
	}
	due := formatDate(recurrence.Day(occ.DueDate))

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO chore_occurrences (recurring_chore_id, sequence_number, due_date, status, assigned_to)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (recurring_chore_id, due_date) DO NOTHING`,
		occ.RecurringChoreID, occ.SequenceNumber, due, string(model.StatusPending), assigned,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert occurrence: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+occurrenceCols+` FROM chore_occurrences WHERE recurring_chore_id = ? AND due_date = ?`,
		occ.RecurringChoreID, due,
	)
	stored, err := scanOccurrence(row)
	if err != nil {
		return nil, false, fmt.Errorf("read occurrence: %w", err)
	}
	return stored, n == 1, nil
}

func (s *OccurrenceStore) GetByID(ctx context.Context, id int64) (*model.Occurrence, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+occurrenceCols+` FROM chore_occurrences WHERE id = ?`, id)
	o, err := scanOccurrence(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get occurrence: %w", err)
	}
	return o, nil
}

// ListByChoreRange returns the chore's occurrences due in [from, to).
func (s *OccurrenceStore) ListByChoreRange(ctx context.Context, choreID int64, from, to time.Time) ([]model.Occurrence, error) {
	occs, err := s.queryOccurrences(ctx,
		`SELECT `+occurrenceCols+` FROM chore_occurrences
		 WHERE recurring_chore_id = ? AND due_date >= ? AND due_date < ?
		 ORDER BY due_date ASC`,
		choreID, formatDate(from), formatDate(to),
	)
	if err != nil {
		return nil, fmt.Errorf("list occurrences by chore: %w", err)
	}
	return occs, nil
}

// ListByAssignee returns every occurrence due in [from, to) that memberID
// is assigned to, across all chores.
func (s *OccurrenceStore) ListByAssignee(ctx context.Context, memberID int64, from, to time.Time) ([]model.Occurrence, error) {
	occs, err := s.queryOccurrences(ctx,
		`SELECT `+occurrenceCols+` FROM chore_occurrences
		 WHERE due_date >= ? AND due_date < ?
		   AND EXISTS (SELECT 1 FROM json_each(assigned_to) WHERE json_each.value = ?)
		 ORDER BY due_date ASC, recurring_chore_id ASC`,
		formatDate(from), formatDate(to), memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("list occurrences by assignee: %w", err)
	}
	return occs, nil
}

func (s *OccurrenceStore) CountSkippedBefore(ctx context.Context, choreID int64, before time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chore_occurrences WHERE recurring_chore_id = ? AND status = 'skipped' AND due_date < ?`,
		choreID, formatDate(before),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count skipped: %w", err)
	}
	return n, nil
}

func (s *OccurrenceStore) swap(ctx context.Context, op, query string, args ...any) (bool, error) {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *OccurrenceStore) MarkCompleted(ctx context.Context, id, by int64, at time.Time) (bool, error) {
	return s.swap(ctx, "mark completed",
		`UPDATE chore_occurrences SET status = 'completed', completed_by = ?, completed_at = ?
		 WHERE id = ? AND status = 'pending'`,
		by, at.UTC(), id,
	)
}

func (s *OccurrenceStore) MarkSkipped(ctx context.Context, id, by int64, at time.Time, reason *string) (bool, error) {
	var r sql.NullString
	if reason != nil {
		r = sql.NullString{String: *reason, Valid: true}
	}
	return s.swap(ctx, "mark skipped",
		`UPDATE chore_occurrences SET status = 'skipped', skipped_by = ?, skipped_at = ?, skip_reason = ?
		 WHERE id = ? AND status = 'pending'`,
		by, at.UTC(), r, id,
	)
}

// MarkPending moves an occurrence in status from back to pending and clears
// its completion and skip fields.
func (s *OccurrenceStore) MarkPending(ctx context.Context, id int64, from model.OccurrenceStatus) (bool, error) {
	return s.swap(ctx, "mark pending",
		`UPDATE chore_occurrences SET status = 'pending',
		   completed_by = NULL, completed_at = NULL, skipped_by = NULL, skipped_at = NULL, skip_reason = NULL
		 WHERE id = ? AND status = ?`,
		id, string(from),
	)
}
