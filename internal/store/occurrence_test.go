package store

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/chorewheel/internal/model"
)

func TestInsertIfAbsent(t *testing.T) {
	ctx := context.Background()
	s := setupTestDB(t)
	c := mustChore(t, s, 1, 2)

	first := mustInsert(t, s, c.ID, date(2024, 1, 1), 0, 1)
	if first.Status != model.StatusPending {
		t.Errorf("status = %q, want pending", first.Status)
	}
	if !first.DueDate.Equal(date(2024, 1, 1)) {
		t.Errorf("due = %v", first.DueDate)
	}
	if len(first.AssignedTo) != 1 || first.AssignedTo[0] != 1 {
		t.Errorf("assigned = %v", first.AssignedTo)
	}

	// A second insert for the same day returns the stored row untouched.
	again, created, err := s.occurrences.InsertIfAbsent(ctx, model.Occurrence{
		RecurringChoreID: c.ID,
		SequenceNumber:   7,
		DueDate:          time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC),
		AssignedTo:       []int64{2},
	})
	if err != nil {
		t.Fatalf("insert again: %v", err)
	}
	if created {
		t.Error("expected created = false")
	}
	if again.ID != first.ID || again.SequenceNumber != 0 || again.AssignedTo[0] != 1 {
		t.Errorf("got %+v, want original row", again)
	}
}

func TestInsertIfAbsentEmptyAssignees(t *testing.T) {
	s := setupTestDB(t)
	c := mustChore(t, s, 1)
	o := mustInsert(t, s, c.ID, date(2024, 1, 1), 0)
	if o.AssignedTo == nil || len(o.AssignedTo) != 0 {
		t.Errorf("assigned = %#v, want empty slice", o.AssignedTo)
	}
}

func TestListByChoreRangeHalfOpen(t *testing.T) {
	ctx := context.Background()
	s := setupTestDB(t)
	c := mustChore(t, s, 1)
	for i := range 5 {
		mustInsert(t, s, c.ID, date(2024, 1, 1+i), i, 1)
	}

	got, err := s.occurrences.ListByChoreRange(ctx, c.ID, date(2024, 1, 2), date(2024, 1, 4))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2, got %d", len(got))
	}
	if !got[0].DueDate.Equal(date(2024, 1, 2)) || !got[1].DueDate.Equal(date(2024, 1, 3)) {
		t.Errorf("dates = %v, %v", got[0].DueDate, got[1].DueDate)
	}
}

func TestListByAssignee(t *testing.T) {
	ctx := context.Background()
	s := setupTestDB(t)
	c := mustChore(t, s, 1, 2)
	other := mustChore(t, s, 2)
	mustInsert(t, s, c.ID, date(2024, 1, 1), 0, 1)
	mustInsert(t, s, c.ID, date(2024, 1, 2), 1, 2)
	mustInsert(t, s, other.ID, date(2024, 1, 2), 1, 1, 2)
	mustInsert(t, s, c.ID, date(2024, 1, 9), 8, 2)

	got, err := s.occurrences.ListByAssignee(ctx, 2, date(2024, 1, 1), date(2024, 1, 8))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2, got %d", len(got))
	}
	if got[0].RecurringChoreID != c.ID || got[1].RecurringChoreID != other.ID {
		t.Errorf("chores = %d, %d", got[0].RecurringChoreID, got[1].RecurringChoreID)
	}
}

func TestMarkCompletedCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s := setupTestDB(t)
	a := mustMember(t, s, "Alice", model.RoleChild)
	c := mustChore(t, s, a.ID)
	o := mustInsert(t, s, c.ID, date(2024, 1, 1), 0, a.ID)
	at := time.Date(2024, 1, 1, 19, 45, 0, 0, time.UTC)

	ok, err := s.occurrences.MarkCompleted(ctx, o.ID, a.ID, at)
	if err != nil || !ok {
		t.Fatalf("first complete: %v %v", ok, err)
	}
	ok, err = s.occurrences.MarkCompleted(ctx, o.ID, a.ID, at)
	if err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if ok {
		t.Error("second complete should not match")
	}
	ok, err = s.occurrences.MarkSkipped(ctx, o.ID, a.ID, at, nil)
	if err != nil || ok {
		t.Errorf("skip completed: %v %v", ok, err)
	}

	got, err := s.occurrences.GetByID(ctx, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.StatusCompleted {
		t.Errorf("status = %q", got.Status)
	}
	if got.CompletedBy == nil || *got.CompletedBy != a.ID {
		t.Errorf("completed_by = %v", got.CompletedBy)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(at) {
		t.Errorf("completed_at = %v, want %v", got.CompletedAt, at)
	}
}

func TestSkipAndReopen(t *testing.T) {
	ctx := context.Background()
	s := setupTestDB(t)
	a := mustMember(t, s, "Alice", model.RoleChild)
	c := mustChore(t, s, a.ID)
	o := mustInsert(t, s, c.ID, date(2024, 1, 1), 0, a.ID)
	reason := "away at camp"

	ok, err := s.occurrences.MarkSkipped(ctx, o.ID, a.ID, time.Now(), &reason)
	if err != nil || !ok {
		t.Fatalf("skip: %v %v", ok, err)
	}
	got, _ := s.occurrences.GetByID(ctx, o.ID)
	if got.Status != model.StatusSkipped || got.SkipReason == nil || *got.SkipReason != reason {
		t.Errorf("got %+v", got)
	}

	n, err := s.occurrences.CountSkippedBefore(ctx, c.ID, date(2024, 1, 2))
	if err != nil || n != 1 {
		t.Errorf("count skipped = %d, %v", n, err)
	}
	n, _ = s.occurrences.CountSkippedBefore(ctx, c.ID, date(2024, 1, 1))
	if n != 0 {
		t.Errorf("count skipped before own date = %d, want 0", n)
	}

	// Reopening from the wrong status does nothing.
	ok, err = s.occurrences.MarkPending(ctx, o.ID, model.StatusCompleted)
	if err != nil || ok {
		t.Errorf("reopen from completed: %v %v", ok, err)
	}

	ok, err = s.occurrences.MarkPending(ctx, o.ID, model.StatusSkipped)
	if err != nil || !ok {
		t.Fatalf("unskip: %v %v", ok, err)
	}
	got, _ = s.occurrences.GetByID(ctx, o.ID)
	if got.Status != model.StatusPending {
		t.Errorf("status = %q", got.Status)
	}
	if got.SkippedBy != nil || got.SkippedAt != nil || got.SkipReason != nil {
		t.Errorf("skip fields not cleared: %+v", got)
	}
	if len(got.AssignedTo) != 1 || got.AssignedTo[0] != a.ID {
		t.Errorf("assigned = %v", got.AssignedTo)
	}
}

func TestOccurrenceNotFound(t *testing.T) {
	s := setupTestDB(t)
	o, err := s.occurrences.GetByID(context.Background(), 12345)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if o != nil {
		t.Error("expected nil")
	}
}
