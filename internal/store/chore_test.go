package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/recurrence"
)

func TestCategorySeedData(t *testing.T) {
	s := setupTestDB(t)

	cats, err := s.chores.ListCategories(context.Background())
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	expected := []string{"Kitchen", "Bathroom", "Bedroom", "Yard", "General"}
	if len(cats) != len(expected) {
		t.Fatalf("expected %d seed categories, got %d", len(expected), len(cats))
	}
	for i, name := range expected {
		if cats[i].Name != name {
			t.Errorf("category[%d].Name = %q, want %q", i, cats[i].Name, name)
		}
	}

	yard, err := s.chores.GetCategoryByName(context.Background(), "Yard")
	if err != nil || yard == nil {
		t.Fatalf("get category: %v %v", yard, err)
	}
	missing, err := s.chores.GetCategoryByName(context.Background(), "Garage")
	if err != nil || missing != nil {
		t.Errorf("expected nil for unknown category, got %v %v", missing, err)
	}
}

func TestRecurringChoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := setupTestDB(t)
	a := mustMember(t, s, "Alice", model.RoleChild)
	b := mustMember(t, s, "Bob", model.RoleChild)
	catID := int64(1)

	rule, err := recurrence.Parse("FREQ=MONTHLY;INTERVAL=2;BYDAY=2TU")
	if err != nil {
		t.Fatalf("parse rule: %v", err)
	}

	// Create
	c, err := s.chores.Create(ctx, model.RecurringChore{
		Title:          "Clean gutters",
		Description:    "Both sides",
		Points:         20,
		CategoryID:     &catID,
		Rule:           rule,
		StartDate:      time.Date(2024, 3, 12, 15, 0, 0, 0, time.UTC),
		AssignmentMode: model.AssignMixed,
		FixedAssignees: []int64{a.ID},
		RotationPool:   []int64{a.ID, b.ID},
		Active:         true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Title != "Clean gutters" || c.Points != 20 {
		t.Errorf("got %q/%d", c.Title, c.Points)
	}
	if !c.Rule.Equal(rule) {
		t.Errorf("rule = %s, want %s", c.Rule, rule)
	}
	if !c.StartDate.Equal(date(2024, 3, 12)) {
		t.Errorf("start = %v, want 2024-03-12", c.StartDate)
	}
	if c.CategoryID == nil || *c.CategoryID != catID {
		t.Errorf("category = %v, want %d", c.CategoryID, catID)
	}
	if len(c.RotationPool) != 2 || c.RotationPool[1] != b.ID {
		t.Errorf("pool = %v", c.RotationPool)
	}
	if !c.Active {
		t.Error("expected active")
	}

	// Update
	c.Title = "Clean gutters and drains"
	c.RotationPool = []int64{b.ID, a.ID}
	c.CategoryID = nil
	updated, err := s.chores.Update(ctx, *c)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Clean gutters and drains" {
		t.Errorf("title = %q", updated.Title)
	}
	if updated.RotationPool[0] != b.ID {
		t.Errorf("pool = %v, want %d first", updated.RotationPool, b.ID)
	}
	if updated.CategoryID != nil {
		t.Errorf("category = %v, want nil", *updated.CategoryID)
	}

	// Deactivate
	deactivated, err := s.chores.Deactivate(ctx, c.ID)
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if deactivated.Active {
		t.Error("expected inactive")
	}

	// List
	list, err := s.chores.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 chore, got %d", len(list))
	}

	// Delete without occurrences removes the row.
	hard, err := s.chores.Delete(ctx, c.ID, false, date(2024, 1, 1))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !hard {
		t.Error("expected hard delete")
	}
	got, err := s.chores.GetByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestRecurringChoreNotFound(t *testing.T) {
	s := setupTestDB(t)
	c, err := s.chores.GetByID(context.Background(), 999)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if c != nil {
		t.Error("expected nil for nonexistent chore")
	}
}

func TestRecurringChoreCorruptRule(t *testing.T) {
	ctx := context.Background()
	s := setupTestDB(t)
	c := mustChore(t, s, 1)

	if _, err := s.chores.db.ExecContext(ctx, `UPDATE recurring_chores SET recurrence_rule = 'FREQ=HOURLY' WHERE id = ?`, c.ID); err != nil {
		t.Fatalf("corrupt rule: %v", err)
	}
	_, err := s.chores.GetByID(ctx, c.ID)
	if !errors.Is(err, recurrence.ErrInvalidRule) {
		t.Errorf("expected ErrInvalidRule, got %v", err)
	}
}

func TestDeleteCascadeFuture(t *testing.T) {
	ctx := context.Background()
	s := setupTestDB(t)
	a := mustMember(t, s, "Alice", model.RoleChild)
	c := mustChore(t, s, a.ID)

	past := mustInsert(t, s, c.ID, date(2024, 1, 1), 0, a.ID)
	mustInsert(t, s, c.ID, date(2024, 1, 2), 1, a.ID)
	mustInsert(t, s, c.ID, date(2024, 1, 3), 2, a.ID)
	doneFuture := mustInsert(t, s, c.ID, date(2024, 1, 4), 3, a.ID)
	if ok, err := s.occurrences.MarkCompleted(ctx, doneFuture.ID, a.ID, time.Now()); err != nil || !ok {
		t.Fatalf("mark completed: %v %v", ok, err)
	}

	hard, err := s.chores.Delete(ctx, c.ID, true, date(2024, 1, 2))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if hard {
		t.Error("expected soft delete while occurrences remain")
	}

	left, err := s.occurrences.ListByChoreRange(ctx, c.ID, date(2024, 1, 1), date(2024, 2, 1))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(left) != 2 {
		t.Fatalf("expected 2 remaining occurrences, got %d", len(left))
	}
	if left[0].ID != past.ID || left[1].ID != doneFuture.ID {
		t.Errorf("remaining = %d,%d want %d,%d", left[0].ID, left[1].ID, past.ID, doneFuture.ID)
	}

	got, err := s.chores.GetByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Active {
		t.Errorf("expected inactive chore, got %+v", got)
	}
}

func TestDeleteWithoutCascadeKeepsOccurrences(t *testing.T) {
	ctx := context.Background()
	s := setupTestDB(t)
	c := mustChore(t, s, 1)
	mustInsert(t, s, c.ID, date(2030, 1, 1), 0, 1)

	hard, err := s.chores.Delete(ctx, c.ID, false, date(2024, 1, 1))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if hard {
		t.Error("expected soft delete")
	}
	left, err := s.occurrences.ListByChoreRange(ctx, c.ID, date(2030, 1, 1), date(2030, 1, 2))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(left) != 1 {
		t.Errorf("expected future occurrence kept, got %d", len(left))
	}
}
