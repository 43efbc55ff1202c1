package store

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/chorewheel/internal/database"
	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/recurrence"
)

type testStores struct {
	chores      *ChoreStore
	occurrences *OccurrenceStore
	ledger      *LedgerStore
	members     *FamilyMemberStore
}

func setupTestDB(t *testing.T) testStores {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return testStores{
		chores:      NewChoreStore(db),
		occurrences: NewOccurrenceStore(db),
		ledger:      NewLedgerStore(db),
		members:     NewFamilyMemberStore(db),
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func mustMember(t *testing.T, s testStores, name string, role model.Role) *model.FamilyMember {
	t.Helper()
	m, err := s.members.Create(context.Background(), name, role, "#3B82F6", "")
	if err != nil {
		t.Fatalf("create member %s: %v", name, err)
	}
	return m
}

func mustChore(t *testing.T, s testStores, pool ...int64) *model.RecurringChore {
	t.Helper()
	c, err := s.chores.Create(context.Background(), model.RecurringChore{
		Title:          "Dishes",
		Points:         5,
		Rule:           recurrence.EveryDays(1),
		StartDate:      date(2024, 1, 1),
		AssignmentMode: model.AssignRoundRobin,
		RotationPool:   pool,
		Active:         true,
	})
	if err != nil {
		t.Fatalf("create chore: %v", err)
	}
	return c
}

func mustInsert(t *testing.T, s testStores, choreID int64, due time.Time, seq int, assigned ...int64) *model.Occurrence {
	t.Helper()
	o, created, err := s.occurrences.InsertIfAbsent(context.Background(), model.Occurrence{
		RecurringChoreID: choreID,
		SequenceNumber:   seq,
		DueDate:          due,
		Status:           model.StatusPending,
		AssignedTo:       assigned,
	})
	if err != nil {
		t.Fatalf("insert occurrence: %v", err)
	}
	if !created {
		t.Fatalf("occurrence %s already existed", due.Format(time.DateOnly))
	}
	return o
}
