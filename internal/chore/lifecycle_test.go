package chore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/chorewheel/internal/auth"
	"github.com/dukerupert/chorewheel/internal/model"
)

var (
	parent   = auth.Actor{MemberID: 9, Role: model.RoleParent}
	aliceKid = auth.Actor{MemberID: alice, Role: model.RoleChild}
	bobKid   = auth.Actor{MemberID: bob, Role: model.RoleChild}
)

// seed materializes Jan 1-3 of a daily alice/bob rotation.
func seed(t *testing.T, opts Options) (*harness, []model.Occurrence) {
	t.Helper()
	def := dailyRoundRobin(1, alice, bob)
	h := newHarness(opts, def)
	occs, err := h.mat.EnsureOccurrences(context.Background(), def, date(2024, 1, 1), date(2024, 1, 4))
	require.NoError(t, err)
	require.Len(t, occs, 3)
	return h, occs
}

func TestInvalidTransitions(t *testing.T) {
	ctx := context.Background()
	h, occs := seed(t, DefaultOptions())
	jan1, jan2, jan3 := occs[0].ID, occs[1].ID, occs[2].ID

	_, err := h.life.Complete(ctx, jan1, aliceKid)
	require.NoError(t, err)
	_, err = h.life.Skip(ctx, jan2, bobKid, "")
	require.NoError(t, err)

	tests := []struct {
		name string
		call func() (*model.Occurrence, error)
	}{
		{"complete completed", func() (*model.Occurrence, error) { return h.life.Complete(ctx, jan1, parent) }},
		{"skip completed", func() (*model.Occurrence, error) { return h.life.Skip(ctx, jan1, parent, "") }},
		{"unskip completed", func() (*model.Occurrence, error) { return h.life.Unskip(ctx, jan1) }},
		{"complete skipped", func() (*model.Occurrence, error) { return h.life.Complete(ctx, jan2, parent) }},
		{"skip skipped", func() (*model.Occurrence, error) { return h.life.Skip(ctx, jan2, parent, "") }},
		{"unskip pending", func() (*model.Occurrence, error) { return h.life.Unskip(ctx, jan3) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := snapshot(t, h)
			occ, err := tt.call()
			assert.ErrorIs(t, err, ErrInvalidState)
			assert.Nil(t, occ)
			assert.Equal(t, before, snapshot(t, h))
		})
	}
	assert.Equal(t, 1, h.ledger.calls())
}

func snapshot(t *testing.T, h *harness) []model.Occurrence {
	t.Helper()
	occs, err := h.store.ListByChoreRange(context.Background(), 1, date(2024, 1, 1), date(2024, 2, 1))
	require.NoError(t, err)
	return occs
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	h, _ := seed(t, DefaultOptions())

	_, err := h.life.Complete(ctx, 404, parent)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = h.life.Skip(ctx, 404, parent, "")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = h.life.Unskip(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUnauthorizedActor(t *testing.T) {
	ctx := context.Background()
	h, occs := seed(t, DefaultOptions())
	jan1 := occs[0]

	_, err := h.life.Complete(ctx, jan1.ID, bobKid)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = h.life.Skip(ctx, jan1.ID, bobKid, "")
	assert.ErrorIs(t, err, ErrUnauthorized)

	got, err := h.store.GetByID(ctx, jan1.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Zero(t, h.ledger.calls())
}

func TestParentCompletesForChild(t *testing.T) {
	ctx := context.Background()
	h, occs := seed(t, DefaultOptions())

	done, err := h.life.Complete(ctx, occs[1].ID, parent)
	require.NoError(t, err)
	assert.Equal(t, parent.MemberID, *done.CompletedBy)
	require.Len(t, h.ledger.awards, 1)
	assert.Equal(t, bob, h.ledger.awards[0].member)
}

func TestConcurrentCompleteAwardsOnce(t *testing.T) {
	ctx := context.Background()
	h, occs := seed(t, DefaultOptions())
	id := occs[0].ID

	var wg sync.WaitGroup
	var mu sync.Mutex
	var wins, conflicts int
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.life.Complete(ctx, id, parent)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrInvalidState):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 15, conflicts)
	assert.Equal(t, 1, h.ledger.calls())
}

func TestAwardFailureRevertsCompletion(t *testing.T) {
	ctx := context.Background()
	h, occs := seed(t, DefaultOptions())
	id := occs[0].ID

	h.ledger.err = errors.New("ledger unavailable")
	_, err := h.life.Complete(ctx, id, aliceKid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger unavailable")

	got, err := h.store.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Nil(t, got.CompletedBy)
	assert.Nil(t, got.CompletedAt)
	assert.Zero(t, h.notifier.count(EventCompleted))

	h.ledger.err = nil
	_, err = h.life.Complete(ctx, id, aliceKid)
	require.NoError(t, err)
	assert.Equal(t, 1, h.ledger.calls())
}

func TestCompleteMissingDefinition(t *testing.T) {
	ctx := context.Background()
	h, occs := seed(t, DefaultOptions())
	delete(h.store.chores, 1)

	_, err := h.life.Complete(ctx, occs[0].ID, aliceKid)
	assert.ErrorIs(t, err, ErrNotFound)
	got, err := h.store.GetByID(ctx, occs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
}

func TestCustomPolicy(t *testing.T) {
	ctx := context.Background()
	h, occs := seed(t, DefaultOptions())
	parentsOnly := auth.PolicyFunc(func(a auth.Actor, _ []int64) bool { return a.IsParent() })
	life := NewLifecycle(choreSource{h.store}, h.store, h.ledger, parentsOnly, h.life.opts, h.life.logger)

	_, err := life.Complete(ctx, occs[0].ID, aliceKid)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = life.Complete(ctx, occs[0].ID, parent)
	assert.NoError(t, err)
}

func TestPointsRecipient(t *testing.T) {
	assert.Equal(t, bob, PointsRecipient(bobKid, []int64{carol, bob}))
	assert.Equal(t, bob, PointsRecipient(parent, []int64{carol, bob}))
	assert.Equal(t, parent.MemberID, PointsRecipient(parent, nil))
}

func TestIsOverdue(t *testing.T) {
	pending := model.Occurrence{DueDate: date(2024, 1, 1), Status: model.StatusPending}
	completed := model.Occurrence{DueDate: date(2024, 1, 1), Status: model.StatusCompleted}

	assert.True(t, IsOverdue(pending, time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)))
	assert.False(t, IsOverdue(pending, time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC)))
	assert.False(t, IsOverdue(completed, date(2024, 3, 1)))

	ann := Annotate([]model.Occurrence{pending, completed}, date(2024, 1, 5))
	assert.True(t, ann[0].Overdue)
	assert.False(t, ann[1].Overdue)
}

func TestValidateDefinition(t *testing.T) {
	valid := dailyRoundRobin(1, alice)
	tests := []struct {
		name   string
		mutate func(*model.RecurringChore)
	}{
		{"empty title", func(d *model.RecurringChore) { d.Title = " " }},
		{"negative points", func(d *model.RecurringChore) { d.Points = -1 }},
		{"no start", func(d *model.RecurringChore) { d.StartDate = time.Time{} }},
		{"bad rule", func(d *model.RecurringChore) { d.Rule.Interval = 0 }},
		{"empty pool", func(d *model.RecurringChore) { d.RotationPool = nil }},
	}
	require.NoError(t, ValidateDefinition(valid))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid
			tt.mutate(&d)
			assert.ErrorIs(t, ValidateDefinition(d), ErrValidation)
		})
	}
}
