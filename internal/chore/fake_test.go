package chore

import (
	"cmp"
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/recurrence"
)

type occKey struct {
	choreID int64
	due     time.Time
}

// memStore is an in-memory ChoreSource and OccurrenceStore.
type memStore struct {
	mu     sync.Mutex
	chores map[int64]model.RecurringChore
	occs   map[int64]*model.Occurrence
	byKey  map[occKey]int64
	nextID int64
	// inserts counts InsertIfAbsent calls that created a row.
	inserts int
	// failInsertOn makes InsertIfAbsent fail for that due date.
	failInsertOn time.Time
}

func newMemStore(defs ...model.RecurringChore) *memStore {
	s := &memStore{
		chores: make(map[int64]model.RecurringChore),
		occs:   make(map[int64]*model.Occurrence),
		byKey:  make(map[occKey]int64),
	}
	for _, d := range defs {
		s.chores[d.ID] = d
	}
	return s
}

func (s *memStore) GetByID(_ context.Context, id int64) (*model.Occurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.occs[id]
	if !ok {
		return nil, nil
	}
	c := *o
	return &c, nil
}

func (s *memStore) InsertIfAbsent(_ context.Context, occ model.Occurrence) (*model.Occurrence, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.failInsertOn.IsZero() && occ.DueDate.Equal(s.failInsertOn) {
		return nil, false, errors.New("disk full")
	}
	k := occKey{occ.RecurringChoreID, occ.DueDate}
	if id, ok := s.byKey[k]; ok {
		c := *s.occs[id]
		return &c, false, nil
	}
	s.nextID++
	occ.ID = s.nextID
	s.occs[occ.ID] = &occ
	s.byKey[k] = occ.ID
	s.inserts++
	c := occ
	return &c, true, nil
}

func (s *memStore) ListByChoreRange(_ context.Context, choreID int64, from, to time.Time) ([]model.Occurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Occurrence
	for _, o := range s.occs {
		if o.RecurringChoreID == choreID && !o.DueDate.Before(from) && o.DueDate.Before(to) {
			out = append(out, *o)
		}
	}
	slices.SortFunc(out, func(a, b model.Occurrence) int { return a.DueDate.Compare(b.DueDate) })
	return out, nil
}

func (s *memStore) CountSkippedBefore(_ context.Context, choreID int64, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, o := range s.occs {
		if o.RecurringChoreID == choreID && o.Status == model.StatusSkipped && o.DueDate.Before(before) {
			n++
		}
	}
	return n, nil
}

func (s *memStore) swap(id int64, from model.OccurrenceStatus, apply func(*model.Occurrence)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.occs[id]
	if !ok || o.Status != from {
		return false
	}
	apply(o)
	return true
}

func (s *memStore) MarkCompleted(_ context.Context, id, by int64, at time.Time) (bool, error) {
	return s.swap(id, model.StatusPending, func(o *model.Occurrence) {
		o.Status = model.StatusCompleted
		o.CompletedBy, o.CompletedAt = &by, &at
	}), nil
}

func (s *memStore) MarkSkipped(_ context.Context, id, by int64, at time.Time, reason *string) (bool, error) {
	return s.swap(id, model.StatusPending, func(o *model.Occurrence) {
		o.Status = model.StatusSkipped
		o.SkippedBy, o.SkippedAt, o.SkipReason = &by, &at, reason
	}), nil
}

func (s *memStore) MarkPending(_ context.Context, id int64, from model.OccurrenceStatus) (bool, error) {
	return s.swap(id, from, func(o *model.Occurrence) {
		o.Status = model.StatusPending
		o.CompletedBy, o.CompletedAt = nil, nil
		o.SkippedBy, o.SkippedAt, o.SkipReason = nil, nil, nil
	}), nil
}

// choreSource exposes the definitions of a memStore as a ChoreSource.
type choreSource struct{ s *memStore }

func (c choreSource) GetByID(_ context.Context, id int64) (*model.RecurringChore, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	d, ok := c.s.chores[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (c choreSource) List(_ context.Context) ([]model.RecurringChore, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	var out []model.RecurringChore
	for _, d := range c.s.chores {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b model.RecurringChore) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

type award struct {
	member, occurrence int64
	amount             int
}

type fakeLedger struct {
	mu     sync.Mutex
	awards []award
	err    error
}

func (l *fakeLedger) AwardPoints(_ context.Context, memberID int64, amount int, occurrenceID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.awards = append(l.awards, award{memberID, occurrenceID, amount})
	return nil
}

func (l *fakeLedger) calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.awards)
}

type recordedEvent struct {
	event string
	id    int64
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *fakeNotifier) OccurrenceChanged(event string, occ model.Occurrence) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{event, occ.ID})
}

func (n *fakeNotifier) count(event string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e.event == event {
			c++
		}
	}
	return c
}

var fixedNow = time.Date(2024, 1, 2, 18, 30, 0, 0, time.UTC)

type harness struct {
	store    *memStore
	ledger   *fakeLedger
	notifier *fakeNotifier
	mat      *Materializer
	life     *Lifecycle
}

func newHarness(opts Options, defs ...model.RecurringChore) *harness {
	h := &harness{
		store:    newMemStore(defs...),
		ledger:   &fakeLedger{},
		notifier: &fakeNotifier{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts.Now = func() time.Time { return fixedNow }
	opts.Notifier = h.notifier
	src := choreSource{h.store}
	h.mat = NewMaterializer(src, h.store, opts, logger)
	h.life = NewLifecycle(src, h.store, h.ledger, nil, opts, logger)
	return h
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dailyRoundRobin(id int64, pool ...int64) model.RecurringChore {
	return model.RecurringChore{
		ID:             id,
		Title:          "Dishes",
		Points:         5,
		Rule:           recurrence.EveryDays(1),
		StartDate:      date(2024, 1, 1),
		AssignmentMode: model.AssignRoundRobin,
		RotationPool:   pool,
		Active:         true,
	}
}
