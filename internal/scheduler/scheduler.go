// Package scheduler keeps a rolling window of occurrences materialized on
// a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/recurrence"
)

// Generator materializes occurrences; choreID nil means every definition.
type Generator interface {
	Generate(ctx context.Context, choreID *int64, from, to time.Time) ([]model.Occurrence, error)
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Scheduler runs the materializer over [today, today+days) on each tick.
type Scheduler struct {
	mu      sync.Mutex
	gen     Generator
	spec    string
	days    int
	loc     *time.Location
	now     func() time.Time
	cron    *cron.Cron
	cancel  context.CancelFunc
	running sync.WaitGroup
	logger  *slog.Logger
}

// New validates spec (five-field cron or a descriptor such as "@daily").
func New(gen Generator, spec string, days int, loc *time.Location, logger *slog.Logger) (*Scheduler, error) {
	if _, err := parser.Parse(spec); err != nil {
		return nil, fmt.Errorf("parse cron spec %q: %w", spec, err)
	}
	if days < 1 {
		return nil, fmt.Errorf("window must be at least one day, got %d", days)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		gen:    gen,
		spec:   spec,
		days:   days,
		loc:    loc,
		now:    time.Now,
		logger: logger,
	}, nil
}

// Window returns the range the next run covers.
func (s *Scheduler) Window() (from, to time.Time) {
	from = recurrence.Day(s.now().In(s.loc))
	return from, from.AddDate(0, 0, s.days)
}

// RunOnce materializes the current window and returns how many
// occurrences it covers.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	from, to := s.Window()
	start := time.Now()
	occs, err := s.gen.Generate(ctx, nil, from, to)
	if err != nil {
		s.logger.Error("materialize window", "from", from.Format(time.DateOnly), "to", to.Format(time.DateOnly), "error", err)
		return len(occs), err
	}
	s.logger.Info("materialized window",
		"from", from.Format(time.DateOnly),
		"to", to.Format(time.DateOnly),
		"occurrences", len(occs),
		"duration", time.Since(start),
	)
	return len(occs), nil
}

// Start runs once immediately, then on every cron tick until Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return fmt.Errorf("scheduler already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New(cron.WithParser(parser), cron.WithLocation(s.loc))
	if _, err := c.AddFunc(s.spec, func() { s.run(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("schedule materializer: %w", err)
	}
	s.cron, s.cancel = c, cancel

	s.running.Add(1)
	go func() {
		defer s.running.Done()
		s.RunOnce(runCtx)
	}()
	c.Start()
	s.logger.Info("materializer scheduled", "spec", s.spec, "days", s.days, "timezone", s.loc.String())
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	s.running.Add(1)
	defer s.running.Done()
	s.RunOnce(ctx)
}

// Stop cancels in-flight runs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
	s.running.Wait()
}
