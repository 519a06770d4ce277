// Package jobs runs periodic maintenance: expired sessions, spent
// two-factor codes and expired KV entries are deleted on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/iudanet/commentauth/internal/server/metrics"
)

// DefaultSchedule runs the sweep once an hour.
const DefaultSchedule = "@every 1h"

// SweepFunc deletes stale records and reports how many were removed.
type SweepFunc func(ctx context.Context) (int, error)

// Task is one named sweep step.
type Task struct {
	Name  string
	Sweep SweepFunc
}

// Sweeper runs its tasks on a cron schedule.
type Sweeper struct {
	cron    *cron.Cron
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	tasks   []Task
	timeout time.Duration
}

// NewSweeper creates a Sweeper. The schedule accepts standard five-field
// cron specs and descriptors such as "@every 30m".
func NewSweeper(schedule string, tasks []Task, logger *slog.Logger, m *metrics.Metrics) (*Sweeper, error) {
	s := &Sweeper{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:  logger,
		metrics: m,
		now:     time.Now,
		tasks:   tasks,
		timeout: 5 * time.Minute,
	}

	if _, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.RunOnce(ctx)
	}); err != nil {
		return nil, fmt.Errorf("failed to parse sweep schedule %q: %w", schedule, err)
	}

	return s, nil
}

// Start begins the schedule in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("Sweeper started", slog.Int("tasks", len(s.tasks)))
}

// Stop halts the schedule and waits for a running sweep to finish or ctx
// to end.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	s.logger.Info("Sweeper stopped")
}

// RunOnce runs every task once. A failing task does not stop the others.
// It returns the total number of removed records.
func (s *Sweeper) RunOnce(ctx context.Context) int {
	total := 0
	for _, task := range s.tasks {
		n, err := task.Sweep(ctx)
		s.metrics.Swept(task.Name, n, err)
		if err != nil {
			s.logger.ErrorContext(ctx, "Sweep task failed",
				slog.String("task", task.Name),
				slog.Any("error", err))
			continue
		}
		total += n
		if n > 0 {
			s.logger.InfoContext(ctx, "Sweep task removed records",
				slog.String("task", task.Name),
				slog.Int("removed", n))
		}
	}
	s.metrics.SweepFinished(s.now())
	return total
}
