// Package scheduler runs the periodic readiness snapshot job.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/chalkline/internal/config"
	"github.com/claude/chalkline/internal/telemetry"
	"github.com/robfig/cron/v3"
)

// Snapshotter stores a readiness snapshot for every user.
type Snapshotter interface {
	SnapshotAll(ctx context.Context) (int, error)
}

// Scheduler manages the cron tasks.
type Scheduler struct {
	cron    *cron.Cron
	snap    Snapshotter
	metrics *telemetry.Manager
	log     *slog.Logger
	ctx     context.Context
}

// New creates a scheduler. Jobs run with ctx and are skipped while a previous
// run is still going. metrics may be nil.
func New(ctx context.Context, snap Snapshotter, metrics *telemetry.Manager, log *slog.Logger) *Scheduler {
	cl := cronLogger{log}
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(config.CronParser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		snap:    snap,
		metrics: metrics,
		log:     log,
		ctx:     ctx,
	}
}

// Register adds the snapshot job on the given schedule.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.RunSnapshots); err != nil {
		return fmt.Errorf("register snapshot task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop stops the scheduler and waits for a running job to finish or for ctx
// to be done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out")
	}
	s.log.Info("scheduler stopped")
}

// RunSnapshots computes and stores snapshots for all users once.
func (s *Scheduler) RunSnapshots() {
	begin := time.Now()
	n, err := s.snap.SnapshotAll(s.ctx)
	elapsed := time.Since(begin)

	if s.metrics != nil {
		s.metrics.CounterSnapshots.WithLabelValues("ok").Add(float64(n))
		if err != nil {
			s.metrics.CounterSnapshots.WithLabelValues("error").Inc()
		}
		s.metrics.HistSnapshotRunDuration.Observe(elapsed.Seconds())
		s.metrics.GaugeLastSnapshotRun.SetToCurrentTime()
	}

	if err != nil {
		s.log.Error("snapshot run", "stored", n, "error", err, "duration", elapsed.String())
		return
	}
	s.log.Info("snapshot run", "stored", n, "duration", elapsed.String())
}

// cronLogger routes cron's own messages through slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
