package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// RuntimeMaintainer is the part of the runtime registry the scheduler drives.
type RuntimeMaintainer interface {
	FlushLMS(ctx context.Context) (int, error)
	Sweep(ctx context.Context, idle time.Duration) (int, error)
}

// Purger drops expired volatile session entries. Optional.
type Purger interface {
	Purge() int
}

type MaintenanceScheduler struct {
	cronEngine     *cron.Cron
	runtimes       RuntimeMaintainer
	sessions       Purger
	logger         *logrus.Entry
	cronSpecFlush  string
	cronSpecSweep  string
	sessionIdleTTL time.Duration
}

func NewMaintenanceScheduler(
	runtimes RuntimeMaintainer,
	sessions Purger, // nil when the session store expires keys itself
	logger *logrus.Entry,
	cronSpecFlush string, // e.g., "@every 30s"
	cronSpecSweep string, // e.g., "*/10 * * * *"
	sessionIdleTTL time.Duration,
) *MaintenanceScheduler {
	return &MaintenanceScheduler{
		cronEngine:     cron.New(cron.WithLocation(time.Local)), // Use server's local time for cron
		runtimes:       runtimes,
		sessions:       sessions,
		logger:         logger.WithField("component", "maintenance_scheduler"),
		cronSpecFlush:  cronSpecFlush,
		cronSpecSweep:  cronSpecSweep,
		sessionIdleTTL: sessionIdleTTL,
	}
}

func (s *MaintenanceScheduler) Start() error {
	s.logger.Info("Starting maintenance scheduler...")

	if _, err := s.cronEngine.AddFunc(s.cronSpecFlush, s.flushLMS); err != nil {
		return fmt.Errorf("could not add LMS flush cron job: %w", err)
	}
	if _, err := s.cronEngine.AddFunc(s.cronSpecSweep, s.sweepSessions); err != nil {
		return fmt.Errorf("could not add session sweep cron job: %w", err)
	}

	s.cronEngine.Start()
	s.logger.WithFields(logrus.Fields{"flush": s.cronSpecFlush, "sweep": s.cronSpecSweep}).Info("Maintenance scheduler started with jobs.")
	return nil
}

// flushLMS retries commits that failed while learners were active.
func (s *MaintenanceScheduler) flushLMS() {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
	defer cancel()
	flushed, err := s.runtimes.FlushLMS(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Error during LMS flush")
	}
	if flushed > 0 {
		s.logger.WithField("flushed", flushed).Info("Pending LMS commits flushed")
	}
}

func (s *MaintenanceScheduler) sweepSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	removed, err := s.runtimes.Sweep(ctx, s.sessionIdleTTL)
	if err != nil {
		s.logger.WithError(err).Error("Error during idle runtime sweep")
	}
	fields := logrus.Fields{"runtimes_removed": removed}
	if s.sessions != nil {
		fields["session_keys_purged"] = s.sessions.Purge()
	}
	s.logger.WithFields(fields).Info("Idle sweep finished")
}

func (s *MaintenanceScheduler) Stop() {
	s.logger.Info("Stopping maintenance scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()
	s.logger.Info("Maintenance scheduler gracefully stopped.")
}
