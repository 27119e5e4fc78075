package scheduler

import (
	"time"

	"carrental-backend/internal/jobs"
	"carrental-backend/internal/logger"

	"github.com/robfig/cron/v3"
)

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron *cron.Cron
	jobs *jobs.JobRunner
}

// NewScheduler creates a scheduler for the named jobs, or for every job the
// runner can serve when no names are given
func NewScheduler(jobRunner *jobs.JobRunner, names ...string) *Scheduler {
	// Create cron with UTC timezone and seconds precision. Overlapping runs of
	// the same job are skipped.
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	s := &Scheduler{
		cron: c,
		jobs: jobRunner,
	}

	s.registerJobs(names)
	return s
}

// registerJobs registers jobs with the cron scheduler
func (s *Scheduler) registerJobs(names []string) {
	registered := 0
	for _, job := range s.jobs.Jobs(names...) {
		if _, err := s.cron.AddFunc(job.Spec, job.Run); err != nil {
			logger.Error("Failed to register job", "job", job.Name, "spec", job.Spec, "error", err)
			continue
		}
		registered++
	}

	logger.Info("Cron jobs registered", "count", registered)
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	logger.Info("Starting cron scheduler...")
	s.cron.Start()
	logger.Info("Cron scheduler started successfully")
}

// Stop gracefully stops the cron scheduler
func (s *Scheduler) Stop() {
	logger.Info("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Cron scheduler stopped")
}

// IsRunning returns true if the scheduler is running
func (s *Scheduler) IsRunning() bool {
	return len(s.cron.Entries()) > 0
}
