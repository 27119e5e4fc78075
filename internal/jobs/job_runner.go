package jobs

import (
	"context"
	"time"

	"carrental-backend/internal/config"
	"carrental-backend/internal/inbox"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"
	"carrental-backend/internal/service"
)

// Job names, also accepted by the cronjob -run-once flag
const (
	ReconcilePaymentsJob = "reconcile-payments"
	ExpireUnpaidJob      = "expire-unpaid"
	MarkOverdueJob       = "mark-overdue"
	ExpireGrantsJob      = "expire-grants"
	ReplayCallbacksJob   = "replay-callbacks"
	PruneInboxJob        = "prune-inbox"
)

// StoreJobs only touch the relational store and the gateway
var StoreJobs = []string{ReconcilePaymentsJob, ExpireUnpaidJob, MarkOverdueJob, ExpireGrantsJob}

// InboxJobs need the callback inbox. BoltDB allows one process per file, so
// they run inside whichever process owns it.
var InboxJobs = []string{ReplayCallbacksJob, PruneInboxJob}

const batchSize = 200

// CallbackInbox is the part of the callback journal the replay jobs use
type CallbackInbox interface {
	ListReplayable(stalledBefore time.Time, maxAttempts, limit int) ([]inbox.Entry, error)
	MarkOutcome(ctx context.Context, id uint64, outcome service.CallbackOutcome) error
	Prune(cutoff time.Time) (int, error)
}

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	store    repository.Store
	services *Services
	inbox    CallbackInbox
	config   *config.Config
	now      func() time.Time
}

// Services holds all service dependencies needed by jobs
type Services struct {
	Orders   service.OrderService
	Payments service.PaymentService
	Coupons  service.CouponService
}

// Job is one schedulable unit
type Job struct {
	Name string
	Spec string
	Run  func()
}

// NewJobRunner creates a new job runner with all dependencies. cbInbox may be
// nil when this process does not own the callback inbox.
func NewJobRunner(store repository.Store, services *Services, cbInbox CallbackInbox, cfg *config.Config) *JobRunner {
	return &JobRunner{
		store:    store,
		services: services,
		inbox:    cbInbox,
		config:   cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Config returns the configuration the runner was built with
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// Jobs returns the named jobs with their cron specs. Inbox jobs are left out
// when the runner has no inbox.
func (jr *JobRunner) Jobs(names ...string) []Job {
	cfg := jr.config.Scheduler
	all := []Job{
		{ReconcilePaymentsJob, cfg.ReconcilePayments, jr.ReconcilePayments},
		{ExpireUnpaidJob, cfg.ExpireUnpaid, jr.ExpireUnpaidOrders},
		{MarkOverdueJob, cfg.MarkOverdue, jr.MarkOverdueOrders},
		{ExpireGrantsJob, cfg.ExpireGrants, jr.ExpireCouponGrants},
		{ReplayCallbacksJob, cfg.ReplayCallbacks, jr.ReplayCallbacks},
		{PruneInboxJob, cfg.PruneInbox, jr.PruneInbox},
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	var jobs []Job
	for _, j := range all {
		if len(names) > 0 && !wanted[j.Name] {
			continue
		}
		if jr.inbox == nil && (j.Name == ReplayCallbacksJob || j.Name == PruneInboxJob) {
			continue
		}
		jobs = append(jobs, j)
	}
	return jobs
}

// RunOnce runs a job by name and reports whether it exists
func (jr *JobRunner) RunOnce(name string) bool {
	for _, j := range jr.Jobs(name) {
		j.Run()
		return true
	}
	return false
}

// RunAllStoreJobs runs every store job in dependency order (for manual execution)
func (jr *JobRunner) RunAllStoreJobs() {
	jr.ReconcilePayments()
	jr.ExpireUnpaidOrders()
	jr.MarkOverdueOrders()
	jr.ExpireCouponGrants()
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	logger.Info("Starting job", "job", jobName)
	jobFunc()
	logger.Info("Job completed", "job", jobName)
}
