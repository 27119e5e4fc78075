package jobs

import (
	"context"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"
	"carrental-backend/internal/service"
)

// ReconcilePayments queries the gateway for orders that have waited for a
// payment callback longer than the reconcile delay
func (jr *JobRunner) ReconcilePayments() {
	jr.runWithRecovery("ReconcilePayments", func() {
		settled, err := jr.reconcilePayments(context.Background())
		if err != nil {
			logger.Error("Failed to reconcile payments", "error", err)
			return
		}
		logger.Info("Reconciled payments", "settled", settled)
	})
}

func (jr *JobRunner) reconcilePayments(ctx context.Context) (int, error) {
	before := jr.now().Add(-time.Duration(jr.config.Orders.ReconcileAfterMinutes) * time.Minute)
	return jr.reconcileBefore(ctx, before)
}

// reconcileBefore settles awaiting-payment orders untouched since before.
// Per-order failures are logged and skipped.
func (jr *JobRunner) reconcileBefore(ctx context.Context, before time.Time) (int, error) {
	orders, err := jr.store.Repos().Orders.ListByStatusBefore(ctx, domain.OrderStatusAwaitingPayment, repository.OrderFieldUpdatedAt, before, batchSize)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, o := range orders {
		paid, err := jr.services.Payments.Reconcile(ctx, o.ID)
		if err != nil {
			logger.Warn("Failed to reconcile order", "orderNo", o.OrderNo, "error", err)
			continue
		}
		if paid {
			settled++
		}
	}
	return settled, nil
}

// ReplayCallbacks re-drives gateway callbacks that failed transiently or
// stalled mid-flight
func (jr *JobRunner) ReplayCallbacks() {
	jr.runWithRecovery("ReplayCallbacks", func() {
		done, err := jr.replayCallbacks(context.Background())
		if err != nil {
			logger.Error("Failed to replay callbacks", "error", err)
			return
		}
		logger.Info("Replayed callbacks", "done", done)
	})
}

func (jr *JobRunner) replayCallbacks(ctx context.Context) (int, error) {
	cfg := jr.config.Inbox
	stalledBefore := jr.now().Add(-time.Duration(cfg.StalledAfterMinutes) * time.Minute)

	entries, err := jr.inbox.ListReplayable(stalledBefore, cfg.MaxReplayAttempts, batchSize)
	if err != nil {
		return 0, err
	}

	done := 0
	for _, e := range entries {
		outcome := jr.services.Payments.ReplayCallback(ctx, e.Channel, e.Params)
		if err := jr.inbox.MarkOutcome(ctx, e.ID, outcome); err != nil {
			logger.Warn("Failed to mark replayed callback", "id", e.ID, "error", err)
			continue
		}
		if outcome != service.CallbackFailed {
			done++
		}
		if e.Attempts+1 >= cfg.MaxReplayAttempts && outcome == service.CallbackFailed {
			logger.Error("Callback replay attempts exhausted", "id", e.ID, "outTradeNo", e.Params.Get("out_trade_no"))
		}
	}
	return done, nil
}

// PruneInbox deletes settled callbacks older than the retention window
func (jr *JobRunner) PruneInbox() {
	jr.runWithRecovery("PruneInbox", func() {
		cutoff := jr.now().AddDate(0, 0, -jr.config.Inbox.RetentionDays)
		removed, err := jr.inbox.Prune(cutoff)
		if err != nil {
			logger.Error("Failed to prune callback inbox", "error", err)
			return
		}
		logger.Info("Pruned callback inbox", "removed", removed)
	})
}
