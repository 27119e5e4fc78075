package jobs

import (
	"context"
	"time"

	"carrental-backend/internal/logger"
)

// ExpireUnpaidOrders cancels orders whose payment window has lapsed. A last
// gateway query runs first so a payment whose callbacks were lost still
// settles the order instead of cancelling it.
func (jr *JobRunner) ExpireUnpaidOrders() {
	jr.runWithRecovery("ExpireUnpaidOrders", func() {
		expired, err := jr.expireUnpaid(context.Background())
		if err != nil {
			logger.Error("Failed to expire unpaid orders", "error", err)
			return
		}
		logger.Info("Expired unpaid orders", "count", expired)
	})
}

func (jr *JobRunner) expireUnpaid(ctx context.Context) (int, error) {
	cutoff := jr.now().Add(-time.Duration(jr.config.Orders.UnpaidExpiryMinutes) * time.Minute)

	if settled, err := jr.reconcileBefore(ctx, cutoff); err != nil {
		logger.Warn("Pre-expiry reconciliation failed", "error", err)
	} else if settled > 0 {
		logger.Info("Settled orders before expiry", "count", settled)
	}

	return jr.services.Orders.ExpireUnpaid(ctx, cutoff)
}

// MarkOverdueOrders flags in-use orders past their return time
func (jr *JobRunner) MarkOverdueOrders() {
	jr.runWithRecovery("MarkOverdueOrders", func() {
		count, err := jr.services.Orders.MarkOverdue(context.Background(), jr.now())
		if err != nil {
			logger.Error("Failed to mark overdue orders", "error", err)
			return
		}
		logger.Info("Marked orders as overdue", "count", count)
	})
}

// ExpireCouponGrants expires unused grants whose coupon has ended
func (jr *JobRunner) ExpireCouponGrants() {
	jr.runWithRecovery("ExpireCouponGrants", func() {
		count, err := jr.services.Coupons.ExpireGrants(context.Background(), jr.now())
		if err != nil {
			logger.Error("Failed to expire coupon grants", "error", err)
			return
		}
		logger.Info("Expired coupon grants", "count", count)
	})
}
