package service

import (
	"context"
	"fmt"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"
	"carrental-backend/internal/utils"
)

// settle applies a confirmed payment exactly once. It returns false when the
// payment was already applied, either by status or by settlement event.
func (c *core) settle(ctx context.Context, repos *repository.Repositories, fx *effects, o *domain.Order, amountCents int64, reference, channel string) (bool, error) {
	if o.Status.IsSettled() {
		logger.Info("Payment already applied", "orderNo", o.OrderNo, "status", o.Status, "channel", channel)
		return false, nil
	}
	if o.Status.IsClosed() {
		// A paid order that was later cancelled keeps its payment; a repeat
		// delivery of that trade is a no-op, not money to hand back.
		paid, err := c.paidWith(ctx, repos, o, reference)
		if err != nil {
			return false, err
		}
		if paid {
			logger.Info("Payment already applied to closed order", "orderNo", o.OrderNo, "reference", reference, "channel", channel)
			return false, nil
		}
		return false, fmt.Errorf("%w: order %s is %s", domain.ErrOrderClosed, o.OrderNo, o.Status)
	}
	if o.Status != domain.OrderStatusAwaitingPayment {
		return false, fmt.Errorf("%w: order %s is %s, not awaiting payment", domain.ErrInvalidOrderState, o.OrderNo, o.Status)
	}
	if amountCents != o.TotalAmountCents {
		return false, fmt.Errorf("%w: order %s expects %s, gateway reported %s",
			domain.ErrAmountMismatch, o.OrderNo, utils.FormatCents(o.TotalAmountCents), utils.FormatCents(amountCents))
	}
	if reference == "" {
		return false, domain.Validationf("missing gateway trade reference for order %s", o.OrderNo)
	}

	inserted, err := repos.Settlements.Append(ctx, &domain.SettlementEvent{
		OrderID:           o.ID,
		ExternalReference: reference,
		Kind:              domain.SettlementPayment,
		AmountCents:       amountCents,
		Channel:           channel,
		CreatedAt:         c.now(),
	})
	if err != nil {
		return false, err
	}
	if !inserted {
		logger.Info("Settlement event already recorded", "orderNo", o.OrderNo, "reference", reference)
		return false, nil
	}

	now := c.now()
	o.PaymentMethod = domain.PaymentMethodAlipay
	o.PaymentReference = reference
	o.PaidAmountCents = amountCents
	o.PaymentTime = &now
	if err := moveOrder(o, domain.OrderStatusAwaitingPickup); err != nil {
		return false, err
	}
	if err := saveOrder(ctx, repos, o, domain.OrderStatusAwaitingPayment, fx); err != nil {
		return false, err
	}

	if err := c.journal(ctx, repos, fx, o, domain.OrderEventPaid, domain.SystemIdentity,
		fmt.Sprintf("paid %s via %s (%s)", utils.FormatCents(amountCents), channel, reference)); err != nil {
		return false, err
	}
	if err := c.fundsFlow(ctx, repos, fx, o, domain.FundsFlowIncome, amountCents, o.PaymentMethod.Channel(), domain.SystemIdentity, "order payment"); err != nil {
		return false, err
	}
	fx.email(emailStatus, o, "", 0)
	return true, nil
}

// paidWith reports whether the payment identified by reference was already
// applied to o.
func (c *core) paidWith(ctx context.Context, repos *repository.Repositories, o *domain.Order, reference string) (bool, error) {
	if reference == "" {
		return false, nil
	}
	if o.PaidAmountCents > 0 && o.PaymentReference == reference {
		return true, nil
	}
	events, err := repos.Settlements.ListByOrder(ctx, o.ID)
	if err != nil {
		return false, err
	}
	for _, ev := range events {
		if ev.Kind == domain.SettlementPayment && ev.ExternalReference == reference {
			return true, nil
		}
	}
	return false, nil
}

// refund records money returned to the customer and raises refund_amount.
// The caller owns the order status change and the conditional save. It
// returns false when the reference was already refunded.
func (c *core) refund(ctx context.Context, repos *repository.Repositories, fx *effects, o *domain.Order, amountCents int64, reference, channel string, actor domain.Identity, remark string) (bool, error) {
	if amountCents <= 0 || amountCents > o.RefundableCents() {
		return false, domain.Validationf("refund of %s exceeds refundable %s on order %s",
			utils.FormatCents(amountCents), utils.FormatCents(o.RefundableCents()), o.OrderNo)
	}

	inserted, err := repos.Settlements.Append(ctx, &domain.SettlementEvent{
		OrderID:           o.ID,
		ExternalReference: reference,
		Kind:              domain.SettlementRefund,
		AmountCents:       amountCents,
		Channel:           channel,
		CreatedAt:         c.now(),
	})
	if err != nil {
		return false, err
	}
	if !inserted {
		logger.Info("Refund already recorded", "orderNo", o.OrderNo, "reference", reference)
		return false, nil
	}

	o.RefundAmountCents += amountCents

	refundChannel := o.PaymentMethod.Channel()
	if err := c.fundsFlow(ctx, repos, fx, o, domain.FundsFlowRefund, amountCents, refundChannel, actor, remark); err != nil {
		return false, err
	}
	fx.email(emailRefund, o, "", amountCents)
	return true, nil
}
