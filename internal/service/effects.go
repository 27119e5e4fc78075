package service

import (
	"context"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
)

type emailKind int

const (
	emailBooking emailKind = iota
	emailStatus
	emailRefund
)

type pendingEmail struct {
	kind       emailKind
	order      domain.Order
	pickupCode string
	amount     int64
}

type pendingEvent struct {
	eventType string
	key       string
	payload   any
}

// effects collects side effects produced inside a transaction. They are
// flushed only after the transaction commits and never fail the operation.
type effects struct {
	events   []pendingEvent
	statuses map[int64]CachedStatus
	vehicles []VehicleChange
	emails   []pendingEmail
	seen     []string
}

func newEffects() *effects {
	return &effects{statuses: make(map[int64]CachedStatus)}
}

func (fx *effects) publish(eventType, key string, payload any) {
	fx.events = append(fx.events, pendingEvent{eventType: eventType, key: key, payload: payload})
}

func (fx *effects) orderStatus(o *domain.Order) {
	fx.statuses[o.ID] = CachedStatus{UserID: o.UserID, Status: o.Status}
}

func (fx *effects) vehicle(change VehicleChange) {
	fx.vehicles = append(fx.vehicles, change)
}

func (fx *effects) email(kind emailKind, o *domain.Order, pickupCode string, amount int64) {
	fx.emails = append(fx.emails, pendingEmail{kind: kind, order: *o, pickupCode: pickupCode, amount: amount})
}

func (fx *effects) markSeen(notifyID string) {
	if notifyID != "" {
		fx.seen = append(fx.seen, notifyID)
	}
}

func (c *core) flush(ctx context.Context, fx *effects) {
	for _, ev := range fx.events {
		if err := c.deps.Events.Publish(ctx, ev.eventType, ev.key, ev.payload); err != nil {
			logger.Warn("Failed to publish event", "eventType", ev.eventType, "key", ev.key, "error", err)
		}
	}

	for orderID, st := range fx.statuses {
		if err := c.deps.Cache.SetOrderStatus(ctx, orderID, st); err != nil {
			logger.Warn("Failed to cache order status", "orderID", orderID, "error", err)
		}
	}

	for _, change := range fx.vehicles {
		if err := c.deps.Vehicles.PublishVehicleStatus(ctx, change); err != nil {
			logger.Warn("Failed to signal vehicle status", "vehicleID", change.VehicleID, "error", err)
		}
	}

	for _, id := range fx.seen {
		if err := c.deps.Dedup.MarkSeen(ctx, id); err != nil {
			logger.Warn("Failed to record notify id", "notifyID", id, "error", err)
		}
	}

	for _, e := range fx.emails {
		c.sendEmail(ctx, e)
	}
}

func (c *core) sendEmail(ctx context.Context, e pendingEmail) {
	customer, err := c.deps.Store.Repos().Customers.GetByID(ctx, e.order.UserID)
	if err != nil {
		logger.Warn("Skipping email, customer lookup failed", "orderID", e.order.ID, "error", err)
		return
	}
	if customer.Email == "" {
		return
	}

	switch e.kind {
	case emailBooking:
		err = c.deps.Email.SendBookingConfirmation(ctx, customer, &e.order, e.pickupCode)
	case emailStatus:
		err = c.deps.Email.SendOrderStatusUpdate(ctx, customer, &e.order)
	case emailRefund:
		err = c.deps.Email.SendRefundNotice(ctx, customer, &e.order, e.amount)
	}
	if err != nil {
		logger.Warn("Failed to send email", "orderID", e.order.ID, "error", err)
	}
}
