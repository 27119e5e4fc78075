package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/repository"

	"github.com/google/uuid"
)

// Event types published for downstream consumers.
const (
	EventOrderPrefix       = "order."
	EventFundsFlow         = "funds_flow.recorded"
	EventPaymentAnomaly    = "payment.anomaly"
	EventVehicleTransition = "vehicle.status_changed"
)

// core holds what the services share: the store, pricing rules and the
// post-commit collaborators.
type core struct {
	deps Deps
}

func newCore(deps Deps) *core {
	return &core{deps: deps.withDefaults()}
}

func (c *core) now() time.Time {
	return c.deps.Now()
}

// withOrder locks the order, runs fn and flushes the collected effects once
// the transaction has committed.
func (c *core) withOrder(ctx context.Context, orderID int64, fn func(repos *repository.Repositories, o *domain.Order, fx *effects) error) (*domain.Order, error) {
	fx := newEffects()
	var out *domain.Order
	err := c.deps.Store.WithinTx(ctx, func(repos *repository.Repositories) error {
		o, err := repos.Orders.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := fn(repos, o, fx); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.flush(ctx, fx)
	return out, nil
}

// moveOrder applies a state-machine transition in memory.
func moveOrder(o *domain.Order, to domain.OrderStatus) error {
	if !domain.CanTransition(o.Status, to) {
		return fmt.Errorf("%w: order %s cannot move from %s to %s", domain.ErrInvalidOrderState, o.OrderNo, o.Status, to)
	}
	o.Status = to
	return nil
}

func requireStatus(o *domain.Order, allowed ...domain.OrderStatus) error {
	for _, s := range allowed {
		if o.Status == s {
			return nil
		}
	}
	return fmt.Errorf("%w: order %s is %s", domain.ErrInvalidOrderState, o.OrderNo, o.Status)
}

// saveOrder persists o only if the stored status is still expected.
func saveOrder(ctx context.Context, repos *repository.Repositories, o *domain.Order, expected domain.OrderStatus, fx *effects) error {
	ok, err := repos.Orders.Update(ctx, o, expected)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: order %s changed concurrently", domain.ErrInvalidOrderState, o.OrderNo)
	}
	fx.orderStatus(o)
	return nil
}

func (c *core) journal(ctx context.Context, repos *repository.Repositories, fx *effects, o *domain.Order, eventType string, actor domain.Identity, message string) error {
	ev := &domain.OrderEventLog{
		OrderID:      o.ID,
		OrderNo:      o.OrderNo,
		EventType:    eventType,
		Stage:        o.Status.String(),
		OperatorID:   actor.UserID,
		OperatorName: actor.Name,
		OperatorRole: actor.Role,
		Message:      message,
		CreatedAt:    c.now(),
	}
	if err := repos.Journal.AppendOrderEvent(ctx, ev); err != nil {
		return fmt.Errorf("failed to journal %s for order %s: %w", eventType, o.OrderNo, err)
	}
	fx.publish(EventOrderPrefix+eventType, o.OrderNo, ev)
	return nil
}

func (c *core) fundsFlow(ctx context.Context, repos *repository.Repositories, fx *effects, o *domain.Order, flowType domain.FundsFlowType, amount int64, channel string, actor domain.Identity, remark string) error {
	entry := &domain.FundsFlowEntry{
		FlowNo:       newFlowNo(),
		OrderID:      o.ID,
		OrderNo:      o.OrderNo,
		Type:         flowType,
		AmountCents:  amount,
		Channel:      channel,
		OperatorID:   actor.UserID,
		OperatorName: actor.Name,
		Remark:       remark,
		CreatedAt:    c.now(),
	}
	if err := repos.Journal.AppendFundsFlow(ctx, entry); err != nil {
		return fmt.Errorf("failed to record funds flow for order %s: %w", o.OrderNo, err)
	}
	fx.publish(EventFundsFlow, o.OrderNo, entry)
	return nil
}

func ownerOrStaff(actor domain.Identity, o *domain.Order) error {
	if actor.IsStaff() || (actor.UserID != 0 && actor.UserID == o.UserID) {
		return nil
	}
	return fmt.Errorf("%w: order %d belongs to another customer", domain.ErrForbidden, o.ID)
}

func ownerOnly(actor domain.Identity, o *domain.Order) error {
	if actor.UserID != 0 && actor.UserID == o.UserID {
		return nil
	}
	return fmt.Errorf("%w: only the customer who booked order %d may do this", domain.ErrForbidden, o.ID)
}

func staffOnly(actor domain.Identity) error {
	if actor.IsStaff() {
		return nil
	}
	return fmt.Errorf("%w: staff role required", domain.ErrForbidden)
}

func newOrderNo(now time.Time) string {
	return fmt.Sprintf("CR%d%04d", now.UnixMilli(), rand.IntN(10000))
}

func newCaseNo(now time.Time) string {
	return fmt.Sprintf("AS%s%04d", now.Format("20060102150405"), rand.IntN(10000))
}

func newFlowNo() string {
	return "FF" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
