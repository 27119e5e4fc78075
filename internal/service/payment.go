package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"
	"carrental-backend/internal/utils"
)

const (
	replySuccess = "success"
	replyFailure = "failure"
)

// PaymentAnomaly is published when money arrives that cannot be applied.
type PaymentAnomaly struct {
	OrderNo       string    `json:"order_no"`
	Reference     string    `json:"reference"`
	Channel       string    `json:"channel"`
	AmountCents   int64     `json:"amount_cents"`
	ExpectedCents int64     `json:"expected_cents"`
	Reason        string    `json:"reason"`
	At            time.Time `json:"at"`
}

type paymentService struct {
	*core
	gateway     PaymentGateway
	inbox       CallbackJournal
	frontendURL string
}

// NewPaymentService wires the reconciliation protocol. frontendURL is where the
// browser lands after the synchronous return; journal may be nil.
func NewPaymentService(deps Deps, gw PaymentGateway, journal CallbackJournal, frontendURL string) PaymentService {
	if journal == nil {
		journal = noopJournal{}
	}
	return &paymentService{
		core:        newCore(deps),
		gateway:     gw,
		inbox:       journal,
		frontendURL: frontendURL,
	}
}

func (s *paymentService) CreatePaymentForm(ctx context.Context, actor domain.Identity, orderID int64) (string, error) {
	logger.EnterMethod("paymentService.CreatePaymentForm", "orderID", orderID, "userID", actor.UserID)

	o, err := s.deps.Store.Repos().Orders.GetByID(ctx, orderID)
	if err != nil {
		logger.ExitMethodWithError("paymentService.CreatePaymentForm", err, "orderID", orderID)
		return "", err
	}
	if err := ownerOnly(actor, o); err != nil {
		logger.ExitMethodWithError("paymentService.CreatePaymentForm", err)
		return "", err
	}
	if err := requireStatus(o, domain.OrderStatusAwaitingPayment); err != nil {
		logger.ExitMethodWithError("paymentService.CreatePaymentForm", err)
		return "", err
	}

	form, err := s.gateway.PagePayForm(o.OrderNo, o.TotalAmountCents)
	if err != nil {
		logger.ExitMethodWithError("paymentService.CreatePaymentForm", err, "orderNo", o.OrderNo)
		return "", fmt.Errorf("failed to build payment form: %w", err)
	}

	logger.ExitMethod("paymentService.CreatePaymentForm", "orderNo", o.OrderNo)
	return form, nil
}

func (s *paymentService) SettlePayment(ctx context.Context, orderID int64, amountCents int64, reference, channel string) (*SettleResult, error) {
	return s.settleOrder(ctx, orderID, amountCents, reference, channel, "")
}

func (s *paymentService) settleOrder(ctx context.Context, orderID int64, amountCents int64, reference, channel, notifyID string) (*SettleResult, error) {
	logger.EnterMethod("paymentService.SettlePayment", "orderID", orderID, "amount", amountCents, "channel", channel)

	var applied bool
	o, err := s.withOrder(ctx, orderID, func(repos *repository.Repositories, o *domain.Order, fx *effects) error {
		var err error
		applied, err = s.settle(ctx, repos, fx, o, amountCents, reference, channel)
		if err != nil {
			return err
		}
		fx.markSeen(notifyID)
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("paymentService.SettlePayment", err, "orderID", orderID)
		return nil, err
	}

	logger.ExitMethod("paymentService.SettlePayment", "orderNo", o.OrderNo, "applied", applied)
	return &SettleResult{Order: o, Applied: applied}, nil
}

func (s *paymentService) HandleNotify(ctx context.Context, params url.Values) string {
	res := s.record(ctx, domain.ChannelNotify, params)
	if res.ack {
		return replySuccess
	}
	return replyFailure
}

func (s *paymentService) HandleReturn(ctx context.Context, params url.Values) string {
	res := s.record(ctx, domain.ChannelReturn, params)

	q := url.Values{}
	q.Set("orderNo", res.orderNo)
	q.Set("paid", strconv.FormatBool(res.paid))
	return s.frontendURL + "?" + q.Encode()
}

func (s *paymentService) ReplayCallback(ctx context.Context, channel string, params url.Values) CallbackOutcome {
	return s.process(ctx, channel, params).outcome
}

// record journals the raw callback, processes it and stores the outcome.
func (s *paymentService) record(ctx context.Context, channel string, params url.Values) callbackResult {
	id, err := s.inbox.Record(ctx, channel, params)
	if err != nil {
		logger.Warn("Failed to journal gateway callback", "channel", channel, "error", err)
	}

	res := s.process(ctx, channel, params)

	if err == nil {
		if err := s.inbox.MarkOutcome(ctx, id, res.outcome); err != nil {
			logger.Warn("Failed to mark callback outcome", "id", id, "outcome", res.outcome, "error", err)
		}
	}
	return res
}

type callbackResult struct {
	// ack tells the gateway to stop retrying.
	ack     bool
	outcome CallbackOutcome
	orderNo string
	paid    bool
}

func (s *paymentService) process(ctx context.Context, channel string, params url.Values) callbackResult {
	logger.EnterMethod("paymentService.process", "channel", channel, "outTradeNo", params.Get("out_trade_no"))

	cb, err := s.gateway.ParseCallback(params)
	if err != nil {
		logger.Warn("Rejected gateway callback", "channel", channel, "error", err)
		return callbackResult{outcome: CallbackRejected, orderNo: params.Get("out_trade_no")}
	}
	res := callbackResult{orderNo: cb.OutTradeNo}

	if cb.AppID != s.gateway.AppID() {
		logger.Warn("Gateway callback for another app", "channel", channel, "appID", cb.AppID)
		res.outcome = CallbackRejected
		return res
	}
	// The synchronous return usually omits trade_status; a verified return
	// without one is treated as paid.
	returnWithoutStatus := channel == domain.ChannelReturn && cb.TradeStatus == ""
	if !cb.Succeeded() && !returnWithoutStatus {
		logger.Info("Ignoring non-success trade status", "orderNo", cb.OutTradeNo, "tradeStatus", cb.TradeStatus)
		res.ack, res.outcome = true, CallbackDone
		return res
	}

	if cb.NotifyID != "" {
		seen, err := s.deps.Dedup.Seen(ctx, cb.NotifyID)
		if err != nil {
			logger.Warn("Notify dedup lookup failed", "notifyID", cb.NotifyID, "error", err)
		}
		if seen {
			logger.Info("Notify already processed", "notifyID", cb.NotifyID, "orderNo", cb.OutTradeNo)
			res.ack, res.outcome, res.paid = true, CallbackDone, true
			return res
		}
	}

	amount, err := utils.ParseAmount(cb.TotalAmount)
	if err != nil {
		logger.Warn("Malformed gateway amount", "orderNo", cb.OutTradeNo, "totalAmount", cb.TotalAmount, "error", err)
		res.outcome = CallbackRejected
		return res
	}

	o, err := s.deps.Store.Repos().Orders.GetByOrderNo(ctx, cb.OutTradeNo)
	if err != nil {
		logger.Warn("Gateway callback for unresolvable order", "orderNo", cb.OutTradeNo, "error", err)
		res.outcome = classify(err)
		return res
	}

	settled, err := s.settleOrder(ctx, o.ID, amount, cb.TradeNo, channel, cb.NotifyID)
	switch {
	case err == nil:
		res.ack, res.outcome, res.paid = true, CallbackDone, true
		logger.ExitMethod("paymentService.process", "orderNo", o.OrderNo, "applied", settled.Applied)
	case errors.Is(err, domain.ErrAmountMismatch):
		logger.Warn("Gateway amount does not match order total", "orderNo", o.OrderNo,
			"expected", o.TotalAmountCents, "reported", amount, "tradeNo", cb.TradeNo)
		s.anomaly(ctx, o, amount, cb.TradeNo, channel, "amount mismatch")
		res.outcome = CallbackRejected
	case errors.Is(err, domain.ErrOrderClosed):
		logger.Warn("Payment arrived for closed order", "orderNo", o.OrderNo, "tradeNo", cb.TradeNo)
		s.closedOrderPayment(ctx, o.ID, amount, cb.TradeNo, channel)
		res.ack, res.outcome = true, CallbackDone
	default:
		logger.ExitMethodWithError("paymentService.process", err, "orderNo", o.OrderNo)
		res.outcome = classify(err)
	}
	return res
}

// classify decides whether a failed callback is worth replaying.
func classify(err error) CallbackOutcome {
	switch {
	case errors.Is(err, domain.ErrTransientStore):
		return CallbackFailed
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrConflict):
		return CallbackRejected
	}
	return CallbackFailed
}

func (s *paymentService) anomaly(ctx context.Context, o *domain.Order, amount int64, reference, channel, reason string) {
	ev := PaymentAnomaly{
		OrderNo:       o.OrderNo,
		Reference:     reference,
		Channel:       channel,
		AmountCents:   amount,
		ExpectedCents: o.TotalAmountCents,
		Reason:        reason,
		At:            s.now(),
	}
	if err := s.deps.Events.Publish(ctx, EventPaymentAnomaly, o.OrderNo, ev); err != nil {
		logger.Warn("Failed to publish payment anomaly", "orderNo", o.OrderNo, "error", err)
	}
}

// closedOrderPayment journals money received for a cancelled or rejected
// order so staff can refund it by hand.
func (s *paymentService) closedOrderPayment(ctx context.Context, orderID int64, amount int64, reference, channel string) {
	o, err := s.withOrder(ctx, orderID, func(repos *repository.Repositories, o *domain.Order, fx *effects) error {
		msg := fmt.Sprintf("%s received via %s (%s) after order was %s, refund manually",
			utils.FormatCents(amount), channel, reference, o.Status)
		return s.journal(ctx, repos, fx, o, domain.OrderEventAnomaly, domain.SystemIdentity, msg)
	})
	if err != nil {
		logger.Error("Failed to journal closed-order payment", "orderID", orderID, "reference", reference, "error", err)
		return
	}
	s.anomaly(ctx, o, amount, reference, channel, "order closed")
}

// Reconcile asks the gateway about an order still awaiting payment and
// settles it when the trade succeeded. It reports whether payment was applied.
func (s *paymentService) Reconcile(ctx context.Context, orderID int64) (bool, error) {
	logger.EnterMethod("paymentService.Reconcile", "orderID", orderID)

	o, err := s.deps.Store.Repos().Orders.GetByID(ctx, orderID)
	if err != nil {
		logger.ExitMethodWithError("paymentService.Reconcile", err, "orderID", orderID)
		return false, err
	}
	if o.Status != domain.OrderStatusAwaitingPayment {
		logger.ExitMethod("paymentService.Reconcile", "orderNo", o.OrderNo, "status", o.Status)
		return false, nil
	}

	logger.ExternalServiceCall("gateway", "alipay.trade.query", "orderNo", o.OrderNo)
	trade, err := s.gateway.QueryTrade(ctx, o.OrderNo)
	logger.ExternalServiceResult("gateway", "alipay.trade.query", err)
	if err != nil {
		logger.ExitMethodWithError("paymentService.Reconcile", err, "orderNo", o.OrderNo)
		return false, err
	}
	if !trade.Succeeded() {
		logger.ExitMethod("paymentService.Reconcile", "orderNo", o.OrderNo, "tradeStatus", trade.TradeStatus)
		return false, nil
	}

	amount, err := utils.ParseAmount(trade.TotalAmount)
	if err != nil {
		logger.ExitMethodWithError("paymentService.Reconcile", err, "orderNo", o.OrderNo)
		return false, err
	}

	res, err := s.SettlePayment(ctx, o.ID, amount, trade.TradeNo, domain.ChannelQuery)
	switch {
	case errors.Is(err, domain.ErrAmountMismatch):
		s.anomaly(ctx, o, amount, trade.TradeNo, domain.ChannelQuery, "amount mismatch")
		logger.ExitMethodWithError("paymentService.Reconcile", err, "orderNo", o.OrderNo)
		return false, err
	case errors.Is(err, domain.ErrOrderClosed):
		s.closedOrderPayment(ctx, o.ID, amount, trade.TradeNo, domain.ChannelQuery)
		logger.ExitMethod("paymentService.Reconcile", "orderNo", o.OrderNo, "closed", true)
		return false, nil
	case err != nil:
		logger.ExitMethodWithError("paymentService.Reconcile", err, "orderNo", o.OrderNo)
		return false, err
	}

	logger.ExitMethod("paymentService.Reconcile", "orderNo", o.OrderNo, "applied", res.Applied)
	return res.Applied, nil
}
