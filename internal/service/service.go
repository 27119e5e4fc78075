package service

import (
	"context"
	"net/url"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/gateway"
	"carrental-backend/internal/repository"
	"carrental-backend/internal/utils"
)

type OrderService interface {
	Quote(ctx context.Context, req domain.BookingRequest) (*utils.Quote, error)
	Create(ctx context.Context, actor domain.Identity, req domain.BookingRequest) (*CreateResult, error)
	Approve(ctx context.Context, actor domain.Identity, orderID int64) (*domain.Order, error)
	Reject(ctx context.Context, actor domain.Identity, orderID int64, reason string) (*domain.Order, error)
	RecordPickup(ctx context.Context, actor domain.Identity, orderID int64, rec domain.PickupRecord) (*domain.Order, error)
	RecordReturn(ctx context.Context, actor domain.Identity, orderID int64, rec domain.ReturnRecord) (*domain.Order, error)
	Complete(ctx context.Context, actor domain.Identity, orderID int64) (*domain.Order, error)
	Cancel(ctx context.Context, actor domain.Identity, orderID int64, reason string) (*domain.Order, error)
	Review(ctx context.Context, actor domain.Identity, orderID int64, rating int, text string) (*domain.Order, error)
	Get(ctx context.Context, actor domain.Identity, orderID int64) (*domain.Order, error)
	GetStatus(ctx context.Context, actor domain.Identity, orderID int64) (domain.OrderStatus, error)
	ListMine(ctx context.Context, actor domain.Identity, page, pageSize int32) ([]domain.Order, int32, error)
	ListAll(ctx context.Context, actor domain.Identity, filter domain.OrderFilter) ([]domain.Order, int32, error)
	Stats(ctx context.Context, actor domain.Identity) (*domain.OrderStats, error)
	MarkOverdue(ctx context.Context, now time.Time) (int, error)
	ExpireUnpaid(ctx context.Context, cutoff time.Time) (int, error)
}

type PaymentService interface {
	CreatePaymentForm(ctx context.Context, actor domain.Identity, orderID int64) (string, error)
	SettlePayment(ctx context.Context, orderID int64, amountCents int64, reference, channel string) (*SettleResult, error)
	// HandleNotify processes an asynchronous gateway notification and returns
	// the plain-text reply the gateway expects ("success" or "failure").
	HandleNotify(ctx context.Context, params url.Values) string
	// HandleReturn processes the synchronous browser return and yields the
	// front-end URL to redirect to.
	HandleReturn(ctx context.Context, params url.Values) string
	Reconcile(ctx context.Context, orderID int64) (bool, error)
	ReplayCallback(ctx context.Context, channel string, params url.Values) CallbackOutcome
}

type AfterSalesService interface {
	Open(ctx context.Context, actor domain.Identity, req domain.OpenCaseRequest) (*domain.AfterSalesCase, error)
	Audit(ctx context.Context, actor domain.Identity, caseID int64, req domain.AuditRequest) (*domain.AfterSalesCase, error)
	Get(ctx context.Context, actor domain.Identity, caseID int64) (*domain.AfterSalesCase, error)
	ListMine(ctx context.Context, actor domain.Identity) ([]domain.AfterSalesCase, error)
	ListByStatus(ctx context.Context, actor domain.Identity, status *domain.AfterSalesStatus, page, pageSize int32) ([]domain.AfterSalesCase, int32, error)
}

type CouponService interface {
	Claim(ctx context.Context, actor domain.Identity, couponID int64) (*domain.UserCouponGrant, error)
	ExpireGrants(ctx context.Context, now time.Time) (int64, error)
}

// EmailService sends customer notifications. Implementations must not block
// on delivery failures; callers treat email as best effort.
type EmailService interface {
	SendBookingConfirmation(ctx context.Context, c *domain.Customer, o *domain.Order, pickupCode string) error
	SendOrderStatusUpdate(ctx context.Context, c *domain.Customer, o *domain.Order) error
	SendRefundNotice(ctx context.Context, c *domain.Customer, o *domain.Order, amountCents int64) error
}

// EventPublisher forwards committed facts to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, eventType, key string, payload any) error
}

type CachedStatus struct {
	UserID int64              `json:"user_id"`
	Status domain.OrderStatus `json:"status"`
}

// StatusCache is a read-through cache for order status. The store stays the
// source of truth.
type StatusCache interface {
	GetOrderStatus(ctx context.Context, orderID int64) (*CachedStatus, bool, error)
	SetOrderStatus(ctx context.Context, orderID int64, st CachedStatus) error
}

// NotifyDeduper remembers gateway notify ids that were fully processed.
type NotifyDeduper interface {
	Seen(ctx context.Context, notifyID string) (bool, error)
	MarkSeen(ctx context.Context, notifyID string) error
}

type VehicleChange struct {
	VehicleID   int64                `json:"vehicle_id"`
	PlateNumber string               `json:"plate_number"`
	From        domain.VehicleStatus `json:"from"`
	To          domain.VehicleStatus `json:"to"`
	OrderID     int64                `json:"order_id,omitempty"`
	At          time.Time            `json:"at"`
}

// VehicleSignal pushes status changes to in-vehicle units.
type VehicleSignal interface {
	PublishVehicleStatus(ctx context.Context, change VehicleChange) error
}

// CallbackJournal persists raw gateway callbacks so failed ones can be replayed.
type CallbackJournal interface {
	Record(ctx context.Context, channel string, params url.Values) (uint64, error)
	MarkOutcome(ctx context.Context, id uint64, outcome CallbackOutcome) error
}

// PaymentGateway is the subset of the gateway client the payment service uses.
type PaymentGateway interface {
	AppID() string
	PagePayForm(orderNo string, amountCents int64) (string, error)
	ParseCallback(params url.Values) (*gateway.Callback, error)
	QueryTrade(ctx context.Context, orderNo string) (*gateway.TradeQueryResult, error)
}

type CallbackOutcome string

const (
	CallbackDone     CallbackOutcome = "done"
	CallbackRejected CallbackOutcome = "rejected"
	CallbackFailed   CallbackOutcome = "failed"
)

type CreateResult struct {
	Order *domain.Order `json:"order"`
	// PickupCode is returned once; only its hash is stored.
	PickupCode string `json:"pickup_code"`
}

type SettleResult struct {
	Order   *domain.Order `json:"order"`
	Applied bool          `json:"applied"`
}

// FulfillmentOptions tune store-counter behaviour.
type FulfillmentOptions struct {
	RequirePickupCode bool
	ReviewPoints      int64
}

// Deps bundles the collaborators shared by every service. Optional
// collaborators may be nil.
type Deps struct {
	Store       repository.Store
	Pricing     utils.PricingRules
	Fulfillment FulfillmentOptions
	Events      EventPublisher
	Cache       StatusCache
	Dedup       NotifyDeduper
	Vehicles    VehicleSignal
	Email       EmailService
	Now         func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Events == nil {
		d.Events = noopPublisher{}
	}
	if d.Cache == nil {
		d.Cache = noopCache{}
	}
	if d.Dedup == nil {
		d.Dedup = noopDeduper{}
	}
	if d.Vehicles == nil {
		d.Vehicles = noopVehicleSignal{}
	}
	if d.Email == nil {
		d.Email = noopEmail{}
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.Fulfillment.ReviewPoints == 0 {
		d.Fulfillment.ReviewPoints = 10
	}
	return d
}

type noopPublisher struct{}

func (noopPublisher) Publish(ctx context.Context, eventType, key string, payload any) error { return nil }

type noopCache struct{}

func (noopCache) GetOrderStatus(ctx context.Context, orderID int64) (*CachedStatus, bool, error) {
	return nil, false, nil
}
func (noopCache) SetOrderStatus(ctx context.Context, orderID int64, st CachedStatus) error { return nil }

type noopDeduper struct{}

func (noopDeduper) Seen(ctx context.Context, notifyID string) (bool, error) { return false, nil }
func (noopDeduper) MarkSeen(ctx context.Context, notifyID string) error     { return nil }

type noopVehicleSignal struct{}

func (noopVehicleSignal) PublishVehicleStatus(ctx context.Context, change VehicleChange) error {
	return nil
}

type noopEmail struct{}

func (noopEmail) SendBookingConfirmation(ctx context.Context, c *domain.Customer, o *domain.Order, pickupCode string) error {
	return nil
}
func (noopEmail) SendOrderStatusUpdate(ctx context.Context, c *domain.Customer, o *domain.Order) error {
	return nil
}
func (noopEmail) SendRefundNotice(ctx context.Context, c *domain.Customer, o *domain.Order, amountCents int64) error {
	return nil
}

type noopJournal struct{}

func (noopJournal) Record(ctx context.Context, channel string, params url.Values) (uint64, error) {
	return 0, nil
}
func (noopJournal) MarkOutcome(ctx context.Context, id uint64, outcome CallbackOutcome) error {
	return nil
}
