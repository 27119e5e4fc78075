package domain

import "time"

// OrderStatus is the numeric order lifecycle code persisted in orders.status.
type OrderStatus int

const (
	OrderStatusCancelled          OrderStatus = 0
	OrderStatusPendingReview      OrderStatus = 1
	OrderStatusRejected           OrderStatus = 2
	OrderStatusAwaitingPayment    OrderStatus = 3
	OrderStatusAwaitingPickup     OrderStatus = 4
	OrderStatusInUse              OrderStatus = 5
	OrderStatusAwaitingReturn     OrderStatus = 6
	OrderStatusAwaitingSettlement OrderStatus = 7
	OrderStatusCompleted          OrderStatus = 8
	OrderStatusRefunded           OrderStatus = 10
)

var orderStatusNames = map[OrderStatus]string{
	OrderStatusCancelled:          "CANCELLED",
	OrderStatusPendingReview:      "PENDING_REVIEW",
	OrderStatusRejected:           "REJECTED",
	OrderStatusAwaitingPayment:    "AWAITING_PAYMENT",
	OrderStatusAwaitingPickup:     "AWAITING_PICKUP",
	OrderStatusInUse:              "IN_USE",
	OrderStatusAwaitingReturn:     "AWAITING_RETURN",
	OrderStatusAwaitingSettlement: "AWAITING_SETTLEMENT",
	OrderStatusCompleted:          "COMPLETED",
	OrderStatusRefunded:           "REFUNDED",
}

func (s OrderStatus) String() string {
	if name, ok := orderStatusNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// AllOrderStatuses lists every status in code order.
func AllOrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusCancelled,
		OrderStatusPendingReview,
		OrderStatusRejected,
		OrderStatusAwaitingPayment,
		OrderStatusAwaitingPickup,
		OrderStatusInUse,
		OrderStatusAwaitingReturn,
		OrderStatusAwaitingSettlement,
		OrderStatusCompleted,
		OrderStatusRefunded,
	}
}

var validNext = map[OrderStatus][]OrderStatus{
	OrderStatusPendingReview:      {OrderStatusAwaitingPayment, OrderStatusRejected, OrderStatusCancelled},
	OrderStatusAwaitingPayment:    {OrderStatusAwaitingPickup, OrderStatusCancelled},
	OrderStatusAwaitingPickup:     {OrderStatusInUse, OrderStatusCancelled},
	OrderStatusInUse:              {OrderStatusAwaitingReturn, OrderStatusAwaitingSettlement},
	OrderStatusAwaitingReturn:     {OrderStatusAwaitingSettlement},
	OrderStatusAwaitingSettlement: {OrderStatusCompleted, OrderStatusRefunded},
	OrderStatusCompleted:          {OrderStatusRefunded},
	OrderStatusRefunded:           {OrderStatusRefunded},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to OrderStatus) bool {
	for _, s := range validNext[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsSettled reports whether payment has already been applied to an order in this status.
func (s OrderStatus) IsSettled() bool {
	switch s {
	case OrderStatusAwaitingPickup, OrderStatusInUse, OrderStatusAwaitingReturn,
		OrderStatusAwaitingSettlement, OrderStatusCompleted, OrderStatusRefunded:
		return true
	}
	return false
}

// IsClosed reports whether the order ended without fulfillment.
func (s OrderStatus) IsClosed() bool {
	return s == OrderStatusCancelled || s == OrderStatusRejected
}

type InsuranceTier string

const (
	InsuranceNone    InsuranceTier = "none"
	InsuranceBasic   InsuranceTier = "basic"
	InsurancePremium InsuranceTier = "premium"
)

func (t InsuranceTier) Valid() bool {
	switch t {
	case InsuranceNone, InsuranceBasic, InsurancePremium:
		return true
	}
	return false
}

type PaymentMethod int

const (
	PaymentMethodNone    PaymentMethod = 0
	PaymentMethodWechat  PaymentMethod = 1
	PaymentMethodAlipay  PaymentMethod = 2
	PaymentMethodCard    PaymentMethod = 3
	PaymentMethodBalance PaymentMethod = 4
)

// Channel returns the funds-flow channel name for the method.
func (m PaymentMethod) Channel() string {
	switch m {
	case PaymentMethodWechat:
		return "wechat"
	case PaymentMethodAlipay:
		return "alipay"
	case PaymentMethodCard:
		return "card"
	case PaymentMethodBalance:
		return "balance"
	}
	return "offline"
}

type Order struct {
	ID      int64  `json:"id"`
	OrderNo string `json:"order_no"`

	// Customer snapshot taken at creation.
	UserID    int64  `json:"user_id"`
	UserName  string `json:"user_name"`
	UserPhone string `json:"user_phone"`

	VehicleID    int64  `json:"vehicle_id"`
	VehicleName  string `json:"vehicle_name"`
	VehiclePlate string `json:"vehicle_plate"`

	PickupBranchID int64 `json:"pickup_branch_id"`
	ReturnBranchID int64 `json:"return_branch_id"`

	PickupTime       time.Time  `json:"pickup_time"`
	ReturnTime       time.Time  `json:"return_time"`
	ActualPickupTime *time.Time `json:"actual_pickup_time,omitempty"`
	ActualReturnTime *time.Time `json:"actual_return_time,omitempty"`

	RentalDays          int           `json:"rental_days"`
	DailyPriceCents     int64         `json:"daily_price_cents"`
	RentalAmountCents   int64         `json:"rental_amount_cents"`
	DepositCents        int64         `json:"deposit_cents"`
	InsuranceTier       InsuranceTier `json:"insurance_tier"`
	InsuranceCents      int64         `json:"insurance_cents"`
	ServiceAmountCents  int64         `json:"service_amount_cents"`
	DiscountAmountCents int64         `json:"discount_amount_cents"`
	ExtraAmountCents    int64         `json:"extra_amount_cents"`
	TotalAmountCents    int64         `json:"total_amount_cents"`
	PaidAmountCents     int64         `json:"paid_amount_cents"`
	RefundAmountCents   int64         `json:"refund_amount_cents"`

	CouponID   *int64 `json:"coupon_id,omitempty"`
	CouponCode string `json:"coupon_code,omitempty"`

	Status           OrderStatus   `json:"status"`
	PaymentMethod    PaymentMethod `json:"payment_method"`
	PaymentReference string        `json:"payment_reference,omitempty"`
	PaymentTime      *time.Time    `json:"payment_time,omitempty"`

	PickupCodeHash string `json:"-"`

	PickupOdometer  *int     `json:"pickup_odometer,omitempty"`
	PickupFuelLevel *int     `json:"pickup_fuel_level,omitempty"`
	PickupEvidence  []string `json:"pickup_evidence,omitempty"`
	PickupNote      string   `json:"pickup_note,omitempty"`
	ReturnOdometer  *int     `json:"return_odometer,omitempty"`
	ReturnFuelLevel *int     `json:"return_fuel_level,omitempty"`
	ReturnEvidence  []string `json:"return_evidence,omitempty"`
	ReturnNote      string   `json:"return_note,omitempty"`

	ReviewReason string     `json:"review_reason,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`
	CancelTime   *time.Time `json:"cancel_time,omitempty"`

	Rating     *int       `json:"rating,omitempty"`
	ReviewText string     `json:"review_text,omitempty"`
	ReviewTime *time.Time `json:"review_time,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RefundableCents is what can still be returned to the customer.
func (o *Order) RefundableCents() int64 {
	return o.PaidAmountCents - o.RefundAmountCents
}

// BookingRequest is the customer's reservation input.
type BookingRequest struct {
	VehicleID      int64         `json:"vehicle_id"`
	PickupBranchID int64         `json:"pickup_branch_id"`
	ReturnBranchID int64         `json:"return_branch_id"`
	PickupTime     time.Time     `json:"pickup_time"`
	ReturnTime     time.Time     `json:"return_time"`
	InsuranceTier  InsuranceTier `json:"insurance_tier"`
	CouponID       *int64        `json:"coupon_id,omitempty"`
}

// PickupRecord is captured by staff when the customer collects the vehicle.
type PickupRecord struct {
	Odometer   int      `json:"odometer"`
	FuelLevel  int      `json:"fuel_level"`
	Evidence   []string `json:"evidence"`
	Note       string   `json:"note"`
	PickupCode string   `json:"pickup_code,omitempty"`
}

// ReturnRecord is captured by staff when the vehicle comes back.
type ReturnRecord struct {
	Odometer  int      `json:"odometer"`
	FuelLevel int      `json:"fuel_level"`
	Evidence  []string `json:"evidence"`
	Note      string   `json:"note"`
}

type OrderFilter struct {
	UserID   *int64
	Status   *OrderStatus
	Page     int32
	PageSize int32
}

// OrderStats aggregates the order book for the admin dashboard.
type OrderStats struct {
	CountByStatus     map[OrderStatus]int64 `json:"count_by_status"`
	PaidAmountCents   int64                 `json:"paid_amount_cents"`
	RefundAmountCents int64                 `json:"refund_amount_cents"`
}
