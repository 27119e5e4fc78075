package domain

import "time"

type SettlementKind string

const (
	SettlementPayment SettlementKind = "payment"
	SettlementRefund  SettlementKind = "refund"
)

// Settlement channels record where a money movement was observed.
const (
	ChannelNotify     = "notify"
	ChannelReturn     = "return"
	ChannelQuery      = "query"
	ChannelAfterSales = "after_sales"
	ChannelCancel     = "cancel"
)

// SettlementEvent is the single source of truth that money moved for an order.
// (OrderID, ExternalReference) is unique.
type SettlementEvent struct {
	ID                int64          `json:"id"`
	OrderID           int64          `json:"order_id"`
	ExternalReference string         `json:"external_reference"`
	Kind              SettlementKind `json:"kind"`
	AmountCents       int64          `json:"amount_cents"`
	Channel           string         `json:"channel"`
	CreatedAt         time.Time      `json:"created_at"`
}

type FundsFlowType string

const (
	FundsFlowIncome FundsFlowType = "income"
	FundsFlowRefund FundsFlowType = "refund"
)

type FundsFlowEntry struct {
	ID           int64         `json:"id"`
	FlowNo       string        `json:"flow_no"`
	OrderID      int64         `json:"order_id"`
	OrderNo      string        `json:"order_no"`
	Type         FundsFlowType `json:"type"`
	AmountCents  int64         `json:"amount_cents"`
	Channel      string        `json:"channel"`
	OperatorID   int64         `json:"operator_id"`
	OperatorName string        `json:"operator_name"`
	Remark       string        `json:"remark"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Order event types written to the order event log.
const (
	OrderEventCreated    = "created"
	OrderEventReviewed   = "reviewed"
	OrderEventPaid       = "paid"
	OrderEventPickup     = "pickup"
	OrderEventReturn     = "return"
	OrderEventComplete   = "complete"
	OrderEventCancel     = "cancel"
	OrderEventRefund     = "refund"
	OrderEventReview     = "review"
	OrderEventOverdue    = "overdue"
	OrderEventAfterSales = "after_sales"
	OrderEventAnomaly    = "payment_anomaly"
)

type OrderEventLog struct {
	ID           int64     `json:"id"`
	OrderID      int64     `json:"order_id"`
	OrderNo      string    `json:"order_no"`
	EventType    string    `json:"event_type"`
	Stage        string    `json:"stage"`
	OperatorID   int64     `json:"operator_id"`
	OperatorName string    `json:"operator_name"`
	OperatorRole Role      `json:"operator_role"`
	Message      string    `json:"message"`
	CreatedAt    time.Time `json:"created_at"`
}
