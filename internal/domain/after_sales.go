package domain

import "time"

type AfterSalesType int

const (
	AfterSalesRepair    AfterSalesType = 1
	AfterSalesRefund    AfterSalesType = 2
	AfterSalesComplaint AfterSalesType = 3
	AfterSalesOther     AfterSalesType = 4
)

func (t AfterSalesType) Valid() bool {
	return t >= AfterSalesRepair && t <= AfterSalesOther
}

type AfterSalesStatus int

const (
	AfterSalesPending   AfterSalesStatus = 1
	AfterSalesApproved  AfterSalesStatus = 2
	AfterSalesRejected  AfterSalesStatus = 3
	AfterSalesCompleted AfterSalesStatus = 4
	AfterSalesRefunding AfterSalesStatus = 5
)

// Active reports whether a case in this status blocks opening another one.
func (s AfterSalesStatus) Active() bool {
	return s == AfterSalesPending || s == AfterSalesApproved || s == AfterSalesRefunding
}

type AfterSalesCase struct {
	ID                   int64            `json:"id"`
	CaseNo               string           `json:"case_no"`
	OrderID              int64            `json:"order_id"`
	OrderNo              string           `json:"order_no"`
	UserID               int64            `json:"user_id"`
	Type                 AfterSalesType   `json:"type"`
	Reason               string           `json:"reason"`
	Description          string           `json:"description"`
	RequestedAmountCents int64            `json:"requested_amount_cents"`
	ApprovedAmountCents  int64            `json:"approved_amount_cents"`
	Evidence             []string         `json:"evidence,omitempty"`
	Status               AfterSalesStatus `json:"status"`
	AuditorID            *int64           `json:"auditor_id,omitempty"`
	AuditorName          string           `json:"auditor_name,omitempty"`
	AuditTime            *time.Time       `json:"audit_time,omitempty"`
	AuditRemark          string           `json:"audit_remark,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

type OpenCaseRequest struct {
	OrderID              int64          `json:"order_id"`
	Type                 AfterSalesType `json:"type"`
	Reason               string         `json:"reason"`
	Description          string         `json:"description"`
	RequestedAmountCents int64          `json:"requested_amount_cents"`
	Evidence             []string       `json:"evidence"`
}

type AuditDecision string

const (
	AuditApprove AuditDecision = "approve"
	AuditReject  AuditDecision = "reject"
)

type AuditRequest struct {
	Decision            AuditDecision `json:"decision"`
	ApprovedAmountCents int64         `json:"approved_amount_cents"`
	Remark              string        `json:"remark"`
}
