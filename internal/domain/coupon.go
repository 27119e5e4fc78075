package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CouponType int

const (
	CouponTypeThreshold  CouponType = 1 // spend at least MinAmountCents, save DiscountAmountCents
	CouponTypePercentage CouponType = 2 // pay DiscountRate of the rental, capped at MaxDiscountCents
	CouponTypeFlat       CouponType = 3
)

type Coupon struct {
	ID                  int64           `json:"id"`
	Code                string          `json:"code"`
	Name                string          `json:"name"`
	Type                CouponType      `json:"type"`
	MinAmountCents      int64           `json:"min_amount_cents"`
	DiscountAmountCents int64           `json:"discount_amount_cents"`
	DiscountRate        decimal.Decimal `json:"discount_rate"`
	MaxDiscountCents    int64           `json:"max_discount_cents"` // 0 means uncapped
	TotalCount          int             `json:"total_count"`        // 0 means unlimited
	UsedCount           int             `json:"used_count"`
	PerUserLimit        int             `json:"per_user_limit"` // 0 means unlimited
	StartTime           time.Time       `json:"start_time"`
	EndTime             time.Time       `json:"end_time"`
	MembershipRequired  int             `json:"membership_required"`
	Enabled             bool            `json:"enabled"`
}

// ActiveAt reports whether the coupon is enabled and inside its eligibility window.
func (c *Coupon) ActiveAt(now time.Time) bool {
	if !c.Enabled {
		return false
	}
	if !c.StartTime.IsZero() && now.Before(c.StartTime) {
		return false
	}
	if !c.EndTime.IsZero() && now.After(c.EndTime) {
		return false
	}
	return true
}

// Exhausted reports whether the coupon hit its global usage cap.
func (c *Coupon) Exhausted() bool {
	return c.TotalCount > 0 && c.UsedCount >= c.TotalCount
}

type GrantStatus int

const (
	GrantStatusUnused  GrantStatus = 0
	GrantStatusUsed    GrantStatus = 1
	GrantStatusExpired GrantStatus = 2
)

// UserCouponGrant is one coupon instance held by a customer.
type UserCouponGrant struct {
	ID        int64       `json:"id"`
	UserID    int64       `json:"user_id"`
	CouponID  int64       `json:"coupon_id"`
	OrderID   *int64      `json:"order_id,omitempty"`
	Status    GrantStatus `json:"status"`
	UsedAt    *time.Time  `json:"used_at,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}
