package utils

import (
	"time"

	"carrental-backend/internal/domain"

	"github.com/shopspring/decimal"
)

const hoursPerDay = 24

// PricingRules holds the store-configurable pricing constants.
type PricingRules struct {
	InsuranceBasicPerDayCents   int64
	InsurancePremiumPerDayCents int64
	CrossBranchFeeCents         int64
	OverageHourDivisor          int64
	LoyaltyPointDivisor         int64
}

// DefaultPricingRules returns the standard tariff: 30/60 per day insurance,
// 200 cross-store fee, overage billed per hour at a 24th of the daily price,
// one loyalty point per 10 spent.
func DefaultPricingRules() PricingRules {
	return PricingRules{
		InsuranceBasicPerDayCents:   3000,
		InsurancePremiumPerDayCents: 6000,
		CrossBranchFeeCents:         20000,
		OverageHourDivisor:          24,
		LoyaltyPointDivisor:         10,
	}
}

// QuoteInput carries everything the calculator needs. It never touches storage.
type QuoteInput struct {
	DailyPriceCents int64
	DepositCents    int64
	PickupTime      time.Time
	ReturnTime      time.Time
	InsuranceTier   domain.InsuranceTier
	Coupon          *domain.Coupon
	CrossBranch     bool
}

// Quote is the itemized price of a booking
type Quote struct {
	RentalDays          int   `json:"rental_days"`
	DailyPriceCents     int64 `json:"daily_price_cents"`
	RentalAmountCents   int64 `json:"rental_amount_cents"`
	DepositCents        int64 `json:"deposit_cents"`
	InsuranceCents      int64 `json:"insurance_cents"`
	ServiceAmountCents  int64 `json:"service_amount_cents"`
	DiscountAmountCents int64 `json:"discount_amount_cents"`
	TotalAmountCents    int64 `json:"total_amount_cents"`
	CouponApplied       bool  `json:"coupon_applied"`
}

// RentalDays returns max(1, ceil(wholeHours/24)). Partial hours are dropped
// before rounding to days.
func RentalDays(pickup, ret time.Time) int {
	hours := int64(ret.Sub(pickup) / time.Hour)
	days := (hours + hoursPerDay - 1) / hoursPerDay
	if days < 1 {
		days = 1
	}
	return int(days)
}

// InsurancePerDay returns the daily insurance charge for a tier.
func InsurancePerDay(tier domain.InsuranceTier, rules PricingRules) int64 {
	switch tier {
	case domain.InsuranceBasic:
		return rules.InsuranceBasicPerDayCents
	case domain.InsurancePremium:
		return rules.InsurancePremiumPerDayCents
	default:
		return 0
	}
}

// CouponDiscount computes the discount a coupon grants on the rental amount.
// The second return value is false when the coupon does not apply.
func CouponDiscount(c *domain.Coupon, rentalCents int64) (int64, bool) {
	if c == nil {
		return 0, false
	}

	switch c.Type {
	case domain.CouponTypeThreshold:
		if rentalCents < c.MinAmountCents {
			return 0, false
		}
		return c.DiscountAmountCents, true

	case domain.CouponTypePercentage:
		if !c.DiscountRate.IsPositive() || c.DiscountRate.GreaterThan(decimal.NewFromInt(1)) {
			return 0, false
		}
		off := decimal.NewFromInt(rentalCents).
			Mul(decimal.NewFromInt(1).Sub(c.DiscountRate)).
			Round(0).
			IntPart()
		if c.MaxDiscountCents > 0 && off > c.MaxDiscountCents {
			off = c.MaxDiscountCents
		}
		return off, true

	case domain.CouponTypeFlat:
		return c.DiscountAmountCents, true
	}

	return 0, false
}

// CalculateQuote prices a booking. The same function backs both the public
// quote endpoint and order creation, so the two always agree.
func CalculateQuote(in QuoteInput, rules PricingRules) Quote {
	days := RentalDays(in.PickupTime, in.ReturnTime)
	rental := in.DailyPriceCents * int64(days)
	insurance := InsurancePerDay(in.InsuranceTier, rules) * int64(days)

	var service int64
	if in.CrossBranch {
		service = rules.CrossBranchFeeCents
	}

	discount, applied := CouponDiscount(in.Coupon, rental)

	total := rental + in.DepositCents + insurance + service - discount
	if total < 0 {
		total = 0
	}

	return Quote{
		RentalDays:          days,
		DailyPriceCents:     in.DailyPriceCents,
		RentalAmountCents:   rental,
		DepositCents:        in.DepositCents,
		InsuranceCents:      insurance,
		ServiceAmountCents:  service,
		DiscountAmountCents: discount,
		TotalAmountCents:    total,
		CouponApplied:       applied,
	}
}

// OverageCents bills every started hour past the scheduled return at
// dailyPrice/divisor, with the hourly rate rounded half-up to the cent.
func OverageCents(dailyPriceCents int64, scheduled, actual time.Time, rules PricingRules) int64 {
	if !actual.After(scheduled) {
		return 0
	}

	late := actual.Sub(scheduled)
	hours := int64(late / time.Hour)
	if late%time.Hour != 0 {
		hours++
	}

	divisor := rules.OverageHourDivisor
	if divisor <= 0 {
		divisor = hoursPerDay
	}
	hourly := decimal.NewFromInt(dailyPriceCents).
		Div(decimal.NewFromInt(divisor)).
		Round(0).
		IntPart()

	return hourly * hours
}

// LoyaltyPoints awards one point per LoyaltyPointDivisor currency units.
func LoyaltyPoints(totalCents int64, rules PricingRules) int64 {
	divisor := rules.LoyaltyPointDivisor
	if divisor <= 0 {
		divisor = 10
	}
	if totalCents <= 0 {
		return 0
	}
	return totalCents / (100 * divisor)
}

// FormatCents renders cents as a 2-decimal amount string, e.g. 67000 -> "670.00".
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// MaxAmountCents is the largest single trade the gateway accepts (100,000,000.00).
const MaxAmountCents int64 = 10_000_000_000

// ParseAmount converts a decimal amount string into cents. Amounts with more
// than two fractional digits are rejected rather than rounded, as are
// negative amounts and anything above MaxAmountCents.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, domain.Validationf("invalid amount %q", s)
	}
	if d.IsNegative() {
		return 0, domain.Validationf("amount %q is negative", s)
	}
	cents := d.Shift(2)
	if cents.GreaterThan(decimal.NewFromInt(MaxAmountCents)) {
		return 0, domain.Validationf("amount %q exceeds the gateway limit", s)
	}
	if !cents.Equal(cents.Truncate(0)) {
		return 0, domain.Validationf("amount %q has sub-cent precision", s)
	}
	return cents.IntPart(), nil
}
