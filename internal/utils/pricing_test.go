package utils

import (
	"testing"
	"time"

	"carrental-backend/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func monday(hour int) time.Time {
	return time.Date(2026, 3, 2, hour, 0, 0, 0, time.UTC)
}

func TestRentalDays(t *testing.T) {
	tests := []struct {
		name     string
		pickup   time.Time
		ret      time.Time
		expected int
	}{
		{"23 hours rounds up to one day", monday(10), monday(10).Add(23 * time.Hour), 1},
		{"exactly 24 hours", monday(10), monday(10).Add(24 * time.Hour), 1},
		{"25 hours is two days", monday(10), monday(10).Add(25 * time.Hour), 2},
		{"partial hour is dropped", monday(10), monday(10).Add(24*time.Hour + 59*time.Minute), 1},
		{"under one hour still one day", monday(10), monday(10).Add(30 * time.Minute), 1},
		{"48 hours", monday(10), monday(10).Add(48 * time.Hour), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RentalDays(tt.pickup, tt.ret))
		})
	}

	t.Run("Mon 10:00 to Tue 09:00 and Tue 11:00", func(t *testing.T) {
		tue := monday(0).AddDate(0, 0, 1)
		assert.Equal(t, 1, RentalDays(monday(10), tue.Add(9*time.Hour)))
		assert.Equal(t, 2, RentalDays(monday(10), tue.Add(11*time.Hour)))
	})
}

func TestCouponDiscount(t *testing.T) {
	t.Run("Threshold met", func(t *testing.T) {
		c := &domain.Coupon{Type: domain.CouponTypeThreshold, MinAmountCents: 30000, DiscountAmountCents: 5000}
		off, ok := CouponDiscount(c, 40000)
		assert.True(t, ok)
		assert.Equal(t, int64(5000), off)
	})

	t.Run("Threshold not met", func(t *testing.T) {
		c := &domain.Coupon{Type: domain.CouponTypeThreshold, MinAmountCents: 30000, DiscountAmountCents: 5000}
		off, ok := CouponDiscount(c, 29999)
		assert.False(t, ok)
		assert.Zero(t, off)
	})

	t.Run("Percentage under cap", func(t *testing.T) {
		c := &domain.Coupon{Type: domain.CouponTypePercentage, DiscountRate: decimal.RequireFromString("0.85"), MaxDiscountCents: 10000}
		off, ok := CouponDiscount(c, 40000)
		assert.True(t, ok)
		assert.Equal(t, int64(6000), off)
	})

	t.Run("Percentage capped", func(t *testing.T) {
		c := &domain.Coupon{Type: domain.CouponTypePercentage, DiscountRate: decimal.RequireFromString("0.5"), MaxDiscountCents: 8000}
		off, ok := CouponDiscount(c, 40000)
		assert.True(t, ok)
		assert.Equal(t, int64(8000), off)
	})

	t.Run("Percentage rounds half up to the cent", func(t *testing.T) {
		c := &domain.Coupon{Type: domain.CouponTypePercentage, DiscountRate: decimal.RequireFromString("0.95")}
		off, ok := CouponDiscount(c, 12345)
		assert.True(t, ok)
		assert.Equal(t, int64(617), off) // 617.25
	})

	t.Run("Percentage with out of range rate", func(t *testing.T) {
		c := &domain.Coupon{Type: domain.CouponTypePercentage, DiscountRate: decimal.RequireFromString("1.2")}
		_, ok := CouponDiscount(c, 40000)
		assert.False(t, ok)
	})

	t.Run("Flat always applies", func(t *testing.T) {
		c := &domain.Coupon{Type: domain.CouponTypeFlat, DiscountAmountCents: 2000, MinAmountCents: 999999}
		off, ok := CouponDiscount(c, 100)
		assert.True(t, ok)
		assert.Equal(t, int64(2000), off)
	})

	t.Run("No coupon", func(t *testing.T) {
		off, ok := CouponDiscount(nil, 40000)
		assert.False(t, ok)
		assert.Zero(t, off)
	})
}

func TestCalculateQuote(t *testing.T) {
	rules := DefaultPricingRules()

	t.Run("Cross-store premium booking with threshold coupon", func(t *testing.T) {
		in := QuoteInput{
			DailyPriceCents: 20000,
			PickupTime:      monday(10),
			ReturnTime:      monday(10).Add(48 * time.Hour),
			InsuranceTier:   domain.InsurancePremium,
			CrossBranch:     true,
			Coupon: &domain.Coupon{
				Type:                domain.CouponTypeThreshold,
				MinAmountCents:      30000,
				DiscountAmountCents: 5000,
			},
		}

		q := CalculateQuote(in, rules)
		assert.Equal(t, 2, q.RentalDays)
		assert.Equal(t, int64(40000), q.RentalAmountCents)
		assert.Equal(t, int64(12000), q.InsuranceCents)
		assert.Equal(t, int64(20000), q.ServiceAmountCents)
		assert.Equal(t, int64(5000), q.DiscountAmountCents)
		assert.Equal(t, int64(67000), q.TotalAmountCents)
		assert.True(t, q.CouponApplied)
	})

	t.Run("Deposit is included in the total", func(t *testing.T) {
		in := QuoteInput{
			DailyPriceCents: 20000,
			DepositCents:    100000,
			PickupTime:      monday(10),
			ReturnTime:      monday(10).Add(24 * time.Hour),
			InsuranceTier:   domain.InsuranceBasic,
		}
		q := CalculateQuote(in, rules)
		assert.Equal(t, int64(20000+100000+3000), q.TotalAmountCents)
		assert.Zero(t, q.ServiceAmountCents)
	})

	t.Run("Total floors at zero", func(t *testing.T) {
		in := QuoteInput{
			DailyPriceCents: 1000,
			PickupTime:      monday(10),
			ReturnTime:      monday(11),
			Coupon:          &domain.Coupon{Type: domain.CouponTypeFlat, DiscountAmountCents: 5000},
		}
		q := CalculateQuote(in, rules)
		assert.Zero(t, q.TotalAmountCents)
	})

	t.Run("Deterministic", func(t *testing.T) {
		in := QuoteInput{
			DailyPriceCents: 18800,
			DepositCents:    50000,
			PickupTime:      monday(9),
			ReturnTime:      monday(9).Add(73 * time.Hour),
			InsuranceTier:   domain.InsuranceBasic,
			CrossBranch:     true,
			Coupon:          &domain.Coupon{Type: domain.CouponTypePercentage, DiscountRate: decimal.RequireFromString("0.9"), MaxDiscountCents: 5000},
		}
		assert.Equal(t, CalculateQuote(in, rules), CalculateQuote(in, rules))
	})

	t.Run("Configured cross-store fee", func(t *testing.T) {
		custom := rules
		custom.CrossBranchFeeCents = 5000
		q := CalculateQuote(QuoteInput{DailyPriceCents: 10000, PickupTime: monday(8), ReturnTime: monday(20), CrossBranch: true}, custom)
		assert.Equal(t, int64(5000), q.ServiceAmountCents)
	})
}

func TestOverageCents(t *testing.T) {
	rules := DefaultPricingRules()
	scheduled := monday(10)

	t.Run("Three hours late at 240 a day", func(t *testing.T) {
		assert.Equal(t, int64(3000), OverageCents(24000, scheduled, scheduled.Add(3*time.Hour), rules))
	})

	t.Run("Started hour is billed", func(t *testing.T) {
		assert.Equal(t, int64(1000), OverageCents(24000, scheduled, scheduled.Add(1*time.Minute), rules))
	})

	t.Run("On time", func(t *testing.T) {
		assert.Zero(t, OverageCents(24000, scheduled, scheduled, rules))
		assert.Zero(t, OverageCents(24000, scheduled, scheduled.Add(-time.Hour), rules))
	})

	t.Run("Hourly rate rounds to the cent", func(t *testing.T) {
		// 199.99 / 24 = 8.332916 -> 8.33
		assert.Equal(t, int64(833*2), OverageCents(19999, scheduled, scheduled.Add(2*time.Hour), rules))
	})

	t.Run("Configured divisor", func(t *testing.T) {
		custom := rules
		custom.OverageHourDivisor = 12
		assert.Equal(t, int64(2000), OverageCents(24000, scheduled, scheduled.Add(time.Hour), custom))
	})
}

func TestLoyaltyPoints(t *testing.T) {
	rules := DefaultPricingRules()
	assert.Equal(t, int64(67), LoyaltyPoints(67000, rules))
	assert.Equal(t, int64(67), LoyaltyPoints(67999, rules))
	assert.Zero(t, LoyaltyPoints(999, rules))
	assert.Zero(t, LoyaltyPoints(-100, rules))
}

func TestAmounts(t *testing.T) {
	assert.Equal(t, "670.00", FormatCents(67000))
	assert.Equal(t, "0.01", FormatCents(1))

	cents, err := ParseAmount("670.00")
	require.NoError(t, err)
	assert.Equal(t, int64(67000), cents)

	cents, err = ParseAmount("12.3")
	require.NoError(t, err)
	assert.Equal(t, int64(1230), cents)

	_, err = ParseAmount("1.001")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = ParseAmount("abc")
	assert.ErrorIs(t, err, domain.ErrValidation)

	cents, err = ParseAmount("100000000.00")
	require.NoError(t, err)
	assert.Equal(t, MaxAmountCents, cents)

	for _, bad := range []string{"-670.00", "-0.01", "1e30", "100000000.01"} {
		_, err = ParseAmount(bad)
		assert.ErrorIs(t, err, domain.ErrValidation, bad)
	}
}
