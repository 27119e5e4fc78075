package service

import (
	"sync"
	"testing"
	"time"

	"carrental-backend/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func thresholdCoupon() domain.Coupon {
	return domain.Coupon{
		Code:                "SPRING100",
		Name:                "Spring 100 off",
		Type:                domain.CouponTypeThreshold,
		MinAmountCents:      50000,
		DiscountAmountCents: 10000,
		Enabled:             true,
		EndTime:             t0.Add(30 * 24 * time.Hour),
	}
}

func TestQuote(t *testing.T) {
	f := newFixture(t)
	coupon := f.store.PutCoupon(thresholdCoupon())

	req := f.booking()
	req.ReturnBranchID = f.branch2.ID
	req.InsuranceTier = domain.InsuranceBasic
	req.CouponID = &coupon.ID

	q, err := f.orders.Quote(f.ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 3, q.RentalDays)
	assert.Equal(t, int64(72000), q.RentalAmountCents)
	assert.Equal(t, int64(9000), q.InsuranceCents)
	assert.Equal(t, int64(20000), q.ServiceAmountCents)
	assert.Equal(t, int64(10000), q.DiscountAmountCents)
	assert.Equal(t, int64(141000), q.TotalAmountCents)
	assert.True(t, q.CouponApplied)

	t.Run("disabled coupon is ignored", func(t *testing.T) {
		off := thresholdCoupon()
		off.Code = "OFF"
		off.Enabled = false
		off = f.store.PutCoupon(off)
		req.CouponID = &off.ID

		q, err := f.orders.Quote(f.ctx, req)
		require.NoError(t, err)
		assert.False(t, q.CouponApplied)
		assert.Equal(t, int64(151000), q.TotalAmountCents)
	})

	t.Run("invalid interval", func(t *testing.T) {
		bad := f.booking()
		bad.ReturnTime = bad.PickupTime
		_, err := f.orders.Quote(f.ctx, bad)
		assert.ErrorIs(t, err, domain.ErrInvalidInterval)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestCreate(t *testing.T) {
	f := newFixture(t)

	res := f.createOrder(t)
	o := res.Order

	assert.Equal(t, domain.OrderStatusPendingReview, o.Status)
	assert.Equal(t, bookingTotal, o.TotalAmountCents)
	assert.Equal(t, f.customer.Name, o.UserName)
	assert.Equal(t, f.vehicle.PlateNumber, o.VehiclePlate)
	assert.Equal(t, domain.InsuranceNone, o.InsuranceTier)
	assert.Len(t, res.PickupCode, 6)
	assert.NotEmpty(t, o.PickupCodeHash)
	assert.NotContains(t, o.PickupCodeHash, res.PickupCode)

	assert.Equal(t, domain.VehicleStatusReserved, f.vehicleStatus(t, f.vehicle.ID))
	assert.Equal(t, []string{domain.OrderEventCreated}, f.journalTypes(t, o.ID))
	assert.Contains(t, f.events.types(), EventOrderPrefix+domain.OrderEventCreated)
	assert.Contains(t, f.events.types(), EventVehicleTransition)
	assert.Equal(t, CachedStatus{UserID: f.customer.ID, Status: domain.OrderStatusPendingReview}, f.cache.entries[o.ID])

	require.Len(t, f.email.sent, 1)
	assert.Equal(t, "booking", f.email.sent[0].kind)
	assert.Equal(t, res.PickupCode, f.email.sent[0].code)

	require.Len(t, f.vehicles.changes, 1)
	assert.Equal(t, domain.VehicleStatusAvailable, f.vehicles.changes[0].From)
	assert.Equal(t, domain.VehicleStatusReserved, f.vehicles.changes[0].To)

	t.Run("vehicle already reserved", func(t *testing.T) {
		_, err := f.orders.Create(f.ctx, f.owner(), f.booking())
		assert.ErrorIs(t, err, domain.ErrVehicleUnavailable)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	closed := f.store.PutBranch(domain.Branch{Name: "Old town", Active: false})

	tests := []struct {
		name    string
		actor   domain.Identity
		mutate  func(r *domain.BookingRequest)
		wantErr error
	}{
		{"anonymous", domain.Identity{}, func(r *domain.BookingRequest) {}, domain.ErrForbidden},
		{"pickup in the past", f.owner(), func(r *domain.BookingRequest) { r.PickupTime = t0.Add(-time.Hour) }, domain.ErrInvalidInterval},
		{"return before pickup", f.owner(), func(r *domain.BookingRequest) { r.ReturnTime = r.PickupTime.Add(-time.Hour) }, domain.ErrInvalidInterval},
		{"unknown insurance", f.owner(), func(r *domain.BookingRequest) { r.InsuranceTier = "gold" }, domain.ErrValidation},
		{"missing vehicle", f.owner(), func(r *domain.BookingRequest) { r.VehicleID = 0 }, domain.ErrValidation},
		{"unknown branch", f.owner(), func(r *domain.BookingRequest) { r.ReturnBranchID = 9999 }, domain.ErrNotFound},
		{"closed branch", f.owner(), func(r *domain.BookingRequest) { r.PickupBranchID = closed.ID }, domain.ErrValidation},
		{"unknown vehicle", f.owner(), func(r *domain.BookingRequest) { r.VehicleID = 9999 }, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.booking()
			tt.mutate(&req)
			_, err := f.orders.Create(f.ctx, tt.actor, req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Equal(t, domain.VehicleStatusAvailable, f.vehicleStatus(t, f.vehicle.ID))
}

func TestCreateWithCoupon(t *testing.T) {
	f := newFixture(t)
	coupon := f.store.PutCoupon(thresholdCoupon())

	t.Run("no grant", func(t *testing.T) {
		req := f.booking()
		req.CouponID = &coupon.ID
		_, err := f.orders.Create(f.ctx, f.owner(), req)
		assert.ErrorIs(t, err, domain.ErrCouponIneligible)
		assert.Equal(t, domain.VehicleStatusAvailable, f.vehicleStatus(t, f.vehicle.ID))
	})

	t.Run("below threshold", func(t *testing.T) {
		high := thresholdCoupon()
		high.Code = "BIG"
		high.MinAmountCents = 100000
		high = f.store.PutCoupon(high)
		f.store.PutGrant(domain.UserCouponGrant{UserID: f.customer.ID, CouponID: high.ID})

		req := f.booking()
		req.CouponID = &high.ID
		_, err := f.orders.Create(f.ctx, f.owner(), req)
		assert.ErrorIs(t, err, domain.ErrCouponIneligible)

		grants := f.store.Grants(f.customer.ID, high.ID)
		require.Len(t, grants, 1)
		assert.Equal(t, domain.GrantStatusUnused, grants[0].Status)
	})

	t.Run("applied", func(t *testing.T) {
		f.store.PutGrant(domain.UserCouponGrant{UserID: f.customer.ID, CouponID: coupon.ID})
		req := f.booking()
		req.CouponID = &coupon.ID

		res, err := f.orders.Create(f.ctx, f.owner(), req)
		require.NoError(t, err)
		assert.Equal(t, bookingTotal-10000, res.Order.TotalAmountCents)
		assert.Equal(t, "SPRING100", res.Order.CouponCode)

		grants := f.store.Grants(f.customer.ID, coupon.ID)
		require.Len(t, grants, 1)
		assert.Equal(t, domain.GrantStatusUsed, grants[0].Status)
		assert.Equal(t, res.Order.ID, *grants[0].OrderID)

		c, err := f.store.Repos().Coupons.GetByID(f.ctx, coupon.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, c.UsedCount)
	})
}

func TestCreateCouponRace(t *testing.T) {
	f := newFixture(t)
	coupon := f.store.PutCoupon(thresholdCoupon())
	f.store.PutGrant(domain.UserCouponGrant{UserID: f.customer.ID, CouponID: coupon.ID})
	second := f.store.PutVehicle(domain.Vehicle{
		Name:            "Model 3",
		PlateNumber:     "ZA-67890",
		DailyPriceCents: 24000,
		DepositCents:    50000,
		Status:          domain.VehicleStatusAvailable,
	})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, vehicleID := range []int64{f.vehicle.ID, second.ID} {
		wg.Add(1)
		go func(i int, vehicleID int64) {
			defer wg.Done()
			req := f.booking()
			req.VehicleID = vehicleID
			req.CouponID = &coupon.ID
			_, errs[i] = f.orders.Create(f.ctx, f.owner(), req)
		}(i, vehicleID)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrCouponIneligible)
	}
	assert.Equal(t, 1, succeeded)

	c, err := f.store.Repos().Coupons.GetByID(f.ctx, coupon.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, c.UsedCount)

	reserved := 0
	for _, id := range []int64{f.vehicle.ID, second.ID} {
		if f.vehicleStatus(t, id) == domain.VehicleStatusReserved {
			reserved++
		}
	}
	assert.Equal(t, 1, reserved)
}

func TestApproveAndReject(t *testing.T) {
	t.Run("approve", func(t *testing.T) {
		f := newFixture(t)
		res := f.createOrder(t)

		_, err := f.orders.Approve(f.ctx, f.owner(), res.Order.ID)
		assert.ErrorIs(t, err, domain.ErrForbidden)

		o, err := f.orders.Approve(f.ctx, staff, res.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusAwaitingPayment, o.Status)
		assert.Equal(t, domain.VehicleStatusReserved, f.vehicleStatus(t, f.vehicle.ID))

		_, err = f.orders.Approve(f.ctx, staff, res.Order.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidOrderState)
	})

	t.Run("reject releases vehicle and coupon", func(t *testing.T) {
		f := newFixture(t)
		coupon := f.store.PutCoupon(thresholdCoupon())
		f.store.PutGrant(domain.UserCouponGrant{UserID: f.customer.ID, CouponID: coupon.ID})
		req := f.booking()
		req.CouponID = &coupon.ID
		res, err := f.orders.Create(f.ctx, f.owner(), req)
		require.NoError(t, err)

		o, err := f.orders.Reject(f.ctx, staff, res.Order.ID, "  licence expired ")
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusRejected, o.Status)
		assert.Equal(t, "licence expired", o.ReviewReason)
		assert.Equal(t, domain.VehicleStatusAvailable, f.vehicleStatus(t, f.vehicle.ID))

		grants := f.store.Grants(f.customer.ID, coupon.ID)
		require.Len(t, grants, 1)
		assert.Equal(t, domain.GrantStatusUnused, grants[0].Status)
		assert.Nil(t, grants[0].OrderID)

		c, err := f.store.Repos().Coupons.GetByID(f.ctx, coupon.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, c.UsedCount)

		_, err = f.orders.Cancel(f.ctx, f.owner(), o.ID, "")
		assert.ErrorIs(t, err, domain.ErrInvalidOrderState)
	})
}

func TestCancel(t *testing.T) {
	t.Run("unpaid", func(t *testing.T) {
		f := newFixture(t)
		o := f.approvedOrder(t)

		_, err := f.orders.Cancel(f.ctx, identityOf(f.other), o.ID, "")
		assert.ErrorIs(t, err, domain.ErrForbidden)

		o, err = f.orders.Cancel(f.ctx, f.owner(), o.ID, "plans changed")
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusCancelled, o.Status)
		assert.Equal(t, "plans changed", o.CancelReason)
		assert.NotNil(t, o.CancelTime)
		assert.Zero(t, o.RefundAmountCents)
		assert.Empty(t, f.settlements(t, o.ID))
		assert.Equal(t, domain.VehicleStatusAvailable, f.vehicleStatus(t, f.vehicle.ID))
	})

	t.Run("paid order is refunded", func(t *testing.T) {
		f := newFixture(t)
		paid, _ := f.paidOrder(t)

		o, err := f.orders.Cancel(f.ctx, staff, paid.ID, "no show")
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusCancelled, o.Status)
		assert.Equal(t, o.PaidAmountCents, o.RefundAmountCents)
		assert.Zero(t, o.RefundableCents())
		assert.Equal(t, domain.VehicleStatusAvailable, f.vehicleStatus(t, f.vehicle.ID))

		events := f.settlements(t, o.ID)
		require.Len(t, events, 2)
		assert.Equal(t, domain.SettlementRefund, events[1].Kind)
		assert.Equal(t, "CANCEL-REFUND-"+o.OrderNo, events[1].ExternalReference)
		assert.Equal(t, domain.ChannelCancel, events[1].Channel)

		flows := f.flows(t, o.ID)
		require.Len(t, flows, 2)
		assert.Equal(t, domain.FundsFlowRefund, flows[1].Type)
		assert.Equal(t, bookingTotal, flows[1].AmountCents)
		assert.Contains(t, f.email.kinds(), "refund")
	})

	t.Run("in use", func(t *testing.T) {
		f := newFixture(t)
		o, code := f.paidOrder(t)
		_, err := f.orders.RecordPickup(f.ctx, staff, o.ID, domain.PickupRecord{PickupCode: code})
		require.NoError(t, err)

		_, err = f.orders.Cancel(f.ctx, f.owner(), o.ID, "")
		assert.ErrorIs(t, err, domain.ErrInvalidOrderState)
		assert.Equal(t, domain.VehicleStatusRented, f.vehicleStatus(t, f.vehicle.ID))
	})
}

func TestFulfillmentLifecycle(t *testing.T) {
	f := newFixture(t)
	o, code := f.paidOrder(t)

	t.Run("wrong pickup code", func(t *testing.T) {
		_, err := f.orders.RecordPickup(f.ctx, staff, o.ID, domain.PickupRecord{PickupCode: "abcdef"})
		assert.ErrorIs(t, err, domain.ErrForbidden)
		assert.Equal(t, domain.OrderStatusAwaitingPickup, f.reload(t, o.ID).Status)
		assert.Equal(t, domain.VehicleStatusReserved, f.vehicleStatus(t, f.vehicle.ID))
	})

	t.Run("customer cannot record pickup", func(t *testing.T) {
		_, err := f.orders.RecordPickup(f.ctx, f.owner(), o.ID, domain.PickupRecord{PickupCode: code})
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	picked, err := f.orders.RecordPickup(f.ctx, staff, o.ID, domain.PickupRecord{
		Odometer:   12000,
		FuelLevel:  95,
		Evidence:   []string{"pickup/front.jpg"},
		PickupCode: code,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusInUse, picked.Status)
	assert.Equal(t, 12000, *picked.PickupOdometer)
	assert.NotNil(t, picked.ActualPickupTime)
	assert.Equal(t, domain.VehicleStatusRented, f.vehicleStatus(t, f.vehicle.ID))

	// 2h10m late at 240.00/day bills three started hours of 10.00.
	f.clock.Set(o.ReturnTime.Add(2*time.Hour + 10*time.Minute))
	returned, err := f.orders.RecordReturn(f.ctx, staff, o.ID, domain.ReturnRecord{Odometer: 12600, FuelLevel: 40})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusAwaitingSettlement, returned.Status)
	assert.Equal(t, int64(3000), returned.ExtraAmountCents)
	assert.Equal(t, bookingTotal+3000, returned.TotalAmountCents)
	assert.Equal(t, domain.VehicleStatusCleaning, f.vehicleStatus(t, f.vehicle.ID))

	done, err := f.orders.Complete(f.ctx, staff, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, done.Status)
	assert.Equal(t, domain.VehicleStatusAvailable, f.vehicleStatus(t, f.vehicle.ID))

	customer, err := f.store.Repos().Customers.GetByID(f.ctx, f.customer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(125), customer.LoyaltyPoints)

	flows := f.flows(t, o.ID)
	require.Len(t, flows, 2)
	assert.Equal(t, domain.FundsFlowIncome, flows[1].Type)
	assert.Equal(t, int64(3000), flows[1].AmountCents)
	assert.Equal(t, "offline", flows[1].Channel)

	assert.Equal(t, []string{
		domain.OrderEventCreated,
		domain.OrderEventReviewed,
		domain.OrderEventPaid,
		domain.OrderEventPickup,
		domain.OrderEventReturn,
		domain.OrderEventComplete,
	}, f.journalTypes(t, o.ID))

	logs, err := f.store.Repos().Vehicles.ListStatusLog(f.ctx, f.vehicle.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 4)

	t.Run("review", func(t *testing.T) {
		_, err := f.orders.Review(f.ctx, f.owner(), o.ID, 6, "")
		assert.ErrorIs(t, err, domain.ErrValidation)

		_, err = f.orders.Review(f.ctx, staff, o.ID, 5, "great")
		assert.ErrorIs(t, err, domain.ErrForbidden)

		reviewed, err := f.orders.Review(f.ctx, f.owner(), o.ID, 5, " great car ")
		require.NoError(t, err)
		assert.Equal(t, 5, *reviewed.Rating)
		assert.Equal(t, "great car", reviewed.ReviewText)

		_, err = f.orders.Review(f.ctx, f.owner(), o.ID, 4, "again")
		assert.ErrorIs(t, err, domain.ErrConflict)

		customer, err := f.store.Repos().Customers.GetByID(f.ctx, f.customer.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(135), customer.LoyaltyPoints)
	})
}

func TestRecordPickupRequiresCode(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Fulfillment.RequirePickupCode = true })
	o, code := f.paidOrder(t)

	_, err := f.orders.RecordPickup(f.ctx, staff, o.ID, domain.PickupRecord{Odometer: 1})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.orders.RecordPickup(f.ctx, staff, o.ID, domain.PickupRecord{Odometer: 1, PickupCode: code})
	assert.NoError(t, err)
}

func TestMarkOverdue(t *testing.T) {
	f := newFixture(t)
	o, code := f.paidOrder(t)
	_, err := f.orders.RecordPickup(f.ctx, staff, o.ID, domain.PickupRecord{PickupCode: code})
	require.NoError(t, err)

	n, err := f.orders.MarkOverdue(f.ctx, o.ReturnTime.Add(-time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.orders.MarkOverdue(f.ctx, o.ReturnTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, domain.OrderStatusAwaitingReturn, f.reload(t, o.ID).Status)
	assert.Contains(t, f.journalTypes(t, o.ID), domain.OrderEventOverdue)

	n, err = f.orders.MarkOverdue(f.ctx, o.ReturnTime.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Set(o.ReturnTime.Add(time.Hour))
	returned, err := f.orders.RecordReturn(f.ctx, staff, o.ID, domain.ReturnRecord{})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusAwaitingSettlement, returned.Status)
	assert.Equal(t, int64(1000), returned.ExtraAmountCents)
}

func TestExpireUnpaid(t *testing.T) {
	f := newFixture(t)
	pending := f.createOrder(t)
	second := f.store.PutVehicle(domain.Vehicle{Name: "Model 3", PlateNumber: "ZA-2", DailyPriceCents: 1000, Status: domain.VehicleStatusAvailable})
	req := f.booking()
	req.VehicleID = second.ID
	res, err := f.orders.Create(f.ctx, f.owner(), req)
	require.NoError(t, err)
	unpaid, err := f.orders.Approve(f.ctx, staff, res.Order.ID)
	require.NoError(t, err)

	n, err := f.orders.ExpireUnpaid(f.ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.orders.ExpireUnpaid(f.ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	expired := f.reload(t, unpaid.ID)
	assert.Equal(t, domain.OrderStatusCancelled, expired.Status)
	assert.Equal(t, "payment window expired", expired.CancelReason)
	assert.Equal(t, domain.VehicleStatusAvailable, f.vehicleStatus(t, second.ID))

	assert.Equal(t, domain.OrderStatusPendingReview, f.reload(t, pending.Order.ID).Status)
	assert.Equal(t, domain.VehicleStatusReserved, f.vehicleStatus(t, f.vehicle.ID))
}

func TestGetStatus(t *testing.T) {
	f := newFixture(t)
	res := f.createOrder(t)

	st, err := f.orders.GetStatus(f.ctx, f.owner(), res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPendingReview, st)

	_, err = f.orders.GetStatus(f.ctx, identityOf(f.other), res.Order.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	t.Run("cache miss falls back to store", func(t *testing.T) {
		delete(f.cache.entries, res.Order.ID)
		st, err := f.orders.GetStatus(f.ctx, staff, res.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusPendingReview, st)
		assert.Contains(t, f.cache.entries, res.Order.ID)
	})

	t.Run("served from cache", func(t *testing.T) {
		f.cache.entries[res.Order.ID] = CachedStatus{UserID: f.customer.ID, Status: domain.OrderStatusAwaitingPayment}
		st, err := f.orders.GetStatus(f.ctx, f.owner(), res.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusAwaitingPayment, st)
	})

	t.Run("unknown order", func(t *testing.T) {
		_, err := f.orders.GetStatus(f.ctx, staff, 424242)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestListsAndStats(t *testing.T) {
	f := newFixture(t)
	paid, _ := f.paidOrder(t)

	mine, total, err := f.orders.ListMine(f.ctx, f.owner(), 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int32(1), total)
	require.Len(t, mine, 1)
	assert.Equal(t, paid.ID, mine[0].ID)

	theirs, total, err := f.orders.ListMine(f.ctx, identityOf(f.other), 1, 20)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, theirs)

	_, _, err = f.orders.ListAll(f.ctx, f.owner(), domain.OrderFilter{})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	status := domain.OrderStatusAwaitingPickup
	all, total, err := f.orders.ListAll(f.ctx, staff, domain.OrderFilter{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, int32(1), total)
	assert.Len(t, all, 1)

	_, err = f.orders.Stats(f.ctx, f.owner())
	assert.ErrorIs(t, err, domain.ErrForbidden)

	stats, err := f.orders.Stats(f.ctx, staff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.CountByStatus[domain.OrderStatusAwaitingPickup])
	assert.Equal(t, bookingTotal, stats.PaidAmountCents)

	_, err = f.orders.Get(f.ctx, identityOf(f.other), paid.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestPercentageCouponQuote(t *testing.T) {
	f := newFixture(t)
	pct := f.store.PutCoupon(domain.Coupon{
		Code:             "NINETY",
		Type:             domain.CouponTypePercentage,
		DiscountRate:     decimal.RequireFromString("0.9"),
		MaxDiscountCents: 5000,
		Enabled:          true,
	})
	req := f.booking()
	req.CouponID = &pct.ID

	q, err := f.orders.Quote(f.ctx, req)
	require.NoError(t, err)
	// 10% of 720.00 is 72.00, capped at 50.00.
	assert.Equal(t, int64(5000), q.DiscountAmountCents)
	assert.Equal(t, bookingTotal-5000, q.TotalAmountCents)
}
