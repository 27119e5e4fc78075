package service

import (
	"testing"

	"carrental-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func refundRequest(orderID, amount int64) domain.OpenCaseRequest {
	return domain.OpenCaseRequest{
		OrderID:              orderID,
		Type:                 domain.AfterSalesRefund,
		Reason:               "air conditioning",
		Description:          "The air conditioning failed on the second day.",
		RequestedAmountCents: amount,
		Evidence:             []string{"cases/ac.jpg"},
	}
}

func TestOpenCase(t *testing.T) {
	f := newFixture(t)
	done := f.completedOrder(t)

	t.Run("unpaid order", func(t *testing.T) {
		o := f.store.PutOrder(domain.Order{OrderNo: "CR-UNPAID", UserID: f.customer.ID, Status: domain.OrderStatusCompleted})
		_, err := f.afterSales.Open(f.ctx, f.owner(), refundRequest(o.ID, 100))
		assert.ErrorIs(t, err, domain.ErrInvalidOrderState)
	})

	tests := []struct {
		name    string
		actor   domain.Identity
		mutate  func(r *domain.OpenCaseRequest)
		wantErr error
	}{
		{"unknown type", f.owner(), func(r *domain.OpenCaseRequest) { r.Type = 9 }, domain.ErrValidation},
		{"another customer", identityOf(f.other), func(r *domain.OpenCaseRequest) {}, domain.ErrForbidden},
		{"staff cannot open", staff, func(r *domain.OpenCaseRequest) {}, domain.ErrForbidden},
		{"short description", f.owner(), func(r *domain.OpenCaseRequest) { r.Description = "  broken   " }, domain.ErrValidation},
		{"zero refund", f.owner(), func(r *domain.OpenCaseRequest) { r.RequestedAmountCents = 0 }, domain.ErrValidation},
		{"refund above paid", f.owner(), func(r *domain.OpenCaseRequest) { r.RequestedAmountCents = done.PaidAmountCents + 1 }, domain.ErrValidation},
		{"unknown order", f.owner(), func(r *domain.OpenCaseRequest) { r.OrderID = 424242 }, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := refundRequest(done.ID, 20000)
			tt.mutate(&req)
			_, err := f.afterSales.Open(f.ctx, tt.actor, req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	c, err := f.afterSales.Open(f.ctx, f.owner(), refundRequest(done.ID, done.PaidAmountCents))
	require.NoError(t, err)
	assert.Equal(t, domain.AfterSalesPending, c.Status)
	assert.Equal(t, done.OrderNo, c.OrderNo)
	assert.Equal(t, f.customer.ID, c.UserID)
	assert.NotEmpty(t, c.CaseNo)

	_, err = f.afterSales.Open(f.ctx, f.owner(), domain.OpenCaseRequest{
		OrderID:     done.ID,
		Type:        domain.AfterSalesComplaint,
		Description: "Counter staff were rude at return.",
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateActiveCase)
	assert.ErrorIs(t, err, domain.ErrConflict)

	assert.Contains(t, f.journalTypes(t, done.ID), domain.OrderEventAfterSales)
}

func TestAuditRefund(t *testing.T) {
	f := newFixture(t)
	done := f.completedOrder(t)
	c, err := f.afterSales.Open(f.ctx, f.owner(), refundRequest(done.ID, 30000))
	require.NoError(t, err)

	t.Run("customer cannot audit", func(t *testing.T) {
		_, err := f.afterSales.Audit(f.ctx, f.owner(), c.ID, domain.AuditRequest{Decision: domain.AuditApprove, ApprovedAmountCents: 100})
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("unknown decision", func(t *testing.T) {
		_, err := f.afterSales.Audit(f.ctx, staff, c.ID, domain.AuditRequest{Decision: "maybe"})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("refund over limit", func(t *testing.T) {
		_, err := f.afterSales.Audit(f.ctx, staff, c.ID, domain.AuditRequest{
			Decision:            domain.AuditApprove,
			ApprovedAmountCents: done.PaidAmountCents + 1,
		})
		assert.ErrorIs(t, err, domain.ErrValidation)

		pending, err := f.afterSales.Get(f.ctx, staff, c.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.AfterSalesPending, pending.Status)
		assert.Zero(t, f.reload(t, done.ID).RefundAmountCents)
	})

	audited, err := f.afterSales.Audit(f.ctx, staff, c.ID, domain.AuditRequest{
		Decision:            domain.AuditApprove,
		ApprovedAmountCents: 20000,
		Remark:              " partial ",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.AfterSalesCompleted, audited.Status)
	assert.Equal(t, int64(20000), audited.ApprovedAmountCents)
	assert.Equal(t, "partial", audited.AuditRemark)
	assert.Equal(t, staff.UserID, *audited.AuditorID)

	o := f.reload(t, done.ID)
	assert.Equal(t, domain.OrderStatusRefunded, o.Status)
	assert.Equal(t, int64(20000), o.RefundAmountCents)

	events := f.settlements(t, o.ID)
	require.Len(t, events, 2)
	assert.Equal(t, "AS-REFUND-"+c.CaseNo, events[1].ExternalReference)
	assert.Equal(t, domain.ChannelAfterSales, events[1].Channel)

	flows := f.flows(t, o.ID)
	assert.Equal(t, domain.FundsFlowRefund, flows[len(flows)-1].Type)
	assert.Contains(t, f.journalTypes(t, o.ID), domain.OrderEventRefund)

	_, err = f.afterSales.Audit(f.ctx, staff, c.ID, domain.AuditRequest{Decision: domain.AuditReject})
	assert.ErrorIs(t, err, domain.ErrInvalidCaseState)

	t.Run("second refund case on refunded order", func(t *testing.T) {
		second, err := f.afterSales.Open(f.ctx, f.owner(), refundRequest(done.ID, o.RefundableCents()))
		require.NoError(t, err)

		_, err = f.afterSales.Audit(f.ctx, staff, second.ID, domain.AuditRequest{
			Decision:            domain.AuditApprove,
			ApprovedAmountCents: o.RefundableCents(),
		})
		require.NoError(t, err)

		after := f.reload(t, done.ID)
		assert.Equal(t, domain.OrderStatusRefunded, after.Status)
		assert.Equal(t, after.PaidAmountCents, after.RefundAmountCents)

		_, err = f.afterSales.Open(f.ctx, f.owner(), refundRequest(done.ID, 1))
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestAuditOtherDecisions(t *testing.T) {
	f := newFixture(t)
	done := f.completedOrder(t)

	complaint, err := f.afterSales.Open(f.ctx, f.owner(), domain.OpenCaseRequest{
		OrderID:     done.ID,
		Type:        domain.AfterSalesComplaint,
		Description: "Counter staff were rude at return.",
	})
	require.NoError(t, err)

	rejected, err := f.afterSales.Audit(f.ctx, staff, complaint.ID, domain.AuditRequest{Decision: domain.AuditReject, Remark: "no evidence"})
	require.NoError(t, err)
	assert.Equal(t, domain.AfterSalesRejected, rejected.Status)

	repair, err := f.afterSales.Open(f.ctx, f.owner(), domain.OpenCaseRequest{
		OrderID:     done.ID,
		Type:        domain.AfterSalesRepair,
		Description: "Scratched rim noticed after pickup.",
	})
	require.NoError(t, err)

	approved, err := f.afterSales.Audit(f.ctx, staff, repair.ID, domain.AuditRequest{Decision: domain.AuditApprove})
	require.NoError(t, err)
	assert.Equal(t, domain.AfterSalesCompleted, approved.Status)
	assert.Zero(t, approved.ApprovedAmountCents)

	o := f.reload(t, done.ID)
	assert.Equal(t, domain.OrderStatusCompleted, o.Status)
	assert.Zero(t, o.RefundAmountCents)
}

func TestAuditRefundWhileInUse(t *testing.T) {
	f := newFixture(t)
	o, code := f.paidOrder(t)
	_, err := f.orders.RecordPickup(f.ctx, staff, o.ID, domain.PickupRecord{PickupCode: code})
	require.NoError(t, err)

	c, err := f.afterSales.Open(f.ctx, f.owner(), refundRequest(o.ID, 5000))
	require.NoError(t, err)
	_, err = f.afterSales.Audit(f.ctx, staff, c.ID, domain.AuditRequest{Decision: domain.AuditApprove, ApprovedAmountCents: 5000})
	require.NoError(t, err)

	after := f.reload(t, o.ID)
	assert.Equal(t, domain.OrderStatusInUse, after.Status)
	assert.Equal(t, int64(5000), after.RefundAmountCents)
}

func TestAuditRefundBeforeCompletionFreesVehicle(t *testing.T) {
	f := newFixture(t)
	o, code := f.paidOrder(t)
	_, err := f.orders.RecordPickup(f.ctx, staff, o.ID, domain.PickupRecord{Odometer: 1000, FuelLevel: 100, PickupCode: code})
	require.NoError(t, err)
	returned, err := f.orders.RecordReturn(f.ctx, staff, o.ID, domain.ReturnRecord{Odometer: 1300, FuelLevel: 90})
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusAwaitingSettlement, returned.Status)
	require.Equal(t, domain.VehicleStatusCleaning, f.vehicleStatus(t, o.VehicleID))

	c, err := f.afterSales.Open(f.ctx, f.owner(), refundRequest(o.ID, 10000))
	require.NoError(t, err)
	_, err = f.afterSales.Audit(f.ctx, staff, c.ID, domain.AuditRequest{Decision: domain.AuditApprove, ApprovedAmountCents: 10000})
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusRefunded, f.reload(t, o.ID).Status)
	assert.Equal(t, domain.VehicleStatusAvailable, f.vehicleStatus(t, o.VehicleID))

	_, err = f.orders.Complete(f.ctx, staff, o.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidOrderState)
}

func TestCaseQueries(t *testing.T) {
	f := newFixture(t)
	done := f.completedOrder(t)
	c, err := f.afterSales.Open(f.ctx, f.owner(), refundRequest(done.ID, 100))
	require.NoError(t, err)

	_, err = f.afterSales.Get(f.ctx, identityOf(f.other), c.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	got, err := f.afterSales.Get(f.ctx, f.owner(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.CaseNo, got.CaseNo)

	mine, err := f.afterSales.ListMine(f.ctx, f.owner())
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	_, _, err = f.afterSales.ListByStatus(f.ctx, f.owner(), nil, 1, 10)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	pending := domain.AfterSalesPending
	list, total, err := f.afterSales.ListByStatus(f.ctx, staff, &pending, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int32(1), total)
	assert.Len(t, list, 1)
}
