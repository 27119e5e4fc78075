package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"
	"carrental-backend/internal/security"
	"carrental-backend/internal/utils"
)

type orderService struct {
	*core
}

func NewOrderService(deps Deps) OrderService {
	return &orderService{core: newCore(deps)}
}

func (s *orderService) validateBooking(req *domain.BookingRequest) error {
	if req.VehicleID <= 0 {
		return domain.Validationf("vehicle_id is required")
	}
	if req.PickupBranchID <= 0 || req.ReturnBranchID <= 0 {
		return domain.Validationf("pickup and return branches are required")
	}
	if req.InsuranceTier == "" {
		req.InsuranceTier = domain.InsuranceNone
	}
	if !req.InsuranceTier.Valid() {
		return domain.Validationf("unknown insurance tier %q", req.InsuranceTier)
	}
	if req.PickupTime.IsZero() || req.ReturnTime.IsZero() {
		return fmt.Errorf("%w: pickup and return times are required", domain.ErrInvalidInterval)
	}
	if req.PickupTime.Before(s.now()) {
		return fmt.Errorf("%w: pickup time is in the past", domain.ErrInvalidInterval)
	}
	if !req.ReturnTime.After(req.PickupTime) {
		return fmt.Errorf("%w: return time must be after pickup time", domain.ErrInvalidInterval)
	}
	return nil
}

func (s *orderService) Quote(ctx context.Context, req domain.BookingRequest) (*utils.Quote, error) {
	logger.EnterMethod("orderService.Quote", "vehicleID", req.VehicleID)

	if err := s.validateBooking(&req); err != nil {
		logger.ExitMethodWithError("orderService.Quote", err)
		return nil, err
	}

	repos := s.deps.Store.Repos()
	vehicle, err := repos.Vehicles.GetByID(ctx, req.VehicleID)
	if err != nil {
		logger.ExitMethodWithError("orderService.Quote", err, "vehicleID", req.VehicleID)
		return nil, err
	}

	var coupon *domain.Coupon
	if req.CouponID != nil {
		c, err := repos.Coupons.GetByID(ctx, *req.CouponID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			logger.ExitMethodWithError("orderService.Quote", err)
			return nil, err
		case c.ActiveAt(s.now()) && !c.Exhausted():
			coupon = c
		}
	}

	q := utils.CalculateQuote(utils.QuoteInput{
		DailyPriceCents: vehicle.DailyPriceCents,
		DepositCents:    vehicle.DepositCents,
		PickupTime:      req.PickupTime,
		ReturnTime:      req.ReturnTime,
		InsuranceTier:   req.InsuranceTier,
		Coupon:          coupon,
		CrossBranch:     req.PickupBranchID != req.ReturnBranchID,
	}, s.deps.Pricing)

	logger.ExitMethod("orderService.Quote", "total", q.TotalAmountCents)
	return &q, nil
}

func (s *orderService) Create(ctx context.Context, actor domain.Identity, req domain.BookingRequest) (*CreateResult, error) {
	logger.EnterMethod("orderService.Create", "userID", actor.UserID, "vehicleID", req.VehicleID)

	if actor.UserID == 0 {
		err := fmt.Errorf("%w: sign in to book", domain.ErrForbidden)
		logger.ExitMethodWithError("orderService.Create", err)
		return nil, err
	}
	if err := s.validateBooking(&req); err != nil {
		logger.ExitMethodWithError("orderService.Create", err)
		return nil, err
	}

	code, codeHash, err := security.NewPickupCode()
	if err != nil {
		logger.ExitMethodWithError("orderService.Create", err)
		return nil, fmt.Errorf("failed to generate pickup code: %w", err)
	}

	now := s.now()
	fx := newEffects()
	var order *domain.Order
	err = s.deps.Store.WithinTx(ctx, func(repos *repository.Repositories) error {
		customer, err := repos.Customers.GetByID(ctx, actor.UserID)
		if err != nil {
			return err
		}
		for _, id := range []int64{req.PickupBranchID, req.ReturnBranchID} {
			branch, err := repos.Branches.GetByID(ctx, id)
			if err != nil {
				return err
			}
			if !branch.Active {
				return domain.Validationf("branch %s is closed", branch.Name)
			}
		}

		vehicle, err := repos.Vehicles.GetByIDForUpdate(ctx, req.VehicleID)
		if err != nil {
			return err
		}
		if vehicle.Status != domain.VehicleStatusAvailable {
			return fmt.Errorf("%w: vehicle %s is %s", domain.ErrVehicleUnavailable, vehicle.PlateNumber, vehicle.Status)
		}

		var coupon *domain.Coupon
		var grant *domain.UserCouponGrant
		if req.CouponID != nil {
			coupon, grant, err = eligibleGrant(ctx, repos, customer, *req.CouponID, now)
			if err != nil {
				return err
			}
		}

		q := utils.CalculateQuote(utils.QuoteInput{
			DailyPriceCents: vehicle.DailyPriceCents,
			DepositCents:    vehicle.DepositCents,
			PickupTime:      req.PickupTime,
			ReturnTime:      req.ReturnTime,
			InsuranceTier:   req.InsuranceTier,
			Coupon:          coupon,
			CrossBranch:     req.PickupBranchID != req.ReturnBranchID,
		}, s.deps.Pricing)
		if coupon != nil && !q.CouponApplied {
			return ineligible("coupon %s does not apply to a rental of %s", coupon.Code, utils.FormatCents(q.RentalAmountCents))
		}

		o := &domain.Order{
			OrderNo:             newOrderNo(now),
			UserID:              customer.ID,
			UserName:            customer.Name,
			UserPhone:           customer.Phone,
			VehicleID:           vehicle.ID,
			VehicleName:         vehicle.Name,
			VehiclePlate:        vehicle.PlateNumber,
			PickupBranchID:      req.PickupBranchID,
			ReturnBranchID:      req.ReturnBranchID,
			PickupTime:          req.PickupTime,
			ReturnTime:          req.ReturnTime,
			RentalDays:          q.RentalDays,
			DailyPriceCents:     q.DailyPriceCents,
			RentalAmountCents:   q.RentalAmountCents,
			DepositCents:        q.DepositCents,
			InsuranceTier:       req.InsuranceTier,
			InsuranceCents:      q.InsuranceCents,
			ServiceAmountCents:  q.ServiceAmountCents,
			DiscountAmountCents: q.DiscountAmountCents,
			TotalAmountCents:    q.TotalAmountCents,
			Status:              domain.OrderStatusPendingReview,
			PickupCodeHash:      codeHash,
		}
		if coupon != nil {
			o.CouponID = &coupon.ID
			o.CouponCode = coupon.Code
		}
		if err := repos.Orders.Create(ctx, o); err != nil {
			return err
		}

		if grant != nil {
			if err := consumeGrant(ctx, repos, coupon, grant, o.ID, now); err != nil {
				return err
			}
		}

		if err := s.transitionVehicle(ctx, repos, fx, vehicle.ID,
			[]domain.VehicleStatus{domain.VehicleStatusAvailable}, domain.VehicleStatusReserved, o.ID, actor, "reserved for "+o.OrderNo); err != nil {
			return err
		}
		if err := s.journal(ctx, repos, fx, o, domain.OrderEventCreated, actor, "order created"); err != nil {
			return err
		}

		fx.orderStatus(o)
		fx.email(emailBooking, o, code, 0)
		order = o
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("orderService.Create", err, "userID", actor.UserID)
		return nil, err
	}
	s.flush(ctx, fx)

	logger.ExitMethod("orderService.Create", "orderID", order.ID, "orderNo", order.OrderNo, "total", order.TotalAmountCents)
	return &CreateResult{Order: order, PickupCode: code}, nil
}

func (s *orderService) Approve(ctx context.Context, actor domain.Identity, orderID int64) (*domain.Order, error) {
	logger.EnterMethod("orderService.Approve", "orderID", orderID, "operatorID", actor.UserID)

	if err := staffOnly(actor); err != nil {
		logger.ExitMethodWithError("orderService.Approve", err)
		return nil, err
	}
	o, err := s.withOrder(ctx, orderID, func(repos *repository.Repositories, o *domain.Order, fx *effects) error {
		if err := requireStatus(o, domain.OrderStatusPendingReview); err != nil {
			return err
		}
		_ = moveOrder(o, domain.OrderStatusAwaitingPayment)
		if err := saveOrder(ctx, repos, o, domain.OrderStatusPendingReview, fx); err != nil {
			return err
		}
		fx.email(emailStatus, o, "", 0)
		return s.journal(ctx, repos, fx, o, domain.OrderEventReviewed, actor, "approved")
	})
	if err != nil {
		logger.ExitMethodWithError("orderService.Approve", err, "orderID", orderID)
		return nil, err
	}

	logger.ExitMethod("orderService.Approve", "orderID", orderID)
	return o, nil
}

func (s *orderService) Reject(ctx context.Context, actor domain.Identity, orderID int64, reason string) (*domain.Order, error) {
	logger.EnterMethod("orderService.Reject", "orderID", orderID, "operatorID", actor.UserID)

	if err := staffOnly(actor); err != nil {
		logger.ExitMethodWithError("orderService.Reject", err)
		return nil, err
	}
	o, err := s.withOrder(ctx, orderID, func(repos *repository.Repositories, o *domain.Order, fx *effects) error {
		if err := requireStatus(o, domain.OrderStatusPendingReview); err != nil {
			return err
		}
		if err := s.releaseVehicle(ctx, repos, fx, o, actor, "order rejected"); err != nil {
			return err
		}
		if err := releaseCoupon(ctx, repos, o.ID); err != nil {
			return err
		}
		_ = moveOrder(o, domain.OrderStatusRejected)
		o.ReviewReason = strings.TrimSpace(reason)
		if err := saveOrder(ctx, repos, o, domain.OrderStatusPendingReview, fx); err != nil {
			return err
		}
		fx.email(emailStatus, o, "", 0)
		return s.journal(ctx, repos, fx, o, domain.OrderEventReviewed, actor, "rejected: "+o.ReviewReason)
	})
	if err != nil {
		logger.ExitMethodWithError("orderService.Reject", err, "orderID", orderID)
		return nil, err
	}

	logger.ExitMethod("orderService.Reject", "orderID", orderID)
	return o, nil
}

func (s *orderService) RecordPickup(ctx context.Context, actor domain.Identity, orderID int64, rec domain.PickupRecord) (*domain.Order, error) {
	logger.EnterMethod("orderService.RecordPickup", "orderID", orderID, "operatorID", actor.UserID)

	if err := staffOnly(actor); err != nil {
		logger.ExitMethodWithError("orderService.RecordPickup", err)
		return nil, err
	}
	o, err := s.withOrder(ctx, orderID, func(repos *repository.Repositories, o *domain.Order, fx *effects) error {
		if err := requireStatus(o, domain.OrderStatusAwaitingPickup); err != nil {
			return err
		}
		if rec.PickupCode == "" && s.deps.Fulfillment.RequirePickupCode {
			return domain.Validationf("pickup code is required")
		}
		if rec.PickupCode != "" && !security.VerifyPickupCode(o.PickupCodeHash, rec.PickupCode) {
			return fmt.Errorf("%w: pickup code does not match", domain.ErrForbidden)
		}

		if err := s.transitionVehicle(ctx, repos, fx, o.VehicleID,
			[]domain.VehicleStatus{domain.VehicleStatusReserved}, domain.VehicleStatusRented, o.ID, actor, "picked up"); err != nil {
			return err
		}

		now := s.now()
		o.ActualPickupTime = &now
		o.PickupOdometer = &rec.Odometer
		o.PickupFuelLevel = &rec.FuelLevel
		o.PickupEvidence = rec.Evidence
		o.PickupNote = rec.Note
		_ = moveOrder(o, domain.OrderStatusInUse)
		if err := saveOrder(ctx, repos, o, domain.OrderStatusAwaitingPickup, fx); err != nil {
			return err
		}
		fx.email(emailStatus, o, "", 0)
		return s.journal(ctx, repos, fx, o, domain.OrderEventPickup, actor, fmt.Sprintf("odometer %d, fuel %d%%", rec.Odometer, rec.FuelLevel))
	})
	if err != nil {
		logger.ExitMethodWithError("orderService.RecordPickup", err, "orderID", orderID)
		return nil, err
	}

	logger.ExitMethod("orderService.RecordPickup", "orderID", orderID)
	return o, nil
}

func (s *orderService) RecordReturn(ctx context.Context, actor domain.Identity, orderID int64, rec domain.ReturnRecord) (*domain.Order, error) {
	logger.EnterMethod("orderService.RecordReturn", "orderID", orderID, "operatorID", actor.UserID)

	if err := staffOnly(actor); err != nil {
		logger.ExitMethodWithError("orderService.RecordReturn", err)
		return nil, err
	}
	o, err := s.withOrder(ctx, orderID, func(repos *repository.Repositories, o *domain.Order, fx *effects) error {
		if err := requireStatus(o, domain.OrderStatusInUse, domain.OrderStatusAwaitingReturn); err != nil {
			return err
		}
		if err := s.transitionVehicle(ctx, repos, fx, o.VehicleID,
			[]domain.VehicleStatus{domain.VehicleStatusRented}, domain.VehicleStatusCleaning, o.ID, actor, "returned"); err != nil {
			return err
		}

		now := s.now()
		overage := utils.OverageCents(o.DailyPriceCents, o.ReturnTime, now, s.deps.Pricing)
		o.ExtraAmountCents += overage
		o.TotalAmountCents += overage
		o.ActualReturnTime = &now
		o.ReturnOdometer = &rec.Odometer
		o.ReturnFuelLevel = &rec.FuelLevel
		o.ReturnEvidence = rec.Evidence
		o.ReturnNote = rec.Note

		expected := o.Status
		_ = moveOrder(o, domain.OrderStatusAwaitingSettlement)
		if err := saveOrder(ctx, repos, o, expected, fx); err != nil {
			return err
		}

		msg := "returned on time"
		if overage > 0 {
			msg = "returned late, overage " + utils.FormatCents(overage)
		}
		fx.email(emailStatus, o, "", 0)
		return s.journal(ctx, repos, fx, o, domain.OrderEventReturn, actor, msg)
	})
	if err != nil {
		logger.ExitMethodWithError("orderService.RecordReturn", err, "orderID", orderID)
		return nil, err
	}

	logger.ExitMethod("orderService.RecordReturn", "orderID", orderID, "extra", o.ExtraAmountCents)
	return o, nil
}

func (s *orderService) Complete(ctx context.Context, actor domain.Identity, orderID int64) (*domain.Order, error) {
	logger.EnterMethod("orderService.Complete", "orderID", orderID, "operatorID", actor.UserID)

	if err := staffOnly(actor); err != nil {
		logger.ExitMethodWithError("orderService.Complete", err)
		return nil, err
	}
	o, err := s.withOrder(ctx, orderID, func(repos *repository.Repositories, o *domain.Order, fx *effects) error {
		if err := requireStatus(o, domain.OrderStatusAwaitingSettlement); err != nil {
			return err
		}
		if err := s.transitionVehicle(ctx, repos, fx, o.VehicleID,
			[]domain.VehicleStatus{domain.VehicleStatusCleaning, domain.VehicleStatusRented}, domain.VehicleStatusAvailable, o.ID, actor, "back in fleet"); err != nil {
			return err
		}

		_ = moveOrder(o, domain.OrderStatusCompleted)
		if err := saveOrder(ctx, repos, o, domain.OrderStatusAwaitingSettlement, fx); err != nil {
			return err
		}

		if points := utils.LoyaltyPoints(o.TotalAmountCents, s.deps.Pricing); points > 0 {
			if err := repos.Customers.AddLoyaltyPoints(ctx, o.UserID, points); err != nil {
				return err
			}
		}
		if o.ExtraAmountCents > 0 {
			if err := s.fundsFlow(ctx, repos, fx, o, domain.FundsFlowIncome, o.ExtraAmountCents, domain.PaymentMethodNone.Channel(), actor, "late return overage"); err != nil {
				return err
			}
		}
		fx.email(emailStatus, o, "", 0)
		return s.journal(ctx, repos, fx, o, domain.OrderEventComplete, actor, "completed")
	})
	if err != nil {
		logger.ExitMethodWithError("orderService.Complete", err, "orderID", orderID)
		return nil, err
	}

	logger.ExitMethod("orderService.Complete", "orderID", orderID)
	return o, nil
}

func (s *orderService) Cancel(ctx context.Context, actor domain.Identity, orderID int64, reason string) (*domain.Order, error) {
	logger.EnterMethod("orderService.Cancel", "orderID", orderID, "actorID", actor.UserID)

	o, err := s.withOrder(ctx, orderID, func(repos *repository.Repositories, o *domain.Order, fx *effects) error {
		if err := ownerOrStaff(actor, o); err != nil {
			return err
		}
		return s.cancel(ctx, repos, fx, o, actor, reason)
	})
	if err != nil {
		logger.ExitMethodWithError("orderService.Cancel", err, "orderID", orderID)
		return nil, err
	}

	logger.ExitMethod("orderService.Cancel", "orderID", orderID, "refunded", o.RefundAmountCents)
	return o, nil
}

// cancel closes a locked order, returning the vehicle, the coupon grant and
// any money already paid.
func (s *orderService) cancel(ctx context.Context, repos *repository.Repositories, fx *effects, o *domain.Order, actor domain.Identity, reason string) error {
	if err := requireStatus(o, domain.OrderStatusPendingReview, domain.OrderStatusAwaitingPayment, domain.OrderStatusAwaitingPickup); err != nil {
		return err
	}
	expected := o.Status

	if err := s.releaseVehicle(ctx, repos, fx, o, actor, "order cancelled"); err != nil {
		return err
	}
	if err := releaseCoupon(ctx, repos, o.ID); err != nil {
		return err
	}
	if o.RefundableCents() > 0 {
		if _, err := s.refund(ctx, repos, fx, o, o.RefundableCents(), "CANCEL-REFUND-"+o.OrderNo,
			domain.ChannelCancel, actor, "refund on cancellation"); err != nil {
			return err
		}
	}

	now := s.now()
	_ = moveOrder(o, domain.OrderStatusCancelled)
	o.CancelReason = strings.TrimSpace(reason)
	o.CancelTime = &now
	if err := saveOrder(ctx, repos, o, expected, fx); err != nil {
		return err
	}
	fx.email(emailStatus, o, "", 0)
	return s.journal(ctx, repos, fx, o, domain.OrderEventCancel, actor, o.CancelReason)
}

// ExpireUnpaid cancels orders left in AwaitingPayment since before cutoff.
func (s *orderService) ExpireUnpaid(ctx context.Context, cutoff time.Time) (int, error) {
	logger.EnterMethod("orderService.ExpireUnpaid", "cutoff", cutoff)

	candidates, err := s.deps.Store.Repos().Orders.ListByStatusBefore(ctx, domain.OrderStatusAwaitingPayment, repository.OrderFieldUpdatedAt, cutoff, 200)
	if err != nil {
		logger.ExitMethodWithError("orderService.ExpireUnpaid", err)
		return 0, err
	}

	expired := 0
	for _, c := range candidates {
		_, err := s.withOrder(ctx, c.ID, func(repos *repository.Repositories, o *domain.Order, fx *effects) error {
			if o.Status != domain.OrderStatusAwaitingPayment || !o.UpdatedAt.Before(cutoff) {
				return errSkip
			}
			return s.cancel(ctx, repos, fx, o, domain.SystemIdentity, "payment window expired")
		})
		switch {
		case errors.Is(err, errSkip):
		case err != nil:
			logger.Error("Failed to expire unpaid order", "orderID", c.ID, "error", err)
		default:
			expired++
		}
	}

	logger.ExitMethod("orderService.ExpireUnpaid", "expired", expired)
	return expired, nil
}

func (s *orderService) Review(ctx context.Context, actor domain.Identity, orderID int64, rating int, text string) (*domain.Order, error) {
	logger.EnterMethod("orderService.Review", "orderID", orderID, "rating", rating)

	if rating < 1 || rating > 5 {
		err := domain.Validationf("rating must be between 1 and 5")
		logger.ExitMethodWithError("orderService.Review", err)
		return nil, err
	}
	o, err := s.withOrder(ctx, orderID, func(repos *repository.Repositories, o *domain.Order, fx *effects) error {
		if err := ownerOnly(actor, o); err != nil {
			return err
		}
		if err := requireStatus(o, domain.OrderStatusCompleted); err != nil {
			return err
		}
		if o.Rating != nil {
			return fmt.Errorf("%w: order %s was already reviewed", domain.ErrConflict, o.OrderNo)
		}

		now := s.now()
		o.Rating = &rating
		o.ReviewText = strings.TrimSpace(text)
		o.ReviewTime = &now
		if err := saveOrder(ctx, repos, o, domain.OrderStatusCompleted, fx); err != nil {
			return err
		}
		if err := repos.Customers.AddLoyaltyPoints(ctx, o.UserID, s.deps.Fulfillment.ReviewPoints); err != nil {
			return err
		}
		return s.journal(ctx, repos, fx, o, domain.OrderEventReview, actor, fmt.Sprintf("rated %d", rating))
	})
	if err != nil {
		logger.ExitMethodWithError("orderService.Review", err, "orderID", orderID)
		return nil, err
	}

	logger.ExitMethod("orderService.Review", "orderID", orderID)
	return o, nil
}

func (s *orderService) Get(ctx context.Context, actor domain.Identity, orderID int64) (*domain.Order, error) {
	o, err := s.deps.Store.Repos().Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := ownerOrStaff(actor, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *orderService) GetStatus(ctx context.Context, actor domain.Identity, orderID int64) (domain.OrderStatus, error) {
	cached, ok, err := s.deps.Cache.GetOrderStatus(ctx, orderID)
	if err != nil {
		logger.Warn("Order status cache read failed", "orderID", orderID, "error", err)
	}
	if ok && err == nil {
		if actor.IsStaff() || actor.UserID == cached.UserID {
			return cached.Status, nil
		}
		return 0, fmt.Errorf("%w: order %d belongs to another customer", domain.ErrForbidden, orderID)
	}

	o, err := s.Get(ctx, actor, orderID)
	if err != nil {
		return 0, err
	}
	if err := s.deps.Cache.SetOrderStatus(ctx, o.ID, CachedStatus{UserID: o.UserID, Status: o.Status}); err != nil {
		logger.Warn("Order status cache write failed", "orderID", orderID, "error", err)
	}
	return o.Status, nil
}

func (s *orderService) ListMine(ctx context.Context, actor domain.Identity, page, pageSize int32) ([]domain.Order, int32, error) {
	if actor.UserID == 0 {
		return nil, 0, fmt.Errorf("%w: sign in to list orders", domain.ErrForbidden)
	}
	userID := actor.UserID
	return s.deps.Store.Repos().Orders.List(ctx, domain.OrderFilter{UserID: &userID, Page: page, PageSize: pageSize})
}

func (s *orderService) ListAll(ctx context.Context, actor domain.Identity, filter domain.OrderFilter) ([]domain.Order, int32, error) {
	if err := staffOnly(actor); err != nil {
		return nil, 0, err
	}
	return s.deps.Store.Repos().Orders.List(ctx, filter)
}

func (s *orderService) Stats(ctx context.Context, actor domain.Identity) (*domain.OrderStats, error) {
	if err := staffOnly(actor); err != nil {
		return nil, err
	}
	return s.deps.Store.Repos().Orders.Stats(ctx)
}

// MarkOverdue moves in-use orders past their scheduled return to AwaitingReturn.
func (s *orderService) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	logger.EnterMethod("orderService.MarkOverdue", "now", now)

	candidates, err := s.deps.Store.Repos().Orders.ListByStatusBefore(ctx, domain.OrderStatusInUse, repository.OrderFieldReturnTime, now, 200)
	if err != nil {
		logger.ExitMethodWithError("orderService.MarkOverdue", err)
		return 0, err
	}

	marked := 0
	for _, c := range candidates {
		_, err := s.withOrder(ctx, c.ID, func(repos *repository.Repositories, o *domain.Order, fx *effects) error {
			if o.Status != domain.OrderStatusInUse || !o.ReturnTime.Before(now) {
				return errSkip
			}
			_ = moveOrder(o, domain.OrderStatusAwaitingReturn)
			if err := saveOrder(ctx, repos, o, domain.OrderStatusInUse, fx); err != nil {
				return err
			}
			fx.email(emailStatus, o, "", 0)
			return s.journal(ctx, repos, fx, o, domain.OrderEventOverdue, domain.SystemIdentity,
				"scheduled return passed at "+o.ReturnTime.Format(time.RFC3339))
		})
		switch {
		case errors.Is(err, errSkip):
		case err != nil:
			logger.Error("Failed to mark order overdue", "orderID", c.ID, "error", err)
		default:
			marked++
		}
	}

	logger.ExitMethod("orderService.MarkOverdue", "marked", marked)
	return marked, nil
}

// errSkip aborts a transaction that found nothing to do.
var errSkip = errors.New("skip")
