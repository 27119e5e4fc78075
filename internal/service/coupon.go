package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"
)

type couponService struct {
	*core
}

func NewCouponService(deps Deps) CouponService {
	return &couponService{core: newCore(deps)}
}

func ineligible(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrCouponIneligible, fmt.Sprintf(format, args...))
}

// checkCoupon verifies the coupon window, cap and membership tier.
func checkCoupon(coupon *domain.Coupon, customer *domain.Customer, now time.Time) error {
	if !coupon.ActiveAt(now) {
		return ineligible("coupon %s is not active", coupon.Code)
	}
	if coupon.Exhausted() {
		return ineligible("coupon %s is exhausted", coupon.Code)
	}
	if int(customer.Membership) < coupon.MembershipRequired {
		return ineligible("coupon %s requires membership tier %d", coupon.Code, coupon.MembershipRequired)
	}
	return nil
}

// eligibleGrant finds the coupon and the customer's unused grant for it. The
// threshold rule is applied later by the pricing calculator.
func eligibleGrant(ctx context.Context, repos *repository.Repositories, customer *domain.Customer, couponID int64, now time.Time) (*domain.Coupon, *domain.UserCouponGrant, error) {
	coupon, err := repos.Coupons.GetByID(ctx, couponID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil, ineligible("coupon %d does not exist", couponID)
	}
	if err != nil {
		return nil, nil, err
	}
	if err := checkCoupon(coupon, customer, now); err != nil {
		return nil, nil, err
	}

	grant, err := repos.Coupons.FindUnusedGrant(ctx, customer.ID, couponID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil, ineligible("no unused grant of coupon %s", coupon.Code)
	}
	if err != nil {
		return nil, nil, err
	}
	return coupon, grant, nil
}

// consumeGrant binds the grant to the order. Losing the conditional update to
// a concurrent booking makes the coupon ineligible for this one.
func consumeGrant(ctx context.Context, repos *repository.Repositories, coupon *domain.Coupon, grant *domain.UserCouponGrant, orderID int64, now time.Time) error {
	ok, err := repos.Coupons.ConsumeGrant(ctx, grant.ID, orderID, now)
	if err != nil {
		return err
	}
	if !ok {
		return ineligible("grant %d was already used", grant.ID)
	}

	ok, err = repos.Coupons.IncrementUsed(ctx, coupon.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ineligible("coupon %s is exhausted", coupon.Code)
	}
	return nil
}

// releaseCoupon returns the grant consumed by the order, if any.
func releaseCoupon(ctx context.Context, repos *repository.Repositories, orderID int64) error {
	couponID, released, err := repos.Coupons.ReleaseGrant(ctx, orderID)
	if err != nil {
		return err
	}
	if !released {
		return nil
	}
	return repos.Coupons.DecrementUsed(ctx, couponID)
}

func (s *couponService) Claim(ctx context.Context, actor domain.Identity, couponID int64) (*domain.UserCouponGrant, error) {
	logger.EnterMethod("couponService.Claim", "userID", actor.UserID, "couponID", couponID)

	if actor.UserID == 0 {
		err := fmt.Errorf("%w: sign in to claim coupons", domain.ErrForbidden)
		logger.ExitMethodWithError("couponService.Claim", err)
		return nil, err
	}

	var grant *domain.UserCouponGrant
	err := s.deps.Store.WithinTx(ctx, func(repos *repository.Repositories) error {
		customer, err := repos.Customers.GetByID(ctx, actor.UserID)
		if err != nil {
			return err
		}
		coupon, err := repos.Coupons.GetByID(ctx, couponID)
		if err != nil {
			return err
		}
		if err := checkCoupon(coupon, customer, s.now()); err != nil {
			return err
		}

		total, unused, err := repos.Coupons.CountGrants(ctx, actor.UserID, couponID)
		if err != nil {
			return err
		}
		if unused > 0 {
			return ineligible("coupon %s already claimed and unused", coupon.Code)
		}
		if coupon.PerUserLimit > 0 && total >= coupon.PerUserLimit {
			return ineligible("coupon %s claim limit reached", coupon.Code)
		}

		grant = &domain.UserCouponGrant{
			UserID:    actor.UserID,
			CouponID:  couponID,
			Status:    domain.GrantStatusUnused,
			CreatedAt: s.now(),
		}
		return repos.Coupons.CreateGrant(ctx, grant)
	})
	if err != nil {
		logger.ExitMethodWithError("couponService.Claim", err, "couponID", couponID)
		return nil, err
	}

	logger.ExitMethod("couponService.Claim", "grantID", grant.ID)
	return grant, nil
}

func (s *couponService) ExpireGrants(ctx context.Context, now time.Time) (int64, error) {
	logger.EnterMethod("couponService.ExpireGrants", "now", now)

	var n int64
	err := s.deps.Store.WithinTx(ctx, func(repos *repository.Repositories) error {
		var err error
		n, err = repos.Coupons.ExpireGrants(ctx, now)
		return err
	})
	if err != nil {
		logger.ExitMethodWithError("couponService.ExpireGrants", err)
		return 0, err
	}

	logger.ExitMethod("couponService.ExpireGrants", "expired", n)
	return n, nil
}
