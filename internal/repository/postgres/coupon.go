package postgres

import (
	"context"
	"database/sql"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"
)

type couponRepository struct {
	db DBTX
}

func NewCouponRepository(db DBTX) repository.CouponRepository {
	return &couponRepository{db: db}
}

func (r *couponRepository) GetByID(ctx context.Context, id int64) (*domain.Coupon, error) {
	logger.EnterMethod("couponRepository.GetByID", "couponID", id)

	c := &domain.Coupon{}
	var start, end sql.NullTime
	query := `SELECT id, code, name, type, min_amount_cents, discount_amount_cents, discount_rate, max_discount_cents,
	          total_count, used_count, per_user_limit, start_time, end_time, membership_required, enabled
	          FROM coupons WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Code, &c.Name, &c.Type, &c.MinAmountCents,
		&c.DiscountAmountCents, &c.DiscountRate, &c.MaxDiscountCents, &c.TotalCount, &c.UsedCount, &c.PerUserLimit,
		&start, &end, &c.MembershipRequired, &c.Enabled)
	if err != nil {
		err = mapErr("coupon", err)
		logger.ExitMethodWithError("couponRepository.GetByID", err, "couponID", id)
		return nil, err
	}
	if start.Valid {
		c.StartTime = start.Time
	}
	if end.Valid {
		c.EndTime = end.Time
	}

	logger.ExitMethod("couponRepository.GetByID", "couponID", id)
	return c, nil
}

func (r *couponRepository) FindUnusedGrant(ctx context.Context, userID, couponID int64) (*domain.UserCouponGrant, error) {
	logger.EnterMethod("couponRepository.FindUnusedGrant", "userID", userID, "couponID", couponID)

	g := &domain.UserCouponGrant{}
	query := `SELECT id, user_id, coupon_id, order_id, status, used_at, created_at FROM user_coupons
	          WHERE user_id = $1 AND coupon_id = $2 AND status = $3 ORDER BY id ASC LIMIT 1`
	err := r.db.QueryRowContext(ctx, query, userID, couponID, domain.GrantStatusUnused).
		Scan(&g.ID, &g.UserID, &g.CouponID, &g.OrderID, &g.Status, &g.UsedAt, &g.CreatedAt)
	if err != nil {
		err = mapErr("coupon grant", err)
		logger.ExitMethodWithError("couponRepository.FindUnusedGrant", err, "userID", userID)
		return nil, err
	}

	logger.ExitMethod("couponRepository.FindUnusedGrant", "grantID", g.ID)
	return g, nil
}

func (r *couponRepository) CountGrants(ctx context.Context, userID, couponID int64) (int, int, error) {
	var total, unused int
	query := `SELECT count(*), count(*) FILTER (WHERE status = $3) FROM user_coupons WHERE user_id = $1 AND coupon_id = $2`
	if err := r.db.QueryRowContext(ctx, query, userID, couponID, domain.GrantStatusUnused).Scan(&total, &unused); err != nil {
		return 0, 0, mapErr("coupon grant", err)
	}
	return total, unused, nil
}

func (r *couponRepository) CreateGrant(ctx context.Context, g *domain.UserCouponGrant) error {
	logger.EnterMethod("couponRepository.CreateGrant", "userID", g.UserID, "couponID", g.CouponID)

	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO user_coupons (user_id, coupon_id, status, created_at) VALUES ($1, $2, $3, $4) RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, g.UserID, g.CouponID, g.Status, g.CreatedAt).Scan(&g.ID); err != nil {
		err = mapErr("coupon grant", err)
		logger.ExitMethodWithError("couponRepository.CreateGrant", err, "userID", g.UserID)
		return err
	}

	logger.ExitMethod("couponRepository.CreateGrant", "grantID", g.ID)
	return nil
}

func (r *couponRepository) ConsumeGrant(ctx context.Context, grantID, orderID int64, at time.Time) (bool, error) {
	logger.EnterMethod("couponRepository.ConsumeGrant", "grantID", grantID, "orderID", orderID)

	query := `UPDATE user_coupons SET status = $1, order_id = $2, used_at = $3 WHERE id = $4 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, domain.GrantStatusUsed, orderID, at, grantID, domain.GrantStatusUnused)
	if err != nil {
		err = mapErr("coupon grant", err)
		logger.ExitMethodWithError("couponRepository.ConsumeGrant", err, "grantID", grantID)
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapErr("coupon grant", err)
	}

	logger.ExitMethod("couponRepository.ConsumeGrant", "grantID", grantID, "consumed", n == 1)
	return n == 1, nil
}

func (r *couponRepository) ReleaseGrant(ctx context.Context, orderID int64) (int64, bool, error) {
	logger.EnterMethod("couponRepository.ReleaseGrant", "orderID", orderID)

	var couponID int64
	query := `UPDATE user_coupons SET status = $1, order_id = NULL, used_at = NULL
	          WHERE order_id = $2 AND status = $3 RETURNING coupon_id`
	err := r.db.QueryRowContext(ctx, query, domain.GrantStatusUnused, orderID, domain.GrantStatusUsed).Scan(&couponID)
	if err == sql.ErrNoRows {
		logger.ExitMethod("couponRepository.ReleaseGrant", "orderID", orderID, "released", false)
		return 0, false, nil
	}
	if err != nil {
		err = mapErr("coupon grant", err)
		logger.ExitMethodWithError("couponRepository.ReleaseGrant", err, "orderID", orderID)
		return 0, false, err
	}

	logger.ExitMethod("couponRepository.ReleaseGrant", "orderID", orderID, "couponID", couponID)
	return couponID, true, nil
}

func (r *couponRepository) IncrementUsed(ctx context.Context, couponID int64) (bool, error) {
	query := `UPDATE coupons SET used_count = used_count + 1 WHERE id = $1 AND (total_count = 0 OR used_count < total_count)`
	res, err := r.db.ExecContext(ctx, query, couponID)
	if err != nil {
		return false, mapErr("coupon", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapErr("coupon", err)
	}
	return n == 1, nil
}

func (r *couponRepository) DecrementUsed(ctx context.Context, couponID int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE coupons SET used_count = GREATEST(used_count - 1, 0) WHERE id = $1`, couponID)
	return mapErr("coupon", err)
}

func (r *couponRepository) ExpireGrants(ctx context.Context, now time.Time) (int64, error) {
	logger.EnterMethod("couponRepository.ExpireGrants", "now", now)

	query := `UPDATE user_coupons g SET status = $1 FROM coupons c
	          WHERE g.coupon_id = c.id AND g.status = $2 AND c.end_time IS NOT NULL AND c.end_time < $3`
	res, err := r.db.ExecContext(ctx, query, domain.GrantStatusExpired, domain.GrantStatusUnused, now)
	if err != nil {
		err = mapErr("coupon grant", err)
		logger.ExitMethodWithError("couponRepository.ExpireGrants", err)
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapErr("coupon grant", err)
	}

	logger.ExitMethod("couponRepository.ExpireGrants", "expired", n)
	return n, nil
}
