package postgres

import (
	"context"
	"fmt"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"

	"github.com/lib/pq"
)

const orderColumns = `id, order_no, user_id, user_name, user_phone, vehicle_id, vehicle_name, vehicle_plate,
	pickup_branch_id, return_branch_id, pickup_time, return_time, actual_pickup_time, actual_return_time,
	rental_days, daily_price_cents, rental_amount_cents, deposit_cents, insurance_tier, insurance_cents,
	service_amount_cents, discount_amount_cents, extra_amount_cents, total_amount_cents, paid_amount_cents,
	refund_amount_cents, coupon_id, coupon_code, status, payment_method, payment_reference, payment_time,
	pickup_code_hash, pickup_odometer, pickup_fuel_level, pickup_evidence, pickup_note, return_odometer,
	return_fuel_level, return_evidence, return_note, review_reason, cancel_reason, cancel_time, rating,
	review_text, review_time, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	o := &domain.Order{}
	err := row.Scan(
		&o.ID, &o.OrderNo, &o.UserID, &o.UserName, &o.UserPhone, &o.VehicleID, &o.VehicleName, &o.VehiclePlate,
		&o.PickupBranchID, &o.ReturnBranchID, &o.PickupTime, &o.ReturnTime, &o.ActualPickupTime, &o.ActualReturnTime,
		&o.RentalDays, &o.DailyPriceCents, &o.RentalAmountCents, &o.DepositCents, &o.InsuranceTier, &o.InsuranceCents,
		&o.ServiceAmountCents, &o.DiscountAmountCents, &o.ExtraAmountCents, &o.TotalAmountCents, &o.PaidAmountCents,
		&o.RefundAmountCents, &o.CouponID, &o.CouponCode, &o.Status, &o.PaymentMethod, &o.PaymentReference, &o.PaymentTime,
		&o.PickupCodeHash, &o.PickupOdometer, &o.PickupFuelLevel, pq.Array(&o.PickupEvidence), &o.PickupNote, &o.ReturnOdometer,
		&o.ReturnFuelLevel, pq.Array(&o.ReturnEvidence), &o.ReturnNote, &o.ReviewReason, &o.CancelReason, &o.CancelTime, &o.Rating,
		&o.ReviewText, &o.ReviewTime, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}

type orderRepository struct {
	db DBTX
}

func NewOrderRepository(db DBTX) repository.OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, o *domain.Order) error {
	logger.EnterMethod("orderRepository.Create", "orderNo", o.OrderNo, "userID", o.UserID, "vehicleID", o.VehicleID)

	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	query := `INSERT INTO orders (order_no, user_id, user_name, user_phone, vehicle_id, vehicle_name, vehicle_plate,
	          pickup_branch_id, return_branch_id, pickup_time, return_time, rental_days, daily_price_cents,
	          rental_amount_cents, deposit_cents, insurance_tier, insurance_cents, service_amount_cents,
	          discount_amount_cents, extra_amount_cents, total_amount_cents, coupon_id, coupon_code, status,
	          pickup_code_hash, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
	          RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		o.OrderNo, o.UserID, o.UserName, o.UserPhone, o.VehicleID, o.VehicleName, o.VehiclePlate,
		o.PickupBranchID, o.ReturnBranchID, o.PickupTime, o.ReturnTime, o.RentalDays, o.DailyPriceCents,
		o.RentalAmountCents, o.DepositCents, o.InsuranceTier, o.InsuranceCents, o.ServiceAmountCents,
		o.DiscountAmountCents, o.ExtraAmountCents, o.TotalAmountCents, o.CouponID, o.CouponCode, o.Status,
		o.PickupCodeHash, o.CreatedAt, o.UpdatedAt,
	).Scan(&o.ID)
	if err != nil {
		if isUniqueViolation(err) {
			err = fmt.Errorf("%w: order number %s already exists", domain.ErrConflict, o.OrderNo)
		} else {
			err = mapErr("order", err)
		}
		logger.ExitMethodWithError("orderRepository.Create", err, "orderNo", o.OrderNo)
		return err
	}

	logger.ExitMethod("orderRepository.Create", "orderID", o.ID)
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	return r.get(ctx, "orderRepository.GetByID", `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *orderRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Order, error) {
	return r.get(ctx, "orderRepository.GetByIDForUpdate", `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *orderRepository) GetByOrderNo(ctx context.Context, orderNo string) (*domain.Order, error) {
	return r.get(ctx, "orderRepository.GetByOrderNo", `SELECT `+orderColumns+` FROM orders WHERE order_no = $1`, orderNo)
}

func (r *orderRepository) get(ctx context.Context, method, query string, key any) (*domain.Order, error) {
	logger.EnterMethod(method, "key", key)

	o, err := scanOrder(r.db.QueryRowContext(ctx, query, key))
	if err != nil {
		err = mapErr("order", err)
		logger.ExitMethodWithError(method, err, "key", key)
		return nil, err
	}

	logger.ExitMethod(method, "orderID", o.ID, "status", o.Status)
	return o, nil
}

func (r *orderRepository) Update(ctx context.Context, o *domain.Order, expected domain.OrderStatus) (bool, error) {
	logger.EnterMethod("orderRepository.Update", "orderID", o.ID, "from", expected, "to", o.Status)

	o.UpdatedAt = time.Now().UTC()
	query := `UPDATE orders SET status=$1, actual_pickup_time=$2, actual_return_time=$3, extra_amount_cents=$4,
	          total_amount_cents=$5, paid_amount_cents=$6, refund_amount_cents=$7, payment_method=$8,
	          payment_reference=$9, payment_time=$10, pickup_code_hash=$11, pickup_odometer=$12,
	          pickup_fuel_level=$13, pickup_evidence=$14, pickup_note=$15, return_odometer=$16,
	          return_fuel_level=$17, return_evidence=$18, return_note=$19, review_reason=$20,
	          cancel_reason=$21, cancel_time=$22, rating=$23, review_text=$24, review_time=$25, updated_at=$26
	          WHERE id=$27 AND status=$28`
	res, err := r.db.ExecContext(ctx, query,
		o.Status, o.ActualPickupTime, o.ActualReturnTime, o.ExtraAmountCents,
		o.TotalAmountCents, o.PaidAmountCents, o.RefundAmountCents, o.PaymentMethod,
		o.PaymentReference, o.PaymentTime, o.PickupCodeHash, o.PickupOdometer,
		o.PickupFuelLevel, pq.Array(o.PickupEvidence), o.PickupNote, o.ReturnOdometer,
		o.ReturnFuelLevel, pq.Array(o.ReturnEvidence), o.ReturnNote, o.ReviewReason,
		o.CancelReason, o.CancelTime, o.Rating, o.ReviewText, o.ReviewTime, o.UpdatedAt,
		o.ID, expected,
	)
	if err != nil {
		err = mapErr("order", err)
		logger.ExitMethodWithError("orderRepository.Update", err, "orderID", o.ID)
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		err = mapErr("order", err)
		logger.ExitMethodWithError("orderRepository.Update", err, "orderID", o.ID)
		return false, err
	}

	logger.ExitMethod("orderRepository.Update", "orderID", o.ID, "updated", n == 1)
	return n == 1, nil
}

func (r *orderRepository) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int32, error) {
	logger.EnterMethod("orderRepository.List", "page", filter.Page, "pageSize", filter.PageSize)

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	where := " WHERE 1=1"
	args := []any{}
	argIdx := 1
	if filter.UserID != nil {
		where += fmt.Sprintf(" AND user_id = $%d", argIdx)
		args = append(args, *filter.UserID)
		argIdx++
	}
	if filter.Status != nil {
		where += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *filter.Status)
		argIdx++
	}

	var count int32
	if err := r.db.QueryRowContext(ctx, "SELECT count(*) FROM orders"+where, args...).Scan(&count); err != nil {
		err = mapErr("order", err)
		logger.ExitMethodWithError("orderRepository.List", err)
		return nil, 0, err
	}

	query := `SELECT ` + orderColumns + ` FROM orders` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, pageSize, (page-1)*pageSize)

	orders, err := r.queryOrders(ctx, query, args...)
	if err != nil {
		logger.ExitMethodWithError("orderRepository.List", err)
		return nil, 0, err
	}

	logger.ExitMethod("orderRepository.List", "count", len(orders), "total", count)
	return orders, count, nil
}

func (r *orderRepository) ListByStatusBefore(ctx context.Context, status domain.OrderStatus, field string, before time.Time, limit int) ([]domain.Order, error) {
	logger.EnterMethod("orderRepository.ListByStatusBefore", "status", status, "field", field, "before", before)

	switch field {
	case repository.OrderFieldUpdatedAt, repository.OrderFieldReturnTime, repository.OrderFieldCreatedAt:
	default:
		err := domain.Validationf("unsupported order field %q", field)
		logger.ExitMethodWithError("orderRepository.ListByStatusBefore", err)
		return nil, err
	}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE status = $1 AND ` + field + ` < $2 ORDER BY ` + field + ` ASC LIMIT $3`
	orders, err := r.queryOrders(ctx, query, status, before, limit)
	if err != nil {
		logger.ExitMethodWithError("orderRepository.ListByStatusBefore", err)
		return nil, err
	}

	logger.ExitMethod("orderRepository.ListByStatusBefore", "count", len(orders))
	return orders, nil
}

func (r *orderRepository) Stats(ctx context.Context) (*domain.OrderStats, error) {
	logger.EnterMethod("orderRepository.Stats")

	rows, err := r.db.QueryContext(ctx, `SELECT status, count(*), COALESCE(SUM(paid_amount_cents), 0), COALESCE(SUM(refund_amount_cents), 0)
	          FROM orders GROUP BY status`)
	if err != nil {
		err = mapErr("order", err)
		logger.ExitMethodWithError("orderRepository.Stats", err)
		return nil, err
	}
	defer rows.Close()

	stats := &domain.OrderStats{CountByStatus: make(map[domain.OrderStatus]int64)}
	for _, s := range domain.AllOrderStatuses() {
		stats.CountByStatus[s] = 0
	}
	for rows.Next() {
		var status domain.OrderStatus
		var count, paid, refunded int64
		if err := rows.Scan(&status, &count, &paid, &refunded); err != nil {
			err = mapErr("order", err)
			logger.ExitMethodWithError("orderRepository.Stats", err)
			return nil, err
		}
		stats.CountByStatus[status] = count
		stats.PaidAmountCents += paid
		stats.RefundAmountCents += refunded
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("order", err)
	}

	logger.ExitMethod("orderRepository.Stats", "paid", stats.PaidAmountCents)
	return stats, nil
}

func (r *orderRepository) queryOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr("order", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, mapErr("order", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("order", err)
	}
	return orders, nil
}

func normalizePage(page, pageSize int32) (int32, int32) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
