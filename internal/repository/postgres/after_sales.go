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

const caseColumns = `id, case_no, order_id, order_no, user_id, type, reason, description, requested_amount_cents,
	approved_amount_cents, evidence, status, auditor_id, auditor_name, audit_time, audit_remark, created_at, updated_at`

func scanCase(row rowScanner) (*domain.AfterSalesCase, error) {
	c := &domain.AfterSalesCase{}
	err := row.Scan(&c.ID, &c.CaseNo, &c.OrderID, &c.OrderNo, &c.UserID, &c.Type, &c.Reason, &c.Description,
		&c.RequestedAmountCents, &c.ApprovedAmountCents, pq.Array(&c.Evidence), &c.Status, &c.AuditorID,
		&c.AuditorName, &c.AuditTime, &c.AuditRemark, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

type afterSalesRepository struct {
	db DBTX
}

func NewAfterSalesRepository(db DBTX) repository.AfterSalesRepository {
	return &afterSalesRepository{db: db}
}

func (r *afterSalesRepository) Create(ctx context.Context, c *domain.AfterSalesCase) error {
	logger.EnterMethod("afterSalesRepository.Create", "caseNo", c.CaseNo, "orderID", c.OrderID)

	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	query := `INSERT INTO after_sales_cases (case_no, order_id, order_no, user_id, type, reason, description,
	          requested_amount_cents, approved_amount_cents, evidence, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) RETURNING id`
	err := r.db.QueryRowContext(ctx, query, c.CaseNo, c.OrderID, c.OrderNo, c.UserID, c.Type, c.Reason, c.Description,
		c.RequestedAmountCents, c.ApprovedAmountCents, pq.Array(c.Evidence), c.Status, c.CreatedAt, c.UpdatedAt).Scan(&c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			err = domain.ErrDuplicateActiveCase
		} else {
			err = mapErr("after-sales case", err)
		}
		logger.ExitMethodWithError("afterSalesRepository.Create", err, "orderID", c.OrderID)
		return err
	}

	logger.ExitMethod("afterSalesRepository.Create", "caseID", c.ID)
	return nil
}

func (r *afterSalesRepository) GetByID(ctx context.Context, id int64) (*domain.AfterSalesCase, error) {
	c, err := scanCase(r.db.QueryRowContext(ctx, `SELECT `+caseColumns+` FROM after_sales_cases WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr("after-sales case", err)
	}
	return c, nil
}

func (r *afterSalesRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.AfterSalesCase, error) {
	logger.EnterMethod("afterSalesRepository.GetByIDForUpdate", "caseID", id)

	c, err := scanCase(r.db.QueryRowContext(ctx, `SELECT `+caseColumns+` FROM after_sales_cases WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		err = mapErr("after-sales case", err)
		logger.ExitMethodWithError("afterSalesRepository.GetByIDForUpdate", err, "caseID", id)
		return nil, err
	}

	logger.ExitMethod("afterSalesRepository.GetByIDForUpdate", "caseID", id, "status", c.Status)
	return c, nil
}

func (r *afterSalesRepository) Update(ctx context.Context, c *domain.AfterSalesCase) error {
	logger.EnterMethod("afterSalesRepository.Update", "caseID", c.ID, "status", c.Status)

	c.UpdatedAt = time.Now().UTC()
	query := `UPDATE after_sales_cases SET status=$1, approved_amount_cents=$2, auditor_id=$3, auditor_name=$4,
	          audit_time=$5, audit_remark=$6, updated_at=$7 WHERE id=$8`
	res, err := r.db.ExecContext(ctx, query, c.Status, c.ApprovedAmountCents, c.AuditorID, c.AuditorName,
		c.AuditTime, c.AuditRemark, c.UpdatedAt, c.ID)
	if err != nil {
		err = mapErr("after-sales case", err)
		logger.ExitMethodWithError("afterSalesRepository.Update", err, "caseID", c.ID)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err := fmt.Errorf("after-sales case %d: %w", c.ID, domain.ErrNotFound)
		logger.ExitMethodWithError("afterSalesRepository.Update", err, "caseID", c.ID)
		return err
	}

	logger.ExitMethod("afterSalesRepository.Update", "caseID", c.ID)
	return nil
}

func (r *afterSalesRepository) HasActiveForOrder(ctx context.Context, orderID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM after_sales_cases WHERE order_id = $1 AND status IN ($2, $3, $4))`
	err := r.db.QueryRowContext(ctx, query, orderID, domain.AfterSalesPending, domain.AfterSalesApproved, domain.AfterSalesRefunding).Scan(&exists)
	if err != nil {
		return false, mapErr("after-sales case", err)
	}
	return exists, nil
}

func (r *afterSalesRepository) ListByUser(ctx context.Context, userID int64) ([]domain.AfterSalesCase, error) {
	logger.EnterMethod("afterSalesRepository.ListByUser", "userID", userID)

	cases, err := r.queryCases(ctx, `SELECT `+caseColumns+` FROM after_sales_cases WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		logger.ExitMethodWithError("afterSalesRepository.ListByUser", err, "userID", userID)
		return nil, err
	}

	logger.ExitMethod("afterSalesRepository.ListByUser", "count", len(cases))
	return cases, nil
}

func (r *afterSalesRepository) ListByStatus(ctx context.Context, status *domain.AfterSalesStatus, page, pageSize int32) ([]domain.AfterSalesCase, int32, error) {
	logger.EnterMethod("afterSalesRepository.ListByStatus", "page", page, "pageSize", pageSize)

	page, pageSize = normalizePage(page, pageSize)
	where := ""
	args := []any{}
	argIdx := 1
	if status != nil {
		where = " WHERE status = $1"
		args = append(args, *status)
		argIdx++
	}

	var count int32
	if err := r.db.QueryRowContext(ctx, "SELECT count(*) FROM after_sales_cases"+where, args...).Scan(&count); err != nil {
		err = mapErr("after-sales case", err)
		logger.ExitMethodWithError("afterSalesRepository.ListByStatus", err)
		return nil, 0, err
	}

	query := `SELECT ` + caseColumns + ` FROM after_sales_cases` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, pageSize, (page-1)*pageSize)
	cases, err := r.queryCases(ctx, query, args...)
	if err != nil {
		logger.ExitMethodWithError("afterSalesRepository.ListByStatus", err)
		return nil, 0, err
	}

	logger.ExitMethod("afterSalesRepository.ListByStatus", "count", len(cases), "total", count)
	return cases, count, nil
}

func (r *afterSalesRepository) queryCases(ctx context.Context, query string, args ...any) ([]domain.AfterSalesCase, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr("after-sales case", err)
	}
	defer rows.Close()

	var cases []domain.AfterSalesCase
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, mapErr("after-sales case", err)
		}
		cases = append(cases, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("after-sales case", err)
	}
	return cases, nil
}
