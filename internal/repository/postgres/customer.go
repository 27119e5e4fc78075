package postgres

import (
	"context"
	"database/sql"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"
)

type customerRepository struct {
	db DBTX
}

func NewCustomerRepository(db DBTX) repository.CustomerRepository {
	return &customerRepository{db: db}
}

func (r *customerRepository) GetByID(ctx context.Context, id int64) (*domain.Customer, error) {
	c := &domain.Customer{}
	query := `SELECT id, name, phone, email, membership, loyalty_points, created_at FROM customers WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Membership, &c.LoyaltyPoints, &c.CreatedAt)
	if err != nil {
		return nil, mapErr("customer", err)
	}
	return c, nil
}

func (r *customerRepository) AddLoyaltyPoints(ctx context.Context, id int64, points int64) error {
	logger.EnterMethod("customerRepository.AddLoyaltyPoints", "customerID", id, "points", points)

	res, err := r.db.ExecContext(ctx, `UPDATE customers SET loyalty_points = loyalty_points + $1 WHERE id = $2`, points, id)
	if err != nil {
		err = mapErr("customer", err)
		logger.ExitMethodWithError("customerRepository.AddLoyaltyPoints", err, "customerID", id)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err := mapErr("customer", sql.ErrNoRows)
		logger.ExitMethodWithError("customerRepository.AddLoyaltyPoints", err, "customerID", id)
		return err
	}

	logger.ExitMethod("customerRepository.AddLoyaltyPoints", "customerID", id)
	return nil
}
