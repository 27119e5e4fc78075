package repository

import (
	"context"
	"time"

	"carrental-backend/internal/domain"
)

type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	// GetByIDForUpdate locks the order row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Order, error)
	GetByOrderNo(ctx context.Context, orderNo string) (*domain.Order, error)
	// Update writes the mutable columns only if the stored status still equals
	// expected. It returns false when another writer moved the order first.
	Update(ctx context.Context, o *domain.Order, expected domain.OrderStatus) (bool, error)
	List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int32, error)
	ListByStatusBefore(ctx context.Context, status domain.OrderStatus, field string, before time.Time, limit int) ([]domain.Order, error)
	Stats(ctx context.Context) (*domain.OrderStats, error)
}

type VehicleRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Vehicle, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Vehicle, error)
	// CompareAndSetStatus moves the vehicle to `to` only if its status is one of from.
	CompareAndSetStatus(ctx context.Context, id int64, from []domain.VehicleStatus, to domain.VehicleStatus) (bool, error)
	AppendStatusLog(ctx context.Context, entry *domain.VehicleStatusLog) error
	ListStatusLog(ctx context.Context, vehicleID int64) ([]domain.VehicleStatusLog, error)
}

type BranchRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Branch, error)
}

type CustomerRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Customer, error)
	AddLoyaltyPoints(ctx context.Context, id int64, points int64) error
}

type CouponRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Coupon, error)
	// FindUnusedGrant returns the oldest unused grant the user holds for a coupon.
	FindUnusedGrant(ctx context.Context, userID, couponID int64) (*domain.UserCouponGrant, error)
	CountGrants(ctx context.Context, userID, couponID int64) (total int, unused int, err error)
	CreateGrant(ctx context.Context, g *domain.UserCouponGrant) error
	// ConsumeGrant marks the grant used for orderID only if it is still unused.
	ConsumeGrant(ctx context.Context, grantID, orderID int64, at time.Time) (bool, error)
	// ReleaseGrant returns the grant consumed by orderID to unused. It returns
	// the coupon id of the released grant, or false if there was none.
	ReleaseGrant(ctx context.Context, orderID int64) (int64, bool, error)
	IncrementUsed(ctx context.Context, couponID int64) (bool, error)
	DecrementUsed(ctx context.Context, couponID int64) error
	ExpireGrants(ctx context.Context, now time.Time) (int64, error)
}

type AfterSalesRepository interface {
	Create(ctx context.Context, c *domain.AfterSalesCase) error
	GetByID(ctx context.Context, id int64) (*domain.AfterSalesCase, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.AfterSalesCase, error)
	Update(ctx context.Context, c *domain.AfterSalesCase) error
	HasActiveForOrder(ctx context.Context, orderID int64) (bool, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.AfterSalesCase, error)
	ListByStatus(ctx context.Context, status *domain.AfterSalesStatus, page, pageSize int32) ([]domain.AfterSalesCase, int32, error)
}

type SettlementRepository interface {
	// Append inserts the event unless (order_id, external_reference) already
	// exists, in which case it returns false and writes nothing.
	Append(ctx context.Context, ev *domain.SettlementEvent) (bool, error)
	ListByOrder(ctx context.Context, orderID int64) ([]domain.SettlementEvent, error)
}

type JournalRepository interface {
	AppendOrderEvent(ctx context.Context, ev *domain.OrderEventLog) error
	AppendFundsFlow(ctx context.Context, entry *domain.FundsFlowEntry) error
	ListOrderEvents(ctx context.Context, orderID int64) ([]domain.OrderEventLog, error)
	ListFundsFlow(ctx context.Context, orderID int64) ([]domain.FundsFlowEntry, error)
}

// Repositories groups the repositories bound to one connection or transaction.
type Repositories struct {
	Orders      OrderRepository
	Vehicles    VehicleRepository
	Branches    BranchRepository
	Customers   CustomerRepository
	Coupons     CouponRepository
	AfterSales  AfterSalesRepository
	Settlements SettlementRepository
	Journal     JournalRepository
}

// Store is the transactional persistence boundary used by the services.
type Store interface {
	// Repos returns repositories running outside any transaction.
	Repos() *Repositories
	// WithinTx runs fn in one transaction. A non-nil error from fn rolls back.
	WithinTx(ctx context.Context, fn func(repos *Repositories) error) error
	Ping(ctx context.Context) error
}

// Order list fields accepted by ListByStatusBefore.
const (
	OrderFieldUpdatedAt  = "updated_at"
	OrderFieldReturnTime = "return_time"
	OrderFieldCreatedAt  = "created_at"
)
