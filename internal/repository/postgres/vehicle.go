package postgres

import (
	"context"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"
)

type vehicleRepository struct {
	db DBTX
}

func NewVehicleRepository(db DBTX) repository.VehicleRepository {
	return &vehicleRepository{db: db}
}

const vehicleColumns = `id, name, plate_number, branch_id, daily_price_cents, deposit_cents, status, updated_at`

func (r *vehicleRepository) GetByID(ctx context.Context, id int64) (*domain.Vehicle, error) {
	return r.get(ctx, "vehicleRepository.GetByID", `SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1`, id)
}

func (r *vehicleRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Vehicle, error) {
	return r.get(ctx, "vehicleRepository.GetByIDForUpdate", `SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1 FOR UPDATE`, id)
}

func (r *vehicleRepository) get(ctx context.Context, method, query string, id int64) (*domain.Vehicle, error) {
	logger.EnterMethod(method, "vehicleID", id)

	v := &domain.Vehicle{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&v.ID, &v.Name, &v.PlateNumber, &v.BranchID, &v.DailyPriceCents, &v.DepositCents, &v.Status, &v.UpdatedAt)
	if err != nil {
		err = mapErr("vehicle", err)
		logger.ExitMethodWithError(method, err, "vehicleID", id)
		return nil, err
	}

	logger.ExitMethod(method, "vehicleID", id, "status", v.Status)
	return v, nil
}

func (r *vehicleRepository) CompareAndSetStatus(ctx context.Context, id int64, from []domain.VehicleStatus, to domain.VehicleStatus) (bool, error) {
	logger.EnterMethod("vehicleRepository.CompareAndSetStatus", "vehicleID", id, "from", from, "to", to)

	if len(from) == 0 {
		return false, domain.Validationf("no source status given")
	}

	args := []any{to, time.Now().UTC(), id}
	for _, s := range from {
		args = append(args, s)
	}
	query := `UPDATE vehicles SET status = $1, updated_at = $2 WHERE id = $3 AND status IN (` + statusPlaceholders(4, len(from)) + `)`

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		err = mapErr("vehicle", err)
		logger.ExitMethodWithError("vehicleRepository.CompareAndSetStatus", err, "vehicleID", id)
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapErr("vehicle", err)
	}

	logger.ExitMethod("vehicleRepository.CompareAndSetStatus", "vehicleID", id, "updated", n == 1)
	return n == 1, nil
}

func (r *vehicleRepository) AppendStatusLog(ctx context.Context, entry *domain.VehicleStatusLog) error {
	logger.EnterMethod("vehicleRepository.AppendStatusLog", "vehicleID", entry.VehicleID, "to", entry.ToStatus)

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO vehicle_status_logs (vehicle_id, vehicle_name, plate_number, from_status, to_status, order_id,
	          operator_id, operator_name, operator_role, remark, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		entry.VehicleID, entry.VehicleName, entry.PlateNumber, entry.FromStatus, entry.ToStatus, entry.OrderID,
		entry.OperatorID, entry.OperatorName, entry.OperatorRole, entry.Remark, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		err = mapErr("vehicle status log", err)
		logger.ExitMethodWithError("vehicleRepository.AppendStatusLog", err, "vehicleID", entry.VehicleID)
		return err
	}

	logger.ExitMethod("vehicleRepository.AppendStatusLog", "logID", entry.ID)
	return nil
}

func (r *vehicleRepository) ListStatusLog(ctx context.Context, vehicleID int64) ([]domain.VehicleStatusLog, error) {
	logger.EnterMethod("vehicleRepository.ListStatusLog", "vehicleID", vehicleID)

	query := `SELECT id, vehicle_id, vehicle_name, plate_number, from_status, to_status, order_id, operator_id,
	          operator_name, operator_role, remark, created_at
	          FROM vehicle_status_logs WHERE vehicle_id = $1 ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query, vehicleID)
	if err != nil {
		err = mapErr("vehicle status log", err)
		logger.ExitMethodWithError("vehicleRepository.ListStatusLog", err, "vehicleID", vehicleID)
		return nil, err
	}
	defer rows.Close()

	var logs []domain.VehicleStatusLog
	for rows.Next() {
		var l domain.VehicleStatusLog
		if err := rows.Scan(&l.ID, &l.VehicleID, &l.VehicleName, &l.PlateNumber, &l.FromStatus, &l.ToStatus, &l.OrderID,
			&l.OperatorID, &l.OperatorName, &l.OperatorRole, &l.Remark, &l.CreatedAt); err != nil {
			return nil, mapErr("vehicle status log", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("vehicle status log", err)
	}

	logger.ExitMethod("vehicleRepository.ListStatusLog", "count", len(logs))
	return logs, nil
}

type branchRepository struct {
	db DBTX
}

func NewBranchRepository(db DBTX) repository.BranchRepository {
	return &branchRepository{db: db}
}

func (r *branchRepository) GetByID(ctx context.Context, id int64) (*domain.Branch, error) {
	b := &domain.Branch{}
	err := r.db.QueryRowContext(ctx, `SELECT id, name, city, active FROM branches WHERE id = $1`, id).
		Scan(&b.ID, &b.Name, &b.City, &b.Active)
	if err != nil {
		return nil, mapErr("branch", err)
	}
	return b, nil
}
