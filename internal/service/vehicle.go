package service

import (
	"context"
	"fmt"
	"slices"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"
)

// transitionVehicle moves a vehicle to `to` if its current status is one of
// from, appends a status log row and queues the change for telematics.
func (c *core) transitionVehicle(ctx context.Context, repos *repository.Repositories, fx *effects, vehicleID int64, from []domain.VehicleStatus, to domain.VehicleStatus, orderID int64, actor domain.Identity, remark string) error {
	logger.EnterMethod("core.transitionVehicle", "vehicleID", vehicleID, "to", to, "orderID", orderID)

	v, err := repos.Vehicles.GetByIDForUpdate(ctx, vehicleID)
	if err != nil {
		logger.ExitMethodWithError("core.transitionVehicle", err, "vehicleID", vehicleID)
		return err
	}

	ok, err := repos.Vehicles.CompareAndSetStatus(ctx, vehicleID, from, to)
	if err != nil {
		logger.ExitMethodWithError("core.transitionVehicle", err, "vehicleID", vehicleID)
		return err
	}
	if !ok {
		err := fmt.Errorf("%w: vehicle %d is %s", domain.ErrVehicleUnavailable, vehicleID, v.Status)
		logger.ExitMethodWithError("core.transitionVehicle", err, "vehicleID", vehicleID)
		return err
	}

	var orderRef *int64
	if orderID != 0 {
		orderRef = &orderID
	}
	entry := &domain.VehicleStatusLog{
		VehicleID:    v.ID,
		VehicleName:  v.Name,
		PlateNumber:  v.PlateNumber,
		FromStatus:   v.Status,
		ToStatus:     to,
		OrderID:      orderRef,
		OperatorID:   actor.UserID,
		OperatorName: actor.Name,
		OperatorRole: actor.Role,
		Remark:       remark,
		CreatedAt:    c.now(),
	}
	if err := repos.Vehicles.AppendStatusLog(ctx, entry); err != nil {
		logger.ExitMethodWithError("core.transitionVehicle", err, "vehicleID", vehicleID)
		return err
	}

	change := VehicleChange{
		VehicleID:   v.ID,
		PlateNumber: v.PlateNumber,
		From:        v.Status,
		To:          to,
		OrderID:     orderID,
		At:          entry.CreatedAt,
	}
	fx.vehicle(change)
	fx.publish(EventVehicleTransition, v.PlateNumber, change)

	logger.ExitMethod("core.transitionVehicle", "vehicleID", vehicleID, "from", v.Status, "to", to)
	return nil
}

// releaseVehicle returns a reserved vehicle to the fleet. A vehicle that is no
// longer reserved was already released and is left alone.
func (c *core) releaseVehicle(ctx context.Context, repos *repository.Repositories, fx *effects, o *domain.Order, actor domain.Identity, remark string) error {
	v, err := repos.Vehicles.GetByIDForUpdate(ctx, o.VehicleID)
	if err != nil {
		return err
	}
	if v.Status != domain.VehicleStatusReserved {
		logger.Info("Vehicle already released", "vehicleID", v.ID, "status", v.Status, "orderID", o.ID)
		return nil
	}
	return c.transitionVehicle(ctx, repos, fx, o.VehicleID,
		[]domain.VehicleStatus{domain.VehicleStatusReserved}, domain.VehicleStatusAvailable, o.ID, actor, remark)
}

// returnToFleet makes a returned vehicle available again. A vehicle staff
// already moved elsewhere (maintenance, another booking) is left alone.
func (c *core) returnToFleet(ctx context.Context, repos *repository.Repositories, fx *effects, o *domain.Order, actor domain.Identity, remark string) error {
	from := []domain.VehicleStatus{domain.VehicleStatusCleaning, domain.VehicleStatusRented}
	v, err := repos.Vehicles.GetByIDForUpdate(ctx, o.VehicleID)
	if err != nil {
		return err
	}
	if !slices.Contains(from, v.Status) {
		logger.Info("Vehicle not awaiting release", "vehicleID", v.ID, "status", v.Status, "orderID", o.ID)
		return nil
	}
	return c.transitionVehicle(ctx, repos, fx, o.VehicleID, from, domain.VehicleStatusAvailable, o.ID, actor, remark)
}
