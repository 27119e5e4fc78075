package domain

import "time"

type VehicleStatus int

const (
	VehicleStatusOffline     VehicleStatus = 0
	VehicleStatusAvailable   VehicleStatus = 1
	VehicleStatusReserved    VehicleStatus = 2
	VehicleStatusRented      VehicleStatus = 3
	VehicleStatusMaintenance VehicleStatus = 4
	VehicleStatusCleaning    VehicleStatus = 5
)

func (s VehicleStatus) String() string {
	switch s {
	case VehicleStatusOffline:
		return "OFFLINE"
	case VehicleStatusAvailable:
		return "AVAILABLE"
	case VehicleStatusReserved:
		return "RESERVED"
	case VehicleStatusRented:
		return "RENTED"
	case VehicleStatusMaintenance:
		return "MAINTENANCE"
	case VehicleStatusCleaning:
		return "CLEANING"
	}
	return "UNKNOWN"
}

// Holds reports whether a vehicle in this status is bound to an order.
func (s VehicleStatus) Holds() bool {
	return s == VehicleStatusReserved || s == VehicleStatusRented
}

type Vehicle struct {
	ID              int64         `json:"id"`
	Name            string        `json:"name"`
	PlateNumber     string        `json:"plate_number"`
	BranchID        int64         `json:"branch_id"`
	DailyPriceCents int64         `json:"daily_price_cents"`
	DepositCents    int64         `json:"deposit_cents"`
	Status          VehicleStatus `json:"status"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// VehicleStatusLog is appended for every status write made during an order transition.
type VehicleStatusLog struct {
	ID           int64         `json:"id"`
	VehicleID    int64         `json:"vehicle_id"`
	VehicleName  string        `json:"vehicle_name"`
	PlateNumber  string        `json:"plate_number"`
	FromStatus   VehicleStatus `json:"from_status"`
	ToStatus     VehicleStatus `json:"to_status"`
	OrderID      *int64        `json:"order_id,omitempty"`
	OperatorID   int64         `json:"operator_id"`
	OperatorName string        `json:"operator_name"`
	OperatorRole Role          `json:"operator_role"`
	Remark       string        `json:"remark"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Branch is a physical rental store where vehicles are picked up and returned.
type Branch struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	City   string `json:"city"`
	Active bool   `json:"active"`
}
