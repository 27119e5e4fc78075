package app

import (
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/repository/memory"
)

// seedDemo gives the in-memory store a small fleet so a local server is usable
// without a database. Customer ids match tokens minted for users 1 and 2.
func seedDemo(store *memory.Store) {
	airport := store.PutBranch(domain.Branch{Name: "Airport", City: "Hangzhou", Active: true})
	station := store.PutBranch(domain.Branch{Name: "East Station", City: "Hangzhou", Active: true})

	store.PutVehicle(domain.Vehicle{Name: "Tesla Model Y", PlateNumber: "ZA-10001", BranchID: airport.ID, DailyPriceCents: 45000, DepositCents: 300000, Status: domain.VehicleStatusAvailable})
	store.PutVehicle(domain.Vehicle{Name: "Toyota Camry", PlateNumber: "ZA-10002", BranchID: airport.ID, DailyPriceCents: 28000, DepositCents: 200000, Status: domain.VehicleStatusAvailable})
	store.PutVehicle(domain.Vehicle{Name: "BYD Dolphin", PlateNumber: "ZA-10003", BranchID: station.ID, DailyPriceCents: 18000, DepositCents: 100000, Status: domain.VehicleStatusAvailable})

	now := time.Now().UTC()
	store.PutCustomer(domain.Customer{ID: 1, Name: "Demo Customer", Email: "demo@example.com", CreatedAt: now})
	store.PutCustomer(domain.Customer{ID: 2, Name: "Second Customer", Email: "second@example.com", CreatedAt: now})
	store.PutCoupon(domain.Coupon{
		Code:                "WELCOME50",
		Name:                "Welcome 50 off 300",
		Type:                domain.CouponTypeThreshold,
		MinAmountCents:      30000,
		DiscountAmountCents: 5000,
		PerUserLimit:        1,
		StartTime:           now.AddDate(0, 0, -1),
		EndTime:             now.AddDate(0, 3, 0),
		Enabled:             true,
	})
}
