// Package memory is an in-process repository.Store for local runs and tests.
// Transactions are serialized and rolled back by restoring a snapshot.
package memory

import (
	"context"
	"sync"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/repository"
)

type settlementKey struct {
	orderID   int64
	reference string
}

type data struct {
	seq int64

	orders      map[int64]domain.Order
	orderNos    map[string]int64
	vehicles    map[int64]domain.Vehicle
	vehicleLogs []domain.VehicleStatusLog
	branches    map[int64]domain.Branch
	customers   map[int64]domain.Customer
	coupons     map[int64]domain.Coupon
	grants      map[int64]domain.UserCouponGrant
	cases       map[int64]domain.AfterSalesCase
	settlements []domain.SettlementEvent
	settled     map[settlementKey]struct{}
	events      []domain.OrderEventLog
	flows       []domain.FundsFlowEntry
}

func newData() *data {
	return &data{
		orders:    make(map[int64]domain.Order),
		orderNos:  make(map[string]int64),
		vehicles:  make(map[int64]domain.Vehicle),
		branches:  make(map[int64]domain.Branch),
		customers: make(map[int64]domain.Customer),
		coupons:   make(map[int64]domain.Coupon),
		grants:    make(map[int64]domain.UserCouponGrant),
		cases:     make(map[int64]domain.AfterSalesCase),
		settled:   make(map[settlementKey]struct{}),
	}
}

func (d *data) nextID() int64 {
	d.seq++
	return d.seq
}

func (d *data) clone() *data {
	c := newData()
	c.seq = d.seq
	for k, v := range d.orders {
		c.orders[k] = copyOrder(v)
	}
	for k, v := range d.orderNos {
		c.orderNos[k] = v
	}
	for k, v := range d.vehicles {
		c.vehicles[k] = v
	}
	for k, v := range d.branches {
		c.branches[k] = v
	}
	for k, v := range d.customers {
		c.customers[k] = v
	}
	for k, v := range d.coupons {
		c.coupons[k] = v
	}
	for k, v := range d.grants {
		c.grants[k] = v
	}
	for k, v := range d.cases {
		c.cases[k] = copyCase(v)
	}
	for k := range d.settled {
		c.settled[k] = struct{}{}
	}
	c.vehicleLogs = append([]domain.VehicleStatusLog(nil), d.vehicleLogs...)
	c.settlements = append([]domain.SettlementEvent(nil), d.settlements...)
	c.events = append([]domain.OrderEventLog(nil), d.events...)
	c.flows = append([]domain.FundsFlowEntry(nil), d.flows...)
	return c
}

func copyOrder(o domain.Order) domain.Order {
	o.PickupEvidence = append([]string(nil), o.PickupEvidence...)
	o.ReturnEvidence = append([]string(nil), o.ReturnEvidence...)
	return o
}

func copyCase(c domain.AfterSalesCase) domain.AfterSalesCase {
	c.Evidence = append([]string(nil), c.Evidence...)
	return c
}

// Store keeps everything in maps guarded by mu. WithinTx additionally holds
// txMu for the whole callback so transactions never interleave.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	d    *data

	repos *repository.Repositories
}

func NewStore() *Store {
	s := &Store{d: newData()}
	s.repos = s.newRepositories()
	return s
}

func (s *Store) newRepositories() *repository.Repositories {
	return &repository.Repositories{
		Orders:      &orderRepository{s: s},
		Vehicles:    &vehicleRepository{s: s},
		Branches:    &branchRepository{s: s},
		Customers:   &customerRepository{s: s},
		Coupons:     &couponRepository{s: s},
		AfterSales:  &afterSalesRepository{s: s},
		Settlements: &settlementRepository{s: s},
		Journal:     &journalRepository{s: s},
	}
}

func (s *Store) Repos() *repository.Repositories {
	return s.repos
}

func (s *Store) WithinTx(ctx context.Context, fn func(repos *repository.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	snapshot := s.d.clone()
	s.mu.Unlock()

	if err := fn(s.repos); err != nil {
		s.mu.Lock()
		s.d = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) with(fn func(d *data)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.d)
}

// Seed helpers used by the dev server and tests. Zero IDs are assigned.

func (s *Store) PutBranch(b domain.Branch) domain.Branch {
	s.with(func(d *data) {
		if b.ID == 0 {
			b.ID = d.nextID()
		}
		d.branches[b.ID] = b
	})
	return b
}

func (s *Store) PutVehicle(v domain.Vehicle) domain.Vehicle {
	s.with(func(d *data) {
		if v.ID == 0 {
			v.ID = d.nextID()
		}
		d.vehicles[v.ID] = v
	})
	return v
}

func (s *Store) PutCustomer(c domain.Customer) domain.Customer {
	s.with(func(d *data) {
		if c.ID == 0 {
			c.ID = d.nextID()
		}
		d.customers[c.ID] = c
	})
	return c
}

func (s *Store) PutCoupon(c domain.Coupon) domain.Coupon {
	s.with(func(d *data) {
		if c.ID == 0 {
			c.ID = d.nextID()
		}
		d.coupons[c.ID] = c
	})
	return c
}

func (s *Store) PutGrant(g domain.UserCouponGrant) domain.UserCouponGrant {
	s.with(func(d *data) {
		if g.ID == 0 {
			g.ID = d.nextID()
		}
		d.grants[g.ID] = g
	})
	return g
}

func (s *Store) PutOrder(o domain.Order) domain.Order {
	s.with(func(d *data) {
		if o.ID == 0 {
			o.ID = d.nextID()
		}
		d.orders[o.ID] = copyOrder(o)
		d.orderNos[o.OrderNo] = o.ID
	})
	return o
}

// Grants returns every grant a user holds for a coupon.
func (s *Store) Grants(userID, couponID int64) []domain.UserCouponGrant {
	var out []domain.UserCouponGrant
	s.with(func(d *data) {
		for _, g := range d.grants {
			if g.UserID == userID && g.CouponID == couponID {
				out = append(out, g)
			}
		}
	})
	return out
}
