package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/repository"
)

func notFound(entity string, key any) error {
	return fmt.Errorf("%s %v: %w", entity, key, domain.ErrNotFound)
}

type orderRepository struct{ s *Store }

func (r *orderRepository) Create(ctx context.Context, o *domain.Order) error {
	var err error
	r.s.with(func(d *data) {
		if _, exists := d.orderNos[o.OrderNo]; exists {
			err = fmt.Errorf("%w: order number %s already exists", domain.ErrConflict, o.OrderNo)
			return
		}
		now := time.Now().UTC()
		o.ID = d.nextID()
		o.CreatedAt = now
		o.UpdatedAt = now
		d.orders[o.ID] = copyOrder(*o)
		d.orderNos[o.OrderNo] = o.ID
	})
	return err
}

func (r *orderRepository) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	var out *domain.Order
	r.s.with(func(d *data) {
		if o, ok := d.orders[id]; ok {
			c := copyOrder(o)
			out = &c
		}
	})
	if out == nil {
		return nil, notFound("order", id)
	}
	return out, nil
}

func (r *orderRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *orderRepository) GetByOrderNo(ctx context.Context, orderNo string) (*domain.Order, error) {
	var id int64
	var ok bool
	r.s.with(func(d *data) { id, ok = d.orderNos[orderNo] })
	if !ok {
		return nil, notFound("order", orderNo)
	}
	return r.GetByID(ctx, id)
}

func (r *orderRepository) Update(ctx context.Context, o *domain.Order, expected domain.OrderStatus) (bool, error) {
	updated := false
	r.s.with(func(d *data) {
		cur, ok := d.orders[o.ID]
		if !ok || cur.Status != expected {
			return
		}
		o.UpdatedAt = time.Now().UTC()
		d.orders[o.ID] = copyOrder(*o)
		updated = true
	})
	return updated, nil
}

func (r *orderRepository) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int32, error) {
	var all []domain.Order
	r.s.with(func(d *data) {
		for _, o := range d.orders {
			if filter.UserID != nil && o.UserID != *filter.UserID {
				continue
			}
			if filter.Status != nil && o.Status != *filter.Status {
				continue
			}
			all = append(all, copyOrder(o))
		}
	})
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	start, end := paginate(len(all), filter.Page, filter.PageSize)
	return all[start:end], int32(len(all)), nil
}

func (r *orderRepository) ListByStatusBefore(ctx context.Context, status domain.OrderStatus, field string, before time.Time, limit int) ([]domain.Order, error) {
	pick := map[string]func(o domain.Order) time.Time{
		repository.OrderFieldUpdatedAt:  func(o domain.Order) time.Time { return o.UpdatedAt },
		repository.OrderFieldReturnTime: func(o domain.Order) time.Time { return o.ReturnTime },
		repository.OrderFieldCreatedAt:  func(o domain.Order) time.Time { return o.CreatedAt },
	}[field]
	if pick == nil {
		return nil, domain.Validationf("unsupported order field %q", field)
	}

	var out []domain.Order
	r.s.with(func(d *data) {
		for _, o := range d.orders {
			if o.Status == status && pick(o).Before(before) {
				out = append(out, copyOrder(o))
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return pick(out[i]).Before(pick(out[j])) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *orderRepository) Stats(ctx context.Context) (*domain.OrderStats, error) {
	stats := &domain.OrderStats{CountByStatus: make(map[domain.OrderStatus]int64)}
	for _, s := range domain.AllOrderStatuses() {
		stats.CountByStatus[s] = 0
	}
	r.s.with(func(d *data) {
		for _, o := range d.orders {
			stats.CountByStatus[o.Status]++
			stats.PaidAmountCents += o.PaidAmountCents
			stats.RefundAmountCents += o.RefundAmountCents
		}
	})
	return stats, nil
}

func paginate(n int, page, pageSize int32) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	start := int((page - 1) * pageSize)
	if start > n {
		start = n
	}
	end := start + int(pageSize)
	if end > n {
		end = n
	}
	return start, end
}

type vehicleRepository struct{ s *Store }

func (r *vehicleRepository) GetByID(ctx context.Context, id int64) (*domain.Vehicle, error) {
	var out *domain.Vehicle
	r.s.with(func(d *data) {
		if v, ok := d.vehicles[id]; ok {
			out = &v
		}
	})
	if out == nil {
		return nil, notFound("vehicle", id)
	}
	return out, nil
}

func (r *vehicleRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Vehicle, error) {
	return r.GetByID(ctx, id)
}

func (r *vehicleRepository) CompareAndSetStatus(ctx context.Context, id int64, from []domain.VehicleStatus, to domain.VehicleStatus) (bool, error) {
	updated := false
	r.s.with(func(d *data) {
		v, ok := d.vehicles[id]
		if !ok {
			return
		}
		for _, s := range from {
			if v.Status == s {
				v.Status = to
				v.UpdatedAt = time.Now().UTC()
				d.vehicles[id] = v
				updated = true
				return
			}
		}
	})
	return updated, nil
}

func (r *vehicleRepository) AppendStatusLog(ctx context.Context, entry *domain.VehicleStatusLog) error {
	r.s.with(func(d *data) {
		entry.ID = d.nextID()
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = time.Now().UTC()
		}
		d.vehicleLogs = append(d.vehicleLogs, *entry)
	})
	return nil
}

func (r *vehicleRepository) ListStatusLog(ctx context.Context, vehicleID int64) ([]domain.VehicleStatusLog, error) {
	var out []domain.VehicleStatusLog
	r.s.with(func(d *data) {
		for _, l := range d.vehicleLogs {
			if l.VehicleID == vehicleID {
				out = append(out, l)
			}
		}
	})
	return out, nil
}

type branchRepository struct{ s *Store }

func (r *branchRepository) GetByID(ctx context.Context, id int64) (*domain.Branch, error) {
	var out *domain.Branch
	r.s.with(func(d *data) {
		if b, ok := d.branches[id]; ok {
			out = &b
		}
	})
	if out == nil {
		return nil, notFound("branch", id)
	}
	return out, nil
}

type customerRepository struct{ s *Store }

func (r *customerRepository) GetByID(ctx context.Context, id int64) (*domain.Customer, error) {
	var out *domain.Customer
	r.s.with(func(d *data) {
		if c, ok := d.customers[id]; ok {
			out = &c
		}
	})
	if out == nil {
		return nil, notFound("customer", id)
	}
	return out, nil
}

func (r *customerRepository) AddLoyaltyPoints(ctx context.Context, id int64, points int64) error {
	found := false
	r.s.with(func(d *data) {
		if c, ok := d.customers[id]; ok {
			c.LoyaltyPoints += points
			d.customers[id] = c
			found = true
		}
	})
	if !found {
		return notFound("customer", id)
	}
	return nil
}

type couponRepository struct{ s *Store }

func (r *couponRepository) GetByID(ctx context.Context, id int64) (*domain.Coupon, error) {
	var out *domain.Coupon
	r.s.with(func(d *data) {
		if c, ok := d.coupons[id]; ok {
			out = &c
		}
	})
	if out == nil {
		return nil, notFound("coupon", id)
	}
	return out, nil
}

func (r *couponRepository) FindUnusedGrant(ctx context.Context, userID, couponID int64) (*domain.UserCouponGrant, error) {
	var out *domain.UserCouponGrant
	r.s.with(func(d *data) {
		for _, g := range d.grants {
			if g.UserID == userID && g.CouponID == couponID && g.Status == domain.GrantStatusUnused {
				if out == nil || g.ID < out.ID {
					g := g
					out = &g
				}
			}
		}
	})
	if out == nil {
		return nil, notFound("coupon grant", couponID)
	}
	return out, nil
}

func (r *couponRepository) CountGrants(ctx context.Context, userID, couponID int64) (int, int, error) {
	var total, unused int
	r.s.with(func(d *data) {
		for _, g := range d.grants {
			if g.UserID == userID && g.CouponID == couponID {
				total++
				if g.Status == domain.GrantStatusUnused {
					unused++
				}
			}
		}
	})
	return total, unused, nil
}

func (r *couponRepository) CreateGrant(ctx context.Context, g *domain.UserCouponGrant) error {
	r.s.with(func(d *data) {
		g.ID = d.nextID()
		if g.CreatedAt.IsZero() {
			g.CreatedAt = time.Now().UTC()
		}
		d.grants[g.ID] = *g
	})
	return nil
}

func (r *couponRepository) ConsumeGrant(ctx context.Context, grantID, orderID int64, at time.Time) (bool, error) {
	consumed := false
	r.s.with(func(d *data) {
		g, ok := d.grants[grantID]
		if !ok || g.Status != domain.GrantStatusUnused {
			return
		}
		g.Status = domain.GrantStatusUsed
		g.OrderID = &orderID
		g.UsedAt = &at
		d.grants[grantID] = g
		consumed = true
	})
	return consumed, nil
}

func (r *couponRepository) ReleaseGrant(ctx context.Context, orderID int64) (int64, bool, error) {
	var couponID int64
	released := false
	r.s.with(func(d *data) {
		for id, g := range d.grants {
			if g.OrderID != nil && *g.OrderID == orderID && g.Status == domain.GrantStatusUsed {
				g.Status = domain.GrantStatusUnused
				g.OrderID = nil
				g.UsedAt = nil
				d.grants[id] = g
				couponID = g.CouponID
				released = true
				return
			}
		}
	})
	return couponID, released, nil
}

func (r *couponRepository) IncrementUsed(ctx context.Context, couponID int64) (bool, error) {
	ok := false
	r.s.with(func(d *data) {
		c, found := d.coupons[couponID]
		if !found || c.Exhausted() {
			return
		}
		c.UsedCount++
		d.coupons[couponID] = c
		ok = true
	})
	return ok, nil
}

func (r *couponRepository) DecrementUsed(ctx context.Context, couponID int64) error {
	r.s.with(func(d *data) {
		if c, ok := d.coupons[couponID]; ok && c.UsedCount > 0 {
			c.UsedCount--
			d.coupons[couponID] = c
		}
	})
	return nil
}

func (r *couponRepository) ExpireGrants(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	r.s.with(func(d *data) {
		for id, g := range d.grants {
			if g.Status != domain.GrantStatusUnused {
				continue
			}
			c, ok := d.coupons[g.CouponID]
			if ok && !c.EndTime.IsZero() && c.EndTime.Before(now) {
				g.Status = domain.GrantStatusExpired
				d.grants[id] = g
				n++
			}
		}
	})
	return n, nil
}

type afterSalesRepository struct{ s *Store }

func (r *afterSalesRepository) Create(ctx context.Context, c *domain.AfterSalesCase) error {
	var err error
	r.s.with(func(d *data) {
		for _, existing := range d.cases {
			if existing.OrderID == c.OrderID && existing.Status.Active() {
				err = domain.ErrDuplicateActiveCase
				return
			}
		}
		now := time.Now().UTC()
		c.ID = d.nextID()
		c.CreatedAt = now
		c.UpdatedAt = now
		d.cases[c.ID] = copyCase(*c)
	})
	return err
}

func (r *afterSalesRepository) GetByID(ctx context.Context, id int64) (*domain.AfterSalesCase, error) {
	var out *domain.AfterSalesCase
	r.s.with(func(d *data) {
		if c, ok := d.cases[id]; ok {
			c = copyCase(c)
			out = &c
		}
	})
	if out == nil {
		return nil, notFound("after-sales case", id)
	}
	return out, nil
}

func (r *afterSalesRepository) GetByIDForUpdate(ctx context.Context, id int64) (*domain.AfterSalesCase, error) {
	return r.GetByID(ctx, id)
}

func (r *afterSalesRepository) Update(ctx context.Context, c *domain.AfterSalesCase) error {
	found := false
	r.s.with(func(d *data) {
		if _, ok := d.cases[c.ID]; ok {
			c.UpdatedAt = time.Now().UTC()
			d.cases[c.ID] = copyCase(*c)
			found = true
		}
	})
	if !found {
		return notFound("after-sales case", c.ID)
	}
	return nil
}

func (r *afterSalesRepository) HasActiveForOrder(ctx context.Context, orderID int64) (bool, error) {
	active := false
	r.s.with(func(d *data) {
		for _, c := range d.cases {
			if c.OrderID == orderID && c.Status.Active() {
				active = true
				return
			}
		}
	})
	return active, nil
}

func (r *afterSalesRepository) ListByUser(ctx context.Context, userID int64) ([]domain.AfterSalesCase, error) {
	var out []domain.AfterSalesCase
	r.s.with(func(d *data) {
		for _, c := range d.cases {
			if c.UserID == userID {
				out = append(out, copyCase(c))
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *afterSalesRepository) ListByStatus(ctx context.Context, status *domain.AfterSalesStatus, page, pageSize int32) ([]domain.AfterSalesCase, int32, error) {
	var all []domain.AfterSalesCase
	r.s.with(func(d *data) {
		for _, c := range d.cases {
			if status == nil || c.Status == *status {
				all = append(all, copyCase(c))
			}
		}
	})
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	start, end := paginate(len(all), page, pageSize)
	return all[start:end], int32(len(all)), nil
}

type settlementRepository struct{ s *Store }

func (r *settlementRepository) Append(ctx context.Context, ev *domain.SettlementEvent) (bool, error) {
	inserted := false
	r.s.with(func(d *data) {
		key := settlementKey{orderID: ev.OrderID, reference: ev.ExternalReference}
		if _, dup := d.settled[key]; dup {
			return
		}
		ev.ID = d.nextID()
		if ev.CreatedAt.IsZero() {
			ev.CreatedAt = time.Now().UTC()
		}
		d.settled[key] = struct{}{}
		d.settlements = append(d.settlements, *ev)
		inserted = true
	})
	return inserted, nil
}

func (r *settlementRepository) ListByOrder(ctx context.Context, orderID int64) ([]domain.SettlementEvent, error) {
	var out []domain.SettlementEvent
	r.s.with(func(d *data) {
		for _, ev := range d.settlements {
			if ev.OrderID == orderID {
				out = append(out, ev)
			}
		}
	})
	return out, nil
}

type journalRepository struct{ s *Store }

func (r *journalRepository) AppendOrderEvent(ctx context.Context, ev *domain.OrderEventLog) error {
	r.s.with(func(d *data) {
		ev.ID = d.nextID()
		if ev.CreatedAt.IsZero() {
			ev.CreatedAt = time.Now().UTC()
		}
		d.events = append(d.events, *ev)
	})
	return nil
}

func (r *journalRepository) AppendFundsFlow(ctx context.Context, entry *domain.FundsFlowEntry) error {
	r.s.with(func(d *data) {
		entry.ID = d.nextID()
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = time.Now().UTC()
		}
		d.flows = append(d.flows, *entry)
	})
	return nil
}

func (r *journalRepository) ListOrderEvents(ctx context.Context, orderID int64) ([]domain.OrderEventLog, error) {
	var out []domain.OrderEventLog
	r.s.with(func(d *data) {
		for _, ev := range d.events {
			if ev.OrderID == orderID {
				out = append(out, ev)
			}
		}
	})
	return out, nil
}

func (r *journalRepository) ListFundsFlow(ctx context.Context, orderID int64) ([]domain.FundsFlowEntry, error) {
	var out []domain.FundsFlowEntry
	r.s.with(func(d *data) {
		for _, e := range d.flows {
			if e.OrderID == orderID {
				out = append(out, e)
			}
		}
	})
	return out, nil
}
