package service

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/gateway"
	"carrental-backend/internal/repository/memory"
	"carrental-backend/internal/utils"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	t0    = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	staff = domain.Identity{UserID: 900, Name: "Desk", Role: domain.RoleStaff}
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type publishedEvent struct {
	eventType string
	key       string
	payload   any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, eventType, key string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{eventType: eventType, key: key, payload: payload})
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.eventType)
	}
	return out
}

func (p *recordingPublisher) anomalies() []PaymentAnomaly {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []PaymentAnomaly
	for _, e := range p.events {
		if a, ok := e.payload.(PaymentAnomaly); ok {
			out = append(out, a)
		}
	}
	return out
}

type memDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *memDeduper) Seen(ctx context.Context, notifyID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[notifyID], nil
}

func (d *memDeduper) MarkSeen(ctx context.Context, notifyID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[notifyID] = true
	return nil
}

type mapCache struct {
	mu      sync.Mutex
	entries map[int64]CachedStatus
}

func (c *mapCache) GetOrderStatus(ctx context.Context, orderID int64) (*CachedStatus, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.entries[orderID]
	if !ok {
		return nil, false, nil
	}
	return &st, true, nil
}

func (c *mapCache) SetOrderStatus(ctx context.Context, orderID int64, st CachedStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[orderID] = st
	return nil
}

type sentEmail struct {
	kind    string
	orderNo string
	status  domain.OrderStatus
	code    string
	amount  int64
}

type recordingEmail struct {
	mu   sync.Mutex
	sent []sentEmail
}

func (e *recordingEmail) record(m sentEmail) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sent = append(e.sent, m)
	return nil
}

func (e *recordingEmail) SendBookingConfirmation(ctx context.Context, c *domain.Customer, o *domain.Order, pickupCode string) error {
	return e.record(sentEmail{kind: "booking", orderNo: o.OrderNo, status: o.Status, code: pickupCode})
}

func (e *recordingEmail) SendOrderStatusUpdate(ctx context.Context, c *domain.Customer, o *domain.Order) error {
	return e.record(sentEmail{kind: "status", orderNo: o.OrderNo, status: o.Status})
}

func (e *recordingEmail) SendRefundNotice(ctx context.Context, c *domain.Customer, o *domain.Order, amountCents int64) error {
	return e.record(sentEmail{kind: "refund", orderNo: o.OrderNo, status: o.Status, amount: amountCents})
}

func (e *recordingEmail) kinds() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.sent))
	for _, m := range e.sent {
		out = append(out, m.kind)
	}
	return out
}

type vehicleRecorder struct {
	mu      sync.Mutex
	changes []VehicleChange
}

func (r *vehicleRecorder) PublishVehicleStatus(ctx context.Context, change VehicleChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change)
	return nil
}

// MockGateway mocks PaymentGateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) AppID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockGateway) PagePayForm(orderNo string, amountCents int64) (string, error) {
	args := m.Called(orderNo, amountCents)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) ParseCallback(params url.Values) (*gateway.Callback, error) {
	args := m.Called(params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Callback), args.Error(1)
}

func (m *MockGateway) QueryTrade(ctx context.Context, orderNo string) (*gateway.TradeQueryResult, error) {
	args := m.Called(ctx, orderNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.TradeQueryResult), args.Error(1)
}

type fixture struct {
	ctx      context.Context
	store    *memory.Store
	clock    *testClock
	events   *recordingPublisher
	dedup    *memDeduper
	cache    *mapCache
	email    *recordingEmail
	vehicles *vehicleRecorder
	deps     Deps

	orders     OrderService
	afterSales AfterSalesService
	coupons    CouponService

	customer domain.Customer
	other    domain.Customer
	vehicle  domain.Vehicle
	branch   domain.Branch
	branch2  domain.Branch
}

func newFixture(t *testing.T, opts ...func(*Deps)) *fixture {
	t.Helper()
	f := &fixture{
		ctx:      context.Background(),
		store:    memory.NewStore(),
		clock:    &testClock{now: t0},
		events:   &recordingPublisher{},
		dedup:    &memDeduper{seen: make(map[string]bool)},
		cache:    &mapCache{entries: make(map[int64]CachedStatus)},
		email:    &recordingEmail{},
		vehicles: &vehicleRecorder{},
	}
	f.deps = Deps{
		Store:    f.store,
		Pricing:  utils.DefaultPricingRules(),
		Events:   f.events,
		Cache:    f.cache,
		Dedup:    f.dedup,
		Vehicles: f.vehicles,
		Email:    f.email,
		Now:      f.clock.Now,
	}
	for _, opt := range opts {
		opt(&f.deps)
	}

	f.branch = f.store.PutBranch(domain.Branch{Name: "Airport", City: "Hangzhou", Active: true})
	f.branch2 = f.store.PutBranch(domain.Branch{Name: "Station", City: "Hangzhou", Active: true})
	f.vehicle = f.store.PutVehicle(domain.Vehicle{
		Name:            "Model Y",
		PlateNumber:     "ZA-12345",
		BranchID:        f.branch.ID,
		DailyPriceCents: 24000,
		DepositCents:    50000,
		Status:          domain.VehicleStatusAvailable,
	})
	f.customer = f.store.PutCustomer(domain.Customer{Name: "Ann", Phone: "555-0100", Email: "ann@example.com"})
	f.other = f.store.PutCustomer(domain.Customer{Name: "Bob", Email: "bob@example.com"})

	f.orders = NewOrderService(f.deps)
	f.afterSales = NewAfterSalesService(f.deps)
	f.coupons = NewCouponService(f.deps)
	return f
}

func identityOf(c domain.Customer) domain.Identity {
	return domain.Identity{UserID: c.ID, Name: c.Name, Role: domain.RoleCustomer}
}

func (f *fixture) owner() domain.Identity {
	return identityOf(f.customer)
}

// booking is a three-day same-branch rental of the fixture vehicle without
// insurance: 3 x 240.00 + 500.00 deposit = 1220.00.
func (f *fixture) booking() domain.BookingRequest {
	return domain.BookingRequest{
		VehicleID:      f.vehicle.ID,
		PickupBranchID: f.branch.ID,
		ReturnBranchID: f.branch.ID,
		PickupTime:     t0.Add(24 * time.Hour),
		ReturnTime:     t0.Add(96 * time.Hour),
	}
}

const bookingTotal = int64(122000)

func (f *fixture) createOrder(t *testing.T) *CreateResult {
	t.Helper()
	res, err := f.orders.Create(f.ctx, f.owner(), f.booking())
	require.NoError(t, err)
	return res
}

func (f *fixture) approvedOrder(t *testing.T) *domain.Order {
	t.Helper()
	res := f.createOrder(t)
	o, err := f.orders.Approve(f.ctx, staff, res.Order.ID)
	require.NoError(t, err)
	return o
}

func (f *fixture) payments(gw PaymentGateway) PaymentService {
	return NewPaymentService(f.deps, gw, nil, "https://shop.example.com/pay/result")
}

// paidOrder returns an order in AwaitingPickup together with its pickup code.
func (f *fixture) paidOrder(t *testing.T) (*domain.Order, string) {
	t.Helper()
	res := f.createOrder(t)
	_, err := f.orders.Approve(f.ctx, staff, res.Order.ID)
	require.NoError(t, err)
	settled, err := f.payments(nil).SettlePayment(f.ctx, res.Order.ID, res.Order.TotalAmountCents, "T-"+res.Order.OrderNo, domain.ChannelNotify)
	require.NoError(t, err)
	require.True(t, settled.Applied)
	return settled.Order, res.PickupCode
}

// completedOrder drives an order through pickup, an on-time return and
// completion.
func (f *fixture) completedOrder(t *testing.T) *domain.Order {
	t.Helper()
	o, code := f.paidOrder(t)
	_, err := f.orders.RecordPickup(f.ctx, staff, o.ID, domain.PickupRecord{Odometer: 1000, FuelLevel: 100, PickupCode: code})
	require.NoError(t, err)
	_, err = f.orders.RecordReturn(f.ctx, staff, o.ID, domain.ReturnRecord{Odometer: 1300, FuelLevel: 90})
	require.NoError(t, err)
	done, err := f.orders.Complete(f.ctx, staff, o.ID)
	require.NoError(t, err)
	return done
}

func (f *fixture) reload(t *testing.T, orderID int64) *domain.Order {
	t.Helper()
	o, err := f.store.Repos().Orders.GetByID(f.ctx, orderID)
	require.NoError(t, err)
	return o
}

func (f *fixture) vehicleStatus(t *testing.T, vehicleID int64) domain.VehicleStatus {
	t.Helper()
	v, err := f.store.Repos().Vehicles.GetByID(f.ctx, vehicleID)
	require.NoError(t, err)
	return v.Status
}

func (f *fixture) settlements(t *testing.T, orderID int64) []domain.SettlementEvent {
	t.Helper()
	out, err := f.store.Repos().Settlements.ListByOrder(f.ctx, orderID)
	require.NoError(t, err)
	return out
}

func (f *fixture) flows(t *testing.T, orderID int64) []domain.FundsFlowEntry {
	t.Helper()
	out, err := f.store.Repos().Journal.ListFundsFlow(f.ctx, orderID)
	require.NoError(t, err)
	return out
}

func (f *fixture) journalTypes(t *testing.T, orderID int64) []string {
	t.Helper()
	evs, err := f.store.Repos().Journal.ListOrderEvents(f.ctx, orderID)
	require.NoError(t, err)
	out := make([]string, 0, len(evs))
	for _, e := range evs {
		out = append(out, e.EventType)
	}
	return out
}
