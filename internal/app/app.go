// Package app wires configuration into the store, adapters and services
// shared by the server and cronjob binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"carrental-backend/internal/cache"
	"carrental-backend/internal/config"
	"carrental-backend/internal/events"
	"carrental-backend/internal/gateway"
	"carrental-backend/internal/inbox"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"
	"carrental-backend/internal/repository/memory"
	"carrental-backend/internal/repository/postgres"
	"carrental-backend/internal/service"
	"carrental-backend/internal/telematics"
	"carrental-backend/internal/utils"

	_ "github.com/lib/pq"
)

const brandName = "Car Rental"

// Options selects optional parts of the wiring
type Options struct {
	// Migrate applies the bundled schema before anything else runs
	Migrate bool
	// WithInbox opens the callback inbox. Only one process may hold it.
	WithInbox bool
}

// App holds the wired services
type App struct {
	Config *config.Config
	Store  repository.Store

	Orders     service.OrderService
	Payments   service.PaymentService
	AfterSales service.AfterSalesService
	Coupons    service.CouponService
	Inbox      *inbox.Store

	closers []func()
}

// New builds every dependency described by cfg. Optional adapters (Redis,
// Kafka, MQTT, SendGrid) are skipped when their section is empty.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg}

	store, err := a.openStore(ctx, opts.Migrate)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = store

	deps := service.Deps{
		Store: store,
		Pricing: utils.PricingRules{
			InsuranceBasicPerDayCents:   cfg.Pricing.InsuranceBasicPerDayCents,
			InsurancePremiumPerDayCents: cfg.Pricing.InsurancePremiumPerDayCents,
			CrossBranchFeeCents:         cfg.Pricing.CrossBranchFeeCents,
			OverageHourDivisor:          cfg.Pricing.OverageHourDivisor,
			LoyaltyPointDivisor:         cfg.Pricing.LoyaltyPointDivisor,
		},
		Fulfillment: service.FulfillmentOptions{
			RequirePickupCode: cfg.Fulfillment.RequirePickupCode,
			ReviewPoints:      cfg.Fulfillment.ReviewPoints,
		},
	}
	a.wireRedis(&deps)
	a.wireKafka(&deps)
	a.wireMQTT(&deps)
	a.wireEmail(ctx, &deps)

	gw, err := gateway.NewClient(gateway.Config{
		AppID:         cfg.Payment.AppID,
		GatewayURL:    cfg.Payment.GatewayURL,
		PrivateKey:    cfg.Payment.PrivateKey,
		PublicKey:     cfg.Payment.PublicKey,
		NotifyURL:     cfg.Payment.NotifyURL,
		ReturnURL:     cfg.Payment.ReturnURL,
		SubjectPrefix: cfg.Payment.SubjectPrefix,
		Timeout:       cfg.PaymentTimeout(),
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create payment gateway client: %w", err)
	}

	var journal service.CallbackJournal
	if opts.WithInbox {
		if err := os.MkdirAll(filepath.Dir(cfg.Inbox.Path), 0755); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create inbox directory: %w", err)
		}
		ib, err := inbox.Open(cfg.Inbox.Path)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Inbox = ib
		journal = ib
		a.closers = append(a.closers, func() { ib.Close() })
		logger.Info("Callback inbox opened", "path", cfg.Inbox.Path)
	}

	a.Orders = service.NewOrderService(deps)
	a.Payments = service.NewPaymentService(deps, gw, journal, cfg.Payment.FrontendURL)
	a.AfterSales = service.NewAfterSalesService(deps)
	a.Coupons = service.NewCouponService(deps)
	return a, nil
}

func (a *App) openStore(ctx context.Context, migrate bool) (repository.Store, error) {
	cfg := a.Config
	if cfg.Database.Driver == "memory" {
		logger.Warn("Using in-memory store; data is lost on exit")
		store := memory.NewStore()
		seedDemo(store)
		return store, nil
	}

	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database)
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.closers = append(a.closers, func() { db.Close() })
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info("Database connection established")

	store := postgres.NewStore(db)
	if migrate {
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func (a *App) wireRedis(deps *service.Deps) {
	cfg := a.Config.Redis
	if cfg.Addr == "" {
		return
	}
	rdb := cache.New(cfg.Addr, cfg.Password, cfg.DB)
	deps.Cache = cache.NewStatusCache(rdb, time.Duration(cfg.StatusTTLSeconds)*time.Second)
	deps.Dedup = cache.NewNotifyDeduper(rdb, time.Duration(cfg.DedupTTLHours)*time.Hour)
	a.closers = append(a.closers, func() { rdb.Close() })
	logger.Info("Redis status cache enabled", "addr", cfg.Addr)
}

func (a *App) wireKafka(deps *service.Deps) {
	cfg := a.Config.Kafka
	if len(cfg.Brokers) == 0 {
		return
	}
	p := events.NewProducer(cfg.Brokers, cfg.Topic, cfg.Producer, cfg.BufferSize)
	p.Start()
	deps.Events = p
	a.closers = append(a.closers, p.Close)
	logger.Info("Kafka event publishing enabled", "topic", cfg.Topic)
}

func (a *App) wireMQTT(deps *service.Deps) {
	cfg := a.Config.MQTT
	if cfg.BrokerURL == "" {
		return
	}
	pub, err := telematics.Connect(telematics.Config{
		BrokerURL:   cfg.BrokerURL,
		ClientID:    cfg.ClientID,
		Username:    cfg.Username,
		Password:    cfg.Password,
		TopicPrefix: cfg.TopicPrefix,
		QoS:         cfg.QoS,
	})
	if err != nil {
		// Vehicle signalling is best effort; orders still flow without it
		logger.Warn("MQTT unavailable, vehicle status signalling disabled", "error", err)
		return
	}
	deps.Vehicles = pub
	a.closers = append(a.closers, pub.Close)
	logger.Info("MQTT vehicle signalling enabled", "broker", cfg.BrokerURL)
}

func (a *App) wireEmail(ctx context.Context, deps *service.Deps) {
	cfg := a.Config.SendGrid
	if cfg.APIKey == "" {
		logger.Info("SendGrid API key not set, customer email disabled")
		return
	}
	queue := service.NewEmailQueue(service.NewSendGridMailer(cfg.APIKey, cfg.FromEmail, cfg.FromName), cfg.Workers, cfg.QueueSize, cfg.MaxRetries)

	qctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	queue.Start(qctx)
	deps.Email = service.NewEmailService(queue, brandName)
	a.closers = append(a.closers, func() {
		cancel()
		queue.Wait()
	})
}

// Close releases adapters in reverse order of creation
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
