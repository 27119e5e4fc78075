package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"carrental-backend/internal/api/grpc/interceptor"
	"carrental-backend/internal/logger"
)

// ServiceName is the health entry reported alongside the overall server status
const ServiceName = "carrental.OrderEngine"

// Pinger is satisfied by repository.Store
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker keeps the gRPC health status in line with the store
type HealthChecker struct {
	server   *health.Server
	store    Pinger
	interval time.Duration
	timeout  time.Duration
}

func NewHealthChecker(store Pinger, interval time.Duration) *HealthChecker {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &HealthChecker{
		server:   health.NewServer(),
		store:    store,
		interval: interval,
		timeout:  2 * time.Second,
	}
}

// Check pings the store once and publishes the result
func (h *HealthChecker) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	pingCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	st := healthpb.HealthCheckResponse_SERVING
	if err := h.store.Ping(pingCtx); err != nil {
		logger.Warn("Store ping failed", "error", err)
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.server.SetServingStatus("", st)
	h.server.SetServingStatus(ServiceName, st)
	return st
}

// Run checks on every interval until ctx is done, then reports NOT_SERVING
func (h *HealthChecker) Run(ctx context.Context) {
	h.Check(ctx)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return
		case <-ticker.C:
			h.Check(ctx)
		}
	}
}

// NewServer builds the gRPC server with health and reflection registered
func NewServer(checker *HealthChecker) *grpc.Server {
	logging := interceptor.NewLoggingInterceptor()
	s := grpc.NewServer(
		grpc.UnaryInterceptor(logging.Unary()),
		grpc.StreamInterceptor(logging.Stream()),
	)
	healthpb.RegisterHealthServer(s, checker.server)
	reflection.Register(s)
	return s
}
