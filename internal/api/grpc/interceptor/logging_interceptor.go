package interceptor

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"carrental-backend/internal/logger"
)

type LoggingInterceptor struct{}

func NewLoggingInterceptor() *LoggingInterceptor {
	return &LoggingInterceptor{}
}

// Unary returns a server interceptor that logs each unary RPC and turns
// handler panics into codes.Internal
func (i *LoggingInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("RPC panicked", "method", info.FullMethod, "panic", r)
				err = status.Error(codes.Internal, "internal error")
			}
			i.log(info.FullMethod, start, err)
		}()
		return handler(ctx, req)
	}
}

// Stream returns a server interceptor that logs each streaming RPC
func (i *LoggingInterceptor) Stream() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("RPC panicked", "method", info.FullMethod, "panic", r)
				err = status.Error(codes.Internal, "internal error")
			}
			i.log(info.FullMethod, start, err)
		}()
		return handler(srv, ss)
	}
}

func (i *LoggingInterceptor) log(method string, start time.Time, err error) {
	code := status.Code(err)
	args := []any{"method", method, "code", code.String(), "duration_ms", time.Since(start).Milliseconds()}
	if err != nil && code != codes.Canceled {
		logger.Warn("gRPC request failed", append(args, "error", err)...)
		return
	}
	logger.Debug("gRPC request", args...)
}
