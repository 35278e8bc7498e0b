package observability

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ai-speech-coach-service/internal/observability/metrics"
)

// Health probes hit the unary path every few seconds; keep them at debug.
func callLevel(method string) zerolog.Level {
	if strings.HasPrefix(method, "/grpc.health.v1.Health/") {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

// recovered converts a handler panic into codes.Internal.
func recovered(method string, err *error) {
	if r := recover(); r != nil {
		log.Error().
			Str("method", method).
			Interface("panic", r).
			Msg("gRPC handler panicked")
		*err = status.Error(codes.Internal, "internal error")
	}
}

// UnaryServerInterceptor returns a gRPC unary interceptor for logging and
// panic recovery.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()

		resp, err := func() (resp interface{}, err error) {
			defer recovered(info.FullMethod, &err)
			return handler(ctx, req)
		}()

		st, _ := status.FromError(err)
		log.WithLevel(callLevel(info.FullMethod)).
			Str("method", info.FullMethod).
			Str("code", st.Code().String()).
			Dur("duration", time.Since(start)).
			Msg("gRPC unary call")

		return resp, err
	}
}

// StreamServerInterceptor returns a gRPC stream interceptor for metrics,
// logging and panic recovery.
func StreamServerInterceptor(m *metrics.Metrics) grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		start := time.Now()
		m.RecordStreamStart()

		err := func() (err error) {
			defer recovered(info.FullMethod, &err)
			return handler(srv, ss)
		}()

		duration := time.Since(start)
		success := err == nil
		m.RecordStreamEnd(success, duration.Seconds())

		st, _ := status.FromError(err)
		log.WithLevel(callLevel(info.FullMethod)).
			Str("method", info.FullMethod).
			Str("code", st.Code().String()).
			Dur("duration", duration).
			Bool("success", success).
			Msg("gRPC stream completed")

		return err
	}
}
