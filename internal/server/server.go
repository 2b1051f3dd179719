package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/doc-extractor/internal/common"
)

// NewGRPCServer builds a gRPC server exposing svc, the health service and reflection.
// maxMsgBytes bounds uploads; 0 keeps the grpc default.
func NewGRPCServer(svc ExtractionServer, maxMsgBytes int, logger *slog.Logger) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []grpc.ServerOption{grpc.ChainUnaryInterceptor(requestLogger(logger))}
	if maxMsgBytes > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(maxMsgBytes))
	}
	s := grpc.NewServer(opts...)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(s)

	RegisterExtractionServer(s, svc)
	return s, hs
}

// requestLogger tags each call with a request id and logs its outcome.
func requestLogger(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx = common.WithRequestID(ctx, uuid.NewString())
		start := time.Now()
		resp, err := handler(ctx, req)
		log := common.LoggerFrom(ctx, logger).With(
			"method", info.FullMethod,
			"duration_ms", time.Since(start).Milliseconds())
		if err != nil {
			log.Warn("grpc request failed", "code", status.Code(err).String(), "error", err)
		} else {
			log.Debug("grpc request served")
		}
		return resp, err
	}
}
