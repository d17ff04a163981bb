// Package grpc exposes the standard gRPC health service of a dispatcher replica.
package grpc

import (
	"log/slog"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// DispatcherService is the health service name that reports SERVING only on the leader.
// The empty service name reports process liveness.
const DispatcherService = "taskchain.Dispatcher"

// HealthServer serves grpc.health.v1.Health.
type HealthServer struct {
	server *grpc.Server
	health *health.Server
	logger *slog.Logger
}

// NewHealthServer creates a health server; the dispatcher service starts NOT_SERVING.
func NewHealthServer(logger *slog.Logger) *HealthServer {
	s := &HealthServer{
		server: grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler())),
		health: health.NewServer(),
		logger: logger.With("component", "grpc-health"),
	}
	healthpb.RegisterHealthServer(s.server, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(DispatcherService, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// SetLeader flips the dispatcher service status with leadership.
func (s *HealthServer) SetLeader(leader bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if leader {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(DispatcherService, status)
	s.logger.Info("dispatcher health status changed", "status", status.String())
}

// Serve blocks serving on lis until GracefulStop.
func (s *HealthServer) Serve(lis net.Listener) error {
	s.logger.Info("gRPC server listening", "addr", lis.Addr().String())
	return s.server.Serve(lis)
}

// GracefulStop marks every service NOT_SERVING and drains the server.
func (s *HealthServer) GracefulStop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
