package httpapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"thittam.org/internal/obs"
)

// HealthServer implements grpc.health.v1.Health on top of the readiness
// probe. The empty service name and serviceName are known; Watch is not
// supported.
type HealthServer struct {
	healthpb.UnimplementedHealthServer

	readiness readinessChecker
	version   string
}

func NewHealthServer(r readinessChecker, version string) *HealthServer {
	if r == nil {
		r = ReadyProbe{}
	}
	return &HealthServer{
		readiness: r,
		version:   version,
	}
}

// Check runs the readiness probe on every call.
func (s *HealthServer) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if svc := req.GetService(); svc != "" && svc != serviceName {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", svc)
	}
	if err := s.readiness.Check(ctx); err != nil {
		obs.Logger().WarnContext(ctx, "grpc health check failed", obs.Err(err))
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}

// NewGRPCServer returns a server with the health service registered.
func NewGRPCServer(r readinessChecker, version string, opts ...grpc.ServerOption) *grpc.Server {
	srv := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(srv, NewHealthServer(r, version))
	return srv
}
