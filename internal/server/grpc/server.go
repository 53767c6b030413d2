// Package grpc exposes the standard gRPC health service so orchestrators
// can probe the server and its dependencies.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/campusvault/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Probe reports whether a dependency is usable.
type Probe func(ctx context.Context) error

type HealthServer struct {
	address string
	logger  logging.Logger
	health  *health.Server
	probes  map[string]Probe
}

func NewHealthServer(address string, l logging.Logger) *HealthServer {
	return &HealthServer{
		address: address,
		logger:  l.With("module", "grpc_server"),
		health:  health.NewServer(),
		probes:  map[string]Probe{},
	}
}

// AddProbe registers a named service whose status follows probe. The
// overall status ("") is SERVING only while every probe passes.
func (s *HealthServer) AddProbe(service string, probe Probe) {
	s.probes[service] = probe
}

// Check runs all probes once and publishes the results.
func (s *HealthServer) Check(ctx context.Context) bool {
	ok := true
	for name, probe := range s.probes {
		status := healthpb.HealthCheckResponse_SERVING
		if err := probe(ctx); err != nil {
			s.logger.Warn(ctx, "health probe failed", "service", name, "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
			ok = false
		}
		s.health.SetServingStatus(name, status)
	}
	overall := healthpb.HealthCheckResponse_SERVING
	if !ok {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", overall)
	return ok
}

func (s *HealthServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on listen until ctx is cancelled.
func (s *HealthServer) Serve(ctx context.Context, listen net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(recoverInterceptor(s.logger), logInterceptor(s.logger)))
	healthpb.RegisterHealthServer(srv, s.health)
	s.Check(ctx)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gPRC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil {
		return err
	}
	return nil
}
