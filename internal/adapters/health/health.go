// Package health serves the gRPC health protocol for the reconciler process.
package health

import (
	"fmt"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// SchedulerService is the health service name reported for the job scheduler.
const SchedulerService = "reconciler.scheduler"

// Server wraps a gRPC server exposing only the health service.
type Server struct {
	grpcServer   *grpc.Server
	healthServer *health.Server
	serveErr     chan error
}

func NewServer() *Server {
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	s := &Server{grpcServer: grpcServer, healthServer: healthServer}
	s.SetServing(false)
	return s
}

// Start listens on port and serves in the background.
func (s *Server) Start(port int) (net.Addr, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("listen on health port %d: %w", port, err)
	}
	s.serveErr = make(chan error, 1)
	go func() {
		s.serveErr <- s.grpcServer.Serve(listener)
	}()
	return listener.Addr(), nil
}

// SetServing flips the overall and scheduler statuses together.
func (s *Server) SetServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.healthServer.SetServingStatus("", status)
	s.healthServer.SetServingStatus(SchedulerService, status)
}

// HealthServer returns the underlying health implementation.
func (s *Server) HealthServer() grpc_health_v1.HealthServer {
	return s.healthServer
}

// Stop marks every service NOT_SERVING and stops the gRPC server gracefully.
func (s *Server) Stop() error {
	s.healthServer.Shutdown()
	s.grpcServer.GracefulStop()
	if s.serveErr == nil {
		return nil
	}
	return <-s.serveErr
}
