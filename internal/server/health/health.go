// Package health exposes grpc.health.v1.Health on its own listener. The
// overall status follows a periodic database ping.
package health

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/drivelink/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Service is the name reported next to the overall ("") status.
const Service = "drivelink"

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	address  string
	db       Pinger
	interval time.Duration
	logger   logging.Logger
	hs       *health.Server
}

func NewServer(address string, db Pinger, interval time.Duration, l logging.Logger) *Server {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(Service, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Server{
		address:  address,
		db:       db,
		interval: interval,
		logger:   l.With("module", "health"),
		hs:       hs,
	}
}

// Probe pings the database once and records the result.
func (s *Server) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Warn(ctx, "database ping failed", "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.hs.SetServingStatus("", status)
	s.hs.SetServingStatus(Service, status)
	return status
}

// Serving reports the last recorded status.
func (s *Server) Serving(ctx context.Context) bool {
	resp, err := s.hs.Check(ctx, &healthpb.HealthCheckRequest{})
	return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
}

func (s *Server) watch(ctx context.Context) {
	s.Probe(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Probe(ctx)
		}
	}
}

func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.serve(ctx, listen)
}

func (s *Server) serve(ctx context.Context, listen net.Listener) error {
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, s.hs)

	go s.watch(ctx)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping health server...")
		s.hs.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting health server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil {
		return err
	}
	return nil
}
