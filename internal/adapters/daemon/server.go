// Package daemon implements the long-running garden daemon: a gRPC health service on a unix
// socket for liveness and an HTTP API for status, stored results and metrics.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.trai.ch/garden/internal/core/domain"
	"go.trai.ch/garden/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name the daemon reports as serving.
const ServiceName = "garden.daemon"

const shutdownTimeout = 5 * time.Second

// Config configures a Server.
type Config struct {
	SocketPath string
	// HTTPAddr is the TCP address of the HTTP API. Empty disables it.
	HTTPAddr  string
	Lifecycle *Lifecycle
	Backend   Backend
	Logger    ports.Logger
}

// Server serves the daemon endpoints until its lifecycle ends.
type Server struct {
	socketPath string
	httpAddr   string
	lifecycle  *Lifecycle
	backend    Backend
	logger     ports.Logger

	grpcServer *grpc.Server
	health     *health.Server
	httpServer *http.Server

	grpcListener net.Listener
	httpListener net.Listener
}

// NewServer creates a Server from cfg.
func NewServer(cfg Config) *Server {
	s := &Server{
		socketPath: cfg.SocketPath,
		httpAddr:   cfg.HTTPAddr,
		lifecycle:  cfg.Lifecycle,
		backend:    cfg.Backend,
		logger:     cfg.Logger,
		health:     health.NewServer(),
	}

	s.grpcServer = grpc.NewServer(grpc.UnaryInterceptor(s.activity))
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	s.httpServer = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	return s
}

// Listen binds the unix socket and the HTTP address. Serve calls it when needed.
func (s *Server) Listen() error {
	if s.grpcListener != nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.socketPath), domain.DirPerm); err != nil {
		return s.listenError(err, "create daemon directory")
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return s.listenError(err, "remove stale socket")
	}

	lis, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return s.listenError(err, "listen on unix socket")
	}
	if err := os.Chmod(s.socketPath, domain.PrivateFilePerm); err != nil {
		_ = lis.Close()
		return s.listenError(err, "set socket permissions")
	}

	if s.httpAddr != "" {
		httpLis, err := net.Listen("tcp", s.httpAddr)
		if err != nil {
			_ = lis.Close()
			return zerr.With(s.listenError(err, "listen for http api"), "addr", s.httpAddr)
		}
		s.httpListener = httpLis
	}

	s.grpcListener = lis
	return nil
}

// HTTPAddr returns the bound HTTP address, or "" before Listen or when disabled.
func (s *Server) HTTPAddr() string {
	if s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// Serve runs until ctx is done or the lifecycle triggers shutdown.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	defer func() { _ = os.Remove(s.socketPath) }()

	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	s.logger.Info(fmt.Sprintf("daemon listening on %s", s.socketPath))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.grpcServer.Serve(s.grpcListener)
	})

	if s.httpListener != nil {
		g.Go(func() error {
			if err := s.httpServer.Serve(s.httpListener); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-s.lifecycle.ShutdownChan():
		}

		s.health.Shutdown()
		s.grpcServer.GracefulStop()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)

		s.logger.Info("daemon stopped")
		return nil
	})

	return g.Wait()
}

func (s *Server) activity(
	ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler,
) (any, error) {
	s.lifecycle.ResetTimer()
	return handler(ctx, req)
}

func (s *Server) listenError(err error, msg string) error {
	err = zerr.With(zerr.Wrap(err, msg), "socket", s.socketPath)
	return fmt.Errorf("%w: %w", domain.ErrDaemonStartFailed, err)
}
