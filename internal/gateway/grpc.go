// ABOUTME: Optional gRPC health endpoint reporting the gateway and each backend
// ABOUTME: Backends are re-probed on an interval; service name is the backend name

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"github.com/2389/mcpware/internal/backend"
)

// prober is the slice of the pool the health server needs.
type prober interface {
	CheckAll(ctx context.Context) []backend.HealthResult
}

// healthServer serves grpc.health.v1 for the gateway ("") and every backend.
type healthServer struct {
	server   *grpc.Server
	health   *health.Server
	pool     prober
	interval time.Duration
	logger   *slog.Logger
}

func newHealthServer(pool prober, interval time.Duration, logger *slog.Logger) *healthServer {
	server := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    15 * time.Second,
			Timeout: 5 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(server, hs)

	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &healthServer{
		server:   server,
		health:   hs,
		pool:     pool,
		interval: interval,
		logger:   logger.With("component", "health"),
	}
}

func listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	return ln, nil
}

// Serve probes once, then serves on ln and re-probes until ctx ends.
func (h *healthServer) Serve(ctx context.Context, ln net.Listener) error {
	h.probe(ctx)
	h.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	go h.probeLoop(ctx)

	h.logger.Info("health endpoint listening", "addr", ln.Addr().String())
	if err := h.server.Serve(ln); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("serving health endpoint: %w", err)
	}
	return nil
}

func (h *healthServer) probeLoop(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.probe(ctx)
		}
	}
}

// probe checks every backend and publishes the result per service name.
func (h *healthServer) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, h.interval)
	defer cancel()

	for _, r := range h.pool.CheckAll(ctx) {
		status := healthpb.HealthCheckResponse_SERVICE_UNKNOWN
		switch r.Status {
		case backend.HealthHealthy:
			status = healthpb.HealthCheckResponse_SERVING
		case backend.HealthUnhealthy:
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		h.health.SetServingStatus(r.Name, status)
		if status != healthpb.HealthCheckResponse_SERVING {
			h.logger.Warn("backend not serving", "backend", r.Name, "status", r.Status, "error", r.Error)
		}
	}
}

// Shutdown marks every service not serving and stops the server,
// force-stopping if ctx ends first.
func (h *healthServer) Shutdown(ctx context.Context) {
	h.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		h.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		h.server.Stop()
	}
}
