// ABOUTME: Gateway orchestrator that wires backends, security engine, router and stdio frontend
// ABOUTME: Owns startup, the optional audit store, health endpoint and policy reloader, and shutdown

package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/2389/mcpware/internal/backend"
	"github.com/2389/mcpware/internal/config"
	"github.com/2389/mcpware/internal/frontend"
	"github.com/2389/mcpware/internal/router"
	"github.com/2389/mcpware/internal/security"
	"github.com/2389/mcpware/internal/store"
)

// ShutdownTimeout bounds the whole shutdown sequence.
const ShutdownTimeout = 30 * time.Second

// Gateway coordinates the mcpware components for one client stream.
type Gateway struct {
	config     *config.Config
	configPath string
	logger     *slog.Logger

	pool     *backend.Pool
	engine   *security.Engine
	router   *router.Router
	frontend *frontend.Server

	// store is nil unless audit.path is set
	store store.DecisionStore

	// health is nil unless admin.grpc_addr is set
	health *healthServer
}

// Option configures a Gateway.
type Option func(*gatewayOptions)

type gatewayOptions struct {
	backendOptions backend.Options
	configPath     string
}

// WithBackendOptions overrides backend lifecycle timings.
func WithBackendOptions(opts backend.Options) Option {
	return func(o *gatewayOptions) { o.backendOptions = opts }
}

// WithConfigPath records where the config came from so watch_config can reload it.
func WithConfigPath(path string) Option {
	return func(o *gatewayOptions) { o.configPath = path }
}

// New builds a gateway from a validated configuration. Backends are not
// started until Run.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var o gatewayOptions
	for _, opt := range opts {
		opt(&o)
	}

	g := &Gateway{
		config:     cfg,
		configPath: o.configPath,
		logger:     logger.With("component", "gateway"),
	}

	engineOpts := []security.Option{security.WithLogger(logger)}
	if cfg.Audit.Path != "" {
		s, err := store.NewSQLiteStore(cfg.Audit.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("initializing audit store: %w", err)
		}
		g.store = s
		engineOpts = append(engineOpts, security.WithRecorder(newDecisionRecorder(s)))
	}

	g.engine = security.NewEngine(cfg.SecurityPolicy, engineOpts...)
	g.pool = backend.NewPool(cfg.Backends, logger, o.backendOptions)
	g.router = router.New(g.pool, g.engine, logger)
	g.frontend = frontend.New(g.router, logger)

	if cfg.Admin.GRPCAddr != "" {
		g.health = newHealthServer(g.pool, cfg.Admin.HealthInterval, logger)
	}
	return g, nil
}

// Engine returns the security engine.
func (g *Gateway) Engine() *security.Engine {
	return g.engine
}

// Pool returns the backend pool.
func (g *Gateway) Pool() *backend.Pool {
	return g.pool
}

// Run starts every backend, then serves the client stream until it ends or
// ctx is cancelled, and finally shuts everything down.
func (g *Gateway) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	if err := g.startBackends(ctx); err != nil {
		g.gracefulShutdown()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 3)
	if g.health != nil {
		ln, err := listen(g.config.Admin.GRPCAddr)
		if err != nil {
			g.gracefulShutdown()
			return fmt.Errorf("starting health endpoint: %w", err)
		}
		go func() { errCh <- g.health.Serve(runCtx, ln) }()
	}

	if g.config.WatchConfig && g.configPath != "" {
		reloader, err := NewReloader(g.configPath, g.ApplyConfig, g.logger)
		if err != nil {
			g.logger.Error("config watching disabled", "error", err)
		} else {
			go func() {
				if err := reloader.Run(runCtx); err != nil {
					g.logger.Error("config watcher stopped", "error", err)
				}
			}()
		}
	}

	serveDone := make(chan error, 1)
	go func() { serveDone <- g.frontend.Serve(runCtx, in, out) }()

	var runErr error
	select {
	case err := <-serveDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = err
		}
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		runErr = err
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	}
	cancel()

	if shutdownErr := g.gracefulShutdown(); runErr == nil {
		runErr = shutdownErr
	}
	return runErr
}

// startBackends launches every backend and logs the ones that failed. It
// errors only when ctx ends first.
func (g *Gateway) startBackends(ctx context.Context) error {
	failures := g.pool.InitializeAll(ctx)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("starting backends: %w", err)
	}

	names := make([]string, 0, len(failures))
	for name := range failures {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		g.logger.Error("backend failed to start", "backend", name, "error", failures[name])
	}

	running := g.pool.Names()
	if len(running) == 0 {
		g.logger.Warn("no backends running; tool calls will fail until restart")
	}
	g.logger.Info("gateway ready", "backends", running, "failed", len(failures))
	return nil
}

// ApplyConfig swaps in the security policy of a reloaded configuration.
// Backend changes are reported and ignored until restart.
func (g *Gateway) ApplyConfig(cfg *config.Config) error {
	current := g.pool.Names()
	for _, name := range cfg.Backends.Names() {
		if !g.pool.Has(name) {
			g.logger.Warn("reloaded config adds a backend; restart to start it", "backend", name)
		}
	}
	for _, name := range current {
		if _, ok := cfg.Backend(name); !ok {
			g.logger.Warn("reloaded config drops a running backend; restart to stop it", "backend", name)
		}
	}

	g.engine.UpdatePolicy(cfg.SecurityPolicy)
	return nil
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() since the run context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops every backend and releases resources, bounded by ctx.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	if g.health != nil {
		g.health.Shutdown(ctx)
	}

	g.pool.CloseAll(ctx)
	errs = appendCloseError(errs, "backend shutdown", ctx.Err())

	g.engine.Close()
	if g.store != nil {
		errs = appendCloseError(errs, "store close", g.store.Close())
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	g.logger.Info("gateway stopped")
	return nil
}
