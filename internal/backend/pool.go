// ABOUTME: Pool starts, addresses, and stops the configured backend processes by name.
// ABOUTME: Startup tolerates partial failure; shutdown stops every backend concurrently.

package backend

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2389/mcpware/internal/config"
	"github.com/2389/mcpware/internal/mcp"
)

// Pool holds the backend processes that started successfully.
type Pool struct {
	configs []config.BackendConfig
	opts    Options
	logger  *slog.Logger

	mu        sync.RWMutex
	processes map[string]*Process
}

// NewPool creates a pool for the given backends. Nothing is started until InitializeAll.
func NewPool(backends []config.BackendConfig, logger *slog.Logger, opts Options) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		configs:   backends,
		opts:      opts.withDefaults(),
		logger:    logger,
		processes: make(map[string]*Process),
	}
}

// InitializeAll starts every configured backend concurrently. Backends that
// fail are logged and left out of the pool; the returned map holds their
// errors keyed by name, and is nil when everything started.
func (p *Pool) InitializeAll(ctx context.Context) map[string]error {
	var (
		wg       sync.WaitGroup
		failMu   sync.Mutex
		failures map[string]error
	)

	for _, cfg := range p.configs {
		wg.Add(1)
		go func(cfg config.BackendConfig) {
			defer wg.Done()

			proc := NewProcess(cfg, p.logger, p.opts)
			if err := proc.Start(ctx); err != nil {
				p.logger.Error("failed to start backend", "backend", cfg.Name, "error", err)
				failMu.Lock()
				if failures == nil {
					failures = make(map[string]error)
				}
				failures[cfg.Name] = err
				failMu.Unlock()
				return
			}

			p.mu.Lock()
			p.processes[cfg.Name] = proc
			p.mu.Unlock()
		}(cfg)
	}
	wg.Wait()

	p.logger.Info("backends initialized", "started", len(p.Names()), "configured", len(p.configs))
	return failures
}

// Names returns the started backends in configuration order.
func (p *Pool) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.processes))
	for _, cfg := range p.configs {
		if _, ok := p.processes[cfg.Name]; ok {
			names = append(names, cfg.Name)
		}
	}
	return names
}

// Configured returns every configured backend name in config order,
// including backends that failed to start.
func (p *Pool) Configured() []string {
	names := make([]string, len(p.configs))
	for i, cfg := range p.configs {
		names[i] = cfg.Name
	}
	return names
}

// Has reports whether the named backend started.
func (p *Pool) Has(name string) bool {
	_, ok := p.Process(name)
	return ok
}

// Process returns the named backend process.
func (p *Pool) Process(name string) (*Process, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	proc, ok := p.processes[name]
	return proc, ok
}

func (p *Pool) isConfigured(name string) bool {
	for _, cfg := range p.configs {
		if cfg.Name == name {
			return true
		}
	}
	return false
}

// Description returns the configured description of a backend.
func (p *Pool) Description(name string) string {
	for _, cfg := range p.configs {
		if cfg.Name == name {
			return cfg.Description
		}
	}
	return ""
}

// ForwardRequest sends req to the named backend and waits for its response.
func (p *Pool) ForwardRequest(ctx context.Context, name string, req *mcp.Request) (*mcp.Response, error) {
	proc, ok := p.Process(name)
	if !ok {
		if p.isConfigured(name) {
			return nil, fmt.Errorf("%w: backend %s is not running", ErrUnavailable, name)
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
	return proc.SendRequest(ctx, req)
}

// ForwardNotification sends n to the named backend. Unknown or stopped
// backends are skipped with a log line.
func (p *Pool) ForwardNotification(name string, n *mcp.Request) {
	proc, ok := p.Process(name)
	if !ok {
		p.logger.Warn("notification for unknown backend", "backend", name, "method", n.Method)
		return
	}
	if err := proc.SendNotification(n); err != nil {
		p.logger.Debug("notification not delivered", "backend", name, "method", n.Method, "error", err)
	}
}

// CloseAll stops every backend concurrently, each bounded by the stop
// timeout. Individual failures are logged. If ctx ends first the remaining
// backends are abandoned.
func (p *Pool) CloseAll(ctx context.Context) {
	p.mu.RLock()
	procs := make([]*Process, 0, len(p.processes))
	for _, proc := range p.processes {
		procs = append(procs, proc)
	}
	p.mu.RUnlock()

	var wg sync.WaitGroup
	for _, proc := range procs {
		wg.Add(1)
		go func(proc *Process) {
			defer wg.Done()
			stopCtx, cancel := context.WithTimeout(ctx, p.opts.StopTimeout)
			defer cancel()
			if err := proc.Stop(stopCtx); err != nil {
				p.logger.Error("error stopping backend", "backend", proc.Name(), "error", err)
			}
		}(proc)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("all backends stopped", "count", len(procs))
	case <-ctx.Done():
		p.logger.Warn("shutdown deadline reached before all backends stopped")
	}
}
