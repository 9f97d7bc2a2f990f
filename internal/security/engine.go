// ABOUTME: Engine runs the access policy chain and response inspection against per-session history.
// ABOUTME: The policy configuration can be swapped atomically while calls are in flight.

package security

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/2389/mcpware/internal/config"
	"github.com/2389/mcpware/internal/security/detect"
)

// Phase says which check produced a decision.
type Phase string

const (
	PhaseAccess   Phase = "access"
	PhaseResponse Phase = "response"
)

// Decision is the engine's verdict on an access or a response.
type Decision struct {
	Allowed bool
	Reason  string
	Level   config.SecurityLevel
	// Policy names the check that denied, if any.
	Policy string
	// Categories lists sensitive-data validators that matched a response.
	Categories []string
}

// AuditEvent describes one decision for the audit log.
type AuditEvent struct {
	SessionID   string
	Backend     string
	Tool        string
	Level       config.SecurityLevel
	Phase       Phase
	Allowed     bool
	Reason      string
	Tainted     bool
	TaintSource string
	Categories  []string
	Timestamp   time.Time
}

// Recorder persists audit events. Failures are logged, never surfaced.
type Recorder interface {
	RecordDecision(ctx context.Context, event AuditEvent) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder sends every decision to r.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithValidators replaces the default sensitive-data validator set.
func WithValidators(set *detect.Set) Option {
	return func(e *Engine) { e.validators = set }
}

// WithPolicies replaces the default access chain.
func WithPolicies(policies ...Policy) Option {
	return func(e *Engine) { e.policies = policies }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// Engine evaluates security policy for backend accesses and responses.
type Engine struct {
	policy     atomic.Pointer[config.SecurityPolicyConfig]
	policies   []Policy
	validators *detect.Set
	sessions   *SessionStore
	recorder   Recorder
	now        func() time.Time
	logger     *slog.Logger
}

// NewEngine creates an engine for the given policy. Close releases the
// session sweeper.
func NewEngine(policy config.SecurityPolicyConfig, opts ...Option) *Engine {
	e := &Engine{
		policies: DefaultPolicies(),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "security")
	if e.validators == nil {
		e.validators = detect.DefaultSet()
	}
	e.policy.Store(&policy)
	e.sessions = NewSessionStore(policy.SessionTimeout(), policy.MaxSessions, e.now, e.logger)

	enabled := make([]string, 0, len(e.policies))
	for _, p := range e.policies {
		if p.Enabled(&policy) {
			enabled = append(enabled, p.Name())
		}
	}
	e.logger.Info("security engine initialized", "policies", enabled, "validators", e.validators.Names())
	return e
}

// Close stops background session maintenance.
func (e *Engine) Close() {
	e.sessions.Close()
}

// Policy returns the active policy configuration.
func (e *Engine) Policy() config.SecurityPolicyConfig {
	return *e.policy.Load()
}

// UpdatePolicy swaps in a new policy. Existing sessions keep their history.
func (e *Engine) UpdatePolicy(policy config.SecurityPolicyConfig) {
	e.policy.Store(&policy)
	e.sessions.SetLimits(policy.SessionTimeout(), policy.MaxSessions)
	e.logger.Info("security policy updated", "backends", len(policy.BackendSecurityLevels))
}

// Validators returns the live validator set; changes apply to the next response.
func (e *Engine) Validators() *detect.Set {
	return e.validators
}

// Sessions exposes the session table.
func (e *Engine) Sessions() *SessionStore {
	return e.sessions
}

// LevelOf returns a backend's security level, failing closed for a backend
// missing from backend_security_levels.
func (e *Engine) LevelOf(backend string) (config.SecurityLevel, error) {
	return levelOf(e.policy.Load(), backend)
}

func levelOf(policy *config.SecurityPolicyConfig, backend string) (config.SecurityLevel, error) {
	level, ok := policy.LevelOf(backend)
	if !ok {
		return "", fmt.Errorf("Backend '%s' is not classified in security policy. "+
			"Please add it to 'backend_security_levels' with value: public, internal, or sensitive", backend)
	}
	return level, nil
}

// ValidateAccess runs the policy chain for a tool call. An allowed call is
// appended to the session history.
func (e *Engine) ValidateAccess(ctx context.Context, sessionID, backend, tool string, args map[string]any) Decision {
	policy := e.policy.Load()
	session := e.sessions.Get(sessionID)

	level, err := levelOf(policy, backend)
	if err != nil {
		e.logger.Warn("access to unclassified backend denied", "session", sessionID, "backend", backend, "tool", tool)
		d := Decision{Reason: err.Error(), Policy: "classification"}
		e.record(ctx, session, backend, tool, PhaseAccess, d)
		return d
	}

	d := e.evaluate(session, policy, backend, level, tool, args)
	if !d.Allowed {
		e.logger.Warn("access denied",
			"session", sessionID, "backend", backend, "tool", tool, "policy", d.Policy, "reason", d.Reason)
	}
	e.record(ctx, session, backend, tool, PhaseAccess, d)
	return d
}

func (e *Engine) evaluate(session *Session, policy *config.SecurityPolicyConfig, backend string,
	level config.SecurityLevel, tool string, args map[string]any) Decision {
	session.mu.Lock()
	defer session.mu.Unlock()

	pctx := &Context{
		Session:   session,
		Backend:   backend,
		Level:     level,
		Tool:      tool,
		Arguments: args,
		Policy:    policy,
	}
	for _, p := range e.policies {
		if !p.Enabled(policy) {
			continue
		}
		result := p.Validate(pctx)
		if result.Taint {
			session.taint(result.TaintReason)
			e.logger.Warn("session tainted", "session", session.ID, "reason", result.TaintReason)
		}
		if !result.Allowed {
			return Decision{Reason: result.Reason, Level: level, Policy: p.Name()}
		}
	}

	session.accesses = append(session.accesses, Access{
		Backend:   backend,
		Tool:      tool,
		Level:     level,
		Timestamp: e.now(),
	})

	if policy.LogAllCrossBackendAccess {
		if backends := session.distinctBackends(); len(backends) > 1 {
			e.logger.Info("cross-backend access", "session", session.ID, "backends", backends)
		}
	}
	return Decision{Allowed: true, Level: level}
}

// ValidateResponse scans a backend response for sensitive data. Any match
// flags the session's latest access to that backend; a match from a public
// backend is denied.
func (e *Engine) ValidateResponse(ctx context.Context, sessionID, backend string, body []byte) Decision {
	policy := e.policy.Load()
	if !policy.PreventSensitiveDataLeak {
		return Decision{Allowed: true}
	}

	session := e.sessions.Get(sessionID)
	level, err := levelOf(policy, backend)
	if err != nil {
		d := Decision{Reason: err.Error(), Policy: "classification"}
		e.record(ctx, session, backend, "", PhaseResponse, d)
		return d
	}

	findings := e.validators.Scan(string(body))
	if len(findings) == 0 {
		return Decision{Allowed: true, Level: level}
	}

	categories := make([]string, len(findings))
	examples := make(map[string][]string, len(findings))
	for i, f := range findings {
		categories[i] = f.Validator
		examples[f.Validator] = f.Examples
	}

	session.mu.Lock()
	session.markLastSensitive(backend)
	session.mu.Unlock()

	d := Decision{Allowed: true, Level: level, Categories: categories}
	if level == config.LevelPublic {
		d.Allowed = false
		d.Policy = "sensitive_data"
		d.Reason = "Response contains sensitive data patterns: " + strings.Join(categories, ", ")
		e.logger.Warn("blocked sensitive data leak", "session", sessionID, "backend", backend, "categories", categories)
	} else {
		e.logger.Info("sensitive data in response", "session", sessionID, "backend", backend, "level", level, "categories", categories)
	}
	e.logger.Debug("sensitive data examples (masked)", "backend", backend, "examples", examples)

	e.record(ctx, session, backend, "", PhaseResponse, d)
	return d
}

func (e *Engine) record(ctx context.Context, session *Session, backend, tool string, phase Phase, d Decision) {
	if e.recorder == nil {
		return
	}

	tainted, source := session.Tainted()

	event := AuditEvent{
		SessionID:   session.ID,
		Backend:     backend,
		Tool:        tool,
		Level:       d.Level,
		Phase:       phase,
		Allowed:     d.Allowed,
		Reason:      d.Reason,
		Tainted:     tainted,
		TaintSource: source,
		Categories:  d.Categories,
		Timestamp:   e.now().UTC(),
	}
	if err := e.recorder.RecordDecision(ctx, event); err != nil {
		e.logger.Error("failed to record security decision", "error", err, "session", session.ID, "backend", backend)
	}
}
