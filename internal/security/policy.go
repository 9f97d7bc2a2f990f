// ABOUTME: Policy interface for the access-check chain and the context each policy sees.
// ABOUTME: Policies return allow/deny and may ask for the session to be tainted either way.

package security

import (
	"github.com/2389/mcpware/internal/config"
)

// Context is what a policy evaluates. The engine holds the session lock
// while policies run, so policies read session state through Context's
// methods rather than the locking Session accessors.
type Context struct {
	Session   *Session
	Backend   string
	Level     config.SecurityLevel
	Tool      string
	Arguments map[string]any
	Policy    *config.SecurityPolicyConfig
}

// Tainted reports the session's taint flag and source.
func (c *Context) Tainted() (bool, string) {
	return c.Session.tainted, c.Session.taintSource
}

// Accesses returns the session's access history. The slice is only valid
// while the policy runs and must not be modified.
func (c *Context) Accesses() []Access {
	return c.Session.accesses
}

// Result is a policy's verdict.
type Result struct {
	Allowed     bool
	Reason      string
	Taint       bool
	TaintReason string
}

// Allow is the verdict for a passing check.
func Allow() Result {
	return Result{Allowed: true}
}

// Deny is the verdict for a failing check.
func Deny(reason string) Result {
	return Result{Reason: reason}
}

// Policy is one check in the access chain.
type Policy interface {
	Name() string
	Enabled(cfg *config.SecurityPolicyConfig) bool
	Validate(ctx *Context) Result
}

// DefaultPolicies returns the access chain in evaluation order.
func DefaultPolicies() []Policy {
	return []Policy{
		TaintedSessionPolicy{},
		NewSQLInjectionPolicy(),
		DataFlowPolicy{},
	}
}
