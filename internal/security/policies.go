// ABOUTME: The built-in access policies: tainted session, suspicious SQL, and data flow.
// ABOUTME: Each is switched on or off by its own security_policy flag.

package security

import (
	"fmt"
	"regexp"

	"github.com/2389/mcpware/internal/config"
)

// TaintedSessionPolicy denies everything once a session is tainted.
type TaintedSessionPolicy struct{}

func (TaintedSessionPolicy) Name() string { return "tainted_session" }

func (TaintedSessionPolicy) Enabled(cfg *config.SecurityPolicyConfig) bool {
	return cfg.BlockAfterSuspiciousActivity
}

func (TaintedSessionPolicy) Validate(ctx *Context) Result {
	if tainted, source := ctx.Tainted(); tainted {
		return Deny(fmt.Sprintf("Session is tainted from %s. Access denied for security.", source))
	}
	return Allow()
}

// queryTools are the tool names whose "query" argument is inspected.
var queryTools = map[string]bool{
	"run_query":   true,
	"execute_sql": true,
}

var suspiciousSQL = []*regexp.Regexp{
	regexp.MustCompile(`(?i)SELECT\s+\*\s+FROM\s+(users|accounts|credentials|passwords|tokens|api_keys)`),
	regexp.MustCompile(`(?i)(password|hash|salt|token|secret|key|ssn|credit_card)`),
	regexp.MustCompile(`(?i)UNION\s+SELECT`),
	regexp.MustCompile(`(?i)INTO\s+OUTFILE`),
	regexp.MustCompile(`(?i)LOAD_FILE`),
}

// SQLInjectionPolicy blocks queries that look like credential harvesting or
// exfiltration, and taints the session when it does.
type SQLInjectionPolicy struct {
	patterns []*regexp.Regexp
}

// NewSQLInjectionPolicy creates the policy with the built-in patterns.
func NewSQLInjectionPolicy() *SQLInjectionPolicy {
	return &SQLInjectionPolicy{patterns: suspiciousSQL}
}

func (*SQLInjectionPolicy) Name() string { return "sql_injection" }

func (*SQLInjectionPolicy) Enabled(cfg *config.SecurityPolicyConfig) bool {
	return cfg.SQLInjectionProtection
}

func (p *SQLInjectionPolicy) Validate(ctx *Context) Result {
	if !queryTools[ctx.Tool] {
		return Allow()
	}
	query, _ := ctx.Arguments["query"].(string)
	if !p.Suspicious(query) {
		return Allow()
	}
	return Result{
		Reason:      "Query contains suspicious patterns and was blocked",
		Taint:       true,
		TaintReason: "suspicious SQL in " + ctx.Backend,
	}
}

// Suspicious reports whether query matches any suspicious pattern.
func (p *SQLInjectionPolicy) Suspicious(query string) bool {
	for _, re := range p.patterns {
		if re.MatchString(query) {
			return true
		}
	}
	return false
}

// DataFlowPolicy keeps sensitive data away from public backends.
type DataFlowPolicy struct{}

func (DataFlowPolicy) Name() string { return "data_flow" }

func (DataFlowPolicy) Enabled(cfg *config.SecurityPolicyConfig) bool {
	return cfg.PreventSensitiveToPublic
}

func (DataFlowPolicy) Validate(ctx *Context) Result {
	if tainted, _ := ctx.Tainted(); tainted && ctx.Level == config.LevelSensitive {
		return Deny(fmt.Sprintf("Tainted session cannot access sensitive backend '%s'", ctx.Backend))
	}

	if ctx.Level == config.LevelPublic {
		for _, a := range ctx.Accesses() {
			if a.Level == config.LevelSensitive && a.HasSensitiveData {
				return Deny("Cannot access public backend after accessing sensitive data")
			}
		}
	}
	return Allow()
}
