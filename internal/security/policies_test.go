// ABOUTME: Unit tests for the individual access policies outside the engine.
// ABOUTME: Policies are exercised directly against hand-built sessions.

package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/2389/mcpware/internal/config"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestSQLInjectionPolicy_Patterns(t *testing.T) {
	p := NewSQLInjectionPolicy()

	suspicious := []string{
		"SELECT * FROM users",
		"select *   from api_keys where 1=1",
		"SELECT name FROM t UNION SELECT 1",
		"SELECT 1 INTO OUTFILE '/tmp/x'",
		"SELECT LOAD_FILE('/etc/passwd')",
		"SELECT ssn FROM people",
		"SELECT token FROM sessions",
	}
	for _, q := range suspicious {
		assert.True(t, p.Suspicious(q), q)
	}

	benign := []string{
		"SELECT id, name FROM products",
		"SELECT COUNT(*) FROM orders WHERE status = 'open'",
		"",
	}
	for _, q := range benign {
		assert.False(t, p.Suspicious(q), q)
	}
}

func TestSQLInjectionPolicy_Validate(t *testing.T) {
	p := NewSQLInjectionPolicy()
	session := newSession("s", testNow)

	result := p.Validate(&Context{
		Session:   session,
		Backend:   "db",
		Tool:      "run_query",
		Arguments: map[string]any{"query": "SELECT * FROM credentials"},
	})
	assert.False(t, result.Allowed)
	assert.True(t, result.Taint)
	assert.Equal(t, "suspicious SQL in db", result.TaintReason)

	result = p.Validate(&Context{Session: session, Backend: "db", Tool: "run_query", Arguments: map[string]any{"query": 42}})
	assert.True(t, result.Allowed)
}

func TestPolicies_Enabled(t *testing.T) {
	cfg := config.DefaultSecurityPolicy()
	for _, p := range DefaultPolicies() {
		assert.True(t, p.Enabled(&cfg), p.Name())
	}

	cfg.BlockAfterSuspiciousActivity = false
	cfg.SQLInjectionProtection = false
	cfg.PreventSensitiveToPublic = false
	for _, p := range DefaultPolicies() {
		assert.False(t, p.Enabled(&cfg), p.Name())
	}
}

func TestDataFlowPolicy_IgnoresUnflaggedSensitiveAccess(t *testing.T) {
	session := newSession("s", testNow)
	session.accesses = append(session.accesses,
		Access{Backend: "db", Level: config.LevelSensitive},
		Access{Backend: "wiki", Level: config.LevelInternal, HasSensitiveData: true},
	)

	result := DataFlowPolicy{}.Validate(&Context{Session: session, Backend: "web", Level: config.LevelPublic})
	assert.True(t, result.Allowed)

	session.accesses[0].HasSensitiveData = true
	result = DataFlowPolicy{}.Validate(&Context{Session: session, Backend: "web", Level: config.LevelPublic})
	assert.False(t, result.Allowed)
}
