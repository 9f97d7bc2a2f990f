// ABOUTME: Tests for CLI helpers: config path resolution, logging and report output
// ABOUTME: Command output is captured through cobra's SetOut

package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/mcpware/internal/backend"
	"github.com/2389/mcpware/internal/config"
	"github.com/2389/mcpware/internal/mcp"
	"github.com/2389/mcpware/internal/store"
)

func init() {
	color.NoColor = true
}

func TestResolveConfigPath(t *testing.T) {
	t.Cleanup(func() { configFlag = "" })

	t.Run("default", func(t *testing.T) {
		t.Setenv("MCPWARE_CONFIG", "")
		configFlag = ""
		assert.Equal(t, "config.json", resolveConfigPath())
	})

	t.Run("env", func(t *testing.T) {
		t.Setenv("MCPWARE_CONFIG", "/etc/mcpware.yaml")
		configFlag = ""
		assert.Equal(t, "/etc/mcpware.yaml", resolveConfigPath())
	})

	t.Run("flag wins", func(t *testing.T) {
		t.Setenv("MCPWARE_CONFIG", "/etc/mcpware.yaml")
		configFlag = "local.toml"
		assert.Equal(t, "local.toml", resolveConfigPath())
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
}

func TestColorHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "info"}, &buf)

	logger.Debug("hidden")
	logger.With("component", "router").WithGroup("req").Warn("denied", "backend", "vault")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WRN denied")
	assert.Contains(t, out, "component=router")
	assert.Contains(t, out, "req.backend=vault")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)
	logger.Debug("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"k":"v"`)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { configFlag, logLevelFlag = "", "" })

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	path := writeConfig(t, `{
  "backends": [
    {"name": "github", "command": ["npx", "-y", "@mcp/github"], "timeout": 45},
    {"name": "db", "command": "dbserver"}
  ],
  "security_policy": {"backend_security_levels": {"github": "public", "db": "sensitive"}}
}`)

	t.Run("valid", func(t *testing.T) {
		out, err := runCLI(t, "validate", "--config", path)
		require.NoError(t, err)
		assert.Contains(t, out, "✓ valid:")
		assert.Contains(t, out, "npx -y @mcp/github")
		assert.Regexp(t, `db\s+sensitive`, out)
		assert.Regexp(t, `session_timeout:\s+30m0s`, out)
		assert.Regexp(t, `allow_client_session_ids:\s+false`, out)
	})

	t.Run("unclassified backend", func(t *testing.T) {
		bad := writeConfig(t, `{"backends": [{"name": "x", "command": "x"}], "security_policy": {"backend_security_levels": {}}}`)
		_, err := runCLI(t, "validate", "--config", bad)
		assert.ErrorIs(t, err, config.ErrUnclassifiedBackend)
	})
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "mcpware dev (MCP protocol "+mcp.ProtocolVersion+")\n", out)
}

func TestPrintHealth(t *testing.T) {
	var buf bytes.Buffer
	unhealthy := printHealth(&buf, []backend.HealthResult{
		{Name: "notes", Status: backend.HealthHealthy, ServerInfo: &mcp.ServerInfo{Name: "notes-server", Version: "1.2"}},
		{Name: "vault", Status: backend.HealthUnknown, Error: "backend not running"},
	})
	assert.Equal(t, 1, unhealthy)
	assert.Contains(t, buf.String(), "notes-server 1.2")
	assert.Contains(t, buf.String(), "backend not running")
}

func TestAuditCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")
	s, err := store.NewSQLiteStore(dbPath, nil)
	require.NoError(t, err)
	ctx := t.Context()
	require.NoError(t, s.AppendDecision(ctx, &store.Decision{
		SessionID: "0123456789abcdef", Backend: "vault", Phase: store.PhaseResponse,
		Allowed: true, Categories: []string{"ssn", "email"}, Timestamp: time.Now(),
	}))
	require.NoError(t, s.AppendDecision(ctx, &store.Decision{
		SessionID: "0123456789abcdef", Backend: "notes", Tool: "post", Phase: store.PhaseAccess,
		Reason: "Cannot access public backend after accessing sensitive data", Timestamp: time.Now(),
	}))
	require.NoError(t, s.Close())

	path := writeConfig(t, `{
  "backends": [{"name": "notes", "command": "cat"}, {"name": "vault", "command": "cat"}],
  "security_policy": {"backend_security_levels": {"notes": "public", "vault": "sensitive"}},
  "audit": {"path": "`+filepath.ToSlash(dbPath)+`"}
}`)

	t.Run("all", func(t *testing.T) {
		out, err := runCLI(t, "audit", "--config", path)
		require.NoError(t, err)
		assert.Contains(t, out, "01234567")
		assert.Contains(t, out, "[email,ssn]")
		assert.Contains(t, out, "deny")
	})

	t.Run("denied only", func(t *testing.T) {
		out, err := runCLI(t, "audit", "--config", path, "--denied")
		require.NoError(t, err)
		assert.Contains(t, out, "notes")
		assert.NotContains(t, out, "vault")
	})

	t.Run("no matches", func(t *testing.T) {
		out, err := runCLI(t, "audit", "--config", path, "--backend", "wiki")
		require.NoError(t, err)
		assert.Equal(t, "No decisions recorded.\n", out)
	})
}
