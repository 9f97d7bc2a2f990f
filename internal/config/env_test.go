// ABOUTME: Tests for ${VAR} expansion helpers and backend env resolution
// ABOUTME: Verifies lenient command expansion and strict env map expansion

package config

import (
	"errors"
	"strings"
	"testing"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("MCPWARE_TEST_TOKEN", "secret123")
	t.Setenv("MCPWARE_TEST_EMPTY", "")

	tests := []struct {
		in   string
		want string
	}{
		{"Bearer ${MCPWARE_TEST_TOKEN}", "Bearer secret123"},
		{"${MCPWARE_TEST_TOKEN}-${MCPWARE_TEST_TOKEN}", "secret123-secret123"},
		{"x${MCPWARE_TEST_EMPTY}y", "xy"},
		{"keep ${MCPWARE_TEST_UNSET_VAR}", "keep ${MCPWARE_TEST_UNSET_VAR}"},
		{"no refs", "no refs"},
	}

	for _, tt := range tests {
		if got := ExpandEnv(tt.in); got != tt.want {
			t.Errorf("ExpandEnv(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExpandEnvStrict(t *testing.T) {
	t.Setenv("MCPWARE_TEST_TOKEN", "secret123")

	got, err := ExpandEnvStrict("token=${MCPWARE_TEST_TOKEN}")
	if err != nil {
		t.Fatalf("ExpandEnvStrict() error = %v", err)
	}
	if got != "token=secret123" {
		t.Errorf("ExpandEnvStrict() = %q", got)
	}

	_, err = ExpandEnvStrict("${MCPWARE_TEST_UNSET_A}/${MCPWARE_TEST_UNSET_B}")
	if !errors.Is(err, ErrUnresolvedEnv) {
		t.Fatalf("error = %v, want ErrUnresolvedEnv", err)
	}
	if !strings.Contains(err.Error(), "MCPWARE_TEST_UNSET_A, MCPWARE_TEST_UNSET_B") {
		t.Errorf("error should list missing names, got %v", err)
	}
}

func TestBackendResolveEnv(t *testing.T) {
	t.Setenv("MCPWARE_TEST_TOKEN", "secret123")

	b := BackendConfig{
		Name:    "github",
		Command: CommandLine{"npx"},
		Env:     map[string]string{"GITHUB_TOKEN": "${MCPWARE_TEST_TOKEN}"},
	}

	env, err := b.ResolveEnv([]string{"PATH=/bin"})
	if err != nil {
		t.Fatalf("ResolveEnv() error = %v", err)
	}
	if len(env) != 2 || env[0] != "PATH=/bin" || env[1] != "GITHUB_TOKEN=secret123" {
		t.Errorf("ResolveEnv() = %v", env)
	}

	b.Env = map[string]string{"GITHUB_TOKEN": "${MCPWARE_TEST_MISSING}"}
	if _, err := b.ResolveEnv(nil); !errors.Is(err, ErrUnresolvedEnv) {
		t.Errorf("ResolveEnv() error = %v, want ErrUnresolvedEnv", err)
	}
}

func TestBackendResolveCommand(t *testing.T) {
	t.Setenv("MCPWARE_TEST_DIR", "/srv")

	b := BackendConfig{
		Command: CommandLine{"node", "${MCPWARE_TEST_DIR}/index.js"},
		Args:    []string{"--root", "${MCPWARE_TEST_NOT_SET}"},
	}
	exe, args := b.ResolveCommand()
	if exe != "node" {
		t.Errorf("exe = %q, want node", exe)
	}
	want := []string{"/srv/index.js", "--root", "${MCPWARE_TEST_NOT_SET}"}
	if strings.Join(args, "|") != strings.Join(want, "|") {
		t.Errorf("args = %v, want %v", args, want)
	}
}
