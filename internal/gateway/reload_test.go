// ABOUTME: Tests for config hot-reload: valid edits are applied, broken edits are ignored
// ABOUTME: Uses a real fsnotify watcher on a temp directory

package gateway

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/mcpware/internal/config"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func policyFile(level string) string {
	return `{
  "backends": [{"name": "notes", "command": "cat"}],
  "security_policy": {"backend_security_levels": {"notes": "` + level + `"}}
}`
}

func TestReloader_AppliesValidChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, writeFile(path, policyFile("public")))

	applied := make(chan *config.Config, 4)
	r, err := NewReloader(path, func(cfg *config.Config) error {
		applied <- cfg
		return nil
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	// Give the watcher a moment before the first edit.
	time.Sleep(100 * time.Millisecond)

	t.Run("invalid file is ignored", func(t *testing.T) {
		require.NoError(t, writeFile(path, `{"backends": [`))
		select {
		case cfg := <-applied:
			t.Fatalf("unexpected apply: %+v", cfg)
		case <-time.After(3 * reloadDebounce):
		}
		assert.Equal(t, 0, r.Reloads())
	})

	t.Run("valid edit is applied", func(t *testing.T) {
		require.NoError(t, writeFile(path, policyFile("sensitive")))
		select {
		case cfg := <-applied:
			level, ok := cfg.SecurityPolicy.LevelOf("notes")
			require.True(t, ok)
			assert.Equal(t, config.LevelSensitive, level)
		case <-time.After(5 * time.Second):
			t.Fatal("reload was not applied")
		}
		assert.Eventually(t, func() bool { return r.Reloads() == 1 }, time.Second, 10*time.Millisecond)
	})
}

func TestReloader_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, writeFile(path, policyFile("public")))

	applied := make(chan struct{}, 1)
	r, err := NewReloader(path, func(*config.Config) error {
		applied <- struct{}{}
		return nil
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, writeFile(filepath.Join(dir, "other.json"), policyFile("sensitive")))
	select {
	case <-applied:
		t.Fatal("change to a sibling file triggered a reload")
	case <-time.After(3 * reloadDebounce):
	}
}

func TestNewReloader_MissingDirectory(t *testing.T) {
	_, err := NewReloader(filepath.Join(t.TempDir(), "nope", "config.json"), func(*config.Config) error { return nil }, nil)
	assert.Error(t, err)
}
