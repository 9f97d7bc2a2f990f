// ABOUTME: SQLite implementation of DecisionStore using modernc.org/sqlite
// ABOUTME: Opens the database in WAL mode and creates the schema on first use

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements DecisionStore using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	closed atomic.Bool
}

// NewSQLiteStore opens (or creates) the audit database at path.
// Parent directories are created if needed.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite has a single writer; one pooled connection keeps the pragmas
	// below in effect for every statement.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite audit store initialized", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS security_decisions (
			decision_id   TEXT PRIMARY KEY,
			session_id    TEXT NOT NULL,
			backend       TEXT NOT NULL,
			tool          TEXT NOT NULL DEFAULT '',
			level         TEXT NOT NULL DEFAULT '',
			phase         TEXT NOT NULL,
			allowed       INTEGER NOT NULL,
			reason        TEXT NOT NULL DEFAULT '',
			tainted       INTEGER NOT NULL DEFAULT 0,
			taint_source  TEXT NOT NULL DEFAULT '',
			categories    TEXT,
			ts            TEXT NOT NULL,

			CHECK (phase IN ('access', 'response'))
		);

		CREATE INDEX IF NOT EXISTS idx_decisions_session ON security_decisions(session_id, ts);
		CREATE INDEX IF NOT EXISTS idx_decisions_backend ON security_decisions(backend, ts);
		CREATE INDEX IF NOT EXISTS idx_decisions_ts ON security_decisions(ts);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection. Calling it twice is harmless.
func (s *SQLiteStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.logger.Info("closing SQLite audit store")
	return s.db.Close()
}
