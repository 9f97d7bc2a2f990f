// ABOUTME: Package store persists mcpware's security decisions in SQLite.
// ABOUTME: The log is append-only and never used to rebuild in-memory sessions.

// Package store provides the optional audit log for the security engine.
//
// # Architecture
//
// DecisionStore is the interface the gateway depends on; SQLiteStore
// implements it with modernc.org/sqlite (pure Go, no cgo). The database runs
// in WAL mode so the `mcpware audit` command can read while a gateway is
// writing.
//
// # Data Model
//
// Each row in security_decisions is one Decision:
//
//   - Phase "access": the policy chain's verdict on a use_tool call
//   - Phase "response": the sensitive-data scan of a backend result
//
// Rows carry the session ID, backend, tool, security level, outcome, reason,
// the session's taint state at decision time, and any matched validator
// categories.
//
// # Usage
//
//	s, err := store.NewSQLiteStore("/var/lib/mcpware/audit.db", logger)
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	denied := false
//	rows, err := s.ListDecisions(ctx, store.DecisionFilter{Allowed: &denied, Limit: 20})
package store
