// ABOUTME: Append and list operations for the security_decisions table
// ABOUTME: Rows are append-only; listing filters by session, backend, outcome and time

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// timeLayout keeps sub-second precision so rows sort in append order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// AppendDecision appends a decision. Generates ID and Timestamp if not set.
func (s *SQLiteStore) AppendDecision(ctx context.Context, d *Decision) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now().UTC()
	}

	var categories *string
	if len(d.Categories) > 0 {
		data, err := json.Marshal(d.Categories)
		if err != nil {
			return fmt.Errorf("marshaling categories: %w", err)
		}
		str := string(data)
		categories = &str
	}

	query := `
		INSERT INTO security_decisions
			(decision_id, session_id, backend, tool, level, phase, allowed, reason, tainted, taint_source, categories, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		d.ID,
		d.SessionID,
		d.Backend,
		d.Tool,
		d.Level,
		d.Phase,
		d.Allowed,
		d.Reason,
		d.Tainted,
		d.TaintSource,
		categories,
		d.Timestamp.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting decision: %w", err)
	}

	s.logger.Debug("appended security decision",
		"id", d.ID,
		"session", d.SessionID,
		"backend", d.Backend,
		"phase", d.Phase,
		"allowed", d.Allowed,
	)
	return nil
}

// normalizeLimit applies default (100) and cap (1000) to a list limit.
func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

func scanDecision(scanner interface{ Scan(dest ...any) error }) (Decision, error) {
	var d Decision
	var tsStr string
	var categories *string

	if err := scanner.Scan(
		&d.ID,
		&d.SessionID,
		&d.Backend,
		&d.Tool,
		&d.Level,
		&d.Phase,
		&d.Allowed,
		&d.Reason,
		&d.Tainted,
		&d.TaintSource,
		&categories,
		&tsStr,
	); err != nil {
		return d, fmt.Errorf("scanning decision: %w", err)
	}

	var err error
	d.Timestamp, err = time.Parse(timeLayout, tsStr)
	if err != nil {
		return d, fmt.Errorf("parsing timestamp: %w", err)
	}
	if categories != nil {
		if err := json.Unmarshal([]byte(*categories), &d.Categories); err != nil {
			return d, fmt.Errorf("unmarshaling categories: %w", err)
		}
	}
	return d, nil
}

const decisionsQuery = `
	SELECT decision_id, session_id, backend, tool, level, phase, allowed, reason, tainted, taint_source, categories, ts
	FROM security_decisions
	WHERE (? IS NULL OR ts >= ?)
	  AND (? IS NULL OR session_id = ?)
	  AND (? IS NULL OR backend = ?)
	  AND (? IS NULL OR allowed = ?)
	ORDER BY ts DESC, rowid DESC
	LIMIT ?
`

// ListDecisions returns decisions matching the filter, newest first.
func (s *SQLiteStore) ListDecisions(ctx context.Context, f DecisionFilter) ([]Decision, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	var since *string
	if f.Since != nil {
		str := f.Since.UTC().Format(timeLayout)
		since = &str
	}

	rows, err := s.db.QueryContext(ctx, decisionsQuery,
		since, since,
		f.SessionID, f.SessionID,
		f.Backend, f.Backend,
		f.Allowed, f.Allowed,
		normalizeLimit(f.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var decisions []Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating decisions: %w", err)
	}

	if decisions == nil {
		decisions = []Decision{}
	}
	return decisions, nil
}
