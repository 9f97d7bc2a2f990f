// ABOUTME: Store interface and record types for mcpware's security decision log
// ABOUTME: Defines Decision, DecisionFilter and the DecisionStore interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned when the store is used after Close.
var ErrClosed = errors.New("store closed")

// Phase values recorded with each decision.
const (
	PhaseAccess   = "access"
	PhaseResponse = "response"
)

// Decision is one security verdict as persisted in the audit log.
type Decision struct {
	ID          string // UUID v4, generated on append if empty
	SessionID   string
	Backend     string
	Tool        string // empty for response checks
	Level       string // public, internal, sensitive, or empty if unclassified
	Phase       string // PhaseAccess or PhaseResponse
	Allowed     bool
	Reason      string
	Tainted     bool
	TaintSource string
	Categories  []string // sensitive-data validators that matched
	Timestamp   time.Time
}

// DecisionFilter narrows ListDecisions. Nil fields match everything.
type DecisionFilter struct {
	Since     *time.Time
	SessionID *string
	Backend   *string
	Allowed   *bool
	Limit     int // default 100, max 1000
}

// DecisionStore persists security decisions.
type DecisionStore interface {
	AppendDecision(ctx context.Context, d *Decision) error
	ListDecisions(ctx context.Context, f DecisionFilter) ([]Decision, error)
	Close() error
}
