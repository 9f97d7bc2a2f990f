// ABOUTME: Adapter that persists security engine decisions in the audit store
// ABOUTME: Maps security.AuditEvent onto store.Decision rows

package gateway

import (
	"context"

	"github.com/2389/mcpware/internal/security"
	"github.com/2389/mcpware/internal/store"
)

// decisionRecorder implements security.Recorder on top of a DecisionStore.
type decisionRecorder struct {
	store store.DecisionStore
}

func newDecisionRecorder(s store.DecisionStore) *decisionRecorder {
	return &decisionRecorder{store: s}
}

// RecordDecision appends one engine decision to the store.
func (r *decisionRecorder) RecordDecision(ctx context.Context, event security.AuditEvent) error {
	return r.store.AppendDecision(ctx, &store.Decision{
		SessionID:   event.SessionID,
		Backend:     event.Backend,
		Tool:        event.Tool,
		Level:       string(event.Level),
		Phase:       string(event.Phase),
		Allowed:     event.Allowed,
		Reason:      event.Reason,
		Tainted:     event.Tainted,
		TaintSource: event.TaintSource,
		Categories:  event.Categories,
		Timestamp:   event.Timestamp,
	})
}
