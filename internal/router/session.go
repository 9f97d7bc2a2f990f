// ABOUTME: Binds a security session ID to a request context.
// ABOUTME: The frontend sets one per connection; tool call params override it only when policy allows.

package router

import (
	"context"

	"github.com/google/uuid"

	"github.com/2389/mcpware/internal/mcp"
)

type sessionKey struct{}

// WithSession returns a context carrying the session ID.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

// SessionFromContext returns the session ID bound to ctx, if any.
func SessionFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionKey{}).(string)
	return id, ok && id != ""
}

// resolveSession picks the session for a tool call. Client-supplied
// _session_id, then _request_id, are honored only when allowOverride is
// set; otherwise the connection's session wins, then a fresh one.
func resolveSession(ctx context.Context, params *mcp.CallToolParams, allowOverride bool) string {
	if allowOverride {
		if params.SessionID != "" {
			return params.SessionID
		}
		if params.RequestID != "" {
			return params.RequestID
		}
	}
	if id, ok := SessionFromContext(ctx); ok {
		return id
	}
	return uuid.NewString()
}
