// ABOUTME: Read-only projection of a session for the security_status tool and diagnostics.
// ABOUTME: Lists distinct backends, counts, taint state, and the ten most recent accesses.

package security

import "time"

// recentAccesses is how many accesses a summary lists.
const recentAccesses = 10

// Summary is a snapshot of one session.
type Summary struct {
	SessionID             string        `json:"session_id"`
	StartedAt             time.Time     `json:"started_at"`
	Duration              time.Duration `json:"duration"`
	AccessedBackends      []string      `json:"accessed_backends"`
	TotalAccesses         int           `json:"total_accesses"`
	SensitiveDataAccesses int           `json:"sensitive_data_accesses"`
	Tainted               bool          `json:"is_tainted"`
	TaintSource           string        `json:"taint_source,omitempty"`
	Recent                []Access      `json:"backend_sequence"`
}

// Summary returns a snapshot of the session, or false if it does not exist
// or has expired.
func (e *Engine) Summary(sessionID string) (Summary, bool) {
	session, ok := e.sessions.Lookup(sessionID)
	if !ok {
		return Summary{}, false
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	s := Summary{
		SessionID:        session.ID,
		StartedAt:        session.StartedAt,
		Duration:         e.now().Sub(session.StartedAt),
		AccessedBackends: session.distinctBackends(),
		TotalAccesses:    len(session.accesses),
		Tainted:          session.tainted,
		TaintSource:      session.taintSource,
	}
	for _, a := range session.accesses {
		if a.HasSensitiveData {
			s.SensitiveDataAccesses++
		}
	}

	start := len(session.accesses) - recentAccesses
	if start < 0 {
		start = 0
	}
	s.Recent = append([]Access(nil), session.accesses[start:]...)
	return s, true
}
