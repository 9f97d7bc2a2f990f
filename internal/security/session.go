// ABOUTME: Session history that cross-backend policies are evaluated against.
// ABOUTME: A session records allowed accesses and a taint flag that is never cleared.

package security

import (
	"sync"
	"time"

	"github.com/2389/mcpware/internal/config"
)

// Access is one allowed backend call within a session.
type Access struct {
	Backend          string               `json:"backend"`
	Tool             string               `json:"tool"`
	Level            config.SecurityLevel `json:"security_level"`
	Timestamp        time.Time            `json:"timestamp"`
	HasSensitiveData bool                 `json:"has_sensitive_data"`
}

// Session is the access history of one logical client. Its fields are
// guarded by mu; the engine holds the lock for the whole of a policy
// evaluation so that a taint set by one call is seen by the next.
type Session struct {
	ID        string
	StartedAt time.Time

	mu          sync.Mutex
	accesses    []Access
	tainted     bool
	taintSource string
}

func newSession(id string, now time.Time) *Session {
	return &Session{ID: id, StartedAt: now}
}

// Tainted reports whether the session is tainted and why. It takes the
// session lock, so policies read the flag through Context instead.
func (s *Session) Tainted() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tainted, s.taintSource
}

// Accesses returns a copy of the access history.
func (s *Session) Accesses() []Access {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Access(nil), s.accesses...)
}

// taint marks the session. The first reason sticks.
func (s *Session) taint(reason string) {
	if s.tainted {
		return
	}
	s.tainted = true
	s.taintSource = reason
}

// markLastSensitive flags the most recent access to backend as having
// returned sensitive data. It reports whether such an access existed.
func (s *Session) markLastSensitive(backend string) bool {
	for i := len(s.accesses) - 1; i >= 0; i-- {
		if s.accesses[i].Backend == backend {
			s.accesses[i].HasSensitiveData = true
			return true
		}
	}
	return false
}

// distinctBackends returns backends in order of first access.
func (s *Session) distinctBackends() []string {
	seen := make(map[string]bool)
	var names []string
	for _, a := range s.accesses {
		if !seen[a.Backend] {
			seen[a.Backend] = true
			names = append(names, a.Backend)
		}
	}
	return names
}
