// ABOUTME: Process-wide session table with expiry on access, a periodic sweep, and an LRU bound.
// ABOUTME: Expired sessions are replaced by fresh untainted ones rather than reported as errors.

package security

import (
	"container/list"
	"log/slog"
	"sync"
	"time"
)

const sweepInterval = time.Minute

type sessionEntry struct {
	session *Session
	element *list.Element
}

// SessionStore maps session IDs to sessions. Sessions expire a fixed time
// after creation. When maxSize is positive the least recently used session
// is evicted to make room.
type SessionStore struct {
	mu      sync.Mutex
	entries map[string]*sessionEntry
	order   *list.List // session IDs, least recently used at front
	timeout time.Duration
	maxSize int
	now     func() time.Time
	logger  *slog.Logger
	done    chan struct{}
	closed  bool
}

// NewSessionStore creates a store and starts its background sweep.
func NewSessionStore(timeout time.Duration, maxSize int, now func() time.Time, logger *slog.Logger) *SessionStore {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &SessionStore{
		entries: make(map[string]*sessionEntry),
		order:   list.New(),
		timeout: timeout,
		maxSize: maxSize,
		now:     now,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// Get returns the session for id, creating it if absent and replacing it if
// it has outlived the timeout.
func (s *SessionStore) Get(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if entry, ok := s.entries[id]; ok {
		if now.Sub(entry.session.StartedAt) <= s.timeout {
			s.order.MoveToBack(entry.element)
			return entry.session
		}
		s.logger.Info("session timed out, starting a new one", "session", id)
		entry.session = newSession(id, now)
		s.order.MoveToBack(entry.element)
		return entry.session
	}

	if s.maxSize > 0 {
		for len(s.entries) >= s.maxSize {
			s.evictOldest()
		}
	}
	session := newSession(id, now)
	s.entries[id] = &sessionEntry{session: session, element: s.order.PushBack(id)}
	return session
}

// Lookup returns an existing, unexpired session without creating one.
func (s *SessionStore) Lookup(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok || s.now().Sub(entry.session.StartedAt) > s.timeout {
		return nil, false
	}
	return entry.session, true
}

// Len returns the number of stored sessions, expired or not.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// SetLimits changes the timeout and size bound. A smaller bound takes
// effect immediately.
func (s *SessionStore) SetLimits(timeout time.Duration, maxSize int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.timeout = timeout
	s.maxSize = maxSize
	if maxSize > 0 {
		for len(s.entries) > maxSize {
			s.evictOldest()
		}
	}
}

// evictOldest requires mu.
func (s *SessionStore) evictOldest() {
	front := s.order.Front()
	if front == nil {
		return
	}
	id, _ := front.Value.(string)
	s.order.Remove(front)
	delete(s.entries, id)
	s.logger.Debug("evicted least recently used session", "session", id)
}

func (s *SessionStore) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.done:
			return
		}
	}
}

// Sweep drops every expired session and returns how many were removed.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, entry := range s.entries {
		if now.Sub(entry.session.StartedAt) > s.timeout {
			s.order.Remove(entry.element)
			delete(s.entries, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("swept expired sessions", "removed", removed, "remaining", len(s.entries))
	}
	return removed
}

// Close stops the background sweep. It is safe to call more than once.
func (s *SessionStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		close(s.done)
		s.closed = true
	}
}
