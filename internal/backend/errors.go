// ABOUTME: Error values returned by backend processes and the backend pool.
// ABOUTME: Callers match them with errors.Is / errors.As to build tool errors.

package backend

import (
	"errors"
	"fmt"
)

// ErrNotRunning indicates a send was attempted before the backend reached Running.
// It signals a programming error rather than a runtime condition.
var ErrNotRunning = errors.New("backend not running")

// ErrAlreadyStarted indicates Start was called more than once.
var ErrAlreadyStarted = errors.New("backend already started")

// ErrTimeout indicates the backend did not answer within its timeout.
var ErrTimeout = errors.New("backend request timed out")

// ErrUnavailable indicates the backend process exited or its pipe broke.
var ErrUnavailable = errors.New("backend unavailable")

// ErrUnknownBackend indicates the named backend is not in the pool.
var ErrUnknownBackend = errors.New("unknown backend")

// ErrDuplicateRequestID indicates the request ID is already in flight.
var ErrDuplicateRequestID = errors.New("duplicate request ID")

// StartupError reports a backend that could not be started, with whatever
// the process wrote to stderr before it died.
type StartupError struct {
	Backend string
	Stderr  string
	Err     error
}

func (e *StartupError) Error() string {
	msg := fmt.Sprintf("backend %s failed to start: %v", e.Backend, e.Err)
	if e.Stderr != "" {
		msg += "\nstderr:\n" + e.Stderr
	}
	return msg
}

func (e *StartupError) Unwrap() error {
	return e.Err
}
