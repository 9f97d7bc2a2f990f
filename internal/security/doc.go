// ABOUTME: Package security decides whether each backend call and each backend response may pass.
// ABOUTME: Decisions depend on per-session access history and the configured backend levels.

// Package security implements the gateway's cross-backend security policy.
//
// # Overview
//
// Every backend is classified public, internal or sensitive. The [Engine]
// keeps a [Session] per client holding the backends it has reached and
// whether it has been tainted by suspicious activity. Two checks use it:
//
//   - [Engine.ValidateAccess] runs before a tool call. Policies run in a
//     fixed order (tainted session, suspicious SQL, data flow) and the first
//     denial wins. A policy may taint the session even while denying.
//   - [Engine.ValidateResponse] runs on the backend's result. Sensitive data
//     flags the session's latest access to that backend, and a public
//     backend's response carrying it is blocked.
//
// # Invariants
//
// A backend missing from backend_security_levels is always denied. A taint
// is never cleared within a session; a session older than the timeout is
// replaced by a fresh one on its next use.
//
// # Sessions
//
// [SessionStore] bounds memory with a periodic sweep of expired sessions and
// an optional least-recently-used cap.
package security
