// ABOUTME: Package backend runs backend MCP servers as child processes and talks JSON-RPC to them.
// ABOUTME: Provides the per-process transport, the named pool, and health probes.

// Package backend manages the backend MCP servers behind the gateway.
//
// # Overview
//
// Each backend is a child process speaking newline-delimited JSON-RPC 2.0 on
// its stdin and stdout. A [Process] owns one child: it writes requests under a
// write lock, reads responses on a background goroutine, and matches them to
// waiting callers by request id. Many requests may be in flight at once and
// responses may come back in any order.
//
// # Lifecycle
//
//	NotStarted -> Starting -> Running -> Stopping -> Stopped
//
// Start waits a short grace period; a child that dies during it produces a
// [StartupError] with the tail of its stderr. Stop closes stdin, then sends
// SIGTERM, then SIGKILL, waiting a bounded time after each.
//
// # Failures
//
// A request that outlives the backend's timeout fails with [ErrTimeout] and
// its pending slot is released, so a late reply is logged and dropped. If the
// process dies, every waiter fails with [ErrUnavailable].
//
// # Pool
//
// [Pool] starts all configured backends concurrently and keeps the ones that
// came up. Requests to a name the pool does not hold fail with
// [ErrUnknownBackend].
package backend
