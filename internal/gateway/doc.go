// ABOUTME: Package gateway assembles and runs a complete mcpware instance.
// ABOUTME: It wires config, backends, security, router and frontend together.

// Package gateway orchestrates the mcpware components.
//
// # Overview
//
// A Gateway owns one backend pool, one security engine, the protocol router
// and the stdio frontend. Run starts every configured backend (failures are
// logged and the rest keep going), serves the client stream until EOF or
// cancellation, then stops all backends within ShutdownTimeout.
//
// # Optional parts
//
//   - audit.path: every security decision is appended to a SQLite log
//     (see package store).
//   - admin.grpc_addr: a grpc.health.v1 endpoint reports "" for the gateway
//     and one service per backend, re-probed every admin.health_interval.
//   - watch_config: the config file is watched and its security_policy is
//     swapped in on change. Backend changes need a restart.
package gateway
