// ABOUTME: Package router implements the gateway's MCP method surface.
// ABOUTME: It exposes synthetic routing tools and aggregates resources and prompts.

// Package router maps JSON-RPC methods onto backend calls.
//
// The client sees three tools regardless of how many backends exist:
// use_tool forwards a call to a named backend after the security engine
// approves it, discover_backend_tools lists what each backend offers, and
// security_status reports the caller's session. Resources and prompts from
// every backend are merged under backend-qualified names ("backend:uri" and
// "backend_name") and routed back on read.
//
// Backend failures never become JSON-RPC errors here. They are returned as
// tool results with isError set, so clients show them as tool output.
package router
