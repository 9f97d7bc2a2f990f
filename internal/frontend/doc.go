// ABOUTME: Package frontend speaks newline-delimited JSON-RPC with the MCP client.
// ABOUTME: It owns framing and parse errors; method handling belongs to the router.

// Package frontend reads one JSON-RPC message per line from the client and
// writes one reply per line. Lines that fail to parse get a -32700 reply
// only when they look like a JSON-RPC attempt. Each stream is bound to a
// single security session.
package frontend
