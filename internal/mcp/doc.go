// ABOUTME: Package mcp holds the JSON-RPC 2.0 envelope and MCP payload types.
// ABOUTME: Shared by the backend transport, the router and the stdio frontend.

// Package mcp defines the wire types mcpware speaks on both sides.
//
// Requests and responses are JSON-RPC 2.0 objects, one per line. IDs are
// kept as raw JSON so a client's string or numeric id is echoed back
// byte-for-byte; IDKey turns an id into a map key for pending-request
// tables.
//
// Only the payloads the gateway inspects or synthesizes are typed here
// (initialize, tools, resources, prompts). Everything else passes through
// as json.RawMessage.
//
// Tool-level failures are not JSON-RPC errors: ToolError builds a normal
// result with isError set so clients show the message as tool output.
package mcp
