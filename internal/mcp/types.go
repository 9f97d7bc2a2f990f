// ABOUTME: MCP method names and payload types used by the gateway router.
// ABOUTME: Payloads owned by backends stay as raw JSON so they pass through unchanged.

package mcp

import "encoding/json"

// ProtocolVersion is the MCP revision advertised by the gateway.
const ProtocolVersion = "2024-11-05"

// MCP methods handled by the gateway.
const (
	MethodInitialize              = "initialize"
	MethodToolsList               = "tools/list"
	MethodToolsCall               = "tools/call"
	MethodResourcesList           = "resources/list"
	MethodResourcesRead           = "resources/read"
	MethodPromptsList             = "prompts/list"
	MethodPromptsGet              = "prompts/get"
	MethodNotificationInitialized = "notifications/initialized"
	MethodNotificationCancelled   = "notifications/cancelled"
)

// ServerInfo identifies an MCP server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Vendor  string `json:"vendor,omitempty"`
}

// InitializeResult is the result for initialize.
type InitializeResult struct {
	ProtocolVersion string                     `json:"protocolVersion"`
	Capabilities    map[string]json.RawMessage `json:"capabilities"`
	ServerInfo      ServerInfo                 `json:"serverInfo"`
}

// ToolInfo represents an MCP tool definition.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"inputSchema"`
}

// ListToolsResult is the result for tools/list.
type ListToolsResult struct {
	Tools []ToolInfo `json:"tools"`
}

// CallToolParams are the params for tools/call.
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
	SessionID string         `json:"_session_id,omitempty"`
	RequestID string         `json:"_request_id,omitempty"`
}

// CallToolResult is the result for tools/call as produced by the gateway itself.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// Content represents a text content block.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TextResult wraps text in a successful tool result.
func TextResult(text string) *CallToolResult {
	return &CallToolResult{Content: []Content{{Type: "text", Text: text}}}
}

// ToolError wraps a message in the tool-error shape. The JSON-RPC response
// carrying it is still a success.
func ToolError(message string) *CallToolResult {
	return &CallToolResult{
		Content: []Content{{Type: "text", Text: "Error: " + message}},
		IsError: true,
	}
}

// Resource is an entry in resources/list.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MIMEType    string `json:"mimeType"`
}

// ListResourcesResult is the result for resources/list.
type ListResourcesResult struct {
	Resources []Resource `json:"resources"`
}

// ReadResourceParams are the params for resources/read.
type ReadResourceParams struct {
	URI string `json:"uri"`
}

// Prompt is an entry in prompts/list. Arguments pass through as the backend sent them.
type Prompt struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Arguments   json.RawMessage `json:"arguments"`
}

// ListPromptsResult is the result for prompts/list.
type ListPromptsResult struct {
	Prompts []Prompt `json:"prompts"`
}

// GetPromptParams are the params for prompts/get.
type GetPromptParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}
