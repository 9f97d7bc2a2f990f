// ABOUTME: The gateway's three synthetic tools: use_tool, discover_backend_tools and security_status.
// ABOUTME: Every failure here is reported as a tool error rather than a JSON-RPC error.

package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/2389/mcpware/internal/mcp"
)

// Synthetic tool names.
const (
	ToolUseTool        = "use_tool"
	ToolDiscover       = "discover_backend_tools"
	ToolSecurityStatus = "security_status"
)

// discoverPreview is how many tools per backend the all-backends listing shows.
const discoverPreview = 5

func (r *Router) handleListTools(_ context.Context, _ json.RawMessage) (any, error) {
	names := r.backends.Configured()
	if names == nil {
		names = []string{}
	}
	available := strings.Join(names, ", ")

	return mcp.ListToolsResult{Tools: []mcp.ToolInfo{
		{
			Name:        ToolUseTool,
			Description: "Route a tool call to a specific backend MCP server",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"backend_server": map[string]any{
						"type":        "string",
						"description": "The backend server to use. Available servers: " + available,
						"enum":        names,
					},
					"server_tool": map[string]any{
						"type":        "string",
						"description": "The name of the tool to call on the backend server",
					},
					"tool_arguments": map[string]any{
						"type":                 "object",
						"description":          "Arguments to pass to the backend server's tool",
						"additionalProperties": true,
					},
				},
				"required":             []string{"backend_server", "server_tool"},
				"additionalProperties": false,
			},
		},
		{
			Name:        ToolDiscover,
			Description: "Discover available tools on backend MCP servers",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"backend_server": map[string]any{
						"type":        "string",
						"description": "The backend server to query for available tools (optional, omit to list all)",
						"enum":        names,
					},
				},
				"additionalProperties": false,
			},
		},
		{
			Name:        ToolSecurityStatus,
			Description: "Get current session security status and access history",
			InputSchema: map[string]any{
				"type":                 "object",
				"properties":           map[string]any{},
				"additionalProperties": false,
			},
		},
	}}, nil
}

func (r *Router) handleToolCall(ctx context.Context, raw json.RawMessage) (any, error) {
	var params mcp.CallToolParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	sessionID := resolveSession(ctx, &params, r.engine.Policy().AllowClientSessionIDs)

	switch params.Name {
	case ToolUseTool:
		return r.useTool(ctx, sessionID, params.Arguments), nil
	case ToolDiscover:
		backend, _ := params.Arguments["backend_server"].(string)
		return r.discoverTools(ctx, backend), nil
	case ToolSecurityStatus:
		return r.securityStatus(sessionID), nil
	default:
		return mcp.ToolError("Unknown tool: " + params.Name), nil
	}
}

func (r *Router) useTool(ctx context.Context, sessionID string, args map[string]any) any {
	backend, _ := args["backend_server"].(string)
	tool, _ := args["server_tool"].(string)
	toolArgs, _ := args["tool_arguments"].(map[string]any)
	if toolArgs == nil {
		toolArgs = map[string]any{}
	}

	if backend == "" {
		return mcp.ToolError("Missing required parameter: backend_server")
	}
	if !r.isKnown(backend) {
		return mcp.ToolError(fmt.Sprintf("Unknown backend server: %s. Available servers: %s",
			backend, strings.Join(r.backends.Configured(), ", ")))
	}
	if tool == "" {
		return mcp.ToolError("Missing required parameter: server_tool")
	}

	if d := r.engine.ValidateAccess(ctx, sessionID, backend, tool, toolArgs); !d.Allowed {
		return mcp.ToolError("Security validation failed: " + d.Reason)
	}

	req, err := mcp.NewRequest(nil, mcp.MethodToolsCall, map[string]any{"name": tool, "arguments": toolArgs})
	if err != nil {
		return mcp.ToolError(err.Error())
	}
	resp, err := r.backends.ForwardRequest(ctx, backend, req)
	if err != nil {
		r.logger.Error("tool call failed", "backend", backend, "tool", tool, "error", err)
		return mcp.ToolError(err.Error())
	}
	if resp.Error != nil {
		return mcp.ToolError(fmt.Sprintf("Backend error from %s: %s", backend, resp.Error.Message))
	}
	if len(resp.Result) == 0 {
		return mcp.ToolError("Invalid response from backend")
	}

	if d := r.engine.ValidateResponse(ctx, sessionID, backend, resp.Result); !d.Allowed {
		return mcp.ToolError("Response blocked: " + d.Reason)
	}

	return prefixTextContent(resp.Result, backend)
}

// prefixTextContent prepends "[backend] " to every text content block of a
// tool result. Other blocks and fields are carried through untouched; a
// result without a content array is returned as is.
func prefixTextContent(result json.RawMessage, backend string) json.RawMessage {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(result, &fields); err != nil {
		return result
	}
	var blocks []json.RawMessage
	if err := json.Unmarshal(fields["content"], &blocks); err != nil {
		return result
	}

	for i, block := range blocks {
		var item map[string]json.RawMessage
		if err := json.Unmarshal(block, &item); err != nil {
			continue
		}
		var kind string
		if err := json.Unmarshal(item["type"], &kind); err != nil || kind != "text" {
			continue
		}
		var text string
		if raw, ok := item["text"]; ok {
			if err := json.Unmarshal(raw, &text); err != nil {
				continue
			}
		}
		encoded, err := json.Marshal("[" + backend + "] " + text)
		if err != nil {
			continue
		}
		item["text"] = encoded
		if blocks[i], err = json.Marshal(item); err != nil {
			blocks[i] = block
		}
	}

	content, err := json.Marshal(blocks)
	if err != nil {
		return result
	}
	fields["content"] = content
	out, err := json.Marshal(fields)
	if err != nil {
		return result
	}
	return out
}

// listBackendTools fetches a backend's tools/list result.
func (r *Router) listBackendTools(ctx context.Context, backend string) ([]mcp.ToolInfo, error) {
	req, err := mcp.NewRequest(nil, mcp.MethodToolsList, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.backends.ForwardRequest(ctx, backend, req)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}

	var result struct {
		Tools *[]mcp.ToolInfo `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil || result.Tools == nil {
		return nil, fmt.Errorf("invalid tools/list result from %s", backend)
	}
	return *result.Tools, nil
}

// levelLabel names a backend's security level for display.
func (r *Router) levelLabel(backend string) string {
	level, err := r.engine.LevelOf(backend)
	if err != nil {
		return "unclassified"
	}
	return string(level)
}

func toolLine(t mcp.ToolInfo) string {
	desc := t.Description
	if desc == "" {
		desc = "No description"
	}
	return fmt.Sprintf("  - %s: %s", t.Name, desc)
}

func (r *Router) discoverTools(ctx context.Context, backend string) any {
	if backend != "" {
		if !r.isKnown(backend) {
			return mcp.ToolError("Unknown backend server: " + backend)
		}
		return r.discoverOne(ctx, backend)
	}
	return r.discoverAll(ctx)
}

func (r *Router) discoverOne(ctx context.Context, backend string) any {
	tools, err := r.listBackendTools(ctx, backend)
	if err != nil {
		r.logger.Error("failed to discover tools", "backend", backend, "error", err)
		return mcp.ToolError(fmt.Sprintf("Failed to list tools from %s", backend))
	}

	lines := make([]string, len(tools))
	for i, t := range tools {
		lines[i] = toolLine(t)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Backend: %s\n", backend)
	fmt.Fprintf(&b, "Description: %s\n", r.backends.Description(backend))
	fmt.Fprintf(&b, "Security level: %s\n", r.levelLabel(backend))
	fmt.Fprintf(&b, "Available tools (%d):\n", len(tools))
	b.WriteString(strings.Join(lines, "\n"))
	return mcp.TextResult(b.String())
}

func (r *Router) discoverAll(ctx context.Context) any {
	names := r.backends.Configured()
	discoveries := forEachBackend(names, func(name string) string {
		tools, err := r.listBackendTools(ctx, name)
		if err != nil {
			r.logger.Error("failed to discover tools", "backend", name, "error", err)
			return fmt.Sprintf("\n❌ Backend: %s - Error: %s", name, err.Error())
		}

		shown := tools
		if len(shown) > discoverPreview {
			shown = shown[:discoverPreview]
		}
		lines := make([]string, len(shown))
		for i, t := range shown {
			lines[i] = toolLine(t)
		}

		var b strings.Builder
		fmt.Fprintf(&b, "\n📦 Backend: %s\n", name)
		fmt.Fprintf(&b, "   Description: %s\n", r.backends.Description(name))
		fmt.Fprintf(&b, "   Security level: %s\n", r.levelLabel(name))
		fmt.Fprintf(&b, "   Tools (%d available):\n", len(tools))
		b.WriteString(strings.Join(lines, "\n"))
		if len(tools) > discoverPreview {
			fmt.Fprintf(&b, "\n   ... and %d more tools", len(tools)-discoverPreview)
		}
		return b.String()
	})

	if len(discoveries) == 0 {
		return mcp.TextResult("No backend servers with tools found.")
	}
	return mcp.TextResult("Available Backend Servers and Tools:\n" + strings.Join(discoveries, "\n"))
}

func (r *Router) securityStatus(sessionID string) any {
	var b strings.Builder
	b.WriteString("🔒 Security Status Report\n")
	b.WriteString(strings.Repeat("=", 40) + "\n\n")

	summary, ok := r.engine.Summary(sessionID)
	if !ok {
		b.WriteString("Error: Session not found\n")
		return mcp.TextResult(b.String())
	}

	tainted := "No"
	if summary.Tainted {
		tainted = "Yes"
	}
	fmt.Fprintf(&b, "Session ID: %s\n", summary.SessionID)
	fmt.Fprintf(&b, "Started: %s\n", summary.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Duration: %.1f seconds\n", summary.Duration.Seconds())
	fmt.Fprintf(&b, "Tainted: %s\n", tainted)
	if summary.TaintSource != "" {
		fmt.Fprintf(&b, "Taint Source: %s\n", summary.TaintSource)
	}

	fmt.Fprintf(&b, "\nAccessed Backends: %s\n", strings.Join(summary.AccessedBackends, ", "))
	fmt.Fprintf(&b, "Total Accesses: %d\n", summary.TotalAccesses)
	fmt.Fprintf(&b, "Sensitive Data Accesses: %d\n", summary.SensitiveDataAccesses)

	if len(summary.Recent) > 0 {
		b.WriteString("\n📊 Recent Access History:\n")
		for _, a := range summary.Recent {
			fmt.Fprintf(&b, "  • %s (%s) - %s", a.Backend, a.Level, a.Tool)
			if a.HasSensitiveData {
				b.WriteString(" ⚠️ [sensitive data]")
			}
			b.WriteString("\n")
		}
	}
	return mcp.TextResult(b.String())
}
