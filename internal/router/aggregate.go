// ABOUTME: Resource and prompt aggregation across backends with backend-qualified names.
// ABOUTME: Only backends that advertised the capability during initialize are queried.

package router

import (
	"context"
	"encoding/json"

	"github.com/2389/mcpware/internal/mcp"
)

const defaultMIMEType = "text/plain"

// listFrom runs a list method against every backend advertising capability
// and returns each backend's raw result, skipping failures.
func (r *Router) listFrom(ctx context.Context, method, capability string) map[string]json.RawMessage {
	var targets []string
	for _, name := range r.backends.Names() {
		if r.hasCapability(name, capability) {
			targets = append(targets, name)
		}
	}

	results := forEachBackend(targets, func(name string) json.RawMessage {
		req, err := mcp.NewRequest(nil, method, nil)
		if err != nil {
			return nil
		}
		resp, err := r.backends.ForwardRequest(ctx, name, req)
		if err != nil {
			r.logger.Error("aggregate list failed", "method", method, "backend", name, "error", err)
			return nil
		}
		if resp.Error != nil {
			r.logger.Error("aggregate list rejected", "method", method, "backend", name, "error", resp.Error.Message)
			return nil
		}
		return resp.Result
	})

	out := make(map[string]json.RawMessage, len(targets))
	for i, name := range targets {
		if results[i] != nil {
			out[name] = results[i]
		}
	}
	return out
}

// orderedResults yields listFrom results in backend order.
func (r *Router) orderedResults(results map[string]json.RawMessage, fn func(name string, raw json.RawMessage)) {
	for _, name := range r.backends.Names() {
		if raw, ok := results[name]; ok {
			fn(name, raw)
		}
	}
}

func (r *Router) handleListResources(ctx context.Context, _ json.RawMessage) (any, error) {
	resources := []mcp.Resource{}

	r.orderedResults(r.listFrom(ctx, mcp.MethodResourcesList, "resources"), func(name string, raw json.RawMessage) {
		var result struct {
			Resources []struct {
				URI         string  `json:"uri"`
				Name        string  `json:"name"`
				Description string  `json:"description"`
				MIMEType    *string `json:"mimeType"`
			} `json:"resources"`
		}
		if err := json.Unmarshal(raw, &result); err != nil {
			r.logger.Error("invalid resources/list result", "backend", name, "error", err)
			return
		}
		for _, res := range result.Resources {
			mime := defaultMIMEType
			if res.MIMEType != nil {
				mime = *res.MIMEType
			}
			resources = append(resources, mcp.Resource{
				URI:         EncodeResourceURI(name, res.URI),
				Name:        "[" + name + "] " + res.Name,
				Description: res.Description,
				MIMEType:    mime,
			})
		}
	})

	return mcp.ListResourcesResult{Resources: resources}, nil
}

func (r *Router) handleListPrompts(ctx context.Context, _ json.RawMessage) (any, error) {
	prompts := []mcp.Prompt{}

	r.orderedResults(r.listFrom(ctx, mcp.MethodPromptsList, "prompts"), func(name string, raw json.RawMessage) {
		var result struct {
			Prompts []struct {
				Name        string          `json:"name"`
				Description string          `json:"description"`
				Arguments   json.RawMessage `json:"arguments"`
			} `json:"prompts"`
		}
		if err := json.Unmarshal(raw, &result); err != nil {
			r.logger.Error("invalid prompts/list result", "backend", name, "error", err)
			return
		}
		for _, p := range result.Prompts {
			args := p.Arguments
			if len(args) == 0 || string(args) == "null" {
				args = json.RawMessage("[]")
			}
			prompts = append(prompts, mcp.Prompt{
				Name:        EncodePromptName(name, p.Name),
				Description: "[" + name + "] " + p.Description,
				Arguments:   args,
			})
		}
	})

	return mcp.ListPromptsResult{Prompts: prompts}, nil
}

func (r *Router) handleReadResource(ctx context.Context, raw json.RawMessage) (any, error) {
	var params mcp.ReadResourceParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}

	backend, uri, ok := DecodeResourceURI(params.URI)
	if !ok {
		return mcp.ToolError("Invalid resource URI format: " + params.URI), nil
	}
	if !r.isKnown(backend) {
		return mcp.ToolError("Unknown backend: " + backend), nil
	}

	req, err := mcp.NewRequest(nil, mcp.MethodResourcesRead, mcp.ReadResourceParams{URI: uri})
	if err != nil {
		return nil, err
	}
	return r.forwardResult(ctx, backend, req), nil
}

func (r *Router) handleGetPrompt(ctx context.Context, raw json.RawMessage) (any, error) {
	var params mcp.GetPromptParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}

	backend, name, ok := DecodePromptName(params.Name, r.backends.Configured())
	if !ok {
		return mcp.ToolError("Invalid prompt name format: " + params.Name), nil
	}
	if !r.isKnown(backend) {
		return mcp.ToolError("Unknown backend: " + backend), nil
	}

	args := params.Arguments
	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage("{}")
	}
	req, err := mcp.NewRequest(nil, mcp.MethodPromptsGet, mcp.GetPromptParams{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}
	return r.forwardResult(ctx, backend, req), nil
}

// forwardResult passes a backend's result through unchanged, or turns a
// failure into a tool error.
func (r *Router) forwardResult(ctx context.Context, backend string, req *mcp.Request) any {
	resp, err := r.backends.ForwardRequest(ctx, backend, req)
	if err != nil {
		r.logger.Error("forward failed", "method", req.Method, "backend", backend, "error", err)
		return mcp.ToolError(err.Error())
	}
	if resp.Error != nil {
		return mcp.ToolError("Backend error: " + resp.Error.Message)
	}
	if len(resp.Result) == 0 {
		return mcp.ToolError("Invalid response from backend")
	}
	return resp.Result
}
