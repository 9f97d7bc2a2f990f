// ABOUTME: Health probes for backends, using an initialize round trip as the liveness check.
// ABOUTME: Results feed the health CLI command and the gRPC health service.

package backend

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/2389/mcpware/internal/mcp"
)

// HealthStatus is the outcome of a backend probe.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthUnknown   HealthStatus = "unknown"
)

// HealthResult describes one backend's probe outcome.
type HealthResult struct {
	Name       string          `json:"name"`
	Status     HealthStatus    `json:"status"`
	Command    string          `json:"command,omitempty"`
	ServerInfo *mcp.ServerInfo `json:"serverInfo,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// CheckHealth probes a single backend with an initialize request.
func (p *Pool) CheckHealth(ctx context.Context, name string) HealthResult {
	result := HealthResult{Name: name, Status: HealthUnknown}

	proc, ok := p.Process(name)
	if !ok {
		result.Error = "backend not found"
		for _, cfg := range p.configs {
			if cfg.Name == name {
				result.Error = "backend not running"
				result.Command = strings.Join(cfg.Command, " ")
			}
		}
		return result
	}
	result.Command = strings.Join(proc.Config().Command, " ")

	req, err := mcp.NewRequest(nil, mcp.MethodInitialize, map[string]any{
		"protocolVersion": mcp.ProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]string{"name": "mcpware-health", "version": "1.0.0"},
	})
	if err != nil {
		result.Error = err.Error()
		return result
	}

	resp, err := proc.SendRequest(ctx, req)
	if err != nil {
		result.Status = HealthUnhealthy
		result.Error = err.Error()
		return result
	}
	if resp.Error != nil {
		result.Status = HealthUnhealthy
		result.Error = resp.Error.Message
		return result
	}
	if len(resp.Result) == 0 {
		result.Status = HealthUnhealthy
		result.Error = "invalid response"
		return result
	}

	var init struct {
		ServerInfo *mcp.ServerInfo `json:"serverInfo"`
	}
	if err := json.Unmarshal(resp.Result, &init); err != nil {
		result.Status = HealthUnhealthy
		result.Error = "invalid response"
		return result
	}
	result.Status = HealthHealthy
	result.ServerInfo = init.ServerInfo
	return result
}

// CheckAll probes every configured backend in configuration order.
func (p *Pool) CheckAll(ctx context.Context) []HealthResult {
	results := make([]HealthResult, len(p.configs))
	done := make(chan struct{}, len(p.configs))
	for i, cfg := range p.configs {
		go func(i int, name string) {
			results[i] = p.CheckHealth(ctx, name)
			done <- struct{}{}
		}(i, cfg.Name)
	}
	for range p.configs {
		<-done
	}
	return results
}
