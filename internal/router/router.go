// ABOUTME: Router dispatches JSON-RPC methods to handlers and aggregates results across backends.
// ABOUTME: Handler panics and failures become JSON-RPC errors; backend failures become tool errors.

package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/2389/mcpware/internal/mcp"
	"github.com/2389/mcpware/internal/security"
)

// Gateway identity reported from initialize.
const (
	ServerName    = "mcpware"
	ServerVersion = "1.0.0"
	ServerVendor  = "MCP Gateway"
)

// Forwarder reaches backends by name. *backend.Pool implements it.
type Forwarder interface {
	// Names lists the backends that are running.
	Names() []string
	// Configured lists every backend in the config, running or not.
	Configured() []string
	Description(name string) string
	ForwardRequest(ctx context.Context, name string, req *mcp.Request) (*mcp.Response, error)
	ForwardNotification(name string, n *mcp.Request)
}

type handlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Router implements the gateway's MCP method surface.
type Router struct {
	backends Forwarder
	engine   *security.Engine
	logger   *slog.Logger
	handlers map[string]handlerFunc

	capsMu       sync.RWMutex
	capabilities map[string]map[string]json.RawMessage
}

// New creates a router over the given backends and security engine.
func New(backends Forwarder, engine *security.Engine, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		backends:     backends,
		engine:       engine,
		logger:       logger.With("component", "router"),
		capabilities: make(map[string]map[string]json.RawMessage),
	}
	r.handlers = map[string]handlerFunc{
		mcp.MethodInitialize:    r.handleInitialize,
		mcp.MethodToolsList:     r.handleListTools,
		mcp.MethodToolsCall:     r.handleToolCall,
		mcp.MethodResourcesList: r.handleListResources,
		mcp.MethodResourcesRead: r.handleReadResource,
		mcp.MethodPromptsList:   r.handleListPrompts,
		mcp.MethodPromptsGet:    r.handleGetPrompt,
	}
	return r
}

// Handle processes one message. It returns nil for notifications, which
// never get a reply.
func (r *Router) Handle(ctx context.Context, req *mcp.Request) (resp *mcp.Response) {
	if req.IsNotification() {
		r.handleNotification(req)
		return nil
	}

	defer func() {
		if v := recover(); v != nil {
			r.logger.Error("panic while handling request", "method", req.Method, "panic", v, "stack", string(debug.Stack()))
			resp = mcp.NewError(req.ID, mcp.InternalError, "Internal error", fmt.Sprint(v))
		}
	}()

	handler, ok := r.handlers[req.Method]
	if !ok {
		r.logger.Warn("unknown method", "method", req.Method)
		return mcp.NewError(req.ID, mcp.MethodNotFound, "Method not found: "+req.Method, nil)
	}

	result, err := handler(ctx, req.Params)
	if err != nil {
		var rpcErr *mcp.Error
		if errors.As(err, &rpcErr) {
			return mcp.NewError(req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		}
		r.logger.Error("error handling request", "method", req.Method, "error", err)
		return mcp.NewError(req.ID, mcp.InternalError, "Internal error", err.Error())
	}

	resp, err = mcp.NewResult(req.ID, result)
	if err != nil {
		return mcp.NewError(req.ID, mcp.InternalError, "Internal error", err.Error())
	}
	return resp
}

func (r *Router) handleNotification(n *mcp.Request) {
	switch n.Method {
	case mcp.MethodNotificationInitialized:
		r.logger.Info("forwarding initialized notification to backends")
		note, _ := mcp.NewRequest(nil, mcp.MethodNotificationInitialized, map[string]any{})
		for _, name := range r.backends.Names() {
			r.backends.ForwardNotification(name, note)
		}
	case mcp.MethodNotificationCancelled:
		r.logger.Info("client cancelled a request", "params", string(n.Params))
	default:
		r.logger.Debug("ignoring notification", "method", n.Method)
	}
}

// decodeParams unmarshals params into v, treating absent params as empty.
func decodeParams(params json.RawMessage, v any) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return &mcp.Error{Code: mcp.InvalidParams, Message: "Invalid params", Data: err.Error()}
	}
	return nil
}

// forEachBackend runs fn for every live backend concurrently and returns
// the results in backend order.
func forEachBackend[T any](names []string, fn func(name string) T) []T {
	results := make([]T, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			results[i] = fn(name)
		}(i, name)
	}
	wg.Wait()
	return results
}

func (r *Router) handleInitialize(ctx context.Context, params json.RawMessage) (any, error) {
	names := r.backends.Names()
	forEachBackend(names, func(name string) struct{} {
		req := &mcp.Request{JSONRPC: mcp.Version, Method: mcp.MethodInitialize, Params: params}
		resp, err := r.backends.ForwardRequest(ctx, name, req)
		if err != nil {
			r.logger.Error("failed to initialize backend", "backend", name, "error", err)
			return struct{}{}
		}
		if resp.Error != nil {
			r.logger.Error("backend rejected initialize", "backend", name, "error", resp.Error.Message)
			return struct{}{}
		}

		var result struct {
			Capabilities map[string]json.RawMessage `json:"capabilities"`
		}
		if err := json.Unmarshal(resp.Result, &result); err != nil {
			r.logger.Error("invalid initialize result", "backend", name, "error", err)
			return struct{}{}
		}
		if result.Capabilities == nil {
			result.Capabilities = map[string]json.RawMessage{}
		}
		r.capsMu.Lock()
		r.capabilities[name] = result.Capabilities
		r.capsMu.Unlock()
		r.logger.Debug("backend initialized", "backend", name)
		return struct{}{}
	})

	return mcp.InitializeResult{
		ProtocolVersion: mcp.ProtocolVersion,
		Capabilities:    map[string]json.RawMessage{"tools": json.RawMessage(`{}`)},
		ServerInfo:      mcp.ServerInfo{Name: ServerName, Version: ServerVersion, Vendor: ServerVendor},
	}, nil
}

// hasCapability reports whether a backend advertised the capability during initialize.
func (r *Router) hasCapability(backend, capability string) bool {
	r.capsMu.RLock()
	defer r.capsMu.RUnlock()
	caps, ok := r.capabilities[backend]
	if !ok {
		return false
	}
	_, ok = caps[capability]
	return ok
}

// isKnown reports whether name is a live backend.
// isKnown reports whether name is a configured backend.
func (r *Router) isKnown(name string) bool {
	for _, n := range r.backends.Configured() {
		if n == name {
			return true
		}
	}
	return false
}
