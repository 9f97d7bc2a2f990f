// ABOUTME: Demo MCP backend used in example configs and manual gateway runs
// ABOUTME: Serves an echo tool, a run_query tool, a memo resource and a greet prompt over stdio

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

// EchoInput is the argument object of the echo tool.
type EchoInput struct {
	Text string `json:"text" jsonschema:"text to send back"`
}

// QueryInput is the argument object of the run_query tool.
type QueryInput struct {
	Query string `json:"query" jsonschema:"SQL statement to pretend to run"`
}

// rows are returned by every query. They contain an email address and a
// phone number so the gateway's response checks have something to find.
var rows = []map[string]string{
	{"id": "1", "name": "Ada", "email": "ada@example.com", "phone": "+1 650-253-0000"},
	{"id": "2", "name": "Grace", "email": "grace@example.com", "phone": "+44 20 7031 3000"},
}

func newServer(name, memo string) *mcpsdk.Server {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: name, Version: "1.0.0"}, nil)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "echo",
		Description: "Return the given text unchanged",
	}, handleEcho)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "run_query",
		Description: "Run a read-only SQL query against the demo customer table",
	}, handleQuery)

	server.AddResource(&mcpsdk.Resource{
		URI:         "memo://today",
		Name:        "today",
		Description: "Today's memo",
		MIMEType:    "text/plain",
	}, func(_ context.Context, req *mcpsdk.ReadResourceRequest) (*mcpsdk.ReadResourceResult, error) {
		return &mcpsdk.ReadResourceResult{
			Contents: []*mcpsdk.ResourceContents{{URI: req.Params.URI, MIMEType: "text/plain", Text: memo}},
		}, nil
	})

	server.AddPrompt(&mcpsdk.Prompt{
		Name:        "greet",
		Description: "Greet someone by name",
		Arguments:   []*mcpsdk.PromptArgument{{Name: "name", Description: "who to greet", Required: true}},
	}, handleGreet)

	return server
}

func handleEcho(_ context.Context, _ *mcpsdk.CallToolRequest, in EchoInput) (*mcpsdk.CallToolResult, any, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: in.Text}},
	}, nil, nil
}

func handleQuery(_ context.Context, _ *mcpsdk.CallToolRequest, in QueryInput) (*mcpsdk.CallToolResult, any, error) {
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(in.Query)), "SELECT") {
		return &mcpsdk.CallToolResult{
			IsError: true,
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "only SELECT statements are supported"}},
		}, nil, nil
	}

	var b strings.Builder
	for _, row := range rows {
		fmt.Fprintf(&b, "%s\t%s\t%s\t%s\n", row["id"], row["name"], row["email"], row["phone"])
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: b.String()}},
	}, nil, nil
}

func handleGreet(_ context.Context, req *mcpsdk.GetPromptRequest) (*mcpsdk.GetPromptResult, error) {
	name := req.Params.Arguments["name"]
	if name == "" {
		name = "there"
	}
	return &mcpsdk.GetPromptResult{
		Description: "A friendly greeting",
		Messages: []*mcpsdk.PromptMessage{{
			Role:    "user",
			Content: &mcpsdk.TextContent{Text: "Say hello to " + name + "."},
		}},
	}, nil
}

func newRootCmd() *cobra.Command {
	var name, memo string
	cmd := &cobra.Command{
		Use:           "mcpware-echo",
		Short:         "Demo MCP server on stdio",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := slog.New(slog.NewJSONHandler(os.Stderr, nil)).With("component", "mcpware-echo")
			logger.Info("serving on stdio", "name", name)

			ctx := cmd.Context()
			if err := newServer(name, memo).Run(ctx, &mcpsdk.StdioTransport{}); err != nil && ctx.Err() == nil {
				return fmt.Errorf("serving: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "mcpware-echo", "server name reported in initialize")
	cmd.Flags().StringVar(&memo, "memo", "Nothing scheduled.", "text served by memo://today")
	return cmd
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
