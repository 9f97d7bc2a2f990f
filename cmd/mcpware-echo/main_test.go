// ABOUTME: Tests for the demo backend using the SDK's in-memory transports
// ABOUTME: Exercises every tool, the memo resource and the greet prompt through a real client

package main

import (
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connect(t *testing.T) *mcpsdk.ClientSession {
	t.Helper()
	ctx := t.Context()

	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()
	serverSession, err := newServer("demo", "standup at 10").Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { serverSession.Close() })

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session
}

func firstText(t *testing.T, content []mcpsdk.Content) string {
	t.Helper()
	require.NotEmpty(t, content)
	text, ok := content[0].(*mcpsdk.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestDemoServer(t *testing.T) {
	session := connect(t)
	ctx := t.Context()

	t.Run("tools", func(t *testing.T) {
		res, err := session.ListTools(ctx, nil)
		require.NoError(t, err)
		var names []string
		for _, tool := range res.Tools {
			names = append(names, tool.Name)
		}
		assert.ElementsMatch(t, []string{"echo", "run_query"}, names)
	})

	t.Run("echo", func(t *testing.T) {
		res, err := session.CallTool(ctx, &mcpsdk.CallToolParams{Name: "echo", Arguments: map[string]any{"text": "hi"}})
		require.NoError(t, err)
		assert.False(t, res.IsError)
		assert.Equal(t, "hi", firstText(t, res.Content))
	})

	t.Run("run_query select", func(t *testing.T) {
		res, err := session.CallTool(ctx, &mcpsdk.CallToolParams{Name: "run_query", Arguments: map[string]any{"query": "select * from customers"}})
		require.NoError(t, err)
		assert.False(t, res.IsError)
		assert.Contains(t, firstText(t, res.Content), "ada@example.com")
	})

	t.Run("run_query rejects writes", func(t *testing.T) {
		res, err := session.CallTool(ctx, &mcpsdk.CallToolParams{Name: "run_query", Arguments: map[string]any{"query": "DELETE FROM customers"}})
		require.NoError(t, err)
		assert.True(t, res.IsError)
	})

	t.Run("memo resource", func(t *testing.T) {
		res, err := session.ReadResource(ctx, &mcpsdk.ReadResourceParams{URI: "memo://today"})
		require.NoError(t, err)
		require.Len(t, res.Contents, 1)
		assert.Equal(t, "standup at 10", res.Contents[0].Text)
	})

	t.Run("greet prompt", func(t *testing.T) {
		res, err := session.GetPrompt(ctx, &mcpsdk.GetPromptParams{Name: "greet", Arguments: map[string]string{"name": "Ada"}})
		require.NoError(t, err)
		require.Len(t, res.Messages, 1)
		text, ok := res.Messages[0].Content.(*mcpsdk.TextContent)
		require.True(t, ok)
		assert.Equal(t, "Say hello to Ada.", text.Text)
	})
}
