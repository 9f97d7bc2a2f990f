// ABOUTME: Tests for the stdio frontend loop using an in-memory stream and a fake handler.
// ABOUTME: Covers framing, parse errors, notifications, concurrency and shutdown.

package frontend

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/mcpware/internal/mcp"
	"github.com/2389/mcpware/internal/router"
)

type fakeHandler struct {
	mu       sync.Mutex
	seen     []string
	sessions map[string]bool
	release  chan struct{}
}

func (h *fakeHandler) Handle(ctx context.Context, req *mcp.Request) *mcp.Response {
	h.mu.Lock()
	h.seen = append(h.seen, req.Method)
	if h.sessions == nil {
		h.sessions = make(map[string]bool)
	}
	if id, ok := router.SessionFromContext(ctx); ok {
		h.sessions[id] = true
	}
	h.mu.Unlock()

	if req.IsNotification() {
		return nil
	}
	if req.Method == "block" {
		select {
		case <-h.release:
		case <-ctx.Done():
			return mcp.NewError(req.ID, mcp.InternalError, "cancelled", nil)
		}
	}
	resp, _ := mcp.NewResult(req.ID, map[string]string{"method": req.Method})
	return resp
}

func (h *fakeHandler) methods() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.seen...)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := strings.TrimRight(b.buf.String(), "\n")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

func decodeLine(t *testing.T, line string) *mcp.Response {
	t.Helper()
	var resp mcp.Response
	require.NoError(t, json.Unmarshal([]byte(line), &resp))
	return &resp
}

func serveString(t *testing.T, h Handler, input string) []string {
	t.Helper()
	out := &syncBuffer{}
	err := New(h, nil).Serve(context.Background(), strings.NewReader(input), out)
	require.NoError(t, err)
	return out.lines()
}

func TestServe_RequestsAndNotifications(t *testing.T) {
	h := &fakeHandler{}
	lines := serveString(t, h, strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`   `,
		`{"jsonrpc":"2.0","id":"abc","method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":null,"method":"tools/list"}`,
	}, "\n"))

	require.Len(t, lines, 3)
	ids := map[string]bool{}
	for _, line := range lines {
		ids[string(decodeLine(t, line).ID)] = true
	}
	assert.Equal(t, map[string]bool{`1`: true, `"abc"`: true, `null`: true}, ids)
	assert.Equal(t, []string{"initialize", "notifications/initialized"}, h.methods()[:2])
	assert.Len(t, h.sessions, 1, "one stream shares one session")
}

func TestServe_ParseErrors(t *testing.T) {
	h := &fakeHandler{}
	lines := serveString(t, h, strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":`,
		`not json at all`,
		`{"method": oops}`,
		`{"jsonrpc":"2.0","id":7}`,
	}, "\n")+"\n")

	require.Len(t, lines, 3)

	first := decodeLine(t, lines[0])
	assert.Equal(t, "null", string(first.ID))
	require.NotNil(t, first.Error)
	assert.Equal(t, mcp.ParseError, first.Error.Code)
	assert.Equal(t, "Parse error", first.Error.Message)

	assert.Equal(t, mcp.ParseError, decodeLine(t, lines[1]).Error.Code)

	invalid := decodeLine(t, lines[2])
	assert.Equal(t, "7", string(invalid.ID))
	assert.Equal(t, mcp.InvalidRequest, invalid.Error.Code)
	assert.Empty(t, h.methods())
}

func TestServe_WrongTypedMembersAreInvalidRequests(t *testing.T) {
	h := &fakeHandler{}
	lines := serveString(t, h, strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":5}`,
		`{"jsonrpc":2,"id":"x","method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":{"nested":true},"method":"tools/list"}`,
	}, "\n")+"\n")

	require.Len(t, lines, 3)
	byID := map[string]*mcp.Response{}
	for _, line := range lines {
		resp := decodeLine(t, line)
		byID[string(resp.ID)] = resp
	}
	for _, id := range []string{"1", `"x"`, "null"} {
		resp, ok := byID[id]
		require.True(t, ok, "missing reply for id %s", id)
		require.NotNil(t, resp.Error)
		assert.Equal(t, mcp.InvalidRequest, resp.Error.Code, id)
		assert.Equal(t, "Invalid Request", resp.Error.Message)
	}
	assert.Empty(t, h.methods())
}

func TestServe_FinalLineWithoutNewline(t *testing.T) {
	lines := serveString(t, &fakeHandler{}, `{"jsonrpc":"2.0","id":5,"method":"ping"}`)
	require.Len(t, lines, 1)
	assert.Equal(t, "5", string(decodeLine(t, lines[0]).ID))
}

func TestServe_ConcurrentRequests(t *testing.T) {
	h := &fakeHandler{release: make(chan struct{})}
	inR, inW := io.Pipe()
	out := &syncBuffer{}

	done := make(chan error, 1)
	go func() { done <- New(h, nil).Serve(context.Background(), inR, out) }()

	w := bufio.NewWriter(inW)
	_, _ = w.WriteString(`{"jsonrpc":"2.0","id":1,"method":"block"}` + "\n")
	_, _ = w.WriteString(`{"jsonrpc":"2.0","id":2,"method":"fast"}` + "\n")
	require.NoError(t, w.Flush())

	require.Eventually(t, func() bool { return len(out.lines()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "2", string(decodeLine(t, out.lines()[0]).ID), "a slow request does not hold up later ones")

	close(h.release)
	require.NoError(t, inW.Close())
	require.NoError(t, <-done)

	lines := out.lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "1", string(decodeLine(t, lines[1]).ID))
}

func TestServe_CancelStopsBlockedRequests(t *testing.T) {
	h := &fakeHandler{release: make(chan struct{})}
	inR, inW := io.Pipe()
	defer inW.Close()
	out := &syncBuffer{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(h, nil).Serve(ctx, inR, out) }()

	_, err := inW.Write([]byte(`{"jsonrpc":"2.0","id":1,"method":"block"}` + "\n"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(h.methods()) == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
