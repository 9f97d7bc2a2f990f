// ABOUTME: Newline-delimited JSON-RPC loop between one MCP client and the router.
// ABOUTME: Requests run concurrently; replies are written whole, one per line, under a lock.

package frontend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/mcpware/internal/mcp"
	"github.com/2389/mcpware/internal/router"
)

// Handler answers one JSON-RPC message. A nil response means nothing is sent.
type Handler interface {
	Handle(ctx context.Context, req *mcp.Request) *mcp.Response
}

// Server reads client messages from a stream and writes replies to another.
type Server struct {
	handler Handler
	logger  *slog.Logger

	writeMu sync.Mutex
	out     io.Writer
}

// New creates a frontend that dispatches to handler.
func New(handler Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		handler: handler,
		logger:  logger.With("component", "frontend"),
	}
}

type readResult struct {
	line []byte
	err  error
}

// Serve runs until in reaches EOF or ctx is cancelled. All messages on one
// stream share a security session. On EOF it waits for in-flight requests
// so their replies are still written; on cancellation those requests see a
// cancelled context. Serve returns nil on EOF and ctx.Err() on cancellation.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.out = out
	sessionID := uuid.NewString()
	ctx = router.WithSession(ctx, sessionID)
	s.logger.Info("client connected", "session", sessionID)

	lines := make(chan readResult)
	go readLines(ctx, in, lines)

	var inflight sync.WaitGroup
	defer inflight.Wait()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("frontend stopping", "reason", ctx.Err())
			return ctx.Err()
		case r := <-lines:
			if r.line != nil {
				s.dispatch(ctx, r.line, &inflight)
			}
			if r.err == nil {
				continue
			}
			if errors.Is(r.err, io.EOF) {
				s.logger.Info("client closed input", "session", sessionID)
				return nil
			}
			return fmt.Errorf("reading client input: %w", r.err)
		}
	}
}

// readLines sends each line of in to lines. The final send carries the
// read error, which is io.EOF at the end of the stream.
func readLines(ctx context.Context, in io.Reader, lines chan<- readResult) {
	reader := bufio.NewReader(in)
	for {
		line, err := reader.ReadBytes('\n')
		var r readResult
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			r.line = trimmed
		}
		r.err = err
		if r.line != nil || r.err != nil {
			select {
			case lines <- r:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// dispatch decodes one line and handles it. initialize and notifications
// run inline so backends see them in client order; everything else runs
// in its own goroutine.
func (s *Server) dispatch(ctx context.Context, line []byte, inflight *sync.WaitGroup) {
	req, err := mcp.DecodeRequest(line)
	var invalid *mcp.InvalidRequestError
	if errors.As(err, &invalid) {
		s.logger.Warn("invalid JSON-RPC request", "error", err)
		s.write(mcp.NewError(invalid.ID, mcp.InvalidRequest, "Invalid Request", invalid.Err.Error()))
		return
	}
	if err != nil {
		if bytes.Contains(line, []byte("jsonrpc")) || bytes.Contains(line, []byte("method")) {
			s.logger.Warn("malformed JSON-RPC message", "error", err)
			s.write(mcp.NewError(nil, mcp.ParseError, "Parse error", err.Error()))
			return
		}
		s.logger.Warn("ignoring non-JSON-RPC input", "error", err, "bytes", len(line))
		return
	}

	if req.Method == "" {
		if req.IsNotification() {
			s.logger.Debug("ignoring message without method or id")
			return
		}
		s.write(mcp.NewError(req.ID, mcp.InvalidRequest, "Invalid Request", "missing method"))
		return
	}

	s.logger.Debug("received message", "method", req.Method, "id", string(req.ID))

	if req.IsNotification() || req.Method == mcp.MethodInitialize {
		s.handle(ctx, req)
		return
	}

	inflight.Add(1)
	go func() {
		defer inflight.Done()
		s.handle(ctx, req)
	}()
}

func (s *Server) handle(ctx context.Context, req *mcp.Request) {
	resp := s.handler.Handle(ctx, req)
	if resp == nil {
		return
	}
	s.write(resp)
}

// write sends one reply as a single line.
func (s *Server) write(resp *mcp.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("failed to encode response", "id", string(resp.ID), "error", err)
		data, _ = json.Marshal(mcp.NewError(resp.ID, mcp.InternalError, "Internal error", err.Error()))
	}
	data = append(data, '\n')

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.out.Write(data); err != nil {
		s.logger.Error("failed to write response", "id", string(resp.ID), "error", err)
	}
}
