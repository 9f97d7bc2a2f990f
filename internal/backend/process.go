// ABOUTME: Process owns one backend MCP server child and its newline-delimited JSON-RPC pipes.
// ABOUTME: Correlates concurrent requests to responses by id through a pending map.

package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/2389/mcpware/internal/config"
	"github.com/2389/mcpware/internal/mcp"
)

// State is the lifecycle state of a backend process.
type State int32

const (
	StateNotStarted State = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not started"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Options tunes process startup and shutdown. Zero values take the defaults.
type Options struct {
	// StartupGrace is how long a new process must stay alive to count as started.
	StartupGrace time.Duration
	// CloseWait is how long to wait for exit after closing stdin.
	CloseWait time.Duration
	// TermWait is how long to wait for exit after SIGTERM.
	TermWait time.Duration
	// KillWait is how long to wait for exit after SIGKILL.
	KillWait time.Duration
	// StopTimeout bounds a single backend's shutdown inside Pool.CloseAll.
	StopTimeout time.Duration
}

const (
	defaultStartupGrace = 500 * time.Millisecond
	defaultCloseWait    = 2 * time.Second
	defaultTermWait     = 3 * time.Second
	defaultKillWait     = 2 * time.Second
	defaultStopTimeout  = 15 * time.Second

	stderrTailLines = 20
	maxLineSize     = 16 * 1024 * 1024
)

func (o Options) withDefaults() Options {
	if o.StartupGrace <= 0 {
		o.StartupGrace = defaultStartupGrace
	}
	if o.CloseWait <= 0 {
		o.CloseWait = defaultCloseWait
	}
	if o.TermWait <= 0 {
		o.TermWait = defaultTermWait
	}
	if o.KillWait <= 0 {
		o.KillWait = defaultKillWait
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = defaultStopTimeout
	}
	return o
}

// Process is a single backend MCP server running as a child process.
// SendRequest is safe for concurrent use; responses may arrive in any order.
type Process struct {
	cfg     config.BackendConfig
	opts    Options
	timeout time.Duration
	logger  *slog.Logger

	// lifecycle serializes Start and Stop.
	lifecycle sync.Mutex
	state     atomic.Int32
	cmd       *exec.Cmd
	stdin     *os.File
	stdout    *os.File
	stderr    *os.File

	writeMu sync.Mutex

	pendingMu     sync.Mutex
	pending       map[string]chan *mcp.Response
	pendingClosed bool
	nextID        atomic.Int64

	exited     chan struct{}
	exitErr    error
	readerDone chan struct{}
	stderrDone chan struct{}
	stderrTail *tailBuffer
}

// NewProcess creates a backend process in the NotStarted state.
func NewProcess(cfg config.BackendConfig, logger *slog.Logger, opts Options) *Process {
	if logger == nil {
		logger = slog.Default()
	}
	return &Process{
		cfg:        cfg,
		opts:       opts.withDefaults(),
		timeout:    cfg.Timeout(),
		logger:     logger.With("component", "backend", "backend", cfg.Name),
		pending:    make(map[string]chan *mcp.Response),
		exited:     make(chan struct{}),
		readerDone: make(chan struct{}),
		stderrDone: make(chan struct{}),
		stderrTail: newTailBuffer(stderrTailLines),
	}
}

// Name returns the backend name.
func (p *Process) Name() string {
	return p.cfg.Name
}

// Config returns the backend's configuration.
func (p *Process) Config() config.BackendConfig {
	return p.cfg
}

// State returns the current lifecycle state.
func (p *Process) State() State {
	return State(p.state.Load())
}

// Exited reports whether the OS process has terminated.
func (p *Process) Exited() bool {
	select {
	case <-p.exited:
		return true
	default:
		return false
	}
}

// PendingCount returns the number of requests awaiting a response.
func (p *Process) PendingCount() int {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	return len(p.pending)
}

// Start spawns the child and waits out the startup grace period. A child that
// exits during the grace period yields a *StartupError carrying its stderr.
func (p *Process) Start(ctx context.Context) error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	if p.State() != StateNotStarted {
		return fmt.Errorf("%w: %s", ErrAlreadyStarted, p.cfg.Name)
	}
	p.state.Store(int32(StateStarting))

	if err := p.spawn(); err != nil {
		p.state.Store(int32(StateStopped))
		return &StartupError{Backend: p.cfg.Name, Err: err}
	}
	p.logger.Info("backend process started", "pid", p.cmd.Process.Pid, "command", p.cmd.Path)

	grace := time.NewTimer(p.opts.StartupGrace)
	defer grace.Stop()

	select {
	case <-p.exited:
		select {
		case <-p.stderrDone:
		case <-time.After(200 * time.Millisecond):
		}
		closeFiles(p.stdin)
		p.closeReaders()
		p.failPending()
		p.state.Store(int32(StateStopped))
		cause := errors.New("process exited during startup")
		if p.exitErr != nil {
			cause = fmt.Errorf("process exited during startup: %w", p.exitErr)
		}
		return &StartupError{Backend: p.cfg.Name, Stderr: p.stderrTail.String(), Err: cause}
	case <-ctx.Done():
		_ = p.shutdown(context.Background())
		return ctx.Err()
	case <-grace.C:
	}

	p.state.Store(int32(StateRunning))
	return nil
}

func (p *Process) spawn() error {
	exe, args := p.cfg.ResolveCommand()
	if exe == "" {
		return errors.New("no command configured")
	}
	env, err := p.cfg.ResolveEnv(os.Environ())
	if err != nil {
		return err
	}

	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("creating stdin pipe: %w", err)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		closeFiles(stdinR, stdinW)
		return fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeFiles(stdinR, stdinW, stdoutR, stdoutW)
		return fmt.Errorf("creating stderr pipe: %w", err)
	}

	cmd := exec.Command(exe, args...)
	cmd.Env = env
	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		closeFiles(stdinR, stdinW, stdoutR, stdoutW, stderrR, stderrW)
		return fmt.Errorf("starting %s: %w", exe, err)
	}
	// The child holds its own copies; dropping ours lets EOF propagate.
	closeFiles(stdinR, stdoutW, stderrW)

	p.cmd = cmd
	p.stdin = stdinW
	p.stdout = stdoutR
	p.stderr = stderrR

	go p.wait(cmd)
	go p.readStdout(stdoutR)
	go p.readStderr(stderrR)
	return nil
}

func (p *Process) wait(cmd *exec.Cmd) {
	err := cmd.Wait()
	p.exitErr = err
	close(p.exited)

	if p.State() == StateRunning {
		p.logger.Warn("backend process exited unexpectedly", "error", err)
	} else {
		p.logger.Debug("backend process exited", "error", err)
	}
}

func (p *Process) readStdout(r io.Reader) {
	defer close(p.readerDone)
	defer p.failPending()

	reader := bufio.NewReaderSize(r, 64*1024)
	for {
		line, err := reader.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			p.dispatch(line)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				p.logger.Warn("reading backend stdout", "error", err)
			}
			return
		}
	}
}

func (p *Process) readStderr(r io.Reader) {
	defer close(p.stderrDone)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		p.stderrTail.Add(line)
		p.logger.Debug("backend stderr", "line", line)
	}
}

// dispatch routes one stdout line to the request waiting on its id.
func (p *Process) dispatch(line []byte) {
	var envelope struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
	}
	if err := json.Unmarshal(line, &envelope); err != nil {
		p.logger.Warn("invalid JSON from backend", "error", err, "line", truncate(string(line), 200))
		return
	}
	if envelope.Method != "" {
		p.logger.Debug("ignoring backend-initiated message", "method", envelope.Method)
		return
	}
	if len(envelope.ID) == 0 || string(envelope.ID) == "null" {
		p.logger.Warn("backend response without id", "line", truncate(string(line), 200))
		return
	}

	var resp mcp.Response
	if err := json.Unmarshal(line, &resp); err != nil {
		p.logger.Warn("malformed backend response", "error", err)
		return
	}

	key := mcp.IDKey(resp.ID)
	p.pendingMu.Lock()
	ch, ok := p.pending[key]
	if ok {
		delete(p.pending, key)
		// Buffered with capacity 1 and sent to exactly once, so this never blocks.
		ch <- &resp
	}
	p.pendingMu.Unlock()

	if !ok {
		p.logger.Warn("received response for unknown request", "id", key)
	}
}

func (p *Process) createPending(key string) (chan *mcp.Response, error) {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()

	if p.pendingClosed {
		return nil, fmt.Errorf("%w: backend %s has exited", ErrUnavailable, p.cfg.Name)
	}
	if _, exists := p.pending[key]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateRequestID, key)
	}
	ch := make(chan *mcp.Response, 1)
	p.pending[key] = ch
	return ch, nil
}

func (p *Process) removePending(key string) {
	p.pendingMu.Lock()
	delete(p.pending, key)
	p.pendingMu.Unlock()
}

// failPending wakes every waiter with a closed channel and refuses new ones.
func (p *Process) failPending() {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()

	if p.pendingClosed {
		return
	}
	p.pendingClosed = true
	for key, ch := range p.pending {
		close(ch)
		delete(p.pending, key)
	}
}

func (p *Process) checkRunning() error {
	switch state := p.State(); state {
	case StateRunning:
		return nil
	case StateNotStarted, StateStarting:
		return fmt.Errorf("%w: backend %s is %s", ErrNotRunning, p.cfg.Name, state)
	default:
		return fmt.Errorf("%w: backend %s is %s", ErrUnavailable, p.cfg.Name, state)
	}
}

// SendRequest writes req and blocks until its response arrives, the backend
// timeout elapses, the process dies, or ctx is cancelled. A request without an
// id is assigned the next sequence number.
func (p *Process) SendRequest(ctx context.Context, req *mcp.Request) (*mcp.Response, error) {
	if err := p.checkRunning(); err != nil {
		return nil, err
	}

	out := *req
	out.JSONRPC = mcp.Version
	if len(out.ID) == 0 {
		out.ID = json.RawMessage(strconv.FormatInt(p.nextID.Add(1), 10))
	}
	key := mcp.IDKey(out.ID)

	ch, err := p.createPending(key)
	if err != nil {
		return nil, err
	}

	// The write runs under the same deadline as the reply: a child that
	// stops reading stdin fills the pipe and would block Write indefinitely.
	written := p.writeAsync(&out)

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	for {
		select {
		case err := <-written:
			if err != nil {
				p.removePending(key)
				return nil, fmt.Errorf("%w: backend %s: %v", ErrUnavailable, p.cfg.Name, err)
			}
			written = nil
		case resp, ok := <-ch:
			if !ok {
				return nil, fmt.Errorf("%w: backend %s exited before responding to %s", ErrUnavailable, p.cfg.Name, out.Method)
			}
			return resp, nil
		case <-timer.C:
			p.removePending(key)
			p.logger.Warn("backend request timed out", "method", out.Method, "id", key, "timeout", p.timeout, "written", written == nil)
			return nil, fmt.Errorf("%w: backend %s did not respond to %s within %s", ErrTimeout, p.cfg.Name, out.Method, p.timeout)
		case <-ctx.Done():
			p.removePending(key)
			return nil, ctx.Err()
		}
	}
}

// SendNotification writes a message without an id. Write failures after the
// process has gone away are logged and swallowed.
func (p *Process) SendNotification(n *mcp.Request) error {
	if err := p.checkRunning(); err != nil {
		return err
	}

	out := *n
	out.JSONRPC = mcp.Version
	out.ID = nil
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case err := <-p.writeAsync(&out):
		if err != nil {
			p.logger.Warn("failed to send notification", "method", out.Method, "error", err)
		}
	case <-timer.C:
		p.logger.Warn("notification write timed out; backend is not reading stdin", "method", out.Method, "timeout", p.timeout)
	}
	return nil
}

// writeAsync writes msg on its own goroutine and reports the result on the
// returned channel. An abandoned write finishes or fails once the child reads
// again or stdin is closed, so framing is never cut mid-line.
func (p *Process) writeAsync(msg *mcp.Request) <-chan error {
	done := make(chan error, 1)
	go func() { done <- p.write(msg) }()
	return done
}

func (p *Process) write(msg *mcp.Request) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", msg.Method, err)
	}
	data = append(data, '\n')

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if _, err := p.stdin.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", msg.Method, err)
	}
	return nil
}

// Stop shuts the child down: close stdin, then SIGTERM, then SIGKILL, each
// stage bounded. Stop is idempotent and safe from any state.
func (p *Process) Stop(ctx context.Context) error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	return p.shutdown(ctx)
}

// shutdown requires the lifecycle lock.
func (p *Process) shutdown(ctx context.Context) error {
	switch p.State() {
	case StateNotStarted, StateStopped:
		p.state.Store(int32(StateStopped))
		return nil
	}
	p.state.Store(int32(StateStopping))
	defer p.state.Store(int32(StateStopped))

	if p.cmd == nil {
		return nil
	}

	// Close without writeMu: a write blocked on a full pipe holds it, and
	// closing the file is what unblocks that write.
	_ = p.stdin.Close()

	stopErr := p.escalate(ctx)
	p.closeReaders()
	select {
	case <-p.readerDone:
	case <-time.After(time.Second):
		p.logger.Warn("stdout reader did not finish")
	}
	p.failPending()
	return stopErr
}

func (p *Process) escalate(ctx context.Context) error {
	if p.waitExit(ctx, p.opts.CloseWait) {
		p.logger.Debug("backend exited after stdin close")
		return nil
	}

	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Warn("failed to signal backend", "error", err)
	}
	if p.waitExit(ctx, p.opts.TermWait) {
		p.logger.Info("backend terminated")
		return nil
	}

	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Warn("failed to kill backend", "error", err)
	}
	if p.waitExit(context.Background(), p.opts.KillWait) {
		p.logger.Warn("backend killed")
		return nil
	}
	p.logger.Error("backend did not exit after kill")
	return fmt.Errorf("backend %s did not exit after kill", p.cfg.Name)
}

func (p *Process) waitExit(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-p.exited:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func (p *Process) closeReaders() {
	closeFiles(p.stdout, p.stderr)
}

func closeFiles(files ...*os.File) {
	for _, f := range files {
		if f != nil {
			_ = f.Close()
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// tailBuffer keeps the last few lines written to it.
type tailBuffer struct {
	mu    sync.Mutex
	max   int
	lines []string
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Add(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
	if len(b.lines) > b.max {
		b.lines = b.lines[len(b.lines)-b.max:]
	}
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.lines, "\n")
}
