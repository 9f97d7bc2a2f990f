// ABOUTME: Fake backend servers run by re-executing the test binary in a helper mode.
// ABOUTME: Modes cover echoing, slow and missing replies, early exit, a deaf child and ignoring shutdown.

package backend

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/2389/mcpware/internal/config"
)

const helperModeEnv = "MCPWARE_BACKEND_HELPER"

func TestMain(m *testing.M) {
	if mode := os.Getenv(helperModeEnv); mode != "" {
		runHelper(mode)
		os.Exit(0)
	}
	os.Exit(m.Run())
}

// helperConfig returns a backend config that runs this test binary as a fake server.
func helperConfig(t *testing.T, name, mode string) config.BackendConfig {
	t.Helper()
	return config.BackendConfig{
		Name:        name,
		Command:     config.CommandLine{os.Args[0]},
		Description: "helper " + mode,
		Env:         map[string]string{helperModeEnv: mode},
	}
}

// fastOptions keeps lifecycle waits short so tests finish quickly.
func fastOptions() Options {
	return Options{
		StartupGrace: 400 * time.Millisecond,
		CloseWait:    500 * time.Millisecond,
		TermWait:     300 * time.Millisecond,
		KillWait:     time.Second,
		StopTimeout:  3 * time.Second,
	}
}

func runHelper(mode string) {
	switch mode {
	case "exit":
		fmt.Fprintln(os.Stderr, "fatal: bad config")
		os.Exit(3)
	case "deaf":
		// Never reads stdin, so the gateway's writes fill the pipe.
		time.Sleep(time.Hour)
	case "stubborn":
		signal.Ignore(syscall.SIGTERM)
		serveHelper()
		time.Sleep(time.Hour)
	default:
		serveHelper()
	}
}

// serveHelper answers requests until stdin closes. Each request is handled
// on its own goroutine so slow replies can overtake fast ones.
func serveHelper() {
	var writeMu sync.Mutex
	write := func(v any) {
		data, _ := json.Marshal(v)
		writeMu.Lock()
		defer writeMu.Unlock()
		os.Stdout.Write(append(data, '\n'))
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var wg sync.WaitGroup
	for scanner.Scan() {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			continue
		}
		if len(req.ID) == 0 {
			fmt.Fprintf(os.Stderr, "notification %s\n", req.Method)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			reply := map[string]any{"jsonrpc": "2.0", "id": req.ID}
			switch req.Method {
			case "initialize":
				reply["result"] = map[string]any{
					"protocolVersion": "2024-11-05",
					"capabilities":    map[string]any{"tools": map[string]any{}},
					"serverInfo":      map[string]any{"name": "helper", "version": "0.0.1"},
				}
			case "slow":
				time.Sleep(300 * time.Millisecond)
				reply["result"] = map[string]any{"method": req.Method, "params": req.Params}
			case "never":
				return
			case "die":
				os.Exit(1)
			case "fail":
				reply["error"] = map[string]any{"code": -32000, "message": "backend failure"}
			case "noise":
				write(map[string]any{"jsonrpc": "2.0", "id": "no-such-request", "result": map[string]any{}})
				writeMu.Lock()
				os.Stdout.Write([]byte("this is not json\n"))
				writeMu.Unlock()
				reply["result"] = map[string]any{"method": req.Method, "params": req.Params}
			default:
				reply["result"] = map[string]any{"method": req.Method, "params": req.Params}
			}
			write(reply)
		}()
	}
	wg.Wait()
}
