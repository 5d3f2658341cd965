package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/nugget/mcpsdk"
)

// StdioConfig configures a stdio transport that communicates with a
// subprocess over stdin/stdout using newline-delimited JSON-RPC
// (spec.md §4.1, §6).
type StdioConfig struct {
	// Command is the executable to run.
	Command string

	// Args are command-line arguments passed to the executable.
	Args []string

	// Env are additional environment variables for the subprocess
	// (format: "KEY=VALUE"), appended to the current process environment.
	Env []string

	// Logger is the structured logger for transport diagnostics.
	Logger *slog.Logger
}

// StdioTransport communicates with an MCP server running as a
// subprocess. JSON-RPC envelopes are newline-delimited on stdin/stdout.
// Grounded on internal/mcp/stdio.go, generalized so Send only writes and
// a background goroutine pushes every inbound line onto a channel for
// Receive to drain, rather than Send itself waiting for a matching id.
type StdioTransport struct {
	config StdioConfig
	logger *slog.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	reader *bufio.Reader

	inbox  chan *mcp.Envelope
	readerErr chan error
	started   bool
}

// NewStdioTransport creates a stdio transport for the given config. The
// subprocess is not started until Connect.
func NewStdioTransport(cfg StdioConfig) *StdioTransport {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &StdioTransport{
		config:    cfg,
		logger:    logger,
		inbox:     make(chan *mcp.Envelope, 64),
		readerErr: make(chan error, 1),
	}
}

// Connect launches the subprocess and starts the background line reader.
func (t *StdioTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return nil
	}

	t.logger.Info("starting MCP subprocess",
		"command", t.config.Command,
		"args", t.config.Args,
	)

	cmd := exec.Command(t.config.Command, t.config.Args...)
	cmd.Env = append(os.Environ(), t.config.Env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stderrPipe.Close()
		stdout.Close()
		stdin.Close()
		return fmt.Errorf("start subprocess %s: %w", t.config.Command, err)
	}

	t.cmd = cmd
	t.stdin = stdin
	t.reader = bufio.NewReaderSize(stdout, 1<<20) // 1 MiB buffer for large responses
	t.started = true

	go t.drainStderr(stderrPipe)
	go t.readLoop()

	t.logger.Info("MCP subprocess started", "pid", cmd.Process.Pid)
	return nil
}

// drainStderr reads stderr lines and logs them at debug level. Stderr is
// not part of the protocol.
func (t *StdioTransport) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for scanner.Scan() {
		t.logger.Debug("MCP subprocess stderr", "line", scanner.Text())
	}
}

// readLoop reads newline-delimited envelopes from stdout and pushes them
// onto inbox until EOF or a read error, which it reports on readerErr.
func (t *StdioTransport) readLoop() {
	for {
		line, err := t.reader.ReadBytes('\n')
		if len(line) > 0 {
			env, decodeErr := mcp.DecodeEnvelope(line)
			if decodeErr != nil {
				t.logger.Debug("skipping non-JSON-RPC line from MCP subprocess",
					"line", string(line), "error", decodeErr,
				)
			} else {
				select {
				case t.inbox <- env:
				default:
					t.logger.Warn("inbox full, dropping inbound MCP message")
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				t.readerErr <- io.EOF
			} else {
				t.readerErr <- fmt.Errorf("read from subprocess stdout: %w", err)
			}
			return
		}
	}
}

// Send writes one envelope to the subprocess's stdin followed by a
// newline. The mutex only guards reading the stdin handle; each envelope
// and its newline go out in a single Write call.
func (t *StdioTransport) Send(ctx context.Context, env *mcp.Envelope) error {
	data, err := marshalEnvelope(env)
	if err != nil {
		return err
	}

	t.mu.Lock()
	stdin := t.stdin
	t.mu.Unlock()

	if stdin == nil {
		return fmt.Errorf("stdio transport: not connected")
	}

	done := make(chan error, 1)
	go func() { _, err := stdin.Write(append(data, '\n')); done <- err }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("write to subprocess stdin: %w", err)
		}
		return nil
	}
}

// Receive yields the next inbound envelope, blocking until one arrives,
// ctx is canceled, or the subprocess stream ends.
func (t *StdioTransport) Receive(ctx context.Context) (*mcp.Envelope, error) {
	select {
	case env := <-t.inbox:
		return env, nil
	case err := <-t.readerErr:
		// Drain any envelopes that raced the EOF/error.
		select {
		case env := <-t.inbox:
			t.readerErr <- err
			return env, nil
		default:
		}
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Disconnect terminates the subprocess and releases resources. Idempotent.
func (t *StdioTransport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop()
}

// stop terminates the subprocess. Caller must hold t.mu.
func (t *StdioTransport) stop() error {
	if t.cmd == nil || t.cmd.Process == nil {
		return nil
	}

	t.logger.Info("stopping MCP subprocess", "pid", t.cmd.Process.Pid)

	if t.stdin != nil {
		t.stdin.Close()
	}

	done := make(chan error, 1)
	go func() { done <- t.cmd.Wait() }()

	select {
	case err := <-done:
		t.cmd = nil
		return err
	case <-time.After(5 * time.Second):
		t.logger.Warn("MCP subprocess did not exit gracefully, killing",
			"pid", t.cmd.Process.Pid,
		)
		_ = t.cmd.Process.Kill()
		<-done
		t.cmd = nil
		return nil
	}
}

// IsConnected reports whether the subprocess appears to still be running.
func (t *StdioTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cmd != nil && t.cmd.ProcessState == nil
}
