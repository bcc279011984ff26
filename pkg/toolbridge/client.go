// Package toolbridge drives a child process tool server that speaks
// line-delimited JSON-RPC over its standard streams.
//
// A Client owns the child for its whole lifetime: Start launches it, Call
// performs one request/response round trip, and Close always releases it.
// The child's stderr is drained in the background so it can never block on a
// full diagnostic pipe.
package toolbridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	loggerpkg "github.com/minhyannv/limerick-bot-go/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const (
	maxLineBytes       = 10 * 1024 * 1024
	defaultWaitTimeout = 5 * time.Second
	killGrace          = 2 * time.Second
	// stderrGrace bounds the drain once the child is reaped; a grandchild
	// may still hold the write end.
	stderrGrace = 250 * time.Millisecond
)

// Client is an owned tool server process. It is not safe for concurrent Calls;
// Call serializes them.
type Client struct {
	command string
	opts    options

	cmd        *exec.Cmd
	stdin      io.WriteCloser
	writer     *bufio.Writer
	lines      *bufio.Scanner
	stderrPipe *os.File
	stderr     *tailBuffer
	drain      errgroup.Group

	callMu sync.Mutex
	nextID int64
	broken error

	closeOnce sync.Once
	closeErr  error

	stateMu sync.Mutex
	closed  bool
	state   *os.ProcessState
}

type options struct {
	env         []string
	dir         string
	logger      loggerpkg.Logger
	verbose     bool
	waitTimeout time.Duration
	stderrLimit int
}

// Option configures Start.
type Option func(*options)

// WithEnv adds KEY=VALUE entries to the child's sanitized environment.
func WithEnv(kv ...string) Option {
	return func(o *options) {
		o.env = append(o.env, kv...)
	}
}

// WithDir sets the child's working directory.
func WithDir(dir string) Option {
	return func(o *options) {
		o.dir = dir
	}
}

// WithLogger injects a logger dependency.
func WithLogger(l loggerpkg.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithVerbose enables debug logging of the exchange.
func WithVerbose(v bool) Option {
	return func(o *options) {
		o.verbose = v
	}
}

// WithWaitTimeout bounds how long Close waits for the child to exit after
// asking it to terminate before killing it.
func WithWaitTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.waitTimeout = d
		}
	}
}

// WithStderrLimit sets how many trailing bytes of stderr are retained.
func WithStderrLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.stderrLimit = n
		}
	}
}

// Start launches command with args and three independent pipes. ctx bounds
// the child's lifetime: when it is done the child is asked to terminate.
func Start(ctx context.Context, command string, args []string, opts ...Option) (*Client, error) {
	o := options{
		logger:      loggerpkg.NopLogger{},
		waitTimeout: defaultWaitTimeout,
		stderrLimit: defaultStderrLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	command = strings.TrimSpace(command)
	if command == "" {
		return nil, &LaunchError{Args: args, Err: errors.New("command is empty")}
	}
	launchErr := func(err error) error {
		return &LaunchError{Command: command, Args: args, Err: err}
	}

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Env = defaultChildEnv(o.env)
	cmd.Dir = o.dir
	cmd.Cancel = func() error { return terminate(cmd.Process) }
	cmd.WaitDelay = o.waitTimeout

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, launchErr(fmt.Errorf("creating stdin pipe: %w", err))
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, launchErr(fmt.Errorf("creating stdout pipe: %w", err))
	}
	// stderr gets a plain pipe so Wait never blocks on a grandchild that
	// inherited it.
	stderrPipe, stderrWrite, err := os.Pipe()
	if err != nil {
		return nil, launchErr(fmt.Errorf("creating stderr pipe: %w", err))
	}
	cmd.Stderr = stderrWrite

	loggerpkg.Debug(o.verbose, o.logger, "starting tool server", map[string]any{
		"command": command,
		"args":    args,
		"dir":     o.dir,
	})
	err = cmd.Start()
	_ = stderrWrite.Close()
	if err != nil {
		_ = stderrPipe.Close()
		return nil, launchErr(err)
	}

	lines := bufio.NewScanner(stdout)
	lines.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	c := &Client{
		command:    command,
		opts:       o,
		cmd:        cmd,
		stdin:      stdin,
		writer:     bufio.NewWriter(stdin),
		lines:      lines,
		stderrPipe: stderrPipe,
		stderr:     newTailBuffer(o.stderrLimit),
	}
	c.drain.Go(c.drainStderr)
	return c, nil
}

func (c *Client) drainStderr() error {
	_, err := io.Copy(c.stderr, c.stderrPipe)
	if err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}

// Call sends one request built from method and params and returns the first
// non-blank line the child writes back, validated as JSON.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if strings.TrimSpace(method) == "" {
		return nil, errors.New("toolbridge: method is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	c.callMu.Lock()
	defer c.callMu.Unlock()

	if c.isClosed() {
		return nil, &TransportError{Op: "write request", Err: ErrClosed, ExitCode: c.ExitCode(), Stderr: c.Stderr()}
	}
	if c.broken != nil {
		return nil, &TransportError{Op: "write request", Err: c.broken, ExitCode: -1, Stderr: c.stderr.String()}
	}

	c.nextID++
	line, err := EncodeLine(Request{
		JSONRPC: JSONRPCVersion,
		Method:  method,
		Params:  params,
		ID:      c.nextID,
	})
	if err != nil {
		return nil, fmt.Errorf("toolbridge: encode request: %w", err)
	}

	loggerpkg.Debug(c.opts.verbose, c.opts.logger, "sending request", map[string]any{
		"method": method,
		"id":     c.nextID,
		"bytes":  len(line),
	})
	type result struct {
		line     []byte
		writeErr error
		readErr  error
	}
	done := make(chan result, 1)
	go func() {
		if err := c.writeLine(line); err != nil {
			done <- result{writeErr: err}
			return
		}
		line, err := c.readLine()
		done <- result{line: line, readErr: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		c.broken = ctx.Err()
		// Killing the child unblocks the pending write or read.
		_ = c.cmd.Process.Kill()
		return nil, &TransportError{Op: "await response", Err: ctx.Err(), ExitCode: -1, Stderr: c.stderr.String()}
	}

	if res.writeErr != nil {
		c.broken = res.writeErr
		// The child most likely exited; reap it so its status is reportable.
		_ = c.Close()
		return nil, &TransportError{Op: "write request", Err: res.writeErr, ExitCode: c.ExitCode(), Stderr: c.Stderr()}
	}
	if res.readErr != nil {
		c.broken = res.readErr
		var perr *ProtocolError
		if errors.As(res.readErr, &perr) {
			_ = c.Close()
			perr.ExitCode = c.ExitCode()
			perr.Stderr = c.Stderr()
			return nil, perr
		}
		return nil, &TransportError{Op: "read response", Err: res.readErr, ExitCode: -1, Stderr: c.stderr.String()}
	}

	if !json.Valid(res.line) {
		return nil, &ProtocolError{Kind: Malformed, Line: string(res.line), ExitCode: -1, Stderr: c.stderr.String()}
	}
	loggerpkg.Debug(c.opts.verbose, c.opts.logger, "received response", map[string]any{
		"bytes": len(res.line),
	})
	return json.RawMessage(res.line), nil
}

// CallTool invokes the named tool with arguments through tools/call.
func (c *Client) CallTool(ctx context.Context, name string, arguments any) (json.RawMessage, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("toolbridge: tool name is required")
	}
	return c.Call(ctx, MethodToolsCall, ToolCallParams{Name: name, Arguments: arguments})
}

func (c *Client) writeLine(line []byte) error {
	if _, err := c.writer.Write(line); err != nil {
		return err
	}
	return c.writer.Flush()
}

// readLine returns a copy of the next non-blank line. End of stream before
// such a line is a NoResponse ProtocolError.
func (c *Client) readLine() ([]byte, error) {
	for c.lines.Scan() {
		line := bytes.TrimSpace(c.lines.Bytes())
		if len(line) == 0 {
			continue
		}
		return append([]byte(nil), line...), nil
	}
	if err := c.lines.Err(); err != nil {
		return nil, err
	}
	return nil, &ProtocolError{Kind: NoResponse}
}

// Close closes the child's stdin, asks it to terminate and waits for it to
// exit, killing it if it outlives the wait timeout. It is safe to call more
// than once and always releases the process. Exit statuses caused by the
// termination request are not errors.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.shutdown()
	})
	return c.closeErr
}

func (c *Client) shutdown() error {
	_ = c.stdin.Close()
	if err := terminate(c.cmd.Process); err != nil {
		loggerpkg.Debug(c.opts.verbose, c.opts.logger, "terminate tool server", map[string]any{"error": err.Error()})
	}

	done := make(chan error, 1)
	go func() {
		done <- c.cmd.Wait()
	}()

	var err error
	reaped := true
	timer := time.NewTimer(c.opts.waitTimeout)
	defer timer.Stop()
	select {
	case err = <-done:
	case <-timer.C:
		loggerpkg.Warn(c.opts.logger, "tool server did not exit, killing it", map[string]any{
			"command": c.command,
			"pid":     c.cmd.Process.Pid,
		})
		_ = c.cmd.Process.Kill()
		select {
		case err = <-done:
		case <-time.After(killGrace):
			reaped = false
			err = errors.New("process did not exit after kill")
		}
	}
	if drainErr := c.waitDrain(); drainErr != nil && err == nil {
		err = drainErr
	}

	c.stateMu.Lock()
	c.closed = true
	if reaped {
		c.state = c.cmd.ProcessState
	}
	c.stateMu.Unlock()

	if s := strings.TrimSpace(c.stderr.String()); s != "" {
		loggerpkg.Debug(c.opts.verbose, c.opts.logger, "tool server stderr", map[string]any{
			"tail":    s,
			"dropped": c.stderr.Dropped(),
		})
	}

	var exitErr *exec.ExitError
	if err == nil || errors.As(err, &exitErr) {
		return nil
	}
	loggerpkg.Error(c.opts.logger, "tool server shutdown failed", map[string]any{
		"command": c.command,
		"error":   err.Error(),
	})
	return fmt.Errorf("toolbridge: wait for %s: %w", c.command, err)
}

// waitDrain gives the stderr reader a short grace to hit EOF, then closes the
// read end so it returns.
func (c *Client) waitDrain() error {
	drained := make(chan error, 1)
	go func() { drained <- c.drain.Wait() }()
	select {
	case err := <-drained:
		_ = c.stderrPipe.Close()
		return err
	case <-time.After(stderrGrace):
		_ = c.stderrPipe.Close()
		return <-drained
	}
}

func (c *Client) isClosed() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.closed
}

// ProcessState returns the child's final state, or nil before Close returns.
func (c *Client) ProcessState() *os.ProcessState {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

// ExitCode returns the child's exit code, or -1 if it has not been reaped or
// was killed by a signal.
func (c *Client) ExitCode() int {
	if st := c.ProcessState(); st != nil {
		return st.ExitCode()
	}
	return -1
}

// Stderr returns the retained tail of the child's diagnostic output.
func (c *Client) Stderr() string {
	return c.stderr.String()
}

// RunTool is Run for a single tools/call of name with arguments.
func RunTool(ctx context.Context, command string, args []string, name string, arguments any, opts ...Option) (reply json.RawMessage, err error) {
	c, err := Start(ctx, command, args, opts...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return c.CallTool(ctx, name, arguments)
}

// Run starts command, performs a single Call and closes the client on every
// path.
func Run(ctx context.Context, command string, args []string, method string, params any, opts ...Option) (reply json.RawMessage, err error) {
	c, err := Start(ctx, command, args, opts...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return c.Call(ctx, method, params)
}

func terminate(p *os.Process) error {
	if p == nil {
		return nil
	}
	err := p.Signal(syscall.SIGTERM)
	if err == nil || errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	// Platforms without SIGTERM delivery.
	if kerr := p.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
		return kerr
	}
	return nil
}
