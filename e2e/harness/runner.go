package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// killGrace is how long Close waits after SIGTERM before killing the shell
	killGrace = 2 * time.Second
	// drainDelay bounds how long output is read after the shell has exited.
	// A leftover descendant can hold the pipes open indefinitely.
	drainDelay = time.Second
)

var (
	ErrNotStarted     = errors.New("shell not started")
	ErrAlreadyStarted = errors.New("shell already started")
	ErrExited         = errors.New("shell exited")
	ErrOutputLimit    = errors.New("output exceeded buffer limit before prompt")
)

// Output is what the shell printed between a command and the next prompt.
// The prompt itself is not included.
type Output struct {
	Stdout string
	Stderr string
}

// Reply is the eventual result of ExecAsync.
type Reply struct {
	Output
	Err error
}

// Runner drives one corporal shell process: it starts the shell, feeds it
// command lines and waits for the prompt that follows each of them.
type Runner struct {
	opts   Options
	log    *logrus.Entry
	events hub

	// execMu serializes Exec so each call waits for its own prompt
	execMu sync.Mutex

	mu       sync.Mutex
	started  bool
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	scanner  promptScanner
	ready    []string
	stderr   strings.Builder
	overflow bool
	status   ExitStatus

	notify chan struct{}
	done   chan struct{}
}

// New creates a Runner. The shell is not launched until Start.
func New(opts Options) *Runner {
	opts = opts.withDefaults()
	return &Runner{
		opts:    opts,
		log:     opts.Logger.WithField("component", "runner"),
		scanner: promptScanner{prompt: opts.prompt()},
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Prompt returns the prompt string the runner waits for
func (r *Runner) Prompt() string {
	return r.opts.prompt()
}

// Start launches the shell and waits for its first prompt. If the wait
// fails the process may still be running; call Close.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.started = true
	r.mu.Unlock()

	if err := r.spawn(); err != nil {
		r.finish(ExitStatus{Code: -1})
		return err
	}

	if _, err := r.awaitPrompt(ctx); err != nil {
		return fmt.Errorf("failed to wait for first prompt: %w", err)
	}
	return nil
}

func (r *Runner) spawn() error {
	program, err := r.opts.program()
	if err != nil {
		return err
	}
	args, err := r.opts.arguments()
	if err != nil {
		return err
	}

	r.log.WithFields(logrus.Fields{"program": program, "args": args}).Debug("spawn")

	cmd := exec.Command(program, args...)
	cmd.Env = r.opts.Environ

	setProcessGroup(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	// Output pipes are created here rather than with StdoutPipe so that
	// cmd.Wait returns on exit and the read ends stay ours to close.
	stdout, stdoutW, err := os.Pipe()
	if err != nil {
		stdin.Close()
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, stderrW, err := os.Pipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		stdoutW.Close()
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	err = cmd.Start()
	stdoutW.Close()
	stderrW.Close()
	if err != nil {
		stdout.Close()
		stderr.Close()
		return fmt.Errorf("failed to start %s: %w", program, err)
	}

	r.mu.Lock()
	r.cmd = cmd
	r.stdin = stdin
	r.mu.Unlock()

	var pumps sync.WaitGroup
	pumps.Add(2)
	go r.pump(stdout, EventStdout, &pumps)
	go r.pump(stderr, EventStderr, &pumps)
	go r.wait(cmd, &pumps, stdout, stderr)
	return nil
}

// Exec writes command and a newline to the shell, then waits for the next
// prompt. Anything the shell printed before the write is discarded.
func (r *Runner) Exec(ctx context.Context, command string) (Output, error) {
	r.execMu.Lock()
	defer r.execMu.Unlock()

	select {
	case <-r.done:
		return Output{}, fmt.Errorf("%w: %s", ErrExited, r.exitStatus())
	default:
	}

	r.mu.Lock()
	stdin := r.stdin
	if stdin == nil {
		r.mu.Unlock()
		return Output{}, ErrNotStarted
	}
	if stale := r.scanner.Pending() + strings.Join(r.ready, "") + r.stderr.String(); stale != "" {
		r.log.WithField("output", stale).Debug("discarding output received before command")
	}
	r.scanner.Reset()
	r.ready = nil
	r.stderr.Reset()
	r.overflow = false
	r.mu.Unlock()

	r.log.WithField("stream", "stdin").Debug(command)
	if _, err := io.WriteString(stdin, command+"\n"); err != nil {
		return Output{}, fmt.Errorf("failed to write command: %w", err)
	}

	return r.awaitPrompt(ctx)
}

// ExecAsync runs Exec in the background. The channel yields exactly one
// Reply and is then closed.
func (r *Runner) ExecAsync(ctx context.Context, command string) <-chan Reply {
	replies := make(chan Reply, 1)
	go func() {
		defer close(replies)
		out, err := r.Exec(ctx, command)
		replies <- Reply{Output: out, Err: err}
	}()
	return replies
}

// Subscribe relays stdout, stderr and close events from now on. The channel
// is closed after the close event or when ctx ends. Subscribing after the
// shell exited yields just the close event.
func (r *Runner) Subscribe(ctx context.Context) <-chan Event {
	return r.events.subscribe(ctx)
}

// Close terminates the shell and its process group and waits for it to
// exit. Pending waits return ErrExited. Closing a runner that never started
// is a no-op.
func (r *Runner) Close() error {
	r.mu.Lock()
	cmd := r.cmd
	stdin := r.stdin
	r.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	select {
	case <-r.done:
		return nil
	default:
	}

	r.log.WithField("pid", cmd.Process.Pid).Debug("terminating shell")
	if err := terminate(cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to terminate shell: %w", err)
	}
	stdin.Close()

	select {
	case <-r.done:
	case <-time.After(killGrace):
		r.log.Warn("shell did not exit after terminate, killing")
		if err := killGroup(cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("failed to kill shell: %w", err)
		}
		<-r.done
	}
	return nil
}

// Wait blocks until the shell exits or ctx ends.
func (r *Runner) Wait(ctx context.Context) (ExitStatus, error) {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if !started {
		return ExitStatus{}, ErrNotStarted
	}

	select {
	case <-r.done:
		return r.exitStatus(), nil
	case <-ctx.Done():
		return ExitStatus{}, ctx.Err()
	}
}

func (r *Runner) exitStatus() ExitStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// pump copies one output stream into events and the prompt buffers
func (r *Runner) pump(src io.Reader, kind EventKind, wg *sync.WaitGroup) {
	defer wg.Done()

	buf := make([]byte, 4096)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])
			r.log.WithField("stream", kind.String()).Debug(chunk)
			r.events.publish(Event{Kind: kind, Data: chunk})
			r.consume(kind, chunk)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				r.log.WithError(err).WithField("stream", kind.String()).Debug("read failed")
			}
			return
		}
	}
}

func (r *Runner) consume(kind EventKind, chunk string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch kind {
	case EventStdout:
		r.ready = append(r.ready, r.scanner.Write(chunk)...)
		if r.scanner.Len() > r.opts.MaxBuffer {
			r.overflow = true
			r.scanner.Reset()
		}
	case EventStderr:
		r.stderr.WriteString(chunk)
		if r.stderr.Len() > r.opts.MaxBuffer {
			r.overflow = true
			r.stderr.Reset()
		}
	}

	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// wait reaps the process, then gives the pumps up to drainDelay to read
// what is left before closing the pipes under them
func (r *Runner) wait(cmd *exec.Cmd, pumps *sync.WaitGroup, outputs ...*os.File) {
	err := cmd.Wait()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		r.log.WithError(err).Warn("failed to wait for shell")
	}

	drained := make(chan struct{})
	go func() {
		pumps.Wait()
		close(drained)
	}()

	timer := time.NewTimer(drainDelay)
	select {
	case <-drained:
		timer.Stop()
	case <-timer.C:
		r.log.Warn("shell output still open after exit, closing pipes")
		for _, f := range outputs {
			f.Close()
		}
		<-drained
	}
	for _, f := range outputs {
		f.Close()
	}

	status := ExitStatus{Code: -1}
	if ps := cmd.ProcessState; ps != nil {
		status = ExitStatus{Code: ps.ExitCode(), Signal: exitSignal(ps)}
	}
	r.finish(status)
}

func (r *Runner) finish(status ExitStatus) {
	r.mu.Lock()
	r.status = status
	r.mu.Unlock()

	close(r.done)
	r.log.WithFields(logrus.Fields{"code": status.Code, "signal": status.Signal}).Debug("close")
	r.events.publish(Event{Kind: EventClose, Status: status})
}

// awaitPrompt blocks until a prompt has been seen, the shell exits, the
// buffer limit is hit, or ctx (bounded by PromptTimeout) ends.
func (r *Runner) awaitPrompt(ctx context.Context) (Output, error) {
	if r.opts.PromptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.PromptTimeout)
		defer cancel()
	}

	exited := false
	for {
		r.mu.Lock()
		switch {
		case r.overflow:
			// A prompt seen after the reset ends truncated output
			r.overflow = false
			r.ready = nil
			r.mu.Unlock()
			return Output{}, fmt.Errorf("%w (%d bytes)", ErrOutputLimit, r.opts.MaxBuffer)
		case len(r.ready) > 0:
			stdout := r.ready[0]
			r.ready = r.ready[1:]
			r.mu.Unlock()
			return Output{Stdout: stdout, Stderr: r.takeStderr()}, nil
		case exited:
			out := Output{Stdout: r.scanner.Pending(), Stderr: r.stderr.String()}
			r.scanner.Reset()
			r.stderr.Reset()
			status := r.status
			r.mu.Unlock()
			return out, fmt.Errorf("%w: %s", ErrExited, status)
		}
		r.mu.Unlock()

		select {
		case <-r.notify:
		case <-r.done:
			exited = true
		case <-ctx.Done():
			r.mu.Lock()
			pending := r.scanner.Pending()
			r.mu.Unlock()
			return Output{Stdout: pending}, fmt.Errorf("timeout waiting for prompt %q: %w\nGot output:\n%s",
				r.opts.prompt(), ctx.Err(), pending)
		}
	}
}

// takeStderr gives the stderr pump SettleDelay to catch up with stdout,
// then returns and clears everything buffered.
func (r *Runner) takeStderr() string {
	if r.opts.SettleDelay > 0 {
		timer := time.NewTimer(r.opts.SettleDelay)
		select {
		case <-timer.C:
		case <-r.done:
			timer.Stop()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	stderr := r.stderr.String()
	r.stderr.Reset()
	return stderr
}
