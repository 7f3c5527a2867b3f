package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"sync"
	"syscall"
	"time"
	"unicode/utf8"

	"al.essio.dev/pkg/shellescape"
)

// DefaultSearchPrefix marks a line as a hub search request.
const DefaultSearchPrefix = "HF_SEARCH:::"

const (
	defaultStopTimeout = 3 * time.Second
	readBufferSize     = 4096
	eventBuffer        = 256
)

// Options configures the backend process.
type Options struct {
	Command      string
	Args         []string
	Env          map[string]string // added to the inherited environment
	Dir          string
	SearchPrefix string
	StopTimeout  time.Duration
}

// Process is a running backend. It implements Backend.
type Process struct {
	opts   Options
	events chan Event
	quit   chan struct{}
	done   chan struct{}

	mu       sync.Mutex
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	started  bool
	running  bool
	stopOnce sync.Once
}

// New returns a process that is not yet started. Events is usable
// immediately so a consumer can subscribe before Start.
func New(opts Options) *Process {
	if opts.SearchPrefix == "" {
		opts.SearchPrefix = DefaultSearchPrefix
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = defaultStopTimeout
	}
	return &Process{
		opts:   opts,
		events: make(chan Event, eventBuffer),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// CommandLine returns the shell-quoted command for logs and display.
func (p *Process) CommandLine() string {
	return shellescape.QuoteCommand(append([]string{p.opts.Command}, p.opts.Args...))
}

// Start spawns the process. A spawn failure is returned and also delivered
// as an EventStartFailed so the UI can react to it. ctx only bounds the spawn;
// the process outlives it and is ended by Stop.
func (p *Process) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return errors.New("backend process already started")
	}
	p.started = true

	if err := ctx.Err(); err != nil {
		return p.failStart(err)
	}

	cmd := exec.Command(p.opts.Command, p.opts.Args...)
	cmd.Dir = p.opts.Dir
	cmd.Env = MergeEnv(os.Environ(), p.opts.Env)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return p.failStart(fmt.Errorf("failed to create stdin pipe: %w", err))
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return p.failStart(fmt.Errorf("failed to create stdout pipe: %w", err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return p.failStart(fmt.Errorf("failed to create stderr pipe: %w", err))
	}

	if err := cmd.Start(); err != nil {
		return p.failStart(err)
	}

	p.cmd = cmd
	p.stdin = stdin
	p.running = true
	slog.Info("backend started", "command", p.CommandLine(), "pid", cmd.Process.Pid)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.pump(stdout, EventStdout)
	}()
	go func() {
		defer wg.Done()
		p.pump(stderr, EventStderr)
	}()
	go p.wait(&wg)

	return nil
}

func (p *Process) failStart(err error) error {
	slog.Error("backend failed to start", "command", p.CommandLine(), "error", err)
	p.events <- Event{Kind: EventStartFailed, Err: err}
	close(p.events)
	close(p.done)
	return err
}

// pump forwards reads from r as events. Incomplete UTF-8 sequences at the end
// of a read are held back and prefixed to the next one.
func (p *Process) pump(r io.Reader, kind EventKind) {
	buf := make([]byte, readBufferSize)
	var carry []byte
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := append(carry, buf[:n]...)
			var text []byte
			text, carry = splitUTF8(data)
			carry = append([]byte(nil), carry...)
			if len(text) > 0 {
				p.emit(Event{Kind: kind, Text: string(text)})
			}
		}
		if err != nil {
			if len(carry) > 0 {
				p.emit(Event{Kind: kind, Text: string(carry)})
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				slog.Debug("backend pipe read failed", "stream", kind.String(), "error", err)
			}
			return
		}
	}
}

func (p *Process) wait(pumps *sync.WaitGroup) {
	pumps.Wait()
	err := p.cmd.Wait()

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	code := p.cmd.ProcessState.ExitCode()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		err = nil
	}
	slog.Info("backend exited", "code", code, "error", err)

	p.emit(Event{Kind: EventExit, Code: code, Err: err})
	close(p.events)
	close(p.done)
}

// emit delivers ev unless Stop has been called and nobody is reading.
func (p *Process) emit(ev Event) {
	select {
	case p.events <- ev:
	case <-p.quit:
	}
}

// Events implements Backend.
func (p *Process) Events() <-chan Event { return p.events }

// Send implements Backend.
func (p *Process) Send(line string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running || p.stdin == nil {
		return ErrNotRunning
	}
	if _, err := io.WriteString(p.stdin, line+"\n"); err != nil {
		return fmt.Errorf("failed to write to backend: %w", err)
	}
	return nil
}

// Search implements Backend.
func (p *Process) Search(query string) error {
	return p.Send(p.opts.SearchPrefix + query)
}

// Running reports whether the process is alive.
func (p *Process) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Done is closed once the process has exited and all events were emitted.
func (p *Process) Done() <-chan struct{} { return p.done }

// Stop closes the process input, sends SIGTERM and waits for exit, killing
// the process if it outlives the stop timeout or ctx.
func (p *Process) Stop(ctx context.Context) error {
	p.mu.Lock()
	started, running, cmd := p.started, p.running, p.cmd
	if p.stdin != nil {
		p.stdin.Close()
		p.stdin = nil
	}
	p.mu.Unlock()

	p.stopOnce.Do(func() { close(p.quit) })

	if !started || !running {
		return nil
	}

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		slog.Debug("SIGTERM failed, killing backend", "error", err)
		_ = cmd.Process.Kill()
	}

	timer := time.NewTimer(p.opts.StopTimeout)
	defer timer.Stop()

	select {
	case <-p.done:
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}

	slog.Warn("backend did not exit, killing", "pid", cmd.Process.Pid)
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill backend: %w", err)
	}
	<-p.done
	return nil
}

// splitUTF8 returns the longest prefix of b that does not end inside a
// multi-byte sequence, and the remainder.
func splitUTF8(b []byte) (complete, rest []byte) {
	// A rune is at most utf8.UTFMax bytes, so only the tail needs checking.
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if utf8.FullRune(b[i:]) {
			return b, nil
		}
		return b[:i], b[i:]
	}
	return b, nil
}

// MergeEnv appends extra to base in key order. Later entries win when the
// child resolves duplicates, so extra overrides the inherited environment.
func MergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := append([]string(nil), base...)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}
