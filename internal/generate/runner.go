package generate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"chatshell-cli/internal/backend"

	"al.essio.dev/pkg/shellescape"
)

// waitDelay bounds how long Wait drains output after the helper is killed,
// in case a grandchild still holds the pipes open.
const waitDelay = 500 * time.Millisecond

// ErrStart is returned when the helper process could not be spawned.
var ErrStart = errors.New("failed to start generation process")

// Failure reports a helper run that exited non-zero or wrote to stderr.
type Failure struct {
	ExitCode int
	Stderr   string
}

func (f *Failure) Error() string {
	return "generation failed: " + f.Detail()
}

// Detail is the helper's stderr, or its exit code when stderr was empty.
func (f *Failure) Detail() string {
	if s := strings.TrimSpace(f.Stderr); s != "" {
		return s
	}
	return fmt.Sprintf("Process exited with code %d", f.ExitCode)
}

// Options configures the helper command.
type Options struct {
	Command string
	Args    []string
	Env     map[string]string
	Dir     string
}

// Runner spawns one helper process per request.
type Runner struct {
	opts Options
}

// NewRunner returns a runner for opts.
func NewRunner(opts Options) *Runner {
	return &Runner{opts: opts}
}

// CommandLine returns the shell-quoted helper command.
func (r *Runner) CommandLine() string {
	return shellescape.QuoteCommand(append([]string{r.opts.Command}, r.opts.Args...))
}

// Run writes prompt as one line to the helper, closes its input and returns
// everything it printed on stdout. It succeeds only if the helper exits 0
// with empty stderr; otherwise the error is a *Failure. Cancelling ctx kills
// the helper.
func (r *Runner) Run(ctx context.Context, prompt string) (string, error) {
	cmd := exec.CommandContext(ctx, r.opts.Command, r.opts.Args...)
	cmd.Dir = r.opts.Dir
	cmd.WaitDelay = waitDelay
	cmd.Env = backend.MergeEnv(os.Environ(), r.opts.Env)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStart, err)
	}

	slog.Debug("starting generation helper", "command", r.CommandLine())
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrStart, err)
	}

	// A helper that exits without reading its input makes this write fail;
	// its exit status decides the outcome.
	if _, err := io.WriteString(stdin, prompt+"\n"); err != nil {
		slog.Debug("writing prompt to generation helper failed", "error", err)
	}
	stdin.Close()

	err = cmd.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}

	code := cmd.ProcessState.ExitCode()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return "", fmt.Errorf("generation helper failed: %w", err)
	}
	if code != 0 || stderr.Len() > 0 {
		slog.Warn("generation helper failed", "code", code, "stderr", stderr.String())
		return "", &Failure{ExitCode: code, Stderr: stderr.String()}
	}
	return stdout.String(), nil
}
