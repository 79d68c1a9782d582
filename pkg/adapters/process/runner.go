package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sort"
	"strings"
	"time"
)

// ErrNotRegistered is returned when a command name is not on the allow-list.
var ErrNotRegistered = errors.New("command not registered")

// Result is the outcome of a command that ran to completion.
// A non-zero exit code is a result, not an error.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Success reports whether the command exited with status 0.
func (r Result) Success() bool { return r.ExitCode == 0 }

// Output returns stdout with surrounding whitespace removed.
func (r Result) Output() string { return strings.TrimSpace(r.Stdout) }

// RegisteredCommand defines an allowed command execution.
type RegisteredCommand struct {
	Command     string
	Args        []string // Prefix args, placed before the caller's
	Environment map[string]string
}

// Runner executes local processes.
// It follows a strict registry pattern: only commands registered under a
// logical name can run.
type Runner struct {
	registry map[string]RegisteredCommand
	baseDir  string
	env      []string
	timeout  time.Duration
	logger   *slog.Logger
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithRegistry populates the allow-list from a loaded config.
// Entries override earlier registrations of the same name.
func WithRegistry(commands map[string]CommandConfig) RunnerOption {
	return func(r *Runner) {
		for name, c := range commands {
			r.registry[name] = RegisteredCommand{Command: c.Command, Args: c.Args, Environment: c.Environment}
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// WithEnv adds KEY=VALUE pairs to the environment of every command.
func WithEnv(kv ...string) RunnerOption {
	return func(r *Runner) {
		r.env = append(r.env, kv...)
	}
}

// WithTimeout bounds every command. Zero means no bound beyond the caller's context.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithLogger sets the logger used for command tracing.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a new process Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: make(map[string]RegisteredCommand),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted command to the allow-list under name.
func (r *Runner) Register(name string, command string, args ...string) {
	r.registry[name] = RegisteredCommand{
		Command: command,
		Args:    args,
	}
}

// RegisterDefault registers name as itself unless already registered.
func (r *Runner) RegisterDefault(names ...string) {
	for _, name := range names {
		if _, ok := r.registry[name]; !ok {
			r.Register(name, name)
		}
	}
}

// Registered returns the registered names, sorted.
func (r *Runner) Registered() []string {
	names := make([]string, 0, len(r.registry))
	for name := range r.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes the command registered as name with args appended.
//
// The error is non-nil only when the command could not be run to completion:
// not registered, not found, killed by context cancellation or timeout.
func (r *Runner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	proc, ok := r.registry[name]
	if !ok {
		return Result{}, fmt.Errorf("%s: %w", name, ErrNotRegistered)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	argv := append(append([]string{}, proc.Args...), args...)
	cmd := exec.CommandContext(ctx, proc.Command, argv...)
	cmd.Dir = r.baseDir
	cmd.WaitDelay = time.Second

	env := append([]string{}, r.env...)
	keys := make([]string, 0, len(proc.Environment))
	for k := range proc.Environment {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+proc.Environment[k])
	}
	cmd.Env = append(cmd.Environ(), env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), ctxErr)
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		return res, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}

	r.logger.Debug("command finished",
		"command", name,
		"args", args,
		"exit_code", res.ExitCode,
		"duration", time.Since(start),
	)
	return res, nil
}
