package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aretw0/steward/internal/logging"
	"github.com/aretw0/steward/pkg/domain"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1 // a resource failed to apply or a control failed
	ExitConfig  = 2 // bad input, flags, lock or store
)

// ErrAuditFailed is returned when at least one control failed.
var ErrAuditFailed = errors.New("audit failed")

// ExitError carries an explicit exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

func usageError(err error) error {
	return &ExitError{Code: ExitConfig, Err: err}
}

// ExitCode maps a command error onto a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	var rae *domain.ResourceApplyError
	if errors.As(err, &rae) || errors.Is(err, ErrAuditFailed) {
		return ExitFailure
	}
	return ExitConfig
}

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	stop   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// It acts as a drop-in replacement for signal.NotifyContext but allows retrieving the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sc.sigCh:
			sc.mu.Lock()
			sc.sigVal = sig
			sc.mu.Unlock()
			sc.Cancel()
		case <-sc.Context.Done():
		}
		sc.stop.Do(func() {
			signal.Stop(sc.sigCh)
		})
	}()

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// logInterrupt reports a run cut short by SIGINT or SIGTERM. Results up to
// that point have already been printed.
func logInterrupt(ctx context.Context, opts Options, what string) {
	sc, ok := ctx.(*SignalContext)
	if !ok {
		return
	}
	if sig := sc.Signal(); sig != nil {
		printSystemMessage(opts, "%s interrupted by %s", what, signalName(sig))
	}
}

func signalName(sig os.Signal) string {
	switch sig {
	case os.Interrupt:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return sig.String()
}

// createLogger configures the application logger.
// Without --debug only warnings and errors reach stderr.
func createLogger(opts Options) (*slog.Logger, error) {
	format, err := logging.ParseFormat(opts.LogFormat)
	if err != nil {
		return nil, err
	}
	level := slog.LevelWarn
	if opts.Debug {
		level = slog.LevelDebug
	}
	return logging.NewWithWriter(opts.stderr(), level, format), nil
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(opts Options, format string, args ...any) {
	fmt.Fprintf(opts.stderr(), ">>> %s\n", fmt.Sprintf(format, args...))
}
