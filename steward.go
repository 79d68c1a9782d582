package steward

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/steward/internal/audit"
	"github.com/aretw0/steward/internal/converge"
	"github.com/aretw0/steward/pkg/domain"
	"github.com/aretw0/steward/pkg/ports"
	"github.com/google/uuid"
)

// DefaultLockTTL bounds how long a crashed run can hold the host lock.
const DefaultLockTTL = 10 * time.Minute

// Engine is the high-level entry point for the Steward library.
// It wires the converger and the auditor to one host and, optionally, to a
// report store and a host lock.
type Engine struct {
	facts   ports.HostFactProvider
	store   ports.ReportStore
	locker  ports.HostLocker
	lockTTL time.Duration
	hooks   domain.LifecycleHooks
	logger  *slog.Logger
	dryRun  bool
	now     func() time.Time
	newID   func() string

	// Host names the target in reports and is the lock key.
	Host string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithStore persists every run in store.
func WithStore(store ports.ReportStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker serializes runs against the host through locker.
// A zero ttl means DefaultLockTTL.
func WithLocker(locker ports.HostLocker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locker = locker
		e.lockTTL = ttl
	}
}

// WithDryRun makes Converge report what would change without changing it.
func WithDryRun(dryRun bool) Option {
	return func(e *Engine) {
		e.dryRun = dryRun
	}
}

// WithHost sets the host name recorded in reports.
func WithHost(name string) Option {
	return func(e *Engine) {
		e.Host = name
	}
}

// WithRunIDs overrides the run ID generator (default: random UUIDs).
func WithRunIDs(next func() string) Option {
	return func(e *Engine) {
		e.newID = next
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New initializes an Engine acting on facts.
func New(facts ports.HostFactProvider, opts ...Option) (*Engine, error) {
	if facts == nil {
		return nil, fmt.Errorf("a host fact provider is required")
	}
	eng := &Engine{
		facts:   facts,
		lockTTL: DefaultLockTTL,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(eng)
	}

	// Ensure logger is initialized (so we don't pass nil to the components)
	if eng.logger == nil {
		eng.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if eng.lockTTL <= 0 {
		eng.lockTTL = DefaultLockTTL
	}
	if eng.Host != "" {
		eng.logger = eng.logger.With("host", eng.Host)
	}
	return eng, nil
}

// Converge drives the host to the declared state.
//
// The report is returned even when the run fails. A failed declaration
// yields a *domain.ResourceApplyError; lock and store failures are returned
// as plain wrapped errors.
func (e *Engine) Converge(ctx context.Context, declarations []domain.Resource) (*domain.ConvergenceReport, error) {
	runID := e.newID()
	unlock, err := e.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	c := converge.New(e.facts,
		converge.WithLogger(e.logger),
		converge.WithLifecycleHooks(e.hooks),
		converge.WithDryRun(e.dryRun),
		converge.WithClock(e.now),
	)
	report, runErr := c.Converge(ctx, runID, declarations)
	report.Host = e.Host

	saveErr := e.save(ctx, &domain.RunRecord{
		ID:          runID,
		Kind:        domain.RunConverge,
		CreatedAt:   report.StartedAt,
		Convergence: report,
	})
	return report, errors.Join(runErr, saveErr)
}

// Audit evaluates every control group against the host. Failed controls are
// report data, not errors: the error is only set when the run could not be
// locked or stored.
func (e *Engine) Audit(ctx context.Context, groups []domain.ControlGroup) (*domain.AuditRun, error) {
	runID := e.newID()
	unlock, err := e.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	r := audit.New(e.facts,
		audit.WithLogger(e.logger),
		audit.WithLifecycleHooks(e.hooks),
		audit.WithClock(e.now),
	)
	run := r.Run(ctx, runID, groups)
	run.Host = e.Host

	saveErr := e.save(ctx, &domain.RunRecord{
		ID:        runID,
		Kind:      domain.RunAudit,
		CreatedAt: run.StartedAt,
		Audit:     run,
	})
	return run, saveErr
}

// Store returns the configured report store, or nil.
func (e *Engine) Store() ports.ReportStore {
	return e.store
}

func (e *Engine) lock(ctx context.Context) (func(), error) {
	if e.locker == nil {
		return func() {}, nil
	}
	key := e.Host
	if key == "" {
		key = "localhost"
	}
	unlock, err := e.locker.Lock(ctx, key, e.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to lock host %s: %w", key, err)
	}
	return func() {
		// The run's context may be done by now; releasing must still happen.
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			e.logger.Warn("failed to release host lock", "err", err)
		}
	}, nil
}

func (e *Engine) save(ctx context.Context, record *domain.RunRecord) error {
	if e.store == nil {
		return nil
	}
	if err := e.store.Save(context.WithoutCancel(ctx), record); err != nil {
		e.logger.Error("failed to save report", "run_id", record.ID, "err", err)
		return fmt.Errorf("failed to save report %s: %w", record.ID, err)
	}
	return nil
}
