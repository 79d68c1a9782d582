package audit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/steward/pkg/domain"
	"github.com/aretw0/steward/pkg/ports"
)

// Runner evaluates control groups against host facts.
// Evaluation is exhaustive: no failing assertion, and no fact that cannot be
// obtained, stops the remaining assertions or controls.
type Runner struct {
	facts  ports.HostFacts
	logger *slog.Logger
	hooks  domain.LifecycleHooks
	now    func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(r *Runner) {
		r.hooks = hooks
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// New creates an audit Runner reading from facts.
func New(facts ports.HostFacts, opts ...Option) *Runner {
	r := &Runner{
		facts:  facts,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run evaluates every group in order and returns one report per group.
// The returned run is never partial.
func (r *Runner) Run(ctx context.Context, runID string, groups []domain.ControlGroup) *domain.AuditRun {
	run := &domain.AuditRun{
		RunID:     runID,
		StartedAt: r.now(),
		Reports:   make([]domain.AuditReport, 0, len(groups)),
	}
	logger := r.logger.With("run_id", runID)

	if r.hooks.OnRunStart != nil {
		r.hooks.OnRunStart(ctx, &domain.RunEvent{
			EventBase: domain.EventBase{Timestamp: run.StartedAt, Type: domain.EventRunStart, RunID: runID},
			Kind:      domain.RunAudit,
		})
	}

	for _, group := range groups {
		run.Reports = append(run.Reports, r.runGroup(ctx, runID, group, logger))
	}

	run.FinishedAt = r.now()
	totals := run.Totals()
	logger.Info("audit finished",
		"groups", len(run.Reports),
		"controls", totals.Total,
		"passed", totals.Passed,
		"failed", totals.Failed,
	)
	if r.hooks.OnRunFinish != nil {
		r.hooks.OnRunFinish(ctx, &domain.RunEvent{
			EventBase: domain.EventBase{Timestamp: run.FinishedAt, Type: domain.EventRunFinish, RunID: runID},
			Kind:      domain.RunAudit,
			Duration:  run.FinishedAt.Sub(run.StartedAt),
			Passed:    run.Passed(),
		})
	}
	return run
}

func (r *Runner) runGroup(ctx context.Context, runID string, group domain.ControlGroup, logger *slog.Logger) domain.AuditReport {
	results := make([]domain.ControlResult, 0, len(group.Controls))
	for _, control := range group.Controls {
		assertions := make([]domain.AssertionResult, 0, len(control.Assertions))
		for _, a := range control.Assertions {
			res := r.Evaluate(ctx, a)
			assertions = append(assertions, res)

			logger.Debug("assertion evaluated",
				"group", group.Name,
				"control", control.Name,
				"assertion", a.String(),
				"passed", res.Passed,
			)
			if r.hooks.OnAssertionEvaluated != nil {
				r.hooks.OnAssertionEvaluated(ctx, &domain.AssertionEvent{
					EventBase:    domain.EventBase{Timestamp: r.now(), Type: domain.EventAssertionEvaluated, RunID: runID},
					ControlGroup: group.Name,
					Control:      control.Name,
					Result:       res,
				})
			}
		}
		results = append(results, domain.NewControlResult(control.Name, assertions))
	}
	return domain.NewAuditReport(group.Name, results)
}

// Evaluate checks a single assertion.
//
// A fact that cannot be obtained fails the assertion whatever its polarity,
// with the cause in Detail. Otherwise the observed value is compared to the
// expectation and Negated flips the outcome.
func (r *Runner) Evaluate(ctx context.Context, a domain.Assertion) domain.AssertionResult {
	holds, observed, err := r.observe(ctx, a)
	if err != nil {
		return domain.AssertionResult{Assertion: a, Passed: false, Detail: err.Error()}
	}
	passed := holds != a.Negated
	res := domain.AssertionResult{Assertion: a, Passed: passed}
	if !passed {
		res.Detail = observed
	}
	return res
}

// observe reports whether the un-negated assertion holds, plus a description
// of what was observed.
func (r *Runner) observe(ctx context.Context, a domain.Assertion) (bool, string, error) {
	switch a.Kind {
	case domain.AssertServiceRunning:
		running, err := r.facts.IsServiceRunning(ctx, a.Service)
		if err != nil {
			return false, "", err
		}
		if running {
			return true, fmt.Sprintf("service %q is running", a.Service), nil
		}
		return false, fmt.Sprintf("service %q is not running", a.Service), nil

	case domain.AssertServiceEnabled:
		enabled, err := r.facts.IsServiceEnabled(ctx, a.Service)
		if err != nil {
			return false, "", err
		}
		if enabled {
			return true, fmt.Sprintf("service %q is enabled", a.Service), nil
		}
		return false, fmt.Sprintf("service %q is not enabled", a.Service), nil

	case domain.AssertFileOwnedBy:
		owner, err := r.facts.FileOwner(ctx, a.Path)
		if errors.Is(err, domain.ErrNotFound) {
			// Ownership of an absent file cannot be vouched for either way.
			return false, "", fmt.Errorf("file %q does not exist", a.Path)
		}
		if err != nil {
			return false, "", err
		}
		return owner == a.User, fmt.Sprintf("file %q is owned by %q", a.Path, owner), nil
	}
	return false, "", fmt.Errorf("unsupported assertion kind %q", a.Kind)
}
