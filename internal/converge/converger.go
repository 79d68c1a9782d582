package converge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/aretw0/steward/pkg/domain"
	"github.com/aretw0/steward/pkg/ports"
)

// Converger drives a host to a declared state, one declaration at a time.
// It holds no state between runs.
type Converger struct {
	facts  ports.HostFactProvider
	logger *slog.Logger
	hooks  domain.LifecycleHooks
	dryRun bool
	now    func() time.Time
}

// Option configures a Converger.
type Option func(*Converger)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Converger) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Converger) {
		c.hooks = hooks
	}
}

// WithDryRun makes the converger report what would change without issuing
// any mutation.
func WithDryRun(dryRun bool) Option {
	return func(c *Converger) {
		c.dryRun = dryRun
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Converger) {
		c.now = now
	}
}

// New creates a Converger acting on facts.
func New(facts ports.HostFactProvider, opts ...Option) *Converger {
	c := &Converger{
		facts:  facts,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Converge applies declarations in order.
//
// Declarations sharing a (kind, identity) pair are collapsed first, the later
// one winning. The run stops at the first failure: the returned report holds
// the results of every declaration up to and including the failed one, and
// the error is a *domain.ResourceApplyError.
func (c *Converger) Converge(ctx context.Context, runID string, declarations []domain.Resource) (*domain.ConvergenceReport, error) {
	report := &domain.ConvergenceReport{
		RunID:     runID,
		DryRun:    c.dryRun,
		StartedAt: c.now(),
		Results:   make([]domain.ResourceResult, 0, len(declarations)),
	}
	logger := c.logger.With("run_id", runID, "dry_run", c.dryRun)

	if c.hooks.OnRunStart != nil {
		c.hooks.OnRunStart(ctx, &domain.RunEvent{
			EventBase: c.event(domain.EventRunStart, runID),
			Kind:      domain.RunConverge,
		})
	}

	for _, decl := range domain.Dedupe(declarations) {
		result, err := c.apply(ctx, decl)
		if err != nil {
			applyErr := &domain.ResourceApplyError{Kind: decl.Kind(), Identity: decl.Identity(), Cause: err}
			result.Error = applyErr.Error()
			report.Results = append(report.Results, result)
			report.Err = applyErr
			c.emitResource(ctx, runID, result)
			logger.Error("resource failed", "kind", decl.Kind(), "identity", decl.Identity(), "err", err)
			break
		}
		report.Results = append(report.Results, result)
		c.emitResource(ctx, runID, result)
		logger.Debug("resource applied", "kind", decl.Kind(), "identity", decl.Identity(), "changed", result.Changed)
	}

	report.FinishedAt = c.now()
	if c.hooks.OnRunFinish != nil {
		c.hooks.OnRunFinish(ctx, &domain.RunEvent{
			EventBase: c.event(domain.EventRunFinish, runID),
			Kind:      domain.RunConverge,
			Duration:  report.FinishedAt.Sub(report.StartedAt),
			Passed:    !report.Failed(),
		})
	}
	logger.Info("convergence finished",
		"resources", len(report.Results),
		"changed", report.ChangedCount(),
		"failed", report.Failed(),
	)

	if report.Err != nil {
		return report, report.Err
	}
	return report, nil
}

func (c *Converger) apply(ctx context.Context, decl domain.Resource) (domain.ResourceResult, error) {
	result := domain.ResourceResult{Kind: decl.Kind(), Identity: decl.Identity()}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	var err error
	switch r := decl.(type) {
	case domain.Package:
		result.Changes, err = c.applyPackage(ctx, r)
	case domain.Service:
		result.Changes, err = c.applyService(ctx, r)
	case domain.File:
		result.Changes, err = c.applyFile(ctx, r)
	default:
		err = fmt.Errorf("unsupported resource type %T", decl)
	}

	for _, ch := range result.Changes {
		if ch.Changed {
			result.Changed = true
			break
		}
	}
	return result, err
}

func (c *Converger) applyPackage(ctx context.Context, p domain.Package) ([]domain.Change, error) {
	installed, err := c.facts.IsPackageInstalled(ctx, p.Name)
	if err != nil {
		return nil, err
	}
	change := domain.Change{
		Field:   "installed",
		From:    strconv.FormatBool(installed),
		To:      "true",
		Changed: !installed,
	}
	if installed || c.dryRun {
		return []domain.Change{change}, nil
	}
	if err := c.facts.InstallPackage(ctx, p.Name); err != nil {
		return nil, err
	}
	return []domain.Change{change}, nil
}

// applyService re-queries the service before every action so that actions
// earlier in the list are taken into account.
func (c *Converger) applyService(ctx context.Context, s domain.Service) ([]domain.Change, error) {
	changes := make([]domain.Change, 0, len(s.Actions))
	for _, action := range s.Actions {
		satisfied, current, err := c.serviceSatisfies(ctx, s.Name, action)
		if err != nil {
			return changes, err
		}
		change := domain.Change{
			Field:   string(action),
			From:    current,
			To:      serviceTarget(action),
			Changed: !satisfied,
		}
		if !satisfied && !c.dryRun {
			if err := c.facts.SetServiceState(ctx, s.Name, action); err != nil {
				return changes, err
			}
		}
		changes = append(changes, change)
	}
	return changes, nil
}

func (c *Converger) serviceSatisfies(ctx context.Context, name string, action domain.ServiceAction) (bool, string, error) {
	switch action {
	case domain.ActionStart, domain.ActionStop:
		running, err := c.facts.IsServiceRunning(ctx, name)
		if err != nil {
			return false, "", err
		}
		current := "stopped"
		if running {
			current = "running"
		}
		return running == (action == domain.ActionStart), current, nil
	case domain.ActionEnable, domain.ActionDisable:
		enabled, err := c.facts.IsServiceEnabled(ctx, name)
		if err != nil {
			return false, "", err
		}
		current := "disabled"
		if enabled {
			current = "enabled"
		}
		return enabled == (action == domain.ActionEnable), current, nil
	}
	return false, "", fmt.Errorf("unsupported service action %q", action)
}

func serviceTarget(action domain.ServiceAction) string {
	switch action {
	case domain.ActionStart:
		return "running"
	case domain.ActionStop:
		return "stopped"
	case domain.ActionEnable:
		return "enabled"
	case domain.ActionDisable:
		return "disabled"
	}
	return ""
}

// applyFile compares each specified field and writes only the ones that
// differ, in a single WriteFile call.
func (c *Converger) applyFile(ctx context.Context, f domain.File) ([]domain.Change, error) {
	var (
		changes []domain.Change
		write   domain.FileWrite
	)

	type field struct {
		name    string
		desired *string
		query   func(context.Context, string) (string, error)
		target  **string
	}
	fields := []field{
		{"content", f.Content, c.facts.FileContent, &write.Content},
		{"owner", f.Owner, c.facts.FileOwner, &write.Owner},
		{"group", f.Group, c.facts.FileGroup, &write.Group},
	}

	for _, fd := range fields {
		if fd.desired == nil {
			continue
		}
		current, err := fd.query(ctx, f.Path)
		missing := errors.Is(err, domain.ErrNotFound)
		if err != nil && !missing {
			return changes, err
		}
		differs := missing || current != *fd.desired
		change := domain.Change{Field: fd.name, To: *fd.desired, Changed: differs}
		if !missing {
			change.From = current
		}
		if fd.name == "content" {
			// File bodies are not worth repeating in reports.
			change.From, change.To = "", ""
		}
		if differs {
			*fd.target = fd.desired
		}
		changes = append(changes, change)
	}

	if write.Empty() || c.dryRun {
		return changes, nil
	}
	if err := c.facts.WriteFile(ctx, f.Path, write); err != nil {
		return changes, err
	}
	return changes, nil
}

func (c *Converger) emitResource(ctx context.Context, runID string, result domain.ResourceResult) {
	if c.hooks.OnResourceApplied == nil {
		return
	}
	c.hooks.OnResourceApplied(ctx, &domain.ResourceEvent{
		EventBase: c.event(domain.EventResourceApplied, runID),
		Result:    result,
		DryRun:    c.dryRun,
	})
}

func (c *Converger) event(t domain.EventType, runID string) domain.EventBase {
	return domain.EventBase{Timestamp: c.now(), Type: t, RunID: runID}
}
