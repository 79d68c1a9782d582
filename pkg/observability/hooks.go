package observability

import (
	"context"
	"io"
	"log/slog"
	"strconv"

	"github.com/aretw0/steward/pkg/domain"
)

// Hooks returns lifecycle hooks that record every event in m and log it.
// Either argument may be nil.
func Hooks(m *Metrics, logger *slog.Logger) domain.LifecycleHooks {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return domain.LifecycleHooks{
		OnRunStart: func(ctx context.Context, e *domain.RunEvent) {
			logger.InfoContext(ctx, "run started", "run_id", e.RunID, "kind", e.Kind)
		},
		OnRunFinish: func(ctx context.Context, e *domain.RunEvent) {
			outcome := OutcomePassed
			if !e.Passed {
				outcome = OutcomeFailed
			}
			if m != nil {
				m.Runs.WithLabelValues(string(e.Kind), outcome).Inc()
				m.RunDuration.WithLabelValues(string(e.Kind)).Observe(e.Duration.Seconds())
			}
			logger.InfoContext(ctx, "run finished",
				"run_id", e.RunID,
				"kind", e.Kind,
				"passed", e.Passed,
				"duration", e.Duration,
			)
		},
		OnResourceApplied: func(ctx context.Context, e *domain.ResourceEvent) {
			outcome := OutcomeUnchanged
			switch {
			case e.Result.Error != "":
				outcome = OutcomeFailed
			case e.Result.Changed:
				outcome = OutcomeChanged
			}
			if m != nil {
				m.Resources.WithLabelValues(string(e.Result.Kind), outcome, strconv.FormatBool(e.DryRun)).Inc()
			}
			logger.DebugContext(ctx, "resource applied",
				"run_id", e.RunID,
				"kind", e.Result.Kind,
				"identity", e.Result.Identity,
				"changed", e.Result.Changed,
			)
		},
		OnAssertionEvaluated: func(ctx context.Context, e *domain.AssertionEvent) {
			outcome := OutcomePassed
			if !e.Result.Passed {
				outcome = OutcomeFailed
			}
			if m != nil {
				m.Assertions.WithLabelValues(string(e.Result.Assertion.Kind), outcome).Inc()
			}
			logger.DebugContext(ctx, "assertion evaluated",
				"run_id", e.RunID,
				"control", e.Control,
				"assertion", e.Result.Assertion.String(),
				"passed", e.Result.Passed,
			)
		},
	}
}
