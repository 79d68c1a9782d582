package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventRunStart           EventType = "run_start"
	EventRunFinish          EventType = "run_finish"
	EventResourceApplied    EventType = "resource_applied"
	EventAssertionEvaluated EventType = "assertion_evaluated"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
}

// RunEvent marks the beginning or the end of a converge or audit run.
type RunEvent struct {
	EventBase
	Kind     RunKind       `json:"kind"`
	Duration time.Duration `json:"duration,omitempty"`
	Passed   bool          `json:"passed,omitempty"`
}

// ResourceEvent is emitted after one declaration has been applied (or failed).
type ResourceEvent struct {
	EventBase
	Result ResourceResult `json:"result"`
	DryRun bool           `json:"dry_run,omitempty"`
}

// AssertionEvent is emitted after one assertion has been evaluated.
type AssertionEvent struct {
	EventBase
	ControlGroup string          `json:"control_group"`
	Control      string          `json:"control"`
	Result       AssertionResult `json:"result"`
}

// LifecycleHooks defines callbacks for engine observability.
// Any hook may be nil.
type LifecycleHooks struct {
	OnRunStart           func(context.Context, *RunEvent)
	OnRunFinish          func(context.Context, *RunEvent)
	OnResourceApplied    func(context.Context, *ResourceEvent)
	OnAssertionEvaluated func(context.Context, *AssertionEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnRunStart:           chain(h.OnRunStart, other.OnRunStart),
		OnRunFinish:          chain(h.OnRunFinish, other.OnRunFinish),
		OnResourceApplied:    chain(h.OnResourceApplied, other.OnResourceApplied),
		OnAssertionEvaluated: chain(h.OnAssertionEvaluated, other.OnAssertionEvaluated),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
