package domain

import "time"

// Change records whether one field (or one service action) of a resource
// had to be changed.
type Change struct {
	Field   string `json:"field"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	Changed bool   `json:"changed"`
}

// ResourceResult is the outcome of applying one declaration.
type ResourceResult struct {
	Kind     ResourceKind `json:"kind"`
	Identity string       `json:"identity"`
	Changes  []Change     `json:"changes"`
	Changed  bool         `json:"changed"`
	Error    string       `json:"error,omitempty"`
}

// ConvergenceReport is the result of one convergence run.
// On failure Results holds every declaration up to and including the one
// that failed, and Err describes the failure.
type ConvergenceReport struct {
	RunID      string              `json:"run_id"`
	Host       string              `json:"host,omitempty"`
	DryRun     bool                `json:"dry_run,omitempty"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Results    []ResourceResult    `json:"results"`
	Err        *ResourceApplyError `json:"-"`
}

// ChangedCount returns how many declarations changed the host.
func (r *ConvergenceReport) ChangedCount() int {
	n := 0
	for _, res := range r.Results {
		if res.Changed {
			n++
		}
	}
	return n
}

// Failed reports whether the run stopped on an error.
// Err does not survive serialization, so stored reports are judged by their
// last result.
func (r *ConvergenceReport) Failed() bool {
	if r.Err != nil {
		return true
	}
	n := len(r.Results)
	return n > 0 && r.Results[n-1].Error != ""
}

// AssertionResult is the outcome of a single assertion.
type AssertionResult struct {
	Assertion Assertion `json:"assertion"`
	Passed    bool      `json:"passed"`
	Detail    string    `json:"detail,omitempty"`
}

// ControlResult aggregates the assertion results of one control.
type ControlResult struct {
	ControlName      string            `json:"control_name"`
	AssertionResults []AssertionResult `json:"assertion_results"`
	OverallPassed    bool              `json:"overall_passed"`
}

// NewControlResult builds a ControlResult whose OverallPassed is the logical
// AND of results. A control without assertions passes.
func NewControlResult(name string, results []AssertionResult) ControlResult {
	passed := true
	for _, r := range results {
		if !r.Passed {
			passed = false
			break
		}
	}
	return ControlResult{
		ControlName:      name,
		AssertionResults: results,
		OverallPassed:    passed,
	}
}

// Summary counts controls by outcome.
type Summary struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// AuditReport is the result of auditing one control group.
type AuditReport struct {
	ControlGroupName string          `json:"control_group_name"`
	ControlResults   []ControlResult `json:"control_results"`
	Summary          Summary         `json:"summary"`
}

// NewAuditReport builds an AuditReport and computes its summary.
func NewAuditReport(group string, results []ControlResult) AuditReport {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.OverallPassed {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	return AuditReport{
		ControlGroupName: group,
		ControlResults:   results,
		Summary:          s,
	}
}

// Passed reports whether every control in the group passed.
func (r AuditReport) Passed() bool {
	return r.Summary.Failed == 0
}

// AuditRun is the envelope persisted for one audit invocation.
type AuditRun struct {
	RunID      string        `json:"run_id"`
	Host       string        `json:"host,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Reports    []AuditReport `json:"reports"`
}

// Passed reports whether every control of every group passed.
func (r *AuditRun) Passed() bool {
	for _, rep := range r.Reports {
		if !rep.Passed() {
			return false
		}
	}
	return true
}

// Totals sums the summaries of all reports.
func (r *AuditRun) Totals() Summary {
	var s Summary
	for _, rep := range r.Reports {
		s.Total += rep.Summary.Total
		s.Passed += rep.Summary.Passed
		s.Failed += rep.Summary.Failed
	}
	return s
}

// RunKind tells stored runs apart.
type RunKind string

const (
	RunConverge RunKind = "converge"
	RunAudit    RunKind = "audit"
)

// RunRecord is what report stores persist. Exactly one of Convergence and
// Audit is set, matching Kind, unless the record is Sealed.
type RunRecord struct {
	ID          string             `json:"id"`
	Kind        RunKind            `json:"kind"`
	CreatedAt   time.Time          `json:"created_at"`
	Convergence *ConvergenceReport `json:"convergence,omitempty"`
	Audit       *AuditRun          `json:"audit,omitempty"`

	// Sealed holds the encrypted record when the store seals reports at rest.
	// Neither Convergence nor Audit is set then.
	Sealed []byte `json:"sealed,omitempty"`
}

// Passed reports the overall outcome of the stored run.
func (r *RunRecord) Passed() bool {
	switch r.Kind {
	case RunConverge:
		return r.Convergence != nil && !r.Convergence.Failed()
	case RunAudit:
		return r.Audit != nil && r.Audit.Passed()
	}
	return false
}
