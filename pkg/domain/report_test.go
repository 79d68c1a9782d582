package domain

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewControlResult(t *testing.T) {
	pass := AssertionResult{Assertion: ServiceRunning("ntp"), Passed: true}
	fail := AssertionResult{Assertion: ServiceEnabled("ntp"), Passed: false}

	assert.True(t, NewControlResult("c", []AssertionResult{pass, pass}).OverallPassed)
	assert.False(t, NewControlResult("c", []AssertionResult{pass, fail}).OverallPassed)
	assert.True(t, NewControlResult("empty", nil).OverallPassed)
}

func TestNewAuditReport(t *testing.T) {
	rep := NewAuditReport("neh - ntp", []ControlResult{
		{ControlName: "a", OverallPassed: true},
		{ControlName: "b", OverallPassed: false},
		{ControlName: "c", OverallPassed: true},
	})
	assert.Equal(t, Summary{Total: 3, Passed: 2, Failed: 1}, rep.Summary)
	assert.False(t, rep.Passed())

	run := &AuditRun{Reports: []AuditReport{rep, NewAuditReport("g", []ControlResult{{OverallPassed: true}})}}
	assert.Equal(t, Summary{Total: 4, Passed: 3, Failed: 1}, run.Totals())
	assert.False(t, run.Passed())
	assert.True(t, (&AuditRun{}).Passed())
}

func TestAssertion_String(t *testing.T) {
	assert.Equal(t, `service "ntp" should be running`, ServiceRunning("ntp").String())
	assert.Equal(t, `service "ntp" should not be enabled`, ServiceEnabled("ntp").Not().String())
	assert.Equal(t, `file "/x" should not be owned by "root"`, FileOwnedBy("/x", "root", true).String())
	assert.Equal(t, FileOwnedBy("/x", "root", false), FileOwnedBy("/x", "root", true).Not())
}

func TestConvergenceReport(t *testing.T) {
	r := &ConvergenceReport{Results: []ResourceResult{{Changed: true}, {Changed: false}, {Changed: true}}}
	assert.Equal(t, 2, r.ChangedCount())
	assert.False(t, r.Failed())

	r.Results = append(r.Results, ResourceResult{Error: "boom"})
	assert.True(t, r.Failed(), "a stored report is judged by its last result")

	assert.True(t, (&ConvergenceReport{Err: &ResourceApplyError{}}).Failed())
}

func TestRunRecord_Passed(t *testing.T) {
	assert.True(t, (&RunRecord{Kind: RunConverge, Convergence: &ConvergenceReport{}}).Passed())
	assert.False(t, (&RunRecord{Kind: RunAudit}).Passed(), "missing report never passes")
	assert.False(t, (&RunRecord{Kind: RunAudit, Audit: &AuditRun{Reports: []AuditReport{
		NewAuditReport("g", []ControlResult{{OverallPassed: false}}),
	}}}).Passed())
	assert.False(t, (&RunRecord{Kind: "other"}).Passed())
}

func TestLifecycleHooks_Merge(t *testing.T) {
	var calls []string
	a := LifecycleHooks{OnRunStart: func(context.Context, *RunEvent) { calls = append(calls, "a") }}
	b := LifecycleHooks{
		OnRunStart:  func(context.Context, *RunEvent) { calls = append(calls, "b") },
		OnRunFinish: func(context.Context, *RunEvent) { calls = append(calls, "b-finish") },
	}

	m := a.Merge(b)
	m.OnRunStart(context.Background(), &RunEvent{})
	m.OnRunFinish(context.Background(), &RunEvent{})
	assert.Nil(t, m.OnResourceApplied)
	assert.Equal(t, []string{"a", "b", "b-finish"}, calls)
}

func TestErrors(t *testing.T) {
	cause := fs.ErrPermission
	hae := NewHostAccessError(OpWriteFile, "/etc/motd", cause)
	apply := &ResourceApplyError{Kind: KindFile, Identity: "/etc/motd", Cause: hae}

	assert.Equal(t, `apply file[/etc/motd]: host access write_file "/etc/motd": permission denied`, apply.Error())
	assert.ErrorIs(t, apply, fs.ErrPermission)
	assert.True(t, IsHostAccess(fmt.Errorf("wrapped: %w", apply)))
	assert.False(t, IsHostAccess(errors.New("plain")))

	cases := map[string]*ConfigParseError{
		"config a.yaml: resources[0].kind: bad": {Path: "a.yaml", Field: "resources[0].kind", Cause: errors.New("bad")},
		"config a.yaml: bad":                    {Path: "a.yaml", Cause: errors.New("bad")},
		"config: resources: bad":                {Field: "resources", Cause: errors.New("bad")},
		"config: bad":                           {Cause: errors.New("bad")},
	}
	for want, err := range cases {
		assert.EqualError(t, err, want)
	}
}
