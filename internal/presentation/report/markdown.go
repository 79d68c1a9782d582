package report

import (
	"fmt"
	"strings"

	"github.com/aretw0/steward/pkg/domain"
)

// AuditMarkdown renders an audit run as a Markdown document with one table
// per control group.
func AuditMarkdown(run *domain.AuditRun) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Audit run `%s`\n\n", run.RunID)

	for _, rep := range run.Reports {
		fmt.Fprintf(&b, "## %s\n\n", rep.ControlGroupName)
		b.WriteString("| Control | Assertion | Result | Detail |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, cr := range rep.ControlResults {
			for _, ar := range cr.AssertionResults {
				fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
					escapeCell(cr.ControlName),
					escapeCell(ar.Assertion.String()),
					verdict(ar.Passed),
					escapeCell(ar.Detail),
				)
			}
		}
		fmt.Fprintf(&b, "\n**%s**\n\n", summaryLine(rep.Summary))
	}

	fmt.Fprintf(&b, "**Overall: %s** (%s)\n", verdict(run.Passed()), summaryLine(run.Totals()))
	return b.String()
}

// ConvergenceMarkdown renders a convergence report as a Markdown table.
func ConvergenceMarkdown(report *domain.ConvergenceReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Convergence run `%s`\n\n", report.RunID)
	if report.DryRun {
		b.WriteString("_Dry run: nothing was changed._\n\n")
	}
	b.WriteString("| Resource | Changed | Changes |\n")
	b.WriteString("|---|---|---|\n")
	for _, res := range report.Results {
		var changes []string
		for _, ch := range res.Changes {
			if ch.Changed {
				changes = append(changes, changeLine(ch))
			}
		}
		if res.Error != "" {
			changes = append(changes, "error: "+res.Error)
		}
		fmt.Fprintf(&b, "| %s[%s] | %t | %s |\n",
			res.Kind, escapeCell(res.Identity), res.Changed, escapeCell(strings.Join(changes, "; ")))
	}
	fmt.Fprintf(&b, "\n**%d resources, %d changed**\n", len(report.Results), report.ChangedCount())
	return b.String()
}

func verdict(passed bool) string {
	if passed {
		return "PASS"
	}
	return "FAIL"
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
