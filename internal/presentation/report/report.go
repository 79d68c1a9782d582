// Package report renders converge and audit results for humans and tools.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/steward/internal/presentation/tui"
	"github.com/aretw0/steward/pkg/domain"
)

// Format selects the output encoding.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat validates a --format value.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(raw)); f {
	case "", FormatText:
		return FormatText, nil
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown format %q (want text, markdown or json)", raw)
}

// Printer writes reports to one destination.
type Printer struct {
	w        io.Writer
	format   Format
	style    tui.Styler
	markdown func(string) (string, error)
}

// Option configures a Printer.
type Option func(*Printer)

// WithStyler overrides the styler picked from the writer.
func WithStyler(s tui.Styler) Option {
	return func(p *Printer) {
		p.style = s
	}
}

// WithMarkdownRenderer sets how markdown is turned into terminal output.
// Without it markdown is written raw.
func WithMarkdownRenderer(render func(string) (string, error)) Option {
	return func(p *Printer) {
		p.markdown = render
	}
}

// NewPrinter creates a Printer. Terminals get colors and rendered markdown.
func NewPrinter(w io.Writer, format Format, opts ...Option) *Printer {
	p := &Printer{
		w:      w,
		format: format,
		style:  tui.NewStyler(w),
	}
	if format == FormatMarkdown && tui.IsTerminal(w) {
		p.markdown = tui.NewRenderer()
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Audit prints an audit run.
func (p *Printer) Audit(run *domain.AuditRun) error {
	switch p.format {
	case FormatJSON:
		return p.json(run)
	case FormatMarkdown:
		return p.renderMarkdown(AuditMarkdown(run))
	}
	_, err := io.WriteString(p.w, p.auditText(run))
	return err
}

// Convergence prints a convergence report.
func (p *Printer) Convergence(report *domain.ConvergenceReport) error {
	switch p.format {
	case FormatJSON:
		return p.json(report)
	case FormatMarkdown:
		return p.renderMarkdown(ConvergenceMarkdown(report))
	}
	_, err := io.WriteString(p.w, p.convergenceText(report))
	return err
}

// Record prints a stored run of either kind.
func (p *Printer) Record(rec *domain.RunRecord) error {
	if p.format == FormatJSON {
		return p.json(rec)
	}
	switch {
	case rec.Audit != nil:
		return p.Audit(rec.Audit)
	case rec.Convergence != nil:
		return p.Convergence(rec.Convergence)
	}
	return fmt.Errorf("run %s has no report", rec.ID)
}

// Records prints a one-line summary per stored run.
func (p *Printer) Records(records []*domain.RunRecord) error {
	if p.format == FormatJSON {
		return p.json(records)
	}
	var b strings.Builder
	for _, rec := range records {
		status := p.style.Pass("PASS")
		if !rec.Passed() {
			status = p.style.Fail("FAIL")
		}
		fmt.Fprintf(&b, "%s  %-8s  %s  %s\n", rec.ID, rec.Kind, rec.CreatedAt.Format("2006-01-02 15:04:05"), status)
	}
	_, err := io.WriteString(p.w, b.String())
	return err
}

func (p *Printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *Printer) renderMarkdown(md string) error {
	out := md
	if p.markdown != nil {
		rendered, err := p.markdown(md)
		if err != nil {
			return fmt.Errorf("failed to render markdown: %w", err)
		}
		out = rendered
	}
	_, err := io.WriteString(p.w, out)
	return err
}

func (p *Printer) auditText(run *domain.AuditRun) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", p.style.Bold("Audit run"), run.RunID)

	for _, rep := range run.Reports {
		fmt.Fprintf(&b, "\n%s\n", p.style.Bold(rep.ControlGroupName))
		for _, cr := range rep.ControlResults {
			fmt.Fprintf(&b, "  %s %s\n", p.status(cr.OverallPassed), cr.ControlName)
			for _, ar := range cr.AssertionResults {
				line := ar.Assertion.String()
				if ar.Detail != "" {
					line += ": " + ar.Detail
				}
				mark := p.style.Pass("ok  ")
				if !ar.Passed {
					mark = p.style.Fail("fail")
				}
				fmt.Fprintf(&b, "         %s %s\n", mark, line)
			}
		}
		fmt.Fprintf(&b, "  %s\n", p.style.Muted(summaryLine(rep.Summary)))
	}

	totals := run.Totals()
	fmt.Fprintf(&b, "\n%s %s\n", p.status(run.Passed()), summaryLine(totals))
	return b.String()
}

func (p *Printer) convergenceText(report *domain.ConvergenceReport) string {
	var b strings.Builder
	title := "Convergence run"
	if report.DryRun {
		title = "Convergence run (dry run)"
	}
	fmt.Fprintf(&b, "%s %s\n\n", p.style.Bold(title), report.RunID)

	for _, res := range report.Results {
		var tag string
		switch {
		case res.Error != "":
			tag = p.style.Fail("FAILED ")
		case res.Changed:
			tag = p.style.Changed("CHANGED")
		default:
			tag = p.style.Muted("OK     ")
		}
		fmt.Fprintf(&b, "  %s %s[%s]\n", tag, res.Kind, res.Identity)
		for _, ch := range res.Changes {
			if !ch.Changed {
				continue
			}
			fmt.Fprintf(&b, "          %s\n", changeLine(ch))
		}
		if res.Error != "" {
			fmt.Fprintf(&b, "          %s\n", p.style.Fail(res.Error))
		}
	}

	status := p.style.Pass("PASS")
	if report.Failed() {
		status = p.style.Fail("FAIL")
	}
	fmt.Fprintf(&b, "\n%s %d resources, %d changed\n", status, len(report.Results), report.ChangedCount())
	return b.String()
}

func (p *Printer) status(passed bool) string {
	if passed {
		return p.style.Pass("PASS")
	}
	return p.style.Fail("FAIL")
}

func summaryLine(s domain.Summary) string {
	return fmt.Sprintf("%d controls, %d passed, %d failed", s.Total, s.Passed, s.Failed)
}

func changeLine(ch domain.Change) string {
	switch {
	case ch.From == "" && ch.To == "":
		return ch.Field + " updated"
	case ch.From == "":
		return fmt.Sprintf("%s -> %s", ch.Field, ch.To)
	}
	return fmt.Sprintf("%s: %s -> %s", ch.Field, ch.From, ch.To)
}
