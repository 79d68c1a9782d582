// Package tui holds terminal styling helpers: color, markdown rendering and
// the banner.
package tui

import (
	"io"
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Styler colors report fragments. Writers that are not terminals get plain
// text.
type Styler struct {
	profile termenv.Profile
}

// NewStyler picks a color profile for w.
func NewStyler(w io.Writer) Styler {
	if IsTerminal(w) {
		return Styler{profile: termenv.ColorProfile()}
	}
	return Styler{profile: termenv.Ascii}
}

// PlainStyler never emits escape sequences.
func PlainStyler() Styler {
	return Styler{profile: termenv.Ascii}
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (s Styler) Pass(text string) string {
	return s.profile.String(text).Foreground(s.profile.Color("#22c55e")).Bold().String()
}

func (s Styler) Fail(text string) string {
	return s.profile.String(text).Foreground(s.profile.Color("#ef4444")).Bold().String()
}

func (s Styler) Changed(text string) string {
	return s.profile.String(text).Foreground(s.profile.Color("#eab308")).String()
}

func (s Styler) Muted(text string) string {
	return s.profile.String(text).Foreground(s.profile.Color("#6b7280")).String()
}

func (s Styler) Bold(text string) string {
	return s.profile.String(text).Bold().String()
}
