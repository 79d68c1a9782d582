package tui

import (
	"fmt"
	"io"
)

// PrintBanner writes the Steward ASCII banner to w.
func PrintBanner(w io.Writer) {
	p := NewStyler(w).profile
	// Teal to green, top to bottom.
	lines := []struct{ text, color string }{
		{"  ____  _                             _ ", "#2dd4bf"},
		{" / ___|| |_ _____      ____ _ _ __ __| |", "#34d399"},
		{" \\___ \\| __/ _ \\ \\ /\\ / / _` | '__/ _` |", "#4ade80"},
		{"  ___) | ||  __/\\ V  V / (_| | | | (_| |", "#84cc16"},
		{" |____/ \\__\\___| \\_/\\_/ \\__,_|_|  \\__,_|", "#a3e635"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, p.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
