package tui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStyler_NonTerminalIsPlain(t *testing.T) {
	var buf bytes.Buffer
	s := NewStyler(&buf)

	assert.False(t, IsTerminal(&buf))
	assert.Equal(t, "PASS", s.Pass("PASS"))
	assert.Equal(t, "FAIL", s.Fail("FAIL"))
	assert.Equal(t, "x", s.Bold("x"))
	assert.Equal(t, "y", s.Muted("y"))
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf)

	assert.NotContains(t, buf.String(), "\x1b[")
	assert.Equal(t, 7, strings.Count(buf.String(), "\n"))
}
