package domain

import "fmt"

// AssertionKind identifies the variant of an assertion.
type AssertionKind string

const (
	AssertServiceRunning AssertionKind = "service_running"
	AssertServiceEnabled AssertionKind = "service_enabled"
	AssertFileOwnedBy    AssertionKind = "file_owned_by"
)

// Assertion is a single boolean check against host facts.
// Negated flips the expected polarity ("should_not").
type Assertion struct {
	Kind    AssertionKind `json:"kind"`
	Service string        `json:"service,omitempty"`
	Path    string        `json:"path,omitempty"`
	User    string        `json:"user,omitempty"`
	Negated bool          `json:"negated,omitempty"`
}

// ServiceRunning asserts that the named service is running.
func ServiceRunning(name string) Assertion {
	return Assertion{Kind: AssertServiceRunning, Service: name}
}

// ServiceEnabled asserts that the named service starts at boot.
func ServiceEnabled(name string) Assertion {
	return Assertion{Kind: AssertServiceEnabled, Service: name}
}

// FileOwnedBy asserts the owner of path. With negated set it asserts the
// owner is anyone but user.
func FileOwnedBy(path, user string, negated bool) Assertion {
	return Assertion{Kind: AssertFileOwnedBy, Path: path, User: user, Negated: negated}
}

// Not returns a copy of a with the polarity flipped.
func (a Assertion) Not() Assertion {
	a.Negated = !a.Negated
	return a
}

// String renders the assertion the way it reads in a report.
func (a Assertion) String() string {
	should := "should"
	if a.Negated {
		should = "should not"
	}
	switch a.Kind {
	case AssertServiceRunning:
		return fmt.Sprintf("service %q %s be running", a.Service, should)
	case AssertServiceEnabled:
		return fmt.Sprintf("service %q %s be enabled", a.Service, should)
	case AssertFileOwnedBy:
		return fmt.Sprintf("file %q %s be owned by %q", a.Path, should, a.User)
	default:
		return fmt.Sprintf("%s %s hold", a.Kind, should)
	}
}

// Control is a named compliance check made of one or more assertions.
type Control struct {
	Name       string      `json:"name"`
	Assertions []Assertion `json:"assertions"`
}

// ControlGroup is a named, ordered set of controls.
type ControlGroup struct {
	Name     string    `json:"name"`
	Controls []Control `json:"controls"`
}

// AssertionCount returns the number of assertions across all controls.
func (g ControlGroup) AssertionCount() int {
	n := 0
	for _, c := range g.Controls {
		n += len(c.Assertions)
	}
	return n
}
