package domain

import (
	"fmt"
	"strings"
)

// ResourceKind identifies the variant of a resource declaration.
type ResourceKind string

const (
	KindPackage ResourceKind = "package"
	KindService ResourceKind = "service"
	KindFile    ResourceKind = "file"
)

// Resource is a declared piece of desired host state.
// Implementations are immutable value types: Package, Service and File.
type Resource interface {
	// Kind returns the variant tag.
	Kind() ResourceKind
	// Identity returns the key that makes the declaration unique within its kind
	// (package name, service name, file path).
	Identity() string
}

// Package declares that a package must be installed.
type Package struct {
	Name string `json:"name"`
}

func (p Package) Kind() ResourceKind { return KindPackage }
func (p Package) Identity() string   { return p.Name }

// ServiceAction is a lifecycle transition requested for a service.
type ServiceAction string

const (
	ActionStart   ServiceAction = "start"
	ActionStop    ServiceAction = "stop"
	ActionEnable  ServiceAction = "enable"
	ActionDisable ServiceAction = "disable"
)

// ParseServiceAction converts a raw action name into a ServiceAction.
func ParseServiceAction(raw string) (ServiceAction, error) {
	switch a := ServiceAction(strings.ToLower(strings.TrimSpace(raw))); a {
	case ActionStart, ActionStop, ActionEnable, ActionDisable:
		return a, nil
	default:
		return "", fmt.Errorf("unknown service action %q", raw)
	}
}

// Opposite returns the action that undoes a.
func (a ServiceAction) Opposite() ServiceAction {
	switch a {
	case ActionStart:
		return ActionStop
	case ActionStop:
		return ActionStart
	case ActionEnable:
		return ActionDisable
	case ActionDisable:
		return ActionEnable
	}
	return ""
}

// Service declares the desired running/enabled state of a service.
// Actions is a set: duplicates are dropped at load time and the order is the
// order the actions are applied in.
type Service struct {
	Name    string          `json:"name"`
	Actions []ServiceAction `json:"actions"`
}

func (s Service) Kind() ResourceKind { return KindService }
func (s Service) Identity() string   { return s.Name }

// File declares content and ownership of a file.
// Nil fields are left untouched.
type File struct {
	Path    string  `json:"path"`
	Content *string `json:"content,omitempty"`
	Owner   *string `json:"owner,omitempty"`
	Group   *string `json:"group,omitempty"`
}

func (f File) Kind() ResourceKind { return KindFile }
func (f File) Identity() string   { return f.Path }

// FileWrite carries the fields a WriteFile call must change.
// Nil fields are not written. Writing to a missing file creates it.
type FileWrite struct {
	Content *string
	Owner   *string
	Group   *string
}

// Empty reports whether the write would change nothing.
func (w FileWrite) Empty() bool {
	return w.Content == nil && w.Owner == nil && w.Group == nil
}

// Ptr returns a pointer to v. Handy for optional File fields.
func Ptr[T any](v T) *T {
	return &v
}

// ResourceKey returns the (kind, identity) pair of r as a single string.
func ResourceKey(r Resource) string {
	return string(r.Kind()) + "[" + r.Identity() + "]"
}

// Dedupe enforces one declaration per (kind, identity).
// A later declaration overwrites an earlier one and takes its slot, so the
// order of first appearance is kept.
func Dedupe(resources []Resource) []Resource {
	index := make(map[string]int, len(resources))
	out := make([]Resource, 0, len(resources))
	for _, r := range resources {
		key := ResourceKey(r)
		if i, ok := index[key]; ok {
			out[i] = r
			continue
		}
		index[key] = len(out)
		out = append(out, r)
	}
	return out
}
