package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/aretw0/steward/pkg/domain"
	"gopkg.in/yaml.v3"
)

// ServiceState is the running/enabled pair of a simulated service.
type ServiceState struct {
	Running bool `yaml:"running" json:"running"`
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// FileState is a simulated file.
type FileState struct {
	Content string `yaml:"content" json:"content"`
	Owner   string `yaml:"owner" json:"owner"`
	Group   string `yaml:"group" json:"group"`
}

// Snapshot is the full state of a simulated host.
// It is also the format of the facts file accepted by `--simulate`.
type Snapshot struct {
	Packages []string                `yaml:"packages" json:"packages"`
	Services map[string]ServiceState `yaml:"services" json:"services"`
	Files    map[string]FileState    `yaml:"files" json:"files"`
}

// Call records one invocation of the fact provider.
type Call struct {
	Op     string
	Target string
}

// Host implements ports.HostFactProvider entirely in memory.
// It starts bare (nothing installed, no services, no files) unless seeded.
// Safe for concurrent use.
type Host struct {
	mu       sync.Mutex
	packages map[string]bool
	services map[string]ServiceState
	files    map[string]FileState
	failures map[Call]error
	calls    []Call

	// DefaultOwner and DefaultGroup are assigned to files created by WriteFile
	// without explicit ownership.
	DefaultOwner string
	DefaultGroup string
}

// NewHost creates a bare in-memory host.
func NewHost() *Host {
	return &Host{
		packages:     make(map[string]bool),
		services:     make(map[string]ServiceState),
		files:        make(map[string]FileState),
		failures:     make(map[Call]error),
		DefaultOwner: "root",
		DefaultGroup: "root",
	}
}

// NewHostFromSnapshot creates a host seeded with snap.
func NewHostFromSnapshot(snap Snapshot) *Host {
	h := NewHost()
	for _, p := range snap.Packages {
		h.packages[p] = true
	}
	for name, st := range snap.Services {
		h.services[name] = st
	}
	for path, f := range snap.Files {
		h.files[path] = f
	}
	return h
}

// LoadSnapshot reads a YAML facts file.
func LoadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read facts file: %w", err)
	}
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to parse facts file %s: %w", path, err)
	}
	return snap, nil
}

// Snapshot returns a copy of the current host state.
func (h *Host) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	snap := Snapshot{
		Packages: make([]string, 0, len(h.packages)),
		Services: make(map[string]ServiceState, len(h.services)),
		Files:    make(map[string]FileState, len(h.files)),
	}
	for p := range h.packages {
		snap.Packages = append(snap.Packages, p)
	}
	sort.Strings(snap.Packages)
	for k, v := range h.services {
		snap.Services[k] = v
	}
	for k, v := range h.files {
		snap.Files[k] = v
	}
	return snap
}

// Fail makes every subsequent call of op on target return cause wrapped in a
// HostAccessError. A nil cause clears the injected failure.
func (h *Host) Fail(op, target string, cause error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := Call{Op: op, Target: target}
	if cause == nil {
		delete(h.failures, key)
		return
	}
	h.failures[key] = cause
}

// Calls returns every call made so far, in order.
func (h *Host) Calls() []Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Call, len(h.calls))
	copy(out, h.calls)
	return out
}

// Touched reports whether any call was made about target.
func (h *Host) Touched(target string) bool {
	for _, c := range h.Calls() {
		if c.Target == target {
			return true
		}
	}
	return false
}

// Mutations returns the mutating calls made so far, in order.
func (h *Host) Mutations() []Call {
	var out []Call
	for _, c := range h.Calls() {
		switch c.Op {
		case domain.OpInstallPackage, domain.OpSetServiceState, domain.OpWriteFile:
			out = append(out, c)
		}
	}
	return out
}

// SetService forces the state of a service, bypassing the call journal.
func (h *Host) SetService(name string, st ServiceState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.services[name] = st
}

// SetFile forces the state of a file, bypassing the call journal.
func (h *Host) SetFile(path string, f FileState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.files[path] = f
}

// record must be called with h.mu held.
func (h *Host) record(ctx context.Context, op, target string) error {
	key := Call{Op: op, Target: target}
	h.calls = append(h.calls, key)
	if err := ctx.Err(); err != nil {
		return domain.NewHostAccessError(op, target, err)
	}
	if cause, ok := h.failures[key]; ok {
		return domain.NewHostAccessError(op, target, cause)
	}
	return nil
}

func (h *Host) IsPackageInstalled(ctx context.Context, name string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.record(ctx, domain.OpIsPackageInstalled, name); err != nil {
		return false, err
	}
	return h.packages[name], nil
}

func (h *Host) IsServiceRunning(ctx context.Context, name string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.record(ctx, domain.OpIsServiceRunning, name); err != nil {
		return false, err
	}
	return h.services[name].Running, nil
}

func (h *Host) IsServiceEnabled(ctx context.Context, name string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.record(ctx, domain.OpIsServiceEnabled, name); err != nil {
		return false, err
	}
	return h.services[name].Enabled, nil
}

func (h *Host) FileOwner(ctx context.Context, path string) (string, error) {
	f, err := h.file(ctx, domain.OpFileOwner, path)
	return f.Owner, err
}

func (h *Host) FileGroup(ctx context.Context, path string) (string, error) {
	f, err := h.file(ctx, domain.OpFileGroup, path)
	return f.Group, err
}

func (h *Host) FileContent(ctx context.Context, path string) (string, error) {
	f, err := h.file(ctx, domain.OpFileContent, path)
	return f.Content, err
}

func (h *Host) file(ctx context.Context, op, path string) (FileState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.record(ctx, op, path); err != nil {
		return FileState{}, err
	}
	f, ok := h.files[path]
	if !ok {
		return FileState{}, fmt.Errorf("%s: %w", path, domain.ErrNotFound)
	}
	return f, nil
}

func (h *Host) InstallPackage(ctx context.Context, name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.record(ctx, domain.OpInstallPackage, name); err != nil {
		return err
	}
	h.packages[name] = true
	return nil
}

func (h *Host) SetServiceState(ctx context.Context, name string, action domain.ServiceAction) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.record(ctx, domain.OpSetServiceState, name); err != nil {
		return err
	}
	st := h.services[name]
	switch action {
	case domain.ActionStart:
		st.Running = true
	case domain.ActionStop:
		st.Running = false
	case domain.ActionEnable:
		st.Enabled = true
	case domain.ActionDisable:
		st.Enabled = false
	default:
		return domain.NewHostAccessError(domain.OpSetServiceState, name, fmt.Errorf("unsupported action %q", action))
	}
	h.services[name] = st
	return nil
}

func (h *Host) WriteFile(ctx context.Context, path string, w domain.FileWrite) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.record(ctx, domain.OpWriteFile, path); err != nil {
		return err
	}
	f, ok := h.files[path]
	if !ok {
		f = FileState{Owner: h.DefaultOwner, Group: h.DefaultGroup}
	}
	if w.Content != nil {
		f.Content = *w.Content
	}
	if w.Owner != nil {
		f.Owner = *w.Owner
	}
	if w.Group != nil {
		f.Group = *w.Group
	}
	h.files[path] = f
	return nil
}
