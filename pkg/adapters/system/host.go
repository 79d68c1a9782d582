// Package system implements ports.HostFactProvider for a Debian-family host
// managed by systemd.
//
// Package facts come from dpkg-query and packages are installed with apt-get.
// Service facts and transitions go through systemctl. Files are read and
// written directly; content writes are atomic.
package system

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/aretw0/steward/pkg/adapters/file"
	"github.com/aretw0/steward/pkg/adapters/process"
	"github.com/aretw0/steward/pkg/domain"
)

// Commands the host shells out to. A process.Runner given to New must have
// them registered.
const (
	CmdDpkgQuery = "dpkg-query"
	CmdAptGet    = "apt-get"
	CmdSystemctl = "systemctl"
)

// CommandRunner runs a registered command. *process.Runner satisfies it.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (process.Result, error)
}

// Host queries and mutates the machine it runs on.
type Host struct {
	runner CommandRunner
	logger *slog.Logger
	owners ownership
}

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// New creates a Host issuing commands through runner.
func New(runner CommandRunner, opts ...Option) *Host {
	h := &Host{
		runner: runner,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		owners: osOwnership{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewRunner returns a process.Runner with the host commands registered.
// Entries in overrides replace the defaults, e.g. to run systemctl via sudo.
func NewRunner(overrides map[string]process.CommandConfig, opts ...process.RunnerOption) *process.Runner {
	opts = append([]process.RunnerOption{
		process.WithEnv("DEBIAN_FRONTEND=noninteractive", "LC_ALL=C"),
		process.WithRegistry(overrides),
	}, opts...)
	r := process.NewRunner(opts...)
	r.RegisterDefault(CmdDpkgQuery, CmdAptGet, CmdSystemctl)
	return r
}

// --- Packages ---

func (h *Host) IsPackageInstalled(ctx context.Context, name string) (bool, error) {
	res, err := h.runner.Run(ctx, CmdDpkgQuery, "-W", "-f=${Status}", name)
	if err != nil {
		return false, domain.NewHostAccessError(domain.OpIsPackageInstalled, name, err)
	}
	if res.Success() {
		// e.g. "install ok installed", "deinstall ok config-files"
		return strings.HasSuffix(res.Output(), " installed"), nil
	}
	if strings.Contains(res.Stderr, "no packages found") {
		return false, nil
	}
	return false, domain.NewHostAccessError(domain.OpIsPackageInstalled, name, commandError(res))
}

func (h *Host) InstallPackage(ctx context.Context, name string) error {
	h.logger.Info("installing package", "package", name)
	res, err := h.runner.Run(ctx, CmdAptGet, "install", "-y", "-q", name)
	if err != nil {
		return domain.NewHostAccessError(domain.OpInstallPackage, name, err)
	}
	if !res.Success() {
		return domain.NewHostAccessError(domain.OpInstallPackage, name, commandError(res))
	}
	return nil
}

// --- Services ---

// systemctl prints a state word and exits non-zero when the unit is not in
// the queried state. Anything else on a failed query is a fault.
var (
	inactiveStates = []string{"inactive", "failed", "activating", "deactivating", "reloading", "unknown"}
	disabledStates = []string{"disabled", "masked", "masked-runtime", "linked", "linked-runtime", "not-found", "bad"}
)

func (h *Host) IsServiceRunning(ctx context.Context, name string) (bool, error) {
	return h.serviceState(ctx, domain.OpIsServiceRunning, "is-active", name, inactiveStates)
}

func (h *Host) IsServiceEnabled(ctx context.Context, name string) (bool, error) {
	return h.serviceState(ctx, domain.OpIsServiceEnabled, "is-enabled", name, disabledStates)
}

func (h *Host) serviceState(ctx context.Context, op, verb, name string, negative []string) (bool, error) {
	res, err := h.runner.Run(ctx, CmdSystemctl, verb, name)
	if err != nil {
		return false, domain.NewHostAccessError(op, name, err)
	}
	if res.Success() {
		return true, nil
	}
	state := res.Output()
	for _, s := range negative {
		if state == s {
			return false, nil
		}
	}
	// Older systemd versions report unknown units on stderr only.
	if strings.Contains(res.Stderr, "No such file or directory") {
		return false, nil
	}
	return false, domain.NewHostAccessError(op, name, commandError(res))
}

func (h *Host) SetServiceState(ctx context.Context, name string, action domain.ServiceAction) error {
	switch action {
	case domain.ActionStart, domain.ActionStop, domain.ActionEnable, domain.ActionDisable:
	default:
		return domain.NewHostAccessError(domain.OpSetServiceState, name, fmt.Errorf("unsupported action %q", action))
	}
	h.logger.Info("changing service state", "service", name, "action", action)
	res, err := h.runner.Run(ctx, CmdSystemctl, string(action), name)
	if err != nil {
		return domain.NewHostAccessError(domain.OpSetServiceState, name, err)
	}
	if !res.Success() {
		return domain.NewHostAccessError(domain.OpSetServiceState, name, commandError(res))
	}
	return nil
}

// --- Files ---

func (h *Host) FileOwner(ctx context.Context, path string) (string, error) {
	uid, _, err := h.stat(ctx, domain.OpFileOwner, path)
	if err != nil {
		return "", err
	}
	name, err := h.owners.userName(uid)
	if err != nil {
		return "", domain.NewHostAccessError(domain.OpFileOwner, path, err)
	}
	return name, nil
}

func (h *Host) FileGroup(ctx context.Context, path string) (string, error) {
	_, gid, err := h.stat(ctx, domain.OpFileGroup, path)
	if err != nil {
		return "", err
	}
	name, err := h.owners.groupName(gid)
	if err != nil {
		return "", domain.NewHostAccessError(domain.OpFileGroup, path, err)
	}
	return name, nil
}

func (h *Host) FileContent(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", domain.NewHostAccessError(domain.OpFileContent, path, err)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%s: %w", path, domain.ErrNotFound)
	}
	if err != nil {
		return "", domain.NewHostAccessError(domain.OpFileContent, path, err)
	}
	return string(data), nil
}

func (h *Host) stat(ctx context.Context, op, path string) (uint32, uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, domain.NewHostAccessError(op, path, err)
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, 0, fmt.Errorf("%s: %w", path, domain.ErrNotFound)
	}
	if err != nil {
		return 0, 0, domain.NewHostAccessError(op, path, err)
	}
	uid, gid, err := h.owners.ids(info)
	if err != nil {
		return 0, 0, domain.NewHostAccessError(op, path, err)
	}
	return uid, gid, nil
}

// WriteFile writes content first, then ownership. A file created without an
// explicit owner or group belongs to the steward process.
func (h *Host) WriteFile(ctx context.Context, path string, w domain.FileWrite) error {
	if err := ctx.Err(); err != nil {
		return domain.NewHostAccessError(domain.OpWriteFile, path, err)
	}

	if w.Content != nil {
		if err := file.WriteAtomic(path, []byte(*w.Content), 0o644); err != nil {
			return domain.NewHostAccessError(domain.OpWriteFile, path, err)
		}
	} else if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		// Ownership only: create an empty file to own.
		if err := file.WriteAtomic(path, nil, 0o644); err != nil {
			return domain.NewHostAccessError(domain.OpWriteFile, path, err)
		}
	}

	if w.Owner == nil && w.Group == nil {
		return nil
	}
	uid, gid := -1, -1
	if w.Owner != nil {
		id, err := h.owners.userID(*w.Owner)
		if err != nil {
			return domain.NewHostAccessError(domain.OpWriteFile, path, err)
		}
		uid = id
	}
	if w.Group != nil {
		id, err := h.owners.groupID(*w.Group)
		if err != nil {
			return domain.NewHostAccessError(domain.OpWriteFile, path, err)
		}
		gid = id
	}
	if err := os.Chown(path, uid, gid); err != nil {
		return domain.NewHostAccessError(domain.OpWriteFile, path, err)
	}
	return nil
}

func commandError(res process.Result) error {
	msg := strings.TrimSpace(res.Stderr)
	if msg == "" {
		msg = res.Output()
	}
	if msg == "" {
		return fmt.Errorf("exit status %d", res.ExitCode)
	}
	return fmt.Errorf("exit status %d: %s", res.ExitCode, msg)
}
