package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by fact providers when a queried file does not exist.
var ErrNotFound = errors.New("not found")

// ErrReportNotFound is returned when a run ID cannot be found in a report store.
var ErrReportNotFound = errors.New("report not found")

// Fact provider operation names, used in HostAccessError.Op and by fakes
// that inject failures.
const (
	OpIsPackageInstalled = "is_package_installed"
	OpIsServiceRunning   = "is_service_running"
	OpIsServiceEnabled   = "is_service_enabled"
	OpFileOwner          = "file_owner"
	OpFileGroup          = "file_group"
	OpFileContent        = "file_content"
	OpInstallPackage     = "install_package"
	OpSetServiceState    = "set_service_state"
	OpWriteFile          = "write_file"
)

// HostAccessError wraps a fault of the underlying host (package manager,
// init system, filesystem). It means the fact could not be obtained or the
// mutation could not be carried out, as opposed to a fact being false.
type HostAccessError struct {
	Op     string // e.g. "is_service_running", "install_package"
	Target string // package, service or path the call was about
	Cause  error
}

func (e *HostAccessError) Error() string {
	return fmt.Sprintf("host access %s %q: %v", e.Op, e.Target, e.Cause)
}

func (e *HostAccessError) Unwrap() error { return e.Cause }

// NewHostAccessError is shorthand for building a HostAccessError.
func NewHostAccessError(op, target string, cause error) *HostAccessError {
	return &HostAccessError{Op: op, Target: target, Cause: cause}
}

// ResourceApplyError reports which declaration failed during convergence.
type ResourceApplyError struct {
	Kind     ResourceKind
	Identity string
	Cause    error
}

func (e *ResourceApplyError) Error() string {
	return fmt.Sprintf("apply %s[%s]: %v", e.Kind, e.Identity, e.Cause)
}

func (e *ResourceApplyError) Unwrap() error { return e.Cause }

// ConfigParseError reports a malformed input document.
// Path is the file, Field locates the offending entry (e.g. "resources[2].actions").
type ConfigParseError struct {
	Path  string
	Field string
	Cause error
}

func (e *ConfigParseError) Error() string {
	switch {
	case e.Path != "" && e.Field != "":
		return fmt.Sprintf("config %s: %s: %v", e.Path, e.Field, e.Cause)
	case e.Path != "":
		return fmt.Sprintf("config %s: %v", e.Path, e.Cause)
	case e.Field != "":
		return fmt.Sprintf("config: %s: %v", e.Field, e.Cause)
	default:
		return fmt.Sprintf("config: %v", e.Cause)
	}
}

func (e *ConfigParseError) Unwrap() error { return e.Cause }

// IsHostAccess reports whether err carries a HostAccessError.
func IsHostAccess(err error) bool {
	var hae *HostAccessError
	return errors.As(err, &hae)
}
