package ports

import (
	"context"

	"github.com/aretw0/steward/pkg/domain"
)

// HostFactProvider is the boundary over real host introspection and mutation.
// Both the converger and the auditor consume it; neither knows how the facts
// are obtained (OS calls, shell invocations, an in-memory fake).
//
// Every method may fail with a *domain.HostAccessError when the fact cannot be
// obtained or the mutation cannot be carried out. The File* queries return
// domain.ErrNotFound (wrapped or bare) when the path does not exist.
type HostFactProvider interface {
	HostFacts
	HostMutator
}

// HostFacts is the read-only half of HostFactProvider. The auditor only needs this.
type HostFacts interface {
	IsPackageInstalled(ctx context.Context, name string) (bool, error)
	IsServiceRunning(ctx context.Context, name string) (bool, error)
	IsServiceEnabled(ctx context.Context, name string) (bool, error)
	FileOwner(ctx context.Context, path string) (string, error)
	FileGroup(ctx context.Context, path string) (string, error)
	FileContent(ctx context.Context, path string) (string, error)
}

// HostMutator is the mutating half of HostFactProvider.
type HostMutator interface {
	InstallPackage(ctx context.Context, name string) error
	SetServiceState(ctx context.Context, name string, action domain.ServiceAction) error
	// WriteFile applies the non-nil fields of w, creating the file if needed.
	WriteFile(ctx context.Context, path string, w domain.FileWrite) error
}
