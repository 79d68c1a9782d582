package ports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/steward/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunReportStoreContract runs a suite of tests to verify that a ReportStore
// implementation adheres to the defined interface contract.
func RunReportStoreContract(t *testing.T, store ReportStore) {
	ctx := context.Background()
	runID := "contract-run-" + time.Now().Format("20060102150405")

	auditRecord := func(id string) *domain.RunRecord {
		return &domain.RunRecord{
			ID:        id,
			Kind:      domain.RunAudit,
			CreatedAt: time.Now().UTC(),
			Audit: &domain.AuditRun{
				RunID: id,
				Reports: []domain.AuditReport{
					domain.NewAuditReport("neh - ntp", []domain.ControlResult{
						domain.NewControlResult("ntp is running and enabled", []domain.AssertionResult{
							{Assertion: domain.ServiceRunning("ntp"), Passed: false, Detail: "service is not running"},
							{Assertion: domain.ServiceEnabled("ntp"), Passed: true},
						}),
					}),
				},
			},
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		err := store.Save(ctx, auditRecord(runID))
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, domain.RunAudit, loaded.Kind)
		require.NotNil(t, loaded.Audit)
		require.Len(t, loaded.Audit.Reports, 1)
		assert.Equal(t, "neh - ntp", loaded.Audit.Reports[0].ControlGroupName)
		assert.Equal(t, 1, loaded.Audit.Reports[0].Summary.Failed)
		assert.False(t, loaded.Passed())
	})

	t.Run("Save Convergence", func(t *testing.T) {
		id := runID + "-converge"
		defer func() { _ = store.Delete(ctx, id) }()

		rec := &domain.RunRecord{
			ID:        id,
			Kind:      domain.RunConverge,
			CreatedAt: time.Now().UTC(),
			Convergence: &domain.ConvergenceReport{
				RunID: id,
				Results: []domain.ResourceResult{
					{Kind: domain.KindPackage, Identity: "apache2", Changed: true,
						Changes: []domain.Change{{Field: "installed", From: "false", To: "true", Changed: true}}},
				},
			},
		}
		require.NoError(t, store.Save(ctx, rec))

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, loaded.Convergence)
		assert.Equal(t, 1, loaded.Convergence.ChangedCount())
		assert.True(t, loaded.Passed())
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+runID)
		assert.ErrorIs(t, err, domain.ErrReportNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, auditRecord(runID)))

		err := store.Delete(ctx, runID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, runID)
		assert.ErrorIs(t, err, domain.ErrReportNotFound, "Load after Delete should return ErrReportNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := runID + "-1"
		id2 := runID + "-2"
		_ = store.Save(ctx, auditRecord(id1))
		_ = store.Save(ctx, auditRecord(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}

// FactContract names the objects RunFactProviderContract works on.
// The provider must start with Package not installed, Service stopped and
// disabled, and no file at FilePath.
type FactContract struct {
	Package  string
	Service  string
	FilePath string
	Owner    string
	Group    string
}

// RunFactProviderContract verifies that a HostFactProvider reflects its own
// mutations in subsequent queries.
func RunFactProviderContract(t *testing.T, facts HostFactProvider, c FactContract) {
	ctx := context.Background()

	t.Run("Package", func(t *testing.T) {
		installed, err := facts.IsPackageInstalled(ctx, c.Package)
		require.NoError(t, err)
		assert.False(t, installed)

		require.NoError(t, facts.InstallPackage(ctx, c.Package))

		installed, err = facts.IsPackageInstalled(ctx, c.Package)
		require.NoError(t, err)
		assert.True(t, installed)
	})

	t.Run("Service", func(t *testing.T) {
		running, err := facts.IsServiceRunning(ctx, c.Service)
		require.NoError(t, err)
		assert.False(t, running)

		require.NoError(t, facts.SetServiceState(ctx, c.Service, domain.ActionStart))
		require.NoError(t, facts.SetServiceState(ctx, c.Service, domain.ActionEnable))

		running, err = facts.IsServiceRunning(ctx, c.Service)
		require.NoError(t, err)
		assert.True(t, running)
		enabled, err := facts.IsServiceEnabled(ctx, c.Service)
		require.NoError(t, err)
		assert.True(t, enabled)

		require.NoError(t, facts.SetServiceState(ctx, c.Service, domain.ActionStop))
		require.NoError(t, facts.SetServiceState(ctx, c.Service, domain.ActionDisable))

		running, err = facts.IsServiceRunning(ctx, c.Service)
		require.NoError(t, err)
		assert.False(t, running)
		enabled, err = facts.IsServiceEnabled(ctx, c.Service)
		require.NoError(t, err)
		assert.False(t, enabled)
	})

	t.Run("File", func(t *testing.T) {
		_, err := facts.FileContent(ctx, c.FilePath)
		assert.True(t, errors.Is(err, domain.ErrNotFound), "missing file should report ErrNotFound, got %v", err)
		_, err = facts.FileOwner(ctx, c.FilePath)
		assert.True(t, errors.Is(err, domain.ErrNotFound), "missing file should report ErrNotFound, got %v", err)

		require.NoError(t, facts.WriteFile(ctx, c.FilePath, domain.FileWrite{
			Content: domain.Ptr("<h1>Hello, world!</h1>"),
			Owner:   domain.Ptr(c.Owner),
			Group:   domain.Ptr(c.Group),
		}))

		content, err := facts.FileContent(ctx, c.FilePath)
		require.NoError(t, err)
		assert.Equal(t, "<h1>Hello, world!</h1>", content)

		owner, err := facts.FileOwner(ctx, c.FilePath)
		require.NoError(t, err)
		assert.Equal(t, c.Owner, owner)

		group, err := facts.FileGroup(ctx, c.FilePath)
		require.NoError(t, err)
		assert.Equal(t, c.Group, group)

		// A partial write leaves the other fields alone.
		require.NoError(t, facts.WriteFile(ctx, c.FilePath, domain.FileWrite{Content: domain.Ptr("updated")}))
		content, err = facts.FileContent(ctx, c.FilePath)
		require.NoError(t, err)
		assert.Equal(t, "updated", content)
		owner, err = facts.FileOwner(ctx, c.FilePath)
		require.NoError(t, err)
		assert.Equal(t, c.Owner, owner)
	})
}
