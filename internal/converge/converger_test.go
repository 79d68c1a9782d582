package converge_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/steward/internal/converge"
	"github.com/aretw0/steward/pkg/adapters/memory"
	"github.com/aretw0/steward/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func webserverRecipe() []domain.Resource {
	return []domain.Resource{
		domain.Package{Name: "apache2"},
		domain.Service{Name: "apache2", Actions: []domain.ServiceAction{domain.ActionStart, domain.ActionEnable}},
		domain.File{
			Path:    "/var/www/html/index.html",
			Content: domain.Ptr("<h1>Hello, world!</h1>"),
			Owner:   domain.Ptr("root"),
			Group:   domain.Ptr("root"),
		},
	}
}

func TestConverge_WebserverOnBareHost(t *testing.T) {
	host := memory.NewHost()
	c := converge.New(host)
	ctx := context.Background()

	report, err := c.Converge(ctx, "run-1", webserverRecipe())
	require.NoError(t, err)
	require.Len(t, report.Results, 3)
	for _, r := range report.Results {
		assert.True(t, r.Changed, "%s[%s] should have changed", r.Kind, r.Identity)
		assert.Empty(t, r.Error)
	}
	assert.Equal(t, 3, report.ChangedCount())
	assert.False(t, report.Failed())

	// Per-action and per-field detail.
	svc := report.Results[1]
	require.Len(t, svc.Changes, 2)
	assert.Equal(t, "start", svc.Changes[0].Field)
	assert.Equal(t, "enable", svc.Changes[1].Field)
	file := report.Results[2]
	require.Len(t, file.Changes, 3)
	for _, ch := range file.Changes {
		assert.True(t, ch.Changed, "field %s", ch.Field)
	}

	// The host now matches the declarations.
	snap := host.Snapshot()
	assert.Equal(t, []string{"apache2"}, snap.Packages)
	assert.Equal(t, memory.ServiceState{Running: true, Enabled: true}, snap.Services["apache2"])
	assert.Equal(t, memory.FileState{Content: "<h1>Hello, world!</h1>", Owner: "root", Group: "root"},
		snap.Files["/var/www/html/index.html"])

	// Second run: nothing to do.
	again, err := c.Converge(ctx, "run-2", webserverRecipe())
	require.NoError(t, err)
	require.Len(t, again.Results, 3)
	assert.Equal(t, 0, again.ChangedCount())
	for _, r := range again.Results {
		assert.False(t, r.Changed)
		for _, ch := range r.Changes {
			assert.False(t, ch.Changed, "%s[%s].%s", r.Kind, r.Identity, ch.Field)
		}
	}
}

func TestConverge_Idempotence(t *testing.T) {
	declarations := []domain.Resource{
		domain.Package{Name: "ntp"},
		domain.Service{Name: "ntp", Actions: []domain.ServiceAction{domain.ActionStart, domain.ActionEnable}},
		domain.Service{Name: "telnet", Actions: []domain.ServiceAction{domain.ActionStop, domain.ActionDisable}},
		domain.File{Path: "/etc/motd", Content: domain.Ptr("managed")},
		domain.File{Path: "/srv/www/index.html", Owner: domain.Ptr("www-data")},
	}

	initial := map[string]memory.Snapshot{
		"bare": {},
		"converged": {
			Packages: []string{"ntp"},
			Services: map[string]memory.ServiceState{"ntp": {Running: true, Enabled: true}},
			Files: map[string]memory.FileState{
				"/etc/motd":           {Content: "managed", Owner: "root", Group: "root"},
				"/srv/www/index.html": {Owner: "www-data", Group: "www-data"},
			},
		},
		"drifted": {
			Services: map[string]memory.ServiceState{
				"ntp":    {Running: false, Enabled: true},
				"telnet": {Running: true, Enabled: true},
			},
			Files: map[string]memory.FileState{
				"/etc/motd":           {Content: "hand edited", Owner: "root", Group: "root"},
				"/srv/www/index.html": {Owner: "root", Group: "root"},
			},
		},
	}

	for name, snap := range initial {
		t.Run(name, func(t *testing.T) {
			host := memory.NewHostFromSnapshot(snap)
			c := converge.New(host)
			ctx := context.Background()

			_, err := c.Converge(ctx, "first", declarations)
			require.NoError(t, err)

			before := len(host.Mutations())
			second, err := c.Converge(ctx, "second", declarations)
			require.NoError(t, err)

			assert.Equal(t, 0, second.ChangedCount())
			assert.Len(t, host.Mutations(), before, "second run must not mutate the host")
		})
	}
}

func TestConverge_FailFast(t *testing.T) {
	host := memory.NewHost()
	host.Fail(domain.OpSetServiceState, "apache2", errors.New("permission denied"))

	c := converge.New(host)
	report, err := c.Converge(context.Background(), "run", webserverRecipe())
	require.Error(t, err)

	var applyErr *domain.ResourceApplyError
	require.ErrorAs(t, err, &applyErr)
	assert.Equal(t, domain.KindService, applyErr.Kind)
	assert.Equal(t, "apache2", applyErr.Identity)
	assert.True(t, domain.IsHostAccess(err))

	// Results for declarations 1..i only, the failed one included.
	require.Len(t, report.Results, 2)
	assert.Empty(t, report.Results[0].Error)
	assert.NotEmpty(t, report.Results[1].Error)
	assert.True(t, report.Failed())
	assert.Same(t, applyErr, report.Err)

	// Declaration 3 was never attempted.
	assert.False(t, host.Touched("/var/www/html/index.html"))
}

func TestConverge_FailFastOnQuery(t *testing.T) {
	host := memory.NewHost()
	host.Fail(domain.OpIsPackageInstalled, "apache2", errors.New("dpkg lock held"))

	report, err := converge.New(host).Converge(context.Background(), "run", webserverRecipe())
	require.Error(t, err)
	require.Len(t, report.Results, 1)
	assert.Empty(t, host.Mutations())
	assert.False(t, host.Touched("/var/www/html/index.html"))
}

func TestConverge_DryRun(t *testing.T) {
	host := memory.NewHost()
	c := converge.New(host, converge.WithDryRun(true))

	report, err := c.Converge(context.Background(), "dry", webserverRecipe())
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 3, report.ChangedCount(), "dry run reports what would change")
	assert.Empty(t, host.Mutations(), "dry run must not mutate the host")
}

func TestConverge_LastDeclarationWins(t *testing.T) {
	host := memory.NewHost()
	c := converge.New(host)

	report, err := c.Converge(context.Background(), "run", []domain.Resource{
		domain.File{Path: "/etc/motd", Content: domain.Ptr("first")},
		domain.Package{Name: "ntp"},
		domain.File{Path: "/etc/motd", Content: domain.Ptr("second")},
	})
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	assert.Equal(t, domain.KindFile, report.Results[0].Kind)

	content, err := host.FileContent(context.Background(), "/etc/motd")
	require.NoError(t, err)
	assert.Equal(t, "second", content)
}

func TestConverge_FileWritesOnlyDifferingFields(t *testing.T) {
	host := memory.NewHost()
	host.SetFile("/etc/motd", memory.FileState{Content: "managed", Owner: "root", Group: "adm"})

	report, err := converge.New(host).Converge(context.Background(), "run", []domain.Resource{
		domain.File{Path: "/etc/motd", Content: domain.Ptr("managed"), Owner: domain.Ptr("root"), Group: domain.Ptr("root")},
	})
	require.NoError(t, err)

	changes := report.Results[0].Changes
	require.Len(t, changes, 3)
	assert.False(t, changes[0].Changed, "content")
	assert.False(t, changes[1].Changed, "owner")
	assert.True(t, changes[2].Changed, "group")
	assert.Equal(t, "adm", changes[2].From)
	assert.Equal(t, "root", changes[2].To)
	assert.Len(t, host.Mutations(), 1)
}

func TestConverge_ServiceActionsAreReevaluated(t *testing.T) {
	host := memory.NewHost()
	host.SetService("nginx", memory.ServiceState{Running: true})

	report, err := converge.New(host).Converge(context.Background(), "run", []domain.Resource{
		domain.Service{Name: "nginx", Actions: []domain.ServiceAction{domain.ActionStart, domain.ActionEnable}},
	})
	require.NoError(t, err)

	changes := report.Results[0].Changes
	require.Len(t, changes, 2)
	assert.False(t, changes[0].Changed, "already running")
	assert.Equal(t, "running", changes[0].From)
	assert.True(t, changes[1].Changed, "was disabled")
	assert.Equal(t, "disabled", changes[1].From)
}

func TestConverge_CanceledContext(t *testing.T) {
	host := memory.NewHost()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := converge.New(host).Converge(ctx, "run", webserverRecipe())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, report.Results, 1)
	assert.Empty(t, host.Calls())
}

func TestConverge_Hooks(t *testing.T) {
	var (
		applied  []domain.ResourceResult
		started  int
		finished *domain.RunEvent
	)
	hooks := domain.LifecycleHooks{
		OnRunStart: func(ctx context.Context, e *domain.RunEvent) { started++ },
		OnRunFinish: func(ctx context.Context, e *domain.RunEvent) {
			finished = e
		},
		OnResourceApplied: func(ctx context.Context, e *domain.ResourceEvent) {
			applied = append(applied, e.Result)
			assert.Equal(t, "hooked", e.RunID)
		},
	}

	_, err := converge.New(memory.NewHost(), converge.WithLifecycleHooks(hooks)).
		Converge(context.Background(), "hooked", webserverRecipe())
	require.NoError(t, err)

	assert.Equal(t, 1, started)
	assert.Len(t, applied, 3)
	require.NotNil(t, finished)
	assert.Equal(t, domain.RunConverge, finished.Kind)
	assert.True(t, finished.Passed)
}
