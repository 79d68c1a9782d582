package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/steward/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var webserverConfig = filepath.Join("..", "..", "pkg", "config", "testdata", "webserver.yaml")

func writeFacts(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "facts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func testOptions(t *testing.T, facts string) (Options, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	return Options{
		Simulate: facts,
		Stdout:   &stdout,
		Stderr:   &stderr,
	}, &stdout, &stderr
}

func TestConverge_Simulated(t *testing.T) {
	opts, stdout, _ := testOptions(t, writeFacts(t, "packages: []\n"))

	err := Converge(context.Background(), opts, webserverConfig)
	require.NoError(t, err)
	assert.Equal(t, ExitOK, ExitCode(err))

	out := stdout.String()
	assert.Contains(t, out, "CHANGED package[apache2]")
	assert.Contains(t, out, "PASS 3 resources, 3 changed")
}

func TestConverge_DryRunJSON(t *testing.T) {
	opts, stdout, _ := testOptions(t, writeFacts(t, "packages: [apache2]\n"))
	opts.DryRun = true
	opts.Format = "json"

	require.NoError(t, Converge(context.Background(), opts, webserverConfig))
	assert.Contains(t, stdout.String(), `"dry_run": true`)
}

func TestAudit_ExitCodes(t *testing.T) {
	t.Run("Passing", func(t *testing.T) {
		opts, stdout, _ := testOptions(t, writeFacts(t, `
files:
  /var/www/html/index.html:
    content: hi
    owner: www-data
    group: www-data
`))
		err := Audit(context.Background(), opts, webserverConfig)
		require.NoError(t, err)
		assert.Contains(t, stdout.String(), "neh - web server")
		assert.Contains(t, stdout.String(), "PASS home page is not owned by root user")
	})

	t.Run("Failing", func(t *testing.T) {
		opts, stdout, _ := testOptions(t, writeFacts(t, `
files:
  /var/www/html/index.html:
    owner: root
    group: root
`))
		err := Audit(context.Background(), opts, webserverConfig)
		assert.ErrorIs(t, err, ErrAuditFailed)
		assert.Equal(t, ExitFailure, ExitCode(err))
		assert.Contains(t, stdout.String(), "FAIL home page is not owned by root user")
	})

	t.Run("Missing File Fails", func(t *testing.T) {
		opts, _, _ := testOptions(t, writeFacts(t, "{}\n"))
		err := Audit(context.Background(), opts, webserverConfig)
		assert.Equal(t, ExitFailure, ExitCode(err))
	})
}

func TestAudit_Cookbook(t *testing.T) {
	opts, stdout, _ := testOptions(t, writeFacts(t, `
packages: [ntp]
services:
  ntp: {running: true, enabled: true}
`))
	require.NoError(t, Audit(context.Background(), opts, filepath.Join("..", "..", "testdata", "cookbook")))
	assert.Contains(t, stdout.String(), "neh - ntp")
}

func TestValidate(t *testing.T) {
	opts, stdout, _ := testOptions(t, "")
	require.NoError(t, Validate(context.Background(), opts, webserverConfig))
	assert.Contains(t, stdout.String(), "is valid: 3 resources, 1 control groups, 1 assertions")
}

func TestUsageErrors(t *testing.T) {
	ctx := context.Background()
	broken := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("resources:\n  - kind: user\n"), 0o644))

	tests := []struct {
		name string
		run  func(Options) error
		opts func(*Options)
	}{
		{"invalid config", func(o Options) error { return Validate(ctx, o, broken) }, nil},
		{"missing config", func(o Options) error { return Audit(ctx, o, "does-not-exist.yaml") }, nil},
		{"unknown format", func(o Options) error { return Audit(ctx, o, webserverConfig) }, func(o *Options) { o.Format = "xml" }},
		{"unknown store", func(o Options) error { return Converge(ctx, o, webserverConfig) }, func(o *Options) { o.Store = "s3" }},
		{"unknown log format", func(o Options) error { return Converge(ctx, o, webserverConfig) }, func(o *Options) { o.LogFormat = "xml" }},
		{"missing facts", func(o Options) error { return Converge(ctx, o, webserverConfig) }, func(o *Options) { o.Simulate = "no-facts.yaml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, _, _ := testOptions(t, writeFacts(t, "{}\n"))
			if tt.opts != nil {
				tt.opts(&opts)
			}
			err := tt.run(opts)
			require.Error(t, err)
			assert.Equal(t, ExitConfig, ExitCode(err))
		})
	}
}

func TestExitCode(t *testing.T) {
	apply := &domain.ResourceApplyError{Kind: domain.KindPackage, Identity: "ntp", Cause: errors.New("boom")}

	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitFailure, ExitCode(apply))
	assert.Equal(t, ExitFailure, ExitCode(errors.Join(apply, errors.New("save failed"))))
	assert.Equal(t, ExitFailure, ExitCode(fmt.Errorf("wrapped: %w", ErrAuditFailed)))
	assert.Equal(t, ExitConfig, ExitCode(&domain.ConfigParseError{Path: "x.yaml", Cause: errors.New("bad")}))
	assert.Equal(t, ExitConfig, ExitCode(errors.New("failed to lock host")))
	assert.Equal(t, 7, ExitCode(&ExitError{Code: 7, Err: errors.New("custom")}))
}

func TestReports_FileStore(t *testing.T) {
	ctx := context.Background()
	opts, stdout, _ := testOptions(t, writeFacts(t, "{}\n"))
	opts.Store = StoreFile
	opts.StoreDir = t.TempDir()

	require.NoError(t, Converge(ctx, opts, webserverConfig))
	_ = Audit(ctx, opts, webserverConfig)
	stdout.Reset()

	require.NoError(t, ListReports(ctx, opts))
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 2)

	id := strings.Fields(lines[0])[0]
	stdout.Reset()
	require.NoError(t, ShowReport(ctx, opts, id))
	assert.NotEmpty(t, stdout.String())

	err := ShowReport(ctx, opts, "missing")
	assert.ErrorIs(t, err, domain.ErrReportNotFound)
}

func TestReports_Encrypted(t *testing.T) {
	ctx := context.Background()
	key := strings.Repeat("0f", 32)
	opts, stdout, _ := testOptions(t, writeFacts(t, "{}\n"))
	opts.Store = StoreFile
	opts.StoreDir = t.TempDir()
	opts.ReportKey = key

	require.NoError(t, Converge(ctx, opts, webserverConfig))

	files, err := filepath.Glob(filepath.Join(opts.StoreDir, "*.json"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	raw, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "apache2")

	stdout.Reset()
	require.NoError(t, ShowReport(ctx, opts, strings.TrimSuffix(filepath.Base(files[0]), ".json")))
	assert.Contains(t, stdout.String(), "package[apache2]")

	opts.ReportKey = "short"
	assert.Equal(t, ExitConfig, ExitCode(ListReports(ctx, opts)))
}

func TestReports_RequirePersistentStore(t *testing.T) {
	ctx := context.Background()
	for _, store := range []string{"", StoreMemory} {
		opts, stdout, _ := testOptions(t, "")
		opts.Store = store

		err := ListReports(ctx, opts)
		assert.Equal(t, ExitConfig, ExitCode(err), "list with store %q", store)
		assert.Contains(t, err.Error(), "--store file")

		err = ShowReport(ctx, opts, "any")
		assert.Equal(t, ExitConfig, ExitCode(err), "show with store %q", store)
		assert.NotErrorIs(t, err, domain.ErrReportNotFound)
		assert.Empty(t, stdout.String())
	}
}

func TestReports_Redis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	opts, stdout, _ := testOptions(t, writeFacts(t, "{}\n"))
	opts.Store = StoreRedis
	opts.RedisAddr = mr.Addr()
	opts.LockRedis = true
	opts.Host = "web-01"

	require.NoError(t, Converge(ctx, opts, webserverConfig))
	assert.False(t, mr.Exists("steward:lock:web-01"), "lock must be released")

	stdout.Reset()
	opts.Format = "json"
	require.NoError(t, ListReports(ctx, opts))
	assert.Contains(t, stdout.String(), `"kind": "converge"`)
	assert.Contains(t, stdout.String(), `"host": "web-01"`)
}

func TestConverge_Interrupted(t *testing.T) {
	opts, _, stderr := testOptions(t, writeFacts(t, "packages: []\n"))
	sc := NewSignalContext(context.Background())
	defer sc.Cancel()

	sc.sigCh <- os.Interrupt
	<-sc.Done()

	_ = Converge(sc, opts, webserverConfig)
	assert.Contains(t, stderr.String(), ">>> converge interrupted by SIGINT")
}

func TestLogInterrupt(t *testing.T) {
	t.Run("Plain Context", func(t *testing.T) {
		opts, _, stderr := testOptions(t, "")
		logInterrupt(context.Background(), opts, "audit")
		assert.Empty(t, stderr.String())
	})

	t.Run("No Signal", func(t *testing.T) {
		opts, _, stderr := testOptions(t, "")
		sc := NewSignalContext(context.Background())
		defer sc.Cancel()
		logInterrupt(sc, opts, "audit")
		assert.Empty(t, stderr.String())
	})

	t.Run("SIGTERM", func(t *testing.T) {
		opts, _, stderr := testOptions(t, "")
		sc := NewSignalContext(context.Background())
		defer sc.Cancel()
		sc.sigCh <- syscall.SIGTERM
		<-sc.Done()
		logInterrupt(sc, opts, "audit")
		assert.Contains(t, stderr.String(), "audit interrupted by SIGTERM")
	})
}

func TestServe_StopsOnCancel(t *testing.T) {
	opts, _, stderr := testOptions(t, "")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Serve(ctx, opts, "127.0.0.1:0") }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Contains(t, stderr.String(), "Server stopped")
}

func TestExamples(t *testing.T) {
	ctx := context.Background()
	cookbook := filepath.Join("..", "..", "examples", "cookbook")
	facts := filepath.Join("..", "..", "examples", "facts")

	t.Run("Validate", func(t *testing.T) {
		opts, stdout, _ := testOptions(t, "")
		require.NoError(t, Validate(ctx, opts, cookbook))
		assert.Contains(t, stdout.String(), "is valid: 3 resources, 2 control groups, 3 assertions")
	})

	t.Run("Converge Fresh Host", func(t *testing.T) {
		opts, stdout, _ := testOptions(t, filepath.Join(facts, "fresh-host.yaml"))
		opts.DryRun = true
		require.NoError(t, Converge(ctx, opts, cookbook))
		assert.Contains(t, stdout.String(), "PASS 3 resources, 3 changed")
	})

	t.Run("Audit Configured Host", func(t *testing.T) {
		opts, stdout, _ := testOptions(t, filepath.Join(facts, "ntp-host.yaml"))
		require.NoError(t, Audit(ctx, opts, cookbook))
		assert.Contains(t, stdout.String(), "PASS 2 controls, 2 passed, 0 failed")
	})

	t.Run("Audit Fresh Host", func(t *testing.T) {
		opts, _, _ := testOptions(t, filepath.Join(facts, "fresh-host.yaml"))
		assert.ErrorIs(t, Audit(ctx, opts, cookbook), ErrAuditFailed)
	})
}
