package process

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses a POSIX shell")
	}
}

func TestRunner_Run(t *testing.T) {
	skipOnWindows(t)

	runner := NewRunner(WithEnv("STEWARD_TEST=from-runner"))
	runner.Register("sh", "sh", "-c")

	t.Run("Captures Output", func(t *testing.T) {
		res, err := runner.Run(context.Background(), "sh", "echo hello; echo oops >&2")
		require.NoError(t, err)
		assert.True(t, res.Success())
		assert.Equal(t, "hello", res.Output())
		assert.Equal(t, "oops\n", res.Stderr)
	})

	t.Run("Non-Zero Exit Is A Result", func(t *testing.T) {
		res, err := runner.Run(context.Background(), "sh", "exit 3")
		require.NoError(t, err)
		assert.False(t, res.Success())
		assert.Equal(t, 3, res.ExitCode)
	})

	t.Run("Passes Environment", func(t *testing.T) {
		res, err := runner.Run(context.Background(), "sh", "echo $STEWARD_TEST")
		require.NoError(t, err)
		assert.Equal(t, "from-runner", res.Output())
	})

	t.Run("Fails For Unregistered Command", func(t *testing.T) {
		_, err := runner.Run(context.Background(), "rm", "-rf", "/")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotRegistered))
	})
}

func TestRunner_MissingBinary(t *testing.T) {
	runner := NewRunner()
	runner.Register("ghost", "/nonexistent/steward-ghost-binary")

	_, err := runner.Run(context.Background(), "ghost")
	assert.Error(t, err)
}

func TestRunner_Timeout(t *testing.T) {
	skipOnWindows(t)

	runner := NewRunner(WithTimeout(100 * time.Millisecond))
	runner.RegisterDefault("sleep")

	start := time.Now()
	_, err := runner.Run(context.Background(), "sleep", "5")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestRunner_BaseDir(t *testing.T) {
	skipOnWindows(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker"), nil, 0o644))

	runner := NewRunner(WithBaseDir(dir))
	runner.RegisterDefault("ls")

	res, err := runner.Run(context.Background(), "ls")
	require.NoError(t, err)
	assert.Contains(t, res.Stdout, "marker")
}

func TestRunner_RegistryOverrides(t *testing.T) {
	skipOnWindows(t)

	runner := NewRunner(WithRegistry(map[string]CommandConfig{
		"systemctl": {
			Name:        "systemctl",
			Command:     "sh",
			Args:        []string{"-c", `echo "$PREFIX $0 $1"`},
			Environment: map[string]string{"PREFIX": "fake"},
		},
	}))
	runner.RegisterDefault("systemctl", "apt-get")

	assert.Equal(t, []string{"apt-get", "systemctl"}, runner.Registered())

	res, err := runner.Run(context.Background(), "systemctl", "is-active", "ntp")
	require.NoError(t, err)
	assert.Equal(t, "fake is-active ntp", res.Output())
}

func TestLoadCommands(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "commands.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
commands:
  - name: systemctl
    command: sudo
    args: [systemctl]
  - name: apt-get
    command: /usr/local/bin/apt-wrapper
    env:
      DEBIAN_FRONTEND: noninteractive
  - name: incomplete
`), 0o644))

	cmds, err := LoadCommands(yamlPath)
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, []string{"systemctl"}, cmds["systemctl"].Args)
	assert.Equal(t, "noninteractive", cmds["apt-get"].Environment["DEBIAN_FRONTEND"])

	jsonPath := filepath.Join(dir, "commands.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"commands":[{"name":"dpkg-query","command":"/usr/bin/dpkg-query"}]}`), 0o644))
	cmds, err = LoadCommands(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/dpkg-query", cmds["dpkg-query"].Command)

	_, err = LoadCommands(filepath.Join(dir, "absent.yaml"))
	assert.Error(t, err)
}
