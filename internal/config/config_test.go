package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fserrors "github.com/Aman-CERP/remotefs/internal/errors"
	"github.com/Aman-CERP/remotefs/internal/provider"
)

// isolate points the user config at an empty directory and clears the
// environment overrides. Returns the XDG config home.
func isolate(t *testing.T) string {
	t.Helper()
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	for _, name := range []string{
		"REMOTEFS_SOCKET",
		"REMOTEFS_LOG_LEVEL",
		"REMOTEFS_ROOT",
		"REMOTEFS_WATCH_DEBOUNCE",
		"REMOTEFS_MAX_OPEN_FILES",
	} {
		t.Setenv(name, "")
	}
	return xdg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	// Given: no configuration file exists
	cfg := NewConfig()

	// Then: all defaults should be applied
	require.NotNil(t, cfg)
	assert.Equal(t, 1, cfg.Version)

	assert.Equal(t, "daemon.sock", filepath.Base(cfg.Daemon.SocketPath))
	assert.Equal(t, "daemon.pid", filepath.Base(cfg.Daemon.PIDPath))
	assert.Equal(t, 30*time.Second, cfg.Daemon.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Daemon.ShutdownGracePeriod)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "remotefs.log", filepath.Base(cfg.Logging.FilePath))
	assert.Equal(t, 10, cfg.Logging.MaxSizeMB)
	assert.Equal(t, 5, cfg.Logging.MaxFiles)
	assert.False(t, cfg.Logging.Stderr)

	assert.Equal(t, 100*time.Millisecond, cfg.Watcher.Debounce)
	assert.Equal(t, 5*time.Second, cfg.Watcher.PollInterval)
	assert.Equal(t, 1000, cfg.Watcher.EventBufferSize)
	assert.Equal(t, DefaultExcludes, cfg.Watcher.Excludes)

	assert.Nil(t, cfg.Provider.CaseSensitive)
	assert.Equal(t, provider.DefaultMaxOpenFiles, cfg.Provider.MaxOpenFiles)
	assert.Equal(t, provider.DefaultStreamChunkSize, cfg.Provider.StreamChunkSize)
	assert.Zero(t, cfg.Provider.StreamHighWaterMark)
	assert.Empty(t, cfg.Provider.Root)

	assert.NoError(t, cfg.Validate())
}

func TestNewConfig_ExcludesAreNotShared(t *testing.T) {
	// Given a config whose excludes are modified
	cfg := NewConfig()
	cfg.Watcher.Excludes[0] = "changed"

	// Then the package defaults are untouched
	assert.Equal(t, "**/.git", DefaultExcludes[0])
}

func TestLoad_NoConfigFile_ReturnsDefaults(t *testing.T) {
	// Given: a directory with no .remotefs.yaml
	isolate(t)
	dir := t.TempDir()

	// When: loading configuration
	cfg, err := Load(dir)

	// Then: defaults are returned without error
	require.NoError(t, err)
	assert.Equal(t, NewConfig(), cfg)
}

func TestLoad_YamlFile_OverridesDefaults(t *testing.T) {
	// Given: a project file touching every section
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".remotefs.yaml"), `
version: 1
daemon:
  socket_path: /tmp/remotefs-test.sock
  timeout: 5s
logging:
  level: debug
  max_files: 2
  stderr: true
watcher:
  debounce: 250ms
  poll_interval: 1s
  excludes:
    - "**/dist"
provider:
  case_sensitive: false
  max_open_files: 16
  stream_chunk_size: 4096
  stream_high_water_mark: 8
  root: /srv/data
`)

	// When: loading configuration
	cfg, err := Load(dir)

	// Then: all overrides are applied and untouched keys keep defaults
	require.NoError(t, err)
	assert.Equal(t, "/tmp/remotefs-test.sock", cfg.Daemon.SocketPath)
	assert.Equal(t, 5*time.Second, cfg.Daemon.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Daemon.ShutdownGracePeriod)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 2, cfg.Logging.MaxFiles)
	assert.Equal(t, 10, cfg.Logging.MaxSizeMB)
	assert.True(t, cfg.Logging.Stderr)
	assert.Equal(t, 250*time.Millisecond, cfg.Watcher.Debounce)
	assert.Equal(t, time.Second, cfg.Watcher.PollInterval)
	assert.Equal(t, []string{"**/.git", "**/node_modules", "**/dist"}, cfg.Watcher.Excludes)
	require.NotNil(t, cfg.Provider.CaseSensitive)
	assert.False(t, *cfg.Provider.CaseSensitive)
	assert.Equal(t, 16, cfg.Provider.MaxOpenFiles)
	assert.Equal(t, 4096, cfg.Provider.StreamChunkSize)
	assert.Equal(t, 8, cfg.Provider.StreamHighWaterMark)
	assert.Equal(t, "/srv/data", cfg.Provider.Root)
}

func TestLoad_YmlExtension_IsRecognized(t *testing.T) {
	// Given: only .remotefs.yml exists
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".remotefs.yml"), "logging:\n  level: warn\n")

	// When: loading configuration
	cfg, err := Load(dir)

	// Then: the .yml file is used
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_YamlPreferredOverYml(t *testing.T) {
	// Given: both extensions exist
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".remotefs.yaml"), "logging:\n  level: warn\n")
	writeFile(t, filepath.Join(dir, ".remotefs.yml"), "logging:\n  level: error\n")

	// When: loading configuration
	cfg, err := Load(dir)

	// Then: .yaml wins
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, filepath.Join(dir, ".remotefs.yaml"), ProjectConfigPath(dir))
}

func TestLoad_InvalidYaml_ReturnsError(t *testing.T) {
	// Given: a malformed project file
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".remotefs.yaml"), "daemon: [unterminated\n")

	// When: loading configuration
	_, err := Load(dir)

	// Then: the parse error names the file
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
	assert.Contains(t, err.Error(), ".remotefs.yaml")
}

func TestLoad_InvalidFieldType_ReturnsError(t *testing.T) {
	// Given: a number field holding a string
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".remotefs.yaml"), "provider:\n  max_open_files: lots\n")

	// When: loading configuration
	_, err := Load(dir)

	// Then: an error is returned
	assert.Error(t, err)
}

func TestLoad_InvalidValues_FailValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown log level", "logging:\n  level: loud\n", "logging.level"},
		{"negative timeout", "daemon:\n  timeout: -1s\n", "timeout must be positive"},
		{"negative max open files", "provider:\n  max_open_files: -1\n", "provider.max_open_files"},
		{"negative chunk size", "provider:\n  stream_chunk_size: -4\n", "provider.stream_chunk_size"},
		{"negative debounce", "watcher:\n  debounce: -5ms\n", "watcher.debounce"},
		{"empty exclude", "watcher:\n  excludes: [\"  \"]\n", "watcher.excludes"},
		{"negative buffer", "watcher:\n  event_buffer_size: -1\n", "watcher.event_buffer_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a project file with an invalid value
			isolate(t)
			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, ".remotefs.yaml"), tt.content)

			// When: loading configuration
			_, err := Load(dir)

			// Then: validation rejects it
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, fserrors.HasCode(err, fserrors.ErrCodeConfigInvalid))
		})
	}
}

func TestLoad_EnvVarOverrides(t *testing.T) {
	// Given: every supported environment variable
	isolate(t)
	dir := t.TempDir()
	t.Setenv("REMOTEFS_SOCKET", "/tmp/env.sock")
	t.Setenv("REMOTEFS_LOG_LEVEL", "trace")
	t.Setenv("REMOTEFS_ROOT", "/srv/env")
	t.Setenv("REMOTEFS_WATCH_DEBOUNCE", "40ms")
	t.Setenv("REMOTEFS_MAX_OPEN_FILES", "12")

	// When: loading configuration
	cfg, err := Load(dir)

	// Then: each is applied
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env.sock", cfg.Daemon.SocketPath)
	assert.Equal(t, "trace", cfg.Logging.Level)
	assert.Equal(t, "/srv/env", cfg.Provider.Root)
	assert.Equal(t, 40*time.Millisecond, cfg.Watcher.Debounce)
	assert.Equal(t, 12, cfg.Provider.MaxOpenFiles)
}

func TestLoad_EnvVarUnparseable_IsIgnored(t *testing.T) {
	// Given: numeric overrides that do not parse
	isolate(t)
	dir := t.TempDir()
	t.Setenv("REMOTEFS_WATCH_DEBOUNCE", "soon")
	t.Setenv("REMOTEFS_MAX_OPEN_FILES", "-3")

	// When: loading configuration
	cfg, err := Load(dir)

	// Then: defaults remain
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, cfg.Watcher.Debounce)
	assert.Equal(t, provider.DefaultMaxOpenFiles, cfg.Provider.MaxOpenFiles)
}

func TestLoad_EnvVarInvalidLogLevel_FailsValidation(t *testing.T) {
	// Given: an unknown level in the environment
	isolate(t)
	t.Setenv("REMOTEFS_LOG_LEVEL", "chatty")

	// When: loading configuration
	_, err := Load(t.TempDir())

	// Then: validation rejects it
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
}

func TestGetUserConfigPath_RespectsXDGConfigHome(t *testing.T) {
	// Given: XDG_CONFIG_HOME is set
	xdg := isolate(t)

	// Then: the user config lives beneath it
	assert.Equal(t, filepath.Join(xdg, "remotefs", "config.yaml"), GetUserConfigPath())
	assert.False(t, UserConfigExists())
}

func TestGetUserConfigPath_DefaultsToDotConfig(t *testing.T) {
	// Given: XDG_CONFIG_HOME is unset
	t.Setenv("XDG_CONFIG_HOME", "")
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	// Then: ~/.config is used
	assert.Equal(t, filepath.Join(home, ".config", "remotefs", "config.yaml"), GetUserConfigPath())
}

func TestLoad_Precedence(t *testing.T) {
	// Given: user, project and environment all set the log level
	isolate(t)
	dir := t.TempDir()
	writeFile(t, GetUserConfigPath(), "logging:\n  level: warn\n  max_files: 9\nwatcher:\n  excludes: [\"**/tmp\"]\n")
	writeFile(t, filepath.Join(dir, ".remotefs.yaml"), "logging:\n  level: error\nwatcher:\n  excludes: [\"**/out\"]\n")

	// When: loading without an environment override
	cfg, err := Load(dir)
	require.NoError(t, err)

	// Then: project overrides user, user overrides defaults, excludes accumulate
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, 9, cfg.Logging.MaxFiles)
	assert.Equal(t, []string{"**/.git", "**/node_modules", "**/tmp", "**/out"}, cfg.Watcher.Excludes)

	// When: the environment also sets it
	t.Setenv("REMOTEFS_LOG_LEVEL", "debug")
	cfg, err = Load(dir)
	require.NoError(t, err)

	// Then: the environment wins
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_InvalidUserConfig_ReturnsError(t *testing.T) {
	// Given: a malformed user config
	isolate(t)
	writeFile(t, GetUserConfigPath(), "logging: [\n")

	// When: loading configuration
	_, err := Load(t.TempDir())

	// Then: the error names the user config
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load user config")
}

func TestLoad_ExpandsHomeInPaths(t *testing.T) {
	// Given: paths written with ~
	isolate(t)
	dir := t.TempDir()
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	writeFile(t, filepath.Join(dir, ".remotefs.yaml"), "daemon:\n  socket_path: ~/sock/d.sock\nprovider:\n  root: ~/work\n")

	// When: loading configuration
	cfg, err := Load(dir)

	// Then: they are expanded
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "sock", "d.sock"), cfg.Daemon.SocketPath)
	assert.Equal(t, filepath.Join(home, "work"), cfg.Provider.Root)
}

func TestWriteYAML_RoundTrips(t *testing.T) {
	// Given: a config with non-default values
	isolate(t)
	dir := t.TempDir()
	sensitive := true
	cfg := NewConfig()
	cfg.Logging.Level = "warn"
	cfg.Watcher.Debounce = 75 * time.Millisecond
	cfg.Provider.CaseSensitive = &sensitive
	cfg.Provider.Root = "/srv/data"

	// When: it is written as the project file and loaded back
	require.NoError(t, cfg.WriteYAML(filepath.Join(dir, ".remotefs.yaml")))
	loaded, err := Load(dir)

	// Then: the values survive
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestConversions(t *testing.T) {
	// Given: a loaded config
	insensitive := false
	cfg := NewConfig()
	cfg.Provider.Root = "/srv/data"
	cfg.Provider.MaxOpenFiles = 32
	cfg.Provider.StreamHighWaterMark = 4
	cfg.Provider.CaseSensitive = &insensitive
	cfg.Watcher.Debounce = 20 * time.Millisecond
	cfg.Logging.Stderr = true

	// When: converting to component options
	d := cfg.DaemonConfig()
	l := cfg.LoggingConfig()
	disk := cfg.DiskOptions()

	// Then: each component sees its section
	assert.Equal(t, cfg.Daemon.SocketPath, d.SocketPath)
	assert.Equal(t, "/srv/data", d.Root)
	assert.NoError(t, d.Validate())

	assert.Equal(t, cfg.Logging.Level, l.Level)
	assert.True(t, l.WriteToStderr)

	assert.Equal(t, "/srv/data", disk.Root)
	assert.Equal(t, 32, disk.MaxOpenFiles)
	assert.Equal(t, 4, disk.HighWaterMark)
	require.NotNil(t, disk.CaseSensitive)
	assert.False(t, *disk.CaseSensitive)
	assert.Equal(t, 20*time.Millisecond, disk.Watcher.DebounceWindow)
	assert.Equal(t, cfg.Watcher.Excludes, disk.Watch.DefaultExcludes)

	// And the options do not alias the config
	*disk.CaseSensitive = true
	disk.Watch.DefaultExcludes[0] = "changed"
	assert.False(t, *cfg.Provider.CaseSensitive)
	assert.Equal(t, "**/.git", cfg.Watcher.Excludes[0])
}

func TestLoadUserConfig(t *testing.T) {
	// Given: no user config
	isolate(t)

	// Then: nothing is returned
	cfg, err := LoadUserConfig()
	require.NoError(t, err)
	assert.Nil(t, cfg)

	// Given: a partial user config
	writeFile(t, GetUserConfigPath(), "watcher:\n  poll_interval: 2s\n")

	// When: loading it
	cfg, err = LoadUserConfig()

	// Then: it is merged over the defaults
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 2*time.Second, cfg.Watcher.PollInterval)
	assert.Equal(t, "info", cfg.Logging.Level)
}
