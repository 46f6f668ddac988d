// Package config loads remotefs configuration.
//
// Configuration is layered in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config ($XDG_CONFIG_HOME/remotefs/config.yaml)
//  3. Project config (.remotefs.yaml in the working directory)
//  4. Environment variables (REMOTEFS_*)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/remotefs/internal/daemon"
	fserrors "github.com/Aman-CERP/remotefs/internal/errors"
	"github.com/Aman-CERP/remotefs/internal/logging"
	"github.com/Aman-CERP/remotefs/internal/provider"
	"github.com/Aman-CERP/remotefs/internal/watcher"
)

// Config represents the complete remotefs configuration.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Daemon   DaemonConfig   `yaml:"daemon" json:"daemon"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
	Watcher  WatcherConfig  `yaml:"watcher" json:"watcher"`
	Provider ProviderConfig `yaml:"provider" json:"provider"`
}

// DaemonConfig configures the host daemon.
type DaemonConfig struct {
	SocketPath          string        `yaml:"socket_path" json:"socket_path"`
	PIDPath             string        `yaml:"pid_path" json:"pid_path"`
	Timeout             time.Duration `yaml:"timeout" json:"timeout"`
	ShutdownGracePeriod time.Duration `yaml:"shutdown_grace_period" json:"shutdown_grace_period"`
}

// LoggingConfig configures the JSON file logger.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	FilePath  string `yaml:"file_path" json:"file_path"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
	Stderr    bool   `yaml:"stderr" json:"stderr"`
}

// WatcherConfig configures the native watchers.
type WatcherConfig struct {
	// Debounce is the native event batching window.
	Debounce time.Duration `yaml:"debounce" json:"debounce"`
	// PollInterval is used by the polling fallback.
	PollInterval    time.Duration `yaml:"poll_interval" json:"poll_interval"`
	EventBufferSize int           `yaml:"event_buffer_size" json:"event_buffer_size"`
	// Excludes are added to every recursive watch request.
	Excludes []string `yaml:"excludes" json:"excludes"`
}

// ProviderConfig configures the disk provider served by the daemon.
type ProviderConfig struct {
	// CaseSensitive overrides the platform default when set.
	CaseSensitive       *bool  `yaml:"case_sensitive,omitempty" json:"case_sensitive,omitempty"`
	MaxOpenFiles        int    `yaml:"max_open_files" json:"max_open_files"`
	StreamChunkSize     int    `yaml:"stream_chunk_size" json:"stream_chunk_size"`
	StreamHighWaterMark int    `yaml:"stream_high_water_mark" json:"stream_high_water_mark"`
	Root                string `yaml:"root" json:"root"`
}

// ProjectConfigNames are the project file names, in lookup order.
var ProjectConfigNames = []string{".remotefs.yaml", ".remotefs.yml"}

// DefaultExcludes are always excluded from recursive watches.
var DefaultExcludes = []string{"**/.git", "**/node_modules"}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	d := daemon.DefaultConfig()
	l := logging.DefaultConfig()
	w := watcher.DefaultOptions()

	return &Config{
		Version: 1,
		Daemon: DaemonConfig{
			SocketPath:          d.SocketPath,
			PIDPath:             d.PIDPath,
			Timeout:             d.Timeout,
			ShutdownGracePeriod: d.ShutdownGracePeriod,
		},
		Logging: LoggingConfig{
			Level:     l.Level,
			FilePath:  l.FilePath,
			MaxSizeMB: l.MaxSizeMB,
			MaxFiles:  l.MaxFiles,
			Stderr:    l.WriteToStderr,
		},
		Watcher: WatcherConfig{
			Debounce:        w.DebounceWindow,
			PollInterval:    w.PollInterval,
			EventBufferSize: w.EventBufferSize,
			Excludes:        slices.Clone(DefaultExcludes),
		},
		Provider: ProviderConfig{
			MaxOpenFiles:    provider.DefaultMaxOpenFiles,
			StreamChunkSize: provider.DefaultStreamChunkSize,
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/remotefs/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/remotefs/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "remotefs", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "remotefs", "config.yaml")
	}
	return filepath.Join(home, ".config", "remotefs", "config.yaml")
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := &Config{}
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// Load loads configuration for the project in dir.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, err
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fserrors.New(fserrors.ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %v", err), err)
	}
	return cfg, nil
}

// ProjectConfigPath returns the project file that Load reads from dir, or
// an empty string when there is none.
func ProjectConfigPath(dir string) string {
	for _, name := range ProjectConfigNames {
		p := filepath.Join(dir, name)
		if fileExists(p) {
			return p
		}
	}
	return ""
}

// loadFromFile merges .remotefs.yaml or .remotefs.yml from dir, if present.
func (c *Config) loadFromFile(dir string) error {
	p := ProjectConfigPath(dir)
	if p == "" {
		return nil
	}
	parsed := &Config{}
	if err := parsed.loadYAML(p); err != nil {
		return err
	}
	c.mergeWith(parsed)
	return nil
}

// loadYAML decodes path into c.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	// Daemon
	if other.Daemon.SocketPath != "" {
		c.Daemon.SocketPath = expandHome(other.Daemon.SocketPath)
	}
	if other.Daemon.PIDPath != "" {
		c.Daemon.PIDPath = expandHome(other.Daemon.PIDPath)
	}
	if other.Daemon.Timeout != 0 {
		c.Daemon.Timeout = other.Daemon.Timeout
	}
	if other.Daemon.ShutdownGracePeriod != 0 {
		c.Daemon.ShutdownGracePeriod = other.Daemon.ShutdownGracePeriod
	}

	// Logging
	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.FilePath != "" {
		c.Logging.FilePath = expandHome(other.Logging.FilePath)
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}
	// stderr is boolean; only "true" can be told apart from unset.
	if other.Logging.Stderr {
		c.Logging.Stderr = true
	}

	// Watcher
	if other.Watcher.Debounce != 0 {
		c.Watcher.Debounce = other.Watcher.Debounce
	}
	if other.Watcher.PollInterval != 0 {
		c.Watcher.PollInterval = other.Watcher.PollInterval
	}
	if other.Watcher.EventBufferSize != 0 {
		c.Watcher.EventBufferSize = other.Watcher.EventBufferSize
	}
	for _, pattern := range other.Watcher.Excludes {
		// Merge with defaults rather than replace
		if !slices.Contains(c.Watcher.Excludes, pattern) {
			c.Watcher.Excludes = append(c.Watcher.Excludes, pattern)
		}
	}

	// Provider
	if other.Provider.CaseSensitive != nil {
		v := *other.Provider.CaseSensitive
		c.Provider.CaseSensitive = &v
	}
	if other.Provider.MaxOpenFiles != 0 {
		c.Provider.MaxOpenFiles = other.Provider.MaxOpenFiles
	}
	if other.Provider.StreamChunkSize != 0 {
		c.Provider.StreamChunkSize = other.Provider.StreamChunkSize
	}
	if other.Provider.StreamHighWaterMark != 0 {
		c.Provider.StreamHighWaterMark = other.Provider.StreamHighWaterMark
	}
	if other.Provider.Root != "" {
		c.Provider.Root = expandHome(other.Provider.Root)
	}
}

// applyEnvOverrides applies REMOTEFS_* environment variables. Unparseable
// numeric values are ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("REMOTEFS_SOCKET"); v != "" {
		c.Daemon.SocketPath = expandHome(v)
	}
	if v := os.Getenv("REMOTEFS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("REMOTEFS_ROOT"); v != "" {
		c.Provider.Root = expandHome(v)
	}
	if v := os.Getenv("REMOTEFS_WATCH_DEBOUNCE"); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil && d > 0 {
			c.Watcher.Debounce = d
		}
	}
	if v := os.Getenv("REMOTEFS_MAX_OPEN_FILES"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			c.Provider.MaxOpenFiles = n
		}
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if err := c.DaemonConfig().Validate(); err != nil {
		return fmt.Errorf("daemon: %w", err)
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level must be 'trace', 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	if c.Logging.MaxSizeMB < 0 {
		return fmt.Errorf("logging.max_size_mb must be non-negative, got %d", c.Logging.MaxSizeMB)
	}
	if c.Logging.MaxFiles < 0 {
		return fmt.Errorf("logging.max_files must be non-negative, got %d", c.Logging.MaxFiles)
	}

	if c.Watcher.Debounce < 0 {
		return fmt.Errorf("watcher.debounce must be non-negative, got %s", c.Watcher.Debounce)
	}
	if c.Watcher.PollInterval < 0 {
		return fmt.Errorf("watcher.poll_interval must be non-negative, got %s", c.Watcher.PollInterval)
	}
	if c.Watcher.EventBufferSize < 0 {
		return fmt.Errorf("watcher.event_buffer_size must be non-negative, got %d", c.Watcher.EventBufferSize)
	}
	for _, pattern := range c.Watcher.Excludes {
		if strings.TrimSpace(pattern) == "" {
			return fmt.Errorf("watcher.excludes must not contain empty patterns")
		}
	}

	if c.Provider.MaxOpenFiles < 0 {
		return fmt.Errorf("provider.max_open_files must be non-negative, got %d", c.Provider.MaxOpenFiles)
	}
	if c.Provider.StreamChunkSize < 0 {
		return fmt.Errorf("provider.stream_chunk_size must be non-negative, got %d", c.Provider.StreamChunkSize)
	}
	if c.Provider.StreamHighWaterMark < 0 {
		return fmt.Errorf("provider.stream_high_water_mark must be non-negative, got %d", c.Provider.StreamHighWaterMark)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// DaemonConfig returns the daemon section as a daemon.Config.
func (c *Config) DaemonConfig() daemon.Config {
	return daemon.Config{
		SocketPath:          c.Daemon.SocketPath,
		PIDPath:             c.Daemon.PIDPath,
		Timeout:             c.Daemon.Timeout,
		ShutdownGracePeriod: c.Daemon.ShutdownGracePeriod,
		Root:                c.Provider.Root,
	}
}

// LoggingConfig returns the logging section as a logging.Config.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:         c.Logging.Level,
		FilePath:      c.Logging.FilePath,
		MaxSizeMB:     c.Logging.MaxSizeMB,
		MaxFiles:      c.Logging.MaxFiles,
		WriteToStderr: c.Logging.Stderr,
	}
}

// WatcherOptions returns the native watcher options.
func (c *Config) WatcherOptions() watcher.Options {
	return watcher.Options{
		DebounceWindow:  c.Watcher.Debounce,
		PollInterval:    c.Watcher.PollInterval,
		EventBufferSize: c.Watcher.EventBufferSize,
	}
}

// DiskOptions returns the disk provider options. Logger, levels and
// scheduler are left for the caller.
func (c *Config) DiskOptions() provider.DiskOptions {
	var caseSensitive *bool
	if c.Provider.CaseSensitive != nil {
		v := *c.Provider.CaseSensitive
		caseSensitive = &v
	}
	return provider.DiskOptions{
		Root:            c.Provider.Root,
		MaxOpenFiles:    c.Provider.MaxOpenFiles,
		StreamChunkSize: c.Provider.StreamChunkSize,
		HighWaterMark:   c.Provider.StreamHighWaterMark,
		CaseSensitive:   caseSensitive,
		Watch: watcher.ServiceOptions{
			DefaultExcludes: slices.Clone(c.Watcher.Excludes),
		},
		Watcher: c.WatcherOptions(),
	}
}

// expandHome replaces a leading ~/ with the user's home directory.
func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// fileExists checks if a regular file exists.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// LoadUserConfig returns the defaults merged with the user config file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	userCfg, err := loadUserConfig()
	if err != nil || userCfg == nil {
		return nil, err
	}
	cfg := NewConfig()
	cfg.mergeWith(userCfg)
	return cfg, nil
}
