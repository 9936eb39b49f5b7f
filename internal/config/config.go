// Package config provides configuration management for analysisd.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the service configuration.
type Config struct {
	Service ServiceConfig `toml:"service"`
	Task    TaskConfig    `toml:"task"`
	Cache   CacheConfig   `toml:"cache"`
	Lock    LockConfig    `toml:"lock"`
	Watcher WatcherConfig `toml:"watcher"`
	Embed   EmbedConfig   `toml:"embedding"`
	Logging LoggingConfig `toml:"logging"`
}

// ServiceConfig contains process-level settings.
type ServiceConfig struct {
	DataDir string `toml:"data_dir"`
	PIDFile string `toml:"pid_file"`
}

// TaskConfig configures the Task Engine's worker pool (C6).
type TaskConfig struct {
	// Workers bounds how many jobs run concurrently. Kept small by
	// default: this bounds peak memory of concurrent topic jobs, not
	// throughput.
	Workers int `toml:"workers"`
	// QueueSize bounds the buffered status-update channel.
	QueueSize int `toml:"queue_size"`
}

// CachePolicy describes the eviction policy for one artifact kind (§4.3).
type CachePolicy struct {
	MaxSize             int  `toml:"max_size"`
	TTLSeconds          int  `toml:"ttl_seconds"`
	PersistentAfterSave bool `toml:"persistent_after_save"`
}

// TTL returns the policy's TTL as a duration.
func (p CachePolicy) TTL() time.Duration {
	return time.Duration(p.TTLSeconds) * time.Second
}

// CacheConfig holds the per-adapter-kind policy table.
type CacheConfig struct {
	Config     CachePolicy `toml:"config"`
	Workspace  CachePolicy `toml:"workspace"`
	Topic      CachePolicy `toml:"topic"`
	Model      CachePolicy `toml:"model"`
	Vectors    CachePolicy `toml:"vectors"`
	Evaluation CachePolicy `toml:"evaluation"`
	Experiment CachePolicy `toml:"experiment"`
}

// LockConfig configures the Lock Manager (C2).
type LockConfig struct {
	// InteractiveTimeoutMs bounds how long a caller-facing acquisition
	// waits before raising UnallowedFileOperation / UnallowedColumnOperation.
	// Background workers ignore this and wait indefinitely.
	InteractiveTimeoutMs int `toml:"interactive_timeout_ms"`
}

// Timeout returns the interactive lock timeout as a duration.
func (l LockConfig) Timeout() time.Duration {
	return time.Duration(l.InteractiveTimeoutMs) * time.Millisecond
}

// WatcherConfig configures the Filesystem Watcher (C4).
type WatcherConfig struct {
	Enabled    bool `toml:"enabled"`
	DebounceMs int  `toml:"debounce_ms"`
}

// Debounce returns the watcher's debounce interval as a duration.
func (w WatcherConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMs) * time.Millisecond
}

// EmbedConfig configures the default EmbeddingTransformer.
type EmbedConfig struct {
	Provider    string `toml:"provider"`
	APIKey      string `toml:"api_key"`
	Model       string `toml:"model"`
	TimeoutSecs int    `toml:"timeout_seconds"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string      `toml:"level"`
	Format     string      `toml:"format"`
	Output     StringSlice `toml:"output"`
	TimeFormat string      `toml:"time_format"`
	MaxSizeMB  int         `toml:"max_size_mb"`
	MaxBackups int         `toml:"max_backups"`
	MaxAgeDays int         `toml:"max_age_days"`
	Compress   bool        `toml:"compress"`
}

// StringSlice is a custom type that can unmarshal from either a string or []string.
type StringSlice []string

// UnmarshalTOML implements toml.Unmarshaler for flexible config parsing.
func (s *StringSlice) UnmarshalTOML(data interface{}) error {
	switch v := data.(type) {
	case string:
		*s = []string{v}
	case []interface{}:
		result := make([]string, len(v))
		for i, item := range v {
			str, ok := item.(string)
			if !ok {
				return fmt.Errorf("expected string in array, got %T", item)
			}
			result[i] = str
		}
		*s = result
	default:
		return fmt.Errorf("expected string or array, got %T", data)
	}
	return nil
}

// DefaultConfig returns the default configuration with all values set.
// ANALYSISD_DATA_DIR and ANALYSISD_WORKERS override the matching defaults.
func DefaultConfig() *Config {
	dataDir := DefaultDataDir()
	if envDir := os.Getenv("ANALYSISD_DATA_DIR"); envDir != "" {
		dataDir = envDir
	}

	workers := 2
	if envWorkers := os.Getenv("ANALYSISD_WORKERS"); envWorkers != "" {
		if n, err := strconv.Atoi(envWorkers); err == nil && n > 0 {
			workers = n
		}
	}

	const fiveMinutes = 300

	return &Config{
		Service: ServiceConfig{
			DataDir: dataDir,
			PIDFile: filepath.Join(dataDir, "analysisd.pid"),
		},
		Task: TaskConfig{
			Workers:   workers,
			QueueSize: 64,
		},
		Cache: CacheConfig{
			Config:     CachePolicy{MaxSize: 1, TTLSeconds: fiveMinutes, PersistentAfterSave: true},
			Workspace:  CachePolicy{MaxSize: 20, TTLSeconds: fiveMinutes, PersistentAfterSave: true},
			Topic:      CachePolicy{MaxSize: 0, TTLSeconds: fiveMinutes, PersistentAfterSave: false},
			Model:      CachePolicy{MaxSize: 5, TTLSeconds: fiveMinutes, PersistentAfterSave: false},
			Vectors:    CachePolicy{MaxSize: 5, TTLSeconds: fiveMinutes, PersistentAfterSave: false},
			Evaluation: CachePolicy{MaxSize: 0, TTLSeconds: fiveMinutes, PersistentAfterSave: false},
			Experiment: CachePolicy{MaxSize: 0, TTLSeconds: fiveMinutes, PersistentAfterSave: false},
		},
		Lock: LockConfig{
			InteractiveTimeoutMs: 2000,
		},
		Watcher: WatcherConfig{
			Enabled:    true,
			DebounceMs: 500,
		},
		Embed: EmbedConfig{
			Provider:    "gemini",
			APIKey:      os.Getenv("GEMINI_API_KEY"),
			Model:       "text-embedding-004",
			TimeoutSecs: 30,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     StringSlice{"file"},
			TimeFormat: "15:04:05.000",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}

// DefaultDataDir returns the default data directory based on OS.
func DefaultDataDir() string {
	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "analysisd")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "AppData", "Roaming", "analysisd")
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "analysisd")
	default: // linux and others
		xdgData := os.Getenv("XDG_DATA_HOME")
		if xdgData != "" {
			return filepath.Join(xdgData, "analysisd")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".analysisd")
	}
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultDataDir(), "config.toml")
}

// Load loads configuration from a file, merging with defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	if _, err := toml.Decode(expanded, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.expandPaths()

	return cfg, nil
}

// LoadFromString loads configuration from a TOML string, merging with defaults.
func LoadFromString(tomlStr string) (*Config, error) {
	cfg := DefaultConfig()

	expanded := os.ExpandEnv(tomlStr)

	if _, err := toml.Decode(expanded, cfg); err != nil {
		return nil, fmt.Errorf("parse config string: %w", err)
	}

	cfg.expandPaths()
	return cfg, nil
}

func (c *Config) expandPaths() {
	home, _ := os.UserHomeDir()

	expandTilde := func(path string) string {
		if strings.HasPrefix(path, "~/") {
			return filepath.Join(home, path[2:])
		}
		return path
	}

	c.Service.DataDir = expandTilde(c.Service.DataDir)
	c.Service.PIDFile = expandTilde(c.Service.PIDFile)
}

// Save saves the configuration to a file in TOML format.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	return nil
}

// WriteExampleConfig writes an example config file with comments.
func WriteExampleConfig(path string) error {
	example := `# analysisd configuration file
# All values shown are defaults - uncomment and modify as needed

[service]
# data_dir = "~/.analysisd"
# pid_file = "~/.analysisd/analysisd.pid"

[task]
# Number of topic-modeling jobs that may run concurrently.
workers = 2
queue_size = 64

[cache.config]
max_size = 1
ttl_seconds = 300
persistent_after_save = true

[cache.workspace]
max_size = 20
ttl_seconds = 300
persistent_after_save = true

[cache.topic]
max_size = 0
ttl_seconds = 300
persistent_after_save = false

[cache.model]
max_size = 5
ttl_seconds = 300
persistent_after_save = false

[cache.vectors]
max_size = 5
ttl_seconds = 300
persistent_after_save = false

[cache.evaluation]
max_size = 0
ttl_seconds = 300
persistent_after_save = false

[cache.experiment]
max_size = 0
ttl_seconds = 300
persistent_after_save = false

[lock]
interactive_timeout_ms = 2000

[watcher]
enabled = true
debounce_ms = 500

[embedding]
provider = "gemini"
api_key = "${GEMINI_API_KEY}"
model = "text-embedding-004"
timeout_seconds = 30

[logging]
level = "info"
format = "text"
output = ["file"]
time_format = "15:04:05.000"
max_size_mb = 100
max_backups = 5
max_age_days = 30
compress = true
`

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	return os.WriteFile(path, []byte(example), 0644)
}

// ProjectsDir returns the path to the data root under which every
// project directory lives.
func (c *Config) ProjectsDir() string {
	return filepath.Join(c.Service.DataDir, "data")
}

// ProjectDataDir returns the data directory for a specific project id.
func (c *Config) ProjectDataDir(projectID string) string {
	return filepath.Join(c.ProjectsDir(), projectID)
}

// LogPath returns the path to the service log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Service.DataDir, "logs", "analysisd.log")
}

// PIDPath returns the path to the PID file.
func (c *Config) PIDPath() string {
	if c.Service.PIDFile != "" {
		return c.Service.PIDFile
	}
	return filepath.Join(c.Service.DataDir, "analysisd.pid")
}

// EnsureDirectories creates all necessary directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Service.DataDir,
		c.ProjectsDir(),
		filepath.Dir(c.LogPath()),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	if c.Task.Workers < 1 {
		return fmt.Errorf("task.workers must be at least 1")
	}
	if c.Lock.InteractiveTimeoutMs < 0 {
		return fmt.Errorf("lock.interactive_timeout_ms cannot be negative")
	}
	if c.Embed.TimeoutSecs < 1 {
		return fmt.Errorf("embedding.timeout_seconds must be at least 1")
	}
	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c

	clone.Logging.Output = make(StringSlice, len(c.Logging.Output))
	copy(clone.Logging.Output, c.Logging.Output)

	return &clone
}
