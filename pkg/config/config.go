// Package config loads and validates the installer's configuration file.
//
// The file is optional: every field has a working default, so a missing
// file yields the default configuration rather than an error.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/noxsuite/noxinstall/pkg/telemetry"
)

// Default file locations, all under the state directory.
const (
	DefaultStateDirName   = ".noxinstall"
	DefaultConfigFileName = "noxinstall.yaml"
	DefaultJournalName    = "install.log"
	DefaultDatabaseName   = "history.db"
	DefaultKBName         = "knowledge_base.json"
)

// Config is the installer's own configuration, distinct from the install
// plan the planner produces.
type Config struct {
	// StateDirectory holds the journal, history database, and knowledge
	// base override.
	StateDirectory string `yaml:"state_directory" validate:"required"`

	// JournalPath is the append-only installation log.
	JournalPath string `yaml:"journal_path" validate:"required"`

	// DatabasePath is the SQLite installation history database.
	DatabasePath string `yaml:"database_path" validate:"required"`

	// KnowledgeBasePath is the optional user override for the failure
	// knowledge base.
	KnowledgeBasePath string `yaml:"knowledge_base_path"`

	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`
	Monitor MonitorConfig `yaml:"monitor"`
}

// LoggingConfig mirrors telemetry.LoggingConfig with file syntax.
type LoggingConfig struct {
	Level        string `yaml:"level" validate:"oneof=trace debug info warn error fatal"`
	Format       string `yaml:"format" validate:"oneof=console json"`
	Output       string `yaml:"output" validate:"required"`
	EnableCaller bool   `yaml:"enable_caller"`
	TimeFormat   string `yaml:"time_format" validate:"oneof=unix rfc3339"`
}

// TracingConfig mirrors telemetry.TracingConfig with file syntax.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter" validate:"oneof=otlp stdout none"`
	Endpoint     string  `yaml:"endpoint" validate:"required_if=Exporter otlp"`
	SamplingRate float64 `yaml:"sampling_rate" validate:"gte=0,lte=1"`
	Insecure     bool    `yaml:"insecure"`
}

// MetricsConfig mirrors telemetry.MetricsConfig with file syntax.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listen_address" validate:"required_if=Enabled true"`
	Path          string `yaml:"path"`
}

// MonitorConfig mirrors telemetry.MonitorConfig with file syntax.
type MonitorConfig struct {
	Enabled            bool          `yaml:"enabled"`
	Interval           time.Duration `yaml:"interval" validate:"required_if=Enabled true"`
	WindowSize         int           `yaml:"window_size" validate:"gte=0"`
	MemoryAlertPercent float64       `yaml:"memory_alert_percent" validate:"gte=0,lte=100"`
	DiskAlertPercent   float64       `yaml:"disk_alert_percent" validate:"gte=0,lte=100"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	stateDir := DefaultStateDir()
	return &Config{
		StateDirectory:    stateDir,
		JournalPath:       filepath.Join(stateDir, DefaultJournalName),
		DatabasePath:      filepath.Join(stateDir, DefaultDatabaseName),
		KnowledgeBasePath: filepath.Join(stateDir, DefaultKBName),
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			Output:     "stderr",
			TimeFormat: "rfc3339",
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "none",
			SamplingRate: 1.0,
			Insecure:     true,
		},
		Metrics: MetricsConfig{
			Enabled:       false,
			ListenAddress: ":9464",
			Path:          "/metrics",
		},
		Monitor: MonitorConfig{
			Enabled:            true,
			Interval:           5 * time.Second,
			WindowSize:         100,
			MemoryAlertPercent: 85,
			DiskAlertPercent:   90,
		},
	}
}

// DefaultStateDir is ~/.noxinstall, falling back to the working directory.
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultStateDirName
	}
	return filepath.Join(home, DefaultStateDirName)
}

// DefaultConfigPath is the location Load consults when no explicit path is
// given.
func DefaultConfigPath() string {
	return filepath.Join(DefaultStateDir(), DefaultConfigFileName)
}

// Load reads the configuration at path, layering it over the defaults. A
// missing file returns the defaults. An empty path uses DefaultConfigPath.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks structural validity via struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// EnsureStateDir creates the state directory when missing.
func (c *Config) EnsureStateDir() error {
	if err := os.MkdirAll(c.StateDirectory, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	return nil
}

// Telemetry maps the file configuration onto the telemetry stack's config.
func (c *Config) Telemetry(version string) *telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.ServiceVersion = version
	tc.Logging = telemetry.LoggingConfig{
		Level:        c.Logging.Level,
		Format:       c.Logging.Format,
		Output:       c.Logging.Output,
		EnableCaller: c.Logging.EnableCaller,
		TimeFormat:   c.Logging.TimeFormat,
	}
	tc.Tracing = telemetry.TracingConfig{
		Enabled:      c.Tracing.Enabled,
		Exporter:     c.Tracing.Exporter,
		Endpoint:     c.Tracing.Endpoint,
		SamplingRate: c.Tracing.SamplingRate,
		Insecure:     c.Tracing.Insecure,
	}
	tc.Metrics.Enabled = c.Metrics.Enabled
	tc.Metrics.ListenAddress = c.Metrics.ListenAddress
	if c.Metrics.Path != "" {
		tc.Metrics.Path = c.Metrics.Path
	}
	tc.Monitor = telemetry.MonitorConfig{
		Enabled:            c.Monitor.Enabled,
		Interval:           c.Monitor.Interval,
		WindowSize:         c.Monitor.WindowSize,
		MemoryAlertPercent: c.Monitor.MemoryAlertPercent,
		DiskAlertPercent:   c.Monitor.DiskAlertPercent,
	}
	return tc
}

// expandPaths resolves ~ prefixes and roots relative paths in the state
// directory.
func (c *Config) expandPaths() {
	c.StateDirectory = expandTilde(c.StateDirectory)
	c.JournalPath = c.resolve(expandTilde(c.JournalPath))
	c.DatabasePath = c.resolve(expandTilde(c.DatabasePath))
	if c.KnowledgeBasePath != "" {
		c.KnowledgeBasePath = c.resolve(expandTilde(c.KnowledgeBasePath))
	}
}

func (c *Config) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.StateDirectory, path)
}

func expandTilde(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
