// Package config loads txp settings from defaults, an optional TOML file
// and TXP_* environment variables, in that order. Command-line flags are
// applied last by the CLI.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/txp-network/txp/internal/app/pipeline"
	"github.com/txp-network/txp/internal/logging"
)

// Config is the root configuration.
type Config struct {
	Pipeline PipelineConfig `toml:"pipeline"`
	Log      LogConfig      `toml:"log"`
	Output   OutputConfig   `toml:"output"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

// PipelineConfig controls dispatch and ordering.
type PipelineConfig struct {
	QueueCapacity int    `toml:"queue_capacity"`
	Order         string `toml:"order"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// OutputConfig controls optional sinks besides stdout.
type OutputConfig struct {
	SQLitePath string `toml:"sqlite_path"` // empty disables the snapshot store
}

// MetricsConfig controls the optional HTTP endpoint.
type MetricsConfig struct {
	Addr string `toml:"addr"` // empty disables the endpoint
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Pipeline: PipelineConfig{
			QueueCapacity: 32,
			Order:         string(pipeline.OrderByClient),
		},
		Log: LogConfig{
			Level:  "error",
			Format: logging.FormatConsole,
		},
	}
}

// Home returns the txp home directory: $TXP_HOME or ~/.txp.
func Home() string {
	if h := os.Getenv("TXP_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".txp"
	}
	return filepath.Join(home, ".txp")
}

// DefaultPath returns the config file looked up when none is given.
func DefaultPath() string {
	return filepath.Join(Home(), "config.toml")
}

// Load builds a config from defaults, the TOML file at path and the
// environment. An empty path uses DefaultPath, which may be absent.
// An explicit path must exist.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	_, err := toml.DecodeFile(path, &cfg)
	missing := errors.Is(err, fs.ErrNotExist)
	if err != nil && (explicit || !missing) {
		return Config{}, fmt.Errorf("config: load %s: %w", path, err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays TXP_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("TXP_QUEUE_CAPACITY"); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: TXP_QUEUE_CAPACITY %q: %w", v, err)
		}
		c.Pipeline.QueueCapacity = n
	}
	if v, ok := lookup("TXP_ORDER"); ok && v != "" {
		c.Pipeline.Order = v
	}
	if v, ok := lookup("TXP_LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup("TXP_LOG_FORMAT"); ok && v != "" {
		c.Log.Format = v
	}
	if v, ok := lookup("TXP_SQLITE_PATH"); ok {
		c.Output.SQLitePath = v
	}
	if v, ok := lookup("TXP_METRICS_ADDR"); ok {
		c.Metrics.Addr = v
	}
	return nil
}

// Validate rejects unusable settings.
func (c Config) Validate() error {
	if err := c.PipelineConfig().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if !logging.ValidFormat(c.Log.Format) {
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	return nil
}

// PipelineConfig converts the pipeline section.
func (c Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		QueueCapacity: c.Pipeline.QueueCapacity,
		Order:         pipeline.Order(strings.ToLower(c.Pipeline.Order)),
	}
}

// LogOptions converts the log section.
func (c Config) LogOptions() logging.Options {
	return logging.Options{Level: c.Log.Level, Format: c.Log.Format}
}
