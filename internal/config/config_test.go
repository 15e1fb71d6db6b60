package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/txp-network/txp/internal/app/pipeline"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Pipeline.QueueCapacity != 32 {
		t.Errorf("Pipeline.QueueCapacity = %d, want %d", cfg.Pipeline.QueueCapacity, 32)
	}
	if cfg.Pipeline.Order != "client" {
		t.Errorf("Pipeline.Order = %q, want %q", cfg.Pipeline.Order, "client")
	}
	if cfg.Log.Level != "error" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "error")
	}
	if cfg.Output.SQLitePath != "" {
		t.Error("Output.SQLitePath should be empty by default (opt-in)")
	}
	if cfg.Metrics.Addr != "" {
		t.Error("Metrics.Addr should be empty by default (opt-in)")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[pipeline]
queue_capacity = 8
order = "completion"

[log]
level = "debug"
format = "json"

[output]
sqlite_path = "/tmp/txp.db"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Pipeline.QueueCapacity != 8 {
		t.Errorf("QueueCapacity = %d, want 8", cfg.Pipeline.QueueCapacity)
	}
	if cfg.PipelineConfig().Order != pipeline.OrderByCompletion {
		t.Errorf("Order = %q, want completion", cfg.PipelineConfig().Order)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want json", cfg.Log.Format)
	}
	if cfg.Output.SQLitePath != "/tmp/txp.db" {
		t.Errorf("SQLitePath = %q", cfg.Output.SQLitePath)
	}
	// Unset keys keep their defaults.
	if cfg.Metrics.Addr != "" {
		t.Errorf("Metrics.Addr = %q, want empty", cfg.Metrics.Addr)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("TXP_HOME", t.TempDir())

	if _, err := Load(""); err != nil {
		t.Errorf("Load(\"\") with no default file: %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("Load(explicit missing path) should fail")
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[pipeline\nqueue_capacity = "), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() should fail on invalid TOML")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("TXP_HOME", home)
	if err := os.WriteFile(filepath.Join(home, "config.toml"), []byte("[pipeline]\nqueue_capacity = 8\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TXP_QUEUE_CAPACITY", "64")
	t.Setenv("TXP_LOG_LEVEL", "trace")
	t.Setenv("TXP_METRICS_ADDR", "127.0.0.1:9090")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Pipeline.QueueCapacity != 64 {
		t.Errorf("QueueCapacity = %d, want 64", cfg.Pipeline.QueueCapacity)
	}
	if cfg.Log.Level != "trace" {
		t.Errorf("Log.Level = %q, want trace", cfg.Log.Level)
	}
	if cfg.Metrics.Addr != "127.0.0.1:9090" {
		t.Errorf("Metrics.Addr = %q", cfg.Metrics.Addr)
	}
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("TXP_HOME", t.TempDir())
	t.Setenv("TXP_QUEUE_CAPACITY", "lots")
	if _, err := Load(""); err == nil {
		t.Error("Load() should reject a non-numeric TXP_QUEUE_CAPACITY")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero capacity", func(c *Config) { c.Pipeline.QueueCapacity = 0 }},
		{"unknown order", func(c *Config) { c.Pipeline.Order = "random" }},
		{"unknown level", func(c *Config) { c.Log.Level = "chatty" }},
		{"unknown format", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}
