package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults failed validation: %v", err)
	}
	if cfg.Processing.MaxJobSeconds != 1800 {
		t.Errorf("max job seconds = %d, want 1800", cfg.Processing.MaxJobSeconds)
	}
	if !cfg.Analysis.Enabled || cfg.Analysis.FrameSeconds != 5.0 {
		t.Errorf("analysis defaults = %+v", cfg.Analysis)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"
bind = "127.0.0.1:9000"
base_url = "https://pods.example.com/"

[[feeds]]
slug = "my-show"
url = "https://example.com/feed.xml"

[processing]
max_job_seconds = 600
acquire_timeout_seconds = 5
retention_minutes = 60

[analysis]
enabled = true
frame_seconds = 2.5
threshold_db = 4.0
min_anomaly_seconds = 10.0
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolvedPath, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !exists || resolvedPath != path {
		t.Fatalf("resolved = %q exists=%v", resolvedPath, exists)
	}
	if cfg.Paths.Bind != "127.0.0.1:9000" {
		t.Errorf("bind = %q", cfg.Paths.Bind)
	}
	// Trailing slash is stripped during normalization.
	if cfg.Paths.BaseURL != "https://pods.example.com" {
		t.Errorf("base url = %q", cfg.Paths.BaseURL)
	}
	if len(cfg.Feeds) != 1 || cfg.Feeds[0].Slug != "my-show" {
		t.Errorf("feeds = %+v", cfg.Feeds)
	}
	if cfg.MaxJobDuration() != 10*time.Minute {
		t.Errorf("max job duration = %v", cfg.MaxJobDuration())
	}
	if cfg.AcquireTimeout() != 5*time.Second {
		t.Errorf("acquire timeout = %v", cfg.AcquireTimeout())
	}
	if cfg.Retention() != time.Hour {
		t.Errorf("retention = %v", cfg.Retention())
	}
	// Unset sections keep their defaults.
	if cfg.Whisper.Model != "small" {
		t.Errorf("whisper model = %q", cfg.Whisper.Model)
	}
	if cfg.Analysis.FrameSeconds != 2.5 {
		t.Errorf("frame seconds = %v", cfg.Analysis.FrameSeconds)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")
	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if exists {
		t.Fatal("absent file reported as existing")
	}
	if cfg.Paths.Bind != "0.0.0.0:8000" {
		t.Errorf("bind = %q", cfg.Paths.Bind)
	}
}

func TestLoadRejectsBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[paths\ndata_dir ="), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, _, err := Load(path); err == nil {
		t.Fatal("broken TOML accepted")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("PODSCRUB_BASE_URL", "https://env.example.com")
	t.Setenv("PODSCRUB_LLM_API_KEY", "env-key")

	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Paths.BaseURL != "https://env.example.com" {
		t.Errorf("base url = %q", cfg.Paths.BaseURL)
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Errorf("api key = %q", cfg.LLM.APIKey)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty data dir", func(c *Config) { c.Paths.DataDir = "" }, "data_dir"},
		{"empty bind", func(c *Config) { c.Paths.Bind = "" }, "bind"},
		{"relative base url", func(c *Config) { c.Paths.BaseURL = "/just/a/path" }, "base_url"},
		{"feed without slug", func(c *Config) { c.Feeds = []Feed{{URL: "https://x"}} }, "slug"},
		{"feed without url", func(c *Config) { c.Feeds = []Feed{{Slug: "a"}} }, "url"},
		{"duplicate slugs", func(c *Config) {
			c.Feeds = []Feed{{Slug: "a", URL: "https://x"}, {Slug: "a", URL: "https://y"}}
		}, "duplicate"},
		{"zero max job seconds", func(c *Config) { c.Processing.MaxJobSeconds = 0 }, "max_job_seconds"},
		{"negative acquire timeout", func(c *Config) { c.Processing.AcquireTimeoutSeconds = -1 }, "acquire_timeout"},
		{"negative retention", func(c *Config) { c.Processing.RetentionMinutes = -1 }, "retention"},
		{"zero frame seconds", func(c *Config) { c.Analysis.FrameSeconds = 0 }, "frame_seconds"},
		{"zero refresh interval", func(c *Config) { c.Workflow.RefreshIntervalMinutes = 0 }, "refresh_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			if err := cfg.normalize(); err != nil {
				t.Fatalf("normalize: %v", err)
			}
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestDisabledAnalysisSkipsValidation(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	cfg.Analysis.Enabled = false
	cfg.Analysis.FrameSeconds = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled analysis still validated: %v", err)
	}
}

func TestSampleConfigParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := os.WriteFile(path, []byte(SampleConfig()), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	if _, _, _, err := Load(path); err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
}
