package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	Bind    string `toml:"bind"`
	BaseURL string `toml:"base_url"`
	// APIToken, when set, is required as a bearer token on /api requests.
	APIToken string `toml:"api_token"`
}

// Feed maps a local slug to an upstream RSS source.
type Feed struct {
	Slug string `toml:"slug"`
	URL  string `toml:"url"`
}

// Whisper contains transcription settings.
type Whisper struct {
	Binary string `toml:"binary"`
	Model  string `toml:"model"`
	Device string `toml:"device"`
	// TimeoutSeconds bounds a single transcription run.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// LLM contains the ad-detection model connection settings.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Analysis contains volume anomaly detection settings.
type Analysis struct {
	Enabled           bool    `toml:"enabled"`
	FrameSeconds      float64 `toml:"frame_seconds"`
	ThresholdDB       float64 `toml:"threshold_db"`
	MinAnomalySeconds float64 `toml:"min_anomaly_seconds"`
}

// Processing contains scheduler and retention settings.
type Processing struct {
	// MaxJobSeconds is the staleness window after which a lease is presumed
	// abandoned.
	MaxJobSeconds int `toml:"max_job_seconds"`
	// AcquireTimeoutSeconds is how long a request blocks for the slot before
	// reporting busy. Zero means non-blocking.
	AcquireTimeoutSeconds int `toml:"acquire_timeout_seconds"`
	// RetentionMinutes controls cleanup of processed artifacts. Zero disables
	// cleanup.
	RetentionMinutes int `toml:"retention_minutes"`
	FFmpegBinary     string `toml:"ffmpeg_binary"`
	FFprobeBinary    string `toml:"ffprobe_binary"`
}

// Workflow contains daemon timing configuration.
type Workflow struct {
	RefreshIntervalMinutes int `toml:"refresh_interval_minutes"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for podscrub.
type Config struct {
	Paths      Paths      `toml:"paths"`
	Feeds      []Feed     `toml:"feeds"`
	Whisper    Whisper    `toml:"whisper"`
	LLM        LLM        `toml:"llm"`
	Analysis   Analysis   `toml:"analysis"`
	Processing Processing `toml:"processing"`
	Workflow   Workflow   `toml:"workflow"`
	Logging    Logging    `toml:"logging"`
}

// SampleConfig returns the embedded sample configuration file contents.
func SampleConfig() string {
	return sampleConfig
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/podscrub/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("podscrub.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon needs at runtime.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FeedBySlug returns the configured feed for slug.
func (c *Config) FeedBySlug(slug string) (Feed, bool) {
	for _, feed := range c.Feeds {
		if feed.Slug == slug {
			return feed, true
		}
	}
	return Feed{}, false
}

// MaxJobDuration returns the configured staleness window.
func (c *Config) MaxJobDuration() time.Duration {
	return time.Duration(c.Processing.MaxJobSeconds) * time.Second
}

// AcquireTimeout returns the configured slot acquire timeout.
func (c *Config) AcquireTimeout() time.Duration {
	return time.Duration(c.Processing.AcquireTimeoutSeconds) * time.Second
}

// RefreshInterval returns the feed refresh period.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Workflow.RefreshIntervalMinutes) * time.Minute
}

// Retention returns the artifact retention period, or zero when disabled.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Processing.RetentionMinutes) * time.Minute
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}

	if v := strings.TrimSpace(os.Getenv("PODSCRUB_BASE_URL")); v != "" {
		c.Paths.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("PODSCRUB_LLM_API_KEY")); v != "" {
		c.LLM.APIKey = v
	}
	c.Paths.BaseURL = strings.TrimRight(strings.TrimSpace(c.Paths.BaseURL), "/")

	for i := range c.Feeds {
		c.Feeds[i].Slug = strings.TrimSpace(c.Feeds[i].Slug)
		c.Feeds[i].URL = strings.TrimSpace(c.Feeds[i].URL)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && pathValue[1] == '/' {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}
