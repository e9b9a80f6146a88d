package testsupport

import (
	"path/filepath"
	"testing"

	"podscrub/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.Bind = "127.0.0.1:0"
	cfg.Paths.BaseURL = "http://127.0.0.1:8080"
	cfg.Feeds = []config.Feed{{Slug: "test-show", URL: "http://feeds.example.com/test-show.xml"}}

	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithFeeds replaces the configured feeds on the test config.
func WithFeeds(feeds ...config.Feed) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Feeds = feeds
	}
}

// WithAPIToken sets the API bearer token on the test config.
func WithAPIToken(token string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Paths.APIToken = token
	}
}
