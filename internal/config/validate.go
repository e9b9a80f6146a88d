package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateFeeds(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateProcessing(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.Bind) == "" {
		return errors.New("paths.bind must be set")
	}
	parsed, err := url.Parse(c.Paths.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("paths.base_url must be an absolute URL, got %q", c.Paths.BaseURL)
	}
	return nil
}

func (c *Config) validateFeeds() error {
	seen := make(map[string]struct{}, len(c.Feeds))
	for _, feed := range c.Feeds {
		if feed.Slug == "" {
			return errors.New("feeds: slug must be set")
		}
		if feed.URL == "" {
			return fmt.Errorf("feeds: url must be set for slug %q", feed.Slug)
		}
		if _, ok := seen[feed.Slug]; ok {
			return fmt.Errorf("feeds: duplicate slug %q", feed.Slug)
		}
		seen[feed.Slug] = struct{}{}
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	if !c.Analysis.Enabled {
		return nil
	}
	if c.Analysis.FrameSeconds <= 0 {
		return errors.New("analysis.frame_seconds must be positive")
	}
	if c.Analysis.ThresholdDB <= 0 {
		return errors.New("analysis.threshold_db must be positive")
	}
	if c.Analysis.MinAnomalySeconds < 0 {
		return errors.New("analysis.min_anomaly_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateProcessing() error {
	if c.Processing.MaxJobSeconds <= 0 {
		return errors.New("processing.max_job_seconds must be positive")
	}
	if c.Processing.AcquireTimeoutSeconds < 0 {
		return errors.New("processing.acquire_timeout_seconds must not be negative")
	}
	if c.Processing.RetentionMinutes < 0 {
		return errors.New("processing.retention_minutes must not be negative")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.RefreshIntervalMinutes <= 0 {
		return errors.New("workflow.refresh_interval_minutes must be positive")
	}
	return nil
}
