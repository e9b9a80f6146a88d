package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// apiClient talks to the daemon's JSON API.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type daemonStatus struct {
	Running   bool `json:"running"`
	ActiveJob *struct {
		Slug       string    `json:"slug"`
		EpisodeID  string    `json:"episode_id"`
		AcquiredAt time.Time `json:"acquired_at"`
	} `json:"active_job"`
	EpisodeCounts map[string]int `json:"episode_counts"`
	Feeds         int            `json:"feeds"`
}

type feedEntry struct {
	Slug      string `json:"slug"`
	SourceURL string `json:"source_url"`
	ProxyURL  string `json:"proxy_url"`
}

type episodeEntry struct {
	EpisodeID    string     `json:"episode_id"`
	Title        string     `json:"title"`
	Status       string     `json:"status"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ProcessedAt  *time.Time `json:"processed_at"`
	AdsRemoved   *int       `json:"ads_removed"`
	TimeSaved    *float64   `json:"time_saved_seconds"`
	ErrorMessage string     `json:"error"`
}

func (c *apiClient) status(ctx context.Context) (daemonStatus, error) {
	var payload daemonStatus
	err := c.getJSON(ctx, "/api/status", &payload)
	return payload, err
}

func (c *apiClient) feeds(ctx context.Context) ([]feedEntry, error) {
	var payload struct {
		Feeds []feedEntry `json:"feeds"`
	}
	err := c.getJSON(ctx, "/api/feeds", &payload)
	return payload.Feeds, err
}

func (c *apiClient) episodes(ctx context.Context, slug string) ([]episodeEntry, error) {
	var payload struct {
		Episodes []episodeEntry `json:"episodes"`
	}
	err := c.getJSON(ctx, "/api/feeds/"+slug+"/episodes", &payload)
	return payload.Episodes, err
}

func (c *apiClient) reprocess(ctx context.Context, slug, episodeID string) error {
	path := fmt.Sprintf("/api/feeds/%s/episodes/%s/reprocess", slug, episodeID)
	return c.do(ctx, http.MethodPost, path, nil)
}

func (c *apiClient) getJSON(ctx context.Context, path string, target any) error {
	return c.do(ctx, http.MethodGet, path, target)
}

func (c *apiClient) do(ctx context.Context, method, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var errPayload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &errPayload) == nil && errPayload.Error != "" {
			return fmt.Errorf("daemon error: %s", errPayload.Error)
		}
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}
	if target == nil {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
