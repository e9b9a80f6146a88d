package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"podscrub/internal/logging"
)

const (
	defaultFetchTimeout = 30 * time.Second
	maxFeedBytes        = 20 << 20
)

// Fetcher downloads RSS documents.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger
}

// NewFetcher constructs a fetcher. A nil client uses a default with a
// 30-second timeout.
func NewFetcher(client *http.Client, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	return &Fetcher{
		client: client,
		logger: logging.NewComponentLogger(logger, "feed-fetcher"),
	}
}

// Fetch downloads the raw RSS document at feedURL. The body is capped so a
// misbehaving feed cannot exhaust memory.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: build request: %w", err)
	}
	req.Header.Set("User-Agent", "podscrub/1.0")
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", feedURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed %s: unexpected status %d", feedURL, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: read body: %w", feedURL, err)
	}
	f.logger.Debug("feed fetched", logging.String("url", feedURL), logging.Int("bytes", len(raw)))
	return raw, nil
}
