package transcribe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"podscrub/internal/logging"
)

const defaultDownloadTimeout = 10 * time.Minute

// Downloader fetches episode audio over HTTP into a destination directory.
type Downloader struct {
	client *http.Client
	logger *slog.Logger
}

// NewDownloader constructs a downloader. A nil client uses a default with a
// generous timeout sized for full-length episodes.
func NewDownloader(client *http.Client, logger *slog.Logger) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: defaultDownloadTimeout}
	}
	return &Downloader{
		client: client,
		logger: logging.NewComponentLogger(logger, "downloader"),
	}
}

// Download fetches rawURL into destDir and returns the downloaded file path.
// The write goes through a temp file and rename, so a partially downloaded
// episode never masquerades as a complete one.
func (d *Downloader) Download(ctx context.Context, rawURL, destDir string) (string, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", fmt.Errorf("download: empty url")
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("download: create dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("download: build request: %w", err)
	}
	req.Header.Set("User-Agent", "podscrub/1.0")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	dest := filepath.Join(destDir, "audio"+audioExtension(rawURL))
	tmp, err := os.CreateTemp(destDir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("download: create temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	written, err := io.Copy(tmp, resp.Body)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", rawURL, err)
	}
	if resp.ContentLength > 0 && written != resp.ContentLength {
		return "", fmt.Errorf("download %s: got %d of %d bytes", rawURL, written, resp.ContentLength)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("download: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("download: finalize file: %w", err)
	}

	d.logger.Info("audio downloaded",
		logging.String("url", rawURL),
		logging.String("path", dest),
		logging.Int64("bytes", written))
	return dest, nil
}

// audioExtension pulls the file extension from the URL path, defaulting to
// .mp3 when the URL has none.
func audioExtension(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ".mp3"
	}
	ext := strings.ToLower(path.Ext(parsed.Path))
	switch ext {
	case ".mp3", ".m4a", ".aac", ".ogg", ".opus", ".wav", ".flac":
		return ext
	default:
		return ".mp3"
	}
}
