package addetect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"podscrub/internal/logging"
	"podscrub/internal/transcribe"
)

// Ad is one detected advertisement span.
type Ad struct {
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
	Reason string  `json:"reason"`
}

// Duration returns the ad length in seconds.
func (a Ad) Duration() float64 {
	return a.End - a.Start
}

// Detection is the outcome of one detection pass. RawResponse preserves the
// model output verbatim for debugging, and Err records why detection
// degraded when Ads came back empty for a non-content reason.
type Detection struct {
	Ads         []Ad   `json:"ads"`
	RawResponse string `json:"raw_response,omitempty"`
	Model       string `json:"model,omitempty"`
	Err         string `json:"error,omitempty"`
}

// TotalAdSeconds sums the duration of all detected ads.
func (d Detection) TotalAdSeconds() float64 {
	total := 0.0
	for _, ad := range d.Ads {
		total += ad.Duration()
	}
	return total
}

// Detector runs transcripts through the LLM and validates the result.
type Detector struct {
	client *Client
	logger *slog.Logger
}

// NewDetector constructs a detector around client.
func NewDetector(client *Client, logger *slog.Logger) *Detector {
	return &Detector{
		client: client,
		logger: logging.NewComponentLogger(logger, "ad-detector"),
	}
}

// Detect identifies ad segments in the transcript. It never returns an
// error: a missing API key, request failure, or unparseable response yields
// an empty Detection with Err set, and the episode still gets served.
func (d *Detector) Detect(ctx context.Context, segments []transcribe.Segment, podcastName, episodeTitle string) Detection {
	if d.client == nil || !d.client.HasAPIKey() {
		d.logger.Warn("skipping ad detection, no api key configured")
		return Detection{Ads: []Ad{}}
	}
	if len(segments) == 0 {
		return Detection{Ads: []Ad{}}
	}

	prompt := BuildPrompt(segments, podcastName, episodeTitle)
	d.logger.Info("requesting ad detection",
		logging.String("model", d.client.Model()),
		logging.Int("segments", len(segments)))

	response, err := d.client.Complete(ctx, prompt)
	if err != nil {
		d.logger.Error("ad detection request failed", logging.Error(err))
		return Detection{Ads: []Ad{}, Err: err.Error()}
	}

	ads, err := parseAds(response)
	if err != nil {
		d.logger.Error("ad detection response unparseable", logging.Error(err))
		return Detection{Ads: []Ad{}, RawResponse: response, Err: err.Error()}
	}

	d.logger.Info("ad detection complete",
		logging.Int("ads", len(ads)),
		logging.Float64("total_seconds", Detection{Ads: ads}.TotalAdSeconds()))
	return Detection{Ads: ads, RawResponse: response, Model: d.client.Model()}
}

// parseAds extracts the JSON array from the model response, tolerating code
// fences and surrounding prose. Entries without both start and end are
// dropped.
func parseAds(response string) ([]Ad, error) {
	payload := extractJSONArray(response)
	if payload == "" {
		return nil, errors.New("no JSON array found in response")
	}

	var raw []map[string]any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("parse ad array: %w", err)
	}

	ads := make([]Ad, 0, len(raw))
	for _, entry := range raw {
		start, okStart := toFloat(entry["start"])
		end, okEnd := toFloat(entry["end"])
		if !okStart || !okEnd || end <= start {
			continue
		}
		reason, _ := entry["reason"].(string)
		if strings.TrimSpace(reason) == "" {
			reason = "Advertisement detected"
		}
		ads = append(ads, Ad{Start: start, End: end, Reason: reason})
	}
	return ads, nil
}

func extractJSONArray(response string) string {
	trimmed := strings.TrimSpace(stripCodeFence(response))
	start := strings.Index(trimmed, "[")
	end := strings.LastIndex(trimmed, "]")
	if start < 0 || end <= start {
		return ""
	}
	return trimmed[start : end+1]
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimLeft(trimmed[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		parsed, err := v.Float64()
		return parsed, err == nil
	default:
		return 0, false
	}
}
