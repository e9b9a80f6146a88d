package episode

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle of an episode.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusFailed     Status = "failed"
)

var statusSet = map[Status]struct{}{
	StatusProcessing: {},
	StatusProcessed:  {},
	StatusFailed:     {},
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// ProcessedInfo carries the fields only a processed episode has.
type ProcessedInfo struct {
	ProcessedAt      time.Time
	OriginalDuration float64
	NewDuration      float64
	AdsRemoved       int
}

// TimeSaved returns how many seconds of audio were removed.
func (p ProcessedInfo) TimeSaved() float64 {
	if p.OriginalDuration <= 0 || p.NewDuration <= 0 {
		return 0
	}
	saved := p.OriginalDuration - p.NewDuration
	if saved < 0 {
		return 0
	}
	return saved
}

// FailureInfo carries the fields only a failed episode has.
type FailureInfo struct {
	FailedAt time.Time
	Message  string
}

// Record is the persisted state of one episode. Exactly one of the payload
// pointers matching Status is set; the constructors below keep that shape so
// "field may or may not be present" never has to be re-checked downstream.
type Record struct {
	Slug        string
	EpisodeID   string
	Title       string
	OriginalURL string
	Status      Status

	Processed *ProcessedInfo
	Failed    *FailureInfo

	StartedAt time.Time
	UpdatedAt time.Time

	// AdMarkersJSON holds the raw detection result for the API surface.
	AdMarkersJSON string
}

// NewProcessing builds a record for an episode that just entered processing.
func NewProcessing(slug, episodeID, originalURL, title string) *Record {
	now := time.Now().UTC()
	return &Record{
		Slug:        slug,
		EpisodeID:   episodeID,
		Title:       title,
		OriginalURL: originalURL,
		Status:      StatusProcessing,
		StartedAt:   now,
		UpdatedAt:   now,
	}
}

// MarkProcessed transitions the record to processed with its result payload.
func (r *Record) MarkProcessed(originalDuration, newDuration float64, adsRemoved int) {
	now := time.Now().UTC()
	r.Status = StatusProcessed
	r.Processed = &ProcessedInfo{
		ProcessedAt:      now,
		OriginalDuration: originalDuration,
		NewDuration:      newDuration,
		AdsRemoved:       adsRemoved,
	}
	r.Failed = nil
	r.UpdatedAt = now
}

// MarkFailed transitions the record to failed with an error message.
func (r *Record) MarkFailed(message string) {
	now := time.Now().UTC()
	r.Status = StatusFailed
	r.Failed = &FailureInfo{FailedAt: now, Message: message}
	r.Processed = nil
	r.UpdatedAt = now
}

// Validate checks that the payload matches the status tag.
func (r *Record) Validate() error {
	if _, ok := statusSet[r.Status]; !ok {
		return fmt.Errorf("episode record: unknown status %q", r.Status)
	}
	switch r.Status {
	case StatusProcessed:
		if r.Processed == nil {
			return fmt.Errorf("episode record: processed status without payload")
		}
		if r.Failed != nil {
			return fmt.Errorf("episode record: processed status with failure payload")
		}
	case StatusFailed:
		if r.Failed == nil {
			return fmt.Errorf("episode record: failed status without payload")
		}
		if r.Processed != nil {
			return fmt.Errorf("episode record: failed status with processed payload")
		}
	case StatusProcessing:
		if r.Processed != nil || r.Failed != nil {
			return fmt.Errorf("episode record: processing status with completion payload")
		}
	}
	return nil
}
