package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"podscrub/internal/logging"
)

// WhisperTranscriber shells out to a local whisper CLI and parses its JSON
// output into segments.
type WhisperTranscriber struct {
	binary  string
	model   string
	device  string
	timeout time.Duration
	logger  *slog.Logger
}

// WhisperOptions configure a transcriber. Zero values fall back to whisper
// defaults.
type WhisperOptions struct {
	Binary  string
	Model   string
	Device  string
	Timeout time.Duration
}

// NewWhisperTranscriber constructs a transcriber from options.
func NewWhisperTranscriber(opts WhisperOptions, logger *slog.Logger) *WhisperTranscriber {
	binary := strings.TrimSpace(opts.Binary)
	if binary == "" {
		binary = "whisper"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "small"
	}
	device := strings.TrimSpace(opts.Device)
	if device == "" {
		device = "cpu"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &WhisperTranscriber{
		binary:  binary,
		model:   model,
		device:  device,
		timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "transcriber"),
	}
}

// whisperOutput mirrors the JSON file whisper writes next to the audio.
type whisperOutput struct {
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe runs whisper over audioPath and returns the spoken segments in
// time order. An empty result with nil error means the audio had no speech.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, audioPath string) ([]Segment, error) {
	outputDir, err := os.MkdirTemp("", "podscrub-whisper-*")
	if err != nil {
		return nil, fmt.Errorf("transcribe: temp dir: %w", err)
	}
	defer os.RemoveAll(outputDir)

	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	started := time.Now()
	t.logger.Info("transcription started",
		logging.String("model", t.model),
		logging.String("device", t.device))

	output, err := runCommand(runCtx, t.binary,
		audioPath,
		"--model", t.model,
		"--device", t.device,
		"--output_format", "json",
		"--output_dir", outputDir,
	)
	if err != nil {
		return nil, fmt.Errorf("transcribe: whisper: %w: %s", err, lastOutputLine(output))
	}

	jsonPath := whisperJSONPath(outputDir, audioPath)
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("transcribe: read whisper output: %w", err)
	}

	var parsed whisperOutput
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("transcribe: parse whisper output: %w", err)
	}

	segments := make([]Segment, 0, len(parsed.Segments))
	for _, segment := range parsed.Segments {
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		segments = append(segments, Segment{Start: segment.Start, End: segment.End, Text: text})
	}

	t.logger.Info("transcription complete",
		logging.Int("segments", len(segments)),
		logging.Duration("elapsed", time.Since(started)))
	return segments, nil
}

// whisperJSONPath is the JSON file whisper writes: the audio basename with a
// .json extension inside the output directory.
func whisperJSONPath(outputDir, audioPath string) string {
	base := filepath.Base(audioPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outputDir, base+".json")
}
