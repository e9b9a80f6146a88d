package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"podscrub/internal/logging"
	"podscrub/internal/media/ffprobe"
)

// Editor cuts ad ranges out of audio files via ffmpeg.
type Editor struct {
	ffmpegBinary  string
	ffprobeBinary string
	logger        *slog.Logger
}

// NewEditor constructs an editor. Empty binary paths fall back to PATH
// lookup.
func NewEditor(ffmpegBinary, ffprobeBinary string, logger *slog.Logger) *Editor {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(ffprobeBinary) == "" {
		ffprobeBinary = "ffprobe"
	}
	return &Editor{
		ffmpegBinary:  ffmpegBinary,
		ffprobeBinary: ffprobeBinary,
		logger:        logging.NewComponentLogger(logger, "audio-editor"),
	}
}

// Duration probes the audio file's length in seconds.
func (e *Editor) Duration(ctx context.Context, path string) (float64, error) {
	result, err := ffprobe.Inspect(ctx, e.ffprobeBinary, path)
	if err != nil {
		return 0, err
	}
	return result.DurationSeconds(), nil
}

// Cut writes inputPath minus the given ad ranges to outputPath. Ranges are
// normalized first; with nothing to cut the audio is stream-copied so the
// output stays byte-faithful to the source.
func (e *Editor) Cut(ctx context.Context, inputPath, outputPath string, cuts []Range) error {
	normalized := NormalizeRanges(cuts)
	if len(normalized) == 0 {
		return e.copyAudio(ctx, inputPath, outputPath)
	}

	total, err := e.Duration(ctx, inputPath)
	if err != nil {
		return fmt.Errorf("cut audio: %w", err)
	}
	keeps := KeepRanges(normalized, total)
	if len(keeps) == 0 {
		return fmt.Errorf("cut audio: ad ranges cover the entire file")
	}

	filter := selectFilter(keeps)
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", inputPath,
		"-af", filter,
		"-vn",
		outputPath,
	}
	cmd := exec.CommandContext(ctx, e.ffmpegBinary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("cut audio: ffmpeg: %w: %s", err, tailOutput(output))
	}

	e.logger.Info("ad ranges removed",
		logging.Int("ranges", len(normalized)),
		logging.Float64("removed_seconds", TotalDuration(normalized)),
		logging.String("output", outputPath))
	return nil
}

// copyAudio re-muxes the input without re-encoding.
func (e *Editor) copyAudio(ctx context.Context, inputPath, outputPath string) error {
	cmd := exec.CommandContext(ctx, e.ffmpegBinary,
		"-hide_banner", "-nostdin", "-y",
		"-i", inputPath,
		"-c", "copy", "-vn",
		outputPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("copy audio: ffmpeg: %w: %s", err, tailOutput(output))
	}
	return nil
}

// selectFilter builds an aselect expression keeping only the given ranges,
// with asetpts re-stamping timestamps so the output plays gapless.
func selectFilter(keeps []Range) string {
	terms := make([]string, 0, len(keeps))
	for _, keep := range keeps {
		terms = append(terms, fmt.Sprintf("between(t,%s,%s)",
			formatSeconds(keep.Start), formatSeconds(keep.End)))
	}
	return "aselect='" + strings.Join(terms, "+") + "',asetpts=N/SR/TB"
}

func formatSeconds(value float64) string {
	return strconv.FormatFloat(value, 'f', 3, 64)
}

func tailOutput(output []byte) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
