package transcribe

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment is one timestamped span of transcribed speech.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// FormatSegments renders segments in the on-disk transcript format, one line
// per segment: [HH:MM:SS.mmm --> HH:MM:SS.mmm] text.
func FormatSegments(segments []Segment) string {
	var builder strings.Builder
	for _, segment := range segments {
		builder.WriteString("[")
		builder.WriteString(formatTimestamp(segment.Start))
		builder.WriteString(" --> ")
		builder.WriteString(formatTimestamp(segment.End))
		builder.WriteString("] ")
		builder.WriteString(strings.TrimSpace(segment.Text))
		builder.WriteString("\n")
	}
	return builder.String()
}

// ParseTranscript reads the on-disk transcript format back into segments.
// Lines that do not parse are skipped individually so one corrupt line does
// not lose the rest of the transcript.
func ParseTranscript(text string) []Segment {
	var segments []Segment
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "[") {
			continue
		}
		timePart, textPart, found := strings.Cut(line, "] ")
		if !found {
			continue
		}
		timeRange := strings.TrimPrefix(timePart, "[")
		startRaw, endRaw, found := strings.Cut(timeRange, " --> ")
		if !found {
			continue
		}
		start, err := parseTimestamp(startRaw)
		if err != nil {
			continue
		}
		end, err := parseTimestamp(endRaw)
		if err != nil {
			continue
		}
		segments = append(segments, Segment{Start: start, End: end, Text: textPart})
	}
	return segments
}

func formatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMillis := int64(seconds*1000 + 0.5)
	hours := totalMillis / 3_600_000
	minutes := (totalMillis % 3_600_000) / 60_000
	secs := (totalMillis % 60_000) / 1000
	millis := totalMillis % 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, secs, millis)
}

func parseTimestamp(value string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("malformed timestamp %q", value)
	}
	hours, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, fmt.Errorf("malformed timestamp %q: %w", value, err)
	}
	minutes, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, fmt.Errorf("malformed timestamp %q: %w", value, err)
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, fmt.Errorf("malformed timestamp %q: %w", value, err)
	}
	return hours*3600 + minutes*60 + seconds, nil
}
