package analysis

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"podscrub/internal/logging"
)

const (
	// DefaultFrameSeconds is the analysis window size.
	DefaultFrameSeconds = 5.0
	// DefaultThresholdDB is the deviation from baseline that opens an
	// anomaly run.
	DefaultThresholdDB = 3.0
	// DefaultMinAnomalySeconds is the shortest run worth reporting; anything
	// briefer is treated as noise.
	DefaultMinAnomalySeconds = 15.0

	// silenceFloorLUFS excludes dead air from the baseline: values at or
	// below it are non-signal.
	silenceFloorLUFS = -70.0
	// minFrameSeconds drops the trailing fragment when it is too short to
	// yield a meaningful measurement.
	minFrameSeconds = 1.0
)

// Meter measures loudness for a slice of an audio file. The production
// implementation shells out to ffmpeg's loudnorm filter.
type Meter interface {
	Duration(ctx context.Context, path string) (float64, error)
	MeasureFrame(ctx context.Context, path string, start, duration float64) (loudnessLUFS, peakDBFS float64, err error)
}

// VolumeDetector finds regions where loudness deviates from the episode
// baseline long enough to look like an inserted ad block.
type VolumeDetector struct {
	meter             Meter
	logger            *slog.Logger
	frameSeconds      float64
	thresholdDB       float64
	minAnomalySeconds float64
}

// VolumeOption customizes detector construction.
type VolumeOption func(*VolumeDetector)

// WithFrameSeconds overrides the analysis window size.
func WithFrameSeconds(seconds float64) VolumeOption {
	return func(d *VolumeDetector) {
		if seconds > 0 {
			d.frameSeconds = seconds
		}
	}
}

// WithThresholdDB overrides the anomaly threshold.
func WithThresholdDB(db float64) VolumeOption {
	return func(d *VolumeDetector) {
		if db > 0 {
			d.thresholdDB = db
		}
	}
}

// WithMinAnomalySeconds overrides the minimum reportable run duration.
func WithMinAnomalySeconds(seconds float64) VolumeOption {
	return func(d *VolumeDetector) {
		if seconds >= 0 {
			d.minAnomalySeconds = seconds
		}
	}
}

// NewVolumeDetector constructs a detector using meter for measurements.
func NewVolumeDetector(meter Meter, logger *slog.Logger, opts ...VolumeOption) *VolumeDetector {
	d := &VolumeDetector{
		meter:             meter,
		logger:            logging.NewComponentLogger(logger, "volume-analysis"),
		frameSeconds:      DefaultFrameSeconds,
		thresholdDB:       DefaultThresholdDB,
		minAnomalySeconds: DefaultMinAnomalySeconds,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Analyze measures the file in fixed windows and extracts volume anomalies.
// Audio too short to frame, all-silent audio, or measurement failures are
// valid "no signal" outcomes: the result is empty and err is nil.
func (d *VolumeDetector) Analyze(ctx context.Context, path string) (Result, error) {
	started := time.Now()
	var result Result

	total, err := d.meter.Duration(ctx, path)
	if err != nil {
		d.logger.Warn("duration probe failed, skipping volume analysis", logging.Error(err))
		result.Errors = append(result.Errors, err.Error())
		return result, nil
	}
	if total < d.frameSeconds {
		d.logger.Warn("audio too short for volume analysis", logging.Float64("seconds", total))
		return result, nil
	}

	frames := d.measureFrames(ctx, path, total)
	if len(frames) == 0 {
		d.logger.Warn("no loudness frames extracted")
		return result, nil
	}

	baseline, ok := Baseline(frames)
	if !ok {
		d.logger.Warn("no valid loudness measurements above silence floor")
		return result, nil
	}
	result.LoudnessBaseline = &baseline

	result.Signals = d.findAnomalies(frames, baseline)
	result.AnalysisSeconds = time.Since(started).Seconds()
	d.logger.Info("volume analysis complete",
		logging.Float64("baseline_lufs", baseline),
		logging.Int("frames", len(frames)),
		logging.Int("anomalies", len(result.Signals)))
	return result, nil
}

// measureFrames samples fixed windows end to end over [0, total). The final
// fragment is dropped when shorter than one second; a window the meter cannot
// measure yields the fallback levels instead of a gap.
func (d *VolumeDetector) measureFrames(ctx context.Context, path string, total float64) []LoudnessFrame {
	var frames []LoudnessFrame
	for current := 0.0; current < total; current += d.frameSeconds {
		if ctx.Err() != nil {
			return frames
		}
		window := math.Min(d.frameSeconds, total-current)
		if window < minFrameSeconds {
			break
		}
		loudness, peak, err := d.meter.MeasureFrame(ctx, path, current, window)
		if err != nil {
			// Failed windows contribute fallback levels rather than a timeline
			// gap; an anomaly run never spans unmeasured audio.
			d.logger.Debug("frame measurement failed, using fallback levels",
				logging.Float64("start", current), logging.Error(err))
			loudness, peak = fallbackLoudnessLUFS, fallbackPeakDBFS
		}
		frames = append(frames, LoudnessFrame{
			Start:        current,
			End:          current + window,
			LoudnessLUFS: loudness,
			PeakDBFS:     peak,
		})
	}
	return frames
}

// Baseline returns the median loudness across frames, excluding silence
// floor outliers. The median keeps a long ad block from dragging the
// baseline toward itself.
func Baseline(frames []LoudnessFrame) (float64, bool) {
	values := make([]float64, 0, len(frames))
	for _, frame := range frames {
		if frame.LoudnessLUFS > silenceFloorLUFS {
			values = append(values, frame.LoudnessLUFS)
		}
	}
	if len(values) == 0 {
		return 0, false
	}
	sort.Float64s(values)
	return values[len(values)/2], true
}

// findAnomalies walks frames in time order, opening a run when deviation
// exceeds the threshold and closing it when deviation falls back inside.
// Runs shorter than the minimum duration are dropped silently.
func (d *VolumeDetector) findAnomalies(frames []LoudnessFrame, baseline float64) []Signal {
	var (
		signals    []Signal
		inAnomaly  bool
		runStart   float64
		increasing bool
		deviations []float64
	)

	emit := func(end float64) {
		if end-runStart < d.minAnomalySeconds {
			return
		}
		mean := 0.0
		for _, dev := range deviations {
			mean += dev
		}
		mean /= float64(len(deviations))

		signalType := SignalVolumeDecrease
		direction := "decrease"
		if increasing {
			signalType = SignalVolumeIncrease
			direction = "increase"
		}
		signals = append(signals, Signal{
			Start:      runStart,
			End:        end,
			Type:       signalType,
			Confidence: math.Min(0.5+mean/10, 0.95),
			Details: map[string]any{
				"deviation_db":  round1(mean),
				"baseline_lufs": round1(baseline),
				"direction":     direction,
			},
		})
	}

	for _, frame := range frames {
		deviation := frame.LoudnessLUFS - baseline
		if math.Abs(deviation) > d.thresholdDB {
			if !inAnomaly {
				inAnomaly = true
				runStart = frame.Start
				increasing = deviation > 0
				deviations = deviations[:0]
			}
			deviations = append(deviations, math.Abs(deviation))
			continue
		}
		if inAnomaly {
			emit(frame.Start)
			inAnomaly = false
		}
	}

	// A run still open at the last frame closes at that frame's end.
	if inAnomaly && len(frames) > 0 {
		emit(frames[len(frames)-1].End)
	}
	return signals
}

func round1(value float64) float64 {
	return math.Round(value*10) / 10
}
