package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"podscrub/internal/addetect"
	"podscrub/internal/analysis"
	"podscrub/internal/audio"
	"podscrub/internal/episode"
	"podscrub/internal/lease"
	"podscrub/internal/logging"
	"podscrub/internal/storage"
	"podscrub/internal/transcribe"
)

// Job identifies one episode to process and carries the feed metadata the
// detection prompt wants.
type Job struct {
	Slug        string
	EpisodeID   string
	Title       string
	PodcastName string
	OriginalURL string
}

// Key returns the job's lease key.
func (j Job) Key() lease.JobKey {
	return lease.JobKey{Slug: j.Slug, EpisodeID: j.EpisodeID}
}

// Downloader fetches episode audio into a directory.
type Downloader interface {
	Download(ctx context.Context, rawURL, destDir string) (string, error)
}

// Transcriber produces timestamped segments from an audio file.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]transcribe.Segment, error)
}

// AdDetector identifies ad spans in a transcript. Implementations degrade to
// zero ads rather than returning errors.
type AdDetector interface {
	Detect(ctx context.Context, segments []transcribe.Segment, podcastName, episodeTitle string) addetect.Detection
}

// Cutter edits audio files.
type Cutter interface {
	Cut(ctx context.Context, inputPath, outputPath string, cuts []audio.Range) error
	Duration(ctx context.Context, path string) (float64, error)
}

// Analyzer measures loudness signals. Optional; a nil analyzer disables it.
type Analyzer interface {
	Analyze(ctx context.Context, path string) (analysis.Result, error)
}

// StatusReporter mirrors the active job to the shared status file.
type StatusReporter interface {
	Begin(ctx context.Context, key lease.JobKey) error
	Clear(ctx context.Context, key lease.JobKey) error
}

// Processor orchestrates one episode's processing run.
type Processor struct {
	scheduler   *lease.Scheduler
	reporter    StatusReporter
	episodes    *episode.Store
	files       *storage.Store
	downloader  Downloader
	transcriber Transcriber
	detector    AdDetector
	cutter      Cutter
	analyzer    Analyzer
	logger      *slog.Logger
}

// Deps bundles the processor's collaborators.
type Deps struct {
	Scheduler   *lease.Scheduler
	Reporter    StatusReporter
	Episodes    *episode.Store
	Files       *storage.Store
	Downloader  Downloader
	Transcriber Transcriber
	Detector    AdDetector
	Cutter      Cutter
	Analyzer    Analyzer
	Logger      *slog.Logger
}

// New constructs a processor.
func New(deps Deps) *Processor {
	return &Processor{
		scheduler:   deps.Scheduler,
		reporter:    deps.Reporter,
		episodes:    deps.Episodes,
		files:       deps.Files,
		downloader:  deps.Downloader,
		transcriber: deps.Transcriber,
		detector:    deps.Detector,
		cutter:      deps.Cutter,
		analyzer:    deps.Analyzer,
		logger:      logging.NewComponentLogger(deps.Logger, "pipeline"),
	}
}

// adsArtifact is the JSON document written next to the processed audio.
type adsArtifact struct {
	Ads           []addetect.Ad     `json:"ads"`
	RawResponse   string            `json:"raw_response,omitempty"`
	Model         string            `json:"model,omitempty"`
	Error         string            `json:"error,omitempty"`
	VolumeSignals []analysis.Signal `json:"volume_signals,omitempty"`
}

// Process runs the episode through the pipeline on the calling goroutine.
// The ticket must have been acquired by the caller; Process owns it from
// here and releases it on every path, including panics unwinding as errors.
// The returned error reports why processing failed; the failure is already
// persisted by then.
func (p *Processor) Process(ctx context.Context, job Job, ticket lease.Ticket) error {
	key := job.Key()
	logger := logging.WithEpisode(p.logger, job.Slug, job.EpisodeID)

	if p.reporter != nil {
		if err := p.reporter.Begin(ctx, key); err != nil {
			logger.Warn("status file update failed", logging.Error(err))
		}
	}
	defer func() {
		if p.reporter != nil {
			if err := p.reporter.Clear(context.WithoutCancel(ctx), key); err != nil {
				logger.Warn("status file clear failed", logging.Error(err))
			}
		}
		p.scheduler.Release(ticket)
	}()

	started := time.Now()
	logger.Info("processing started", logging.String("title", job.Title))

	rec := episode.NewProcessing(job.Slug, job.EpisodeID, job.OriginalURL, job.Title)
	if err := p.episodes.Save(ctx, rec); err != nil {
		return Wrap(ErrTransient, StagePersist, "mark processing", "", err)
	}

	err := p.run(ctx, job, rec, logger)
	if err != nil {
		rec.MarkFailed(err.Error())
		if saveErr := p.episodes.Save(context.WithoutCancel(ctx), rec); saveErr != nil {
			logger.Error("failure record not persisted", logging.Error(saveErr))
		}
		logger.Error("processing failed",
			logging.Error(err),
			logging.Duration("elapsed", time.Since(started)))
		return err
	}

	logger.Info("processing complete",
		logging.Int("ads_removed", rec.Processed.AdsRemoved),
		logging.Float64("time_saved_seconds", rec.Processed.TimeSaved()),
		logging.Duration("elapsed", time.Since(started)))
	return nil
}

func (p *Processor) run(ctx context.Context, job Job, rec *episode.Record, logger *slog.Logger) error {
	workDir, err := os.MkdirTemp("", "podscrub-job-*")
	if err != nil {
		return Wrap(ErrTransient, StageDownload, "create work dir", "", err)
	}
	defer os.RemoveAll(workDir)

	audioPath, err := p.downloader.Download(ctx, job.OriginalURL, workDir)
	if err != nil {
		return Wrap(ErrTransient, StageDownload, "fetch audio", "", err)
	}

	segments, err := p.loadOrTranscribe(ctx, job, audioPath, logger)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return Wrap(ErrExternalTool, StageTranscribe, "no segments", "transcription produced no speech", nil)
	}

	detection := p.detector.Detect(ctx, segments, job.PodcastName, job.Title)
	artifact := adsArtifact{
		Ads:         detection.Ads,
		RawResponse: detection.RawResponse,
		Model:       detection.Model,
		Error:       detection.Err,
	}
	if p.analyzer != nil {
		result, analyzeErr := p.analyzer.Analyze(ctx, audioPath)
		if analyzeErr != nil {
			logger.Warn("volume analysis failed", logging.Error(analyzeErr))
		} else {
			artifact.VolumeSignals = result.Signals
		}
	}
	if payload, marshalErr := json.MarshalIndent(artifact, "", "  "); marshalErr == nil {
		if saveErr := p.files.SaveAds(job.Slug, job.EpisodeID, payload); saveErr != nil {
			logger.Warn("ads artifact not saved", logging.Error(saveErr))
		}
	}

	cuts := make([]audio.Range, 0, len(detection.Ads))
	for _, ad := range detection.Ads {
		cuts = append(cuts, audio.Range{Start: ad.Start, End: ad.End})
	}

	editedPath := filepath.Join(workDir, "edited.mp3")
	if err := p.cutter.Cut(ctx, audioPath, editedPath, cuts); err != nil {
		return Wrap(ErrExternalTool, StageCut, "remove ads", "", err)
	}

	originalDuration, err := p.cutter.Duration(ctx, audioPath)
	if err != nil {
		return Wrap(ErrExternalTool, StageCut, "probe original duration", "", err)
	}
	newDuration, err := p.cutter.Duration(ctx, editedPath)
	if err != nil {
		return Wrap(ErrExternalTool, StageCut, "probe edited duration", "", err)
	}

	if _, err := p.files.PodcastDir(job.Slug); err != nil {
		return Wrap(ErrTransient, StagePersist, "prepare podcast dir", "", err)
	}
	finalPath := p.files.AudioPath(job.Slug, job.EpisodeID)
	if err := moveFile(editedPath, finalPath); err != nil {
		return Wrap(ErrTransient, StagePersist, "move artifact", "", err)
	}

	rec.MarkProcessed(originalDuration, newDuration, len(detection.Ads))
	if markers, marshalErr := json.Marshal(detection.Ads); marshalErr == nil {
		rec.AdMarkersJSON = string(markers)
	}
	if err := p.episodes.Save(ctx, rec); err != nil {
		return Wrap(ErrTransient, StagePersist, "save processed record", "", err)
	}
	return nil
}

// loadOrTranscribe reuses an existing transcript when one survived a prior
// failed run, otherwise transcribes and saves the result.
func (p *Processor) loadOrTranscribe(ctx context.Context, job Job, audioPath string, logger *slog.Logger) ([]transcribe.Segment, error) {
	text, found, err := p.files.LoadTranscript(job.Slug, job.EpisodeID)
	if err != nil {
		logger.Warn("transcript load failed, transcribing fresh", logging.Error(err))
	} else if found {
		if segments := transcribe.ParseTranscript(text); len(segments) > 0 {
			logger.Info("reusing existing transcript", logging.Int("segments", len(segments)))
			return segments, nil
		}
		logger.Warn("existing transcript unparseable, transcribing fresh")
	}

	segments, err := p.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return nil, Wrap(ErrExternalTool, StageTranscribe, "run whisper", "", err)
	}
	if len(segments) > 0 {
		if saveErr := p.files.SaveTranscript(job.Slug, job.EpisodeID, transcribe.FormatSegments(segments)); saveErr != nil {
			logger.Warn("transcript not saved", logging.Error(saveErr))
		}
	}
	return segments, nil
}

// moveFile renames when possible and falls back to copy for cross-device
// temp directories.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	content, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("move file: %w", err)
	}
	if err := os.WriteFile(dst, content, 0o644); err != nil {
		return fmt.Errorf("move file: %w", err)
	}
	return os.Remove(src)
}
