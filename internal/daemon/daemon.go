package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"podscrub/internal/addetect"
	"podscrub/internal/analysis"
	audioedit "podscrub/internal/audio"
	"podscrub/internal/config"
	"podscrub/internal/episode"
	"podscrub/internal/feed"
	"podscrub/internal/lease"
	"podscrub/internal/logging"
	"podscrub/internal/pipeline"
	"podscrub/internal/server"
	"podscrub/internal/status"
	"podscrub/internal/storage"
	"podscrub/internal/transcribe"
)

// retentionSweepInterval is how often expired artifacts are checked for.
const retentionSweepInterval = 1 * time.Hour

// Daemon coordinates the proxy's services and enforces single-instance
// execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	episodes *episode.Store
	files    *storage.Store
	feeds    *feed.Service
	server   *server.Server

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a daemon with all dependencies wired from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	episodes, err := episode.Open(cfg.Paths.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open episode store: %w", err)
	}

	files := storage.New(cfg.Paths.DataDir, logger)
	statusSource := status.NewFileSource(cfg.Paths.DataDir, logger)
	scheduler := lease.NewScheduler(statusSource, logger,
		lease.WithMaxJobDuration(cfg.MaxJobDuration()))

	sources := make([]feed.Source, 0, len(cfg.Feeds))
	for _, f := range cfg.Feeds {
		sources = append(sources, feed.Source{Slug: f.Slug, URL: f.URL})
	}
	feeds := feed.NewService(
		feed.NewFetcher(nil, logger),
		files,
		sources,
		cfg.Paths.BaseURL,
		feed.DefaultStaleAfter,
		logger,
	)

	var analyzer pipeline.Analyzer
	if cfg.Analysis.Enabled {
		meter := analysis.NewFFmpegMeter(cfg.Processing.FFmpegBinary, cfg.Processing.FFprobeBinary)
		analyzer = analysis.NewVolumeDetector(meter, logger,
			analysis.WithFrameSeconds(cfg.Analysis.FrameSeconds),
			analysis.WithThresholdDB(cfg.Analysis.ThresholdDB),
			analysis.WithMinAnomalySeconds(cfg.Analysis.MinAnomalySeconds))
	}

	processor := pipeline.New(pipeline.Deps{
		Scheduler: scheduler,
		Reporter:  statusSource,
		Episodes:  episodes,
		Files:     files,
		Downloader: transcribe.NewDownloader(&http.Client{
			Timeout: 15 * time.Minute,
		}, logger),
		Transcriber: transcribe.NewWhisperTranscriber(transcribe.WhisperOptions{
			Binary:  cfg.Whisper.Binary,
			Model:   cfg.Whisper.Model,
			Device:  cfg.Whisper.Device,
			Timeout: time.Duration(cfg.Whisper.TimeoutSeconds) * time.Second,
		}, logger),
		Detector: addetect.NewDetector(addetect.NewClient(addetect.ClientConfig{
			APIKey:         cfg.LLM.APIKey,
			BaseURL:        cfg.LLM.BaseURL,
			Model:          cfg.LLM.Model,
			TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		}), logger),
		Cutter:   audioedit.NewEditor(cfg.Processing.FFmpegBinary, cfg.Processing.FFprobeBinary, logger),
		Analyzer: analyzer,
		Logger:   logger,
	})

	srv := server.New(server.Deps{
		Config:    cfg,
		Episodes:  episodes,
		Files:     files,
		Feeds:     feeds,
		Scheduler: scheduler,
		Runner:    processor,
		Logger:    logger,
	})

	lockPath := filepath.Join(cfg.Paths.DataDir, "podscrubd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		episodes: episodes,
		files:    files,
		feeds:    feeds,
		server:   srv,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// LockFilePath returns the daemon lock location.
func (d *Daemon) LockFilePath() string {
	return d.lockPath
}

// Start acquires the daemon lock, starts the HTTP server, and launches the
// background loops.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another podscrub daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.server.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		d.cancel = nil
		return err
	}

	d.wg.Add(2)
	go d.refreshLoop(runCtx)
	go d.retentionLoop(runCtx)

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("bind", d.cfg.Paths.Bind),
		logging.String("lock", d.lockPath),
		logging.Int("feeds", len(d.cfg.Feeds)))
	return nil
}

// Stop halts the server and background loops and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.Stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close stops the daemon and closes the episode store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.episodes != nil {
		return d.episodes.Close()
	}
	return nil
}

// refreshLoop refetches every configured feed on the configured interval.
// The first sweep runs immediately so subscribers get feeds without waiting
// a full interval after startup.
func (d *Daemon) refreshLoop(ctx context.Context) {
	defer d.wg.Done()

	d.feeds.RefreshAll(ctx)

	ticker := time.NewTicker(d.cfg.RefreshInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.feeds.RefreshAll(ctx)
		}
	}
}

// retentionLoop deletes processed artifacts older than the retention window
// so the data dir does not grow without bound.
func (d *Daemon) retentionLoop(ctx context.Context) {
	defer d.wg.Done()

	retention := d.cfg.Retention()
	if retention <= 0 {
		return
	}

	ticker := time.NewTicker(retentionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sweepExpired(ctx, retention)
		}
	}
}

func (d *Daemon) sweepExpired(ctx context.Context, retention time.Duration) {
	cutoff := time.Now().Add(-retention)
	expired, err := d.episodes.ProcessedBefore(ctx, cutoff)
	if err != nil {
		d.logger.Error("retention sweep failed", logging.Error(err))
		return
	}
	for _, rec := range expired {
		if ctx.Err() != nil {
			return
		}
		if err := d.files.RemoveEpisode(rec.Slug, rec.EpisodeID); err != nil {
			d.logger.Warn("retention cleanup failed",
				logging.String(logging.FieldSlug, rec.Slug),
				logging.String(logging.FieldEpisode, rec.EpisodeID),
				logging.Error(err))
			continue
		}
		if err := d.episodes.Delete(ctx, rec.Slug, rec.EpisodeID); err != nil {
			d.logger.Warn("retention record delete failed",
				logging.String(logging.FieldSlug, rec.Slug),
				logging.String(logging.FieldEpisode, rec.EpisodeID),
				logging.Error(err))
		}
	}
	if len(expired) > 0 {
		d.logger.Info("retention sweep complete", logging.Int("removed", len(expired)))
	}
}
