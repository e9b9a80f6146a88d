package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"podscrub/internal/lease"
	"podscrub/internal/logging"
)

const currentJobFile = "current-job.json"

type jobRecord struct {
	Slug      string    `json:"slug"`
	EpisodeID string    `json:"episode_id"`
	StartedAt time.Time `json:"started_at"`
}

// FileSource stores the current job in a JSON file under dir. Writes are
// atomic (temp file + rename) and serialized with an advisory lock so
// multiple worker processes see a consistent view.
type FileSource struct {
	path   string
	lock   *flock.Flock
	logger *slog.Logger
}

// NewFileSource creates a file-backed status source rooted at dir.
func NewFileSource(dir string, logger *slog.Logger) *FileSource {
	path := filepath.Join(dir, currentJobFile)
	return &FileSource{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logging.NewComponentLogger(logger, "status"),
	}
}

// Path returns the status file location.
func (s *FileSource) Path() string {
	return s.path
}

// Begin records key as the currently running job.
func (s *FileSource) Begin(ctx context.Context, key lease.JobKey) error {
	if err := s.lockContext(ctx); err != nil {
		return err
	}
	defer s.unlock()

	record := jobRecord{Slug: key.Slug, EpisodeID: key.EpisodeID, StartedAt: time.Now().UTC()}
	encoded, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode current job: %w", err)
	}
	return writeFileAtomic(s.path, encoded)
}

// Clear removes the current-job record if it still belongs to key. Clearing
// a job you no longer own is a no-op: a preempted worker finishing late must
// not erase the record of a newer job.
func (s *FileSource) Clear(ctx context.Context, key lease.JobKey) error {
	if err := s.lockContext(ctx); err != nil {
		return err
	}
	defer s.unlock()

	record, found, err := s.read()
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	if record.Slug != key.Slug || record.EpisodeID != key.EpisodeID {
		s.logger.Warn("skipping status clear for non-owner",
			logging.String("owner", record.Slug+":"+record.EpisodeID),
			logging.String("caller", key.String()))
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove current job: %w", err)
	}
	return nil
}

// CurrentJob returns the recorded job, if any. Implements
// lease.StatusSource.
func (s *FileSource) CurrentJob(ctx context.Context) (lease.JobKey, bool, error) {
	if err := s.rlockContext(ctx); err != nil {
		return lease.JobKey{}, false, err
	}
	defer s.unlock()

	record, found, err := s.read()
	if err != nil || !found {
		return lease.JobKey{}, false, err
	}
	return lease.JobKey{Slug: record.Slug, EpisodeID: record.EpisodeID}, true, nil
}

func (s *FileSource) read() (jobRecord, bool, error) {
	var record jobRecord
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return record, false, nil
		}
		return record, false, fmt.Errorf("read current job: %w", err)
	}
	if err := json.Unmarshal(data, &record); err != nil {
		// A torn or corrupt file means no usable record; treat as idle.
		s.logger.Warn("corrupt current-job file, treating as idle", logging.Error(err))
		return record, false, nil
	}
	return record, true, nil
}

func (s *FileSource) lockContext(ctx context.Context) error {
	if _, err := s.lock.TryLockContext(ctx, 10*time.Millisecond); err != nil {
		return fmt.Errorf("lock status file: %w", err)
	}
	return nil
}

func (s *FileSource) rlockContext(ctx context.Context) error {
	if _, err := s.lock.TryRLockContext(ctx, 10*time.Millisecond); err != nil {
		return fmt.Errorf("rlock status file: %w", err)
	}
	return nil
}

func (s *FileSource) unlock() {
	if err := s.lock.Unlock(); err != nil {
		s.logger.Warn("release status file lock", logging.Error(err))
	}
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure status dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".current-job-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp status file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp status file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp status file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename status file: %w", err)
	}
	return nil
}
