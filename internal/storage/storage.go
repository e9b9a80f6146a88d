package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"podscrub/internal/logging"
)

// Layout:
//
//	{dataDir}/{slug}/feed.xml                        rewritten RSS
//	{dataDir}/{slug}/episodes/{id}.mp3               processed audio
//	{dataDir}/{slug}/episodes/{id}-transcript.txt    transcript
//	{dataDir}/{slug}/episodes/{id}-ads.json          detection artifact
type Store struct {
	dataDir string
	logger  *slog.Logger
}

// New constructs a store rooted at dataDir.
func New(dataDir string, logger *slog.Logger) *Store {
	return &Store{
		dataDir: dataDir,
		logger:  logging.NewComponentLogger(logger, "storage"),
	}
}

// DataDir returns the store root.
func (s *Store) DataDir() string {
	return s.dataDir
}

// PodcastDir returns the directory for one podcast, creating it and its
// episodes subdirectory on first use.
func (s *Store) PodcastDir(slug string) (string, error) {
	dir := filepath.Join(s.dataDir, slug)
	if err := os.MkdirAll(filepath.Join(dir, "episodes"), 0o755); err != nil {
		return "", fmt.Errorf("create podcast dir: %w", err)
	}
	return dir, nil
}

// EpisodePath returns the path for an episode artifact. The suffix includes
// the extension, e.g. ".mp3" or "-transcript.txt".
func (s *Store) EpisodePath(slug, episodeID, suffix string) string {
	return filepath.Join(s.dataDir, slug, "episodes", episodeID+suffix)
}

// AudioPath returns the processed audio location for an episode.
func (s *Store) AudioPath(slug, episodeID string) string {
	return s.EpisodePath(slug, episodeID, ".mp3")
}

// TranscriptPath returns the transcript location for an episode.
func (s *Store) TranscriptPath(slug, episodeID string) string {
	return s.EpisodePath(slug, episodeID, "-transcript.txt")
}

// AdsPath returns the ad-detection artifact location for an episode.
func (s *Store) AdsPath(slug, episodeID string) string {
	return s.EpisodePath(slug, episodeID, "-ads.json")
}

// FeedPath returns the cached rewritten RSS location for a podcast.
func (s *Store) FeedPath(slug string) string {
	return filepath.Join(s.dataDir, slug, "feed.xml")
}

// AudioExists reports whether processed audio is present for the episode.
func (s *Store) AudioExists(slug, episodeID string) bool {
	info, err := os.Stat(s.AudioPath(slug, episodeID))
	return err == nil && info.Mode().IsRegular()
}

// SaveFeed writes the rewritten RSS document atomically.
func (s *Store) SaveFeed(slug string, content []byte) error {
	if _, err := s.PodcastDir(slug); err != nil {
		return err
	}
	if err := writeFileAtomic(s.FeedPath(slug), content); err != nil {
		return fmt.Errorf("save feed: %w", err)
	}
	s.logger.Debug("feed cached", logging.String(logging.FieldSlug, slug), logging.Int("bytes", len(content)))
	return nil
}

// LoadFeed reads the cached RSS document and its modification time. A
// missing cache returns ok=false with nil error.
func (s *Store) LoadFeed(slug string) (content []byte, modTime time.Time, ok bool, err error) {
	path := s.FeedPath(slug)
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return nil, time.Time{}, false, nil
		}
		return nil, time.Time{}, false, fmt.Errorf("load feed: %w", statErr)
	}
	content, err = os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("load feed: %w", err)
	}
	return content, info.ModTime(), true, nil
}

// SaveTranscript writes a transcript artifact atomically.
func (s *Store) SaveTranscript(slug, episodeID, transcript string) error {
	if _, err := s.PodcastDir(slug); err != nil {
		return err
	}
	if err := writeFileAtomic(s.TranscriptPath(slug, episodeID), []byte(transcript)); err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	return nil
}

// LoadTranscript reads an episode's transcript. A missing transcript returns
// ok=false with nil error.
func (s *Store) LoadTranscript(slug, episodeID string) (string, bool, error) {
	content, err := os.ReadFile(s.TranscriptPath(slug, episodeID))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("load transcript: %w", err)
	}
	return string(content), true, nil
}

// SaveAds writes the detection artifact atomically.
func (s *Store) SaveAds(slug, episodeID string, payload []byte) error {
	if _, err := s.PodcastDir(slug); err != nil {
		return err
	}
	if err := writeFileAtomic(s.AdsPath(slug, episodeID), payload); err != nil {
		return fmt.Errorf("save ads artifact: %w", err)
	}
	return nil
}

// RemoveEpisode deletes all artifacts for one episode. Missing files are not
// errors; retention cleanup may run twice.
func (s *Store) RemoveEpisode(slug, episodeID string) error {
	paths := []string{
		s.AudioPath(slug, episodeID),
		s.TranscriptPath(slug, episodeID),
		s.AdsPath(slug, episodeID),
	}
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove episode artifact: %w", err)
		}
	}
	s.logger.Info("episode artifacts removed",
		logging.String(logging.FieldSlug, slug),
		logging.String(logging.FieldEpisode, episodeID))
	return nil
}

// writeFileAtomic writes through a temp file and rename so readers never see
// a partial document.
func writeFileAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(content); err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
