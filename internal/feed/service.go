package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"podscrub/internal/logging"
	"podscrub/internal/storage"
)

// DefaultStaleAfter is how long a cached feed stays fresh.
const DefaultStaleAfter = 15 * time.Minute

// ErrUnknownFeed is returned for slugs not present in the configuration.
var ErrUnknownFeed = errors.New("unknown feed")

// Source is one configured podcast feed.
type Source struct {
	Slug string
	URL  string
}

// Service keeps rewritten feed documents cached on disk and refreshes them
// from the upstream sources.
type Service struct {
	fetcher    *Fetcher
	files      *storage.Store
	sources    []Source
	baseURL    string
	staleAfter time.Duration
	logger     *slog.Logger
	now        func() time.Time

	mu     sync.Mutex
	parsed map[string]*Feed
}

// NewService constructs a feed service for the configured sources. Source
// slugs are normalized with Slugify so configured names map to stable
// URL-safe identifiers.
func NewService(fetcher *Fetcher, files *storage.Store, sources []Source, baseURL string, staleAfter time.Duration, logger *slog.Logger) *Service {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	normalized := make([]Source, 0, len(sources))
	for _, src := range sources {
		if slug := Slugify(src.Slug); slug != "" {
			src.Slug = slug
		}
		normalized = append(normalized, src)
	}
	return &Service{
		fetcher:    fetcher,
		files:      files,
		sources:    normalized,
		baseURL:    baseURL,
		staleAfter: staleAfter,
		logger:     logging.NewComponentLogger(logger, "feeds"),
		now:        time.Now,
		parsed:     make(map[string]*Feed),
	}
}

// Sources returns the configured feeds.
func (s *Service) Sources() []Source {
	out := make([]Source, len(s.sources))
	copy(out, s.sources)
	return out
}

func (s *Service) source(slug string) (Source, bool) {
	for _, src := range s.sources {
		if src.Slug == slug {
			return src, true
		}
	}
	return Source{}, false
}

// Refresh fetches the upstream feed, rewrites enclosures, and caches both
// the document and the parsed form.
func (s *Service) Refresh(ctx context.Context, slug string) (*Feed, error) {
	src, ok := s.source(slug)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFeed, slug)
	}

	raw, err := s.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		return nil, err
	}
	parsed, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("refresh %s: %w", slug, err)
	}

	rewritten := RewriteEnclosures(raw, parsed.Episodes, slug, s.baseURL)
	if err := s.files.SaveFeed(slug, rewritten); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.parsed[slug] = parsed
	s.mu.Unlock()

	s.logger.Info("feed refreshed",
		logging.String(logging.FieldSlug, slug),
		logging.Int("episodes", len(parsed.Episodes)))
	return parsed, nil
}

// RefreshAll refreshes every configured feed, logging failures per feed
// rather than aborting the sweep.
func (s *Service) RefreshAll(ctx context.Context) {
	for _, src := range s.sources {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.Refresh(ctx, src.Slug); err != nil {
			s.logger.Error("feed refresh failed",
				logging.String(logging.FieldSlug, src.Slug),
				logging.Error(err))
		}
	}
}

// Document returns the rewritten RSS bytes for serving, refreshing first
// when the cache is missing or older than the staleness window.
func (s *Service) Document(ctx context.Context, slug string) ([]byte, error) {
	if _, ok := s.source(slug); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFeed, slug)
	}

	content, modTime, found, err := s.files.LoadFeed(slug)
	if err != nil {
		return nil, err
	}
	if found && s.now().Sub(modTime) < s.staleAfter {
		return content, nil
	}

	if _, err := s.Refresh(ctx, slug); err != nil {
		if found {
			// Serving a stale document beats serving an error.
			s.logger.Warn("refresh failed, serving stale feed",
				logging.String(logging.FieldSlug, slug),
				logging.Error(err))
			return content, nil
		}
		return nil, err
	}
	content, _, _, err = s.files.LoadFeed(slug)
	return content, err
}

// Lookup finds an episode in a feed, refreshing once when the episode is not
// in the cached copy. Returns the episode and the feed title.
func (s *Service) Lookup(ctx context.Context, slug, episodeID string) (Episode, string, error) {
	parsed, err := s.cachedFeed(ctx, slug)
	if err != nil {
		return Episode{}, "", err
	}
	if episode, ok := parsed.EpisodeByID(episodeID); ok {
		return episode, parsed.Title, nil
	}

	// A subscriber may request an episode published after the last refresh.
	parsed, err = s.Refresh(ctx, slug)
	if err != nil {
		return Episode{}, "", err
	}
	if episode, ok := parsed.EpisodeByID(episodeID); ok {
		return episode, parsed.Title, nil
	}
	return Episode{}, parsed.Title, fmt.Errorf("episode %s not in feed %s", episodeID, slug)
}

// cachedFeed returns the in-memory parse, rebuilding it from disk or
// upstream as needed.
func (s *Service) cachedFeed(ctx context.Context, slug string) (*Feed, error) {
	if _, ok := s.source(slug); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFeed, slug)
	}

	s.mu.Lock()
	parsed, ok := s.parsed[slug]
	s.mu.Unlock()
	if ok {
		return parsed, nil
	}

	return s.Refresh(ctx, slug)
}
