package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"podscrub/internal/episode"
	"podscrub/internal/feed"
	"podscrub/internal/lease"
	"podscrub/internal/logging"
	"podscrub/internal/pipeline"
)

// handleFeed serves the rewritten RSS document for a podcast.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	document, err := s.feeds.Document(r.Context(), slug)
	if err != nil {
		if errors.Is(err, feed.ErrUnknownFeed) {
			http.NotFound(w, r)
			return
		}
		s.logger.Error("feed unavailable",
			logging.String(logging.FieldSlug, slug),
			logging.Error(err))
		http.Error(w, "feed unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	_, _ = w.Write(document)
}

// handleEpisode is the just-in-time serve path. A processed episode streams
// from disk; an unprocessed one is processed inside this request when the
// slot is free, or the client is told to come back.
func (s *Server) handleEpisode(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	episodeID := strings.TrimSuffix(r.PathValue("file"), ".mp3")
	if !validEpisodeID(episodeID) {
		http.Error(w, "invalid episode id", http.StatusBadRequest)
		return
	}
	logger := logging.WithEpisode(s.logger, slug, episodeID)

	rec, err := s.episodes.Get(r.Context(), slug, episodeID)
	if err != nil {
		logger.Error("episode lookup failed", logging.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	artifactExists := s.files.AudioExists(slug, episodeID)
	slotBusy := s.scheduler.Busy(r.Context()) && !s.scheduler.Holding(lease.JobKey{Slug: slug, EpisodeID: episodeID})

	switch decision := episode.Decide(rec, artifactExists, slotBusy); decision {
	case episode.DecisionServeCached:
		logger.Debug("serving processed audio")
		http.ServeFile(w, r, s.files.AudioPath(slug, episodeID))

	case episode.DecisionServeOriginal:
		logger.Info("serving original after earlier failure",
			logging.String("error", rec.Failed.Message))
		http.Redirect(w, r, rec.OriginalURL, http.StatusFound)

	case episode.DecisionNotFound:
		http.NotFound(w, r)

	case episode.DecisionUnavailable, episode.DecisionBusy:
		logger.Info("processing slot occupied, telling client to retry",
			logging.String("decision", decision.String()))
		s.serviceUnavailable(w)

	case episode.DecisionProcess:
		s.processAndServe(w, r, slug, episodeID, logger)
	}
}

// processAndServe runs the pipeline synchronously for this request and
// serves the result.
func (s *Server) processAndServe(w http.ResponseWriter, r *http.Request, slug, episodeID string, logger *slog.Logger) {
	item, podcastName, err := s.feeds.Lookup(r.Context(), slug, episodeID)
	if err != nil {
		if errors.Is(err, feed.ErrUnknownFeed) {
			http.NotFound(w, r)
			return
		}
		logger.Warn("episode not found in feed", logging.Error(err))
		http.NotFound(w, r)
		return
	}

	key := lease.JobKey{Slug: slug, EpisodeID: episodeID}
	ticket, err := s.scheduler.Acquire(r.Context(), key, s.cfg.AcquireTimeout())
	if err != nil {
		if errors.Is(err, lease.ErrBusy) || errors.Is(err, lease.ErrAcquireTimeout) {
			s.serviceUnavailable(w)
			return
		}
		logger.Error("slot acquire failed", logging.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	job := pipeline.Job{
		Slug:        slug,
		EpisodeID:   episodeID,
		Title:       item.Title,
		PodcastName: podcastName,
		OriginalURL: item.EnclosureURL,
	}
	if err := s.runner.Process(r.Context(), job, ticket); err != nil {
		// Degrade to the original so the listener still gets an episode.
		logger.Warn("processing failed, redirecting to original", logging.Error(err))
		http.Redirect(w, r, item.EnclosureURL, http.StatusFound)
		return
	}

	http.ServeFile(w, r, s.files.AudioPath(slug, episodeID))
}

func (s *Server) serviceUnavailable(w http.ResponseWriter) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	http.Error(w, "processing in progress, retry shortly", http.StatusServiceUnavailable)
}

// validEpisodeID accepts the hex IDs the feed parser mints plus dashes and
// underscores, and nothing that could traverse paths.
func validEpisodeID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
