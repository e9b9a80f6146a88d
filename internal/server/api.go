package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"podscrub/internal/episode"
	"podscrub/internal/logging"
)

// statusResponse is the GET /api/status payload.
type statusResponse struct {
	Running       bool           `json:"running"`
	ActiveJob     *activeJobView `json:"active_job,omitempty"`
	EpisodeCounts map[string]int `json:"episode_counts"`
	Feeds         int            `json:"feeds"`
}

type activeJobView struct {
	Slug       string    `json:"slug"`
	EpisodeID  string    `json:"episode_id"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// feedView is one entry in the GET /api/feeds payload.
type feedView struct {
	Slug      string `json:"slug"`
	SourceURL string `json:"source_url"`
	ProxyURL  string `json:"proxy_url"`
}

// episodeView is one entry in the GET /api/feeds/{slug}/episodes payload.
type episodeView struct {
	EpisodeID    string     `json:"episode_id"`
	Title        string     `json:"title"`
	Status       string     `json:"status"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
	AdsRemoved   *int       `json:"ads_removed,omitempty"`
	TimeSaved    *float64   `json:"time_saved_seconds,omitempty"`
	ErrorMessage string     `json:"error,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.episodes.CountsByStatus(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	countView := make(map[string]int, len(counts))
	for status, count := range counts {
		countView[string(status)] = count
	}

	payload := statusResponse{
		Running:       true,
		EpisodeCounts: countView,
		Feeds:         len(s.feeds.Sources()),
	}
	if snapshot := s.scheduler.Snapshot(); snapshot.Held() {
		payload.ActiveJob = &activeJobView{
			Slug:       snapshot.Holder.Slug,
			EpisodeID:  snapshot.Holder.EpisodeID,
			AcquiredAt: snapshot.AcquiredAt,
		}
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleFeeds(w http.ResponseWriter, _ *http.Request) {
	sources := s.feeds.Sources()
	views := make([]feedView, 0, len(sources))
	base := strings.TrimRight(s.cfg.Paths.BaseURL, "/")
	for _, src := range sources {
		views = append(views, feedView{
			Slug:      src.Slug,
			SourceURL: src.URL,
			ProxyURL:  base + "/" + src.Slug,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"feeds": views})
}

func (s *Server) handleFeedEpisodes(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	records, err := s.episodes.ListBySlug(r.Context(), slug)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	views := make([]episodeView, 0, len(records))
	for _, rec := range records {
		view := episodeView{
			EpisodeID: rec.EpisodeID,
			Title:     rec.Title,
			Status:    string(rec.Status),
			UpdatedAt: rec.UpdatedAt,
		}
		if rec.Processed != nil {
			processedAt := rec.Processed.ProcessedAt
			adsRemoved := rec.Processed.AdsRemoved
			timeSaved := rec.Processed.TimeSaved()
			view.ProcessedAt = &processedAt
			view.AdsRemoved = &adsRemoved
			view.TimeSaved = &timeSaved
		}
		if rec.Failed != nil {
			view.ErrorMessage = rec.Failed.Message
		}
		views = append(views, view)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"episodes": views})
}

// handleReprocess resets an episode so the next request processes it fresh.
// A currently processing episode cannot be reset; its slot holder owns it.
func (s *Server) handleReprocess(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	episodeID := r.PathValue("id")
	if !validEpisodeID(episodeID) {
		s.writeError(w, http.StatusBadRequest, "invalid episode id")
		return
	}

	rec, err := s.episodes.Get(r.Context(), slug, episodeID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec == nil {
		s.writeError(w, http.StatusNotFound, "episode not found")
		return
	}
	if rec.Status == episode.StatusProcessing {
		s.writeError(w, http.StatusConflict, "episode is currently processing")
		return
	}

	if err := s.files.RemoveEpisode(slug, episodeID); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.episodes.Delete(r.Context(), slug, episodeID); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Info("episode reset for reprocessing",
		logging.String(logging.FieldSlug, slug),
		logging.String(logging.FieldEpisode, episodeID))
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// requireAuth enforces bearer token auth on API routes when a token is
// configured. An empty configured token leaves the API open for local use.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(s.cfg.Paths.APIToken)
		if token == "" {
			next(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		provided, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
