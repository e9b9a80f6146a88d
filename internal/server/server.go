package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"podscrub/internal/config"
	"podscrub/internal/episode"
	"podscrub/internal/feed"
	"podscrub/internal/lease"
	"podscrub/internal/logging"
	"podscrub/internal/pipeline"
	"podscrub/internal/storage"
)

// retryAfterSeconds is the hint returned with 503 responses while the
// processing slot is occupied.
const retryAfterSeconds = 30

// JobRunner executes one processing job. The caller supplies the acquired
// ticket; the runner owns releasing it.
type JobRunner interface {
	Process(ctx context.Context, job pipeline.Job, ticket lease.Ticket) error
}

// Server is the HTTP front end.
type Server struct {
	cfg       *config.Config
	episodes  *episode.Store
	files     *storage.Store
	feeds     *feed.Service
	scheduler *lease.Scheduler
	runner    JobRunner
	logger    *slog.Logger

	listener net.Listener
	server   *http.Server
}

// Deps bundles the server's collaborators.
type Deps struct {
	Config    *config.Config
	Episodes  *episode.Store
	Files     *storage.Store
	Feeds     *feed.Service
	Scheduler *lease.Scheduler
	Runner    JobRunner
	Logger    *slog.Logger
}

// New constructs the server and its routes.
func New(deps Deps) *Server {
	srv := &Server{
		cfg:       deps.Config,
		episodes:  deps.Episodes,
		files:     deps.Files,
		feeds:     deps.Feeds,
		scheduler: deps.Scheduler,
		runner:    deps.Runner,
		logger:    logging.NewComponentLogger(deps.Logger, "server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", srv.handleHealth)
	mux.HandleFunc("GET /episodes/{slug}/{file}", srv.handleEpisode)
	mux.HandleFunc("GET /api/status", srv.requireAuth(srv.handleStatus))
	mux.HandleFunc("GET /api/feeds", srv.requireAuth(srv.handleFeeds))
	mux.HandleFunc("GET /api/feeds/{slug}/episodes", srv.requireAuth(srv.handleFeedEpisodes))
	mux.HandleFunc("POST /api/feeds/{slug}/episodes/{id}/reprocess", srv.requireAuth(srv.handleReprocess))
	mux.HandleFunc("GET /{slug}", srv.handleFeed)

	srv.server = &http.Server{
		Handler:           srv.withRequestID(mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Episode processing runs inside the request; the write timeout has
		// to cover a full transcription pass.
		WriteTimeout: 45 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return srv
}

// Handler returns the configured HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving on the configured bind address. Serving stops when
// ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Paths.Bind)
	if err != nil {
		return fmt.Errorf("server listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down, allowing in-flight requests a short drain.
func (s *Server) Stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// withRequestID stamps every request with an identifier that flows through
// the logs.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r)

		s.logger.Debug("request handled",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.String(logging.FieldRequestID, requestID))
	})
}
