package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"podscrub/internal/config"
	"podscrub/internal/episode"
	"podscrub/internal/feed"
	"podscrub/internal/lease"
	"podscrub/internal/logging"
	"podscrub/internal/pipeline"
	"podscrub/internal/storage"
	"podscrub/internal/testsupport"
)

const testGUID = "ep-guid-1"

func upstreamRSS() string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Show</title>
    <item>
      <title>Pilot</title>
      <guid>` + testGUID + `</guid>
      <enclosure url="https://cdn.example.com/pilot.mp3" type="audio/mpeg" length="1234"/>
    </item>
  </channel>
</rss>`
}

// fakeRunner simulates the pipeline: it releases the ticket like the real
// processor and either persists a processed episode or fails.
type fakeRunner struct {
	scheduler *lease.Scheduler
	episodes  *episode.Store
	files     *storage.Store
	failWith  error
	jobs      []pipeline.Job
}

func (r *fakeRunner) Process(ctx context.Context, job pipeline.Job, ticket lease.Ticket) error {
	defer r.scheduler.Release(ticket)
	r.jobs = append(r.jobs, job)
	if r.failWith != nil {
		rec := episode.NewProcessing(job.Slug, job.EpisodeID, job.OriginalURL, job.Title)
		rec.MarkFailed(r.failWith.Error())
		_ = r.episodes.Save(ctx, rec)
		return r.failWith
	}

	if _, err := r.files.PodcastDir(job.Slug); err != nil {
		return err
	}
	if err := os.WriteFile(r.files.AudioPath(job.Slug, job.EpisodeID), []byte("processed audio"), 0o644); err != nil {
		return err
	}
	rec := episode.NewProcessing(job.Slug, job.EpisodeID, job.OriginalURL, job.Title)
	rec.MarkProcessed(3600, 3540, 1)
	return r.episodes.Save(ctx, rec)
}

type fixture struct {
	cfg       *config.Config
	episodes  *episode.Store
	files     *storage.Store
	scheduler *lease.Scheduler
	runner    *fakeRunner
	handler   http.Handler
	episodeID string
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, upstreamRSS())
	}))
	t.Cleanup(upstream.Close)

	opts = append([]testsupport.ConfigOption{
		testsupport.WithFeeds(config.Feed{Slug: "test-show", URL: upstream.URL}),
	}, opts...)
	cfg := testsupport.NewConfig(t, opts...)

	episodes := testsupport.MustOpenStore(t)
	files := storage.New(cfg.Paths.DataDir, logging.NewNop())
	scheduler := lease.NewScheduler(nil, logging.NewNop())

	sources := make([]feed.Source, 0, len(cfg.Feeds))
	for _, f := range cfg.Feeds {
		sources = append(sources, feed.Source{Slug: f.Slug, URL: f.URL})
	}
	feeds := feed.NewService(feed.NewFetcher(nil, logging.NewNop()), files, sources,
		cfg.Paths.BaseURL, feed.DefaultStaleAfter, logging.NewNop())

	runner := &fakeRunner{scheduler: scheduler, episodes: episodes, files: files}
	srv := New(Deps{
		Config:    cfg,
		Episodes:  episodes,
		Files:     files,
		Feeds:     feeds,
		Scheduler: scheduler,
		Runner:    runner,
		Logger:    logging.NewNop(),
	})

	return &fixture{
		cfg:       cfg,
		episodes:  episodes,
		files:     files,
		scheduler: scheduler,
		runner:    runner,
		handler:   srv.Handler(),
		episodeID: feed.EpisodeID(testGUID, ""),
	}
}

func (f *fixture) do(t *testing.T, method, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	recorder := httptest.NewRecorder()
	f.handler.ServeHTTP(recorder, req)
	return recorder
}

func (f *fixture) saveRecord(t *testing.T, rec *episode.Record) {
	t.Helper()
	if err := f.episodes.Save(context.Background(), rec); err != nil {
		t.Fatalf("save record: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/healthz", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	if resp.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing request id header")
	}
}

func TestFeedDocument(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/test-show", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.Code, resp.Body)
	}
	if ct := resp.Header().Get("Content-Type"); !strings.Contains(ct, "rss") {
		t.Errorf("content type = %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "/episodes/test-show/"+f.episodeID+".mp3") {
		t.Error("feed not rewritten to proxy enclosures")
	}

	if resp := f.do(t, http.MethodGet, "/unknown-show", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("unknown slug status = %d", resp.Code)
	}
}

func TestEpisodeInvalidID(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/episodes/test-show/bad!id.mp3", nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.Code)
	}
}

func TestEpisodeServesProcessedAudio(t *testing.T) {
	f := newFixture(t)
	rec := episode.NewProcessing("test-show", f.episodeID, "https://cdn.example.com/pilot.mp3", "Pilot")
	rec.MarkProcessed(3600, 3540, 1)
	f.saveRecord(t, rec)
	if _, err := f.files.PodcastDir("test-show"); err != nil {
		t.Fatalf("podcast dir: %v", err)
	}
	if err := os.WriteFile(f.files.AudioPath("test-show", f.episodeID), []byte("cached audio"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}

	resp := f.do(t, http.MethodGet, "/episodes/test-show/"+f.episodeID+".mp3", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	if body := resp.Body.String(); body != "cached audio" {
		t.Fatalf("body = %q", body)
	}
	if len(f.runner.jobs) != 0 {
		t.Fatal("cached episode triggered processing")
	}
}

func TestEpisodeFailedRedirectsToOriginal(t *testing.T) {
	f := newFixture(t)
	rec := episode.NewProcessing("test-show", f.episodeID, "https://cdn.example.com/pilot.mp3", "Pilot")
	rec.MarkFailed("transcribe: whisper crashed")
	f.saveRecord(t, rec)

	resp := f.do(t, http.MethodGet, "/episodes/test-show/"+f.episodeID+".mp3", nil)
	if resp.Code != http.StatusFound {
		t.Fatalf("status = %d", resp.Code)
	}
	if loc := resp.Header().Get("Location"); loc != "https://cdn.example.com/pilot.mp3" {
		t.Fatalf("location = %q", loc)
	}
	if len(f.runner.jobs) != 0 {
		t.Fatal("failed episode triggered reprocessing")
	}
}

func TestEpisodeProcessingReturnsRetry(t *testing.T) {
	f := newFixture(t)
	rec := episode.NewProcessing("test-show", f.episodeID, "https://cdn.example.com/pilot.mp3", "Pilot")
	f.saveRecord(t, rec)

	resp := f.do(t, http.MethodGet, "/episodes/test-show/"+f.episodeID+".mp3", nil)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", resp.Code)
	}
	if resp.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After hint")
	}
}

func TestEpisodeBusySlotReturnsRetry(t *testing.T) {
	f := newFixture(t)
	ticket, err := f.scheduler.Acquire(context.Background(), lease.JobKey{Slug: "other", EpisodeID: "busy"}, 0)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer f.scheduler.Release(ticket)

	resp := f.do(t, http.MethodGet, "/episodes/test-show/"+f.episodeID+".mp3", nil)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", resp.Code)
	}
	if resp.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After hint")
	}
	if len(f.runner.jobs) != 0 {
		t.Fatal("busy slot still triggered processing")
	}
}

func TestEpisodeProcessesOnDemand(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/episodes/test-show/"+f.episodeID+".mp3", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.Code, resp.Body)
	}
	if body := resp.Body.String(); body != "processed audio" {
		t.Fatalf("body = %q", body)
	}

	if len(f.runner.jobs) != 1 {
		t.Fatalf("runner jobs = %d, want 1", len(f.runner.jobs))
	}
	job := f.runner.jobs[0]
	if job.Slug != "test-show" || job.EpisodeID != f.episodeID {
		t.Fatalf("job = %+v", job)
	}
	if job.Title != "Pilot" || job.PodcastName != "Test Show" {
		t.Fatalf("job metadata = %+v", job)
	}
	if job.OriginalURL != "https://cdn.example.com/pilot.mp3" {
		t.Fatalf("job url = %q", job.OriginalURL)
	}
	if f.scheduler.Busy(context.Background()) {
		t.Fatal("slot still held after request finished")
	}
}

func TestEpisodeProcessingFailureRedirects(t *testing.T) {
	f := newFixture(t)
	f.runner.failWith = errors.New("transcribe: whisper crashed")

	resp := f.do(t, http.MethodGet, "/episodes/test-show/"+f.episodeID+".mp3", nil)
	if resp.Code != http.StatusFound {
		t.Fatalf("status = %d", resp.Code)
	}
	if loc := resp.Header().Get("Location"); loc != "https://cdn.example.com/pilot.mp3" {
		t.Fatalf("location = %q", loc)
	}
}

func TestEpisodeNotInFeed(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/episodes/test-show/ffffffffffffffff.mp3", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d", resp.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	f := newFixture(t)
	ticket, err := f.scheduler.Acquire(context.Background(), lease.JobKey{Slug: "test-show", EpisodeID: "abc"}, 0)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer f.scheduler.Release(ticket)

	resp := f.do(t, http.MethodGet, "/api/status", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	body := resp.Body.String()
	if !strings.Contains(body, `"running":true`) {
		t.Errorf("body = %s", body)
	}
	if !strings.Contains(body, `"episode_id":"abc"`) {
		t.Errorf("active job missing from %s", body)
	}
}

func TestReprocess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if resp := f.do(t, http.MethodPost, "/api/feeds/test-show/episodes/bad!id/reprocess", nil); resp.Code != http.StatusBadRequest {
		t.Fatalf("invalid id status = %d", resp.Code)
	}
	if resp := f.do(t, http.MethodPost, "/api/feeds/test-show/episodes/absent0000000000/reprocess", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("absent status = %d", resp.Code)
	}

	inflight := episode.NewProcessing("test-show", "inflight00000000", "", "Busy")
	f.saveRecord(t, inflight)
	if resp := f.do(t, http.MethodPost, "/api/feeds/test-show/episodes/inflight00000000/reprocess", nil); resp.Code != http.StatusConflict {
		t.Fatalf("processing status = %d", resp.Code)
	}

	done := episode.NewProcessing("test-show", f.episodeID, "https://cdn.example.com/pilot.mp3", "Pilot")
	done.MarkProcessed(100, 90, 1)
	f.saveRecord(t, done)
	if _, err := f.files.PodcastDir("test-show"); err != nil {
		t.Fatalf("podcast dir: %v", err)
	}
	if err := os.WriteFile(f.files.AudioPath("test-show", f.episodeID), []byte("old"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}

	resp := f.do(t, http.MethodPost, "/api/feeds/test-show/episodes/"+f.episodeID+"/reprocess", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("reset status = %d: %s", resp.Code, resp.Body)
	}
	if f.files.AudioExists("test-show", f.episodeID) {
		t.Fatal("artifact survived reset")
	}
	rec, err := f.episodes.Get(ctx, "test-show", f.episodeID)
	if err != nil || rec != nil {
		t.Fatalf("record after reset: %+v err=%v", rec, err)
	}
}

func TestAPIAuth(t *testing.T) {
	f := newFixture(t, testsupport.WithAPIToken("secret-token"))

	if resp := f.do(t, http.MethodGet, "/api/status", nil); resp.Code != http.StatusUnauthorized {
		t.Fatalf("no token status = %d", resp.Code)
	}

	wrong := http.Header{}
	wrong.Set("Authorization", "Bearer nope")
	if resp := f.do(t, http.MethodGet, "/api/status", wrong); resp.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token status = %d", resp.Code)
	}

	right := http.Header{}
	right.Set("Authorization", "Bearer secret-token")
	if resp := f.do(t, http.MethodGet, "/api/status", right); resp.Code != http.StatusOK {
		t.Fatalf("right token status = %d", resp.Code)
	}

	// The public serve paths stay open.
	if resp := f.do(t, http.MethodGet, "/healthz", nil); resp.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.Code)
	}
}

func TestFeedEpisodesListing(t *testing.T) {
	f := newFixture(t)
	rec := episode.NewProcessing("test-show", f.episodeID, "", "Pilot")
	rec.MarkProcessed(3600, 3240, 2)
	f.saveRecord(t, rec)

	resp := f.do(t, http.MethodGet, "/api/feeds/test-show/episodes", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	body := resp.Body.String()
	if !strings.Contains(body, `"title":"Pilot"`) || !strings.Contains(body, `"ads_removed":2`) {
		t.Errorf("body = %s", body)
	}
	if !strings.Contains(body, `"time_saved_seconds":360`) {
		t.Errorf("time saved missing from %s", body)
	}
}
