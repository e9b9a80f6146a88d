package storage

import (
	"os"
	"path/filepath"
	"testing"

	"podscrub/internal/logging"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(t.TempDir(), logging.NewNop())
}

func TestFeedRoundTrip(t *testing.T) {
	store := newTestStore(t)

	if _, _, ok, err := store.LoadFeed("show"); err != nil || ok {
		t.Fatalf("missing feed: ok=%v err=%v", ok, err)
	}

	document := []byte("<rss><channel><title>Show</title></channel></rss>")
	if err := store.SaveFeed("show", document); err != nil {
		t.Fatalf("save feed: %v", err)
	}

	content, modTime, ok, err := store.LoadFeed("show")
	if err != nil || !ok {
		t.Fatalf("load feed: ok=%v err=%v", ok, err)
	}
	if string(content) != string(document) {
		t.Fatalf("content = %q", content)
	}
	if modTime.IsZero() {
		t.Fatal("mod time missing")
	}
}

func TestTranscriptRoundTrip(t *testing.T) {
	store := newTestStore(t)

	if _, ok, err := store.LoadTranscript("show", "ep1"); err != nil || ok {
		t.Fatalf("missing transcript: ok=%v err=%v", ok, err)
	}
	if err := store.SaveTranscript("show", "ep1", "[00:00:00.000 --> 00:00:05.000] hello\n"); err != nil {
		t.Fatalf("save transcript: %v", err)
	}
	text, ok, err := store.LoadTranscript("show", "ep1")
	if err != nil || !ok {
		t.Fatalf("load transcript: ok=%v err=%v", ok, err)
	}
	if text == "" {
		t.Fatal("transcript empty after round trip")
	}
}

func TestEpisodePaths(t *testing.T) {
	store := New("/data", logging.NewNop())
	if got := store.AudioPath("show", "abc"); got != filepath.Join("/data", "show", "episodes", "abc.mp3") {
		t.Errorf("audio path = %s", got)
	}
	if got := store.TranscriptPath("show", "abc"); got != filepath.Join("/data", "show", "episodes", "abc-transcript.txt") {
		t.Errorf("transcript path = %s", got)
	}
	if got := store.AdsPath("show", "abc"); got != filepath.Join("/data", "show", "episodes", "abc-ads.json") {
		t.Errorf("ads path = %s", got)
	}
	if got := store.FeedPath("show"); got != filepath.Join("/data", "show", "feed.xml") {
		t.Errorf("feed path = %s", got)
	}
}

func TestAudioExists(t *testing.T) {
	store := newTestStore(t)
	if store.AudioExists("show", "ep1") {
		t.Fatal("reported audio before any write")
	}
	if _, err := store.PodcastDir("show"); err != nil {
		t.Fatalf("podcast dir: %v", err)
	}
	if err := os.WriteFile(store.AudioPath("show", "ep1"), []byte("mp3"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	if !store.AudioExists("show", "ep1") {
		t.Fatal("audio not found after write")
	}
}

func TestRemoveEpisode(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.PodcastDir("show"); err != nil {
		t.Fatalf("podcast dir: %v", err)
	}
	if err := os.WriteFile(store.AudioPath("show", "ep1"), []byte("mp3"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	if err := store.SaveTranscript("show", "ep1", "text"); err != nil {
		t.Fatalf("save transcript: %v", err)
	}
	if err := store.SaveAds("show", "ep1", []byte("[]")); err != nil {
		t.Fatalf("save ads: %v", err)
	}

	if err := store.RemoveEpisode("show", "ep1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if store.AudioExists("show", "ep1") {
		t.Fatal("audio survived removal")
	}
	if _, ok, _ := store.LoadTranscript("show", "ep1"); ok {
		t.Fatal("transcript survived removal")
	}

	// Removing again must be a no-op.
	if err := store.RemoveEpisode("show", "ep1"); err != nil {
		t.Fatalf("second remove: %v", err)
	}
}
