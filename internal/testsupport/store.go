package testsupport

import (
	"testing"

	"podscrub/internal/episode"
)

// MustOpenStore opens an episode store in a per-test temp directory and
// closes it when the test finishes.
func MustOpenStore(t testing.TB) *episode.Store {
	t.Helper()

	store, err := episode.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open episode store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close episode store: %v", err)
		}
	})
	return store
}
