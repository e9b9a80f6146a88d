package episode

import (
	"context"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec := NewProcessing("show", "ep1", "https://cdn.example.com/ep1.mp3", "Pilot")
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("save processing: %v", err)
	}

	got, err := store.Get(ctx, "show", "ep1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Status != StatusProcessing || got.Title != "Pilot" {
		t.Fatalf("got %+v", got)
	}

	rec.MarkProcessed(3600, 3000, 2)
	rec.AdMarkersJSON = `[{"start":0,"end":600,"reason":"pre-roll"}]`
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("save processed: %v", err)
	}

	got, err = store.Get(ctx, "show", "ep1")
	if err != nil {
		t.Fatalf("get processed: %v", err)
	}
	if got.Status != StatusProcessed || got.Processed == nil {
		t.Fatalf("got %+v", got)
	}
	if got.Processed.OriginalDuration != 3600 || got.Processed.AdsRemoved != 2 {
		t.Fatalf("processed payload = %+v", got.Processed)
	}
	if got.Failed != nil {
		t.Fatal("processed record surfaced failure payload")
	}
	if got.AdMarkersJSON == "" {
		t.Fatal("ad markers lost in round trip")
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	store := openTestStore(t)
	got, err := store.Get(context.Background(), "show", "nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil record, got %+v", got)
	}
}

func TestSaveRejectsInvalidRecord(t *testing.T) {
	store := openTestStore(t)
	rec := NewProcessing("show", "ep1", "", "")
	rec.Status = StatusProcessed // no payload
	if err := store.Save(context.Background(), rec); err == nil {
		t.Fatal("invalid record accepted")
	}
}

func TestFailedRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec := NewProcessing("show", "ep2", "https://cdn.example.com/ep2.mp3", "Two")
	rec.MarkFailed("transcribe: run whisper: exit status 1")
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("save failed record: %v", err)
	}

	got, err := store.Get(ctx, "show", "ep2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusFailed || got.Failed == nil {
		t.Fatalf("got %+v", got)
	}
	if got.Failed.Message != "transcribe: run whisper: exit status 1" {
		t.Fatalf("message = %q", got.Failed.Message)
	}
	if got.Failed.FailedAt.IsZero() {
		t.Fatal("failure timestamp lost")
	}
}

func TestDeleteRemovesRecord(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec := NewProcessing("show", "ep1", "", "")
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Delete(ctx, "show", "ep1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := store.Get(ctx, "show", "ep1")
	if err != nil || got != nil {
		t.Fatalf("after delete: rec=%+v err=%v", got, err)
	}
}

func TestListBySlugAndCounts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	a := NewProcessing("show", "a", "", "A")
	b := NewProcessing("show", "b", "", "B")
	b.MarkProcessed(100, 90, 1)
	c := NewProcessing("other", "c", "", "C")
	c.MarkFailed("boom")
	for _, rec := range []*Record{a, b, c} {
		if err := store.Save(ctx, rec); err != nil {
			t.Fatalf("save %s: %v", rec.EpisodeID, err)
		}
	}

	records, err := store.ListBySlug(ctx, "show")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("list returned %d records, want 2", len(records))
	}

	counts, err := store.CountsByStatus(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts[StatusProcessing] != 1 || counts[StatusProcessed] != 1 || counts[StatusFailed] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestProcessedBefore(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	old := NewProcessing("show", "old", "", "Old")
	old.MarkProcessed(100, 90, 1)
	old.Processed.ProcessedAt = time.Now().Add(-48 * time.Hour)
	fresh := NewProcessing("show", "fresh", "", "Fresh")
	fresh.MarkProcessed(100, 90, 1)
	for _, rec := range []*Record{old, fresh} {
		if err := store.Save(ctx, rec); err != nil {
			t.Fatalf("save %s: %v", rec.EpisodeID, err)
		}
	}

	expired, err := store.ProcessedBefore(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("processed before: %v", err)
	}
	if len(expired) != 1 || expired[0].EpisodeID != "old" {
		t.Fatalf("expired = %+v", expired)
	}
}
