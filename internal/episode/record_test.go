package episode

import (
	"testing"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		input string
		want  Status
		ok    bool
	}{
		{"processing", StatusProcessing, true},
		{"Processed", StatusProcessed, true},
		{" FAILED ", StatusFailed, true},
		{"", "", false},
		{"done", "done", false},
	}
	for _, tt := range tests {
		got, ok := ParseStatus(tt.input)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("ParseStatus(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRecordTransitions(t *testing.T) {
	rec := NewProcessing("show", "ep1", "https://cdn.example.com/ep1.mp3", "Pilot")
	if rec.Status != StatusProcessing {
		t.Fatalf("status = %s, want processing", rec.Status)
	}
	if err := rec.Validate(); err != nil {
		t.Fatalf("validate processing: %v", err)
	}

	rec.MarkProcessed(3600, 3240, 3)
	if err := rec.Validate(); err != nil {
		t.Fatalf("validate processed: %v", err)
	}
	if rec.Processed == nil || rec.Failed != nil {
		t.Fatal("processed record carries wrong payload")
	}
	if saved := rec.Processed.TimeSaved(); saved != 360 {
		t.Fatalf("time saved = %v, want 360", saved)
	}

	rec.MarkFailed("cut: ffmpeg exited 1")
	if err := rec.Validate(); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if rec.Failed == nil || rec.Processed != nil {
		t.Fatal("failed record carries wrong payload")
	}
}

func TestValidateRejectsMismatchedPayload(t *testing.T) {
	rec := NewProcessing("show", "ep1", "", "")
	rec.Status = StatusProcessed
	if err := rec.Validate(); err == nil {
		t.Fatal("processed status without payload accepted")
	}

	rec = NewProcessing("show", "ep1", "", "")
	rec.Processed = &ProcessedInfo{}
	if err := rec.Validate(); err == nil {
		t.Fatal("processing status with payload accepted")
	}

	rec = NewProcessing("show", "ep1", "", "")
	rec.Status = Status("bogus")
	if err := rec.Validate(); err == nil {
		t.Fatal("unknown status accepted")
	}
}

func TestTimeSavedGuards(t *testing.T) {
	info := ProcessedInfo{OriginalDuration: 100, NewDuration: 120}
	if info.TimeSaved() != 0 {
		t.Fatal("negative savings should clamp to zero")
	}
	info = ProcessedInfo{OriginalDuration: 0, NewDuration: 0}
	if info.TimeSaved() != 0 {
		t.Fatal("zero durations should report zero savings")
	}
}
