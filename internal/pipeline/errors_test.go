package pipeline

import (
	"errors"
	"testing"
)

func TestWrapTagsMarker(t *testing.T) {
	cause := errors.New("ffmpeg exited 1")
	err := Wrap(ErrExternalTool, StageCut, "remove ads", "", cause)

	if !errors.Is(err, ErrExternalTool) {
		t.Error("wrapped error lost its marker")
	}
	if !errors.Is(err, cause) {
		t.Error("wrapped error lost its cause")
	}
	want := "external tool error: cut: remove ads: ffmpeg exited 1"
	if err.Error() != want {
		t.Errorf("message = %q, want %q", err.Error(), want)
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := Wrap(nil, StageDownload, "", "connection reset", nil)
	if !errors.Is(err, ErrTransient) {
		t.Error("nil marker should default to ErrTransient")
	}
	want := "transient failure: download: connection reset"
	if err.Error() != want {
		t.Errorf("message = %q, want %q", err.Error(), want)
	}
}

func TestWrapDetailFallsBack(t *testing.T) {
	err := Wrap(ErrTransient, "", "  ", "", nil)
	want := "transient failure: processing failure"
	if err.Error() != want {
		t.Errorf("message = %q, want %q", err.Error(), want)
	}
}
