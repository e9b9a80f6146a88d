package transcribe

import (
	"path/filepath"
	"testing"
)

func TestWhisperJSONPath(t *testing.T) {
	tests := []struct {
		audioPath string
		want      string
	}{
		{"/tmp/work/audio.mp3", "audio.json"},
		{"/tmp/work/audio.m4a", "audio.json"},
		{"/tmp/work/no-extension", "no-extension.json"},
	}
	for _, tt := range tests {
		got := whisperJSONPath("/out", tt.audioPath)
		if got != filepath.Join("/out", tt.want) {
			t.Errorf("whisperJSONPath(%q) = %q, want %q", tt.audioPath, got, tt.want)
		}
	}
}
