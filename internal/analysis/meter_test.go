package analysis

import "testing"

const loudnormOutput = `size=N/A time=00:00:05.00 bitrate=N/A speed= 112x
video:0KiB audio:938KiB subtitle:0KiB other streams:0KiB global headers:0KiB muxing overhead: unknown
[Parsed_loudnorm_0 @ 0x5564c2]
{
	"input_i" : "-23.47",
	"input_tp" : "-5.12",
	"input_lra" : "7.10",
	"input_thresh" : "-33.95",
	"output_i" : "-24.01",
	"output_tp" : "-6.51",
	"output_lra" : "6.30",
	"output_thresh" : "-34.43",
	"normalization_type" : "dynamic",
	"target_offset" : "0.54"
}`

func TestParseLoudnorm(t *testing.T) {
	loudness, peak := parseLoudnorm([]byte(loudnormOutput))
	if loudness != -23.47 {
		t.Errorf("loudness = %v, want -23.47", loudness)
	}
	if peak != -5.12 {
		t.Errorf("peak = %v, want -5.12", peak)
	}
}

func TestParseLoudnormFallsBack(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{"no json", "frame=  100 fps=0.0 q=-0.0 size=N/A"},
		{"empty", ""},
		{"broken json", "prefix {\"input_i\": }"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loudness, peak := parseLoudnorm([]byte(tt.output))
			if loudness != fallbackLoudnessLUFS || peak != fallbackPeakDBFS {
				t.Errorf("got %v, %v; want fallbacks", loudness, peak)
			}
		})
	}
}

func TestParseLoudnormSilence(t *testing.T) {
	output := `{"input_i" : "-inf", "input_tp" : "-inf"}`
	loudness, peak := parseLoudnorm([]byte(output))
	if loudness != silenceFloorLUFS {
		t.Errorf("loudness = %v, want silence floor", loudness)
	}
	if peak != silenceFloorLUFS {
		t.Errorf("peak = %v, want silence floor", peak)
	}
}

func TestParseLevel(t *testing.T) {
	if _, err := parseLevel(""); err == nil {
		t.Error("empty level accepted")
	}
	if _, err := parseLevel("loud"); err == nil {
		t.Error("non-numeric level accepted")
	}
	value, err := parseLevel(" -18.3 ")
	if err != nil || value != -18.3 {
		t.Errorf("parseLevel(-18.3) = %v, %v", value, err)
	}
}

func TestLastLine(t *testing.T) {
	if got := lastLine([]byte("first\nsecond\n  third  \n")); got != "third" {
		t.Errorf("lastLine = %q, want third", got)
	}
	if got := lastLine(nil); got != "" {
		t.Errorf("lastLine(nil) = %q", got)
	}
}
