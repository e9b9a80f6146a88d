package analysis

// SignalType labels the kind of audio pattern a detector reported.
type SignalType string

const (
	SignalVolumeIncrease SignalType = "volume_increase"
	SignalVolumeDecrease SignalType = "volume_decrease"
	SignalMusicBed       SignalType = "music_bed"
	SignalMonologue      SignalType = "monologue"
	SignalSpeakerChange  SignalType = "speaker_change"
)

// LoudnessFrame is one fixed-size window's loudness measurement.
type LoudnessFrame struct {
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	LoudnessLUFS float64 `json:"loudness_lufs"`
	PeakDBFS     float64 `json:"peak_dbfs"`
}

// Signal is an audio pattern detected in a time range. Immutable once
// produced.
type Signal struct {
	Start      float64        `json:"start"`
	End        float64        `json:"end"`
	Type       SignalType     `json:"signal_type"`
	Confidence float64        `json:"confidence"`
	Details    map[string]any `json:"details,omitempty"`
}

// Duration returns the signal length in seconds.
func (s Signal) Duration() float64 {
	return s.End - s.Start
}

// Overlaps reports whether two signals' ranges intersect within tolerance
// seconds.
func (s Signal) Overlaps(other Signal, tolerance float64) bool {
	return s.Start <= other.End+tolerance && s.End >= other.Start-tolerance
}

// SpeakerSegment is a stretch of audio attributed to one speaker.
type SpeakerSegment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// Duration returns the segment length in seconds.
func (s SpeakerSegment) Duration() float64 {
	return s.End - s.Start
}

// ConversationMetrics summarizes the speaking pattern of an episode.
type ConversationMetrics struct {
	NumSpeakers      int     `json:"num_speakers"`
	SpeakerBalance   float64 `json:"speaker_balance"`
	AvgTurnDuration  float64 `json:"avg_turn_duration"`
	TurnFrequency    float64 `json:"turn_frequency"`
	IsConversational bool    `json:"is_conversational"`
	PrimarySpeaker   string  `json:"primary_speaker,omitempty"`
}

// Result aggregates everything the analyzers produced for one episode.
type Result struct {
	Signals             []Signal             `json:"signals"`
	LoudnessBaseline    *float64             `json:"loudness_baseline,omitempty"`
	SpeakerCount        *int                 `json:"speaker_count,omitempty"`
	ConversationMetrics *ConversationMetrics `json:"conversation_metrics,omitempty"`
	AnalysisSeconds     float64              `json:"analysis_time_seconds"`
	Errors              []string             `json:"errors,omitempty"`
}

// SignalsInRange returns the signals overlapping [start, end).
func (r Result) SignalsInRange(start, end float64) []Signal {
	var out []Signal
	for _, signal := range r.Signals {
		if signal.Start < end && signal.End > start {
			out = append(out, signal)
		}
	}
	return out
}

// SignalsByType returns the signals of one type.
func (r Result) SignalsByType(signalType SignalType) []Signal {
	var out []Signal
	for _, signal := range r.Signals {
		if signal.Type == signalType {
			out = append(out, signal)
		}
	}
	return out
}
