package config

const (
	defaultDataDir           = "~/.local/share/podscrub/data"
	defaultLogDir            = "~/.local/share/podscrub/logs"
	defaultBind              = "0.0.0.0:8000"
	defaultBaseURL           = "http://localhost:8000"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultWhisperBinary     = "whisper"
	defaultWhisperModel      = "small"
	defaultWhisperDevice     = "cpu"
	defaultWhisperTimeout    = 1500
	defaultLLMBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel          = "anthropic/claude-sonnet-4.5"
	defaultLLMTimeoutSeconds = 120
	defaultFrameSeconds      = 5.0
	defaultThresholdDB       = 3.0
	defaultMinAnomalySeconds = 15.0
	defaultMaxJobSeconds     = 1800
	defaultRetentionMinutes  = 1440
	defaultRefreshMinutes    = 15
	defaultFFmpegBinary      = "ffmpeg"
	defaultFFprobeBinary     = "ffprobe"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			Bind:    defaultBind,
			BaseURL: defaultBaseURL,
		},
		Whisper: Whisper{
			Binary:         defaultWhisperBinary,
			Model:          defaultWhisperModel,
			Device:         defaultWhisperDevice,
			TimeoutSeconds: defaultWhisperTimeout,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Analysis: Analysis{
			Enabled:           true,
			FrameSeconds:      defaultFrameSeconds,
			ThresholdDB:       defaultThresholdDB,
			MinAnomalySeconds: defaultMinAnomalySeconds,
		},
		Processing: Processing{
			MaxJobSeconds:    defaultMaxJobSeconds,
			RetentionMinutes: defaultRetentionMinutes,
			FFmpegBinary:     defaultFFmpegBinary,
			FFprobeBinary:    defaultFFprobeBinary,
		},
		Workflow: Workflow{
			RefreshIntervalMinutes: defaultRefreshMinutes,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
