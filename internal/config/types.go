// Package config resolves, parses, validates, and defaults talkie configuration.
package config

// Config is the fully materialized runtime configuration.
type Config struct {
	Gateway   GatewayConfig
	Reply     ReplyConfig
	Voice     VoiceConfig
	Audio     AudioConfig
	Storage   StorageConfig
	History   HistoryConfig
	Cache     CacheConfig
	Playback  PlaybackConfig
	Indicator IndicatorConfig
	Metrics   MetricsConfig
	Log       LogConfig
	EnvFile   string
	Debug     DebugConfig
}

// GatewayConfig locates the remote speech/reply functions.
type GatewayConfig struct {
	BaseURL         string
	TranscribePath  string
	ReplyPath       string
	SpeechPath      string
	VoicesPath      string
	TimeoutMS       int
	SpeechTimeoutMS int
}

// ReplyConfig selects the reply backend.
type ReplyConfig struct {
	Backend   string
	Model     string
	MaxTokens int
}

// VoiceConfig sets the synthesis voice used until one is chosen explicitly.
type VoiceConfig struct {
	Default string
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string
	Fallback string
}

// StorageConfig controls durable state.
type StorageConfig struct {
	Backend    string
	Path       string
	QuotaBytes int64
}

// HistoryConfig bounds the conversation log.
type HistoryConfig struct {
	MaxMessages int
}

// CacheConfig bounds the audio cache.
type CacheConfig struct {
	MaxEntries int
}

// PlaybackConfig controls reply playback.
type PlaybackConfig struct {
	Volume  float64
	Backend string
	Command CommandConfig
}

// IndicatorConfig controls status output and audio cue behavior.
type IndicatorConfig struct {
	Enable         bool
	Backend        string
	DesktopAppName string
	SoundEnable    bool
	StatusRevertMS int
}

// MetricsConfig enables the Prometheus endpoint when Listen is set.
type MetricsConfig struct {
	Listen string
}

// LogConfig sets the JSONL log level and an optional file override.
type LogConfig struct {
	Level string
	Path  string
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
