package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Gateway: GatewayConfig{
			BaseURL:         "http://localhost:8888/.netlify/functions",
			TranscribePath:  "/speech-to-text",
			ReplyPath:       "/llm-response",
			SpeechPath:      "/text-to-speech",
			VoicesPath:      "/elevenlabs-voices",
			TimeoutMS:       60000,
			SpeechTimeoutMS: 30000,
		},
		Reply: ReplyConfig{
			Backend:   "gateway",
			Model:     "gpt-4o-mini",
			MaxTokens: 60,
		},
		Voice: VoiceConfig{Default: "pNInz6obpgDQGcFmaJgB"},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		Storage: StorageConfig{
			Backend:    "bolt",
			QuotaBytes: 5 << 20,
		},
		History:  HistoryConfig{MaxMessages: 100},
		Cache:    CacheConfig{MaxEntries: 20},
		Playback: PlaybackConfig{Volume: 1, Backend: "pulse"},
		Indicator: IndicatorConfig{
			Enable:         true,
			Backend:        "terminal",
			DesktopAppName: "talkie",
			SoundEnable:    true,
			StatusRevertMS: 3000,
		},
		Log: LogConfig{Level: "info"},
	}
}
