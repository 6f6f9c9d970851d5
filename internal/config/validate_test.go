package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateDefaults(t *testing.T) {
	warnings, err := Validate(Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
}

func TestValidateRejectsInvalidFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "empty base url", mutate: func(c *Config) { c.Gateway.BaseURL = "" }, wantErr: "gateway.base_url"},
		{name: "non http base url", mutate: func(c *Config) { c.Gateway.BaseURL = "ftp://x" }, wantErr: "http(s)"},
		{name: "bad path", mutate: func(c *Config) { c.Gateway.ReplyPath = "llm-response" }, wantErr: "gateway.reply_path"},
		{name: "zero timeout", mutate: func(c *Config) { c.Gateway.TimeoutMS = 0 }, wantErr: "gateway.timeout_ms"},
		{name: "zero speech timeout", mutate: func(c *Config) { c.Gateway.SpeechTimeoutMS = 0 }, wantErr: "speech_timeout_ms"},
		{name: "unknown reply backend", mutate: func(c *Config) { c.Reply.Backend = "claude" }, wantErr: "reply.backend"},
		{name: "openai without model", mutate: func(c *Config) { c.Reply.Backend = "openai"; c.Reply.Model = "" }, wantErr: "reply.model"},
		{name: "zero max tokens", mutate: func(c *Config) { c.Reply.MaxTokens = 0 }, wantErr: "reply.max_tokens"},
		{name: "empty voice", mutate: func(c *Config) { c.Voice.Default = " " }, wantErr: "voice.default"},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Backend = "sqlite" }, wantErr: "storage.backend"},
		{name: "negative quota", mutate: func(c *Config) { c.Storage.QuotaBytes = -1 }, wantErr: "quota_bytes"},
		{name: "zero history", mutate: func(c *Config) { c.History.MaxMessages = 0 }, wantErr: "history.max_messages"},
		{name: "zero cache", mutate: func(c *Config) { c.Cache.MaxEntries = 0 }, wantErr: "cache.max_entries"},
		{name: "volume too high", mutate: func(c *Config) { c.Playback.Volume = 1.5 }, wantErr: "playback.volume"},
		{name: "command backend without command", mutate: func(c *Config) { c.Playback.Backend = "command" }, wantErr: "playback.command"},
		{name: "unknown indicator", mutate: func(c *Config) { c.Indicator.Backend = "popup" }, wantErr: "indicator.backend"},
		{name: "desktop without app name", mutate: func(c *Config) {
			c.Indicator.Backend = "desktop"
			c.Indicator.DesktopAppName = ""
		}, wantErr: "desktop_app_name"},
		{name: "negative revert", mutate: func(c *Config) { c.Indicator.StatusRevertMS = -1 }, wantErr: "status_revert_ms"},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "trace" }, wantErr: "log.level"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			_, err := Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateWarnsWhenCacheExceedsHistory(t *testing.T) {
	cfg := Default()
	cfg.Cache.MaxEntries = 200
	warnings, err := Validate(cfg)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, "cache.max_entries")
}
