package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	base := strings.TrimSpace(cfg.Gateway.BaseURL)
	if base == "" {
		return nil, fmt.Errorf("gateway.base_url must not be empty")
	}
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("gateway.base_url must be an http(s) url")
	}
	for name, path := range map[string]string{
		"gateway.transcribe_path": cfg.Gateway.TranscribePath,
		"gateway.reply_path":      cfg.Gateway.ReplyPath,
		"gateway.speech_path":     cfg.Gateway.SpeechPath,
		"gateway.voices_path":     cfg.Gateway.VoicesPath,
	} {
		if !strings.HasPrefix(strings.TrimSpace(path), "/") {
			return nil, fmt.Errorf("%s must start with '/'", name)
		}
	}
	if cfg.Gateway.TimeoutMS <= 0 {
		return nil, fmt.Errorf("gateway.timeout_ms must be > 0")
	}
	if cfg.Gateway.SpeechTimeoutMS <= 0 {
		return nil, fmt.Errorf("gateway.speech_timeout_ms must be > 0")
	}

	switch cfg.Reply.Backend {
	case "gateway":
	case "openai":
		if strings.TrimSpace(cfg.Reply.Model) == "" {
			return nil, fmt.Errorf("reply.model must not be empty when reply.backend=openai")
		}
	default:
		return nil, fmt.Errorf("reply.backend must be one of: gateway, openai")
	}
	if cfg.Reply.MaxTokens <= 0 {
		return nil, fmt.Errorf("reply.max_tokens must be > 0")
	}

	if strings.TrimSpace(cfg.Voice.Default) == "" {
		return nil, fmt.Errorf("voice.default must not be empty")
	}

	switch cfg.Storage.Backend {
	case "bolt", "memory":
	default:
		return nil, fmt.Errorf("storage.backend must be one of: bolt, memory")
	}
	if cfg.Storage.QuotaBytes < 0 {
		return nil, fmt.Errorf("storage.quota_bytes must be >= 0")
	}

	if cfg.History.MaxMessages <= 0 {
		return nil, fmt.Errorf("history.max_messages must be > 0")
	}
	if cfg.Cache.MaxEntries <= 0 {
		return nil, fmt.Errorf("cache.max_entries must be > 0")
	}
	if cfg.Cache.MaxEntries > cfg.History.MaxMessages {
		warnings = append(warnings, Warning{Message: fmt.Sprintf(
			"cache.max_entries=%d exceeds history.max_messages=%d; extra entries can never be replayed",
			cfg.Cache.MaxEntries, cfg.History.MaxMessages,
		)})
	}

	if cfg.Playback.Volume < 0 || cfg.Playback.Volume > 1 {
		return nil, fmt.Errorf("playback.volume must be between 0 and 1")
	}
	switch cfg.Playback.Backend {
	case "pulse":
	case "command":
		if len(cfg.Playback.Command.Argv) == 0 {
			return nil, fmt.Errorf("playback.command must not be empty when playback.backend=command")
		}
	default:
		return nil, fmt.Errorf("playback.backend must be one of: pulse, command")
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Indicator.Backend))
	if backend != "terminal" && backend != "desktop" {
		return nil, fmt.Errorf("indicator.backend must be one of: terminal, desktop")
	}
	if backend == "desktop" && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
	}
	if cfg.Indicator.StatusRevertMS < 0 {
		return nil, fmt.Errorf("indicator.status_revert_ms must be >= 0")
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}

	return warnings, nil
}
