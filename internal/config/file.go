package config

import (
	"fmt"
	"strings"
)

// fileConfig is the on-disk shape shared by JSONC and YAML. Pointer fields
// distinguish "absent" from zero so defaults survive partial files.
type fileConfig struct {
	Gateway   *fileGateway   `json:"gateway" yaml:"gateway"`
	Reply     *fileReply     `json:"reply" yaml:"reply"`
	Voice     *fileVoice     `json:"voice" yaml:"voice"`
	Audio     *fileAudio     `json:"audio" yaml:"audio"`
	Storage   *fileStorage   `json:"storage" yaml:"storage"`
	History   *fileHistory   `json:"history" yaml:"history"`
	Cache     *fileCache     `json:"cache" yaml:"cache"`
	Playback  *filePlayback  `json:"playback" yaml:"playback"`
	Indicator *fileIndicator `json:"indicator" yaml:"indicator"`
	Metrics   *fileMetrics   `json:"metrics" yaml:"metrics"`
	Log       *fileLog       `json:"log" yaml:"log"`
	EnvFile   *string        `json:"env_file" yaml:"env_file"`
	Debug     *fileDebug     `json:"debug" yaml:"debug"`
}

type fileGateway struct {
	BaseURL         *string `json:"base_url" yaml:"base_url"`
	TranscribePath  *string `json:"transcribe_path" yaml:"transcribe_path"`
	ReplyPath       *string `json:"reply_path" yaml:"reply_path"`
	SpeechPath      *string `json:"speech_path" yaml:"speech_path"`
	VoicesPath      *string `json:"voices_path" yaml:"voices_path"`
	TimeoutMS       *int    `json:"timeout_ms" yaml:"timeout_ms"`
	SpeechTimeoutMS *int    `json:"speech_timeout_ms" yaml:"speech_timeout_ms"`
}

type fileReply struct {
	Backend   *string `json:"backend" yaml:"backend"`
	Model     *string `json:"model" yaml:"model"`
	MaxTokens *int    `json:"max_tokens" yaml:"max_tokens"`
}

type fileVoice struct {
	Default *string `json:"default" yaml:"default"`
}

type fileAudio struct {
	Input    *string `json:"input" yaml:"input"`
	Fallback *string `json:"fallback" yaml:"fallback"`
}

type fileStorage struct {
	Backend    *string `json:"backend" yaml:"backend"`
	Path       *string `json:"path" yaml:"path"`
	QuotaBytes *int64  `json:"quota_bytes" yaml:"quota_bytes"`
}

type fileHistory struct {
	MaxMessages *int `json:"max_messages" yaml:"max_messages"`
}

type fileCache struct {
	MaxEntries *int `json:"max_entries" yaml:"max_entries"`
}

type filePlayback struct {
	Volume  *float64 `json:"volume" yaml:"volume"`
	Backend *string  `json:"backend" yaml:"backend"`
	Command *string  `json:"command" yaml:"command"`
}

type fileIndicator struct {
	Enable         *bool   `json:"enable" yaml:"enable"`
	Backend        *string `json:"backend" yaml:"backend"`
	DesktopAppName *string `json:"desktop_app_name" yaml:"desktop_app_name"`
	SoundEnable    *bool   `json:"sound_enable" yaml:"sound_enable"`
	StatusRevertMS *int    `json:"status_revert_ms" yaml:"status_revert_ms"`
}

type fileMetrics struct {
	Listen *string `json:"listen" yaml:"listen"`
}

type fileLog struct {
	Level *string `json:"level" yaml:"level"`
	Path  *string `json:"path" yaml:"path"`
}

type fileDebug struct {
	AudioDump *bool `json:"audio_dump" yaml:"audio_dump"`
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setValue[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func (payload fileConfig) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if g := payload.Gateway; g != nil {
		setString(&cfg.Gateway.BaseURL, g.BaseURL)
		setString(&cfg.Gateway.TranscribePath, g.TranscribePath)
		setString(&cfg.Gateway.ReplyPath, g.ReplyPath)
		setString(&cfg.Gateway.SpeechPath, g.SpeechPath)
		setString(&cfg.Gateway.VoicesPath, g.VoicesPath)
		setValue(&cfg.Gateway.TimeoutMS, g.TimeoutMS)
		setValue(&cfg.Gateway.SpeechTimeoutMS, g.SpeechTimeoutMS)
	}

	if r := payload.Reply; r != nil {
		setString(&cfg.Reply.Backend, r.Backend)
		cfg.Reply.Backend = strings.ToLower(cfg.Reply.Backend)
		setString(&cfg.Reply.Model, r.Model)
		setValue(&cfg.Reply.MaxTokens, r.MaxTokens)
	}

	if payload.Voice != nil {
		setString(&cfg.Voice.Default, payload.Voice.Default)
	}

	if payload.Audio != nil {
		setValue(&cfg.Audio.Input, payload.Audio.Input)
		setValue(&cfg.Audio.Fallback, payload.Audio.Fallback)
	}

	if s := payload.Storage; s != nil {
		setString(&cfg.Storage.Backend, s.Backend)
		cfg.Storage.Backend = strings.ToLower(cfg.Storage.Backend)
		setString(&cfg.Storage.Path, s.Path)
		setValue(&cfg.Storage.QuotaBytes, s.QuotaBytes)
	}

	if payload.History != nil {
		setValue(&cfg.History.MaxMessages, payload.History.MaxMessages)
	}
	if payload.Cache != nil {
		setValue(&cfg.Cache.MaxEntries, payload.Cache.MaxEntries)
	}

	if p := payload.Playback; p != nil {
		setValue(&cfg.Playback.Volume, p.Volume)
		setString(&cfg.Playback.Backend, p.Backend)
		cfg.Playback.Backend = strings.ToLower(cfg.Playback.Backend)
		if p.Command != nil {
			cmd, err := ParseCommand(*p.Command)
			if err != nil {
				return nil, fmt.Errorf("invalid playback.command: %w", err)
			}
			cfg.Playback.Command = cmd
		}
	}

	if i := payload.Indicator; i != nil {
		setValue(&cfg.Indicator.Enable, i.Enable)
		setString(&cfg.Indicator.Backend, i.Backend)
		setString(&cfg.Indicator.DesktopAppName, i.DesktopAppName)
		setValue(&cfg.Indicator.SoundEnable, i.SoundEnable)
		setValue(&cfg.Indicator.StatusRevertMS, i.StatusRevertMS)
	}

	if payload.Metrics != nil {
		setString(&cfg.Metrics.Listen, payload.Metrics.Listen)
	}
	if payload.Log != nil {
		setString(&cfg.Log.Level, payload.Log.Level)
		cfg.Log.Level = strings.ToLower(cfg.Log.Level)
		setString(&cfg.Log.Path, payload.Log.Path)
	}
	setString(&cfg.EnvFile, payload.EnvFile)

	if payload.Debug != nil {
		setValue(&cfg.Debug.EnableAudioDump, payload.Debug.AudioDump)
	}

	return warnings, nil
}
