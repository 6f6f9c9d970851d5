// Package prefs holds user preferences kept in the durable store: API keys,
// the selected voice and the playback volume.
package prefs

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"github.com/jdros15/Talking-LLM/internal/store"
)

// Environment variables that override stored API keys.
const (
	EnvGeminiAPIKey     = "TALKIE_GEMINI_API_KEY"
	EnvElevenLabsAPIKey = "TALKIE_ELEVENLABS_API_KEY"
)

// User-facing messages for key management.
const (
	MsgEnterBothKeys = "Please enter both API keys"
	MsgKeysSaved     = "API keys saved"
	MsgKeysDeleted   = "API keys deleted"
)

var (
	// ErrIncompleteCredentials rejects saving only one of the two keys.
	ErrIncompleteCredentials = errors.New("both api keys are required")
	ErrInvalidVolume         = errors.New("volume must be between 0 and 1")
	ErrEmptyVoice            = errors.New("voice id is empty")
)

// Store is the persistence subset preferences need.
type Store interface {
	Save(key string, value any) bool
	Load(key string, dst any) (bool, error)
	Remove(key string)
}

// Options seeds values that are not in the store yet.
type Options struct {
	DefaultVoice  string
	DefaultVolume float64
	EnvFile       string
	Logger        *slog.Logger
}

// Prefs is safe for concurrent use.
type Prefs struct {
	store  Store
	logger *slog.Logger

	mu         sync.RWMutex
	gemini     string
	elevenLabs string
	envGemini  string
	envEleven  string
	voice      string
	volume     float64
}

// Load reads preferences from st and applies environment overrides. A
// missing or unreadable env file is logged and ignored.
func Load(st Store, opts Options) *Prefs {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	p := &Prefs{
		store:  st,
		logger: opts.Logger,
		voice:  opts.DefaultVoice,
		volume: opts.DefaultVolume,
	}

	p.gemini = p.loadString(store.KeyGeminiAPIKey)
	p.elevenLabs = p.loadString(store.KeyElevenLabsAPIKey)
	if voice := p.loadString(store.KeyVoiceID); voice != "" {
		p.voice = voice
	}
	var volume float64
	if ok, err := st.Load(store.KeyVolume, &volume); err != nil {
		p.logger.Warn("stored volume unreadable", "error", err.Error())
	} else if ok && volume >= 0 && volume <= 1 {
		p.volume = volume
	}

	env := p.readEnvFile(opts.EnvFile)
	p.envGemini = firstNonEmpty(os.Getenv(EnvGeminiAPIKey), env[EnvGeminiAPIKey])
	p.envEleven = firstNonEmpty(os.Getenv(EnvElevenLabsAPIKey), env[EnvElevenLabsAPIKey])
	return p
}

// HasCredentials reports whether both API keys are available.
func (p *Prefs) HasCredentials() bool {
	return p.GeminiKey() != "" && p.ElevenLabsKey() != ""
}

func (p *Prefs) GeminiKey() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return firstNonEmpty(p.envGemini, p.gemini)
}

func (p *Prefs) ElevenLabsKey() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return firstNonEmpty(p.envEleven, p.elevenLabs)
}

func (p *Prefs) VoiceID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.voice
}

func (p *Prefs) Volume() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.volume
}

// KeySource names where the active keys come from, for diagnostics.
func (p *Prefs) KeySource() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	switch {
	case p.envGemini != "" || p.envEleven != "":
		return "environment"
	case p.gemini != "" || p.elevenLabs != "":
		return "store"
	default:
		return "none"
	}
}

// SetCredentials stores both keys. Both must be non-empty.
func (p *Prefs) SetCredentials(gemini, elevenLabs string) error {
	gemini = strings.TrimSpace(gemini)
	elevenLabs = strings.TrimSpace(elevenLabs)
	if gemini == "" || elevenLabs == "" {
		return ErrIncompleteCredentials
	}

	p.mu.Lock()
	p.gemini = gemini
	p.elevenLabs = elevenLabs
	p.mu.Unlock()

	if !p.store.Save(store.KeyGeminiAPIKey, gemini) || !p.store.Save(store.KeyElevenLabsAPIKey, elevenLabs) {
		return errors.New("api keys kept for this session only")
	}
	return nil
}

// DeleteCredentials erases both stored keys. Environment overrides remain.
func (p *Prefs) DeleteCredentials() {
	p.mu.Lock()
	p.gemini = ""
	p.elevenLabs = ""
	p.mu.Unlock()

	p.store.Remove(store.KeyGeminiAPIKey)
	p.store.Remove(store.KeyElevenLabsAPIKey)
}

// SetVoice persists the selected voice id.
func (p *Prefs) SetVoice(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrEmptyVoice
	}
	p.mu.Lock()
	p.voice = id
	p.mu.Unlock()

	if !p.store.Save(store.KeyVoiceID, id) {
		return errors.New("voice kept for this session only")
	}
	return nil
}

// SetVolume persists v, which must be within 0..1.
func (p *Prefs) SetVolume(v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidVolume, v)
	}
	p.mu.Lock()
	p.volume = v
	p.mu.Unlock()

	if !p.store.Save(store.KeyVolume, v) {
		return errors.New("volume kept for this session only")
	}
	return nil
}

func (p *Prefs) loadString(key string) string {
	var value string
	ok, err := p.store.Load(key, &value)
	if err != nil {
		p.logger.Warn("stored preference unreadable", "key", key, "error", err.Error())
		return ""
	}
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

func (p *Prefs) readEnvFile(path string) map[string]string {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		p.logger.Warn("env file unreadable", "path", path, "error", err.Error())
		return nil
	}
	return values
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
