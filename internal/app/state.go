package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jdros15/Talking-LLM/internal/audiocache"
	"github.com/jdros15/Talking-LLM/internal/config"
	"github.com/jdros15/Talking-LLM/internal/conversation"
	"github.com/jdros15/Talking-LLM/internal/prefs"
	"github.com/jdros15/Talking-LLM/internal/services"
	"github.com/jdros15/Talking-LLM/internal/session"
	"github.com/jdros15/Talking-LLM/internal/store"
)

// StatusStorageUnavailable is shown once when writes stop persisting.
const StatusStorageUnavailable = "Storage unavailable; changes will not be saved"

// stateHooks connects store and cache events to metrics and the status line.
type stateHooks struct {
	storeFailed func(error)
	recovered   func()
	evicted     func(int)
}

// state is the durable side of the process: store, preferences, audio cache
// and conversation log.
type state struct {
	adapter *store.Adapter
	prefs   *prefs.Prefs
	cache   *audiocache.Cache
	log     *conversation.Log
}

// openState opens the configured backend. With strict set, a bolt open error
// is returned; otherwise the process continues memory-only.
func openState(cfg config.Config, view conversation.View, hooks stateHooks, strict bool, logger *slog.Logger) (*state, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	backend, err := openBackend(cfg)
	if err != nil {
		if strict {
			return nil, err
		}
		logger.Warn("store unavailable; continuing memory-only", "error", err.Error())
		backend = store.NewMemory(cfg.Storage.QuotaBytes)
		if hooks.storeFailed != nil {
			hooks.storeFailed(err)
		}
	}

	opts := []store.Option{store.WithLogger(logger)}
	if hooks.storeFailed != nil {
		opts = append(opts, store.WithFailureHandler(hooks.storeFailed))
	}
	if hooks.recovered != nil {
		opts = append(opts, store.WithRecoveryHook(hooks.recovered))
	}
	adapter := store.NewAdapter(backend, opts...)

	cacheOpts := []audiocache.Option{audiocache.WithLogger(logger)}
	if hooks.evicted != nil {
		cacheOpts = append(cacheOpts, audiocache.WithEvictionHook(hooks.evicted))
	}
	cache := audiocache.New(adapter, cfg.Cache.MaxEntries, cacheOpts...)
	adapter.SetShrinker(cache)
	cache.Load()

	p := prefs.Load(adapter, prefs.Options{
		DefaultVoice:  cfg.Voice.Default,
		DefaultVolume: cfg.Playback.Volume,
		EnvFile:       cfg.EnvFile,
		Logger:        logger,
	})

	log := conversation.New(adapter, cache, view, conversation.Config{
		MaxMessages:    cfg.History.MaxMessages,
		HasCredentials: p.HasCredentials,
		Logger:         logger,
	})
	log.Initialize()

	return &state{adapter: adapter, prefs: p, cache: cache, log: log}, nil
}

func openBackend(cfg config.Config) (store.Backend, error) {
	if cfg.Storage.Backend == "memory" {
		return store.NewMemory(cfg.Storage.QuotaBytes), nil
	}
	path, err := config.ResolveStoragePath(cfg)
	if err != nil {
		return nil, err
	}
	b, err := store.OpenBolt(path, cfg.Storage.QuotaBytes)
	if err != nil {
		return nil, fmt.Errorf("%w (is a talkie chat session holding it?)", err)
	}
	return b, nil
}

func (s *state) Close() error {
	return s.adapter.Close()
}

// gatewayClient builds the HTTP collaborator client from config.
func gatewayClient(cfg config.Config, logger *slog.Logger) (*services.Client, error) {
	return services.NewClient(services.Config{
		BaseURL:        cfg.Gateway.BaseURL,
		TranscribePath: cfg.Gateway.TranscribePath,
		ReplyPath:      cfg.Gateway.ReplyPath,
		SpeechPath:     cfg.Gateway.SpeechPath,
		VoicesPath:     cfg.Gateway.VoicesPath,
		Timeout:        time.Duration(cfg.Gateway.TimeoutMS) * time.Millisecond,
		SpeechTimeout:  time.Duration(cfg.Gateway.SpeechTimeoutMS) * time.Millisecond,
		Logger:         logger,
	})
}

// replier selects the reply backend. The openai backend reads OPENAI_API_KEY.
func replier(cfg config.Config, client *services.Client) (session.Replier, error) {
	if cfg.Reply.Backend != "openai" {
		return client, nil
	}
	key := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if key == "" {
		return nil, errors.New("reply.backend is openai but OPENAI_API_KEY is not set")
	}
	return services.NewOpenAIReplier(services.OpenAIConfig{
		APIKey:    key,
		Model:     cfg.Reply.Model,
		MaxTokens: cfg.Reply.MaxTokens,
	})
}
