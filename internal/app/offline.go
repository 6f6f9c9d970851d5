package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jdros15/Talking-LLM/internal/cli"
	"github.com/jdros15/Talking-LLM/internal/config"
	"github.com/jdros15/Talking-LLM/internal/conversation"
	"github.com/jdros15/Talking-LLM/internal/doctor"
	"github.com/jdros15/Talking-LLM/internal/ipc"
	"github.com/jdros15/Talking-LLM/internal/prefs"
	"github.com/jdros15/Talking-LLM/internal/session"
)

// withState opens the store strictly, runs fn and closes it again.
func (r Runner) withState(cfg config.Config, logger *slog.Logger, fn func(*state) int) int {
	st, err := openState(cfg, conversation.NopView{}, stateHooks{}, true, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = st.Close() }()
	return fn(st)
}

// commandConversation prefers the running chat process so its view and cache
// stay in step; without one the store is edited directly.
func (r Runner) commandConversation(ctx context.Context, cfg config.Config, logger *slog.Logger, cmd cli.Command) int {
	if socketPath, err := ipc.RuntimeSocketPath(); err == nil {
		resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: string(cmd)})
		if handled {
			if err != nil {
				fmt.Fprintf(r.Stderr, "error: %v\n", err)
				return 1
			}
			fmt.Fprintln(r.Stdout, resp.Message)
			return 0
		}
	}

	return r.withState(cfg, logger, func(st *state) int {
		if cmd == cli.CommandClear {
			st.log.Clear()
			fmt.Fprintln(r.Stdout, "conversation cleared")
			return 0
		}
		fmt.Fprintln(r.Stdout, session.FormatHistory(st.log.Messages()))
		return 0
	})
}

func (r Runner) commandKeysSet(cfg config.Config, logger *slog.Logger, gemini, elevenLabs string) int {
	return r.withState(cfg, logger, func(st *state) int {
		if err := st.prefs.SetCredentials(gemini, elevenLabs); err != nil {
			if errors.Is(err, prefs.ErrIncompleteCredentials) {
				fmt.Fprintf(r.Stderr, "error: %s\n", prefs.MsgEnterBothKeys)
			} else {
				fmt.Fprintf(r.Stderr, "error: %v\n", err)
			}
			return 1
		}
		if st.adapter.Degraded() {
			fmt.Fprintf(r.Stderr, "error: %s\n", StatusStorageUnavailable)
			return 1
		}
		fmt.Fprintln(r.Stdout, prefs.MsgKeysSaved)
		return 0
	})
}

func (r Runner) commandKeysDelete(cfg config.Config, logger *slog.Logger) int {
	return r.withState(cfg, logger, func(st *state) int {
		st.prefs.DeleteCredentials()
		fmt.Fprintln(r.Stdout, prefs.MsgKeysDeleted)
		if src := st.prefs.KeySource(); src == "environment" {
			fmt.Fprintf(r.Stderr, "warning: keys are still set in the environment (%s, %s)\n", prefs.EnvGeminiAPIKey, prefs.EnvElevenLabsAPIKey)
		}
		return 0
	})
}

func (r Runner) commandVoices(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	client, err := gatewayClient(cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return r.withState(cfg, logger, func(st *state) int {
		voices, status := client.VoiceCatalog(ctx, st.prefs.ElevenLabsKey())
		if status != "" {
			fmt.Fprintln(r.Stderr, status)
		}
		selected := st.prefs.VoiceID()
		for _, v := range voices {
			mark := " "
			if v.ID == selected {
				mark = "*"
			}
			fmt.Fprintf(r.Stdout, "%s %s %s\n", mark, v.ID, v.Name)
		}
		return 0
	})
}

func (r Runner) commandVoice(cfg config.Config, logger *slog.Logger, id string) int {
	return r.withState(cfg, logger, func(st *state) int {
		if err := st.prefs.SetVoice(strings.TrimSpace(id)); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprintf(r.Stdout, "voice set to %s\n", st.prefs.VoiceID())
		return 0
	})
}

func (r Runner) commandVolume(cfg config.Config, logger *slog.Logger, raw string) int {
	volume, err := cli.ParseVolume(raw)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 2
	}
	return r.withState(cfg, logger, func(st *state) int {
		if err := st.prefs.SetVolume(volume); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprintf(r.Stdout, "volume set to %d%%\n", int(volume*100+0.5))
		return 0
	})
}

// commandDoctor reads credentials from the store when it is free; a held
// lock still leaves environment keys visible.
func (r Runner) commandDoctor(ctx context.Context, loaded config.Loaded, logger *slog.Logger) int {
	st, err := openState(loaded.Config, conversation.NopView{}, stateHooks{}, false, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = st.Close() }()

	report := doctor.Run(ctx, loaded, st.prefs)
	fmt.Fprintln(r.Stdout, report.String())
	if report.OK() {
		return 0
	}
	return 1
}
