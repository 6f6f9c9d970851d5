// Package app dispatches parsed CLI commands to the chat session, the IPC
// client path, or the offline preference commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jdros15/Talking-LLM/internal/audio"
	"github.com/jdros15/Talking-LLM/internal/cli"
	"github.com/jdros15/Talking-LLM/internal/config"
	"github.com/jdros15/Talking-LLM/internal/ipc"
	"github.com/jdros15/Talking-LLM/internal/logging"
	"github.com/jdros15/Talking-LLM/internal/session"
	"github.com/jdros15/Talking-LLM/internal/version"
)

const binaryName = "talkie"

type Runner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	r := Runner{Stdin: stdin, Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(binaryName))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	logRuntime, err := openLog(cfgLoaded.Config)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}
	r.reportWarnings(cfgLoaded.Warnings, logger)
	logger.Info("command start", "command", parsed.Command, "config", cfgLoaded.Path, "log", logRuntime.Path)

	cfg := cfgLoaded.Config
	switch parsed.Command {
	case cli.CommandChat:
		return r.commandChat(ctx, cfg, logger)
	case cli.CommandDoctor:
		return r.commandDoctor(ctx, cfgLoaded, logger)
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandToggle, cli.CommandStop, cli.CommandCancel, cli.CommandReplay:
		return r.forwardOrFail(ctx, ipc.Request{Command: string(parsed.Command), Args: parsed.Args})
	case cli.CommandHistory, cli.CommandClear:
		return r.commandConversation(ctx, cfg, logger, parsed.Command)
	case cli.CommandKeysSet:
		return r.commandKeysSet(cfg, logger, parsed.Args[0], parsed.Args[1])
	case cli.CommandKeysDelete:
		return r.commandKeysDelete(cfg, logger)
	case cli.CommandVoices:
		return r.commandVoices(ctx, cfg, logger)
	case cli.CommandVoice:
		return r.commandVoice(cfg, logger, parsed.Args[0])
	case cli.CommandVolume:
		return r.commandVolume(cfg, logger, parsed.Args[0])
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func openLog(cfg config.Config) (logging.Runtime, error) {
	path, err := config.ResolveLogPath(cfg)
	if err != nil {
		return logging.Runtime{}, err
	}
	return logging.New(cfg.Log.Level, path)
}

func (r Runner) reportWarnings(warnings []config.Warning, logger *slog.Logger) {
	for _, w := range warnings {
		if w.Line > 0 {
			fmt.Fprintf(r.Stderr, "warning: line %d: %s\n", w.Line, w.Message)
		} else {
			fmt.Fprintf(r.Stderr, "warning: %s\n", w.Message)
		}
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}
}

// commandDevices lists capture sources, marking the server default with *.
func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, d := range devices {
		mark := " "
		if d.Default {
			mark = "*"
		}
		fmt.Fprintf(r.Stdout, "%s %s  %q  state=%s available=%s muted=%s\n",
			mark, d.ID, d.Description, d.State, yesNo(d.Available), yesNo(d.Muted))
	}
	return 0
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: ipc.CmdStatus})
	if !handled {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.State == "" {
		resp.State = "idle"
	}
	if resp.Message != "" {
		fmt.Fprintf(r.Stdout, "%s: %s\n", resp.State, resp.Message)
	} else {
		fmt.Fprintln(r.Stdout, resp.State)
	}
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, req ipc.Request) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, req)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: no active talkie chat session; start one with `talkie chat`\n")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

func logSessionResult(logger *slog.Logger, result session.Result) {
	if logger == nil {
		return
	}
	fields := []any{
		"run_id", result.RunID,
		"state", result.State,
		"cancelled", result.Cancelled,
		"fallback", result.Fallback,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"audio_device", result.AudioDevice,
		"bytes_captured", result.BytesCaptured,
		"recorded_ms", result.Recorded.Milliseconds(),
		"transcript_length", len(result.Transcript),
		"reply_length", len(result.Reply),
	}
	for stage, d := range result.Timings {
		fields = append(fields, stage+"_ms", d.Milliseconds())
	}

	if result.Err != nil {
		logger.Error("session failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("session complete", fields...)
}

// tryForward sends req to a running chat process. handled is false when no
// process is listening.
func tryForward(ctx context.Context, socketPath string, req ipc.Request) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, req, 220*time.Millisecond)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if ipc.NoListener(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", req.Command, err)
}
