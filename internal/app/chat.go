package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jdros15/Talking-LLM/internal/config"
	"github.com/jdros15/Talking-LLM/internal/conversation"
	"github.com/jdros15/Talking-LLM/internal/indicator"
	"github.com/jdros15/Talking-LLM/internal/ipc"
	"github.com/jdros15/Talking-LLM/internal/metrics"
	"github.com/jdros15/Talking-LLM/internal/pipeline"
	"github.com/jdros15/Talking-LLM/internal/playback"
	"github.com/jdros15/Talking-LLM/internal/session"
)

const chatHelp = `Enter: start/stop recording (stops playback while speaking)
r <timestamp>: replay a reply   h: history   c: clear   s: stop   x: cancel   q: quit`

// chatDeps overrides the device-bound collaborators.
type chatDeps struct {
	recorder session.Recorder
	player   playback.Player
}

// chat is one interactive process: it owns the store, the playback device,
// the controller and the IPC socket for its lifetime.
type chat struct {
	cfg     config.Config
	logger  *slog.Logger
	console *console

	metrics  *metrics.Metrics
	notifier *indicator.Notifier
	state    *state
	speaker  *playback.Session
	ctrl     *session.Controller
}

func (r Runner) commandChat(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	c, err := newChat(cfg, r.Stdout, logger, chatDeps{})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer c.Close()

	in := r.Stdin
	if in == nil {
		in = os.Stdin
	}
	if err := c.run(ctx, listener, in); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func newChat(cfg config.Config, out io.Writer, logger *slog.Logger, deps chatDeps) (*chat, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	con := &console{out: out, clear: cfg.Indicator.Enable && !strings.EqualFold(cfg.Indicator.Backend, "desktop")}
	m := metrics.New()
	notifier := indicator.New(cfg.Indicator, con, logger)

	st, err := openState(cfg, conversation.NewWriterView(con.Lines()), stateHooks{
		storeFailed: func(err error) {
			m.StoreFailed(err)
			notifier.ShowError(context.Background(), StatusStorageUnavailable)
		},
		recovered: m.Recovered,
		evicted:   m.Evicted,
	}, false, logger)
	if err != nil {
		return nil, err
	}

	client, err := gatewayClient(cfg, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	reply, err := replier(cfg, client)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	player := deps.player
	if player == nil {
		player = newPlayer(cfg)
	}
	speaker := playback.New(player, st.cache,
		playback.WithStatus(notifier),
		playback.WithVolume(st.prefs.Volume),
		playback.WithLogger(logger),
	)

	recorder := deps.recorder
	if recorder == nil {
		recorder = pipeline.NewRecorder(cfg, logger)
	}

	ctrl, err := session.NewController(session.Deps{
		Recorder:    recorder,
		Transcriber: client,
		Replier:     reply,
		Synthesizer: client,
		Speaker:     speaker,
		Log:         st.log,
		Cache:       st.cache,
		Settings:    st.prefs,
		Indicator:   notifier,
		Observer:    m,
		Logger:      logger,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &chat{
		cfg:      cfg,
		logger:   logger,
		console:  con,
		metrics:  m,
		notifier: notifier,
		state:    st,
		speaker:  speaker,
		ctrl:     ctrl,
	}, nil
}

func newPlayer(cfg config.Config) playback.Player {
	if cfg.Playback.Backend == "command" {
		return playback.CommandPlayer{Argv: cfg.Playback.Command.Argv}
	}
	return playback.PulsePlayer{}
}

// run serves IPC and the line REPL until quit, EOF or ctx cancellation. Runs
// in flight are cancelled and awaited before it returns.
func (c *chat) run(ctx context.Context, listener net.Listener, in io.Reader) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- ipc.Serve(runCtx, listener, c.ctrl)
	}()

	if addr := strings.TrimSpace(c.cfg.Metrics.Listen); addr != "" {
		go func() {
			if err := c.metrics.Serve(runCtx, addr, c.logger); err != nil {
				c.logger.Error("metrics server failed", "addr", addr, "error", err.Error())
			}
		}()
	}

	fmt.Fprintln(c.console.Lines(), chatHelp)
	if !c.state.prefs.HasCredentials() {
		c.notifier.ShowStatus(runCtx, session.StatusMissingKeys)
	} else {
		c.notifier.ShowReady(runCtx)
	}

	lines := readLines(in)
	var runs sync.WaitGroup

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-c.ctrl.StartRequests():
			runs.Add(1)
			go func() {
				defer runs.Done()
				result := c.ctrl.Run(runCtx)
				logSessionResult(c.logger, result)
			}()
		case line, ok := <-lines:
			if !ok || c.handleLine(runCtx, line) {
				break loop
			}
		}
	}

	cancel()
	c.speaker.Stop()
	runs.Wait()
	c.notifier.Close(context.Background())

	if err := <-serverErr; err != nil {
		return fmt.Errorf("ipc server failed: %w", err)
	}
	return nil
}

// handleLine maps one REPL line onto a controller command. It reports
// whether the user asked to quit.
func (c *chat) handleLine(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		c.report(c.ctrl.Handle(ctx, ipc.Request{Command: "toggle"}), false)
		return false
	}

	switch strings.ToLower(fields[0]) {
	case "q", "quit", "exit":
		return true
	case "r", "replay":
		c.report(c.ctrl.Handle(ctx, ipc.Request{Command: "replay", Args: fields[1:]}), false)
	case "h", "history":
		c.report(c.ctrl.Handle(ctx, ipc.Request{Command: "history"}), true)
	case "c", "clear":
		c.report(c.ctrl.Handle(ctx, ipc.Request{Command: "clear"}), false)
	case "s", "stop":
		c.report(c.ctrl.Handle(ctx, ipc.Request{Command: "stop"}), false)
	case "x", "cancel":
		c.report(c.ctrl.Handle(ctx, ipc.Request{Command: "cancel"}), false)
	case "?", "help":
		fmt.Fprintln(c.console.Lines(), chatHelp)
	default:
		fmt.Fprintf(c.console.Lines(), "unknown input %q; type ? for help\n", fields[0])
	}
	return false
}

// report prints failures, and the message too when verbose is set.
func (c *chat) report(resp ipc.Response, verbose bool) {
	switch {
	case !resp.OK:
		fmt.Fprintf(c.console.Lines(), "error: %s\n", resp.Error)
	case verbose && resp.Message != "":
		fmt.Fprintln(c.console.Lines(), resp.Message)
	}
}

func (c *chat) Close() {
	if err := c.state.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		c.logger.Warn("store close failed", "error", err.Error())
	}
}

// readLines feeds scanned lines to the REPL and closes the channel at EOF.
func readLines(in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

// console serializes the status line and transcript output on one writer.
type console struct {
	mu    sync.Mutex
	out   io.Writer
	clear bool
}

func (c *console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Write(p)
}

// Lines returns a writer for full lines. On a terminal status line it first
// erases the status so the line starts at column zero.
func (c *console) Lines() io.Writer {
	return lineWriter{c}
}

type lineWriter struct{ c *console }

func (w lineWriter) Write(p []byte) (int, error) {
	w.c.mu.Lock()
	defer w.c.mu.Unlock()
	if w.c.clear {
		if _, err := io.WriteString(w.c.out, "\r\x1b[2K"); err != nil {
			return 0, err
		}
	}
	return w.c.out.Write(p)
}
