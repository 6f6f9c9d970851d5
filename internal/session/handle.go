package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jdros15/Talking-LLM/internal/conversation"
	"github.com/jdros15/Talking-LLM/internal/fsm"
	"github.com/jdros15/Talking-LLM/internal/ipc"
	"github.com/jdros15/Talking-LLM/internal/playback"
)

// Handle serves IPC commands for the chat process.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CmdStatus:
		return c.respond(c.Status())
	case ipc.CmdToggle:
		return c.toggle()
	case ipc.CmdStop:
		return c.stop()
	case ipc.CmdCancel:
		return c.requestCancel()
	case ipc.CmdReplay:
		return c.replay(ctx, req.Args)
	case ipc.CmdHistory:
		return c.respond(FormatHistory(c.log.Messages()))
	case ipc.CmdClear:
		return c.clear()
	default:
		return c.fail(fmt.Sprintf("unknown command: %s", req.Command))
	}
}

// toggle starts a run from idle, stops an open recording, or cuts playback short.
func (c *Controller) toggle() ipc.Response {
	switch state := c.State(); state {
	case fsm.StateIdle:
		if !c.settings.HasCredentials() {
			c.showError(context.Background(), StatusMissingKeys)
			return c.fail(StatusMissingKeys)
		}
		select {
		case c.starts <- struct{}{}:
			return c.respond("start requested")
		default:
			return c.respond("start already requested")
		}
	case fsm.StateRecording:
		return c.requestStop("toggle")
	case fsm.StateSpeaking:
		return c.stopPlayback()
	default:
		return c.fail(fmt.Sprintf("%s (%s)", ErrBusy, state))
	}
}

func (c *Controller) stop() ipc.Response {
	switch state := c.State(); state {
	case fsm.StateRecording:
		return c.requestStop("stop")
	case fsm.StateSpeaking:
		return c.stopPlayback()
	case fsm.StateIdle:
		if c.speaker.Active() {
			c.speaker.Stop()
			return c.respond("playback stopped")
		}
		return c.fail(fmt.Sprintf("cannot stop from state %s", state))
	default:
		return c.fail(fmt.Sprintf("cannot stop from state %s", state))
	}
}

// requestStop enqueues a stop action when state permits it.
func (c *Controller) requestStop(source string) ipc.Response {
	state := c.State()
	if state != fsm.StateRecording {
		return c.fail(fmt.Sprintf("cannot %s from state %s", source, state))
	}

	select {
	case c.actions <- actionStop:
		return c.respond("stop requested")
	default:
		return c.respond("stop already requested")
	}
}

// requestCancel enqueues a cancel action when state permits it.
func (c *Controller) requestCancel() ipc.Response {
	state := c.State()
	if state != fsm.StateRecording {
		return c.fail(fmt.Sprintf("cannot cancel from state %s", state))
	}

	select {
	case c.actions <- actionCancel:
		return c.respond("cancel requested")
	default:
		return c.respond("cancel already requested")
	}
}

func (c *Controller) stopPlayback() ipc.Response {
	if !c.speaker.Stop() {
		return c.respond("nothing playing")
	}
	return c.respond("playback stopped")
}

// replay plays cached audio for a reply timestamp. It never synthesizes.
func (c *Controller) replay(ctx context.Context, args []string) ipc.Response {
	if len(args) != 1 {
		return c.fail("usage: replay <timestamp>")
	}
	ts, err := conversation.ParseTimestamp(strings.TrimSpace(args[0]))
	if err != nil {
		return c.fail(fmt.Sprintf("invalid timestamp %q", args[0]))
	}

	switch state := c.State(); state {
	case fsm.StateIdle, fsm.StateSpeaking:
	default:
		return c.fail(fmt.Sprintf("%s (%s)", ErrBusy, state))
	}

	if _, err := c.speaker.Replay(context.WithoutCancel(ctx), ts); err != nil {
		if errors.Is(err, playback.ErrAudioNotAvailable) {
			c.setStatus(playback.StatusAudioNotAvailable)
			return c.fail(playback.StatusAudioNotAvailable)
		}
		c.setStatus("Error playing audio")
		return c.fail(err.Error())
	}
	return c.respond("replaying " + conversation.FormatTimestamp(ts))
}

func (c *Controller) clear() ipc.Response {
	if state := c.State(); state != fsm.StateIdle {
		return c.fail(fmt.Sprintf("%s (%s)", ErrBusy, state))
	}
	c.speaker.Stop()
	c.log.Clear()
	c.showReady(context.Background())
	return c.respond("conversation cleared")
}

func (c *Controller) respond(message string) ipc.Response {
	return ipc.Response{OK: true, State: string(c.State()), Message: message}
}

func (c *Controller) fail(message string) ipc.Response {
	return ipc.Response{OK: false, State: string(c.State()), Error: message}
}

// FormatHistory renders messages one per line with the replay timestamp first.
func FormatHistory(messages []conversation.Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s %s: %s", conversation.FormatTimestamp(m.Timestamp), m.Role, m.Content)
	}
	return b.String()
}
