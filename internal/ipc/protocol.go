// Package ipc carries newline-delimited JSON commands between talkie
// processes over a unix socket.
package ipc

import (
	"bufio"
	"fmt"
	"io"

	"github.com/bytedance/sonic"
)

// Commands understood by the chat process.
const (
	CmdStatus  = "status"
	CmdToggle  = "toggle"
	CmdStop    = "stop"
	CmdCancel  = "cancel"
	CmdReplay  = "replay"
	CmdHistory = "history"
	CmdClear   = "clear"
)

// Request is one command addressed to the chat process.
type Request struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// Response reports the outcome and the controller state after the command.
type Response struct {
	OK      bool   `json:"ok"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeMessage(w io.Writer, v any) error {
	line, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	_, err = w.Write(append(line, '\n'))
	return err
}

// readMessage decodes the next line from r into v.
func readMessage(r *bufio.Reader, v any) error {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	if err := sonic.Unmarshal(line, v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
