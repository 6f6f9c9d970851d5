package ipc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
)

// Client sends single commands to the chat process listening on Path.
type Client struct {
	Path    string
	Timeout time.Duration
}

// Do dials, writes req and waits for the one-line reply. The whole exchange
// shares one deadline.
func (c Client) Do(ctx context.Context, req Request) (Response, error) {
	dialer := net.Dialer{Timeout: c.Timeout}
	conn, err := dialer.DialContext(ctx, "unix", c.Path)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.Timeout)); err != nil {
		return Response{}, fmt.Errorf("set deadline: %w", err)
	}
	if err := writeMessage(conn, req); err != nil {
		return Response{}, fmt.Errorf("send %s: %w", req.Command, err)
	}

	var resp Response
	if err := readMessage(bufio.NewReader(conn), &resp); err != nil {
		return Response{}, fmt.Errorf("%s response: %w", req.Command, err)
	}
	return resp, nil
}

// Send is a one-shot Client.Do.
func Send(ctx context.Context, path string, req Request, timeout time.Duration) (Response, error) {
	return Client{Path: path, Timeout: timeout}.Do(ctx, req)
}

// Probe reports whether a process answers status on path. A missing socket
// or refused connection is a clean false; anything else is an error.
func Probe(ctx context.Context, path string, timeout time.Duration) (bool, error) {
	_, err := Send(ctx, path, Request{Command: CmdStatus}, timeout)
	switch {
	case err == nil:
		return true, nil
	case NoListener(err):
		return false, nil
	default:
		return false, fmt.Errorf("probe socket: %w", err)
	}
}

// NoListener reports dial failures meaning nothing serves the socket.
func NoListener(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED)
}
