package ipc

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAcquireReplacesStaleSocketFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", socketName)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o600))

	listener, err := Acquire(context.Background(), path, 50*time.Millisecond, 2)
	require.NoError(t, err)
	defer listener.Close()

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.ModeSocket, info.Mode().Type())
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestAcquireCreatesSocketDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", socketName)

	listener, err := Acquire(context.Background(), path, 50*time.Millisecond, 0)
	require.NoError(t, err)
	require.NoError(t, listener.Close())
}

func TestAcquireRefusesLiveOwner(t *testing.T) {
	path := serve(t, func(context.Context, Request) Response {
		return Response{OK: true, State: "recording"}
	})

	_, err := Acquire(context.Background(), path, 200*time.Millisecond, 1)
	require.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestAcquireKeepsSocketWhenOwnerIsSilent(t *testing.T) {
	path := filepath.Join(t.TempDir(), socketName)
	listener, err := net.Listen("unix", path)
	require.NoError(t, err)

	accepted := make(chan struct{})
	go func() {
		defer close(accepted)
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				time.Sleep(250 * time.Millisecond)
			}()
		}
	}()

	_, err = Acquire(context.Background(), path, 30*time.Millisecond, 0)
	require.ErrorContains(t, err, "probe existing socket")
	require.NotErrorIs(t, err, ErrAlreadyRunning)

	_, err = os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, listener.Close())
	<-accepted
}

func TestRuntimeSocketPath(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")
	_, err := RuntimeSocketPath()
	require.Error(t, err)

	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)
	path, err := RuntimeSocketPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "talkie.sock"), path)
}
