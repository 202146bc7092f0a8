package ipc

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func socketPath(t *testing.T) string {
	// unix socket paths are length limited, keep it short
	dir, err := os.MkdirTemp("", "vx")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "ctl.sock")
}

func TestSendCommand(t *testing.T) {
	path := socketPath(t)
	got := make(chan ControlMessage, 1)

	srv, err := StartServer(path, func(m ControlMessage) { got <- m })
	require.NoError(t, err)

	require.NoError(t, SendCommand(path, CmdStop))

	select {
	case m := <-got:
		assert.Equal(t, CmdStop, m.Cmd)
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called")
	}

	require.NoError(t, srv.Close())
	assert.NoFileExists(t, path)
}

func TestStartServerReplacesStaleSocket(t *testing.T) {
	path := socketPath(t)
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	srv, err := StartServer(path, func(ControlMessage) {})
	require.NoError(t, err)
	defer srv.Close()

	assert.NoError(t, SendCommand(path, "noop"))
}

func TestSendCommandWithoutServer(t *testing.T) {
	assert.Error(t, SendCommand(socketPath(t), CmdStop))
}
