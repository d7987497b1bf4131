package rpc_test

import (
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avickers/tempo/internal/rpc"
)

// A daemon that swallows requests without answering forces the per-call
// deadline to fire. The timed-out connection must not be reused: its late
// response would be paired with the next request.
func TestTimeoutDropsConnection(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "daemon.sock")
	ln, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = io.Copy(io.Discard, conn)
	}()

	c, err := rpc.Dial(socketPath)
	require.NoError(t, err)
	defer c.Close()
	c.SetTimeout(100 * time.Millisecond)

	var terr *rpc.TransportError
	err = c.Ping()
	require.ErrorAs(t, err, &terr)

	// Fails fast now; no read against the stale stream.
	start := time.Now()
	err = c.Ping()
	require.ErrorAs(t, err, &terr)
	require.Less(t, time.Since(start), 100*time.Millisecond)
}
