//go:build unix

package lockfile

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.lock")

	l, err := Acquire(path)
	require.NoError(t, err)
	assert.Equal(t, path, l.Path())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	require.NoError(t, l.Release())
	require.NoError(t, l.Release())
}

func TestAcquireCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "dir", "daemon.lock")
	l, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, l.Release())
}

func TestHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.lock")
	assert.False(t, Held(path))

	l, err := Acquire(path)
	require.NoError(t, err)
	// A separate open file description conflicts even within one process.
	assert.True(t, Held(path))

	require.NoError(t, l.Release())
	assert.False(t, Held(path))
}

func TestReleaseNil(t *testing.T) {
	var l *Lock
	assert.NoError(t, l.Release())
}
