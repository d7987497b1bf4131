package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDebounce = 80 * time.Millisecond

func newTestWatcher(t *testing.T) (*Watcher, string, chan struct{}) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "tempo.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("initial"), 0o644))

	changes := make(chan struct{}, 16)
	w := New(dbPath, testDebounce, func() { changes <- struct{}{} })
	t.Cleanup(w.Stop)
	return w, dbPath, changes
}

func waitChange(t *testing.T, ch chan struct{}, timeout time.Duration) bool {
	t.Helper()
	select {
	case <-ch:
		return true
	case <-time.After(timeout):
		return false
	}
}

func TestExternalWriteRaisesOneNotification(t *testing.T) {
	w, dbPath, changes := newTestWatcher(t)
	require.NoError(t, w.Start())
	assert.Equal(t, StateWatching, w.State())

	require.NoError(t, os.WriteFile(dbPath, []byte("changed"), 0o644))

	assert.True(t, waitChange(t, changes, 2*time.Second), "expected an external-change notification")
	assert.False(t, waitChange(t, changes, 3*testDebounce), "expected no duplicate notification")
}

func TestRapidWritesCollapseIntoOne(t *testing.T) {
	w, dbPath, changes := newTestWatcher(t)
	require.NoError(t, w.Start())

	// Three rapid successive writes within the debounce window.
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(dbPath, []byte{byte(i)}, 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	assert.True(t, waitChange(t, changes, 2*time.Second))
	assert.False(t, waitChange(t, changes, 4*testDebounce),
		"three rapid writes must collapse into a single notification")
}

func TestSelfWriteSuppressed(t *testing.T) {
	w, dbPath, changes := newTestWatcher(t)
	require.NoError(t, w.Start())

	w.MarkSelfWrite()
	assert.Equal(t, StateSuppressing, w.State())
	require.NoError(t, os.WriteFile(dbPath, []byte("own commit"), 0o644))

	assert.False(t, waitChange(t, changes, 3*testDebounce),
		"self-originated write must not raise a notification")
}

func TestSuppressionWindowCloses(t *testing.T) {
	w, dbPath, changes := newTestWatcher(t)
	require.NoError(t, w.Start())

	w.MarkSelfWrite()
	time.Sleep(w.suppressWindow() + 20*time.Millisecond)
	assert.Equal(t, StateWatching, w.State())

	require.NoError(t, os.WriteFile(dbPath, []byte("external again"), 0o644))
	assert.True(t, waitChange(t, changes, 2*time.Second),
		"writes after the suppression window must be reported again")
}

func TestUnrelatedFilesIgnored(t *testing.T) {
	w, dbPath, changes := newTestWatcher(t)
	require.NoError(t, w.Start())

	other := filepath.Join(filepath.Dir(dbPath), "unrelated.txt")
	require.NoError(t, os.WriteFile(other, []byte("noise"), 0o644))

	assert.False(t, waitChange(t, changes, 3*testDebounce))
}

func TestSidecarFilesMatch(t *testing.T) {
	w, dbPath, _ := newTestWatcher(t)
	assert.True(t, w.matches(dbPath))
	assert.True(t, w.matches(dbPath+"-wal"))
	assert.True(t, w.matches(dbPath+"-shm"))
	assert.True(t, w.matches(dbPath+"-journal"))
	assert.False(t, w.matches(filepath.Join(filepath.Dir(dbPath), "other.db")))
}

func TestStopIsTerminal(t *testing.T) {
	w, _, _ := newTestWatcher(t)
	require.NoError(t, w.Start())

	w.Stop()
	assert.Equal(t, StateStopped, w.State())

	// No transition out of Stopped.
	err := w.Start()
	assert.ErrorIs(t, err, ErrStopped)
	assert.Equal(t, StateStopped, w.State())

	// Stop is idempotent.
	w.Stop()
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "watching", StateWatching.String())
	assert.Equal(t, "suppressing", StateSuppressing.String())
	assert.Equal(t, "stopped", StateStopped.String())
}
