package settings

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backendCase lets every contract test run against both backends.
type backendCase struct {
	name string
	open func(t *testing.T, path string) Store
	file string
}

func backends() []backendCase {
	return []backendCase{
		{
			name: "registry",
			file: "settings.yaml",
			open: func(t *testing.T, path string) Store {
				s, err := NewRegistryStore(path)
				require.NoError(t, err)
				return s
			},
		},
		{
			name: "flatfile",
			file: "settings.toml",
			open: func(t *testing.T, path string) Store {
				s, err := NewFlatFileStore(path)
				require.NoError(t, err)
				return s
			},
		},
	}
}

func TestDefaultsBeforeAnySet(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			s := bc.open(t, filepath.Join(t.TempDir(), bc.file))

			dayStart, err := s.GetInt(KeyDayStartMinutes)
			require.NoError(t, err)
			assert.Equal(t, 330, dayStart)

			folder, err := s.GetString(KeyLastReportFolder)
			require.NoError(t, err)
			assert.Equal(t, "", folder)

			debounce, err := s.GetInt(KeyWatchDebounceMS)
			require.NoError(t, err)
			assert.Equal(t, 500, debounce)

			autostart, err := s.GetBool(KeyAutostartDaemon)
			require.NoError(t, err)
			assert.False(t, autostart)
		})
	}
}

func TestBackendsProduceIdenticalDefaults(t *testing.T) {
	dir := t.TempDir()
	reg, err := NewRegistryStore(filepath.Join(dir, "settings.yaml"))
	require.NoError(t, err)
	flat, err := NewFlatFileStore(filepath.Join(dir, "settings.toml"))
	require.NoError(t, err)

	for _, k := range Schema() {
		rv, err := reg.Get(k.Name)
		require.NoError(t, err)
		fv, err := flat.Get(k.Name)
		require.NoError(t, err)
		assert.Equal(t, rv, fv, "default for %q differs between backends", k.Name)
		assert.Equal(t, k.Default, rv)
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			s := bc.open(t, filepath.Join(t.TempDir(), bc.file))

			require.NoError(t, s.Set(KeyDayStartMinutes, 400))
			got, err := s.GetInt(KeyDayStartMinutes)
			require.NoError(t, err)
			assert.Equal(t, 400, got)

			require.NoError(t, s.Set(KeyLastReportFolder, "/tmp/reports"))
			folder, err := s.GetString(KeyLastReportFolder)
			require.NoError(t, err)
			assert.Equal(t, "/tmp/reports", folder)
		})
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), bc.file)

			s := bc.open(t, path)
			require.NoError(t, s.Set(KeyDayStartMinutes, 400))
			require.NoError(t, s.Set(KeyAutostartDaemon, true))

			// Simulated process restart.
			reopened := bc.open(t, path)
			got, err := reopened.GetInt(KeyDayStartMinutes)
			require.NoError(t, err)
			assert.Equal(t, 400, got)

			autostart, err := reopened.GetBool(KeyAutostartDaemon)
			require.NoError(t, err)
			assert.True(t, autostart)

			// Untouched keys still read their defaults.
			folder, err := reopened.GetString(KeyLastReportFolder)
			require.NoError(t, err)
			assert.Equal(t, "", folder)
		})
	}
}

func TestTypeMismatch(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			s := bc.open(t, filepath.Join(t.TempDir(), bc.file))

			err := s.Set(KeyDayStartMinutes, "not a number")
			assert.ErrorIs(t, err, ErrTypeMismatch)

			err = s.Set(KeyLastReportFolder, 42)
			assert.ErrorIs(t, err, ErrTypeMismatch)

			err = s.Set(KeyAutostartDaemon, "yes")
			assert.ErrorIs(t, err, ErrTypeMismatch)

			// A failed set must not shadow the default.
			got, err := s.GetInt(KeyDayStartMinutes)
			require.NoError(t, err)
			assert.Equal(t, 330, got)
		})
	}
}

func TestUnknownKey(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			s := bc.open(t, filepath.Join(t.TempDir(), bc.file))

			_, err := s.Get("no-such-key")
			assert.ErrorIs(t, err, ErrUnknownKey)

			err = s.Set("no-such-key", 1)
			assert.ErrorIs(t, err, ErrUnknownKey)
		})
	}
}

func TestOnChangeDispatch(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			s := bc.open(t, filepath.Join(t.TempDir(), bc.file))

			var seenKey string
			var seenValue interface{}
			s.OnChange(KeyDayStartMinutes, func(key string, value interface{}) error {
				seenKey = key
				seenValue = value
				return nil
			})

			var otherFired bool
			s.OnChange(KeyLastReportFolder, func(string, interface{}) error {
				otherFired = true
				return nil
			})

			require.NoError(t, s.Set(KeyDayStartMinutes, 360))
			assert.Equal(t, KeyDayStartMinutes, seenKey)
			assert.Equal(t, 360, seenValue)
			assert.False(t, otherFired, "handler for a different key must not fire")
		})
	}
}

func TestOnChangeHandlerErrorsSurfaceAfterPersist(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), bc.file)
			s := bc.open(t, path)

			errBroken := errors.New("broken observer")
			var secondRan bool
			s.OnChange(KeyDayStartMinutes, func(string, interface{}) error { return errBroken })
			s.OnChange(KeyDayStartMinutes, func(string, interface{}) error { secondRan = true; return nil })

			err := s.Set(KeyDayStartMinutes, 420)
			assert.ErrorIs(t, err, errBroken)
			assert.True(t, secondRan)

			// The write happened despite the observer error.
			reopened := bc.open(t, path)
			got, gerr := reopened.GetInt(KeyDayStartMinutes)
			require.NoError(t, gerr)
			assert.Equal(t, 420, got)
		})
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			s := bc.open(t, filepath.Join(t.TempDir(), bc.file))

			var calls int
			sub := s.OnChange(KeyDayStartMinutes, func(string, interface{}) error {
				calls++
				return nil
			})

			require.NoError(t, s.Set(KeyDayStartMinutes, 340))
			s.Unsubscribe(sub)
			require.NoError(t, s.Set(KeyDayStartMinutes, 350))
			assert.Equal(t, 1, calls)
		})
	}
}

func TestFailedPersistRestoresPreviousValue(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			parent := filepath.Join(t.TempDir(), "sub")
			path := filepath.Join(parent, bc.file)

			s := bc.open(t, path)
			require.NoError(t, s.Set(KeyDayStartMinutes, 400))

			// Replace the settings directory with a plain file so the
			// next persist cannot succeed.
			require.NoError(t, os.RemoveAll(parent))
			require.NoError(t, os.WriteFile(parent, []byte("x"), 0o644))

			require.Error(t, s.Set(KeyDayStartMinutes, 500))

			// The unpersisted value must not linger in memory.
			got, err := s.GetInt(KeyDayStartMinutes)
			require.NoError(t, err)
			assert.Equal(t, 400, got)
		})
	}
}

func TestFlatFileAtomicWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")
	s, err := NewFlatFileStore(path)
	require.NoError(t, err)

	require.NoError(t, s.Set(KeyDayStartMinutes, 400))
	require.NoError(t, s.Set(KeyLastReportFolder, "/x"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".settings-"),
			"temp file %s left behind", e.Name())
	}
	assert.FileExists(t, path)
}

func TestFlatFileCreatesParentDirectories(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deeper", "settings.toml")
	s, err := NewFlatFileStore(path)
	require.NoError(t, err)

	require.NoError(t, s.Set(KeyDayStartMinutes, 360))
	assert.FileExists(t, path)
}

func TestDetectBackend(t *testing.T) {
	assert.Equal(t, BackendFlatFile, DetectBackend("darwin"))
	assert.Equal(t, BackendRegistry, DetectBackend("linux"))
	assert.Equal(t, BackendRegistry, DetectBackend("windows"))
}

func TestDayStart(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			s := bc.open(t, filepath.Join(t.TempDir(), bc.file))

			// Default 330 minutes is 05:30.
			h, m, err := DayStart(s)
			require.NoError(t, err)
			assert.Equal(t, 5, h)
			assert.Equal(t, 30, m)

			require.NoError(t, s.Set(KeyDayStartMinutes, 0))
			h, m, err = DayStart(s)
			require.NoError(t, err)
			assert.Zero(t, h)
			assert.Zero(t, m)
		})
	}
}
