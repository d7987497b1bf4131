package client

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avickers/tempo/internal/notify"
	"github.com/avickers/tempo/internal/types"
)

func TestFactoryFallsBackToDirect(t *testing.T) {
	dir := t.TempDir()
	f := NewFactory(Options{
		DBPath:       filepath.Join(dir, "tempo.db"),
		SocketPath:   filepath.Join(dir, "no-daemon.sock"),
		LockPath:     filepath.Join(dir, "daemon.lock"),
		DisableWatch: true,
	}, nil)

	c, err := f.Get(context.Background())
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.(*Direct)
	assert.True(t, ok, "expected direct transport without a daemon")
}

func TestFactoryReturnsSameClient(t *testing.T) {
	f := NewFactory(Options{
		DBPath:      filepath.Join(t.TempDir(), "tempo.db"),
		ForceDirect: true,
	}, nil)

	ctx := context.Background()
	a, err := f.Get(ctx)
	require.NoError(t, err)
	defer a.Close()
	b, err := f.Get(ctx)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestFactorySharedNotifierSeesEvents(t *testing.T) {
	f := NewFactory(Options{
		DBPath:      filepath.Join(t.TempDir(), "tempo.db"),
		ForceDirect: true,
	}, nil)

	// Subscribing before Get must still observe changes.
	var got int
	f.Notifier().Subscribe(notify.FactsChanged, func(notify.Event) error {
		got++
		return nil
	})

	c, err := f.Get(context.Background())
	require.NoError(t, err)
	defer c.Close()

	_, err = c.AddFact(context.Background(), types.NewFact{
		Activity: "reading", StartTime: start(9, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}
