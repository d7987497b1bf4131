package client

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avickers/tempo/internal/notify"
	"github.com/avickers/tempo/internal/rpc"
	"github.com/avickers/tempo/internal/storage/sqlite"
	"github.com/avickers/tempo/internal/types"
)

// startBus boots a daemon backed by its own direct client and returns a bus
// facade connected to it.
func startBus(t *testing.T) *Bus {
	t.Helper()
	dir := t.TempDir()

	store, err := sqlite.Open(context.Background(), filepath.Join(dir, "tempo.db"))
	require.NoError(t, err)
	direct := NewDirect(store, nil)

	srv := rpc.NewServer(direct, direct.Notifier(), store.Path())
	socketPath := filepath.Join(dir, "daemon.sock")
	require.NoError(t, srv.Listen(socketPath))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(context.Background())
	}()
	t.Cleanup(func() {
		srv.Stop()
		<-done
		_ = direct.Close()
	})

	rc, err := rpc.Dial(socketPath)
	require.NoError(t, err)

	bus, err := NewBus(rc, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

func TestBusOperationsRoundTrip(t *testing.T) {
	b := startBus(t)
	ctx := context.Background()

	fact, err := b.AddFact(ctx, types.NewFact{Activity: "reading", StartTime: start(9, 0)})
	require.NoError(t, err)
	assert.True(t, fact.Open())

	open, err := b.GetOpenFact(ctx)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, fact.ID, open.ID)

	stopped, err := b.StopTracking(ctx, start(10, 0))
	require.NoError(t, err)
	require.NotNil(t, stopped)
	assert.False(t, stopped.Open())
}

func TestBusRelaysEventsToLocalSubscribers(t *testing.T) {
	b := startBus(t)

	got := make(chan notify.Event, 4)
	b.Subscribe(notify.FactsChanged, func(ev notify.Event) error {
		got <- ev
		return nil
	})

	_, err := b.AddFact(context.Background(), types.NewFact{
		Activity: "reading", StartTime: start(9, 0),
	})
	require.NoError(t, err)

	select {
	case ev := <-got:
		assert.Equal(t, notify.FactsChanged, ev.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("relayed event not delivered")
	}
}

func TestBusToggleRelaysToggleCalled(t *testing.T) {
	b := startBus(t)

	got := make(chan notify.Event, 4)
	b.Subscribe(notify.ToggleCalled, func(ev notify.Event) error {
		got <- ev
		return nil
	})

	fact, err := b.Toggle(context.Background(), start(9, 0))
	require.NoError(t, err)
	assert.Nil(t, fact)

	select {
	case ev := <-got:
		assert.Equal(t, notify.ToggleCalled, ev.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("toggle-called not relayed")
	}
}
