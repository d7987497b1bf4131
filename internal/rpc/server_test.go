package rpc_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avickers/tempo/internal/client"
	"github.com/avickers/tempo/internal/notify"
	"github.com/avickers/tempo/internal/rpc"
	"github.com/avickers/tempo/internal/storage"
	"github.com/avickers/tempo/internal/storage/sqlite"
	"github.com/avickers/tempo/internal/types"
)

// startServer boots a daemon over a temp-dir socket and returns a connected
// client. Everything shuts down via t.Cleanup.
func startServer(t *testing.T) *rpc.Client {
	t.Helper()
	dir := t.TempDir()

	store, err := sqlite.Open(context.Background(), filepath.Join(dir, "tempo.db"))
	require.NoError(t, err)
	direct := client.NewDirect(store, notify.New())

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

	c, err := rpc.Dial(socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func at(hour, min int) time.Time {
	return time.Date(2026, 3, 10, hour, min, 0, 0, time.Local)
}

func TestPingAndHealth(t *testing.T) {
	c := startServer(t)

	require.NoError(t, c.Ping())

	h, err := c.Health()
	require.NoError(t, err)
	assert.Equal(t, rpc.ProtocolVersion, h.Version)
	assert.NotZero(t, h.PID)
	assert.Contains(t, h.DBPath, "tempo.db")
}

func TestFactRoundTrip(t *testing.T) {
	c := startServer(t)

	fact, err := c.AddFact(types.NewFact{
		Activity: "reading", Category: "leisure",
		StartTime: at(9, 0), Description: "novel",
		Tags: []string{"books"},
	})
	require.NoError(t, err)
	assert.Equal(t, "reading", fact.Activity)
	assert.Equal(t, "leisure", fact.Category)
	assert.True(t, fact.Open())
	// Unix-second storage keeps the wall-clock instant.
	assert.Equal(t, at(9, 0).Unix(), fact.StartTime.Unix())

	open, err := c.GetOpenFact()
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, fact.ID, open.ID)
	assert.Equal(t, []string{"books"}, open.TagNames())

	stopped, err := c.StopTracking(at(10, 0))
	require.NoError(t, err)
	require.NotNil(t, stopped)
	assert.False(t, stopped.Open())

	open, err = c.GetOpenFact()
	require.NoError(t, err)
	assert.Nil(t, open)

	facts, err := c.GetFacts(types.Range{Start: at(8, 0), End: at(17, 0)})
	require.NoError(t, err)
	require.Len(t, facts, 1)
}

func TestToggleOverDaemon(t *testing.T) {
	c := startServer(t)

	// Nothing open, nothing written.
	fact, err := c.Toggle(at(9, 0))
	require.NoError(t, err)
	assert.Nil(t, fact)

	_, err = c.AddFact(types.NewFact{Activity: "reading", StartTime: at(9, 0)})
	require.NoError(t, err)

	fact, err = c.Toggle(at(10, 0))
	require.NoError(t, err)
	require.NotNil(t, fact)
	assert.False(t, fact.Open())
}

func TestStopOrRestartOverDaemon(t *testing.T) {
	c := startServer(t)

	_, err := c.AddFact(types.NewFact{
		Activity: "reading", StartTime: at(9, 0), EndTime: timePtr(at(10, 0)),
	})
	require.NoError(t, err)

	fact, stoppedNow, err := c.StopOrRestartTracking(at(11, 0))
	require.NoError(t, err)
	require.NotNil(t, fact)
	assert.False(t, stoppedNow)
	assert.True(t, fact.Open())
	assert.Equal(t, "reading", fact.Activity)

	fact, stoppedNow, err = c.StopOrRestartTracking(at(12, 0))
	require.NoError(t, err)
	require.NotNil(t, fact)
	assert.True(t, stoppedNow)
	assert.False(t, fact.Open())
}

func TestErrorCodeMapping(t *testing.T) {
	c := startServer(t)

	_, err := c.GetFact(999)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = c.AddFact(types.NewFact{StartTime: at(9, 0)})
	assert.ErrorIs(t, err, storage.ErrIntegrity)

	// Transport errors are distinguishable from daemon-reported ones.
	var terr *rpc.TransportError
	assert.NotErrorAs(t, err, &terr)
}

func TestRemoveFactResult(t *testing.T) {
	c := startServer(t)

	fact, err := c.AddFact(types.NewFact{
		Activity: "reading", StartTime: at(9, 0), EndTime: timePtr(at(10, 0)),
	})
	require.NoError(t, err)

	removed, err := c.RemoveFact(fact.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = c.RemoveFact(fact.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestActivityAndTagOps(t *testing.T) {
	c := startServer(t)

	cat, err := c.AddCategory("work")
	require.NoError(t, err)

	act, err := c.AddActivity("coding", cat.ID)
	require.NoError(t, err)
	assert.Equal(t, "work", act.Category)

	acts, err := c.GetActivities(false)
	require.NoError(t, err)
	require.Len(t, acts, 1)

	id, err := c.GetCategoryID("work")
	require.NoError(t, err)
	assert.Equal(t, cat.ID, id)

	tags, mutated, err := c.GetTagIDs([]string{"alpha", "beta"})
	require.NoError(t, err)
	assert.True(t, mutated)
	assert.Len(t, tags, 2)

	require.NoError(t, c.UpdateAutocompleteTags([]string{"beta"}))
	auto, err := c.GetTags(true)
	require.NoError(t, err)
	require.Len(t, auto, 1)
	assert.Equal(t, "beta", auto[0].Name)
}

func TestWatchEventsStreamsChanges(t *testing.T) {
	c := startServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := c.WatchEvents(ctx)
	require.NoError(t, err)

	_, err = c.AddFact(types.NewFact{Activity: "reading", StartTime: at(9, 0)})
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, notify.FactsChanged, ev.Kind)
		assert.Equal(t, notify.OriginLocal, ev.Origin)
	case <-time.After(2 * time.Second):
		t.Fatal("no event within deadline")
	}

	// Cancellation ends the stream.
	cancel()
	select {
	case _, ok := <-events:
		if ok {
			// Drain any event raced in before the close.
			for range events {
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close after cancel")
	}
}

func TestShutdownStopsServer(t *testing.T) {
	c := startServer(t)
	require.NoError(t, c.Shutdown())

	// The server is gone; subsequent calls fail at the transport.
	assert.Eventually(t, func() bool {
		err := c.Ping()
		var terr *rpc.TransportError
		return errors.As(err, &terr)
	}, 2*time.Second, 20*time.Millisecond)
}

func timePtr(t time.Time) *time.Time { return &t }
