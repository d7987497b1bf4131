package client

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/avickers/tempo/internal/debug"
	"github.com/avickers/tempo/internal/notify"
	"github.com/avickers/tempo/internal/rpc"
	"github.com/avickers/tempo/internal/storage/sqlite"
	"github.com/avickers/tempo/internal/watcher"
)

// Options configures transport selection.
type Options struct {
	// DBPath is the SQLite database file.
	DBPath string
	// SocketPath is the daemon's unix socket.
	SocketPath string
	// LockPath is the daemon's lock file, probed before dialing.
	LockPath string

	// ForceDirect skips the daemon probe entirely.
	ForceDirect bool
	// AutostartCommand, when non-empty, is spawned detached if no daemon
	// answers, and the probe is retried while it comes up.
	AutostartCommand []string

	// WatchDebounce overrides the file watcher's quiet window. Zero means
	// the watcher default. Watching applies to the direct transport only.
	WatchDebounce time.Duration
	// DisableWatch turns the file watcher off.
	DisableWatch bool
}

// Factory builds the storage facade lazily on first use and reuses it after
// that. Transport capability is decided once, at construction: a daemon
// appearing later is not picked up until a new factory is built.
type Factory struct {
	opts     Options
	notifier *notify.Notifier

	once   sync.Once
	client Storage
	err    error
}

// NewFactory creates a factory. The notifier is shared by whichever
// transport gets built, so callers may subscribe before Get.
func NewFactory(opts Options, notifier *notify.Notifier) *Factory {
	if notifier == nil {
		notifier = notify.New()
	}
	return &Factory{opts: opts, notifier: notifier}
}

// Notifier returns the bus the facade will publish on.
func (f *Factory) Notifier() *notify.Notifier { return f.notifier }

// Get returns the facade, building it on the first call. A failed build is
// sticky; callers wanting a retry construct a new factory.
func (f *Factory) Get(ctx context.Context) (Storage, error) {
	f.once.Do(func() {
		f.client, f.err = f.build(ctx)
	})
	return f.client, f.err
}

func (f *Factory) build(ctx context.Context) (Storage, error) {
	if !f.opts.ForceDirect && f.opts.SocketPath != "" {
		if c, err := f.connectDaemon(ctx); err == nil {
			debug.Logf("client: using daemon at %s", f.opts.SocketPath)
			return c, nil
		} else {
			debug.Logf("client: daemon probe failed, using direct storage: %v", err)
		}
	}
	return f.buildDirect(ctx)
}

func (f *Factory) connectDaemon(ctx context.Context) (Storage, error) {
	rc, err := rpc.TryConnect(f.opts.SocketPath, f.opts.LockPath)
	if err != nil && len(f.opts.AutostartCommand) > 0 {
		if spawnErr := spawnDaemon(f.opts.AutostartCommand); spawnErr != nil {
			return nil, fmt.Errorf("starting daemon: %w", spawnErr)
		}
		rc, err = f.retryConnect(ctx)
	}
	if err != nil {
		return nil, err
	}

	bus, err := NewBus(rc, f.notifier)
	if err != nil {
		_ = rc.Close()
		return nil, err
	}
	return bus, nil
}

// retryConnect polls for the daemon while it boots, backing off up to about
// three seconds total.
func (f *Factory) retryConnect(ctx context.Context) (*rpc.Client, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = 3 * time.Second

	var rc *rpc.Client
	err := backoff.Retry(func() error {
		var err error
		rc, err = rpc.TryConnect(f.opts.SocketPath, f.opts.LockPath)
		return err
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return nil, err
	}
	return rc, nil
}

func (f *Factory) buildDirect(ctx context.Context) (Storage, error) {
	store, err := sqlite.Open(ctx, f.opts.DBPath)
	if err != nil {
		return nil, err
	}
	d := NewDirect(store, f.notifier)
	if !f.opts.DisableWatch && f.opts.DBPath != ":memory:" {
		debounce := f.opts.WatchDebounce
		if debounce <= 0 {
			debounce = watcher.DefaultDebounce
		}
		d.WatchFile(f.opts.DBPath, debounce)
	}
	return d, nil
}

// spawnDaemon starts the daemon detached so it outlives this process.
func spawnDaemon(command []string) error {
	cmd := exec.Command(command[0], command[1:]...)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}
