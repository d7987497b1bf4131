package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/avickers/tempo/internal/client"
	"github.com/avickers/tempo/internal/debug"
	"github.com/avickers/tempo/internal/lockfile"
	"github.com/avickers/tempo/internal/notify"
	"github.com/avickers/tempo/internal/rpc"
	"github.com/avickers/tempo/internal/settings"
	"github.com/avickers/tempo/internal/storage/sqlite"
	"github.com/avickers/tempo/internal/watcher"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the tracking daemon",
}

var daemonRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daemon in the foreground",
	Long: `Run the daemon. It owns the database, serves clients over a unix socket,
and broadcasts change events to them. Only one daemon runs per database;
a second invocation exits immediately.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon()
	},
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Ask a running daemon to shut down",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := rpc.TryConnect(socketOrDefault(), defaultLockPath())
		if err != nil {
			return err
		}
		defer c.Close()
		if err := c.Shutdown(); err != nil {
			return err
		}
		fmt.Println("Daemon stopping.")
		return nil
	},
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a daemon is running",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := rpc.TryConnect(socketOrDefault(), defaultLockPath())
		if err != nil {
			fmt.Println("Daemon is not running.")
			return nil
		}
		defer c.Close()
		h, err := c.Health()
		if err != nil {
			return err
		}
		fmt.Printf("Daemon pid %d, up %s, database %s\n",
			h.PID, (time.Duration(h.UptimeSeconds) * time.Second).String(), h.DBPath)
		return nil
	},
}

func init() {
	daemonCmd.AddCommand(daemonRunCmd, daemonStopCmd, daemonStatusCmd)
	rootCmd.AddCommand(daemonCmd)
}

func socketOrDefault() string {
	if socketPath != "" {
		return socketPath
	}
	return defaultSocketPath()
}

func dbOrDefault() string {
	if dbPath != "" {
		return dbPath
	}
	return defaultDBPath()
}

func runDaemon() error {
	lock, err := lockfile.Acquire(defaultLockPath())
	if err != nil {
		return fmt.Errorf("daemon already running: %w", err)
	}
	defer lock.Release()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.Open(ctx, dbOrDefault())
	if err != nil {
		return err
	}
	direct := client.NewDirect(store, notify.New())
	defer direct.Close()

	cfg, err := openSettings()
	if err != nil {
		return err
	}
	debounce := watcher.DefaultDebounce
	if ms, err := cfg.GetInt(settings.KeyWatchDebounceMS); err == nil && ms > 0 {
		debounce = time.Duration(ms) * time.Millisecond
	}
	direct.WatchFile(store.Path(), debounce)

	srv := rpc.NewServer(direct, direct.Notifier(), store.Path())
	if err := srv.Listen(socketOrDefault()); err != nil {
		return err
	}
	debug.Logf("daemon: serving %s on %s", store.Path(), socketOrDefault())
	fmt.Printf("tempo daemon serving %s\n", store.Path())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := srv.Serve(ctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		srv.Stop()
		return nil
	})
	return g.Wait()
}
