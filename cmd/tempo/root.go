package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/avickers/tempo/internal/client"
	"github.com/avickers/tempo/internal/debug"
	"github.com/avickers/tempo/internal/settings"
)

var (
	dbPath      string
	socketPath  string
	forceDirect bool
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "tempo",
	Short: "Personal time tracker",
	Long: `tempo tracks what you spend your time on.

Start an activity, stop it, and report on where the hours went. A background
daemon is used automatically when one is running; otherwise tempo works on
the database directly.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verboseFlag {
			debug.SetVerbose(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (default: "+defaultDBPath()+")")
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "Daemon socket path (default: "+defaultSocketPath()+")")
	rootCmd.PersistentFlags().BoolVar(&forceDirect, "direct", false, "Bypass the daemon and use the database directly")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug output")
}

// openSettings loads the platform settings store.
func openSettings() (settings.Store, error) {
	backend := settingsBackend()
	return settings.NewStore(backend, settingsPath(backend))
}

// newFactory builds the transport factory from flags and settings.
func newFactory(cfg settings.Store) *client.Factory {
	opts := client.Options{
		DBPath:      dbPath,
		SocketPath:  socketPath,
		LockPath:    defaultLockPath(),
		ForceDirect: forceDirect,
	}
	if opts.DBPath == "" {
		opts.DBPath = defaultDBPath()
	}
	if opts.SocketPath == "" {
		opts.SocketPath = defaultSocketPath()
	}

	if cfg != nil {
		if ms, err := cfg.GetInt(settings.KeyWatchDebounceMS); err == nil {
			opts.WatchDebounce = time.Duration(ms) * time.Millisecond
		}
		if auto, err := cfg.GetBool(settings.KeyAutostartDaemon); err == nil && auto {
			exe, err := os.Executable()
			if err == nil {
				opts.AutostartCommand = []string{exe, "daemon", "run",
					"--db", opts.DBPath, "--socket", opts.SocketPath}
			}
		}
	}
	return client.NewFactory(opts, nil)
}

// withClient runs fn against the storage facade, closing it afterwards.
func withClient(fn func(ctx context.Context, c client.Storage, cfg settings.Store) error) error {
	cfg, err := openSettings()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	ctx := context.Background()
	c, err := newFactory(cfg).Get(ctx)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(ctx, c, cfg)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
