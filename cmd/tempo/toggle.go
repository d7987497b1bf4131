package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/avickers/tempo/internal/client"
	"github.com/avickers/tempo/internal/settings"
)

var toggleResume bool

var toggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Stop tracking if an activity is running",
	Long: `Stop the current activity if one is running; with nothing running the
command does nothing. Pass --resume to restart the most recently tracked
activity instead. Bound to a hotkey this gives one-key punch in/out.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		now := time.Now()
		return withClient(func(ctx context.Context, c client.Storage, cfg settings.Store) error {
			if toggleResume {
				fact, stopped, err := c.StopOrRestartTracking(ctx, now)
				if err != nil {
					return err
				}
				switch {
				case fact == nil:
					fmt.Println("Nothing tracked yet; start an activity first.")
				case stopped:
					fmt.Printf("Stopped %s after %s\n", factLabel(fact), formatDuration(fact.Duration(now)))
				default:
					fmt.Printf("Resumed %s\n", factLabel(fact))
				}
				return nil
			}

			fact, err := c.Toggle(ctx, now)
			if err != nil {
				return err
			}
			if fact == nil {
				fmt.Println("Nothing is being tracked.")
				return nil
			}
			fmt.Printf("Stopped %s after %s\n", factLabel(fact), formatDuration(fact.Duration(now)))
			return nil
		})
	},
}

func init() {
	toggleCmd.Flags().BoolVar(&toggleResume, "resume", false, "restart the last activity when nothing is running")
	rootCmd.AddCommand(toggleCmd)
}
