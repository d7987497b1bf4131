package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/avickers/tempo/internal/client"
	"github.com/avickers/tempo/internal/settings"
	"github.com/avickers/tempo/internal/timeparsing"
)

var stopAt string

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop tracking the current activity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		end, err := timeparsing.Parse(stopAt, time.Now())
		if err != nil {
			return err
		}

		return withClient(func(ctx context.Context, c client.Storage, cfg settings.Store) error {
			fact, err := c.StopTracking(ctx, end)
			if err != nil {
				return err
			}
			if fact == nil {
				fmt.Println("Nothing is being tracked.")
				return nil
			}
			fmt.Printf("Stopped %s after %s\n", factLabel(fact), formatDuration(fact.Duration(end)))
			return nil
		})
	},
}

func init() {
	stopCmd.Flags().StringVar(&stopAt, "at", "", "End time (default now)")
	rootCmd.AddCommand(stopCmd)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h == 0 {
		return fmt.Sprintf("%dmin", m)
	}
	return fmt.Sprintf("%dh %02dmin", h, m)
}
