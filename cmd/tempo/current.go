package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/avickers/tempo/internal/client"
	"github.com/avickers/tempo/internal/settings"
)

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show what is being tracked right now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c client.Storage, cfg settings.Store) error {
			fact, err := c.GetOpenFact(ctx)
			if err != nil {
				return err
			}
			if fact == nil {
				fmt.Println("No activity")
				return nil
			}
			line := fmt.Sprintf("%s %s", factLabel(fact), formatDuration(fact.Duration(time.Now())))
			if len(fact.Tags) > 0 {
				line += " #" + strings.Join(fact.TagNames(), " #")
			}
			fmt.Println(line)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(currentCmd)
}
