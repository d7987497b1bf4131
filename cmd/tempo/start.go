package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/avickers/tempo/internal/client"
	"github.com/avickers/tempo/internal/settings"
	"github.com/avickers/tempo/internal/timeparsing"
	"github.com/avickers/tempo/internal/types"
)

var (
	startAt   string
	startTags []string
	startDesc string
)

var startCmd = &cobra.Command{
	Use:   "start <activity>[@category][, description #tag ...]",
	Short: "Start tracking an activity",
	Long: `Start tracking an activity. Any currently tracked activity is stopped at
the new start time.

Examples:
  tempo start coding@work
  tempo start "reading, war and peace #books"
  tempo start standup@work --at -10m`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := parseFactInput(strings.Join(args, " "))
		if err != nil {
			return err
		}

		at, err := timeparsing.Parse(startAt, time.Now())
		if err != nil {
			return err
		}

		desc := in.Description
		if startDesc != "" {
			desc = startDesc
		}

		return withClient(func(ctx context.Context, c client.Storage, cfg settings.Store) error {
			fact, err := c.AddFact(ctx, types.NewFact{
				Activity:    in.Activity,
				Category:    in.Category,
				StartTime:   at,
				Description: desc,
				Tags:        append(in.Tags, startTags...),
			})
			if err != nil {
				return err
			}
			fmt.Printf("Tracking %s since %s\n", factLabel(fact), fact.StartTime.Format("15:04"))
			return nil
		})
	},
}

func init() {
	startCmd.Flags().StringVar(&startAt, "at", "", "Start time (15:04, -25m, 'yesterday 9am'; default now)")
	startCmd.Flags().StringSliceVarP(&startTags, "tag", "t", nil, "Tags to attach (repeatable)")
	startCmd.Flags().StringVarP(&startDesc, "description", "d", "", "Description (overrides the inline one)")
	rootCmd.AddCommand(startCmd)
}

func factLabel(f *types.Fact) string {
	if f.Category != "" {
		return f.Activity + "@" + f.Category
	}
	return f.Activity
}
