package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/avickers/tempo/internal/client"
	"github.com/avickers/tempo/internal/settings"
	"github.com/avickers/tempo/internal/timeparsing"
	"github.com/avickers/tempo/internal/types"
)

var (
	logFrom string
	logTo   string
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "List tracked facts",
	Long: `List facts for today's tracking day, or for an explicit range. The day
rolls over at the configured day start, so late-night entries land on the
day they belong to.

Examples:
  tempo log
  tempo log --from yesterday
  tempo log --from 2026-03-01 --to 2026-03-07`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c client.Storage, cfg settings.Store) error {
			now := time.Now()
			rng, err := resolveRange(cfg, now)
			if err != nil {
				return err
			}

			facts, err := c.GetFacts(ctx, rng)
			if err != nil {
				return err
			}
			if len(facts) == 0 {
				fmt.Println("No facts in range.")
				return nil
			}
			renderFacts(facts, now)
			return nil
		})
	},
}

func init() {
	logCmd.Flags().StringVar(&logFrom, "from", "", "Range start (default: start of tracking day)")
	logCmd.Flags().StringVar(&logTo, "to", "", "Range end (default: one day after start)")
	rootCmd.AddCommand(logCmd)
}

func resolveRange(cfg settings.Store, now time.Time) (types.Range, error) {
	if logFrom == "" && logTo == "" {
		dayStart, err := cfg.GetInt(settings.KeyDayStartMinutes)
		if err != nil {
			return types.Range{}, err
		}
		return types.DayRange(now, dayStart), nil
	}

	start := now
	if logFrom != "" {
		var err error
		start, err = timeparsing.Parse(logFrom, now)
		if err != nil {
			return types.Range{}, err
		}
	}
	end := start.AddDate(0, 0, 1)
	if logTo != "" {
		var err error
		end, err = timeparsing.Parse(logTo, now)
		if err != nil {
			return types.Range{}, err
		}
	}
	return types.Range{Start: start, End: end}, nil
}

func renderFacts(facts []*types.Fact, now time.Time) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Start", "End", "Duration", "Activity", "Category", "Description", "Tags"})

	var total time.Duration
	for _, f := range facts {
		end := "..."
		if f.EndTime != nil {
			end = f.EndTime.Format("15:04")
		}
		dur := f.Duration(now)
		total += dur
		t.AppendRow(table.Row{
			f.StartTime.Format("Mon 15:04"),
			end,
			formatDuration(dur),
			f.Activity,
			f.Category,
			f.Description,
			strings.Join(f.TagNames(), ", "),
		})
	}
	t.AppendFooter(table.Row{"", "", formatDuration(total), "", "", "", ""})
	t.SetStyle(table.StyleLight)
	t.Render()
}
