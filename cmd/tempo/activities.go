package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/avickers/tempo/internal/client"
	"github.com/avickers/tempo/internal/settings"
)

var activitiesAll bool

var activitiesCmd = &cobra.Command{
	Use:     "activities",
	Aliases: []string{"activity"},
	Short:   "Manage activities",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c client.Storage, cfg settings.Store) error {
			acts, err := c.GetActivities(ctx, activitiesAll)
			if err != nil {
				return err
			}
			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"ID", "Activity", "Category"})
			for _, a := range acts {
				name := a.Name
				if a.Deleted {
					name += " (deleted)"
				}
				t.AppendRow(table.Row{a.ID, name, a.Category})
			}
			t.SetStyle(table.StyleLight)
			t.Render()
			return nil
		})
	},
}

var activityAddCmd = &cobra.Command{
	Use:   "add <activity>[@category]",
	Short: "Create an activity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := parseFactInput(args[0])
		if err != nil {
			return err
		}
		return withClient(func(ctx context.Context, c client.Storage, cfg settings.Store) error {
			categoryID, err := resolveCategoryID(ctx, c, in.Category)
			if err != nil {
				return err
			}
			act, err := c.AddActivity(ctx, in.Activity, categoryID)
			if err != nil {
				return err
			}
			fmt.Printf("Added %s (id %d)\n", act.Name, act.ID)
			return nil
		})
	},
}

var activityRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove an activity",
	Long: `Remove an activity. One that was ever tracked is only hidden, so past
facts keep their labels; an untracked one is deleted outright.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withClient(func(ctx context.Context, c client.Storage, cfg settings.Store) error {
			if err := c.RemoveActivity(ctx, id); err != nil {
				return err
			}
			fmt.Printf("Removed activity %d\n", id)
			return nil
		})
	},
}

var activityMoveCmd = &cobra.Command{
	Use:   "move <id> <category>",
	Short: "Move an activity to another category",
	Long:  `Move an activity to another category by name. An empty name ("") makes it uncategorized.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withClient(func(ctx context.Context, c client.Storage, cfg settings.Store) error {
			categoryID, err := resolveCategoryID(ctx, c, args[1])
			if err != nil {
				return err
			}
			return c.ChangeCategory(ctx, id, categoryID)
		})
	},
}

func init() {
	activitiesCmd.Flags().BoolVar(&activitiesAll, "all", false, "Include deleted activities")
	activitiesCmd.AddCommand(activityAddCmd, activityRemoveCmd, activityMoveCmd)
	rootCmd.AddCommand(activitiesCmd)
}
