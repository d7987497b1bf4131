package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avickers/tempo/internal/client"
	"github.com/avickers/tempo/internal/settings"
)

var tagsAll bool

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Manage tags",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c client.Storage, cfg settings.Store) error {
			tags, err := c.GetTags(ctx, !tagsAll)
			if err != nil {
				return err
			}
			for _, t := range tags {
				marker := ""
				if !t.Autocomplete {
					marker = " (hidden)"
				}
				fmt.Printf("%s%s\n", t.Name, marker)
			}
			return nil
		})
	},
}

var tagsSetCmd = &cobra.Command{
	Use:   "set <name>...",
	Short: "Replace the autocomplete tag set",
	Long: `Replace the set of tags offered for completion with exactly the named
ones. Tags dropped from the set are kept on existing facts and reappear
when used again.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c client.Storage, cfg settings.Store) error {
			return c.UpdateAutocompleteTags(ctx, args)
		})
	},
}

func init() {
	tagsCmd.Flags().BoolVar(&tagsAll, "all", false, "Include tags hidden from autocomplete")
	tagsCmd.AddCommand(tagsSetCmd)
	rootCmd.AddCommand(tagsCmd)
}
