package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/avickers/tempo/internal/client"
	"github.com/avickers/tempo/internal/settings"
	"github.com/avickers/tempo/internal/storage"
)

var categoriesCmd = &cobra.Command{
	Use:     "categories",
	Aliases: []string{"category"},
	Short:   "Manage categories",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c client.Storage, cfg settings.Store) error {
			cats, err := c.GetCategories(ctx)
			if err != nil {
				return err
			}
			for _, cat := range cats {
				fmt.Printf("%d\t%s\n", cat.ID, cat.Name)
			}
			return nil
		})
	},
}

var categoryAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c client.Storage, cfg settings.Store) error {
			cat, err := c.AddCategory(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Added %s (id %d)\n", cat.Name, cat.ID)
			return nil
		})
	},
}

var categoryRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a category",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withClient(func(ctx context.Context, c client.Storage, cfg settings.Store) error {
			return c.UpdateCategory(ctx, id, args[1])
		})
	},
}

var categoryRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a category; its activities become uncategorized",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withClient(func(ctx context.Context, c client.Storage, cfg settings.Store) error {
			return c.RemoveCategory(ctx, id)
		})
	},
}

func init() {
	categoriesCmd.AddCommand(categoryAddCmd, categoryRenameCmd, categoryRemoveCmd)
	rootCmd.AddCommand(categoriesCmd)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// resolveCategoryID finds a category by name, creating it if missing. An
// empty name maps to uncategorized (0).
func resolveCategoryID(ctx context.Context, c client.Storage, name string) (int64, error) {
	if name == "" {
		return 0, nil
	}
	id, err := c.GetCategoryID(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		cat, err := c.AddCategory(ctx, name)
		if err != nil {
			return 0, err
		}
		return cat.ID, nil
	}
	return id, err
}
