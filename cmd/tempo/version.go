package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is overridden by ldflags at release build time.
var Version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tempo version %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
