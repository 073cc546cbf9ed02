package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var cursorsCmd = &cobra.Command{
	Use:     "cursors",
	Short:   "Show live cursor positions",
	GroupID: "realtime",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := boardClient.Cursors(context.Background())
		if err != nil {
			return fmt.Errorf("listing cursors: %w", err)
		}
		if jsonOutput {
			return printJSON(entries)
		}
		printCursors(entries)
		return nil
	},
}
