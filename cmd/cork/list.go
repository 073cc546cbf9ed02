package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alfredjeanlab/corkboard/internal/model"
	"github.com/alfredjeanlab/corkboard/internal/ui"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List notes on the board",
	GroupID: "notes",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		colors, _ := cmd.Flags().GetStringSlice("color")

		notes, err := boardClient.ListNotes(context.Background())
		if err != nil {
			return fmt.Errorf("listing notes: %w", err)
		}
		if len(colors) > 0 {
			want := make(map[model.Color]bool, len(colors))
			for _, c := range colors {
				color, err := parseColor(c)
				if err != nil {
					return err
				}
				want[color] = true
			}
			filtered := notes[:0]
			for _, n := range notes {
				if want[n.Color] {
					filtered = append(filtered, n)
				}
			}
			notes = filtered
		}

		if jsonOutput {
			return printJSON(notes)
		}
		printNoteList(os.Stdout, notes, ui.TerminalWidth(120))
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:     "show <id>",
	Short:   "Show one note",
	GroupID: "notes",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := boardClient.GetNote(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("getting note %s: %w", args[0], err)
		}
		if jsonOutput {
			return printJSON(n)
		}
		printNote(n)
		return nil
	},
}

func init() {
	listCmd.Flags().StringSliceP("color", "c", nil, "filter by color (repeatable)")
}
