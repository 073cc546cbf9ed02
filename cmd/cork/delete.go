package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/corkboard/internal/model"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <id>...",
	Short:   "Delete notes",
	GroupID: "notes",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		var errs []error
		for _, id := range args {
			if err := boardClient.DeleteNote(ctx, id); err != nil {
				errs = append(errs, fmt.Errorf("deleting note %s: %w", id, err))
				continue
			}
			announce(ctx, model.NoteDeleted{ID: id})
			if !jsonOutput {
				fmt.Printf("Deleted %s\n", id)
			}
		}
		if jsonOutput && len(errs) == 0 {
			return printJSON(map[string]any{"deleted": args})
		}
		return errors.Join(errs...)
	},
}

var clearCmd = &cobra.Command{
	Use:     "clear",
	Short:   "Delete every note on the board",
	GroupID: "notes",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return errors.New("refusing to clear the board without --yes")
		}
		ctx := context.Background()
		n, err := boardClient.ClearNotes(ctx)
		if err != nil {
			return fmt.Errorf("clearing board: %w", err)
		}
		announce(ctx, model.NotesCleared{})
		if jsonOutput {
			return printJSON(map[string]int64{"deleted": n})
		}
		fmt.Printf("Cleared %d notes\n", n)
		return nil
	},
}

func init() {
	clearCmd.Flags().BoolP("yes", "y", false, "confirm clearing the board")
}
