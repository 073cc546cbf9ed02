package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/corkboard/internal/model"
	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:     "update <id>",
	Short:   "Edit a note's content, color or position",
	GroupID: "notes",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, err := patchFromFlags(cmd)
		if err != nil {
			return err
		}
		if patch.IsEmpty() {
			return errors.New("nothing to update (use --content, --color, --x or --y)")
		}
		return applyPatch(args[0], patch)
	},
}

var moveCmd = &cobra.Command{
	Use:     "move <id> <x> <y>",
	Short:   "Move a note",
	GroupID: "notes",
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		var x, y float64
		if _, err := fmt.Sscan(args[1], &x); err != nil {
			return fmt.Errorf("invalid x %q: %w", args[1], err)
		}
		if _, err := fmt.Sscan(args[2], &y); err != nil {
			return fmt.Errorf("invalid y %q: %w", args[2], err)
		}
		return applyPatch(args[0], model.Move(x, y))
	},
}

func init() {
	updateCmd.Flags().String("content", "", "new content")
	updateCmd.Flags().String("color", "", "new color ("+paletteNames()+")")
	updateCmd.Flags().Float64("x", 0, "new x position")
	updateCmd.Flags().Float64("y", 0, "new y position")
}

// patchFromFlags sets only the fields whose flags were given.
func patchFromFlags(cmd *cobra.Command) (model.NotePatch, error) {
	var patch model.NotePatch
	flags := cmd.Flags()
	if flags.Changed("content") {
		s, _ := flags.GetString("content")
		patch = patch.Merge(model.Edit(s))
	}
	if flags.Changed("color") {
		s, _ := flags.GetString("color")
		c, err := parseColor(s)
		if err != nil {
			return patch, err
		}
		patch = patch.Merge(model.Recolor(c))
	}
	if flags.Changed("x") {
		x, _ := flags.GetFloat64("x")
		patch.X = &x
	}
	if flags.Changed("y") {
		y, _ := flags.GetFloat64("y")
		patch.Y = &y
	}
	return patch, nil
}

func applyPatch(id string, patch model.NotePatch) error {
	if err := model.ValidatePatch(patch); err != nil {
		return err
	}
	ctx := context.Background()
	n, err := boardClient.UpdateNote(ctx, id, patch)
	if err != nil {
		return fmt.Errorf("updating note %s: %w", id, err)
	}
	announce(ctx, model.NoteUpdated{Note: n})
	if jsonOutput {
		return printJSON(n)
	}
	fmt.Printf("Updated %s\n", n.ID)
	return nil
}
