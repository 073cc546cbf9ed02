package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/corkboard/internal/model"
	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:     "create [content]",
	Short:   "Create a note",
	GroupID: "notes",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		x, _ := cmd.Flags().GetFloat64("x")
		y, _ := cmd.Flags().GetFloat64("y")
		colorFlag, _ := cmd.Flags().GetString("color")

		in := model.NoteInput{X: x, Y: y}
		if len(args) == 1 {
			in.Content = args[0]
		}
		if colorFlag != "" {
			c, err := parseColor(colorFlag)
			if err != nil {
				return err
			}
			in.Color = c
		}
		if err := model.ValidateInput(&in); err != nil {
			return err
		}

		ctx := context.Background()
		n, err := boardClient.CreateNote(ctx, in)
		if err != nil {
			return fmt.Errorf("creating note: %w", err)
		}
		announce(ctx, model.NoteCreated{Note: n})
		if jsonOutput {
			return printJSON(n)
		}
		fmt.Printf("Created %s\n", n.ID)
		return nil
	},
}

func init() {
	createCmd.Flags().Float64("x", 0, "x position on the board")
	createCmd.Flags().Float64("y", 0, "y position on the board")
	createCmd.Flags().String("color", "", "note color ("+paletteNames()+")")
}

func parseColor(s string) (model.Color, error) {
	c := model.Color(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("invalid color %q (must be one of %s)", s, paletteNames())
	}
	return c, nil
}

func paletteNames() string {
	names := make([]string, len(model.Palette))
	for i, c := range model.Palette {
		names[i] = c.String()
	}
	return strings.Join(names, ", ")
}
