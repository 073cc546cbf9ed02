package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alfredjeanlab/corkboard/internal/backup"
	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:     "backup",
	Short:   "Export the board as JSONL",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")
		ctx := context.Background()

		snap, err := backup.TakeSnapshot(ctx, boardClient)
		if err != nil {
			return fmt.Errorf("exporting board: %w", err)
		}
		if out == "" || out == "-" {
			_, err := os.Stdout.Write(snap.Data)
			return err
		}
		if err := backup.NewFileDestination(out).Write(ctx, snap); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wrote %d notes (%d bytes, digest %s) to %s\n",
			snap.Notes, len(snap.Data), snap.DigestHex(), out)
		return nil
	},
}

func init() {
	backupCmd.Flags().StringP("output", "o", "-", "output file (.zst for zstd compression)")
}
