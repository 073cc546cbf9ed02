package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the board server",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := boardClient.Health(context.Background())
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}

		if jsonOutput {
			if err := printJSON(h); err != nil {
				return err
			}
		} else {
			fmt.Printf("Health:      %s\n", h.Status)
			fmt.Printf("Connections: %d\n", h.Connections)
			fmt.Printf("Uptime:      %s\n", (time.Duration(h.UptimeSecs) * time.Second).String())
		}

		if h.Status != "ok" {
			return fmt.Errorf("unhealthy: %s", h.Status)
		}
		return nil
	},
}
