package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alfredjeanlab/corkboard/internal/idgen"
	"github.com/alfredjeanlab/corkboard/internal/model"
	"github.com/alfredjeanlab/corkboard/internal/transport"
	"github.com/alfredjeanlab/corkboard/internal/ui"
	"github.com/spf13/cobra"
)

var errGaveUp = errors.New("connection lost: giving up after repeated failures")

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Stream board events as they happen",
	GroupID: "realtime",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("transport")
		showCursors, _ := cmd.Flags().GetBool("cursors")
		board, _ := cmd.Flags().GetBool("board")

		conn, err := openConn(kind, httpURL, idgen.Session())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if board {
			return runBoard(ctx, conn, os.Stdin)
		}
		return streamEvents(ctx, conn, showCursors)
	},
}

func init() {
	watchCmd.Flags().String("transport", "ws", "realtime transport (ws or sse)")
	watchCmd.Flags().Bool("cursors", false, "include cursor movements")
	watchCmd.Flags().Bool("board", false, "keep a synced board and read edit commands from stdin")
}

func openConn(kind, baseURL, session string) (transport.Conn, error) {
	switch kind {
	case "ws", "websocket":
		return transport.NewWebSocket(baseURL, session, transport.Options{})
	case "sse":
		return transport.NewSSE(baseURL, session, transport.Options{}), nil
	}
	return nil, fmt.Errorf("unknown transport %q (must be ws or sse)", kind)
}

// streamEvents prints events until ctx is done or the transport gives up.
func streamEvents(ctx context.Context, conn transport.Conn, showCursors bool) error {
	if err := conn.Open(ctx); err != nil {
		return err
	}
	defer conn.Close()

	events, changes := conn.Events(), conn.StatusChanges()
	for events != nil || changes != nil {
		select {
		case <-ctx.Done():
			return nil
		case st, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			fmt.Fprintf(os.Stderr, "%s %s\n", ui.RenderMuted("status"), ui.RenderStatus(st.String()))
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Type() == model.EventCursor && !showCursors {
				continue
			}
			if jsonOutput {
				data, err := ev.MarshalJSON()
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				continue
			}
			fmt.Println(formatEvent(ev))
		}
	}
	if conn.Status() == transport.Offline {
		return errGaveUp
	}
	return nil
}
