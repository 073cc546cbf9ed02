package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/corkboard/internal/model"
	"github.com/alfredjeanlab/corkboard/internal/presence"
	"github.com/alfredjeanlab/corkboard/internal/ui"
)

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func printNote(n *model.Note) {
	fmt.Printf("ID:          %s\n", n.ID)
	fmt.Printf("Color:       %s\n", ui.RenderNoteColor(n.Color, n.Color.String()))
	fmt.Printf("Position:    %s\n", formatPos(n.X, n.Y))
	if n.Content != "" {
		fmt.Printf("Content:     %s\n", n.Content)
	}
	if !n.CreatedAt.IsZero() {
		fmt.Printf("Created At:  %s\n", n.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	if !n.UpdatedAt.IsZero() {
		fmt.Printf("Updated At:  %s\n", n.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	}
}

func printNoteList(w io.Writer, notes []*model.Note, width int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOLOR\tPOSITION\tCONTENT")
	limit := max(width-60, 20)
	for _, n := range notes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			n.ID,
			ui.RenderNoteColor(n.Color, n.Color.String()),
			formatPos(n.X, n.Y),
			truncate(firstLine(n.Content), limit),
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d notes\n", len(notes))
}

func printCursors(entries []presence.Entry) {
	if len(entries) == 0 {
		fmt.Println(ui.RenderMuted("no active cursors"))
		return
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tPOSITION\tIDLE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n",
			e.SessionID,
			formatPos(e.X, e.Y),
			(time.Duration(e.IdleSecs * float64(time.Second))).Round(time.Second),
		)
	}
	tw.Flush()
}

// formatEvent renders one realtime event as a single log line.
func formatEvent(ev *model.Event) string {
	ts := ev.Time().Local().Format("15:04:05")
	if ev.Timestamp == 0 {
		ts = time.Now().Format("15:04:05")
	}
	var detail string
	switch p := ev.Payload.(type) {
	case model.NoteCreated:
		detail = fmt.Sprintf("%s %s %q", p.Note.ID, formatPos(p.Note.X, p.Note.Y), truncate(firstLine(p.Note.Content), 40))
	case model.NoteUpdated:
		detail = fmt.Sprintf("%s %s %q", p.Note.ID, formatPos(p.Note.X, p.Note.Y), truncate(firstLine(p.Note.Content), 40))
	case model.NoteDeleted:
		detail = p.ID
	case model.NotesCleared:
		detail = "all notes"
	case model.Welcome:
		detail = fmt.Sprintf("session %s, %d online", p.SessionID, p.UserCount)
	case model.UserCount:
		detail = fmt.Sprintf("%d online", p.Count)
	case model.CursorMoved:
		detail = fmt.Sprintf("%s %s", p.Cursor.SessionID, formatPos(p.Cursor.X, p.Cursor.Y))
	case model.UserJoined:
		detail = p.User.ID
	case model.UserLeft:
		detail = p.User.ID
	}
	line := fmt.Sprintf("%s %-10s %s", ui.RenderMuted(ts), ui.RenderAccent(string(ev.Type())), detail)
	if ev.Origin != "" {
		line += ui.RenderMuted(" from " + ev.Origin)
	}
	return line
}

func formatPos(x, y float64) string {
	return fmt.Sprintf("(%g, %g)", x, y)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
