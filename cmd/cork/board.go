package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/corkboard/internal/model"
	"github.com/alfredjeanlab/corkboard/internal/syncer"
	"github.com/alfredjeanlab/corkboard/internal/transport"
	"github.com/alfredjeanlab/corkboard/internal/ui"
)

const boardHelp = `commands:
  add <x> <y> <content>   create a note
  edit <id> <content>     replace a note's content
  move <id> <x> <y>       move a note
  color <id> <color>      recolor a note
  rm <id>                 delete a note
  clear                   delete every note
  cursor <x> <y>          report your pointer position
  ls                      redraw the board
  quit                    exit`

var errQuit = errors.New("quit")

// flushTimeout bounds how long leaving the board waits for pending commits.
const flushTimeout = 5 * time.Second

type boardCommand struct {
	verb  string
	id    string
	x, y  float64
	text  string
	color model.Color
}

// parseBoardCommand parses one line typed at the board prompt.
func parseBoardCommand(line string) (boardCommand, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return boardCommand{}, nil
	}
	cmd := boardCommand{verb: strings.ToLower(fields[0])}
	args := fields[1:]
	rest := func(n int) string {
		// Content keeps its inner spacing.
		s := strings.TrimSpace(line)
		for range n {
			s = strings.TrimSpace(s[strings.IndexAny(s, " \t"):])
		}
		return s
	}
	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%s: expected %d arguments\n%s", cmd.verb, n, boardHelp)
		}
		return nil
	}
	coords := func(i int) error {
		var err error
		if cmd.x, err = strconv.ParseFloat(args[i], 64); err != nil {
			return fmt.Errorf("invalid x %q", args[i])
		}
		if cmd.y, err = strconv.ParseFloat(args[i+1], 64); err != nil {
			return fmt.Errorf("invalid y %q", args[i+1])
		}
		return nil
	}

	switch cmd.verb {
	case "add":
		if err := need(2); err != nil {
			return cmd, err
		}
		if err := coords(0); err != nil {
			return cmd, err
		}
		if len(args) > 2 {
			cmd.text = rest(3)
		}
	case "edit":
		if err := need(1); err != nil {
			return cmd, err
		}
		cmd.id = args[0]
		if len(args) > 1 {
			cmd.text = rest(2)
		}
	case "move":
		if err := need(3); err != nil {
			return cmd, err
		}
		cmd.id = args[0]
		if err := coords(1); err != nil {
			return cmd, err
		}
	case "color":
		if err := need(2); err != nil {
			return cmd, err
		}
		cmd.id = args[0]
		c, err := parseColor(args[1])
		if err != nil {
			return cmd, err
		}
		cmd.color = c
	case "rm":
		if err := need(1); err != nil {
			return cmd, err
		}
		cmd.id = args[0]
	case "cursor":
		if err := need(2); err != nil {
			return cmd, err
		}
		if err := coords(0); err != nil {
			return cmd, err
		}
	case "clear", "ls", "quit", "exit", "help":
	default:
		return cmd, fmt.Errorf("unknown command %q\n%s", cmd.verb, boardHelp)
	}
	return cmd, nil
}

// apply runs a parsed command against the engine.
func (c boardCommand) apply(ctx context.Context, e *syncer.Engine) error {
	switch c.verb {
	case "add":
		_, err := e.CreateNote(model.NoteInput{Content: c.text, X: c.x, Y: c.y})
		return err
	case "edit":
		return e.UpdateNote(c.id, model.Edit(c.text))
	case "move":
		return e.UpdateNote(c.id, model.Move(c.x, c.y))
	case "color":
		return e.UpdateNote(c.id, model.Recolor(c.color))
	case "rm":
		return e.DeleteNote(ctx, c.id)
	case "clear":
		e.ClearAll()
	case "cursor":
		e.ReportPosition(c.x, c.y)
	case "quit", "exit":
		return errQuit
	case "help":
		fmt.Println(boardHelp)
	}
	return nil
}

// runBoard keeps a synced copy of the board, redrawing it on every change
// and applying commands read from in.
func runBoard(ctx context.Context, conn transport.Conn, in io.Reader) error {
	redraw := make(chan struct{}, 1)
	notify := func() {
		select {
		case redraw <- struct{}{}:
		default:
		}
	}

	engine := syncer.New(boardClient, conn, syncer.Options{
		OnChange: notify,
		OnError: func(op syncer.Op, id string, err error) {
			fmt.Fprintf(os.Stderr, "%s %s %s: %v\n", ui.RenderStatus("error"), op, id, err)
		},
	})
	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("loading board: %w", err)
	}
	defer engine.Close()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	// leave commits edits still inside their debounce window before the
	// deferred Close discards them.
	leave := func() error {
		fctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		if err := engine.Flush(fctx); err != nil {
			return fmt.Errorf("committing pending changes: %w", err)
		}
		return nil
	}

	fmt.Println(boardHelp)
	for {
		select {
		case <-ctx.Done():
			return leave()
		case <-redraw:
			drawBoard(engine)
			if engine.Status() == transport.Offline {
				return errGaveUp
			}
		case line, ok := <-lines:
			if !ok {
				return leave()
			}
			cmd, err := parseBoardCommand(line)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				continue
			}
			if cmd.verb == "ls" {
				drawBoard(engine)
				continue
			}
			if err := cmd.apply(ctx, engine); err != nil {
				if errors.Is(err, errQuit) {
					return leave()
				}
				fmt.Fprintln(os.Stderr, err)
			}
		}
	}
}

func drawBoard(e *syncer.Engine) {
	if ui.ShouldUseColor() {
		fmt.Print("\x1b[H\x1b[2J")
	}
	printNoteList(os.Stdout, e.Notes(), ui.TerminalWidth(120))
	fmt.Printf("%s  %d online  %d cursors  session %s\n",
		ui.RenderStatus(e.Status().String()),
		e.UserCount(),
		len(e.Peers()),
		ui.RenderMuted(e.SessionID()),
	)
}
