package ui

import (
	"fmt"

	"github.com/alfredjeanlab/corkboard/internal/model"
)

// ANSI256 color codes.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorOK     = 114 // green
	colorWarn   = 179 // amber
	colorError  = 203 // red
)

// noteColors maps the note palette to the nearest ANSI256 codes.
var noteColors = map[model.Color]int{
	model.ColorYellow: 221,
	model.ColorPink:   211,
	model.ColorBlue:   117,
	model.ColorGreen:  120,
	model.ColorOrange: 215,
	model.ColorPurple: 177,
}

var noColor bool

func paint(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return paint(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return paint(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return paint(colorCmd, s) }

// RenderNoteColor returns s in the terminal color closest to the note color c.
// Unknown colors are returned unstyled.
func RenderNoteColor(c model.Color, s string) string {
	code, ok := noteColors[c]
	if !ok {
		return s
	}
	return paint(code, s)
}

// RenderStatus colors a connection status label: green when connected,
// amber while connecting, red otherwise.
func RenderStatus(status string) string {
	switch status {
	case "connected":
		return paint(colorOK, status)
	case "connecting":
		return paint(colorWarn, status)
	}
	return paint(colorError, status)
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
