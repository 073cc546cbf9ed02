package model

import "time"

// Color is the background color of a note card, chosen from a fixed palette.
type Color string

const (
	ColorYellow Color = "yellow"
	ColorPink   Color = "pink"
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorOrange Color = "orange"
	ColorPurple Color = "purple"
)

// DefaultColor is used when a note is created without a color.
const DefaultColor = ColorYellow

// Palette lists every valid note color in picker order.
var Palette = []Color{ColorYellow, ColorPink, ColorBlue, ColorGreen, ColorOrange, ColorPurple}

// String returns the string representation of the color.
func (c Color) String() string {
	return string(c)
}

// IsValid reports whether the color is part of the palette.
func (c Color) IsValid() bool {
	switch c {
	case ColorYellow, ColorPink, ColorBlue, ColorGreen, ColorOrange, ColorPurple:
		return true
	}
	return false
}

// Note is a single sticky note on the board. X and Y are world coordinates
// on the infinite canvas.
type Note struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Color     Color     `json:"color"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// Clone returns a copy of the note. A nil note clones to nil.
func (n *Note) Clone() *Note {
	if n == nil {
		return nil
	}
	cp := *n
	return &cp
}

// NoteInput holds the caller-supplied fields of a new note.
type NoteInput struct {
	Content string  `json:"content"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Color   Color   `json:"color,omitempty"`
}

// NotePatch is a partial update. Nil fields mean "don't change".
type NotePatch struct {
	Content *string  `json:"content,omitempty"`
	X       *float64 `json:"x,omitempty"`
	Y       *float64 `json:"y,omitempty"`
	Color   *Color   `json:"color,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p NotePatch) IsEmpty() bool {
	return p.Content == nil && p.X == nil && p.Y == nil && p.Color == nil
}

// Merge returns p with every field set in later overriding p's value.
func (p NotePatch) Merge(later NotePatch) NotePatch {
	if later.Content != nil {
		p.Content = later.Content
	}
	if later.X != nil {
		p.X = later.X
	}
	if later.Y != nil {
		p.Y = later.Y
	}
	if later.Color != nil {
		p.Color = later.Color
	}
	return p
}

// Apply writes the patch's set fields onto n.
func (p NotePatch) Apply(n *Note) {
	if p.Content != nil {
		n.Content = *p.Content
	}
	if p.X != nil {
		n.X = *p.X
	}
	if p.Y != nil {
		n.Y = *p.Y
	}
	if p.Color != nil {
		n.Color = *p.Color
	}
}

// Input returns the creatable fields of n.
func (n *Note) Input() NoteInput {
	return NoteInput{Content: n.Content, X: n.X, Y: n.Y, Color: n.Color}
}

// Move returns a patch that repositions a note.
func Move(x, y float64) NotePatch {
	return NotePatch{X: &x, Y: &y}
}

// Edit returns a patch that replaces a note's content.
func Edit(content string) NotePatch {
	return NotePatch{Content: &content}
}

// Recolor returns a patch that changes a note's color.
func Recolor(c Color) NotePatch {
	return NotePatch{Color: &c}
}
