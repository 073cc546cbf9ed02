package presence

import "unicode/utf16"

// CursorPalette is the set of colors assigned to sessions.
var CursorPalette = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4", "#FFEAA7",
	"#DDA0DD", "#98D8C8", "#F7DC6F", "#BB8FCE", "#85C1E9",
}

// ColorFor returns the palette color for a session id. The mapping is a
// 32-bit rolling hash (h = h*31 + unit) over the id's UTF-16 code units, so
// every client computes the same color for the same session.
func ColorFor(sessionID string) string {
	var h int32
	for _, u := range utf16.Encode([]rune(sessionID)) {
		h = h*31 + int32(u)
	}
	idx := int64(h)
	if idx < 0 {
		idx = -idx
	}
	return CursorPalette[idx%int64(len(CursorPalette))]
}
