package ui

import (
	"os"
	"strings"
	"testing"

	"github.com/alfredjeanlab/corkboard/internal/model"
)

func withColor(t *testing.T) {
	t.Helper()
	prev := noColor
	noColor = false
	t.Cleanup(func() { noColor = prev })
}

func TestRenderNoteColor(t *testing.T) {
	withColor(t)
	for _, c := range model.Palette {
		got := RenderNoteColor(c, "x")
		if !strings.HasPrefix(got, "\x1b[38;5;") || !strings.HasSuffix(got, "x\x1b[0m") {
			t.Errorf("RenderNoteColor(%s) = %q", c, got)
		}
	}
	if got := RenderNoteColor("teal", "x"); got != "x" {
		t.Errorf("unknown color = %q, want plain", got)
	}
}

func TestRenderStatus(t *testing.T) {
	withColor(t)
	for _, tc := range []struct {
		status string
		code   string
	}{
		{"connected", "114"},
		{"connecting", "179"},
		{"offline", "203"},
		{"disconnected", "203"},
	} {
		if got := RenderStatus(tc.status); !strings.Contains(got, ";"+tc.code+"m") {
			t.Errorf("RenderStatus(%q) = %q, want code %s", tc.status, got, tc.code)
		}
	}
}

func TestForceNoColor(t *testing.T) {
	withColor(t)
	ForceNoColor()
	if got := RenderAccent("a"); got != "a" {
		t.Errorf("RenderAccent = %q, want plain", got)
	}
}

func TestShouldUseColorFor(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	for _, tc := range []struct {
		name string
		env  map[string]string
		want bool
	}{
		{"PlainFile", nil, false},
		{"Forced", map[string]string{"CLICOLOR_FORCE": "1"}, true},
		{"NoColorWins", map[string]string{"CLICOLOR_FORCE": "1", "NO_COLOR": "1"}, false},
		{"Disabled", map[string]string{"CLICOLOR": "0"}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			for _, k := range []string{"NO_COLOR", "CLICOLOR_FORCE", "CLICOLOR"} {
				t.Setenv(k, "")
			}
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if got := ShouldUseColorFor(f); got != tc.want {
				t.Errorf("ShouldUseColorFor = %v, want %v", got, tc.want)
			}
		})
	}
}
