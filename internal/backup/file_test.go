package backup

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestFileDestination(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "board.jsonl")
	dest := NewFileDestination(path)

	for _, data := range [][]byte{[]byte("first\n"), []byte("second\n")} {
		if err := dest.Write(context.Background(), snapshotOf(data)); err != nil {
			t.Fatalf("Write: %v", err)
		}
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("file = %q, want %q", got, data)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want only the export", len(entries))
	}
}

func TestFileDestination_Compressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.jsonl.zst")
	data := []byte(`{"type":"header"}` + "\n")
	if err := NewFileDestination(path).Write(context.Background(), snapshotOf(data)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	packed, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer dec.Close()
	got, err := dec.DecodeAll(packed, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("decoded = %q", got)
	}
}

func TestFileDestination_MissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent", "board.jsonl")
	if err := NewFileDestination(path).Write(context.Background(), snapshotOf([]byte("x"))); err == nil {
		t.Fatal("expected error")
	}
}
