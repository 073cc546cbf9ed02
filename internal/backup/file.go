package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileDestination writes the export to a local path, replacing it
// atomically. A ".zst" suffix selects zstd compression.
type FileDestination struct {
	path string
}

// NewFileDestination returns a destination that writes to path.
func NewFileDestination(path string) *FileDestination {
	return &FileDestination{path: path}
}

func (d *FileDestination) Name() string { return "file:" + d.path }

// Write stores the snapshot at the destination path.
func (d *FileDestination) Write(_ context.Context, snap *Snapshot) error {
	body, err := encodeFor(d.path, snap.Data)
	if err != nil {
		return fmt.Errorf("compressing export: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(d.path), ".board-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), d.path); err != nil {
		return fmt.Errorf("renaming to %s: %w", d.path, err)
	}
	return nil
}
