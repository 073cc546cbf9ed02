// Package store defines the persistence contract for board notes.
package store

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/corkboard/internal/model"
)

// ErrNotFound is returned when a note id does not exist.
var ErrNotFound = errors.New("note not found")

// Store defines the persistence interface for notes.
type Store interface {
	// ListNotes returns every note ordered by creation time.
	ListNotes(ctx context.Context) ([]*model.Note, error)
	GetNote(ctx context.Context, id string) (*model.Note, error)
	// CreateNote inserts a note from in and returns the stored record with
	// its server-assigned id and timestamps.
	CreateNote(ctx context.Context, in model.NoteInput) (*model.Note, error)
	// UpdateNote applies patch to the note and returns the stored record.
	UpdateNote(ctx context.Context, id string, patch model.NotePatch) (*model.Note, error)
	DeleteNote(ctx context.Context, id string) error
	// ClearNotes deletes every note and returns how many were removed.
	ClearNotes(ctx context.Context) (int64, error)

	Close() error
}
