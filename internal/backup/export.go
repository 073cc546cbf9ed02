// Package backup periodically snapshots the board to external destinations.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/alfredjeanlab/corkboard/internal/model"
)

// NoteLister is the slice of the store a snapshot needs.
type NoteLister interface {
	ListNotes(ctx context.Context) ([]*model.Note, error)
}

// header is the first JSONL record of a snapshot.
type header struct {
	Version   string    `json:"version"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	NoteCount int       `json:"note_count"`
	Digest    string    `json:"digest"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Snapshot is one JSONL export of the board.
type Snapshot struct {
	// Data is a header line followed by one line per note in the store's
	// creation order.
	Data  []byte
	Notes int
	// Digest is the xxhash of the note lines. It ignores the header, so
	// it only changes when a note does.
	Digest uint64
	Taken  time.Time
}

// DigestHex returns Digest as 16 hex digits.
func (s *Snapshot) DigestHex() string {
	return fmt.Sprintf("%016x", s.Digest)
}

// TakeSnapshot exports every note in s.
func TakeSnapshot(ctx context.Context, s NoteLister) (*Snapshot, error) {
	notes, err := s.ListNotes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	enc.SetEscapeHTML(false)
	for _, n := range notes {
		if err := enc.Encode(record{Type: "note", Data: n}); err != nil {
			return nil, fmt.Errorf("encode note %s: %w", n.ID, err)
		}
	}

	snap := &Snapshot{
		Notes:  len(notes),
		Digest: xxhash.Sum64(body.Bytes()),
		Taken:  time.Now().UTC(),
	}
	var out bytes.Buffer
	if err := json.NewEncoder(&out).Encode(header{
		Version:   "1",
		Type:      "header",
		Timestamp: snap.Taken,
		NoteCount: snap.Notes,
		Digest:    snap.DigestHex(),
	}); err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}
	out.Write(body.Bytes())
	snap.Data = out.Bytes()
	return snap, nil
}
