// Package memory implements store.Store in process memory. It backs the
// server when no database URL is configured and serves as a fake in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/corkboard/internal/idgen"
	"github.com/alfredjeanlab/corkboard/internal/model"
	"github.com/alfredjeanlab/corkboard/internal/store"
)

// Store is a mutex-guarded map of notes.
type Store struct {
	mu    sync.RWMutex
	notes map[string]*model.Note
	now   func() time.Time

	// Fail, if set, is consulted before every mutating call; a non-nil
	// return is reported as that call's error.
	Fail func(op string) error
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		notes: make(map[string]*model.Note),
		now:   time.Now,
	}
}

func (s *Store) fail(op string) error {
	if s.Fail == nil {
		return nil
	}
	return s.Fail(op)
}

// ListNotes returns copies of every note ordered by creation time, then id.
func (s *Store) ListNotes(_ context.Context) ([]*model.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Note, 0, len(s.notes))
	for _, n := range s.notes {
		out = append(out, n.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) GetNote(_ context.Context, id string) (*model.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return n.Clone(), nil
}

func (s *Store) CreateNote(_ context.Context, in model.NoteInput) (*model.Note, error) {
	if err := s.fail("create"); err != nil {
		return nil, err
	}
	if err := model.ValidateInput(&in); err != nil {
		return nil, err
	}
	id, err := idgen.Generate()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	n := &model.Note{
		ID:        id,
		Content:   in.Content,
		X:         in.X,
		Y:         in.Y,
		Color:     in.Color,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.notes[id] = n
	return n.Clone(), nil
}

func (s *Store) UpdateNote(_ context.Context, id string, patch model.NotePatch) (*model.Note, error) {
	if err := s.fail("update"); err != nil {
		return nil, err
	}
	if err := model.ValidatePatch(patch); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	patch.Apply(n)
	n.UpdatedAt = s.now().UTC()
	return n.Clone(), nil
}

func (s *Store) DeleteNote(_ context.Context, id string) error {
	if err := s.fail("delete"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notes[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.notes, id)
	return nil
}

func (s *Store) ClearNotes(_ context.Context) (int64, error) {
	if err := s.fail("clear"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.notes))
	s.notes = make(map[string]*model.Note)
	return n, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
