package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/alfredjeanlab/corkboard/internal/model"
)

// Merge applies one inbound event from another session to the local view.
// Note events touching an id with uncommitted local changes are skipped, as
// are replayed note events the view already reflects.
func (e *Engine) Merge(ev *model.Event) {
	if ev.Replayable() && !e.admit(ev) {
		return
	}
	switch p := ev.Payload.(type) {
	case model.NoteCreated:
		e.mu.Lock()
		added := p.Note != nil && e.indexLocked(p.Note.ID) < 0
		if added {
			e.notes = append(e.notes, p.Note.Clone())
		}
		e.mu.Unlock()
		if !added {
			return
		}

	case model.NoteUpdated:
		e.mu.Lock()
		applied := false
		if p.Note != nil && !e.isPendingLocked(p.Note.ID) {
			if i := e.indexLocked(p.Note.ID); i >= 0 {
				e.notes[i] = p.Note.Clone()
				applied = true
			}
		}
		e.mu.Unlock()
		if !applied {
			return
		}

	case model.NoteDeleted:
		e.mu.Lock()
		removed := !e.isPendingLocked(p.ID) && e.removeLocked(p.ID)
		e.mu.Unlock()
		if !removed {
			return
		}

	case model.NotesCleared:
		e.mu.Lock()
		if ev.Replayed {
			e.clearConfirmedLocked(ev.Time())
		} else {
			e.clearLocked()
		}
		e.mu.Unlock()

	case model.CursorMoved:
		c := p.Cursor
		if c.SessionID == "" {
			c.SessionID = ev.Origin
		}
		e.peers.Record(c)

	case model.UserJoined:
		e.log.Debug("peer joined", "peer", p.User.ID)

	case model.UserLeft:
		e.peers.Remove(p.User.ID)

	case model.Welcome:
		e.setUserCount(p.UserCount)

	case model.UserCount:
		e.setUserCount(p.Count)

	default:
		return
	}
	e.changed()
}

// admit reports whether a note event should be merged and advances the
// horizon past it. Replayed events at or before the horizon are stale.
func (e *Engine) admit(ev *model.Event) bool {
	at := ev.Time()
	e.mu.Lock()
	defer e.mu.Unlock()
	if ev.Replayed && !at.After(e.horizon) {
		e.log.Debug("skipping replayed event", "type", ev.Type(), "at", at, "horizon", e.horizon)
		return false
	}
	if at.After(e.horizon) {
		e.horizon = at
	}
	return true
}

// clearConfirmedLocked applies a clear learned from history: confirmed notes
// created at or before at are dropped with their pending edits. Placeholders
// and creates in flight are newer than any replayed clear and stay.
func (e *Engine) clearConfirmedLocked(at time.Time) {
	kept := e.notes[:0]
	for _, n := range e.notes {
		if _, ok := e.creates[n.ID]; ok || n.CreatedAt.After(at) {
			kept = append(kept, n)
			continue
		}
		e.timers.Cancel(n.ID)
		delete(e.updates, n.ID)
	}
	clear(e.notes[len(kept):])
	e.notes = kept
}

func (e *Engine) setUserCount(n int) {
	e.mu.Lock()
	e.userCount = n
	e.mu.Unlock()
}

// Resync replaces the local view with the store's notes, keeping the local
// value of every note with uncommitted changes and every placeholder.
func (e *Engine) Resync(ctx context.Context) error {
	started := e.clock.Now()
	notes, err := e.store.ListNotes(ctx)
	if err != nil {
		err = fmt.Errorf("loading notes: %w", err)
		e.fail(OpResync, "", err)
		return err
	}

	e.mu.Lock()
	local := make(map[string]*model.Note, len(e.notes))
	for _, n := range e.notes {
		local[n.ID] = n
	}
	merged := make([]*model.Note, 0, len(notes)+len(e.creates))
	seen := make(map[string]bool, len(notes))
	for _, n := range notes {
		seen[n.ID] = true
		if l, ok := local[n.ID]; ok && e.isPendingLocked(n.ID) {
			merged = append(merged, l)
			continue
		}
		merged = append(merged, n.Clone())
	}
	for _, n := range e.notes {
		if !seen[n.ID] && e.isPendingLocked(n.ID) {
			merged = append(merged, n)
		}
	}
	e.notes = merged
	if started.After(e.horizon) {
		e.horizon = started
	}
	e.mu.Unlock()

	e.changed()
	return nil
}
