package syncer

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/corkboard/internal/idgen"
	"github.com/alfredjeanlab/corkboard/internal/model"
	"github.com/alfredjeanlab/corkboard/internal/store"
)

// CreateNote adds a placeholder note to the local view and schedules its
// commit. It returns the placeholder's temporary id. The commit sends the
// placeholder's content as it stands when the delay expires.
func (e *Engine) CreateNote(in model.NoteInput) (string, error) {
	if err := model.ValidateInput(&in); err != nil {
		return "", err
	}
	id := idgen.Temp()
	now := e.clock.Now()

	e.mu.Lock()
	e.notes = append(e.notes, &model.Note{
		ID:        id,
		Content:   in.Content,
		X:         in.X,
		Y:         in.Y,
		Color:     in.Color,
		CreatedAt: now,
		UpdatedAt: now,
	})
	e.creates[id] = &pendingCreate{}
	e.timers.Schedule(id, e.opts.CreateDelay, func() { e.commitCreate(id) })
	e.mu.Unlock()

	e.changed()
	return id, nil
}

func (e *Engine) commitCreate(tempID string) {
	e.mu.Lock()
	pc, ok := e.creates[tempID]
	i := e.indexLocked(tempID)
	if !ok || i < 0 {
		delete(e.creates, tempID)
		e.mu.Unlock()
		return
	}
	if e.clearing || e.timers.Armed(clearKey) {
		// Let the bulk delete land first so it cannot remove this note.
		e.timers.Schedule(tempID, e.opts.CreateDelay, func() { e.commitCreate(tempID) })
		e.mu.Unlock()
		return
	}
	in := e.notes[i].Input()
	pc.inflight = true
	e.mu.Unlock()

	created, err := e.store.CreateNote(e.ctx, in)

	e.mu.Lock()
	delete(e.creates, tempID)
	if err != nil {
		e.removeLocked(tempID)
		e.mu.Unlock()
		e.fail(OpCreate, tempID, err)
		e.changed()
		return
	}

	if pc.deleted {
		e.mu.Unlock()
		if err := e.store.DeleteNote(e.ctx, created.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			e.fail(OpDelete, created.ID, err)
		}
		return
	}

	i = e.indexLocked(tempID)
	switch {
	case i < 0:
		// Placeholder dropped by an inbound clear; the store record is
		// covered by the clear's own broadcast.
		e.mu.Unlock()
		return
	case e.indexLocked(created.ID) >= 0:
		// A resync already brought the confirmed note in.
		e.removeLocked(tempID)
	default:
		n := created.Clone()
		if !pc.carry.IsEmpty() {
			pc.carry.Apply(n)
			e.queueUpdateLocked(created.ID, pc.carry)
		}
		e.notes[i] = n
	}
	e.mu.Unlock()

	e.broadcast(model.NoteCreated{Note: created})
	e.changed()
}

// UpdateNote applies patch to the local view at once and schedules a
// commit that coalesces every edit made within the update delay.
// Edits to a placeholder stay local until its create resolves.
func (e *Engine) UpdateNote(id string, patch model.NotePatch) error {
	if err := model.ValidatePatch(patch); err != nil {
		return err
	}
	if patch.IsEmpty() {
		return nil
	}

	e.mu.Lock()
	i := e.indexLocked(id)
	if i < 0 {
		e.mu.Unlock()
		return ErrUnknownNote
	}
	n := e.notes[i]
	patch.Apply(n)
	n.UpdatedAt = e.clock.Now()

	if pc, ok := e.creates[id]; ok {
		if pc.inflight {
			pc.carry = pc.carry.Merge(patch)
		}
	} else {
		e.queueUpdateLocked(id, patch)
	}
	e.mu.Unlock()

	e.changed()
	return nil
}

func (e *Engine) queueUpdateLocked(id string, patch model.NotePatch) {
	pu, ok := e.updates[id]
	if !ok {
		pu = &pendingUpdate{}
		e.updates[id] = pu
	}
	pu.patch = pu.patch.Merge(patch)
	e.timers.Schedule(id, e.opts.UpdateDelay, func() { e.commitUpdate(id) })
}

func (e *Engine) commitUpdate(id string) {
	e.mu.Lock()
	pu, ok := e.updates[id]
	if !ok || pu.patch.IsEmpty() {
		e.mu.Unlock()
		return
	}
	patch := pu.patch
	pu.patch = model.NotePatch{}
	pu.inflight++
	e.mu.Unlock()

	updated, err := e.store.UpdateNote(e.ctx, id, patch)

	e.mu.Lock()
	pu.inflight--
	current := e.updates[id] == pu
	settled := current && pu.inflight == 0 && pu.patch.IsEmpty() && !e.timers.Armed(id)
	if settled {
		delete(e.updates, id)
	}
	if err != nil {
		e.mu.Unlock()
		e.fail(OpUpdate, id, err)
		e.changed()
		return
	}
	if !current {
		// Deleted or cleared while the request was in flight.
		e.mu.Unlock()
		return
	}
	if settled {
		if i := e.indexLocked(id); i >= 0 {
			e.notes[i] = updated.Clone()
		}
	}
	e.mu.Unlock()

	e.broadcast(model.NoteUpdated{Note: updated})
	e.changed()
}

// DeleteNote removes a note from the local view, cancelling any pending
// commit for it, then deletes it from the store. A note the store no
// longer has counts as deleted. Placeholders never reach the store unless
// their create is already in flight. Local removal is not reverted on error.
func (e *Engine) DeleteNote(ctx context.Context, id string) error {
	e.mu.Lock()
	e.timers.Cancel(id)
	removed := e.removeLocked(id)
	delete(e.updates, id)
	pc, placeholder := e.creates[id]
	if placeholder {
		if pc.inflight {
			pc.deleted = true
		} else {
			delete(e.creates, id)
		}
	}
	e.mu.Unlock()

	if !removed {
		return ErrUnknownNote
	}
	e.changed()
	if placeholder || idgen.IsTemp(id) {
		return nil
	}

	if err := e.store.DeleteNote(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		e.fail(OpDelete, id, err)
		return err
	}
	e.broadcast(model.NoteDeleted{ID: id})
	return nil
}

// ClearAll empties the local view at once and schedules one bulk delete.
// If the bulk delete fails the view is reloaded from the store.
func (e *Engine) ClearAll() {
	e.mu.Lock()
	e.clearLocked()
	e.timers.Schedule(clearKey, e.opts.ClearDelay, e.commitClear)
	e.mu.Unlock()
	e.changed()
}

// clearLocked drops the local view and every pending commit. Creates
// already in flight are deleted once they return.
func (e *Engine) clearLocked() {
	e.timers.CancelAll()
	e.notes = nil
	clear(e.updates)
	for id, pc := range e.creates {
		if pc.inflight {
			pc.deleted = true
			continue
		}
		delete(e.creates, id)
	}
}

func (e *Engine) commitClear() {
	e.mu.Lock()
	e.clearing = true
	e.mu.Unlock()

	_, err := e.store.ClearNotes(e.ctx)

	e.mu.Lock()
	e.clearing = false
	e.mu.Unlock()

	if err != nil {
		e.fail(OpClear, "", err)
		if err := e.Resync(e.ctx); err != nil {
			e.log.Warn("reload after failed clear", "error", err)
		}
		return
	}
	e.broadcast(model.NotesCleared{})
}

// ReportPosition offers this session's cursor position to peers. Reports
// faster than the report interval are dropped. It reports whether the
// position was sent.
func (e *Engine) ReportPosition(x, y float64) bool {
	return e.reporter.Report(x, y)
}

func (e *Engine) emitCursor(c model.Cursor) {
	e.broadcast(model.CursorMoved{Cursor: c})
}
