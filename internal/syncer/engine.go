// Package syncer keeps one session's view of the board in step with the
// store and with every other session.
//
// Local edits apply to the in-memory view at once and are committed to the
// store after a short debounce. Confirmed changes are broadcast through the
// transport. Inbound events from other sessions are merged unless the note
// they touch has an uncommitted local change, in which case local intent
// wins until the commit resolves.
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/alfredjeanlab/corkboard/internal/clock"
	"github.com/alfredjeanlab/corkboard/internal/debounce"
	"github.com/alfredjeanlab/corkboard/internal/model"
	"github.com/alfredjeanlab/corkboard/internal/presence"
	"github.com/alfredjeanlab/corkboard/internal/store"
	"github.com/alfredjeanlab/corkboard/internal/transport"
)

// Default commit delays.
const (
	DefaultCreateDelay = 300 * time.Millisecond
	DefaultUpdateDelay = 300 * time.Millisecond
	DefaultClearDelay  = 400 * time.Millisecond
)

// Op names the store operation reported to OnError.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpClear  Op = "clear"
	OpResync Op = "resync"
)

// ErrUnknownNote is returned when an operation names a note that is not in
// the local view.
var ErrUnknownNote = errors.New("unknown note")

// clearKey is the debounce key of the bulk delete. Note ids never contain NUL.
const clearKey = "\x00clear"

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	CreateDelay time.Duration
	UpdateDelay time.Duration
	ClearDelay  time.Duration

	// CursorTTL and SweepInterval govern peer cursor expiry.
	CursorTTL     time.Duration
	SweepInterval time.Duration

	// ReportInterval is the minimum spacing of ReportPosition emissions.
	ReportInterval time.Duration

	Clock clock.Clock

	// OnError is called when a store commit fails. id is the note id, or
	// empty for clear and resync.
	OnError func(op Op, id string, err error)

	// OnChange is called after every change to the local view, transport
	// status, user count or peer cursors. It runs without the engine's lock.
	OnChange func()

	Logger *slog.Logger
}

// pendingUpdate accumulates uncommitted edits of one confirmed note.
type pendingUpdate struct {
	patch    model.NotePatch
	inflight int
}

// pendingCreate tracks a placeholder note until its create resolves.
type pendingCreate struct {
	inflight bool
	// carry holds edits made while the create request was in flight.
	carry model.NotePatch
	// deleted is set when the placeholder is removed while in flight.
	deleted bool
}

// Engine is the client sync engine for one session. It is safe for
// concurrent use.
type Engine struct {
	store  store.Store
	conn   transport.Conn
	clock  clock.Clock
	log    *slog.Logger
	opts   Options
	timers *debounce.Scheduler

	peers    *presence.Tracker
	reporter *presence.Reporter

	mu        sync.Mutex
	notes     []*model.Note
	updates   map[string]*pendingUpdate
	creates   map[string]*pendingCreate
	clearing  bool
	userCount int
	// horizon is the newest point already reflected in notes: the start of
	// the last successful load or the newest live note event merged.
	horizon time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns an Engine committing to s and broadcasting through conn.
// Call Start to load the board and open the connection.
func New(s store.Store, conn transport.Conn, opts Options) *Engine {
	if opts.CreateDelay <= 0 {
		opts.CreateDelay = DefaultCreateDelay
	}
	if opts.UpdateDelay <= 0 {
		opts.UpdateDelay = DefaultUpdateDelay
	}
	if opts.ClearDelay <= 0 {
		opts.ClearDelay = DefaultClearDelay
	}
	if opts.CursorTTL <= 0 {
		opts.CursorTTL = presence.DefaultTTL
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = presence.DefaultSweepInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	c := clock.OrReal(opts.Clock)
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		store:   s,
		conn:    conn,
		clock:   c,
		log:     opts.Logger.With("session", conn.SessionID()),
		opts:    opts,
		timers:  debounce.New(c),
		peers:   presence.New(c),
		updates: make(map[string]*pendingUpdate),
		creates: make(map[string]*pendingCreate),
		ctx:     ctx,
		cancel:  cancel,
	}
	e.reporter = presence.NewReporter(conn.SessionID(), opts.ReportInterval, c, e.emitCursor)
	return e
}

// Start loads the board from the store, opens the transport and begins
// merging inbound events. A failed initial load is returned; the engine is
// not started in that case.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.Resync(ctx); err != nil {
		return err
	}
	if err := e.conn.Open(e.ctx); err != nil {
		return err
	}
	e.peers.StartReaper(&presence.ReaperConfig{
		TTL:           e.opts.CursorTTL,
		SweepInterval: e.opts.SweepInterval,
		OnExpire:      func(string) { e.changed() },
	})

	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		e.eventLoop()
	}()
	go func() {
		defer e.wg.Done()
		e.statusLoop()
	}()
	return nil
}

// Flush commits every pending change now instead of waiting out its delay,
// broadcasting each confirmed change as usual. It returns once nothing is
// pending or committing, or with ctx's error if ctx ends first. Commit
// failures are reported to OnError.
func (e *Engine) Flush(ctx context.Context) error {
	done := make(chan int, 1)
	go func() { done <- e.timers.Flush() }()
	select {
	case n := <-done:
		e.log.Debug("flushed pending commits", "count", n)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels pending commits, closes the transport and waits for the
// engine's goroutines. Uncommitted edits are discarded; call Flush first
// to keep them.
func (e *Engine) Close() error {
	e.timers.CancelAll()
	e.cancel()
	err := e.conn.Close()
	e.peers.Stop()
	e.wg.Wait()
	return err
}

func (e *Engine) eventLoop() {
	for ev := range e.conn.Events() {
		e.Merge(ev)
	}
}

// statusLoop resynchronizes with the store each time the transport comes
// back after a disconnect, since events missed in between are gone.
func (e *Engine) statusLoop() {
	var wasConnected bool
	for st := range e.conn.StatusChanges() {
		e.log.Debug("transport status", "status", st)
		if st == transport.Connected {
			if wasConnected {
				if err := e.Resync(e.ctx); err != nil && e.ctx.Err() == nil {
					e.log.Warn("resync failed", "error", err)
				}
			}
			wasConnected = true
		}
		e.changed()
	}
}

// --- accessors ---

// Notes returns a copy of the local view in display order.
func (e *Engine) Notes() []*model.Note {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*model.Note, len(e.notes))
	for i, n := range e.notes {
		out[i] = n.Clone()
	}
	return out
}

// Note returns a copy of one note from the local view.
func (e *Engine) Note(id string) (*model.Note, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i := e.indexLocked(id); i >= 0 {
		return e.notes[i].Clone(), true
	}
	return nil, false
}

// IsPending reports whether id has local changes not yet confirmed by the
// store. Placeholders are pending until their create resolves.
func (e *Engine) IsPending(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isPendingLocked(id)
}

// UserCount returns the latest live session count announced by the server.
func (e *Engine) UserCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.userCount
}

// Status returns the transport status.
func (e *Engine) Status() transport.Status { return e.conn.Status() }

// Peers returns the other sessions' live cursors.
func (e *Engine) Peers() []presence.Entry { return e.peers.Snapshot() }

// SessionID returns this session's id.
func (e *Engine) SessionID() string { return e.conn.SessionID() }

// --- helpers ---

func (e *Engine) indexLocked(id string) int {
	return slices.IndexFunc(e.notes, func(n *model.Note) bool { return n.ID == id })
}

func (e *Engine) removeLocked(id string) bool {
	i := e.indexLocked(id)
	if i < 0 {
		return false
	}
	e.notes = slices.Delete(e.notes, i, i+1)
	return true
}

func (e *Engine) isPendingLocked(id string) bool {
	if _, ok := e.updates[id]; ok {
		return true
	}
	_, ok := e.creates[id]
	return ok
}

func (e *Engine) changed() {
	if e.opts.OnChange != nil {
		e.opts.OnChange()
	}
}

func (e *Engine) fail(op Op, id string, err error) {
	e.log.Warn("store commit failed", "op", op, "id", id, "error", err)
	if e.opts.OnError != nil {
		e.opts.OnError(op, id, err)
	}
}

// broadcast sends a confirmed change to the other sessions. Transport
// failures are logged; the store already holds the change.
func (e *Engine) broadcast(p model.Payload) {
	if err := e.conn.Send(e.ctx, model.NewEvent(e.conn.SessionID(), p)); err != nil {
		e.log.Warn("broadcast failed", "type", p.EventType(), "error", err)
	}
}
