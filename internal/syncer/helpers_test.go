package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/corkboard/internal/clock"
	"github.com/alfredjeanlab/corkboard/internal/model"
	"github.com/alfredjeanlab/corkboard/internal/store"
	"github.com/alfredjeanlab/corkboard/internal/store/memory"
	"github.com/alfredjeanlab/corkboard/internal/transport"
)

// fakeConn is an in-process transport.Conn that records sent events.
type fakeConn struct {
	session string
	events  chan *model.Event
	changes chan transport.Status

	mu     sync.Mutex
	sent   []*model.Event
	status transport.Status
	closed bool
}

func newFakeConn(session string) *fakeConn {
	return &fakeConn{
		session: session,
		events:  make(chan *model.Event, 16),
		changes: make(chan transport.Status, 16),
	}
}

func (f *fakeConn) Open(context.Context) error { return nil }

func (f *fakeConn) Send(_ context.Context, ev *model.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := ev.Clone()
	out.Origin = f.session
	f.sent = append(f.sent, out)
	return nil
}

func (f *fakeConn) Events() <-chan *model.Event            { return f.events }
func (f *fakeConn) StatusChanges() <-chan transport.Status { return f.changes }
func (f *fakeConn) SessionID() string                      { return f.session }
func (f *fakeConn) UserCount() int                         { return 0 }

func (f *fakeConn) Status() transport.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
		close(f.changes)
	}
	return nil
}

// sentOf returns the sent events of type t.
func (f *fakeConn) sentOf(t model.EventType) []*model.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Event
	for _, ev := range f.sent {
		if ev.Type() == t {
			out = append(out, ev)
		}
	}
	return out
}

// countingStore wraps the memory store to count and optionally block calls.
type countingStore struct {
	*memory.Store

	mu      sync.Mutex
	creates int
	updates []model.NotePatch
	deletes []string

	// createGate, when set, holds CreateNote until closed. createEntered
	// is signalled when a CreateNote call starts waiting.
	createGate    chan struct{}
	createEntered chan struct{}
}

func newCountingStore() *countingStore {
	return &countingStore{Store: memory.New()}
}

func (c *countingStore) CreateNote(ctx context.Context, in model.NoteInput) (*model.Note, error) {
	c.mu.Lock()
	c.creates++
	gate, entered := c.createGate, c.createEntered
	c.mu.Unlock()
	if gate != nil {
		entered <- struct{}{}
		<-gate
	}
	return c.Store.CreateNote(ctx, in)
}

func (c *countingStore) UpdateNote(ctx context.Context, id string, p model.NotePatch) (*model.Note, error) {
	c.mu.Lock()
	c.updates = append(c.updates, p)
	c.mu.Unlock()
	return c.Store.UpdateNote(ctx, id, p)
}

func (c *countingStore) DeleteNote(ctx context.Context, id string) error {
	c.mu.Lock()
	c.deletes = append(c.deletes, id)
	c.mu.Unlock()
	return c.Store.DeleteNote(ctx, id)
}

func (c *countingStore) updateCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.updates)
}

var _ store.Store = (*countingStore)(nil)

type reportedError struct {
	op  Op
	id  string
	err error
}

type testEngine struct {
	*Engine
	conn   *fakeConn
	clock  *clock.Fake
	store  *countingStore
	errors []reportedError
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	te := &testEngine{
		conn:  newFakeConn("user_me"),
		clock: clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		store: newCountingStore(),
	}
	te.Engine = New(te.store, te.conn, Options{
		Clock: te.clock,
		OnError: func(op Op, id string, err error) {
			te.errors = append(te.errors, reportedError{op, id, err})
		},
	})
	t.Cleanup(func() { te.Close() })
	return te
}

// seed stores notes directly and loads them into the engine.
func (te *testEngine) seed(t *testing.T, contents ...string) []*model.Note {
	t.Helper()
	var out []*model.Note
	for _, c := range contents {
		n, err := te.store.Store.CreateNote(context.Background(), model.NoteInput{Content: c})
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, n)
	}
	if err := te.Resync(context.Background()); err != nil {
		t.Fatal(err)
	}
	return out
}

func (te *testEngine) storeNotes(t *testing.T) []*model.Note {
	t.Helper()
	notes, err := te.store.ListNotes(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return notes
}

var errBoom = errors.New("boom")

func remote(p model.Payload) *model.Event {
	return model.NewEvent("user_other", p)
}
