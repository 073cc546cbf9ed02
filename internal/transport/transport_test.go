package transport

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/alfredjeanlab/corkboard/internal/broker"
	"github.com/alfredjeanlab/corkboard/internal/model"
	"github.com/alfredjeanlab/corkboard/internal/server"
	"github.com/alfredjeanlab/corkboard/internal/store/memory"
)

func startBoard(t *testing.T) *httptest.Server {
	t.Helper()
	b := broker.New(broker.Options{})
	srv := server.NewBoardServer(memory.New(), b, server.Options{})
	ts := httptest.NewServer(srv.NewHTTPHandler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
		b.Stop()
	})
	return ts
}

func waitStatus(t *testing.T, c Conn, want Status) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if c.Status() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("status = %s, want %s", c.Status(), want)
}

// nextEvent returns the next inbound event of type want, skipping others.
func nextEvent(t *testing.T, c Conn, want model.EventType) *model.Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-c.Events():
			if !ok {
				t.Fatalf("events closed waiting for %s", want)
			}
			if ev.Type() == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
			return nil
		}
	}
}

func TestNewBackOff_Schedule(t *testing.T) {
	bo := NewBackOff()
	want := []time.Duration{1, 2, 4, 8, 16, 30, 30, 30, 30, 30}
	for i, w := range want {
		if got := bo.NextBackOff(); got != w*time.Second {
			t.Fatalf("attempt %d: backoff = %v, want %v", i+1, got, w*time.Second)
		}
	}
	if got := bo.NextBackOff(); got != backoff.Stop {
		t.Fatalf("after %d attempts: backoff = %v, want Stop", MaxRetries, got)
	}

	bo.Reset()
	if got := bo.NextBackOff(); got != time.Second {
		t.Fatalf("after reset: backoff = %v, want 1s", got)
	}
}

func TestStatusString(t *testing.T) {
	for st, want := range map[Status]string{
		Disconnected: "disconnected",
		Connecting:   "connecting",
		Connected:    "connected",
		Offline:      "offline",
	} {
		if st.String() != want {
			t.Errorf("%d.String() = %q, want %q", st, st.String(), want)
		}
	}
}

func TestDispatch_FiltersSelfAndPing(t *testing.T) {
	s := newSupervisor("user_me", Options{}, nil)
	ctx := context.Background()

	s.dispatch(ctx, model.NewEvent("user_me", model.NoteDeleted{ID: "mine"}))
	s.dispatch(ctx, model.NewEvent("", model.Ping{}))
	s.dispatch(ctx, model.NewEvent("", model.UserCount{Count: 4}))
	s.dispatch(ctx, model.NewEvent("user_other", model.NoteDeleted{ID: "theirs"}))

	if got := s.UserCount(); got != 4 {
		t.Errorf("UserCount = %d, want 4", got)
	}
	if ev := <-s.events; ev.Type() != model.EventUserCount {
		t.Fatalf("first event = %s, want user_count", ev.Type())
	}
	ev := <-s.events
	if d, ok := ev.Payload.(model.NoteDeleted); !ok || d.ID != "theirs" {
		t.Fatalf("second event = %+v, want the other session's delete", ev)
	}
	select {
	case ev := <-s.events:
		t.Fatalf("unexpected event %s", ev.Type())
	default:
	}
}

func TestWebSocket_FanOutBetweenSessions(t *testing.T) {
	ts := startBoard(t)
	ctx := context.Background()

	a, err := NewWebSocket(ts.URL, "user_a", Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := NewWebSocket(ts.URL, "user_b", Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if err := a.Open(ctx); err != nil {
		t.Fatal(err)
	}
	if err := b.Open(ctx); err != nil {
		t.Fatal(err)
	}
	waitStatus(t, a, Connected)
	waitStatus(t, b, Connected)
	nextEvent(t, b, model.EventWelcome)

	if err := a.Send(ctx, model.NewEvent("", model.NoteDeleted{ID: "n1"})); err != nil {
		t.Fatalf("Send: %v", err)
	}
	ev := nextEvent(t, b, model.EventDeleted)
	if ev.Origin != "user_a" {
		t.Errorf("origin = %q, want user_a", ev.Origin)
	}
}

func TestWebSocket_QueuesUntilConnected(t *testing.T) {
	ts := startBoard(t)
	ctx := context.Background()

	observer := NewSSE(ts.URL, "user_obs", Options{})
	defer observer.Close()
	if err := observer.Open(ctx); err != nil {
		t.Fatal(err)
	}
	waitStatus(t, observer, Connected)

	w, err := NewWebSocket(ts.URL, "user_w", Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	for _, id := range []string{"q1", "q2", "q3"} {
		if err := w.Send(ctx, model.NewEvent("", model.NoteDeleted{ID: id})); err != nil {
			t.Fatalf("Send before open: %v", err)
		}
	}
	if w.Pending() != 3 {
		t.Fatalf("Pending = %d, want 3", w.Pending())
	}

	if err := w.Open(ctx); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"q1", "q2", "q3"} {
		got := nextEvent(t, observer, model.EventDeleted).Payload.(model.NoteDeleted)
		if got.ID != want {
			t.Fatalf("flushed %q, want %q", got.ID, want)
		}
	}
	if w.Pending() != 0 {
		t.Errorf("Pending after flush = %d", w.Pending())
	}
}

func TestSupervisor_GoesOfflineAfterRetries(t *testing.T) {
	ts := httptest.NewServer(nil)
	url := ts.URL
	ts.Close()

	w, err := NewWebSocket(url, "user_x", Options{
		BackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2)
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitStatus(t, w, Offline)

	if _, ok := <-w.Events(); ok {
		t.Fatal("events channel still open after going offline")
	}
	if err := w.Send(context.Background(), model.NewEvent("", model.NotesCleared{})); err != ErrOffline {
		t.Fatalf("Send while offline = %v, want ErrOffline", err)
	}
}

func TestClose(t *testing.T) {
	ts := startBoard(t)
	s := NewSSE(ts.URL, "user_c", Options{})
	if err := s.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitStatus(t, s, Connected)

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if s.Status() != Disconnected {
		t.Errorf("status after close = %s", s.Status())
	}
	if err := s.Send(context.Background(), model.NewEvent("", model.NotesCleared{})); err != ErrClosed {
		t.Errorf("Send after close = %v, want ErrClosed", err)
	}
	if err := s.Open(context.Background()); err != ErrClosed {
		t.Errorf("Open after close = %v, want ErrClosed", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

func TestSSE_WelcomeAndSubmit(t *testing.T) {
	ts := startBoard(t)
	ctx := context.Background()

	a := NewSSE(ts.URL, "user_a", Options{})
	defer a.Close()
	b := NewSSE(ts.URL, "user_b", Options{})
	defer b.Close()
	if err := a.Open(ctx); err != nil {
		t.Fatal(err)
	}
	waitStatus(t, a, Connected)
	nextEvent(t, a, model.EventWelcome)
	if err := b.Open(ctx); err != nil {
		t.Fatal(err)
	}
	waitStatus(t, b, Connected)
	nextEvent(t, b, model.EventWelcome)
	if b.UserCount() != 2 {
		t.Errorf("b UserCount = %d, want 2", b.UserCount())
	}

	if err := b.Send(ctx, model.NewEvent("", model.CursorMoved{Cursor: model.Cursor{X: 1, Y: 2}})); err != nil {
		t.Fatalf("Send: %v", err)
	}
	ev := nextEvent(t, a, model.EventCursor)
	if cm := ev.Payload.(model.CursorMoved); cm.Cursor.SessionID != "user_b" {
		t.Errorf("cursor session = %q, want user_b", cm.Cursor.SessionID)
	}
}

func TestSSE_ReadStreamMultiline(t *testing.T) {
	s := newSupervisor("user_me", Options{}, nil)
	sse := &SSE{supervisor: s}
	stream := ": comment\n" +
		"event: message\n" +
		"data: {\"type\":\"deleted\",\n" +
		"data: \"data\":{\"id\":\"n7\"}}\n" +
		"\n" +
		"data: not json\n\n"

	err := sse.readStream(context.Background(), strings.NewReader(stream))
	if err != errStreamEnded {
		t.Fatalf("readStream = %v, want errStreamEnded", err)
	}
	ev := <-s.events
	if d, ok := ev.Payload.(model.NoteDeleted); !ok || d.ID != "n7" {
		t.Fatalf("event = %+v", ev)
	}
	select {
	case ev := <-s.events:
		t.Fatalf("malformed frame delivered: %+v", ev)
	default:
	}
}
