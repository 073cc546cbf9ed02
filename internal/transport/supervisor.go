package transport

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/alfredjeanlab/corkboard/internal/clock"
	"github.com/alfredjeanlab/corkboard/internal/model"
)

const (
	eventBuffer  = 256
	statusBuffer = 16
)

// connectFunc runs one connection attempt until it ends. It calls connected
// once the link is established and inbound events can flow.
type connectFunc func(ctx context.Context, connected func()) error

// supervisor owns the reconnect state machine shared by both bindings:
// Disconnected -> Connecting -> Connected -> Disconnected -> ... -> Offline.
type supervisor struct {
	session    string
	clock      clock.Clock
	newBackOff func() backoff.BackOff
	connect    connectFunc

	events  chan *model.Event
	changes chan Status

	status    atomic.Int32
	userCount atomic.Int64

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	closed   bool
	shutdown sync.Once
}

func newSupervisor(session string, opts Options, connect connectFunc) *supervisor {
	if opts.BackOff == nil {
		opts.BackOff = NewBackOff
	}
	return &supervisor{
		session:    session,
		clock:      clock.OrReal(opts.Clock),
		newBackOff: opts.BackOff,
		connect:    connect,
		events:     make(chan *model.Event, eventBuffer),
		changes:    make(chan Status, statusBuffer),
	}
}

func (s *supervisor) SessionID() string            { return s.session }
func (s *supervisor) Events() <-chan *model.Event  { return s.events }
func (s *supervisor) StatusChanges() <-chan Status { return s.changes }
func (s *supervisor) Status() Status               { return Status(s.status.Load()) }
func (s *supervisor) UserCount() int               { return int(s.userCount.Load()) }

// Open starts the supervisor goroutine.
func (s *supervisor) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.cancel != nil {
		return errors.New("transport already open")
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx)
	return nil
}

// Close stops the supervisor and waits for it to exit.
func (s *supervisor) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		s.finish(Disconnected)
		return nil
	}
	cancel()
	<-done
	return nil
}

func (s *supervisor) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *supervisor) run(ctx context.Context) {
	defer close(s.done)

	bo := s.newBackOff()
	for {
		s.setStatus(Connecting)
		err := s.connect(ctx, func() {
			bo.Reset()
			s.setStatus(Connected)
		})
		if ctx.Err() != nil {
			s.finish(Disconnected)
			return
		}
		s.setStatus(Disconnected)

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			slog.Warn("transport giving up", "session", s.session, "error", err)
			s.finish(Offline)
			return
		}
		slog.Info("transport reconnecting", "session", s.session, "in", wait, "error", err)
		if !s.sleep(ctx, wait) {
			s.finish(Disconnected)
			return
		}
	}
}

// sleep waits for d on the supervisor's clock. It reports false if ctx
// ended first.
func (s *supervisor) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	fired := make(chan struct{})
	t := s.clock.AfterFunc(d, func() { close(fired) })
	select {
	case <-fired:
		return true
	case <-ctx.Done():
		t.Stop()
		return false
	}
}

// finish records the terminal status and closes the output channels.
func (s *supervisor) finish(final Status) {
	s.shutdown.Do(func() {
		s.setStatus(final)
		close(s.events)
		close(s.changes)
	})
}

// setStatus records st and publishes it. When the owner is not keeping up
// the oldest unread change is dropped.
func (s *supervisor) setStatus(st Status) {
	if Status(s.status.Swap(int32(st))) == st {
		return
	}
	select {
	case s.changes <- st:
		return
	default:
	}
	select {
	case <-s.changes:
	default:
	}
	select {
	case s.changes <- st:
	default:
	}
}

// dispatch filters one inbound event and hands it to the owner.
func (s *supervisor) dispatch(ctx context.Context, ev *model.Event) {
	if ev.Origin != "" && ev.Origin == s.session {
		return
	}
	switch p := ev.Payload.(type) {
	case model.Ping:
		return
	case model.Welcome:
		s.userCount.Store(int64(p.UserCount))
	case model.UserCount:
		s.userCount.Store(int64(p.Count))
	}
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

// tag returns a copy of ev stamped with the session id.
func (s *supervisor) tag(ev *model.Event) *model.Event {
	out := ev.Clone()
	out.Origin = s.session
	return out
}
