// Package server exposes the board over HTTP (notes API, realtime push and
// submit, WebSocket) and gRPC (health), fanning events out through a broker.
package server

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/alfredjeanlab/corkboard/internal/broker"
	"github.com/alfredjeanlab/corkboard/internal/clock"
	"github.com/alfredjeanlab/corkboard/internal/model"
	"github.com/alfredjeanlab/corkboard/internal/presence"
	"github.com/alfredjeanlab/corkboard/internal/store"
)

// Options tunes a BoardServer. Zero values select the defaults.
type Options struct {
	// SubmitRate and SubmitBurst bound POST /v1/realtime per client IP.
	SubmitRate  rate.Limit
	SubmitBurst int

	// ChannelBuffer is the per-channel outbound queue length.
	ChannelBuffer int

	// PingInterval is how often WebSocket control pings are sent.
	PingInterval time.Duration

	Clock clock.Clock
}

const (
	defaultSubmitRate    = rate.Limit(50)
	defaultSubmitBurst   = 100
	defaultChannelBuffer = 256
	defaultPingInterval  = 30 * time.Second
)

// BoardServer serves one board.
type BoardServer struct {
	store    store.Store
	broker   *broker.Broker
	Presence *presence.Tracker
	clock    clock.Clock
	started  time.Time
	opts     Options
	limiter  *limiterStore
}

// NewBoardServer returns a BoardServer backed by the given store and broker.
func NewBoardServer(s store.Store, b *broker.Broker, opts Options) *BoardServer {
	if opts.SubmitRate == 0 {
		opts.SubmitRate = defaultSubmitRate
	}
	if opts.SubmitBurst == 0 {
		opts.SubmitBurst = defaultSubmitBurst
	}
	if opts.ChannelBuffer == 0 {
		opts.ChannelBuffer = defaultChannelBuffer
	}
	if opts.PingInterval == 0 {
		opts.PingInterval = defaultPingInterval
	}
	c := clock.OrReal(opts.Clock)
	return &BoardServer{
		store:    s,
		broker:   b,
		Presence: presence.New(c),
		clock:    c,
		started:  c.Now(),
		opts:     opts,
		limiter:  newLimiterStore(opts.SubmitRate, opts.SubmitBurst, 10*time.Minute),
	}
}

// StartPresence launches the cursor reaper. Expired sessions are announced
// to the board as user_leave events.
func (s *BoardServer) StartPresence(ttl, sweep time.Duration) {
	s.Presence.StartReaper(&presence.ReaperConfig{
		TTL:           ttl,
		SweepInterval: sweep,
		OnExpire:      s.announceLeave,
	})
}

// Close stops the background goroutines owned by the server.
func (s *BoardServer) Close() {
	s.Presence.Stop()
	s.limiter.stop()
}

// ingest routes an inbound client event: cursor positions refresh presence,
// and everything is published to the board.
func (s *BoardServer) ingest(ev *model.Event) {
	if cm, ok := ev.Payload.(model.CursorMoved); ok {
		if ev.Origin != "" {
			cm.Cursor.SessionID = ev.Origin
		}
		if cm.Cursor.Color == "" {
			cm.Cursor.Color = presence.ColorFor(cm.Cursor.SessionID)
		}
		ev.Payload = cm
		s.Presence.Record(cm.Cursor)
	}
	s.broker.Publish(ev)
}

func (s *BoardServer) announceJoin(sessionID string) {
	s.broker.Publish(model.NewEvent(sessionID, model.UserJoined{
		User: model.User{ID: sessionID, Color: presence.ColorFor(sessionID)},
	}))
}

func (s *BoardServer) announceLeave(sessionID string) {
	s.broker.Publish(model.NewEvent(sessionID, model.UserLeft{
		User: model.User{ID: sessionID, Color: presence.ColorFor(sessionID)},
	}))
}

// welcome builds the first event a new channel receives.
func (s *BoardServer) welcome(sessionID string) *model.Event {
	ev := model.NewEvent("", model.Welcome{
		SessionID: sessionID,
		Color:     presence.ColorFor(sessionID),
		UserCount: s.broker.Count() + 1,
	})
	ev.Stamp(s.clock.Now())
	return ev
}

// acceptsFromClient reports whether clients may submit events of this type.
// Server-originated system events are rejected.
func acceptsFromClient(ev *model.Event) bool {
	return ev.Topic() != model.TopicSystem
}

// inputError indicates invalid user input.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }
