// Package broker fans change events out to every live channel on a board.
//
// The broker keeps a bounded history of recent note events that is replayed
// to each newly registered channel, announces the live channel count after
// every membership change, and removes channels whose delivery fails.
package broker

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/corkboard/internal/clock"
	"github.com/alfredjeanlab/corkboard/internal/model"
)

// DefaultHistorySize is the number of recent events replayed to new
// subscribers.
const DefaultHistorySize = 100

// ErrSlowConsumer is returned by Deliver implementations whose buffer is full.
var ErrSlowConsumer = errors.New("subscriber buffer full")

// Subscriber is one live push channel. Deliver must not block: a channel
// that cannot accept an event right now should return an error, after which
// the broker drops it. Deliver is called with the broker's lock held and
// must not call back into the broker.
type Subscriber interface {
	SessionID() string
	Deliver(ev *model.Event) error
}

// Options configures a Broker. Zero values select the defaults.
type Options struct {
	HistorySize int
	Clock       clock.Clock
	Logger      *slog.Logger
}

// Broker is the fan-out hub. It is safe for concurrent use.
type Broker struct {
	clock clock.Clock
	log   *slog.Logger

	mu   sync.Mutex
	subs []Subscriber

	// Ring buffer of replayable events, guarded by mu.
	ring    []*model.Event
	ringPos int
	ringLen int

	relay *relayLink

	keepaliveStop chan struct{}
	keepaliveDone chan struct{}
}

// New returns an empty broker.
func New(opts Options) *Broker {
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Broker{
		clock: clock.OrReal(opts.Clock),
		log:   opts.Logger,
		ring:  make([]*model.Event, opts.HistorySize),
	}
}

// Register adds sub, replays the history to it oldest first as copies marked
// Replayed, then announces the new channel count to everyone.
func (b *Broker) Register(sub Subscriber) {
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	var failed bool
	for _, ev := range b.historyLocked() {
		cp := ev.Clone()
		cp.Replayed = true
		if err := sub.Deliver(cp); err != nil {
			b.log.Warn("broker: replay failed, dropping subscriber",
				"session", sub.SessionID(), "error", err)
			b.removeLocked(sub)
			failed = true
			break
		}
	}
	b.mu.Unlock()

	if !failed {
		b.log.Debug("broker: subscriber registered", "session", sub.SessionID())
	}
	b.announceCount()
}

// Unregister removes sub and announces the new channel count. Removing a
// subscriber that is not registered only re-announces the count.
func (b *Broker) Unregister(sub Subscriber) {
	b.mu.Lock()
	b.removeLocked(sub)
	b.mu.Unlock()
	b.announceCount()
}

// Publish timestamps ev if needed, records it in the history when it is a
// note event, relays it to peer instances, and delivers it to every
// subscriber except the ones whose session equals ev.Origin. Delivery
// failures remove the failing subscribers; they never reach the caller.
func (b *Broker) Publish(ev *model.Event) {
	ev = b.prepare(ev)
	if ev == nil {
		return
	}
	b.dispatch(ev)
	if b.relay != nil {
		b.relay.forward(ev)
	}
}

// publishFromRelay fans out an event received from another instance
// without relaying it again.
func (b *Broker) publishFromRelay(ev *model.Event) {
	if ev = b.prepare(ev); ev != nil {
		b.dispatch(ev)
	}
}

func (b *Broker) prepare(ev *model.Event) *model.Event {
	if ev == nil || ev.Payload == nil {
		return nil
	}
	ev = ev.Clone()
	ev.Replayed = false
	ev.Stamp(b.clock.Now())
	return ev
}

func (b *Broker) dispatch(ev *model.Event) {
	b.mu.Lock()
	if ev.Replayable() {
		b.appendLocked(ev)
	}
	removed := b.fanoutLocked(ev)
	b.mu.Unlock()

	if removed > 0 {
		b.announceCount()
	}
}

// fanoutLocked delivers ev to a snapshot of the subscriber set and removes
// the ones that failed. It returns how many were removed.
func (b *Broker) fanoutLocked(ev *model.Event) int {
	snapshot := make([]Subscriber, len(b.subs))
	copy(snapshot, b.subs)

	var failed []Subscriber
	for _, sub := range snapshot {
		if ev.Origin != "" && sub.SessionID() == ev.Origin {
			continue
		}
		if err := sub.Deliver(ev); err != nil {
			b.log.Warn("broker: delivery failed, dropping subscriber",
				"session", sub.SessionID(), "type", ev.Type(), "error", err)
			failed = append(failed, sub)
		}
	}
	for _, sub := range failed {
		b.removeLocked(sub)
	}
	return len(failed)
}

// announceCount sends the current channel count to every subscriber,
// repeating while deliveries keep failing.
func (b *Broker) announceCount() {
	for {
		b.mu.Lock()
		ev := model.NewEvent("", model.UserCount{Count: len(b.subs)})
		ev.Stamp(b.clock.Now())
		removed := b.fanoutLocked(ev)
		b.mu.Unlock()
		if removed == 0 {
			return
		}
	}
}

func (b *Broker) removeLocked(sub Subscriber) {
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

func (b *Broker) appendLocked(ev *model.Event) {
	size := len(b.ring)
	b.ring[b.ringPos] = ev
	b.ringPos = (b.ringPos + 1) % size
	if b.ringLen < size {
		b.ringLen++
	}
}

func (b *Broker) historyLocked() []*model.Event {
	size := len(b.ring)
	out := make([]*model.Event, 0, b.ringLen)
	start := b.ringPos - b.ringLen
	if start < 0 {
		start += size
	}
	for i := range b.ringLen {
		out = append(out, b.ring[(start+i)%size])
	}
	return out
}

// History returns the retained events, oldest first.
func (b *Broker) History() []*model.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.historyLocked()
}

// Count returns the number of registered subscribers.
func (b *Broker) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// StartKeepalive pings every subscriber each interval; subscribers whose
// ping fails are removed. Call Stop to end it.
func (b *Broker) StartKeepalive(interval time.Duration) {
	if interval <= 0 || b.keepaliveStop != nil {
		return
	}
	b.keepaliveStop = make(chan struct{})
	b.keepaliveDone = make(chan struct{})
	ticker := b.clock.NewTicker(interval)

	go func() {
		defer close(b.keepaliveDone)
		defer ticker.Stop()
		for {
			select {
			case <-b.keepaliveStop:
				return
			case <-ticker.C():
				b.Ping()
			}
		}
	}()
	b.log.Info("broker: keepalive started", "interval", interval)
}

// Ping sends one keep-alive to every subscriber.
func (b *Broker) Ping() {
	ev := model.NewEvent("", model.Ping{})
	ev.Stamp(b.clock.Now())
	b.mu.Lock()
	removed := b.fanoutLocked(ev)
	b.mu.Unlock()
	if removed > 0 {
		b.announceCount()
	}
}

// Stop shuts down the keepalive loop and the relay bridge.
func (b *Broker) Stop() {
	if b.keepaliveStop != nil {
		close(b.keepaliveStop)
		<-b.keepaliveDone
		b.keepaliveStop = nil
		b.keepaliveDone = nil
	}
	if b.relay != nil {
		b.relay.close()
	}
}
