package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alfredjeanlab/corkboard/internal/model"
	"github.com/alfredjeanlab/corkboard/internal/relay"
)

const (
	relayQueueSize      = 256
	relayPublishTimeout = 5 * time.Second
)

// relayLink bridges the broker to a cross-instance relay.
type relayLink struct {
	pub      relay.Publisher
	subject  string
	instance string

	out    chan *model.Event
	cancel func()
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// AttachRelay connects the broker to peer instances. Events published
// locally (except system events) are sent to subject tagged with instance;
// events from other instances on subject are fanned out locally without
// being relayed again. Must be called before the broker is shared.
func (b *Broker) AttachRelay(pub relay.Publisher, sub relay.Subscriber, subject, instance string) error {
	if b.relay != nil {
		return errors.New("broker: relay already attached")
	}
	if subject == "" {
		subject = relay.DefaultSubject
	}
	in, cancel, err := sub.Subscribe(subject)
	if err != nil {
		return fmt.Errorf("broker: subscribing to relay: %w", err)
	}

	link := &relayLink{
		pub:      pub,
		subject:  subject,
		instance: instance,
		out:      make(chan *model.Event, relayQueueSize),
		cancel:   cancel,
	}
	b.relay = link

	link.wg.Add(2)
	go func() {
		defer link.wg.Done()
		for ev := range link.out {
			data, err := relay.EncodeEnvelope(instance, ev)
			if err != nil {
				b.log.Warn("broker: encoding relay envelope", "type", ev.Type(), "error", err)
				continue
			}
			ctx, done := context.WithTimeout(context.Background(), relayPublishTimeout)
			if err := pub.Publish(ctx, subject, data); err != nil {
				b.log.Warn("broker: relay publish failed", "subject", subject, "error", err)
			}
			done()
		}
	}()
	go func() {
		defer link.wg.Done()
		for data := range in {
			from, ev, err := relay.DecodeEnvelope(data)
			if err != nil {
				b.log.Warn("broker: dropping relay message", "error", err)
				continue
			}
			if from == instance {
				continue
			}
			b.publishFromRelay(ev)
		}
	}()

	b.log.Info("broker: relay attached", "subject", subject, "instance", instance)
	return nil
}

func (l *relayLink) forward(ev *model.Event) {
	if ev.Topic() == model.TopicSystem {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.out <- ev:
	default:
		// Relay is lagging; local delivery already happened.
	}
}

func (l *relayLink) close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	close(l.out)
	l.mu.Unlock()

	l.cancel()
	l.wg.Wait()
}
