package relay

import (
	"context"
	"sync"
)

// Noop is a Publisher and Subscriber that does nothing (used when no relay
// is configured).
type Noop struct{}

func (Noop) Publish(context.Context, string, []byte) error { return nil }

// Subscribe returns a channel that is never written to. The cancel function
// closes it.
func (Noop) Subscribe(string) (<-chan []byte, func(), error) {
	ch := make(chan []byte)
	var once sync.Once
	return ch, func() { once.Do(func() { close(ch) }) }, nil
}

func (Noop) Close() error { return nil }
