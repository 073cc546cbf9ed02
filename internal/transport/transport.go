// Package transport connects a client session to a board server.
//
// Two bindings share one contract: WebSocket is a duplex channel that queues
// outgoing events while disconnected, and SSE pairs a server-push stream
// with a submit request per outgoing event. Both run under a supervisor that
// reconnects with exponential backoff and gives up after a bounded number of
// attempts, leaving the connection permanently Offline.
package transport

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/alfredjeanlab/corkboard/internal/clock"
	"github.com/alfredjeanlab/corkboard/internal/model"
)

var (
	// ErrClosed is returned by operations on a closed connection.
	ErrClosed = errors.New("transport closed")
	// ErrOffline is returned when reconnection has been abandoned.
	ErrOffline = errors.New("transport offline")
)

// Status is the connection state reported to the owner.
type Status int32

const (
	Disconnected Status = iota
	Connecting
	Connected
	// Offline is terminal: reconnect attempts are exhausted.
	Offline
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Offline:
		return "offline"
	}
	return "unknown"
}

// Conn is one session's link to the board.
type Conn interface {
	// Open starts the connection supervisor. It returns without waiting
	// for the first connect; watch StatusChanges for progress.
	Open(ctx context.Context) error

	// Send tags ev with the session id and submits it for fan-out.
	Send(ctx context.Context, ev *model.Event) error

	// Events yields inbound events from other sessions. Pings and the
	// session's own events are filtered out. Closed when the connection
	// stops for good.
	Events() <-chan *model.Event

	Status() Status
	StatusChanges() <-chan Status

	SessionID() string

	// UserCount is the latest live channel count announced by the server.
	UserCount() int

	Close() error
}

// Reconnect policy.
const (
	InitialBackOff = time.Second
	MaxBackOff     = 30 * time.Second
	MaxRetries     = 10
)

// NewBackOff returns the reconnect schedule: 1s doubling to a 30s cap, with
// no jitter, stopping after MaxRetries attempts.
func NewBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = InitialBackOff
	b.Multiplier = 2
	b.MaxInterval = MaxBackOff
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, MaxRetries)
}

// Options configures either binding. Zero values select the defaults.
type Options struct {
	// BackOff builds the reconnect schedule. Default: NewBackOff.
	BackOff func() backoff.BackOff

	Clock clock.Clock
}
