package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alfredjeanlab/corkboard/internal/model"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 64 << 10

	// maxOutbox bounds the events held while disconnected.
	maxOutbox = 1024
)

// WebSocket is the duplex binding. Events sent while disconnected are queued
// and flushed in order as soon as the next connection is established.
type WebSocket struct {
	*supervisor

	url    string
	dialer *websocket.Dialer

	// mu guards conn and outbox and serializes writes to conn.
	mu     sync.Mutex
	conn   *websocket.Conn
	outbox []*model.Event
}

var _ Conn = (*WebSocket)(nil)

// NewWebSocket returns a duplex connection to the board at baseURL
// (e.g. "http://localhost:8080") for the given session.
func NewWebSocket(baseURL, sessionID string, opts Options) (*WebSocket, error) {
	u, err := wsURL(baseURL, sessionID)
	if err != nil {
		return nil, err
	}
	w := &WebSocket{
		url: u,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
	w.supervisor = newSupervisor(sessionID, opts, w.connect)
	return w, nil
}

func wsURL(baseURL, sessionID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parsing server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	u.Path += "/v1/ws"
	u.RawQuery = url.Values{"session": {sessionID}}.Encode()
	return u.String(), nil
}

// Send writes ev now if connected, otherwise queues it. A failed write
// queues the event for the next connection.
func (w *WebSocket) Send(_ context.Context, ev *model.Event) error {
	if w.isClosed() {
		return ErrClosed
	}
	out := w.tag(ev)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn != nil {
		err := writeEvent(w.conn, out)
		if err == nil {
			return nil
		}
		slog.Warn("websocket write failed, queueing", "session", w.session, "error", err)
		w.conn.Close()
		w.conn = nil
	}
	w.enqueueLocked(out)
	if w.Status() == Offline {
		return ErrOffline
	}
	return nil
}

func (w *WebSocket) enqueueLocked(ev *model.Event) {
	if len(w.outbox) >= maxOutbox {
		slog.Warn("websocket outbox full, dropping oldest", "session", w.session)
		w.outbox = w.outbox[1:]
	}
	w.outbox = append(w.outbox, ev)
}

// Pending returns the number of queued outgoing events.
func (w *WebSocket) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.outbox)
}

func (w *WebSocket) connect(ctx context.Context, connected func()) error {
	conn, _, err := w.dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", w.url, err)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := w.attach(conn); err != nil {
		conn.Close()
		return err
	}
	connected()

	done := make(chan struct{})
	go w.pingLoop(conn, done)
	err = w.readLoop(ctx, conn)
	close(done)

	w.mu.Lock()
	if w.conn == conn {
		w.conn = nil
	}
	w.mu.Unlock()
	conn.Close()
	return err
}

// attach flushes the outbox onto conn and makes it the live connection.
// Holding mu throughout keeps new sends behind the backlog.
func (w *WebSocket) attach(conn *websocket.Conn) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for len(w.outbox) > 0 {
		if err := writeEvent(conn, w.outbox[0]); err != nil {
			return fmt.Errorf("flushing outbox: %w", err)
		}
		w.outbox = w.outbox[1:]
	}
	w.outbox = nil
	w.conn = conn
	return nil
}

func (w *WebSocket) readLoop(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("reading: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		ev, err := model.DecodeEvent(data)
		if err != nil {
			slog.Warn("dropping malformed event", "session", w.session, "error", err)
			continue
		}
		w.dispatch(ctx, ev)
	}
}

func (w *WebSocket) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			w.mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
			w.mu.Unlock()
			if err != nil {
				conn.Close()
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, ev *model.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
