package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alfredjeanlab/corkboard/internal/idgen"
	"github.com/alfredjeanlab/corkboard/internal/model"
)

const (
	wsWriteWait      = 10 * time.Second
	wsMaxMessageSize = 64 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWebSocket handles GET /v1/ws (duplex channel). Inbound events are
// stamped with the connection's session id before being published.
func (s *BoardServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	session := r.URL.Query().Get("session")
	if session == "" {
		session = idgen.Session()
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	if err := writeWSEvent(conn, s.welcome(session)); err != nil {
		conn.Close()
		return
	}

	sub := newChannelSub(session, s.opts.ChannelBuffer)
	done := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.wsWritePump(conn, sub, done)
	}()

	s.broker.Register(sub)
	s.announceJoin(session)
	slog.Info("websocket opened", "session", session, "remote", r.RemoteAddr)

	s.wsReadPump(conn, session)

	sub.close()
	s.broker.Unregister(sub)
	close(done)
	<-writerDone
	conn.Close()

	s.Presence.Remove(session)
	s.announceLeave(session)
	slog.Info("websocket closed", "session", session)
}

// wsReadPump reads events until the connection fails. Malformed or
// server-only events are logged and skipped.
func (s *BoardServer) wsReadPump(conn *websocket.Conn, session string) {
	pongWait := 2 * s.opts.PingInterval
	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read failed", "session", session, "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		ev, err := model.DecodeEvent(data)
		if err != nil {
			slog.Warn("dropping malformed event", "session", session, "error", err)
			continue
		}
		if !acceptsFromClient(ev) {
			slog.Warn("dropping server-only event", "session", session, "type", ev.Type())
			continue
		}
		ev.Origin = session
		s.ingest(ev)
	}
}

// wsWritePump drains the subscriber queue onto the socket and sends control
// pings. It returns when done is closed or a write fails.
func (s *BoardServer) wsWritePump(conn *websocket.Conn, sub *channelSub, done <-chan struct{}) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteWait))
			return
		case ev := <-sub.ch:
			if err := writeWSEvent(conn, ev); err != nil {
				sub.close()
				// Unblock the reader so the handler can clean up.
				conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				sub.close()
				conn.Close()
				return
			}
		}
	}
}

func writeWSEvent(conn *websocket.Conn, ev *model.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
