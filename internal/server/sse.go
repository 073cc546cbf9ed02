package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/alfredjeanlab/corkboard/internal/broker"
	"github.com/alfredjeanlab/corkboard/internal/idgen"
	"github.com/alfredjeanlab/corkboard/internal/model"
)

// maxSubmitBytes caps the body of POST /v1/realtime.
const maxSubmitBytes = 64 << 10

// channelSub is a broker subscriber backed by a buffered queue drained by
// the connection's writer.
type channelSub struct {
	session string
	ch      chan *model.Event

	mu     sync.Mutex
	closed bool
}

func newChannelSub(session string, buffer int) *channelSub {
	return &channelSub{session: session, ch: make(chan *model.Event, buffer)}
}

func (c *channelSub) SessionID() string { return c.session }

// Deliver enqueues ev without blocking. A full queue means the peer is not
// keeping up and the channel is reported dead.
func (c *channelSub) Deliver(ev *model.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("channel closed")
	}
	select {
	case c.ch <- ev:
		return nil
	default:
		return broker.ErrSlowConsumer
	}
}

func (c *channelSub) close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// handleRealtimeStream handles GET /v1/realtime (SSE push stream).
// The first frame is a welcome, then the broker's history replay, then live
// events until the client disconnects.
func (s *BoardServer) handleRealtimeStream(w http.ResponseWriter, r *http.Request) {
	// Ensure response supports flushing (required for SSE).
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	session := r.URL.Query().Get("session")
	if session == "" {
		session = idgen.Session()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)

	if err := writeSSEEvent(w, s.welcome(session)); err != nil {
		return
	}
	flusher.Flush()

	sub := newChannelSub(session, s.opts.ChannelBuffer)
	s.broker.Register(sub)
	s.announceJoin(session)
	slog.Info("realtime stream opened", "session", session, "remote", r.RemoteAddr)

	defer func() {
		sub.close()
		s.broker.Unregister(sub)
		s.Presence.Remove(session)
		s.announceLeave(session)
		slog.Info("realtime stream closed", "session", session)
	}()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-sub.ch:
			if err := writeSSEEvent(w, ev); err != nil {
				return
			}
			// Drain whatever else is queued before flushing.
			for n := len(sub.ch); n > 0; n-- {
				if err := writeSSEEvent(w, <-sub.ch); err != nil {
					return
				}
			}
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes a single data frame.
func writeSSEEvent(w io.Writer, ev *model.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Warn("failed to marshal event for SSE", "type", ev.Type(), "error", err)
		return nil
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

// handleRealtimeSubmit handles POST /v1/realtime: one event from a
// push+submit client.
func (s *BoardServer) handleRealtimeSubmit(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.allow(clientIP(r)) {
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxSubmitBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading body")
		return
	}
	if len(body) > maxSubmitBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "event too large")
		return
	}

	ev, err := model.DecodeEvent(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !acceptsFromClient(ev) {
		writeError(w, http.StatusBadRequest, inputError(fmt.Sprintf("event type %q is server-only", ev.Type())).Error())
		return
	}

	s.ingest(ev)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"connections": s.broker.Count(),
	})
}

// clientIP returns the caller's address, preferring the first
// X-Forwarded-For hop when present.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
