package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/alfredjeanlab/corkboard/internal/client"
	"github.com/alfredjeanlab/corkboard/internal/model"
)

// SSE is the push+submit binding: a server-sent event stream for inbound
// events and one POST per outgoing event. Submits do not depend on the
// stream and are never queued.
type SSE struct {
	*supervisor

	streamURL string
	http      *http.Client
	submit    *client.HTTPClient
}

var _ Conn = (*SSE)(nil)

var errStreamEnded = errors.New("stream ended")

// NewSSE returns a push+submit connection to the board at baseURL.
func NewSSE(baseURL, sessionID string, opts Options) *SSE {
	baseURL = strings.TrimRight(baseURL, "/")
	s := &SSE{
		streamURL: baseURL + "/v1/realtime?" + url.Values{"session": {sessionID}}.Encode(),
		http:      &http.Client{},
		submit:    client.NewHTTPClient(baseURL),
	}
	s.supervisor = newSupervisor(sessionID, opts, s.connect)
	return s
}

// Send posts ev to the submit endpoint. The error reports whether the
// event reached the broker.
func (s *SSE) Send(ctx context.Context, ev *model.Event) error {
	if s.isClosed() {
		return ErrClosed
	}
	if _, err := s.submit.Submit(ctx, s.tag(ev)); err != nil {
		return fmt.Errorf("submitting %s event: %w", ev.Type(), err)
	}
	return nil
}

func (s *SSE) connect(ctx context.Context, connected func()) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.streamURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("opening stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("opening stream: HTTP %d", resp.StatusCode)
	}
	connected()
	return s.readStream(ctx, resp.Body)
}

// readStream parses the event stream. Multi-line data fields are joined
// with newlines; comment lines and other fields are ignored.
func (s *SSE) readStream(ctx context.Context, body io.Reader) error {
	r := bufio.NewReader(body)
	var data bytes.Buffer
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return errStreamEnded
			}
			return fmt.Errorf("reading stream: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if data.Len() > 0 {
				s.handleFrame(ctx, data.Bytes())
				data.Reset()
			}
			continue
		}
		if v, ok := strings.CutPrefix(line, "data:"); ok {
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(v, " "))
		}
	}
}

func (s *SSE) handleFrame(ctx context.Context, frame []byte) {
	ev, err := model.DecodeEvent(frame)
	if err != nil {
		slog.Warn("dropping malformed event", "session", s.session, "error", err)
		return
	}
	s.dispatch(ctx, ev)
}
