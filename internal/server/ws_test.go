package server

import (
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alfredjeanlab/corkboard/internal/model"
)

func dialWS(t *testing.T, env *testEnv, session string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/v1/ws?session=" + session
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn, want model.EventType) *model.Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read waiting for %s: %v", want, err)
		}
		ev, err := model.DecodeEvent(data)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if ev.Type() == want {
			return ev
		}
	}
}

func TestWebSocket_DuplexBetweenSessions(t *testing.T) {
	env := newTestEnv(t, Options{})
	a := dialWS(t, env, "user_a")
	readWS(t, a, model.EventWelcome)
	b := dialWS(t, env, "user_b")
	readWS(t, b, model.EventWelcome)

	joined := readWS(t, a, model.EventUserJoin)
	if joined.Origin != "user_b" {
		t.Errorf("join origin = %q, want user_b", joined.Origin)
	}

	// The server stamps the connection's session, whatever the frame claims.
	msg := `{"type":"cursor","userId":"someone_else","data":{"cursor":{"x":5,"y":6}}}`
	if err := b.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatal(err)
	}
	ev := readWS(t, a, model.EventCursor)
	cm := ev.Payload.(model.CursorMoved)
	if ev.Origin != "user_b" || cm.Cursor.SessionID != "user_b" {
		t.Errorf("cursor from %q/%q, want user_b", ev.Origin, cm.Cursor.SessionID)
	}
	if cm.Cursor.X != 5 || cm.Cursor.Y != 6 {
		t.Errorf("cursor = %+v", cm.Cursor)
	}
}

func TestWebSocket_SkipsMalformed(t *testing.T) {
	env := newTestEnv(t, Options{})
	a := dialWS(t, env, "user_a")
	readWS(t, a, model.EventWelcome)
	b := dialWS(t, env, "user_b")
	readWS(t, b, model.EventWelcome)

	for _, msg := range []string{`not json`, `{"type":"ping"}`, `{"type":"deleted","data":{"id":"n9"}}`} {
		if err := b.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatal(err)
		}
	}
	got := readWS(t, a, model.EventDeleted).Payload.(model.NoteDeleted)
	if got.ID != "n9" {
		t.Fatalf("deleted id = %q", got.ID)
	}
}
