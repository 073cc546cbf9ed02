package syncer

import (
	"context"
	"io"
	"net"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/alfredjeanlab/corkboard/internal/client"
	"github.com/alfredjeanlab/corkboard/internal/idgen"
	"github.com/alfredjeanlab/corkboard/internal/model"
	"github.com/alfredjeanlab/corkboard/internal/transport"
)

// flakyProxy forwards TCP connections to a backend and can cut them all.
// While down it refuses new connections.
type flakyProxy struct {
	ln      net.Listener
	backend string

	mu    sync.Mutex
	down  bool
	conns []net.Conn
}

func newFlakyProxy(t *testing.T, backendURL string) *flakyProxy {
	t.Helper()
	u, err := url.Parse(backendURL)
	if err != nil {
		t.Fatal(err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	p := &flakyProxy{ln: ln, backend: u.Host}
	go p.serve()
	t.Cleanup(func() {
		ln.Close()
		p.setDown(true)
	})
	return p
}

func (p *flakyProxy) URL() string { return "http://" + p.ln.Addr().String() }

func (p *flakyProxy) serve() {
	for {
		c, err := p.ln.Accept()
		if err != nil {
			return
		}
		p.mu.Lock()
		if p.down {
			p.mu.Unlock()
			c.Close()
			continue
		}
		b, err := net.Dial("tcp", p.backend)
		if err != nil {
			p.mu.Unlock()
			c.Close()
			continue
		}
		p.conns = append(p.conns, c, b)
		p.mu.Unlock()
		go splice(c, b)
		go splice(b, c)
	}
}

func splice(dst, src net.Conn) {
	_, _ = io.Copy(dst, src)
	dst.Close()
	src.Close()
}

func (p *flakyProxy) setDown(down bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.down = down
	if down {
		for _, c := range p.conns {
			c.Close()
		}
		p.conns = nil
	}
}

func TestReconnect_FlushesOutboxAndResyncs(t *testing.T) {
	baseURL, mem := startBoardServer(t)
	proxy := newFlakyProxy(t, baseURL)

	// The session's realtime link goes through the proxy; its store calls
	// do not, so commits keep working while the link is down.
	ws, err := transport.NewWebSocket(proxy.URL(), "user_a", transport.Options{
		BackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewConstantBackOff(20*time.Millisecond), 1000)
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	a := New(client.NewHTTPClient(baseURL), ws, Options{
		CreateDelay: 10 * time.Millisecond,
		UpdateDelay: 10 * time.Millisecond,
		ClearDelay:  10 * time.Millisecond,
	})
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	peer := startSession(t, baseURL, "user_b", true)
	eventually(t, "both connected", func() bool {
		return a.Status() == transport.Connected && peer.Status() == transport.Connected
	})

	proxy.setDown(true)
	eventually(t, "drop noticed", func() bool { return a.Status() != transport.Connected })

	if _, err := a.CreateNote(model.NoteInput{Content: "offline"}); err != nil {
		t.Fatal(err)
	}
	eventually(t, "create committed while disconnected", func() bool {
		notes := a.Notes()
		return len(notes) == 1 && !idgen.IsTemp(notes[0].ID)
	})
	if ws.Pending() < 1 {
		t.Fatalf("Pending = %d, want the create queued", ws.Pending())
	}
	id := a.Notes()[0].ID

	// Written by someone else and never broadcast: only a resync finds it.
	hidden, err := mem.CreateNote(context.Background(), model.NoteInput{Content: "hidden"})
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
	if _, ok := peer.Note(id); ok {
		t.Fatal("peer saw the note while the link was down")
	}

	proxy.setDown(false)
	eventually(t, "reconnected", func() bool { return a.Status() == transport.Connected })
	eventually(t, "outbox flushed", func() bool { return ws.Pending() == 0 })
	eventually(t, "peer sees the queued create", func() bool {
		n, ok := peer.Note(id)
		return ok && n.Content == "offline"
	})
	eventually(t, "resync loads the unannounced note", func() bool {
		_, ok := a.Note(hidden.ID)
		return ok
	})
	if _, ok := a.Note(id); !ok {
		t.Error("own note lost across the reconnect")
	}
}
