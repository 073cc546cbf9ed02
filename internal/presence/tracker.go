// Package presence tracks live cursor positions on the board.
//
// The Tracker keeps the last known cursor of every session and drops
// entries that have not been refreshed within a TTL. It runs on both sides:
// the server records cursor events as they pass through, and each client
// records its peers' cursors for rendering. A background reaper sweeps
// expired entries and reports them through OnExpire.
package presence

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/corkboard/internal/clock"
	"github.com/alfredjeanlab/corkboard/internal/model"
)

const (
	// DefaultTTL is how long a cursor stays visible without an update.
	DefaultTTL = 30 * time.Second
	// DefaultSweepInterval is how often the reaper scans for stale cursors.
	DefaultSweepInterval = 5 * time.Second
)

// Entry is one session's cursor as reported by Snapshot.
type Entry struct {
	SessionID string    `json:"session_id"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Color     string    `json:"color"`
	LastSeen  time.Time `json:"last_seen"`
	IdleSecs  float64   `json:"idle_secs"`
}

// ReaperConfig configures the background sweep.
type ReaperConfig struct {
	// TTL is how long an entry may go without an update. Default: 30s.
	TTL time.Duration

	// SweepInterval is how often the reaper scans. Default: 5s.
	SweepInterval time.Duration

	// OnExpire is called for each entry the sweep removes.
	// Called outside the lock.
	OnExpire func(sessionID string)
}

// Tracker maintains the cursor map. It is safe for concurrent use.
type Tracker struct {
	clock clock.Clock

	mu      sync.RWMutex
	cursors map[string]*cursorState

	reaperStop chan struct{}
	reaperDone chan struct{}
}

type cursorState struct {
	x, y     float64
	color    string
	lastSeen time.Time
}

// New creates an empty tracker driven by c (the real clock if nil).
func New(c clock.Clock) *Tracker {
	return &Tracker{
		clock:   clock.OrReal(c),
		cursors: make(map[string]*cursorState),
	}
}

// Record stores or refreshes a session's cursor. Cursors without a session
// are ignored. A missing color is derived from the session id.
func (t *Tracker) Record(c model.Cursor) {
	if c.SessionID == "" {
		return
	}
	if c.Color == "" {
		c.Color = ColorFor(c.SessionID)
	}

	now := t.clock.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.cursors[c.SessionID]
	if !ok {
		state = &cursorState{}
		t.cursors[c.SessionID] = state
	}
	state.x, state.y = c.X, c.Y
	state.color = c.Color
	state.lastSeen = now
}

// Remove drops a session's cursor. It reports whether one was present.
func (t *Tracker) Remove(sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.cursors[sessionID]
	delete(t.cursors, sessionID)
	return ok
}

// Clear drops every cursor.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.cursors)
}

// Len returns the number of tracked cursors.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.cursors)
}

// Snapshot returns every tracked cursor, most recently active first.
func (t *Tracker) Snapshot() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := t.clock.Now()
	entries := make([]Entry, 0, len(t.cursors))
	for id, state := range t.cursors {
		entries = append(entries, Entry{
			SessionID: id,
			X:         state.x,
			Y:         state.y,
			Color:     state.color,
			LastSeen:  state.lastSeen,
			IdleSecs:  now.Sub(state.lastSeen).Seconds(),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].LastSeen.Equal(entries[j].LastSeen) {
			return entries[i].SessionID < entries[j].SessionID
		}
		return entries[i].LastSeen.After(entries[j].LastSeen)
	})
	return entries
}

// Sweep removes entries idle for longer than ttl as of now and returns
// their session ids.
func (t *Tracker) Sweep(now time.Time, ttl time.Duration) []string {
	var expired []string
	t.mu.Lock()
	for id, state := range t.cursors {
		if now.Sub(state.lastSeen) > ttl {
			delete(t.cursors, id)
			expired = append(expired, id)
		}
	}
	t.mu.Unlock()
	sort.Strings(expired)
	return expired
}

// StartReaper launches a background goroutine that periodically sweeps
// stale cursors. Call Stop() to shut it down.
func (t *Tracker) StartReaper(cfg *ReaperConfig) {
	if cfg == nil {
		cfg = &ReaperConfig{}
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}

	t.reaperStop = make(chan struct{})
	t.reaperDone = make(chan struct{})
	ticker := t.clock.NewTicker(cfg.SweepInterval)

	go t.reapLoop(cfg, ticker)
	slog.Debug("presence: reaper started",
		"ttl", cfg.TTL,
		"sweep_interval", cfg.SweepInterval)
}

// Stop shuts down the reaper goroutine.
func (t *Tracker) Stop() {
	if t.reaperStop != nil {
		close(t.reaperStop)
		<-t.reaperDone
		t.reaperStop = nil
		t.reaperDone = nil
	}
}

func (t *Tracker) reapLoop(cfg *ReaperConfig, ticker clock.Ticker) {
	defer close(t.reaperDone)
	defer ticker.Stop()

	for {
		select {
		case <-t.reaperStop:
			return
		case <-ticker.C():
			for _, id := range t.Sweep(t.clock.Now(), cfg.TTL) {
				slog.Debug("presence: cursor expired", "session", id, "ttl", cfg.TTL)
				if cfg.OnExpire != nil {
					cfg.OnExpire(id)
				}
			}
		}
	}
}
