package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// EventType names the kind of a change event on the wire.
type EventType string

const (
	EventCreated   EventType = "created"
	EventUpdated   EventType = "updated"
	EventDeleted   EventType = "deleted"
	EventCleared   EventType = "cleared"
	EventWelcome   EventType = "welcome"
	EventUserCount EventType = "user_count"
	EventPing      EventType = "ping"
	EventCursor    EventType = "cursor"
	EventUserJoin  EventType = "user_join"
	EventUserLeave EventType = "user_leave"
)

// Topics group event types the way subscribers filter them.
const (
	TopicNotes   = "notes"
	TopicCursors = "cursors"
	TopicUsers   = "users"
	TopicSystem  = "system"
)

// ErrMalformedEvent is returned when an inbound event cannot be decoded or
// lacks a field its type requires.
var ErrMalformedEvent = errors.New("malformed event")

// eventAliases maps the legacy type spellings still sent by older clients.
var eventAliases = map[string]EventType{
	"insert":            EventCreated,
	"note_created":      EventCreated,
	"update":            EventUpdated,
	"note_updated":      EventUpdated,
	"delete":            EventDeleted,
	"note_deleted":      EventDeleted,
	"clear":             EventCleared,
	"notes_cleared":     EventCleared,
	"user_count_update": EventUserCount,
	"cursor_move":       EventCursor,
}

// ParseEventType normalizes a wire type string. Matching is case-insensitive
// and accepts the legacy aliases.
func ParseEventType(s string) (EventType, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	if t, ok := eventAliases[key]; ok {
		return t, true
	}
	switch t := EventType(key); t {
	case EventCreated, EventUpdated, EventDeleted, EventCleared, EventWelcome,
		EventUserCount, EventPing, EventCursor, EventUserJoin, EventUserLeave:
		return t, true
	}
	return "", false
}

// Topic returns the topic an event type belongs to.
func (t EventType) Topic() string {
	switch t {
	case EventCreated, EventUpdated, EventDeleted, EventCleared:
		return TopicNotes
	case EventCursor:
		return TopicCursors
	case EventUserJoin, EventUserLeave:
		return TopicUsers
	}
	return TopicSystem
}

// Payload is the type-specific body of an Event. The set of implementations
// is closed; each carries only the fields its kind needs.
type Payload interface {
	EventType() EventType
	validate() error
}

// NoteCreated announces a note confirmed by the store.
type NoteCreated struct {
	Note *Note `json:"note"`
}

// NoteUpdated carries the store-confirmed record after an update.
type NoteUpdated struct {
	Note *Note `json:"note"`
}

// NoteDeleted announces the removal of one note.
type NoteDeleted struct {
	ID string `json:"id"`
}

// NotesCleared announces that every note was removed.
type NotesCleared struct{}

// Welcome is sent by the server to a channel right after it attaches.
type Welcome struct {
	SessionID string `json:"sessionId"`
	Color     string `json:"userColor"`
	UserCount int    `json:"userCount"`
}

// UserCount reports the number of live channels.
type UserCount struct {
	Count int `json:"count"`
}

// Ping is a keep-alive with no content.
type Ping struct{}

// Cursor is one session's pointer position in world coordinates.
type Cursor struct {
	SessionID string  `json:"user"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Color     string  `json:"color"`
}

// CursorMoved reports a pointer movement.
type CursorMoved struct {
	Cursor Cursor `json:"cursor"`
}

// User identifies a session for join/leave announcements.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// UserJoined announces a session arriving on the board.
type UserJoined struct {
	User User `json:"user"`
}

// UserLeft announces a session leaving the board.
type UserLeft struct {
	User User `json:"user"`
}

func (NoteCreated) EventType() EventType  { return EventCreated }
func (NoteUpdated) EventType() EventType  { return EventUpdated }
func (NoteDeleted) EventType() EventType  { return EventDeleted }
func (NotesCleared) EventType() EventType { return EventCleared }
func (Welcome) EventType() EventType      { return EventWelcome }
func (UserCount) EventType() EventType    { return EventUserCount }
func (Ping) EventType() EventType         { return EventPing }
func (CursorMoved) EventType() EventType  { return EventCursor }
func (UserJoined) EventType() EventType   { return EventUserJoin }
func (UserLeft) EventType() EventType     { return EventUserLeave }

func (p NoteCreated) validate() error { return requireNote(p.Note) }
func (p NoteUpdated) validate() error { return requireNote(p.Note) }

func (p NoteDeleted) validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: deleted event without id", ErrMalformedEvent)
	}
	return nil
}

func (NotesCleared) validate() error { return nil }
func (Welcome) validate() error      { return nil }
func (UserCount) validate() error    { return nil }
func (Ping) validate() error         { return nil }

func (p CursorMoved) validate() error {
	if p.Cursor.SessionID == "" {
		return fmt.Errorf("%w: cursor without session", ErrMalformedEvent)
	}
	return nil
}

func (p UserJoined) validate() error { return requireUser(p.User) }
func (p UserLeft) validate() error   { return requireUser(p.User) }

func requireNote(n *Note) error {
	if n == nil || n.ID == "" {
		return fmt.Errorf("%w: note event without note id", ErrMalformedEvent)
	}
	return nil
}

func requireUser(u User) error {
	if u.ID == "" {
		return fmt.Errorf("%w: user event without user id", ErrMalformedEvent)
	}
	return nil
}

// Event is a change or presence event exchanged between sessions.
// Origin is the session id of the sender; Timestamp is unix milliseconds.
// Replayed marks a copy delivered from the broker's history on subscribe
// rather than live.
type Event struct {
	Origin    string
	Timestamp int64
	Replayed  bool
	Payload   Payload
}

// NewEvent wraps a payload into an event originating from origin.
func NewEvent(origin string, p Payload) *Event {
	return &Event{Origin: origin, Payload: p}
}

// Type returns the event's type, derived from its payload.
func (e *Event) Type() EventType {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.EventType()
}

// Topic returns the topic of the event's type.
func (e *Event) Topic() string {
	return e.Type().Topic()
}

// Replayable reports whether the event belongs in the broker's history.
// Only note events are replayed; presence and system events are ephemeral.
func (e *Event) Replayable() bool {
	return e.Topic() == TopicNotes
}

// Time returns the event timestamp as a time.Time.
func (e *Event) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Stamp sets the timestamp to now if it is unset.
func (e *Event) Stamp(now time.Time) {
	if e.Timestamp == 0 {
		e.Timestamp = now.UnixMilli()
	}
}

// Clone returns a shallow copy whose Origin, Timestamp and Replayed can be
// modified without affecting e. Payloads are treated as immutable.
func (e *Event) Clone() *Event {
	cp := *e
	return &cp
}

// wireEvent is the JSON shape shared by both transport bindings.
type wireEvent struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
	Replay    bool            `json:"replay,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// MarshalJSON encodes the event as {type, topic, userId, timestamp, replay, data}.
func (e *Event) MarshalJSON() ([]byte, error) {
	if e.Payload == nil {
		return nil, fmt.Errorf("%w: event without payload", ErrMalformedEvent)
	}
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s payload: %w", e.Type(), err)
	}
	return json.Marshal(wireEvent{
		Type:      string(e.Type()),
		Topic:     e.Topic(),
		UserID:    e.Origin,
		Timestamp: e.Timestamp,
		Replay:    e.Replayed,
		Data:      data,
	})
}

// UnmarshalJSON decodes and validates an event. Errors wrap ErrMalformedEvent.
func (e *Event) UnmarshalJSON(b []byte) error {
	var w wireEvent
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	t, ok := ParseEventType(w.Type)
	if !ok {
		return fmt.Errorf("%w: unknown type %q", ErrMalformedEvent, w.Type)
	}

	// Older push frames put the payload beside the type instead of under data.
	raw := w.Data
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		raw = b
	}

	p, err := decodePayload(t, raw, w.UserID)
	if err != nil {
		return err
	}
	if err := p.validate(); err != nil {
		return err
	}
	e.Origin = w.UserID
	e.Timestamp = w.Timestamp
	e.Replayed = w.Replay
	e.Payload = p
	return nil
}

// DecodeEvent parses a single JSON-encoded event.
func DecodeEvent(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func decodePayload(t EventType, raw json.RawMessage, origin string) (Payload, error) {
	malformed := func(err error) error {
		return fmt.Errorf("%w: decoding %s payload: %v", ErrMalformedEvent, t, err)
	}

	switch t {
	case EventCreated, EventUpdated:
		var p struct {
			Note *Note `json:"note"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, malformed(err)
		}
		if p.Note == nil {
			// Bare note as data.
			var n Note
			if err := json.Unmarshal(raw, &n); err == nil && n.ID != "" {
				p.Note = &n
			}
		}
		if t == EventCreated {
			return NoteCreated{Note: p.Note}, nil
		}
		return NoteUpdated{Note: p.Note}, nil

	case EventDeleted:
		var p struct {
			ID     string `json:"id"`
			NoteID string `json:"noteId"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, malformed(err)
		}
		if p.ID == "" {
			p.ID = p.NoteID
		}
		return NoteDeleted{ID: p.ID}, nil

	case EventCleared:
		return NotesCleared{}, nil

	case EventPing:
		return Ping{}, nil

	case EventWelcome:
		var p Welcome
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, malformed(err)
		}
		return p, nil

	case EventUserCount:
		var p UserCount
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, malformed(err)
		}
		return p, nil

	case EventCursor:
		var p CursorMoved
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, malformed(err)
		}
		if p.Cursor.SessionID == "" {
			p.Cursor.SessionID = origin
		}
		return p, nil

	case EventUserJoin, EventUserLeave:
		var p struct {
			User User `json:"user"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, malformed(err)
		}
		if p.User.ID == "" {
			p.User.ID = origin
		}
		if t == EventUserJoin {
			return UserJoined{User: p.User}, nil
		}
		return UserLeft{User: p.User}, nil
	}
	return nil, fmt.Errorf("%w: unsupported type %q", ErrMalformedEvent, t)
}
