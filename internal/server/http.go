package server

import (
	"encoding/json"
	"net/http"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
func (s *BoardServer) NewHTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/notes", s.handleListNotes)
	mux.HandleFunc("POST /v1/notes", s.handleCreateNote)
	mux.HandleFunc("DELETE /v1/notes", s.handleClearNotes)
	mux.HandleFunc("GET /v1/notes/{id}", s.handleGetNote)
	mux.HandleFunc("PATCH /v1/notes/{id}", s.handleUpdateNote)
	mux.HandleFunc("DELETE /v1/notes/{id}", s.handleDeleteNote)
	mux.HandleFunc("GET /v1/realtime", s.handleRealtimeStream)
	mux.HandleFunc("POST /v1/realtime", s.handleRealtimeSubmit)
	mux.HandleFunc("GET /v1/ws", s.handleWebSocket)
	mux.HandleFunc("GET /v1/cursors", s.handleCursors)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	return RecoveryMiddleware(LoggingMiddleware(mux))
}

// handleHealth handles GET /v1/health.
func (s *BoardServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	now := s.clock.Now()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"connections": s.broker.Count(),
		"uptime_secs": int64(now.Sub(s.started).Seconds()),
		"timestamp":   now.UnixMilli(),
	})
}

// handleCursors handles GET /v1/cursors.
func (s *BoardServer) handleCursors(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"data": s.Presence.Snapshot()})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
