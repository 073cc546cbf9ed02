package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alfredjeanlab/corkboard/internal/model"
	"github.com/alfredjeanlab/corkboard/internal/store"
)

// handleListNotes handles GET /v1/notes.
func (s *BoardServer) handleListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := s.store.ListNotes(r.Context())
	if err != nil {
		slog.Error("list notes failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if notes == nil {
		notes = []*model.Note{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": notes})
}

// handleCreateNote handles POST /v1/notes.
func (s *BoardServer) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var in model.NoteInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	note, err := s.store.CreateNote(r.Context(), in)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"data": note})
}

// handleGetNote handles GET /v1/notes/{id}.
func (s *BoardServer) handleGetNote(w http.ResponseWriter, r *http.Request) {
	note, err := s.store.GetNote(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": note})
}

// handleUpdateNote handles PATCH /v1/notes/{id}.
func (s *BoardServer) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	var patch model.NotePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	note, err := s.store.UpdateNote(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": note})
}

// handleDeleteNote handles DELETE /v1/notes/{id}.
func (s *BoardServer) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteNote(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleClearNotes handles DELETE /v1/notes.
func (s *BoardServer) handleClearNotes(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.ClearNotes(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	slog.Info("board cleared", "deleted", n)
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// writeStoreError maps store and validation errors to HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	var (
		ve *model.ValidationError
		ie inputError
	)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "note not found")
	case errors.As(err, &ve), errors.As(err, &ie):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("store operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
