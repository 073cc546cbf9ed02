package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/alfredjeanlab/corkboard/internal/model"
	"github.com/alfredjeanlab/corkboard/internal/store"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

var noteRowColumns = []string{"id", "content", "x_position", "y_position", "color", "created_at", "updated_at"}

func TestListNotes(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT .+ FROM notes ORDER BY created_at, id").
		WillReturnRows(sqlmock.NewRows(noteRowColumns).
			AddRow("note-a", "first", 1.0, 2.0, "pink", now, now).
			AddRow("note-b", nil, 3.0, 4.0, nil, now, now))

	notes, err := s.ListNotes(context.Background())
	if err != nil {
		t.Fatalf("ListNotes: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("len = %d, want 2", len(notes))
	}
	if notes[0].ID != "note-a" || notes[0].Color != model.ColorPink || notes[0].X != 1 {
		t.Errorf("notes[0] = %+v", notes[0])
	}
	if notes[1].Content != "" || notes[1].Color != model.DefaultColor {
		t.Errorf("null columns not defaulted: %+v", notes[1])
	}
}

func TestGetNote_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db)

	mock.ExpectQuery("SELECT .+ FROM notes WHERE id = \\$1").WithArgs("note-x").
		WillReturnRows(sqlmock.NewRows(noteRowColumns))

	_, err := s.GetNote(context.Background(), "note-x")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateNote(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db)
	now := time.Now().UTC()

	mock.ExpectQuery("INSERT INTO notes").
		WithArgs(sqlmock.AnyArg(), "hello", 1.5, 2.5, "yellow").
		WillReturnRows(sqlmock.NewRows(noteRowColumns).
			AddRow("note-new", "hello", 1.5, 2.5, "yellow", now, now))

	n, err := s.CreateNote(context.Background(), model.NoteInput{Content: "hello", X: 1.5, Y: 2.5})
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if n.ID != "note-new" || n.Color != model.ColorYellow {
		t.Errorf("note = %+v", n)
	}
}

func TestCreateNote_InvalidColor(t *testing.T) {
	db, _ := newMockDB(t)
	s := NewWithDB(db)

	_, err := s.CreateNote(context.Background(), model.NoteInput{Color: "teal"})
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
}

func TestUpdateNote_BuildsSetClause(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db)
	now := time.Now().UTC()

	mock.ExpectQuery(`UPDATE notes SET content = \$1, x_position = \$2, updated_at = now\(\) WHERE id = \$3 RETURNING`).
		WithArgs("new", 10.0, "note-1").
		WillReturnRows(sqlmock.NewRows(noteRowColumns).
			AddRow("note-1", "new", 10.0, 0.0, "green", now, now))

	content, x := "new", 10.0
	n, err := s.UpdateNote(context.Background(), "note-1", model.NotePatch{Content: &content, X: &x})
	if err != nil {
		t.Fatalf("UpdateNote: %v", err)
	}
	if n.Content != "new" || n.X != 10 || n.Color != model.ColorGreen {
		t.Errorf("note = %+v", n)
	}
}

func TestUpdateNote_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db)

	mock.ExpectQuery("UPDATE notes SET").
		WithArgs("blue", "note-gone").
		WillReturnRows(sqlmock.NewRows(noteRowColumns))

	_, err := s.UpdateNote(context.Background(), "note-gone", model.Recolor(model.ColorBlue))
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateNote_EmptyPatchReads(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT .+ FROM notes WHERE id = \\$1").WithArgs("note-1").
		WillReturnRows(sqlmock.NewRows(noteRowColumns).
			AddRow("note-1", "same", 0.0, 0.0, "yellow", now, now))

	n, err := s.UpdateNote(context.Background(), "note-1", model.NotePatch{})
	if err != nil || n.Content != "same" {
		t.Errorf("UpdateNote(empty) = %+v, %v", n, err)
	}
}

func TestDeleteNote(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db)

	mock.ExpectExec("DELETE FROM notes WHERE id = \\$1").WithArgs("note-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM notes WHERE id = \\$1").WithArgs("note-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.DeleteNote(context.Background(), "note-1"); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	if err := s.DeleteNote(context.Background(), "note-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second DeleteNote err = %v, want ErrNotFound", err)
	}
}

func TestClearNotes(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db)

	mock.ExpectExec("DELETE FROM notes").WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := s.ClearNotes(context.Background())
	if err != nil || n != 7 {
		t.Errorf("ClearNotes = %d, %v; want 7, nil", n, err)
	}
}

func TestClearNotes_Error(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db)

	mock.ExpectExec("DELETE FROM notes").WillReturnError(errors.New("connection reset"))

	if _, err := s.ClearNotes(context.Background()); err == nil {
		t.Error("expected error")
	}
}
