package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/corkboard/internal/idgen"
	"github.com/alfredjeanlab/corkboard/internal/model"
	"github.com/alfredjeanlab/corkboard/internal/store"
)

// noteColumns is the column list used for SELECT and RETURNING clauses on
// the notes table.
const noteColumns = `id, content, x_position, y_position, color, created_at, updated_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryListNotes(ctx context.Context, db executor) ([]*model.Note, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+noteColumns+` FROM notes ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []*model.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func queryGetNote(ctx context.Context, db executor, id string) (*model.Note, error) {
	row := db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = $1`, id)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return n, err
}

func queryCreateNote(ctx context.Context, db executor, in model.NoteInput) (*model.Note, error) {
	id, err := idgen.Generate()
	if err != nil {
		return nil, err
	}
	row := db.QueryRowContext(ctx, `
		INSERT INTO notes (id, content, x_position, y_position, color)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+noteColumns,
		id, in.Content, in.X, in.Y, string(in.Color),
	)
	n, err := scanNote(row)
	if err != nil {
		return nil, fmt.Errorf("insert note: %w", err)
	}
	return n, nil
}

func queryUpdateNote(ctx context.Context, db executor, id string, patch model.NotePatch) (*model.Note, error) {
	if patch.IsEmpty() {
		return queryGetNote(ctx, db, id)
	}

	var (
		sets   []string
		args   []any
		argIdx int
	)
	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if patch.Content != nil {
		sets = append(sets, "content = "+nextArg())
		args = append(args, *patch.Content)
	}
	if patch.X != nil {
		sets = append(sets, "x_position = "+nextArg())
		args = append(args, *patch.X)
	}
	if patch.Y != nil {
		sets = append(sets, "y_position = "+nextArg())
		args = append(args, *patch.Y)
	}
	if patch.Color != nil {
		sets = append(sets, "color = "+nextArg())
		args = append(args, string(*patch.Color))
	}
	sets = append(sets, "updated_at = now()")
	where := nextArg()
	args = append(args, id)

	row := db.QueryRowContext(ctx,
		`UPDATE notes SET `+strings.Join(sets, ", ")+` WHERE id = `+where+` RETURNING `+noteColumns,
		args...,
	)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update note %s: %w", id, err)
	}
	return n, nil
}

func queryDeleteNote(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM notes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete note %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func queryClearNotes(ctx context.Context, db executor) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM notes`)
	if err != nil {
		return 0, fmt.Errorf("clear notes: %w", err)
	}
	return res.RowsAffected()
}
