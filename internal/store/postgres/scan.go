package postgres

import (
	"database/sql"

	"github.com/alfredjeanlab/corkboard/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanNote scans a single row into a model.Note.
// The row must contain columns in the order defined by noteColumns.
func scanNote(row scannable) (*model.Note, error) {
	var (
		n       model.Note
		content sql.NullString
		color   sql.NullString
	)
	err := row.Scan(
		&n.ID,
		&content,
		&n.X,
		&n.Y,
		&color,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	n.Content = content.String
	n.Color = model.Color(color.String)
	if n.Color == "" {
		n.Color = model.DefaultColor
	}
	return &n, nil
}
