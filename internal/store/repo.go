package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/sagenote/internal/apperr"
	"github.com/starford/sagenote/internal/convert"
	"github.com/starford/sagenote/internal/models"
)

const noteColumns = `id, title, content, created_at, updated_at, color, text_color,
	is_pinned, type, list_items, drawing_path, audio_path`

const orderBy = `ORDER BY is_pinned DESC, updated_at DESC, id DESC`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(r rowScanner) (models.Note, error) {
	var (
		n                    models.Note
		createdAt, updatedAt int64
		color, textColor     int64
		typ, items           string
	)
	err := r.Scan(&n.ID, &n.Title, &n.Content, &createdAt, &updatedAt, &color, &textColor,
		&n.IsPinned, &typ, &items, &n.DrawingPath, &n.AudioPath)
	if err != nil {
		return models.Note{}, err
	}
	n.CreatedAt = *convert.MillisToTime(&createdAt)
	n.UpdatedAt = *convert.MillisToTime(&updatedAt)
	n.Color = models.Color(uint32(color))
	n.TextColor = models.Color(uint32(textColor))
	n.Type = convert.NoteTypeFromString(typ)
	n.ListItems = convert.ListItemsFromJSON(items)
	return n, nil
}

// values returns the column values of n in noteColumns order, minus id.
func values(n models.Note) []any {
	return []any{
		n.Title,
		n.Content,
		*convert.TimeToMillis(&n.CreatedAt),
		*convert.TimeToMillis(&n.UpdatedAt),
		int64(uint32(n.Color)),
		int64(uint32(n.TextColor)),
		n.IsPinned,
		convert.NoteTypeToString(n.Type),
		convert.ListItemsToJSON(n.ListItems),
		n.DrawingPath,
		n.AudioPath,
	}
}

// Insert stores n and returns its id. A zero id lets the database assign
// one; a nonzero id replaces any existing row with that id.
func (s *Store) Insert(ctx context.Context, n models.Note) (id int64, err error) {
	defer func(start time.Time) { s.observe("insert", start, err) }(time.Now())

	var res sql.Result
	if n.ID == 0 {
		res, err = s.conn.ExecContext(ctx, `
			INSERT INTO notes (title, content, created_at, updated_at, color, text_color,
				is_pinned, type, list_items, drawing_path, audio_path)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, values(n)...)
	} else {
		res, err = s.conn.ExecContext(ctx, `
			INSERT OR REPLACE INTO notes (`+noteColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, append([]any{n.ID}, values(n)...)...)
	}
	if err != nil {
		return 0, fmt.Errorf("store: insert note: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: insert note id: %w", err)
	}
	s.changed()
	return id, nil
}

// Update replaces the row with n.ID. A missing row is not an error.
func (s *Store) Update(ctx context.Context, n models.Note) (err error) {
	defer func(start time.Time) { s.observe("update", start, err) }(time.Now())

	res, err := s.conn.ExecContext(ctx, `
		UPDATE notes SET
			title        = ?,
			content      = ?,
			created_at   = ?,
			updated_at   = ?,
			color        = ?,
			text_color   = ?,
			is_pinned    = ?,
			type         = ?,
			list_items   = ?,
			drawing_path = ?,
			audio_path   = ?
		WHERE id = ?
	`, append(values(n), n.ID)...)
	if err != nil {
		return fmt.Errorf("store: update note %d: %w", n.ID, err)
	}
	s.changedIfAffected(res)
	return nil
}

// Delete removes n. A missing row is not an error.
func (s *Store) Delete(ctx context.Context, n models.Note) error {
	return s.DeleteByID(ctx, n.ID)
}

// DeleteByID removes the row with id. A missing row is not an error.
func (s *Store) DeleteByID(ctx context.Context, id int64) (err error) {
	defer func(start time.Time) { s.observe("delete", start, err) }(time.Now())

	res, err := s.conn.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete note %d: %w", id, err)
	}
	s.changedIfAffected(res)
	return nil
}

func (s *Store) changedIfAffected(res sql.Result) {
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		s.changed()
	}
}

// GetByID returns the note with id, or apperr.ErrNotFound.
func (s *Store) GetByID(ctx context.Context, id int64) (n models.Note, err error) {
	defer func(start time.Time) { s.observe("get", start, err) }(time.Now())

	row := s.conn.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	n, err = scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Note{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.Note{}, fmt.Errorf("store: get note %d: %w", id, err)
	}
	return n, nil
}

// All returns every note, pinned first, most recently updated first.
func (s *Store) All(ctx context.Context) (out []models.Note, err error) {
	defer func(start time.Time) { s.observe("all", start, err) }(time.Now())

	out, err = s.query(ctx, `SELECT `+noteColumns+` FROM notes `+orderBy)
	if err != nil {
		return nil, fmt.Errorf("store: all notes: %w", err)
	}
	return out, nil
}

// Search returns notes whose title or content contains query, in the same
// order as All. The match is a literal substring; LIKE wildcards in query
// are escaped.
func (s *Store) Search(ctx context.Context, query string) (out []models.Note, err error) {
	defer func(start time.Time) { s.observe("search", start, err) }(time.Now())

	like := "%" + likeEscaper.Replace(query) + "%"
	out, err = s.query(ctx, `
		SELECT `+noteColumns+` FROM notes
		WHERE title LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\'
		`+orderBy, like, like)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	return out, nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]models.Note, error) {
	rows, err := s.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// AssetPaths returns every drawing or audio path referenced by a note.
func (s *Store) AssetPaths(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT drawing_path, audio_path FROM notes
		WHERE drawing_path != '' OR audio_path != ''
	`)
	if err != nil {
		return nil, fmt.Errorf("store: asset paths: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var drawing, audio string
		if err := rows.Scan(&drawing, &audio); err != nil {
			return nil, fmt.Errorf("store: asset paths: %w", err)
		}
		for _, p := range []string{drawing, audio} {
			if p != "" {
				out[p] = struct{}{}
			}
		}
	}
	return out, rows.Err()
}
