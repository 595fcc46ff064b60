// Package position persists reading positions keyed by document identity.
//
// The pagination engine only computes and consumes these records; this
// package is the repository boundary that owns the I/O, backed by an
// embedded SQLite database.
package position

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("position: store is closed")

// Record is one saved reading position.
type Record struct {
	DocumentID      string    `json:"document_id" yaml:"document_id"`
	Title           string    `json:"title" yaml:"title"`
	ChapterIndex    int       `json:"chapter_index" yaml:"chapter_index"`
	InPageIndex     int       `json:"in_page_index" yaml:"in_page_index"`
	CharacterOffset int       `json:"character_offset" yaml:"character_offset"`
	PreviewText     string    `json:"preview_text" yaml:"preview_text"`
	PercentComplete float64   `json:"percent_complete" yaml:"percent_complete"`
	FontSize        float64   `json:"font_size" yaml:"font_size"`
	UpdatedAt       time.Time `json:"updated_at" yaml:"updated_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS positions (
	document_id      TEXT PRIMARY KEY,
	title            TEXT NOT NULL DEFAULT '',
	chapter_index    INTEGER NOT NULL,
	in_page_index    INTEGER NOT NULL,
	character_offset INTEGER NOT NULL,
	preview_text     TEXT NOT NULL DEFAULT '',
	percent_complete REAL NOT NULL DEFAULT 0,
	font_size        REAL NOT NULL DEFAULT 0,
	updated_at       TEXT NOT NULL
);
`

// Store is a SQLite-backed position repository.
// Safe for concurrent use; database/sql serializes access.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the position database at path.
// Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open position database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create positions table: %w", err)
	}
	return &Store{db: db}, nil
}

// Save upserts the position record for its document.
func (s *Store) Save(ctx context.Context, rec Record) error {
	if s.db == nil {
		return ErrClosed
	}
	if rec.DocumentID == "" {
		return fmt.Errorf("position: record has no document id")
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions
			(document_id, title, chapter_index, in_page_index, character_offset,
			 preview_text, percent_complete, font_size, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			title = excluded.title,
			chapter_index = excluded.chapter_index,
			in_page_index = excluded.in_page_index,
			character_offset = excluded.character_offset,
			preview_text = excluded.preview_text,
			percent_complete = excluded.percent_complete,
			font_size = excluded.font_size,
			updated_at = excluded.updated_at`,
		rec.DocumentID, rec.Title, rec.ChapterIndex, rec.InPageIndex, rec.CharacterOffset,
		rec.PreviewText, rec.PercentComplete, rec.FontSize,
		rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save position: %w", err)
	}
	return nil
}

// Get returns the saved position for documentID, or nil when none exists.
func (s *Store) Get(ctx context.Context, documentID string) (*Record, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT document_id, title, chapter_index, in_page_index, character_offset,
		       preview_text, percent_complete, font_size, updated_at
		FROM positions WHERE document_id = ?`, documentID)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load position: %w", err)
	}
	return rec, nil
}

// List returns all saved positions, most recently updated first.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, title, chapter_index, in_page_index, character_offset,
		       preview_text, percent_complete, font_size, updated_at
		FROM positions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Delete removes the saved position for documentID. Deleting a missing
// record is not an error.
func (s *Store) Delete(ctx context.Context, documentID string) error {
	if s.db == nil {
		return ErrClosed
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM positions WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("delete position: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var updatedAt string
	if err := row.Scan(
		&rec.DocumentID, &rec.Title, &rec.ChapterIndex, &rec.InPageIndex,
		&rec.CharacterOffset, &rec.PreviewText, &rec.PercentComplete,
		&rec.FontSize, &updatedAt,
	); err != nil {
		return nil, err
	}
	ts, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at %q: %w", updatedAt, err)
	}
	rec.UpdatedAt = ts
	return &rec, nil
}
