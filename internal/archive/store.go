// Package archive owns the SQLite database behind the archive feature.
// The startup pipeline only bootstraps and pings it; the dashboard does
// its real reads and writes out of process.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrDuplicate is returned when an entry with an already archived title
// is added. Titles are unique at the database level.
var ErrDuplicate = errors.New("archive: duplicate title")

const schema = `
CREATE TABLE IF NOT EXISTS archive_entries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL,
    created_at TEXT NOT NULL
);
`

// Entry is one archived record.
type Entry struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

// Store wraps the archive database handle.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens the archive database at path, creating the file and schema
// when missing.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open archive database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping archive database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize archive schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database answers queries against the real table,
// not just the connection.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.Count(ctx); err != nil {
		return err
	}
	return nil
}

// Count returns the number of archived entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM archive_entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("count archive entries: %w", err)
	}
	return n, nil
}

// Add stores a new entry and returns it. An already archived title
// yields ErrDuplicate.
func (s *Store) Add(ctx context.Context, title, description string) (*Entry, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("archive: title must not be empty")
	}

	createdAt := time.Now().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO archive_entries (title, description, created_at) VALUES (?, ?, ?)",
		title, strings.TrimSpace(description), createdAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, title)
		}
		return nil, fmt.Errorf("insert archive entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("read archive entry id: %w", err)
	}
	return &Entry{ID: id, Title: title, Description: strings.TrimSpace(description), CreatedAt: createdAt}, nil
}

// List returns all entries, newest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, description, created_at FROM archive_entries ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("list archive entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan archive entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archive entries: %w", err)
	}
	return entries, nil
}
