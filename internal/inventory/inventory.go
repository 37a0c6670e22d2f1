// Package inventory persists a history of finished builds in a local SQLite
// database. Recording is an advisory post-processing step: callers log
// failures and move on, a broken inventory must never abort a build.
package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one finished build.
type Record struct {
	ID         int64
	SKU        string
	ISBN       string
	Title      string
	Author     string
	TrackCount int
	BitRate    int
	Checksum   string
	ImagePath  string
	ImageSize  int64
	BuiltAt    time.Time
}

// Store wraps the SQLite database holding build history.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS builds (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sku TEXT NOT NULL,
	isbn TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	author TEXT NOT NULL DEFAULT '',
	track_count INTEGER NOT NULL,
	bit_rate INTEGER NOT NULL,
	checksum TEXT NOT NULL,
	image_path TEXT NOT NULL DEFAULT '',
	image_size INTEGER NOT NULL DEFAULT 0,
	built_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_builds_sku ON builds(sku);
`

// Open creates or opens the inventory database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("inventory path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create inventory directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open inventory database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize inventory schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends one build to the history.
func (s *Store) Record(ctx context.Context, rec Record) error {
	builtAt := rec.BuiltAt
	if builtAt.IsZero() {
		builtAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO builds (sku, isbn, title, author, track_count, bit_rate, checksum, image_path, image_size, built_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SKU, rec.ISBN, rec.Title, rec.Author, rec.TrackCount, rec.BitRate, rec.Checksum,
		rec.ImagePath, rec.ImageSize, builtAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record build: %w", err)
	}
	return nil
}

// List returns builds newest first, optionally filtered by SKU.
func (s *Store) List(ctx context.Context, sku string) ([]Record, error) {
	query := `SELECT id, sku, isbn, title, author, track_count, bit_rate, checksum, image_path, image_size, built_at
		FROM builds`
	args := []any{}
	if strings.TrimSpace(sku) != "" {
		query += " WHERE sku = ?"
		args = append(args, sku)
	}
	query += " ORDER BY id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list builds: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var builtAt string
		if err := rows.Scan(&rec.ID, &rec.SKU, &rec.ISBN, &rec.Title, &rec.Author,
			&rec.TrackCount, &rec.BitRate, &rec.Checksum, &rec.ImagePath, &rec.ImageSize, &builtAt); err != nil {
			return nil, fmt.Errorf("scan build row: %w", err)
		}
		if parsed, err := time.Parse(time.RFC3339, builtAt); err == nil {
			rec.BuiltAt = parsed
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
