package datastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLite stores one row per collection with the records as a JSON array.
type SQLite struct {
	db   *sql.DB
	path string
}

var _ Backend = (*SQLite)(nil)

func NewSQLite(path string) (*SQLite, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &SQLite{db: d, path: path}
	if err := s.Init(); err != nil {
		d.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) Init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS collections (name TEXT PRIMARY KEY, body TEXT NOT NULL, updated_at TEXT);`)
	return err
}

func (s *SQLite) Load(ctx context.Context) (Document, error) {
	return loadRows(ctx, s.db, `SELECT name, body FROM collections`)
}

func (s *SQLite) Save(ctx context.Context, doc Document, changed string) error {
	body, err := json.Marshal(doc[changed])
	if err != nil {
		return fmt.Errorf("encode %s: %w", changed, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO collections(name, body, updated_at) VALUES(?, ?, datetime('now'))
		 ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		changed, string(body))
	return err
}

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *SQLite) Close() error                   { return s.db.Close() }

func loadRows(ctx context.Context, db *sql.DB, query string) (Document, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	doc := Document{}
	for rows.Next() {
		var name string
		var body []byte
		if err := rows.Scan(&name, &body); err != nil {
			return nil, err
		}
		items, err := parseCollection(body)
		if err != nil {
			return nil, fmt.Errorf("collection %q: %w", name, err)
		}
		doc[name] = items
	}
	return doc, rows.Err()
}
