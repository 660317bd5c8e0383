package datastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
)

// Postgres mirrors SQLite on a JSONB column. The table is created by the
// migrations in ./migrations, not here.
type Postgres struct {
	db  *sql.DB
	dsn string
}

var _ Backend = (*Postgres)(nil)

func NewPostgres(dsn string) (*Postgres, error) {
	d, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	p := &Postgres{db: d, dsn: dsn}
	if err := p.db.Ping(); err != nil {
		d.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) Load(ctx context.Context) (Document, error) {
	return loadRows(ctx, p.db, `SELECT name, body::text FROM collections`)
}

func (p *Postgres) Save(ctx context.Context, doc Document, changed string) error {
	body, err := json.Marshal(doc[changed])
	if err != nil {
		return fmt.Errorf("encode %s: %w", changed, err)
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO collections(name, body, updated_at) VALUES($1, $2::jsonb, now())
		 ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`,
		changed, string(body))
	return err
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }
func (p *Postgres) Close() error                   { return p.db.Close() }
