// Package store provides SQLite-backed note persistence with live queries.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/sagenote/internal/hub"
)

// migrations are applied in order; the index of the last applied one plus
// one is recorded in PRAGMA user_version.
var migrations = []string{
	`
CREATE TABLE IF NOT EXISTS notes (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	title        TEXT    NOT NULL DEFAULT '',
	content      TEXT    NOT NULL DEFAULT '',
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL,
	color        INTEGER NOT NULL,
	text_color   INTEGER NOT NULL,
	is_pinned    INTEGER NOT NULL DEFAULT 0,
	type         TEXT    NOT NULL DEFAULT 'TEXT',
	list_items   TEXT    NOT NULL DEFAULT '[]',
	drawing_path TEXT    NOT NULL DEFAULT '',
	audio_path   TEXT    NOT NULL DEFAULT ''
);
`,
	`
CREATE INDEX IF NOT EXISTS idx_notes_order ON notes(is_pinned DESC, updated_at DESC);
`,
}

// SchemaVersion is the schema version produced by the bundled migrations.
var SchemaVersion = len(migrations)

// Observer receives store instrumentation.
type Observer interface {
	// ObserveOp is called once per store operation.
	ObserveOp(op string, d time.Duration, err error)
	// LiveQueries is called with +1 when a live query starts and -1 when it ends.
	LiveQueries(delta int)
}

// Option configures a Store.
type Option func(*Store)

// WithObserver sets the instrumentation observer.
func WithObserver(o Observer) Option {
	return func(s *Store) {
		s.obs = o
	}
}

// Store wraps a sql.DB with note operations and a change hub that drives
// live queries.
type Store struct {
	conn    *sql.DB
	changes *hub.Hub[struct{}]
	obs     Observer
}

// New wraps an open connection without touching the schema.
func New(conn *sql.DB, opts ...Option) *Store {
	s := &Store{
		conn:    conn,
		changes: hub.New[struct{}](1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open opens (or creates) the SQLite database and applies pending migrations.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if err := migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	return New(conn, opts...), nil
}

func migrate(ctx context.Context, conn *sql.DB) error {
	var version int
	if err := conn.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("store: read schema version: %w", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("store: schema version %d is newer than supported %d", version, len(migrations))
	}

	for i := version; i < len(migrations); i++ {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("store: begin migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("store: apply migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, i+1)); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("store: record migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("store: commit migration %d: %w", i+1, err)
		}
	}
	return nil
}

// Close stops every live query and closes the underlying connection.
func (s *Store) Close() error {
	s.changes.Close()
	return s.conn.Close()
}

// changed tells live queries that the table was modified.
func (s *Store) changed() {
	s.changes.Publish(struct{}{})
}

func (s *Store) observe(op string, start time.Time, err error) {
	if s.obs != nil {
		s.obs.ObserveOp(op, time.Since(start), err)
	}
}

// Stats returns connection pool statistics.
func (s *Store) Stats() sql.DBStats {
	return s.conn.Stats()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}
