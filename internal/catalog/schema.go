// Package catalog keeps a SQLite history of knowledge base builds: one
// generation per successful build, with its entry titles and parse warnings.
// The matcher never reads it.
package catalog

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS generations (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	checksum    TEXT     NOT NULL,
	source      TEXT     NOT NULL DEFAULT '',
	title       TEXT     NOT NULL DEFAULT '',
	entries     INTEGER  NOT NULL DEFAULT 0,
	dropped     INTEGER  NOT NULL DEFAULT 0,
	warnings    INTEGER  NOT NULL DEFAULT 0,
	vocabulary  INTEGER  NOT NULL DEFAULT 0,
	built_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS generation_entries (
	generation_id INTEGER NOT NULL REFERENCES generations(id) ON DELETE CASCADE,
	entry_id      INTEGER NOT NULL,
	title         TEXT    NOT NULL DEFAULT '',
	tokens        INTEGER NOT NULL DEFAULT 0,
	UNIQUE(generation_id, entry_id)
);

CREATE TABLE IF NOT EXISTS generation_warnings (
	generation_id INTEGER NOT NULL REFERENCES generations(id) ON DELETE CASCADE,
	seq           INTEGER NOT NULL,
	line          INTEGER NOT NULL DEFAULT 0,
	message       TEXT    NOT NULL,
	UNIQUE(generation_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_generations_checksum ON generations(checksum);
`

// DB wraps a sql.DB with catalog operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(ctx context.Context, dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("catalog: open db: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: ping: %w", err)
	}
	if _, err := conn.ExecContext(ctx, schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
