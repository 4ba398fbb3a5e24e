package sqlitestore

import (
	"context"
	"fmt"
)

// createTableSQL creates the checkpoint table. The composite primary key
// doubles as the lookup index for Latest, Get and List.
const createTableSQL = `CREATE TABLE IF NOT EXISTS %s (
    thread_id  TEXT    NOT NULL,
    seq        INTEGER NOT NULL,
    run_id     TEXT    NOT NULL DEFAULT '',
    step       INTEGER NOT NULL DEFAULT 0,
    stage      TEXT    NOT NULL DEFAULT '',
    done       INTEGER NOT NULL DEFAULT 0,
    snapshot   TEXT    NOT NULL,
    created_at TEXT    NOT NULL,
    PRIMARY KEY (thread_id, seq)
)`

// EnsureSchema creates the checkpoint table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(createTableSQL, s.tableName)); err != nil {
		return fmt.Errorf("sqlitestore: create table: %w", err)
	}
	return nil
}
