package pgcheckpoint

import (
	"context"
	"fmt"
)

// createTableSQL is the DDL statement that creates the checkpoint table.
// The full snapshot is stored as JSONB; run_id, step, stage and done are
// duplicated into columns so history can be inspected with plain SQL.
const createTableSQL = `CREATE TABLE IF NOT EXISTS %s (
    thread_id  TEXT        NOT NULL,
    seq        BIGINT      NOT NULL,
    run_id     TEXT        NOT NULL DEFAULT '',
    step       INTEGER     NOT NULL DEFAULT 0,
    stage      TEXT        NOT NULL DEFAULT '',
    done       BOOLEAN     NOT NULL DEFAULT FALSE,
    snapshot   JSONB       NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (thread_id, seq)
)`

// EnsureSchema creates the checkpoint table if it does not already exist.
// This is a convenience helper for development; production deployments
// should manage the table with their migration tooling.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, fmt.Sprintf(createTableSQL, s.tableName)); err != nil {
		return fmt.Errorf("pgcheckpoint: create table: %w", err)
	}
	return nil
}
