// Package sqlitestore implements checkpoint.Store on SQLite through the
// pure-Go modernc.org/sqlite driver, so checkpoints survive process restarts
// without cgo or an external database.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/leofalp/sleuth/providers/checkpoint"
	"github.com/leofalp/sleuth/providers/observability"
)

const (
	// DriverName is the database/sql driver registered by modernc.org/sqlite.
	DriverName = "sqlite"

	defaultTableName = "sleuth_checkpoints"
)

// Store persists checkpoints in a SQLite table.
//
// SQLite allows one writer at a time. Open limits the pool to a single
// connection, which also serialises the read-max-then-insert transaction of
// Put and keeps sequence numbers gap-free.
type Store struct {
	db        *sql.DB
	tableName string
}

// Ensure Store implements checkpoint.Store at compile time.
var _ checkpoint.Store = (*Store)(nil)

// Option configures optional Store behavior.
type Option func(*Store)

// WithTableName overrides the default table name ("sleuth_checkpoints").
// The name is quoted before it is interpolated into statements.
func WithTableName(name string) Option {
	return func(s *Store) {
		s.tableName = quoteIdentifier(name)
	}
}

// New wraps an existing database handle. Callers sharing the handle with
// other writers must keep it to a single open connection.
func New(db *sql.DB, opts ...Option) *Store {
	store := &Store{db: db, tableName: defaultTableName}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Open opens the database at dsn, restricts it to one connection and
// creates the schema. Use ":memory:" for a throwaway database.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %q: %w", dsn, err)
	}
	db.SetMaxOpenConns(1)

	store := New(db, opts...)
	if err := store.EnsureSchema(ctx); err != nil {
		db.Close() //nolint:errcheck // the schema error is the one worth reporting
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put inserts the snapshot with seq = MAX(seq)+1 inside one transaction.
func (s *Store) Put(ctx context.Context, threadID string, snapshot checkpoint.Snapshot) (int64, error) {
	if threadID == "" {
		return 0, checkpoint.ErrEmptyThreadID
	}

	data, err := checkpoint.Encode(snapshot)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlitestore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	var seq int64
	nextSeqSQL := fmt.Sprintf(`SELECT COALESCE(MAX(seq), 0) + 1 FROM %s WHERE thread_id = ?`, s.tableName)
	if err := tx.QueryRowContext(ctx, nextSeqSQL, threadID).Scan(&seq); err != nil {
		return 0, fmt.Errorf("sqlitestore: next seq: %w", err)
	}

	insertSQL := fmt.Sprintf(`INSERT INTO %s
		(thread_id, seq, run_id, step, stage, done, snapshot, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, s.tableName)
	_, err = tx.ExecContext(ctx, insertSQL,
		threadID,
		seq,
		snapshot.RunID,
		snapshot.Step,
		snapshot.Stage,
		snapshot.Done,
		string(data),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlitestore: insert checkpoint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlitestore: commit: %w", err)
	}

	if span := observability.SpanFromContext(ctx); span != nil {
		span.AddEvent(observability.EventCheckpointPut,
			observability.String(observability.AttrCheckpointBackend, "sqlite"),
			observability.String(observability.AttrCheckpointThreadID, threadID),
			observability.Int64(observability.AttrCheckpointSeq, seq),
		)
	}
	return seq, nil
}

// Latest returns the checkpoint with the highest seq, or nil.
func (s *Store) Latest(ctx context.Context, threadID string) (*checkpoint.Checkpoint, error) {
	query := fmt.Sprintf(`SELECT seq, snapshot, created_at FROM %s
		WHERE thread_id = ? ORDER BY seq DESC LIMIT 1`, s.tableName)

	stored, err := scanCheckpoint(threadID, s.db.QueryRowContext(ctx, query, threadID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: latest: %w", err)
	}
	return stored, nil
}

// Get returns the checkpoint with the given seq.
func (s *Store) Get(ctx context.Context, threadID string, seq int64) (*checkpoint.Checkpoint, error) {
	query := fmt.Sprintf(`SELECT seq, snapshot, created_at FROM %s
		WHERE thread_id = ? AND seq = ?`, s.tableName)

	stored, err := scanCheckpoint(threadID, s.db.QueryRowContext(ctx, query, threadID, seq))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &checkpoint.NotFoundError{ThreadID: threadID, Seq: seq}
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: get: %w", err)
	}
	return stored, nil
}

// List returns every checkpoint of the thread ordered by seq.
func (s *Store) List(ctx context.Context, threadID string) ([]checkpoint.Checkpoint, error) {
	query := fmt.Sprintf(`SELECT seq, snapshot, created_at FROM %s
		WHERE thread_id = ? ORDER BY seq ASC`, s.tableName)

	rows, err := s.db.QueryContext(ctx, query, threadID)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: list: %w", err)
	}
	defer rows.Close()

	history := []checkpoint.Checkpoint{}
	for rows.Next() {
		stored, err := scanCheckpoint(threadID, rows)
		if err != nil {
			return nil, fmt.Errorf("sqlitestore: list: %w", err)
		}
		history = append(history, *stored)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitestore: list: %w", err)
	}
	return history, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(threadID string, row scanner) (*checkpoint.Checkpoint, error) {
	var (
		seq       int64
		data      string
		createdAt string
	)
	if err := row.Scan(&seq, &data, &createdAt); err != nil {
		return nil, err
	}

	snapshot, err := checkpoint.Decode([]byte(data))
	if err != nil {
		return nil, err
	}
	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}

	return &checkpoint.Checkpoint{
		ThreadID:  threadID,
		Seq:       seq,
		CreatedAt: created,
		Snapshot:  snapshot,
	}, nil
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
