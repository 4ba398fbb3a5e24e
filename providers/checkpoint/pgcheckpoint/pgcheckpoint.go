package pgcheckpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/leofalp/sleuth/providers/checkpoint"
	"github.com/leofalp/sleuth/providers/observability"
)

// defaultTableName is the PostgreSQL table used when no custom name is provided.
const defaultTableName = "sleuth_checkpoints"

// Querier abstracts the pgx query methods needed by the read path.
// Both *pgxpool.Pool and pgx.Tx satisfy this interface.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxQuerier extends Querier with transaction support. *pgxpool.Pool
// satisfies it; Put needs it to hold the per-thread advisory lock.
type TxQuerier interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store implements [checkpoint.Store] with PostgreSQL persistence.
type Store struct {
	db        TxQuerier
	tableName string
}

// Compile-time check: Store must implement checkpoint.Store.
var _ checkpoint.Store = (*Store)(nil)

// Option configures optional Store behavior.
type Option func(*Store)

// WithTableName overrides the default table name ("sleuth_checkpoints").
// The name is sanitized via pgx.Identifier since it is interpolated into
// queries via fmt.Sprintf.
func WithTableName(name string) Option {
	return func(s *Store) {
		s.tableName = pgx.Identifier{name}.Sanitize()
	}
}

// New creates a PostgreSQL-backed checkpoint store. The db parameter is
// typically a *pgxpool.Pool.
func New(db TxQuerier, opts ...Option) *Store {
	store := &Store{
		db:        db,
		tableName: defaultTableName,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Put assigns the next sequence number of the thread and inserts the
// snapshot, all under a transaction-scoped advisory lock on the thread.
func (s *Store) Put(ctx context.Context, threadID string, snapshot checkpoint.Snapshot) (int64, error) {
	if threadID == "" {
		return 0, checkpoint.ErrEmptyThreadID
	}

	data, err := checkpoint.Encode(snapshot)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("pgcheckpoint: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, threadID); err != nil {
		return 0, fmt.Errorf("pgcheckpoint: lock thread: %w", err)
	}

	var seq int64
	nextSeqSQL := fmt.Sprintf(`SELECT COALESCE(MAX(seq), 0) + 1 FROM %s WHERE thread_id = $1`, s.tableName)
	if err := tx.QueryRow(ctx, nextSeqSQL, threadID).Scan(&seq); err != nil {
		return 0, fmt.Errorf("pgcheckpoint: next seq: %w", err)
	}

	insertSQL := fmt.Sprintf(`INSERT INTO %s
		(thread_id, seq, run_id, step, stage, done, snapshot)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`, s.tableName)
	_, err = tx.Exec(ctx, insertSQL,
		threadID,
		seq,
		snapshot.RunID,
		snapshot.Step,
		snapshot.Stage,
		snapshot.Done,
		data,
	)
	if err != nil {
		return 0, fmt.Errorf("pgcheckpoint: insert checkpoint: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("pgcheckpoint: commit: %w", err)
	}

	if span := observability.SpanFromContext(ctx); span != nil {
		span.AddEvent(observability.EventCheckpointPut,
			observability.String(observability.AttrCheckpointBackend, "postgres"),
			observability.String(observability.AttrCheckpointThreadID, threadID),
			observability.Int64(observability.AttrCheckpointSeq, seq),
		)
	}
	return seq, nil
}

// Latest returns the checkpoint with the highest seq, or (nil, nil) when the
// thread has none.
func (s *Store) Latest(ctx context.Context, threadID string) (*checkpoint.Checkpoint, error) {
	query := fmt.Sprintf(`SELECT seq, snapshot, created_at FROM %s
		WHERE thread_id = $1 ORDER BY seq DESC LIMIT 1`, s.tableName)

	stored, err := scanCheckpoint(threadID, s.db.QueryRow(ctx, query, threadID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pgcheckpoint: latest: %w", err)
	}
	return stored, nil
}

// Get returns the checkpoint with the given seq.
func (s *Store) Get(ctx context.Context, threadID string, seq int64) (*checkpoint.Checkpoint, error) {
	query := fmt.Sprintf(`SELECT seq, snapshot, created_at FROM %s
		WHERE thread_id = $1 AND seq = $2`, s.tableName)

	stored, err := scanCheckpoint(threadID, s.db.QueryRow(ctx, query, threadID, seq))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &checkpoint.NotFoundError{ThreadID: threadID, Seq: seq}
	}
	if err != nil {
		return nil, fmt.Errorf("pgcheckpoint: get: %w", err)
	}
	return stored, nil
}

// List returns every checkpoint of the thread in seq order.
func (s *Store) List(ctx context.Context, threadID string) ([]checkpoint.Checkpoint, error) {
	query := fmt.Sprintf(`SELECT seq, snapshot, created_at FROM %s
		WHERE thread_id = $1 ORDER BY seq ASC`, s.tableName)

	rows, err := s.db.Query(ctx, query, threadID)
	if err != nil {
		return nil, fmt.Errorf("pgcheckpoint: list: %w", err)
	}
	defer rows.Close()

	history := []checkpoint.Checkpoint{}
	for rows.Next() {
		stored, err := scanCheckpoint(threadID, rows)
		if err != nil {
			return nil, fmt.Errorf("pgcheckpoint: list: %w", err)
		}
		history = append(history, *stored)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgcheckpoint: list: %w", err)
	}
	return history, nil
}

// scanCheckpoint reads a (seq, snapshot, created_at) row. pgx.Rows satisfies
// pgx.Row, so the same helper serves QueryRow and Query.
func scanCheckpoint(threadID string, row pgx.Row) (*checkpoint.Checkpoint, error) {
	var (
		seq       int64
		data      []byte
		createdAt time.Time
	)
	if err := row.Scan(&seq, &data, &createdAt); err != nil {
		return nil, err
	}

	snapshot, err := checkpoint.Decode(data)
	if err != nil {
		return nil, err
	}
	return &checkpoint.Checkpoint{
		ThreadID:  threadID,
		Seq:       seq,
		CreatedAt: createdAt,
		Snapshot:  snapshot,
	}, nil
}
