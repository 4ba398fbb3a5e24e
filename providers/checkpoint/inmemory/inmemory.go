// Package inmemory provides a process-local checkpoint.Store. It is the
// default store of the graph engine and the reference implementation of the
// checkpoint contract.
package inmemory

import (
	"context"
	"time"

	"github.com/sasha-s/go-deadlock"

	"github.com/leofalp/sleuth/providers/checkpoint"
	"github.com/leofalp/sleuth/providers/observability"
)

// Store keeps encoded snapshots per thread. Writers of one thread are
// serialised by a per-thread mutex, so sequence numbers stay gap-free while
// different threads never contend.
type Store struct {
	mu      deadlock.RWMutex
	threads map[string]*thread
}

type thread struct {
	mu      deadlock.RWMutex
	entries []entry
}

type entry struct {
	seq       int64
	createdAt time.Time
	data      []byte
}

// Ensure Store implements checkpoint.Store at compile time.
var _ checkpoint.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{threads: map[string]*thread{}}
}

// Put appends the snapshot to the thread and returns its sequence number.
// When an observability span is present in ctx, an event is recorded with the
// assigned sequence number.
func (s *Store) Put(ctx context.Context, threadID string, snapshot checkpoint.Snapshot) (int64, error) {
	if threadID == "" {
		return 0, checkpoint.ErrEmptyThreadID
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	data, err := checkpoint.Encode(snapshot)
	if err != nil {
		return 0, err
	}

	current := s.thread(threadID, true)
	current.mu.Lock()
	seq := int64(len(current.entries)) + 1
	current.entries = append(current.entries, entry{seq: seq, createdAt: time.Now().UTC(), data: data})
	current.mu.Unlock()

	if span := observability.SpanFromContext(ctx); span != nil {
		span.AddEvent(observability.EventCheckpointPut,
			observability.String(observability.AttrCheckpointBackend, "inmemory"),
			observability.String(observability.AttrCheckpointThreadID, threadID),
			observability.Int64(observability.AttrCheckpointSeq, seq),
			observability.String(observability.AttrCheckpointStage, snapshot.Stage),
		)
	}
	return seq, nil
}

// Latest returns the checkpoint with the highest seq, or nil.
func (s *Store) Latest(_ context.Context, threadID string) (*checkpoint.Checkpoint, error) {
	current := s.thread(threadID, false)
	if current == nil {
		return nil, nil
	}

	current.mu.RLock()
	defer current.mu.RUnlock()
	if len(current.entries) == 0 {
		return nil, nil
	}
	return decode(threadID, current.entries[len(current.entries)-1])
}

// Get returns the checkpoint with the given seq.
func (s *Store) Get(_ context.Context, threadID string, seq int64) (*checkpoint.Checkpoint, error) {
	current := s.thread(threadID, false)
	if current == nil {
		return nil, &checkpoint.NotFoundError{ThreadID: threadID, Seq: seq}
	}

	current.mu.RLock()
	defer current.mu.RUnlock()
	if seq < 1 || seq > int64(len(current.entries)) {
		return nil, &checkpoint.NotFoundError{ThreadID: threadID, Seq: seq}
	}
	return decode(threadID, current.entries[seq-1])
}

// List returns every checkpoint of the thread ordered by seq.
func (s *Store) List(_ context.Context, threadID string) ([]checkpoint.Checkpoint, error) {
	current := s.thread(threadID, false)
	if current == nil {
		return []checkpoint.Checkpoint{}, nil
	}

	current.mu.RLock()
	defer current.mu.RUnlock()
	history := make([]checkpoint.Checkpoint, 0, len(current.entries))
	for _, stored := range current.entries {
		decoded, err := decode(threadID, stored)
		if err != nil {
			return nil, err
		}
		history = append(history, *decoded)
	}
	return history, nil
}

// thread returns the bucket for id, creating it when create is set.
func (s *Store) thread(id string, create bool) *thread {
	s.mu.RLock()
	current, ok := s.threads[id]
	s.mu.RUnlock()
	if ok || !create {
		return current
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Double-check after acquiring write lock
	if current, ok = s.threads[id]; ok {
		return current
	}
	current = &thread{}
	s.threads[id] = current
	return current
}

func decode(threadID string, stored entry) (*checkpoint.Checkpoint, error) {
	snapshot, err := checkpoint.Decode(stored.data)
	if err != nil {
		return nil, err
	}
	return &checkpoint.Checkpoint{
		ThreadID:  threadID,
		Seq:       stored.seq,
		CreatedAt: stored.createdAt,
		Snapshot:  snapshot,
	}, nil
}
