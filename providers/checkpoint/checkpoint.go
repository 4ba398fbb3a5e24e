package checkpoint

import (
	"context"
	"time"
)

// Task is a unit of pending work recorded in a snapshot frontier.
type Task struct {
	// Stage is the name of the stage to invoke.
	Stage string `json:"stage"`

	// Branch numbers the invocation among the mapping branches spawned in
	// the same superstep, starting at 1. Zero marks a regular invocation.
	Branch int `json:"branch,omitempty"`

	// Payload seeds the isolated state of a branch invocation.
	Payload map[string]any `json:"payload,omitempty"`
}

// Snapshot is the persisted view of a run after a stage completed.
type Snapshot struct {
	// RunID identifies the logical run that produced the snapshot. A thread
	// may hold several runs when it is invoked again with fresh input.
	RunID string `json:"run_id"`

	// Step is the superstep number. The input checkpoint is step 0.
	Step int `json:"step"`

	// Stage is the stage whose completion produced the snapshot.
	Stage string `json:"stage"`

	// Branch is the branch index of the producing invocation, zero if none.
	Branch int `json:"branch,omitempty"`

	// Values holds the parent state after the update was applied.
	Values map[string]any `json:"values"`

	// Next is the frontier of the following superstep. Only the last
	// checkpoint of a superstep carries it.
	Next []Task `json:"next,omitempty"`

	// Joins maps a fan-in key to the predecessors that already completed.
	Joins map[string][]string `json:"joins,omitempty"`

	// Done marks the checkpoint that closed the run.
	Done bool `json:"done,omitempty"`
}

// Boundary reports whether the snapshot closes a superstep, which makes it a
// valid resume point.
func (snapshot Snapshot) Boundary() bool {
	return snapshot.Done || len(snapshot.Next) > 0
}

// Checkpoint is a snapshot addressed by thread and sequence number.
type Checkpoint struct {
	ThreadID  string    `json:"thread_id"`
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
	Snapshot
}

// Store persists checkpoints.
//
// Put assigns the next sequence number of the thread (1 for the first
// checkpoint) and returns it. Sequence numbers are gap-free and strictly
// increasing per thread, also under concurrent calls.
//
// Latest returns (nil, nil) when the thread has no checkpoint.
// Get returns a *NotFoundError, matching ErrNotFound, for unknown keys.
// List returns every checkpoint of the thread in seq order.
type Store interface {
	Put(ctx context.Context, threadID string, snapshot Snapshot) (int64, error)
	Latest(ctx context.Context, threadID string) (*Checkpoint, error)
	Get(ctx context.Context, threadID string, seq int64) (*Checkpoint, error)
	List(ctx context.Context, threadID string) ([]Checkpoint, error)
}

// LatestBoundary returns the most recent checkpoint of the thread that closes
// a superstep, or nil when there is none.
func LatestBoundary(ctx context.Context, store Store, threadID string) (*Checkpoint, error) {
	latest, err := store.Latest(ctx, threadID)
	if err != nil || latest == nil || latest.Boundary() {
		return latest, err
	}

	history, err := store.List(ctx, threadID)
	if err != nil {
		return nil, err
	}
	for position := len(history) - 1; position >= 0; position-- {
		if history[position].Boundary() {
			found := history[position]
			return &found, nil
		}
	}
	return nil, nil
}
