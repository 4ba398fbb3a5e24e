package checkpoint

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by every lookup failure of a Store.
	ErrNotFound = errors.New("checkpoint: not found")

	// ErrEmptyThreadID is returned when a store operation gets no thread id.
	ErrEmptyThreadID = errors.New("checkpoint: empty thread id")
)

// NotFoundError reports a missing checkpoint.
type NotFoundError struct {
	ThreadID string
	// Seq is zero when the whole thread is unknown.
	Seq int64
}

func (err *NotFoundError) Error() string {
	if err.Seq == 0 {
		return fmt.Sprintf("checkpoint: thread %q has no checkpoints", err.ThreadID)
	}
	return fmt.Sprintf("checkpoint: thread %q has no checkpoint %d", err.ThreadID, err.Seq)
}

// Unwrap lets errors.Is(err, ErrNotFound) succeed.
func (err *NotFoundError) Unwrap() error {
	return ErrNotFound
}
