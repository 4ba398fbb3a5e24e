// Package checkpointtest provides the behavioural contract every
// checkpoint.Store implementation must satisfy.
package checkpointtest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leofalp/sleuth/providers/checkpoint"
)

// Factory returns an empty store for a single subtest.
type Factory func(t *testing.T) checkpoint.Store

// RunStoreTests runs the contract suite against stores built by newStore.
func RunStoreTests(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("LatestOnEmptyThread", func(t *testing.T) {
		store := newStore(t)
		latest, err := store.Latest(context.Background(), "empty")
		require.NoError(t, err)
		assert.Nil(t, latest)
	})

	t.Run("GetMissing", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		_, err := store.Get(ctx, "missing", 1)
		require.Error(t, err)
		assert.True(t, errors.Is(err, checkpoint.ErrNotFound))

		var notFound *checkpoint.NotFoundError
		require.True(t, errors.As(err, &notFound))
		assert.Equal(t, "missing", notFound.ThreadID)
		assert.Equal(t, int64(1), notFound.Seq)

		_, err = store.Put(ctx, "missing", snapshot("a", 0))
		require.NoError(t, err)
		_, err = store.Get(ctx, "missing", 2)
		assert.True(t, errors.Is(err, checkpoint.ErrNotFound))
	})

	t.Run("EmptyThreadID", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Put(context.Background(), "", snapshot("a", 0))
		assert.True(t, errors.Is(err, checkpoint.ErrEmptyThreadID))
	})

	t.Run("SequentialPutAndRead", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		for step := range 3 {
			seq, err := store.Put(ctx, "thread", snapshot(fmt.Sprintf("stage-%d", step), step))
			require.NoError(t, err)
			assert.Equal(t, int64(step+1), seq)
		}

		latest, err := store.Latest(ctx, "thread")
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, int64(3), latest.Seq)
		assert.Equal(t, "thread", latest.ThreadID)
		assert.Equal(t, "stage-2", latest.Stage)
		assert.Equal(t, "run-1", latest.RunID)
		assert.False(t, latest.CreatedAt.IsZero())

		second, err := store.Get(ctx, "thread", 2)
		require.NoError(t, err)
		assert.Equal(t, "stage-1", second.Stage)
		assert.Equal(t, 1, second.Step)
		assert.Equal(t, "v-1", second.Values["topic"])

		history, err := store.List(ctx, "thread")
		require.NoError(t, err)
		require.Len(t, history, 3)
		for position, stored := range history {
			assert.Equal(t, int64(position+1), stored.Seq)
		}
	})

	t.Run("SnapshotRoundTrip", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		original := checkpoint.Snapshot{
			RunID:  "run-7",
			Step:   4,
			Stage:  "search",
			Branch: 2,
			Values: map[string]any{
				"topic":    "go",
				"findings": []any{"a", "b"},
			},
			Next: []checkpoint.Task{
				{Stage: "report"},
				{Stage: "search", Branch: 1, Payload: map[string]any{"query": "q"}},
			},
			Joins: map[string][]string{"finalize<conclude,report": {"report"}},
			Done:  true,
		}
		seq, err := store.Put(ctx, "round-trip", original)
		require.NoError(t, err)

		stored, err := store.Get(ctx, "round-trip", seq)
		require.NoError(t, err)
		assert.Equal(t, original.RunID, stored.RunID)
		assert.Equal(t, original.Step, stored.Step)
		assert.Equal(t, original.Branch, stored.Branch)
		assert.Equal(t, original.Values, stored.Values)
		assert.Equal(t, original.Next, stored.Next)
		assert.Equal(t, original.Joins, stored.Joins)
		assert.True(t, stored.Done)
		assert.True(t, stored.Boundary())
	})

	t.Run("StoredSnapshotIsIsolated", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		values := map[string]any{"topic": "before"}
		_, err := store.Put(ctx, "isolated", checkpoint.Snapshot{Stage: "a", Values: values})
		require.NoError(t, err)
		values["topic"] = "after"

		stored, err := store.Latest(ctx, "isolated")
		require.NoError(t, err)
		assert.Equal(t, "before", stored.Values["topic"])

		stored.Values["topic"] = "mutated"
		again, err := store.Latest(ctx, "isolated")
		require.NoError(t, err)
		assert.Equal(t, "before", again.Values["topic"])
	})

	t.Run("ThreadsAreIndependent", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		for range 2 {
			_, err := store.Put(ctx, "left", snapshot("l", 0))
			require.NoError(t, err)
		}
		seq, err := store.Put(ctx, "right", snapshot("r", 0))
		require.NoError(t, err)
		assert.Equal(t, int64(1), seq)
	})

	for _, writers := range []int{1, 5, 50} {
		t.Run(fmt.Sprintf("ConcurrentPuts/%d", writers), func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()
			threadID := fmt.Sprintf("concurrent-%d", writers)

			var group sync.WaitGroup
			seqs := make([]int64, writers)
			errs := make([]error, writers)
			for writer := range writers {
				group.Add(1)
				go func() {
					defer group.Done()
					seqs[writer], errs[writer] = store.Put(ctx, threadID, snapshot(fmt.Sprintf("w-%d", writer), writer))
				}()
			}
			group.Wait()

			for writer, err := range errs {
				require.NoError(t, err, "writer %d", writer)
			}

			slices.Sort(seqs)
			for position, seq := range seqs {
				assert.Equal(t, int64(position+1), seq, "sequence numbers must be gap-free")
			}

			history, err := store.List(ctx, threadID)
			require.NoError(t, err)
			require.Len(t, history, writers)

			latest, err := store.Latest(ctx, threadID)
			require.NoError(t, err)
			assert.Equal(t, int64(writers), latest.Seq)
		})
	}
}

func snapshot(stage string, step int) checkpoint.Snapshot {
	return checkpoint.Snapshot{
		RunID:  "run-1",
		Step:   step,
		Stage:  stage,
		Values: map[string]any{"topic": fmt.Sprintf("v-%d", step)},
	}
}
