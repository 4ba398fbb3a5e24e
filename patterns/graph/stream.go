package graph

import (
	"context"
	"errors"
	"iter"
	"sync/atomic"
	"time"

	"github.com/leofalp/sleuth/core/state"
)

// --- Event Types ---

// EventType identifies what happened during a run.
type EventType string

const (
	// EventStepStart signals that a superstep begins. Stages lists the
	// frontier in spawn order, one entry per task.
	EventStepStart EventType = "step_start"

	// EventStageComplete carries the update returned by one stage
	// invocation. Events of the same superstep arrive in completion order.
	EventStageComplete EventType = "stage_complete"

	// EventCheckpoint signals that a checkpoint was persisted. Seq is its
	// sequence number within the thread.
	EventCheckpoint EventType = "checkpoint"

	// EventError is the last event of a failed run. It is yielded together
	// with the error.
	EventError EventType = "error"

	// EventDone is the last event of a successful run. State holds the final
	// state.
	EventDone EventType = "done"
)

// Event is a single observation from a run. The Step, Stage and Branch
// fields locate the event within the run.
type Event struct {
	// Type identifies what kind of event this is.
	Type EventType `json:"type"`

	// Step is the superstep number, starting at 1. Zero refers to the input
	// checkpoint.
	Step int `json:"step"`

	// Stage is the stage that produced the event, empty for step-scoped
	// events.
	Stage string `json:"stage,omitempty"`

	// Branch is the mapping branch index, zero for a regular invocation.
	Branch int `json:"branch,omitempty"`

	// Stages lists the tasks of a superstep. Only set on EventStepStart.
	Stages []string `json:"stages,omitempty"`

	// Update is the partial state returned by the stage. Only set on
	// EventStageComplete.
	Update state.Update `json:"update,omitempty"`

	// Duration is the wall time of the stage invocation.
	Duration time.Duration `json:"duration,omitempty"`

	// Seq is the sequence number of the checkpoint. Only set on
	// EventCheckpoint.
	Seq int64 `json:"seq,omitempty"`

	// State is the final state. Only set on EventDone.
	State *state.State `json:"-"`

	// Error describes the failure. Only set on EventError.
	Error string `json:"error,omitempty"`
}

// Stream is the lazy, finite event sequence of a single run. The run starts
// when iteration starts and is canceled when the consumer stops early. A
// Stream can be iterated only once.
//
// Example:
//
//	for event, err := range compiled.Stream(ctx, input, "thread-1").Iter() {
//	    if err != nil {
//	        return err
//	    }
//	    if event.Type == graph.EventStageComplete {
//	        fmt.Printf("%s/%d done\n", event.Stage, event.Branch)
//	    }
//	}
type Stream struct {
	iterator iter.Seq2[Event, error]
	consumed atomic.Bool
}

// Iter returns the event iterator. Iterating a second time yields a single
// EventError carrying ErrStreamConsumed.
func (stream *Stream) Iter() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		if !stream.consumed.CompareAndSwap(false, true) {
			yield(Event{Type: EventError, Error: ErrStreamConsumed.Error()}, ErrStreamConsumed)
			return
		}
		stream.iterator(yield)
	}
}

// Collect drains the stream and returns the final state, or the error that
// stopped the run.
func (stream *Stream) Collect() (state.State, error) {
	var final state.State
	for event, err := range stream.Iter() {
		if err != nil {
			return state.State{}, err
		}
		if event.Type == EventDone && event.State != nil {
			final = *event.State
		}
	}
	return final, nil
}

// errConsumerStopped is returned internally when the consumer broke out of
// the range loop. It is never yielded.
var errConsumerStopped = errors.New("graph: stream consumer stopped iteration")

// Stream starts (lazily) a run of the graph on threadID and returns its
// events.
//
// A non-nil input starts a new run seeded with input. A nil input resumes
// the thread from its latest superstep boundary: the pending frontier is run
// again and partially satisfied fan-ins are restored. Resuming a run that
// already finished yields EventDone with the final state without running
// any stage.
func (graph *Graph) Stream(ctx context.Context, input map[string]any, threadID string) *Stream {
	return &Stream{
		iterator: func(yield func(Event, error) bool) {
			err := graph.execute(ctx, input, threadID, yield)
			if err != nil && !errors.Is(err, errConsumerStopped) {
				yield(Event{Type: EventError, Error: err.Error()}, err)
			}
		},
	}
}

// Run executes the graph to completion and returns the final state. See
// Stream for the meaning of a nil input.
func (graph *Graph) Run(ctx context.Context, input map[string]any, threadID string) (state.State, error) {
	return graph.Stream(ctx, input, threadID).Collect()
}
