package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoCheckpoint is returned when a run is resumed on a thread that has
	// no checkpoint to resume from.
	ErrNoCheckpoint = errors.New("graph: no checkpoint to resume from")

	// ErrStreamConsumed is yielded when a Stream is iterated a second time.
	ErrStreamConsumed = errors.New("graph: stream already consumed")

	// ErrEmptyThreadID is returned when Run, Stream or GetState get no thread id.
	ErrEmptyThreadID = errors.New("graph: empty thread id")

	// ErrInvalidStage is returned for an empty or reserved stage name, a nil
	// stage, or a malformed edge.
	ErrInvalidStage = errors.New("graph: invalid stage")

	// ErrUndeclaredSuccessor is wrapped by a RoutingError when a router sends
	// to a stage not listed in its edge.
	ErrUndeclaredSuccessor = errors.New("graph: send to undeclared successor")

	// ErrStagePanic is wrapped by a StageExecutionError when a stage panics.
	ErrStagePanic = errors.New("graph: stage panicked")

	// ErrRouterPanic is wrapped by a RoutingError when a router panics.
	ErrRouterPanic = errors.New("graph: router panicked")
)

// DuplicateStageError is returned by RegisterStage when the name is taken.
// The original registration stays active.
type DuplicateStageError struct {
	Stage string
}

func (err *DuplicateStageError) Error() string {
	return fmt.Sprintf("graph: stage %q is already registered", err.Stage)
}

// UnknownStageError is returned when an edge references an unregistered stage.
type UnknownStageError struct {
	Stage string
}

func (err *UnknownStageError) Error() string {
	return fmt.Sprintf("graph: unknown stage %q", err.Stage)
}

// GraphValidationError lists every structural problem found by Compile.
type GraphValidationError struct {
	Problems []string
}

func (err *GraphValidationError) Error() string {
	return "graph: invalid graph: " + strings.Join(err.Problems, "; ")
}

// RoutingError aborts a run when a router fails or sends somewhere it may not.
type RoutingError struct {
	// Stage is the stage whose outgoing router failed.
	Stage string
	Err   error
}

func (err *RoutingError) Error() string {
	return fmt.Sprintf("graph: routing after stage %q failed: %v", err.Stage, err.Err)
}

func (err *RoutingError) Unwrap() error {
	return err.Err
}

// StageExecutionError aborts a run when a stage returns an error. Errors of
// collaborators stay reachable through errors.As.
type StageExecutionError struct {
	Stage string
	// Branch is the mapping branch index, zero for a regular invocation.
	Branch int
	Err    error
}

func (err *StageExecutionError) Error() string {
	if err.Branch > 0 {
		return fmt.Sprintf("graph: stage %q (branch %d) failed: %v", err.Stage, err.Branch, err.Err)
	}
	return fmt.Sprintf("graph: stage %q failed: %v", err.Stage, err.Err)
}

func (err *StageExecutionError) Unwrap() error {
	return err.Err
}
