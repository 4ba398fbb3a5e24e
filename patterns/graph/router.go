package graph

import (
	"context"

	"github.com/leofalp/sleuth/core/state"
)

// Send is a single routing decision: run Stage next.
//
// With a nil Payload the stage runs against the shared state, like a static
// edge, and is de-duplicated with other triggers of the same superstep. With
// a non-nil Payload the stage runs as an isolated branch whose state is
// seeded from the payload; every such Send spawns its own invocation.
type Send struct {
	Stage   string
	Payload map[string]any
}

// Router decides at runtime which successors a stage hands over to. It
// receives the state merged after the superstep (or, for a branch, the
// branch result) and must not have side effects. Returning no sends ends
// that path of the run without error.
//
// Example (fan-out):
//
//	func continueToSearch(_ context.Context, st state.State) ([]graph.Send, error) {
//	    queries, _ := state.As[[]string](st, "queries")
//	    sends := make([]graph.Send, 0, len(queries))
//	    for _, query := range queries {
//	        sends = append(sends, graph.Send{Stage: "search", Payload: map[string]any{"query": query}})
//	    }
//	    return sends, nil
//	}
type Router func(ctx context.Context, st state.State) ([]Send, error)

// RouteTo returns a Router that always hands over to the given stages with
// the shared state.
func RouteTo(stages ...string) Router {
	return func(context.Context, state.State) ([]Send, error) {
		sends := make([]Send, len(stages))
		for index, stage := range stages {
			sends[index] = Send{Stage: stage}
		}
		return sends, nil
	}
}
