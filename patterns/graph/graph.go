package graph

import (
	"context"
	"time"

	"github.com/leofalp/sleuth/core/state"
	"github.com/leofalp/sleuth/providers/checkpoint"
	"github.com/leofalp/sleuth/providers/observability"
)

const (
	// Start is the marker every graph begins at. Exactly one static edge may
	// leave it.
	Start = "__start__"

	// End is the terminal marker. Every stage must be able to reach it.
	End = "__end__"
)

// Stage is the unit of work of a graph. It receives an immutable view of the
// state and returns the fields it wants to change. The engine merges the
// update into the shared state after every stage of the superstep finished.
//
// A stage may be invoked zero or more times per run: once per incoming
// trigger and once per mapping branch. Implementations must therefore be safe
// for concurrent use.
//
// Example:
//
//	type Summarize struct{ Provider ai.Provider }
//
//	func (s *Summarize) Run(ctx context.Context, st state.State) (state.Update, error) {
//	    text, _ := state.As[string](st, "text")
//	    completion, err := s.Provider.Complete(ctx, ai.CompletionRequest{SystemPrompt: text})
//	    if err != nil {
//	        return nil, err
//	    }
//	    return state.Update{"summary": completion.Content}, nil
//	}
type Stage interface {
	Run(ctx context.Context, st state.State) (state.Update, error)
}

// StageFunc is an adapter that allows using an ordinary function as a Stage.
type StageFunc func(ctx context.Context, st state.State) (state.Update, error)

// Run calls the underlying function, satisfying the Stage interface.
func (stageFunc StageFunc) Run(ctx context.Context, st state.State) (state.Update, error) {
	return stageFunc(ctx, st)
}

// ScopedStage is a Stage that reads a state with its own schema, such as a
// nested graph. Regular invocations receive the parent state projected onto
// InputSchema; branch invocations receive their payload seeded into an empty
// state of InputSchema. The returned update is filtered down to the fields
// of the parent schema.
type ScopedStage interface {
	Stage
	InputSchema() *state.Schema
}

// stageNode is a registered stage. It is created by the Builder and never
// mutated after registration.
type stageNode struct {
	// name is the unique identifier of the stage within its graph.
	name string

	// stage holds the processing logic.
	stage Stage

	// inputSchema is the schema of the state the stage reads. It is the
	// graph schema unless the stage implements ScopedStage.
	inputSchema *state.Schema

	// timeout bounds a single invocation. Zero means no stage timeout.
	timeout time.Duration
}

// fanIn is a join edge: to runs once every predecessor completed.
type fanIn struct {
	// key identifies the join in checkpoints: to + "<" + sorted predecessors.
	key string

	// predecessors are the sorted, de-duplicated stage names to wait for.
	predecessors []string

	// to is the stage (or End) triggered once the join is satisfied.
	to string
}

// conditionalEdge routes the output of a stage through a Router.
type conditionalEdge struct {
	// from is the stage whose completion triggers the router.
	from string

	// router picks the successors at runtime.
	router Router

	// successors lists every stage the router is allowed to send to.
	successors map[string]bool

	// successorOrder preserves declaration order for rendering.
	successorOrder []string
}

// graphConfig holds the configuration for a Graph, populated by Options.
type graphConfig struct {
	// name labels the graph in logs and spans.
	name string

	// store persists checkpoints. Defaults to an in-memory store.
	store checkpoint.Store

	// observer receives spans, metrics and logs. When nil, the observer
	// carried by the run context is used, if any.
	observer observability.Provider

	// maxConcurrency limits the stage invocations running at once within a
	// superstep. Zero means unlimited.
	maxConcurrency int

	// executionTimeout is the maximum duration of a single Run or Stream.
	// Zero means no timeout.
	executionTimeout time.Duration
}

// Graph is a compiled, immutable workflow. It is safe for concurrent use:
// every Run or Stream call keeps its state in its own thread of checkpoints.
type Graph struct {
	// schema declares the fields of the shared state.
	schema *state.Schema

	// config holds the options given to NewBuilder.
	config *graphConfig

	// stages maps stage names to their registration.
	stages map[string]*stageNode

	// stageOrder preserves registration order for deterministic rendering.
	stageOrder []string

	// entry is the stage (or End) the start marker points to.
	entry string

	// static maps a stage to the successors of its plain edges.
	static map[string][]string

	// fanIns lists every join edge in declaration order.
	fanIns []*fanIn

	// joinsByPredecessor indexes fanIns by each of their predecessors.
	joinsByPredecessor map[string][]*fanIn

	// routers maps a stage to its conditional edges.
	routers map[string][]*conditionalEdge

	// levels groups stages by topological level, Start at level 0.
	levels [][]string
}

// Name returns the graph name set with WithName.
func (graph *Graph) Name() string {
	return graph.config.name
}

// Schema returns the schema of the graph state.
func (graph *Graph) Schema() *state.Schema {
	return graph.schema
}

// Stages returns the registered stage names in registration order.
func (graph *Graph) Stages() []string {
	names := make([]string, len(graph.stageOrder))
	copy(names, graph.stageOrder)
	return names
}

// Store returns the checkpoint store of the graph.
func (graph *Graph) Store() checkpoint.Store {
	return graph.config.store
}
