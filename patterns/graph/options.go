package graph

import (
	"time"

	"github.com/leofalp/sleuth/providers/checkpoint"
	"github.com/leofalp/sleuth/providers/observability"
)

// Option is a functional option for configuring Graph behavior.
// Options are applied by NewBuilder.
type Option func(*graphConfig)

// StageOption is a functional option for configuring a single stage.
// Stage options are applied by Builder.RegisterStage.
type StageOption func(*stageNode)

// --- Graph Options ---

// WithName labels the graph in spans, metrics and logs. Defaults to "graph".
func WithName(name string) Option {
	return func(config *graphConfig) {
		if name != "" {
			config.name = name
		}
	}
}

// WithStore sets the checkpoint store. By default every compiled graph gets
// its own in-memory store, which loses its history with the process.
//
// Example:
//
//	store, _ := sqlitestore.Open(ctx, "file:sleuth.db")
//	graph.NewBuilder(schema, graph.WithStore(store))
func WithStore(store checkpoint.Store) Option {
	return func(config *graphConfig) {
		config.store = store
	}
}

// WithObserver sets the observability provider for spans, metrics and logs.
// Without it the graph uses the provider carried by the run context (see
// observability.ContextWithObserver), if any.
func WithObserver(observer observability.Provider) Option {
	return func(config *graphConfig) {
		config.observer = observer
	}
}

// WithMaxConcurrency limits the number of stage invocations that can run at
// once within a superstep. A value of 0 (default) means unlimited: every
// task of the frontier, including every mapping branch, runs at once.
//
// Example:
//
//	graph.NewBuilder(schema,
//	    graph.WithMaxConcurrency(4), // at most 4 searches in flight
//	)
func WithMaxConcurrency(maxConcurrency int) Option {
	return func(config *graphConfig) {
		config.maxConcurrency = maxConcurrency
	}
}

// WithExecutionTimeout sets the maximum duration of a single Run or Stream.
// When it expires every running stage is canceled and the run fails. The
// checkpoints written so far stay available for Resume.
func WithExecutionTimeout(timeout time.Duration) Option {
	return func(config *graphConfig) {
		config.executionTimeout = timeout
	}
}

// --- Stage Options ---

// WithStageTimeout bounds every invocation of the stage. The run-level
// timeout (WithExecutionTimeout) still applies.
//
// Example:
//
//	builder.RegisterStage("search", searchStage,
//	    graph.WithStageTimeout(30 * time.Second),
//	)
func WithStageTimeout(timeout time.Duration) StageOption {
	return func(node *stageNode) {
		node.timeout = timeout
	}
}
