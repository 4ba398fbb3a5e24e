// Package graph implements a checkpointed workflow engine that orchestrates
// stages over a shared, schema-typed state.
//
// A graph is built with a [Builder]: stages are registered by name and
// connected with static edges, fan-in joins and conditional edges whose
// [Router] may fan out to several isolated branches at once. [Builder.Compile]
// validates the structure (one entry, reachability, no cycles) and returns an
// immutable [Graph].
//
// Execution proceeds in supersteps. Every task of a superstep runs
// concurrently against the state at step start; their updates are merged in
// spawn order according to each field's kind (overwrite or accumulate) and
// one checkpoint per task is written to the configured store. Outgoing edges
// are then evaluated on the merged state to produce the next frontier. A run
// that failed or was interrupted can be resumed with a nil input: it picks up
// from the latest superstep boundary without re-running completed steps.
//
// The main entry points are [NewBuilder], [Graph.Run], [Graph.Stream] for
// real-time events and [Graph.AsStage] to nest a graph inside another one.
//
// Example:
//
//	schema := state.MustSchema(
//	    state.Value[string]("topic"),
//	    state.List[string]("notes"),
//	)
//
//	builder := graph.NewBuilder(schema)
//	_ = builder.RegisterStage("research", researchStage)
//	_ = builder.RegisterStage("write", writeStage)
//	_ = builder.AddEdge(graph.Start, "research")
//	_ = builder.AddEdge("research", "write")
//	_ = builder.AddEdge("write", graph.End)
//
//	compiled, err := builder.Compile()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	final, err := compiled.Run(ctx, map[string]any{"topic": "go"}, "thread-1")
//	notes, _ := state.As[[]string](final, "notes")
package graph
