package graph

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/leofalp/sleuth/core/state"
)

// SubgraphOption configures a SubgraphStage.
type SubgraphOption func(*SubgraphStage)

// WithOutputs exports overwrite fields of the nested graph to the parent.
// Accumulated fields are always exported.
func WithOutputs(fields ...string) SubgraphOption {
	return func(stage *SubgraphStage) {
		stage.outputs = append(stage.outputs, fields...)
	}
}

// SubgraphStage runs a compiled graph as a single stage of another graph.
// The nested run is opaque: it keeps its own checkpoint thread and only the
// values it accumulated, plus the exported overwrite fields, flow back.
type SubgraphStage struct {
	graph   *Graph
	outputs []string
}

// AsStage wraps the graph so that it can be registered as a stage.
//
// Example:
//
//	searcher, _ := searcherBuilder.Compile()
//	_ = leader.RegisterStage("search", searcher.AsStage())
func (graph *Graph) AsStage(opts ...SubgraphOption) *SubgraphStage {
	stage := &SubgraphStage{graph: graph}
	for _, opt := range opts {
		opt(stage)
	}
	return stage
}

// InputSchema returns the schema of the nested graph.
func (stage *SubgraphStage) InputSchema() *state.Schema {
	return stage.graph.schema
}

// Run executes the nested graph on a fresh thread derived from the parent
// invocation (parent/stage/branch-uuid) and returns what it contributed.
func (stage *SubgraphStage) Run(ctx context.Context, input state.State) (state.Update, error) {
	info, _ := RunInfoFromContext(ctx)
	parentThread := info.ThreadID
	if parentThread == "" {
		parentThread = "detached"
	}
	threadID := fmt.Sprintf("%s/%s/%d-%s", parentThread, info.Stage, info.Branch, uuid.NewString())

	final, err := stage.graph.Run(ctx, input.Values(), threadID)
	if err != nil {
		return nil, err
	}

	update := state.Update{}
	for _, field := range stage.graph.schema.Fields() {
		if field.Kind == state.KindAccumulate {
			value, _ := final.Get(field.Name)
			elements, _ := value.([]any)
			if seeded := input.Len(field.Name); len(elements) > seeded {
				update[field.Name] = elements[seeded:]
			}
			continue
		}
		if !slices.Contains(stage.outputs, field.Name) {
			continue
		}
		if value, ok := final.Get(field.Name); ok {
			update[field.Name] = value
		}
	}
	return update, nil
}
