package graph

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/leofalp/sleuth/core/state"
	"github.com/leofalp/sleuth/providers/checkpoint/inmemory"
)

// Builder constructs a validated Graph. Stages and edges are added
// incrementally and Compile performs the structural validation, including
// cycle detection via Kahn's algorithm.
//
// Every Add/Register method returns its error immediately. Errors that leave
// the graph incomplete are also recorded, so that a Compile after an ignored
// error still fails. A duplicate registration is not recorded: the first
// registration stays active and the builder stays usable.
//
// Example:
//
//	builder := graph.NewBuilder(schema)
//	_ = builder.RegisterStage("generate", generateStage)
//	_ = builder.RegisterStage("search", searchStage)
//	_ = builder.AddEdge(graph.Start, "generate")
//	_ = builder.AddConditionalEdge("generate", continueToSearch, "search")
//	_ = builder.AddEdge("search", graph.End)
//	compiled, err := builder.Compile()
type Builder struct {
	// schema declares the fields of the shared state.
	schema *state.Schema

	// config holds the graph-level configuration populated from Options.
	config *graphConfig

	// stages stores all registered stages keyed by name.
	stages map[string]*stageNode

	// stageOrder preserves the registration order of stages.
	stageOrder []string

	// staticEdges stores plain edges, including the ones leaving Start.
	staticEdges []staticEdge

	// fanIns stores join edges.
	fanIns []*fanIn

	// conditionals stores router edges.
	conditionals []*conditionalEdge

	// buildErrors accumulates errors returned by the Add/Register methods.
	buildErrors []error
}

type staticEdge struct {
	from string
	to   string
}

// NewBuilder creates a Builder for a graph over the given state schema.
// Graph-level options (WithStore, WithMaxConcurrency, ...) are applied here.
//
// Example:
//
//	builder := graph.NewBuilder(schema,
//	    graph.WithStore(store),
//	    graph.WithMaxConcurrency(8),
//	)
func NewBuilder(schema *state.Schema, opts ...Option) *Builder {
	config := &graphConfig{name: "graph"}
	for _, opt := range opts {
		opt(config)
	}

	return &Builder{
		schema: schema,
		config: config,
		stages: make(map[string]*stageNode),
	}
}

// RegisterStage adds a stage under a unique name. Stage options such as
// WithStageTimeout customize the single stage.
//
// Registering a taken name returns *DuplicateStageError and keeps the first
// registration.
func (builder *Builder) RegisterStage(name string, stage Stage, opts ...StageOption) error {
	switch {
	case name == "" || name == Start || name == End:
		return builder.record(fmt.Errorf("%w: name %q is empty or reserved", ErrInvalidStage, name))
	case stage == nil:
		return builder.record(fmt.Errorf("%w: stage %q is nil", ErrInvalidStage, name))
	}

	if _, exists := builder.stages[name]; exists {
		return &DuplicateStageError{Stage: name}
	}

	node := &stageNode{
		name:        name,
		stage:       stage,
		inputSchema: builder.schema,
	}
	if scoped, ok := stage.(ScopedStage); ok && scoped.InputSchema() != nil {
		node.inputSchema = scoped.InputSchema()
	}
	for _, opt := range opts {
		opt(node)
	}

	builder.stages[name] = node
	builder.stageOrder = append(builder.stageOrder, name)
	return nil
}

// AddEdge adds a static edge. from may be Start and to may be End.
func (builder *Builder) AddEdge(from, to string) error {
	if from == End || to == Start {
		return builder.record(fmt.Errorf("%w: edge %q -> %q points the wrong way", ErrInvalidStage, from, to))
	}
	if from != Start {
		if err := builder.requireStage(from); err != nil {
			return err
		}
	}
	if err := builder.requireTarget(to); err != nil {
		return err
	}

	builder.staticEdges = append(builder.staticEdges, staticEdge{from: from, to: to})
	return nil
}

// AddFanIn adds a join edge: to runs once, after every predecessor has
// completed within the current run.
func (builder *Builder) AddFanIn(predecessors []string, to string) error {
	if len(predecessors) == 0 {
		return builder.record(fmt.Errorf("%w: fan-in into %q has no predecessors", ErrInvalidStage, to))
	}
	for _, predecessor := range predecessors {
		if err := builder.requireStage(predecessor); err != nil {
			return err
		}
	}
	if err := builder.requireTarget(to); err != nil {
		return err
	}

	sorted := slices.Clone(predecessors)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	builder.fanIns = append(builder.fanIns, &fanIn{
		key:          to + "<" + strings.Join(sorted, ","),
		predecessors: sorted,
		to:           to,
	})
	return nil
}

// AddConditionalEdge routes the output of from through router. successors
// declares every stage (or End) the router may send to; sends elsewhere fail
// the run with a RoutingError.
func (builder *Builder) AddConditionalEdge(from string, router Router, successors ...string) error {
	if err := builder.requireStage(from); err != nil {
		return err
	}
	if router == nil {
		return builder.record(fmt.Errorf("%w: nil router on %q", ErrInvalidStage, from))
	}
	if len(successors) == 0 {
		return builder.record(fmt.Errorf("%w: router on %q declares no successors", ErrInvalidStage, from))
	}

	edge := &conditionalEdge{
		from:       from,
		router:     router,
		successors: make(map[string]bool, len(successors)),
	}
	for _, successor := range successors {
		if err := builder.requireTarget(successor); err != nil {
			return err
		}
		if !edge.successors[successor] {
			edge.successors[successor] = true
			edge.successorOrder = append(edge.successorOrder, successor)
		}
	}

	builder.conditionals = append(builder.conditionals, edge)
	return nil
}

// Compile validates the structure and produces an immutable Graph. Every
// problem found is listed in a single *GraphValidationError:
//
//  1. errors recorded by earlier Add/Register calls
//  2. exactly one edge leaving Start
//  3. no duplicate edges
//  4. every stage has an incoming edge and is reachable from Start
//  5. every stage can reach End, and End is reachable
//  6. the graph is acyclic
func (builder *Builder) Compile() (*Graph, error) {
	problems := make([]string, 0)
	for _, err := range builder.buildErrors {
		problems = append(problems, err.Error())
	}

	if builder.schema == nil {
		problems = append(problems, "graph has no state schema")
	}

	entries := make([]string, 0, 1)
	for _, edge := range builder.staticEdges {
		if edge.from == Start {
			entries = append(entries, edge.to)
		}
	}
	if len(entries) != 1 {
		problems = append(problems, fmt.Sprintf("start marker must have exactly one outgoing edge, found %d", len(entries)))
	}

	problems = append(problems, builder.duplicateEdges()...)

	adjacency, reverse := builder.buildAdjacency()
	fromStart := reachable(Start, adjacency)
	toEnd := reachable(End, reverse)

	for _, name := range builder.stageOrder {
		switch {
		case len(reverse[name]) == 0:
			problems = append(problems, fmt.Sprintf("stage %q has no incoming edges", name))
		case !fromStart[name]:
			problems = append(problems, fmt.Sprintf("stage %q is unreachable from the start marker", name))
		}
		if !toEnd[name] {
			problems = append(problems, fmt.Sprintf("stage %q cannot reach the end marker", name))
		}
	}
	if len(entries) > 0 && !fromStart[End] {
		problems = append(problems, "end marker is unreachable from the start marker")
	}

	nodeOrder := make([]string, 0, len(builder.stageOrder)+2)
	nodeOrder = append(nodeOrder, Start)
	nodeOrder = append(nodeOrder, builder.stageOrder...)
	nodeOrder = append(nodeOrder, End)

	inDegree := make(map[string]int, len(nodeOrder))
	for _, node := range nodeOrder {
		inDegree[node] = len(reverse[node])
	}
	levels, err := kahnTopologicalSort(inDegree, adjacency, nodeOrder)
	if err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return nil, &GraphValidationError{Problems: problems}
	}

	if builder.config.store == nil {
		builder.config.store = inmemory.New()
	}

	compiled := &Graph{
		schema:             builder.schema,
		config:             builder.config,
		stages:             builder.stages,
		stageOrder:         builder.stageOrder,
		entry:              entries[0],
		static:             make(map[string][]string),
		fanIns:             builder.fanIns,
		joinsByPredecessor: make(map[string][]*fanIn),
		routers:            make(map[string][]*conditionalEdge),
		levels:             levels,
	}
	for _, edge := range builder.staticEdges {
		if edge.from != Start && !slices.Contains(compiled.static[edge.from], edge.to) {
			compiled.static[edge.from] = append(compiled.static[edge.from], edge.to)
		}
	}
	for _, join := range builder.fanIns {
		for _, predecessor := range join.predecessors {
			compiled.joinsByPredecessor[predecessor] = append(compiled.joinsByPredecessor[predecessor], join)
		}
	}
	for _, edge := range builder.conditionals {
		compiled.routers[edge.from] = append(compiled.routers[edge.from], edge)
	}

	return compiled, nil
}

func (builder *Builder) record(err error) error {
	builder.buildErrors = append(builder.buildErrors, err)
	return err
}

func (builder *Builder) requireStage(name string) error {
	if _, exists := builder.stages[name]; !exists {
		return builder.record(&UnknownStageError{Stage: name})
	}
	return nil
}

func (builder *Builder) requireTarget(name string) error {
	if name == End {
		return nil
	}
	return builder.requireStage(name)
}

// duplicateEdges reports static edges and fan-ins declared more than once.
func (builder *Builder) duplicateEdges() []string {
	problems := make([]string, 0)
	seen := make(map[string]bool)
	for _, edge := range builder.staticEdges {
		edgeKey := edge.from + "->" + edge.to
		if seen[edgeKey] {
			problems = append(problems, fmt.Sprintf("duplicate edge from %q to %q", edge.from, edge.to))
		}
		seen[edgeKey] = true
	}
	for _, join := range builder.fanIns {
		if seen[join.key] {
			problems = append(problems, fmt.Sprintf("duplicate fan-in from %v to %q", join.predecessors, join.to))
		}
		seen[join.key] = true
	}
	return problems
}

// buildAdjacency returns the forward and reverse adjacency over Start, every
// stage and End. Each kind of edge contributes one arc per endpoint pair.
func (builder *Builder) buildAdjacency() (map[string][]string, map[string][]string) {
	adjacency := make(map[string][]string)
	reverse := make(map[string][]string)
	seen := make(map[string]bool)

	connect := func(from, to string) {
		arc := from + "->" + to
		if seen[arc] {
			return
		}
		seen[arc] = true
		adjacency[from] = append(adjacency[from], to)
		reverse[to] = append(reverse[to], from)
	}

	for _, edge := range builder.staticEdges {
		connect(edge.from, edge.to)
	}
	for _, join := range builder.fanIns {
		for _, predecessor := range join.predecessors {
			connect(predecessor, join.to)
		}
	}
	for _, edge := range builder.conditionals {
		for _, successor := range edge.successorOrder {
			connect(edge.from, successor)
		}
	}
	return adjacency, reverse
}

func reachable(origin string, adjacency map[string][]string) map[string]bool {
	visited := map[string]bool{origin: true}
	queue := []string{origin}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, neighbor := range adjacency[current] {
			if !visited[neighbor] {
				visited[neighbor] = true
				queue = append(queue, neighbor)
			}
		}
	}
	return visited
}

// kahnTopologicalSort performs Kahn's algorithm and groups nodes by
// topological level (level 0 = roots). Within each level nodes follow
// nodeOrder. A cycle is reported with the names of the nodes involved.
func kahnTopologicalSort(inDegree map[string]int, adjacency map[string][]string, nodeOrder []string) ([][]string, error) {
	nodePosition := make(map[string]int, len(nodeOrder))
	for index, nodeID := range nodeOrder {
		nodePosition[nodeID] = index
	}
	byPosition := func(level []string) {
		sort.Slice(level, func(left, right int) bool {
			return nodePosition[level[left]] < nodePosition[level[right]]
		})
	}

	currentLevel := make([]string, 0)
	for nodeID, degree := range inDegree {
		if degree == 0 {
			currentLevel = append(currentLevel, nodeID)
		}
	}
	byPosition(currentLevel)

	levels := make([][]string, 0)
	processedCount := 0

	for len(currentLevel) > 0 {
		levels = append(levels, currentLevel)
		processedCount += len(currentLevel)

		nextLevel := make([]string, 0)
		for _, nodeID := range currentLevel {
			for _, neighbor := range adjacency[nodeID] {
				inDegree[neighbor]--
				if inDegree[neighbor] == 0 {
					nextLevel = append(nextLevel, neighbor)
				}
			}
		}
		byPosition(nextLevel)
		currentLevel = nextLevel
	}

	if processedCount != len(inDegree) {
		cycleNodes := make([]string, 0)
		for nodeID, degree := range inDegree {
			if degree > 0 {
				cycleNodes = append(cycleNodes, nodeID)
			}
		}
		sort.Strings(cycleNodes)
		return nil, errors.New("cycle detected involving " + strings.Join(cycleNodes, ", "))
	}

	return levels, nil
}
