package graph

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/leofalp/sleuth/core/state"
)

// --- Helpers ---

var testSchema = state.MustSchema(
	state.Value[string]("topic"),
	state.Value[string]("query"),
	state.Value[int]("count"),
	state.List[string]("items"),
)

// emitStage returns a stage that always produces the given update.
func emitStage(update state.Update) StageFunc {
	return func(context.Context, state.State) (state.Update, error) {
		return update, nil
	}
}

func mustRegister(testCase *testing.T, builder *Builder, name string, stage Stage, opts ...StageOption) {
	testCase.Helper()
	if err := builder.RegisterStage(name, stage, opts...); err != nil {
		testCase.Fatalf("RegisterStage(%q) error = %v", name, err)
	}
}

func mustEdge(testCase *testing.T, builder *Builder, from, to string) {
	testCase.Helper()
	if err := builder.AddEdge(from, to); err != nil {
		testCase.Fatalf("AddEdge(%q, %q) error = %v", from, to, err)
	}
}

func mustCompile(testCase *testing.T, builder *Builder) *Graph {
	testCase.Helper()
	compiled, err := builder.Compile()
	if err != nil {
		testCase.Fatalf("Compile() error = %v", err)
	}
	return compiled
}

// linearBuilder returns Start -> stages[0] -> ... -> stages[n-1] -> End.
func linearBuilder(testCase *testing.T, stages map[string]Stage, order ...string) *Builder {
	testCase.Helper()
	builder := NewBuilder(testSchema)
	previous := Start
	for _, name := range order {
		mustRegister(testCase, builder, name, stages[name])
		mustEdge(testCase, builder, previous, name)
		previous = name
	}
	mustEdge(testCase, builder, previous, End)
	return builder
}

func validationProblems(testCase *testing.T, err error) []string {
	testCase.Helper()
	var validationError *GraphValidationError
	if !errors.As(err, &validationError) {
		testCase.Fatalf("expected *GraphValidationError, got %T: %v", err, err)
	}
	return validationError.Problems
}

func containsProblem(problems []string, fragment string) bool {
	for _, problem := range problems {
		if strings.Contains(problem, fragment) {
			return true
		}
	}
	return false
}

// --- Tests ---

func TestNewBuilder_DefaultConfig(testCase *testing.T) {
	builder := NewBuilder(testSchema)
	if builder.config.name != "graph" {
		testCase.Errorf("expected default name 'graph', got %q", builder.config.name)
	}
	if builder.config.maxConcurrency != 0 {
		testCase.Errorf("expected unlimited concurrency, got %d", builder.config.maxConcurrency)
	}
	if builder.config.store != nil {
		testCase.Error("expected no store before Compile")
	}
}

func TestNewBuilder_WithOptions(testCase *testing.T) {
	observer := newTestObserver()
	builder := NewBuilder(testSchema,
		WithName("leader"),
		WithMaxConcurrency(3),
		WithExecutionTimeout(time.Minute),
		WithObserver(observer),
	)

	if builder.config.name != "leader" {
		testCase.Errorf("expected name 'leader', got %q", builder.config.name)
	}
	if builder.config.maxConcurrency != 3 {
		testCase.Errorf("expected maxConcurrency 3, got %d", builder.config.maxConcurrency)
	}
	if builder.config.executionTimeout != time.Minute {
		testCase.Errorf("expected executionTimeout 1m, got %v", builder.config.executionTimeout)
	}
	if builder.config.observer != observer {
		testCase.Error("expected observer to be set")
	}
}

func TestRegisterStage_Duplicate_KeepsOriginal(testCase *testing.T) {
	builder := NewBuilder(testSchema)
	mustRegister(testCase, builder, "a", emitStage(state.Update{"topic": "first"}))

	err := builder.RegisterStage("a", emitStage(state.Update{"topic": "second"}))
	var duplicate *DuplicateStageError
	if !errors.As(err, &duplicate) {
		testCase.Fatalf("expected *DuplicateStageError, got %v", err)
	}
	if duplicate.Stage != "a" {
		testCase.Errorf("expected stage 'a', got %q", duplicate.Stage)
	}

	mustEdge(testCase, builder, Start, "a")
	mustEdge(testCase, builder, "a", End)
	compiled := mustCompile(testCase, builder)

	final, err := compiled.Run(context.Background(), map[string]any{}, "duplicate")
	if err != nil {
		testCase.Fatalf("Run() error = %v", err)
	}
	topic, _ := final.Get("topic")
	if topic != "first" {
		testCase.Errorf("expected original registration to run, got topic %v", topic)
	}
}

func TestRegisterStage_InvalidNames(testCase *testing.T) {
	testCases := []struct {
		name      string
		stageName string
		stage     Stage
	}{
		{name: "empty", stageName: "", stage: emitStage(nil)},
		{name: "start marker", stageName: Start, stage: emitStage(nil)},
		{name: "end marker", stageName: End, stage: emitStage(nil)},
		{name: "nil stage", stageName: "a", stage: nil},
	}

	for _, testCaseData := range testCases {
		testCase.Run(testCaseData.name, func(subTest *testing.T) {
			builder := NewBuilder(testSchema)
			err := builder.RegisterStage(testCaseData.stageName, testCaseData.stage)
			if !errors.Is(err, ErrInvalidStage) {
				subTest.Errorf("expected ErrInvalidStage, got %v", err)
			}
			if _, compileErr := builder.Compile(); compileErr == nil {
				subTest.Error("expected Compile to fail after an invalid registration")
			}
		})
	}
}

func TestAddEdge_UnknownStage(testCase *testing.T) {
	builder := NewBuilder(testSchema)
	mustRegister(testCase, builder, "a", emitStage(nil))

	testCases := []struct {
		name string
		add  func() error
		want string
	}{
		{name: "edge target", add: func() error { return builder.AddEdge("a", "ghost") }, want: "ghost"},
		{name: "edge source", add: func() error { return builder.AddEdge("phantom", "a") }, want: "phantom"},
		{name: "fan-in predecessor", add: func() error { return builder.AddFanIn([]string{"a", "spectre"}, End) }, want: "spectre"},
		{name: "fan-in target", add: func() error { return builder.AddFanIn([]string{"a"}, "wraith") }, want: "wraith"},
		{name: "router source", add: func() error { return builder.AddConditionalEdge("shade", RouteTo(End), End) }, want: "shade"},
		{name: "router successor", add: func() error { return builder.AddConditionalEdge("a", RouteTo(End), "banshee") }, want: "banshee"},
	}

	for _, testCaseData := range testCases {
		testCase.Run(testCaseData.name, func(subTest *testing.T) {
			err := testCaseData.add()
			var unknown *UnknownStageError
			if !errors.As(err, &unknown) {
				subTest.Fatalf("expected *UnknownStageError, got %v", err)
			}
			if unknown.Stage != testCaseData.want {
				subTest.Errorf("expected stage %q, got %q", testCaseData.want, unknown.Stage)
			}
		})
	}
}

func TestAddEdge_Markers(testCase *testing.T) {
	builder := NewBuilder(testSchema)
	mustRegister(testCase, builder, "a", emitStage(nil))

	if err := builder.AddEdge(End, "a"); !errors.Is(err, ErrInvalidStage) {
		testCase.Errorf("expected ErrInvalidStage for an edge leaving End, got %v", err)
	}
	if err := builder.AddEdge("a", Start); !errors.Is(err, ErrInvalidStage) {
		testCase.Errorf("expected ErrInvalidStage for an edge into Start, got %v", err)
	}
	if err := builder.AddConditionalEdge("a", nil, End); !errors.Is(err, ErrInvalidStage) {
		testCase.Errorf("expected ErrInvalidStage for a nil router, got %v", err)
	}
	if err := builder.AddConditionalEdge("a", RouteTo(End)); !errors.Is(err, ErrInvalidStage) {
		testCase.Errorf("expected ErrInvalidStage for a router without successors, got %v", err)
	}
	if err := builder.AddFanIn(nil, End); !errors.Is(err, ErrInvalidStage) {
		testCase.Errorf("expected ErrInvalidStage for an empty fan-in, got %v", err)
	}
}

func TestCompile_StartEdges(testCase *testing.T) {
	testCases := []struct {
		name       string
		startEdges []string
	}{
		{name: "zero", startEdges: nil},
		{name: "two", startEdges: []string{"a", "b"}},
	}

	for _, testCaseData := range testCases {
		testCase.Run(testCaseData.name, func(subTest *testing.T) {
			builder := NewBuilder(testSchema)
			mustRegister(subTest, builder, "a", emitStage(nil))
			mustRegister(subTest, builder, "b", emitStage(nil))
			mustEdge(subTest, builder, "a", "b")
			mustEdge(subTest, builder, "b", End)
			for _, target := range testCaseData.startEdges {
				mustEdge(subTest, builder, Start, target)
			}

			_, err := builder.Compile()
			problems := validationProblems(subTest, err)
			if !containsProblem(problems, "exactly one outgoing edge") {
				subTest.Errorf("expected a start edge problem, got %v", problems)
			}
		})
	}
}

func TestCompile_UnreachableStage(testCase *testing.T) {
	builder := NewBuilder(testSchema)
	mustRegister(testCase, builder, "a", emitStage(nil))
	mustRegister(testCase, builder, "orphan", emitStage(nil))
	mustRegister(testCase, builder, "island", emitStage(nil))
	mustEdge(testCase, builder, Start, "a")
	mustEdge(testCase, builder, "a", End)
	mustEdge(testCase, builder, "orphan", "island")
	mustEdge(testCase, builder, "island", End)

	_, err := builder.Compile()
	problems := validationProblems(testCase, err)
	if !containsProblem(problems, `stage "orphan" has no incoming edges`) {
		testCase.Errorf("expected orphan problem, got %v", problems)
	}
	if !containsProblem(problems, `stage "island" is unreachable`) {
		testCase.Errorf("expected island problem, got %v", problems)
	}
}

func TestCompile_CannotReachEnd(testCase *testing.T) {
	builder := NewBuilder(testSchema)
	mustRegister(testCase, builder, "a", emitStage(nil))
	mustRegister(testCase, builder, "dead_end", emitStage(nil))
	mustEdge(testCase, builder, Start, "a")
	mustEdge(testCase, builder, "a", "dead_end")

	_, err := builder.Compile()
	problems := validationProblems(testCase, err)
	if !containsProblem(problems, `stage "dead_end" cannot reach the end marker`) {
		testCase.Errorf("expected dead end problem, got %v", problems)
	}
	if !containsProblem(problems, "end marker is unreachable") {
		testCase.Errorf("expected unreachable end problem, got %v", problems)
	}
}

func TestCompile_CycleDetection(testCase *testing.T) {
	builder := NewBuilder(testSchema)
	mustRegister(testCase, builder, "a", emitStage(nil))
	mustRegister(testCase, builder, "b", emitStage(nil))
	mustRegister(testCase, builder, "c", emitStage(nil))
	mustEdge(testCase, builder, Start, "a")
	mustEdge(testCase, builder, "a", "b")
	mustEdge(testCase, builder, "b", "c")
	mustEdge(testCase, builder, "c", "a")
	mustEdge(testCase, builder, "c", End)

	_, err := builder.Compile()
	problems := validationProblems(testCase, err)
	if !containsProblem(problems, "cycle detected") {
		testCase.Errorf("expected cycle problem, got %v", problems)
	}
}

func TestCompile_DuplicateEdges(testCase *testing.T) {
	builder := NewBuilder(testSchema)
	mustRegister(testCase, builder, "a", emitStage(nil))
	mustRegister(testCase, builder, "b", emitStage(nil))
	mustEdge(testCase, builder, Start, "a")
	mustEdge(testCase, builder, "a", "b")
	mustEdge(testCase, builder, "a", "b")
	mustEdge(testCase, builder, "b", End)
	if err := builder.AddFanIn([]string{"a", "b"}, End); err != nil {
		testCase.Fatal(err)
	}
	if err := builder.AddFanIn([]string{"b", "a"}, End); err != nil {
		testCase.Fatal(err)
	}

	_, err := builder.Compile()
	problems := validationProblems(testCase, err)
	if !containsProblem(problems, `duplicate edge from "a" to "b"`) {
		testCase.Errorf("expected duplicate edge problem, got %v", problems)
	}
	if !containsProblem(problems, "duplicate fan-in") {
		testCase.Errorf("expected duplicate fan-in problem, got %v", problems)
	}
}

func TestCompile_ReportsEveryProblem(testCase *testing.T) {
	builder := NewBuilder(testSchema)
	mustRegister(testCase, builder, "a", emitStage(nil))
	_ = builder.AddEdge("a", "ghost")

	_, err := builder.Compile()
	problems := validationProblems(testCase, err)
	for _, fragment := range []string{`unknown stage "ghost"`, "exactly one outgoing edge", `stage "a" has no incoming edges`} {
		if !containsProblem(problems, fragment) {
			testCase.Errorf("expected problem %q in %v", fragment, problems)
		}
	}
}

func TestCompile_DefaultsAndLevels(testCase *testing.T) {
	builder := NewBuilder(testSchema)
	mustRegister(testCase, builder, "split", emitStage(nil))
	mustRegister(testCase, builder, "left", emitStage(nil))
	mustRegister(testCase, builder, "right", emitStage(nil))
	mustRegister(testCase, builder, "join", emitStage(nil))
	mustEdge(testCase, builder, Start, "split")
	mustEdge(testCase, builder, "split", "left")
	mustEdge(testCase, builder, "split", "right")
	if err := builder.AddFanIn([]string{"right", "left"}, "join"); err != nil {
		testCase.Fatal(err)
	}
	mustEdge(testCase, builder, "join", End)

	compiled := mustCompile(testCase, builder)
	if compiled.Store() == nil {
		testCase.Fatal("expected a default store")
	}

	expected := [][]string{{Start}, {"split"}, {"left", "right"}, {"join"}, {End}}
	if len(compiled.levels) != len(expected) {
		testCase.Fatalf("expected %d levels, got %v", len(expected), compiled.levels)
	}
	for index, level := range expected {
		if strings.Join(compiled.levels[index], ",") != strings.Join(level, ",") {
			testCase.Errorf("level %d: expected %v, got %v", index, level, compiled.levels[index])
		}
	}

	if compiled.fanIns[0].key != "join<left,right" {
		testCase.Errorf("expected sorted fan-in key, got %q", compiled.fanIns[0].key)
	}
	if stages := compiled.Stages(); strings.Join(stages, ",") != "split,left,right,join" {
		testCase.Errorf("expected registration order, got %v", stages)
	}
}

func TestCompile_StartStraightToEnd(testCase *testing.T) {
	builder := NewBuilder(testSchema)
	mustEdge(testCase, builder, Start, End)
	compiled := mustCompile(testCase, builder)

	final, err := compiled.Run(context.Background(), map[string]any{"topic": "go"}, "empty")
	if err != nil {
		testCase.Fatalf("Run() error = %v", err)
	}
	if topic, _ := final.Get("topic"); topic != "go" {
		testCase.Errorf("expected input to pass through, got %v", topic)
	}
}
