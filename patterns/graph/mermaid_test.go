package graph

import "testing"

func TestMermaid(testCase *testing.T) {
	builder := NewBuilder(testSchema)
	mustRegister(testCase, builder, "generate", emitStage(nil))
	mustRegister(testCase, builder, "search", emitStage(nil))
	mustRegister(testCase, builder, "report", emitStage(nil))
	mustRegister(testCase, builder, "conclude", emitStage(nil))
	mustRegister(testCase, builder, "finalize", emitStage(nil))
	mustEdge(testCase, builder, Start, "generate")
	if err := builder.AddConditionalEdge("generate", mapQueries("search"), "search"); err != nil {
		testCase.Fatal(err)
	}
	mustEdge(testCase, builder, "search", "report")
	mustEdge(testCase, builder, "search", "conclude")
	if err := builder.AddFanIn([]string{"report", "conclude"}, "finalize"); err != nil {
		testCase.Fatal(err)
	}
	mustEdge(testCase, builder, "finalize", End)
	compiled := mustCompile(testCase, builder)

	expected := `flowchart TD
    __start__([__start__])
    generate[generate]
    search[search]
    report[report]
    conclude[conclude]
    finalize[finalize]
    __end__([__end__])
    __start__ --> generate
    search --> report
    search --> conclude
    finalize --> __end__
    generate -.-> search
    conclude & report --> finalize
`
	if got := compiled.Mermaid(); got != expected {
		testCase.Errorf("unexpected diagram:\n%s\nwant:\n%s", got, expected)
	}
}
