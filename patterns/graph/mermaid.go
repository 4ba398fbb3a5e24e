package graph

import (
	"fmt"
	"strings"
)

// Mermaid renders the graph as a Mermaid flowchart. Nodes are declared in
// topological order; static edges are solid, router edges dotted and fan-ins
// drawn with the "a & b --> c" form.
//
// Example output:
//
//	flowchart TD
//	    __start__([__start__])
//	    generate[generate]
//	    search[search]
//	    __end__([__end__])
//	    __start__ --> generate
//	    search --> __end__
//	    generate -.-> search
func (graph *Graph) Mermaid() string {
	var builder strings.Builder
	builder.WriteString("flowchart TD\n")

	for _, level := range graph.levels {
		for _, name := range level {
			if name == Start || name == End {
				fmt.Fprintf(&builder, "    %s([%s])\n", name, name)
				continue
			}
			fmt.Fprintf(&builder, "    %s[%s]\n", name, name)
		}
	}

	fmt.Fprintf(&builder, "    %s --> %s\n", Start, graph.entry)
	for _, from := range graph.stageOrder {
		for _, to := range graph.static[from] {
			fmt.Fprintf(&builder, "    %s --> %s\n", from, to)
		}
	}
	for _, from := range graph.stageOrder {
		for _, edge := range graph.routers[from] {
			for _, to := range edge.successorOrder {
				fmt.Fprintf(&builder, "    %s -.-> %s\n", from, to)
			}
		}
	}
	for _, join := range graph.fanIns {
		fmt.Fprintf(&builder, "    %s --> %s\n", strings.Join(join.predecessors, " & "), join.to)
	}

	return builder.String()
}
