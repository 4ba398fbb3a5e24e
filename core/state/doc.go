// Package state provides the shared state container that flows through a
// graph run.
//
// A [Schema] declares the fields a graph may read and write. Each field has a
// [Kind] fixed at construction time:
//
//   - [KindOverwrite]: an update replaces the previous value.
//   - [KindAccumulate]: an update appends to an ordered sequence. A slice
//     value appends element-wise, any other value appends one element.
//
// A [State] is immutable. [State.Apply] returns a new instance and never
// touches the receiver, so the engine can hand the same parent state to many
// concurrent stages and merge their [Update] values afterwards in a
// deterministic order.
//
// Example:
//
//	schema := state.MustSchema(
//	    state.Value[string]("topic"),
//	    state.List[string]("notes"),
//	)
//	st := state.New(schema)
//	st, _ = st.Apply(state.Update{"topic": "go", "notes": []string{"a", "b"}})
//	st, _ = st.Apply(state.Update{"notes": "c"})
//	notes, _ := state.As[[]string](st, "notes") // [a b c]
package state
