package state

import (
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"
)

type note struct {
	Author string `json:"author"`
	Text   string `json:"text"`
}

func testSchema(testCase *testing.T) *Schema {
	testCase.Helper()
	schema, err := NewSchema(
		Value[string]("topic"),
		List[string]("findings"),
		List[note]("notes"),
		Field{Name: "anything", Kind: KindOverwrite},
	)
	if err != nil {
		testCase.Fatalf("NewSchema() error = %v", err)
	}
	return schema
}

func TestNewSchema_Errors(testCase *testing.T) {
	tests := []struct {
		name    string
		fields  []Field
		wantErr error
	}{
		{
			name:    "duplicate field",
			fields:  []Field{Value[string]("a"), List[string]("a")},
			wantErr: ErrDuplicateField,
		},
		{
			name:    "empty name",
			fields:  []Field{Value[string]("")},
			wantErr: ErrEmptyFieldName,
		},
	}

	for _, tt := range tests {
		testCase.Run(tt.name, func(t *testing.T) {
			_, err := NewSchema(tt.fields...)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewSchema() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMustSchema_Panics(testCase *testing.T) {
	defer func() {
		if recover() == nil {
			testCase.Error("MustSchema() did not panic on duplicate field")
		}
	}()
	MustSchema(Value[int]("x"), Value[int]("x"))
}

func TestState_GetUnset(testCase *testing.T) {
	st := New(testSchema(testCase))

	value, ok := st.Get("topic")
	if ok || value != nil {
		testCase.Errorf("Get(unset) = (%v, %v), want (nil, false)", value, ok)
	}

	value, ok = st.Get("not-declared")
	if ok || value != nil {
		testCase.Errorf("Get(undeclared) = (%v, %v), want (nil, false)", value, ok)
	}
}

func TestState_ApplyOverwrite(testCase *testing.T) {
	st := New(testSchema(testCase))

	first, err := st.Apply(Update{"topic": "v1"})
	if err != nil {
		testCase.Fatalf("Apply() error = %v", err)
	}
	second, err := first.Apply(Update{"topic": "v2"})
	if err != nil {
		testCase.Fatalf("Apply() error = %v", err)
	}

	if got, _ := second.Get("topic"); got != "v2" {
		testCase.Errorf("topic = %v, want v2", got)
	}
	if got, _ := first.Get("topic"); got != "v1" {
		testCase.Errorf("Apply mutated receiver: topic = %v, want v1", got)
	}
	if st.Has("topic") {
		testCase.Error("Apply mutated the empty state")
	}
}

func TestState_ApplyOverwriteNilClears(testCase *testing.T) {
	st, err := New(testSchema(testCase)).Apply(Update{"topic": "x"})
	if err != nil {
		testCase.Fatalf("Apply() error = %v", err)
	}
	cleared, err := st.Apply(Update{"topic": nil})
	if err != nil {
		testCase.Fatalf("Apply() error = %v", err)
	}
	if cleared.Has("topic") {
		testCase.Error("nil overwrite did not clear the field")
	}
}

func TestState_ApplyAccumulate(testCase *testing.T) {
	tests := []struct {
		name    string
		updates []Update
		want    []string
	}{
		{
			name:    "scalar appends one element",
			updates: []Update{{"findings": "a"}, {"findings": "b"}},
			want:    []string{"a", "b"},
		},
		{
			name:    "slice appends element-wise",
			updates: []Update{{"findings": []string{"a", "b"}}, {"findings": []string{"c"}}},
			want:    []string{"a", "b", "c"},
		},
		{
			name:    "empty slice keeps the field present",
			updates: []Update{{"findings": []string{}}},
			want:    []string{},
		},
		{
			name:    "any slice",
			updates: []Update{{"findings": []any{"x", "y"}}},
			want:    []string{"x", "y"},
		},
	}

	for _, tt := range tests {
		testCase.Run(tt.name, func(t *testing.T) {
			st := New(testSchema(t))
			for _, update := range tt.updates {
				var err error
				st, err = st.Apply(update)
				if err != nil {
					t.Fatalf("Apply() error = %v", err)
				}
			}
			got, err := As[[]string](st, "findings")
			if err != nil {
				t.Fatalf("As() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("findings = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("findings[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestState_ApplyDoesNotAliasAccumulated(testCase *testing.T) {
	base, err := New(testSchema(testCase)).Apply(Update{"findings": []string{"a"}})
	if err != nil {
		testCase.Fatalf("Apply() error = %v", err)
	}

	left, _ := base.Apply(Update{"findings": "left"})
	right, _ := base.Apply(Update{"findings": "right"})

	leftValues, _ := As[[]string](left, "findings")
	rightValues, _ := As[[]string](right, "findings")
	if leftValues[1] != "left" || rightValues[1] != "right" {
		testCase.Errorf("branches share storage: left=%v right=%v", leftValues, rightValues)
	}
	if base.Len("findings") != 1 {
		testCase.Errorf("base Len = %d, want 1", base.Len("findings"))
	}
}

func TestState_ApplyConcurrentBranches(testCase *testing.T) {
	base := New(testSchema(testCase))

	var group sync.WaitGroup
	results := make([]State, 16)
	for i := range results {
		group.Add(1)
		go func() {
			defer group.Done()
			results[i], _ = base.Apply(Update{"findings": "x"})
		}()
	}
	group.Wait()

	for i, result := range results {
		if result.Len("findings") != 1 {
			testCase.Errorf("results[%d] Len = %d, want 1", i, result.Len("findings"))
		}
	}
}

func TestState_ApplyErrors(testCase *testing.T) {
	st := New(testSchema(testCase))

	tests := []struct {
		name    string
		update  Update
		wantErr error
	}{
		{name: "unknown field", update: Update{"missing": 1}, wantErr: ErrUnknownField},
		{name: "overwrite type", update: Update{"topic": 42}, wantErr: ErrTypeMismatch},
		{name: "accumulate element type", update: Update{"findings": []any{"ok", 3}}, wantErr: ErrTypeMismatch},
	}

	for _, tt := range tests {
		testCase.Run(tt.name, func(t *testing.T) {
			_, err := st.Apply(tt.update)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Apply() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	var zero State
	if _, err := zero.Apply(Update{"topic": "x"}); !errors.Is(err, ErrUnknownField) {
		testCase.Errorf("zero State Apply() error = %v, want ErrUnknownField", err)
	}
}

func TestState_UntypedFieldAcceptsAnything(testCase *testing.T) {
	st, err := New(testSchema(testCase)).Apply(Update{"anything": map[string]int{"a": 1}})
	if err != nil {
		testCase.Fatalf("Apply() error = %v", err)
	}
	got, err := As[map[string]int](st, "anything")
	if err != nil || got["a"] != 1 {
		testCase.Errorf("As() = %v, %v", got, err)
	}
}

func TestFromValues_RoundTrip(testCase *testing.T) {
	schema := testSchema(testCase)
	original, err := New(schema).Apply(Update{
		"topic": "plagiarism",
		"notes": []note{{Author: "PI", Text: "copied"}},
	})
	if err != nil {
		testCase.Fatalf("Apply() error = %v", err)
	}

	encoded, err := json.Marshal(original.Values())
	if err != nil {
		testCase.Fatalf("Marshal() error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		testCase.Fatalf("Unmarshal() error = %v", err)
	}

	restored, err := FromValues(schema, decoded)
	if err != nil {
		testCase.Fatalf("FromValues() error = %v", err)
	}

	notes, _ := restored.Get("notes")
	elements := notes.([]any)
	if _, ok := elements[0].(note); !ok {
		testCase.Errorf("restored element type = %T, want note", elements[0])
	}

	next, err := restored.Apply(Update{"notes": note{Author: "PI", Text: "second"}})
	if err != nil {
		testCase.Fatalf("Apply() after restore error = %v", err)
	}
	typed, err := As[[]note](next, "notes")
	if err != nil {
		testCase.Fatalf("As() error = %v", err)
	}
	if len(typed) != 2 || typed[1].Text != "second" {
		testCase.Errorf("notes = %+v", typed)
	}
}

func TestFromValues_Errors(testCase *testing.T) {
	schema := testSchema(testCase)

	if _, err := FromValues(schema, map[string]any{"missing": 1}); !errors.Is(err, ErrUnknownField) {
		testCase.Errorf("unknown field error = %v", err)
	}
	if _, err := FromValues(schema, map[string]any{"findings": "not a list"}); !errors.Is(err, ErrTypeMismatch) {
		testCase.Errorf("scalar accumulate error = %v", err)
	}
}

func TestState_Project(testCase *testing.T) {
	parent, err := New(testSchema(testCase)).Apply(Update{"topic": "t", "findings": "f"})
	if err != nil {
		testCase.Fatalf("Apply() error = %v", err)
	}

	child := MustSchema(Value[string]("topic"), Value[string]("findings"), List[string]("context"))
	projected := parent.Project(child)

	if got, _ := projected.Get("topic"); got != "t" {
		testCase.Errorf("topic = %v, want t", got)
	}
	if projected.Has("findings") {
		testCase.Error("Project copied a field whose kind differs")
	}
	if projected.Schema() != child {
		testCase.Error("Project did not bind the target schema")
	}
}

func TestSchema_Filter(testCase *testing.T) {
	schema := MustSchema(Value[string]("a"))
	filtered := schema.Filter(Update{"a": "x", "b": "y"})
	if len(filtered) != 1 || filtered["a"] != "x" {
		testCase.Errorf("Filter() = %v", filtered)
	}
	if schema.Filter(nil) != nil {
		testCase.Error("Filter(nil) should be nil")
	}
}

func TestSchema_JSONSchema(testCase *testing.T) {
	schema := MustSchema(
		Value[string]("topic").Describe("the topic"),
		List[note]("notes"),
		Field{Name: "free", Kind: KindOverwrite},
	)

	document := schema.JSONSchema()
	if document.Type != "object" {
		testCase.Errorf("Type = %q, want object", document.Type)
	}

	topic, ok := document.Properties.Get("topic")
	if !ok || topic.Type != "string" || topic.Description != "the topic" {
		testCase.Errorf("topic property = %+v", topic)
	}

	notes, ok := document.Properties.Get("notes")
	if !ok || notes.Type != "array" || notes.Items == nil {
		testCase.Fatalf("notes property = %+v", notes)
	}
	if _, ok := notes.Items.Properties.Get("author"); !ok {
		testCase.Error("notes items missing author property")
	}

	keys := []string{}
	for pair := document.Properties.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	if !reflect.DeepEqual(keys, []string{"topic", "notes", "free"}) {
		testCase.Errorf("property order = %v", keys)
	}
}

func TestKind_String(testCase *testing.T) {
	if KindOverwrite.String() != "overwrite" || KindAccumulate.String() != "accumulate" {
		testCase.Error("unexpected kind names")
	}
	if Kind(9).String() != "kind(9)" {
		testCase.Errorf("Kind(9) = %s", Kind(9))
	}
}
