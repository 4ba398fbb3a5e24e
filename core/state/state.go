package state

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
)

// Update is a partial state produced by a stage. Keys are field names.
type Update map[string]any

// Keys returns the field names of the update in sorted order.
func (update Update) Keys() []string {
	return slices.Sorted(maps.Keys(update))
}

// State is an immutable snapshot of field values bound to a schema.
// The zero value is an empty state without a schema and rejects every update.
type State struct {
	schema *Schema
	values map[string]any
}

// New returns an empty state for the schema.
func New(schema *Schema) State {
	return State{schema: schema, values: map[string]any{}}
}

// FromValues rebuilds a state from raw values, typically decoded from a
// checkpoint. Accumulated values must be sequences. Values that do not match
// the declared Go type are converted through JSON.
func FromValues(schema *Schema, values map[string]any) (State, error) {
	restored := New(schema)
	for _, name := range slices.Sorted(maps.Keys(values)) {
		field, ok := schema.Field(name)
		if !ok {
			return State{}, fmt.Errorf("%w: %q", ErrUnknownField, name)
		}

		value := values[name]
		if value == nil {
			continue
		}

		if field.Kind == KindAccumulate {
			reflected := reflect.ValueOf(value)
			if reflected.Kind() != reflect.Slice {
				return State{}, fmt.Errorf("%w: accumulated field %q holds %T", ErrTypeMismatch, name, value)
			}
			elements := make([]any, 0, reflected.Len())
			for position := range reflected.Len() {
				element, err := coerce(reflected.Index(position).Interface(), field.Type)
				if err != nil {
					return State{}, fmt.Errorf("state: restore field %q element %d: %w", name, position, err)
				}
				elements = append(elements, element)
			}
			restored.values[name] = elements
			continue
		}

		converted, err := coerce(value, field.Type)
		if err != nil {
			return State{}, fmt.Errorf("state: restore field %q: %w", name, err)
		}
		restored.values[name] = converted
	}
	return restored, nil
}

// Schema returns the schema the state is bound to.
func (st State) Schema() *Schema {
	return st.schema
}

// Get returns the value of the field. Unset fields return (nil, false).
// Accumulated fields are returned as a fresh []any.
func (st State) Get(field string) (any, bool) {
	value, ok := st.values[field]
	if !ok {
		return nil, false
	}
	if elements, isList := value.([]any); isList {
		return slices.Clone(elements), true
	}
	return value, true
}

// Has reports whether the field is set.
func (st State) Has(field string) bool {
	_, ok := st.values[field]
	return ok
}

// Len returns the number of accumulated elements of the field, or 1 for a
// set overwrite field.
func (st State) Len(field string) int {
	value, ok := st.values[field]
	if !ok {
		return 0
	}
	if elements, isList := value.([]any); isList {
		return len(elements)
	}
	return 1
}

// Apply returns a new state with the update merged in. Overwrite fields are
// replaced and accumulating fields are appended to. A nil overwrite value
// clears the field. The receiver is never modified.
func (st State) Apply(update Update) (State, error) {
	if st.schema == nil {
		if len(update) == 0 {
			return st, nil
		}
		return State{}, fmt.Errorf("%w: state has no schema", ErrUnknownField)
	}
	if err := st.schema.Validate(update); err != nil {
		return State{}, err
	}

	next := State{schema: st.schema, values: maps.Clone(st.values)}
	if next.values == nil {
		next.values = map[string]any{}
	}

	for _, name := range update.Keys() {
		field, _ := st.schema.Field(name)
		value, _ := field.normalize(update[name])

		switch field.Kind {
		case KindAccumulate:
			added, _ := value.([]any)
			previous, _ := next.values[name].([]any)
			merged := make([]any, 0, len(previous)+len(added))
			merged = append(merged, previous...)
			next.values[name] = append(merged, added...)
		default:
			if value == nil {
				delete(next.values, name)
				continue
			}
			next.values[name] = value
		}
	}
	return next, nil
}

// Values returns a copy of every set field. Accumulated fields are []any.
func (st State) Values() map[string]any {
	values := make(map[string]any, len(st.values))
	for name, value := range st.values {
		if elements, isList := value.([]any); isList {
			values[name] = slices.Clone(elements)
			continue
		}
		values[name] = value
	}
	return values
}

// Project returns a new state bound to schema holding the fields both
// schemas declare with the same kind.
func (st State) Project(schema *Schema) State {
	projected := New(schema)
	for name, value := range st.values {
		target, ok := schema.Field(name)
		if !ok {
			continue
		}
		source, _ := st.schema.Field(name)
		if source.Kind != target.Kind {
			continue
		}
		if elements, isList := value.([]any); isList {
			projected.values[name] = slices.Clone(elements)
			continue
		}
		projected.values[name] = value
	}
	return projected
}

// As returns the field converted to T. Unset fields yield the zero value.
// When the stored value is not a T (for example after a checkpoint round
// trip) it is converted through JSON.
func As[T any](st State, field string) (T, error) {
	var result T
	value, ok := st.Get(field)
	if !ok || value == nil {
		return result, nil
	}
	if typed, isType := value.(T); isType {
		return typed, nil
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return result, fmt.Errorf("state: encode field %q: %w", field, err)
	}
	if err := json.Unmarshal(encoded, &result); err != nil {
		return result, fmt.Errorf("%w: field %q as %T: %v", ErrTypeMismatch, field, result, err)
	}
	return result, nil
}

// coerce converts a decoded value into the declared type when it does not
// already fit.
func coerce(value any, valueType reflect.Type) (any, error) {
	if valueType == nil || value == nil || reflect.TypeOf(value).AssignableTo(valueType) {
		return value, nil
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	target := reflect.New(valueType)
	if err := json.Unmarshal(encoded, target.Interface()); err != nil {
		return nil, fmt.Errorf("%w: %T into %s: %v", ErrTypeMismatch, value, valueType, err)
	}
	return target.Elem().Interface(), nil
}
