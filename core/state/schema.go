package state

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
)

var (
	// ErrUnknownField is returned when an update names a field the schema
	// does not declare.
	ErrUnknownField = errors.New("state: unknown field")

	// ErrTypeMismatch is returned when an update value cannot be stored in a
	// field with a declared Go type.
	ErrTypeMismatch = errors.New("state: type mismatch")

	// ErrDuplicateField is returned by NewSchema when two fields share a name.
	ErrDuplicateField = errors.New("state: duplicate field")

	// ErrEmptyFieldName is returned by NewSchema for a field without a name.
	ErrEmptyFieldName = errors.New("state: empty field name")
)

// Kind is the merge policy of a field.
type Kind int

const (
	// KindOverwrite replaces the previous value on every update.
	KindOverwrite Kind = iota

	// KindAccumulate appends every update to an ordered sequence.
	KindAccumulate
)

// String returns the lowercase name of the kind.
func (kind Kind) String() string {
	switch kind {
	case KindOverwrite:
		return "overwrite"
	case KindAccumulate:
		return "accumulate"
	default:
		return fmt.Sprintf("kind(%d)", int(kind))
	}
}

// Field declares a single named slot of a state.
type Field struct {
	// Name is the unique key of the field within its schema.
	Name string

	// Kind is the merge policy applied by State.Apply.
	Kind Kind

	// Type is the Go type of the value (overwrite) or of each element
	// (accumulate). Nil accepts any value.
	Type reflect.Type

	// Description is copied into the generated JSON Schema.
	Description string
}

// Value declares an overwrite field holding a T.
func Value[T any](name string) Field {
	return Field{Name: name, Kind: KindOverwrite, Type: reflect.TypeFor[T]()}
}

// List declares an accumulating field whose elements are T.
func List[T any](name string) Field {
	return Field{Name: name, Kind: KindAccumulate, Type: reflect.TypeFor[T]()}
}

// Describe returns a copy of the field with the given description.
func (field Field) Describe(description string) Field {
	field.Description = description
	return field
}

// Schema is an ordered, immutable set of fields.
type Schema struct {
	fields []Field
	index  map[string]int
}

// NewSchema validates the fields and builds a schema preserving their order.
func NewSchema(fields ...Field) (*Schema, error) {
	schema := &Schema{
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}

	var problems []error
	for _, field := range fields {
		if field.Name == "" {
			problems = append(problems, ErrEmptyFieldName)
			continue
		}
		if _, exists := schema.index[field.Name]; exists {
			problems = append(problems, fmt.Errorf("%w: %q", ErrDuplicateField, field.Name))
			continue
		}
		if field.Kind != KindOverwrite && field.Kind != KindAccumulate {
			problems = append(problems, fmt.Errorf("state: field %q has invalid kind %s", field.Name, field.Kind))
			continue
		}
		schema.index[field.Name] = len(schema.fields)
		schema.fields = append(schema.fields, field)
	}

	if len(problems) > 0 {
		return nil, errors.Join(problems...)
	}
	return schema, nil
}

// MustSchema is like NewSchema but panics on error. It is intended for
// package-level schema declarations.
func MustSchema(fields ...Field) *Schema {
	schema, err := NewSchema(fields...)
	if err != nil {
		panic(err)
	}
	return schema
}

// Has reports whether the schema declares the field.
func (schema *Schema) Has(name string) bool {
	_, ok := schema.index[name]
	return ok
}

// Field returns the declaration of the named field.
func (schema *Schema) Field(name string) (Field, bool) {
	position, ok := schema.index[name]
	if !ok {
		return Field{}, false
	}
	return schema.fields[position], true
}

// Fields returns the declared fields in declaration order.
func (schema *Schema) Fields() []Field {
	fields := make([]Field, len(schema.fields))
	copy(fields, schema.fields)
	return fields
}

// Filter returns the subset of the update whose fields the schema declares.
// It is used to scope updates produced by a nested graph.
func (schema *Schema) Filter(update Update) Update {
	if update == nil {
		return nil
	}
	filtered := make(Update, len(update))
	for name, value := range update {
		if schema.Has(name) {
			filtered[name] = value
		}
	}
	return filtered
}

// Validate checks that every field named by the update is declared and that
// every value fits, or converts to, the declared type.
func (schema *Schema) Validate(update Update) error {
	var problems []error
	for _, name := range update.Keys() {
		field, ok := schema.Field(name)
		if !ok {
			problems = append(problems, fmt.Errorf("%w: %q", ErrUnknownField, name))
			continue
		}
		if _, err := field.normalize(update[name]); err != nil {
			problems = append(problems, err)
		}
	}
	return errors.Join(problems...)
}

// JSONSchema describes the state as a JSON Schema object. Accumulating
// fields are arrays whose items are reflected from the element type.
func (schema *Schema) JSONSchema() *jsonschema.Schema {
	properties := jsonschema.NewProperties()
	for _, field := range schema.fields {
		property := reflectType(field.Type)
		if field.Kind == KindAccumulate {
			property = &jsonschema.Schema{Type: "array", Items: property}
		}
		property.Description = field.Description
		properties.Set(field.Name, property)
	}

	return &jsonschema.Schema{
		Version:              jsonschema.Version,
		Type:                 "object",
		Properties:           properties,
		AdditionalProperties: jsonschema.FalseSchema,
	}
}

func reflectType(valueType reflect.Type) *jsonschema.Schema {
	if valueType == nil || valueType.Kind() == reflect.Interface {
		return &jsonschema.Schema{}
	}

	reflector := jsonschema.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	reflected := reflector.ReflectFromType(valueType)
	reflected.Version = ""
	reflected.Definitions = nil
	return reflected
}

// normalize converts value into the field's declared type. Accumulating
// fields accept either a single element or a slice of elements; the result
// is the list of elements to append. Values decoded from JSON (for example a
// payload restored from a checkpoint) are converted through JSON.
func (field Field) normalize(value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	if field.Kind == KindAccumulate {
		reflected := reflect.ValueOf(value)
		if reflected.Kind() == reflect.Slice && (field.Type == nil || !reflected.Type().AssignableTo(field.Type)) {
			elements := make([]any, 0, reflected.Len())
			for position := range reflected.Len() {
				element, err := coerce(reflected.Index(position).Interface(), field.Type)
				if err != nil {
					return nil, fmt.Errorf("field %q element %d: %w", field.Name, position, err)
				}
				elements = append(elements, element)
			}
			return elements, nil
		}
		element, err := coerce(value, field.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field.Name, err)
		}
		return []any{element}, nil
	}

	converted, err := coerce(value, field.Type)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", field.Name, err)
	}
	return converted, nil
}
