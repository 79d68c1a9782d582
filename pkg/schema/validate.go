package schema

import (
	"fmt"
	"reflect"
	"slices"
)

// Schema is a map of field names to their expected types.
// Example: {"name": NonEmpty(), "actions": Optional(Slice(String()))}
type Schema map[string]Type

// Validate checks if data conforms to the schema.
// Returns an *AggregateError with all validation failures found, ordered by
// path.
func Validate(schema Schema, data map[string]any) error {
	return aggregate(validateObject("", schema, data))
}

func validateObject(prefix string, schema Schema, data map[string]any) []error {
	var errs []error
	for _, key := range sortedKeys(schema) {
		fieldType := schema[key]
		value, exists := data[key]
		if !exists {
			if !isOptional(fieldType) {
				errs = append(errs, &ValidationError{Key: join(prefix, key), Reason: "required"})
			}
			continue
		}
		errs = append(errs, validateValue(join(prefix, key), fieldType, value)...)
	}
	for _, key := range sortedKeys(data) {
		if _, known := schema[key]; !known {
			errs = append(errs, &ValidationError{Key: join(prefix, key), Reason: "unknown field"})
		}
	}
	return errs
}

func validateValue(path string, t Type, value any) []error {
	switch tt := t.(type) {
	case *OptionalType:
		return validateValue(path, tt.inner, value)

	case *ObjectType:
		m, ok := value.(map[string]any)
		if !ok {
			return []error{&ValidationError{Key: path, Reason: "expected object", Value: value}}
		}
		return validateObject(path, tt.fields, m)

	case *TaggedType:
		m, ok := value.(map[string]any)
		if !ok {
			return []error{&ValidationError{Key: path, Reason: "expected object", Value: value}}
		}
		rawTag, present := m[tt.key]
		if !present {
			return []error{&ValidationError{Key: join(path, tt.key), Reason: "required"}}
		}
		tag, _ := rawTag.(string)
		variant, known := tt.variants[tag]
		if !known {
			return []error{&ValidationError{
				Key:    join(path, tt.key),
				Reason: fmt.Sprintf("must be one of %v", tt.Tags()),
				Value:  rawTag,
			}}
		}
		rest := make(map[string]any, len(m)-1)
		for k, v := range m {
			if k != tt.key {
				rest[k] = v
			}
		}
		return validateObject(path, variant, rest)

	case *SliceType:
		rv := reflect.ValueOf(value)
		if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
			return []error{&ValidationError{Key: path, Reason: "expected list", Value: value}}
		}
		var errs []error
		for i := 0; i < rv.Len(); i++ {
			errs = append(errs, validateValue(fmt.Sprintf("%s[%d]", path, i), tt.elemType, rv.Index(i).Interface())...)
		}
		return errs
	}

	if err := t.Validate(value); err != nil {
		return []error{&ValidationError{Key: path, Reason: err.Error(), Value: value}}
	}
	return nil
}

func isOptional(t Type) bool {
	_, ok := t.(*OptionalType)
	return ok
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func aggregate(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return &AggregateError{Errors: errs}
}
