package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator validates data against a schema
type Validator interface {
	// Validate validates data against the schema
	// Returns an error if validation fails
	Validate(data interface{}) error

	// JSONSchema returns the JSON Schema representation of this validator
	// This is used when sending schemas to AI providers
	JSONSchema() map[string]interface{}
}

// Schema represents a validation schema
// Can be implemented as JSON Schema or Go struct-based schema
type Schema interface {
	// Validator returns the validator for this schema
	Validator() Validator
}

// JSONSchemaValidator validates using JSON Schema
type JSONSchemaValidator struct {
	schema map[string]interface{}

	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
}

// NewJSONSchema creates a new JSON Schema validator
func NewJSONSchema(schema map[string]interface{}) *JSONSchemaValidator {
	return &JSONSchemaValidator{schema: schema}
}

// Validate validates data against the JSON Schema. data is round-tripped
// through encoding/json first so Go values (structs, typed maps) compile
// down to the same plain interface{} shape jsonschema expects, matching
// what a tool call's arguments already look like once decoded off the
// wire.
func (v *JSONSchemaValidator) Validate(data interface{}) error {
	compiled, err := v.compile()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode data: %w", err)
	}
	var decoded interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}

	return compiled.Validate(decoded)
}

func (v *JSONSchemaValidator) compile() (*jsonschema.Schema, error) {
	v.compileOnce.Do(func() {
		raw, err := json.Marshal(v.schema)
		if err != nil {
			v.compileErr = fmt.Errorf("encode schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("tool.schema.json", bytes.NewReader(raw)); err != nil {
			v.compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		v.compiled, v.compileErr = compiler.Compile("tool.schema.json")
	})
	return v.compiled, v.compileErr
}

// JSONSchema returns the JSON Schema
func (v *JSONSchemaValidator) JSONSchema() map[string]interface{} {
	return v.schema
}

// StructValidator validates using Go struct tags
type StructValidator struct {
	targetType reflect.Type
}

// NewStructSchema creates a new struct-based schema validator
func NewStructSchema(targetType reflect.Type) *StructValidator {
	return &StructValidator{targetType: targetType}
}

// Validate checks data's exported fields against a "validate:\"required\""
// struct tag convention, rejecting any required field left at its zero
// value. data must be targetType or a pointer to it.
func (v *StructValidator) Validate(data interface{}) error {
	val := reflect.ValueOf(data)
	for val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return fmt.Errorf("validate: nil value for %s", v.targetType)
		}
		val = val.Elem()
	}
	if val.Type() != v.targetType {
		return fmt.Errorf("validate: expected %s, got %s", v.targetType, val.Type())
	}

	var missing []string
	for i := 0; i < val.NumField(); i++ {
		field := v.targetType.Field(i)
		if field.PkgPath != "" {
			continue // unexported
		}
		if !hasRequiredTag(field.Tag.Get("validate")) {
			continue
		}
		if val.Field(i).IsZero() {
			missing = append(missing, field.Name)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("validate: required field(s) missing: %v", missing)
	}
	return nil
}

func hasRequiredTag(tag string) bool {
	for _, part := range strings.Split(tag, ",") {
		if strings.TrimSpace(part) == "required" {
			return true
		}
	}
	return false
}

// JSONSchema generates a JSON Schema from the struct's json and validate
// tags: one property per exported field, required listing every field
// tagged validate:"required".
func (v *StructValidator) JSONSchema() map[string]interface{} {
	properties := map[string]interface{}{}
	var required []string

	for i := 0; i < v.targetType.NumField(); i++ {
		field := v.targetType.Field(i)
		if field.PkgPath != "" {
			continue
		}

		name := field.Name
		if jsonTag := field.Tag.Get("json"); jsonTag != "" {
			if parts := strings.Split(jsonTag, ","); parts[0] != "" && parts[0] != "-" {
				name = parts[0]
			}
		}

		properties[name] = map[string]interface{}{"type": jsonSchemaType(field.Type)}
		if hasRequiredTag(field.Tag.Get("validate")) {
			required = append(required, name)
		}
	}

	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func jsonSchemaType(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Struct, reflect.Map:
		return "object"
	default:
		return "object"
	}
}

// SimpleJSONSchema is a simple implementation of Schema
type SimpleJSONSchema struct {
	validator *JSONSchemaValidator
}

// NewSimpleJSONSchema creates a simple JSON Schema
func NewSimpleJSONSchema(schema map[string]interface{}) *SimpleJSONSchema {
	return &SimpleJSONSchema{
		validator: NewJSONSchema(schema),
	}
}

// Validator returns the validator
func (s *SimpleJSONSchema) Validator() Validator {
	return s.validator
}

// SimpleStructSchema is a simple implementation of Schema using structs
type SimpleStructSchema struct {
	validator *StructValidator
}

// NewSimpleStructSchema creates a simple struct schema
func NewSimpleStructSchema(targetType reflect.Type) *SimpleStructSchema {
	return &SimpleStructSchema{
		validator: NewStructSchema(targetType),
	}
}

// Validator returns the validator
func (s *SimpleStructSchema) Validator() Validator {
	return s.validator
}
