package extract

import (
	"errors"
	"fmt"

	"github.com/kaptinlin/jsonschema"
)

// Schema is a compiled JSON Schema used to vet extracted payloads.
type Schema struct {
	compiled *jsonschema.Schema
}

// CompileSchema compiles a JSON Schema document.
func CompileSchema(doc []byte) (*Schema, error) {
	compiled, err := jsonschema.NewCompiler().Compile(doc)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{compiled: compiled}, nil
}

// MustCompileSchema is CompileSchema for package-level schemas.
func MustCompileSchema(doc string) *Schema {
	s, err := CompileSchema([]byte(doc))
	if err != nil {
		panic(err)
	}
	return s
}

// Validate reports whether v, a value decoded into any, satisfies the schema.
func (s *Schema) Validate(v any) error {
	result := s.compiled.Validate(v)
	if !result.IsValid() {
		return errors.New(result.Error())
	}
	return nil
}
