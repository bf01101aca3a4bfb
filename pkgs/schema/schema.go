// Package schema describes plugin properties declaratively and validates raw
// part configuration against them.
package schema

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/mod/semver"
)

// Kind is the value type of a Field.
type Kind int

const (
	String Kind = iota + 1
	Strings
	Enum
	Bool
	Int
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Strings:
		return "strings"
	case Enum:
		return "enum"
	case Bool:
		return "bool"
	case Int:
		return "int"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Field specifies one plugin property.
type Field struct {
	Name     string
	Kind     Kind
	Default  any      // nil means no default
	Values   []string // legal values of an Enum field
	Required bool
	MinItems int // lower bound on the length of a Strings value when present

	// BuildAffecting marks a property whose change makes the build dirty.
	BuildAffecting bool

	// Replacement marks a retired property. Using it fails with an
	// OutdatedError naming the replacement.
	Replacement string
}

// Schema is a versioned, ordered set of fields. A Schema is immutable once
// created and safe for concurrent use.
type Schema struct {
	version string
	fields  []Field
	index   map[string]int

	once     sync.Once
	compiled *gojsonschema.Schema
	err      error
}

// New creates a schema of the given semver version (for example "v1" or
// "v2.0.0").
func New(version string, fields ...Field) (*Schema, error) {
	if !semver.IsValid(version) {
		return nil, fmt.Errorf("schema: invalid version %q", version)
	}
	s := &Schema{
		version: version,
		index:   make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if err := f.check(); err != nil {
			return nil, err
		}
		if _, ok := s.index[f.Name]; ok {
			return nil, fmt.Errorf("schema: duplicate field %q", f.Name)
		}
		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, f.clone())
	}
	return s, nil
}

// Must panics if err is not nil. It is meant for package level schema
// declarations.
func Must(s *Schema, err error) *Schema {
	if err != nil {
		panic(err)
	}
	return s
}

// Extend returns a new schema made of s and fields. A field whose name is
// already in s replaces it in place, new fields are appended. A replaced
// field stays build-affecting if it was in s.
func (s *Schema) Extend(fields ...Field) (*Schema, error) {
	child, err := New(s.version, fields...)
	if err != nil {
		return nil, err
	}
	return Merge(s, child), nil
}

// Merge flattens parent and child into one schema with child precedence.
// The result takes the child's version.
func Merge(parent, child *Schema) *Schema {
	out := &Schema{
		version: child.version,
		fields:  make([]Field, 0, len(parent.fields)+len(child.fields)),
		index:   make(map[string]int, len(parent.fields)+len(child.fields)),
	}
	for _, f := range parent.fields {
		out.index[f.Name] = len(out.fields)
		out.fields = append(out.fields, f.clone())
	}
	for _, f := range child.fields {
		f = f.clone()
		if i, ok := out.index[f.Name]; ok {
			f.BuildAffecting = f.BuildAffecting || out.fields[i].BuildAffecting
			out.fields[i] = f
			continue
		}
		out.index[f.Name] = len(out.fields)
		out.fields = append(out.fields, f)
	}
	return out
}

// Version returns the schema version.
func (s *Schema) Version() string { return s.version }

// Major returns the major version of the schema, such as "v1".
func (s *Schema) Major() string { return semver.Major(s.version) }

// Fields returns a copy of the schema's fields in declaration order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.clone()
	}
	return out
}

// Field returns the field called name.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i].clone(), true
}

// Required returns the names of the required fields.
func (s *Schema) Required() []string {
	var names []string
	for _, f := range s.fields {
		if f.Required && f.Replacement == "" {
			names = append(names, f.Name)
		}
	}
	return names
}

// BuildProperties returns the names of the build-affecting fields across
// the whole extension chain, in declaration order.
func (s *Schema) BuildProperties() []string {
	var names []string
	for _, f := range s.fields {
		if f.BuildAffecting && f.Replacement == "" {
			names = append(names, f.Name)
		}
	}
	return names
}

// JSONSchema returns the draft-04 JSON Schema document equivalent to s.
func (s *Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.fields))
	for _, f := range s.fields {
		if f.Replacement != "" {
			continue
		}
		props[f.Name] = f.jsonSchema()
	}
	doc := map[string]any{
		"$schema":              "http://json-schema.org/draft-04/schema#",
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if req := s.Required(); len(req) > 0 {
		doc["required"] = req
	}
	return doc
}

func (s *Schema) compile() (*gojsonschema.Schema, error) {
	s.once.Do(func() {
		s.compiled, s.err = gojsonschema.NewSchema(gojsonschema.NewGoLoader(s.JSONSchema()))
	})
	return s.compiled, s.err
}

func (f Field) jsonSchema() map[string]any {
	var m map[string]any
	switch f.Kind {
	case String:
		m = map[string]any{"type": "string"}
	case Strings:
		m = map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		}
		if f.MinItems > 0 {
			m["minItems"] = f.MinItems
		}
	case Enum:
		m = map[string]any{"type": "string", "enum": slices.Clone(f.Values)}
	case Bool:
		m = map[string]any{"type": "boolean"}
	case Int:
		m = map[string]any{"type": "integer"}
	}
	if f.Default != nil {
		m["default"] = cloneValue(f.Default)
	}
	return m
}

func (f Field) check() error {
	if f.Name == "" {
		return errors.New("schema: field without a name")
	}
	switch f.Kind {
	case String, Strings, Bool, Int:
		if len(f.Values) > 0 {
			return fmt.Errorf("schema: field %q: values are only allowed on enum fields", f.Name)
		}
	case Enum:
		if len(f.Values) == 0 {
			return fmt.Errorf("schema: enum field %q has no values", f.Name)
		}
	default:
		return fmt.Errorf("schema: field %q has unknown kind %v", f.Name, f.Kind)
	}
	if f.MinItems < 0 || (f.MinItems > 0 && f.Kind != Strings) {
		return fmt.Errorf("schema: field %q: bad minimum item count %d", f.Name, f.MinItems)
	}
	if f.Default == nil {
		return nil
	}
	v, err := f.coerce(f.Default)
	if err != nil {
		return fmt.Errorf("schema: field %q: default: %w", f.Name, err)
	}
	if f.Kind == Enum && !slices.Contains(f.Values, v.(string)) {
		return fmt.Errorf("schema: field %q: default %q is not one of %q", f.Name, v, f.Values)
	}
	return nil
}

func (f Field) clone() Field {
	f.Values = slices.Clone(f.Values)
	f.Default = cloneValue(f.Default)
	return f
}

// coerce converts a validated raw value to the field's Go type.
func (f Field) coerce(v any) (any, error) {
	switch f.Kind {
	case String, Enum:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case Strings:
		switch v := v.(type) {
		case []string:
			return slices.Clone(v), nil
		case []any:
			out := make([]string, 0, len(v))
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("expected string item, got %T", item)
				}
				out = append(out, s)
			}
			return out, nil
		}
	case Bool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case Int:
		switch n := v.(type) {
		case int:
			return n, nil
		case int64:
			return int(n), nil
		case uint64:
			return int(n), nil
		case float64:
			if n == float64(int(n)) {
				return int(n), nil
			}
		}
	}
	return nil, fmt.Errorf("expected %v, got %T", f.Kind, v)
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case []string:
		return slices.Clone(v)
	case []any:
		return slices.Clone(v)
	}
	return v
}
