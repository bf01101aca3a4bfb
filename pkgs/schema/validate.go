package schema

import (
	"slices"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// commonKeys are part keys owned by the lifecycle rather than by plugins.
// Validate skips them unless the schema declares them.
var commonKeys = []string{
	"plugin",
	"after",
	"source",
	"source-type",
	"source-branch",
	"source-tag",
	"source-commit",
	"source-depth",
	"source-subdir",
	"source-checksum",
	"override-pull",
	"override-build",
	"override-stage",
	"override-prime",
	"build-packages",
	"build-snaps",
	"build-environment",
	"build-attributes",
	"stage-packages",
	"stage-snaps",
	"organize",
	"stage",
	"prime",
}

// IsCommonKey reports whether key is a part key owned by the lifecycle.
func IsCommonKey(key string) bool {
	return slices.Contains(commonKeys, normalizeKey(key))
}

// Config is the typed, validated configuration of one plugin instance.
type Config struct {
	schema *Schema
	values map[string]any
	set    map[string]bool
}

// Validate checks raw against s and returns the typed configuration with
// defaults applied. Keys may be spelled with underscores in place of
// dashes.
func Validate(raw map[string]any, s *Schema) (*Config, error) {
	doc := make(map[string]any, len(raw))
	for key, v := range raw {
		name := normalizeKey(key)
		f, declared := s.Field(name)
		if declared && f.Replacement != "" {
			return nil, &OutdatedError{Key: name, Replacement: f.Replacement}
		}
		if !declared && IsCommonKey(name) {
			continue
		}
		if _, dup := doc[name]; dup {
			return nil, &ValidationError{Problems: []Problem{{Field: name, Message: "duplicate property"}}}
		}
		doc[name] = v
	}

	compiled, err := s.compile()
	if err != nil {
		return nil, err
	}
	result, err := compiled.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, &ValidationError{Problems: []Problem{{Message: err.Error()}}}
	}
	if !result.Valid() {
		return nil, newValidationError(result.Errors())
	}

	c := &Config{
		schema: s,
		values: make(map[string]any, len(s.fields)),
		set:    make(map[string]bool, len(doc)),
	}
	for _, f := range s.fields {
		if f.Replacement != "" {
			continue
		}
		v, ok := doc[f.Name]
		if !ok {
			if f.Default != nil {
				dv, _ := f.coerce(f.Default)
				c.values[f.Name] = dv
			}
			continue
		}
		cv, err := f.coerce(v)
		if err != nil {
			return nil, &ValidationError{Problems: []Problem{{Field: f.Name, Message: err.Error()}}}
		}
		c.values[f.Name] = cv
		c.set[f.Name] = true
	}
	return c, nil
}

// Schema returns the schema c was validated against.
func (c *Config) Schema() *Schema { return c.schema }

// Has reports whether name was given explicitly.
func (c *Config) Has(name string) bool { return c.set[name] }

// Value returns the value of name, default included.
func (c *Config) Value(name string) (any, bool) {
	v, ok := c.values[name]
	return cloneValue(v), ok
}

// String returns the value of a String or Enum property.
func (c *Config) String(name string) string {
	s, _ := c.values[name].(string)
	return s
}

// Strings returns a copy of the value of a Strings property.
func (c *Config) Strings(name string) []string {
	v, _ := c.values[name].([]string)
	return slices.Clone(v)
}

// Bool returns the value of a Bool property.
func (c *Config) Bool(name string) bool {
	b, _ := c.values[name].(bool)
	return b
}

// Int returns the value of an Int property.
func (c *Config) Int(name string) int {
	n, _ := c.values[name].(int)
	return n
}

// Properties returns a copy of every property value, defaults included.
func (c *Config) Properties() map[string]any {
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = cloneValue(v)
	}
	return out
}

// BuildState returns the values of the build-affecting properties. Two
// configurations with equal build states build the same way.
func (c *Config) BuildState() map[string]any {
	props := c.schema.BuildProperties()
	out := make(map[string]any, len(props))
	for _, name := range props {
		if v, ok := c.values[name]; ok {
			out[name] = cloneValue(v)
		}
	}
	return out
}

// DirtyProperties returns the build-affecting properties whose value differs
// between c and a previously recorded build state, sorted by name.
func (c *Config) DirtyProperties(previous map[string]any) []string {
	current := c.BuildState()
	var dirty []string
	for _, name := range c.schema.BuildProperties() {
		if !sameValue(current[name], previous[name]) {
			dirty = append(dirty, name)
		}
	}
	for name := range previous {
		if _, ok := c.schema.Field(name); !ok {
			dirty = append(dirty, name)
		}
	}
	slices.Sort(dirty)
	return slices.Compact(dirty)
}

func normalizeKey(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// sameValue compares property values, treating lists decoded from JSON
// ([]any) and typed lists ([]string) alike.
func sameValue(a, b any) bool {
	as, aList := asStrings(a)
	bs, bList := asStrings(b)
	if aList || bList {
		return aList && bList && slices.Equal(as, bs)
	}
	if af, ok := asFloat(a); ok {
		bf, ok := asFloat(b)
		return ok && af == bf
	}
	return a == b
}

func asStrings(v any) ([]string, bool) {
	switch v := v.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
